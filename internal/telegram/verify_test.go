package telegram

import (
	"io"
	"log/slog"
	"testing"
)

func TestValidShape(t *testing.T) {
	cases := []struct {
		token string
		want  bool
	}{
		{"123456:AAHtokenbody", true},
		{"1:x", true},
		{"no-colon-here", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := ValidShape(tc.token); got != tc.want {
			t.Errorf("ValidShape(%q) = %v, want %v", tc.token, got, tc.want)
		}
	}
}

func TestVerifyDisabledSkipsLookup(t *testing.T) {
	v := NewVerifier(false, slog.New(slog.NewTextHandler(io.Discard, nil)))

	username, err := v.Verify("123456:AAHtokenbody")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if username != "" {
		t.Fatalf("expected empty username, got %q", username)
	}

	if _, err := v.Verify("malformed"); err == nil {
		t.Fatal("expected error for malformed token")
	}
}
