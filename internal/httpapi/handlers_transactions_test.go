package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"botpanel/internal/store"
)

func (f *fakeStore) GetUserGateway(ctx context.Context, userID, id string) (*store.UserGateway, error) {
	if f.userGateway == nil {
		return nil, store.ErrNotFound
	}
	return f.userGateway, nil
}

func (f *fakeStore) GetGatewayByID(ctx context.Context, id string) (*store.Gateway, error) {
	return f.gateway, nil
}

func (f *fakeStore) CreateTransaction(ctx context.Context, tx *store.Transaction) error {
	f.createdTx = tx
	return nil
}

func TestGatewayFee(t *testing.T) {
	cases := []struct {
		name   string
		gw     store.Gateway
		amount int64
		want   int64
	}{
		{"flat only", store.Gateway{FeeFlat: 500}, 10000, 500},
		{"percent only", store.Gateway{FeePercent: 0.7}, 10000, 70},
		{"combined", store.Gateway{FeePercent: 0.7, FeeFlat: 500}, 10000, 570},
		{"rounds percent", store.Gateway{FeePercent: 0.7}, 10050, 70},
		{"zero", store.Gateway{}, 10000, 0},
	}
	for _, tc := range cases {
		if got := gatewayFee(&tc.gw, tc.amount); got != tc.want {
			t.Errorf("%s: gatewayFee(%d) = %d, want %d", tc.name, tc.amount, got, tc.want)
		}
	}
}

func TestNormalizeWebhookStatus(t *testing.T) {
	cases := map[string]string{
		"success":    store.TxStatusSuccess,
		"PAID":       store.TxStatusSuccess,
		"settlement": store.TxStatusSuccess,
		"failed":     store.TxStatusFailed,
		"expired":    store.TxStatusExpired,
		"whatever":   "",
		"":           "",
	}
	for in, want := range cases {
		if got := normalizeWebhookStatus(in); got != want {
			t.Errorf("normalizeWebhookStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMD5Equal(t *testing.T) {
	// md5("gateway") precomputed.
	if !md5Equal("gateway", "3e21ab62fb17400301d9f0156b6c3031") {
		t.Fatal("expected digest match")
	}
	if md5Equal("other", "3e21ab62fb17400301d9f0156b6c3031") {
		t.Fatal("expected digest mismatch")
	}
}

func TestTestTransactionBotIDOptional(t *testing.T) {
	st := &fakeStore{
		userGateway: &store.UserGateway{ID: "ug-1", GatewayID: "gw-1", Label: "Primary", IsActive: true},
		gateway:     &store.Gateway{ID: "gw-1", Code: "qris_static", FeePercent: 0.7},
	}
	s := newTestServer(t, st)
	authz := bearerFor(t, "user-1", store.RoleUser)

	rec := doJSON(t, s, http.MethodPost, "/dashboard/transactions/test",
		`{"user_gateway_id":"ug-1","amount":10000}`, authz)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if st.createdTx == nil {
		t.Fatal("expected a transaction write")
	}
	if st.createdTx.BotID != nil {
		t.Fatalf("expected nil bot id, got %q", *st.createdTx.BotID)
	}

	rec = doJSON(t, s, http.MethodPost, "/dashboard/transactions/test",
		`{"user_gateway_id":"ug-1","bot_id":"bot-7","amount":10000}`, authz)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if st.createdTx.BotID == nil || *st.createdTx.BotID != "bot-7" {
		t.Fatalf("expected bot id bot-7, got %v", st.createdTx.BotID)
	}
}

func TestWebhookRejectsUnknownStatus(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(Config{
		Addr:      ":0",
		JWTSecret: testSecret,
		TokenTTL:  time.Hour,
		// md5("gateway-user") and md5("gateway-pass") precomputed.
		WebhookUsernameMD5: "9a38f20e623ec8af0d3562081358ef68",
		WebhookPasswordMD5: "11b5359a97da57702da74dceadf62697",
	}, &fakeStore{}, nil, nil, nil, nil, logger, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhook/payment",
		strings.NewReader(`{"invoice_ref":"INV-ABC","status":"refunded"}`))
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth("gateway-user", "gateway-pass")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Errors map[string]string `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got := body.Errors["status"]; got != "The status must be success, failed, or expired." {
		t.Fatalf("unexpected status message: %q", got)
	}
}

func TestNewInvoiceRefShape(t *testing.T) {
	ref := newInvoiceRef()
	if len(ref) != 16 {
		t.Fatalf("expected INV- plus 12 chars, got %q", ref)
	}
	if ref[:4] != "INV-" {
		t.Fatalf("expected INV- prefix, got %q", ref)
	}
	if ref == newInvoiceRef() {
		t.Fatal("expected unique refs")
	}
}
