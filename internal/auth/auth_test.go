package auth

import (
	"testing"
	"time"
)

func TestSignAndParseRoundTrip(t *testing.T) {
	secret := []byte("unit-secret")
	token, err := Sign(secret, "user-1", "super_admin", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := Parse(secret, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != "super_admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ID == "" {
		t.Fatal("expected a token id")
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := Sign([]byte("secret-a"), "user-1", "user", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := Parse([]byte("secret-b"), token); err == nil {
		t.Fatal("expected parse failure with wrong secret")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	secret := []byte("unit-secret")
	token, err := Sign(secret, "user-1", "user", -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := Parse(secret, token); err == nil {
		t.Fatal("expected parse failure for expired token")
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter22xyz")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword(hash, "hunter22xyz") {
		t.Fatal("expected password to verify")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatal("expected wrong password to fail")
	}
}

func TestNewAPITokenUnique(t *testing.T) {
	a, b := NewAPIToken(), NewAPIToken()
	if a == b {
		t.Fatal("expected unique tokens")
	}
	if len(a) != 48 {
		t.Fatalf("expected 48 hex chars, got %d", len(a))
	}
}
