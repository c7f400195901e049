package httpapi

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestLoginWithoutCaptchaSkipsUserLookup(t *testing.T) {
	fs := &fakeStore{}
	s := newTestServer(t, fs)

	rec := doJSON(t, s, http.MethodPost, "/auth/login",
		`{"email":"a@b.c","password":"secret123"}`, "")

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var payload struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Success {
		t.Fatal("expected success=false")
	}
	if payload.Message != "Please complete the security verification." {
		t.Fatalf("unexpected message: %q", payload.Message)
	}
	if fs.userByEmailCalls != 0 {
		t.Fatalf("expected no user lookup, got %d calls", fs.userByEmailCalls)
	}
}

func TestLoginUnknownEmailReturns401(t *testing.T) {
	fs := &fakeStore{}
	s := newTestServer(t, fs)

	rec := doJSON(t, s, http.MethodPost, "/auth/login",
		`{"email":"a@b.c","password":"secret123","captcha_token":"tok"}`, "")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if fs.userByEmailCalls != 1 {
		t.Fatalf("expected one user lookup, got %d", fs.userByEmailCalls)
	}
}
