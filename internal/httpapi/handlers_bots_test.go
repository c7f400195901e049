package httpapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"botpanel/internal/store"
)

func TestCreateBotRejectsTokenWithoutColon(t *testing.T) {
	fs := &fakeStore{}
	s := newTestServer(t, fs)

	rec := doJSON(t, s, http.MethodPost, "/dashboard/bots",
		`{"name":"Shop Bot","bot_token":"no-colon-here"}`,
		bearerFor(t, "user-1", store.RoleUser))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var payload struct {
		Success bool              `json:"success"`
		Errors  map[string]string `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Errors["bot_token"] != "Invalid bot token format." {
		t.Fatalf("unexpected bot_token error: %q", payload.Errors["bot_token"])
	}
	if fs.createBotCalls != 0 {
		t.Fatalf("expected no bot write, got %d", fs.createBotCalls)
	}
}

func TestCreateBotAcceptsValidToken(t *testing.T) {
	fs := &fakeStore{}
	s := newTestServer(t, fs)

	rec := doJSON(t, s, http.MethodPost, "/dashboard/bots",
		`{"name":"Shop Bot","bot_token":"123456:AAHtokenbody"}`,
		bearerFor(t, "user-1", store.RoleUser))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if fs.createBotCalls != 1 {
		t.Fatalf("expected one bot write, got %d", fs.createBotCalls)
	}
}

func TestDeleteBotIssuesSingleDelete(t *testing.T) {
	fs := &fakeStore{}
	s := newTestServer(t, fs)

	rec := doJSON(t, s, http.MethodDelete, "/dashboard/bots/bot-1", "",
		bearerFor(t, "user-1", store.RoleUser))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if fs.deleteBotCalls != 1 {
		t.Fatalf("expected exactly one delete, got %d", fs.deleteBotCalls)
	}
}

func TestDeleteBotNotFound(t *testing.T) {
	fs := &fakeStore{deleteBotErr: store.ErrNotFound}
	s := newTestServer(t, fs)

	rec := doJSON(t, s, http.MethodDelete, "/dashboard/bots/unknown", "",
		bearerFor(t, "user-1", store.RoleUser))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
