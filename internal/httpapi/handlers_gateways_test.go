package httpapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"botpanel/internal/store"
)

func TestToggleUserGatewayFlipsOnce(t *testing.T) {
	fs := &fakeStore{}
	s := newTestServer(t, fs)

	rec := doJSON(t, s, http.MethodPost, "/dashboard/user-gateways/ug-1/toggle-active", "",
		bearerFor(t, "user-1", store.RoleUser))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if fs.toggleGatewayCalls != 1 {
		t.Fatalf("expected exactly one toggle, got %d", fs.toggleGatewayCalls)
	}

	var payload struct {
		Success  bool `json:"success"`
		IsActive bool `json:"is_active"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !payload.Success {
		t.Fatal("expected success=true")
	}
	if !payload.IsActive {
		t.Fatal("expected toggled state returned")
	}
}

func TestValidateCredentialsReportsMissingFields(t *testing.T) {
	gw := &store.Gateway{RequiredFields: []string{"merchant_id", "api_key"}}
	errs := validateCredentials(gw, map[string]string{"merchant_id": "m-1"})

	if len(errs) != 1 {
		t.Fatalf("expected one error, got %d", len(errs))
	}
	if errs["api_key"] != "The api_key field is required." {
		t.Fatalf("unexpected message: %q", errs["api_key"])
	}
}
