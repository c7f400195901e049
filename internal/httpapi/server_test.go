package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"botpanel/internal/auth"
	"botpanel/internal/store"
)

var testSecret = []byte("test-secret")

// fakeStore overrides only the methods a test exercises; everything else
// panics through the embedded nil interface, which doubles as a no-call
// assertion.
type fakeStore struct {
	store.Store

	userByEmailCalls int
	userByEmail      *store.User

	createBotCalls int
	deleteBotCalls int
	deleteBotErr   error

	toggleGatewayCalls int
	toggleGatewayState bool

	userGateway *store.UserGateway
	gateway     *store.Gateway
	createdTx   *store.Transaction

	product       *store.Product
	variants      []store.Variant
	addStockCalls int

	revoked bool
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	f.userByEmailCalls++
	if f.userByEmail == nil {
		return nil, store.ErrNotFound
	}
	return f.userByEmail, nil
}

func (f *fakeStore) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	return f.revoked, nil
}

func (f *fakeStore) CreateBot(ctx context.Context, b *store.Bot) error {
	f.createBotCalls++
	return nil
}

func (f *fakeStore) DeleteBot(ctx context.Context, userID, id string) error {
	f.deleteBotCalls++
	return f.deleteBotErr
}

func (f *fakeStore) ToggleUserGateway(ctx context.Context, userID, id string) (bool, error) {
	f.toggleGatewayCalls++
	f.toggleGatewayState = !f.toggleGatewayState
	return f.toggleGatewayState, nil
}

func (f *fakeStore) CreateNotification(ctx context.Context, n *store.Notification) error {
	return nil
}

func newTestServer(t *testing.T, st store.Store) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(Config{
		Addr:      ":0",
		JWTSecret: testSecret,
		TokenTTL:  time.Hour,
	}, st, nil, nil, nil, nil, logger, nil)
}

func bearerFor(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := auth.Sign(testSecret, userID, role, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + token
}

func doJSON(t *testing.T, s *Server, method, path, body, authz string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestProtectedRouteRejectsMissingToken(t *testing.T) {
	s := newTestServer(t, &fakeStore{})
	rec := doJSON(t, s, http.MethodGet, "/auth/me", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestProtectedRouteRejectsRevokedToken(t *testing.T) {
	s := newTestServer(t, &fakeStore{revoked: true})
	rec := doJSON(t, s, http.MethodGet, "/auth/me", "", bearerFor(t, "user-1", store.RoleUser))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for revoked token, got %d", rec.Code)
	}
}

func TestAdminRouteRejectsRegularUser(t *testing.T) {
	s := newTestServer(t, &fakeStore{})
	rec := doJSON(t, s, http.MethodGet, "/dashboard/admin/users", "", bearerFor(t, "user-1", store.RoleUser))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}
