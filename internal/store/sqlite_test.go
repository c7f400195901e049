package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestSQLite(t *testing.T) (*SQLiteStore, context.Context) {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := NewSQLite(ctx, filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(s.Close)
	return s, ctx
}

func seedUser(t *testing.T, ctx context.Context, s *SQLiteStore, email string) *User {
	t.Helper()
	u := &User{
		ID:           uuid.NewString(),
		Name:         "Test User",
		Email:        email,
		PasswordHash: "hash",
		Role:         RoleUser,
		Status:       UserStatusActive,
	}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func seedProduct(t *testing.T, ctx context.Context, s *SQLiteStore, userID, code string) *Product {
	t.Helper()
	p := &Product{
		ID:     uuid.NewString(),
		UserID: userID,
		Code:   code,
		Name:   "Product " + code,
		Price:  10000,
	}
	if err := s.CreateProduct(ctx, p); err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}

func seedTransaction(t *testing.T, ctx context.Context, s *SQLiteStore, userID, ref, status string, expiresAt time.Time) {
	t.Helper()
	tx := &Transaction{
		ID:         uuid.NewString(),
		UserID:     userID,
		InvoiceRef: ref,
		Amount:     5000,
		Status:     status,
		ExpiresAt:  &expiresAt,
	}
	if err := s.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("create transaction %s: %v", ref, err)
	}
}

func TestExpireTransactionsMarksOnlyOverduePending(t *testing.T) {
	s, ctx := newTestSQLite(t)
	u := seedUser(t, ctx, s, "expiry@example.com")

	now := time.Now().UTC()
	seedTransaction(t, ctx, s, u.ID, "INV-OVERDUE", TxStatusPending, now.Add(-time.Minute))
	seedTransaction(t, ctx, s, u.ID, "INV-FUTURE", TxStatusPending, now.Add(time.Hour))
	seedTransaction(t, ctx, s, u.ID, "INV-PAID", TxStatusSuccess, now.Add(-time.Minute))

	n, err := s.ExpireTransactions(ctx, now)
	if err != nil {
		t.Fatalf("expire transactions: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired row, got %d", n)
	}

	want := map[string]string{
		"INV-OVERDUE": TxStatusExpired,
		"INV-FUTURE":  TxStatusPending,
		"INV-PAID":    TxStatusSuccess,
	}
	for ref, status := range want {
		got, err := s.GetTransactionByRef(ctx, ref)
		if err != nil {
			t.Fatalf("load %s: %v", ref, err)
		}
		if got.Status != status {
			t.Errorf("%s: status = %q, want %q", ref, got.Status, status)
		}
	}
}

func TestVariantMutationScopedToOwner(t *testing.T) {
	s, ctx := newTestSQLite(t)
	owner := seedUser(t, ctx, s, "owner@example.com")
	other := seedUser(t, ctx, s, "other@example.com")
	p := seedProduct(t, ctx, s, owner.ID, "NETFLIX")

	v := &Variant{ID: uuid.NewString(), ProductID: p.ID, Name: "1 Bulan", Price: 25000}
	if err := s.CreateVariant(ctx, v); err != nil {
		t.Fatalf("create variant: %v", err)
	}

	err := s.UpdateVariant(ctx, other.ID, &Variant{ID: v.ID, Name: "Hijacked", Price: 1})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-user update: got %v, want ErrNotFound", err)
	}
	if err := s.DeleteVariant(ctx, other.ID, v.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-user delete: got %v, want ErrNotFound", err)
	}

	variants, err := s.ListVariants(ctx, p.ID)
	if err != nil {
		t.Fatalf("list variants: %v", err)
	}
	if len(variants) != 1 || variants[0].Name != "1 Bulan" {
		t.Fatalf("variant changed by foreign user: %+v", variants)
	}

	if err := s.UpdateVariant(ctx, owner.ID, &Variant{ID: v.ID, Name: "3 Bulan", Price: 60000}); err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if err := s.DeleteVariant(ctx, owner.ID, v.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
}

func TestToggleBotReturnsFlippedStatus(t *testing.T) {
	s, ctx := newTestSQLite(t)
	u := seedUser(t, ctx, s, "bots@example.com")

	b := &Bot{
		ID:       uuid.NewString(),
		UserID:   u.ID,
		Name:     "Store Bot",
		BotToken: "123456:AAHtokenbody",
		Status:   BotStatusActive,
	}
	if err := s.CreateBot(ctx, b); err != nil {
		t.Fatalf("create bot: %v", err)
	}

	status, err := s.ToggleBot(ctx, u.ID, b.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if status != BotStatusInactive {
		t.Fatalf("status = %q, want %q", status, BotStatusInactive)
	}
	status, err = s.ToggleBot(ctx, u.ID, b.ID)
	if err != nil {
		t.Fatalf("toggle back: %v", err)
	}
	if status != BotStatusActive {
		t.Fatalf("status = %q, want %q", status, BotStatusActive)
	}

	if _, err := s.ToggleBot(ctx, u.ID, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown bot: got %v, want ErrNotFound", err)
	}
}

func TestToggleUserGatewayReturnsFlippedState(t *testing.T) {
	s, ctx := newTestSQLite(t)
	u := seedUser(t, ctx, s, "gateways@example.com")

	catalog, err := s.ListGateways(ctx)
	if err != nil || len(catalog) == 0 {
		t.Fatalf("gateway catalog: %v (%d rows)", err, len(catalog))
	}

	ug := &UserGateway{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		GatewayID: catalog[0].ID,
		Label:     "Primary",
		IsActive:  true,
	}
	if err := s.CreateUserGateway(ctx, ug); err != nil {
		t.Fatalf("create user gateway: %v", err)
	}

	active, err := s.ToggleUserGateway(ctx, u.ID, ug.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if active {
		t.Fatal("expected gateway inactive after first toggle")
	}
	active, err = s.ToggleUserGateway(ctx, u.ID, ug.ID)
	if err != nil {
		t.Fatalf("toggle back: %v", err)
	}
	if !active {
		t.Fatal("expected gateway active after second toggle")
	}
}
