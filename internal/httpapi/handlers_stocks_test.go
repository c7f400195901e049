package httpapi

import (
	"context"
	"net/http"
	"testing"

	"botpanel/internal/store"
)

func (f *fakeStore) GetProduct(ctx context.Context, userID, id string) (*store.Product, error) {
	if f.product == nil || f.product.ID != id {
		return nil, store.ErrNotFound
	}
	return f.product, nil
}

func (f *fakeStore) ListVariants(ctx context.Context, productID string) ([]store.Variant, error) {
	return f.variants, nil
}

func (f *fakeStore) AddStock(ctx context.Context, items []store.StockItem) (int, error) {
	f.addStockCalls++
	return len(items), nil
}

func TestAddStockRejectsForeignVariant(t *testing.T) {
	st := &fakeStore{
		product:  &store.Product{ID: "prod-1", UserID: "user-1", Code: "NETFLIX"},
		variants: []store.Variant{{ID: "var-1", ProductID: "prod-1", Name: "1 Bulan"}},
	}
	s := newTestServer(t, st)

	rec := doJSON(t, s, http.MethodPost, "/dashboard/stocks",
		`{"product_id":"prod-1","variant_id":"var-other","items":"acc1:pass1"}`,
		bearerFor(t, "user-1", store.RoleUser))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	if st.addStockCalls != 0 {
		t.Fatalf("expected no stock write, got %d", st.addStockCalls)
	}
}

func TestAddStockAcceptsOwnVariant(t *testing.T) {
	st := &fakeStore{
		product:  &store.Product{ID: "prod-1", UserID: "user-1", Code: "NETFLIX"},
		variants: []store.Variant{{ID: "var-1", ProductID: "prod-1", Name: "1 Bulan"}},
	}
	s := newTestServer(t, st)

	rec := doJSON(t, s, http.MethodPost, "/dashboard/stocks",
		`{"product_id":"prod-1","variant_id":"var-1","items":"acc1:pass1\nacc2:pass2"}`,
		bearerFor(t, "user-1", store.RoleUser))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if st.addStockCalls != 1 {
		t.Fatalf("expected one stock write, got %d", st.addStockCalls)
	}
}
