package botapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, APIKey: "secret"}, slog.New(slog.NewTextHandler(io.Discard, nil)), nil, nil)
}

func TestListProductsBareArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-API-Key"); got != "secret" {
			t.Errorf("expected api key header, got %q", got)
		}
		w.Write([]byte(`[{"id":"p1","code":"NF1","name":"Netflix","price":25000}]`))
	})

	products, err := c.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(products) != 1 || products[0].Code != "NF1" {
		t.Fatalf("unexpected products: %+v", products)
	}
}

func TestListProductsWrappedData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":[{"id":"p1","code":"SP1","name":"Spotify","price":15000}]}`))
	})

	products, err := c.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(products) != 1 || products[0].Code != "SP1" {
		t.Fatalf("unexpected products: %+v", products)
	}
}

func TestCallReportsBackendFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"product code already exists"}`))
	})

	_, err := c.CreateProduct(context.Background(), CreateProductRequest{Code: "X", Name: "X", Price: 1})
	if err == nil {
		t.Fatal("expected error for success=false payload")
	}
}

func TestStatsDecodesCounters(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/stats" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"total_products": 3, "total_stock": 12, "total_sold": 7, "revenue": 175000},
		})
	})

	stats, err := c.Stats(context.Background(), true)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalProducts != 3 || stats.Revenue != 175000 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestBroadcastMultipartWithImage(t *testing.T) {
	var gotContentType string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if msg := r.FormValue("message"); msg != "promo" {
			t.Errorf("expected message field, got %q", msg)
		}
		w.Write([]byte(`{"success":true,"data":{"sent":4,"failed":1}}`))
	})

	res, err := c.Broadcast(context.Background(), BroadcastRequest{
		Message:   "promo",
		ImageName: "banner.png",
		Image:     strings.NewReader("fakepng"),
	})
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if res.Sent != 4 || res.Failed != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if gotContentType == "application/json" {
		t.Fatal("expected multipart content type")
	}
}
