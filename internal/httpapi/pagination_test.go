package httpapi

import (
	"net/http/httptest"
	"testing"
)

func TestHasNext(t *testing.T) {
	cases := []struct {
		page    int
		perPage int
		total   int64
		want    bool
	}{
		{1, 20, 45, true},
		{2, 20, 45, true},
		{3, 20, 45, false},
		{1, 20, 20, false},
		{1, 20, 0, false},
		{0, 0, 45, true},
	}
	for _, tc := range cases {
		if got := HasNext(tc.page, tc.perPage, tc.total); got != tc.want {
			t.Errorf("HasNext(%d,%d,%d) = %v, want %v", tc.page, tc.perPage, tc.total, got, tc.want)
		}
	}
}

func TestParsePageClampsInput(t *testing.T) {
	req := httptest.NewRequest("GET", "/dashboard/transactions?page=-2&per_page=500", nil)
	page, perPage := parsePage(req)
	if page != 1 {
		t.Fatalf("expected page clamped to 1, got %d", page)
	}
	if perPage != maxPerPage {
		t.Fatalf("expected per_page capped at %d, got %d", maxPerPage, perPage)
	}

	req = httptest.NewRequest("GET", "/dashboard/transactions", nil)
	page, perPage = parsePage(req)
	if page != 1 || perPage != defaultPerPage {
		t.Fatalf("expected defaults, got page=%d per_page=%d", page, perPage)
	}
}

func TestPaginatedEnvelopeShape(t *testing.T) {
	env := paginated([]int{1, 2, 3}, 2, 20, 45)
	if env["success"] != true {
		t.Fatal("expected success=true")
	}
	if env["current_page"] != 2 || env["per_page"] != 20 || env["total"] != int64(45) {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}
