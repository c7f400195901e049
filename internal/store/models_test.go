package store

import "testing"

func TestMaskToken(t *testing.T) {
	cases := []struct {
		token string
		want  string
	}{
		{"123456:AAHtokenbody", "123456:****body"},
		{"no-colon", "****"},
		{"1:ab", "****"},
		{"", "****"},
	}
	for _, tc := range cases {
		if got := MaskToken(tc.token); got != tc.want {
			t.Errorf("MaskToken(%q) = %q, want %q", tc.token, got, tc.want)
		}
	}
}

func TestTerminalStatus(t *testing.T) {
	terminal := []string{TxStatusSuccess, TxStatusExpired, TxStatusFailed, TxStatusCancelled}
	for _, status := range terminal {
		if !TerminalStatus(status) {
			t.Errorf("expected %q to be terminal", status)
		}
	}
	if TerminalStatus(TxStatusPending) {
		t.Error("pending must not be terminal")
	}
}

func TestPageBounds(t *testing.T) {
	cases := []struct {
		page, perPage int
		limit, offset int
	}{
		{1, 20, 20, 0},
		{3, 20, 20, 40},
		{0, 0, 20, 0},
		{2, 500, 100, 100},
	}
	for _, tc := range cases {
		limit, offset := pageBounds(tc.page, tc.perPage)
		if limit != tc.limit || offset != tc.offset {
			t.Errorf("pageBounds(%d,%d) = (%d,%d), want (%d,%d)",
				tc.page, tc.perPage, limit, offset, tc.limit, tc.offset)
		}
	}
}

func TestAppendStockRowGroupsByProductAndVariant(t *testing.T) {
	variantA := "var-a"
	var groups []StockGroup

	appendStockRow(&groups, "p1", "Netflix", "1 Month", StockItem{ID: "s1", VariantID: &variantA})
	appendStockRow(&groups, "p1", "Netflix", "1 Month", StockItem{ID: "s2", VariantID: &variantA, IsSold: true})
	appendStockRow(&groups, "p1", "Netflix", "", StockItem{ID: "s3"})
	appendStockRow(&groups, "p2", "Spotify", "", StockItem{ID: "s4"})

	if len(groups) != 2 {
		t.Fatalf("expected 2 product groups, got %d", len(groups))
	}
	netflix := groups[0]
	if netflix.ProductName != "Netflix" || len(netflix.Variants) != 2 {
		t.Fatalf("unexpected first group: %+v", netflix)
	}
	vg := netflix.Variants[0]
	if vg.Available != 1 || vg.Sold != 1 || len(vg.Items) != 2 {
		t.Fatalf("unexpected variant counts: %+v", vg)
	}
	if netflix.Variants[1].VariantID != nil {
		t.Fatal("expected nil-variant bucket for unassigned stock")
	}
	if groups[1].ProductName != "Spotify" || groups[1].Variants[0].Available != 1 {
		t.Fatalf("unexpected second group: %+v", groups[1])
	}
}
