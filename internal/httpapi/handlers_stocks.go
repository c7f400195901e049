package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"botpanel/internal/store"

	"github.com/google/uuid"
)

func (s *Server) handleListStock(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("product_id")
	if productID == "" {
		failFields(w, map[string]string{"product_id": requiredFieldMessage("product_id")})
		return
	}

	items, err := s.store.ListStock(r.Context(), userIDFromCtx(r), productID)
	if err != nil {
		s.logger.Error("list stock failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	if items == nil {
		items = []store.StockItem{}
	}
	respondData(w, items)
}

func (s *Server) handleAddStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"product_id"`
		VariantID string `json:"variant_id"`
		// One stock record per non-empty line.
		Items string `json:"items"`
	}
	if err := decodeBody(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if strings.TrimSpace(req.ProductID) == "" {
		failFields(w, map[string]string{"product_id": requiredFieldMessage("product_id")})
		return
	}

	// Ownership check before inserting.
	if _, err := s.store.GetProduct(r.Context(), userIDFromCtx(r), req.ProductID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, http.StatusNotFound, "Product not found.")
			return
		}
		s.logger.Error("load product failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}

	// An optional variant must be one of the product's own variants.
	if req.VariantID != "" {
		variants, err := s.store.ListVariants(r.Context(), req.ProductID)
		if err != nil {
			s.logger.Error("list variants failed", "error", err)
			fail(w, http.StatusInternalServerError, "Something went wrong.")
			return
		}
		found := false
		for _, v := range variants {
			if v.ID == req.VariantID {
				found = true
				break
			}
		}
		if !found {
			failFields(w, map[string]string{"variant_id": "The selected variant is invalid."})
			return
		}
	}

	var items []store.StockItem
	for _, line := range strings.Split(req.Items, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		item := store.StockItem{
			ID:        uuid.NewString(),
			ProductID: req.ProductID,
			Data:      line,
		}
		if req.VariantID != "" {
			variantID := req.VariantID
			item.VariantID = &variantID
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		failFields(w, map[string]string{"items": requiredFieldMessage("items")})
		return
	}

	added, err := s.store.AddStock(r.Context(), items)
	if err != nil {
		s.logger.Error("add stock failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	respond(w, http.StatusCreated, map[string]any{"added": added})
}

func (s *Server) handleDeleteStock(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteStock(r.Context(), userIDFromCtx(r), r.PathValue("id"))
	if err != nil {
		switch {
		case errors.Is(err, store.ErrStockSold):
			fail(w, http.StatusBadRequest, "Sold stock cannot be deleted.")
		case errors.Is(err, store.ErrNotFound):
			fail(w, http.StatusNotFound, "Stock item not found.")
		default:
			s.logger.Error("delete stock failed", "error", err)
			fail(w, http.StatusInternalServerError, "Something went wrong.")
		}
		return
	}
	respondMessage(w, "Stock item deleted.")
}

func (s *Server) handleGroupedStock(w http.ResponseWriter, r *http.Request) {
	groups, err := s.store.GroupedStock(r.Context(), userIDFromCtx(r))
	if err != nil {
		s.logger.Error("grouped stock failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	if groups == nil {
		groups = []store.StockGroup{}
	}
	respondData(w, groups)
}
