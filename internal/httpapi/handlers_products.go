package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"botpanel/internal/store"

	"github.com/google/uuid"
)

type productRequest struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

func validateProductRequest(req productRequest) map[string]string {
	errs := map[string]string{}
	if strings.TrimSpace(req.Code) == "" {
		errs["code"] = requiredFieldMessage("code")
	}
	if strings.TrimSpace(req.Name) == "" {
		errs["name"] = requiredFieldMessage("name")
	}
	if req.Price <= 0 {
		errs["price"] = "The price must be greater than zero."
	}
	return errs
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.store.ListProducts(r.Context(), userIDFromCtx(r))
	if err != nil {
		s.logger.Error("list products failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	if products == nil {
		products = []store.Product{}
	}
	respondData(w, products)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeBody(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if errs := validateProductRequest(req); len(errs) > 0 {
		failFields(w, errs)
		return
	}

	p := &store.Product{
		ID:          uuid.NewString(),
		UserID:      userIDFromCtx(r),
		Code:        strings.ToUpper(strings.TrimSpace(req.Code)),
		Name:        strings.TrimSpace(req.Name),
		Price:       req.Price,
		Category:    strings.TrimSpace(req.Category),
		Description: strings.TrimSpace(req.Description),
	}
	if err := s.store.CreateProduct(r.Context(), p); err != nil {
		s.logger.Error("create product failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	respond(w, http.StatusCreated, map[string]any{"data": p})
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeBody(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if errs := validateProductRequest(req); len(errs) > 0 {
		failFields(w, errs)
		return
	}

	p, err := s.store.GetProduct(r.Context(), userIDFromCtx(r), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, http.StatusNotFound, "Product not found.")
			return
		}
		s.logger.Error("load product failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}

	p.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	p.Name = strings.TrimSpace(req.Name)
	p.Price = req.Price
	p.Category = strings.TrimSpace(req.Category)
	p.Description = strings.TrimSpace(req.Description)

	if err := s.store.UpdateProduct(r.Context(), p); err != nil {
		s.logger.Error("update product failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	respond(w, http.StatusOK, map[string]any{"message": "Product updated.", "data": p})
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteProduct(r.Context(), userIDFromCtx(r), r.PathValue("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, http.StatusNotFound, "Product not found.")
			return
		}
		s.logger.Error("delete product failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	respondMessage(w, "Product deleted.")
}

func (s *Server) handleCreateVariant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Price int64  `json:"price"`
	}
	if err := decodeBody(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	errs := map[string]string{}
	if strings.TrimSpace(req.Name) == "" {
		errs["name"] = requiredFieldMessage("name")
	}
	if req.Price <= 0 {
		errs["price"] = "The price must be greater than zero."
	}
	if len(errs) > 0 {
		failFields(w, errs)
		return
	}

	// The product must belong to the caller.
	p, err := s.store.GetProduct(r.Context(), userIDFromCtx(r), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, http.StatusNotFound, "Product not found.")
			return
		}
		s.logger.Error("load product failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}

	v := &store.Variant{
		ID:        uuid.NewString(),
		ProductID: p.ID,
		Name:      strings.TrimSpace(req.Name),
		Price:     req.Price,
	}
	if err := s.store.CreateVariant(r.Context(), v); err != nil {
		s.logger.Error("create variant failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	respond(w, http.StatusCreated, map[string]any{"data": v})
}

func (s *Server) handleUpdateVariant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Price int64  `json:"price"`
	}
	if err := decodeBody(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if strings.TrimSpace(req.Name) == "" || req.Price <= 0 {
		fail(w, http.StatusBadRequest, "Name and a positive price are required.")
		return
	}

	v := &store.Variant{ID: r.PathValue("id"), Name: strings.TrimSpace(req.Name), Price: req.Price}
	if err := s.store.UpdateVariant(r.Context(), userIDFromCtx(r), v); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, http.StatusNotFound, "Variant not found.")
			return
		}
		s.logger.Error("update variant failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	respondMessage(w, "Variant updated.")
}

func (s *Server) handleDeleteVariant(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteVariant(r.Context(), userIDFromCtx(r), r.PathValue("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, http.StatusNotFound, "Variant not found.")
			return
		}
		s.logger.Error("delete variant failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	respondMessage(w, "Variant deleted.")
}
