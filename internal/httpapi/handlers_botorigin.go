package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"botpanel/internal/botapi"
)

// botReady rejects bot-origin requests when no backend is configured; upstream
// failures surface as 502 per the flat error taxonomy.
func (s *Server) botReady(w http.ResponseWriter) bool {
	if s.bot == nil || !s.bot.Enabled() {
		fail(w, http.StatusServiceUnavailable, "The bot backend is not configured.")
		return false
	}
	return true
}

func (s *Server) botError(w http.ResponseWriter, op string, err error) {
	s.logger.Error("bot backend call failed", "op", op, "error", err)
	if errors.Is(err, botapi.ErrUnauthorized) {
		fail(w, http.StatusBadGateway, "The bot backend rejected the request.")
		return
	}
	fail(w, http.StatusBadGateway, "The bot backend is unavailable.")
}

func (s *Server) handleBotProducts(w http.ResponseWriter, r *http.Request) {
	if !s.botReady(w) {
		return
	}
	products, err := s.bot.ListProducts(r.Context())
	if err != nil {
		s.botError(w, "list products", err)
		return
	}
	if products == nil {
		products = []botapi.Product{}
	}
	respondData(w, products)
}

func (s *Server) handleBotProductCreate(w http.ResponseWriter, r *http.Request) {
	if !s.botReady(w) {
		return
	}
	var req botapi.CreateProductRequest
	if err := decodeBody(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
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
	if len(errs) > 0 {
		failFields(w, errs)
		return
	}

	product, err := s.bot.CreateProduct(r.Context(), req)
	if err != nil {
		s.botError(w, "create product", err)
		return
	}
	respond(w, http.StatusCreated, map[string]any{"data": product})
}

func (s *Server) handleBotProductUpdate(w http.ResponseWriter, r *http.Request) {
	if !s.botReady(w) {
		return
	}
	var req botapi.CreateProductRequest
	if err := decodeBody(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if err := s.bot.UpdateProduct(r.Context(), r.PathValue("id"), req); err != nil {
		s.botError(w, "update product", err)
		return
	}
	respondMessage(w, "Product updated.")
}

func (s *Server) handleBotProductDelete(w http.ResponseWriter, r *http.Request) {
	if !s.botReady(w) {
		return
	}
	if err := s.bot.DeleteProduct(r.Context(), r.PathValue("id")); err != nil {
		s.botError(w, "delete product", err)
		return
	}
	respondMessage(w, "Product deleted.")
}

func (s *Server) handleBotVariants(w http.ResponseWriter, r *http.Request) {
	if !s.botReady(w) {
		return
	}
	variants, err := s.bot.ListVariants(r.Context(), r.PathValue("id"))
	if err != nil {
		s.botError(w, "list variants", err)
		return
	}
	if variants == nil {
		variants = []botapi.Variant{}
	}
	respondData(w, variants)
}

func (s *Server) handleBotVariantCreate(w http.ResponseWriter, r *http.Request) {
	if !s.botReady(w) {
		return
	}
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

	variant, err := s.bot.AddVariant(r.Context(), r.PathValue("id"), strings.TrimSpace(req.Name), req.Price)
	if err != nil {
		s.botError(w, "add variant", err)
		return
	}
	respond(w, http.StatusCreated, map[string]any{"data": variant})
}

func (s *Server) handleBotStockList(w http.ResponseWriter, r *http.Request) {
	if !s.botReady(w) {
		return
	}
	productID := r.URL.Query().Get("product_id")
	if productID == "" {
		failFields(w, map[string]string{"product_id": requiredFieldMessage("product_id")})
		return
	}
	items, err := s.bot.ListStock(r.Context(), productID)
	if err != nil {
		s.botError(w, "list stock", err)
		return
	}
	if items == nil {
		items = []botapi.StockItem{}
	}
	respondData(w, items)
}

func (s *Server) handleBotStockAdd(w http.ResponseWriter, r *http.Request) {
	if !s.botReady(w) {
		return
	}
	var req struct {
		ProductID string `json:"product_id"`
		VariantID string `json:"variant_id"`
		Items     string `json:"items"`
	}
	if err := decodeBody(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if strings.TrimSpace(req.ProductID) == "" {
		failFields(w, map[string]string{"product_id": requiredFieldMessage("product_id")})
		return
	}

	var lines []string
	for _, line := range strings.Split(req.Items, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		failFields(w, map[string]string{"items": requiredFieldMessage("items")})
		return
	}

	added, err := s.bot.AddStock(r.Context(), req.ProductID, lines, req.VariantID)
	if err != nil {
		s.botError(w, "add stock", err)
		return
	}
	respond(w, http.StatusCreated, map[string]any{"added": added})
}

func (s *Server) handleBotStats(w http.ResponseWriter, r *http.Request) {
	if !s.botReady(w) {
		return
	}
	stats, err := s.bot.Stats(r.Context(), r.URL.Query().Get("refresh") == "1")
	if err != nil {
		s.botError(w, "stats", err)
		return
	}
	respondData(w, stats)
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	if !s.botReady(w) {
		return
	}

	req := botapi.BroadcastRequest{}
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(8 << 20); err != nil {
			fail(w, http.StatusBadRequest, "Invalid multipart body.")
			return
		}
		req.Message = r.FormValue("message")
		if file, header, err := r.FormFile("image"); err == nil {
			defer file.Close()
			req.Image = file
			req.ImageName = header.Filename
		}
	} else {
		var body struct {
			Message string `json:"message"`
		}
		if err := decodeBody(r, &body); err != nil {
			fail(w, http.StatusBadRequest, "Invalid request body.")
			return
		}
		req.Message = body.Message
	}

	if strings.TrimSpace(req.Message) == "" {
		failFields(w, map[string]string{"message": requiredFieldMessage("message")})
		return
	}

	result, err := s.bot.Broadcast(r.Context(), req)
	if err != nil {
		s.botError(w, "broadcast", err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"sent": result.Sent, "failed": result.Failed})
}
