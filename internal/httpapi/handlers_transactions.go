package httpapi

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"botpanel/internal/qr"
	"botpanel/internal/store"

	"github.com/google/uuid"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	page, perPage := parsePage(r)
	q := r.URL.Query()
	filter := store.TxFilter{
		Status:  q.Get("status"),
		BotID:   q.Get("bot_id"),
		Query:   q.Get("search"),
		Page:    page,
		PerPage: perPage,
	}
	if from, err := time.Parse("2006-01-02", q.Get("from")); err == nil {
		filter.From = &from
	}
	if to, err := time.Parse("2006-01-02", q.Get("to")); err == nil {
		end := to.AddDate(0, 0, 1)
		filter.To = &end
	}

	txs, total, err := s.store.ListTransactions(r.Context(), userIDFromCtx(r), filter)
	if err != nil {
		s.logger.Error("list transactions failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	if txs == nil {
		txs = []store.Transaction{}
	}
	writeJSON(w, http.StatusOK, paginated(txs, page, perPage, total))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.store.GetTransaction(r.Context(), userIDFromCtx(r), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, http.StatusNotFound, "Transaction not found.")
			return
		}
		s.logger.Error("get transaction failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	respondData(w, tx)
}

// gatewayFee applies the gateway fee schedule to an amount.
func gatewayFee(gw *store.Gateway, amount int64) int64 {
	percent := int64(math.Round(float64(amount) * gw.FeePercent / 100))
	return percent + gw.FeeFlat
}

func (s *Server) handleTestTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserGatewayID string `json:"user_gateway_id"`
		BotID         string `json:"bot_id"`
		ProductCode   string `json:"product_code"`
		Amount        int64  `json:"amount"`
	}
	if err := decodeBody(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	errs := map[string]string{}
	if strings.TrimSpace(req.UserGatewayID) == "" {
		errs["user_gateway_id"] = requiredFieldMessage("gateway")
	}
	if req.Amount <= 0 {
		errs["amount"] = "The amount must be greater than zero."
	}
	if len(errs) > 0 {
		failFields(w, errs)
		return
	}

	userID := userIDFromCtx(r)
	ug, err := s.store.GetUserGateway(r.Context(), userID, req.UserGatewayID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, http.StatusBadRequest, "The selected gateway is invalid.")
			return
		}
		s.logger.Error("load user gateway failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	if !ug.IsActive {
		fail(w, http.StatusBadRequest, "The selected gateway is inactive.")
		return
	}
	gw, err := s.store.GetGatewayByID(r.Context(), ug.GatewayID)
	if err != nil {
		s.logger.Error("load gateway failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}

	ref := newInvoiceRef()
	fee := gatewayFee(gw, req.Amount)
	expiresAt := time.Now().Add(s.txTTL)
	var botID *string
	if b := strings.TrimSpace(req.BotID); b != "" {
		botID = &b
	}
	tx := &store.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		BotID:       botID,
		InvoiceRef:  ref,
		ProductCode: strings.TrimSpace(req.ProductCode),
		Amount:      req.Amount,
		Fee:         fee,
		Status:      store.TxStatusPending,
		GatewayCode: gw.Code,
		QRPayload:   fmt.Sprintf("QRIS|%s|%s|%d", gw.Code, ref, req.Amount+fee),
		Metadata:    map[string]any{"test": true, "gateway_label": ug.Label},
		ExpiresAt:   &expiresAt,
	}
	if err := s.store.CreateTransaction(r.Context(), tx); err != nil {
		s.logger.Error("create transaction failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	respond(w, http.StatusCreated, map[string]any{"data": tx})
}

func (s *Server) handleTransactionStatus(w http.ResponseWriter, r *http.Request) {
	tx, err := s.store.GetTransaction(r.Context(), userIDFromCtx(r), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, http.StatusNotFound, "Transaction not found.")
			return
		}
		s.logger.Error("transaction status failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"status":  tx.Status,
		"paid_at": tx.PaidAt,
	})
}

func (s *Server) handleCancelTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.store.GetTransaction(r.Context(), userIDFromCtx(r), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, http.StatusNotFound, "Transaction not found.")
			return
		}
		s.logger.Error("load transaction failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}

	err = s.store.UpdateTransactionStatus(r.Context(), tx.InvoiceRef, store.TxStatusCancelled, nil)
	if err != nil {
		if errors.Is(err, store.ErrStatusLocked) {
			fail(w, http.StatusBadRequest, "The transaction is already finalized.")
			return
		}
		s.logger.Error("cancel transaction failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	respondMessage(w, "Transaction cancelled.")
}

func (s *Server) handleTransactionQR(w http.ResponseWriter, r *http.Request) {
	tx, err := s.store.GetTransaction(r.Context(), userIDFromCtx(r), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, http.StatusNotFound, "Transaction not found.")
			return
		}
		s.logger.Error("load transaction failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	if tx.QRPayload == "" {
		fail(w, http.StatusBadRequest, "The transaction has no QR payload.")
		return
	}

	png, err := qr.RenderPNG(tx.QRPayload)
	if err != nil {
		s.logger.Error("render qr failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

// handlePaymentWebhook receives gateway callbacks. The gateway authenticates
// with basic auth whose username and password MD5 digests are configured.
func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	if !s.webhookAuthorized(r) {
		s.webhookOutcome("unauthorized")
		fail(w, http.StatusUnauthorized, "Unauthorized.")
		return
	}

	var req struct {
		InvoiceRef string `json:"invoice_ref"`
		Ref        string `json:"ref"`
		Status     string `json:"status"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.webhookOutcome("bad_request")
		fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	ref := req.InvoiceRef
	if ref == "" {
		ref = req.Ref
	}
	if ref == "" {
		s.webhookOutcome("bad_request")
		failFields(w, map[string]string{"invoice_ref": requiredFieldMessage("invoice_ref")})
		return
	}

	status := normalizeWebhookStatus(req.Status)
	if status == "" {
		s.webhookOutcome("bad_request")
		failFields(w, map[string]string{"status": "The status must be success, failed, or expired."})
		return
	}

	var paidAt *time.Time
	if status == store.TxStatusSuccess {
		now := time.Now().UTC()
		paidAt = &now
	}
	if err := s.store.UpdateTransactionStatus(r.Context(), ref, status, paidAt); err != nil {
		switch {
		case errors.Is(err, store.ErrStatusLocked):
			s.webhookOutcome("ignored")
			respondMessage(w, "Transaction already finalized.")
		case errors.Is(err, store.ErrNotFound):
			s.webhookOutcome("unknown_ref")
			fail(w, http.StatusNotFound, "Transaction not found.")
		default:
			s.webhookOutcome("error")
			s.logger.Error("webhook status update failed", "error", err, "ref", ref)
			fail(w, http.StatusInternalServerError, "Something went wrong.")
		}
		return
	}

	if tx, err := s.store.GetTransactionByRef(r.Context(), ref); err == nil {
		title := "Payment received"
		message := fmt.Sprintf("Invoice %s was paid.", ref)
		if status == store.TxStatusFailed {
			title = "Payment failed"
			message = fmt.Sprintf("Invoice %s failed.", ref)
		}
		s.notify(r, tx.UserID, "transaction", title, message)
	}

	s.webhookOutcome(status)
	respondMessage(w, "Webhook processed.")
}

func (s *Server) webhookOutcome(result string) {
	if s.metrics != nil {
		s.metrics.WebhookEvents.WithLabelValues(result).Inc()
	}
}

func (s *Server) webhookAuthorized(r *http.Request) bool {
	if s.whUserMD5 == "" || s.whPassMD5 == "" {
		return false
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	return md5Equal(user, s.whUserMD5) && md5Equal(pass, s.whPassMD5)
}

func md5Equal(plain, wantHex string) bool {
	sum := md5.Sum([]byte(plain))
	got := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(got), []byte(strings.ToLower(wantHex))) == 1
}

func normalizeWebhookStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "success", "paid", "settlement":
		return store.TxStatusSuccess
	case "failed", "deny", "failure":
		return store.TxStatusFailed
	case "expired":
		return store.TxStatusExpired
	default:
		return ""
	}
}

func newInvoiceRef() string {
	return "INV-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}
