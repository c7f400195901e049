package httpapi

import (
	"net/http"
	"strconv"

	"botpanel/internal/avatar"
	"botpanel/internal/store"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	summary, err := s.store.StatsSummary(r.Context(), userIDFromCtx(r))
	if err != nil {
		s.logger.Error("stats summary failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	if summary.RecentTransactions == nil {
		summary.RecentTransactions = []store.Transaction{}
	}
	respondData(w, summary)
}

func (s *Server) handleAvatar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	seed := q.Get("seed")
	if seed == "" {
		seed = "anonymous"
	}

	png, err := avatar.RenderPNG(seed, q.Get("style"))
	if err != nil {
		s.logger.Error("render avatar failed", "error", err)
		fail(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(png)
}
