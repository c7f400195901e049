package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"botpanel/internal/auth"
	"botpanel/internal/store"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxRole
	ctxTokenID
	ctxTokenExpiry
)

func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			fail(w, http.StatusUnauthorized, "Unauthenticated.")
			return
		}
		tokenStr := header
		if strings.HasPrefix(header, "Bearer ") {
			tokenStr = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		}

		claims, err := auth.Parse(s.jwtSecret, tokenStr)
		if err != nil {
			fail(w, http.StatusUnauthorized, "Unauthenticated.")
			return
		}

		revoked, err := s.store.IsTokenRevoked(r.Context(), claims.ID)
		if err != nil {
			s.logger.Error("revocation check failed", "error", err)
			fail(w, http.StatusInternalServerError, "Something went wrong.")
			return
		}
		if revoked {
			fail(w, http.StatusUnauthorized, "Unauthenticated.")
			return
		}

		ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
		ctx = context.WithValue(ctx, ctxRole, claims.Role)
		ctx = context.WithValue(ctx, ctxTokenID, claims.ID)
		if claims.ExpiresAt != nil {
			ctx = context.WithValue(ctx, ctxTokenExpiry, claims.ExpiresAt.Time)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if role, _ := r.Context().Value(ctxRole).(string); role != store.RoleSuperAdmin {
			fail(w, http.StatusForbidden, "Forbidden.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userIDFromCtx(r *http.Request) string {
	id, _ := r.Context().Value(ctxUserID).(string)
	return id
}

func tokenIDFromCtx(r *http.Request) string {
	id, _ := r.Context().Value(ctxTokenID).(string)
	return id
}

func tokenExpiryFromCtx(r *http.Request) time.Time {
	if t, ok := r.Context().Value(ctxTokenExpiry).(time.Time); ok {
		return t
	}
	return time.Now().Add(24 * time.Hour)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the written status for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func (s *Server) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		if s.metrics != nil {
			s.metrics.HTTPRequests.WithLabelValues(route, statusClass(rec.status)).Inc()
			s.metrics.HTTPLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
