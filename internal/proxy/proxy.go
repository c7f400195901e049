package proxy

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"botpanel/internal/metrics"
)

// Config holds edge proxy settings.
type Config struct {
	BackendURL  string
	APISecret   string
	StripPrefix string
	Timeout     time.Duration
}

// Handler forwards dashboard requests to the configured backend origin,
// injecting CORS headers and the shared API secret. It holds no state
// beyond its configuration.
type Handler struct {
	backendURL  string
	apiSecret   string
	stripPrefix string
	logger      *slog.Logger
	metrics     *metrics.Metrics
	http        *http.Client
}

// New creates a proxy handler.
func New(cfg Config, logger *slog.Logger, metricRegistry *metrics.Metrics) *Handler {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Handler{
		backendURL:  strings.TrimRight(cfg.BackendURL, "/"),
		apiSecret:   cfg.APISecret,
		stripPrefix: cfg.StripPrefix,
		logger:      logger.With("component", "proxy"),
		metrics:     metricRegistry,
		http:        &http.Client{Timeout: timeout},
	}
}

// ServeHTTP satisfies http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	status, err := h.forward(w, r)
	if err != nil {
		h.logger.Error("proxy forward failed", "error", err, "method", r.Method, "path", r.URL.Path)
		if h.metrics != nil {
			h.metrics.Errors.WithLabelValues("proxy").Inc()
		}
		writeProxyError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ProxyForwards.WithLabelValues(r.Method, statusClass(status)).Inc()
	}
}

func (h *Handler) forward(w http.ResponseWriter, r *http.Request) (int, error) {
	outURL := h.backendURL + h.rewritePath(r.URL.Path)
	if r.URL.RawQuery != "" {
		outURL += "?" + r.URL.RawQuery
	}

	var body io.Reader
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		body = r.Body
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, outURL, body)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if authz := r.Header.Get("Authorization"); authz != "" {
		req.Header.Set("Authorization", authz)
	}
	if h.apiSecret != "" {
		req.Header.Set("X-API-Secret", h.apiSecret)
	}

	resp, err := h.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("forward request: %w", err)
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		// Status already written; nothing left to relay.
		h.logger.Warn("relay body failed", "error", err)
	}
	return resp.StatusCode, nil
}

func (h *Handler) rewritePath(path string) string {
	if h.stripPrefix != "" && strings.HasPrefix(path, h.stripPrefix) {
		path = strings.TrimPrefix(path, h.stripPrefix)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
}

func writeProxyError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   "Proxy error",
		"message": err.Error(),
	})
}

func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}
