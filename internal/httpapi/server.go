package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"botpanel/internal/botapi"
	"botpanel/internal/cache"
	"botpanel/internal/captcha"
	"botpanel/internal/metrics"
	"botpanel/internal/store"
	"botpanel/internal/telegram"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config holds the dashboard API server settings.
type Config struct {
	Addr           string
	BasePath       string
	JWTSecret      []byte
	TokenTTL       time.Duration
	TransactionTTL time.Duration
	// MD5 hex digests the payment gateway authenticates callbacks with.
	WebhookUsernameMD5 string
	WebhookPasswordMD5 string
}

// Server serves the dashboard REST surface.
type Server struct {
	store      store.Store
	cache      *cache.Redis
	bot        *botapi.Client
	captcha    captcha.Verifier
	tg         *telegram.Verifier
	jwtSecret  []byte
	tokenTTL   time.Duration
	txTTL      time.Duration
	whUserMD5  string
	whPassMD5  string
	logger     *slog.Logger
	metrics    *metrics.Metrics
	basePath   string
	httpServer *http.Server
}

// New assembles the server and its route table.
func New(cfg Config, st store.Store, redis *cache.Redis, bot *botapi.Client,
	verifier captcha.Verifier, tg *telegram.Verifier, logger *slog.Logger, m *metrics.Metrics) *Server {

	tokenTTL := cfg.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	txTTL := cfg.TransactionTTL
	if txTTL <= 0 {
		txTTL = 15 * time.Minute
	}

	s := &Server{
		store:     st,
		cache:     redis,
		bot:       bot,
		captcha:   verifier,
		tg:        tg,
		jwtSecret: cfg.JWTSecret,
		tokenTTL:  tokenTTL,
		txTTL:     txTTL,
		whUserMD5: cfg.WebhookUsernameMD5,
		whPassMD5: cfg.WebhookPasswordMD5,
		logger:    logger.With("component", "http"),
		metrics:   m,
		basePath:  normaliseBasePath(cfg.BasePath),
	}

	mux := http.NewServeMux()
	s.register(mux)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           withCORS(mountWithBasePath(s.basePath, mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if s.basePath != "" {
		s.logger.Info("http server configured with base path", "base_path", s.basePath)
	}
	return s
}

func (s *Server) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	public := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.instrument(routeLabel(pattern), h))
	}
	protected := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.instrument(routeLabel(pattern), s.withAuth(h)))
	}
	admin := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.instrument(routeLabel(pattern), s.withAuth(s.requireAdmin(h))))
	}

	// auth
	public("POST /auth/login", s.handleLogin)
	public("POST /auth/register", s.handleRegister)
	public("POST /auth/verify-email", s.handleVerifyEmail)
	public("POST /auth/forgot-password", s.handleForgotPassword)
	public("POST /auth/reset-password", s.handleResetPassword)
	protected("POST /auth/logout", s.handleLogout)
	protected("GET /auth/me", s.handleMe)

	// profile + settings
	protected("PUT /dashboard/profile", s.handleUpdateProfile)
	protected("PUT /dashboard/settings/password", s.handleUpdatePassword)
	protected("POST /dashboard/settings/regenerate-token", s.handleRegenerateToken)

	// admin user management
	admin("GET /dashboard/admin/users", s.handleAdminListUsers)
	admin("POST /dashboard/admin/users/{id}/approve", s.handleAdminApproveUser)
	admin("POST /dashboard/admin/users/{id}/suspend", s.handleAdminSuspendUser)
	admin("POST /dashboard/admin/users/{id}/role", s.handleAdminSetRole)
	admin("DELETE /dashboard/admin/users/{id}", s.handleAdminDeleteUser)

	// bots
	protected("GET /dashboard/bots", s.handleListBots)
	protected("POST /dashboard/bots", s.handleCreateBot)
	protected("GET /dashboard/bots/{id}", s.handleGetBot)
	protected("PUT /dashboard/bots/{id}", s.handleUpdateBot)
	protected("DELETE /dashboard/bots/{id}", s.handleDeleteBot)
	protected("POST /dashboard/bots/{id}/toggle", s.handleToggleBot)

	// gateways
	protected("GET /dashboard/gateways", s.handleListGateways)
	protected("GET /dashboard/user-gateways", s.handleListUserGateways)
	protected("POST /dashboard/user-gateways", s.handleCreateUserGateway)
	protected("PUT /dashboard/user-gateways/{id}", s.handleUpdateUserGateway)
	protected("DELETE /dashboard/user-gateways/{id}", s.handleDeleteUserGateway)
	protected("POST /dashboard/user-gateways/{id}/toggle-active", s.handleToggleUserGateway)
	protected("POST /dashboard/user-gateways/{id}/set-default", s.handleSetDefaultUserGateway)

	// products, variants, stock
	protected("GET /dashboard/products", s.handleListProducts)
	protected("POST /dashboard/products", s.handleCreateProduct)
	protected("PUT /dashboard/products/{id}", s.handleUpdateProduct)
	protected("DELETE /dashboard/products/{id}", s.handleDeleteProduct)
	protected("POST /dashboard/products/{id}/variants", s.handleCreateVariant)
	protected("PUT /dashboard/variants/{id}", s.handleUpdateVariant)
	protected("DELETE /dashboard/variants/{id}", s.handleDeleteVariant)
	protected("GET /dashboard/stocks", s.handleListStock)
	protected("POST /dashboard/stocks", s.handleAddStock)
	protected("DELETE /dashboard/stocks/{id}", s.handleDeleteStock)
	protected("GET /dashboard/stocks/grouped", s.handleGroupedStock)

	// transactions
	protected("GET /dashboard/transactions", s.handleListTransactions)
	protected("GET /dashboard/transactions/{id}", s.handleGetTransaction)
	protected("POST /dashboard/transactions/test", s.handleTestTransaction)
	protected("GET /dashboard/transactions/{id}/status", s.handleTransactionStatus)
	protected("POST /dashboard/transactions/{id}/cancel", s.handleCancelTransaction)
	protected("GET /dashboard/transactions/{id}/qr", s.handleTransactionQR)
	public("POST /webhook/payment", s.handlePaymentWebhook)

	// notifications
	protected("GET /dashboard/notifications", s.handleListNotifications)
	protected("GET /dashboard/notifications/unread-count", s.handleUnreadCount)
	protected("POST /dashboard/notifications/{id}/read", s.handleMarkNotificationRead)
	protected("POST /dashboard/notifications/read-all", s.handleMarkAllNotificationsRead)
	protected("DELETE /dashboard/notifications/{id}", s.handleDeleteNotification)

	// stats + avatar
	protected("GET /dashboard/stats", s.handleStats)
	public("GET /dashboard/avatar", s.handleAvatar)

	// bot backend origin
	protected("GET /dashboard/bot-products", s.handleBotProducts)
	protected("POST /dashboard/bot-products", s.handleBotProductCreate)
	protected("PUT /dashboard/bot-products/{id}", s.handleBotProductUpdate)
	protected("DELETE /dashboard/bot-products/{id}", s.handleBotProductDelete)
	protected("GET /dashboard/bot-products/{id}/variants", s.handleBotVariants)
	protected("POST /dashboard/bot-products/{id}/variants", s.handleBotVariantCreate)
	protected("GET /dashboard/bot-stocks", s.handleBotStockList)
	protected("POST /dashboard/bot-stocks", s.handleBotStockAdd)
	protected("GET /dashboard/bot-stats", s.handleBotStats)
	protected("POST /dashboard/broadcast", s.handleBroadcast)
}

// Start begins listening for incoming HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the routed handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// routeLabel strips the method verb off a mux pattern for metric labels.
func routeLabel(pattern string) string {
	if i := strings.IndexByte(pattern, ' '); i >= 0 {
		return pattern[i+1:]
	}
	return pattern
}

func mountWithBasePath(basePath string, handler http.Handler) http.Handler {
	if basePath == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, basePath) {
			http.NotFound(w, r)
			return
		}
		if len(r.URL.Path) > len(basePath) && r.URL.Path[len(basePath)] != '/' {
			http.NotFound(w, r)
			return
		}
		trimmed := strings.TrimPrefix(r.URL.Path, basePath)
		if trimmed == "" {
			trimmed = "/"
		}
		r.URL.Path = trimmed
		handler.ServeHTTP(w, r)
	})
}

func normaliseBasePath(base string) string {
	base = strings.TrimSpace(base)
	if base == "" || base == "/" {
		return ""
	}
	if !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	return strings.TrimSuffix(base, "/")
}
