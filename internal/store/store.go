package store

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors shared by all implementations.
var (
	ErrNotFound      = errors.New("not found")
	ErrEmailTaken    = errors.New("email already registered")
	ErrStockSold     = errors.New("stock item already sold")
	ErrCodeExpired   = errors.New("verification code expired or used")
	ErrStatusLocked  = errors.New("transaction status is terminal")
	ErrCodeDuplicate = errors.New("code already exists")
)

// Store defines the persistence interface backing the dashboard API.
// Postgres serves production, SQLite single-binary deployments.
type Store interface {
	// Lifecycle
	Close()
	Ping(ctx context.Context) error

	// Users
	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context, f UserFilter) ([]User, int64, error)
	ListAdminIDs(ctx context.Context) ([]string, error)
	UpdateUserProfile(ctx context.Context, id, name, avatarSeed, avatarStyle string) error
	UpdateUserPassword(ctx context.Context, id, passwordHash string) error
	UpdateUserStatus(ctx context.Context, id, status string) error
	UpdateUserRole(ctx context.Context, id, role string) error
	SetAPIToken(ctx context.Context, id, token string) error
	DeleteUser(ctx context.Context, id string) error

	// Session revocation
	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
	PurgeExpiredRevocations(ctx context.Context, now time.Time) (int64, error)

	// Verification codes
	CreateVerificationCode(ctx context.Context, vc *VerificationCode) error
	ConsumeVerificationCode(ctx context.Context, email, code, purpose string) (*VerificationCode, error)

	// Bots
	CreateBot(ctx context.Context, b *Bot) error
	GetBot(ctx context.Context, userID, id string) (*Bot, error)
	ListBots(ctx context.Context, userID string) ([]BotWithStats, error)
	UpdateBot(ctx context.Context, b *Bot) error
	ToggleBot(ctx context.Context, userID, id string) (string, error)
	DeleteBot(ctx context.Context, userID, id string) error

	// Gateways
	ListGateways(ctx context.Context) ([]Gateway, error)
	GetGatewayByID(ctx context.Context, id string) (*Gateway, error)
	CreateUserGateway(ctx context.Context, ug *UserGateway) error
	ListUserGateways(ctx context.Context, userID string) ([]UserGateway, error)
	GetUserGateway(ctx context.Context, userID, id string) (*UserGateway, error)
	UpdateUserGateway(ctx context.Context, ug *UserGateway) error
	ToggleUserGateway(ctx context.Context, userID, id string) (bool, error)
	SetDefaultUserGateway(ctx context.Context, userID, id string) error
	DeleteUserGateway(ctx context.Context, userID, id string) error

	// Products, variants, stock
	CreateProduct(ctx context.Context, p *Product) error
	ListProducts(ctx context.Context, userID string) ([]Product, error)
	GetProduct(ctx context.Context, userID, id string) (*Product, error)
	UpdateProduct(ctx context.Context, p *Product) error
	DeleteProduct(ctx context.Context, userID, id string) error
	CreateVariant(ctx context.Context, v *Variant) error
	ListVariants(ctx context.Context, productID string) ([]Variant, error)
	UpdateVariant(ctx context.Context, userID string, v *Variant) error
	DeleteVariant(ctx context.Context, userID, id string) error
	AddStock(ctx context.Context, items []StockItem) (int, error)
	ListStock(ctx context.Context, userID, productID string) ([]StockItem, error)
	DeleteStock(ctx context.Context, userID, id string) error
	GroupedStock(ctx context.Context, userID string) ([]StockGroup, error)

	// Transactions
	CreateTransaction(ctx context.Context, t *Transaction) error
	GetTransaction(ctx context.Context, userID, id string) (*Transaction, error)
	GetTransactionByRef(ctx context.Context, ref string) (*Transaction, error)
	ListTransactions(ctx context.Context, userID string, f TxFilter) ([]Transaction, int64, error)
	UpdateTransactionStatus(ctx context.Context, ref, status string, paidAt *time.Time) error
	ExpireTransactions(ctx context.Context, now time.Time) (int64, error)
	StatsSummary(ctx context.Context, userID string) (*StatsSummary, error)

	// Notifications
	CreateNotification(ctx context.Context, n *Notification) error
	ListNotifications(ctx context.Context, userID string, limit int) ([]Notification, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error
	DeleteNotification(ctx context.Context, userID, id string) error
	PurgeReadNotifications(ctx context.Context, before time.Time) (int64, error)
}
