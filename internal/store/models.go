package store

import "time"

// User statuses and roles as the backend owns them.
const (
	RoleUser       = "user"
	RoleSuperAdmin = "super_admin"

	UserStatusPending   = "pending"
	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
)

// Transaction statuses. Pending is the only non-terminal state.
const (
	TxStatusPending   = "pending"
	TxStatusSuccess   = "success"
	TxStatusExpired   = "expired"
	TxStatusFailed    = "failed"
	TxStatusCancelled = "cancelled"
)

// Bot statuses.
const (
	BotStatusActive   = "active"
	BotStatusInactive = "inactive"
)

// Verification code purposes.
const (
	PurposeVerifyEmail   = "verify_email"
	PurposeResetPassword = "reset_password"
)

// User represents the users table row.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Status       string    `json:"status"`
	AvatarSeed   string    `json:"avatar_seed"`
	AvatarStyle  string    `json:"avatar_style"`
	APIToken     string    `json:"api_token,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserFilter narrows admin user listings.
type UserFilter struct {
	Query   string
	Status  string
	Role    string
	Page    int
	PerPage int
}

// VerificationCode backs the two-step email verification and password
// reset flows.
type VerificationCode struct {
	ID        string
	UserID    string
	Email     string
	Code      string
	Purpose   string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Bot represents a registered Telegram storefront bot.
type Bot struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Name            string    `json:"name"`
	BotToken        string    `json:"-"`
	BotUsername     string    `json:"bot_username"`
	Status          string    `json:"status"`
	ActiveGatewayID *string   `json:"active_gateway_id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// BotWithStats decorates a bot with listing aggregates and the masked token.
type BotWithStats struct {
	Bot
	MaskedToken       string `json:"masked_token"`
	TransactionsCount int64  `json:"transactions_count"`
	TotalRevenue      int64  `json:"total_revenue"`
}

// Gateway is a catalog payment gateway definition. RequiredFields drives
// the credential form rendered by clients.
type Gateway struct {
	ID             string    `json:"id"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	Type           string    `json:"type"`
	FeePercent     float64   `json:"fee_percent"`
	FeeFlat        int64     `json:"fee_flat"`
	RequiredFields []string  `json:"required_fields"`
	CreatedAt      time.Time `json:"created_at"`
}

// UserGateway is a per-user configured gateway instance.
type UserGateway struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	GatewayID   string            `json:"gateway_id"`
	GatewayCode string            `json:"gateway_code"`
	GatewayName string            `json:"gateway_name"`
	Label       string            `json:"label"`
	Credentials map[string]string `json:"credentials"`
	IsActive    bool              `json:"is_active"`
	IsDefault   bool              `json:"is_default"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Product is a sellable catalog entry owned by a user.
type Product struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Price       int64     `json:"price"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Variant is a priced variation of a product.
type Variant struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	Name      string    `json:"name"`
	Price     int64     `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

// StockItem is an individual sellable unit, typically a credential string.
type StockItem struct {
	ID        string     `json:"id"`
	ProductID string     `json:"product_id"`
	VariantID *string    `json:"variant_id"`
	Data      string     `json:"data"`
	IsSold    bool       `json:"is_sold"`
	SoldAt    *time.Time `json:"sold_at"`
	CreatedAt time.Time  `json:"created_at"`
}

// StockVariantGroup aggregates stock under one variant for display.
type StockVariantGroup struct {
	VariantID   *string     `json:"variant_id"`
	VariantName string      `json:"variant_name"`
	Available   int         `json:"available"`
	Sold        int         `json:"sold"`
	Items       []StockItem `json:"items"`
}

// StockGroup aggregates a product's stock by variant.
type StockGroup struct {
	ProductID   string              `json:"product_id"`
	ProductName string              `json:"product_name"`
	Variants    []StockVariantGroup `json:"variants"`
}

// Transaction represents an invoice, including test transactions created
// from the dashboard.
type Transaction struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	BotID       *string        `json:"bot_id"`
	InvoiceRef  string         `json:"invoice_ref"`
	ProductCode string         `json:"product_code"`
	Amount      int64          `json:"amount"`
	Fee         int64          `json:"fee"`
	Status      string         `json:"status"`
	GatewayCode string         `json:"gateway_code"`
	QRPayload   string         `json:"qr_payload,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	ExpiresAt   *time.Time     `json:"expires_at"`
	PaidAt      *time.Time     `json:"paid_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TxFilter narrows transaction listings.
type TxFilter struct {
	Status  string
	BotID   string
	Query   string
	From    *time.Time
	To      *time.Time
	Page    int
	PerPage int
}

// Notification is a polled dashboard notification.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// StatsSummary is the dashboard home payload.
type StatsSummary struct {
	TotalBots          int64         `json:"total_bots"`
	ActiveBots         int64         `json:"active_bots"`
	TransactionsToday  int64         `json:"transactions_today"`
	TransactionsTotal  int64         `json:"transactions_total"`
	RevenueToday       int64         `json:"revenue_today"`
	RevenueTotal       int64         `json:"revenue_total"`
	RecentTransactions []Transaction `json:"recent_transactions"`
}

// TerminalStatus reports whether a transaction status is immutable.
func TerminalStatus(status string) bool {
	switch status {
	case TxStatusSuccess, TxStatusExpired, TxStatusFailed, TxStatusCancelled:
		return true
	}
	return false
}

// MaskToken hides all but the bot ID prefix and last four characters.
func MaskToken(token string) string {
	idx := -1
	for i, c := range token {
		if c == ':' {
			idx = i
			break
		}
	}
	if idx < 0 || len(token) < idx+6 {
		return "****"
	}
	return token[:idx+1] + "****" + token[len(token)-4:]
}
