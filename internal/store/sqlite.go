package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore provides access to a local SQLite database for single-binary
// deployments. It implements the same Store interface as Postgres.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLite opens a new connection to the SQLite database and ensures the
// schema exists.
func NewSQLite(ctx context.Context, databasePath string, logger *slog.Logger) (*SQLiteStore, error) {
	path := strings.TrimSpace(databasePath)
	if path == "" {
		return nil, fmt.Errorf("sqlite database path is empty")
	}
	// Busy timeout and WAL mode are recommended for SQLite concurrency.
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn = fmt.Sprintf("%s%s_pragma=busy_timeout=10000&_pragma=journal_mode=WAL&_pragma=foreign_keys=ON", dsn, sep)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store_sqlite"),
	}

	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.seedGateways(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases database resources.
func (s *SQLiteStore) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

// Ping ensures the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'user',
    status        TEXT NOT NULL DEFAULT 'pending',
    avatar_seed   TEXT NOT NULL DEFAULT '',
    avatar_style  TEXT NOT NULL DEFAULT '',
    api_token     TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMP NOT NULL,
    updated_at    TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS verification_codes (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    email      TEXT NOT NULL,
    code       TEXT NOT NULL,
    purpose    TEXT NOT NULL,
    expires_at TIMESTAMP NOT NULL,
    used_at    TIMESTAMP,
    created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS gateways (
    id              TEXT PRIMARY KEY,
    code            TEXT NOT NULL UNIQUE,
    name            TEXT NOT NULL,
    type            TEXT NOT NULL,
    fee_percent     REAL NOT NULL DEFAULT 0,
    fee_flat        INTEGER NOT NULL DEFAULT 0,
    required_fields TEXT NOT NULL DEFAULT '[]',
    created_at      TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS user_gateways (
    id          TEXT PRIMARY KEY,
    user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    gateway_id  TEXT NOT NULL REFERENCES gateways(id) ON DELETE CASCADE,
    label       TEXT NOT NULL DEFAULT '',
    credentials TEXT NOT NULL DEFAULT '{}',
    is_active   INTEGER NOT NULL DEFAULT 1,
    is_default  INTEGER NOT NULL DEFAULT 0,
    created_at  TIMESTAMP NOT NULL,
    updated_at  TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS bots (
    id                TEXT PRIMARY KEY,
    user_id           TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    name              TEXT NOT NULL,
    bot_token         TEXT NOT NULL,
    bot_username      TEXT NOT NULL DEFAULT '',
    status            TEXT NOT NULL DEFAULT 'active',
    active_gateway_id TEXT REFERENCES user_gateways(id) ON DELETE SET NULL,
    created_at        TIMESTAMP NOT NULL,
    updated_at        TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS products (
    id          TEXT PRIMARY KEY,
    user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    code        TEXT NOT NULL,
    name        TEXT NOT NULL,
    price       INTEGER NOT NULL DEFAULT 0,
    category    TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMP NOT NULL,
    updated_at  TIMESTAMP NOT NULL,
    UNIQUE (user_id, code)
);
CREATE TABLE IF NOT EXISTS variants (
    id         TEXT PRIMARY KEY,
    product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
    name       TEXT NOT NULL,
    price      INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS stock_items (
    id         TEXT PRIMARY KEY,
    product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
    variant_id TEXT REFERENCES variants(id) ON DELETE SET NULL,
    data       TEXT NOT NULL,
    is_sold    INTEGER NOT NULL DEFAULT 0,
    sold_at    TIMESTAMP,
    created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS transactions (
    id           TEXT PRIMARY KEY,
    user_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    bot_id       TEXT REFERENCES bots(id) ON DELETE SET NULL,
    invoice_ref  TEXT NOT NULL UNIQUE,
    product_code TEXT NOT NULL DEFAULT '',
    amount       INTEGER NOT NULL,
    fee          INTEGER NOT NULL DEFAULT 0,
    status       TEXT NOT NULL DEFAULT 'pending',
    gateway_code TEXT NOT NULL DEFAULT '',
    qr_payload   TEXT NOT NULL DEFAULT '',
    metadata     TEXT NOT NULL DEFAULT '{}',
    expires_at   TIMESTAMP,
    paid_at      TIMESTAMP,
    created_at   TIMESTAMP NOT NULL,
    updated_at   TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS notifications (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    type       TEXT NOT NULL,
    title      TEXT NOT NULL,
    message    TEXT NOT NULL DEFAULT '',
    read       INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure sqlite schema: %w", err)
	}
	return nil
}

// seedGateways loads the built-in gateway catalog. Codes already present are
// left untouched, matching the Postgres seed migration.
func (s *SQLiteStore) seedGateways(ctx context.Context) error {
	seed := []struct {
		code, name, typ string
		feePercent      float64
		feeFlat         int64
		fields          string
	}{
		{"qris_static", "QRIS Statis", "qris", 0.7, 0, `["merchant_name", "qris_string"]`},
		{"qris_dynamic", "QRIS Dinamis", "qris", 0.7, 150, `["merchant_id", "api_key"]`},
		{"bank_bca", "Transfer Bank BCA", "bank", 0, 1000, `["account_number", "account_name"]`},
		{"bank_bri", "Transfer Bank BRI", "bank", 0, 1000, `["account_number", "account_name"]`},
		{"ewallet_dana", "DANA", "ewallet", 1.5, 0, `["phone_number", "account_name"]`},
		{"ewallet_ovo", "OVO", "ewallet", 1.5, 0, `["phone_number", "account_name"]`},
		{"ewallet_gopay", "GoPay", "ewallet", 2.0, 0, `["phone_number", "account_name"]`},
	}

	now := time.Now().UTC()
	for _, g := range seed {
		_, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO gateways (id, code, name, type, fee_percent, fee_flat, required_fields, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), g.code, g.name, g.typ, g.feePercent, g.feeFlat, g.fields, now)
		if err != nil {
			return fmt.Errorf("seed gateway %s: %w", g.code, err)
		}
	}
	return nil
}
