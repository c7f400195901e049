package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

func jsonText(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func fromJSONText(text string, dest any) {
	if text == "" {
		return
	}
	_ = json.Unmarshal([]byte(text), dest)
}

func (s *SQLiteStore) execOne(ctx context.Context, q string, args ...any) error {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateUser inserts a new user row.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *User) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO users (id, name, email, password_hash, role, status, avatar_seed, avatar_style, api_token, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.Status, u.AvatarSeed, u.AvatarStyle, u.APIToken, now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) scanUserRow(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Status,
		&u.AvatarSeed, &u.AvatarStyle, &u.APIToken, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// GetUserByID loads one user by primary key.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	return s.scanUserRow(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

// GetUserByEmail loads one user by email, case-insensitive.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanUserRow(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower(?)`, email))
}

// ListUsers returns a filtered, paginated user page plus the total count.
func (s *SQLiteStore) ListUsers(ctx context.Context, f UserFilter) ([]User, int64, error) {
	where := []string{"1=1"}
	args := []any{}

	if q := strings.TrimSpace(f.Query); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		where = append(where, "(lower(name) LIKE ? OR lower(email) LIKE ?)")
		args = append(args, pattern, pattern)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.Role != "" {
		where = append(where, "role = ?")
		args = append(args, f.Role)
	}

	cond := strings.Join(where, " AND ")

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	limit, offset := pageBounds(f.Page, f.PerPage)
	args = append(args, limit, offset)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+cond+` ORDER BY created_at DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Status,
			&u.AvatarSeed, &u.AvatarStyle, &u.APIToken, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

// ListAdminIDs returns the IDs of all super admins.
func (s *SQLiteStore) ListAdminIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users WHERE role = ?`, RoleSuperAdmin)
	if err != nil {
		return nil, fmt.Errorf("list admin ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan admin id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateUserProfile updates display fields only.
func (s *SQLiteStore) UpdateUserProfile(ctx context.Context, id, name, avatarSeed, avatarStyle string) error {
	return s.execOne(ctx, `UPDATE users SET name = ?, avatar_seed = ?, avatar_style = ?, updated_at = ? WHERE id = ?`,
		name, avatarSeed, avatarStyle, time.Now().UTC(), id)
}

// UpdateUserPassword replaces the stored password hash.
func (s *SQLiteStore) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	return s.execOne(ctx, `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now().UTC(), id)
}

// UpdateUserStatus moves a user through the pending/active/suspended lifecycle.
func (s *SQLiteStore) UpdateUserStatus(ctx context.Context, id, status string) error {
	return s.execOne(ctx, `UPDATE users SET status = ?, updated_at = ? WHERE id = ?`, status, time.Now().UTC(), id)
}

// UpdateUserRole switches between user and super_admin.
func (s *SQLiteStore) UpdateUserRole(ctx context.Context, id, role string) error {
	return s.execOne(ctx, `UPDATE users SET role = ?, updated_at = ? WHERE id = ?`, role, time.Now().UTC(), id)
}

// SetAPIToken stores a freshly generated API token.
func (s *SQLiteStore) SetAPIToken(ctx context.Context, id, token string) error {
	return s.execOne(ctx, `UPDATE users SET api_token = ?, updated_at = ? WHERE id = ?`, token, time.Now().UTC(), id)
}

// DeleteUser removes the user and, via FK cascade, everything they own.
func (s *SQLiteStore) DeleteUser(ctx context.Context, id string) error {
	return s.execOne(ctx, `DELETE FROM users WHERE id = ?`, id)
}

// RevokeToken records a logged-out token ID until its natural expiry.
func (s *SQLiteStore) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO revoked_tokens (jti, expires_at) VALUES (?, ?)`, jti, expiresAt)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsTokenRevoked reports whether the token ID has been revoked.
func (s *SQLiteStore) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = ?)`, jti).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return exists, nil
}

// PurgeExpiredRevocations drops revocation rows whose tokens expired anyway.
func (s *SQLiteStore) PurgeExpiredRevocations(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at < ?`, now)
	if err != nil {
		return 0, fmt.Errorf("purge revocations: %w", err)
	}
	return res.RowsAffected()
}

// CreateVerificationCode stores a code for the verification flows.
func (s *SQLiteStore) CreateVerificationCode(ctx context.Context, vc *VerificationCode) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO verification_codes (id, user_id, email, code, purpose, expires_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		vc.ID, vc.UserID, vc.Email, vc.Code, vc.Purpose, vc.ExpiresAt, now)
	if err != nil {
		return fmt.Errorf("insert verification code: %w", err)
	}
	vc.CreatedAt = now
	return nil
}

// ConsumeVerificationCode marks a matching unexpired code as used.
func (s *SQLiteStore) ConsumeVerificationCode(ctx context.Context, email, code, purpose string) (*VerificationCode, error) {
	now := time.Now().UTC()
	var vc VerificationCode
	err := s.db.QueryRowContext(ctx, `
SELECT id, user_id, email, code, purpose, expires_at, used_at, created_at
FROM verification_codes
WHERE lower(email) = lower(?) AND code = ? AND purpose = ?
  AND used_at IS NULL AND expires_at > ?
ORDER BY created_at DESC
LIMIT 1`, email, code, purpose, now).
		Scan(&vc.ID, &vc.UserID, &vc.Email, &vc.Code, &vc.Purpose, &vc.ExpiresAt, &vc.UsedAt, &vc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCodeExpired
		}
		return nil, fmt.Errorf("find verification code: %w", err)
	}

	if err := s.execOne(ctx, `UPDATE verification_codes SET used_at = ? WHERE id = ?`, now, vc.ID); err != nil {
		return nil, fmt.Errorf("consume verification code: %w", err)
	}
	vc.UsedAt = &now
	return &vc, nil
}

// CreateBot inserts a new bot row.
func (s *SQLiteStore) CreateBot(ctx context.Context, b *Bot) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO bots (id, user_id, name, bot_token, bot_username, status, active_gateway_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.Name, b.BotToken, b.BotUsername, b.Status, b.ActiveGatewayID, now, now)
	if err != nil {
		return fmt.Errorf("insert bot: %w", err)
	}
	b.CreatedAt = now
	b.UpdatedAt = now
	return nil
}

// GetBot loads one bot owned by the user.
func (s *SQLiteStore) GetBot(ctx context.Context, userID, id string) (*Bot, error) {
	var b Bot
	err := s.db.QueryRowContext(ctx,
		`SELECT `+botColumns+` FROM bots WHERE id = ? AND user_id = ?`, id, userID).
		Scan(&b.ID, &b.UserID, &b.Name, &b.BotToken, &b.BotUsername, &b.Status,
			&b.ActiveGatewayID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan bot: %w", err)
	}
	return &b, nil
}

// ListBots returns the user's bots with transaction aggregates.
func (s *SQLiteStore) ListBots(ctx context.Context, userID string) ([]BotWithStats, error) {
	const q = `
SELECT b.id, b.user_id, b.name, b.bot_token, b.bot_username, b.status, b.active_gateway_id,
       b.created_at, b.updated_at,
       COUNT(CASE WHEN t.status = 'success' THEN 1 END),
       COALESCE(SUM(CASE WHEN t.status = 'success' THEN t.amount END), 0)
FROM bots b
LEFT JOIN transactions t ON t.bot_id = b.id
WHERE b.user_id = ?
GROUP BY b.id
ORDER BY b.created_at DESC;
`
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list bots: %w", err)
	}
	defer rows.Close()

	var out []BotWithStats
	for rows.Next() {
		var b BotWithStats
		if err := rows.Scan(&b.ID, &b.UserID, &b.Name, &b.BotToken, &b.BotUsername, &b.Status,
			&b.ActiveGatewayID, &b.CreatedAt, &b.UpdatedAt, &b.TransactionsCount, &b.TotalRevenue); err != nil {
			return nil, fmt.Errorf("scan bot stats: %w", err)
		}
		b.MaskedToken = MaskToken(b.BotToken)
		b.BotToken = ""
		out = append(out, b)
	}
	return out, rows.Err()
}

// UpdateBot updates mutable bot fields for its owner.
func (s *SQLiteStore) UpdateBot(ctx context.Context, b *Bot) error {
	return s.execOne(ctx, `
UPDATE bots SET name = ?, bot_token = ?, bot_username = ?, status = ?, active_gateway_id = ?, updated_at = ?
WHERE id = ? AND user_id = ?`,
		b.Name, b.BotToken, b.BotUsername, b.Status, b.ActiveGatewayID, time.Now().UTC(), b.ID, b.UserID)
}

// ToggleBot flips active/inactive and returns the new status.
func (s *SQLiteStore) ToggleBot(ctx context.Context, userID, id string) (string, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `
UPDATE bots SET status = CASE WHEN status = 'active' THEN 'inactive' ELSE 'active' END, updated_at = ?
WHERE id = ? AND user_id = ?
RETURNING status`, time.Now().UTC(), id, userID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("toggle bot: %w", err)
	}
	return status, nil
}

// DeleteBot removes an owned bot.
func (s *SQLiteStore) DeleteBot(ctx context.Context, userID, id string) error {
	return s.execOne(ctx, `DELETE FROM bots WHERE id = ? AND user_id = ?`, id, userID)
}

// ListGateways returns the gateway catalog ordered by name.
func (s *SQLiteStore) ListGateways(ctx context.Context) ([]Gateway, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, code, name, type, fee_percent, fee_flat, required_fields, created_at
FROM gateways ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list gateways: %w", err)
	}
	defer rows.Close()

	var out []Gateway
	for rows.Next() {
		var (
			g      Gateway
			fields string
		)
		if err := rows.Scan(&g.ID, &g.Code, &g.Name, &g.Type, &g.FeePercent, &g.FeeFlat, &fields, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan gateway: %w", err)
		}
		fromJSONText(fields, &g.RequiredFields)
		out = append(out, g)
	}
	return out, rows.Err()
}

// GetGatewayByID loads one catalog gateway.
func (s *SQLiteStore) GetGatewayByID(ctx context.Context, id string) (*Gateway, error) {
	var (
		g      Gateway
		fields string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, code, name, type, fee_percent, fee_flat, required_fields, created_at
FROM gateways WHERE id = ?`, id).
		Scan(&g.ID, &g.Code, &g.Name, &g.Type, &g.FeePercent, &g.FeeFlat, &fields, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get gateway: %w", err)
	}
	fromJSONText(fields, &g.RequiredFields)
	return &g, nil
}

const sqliteUserGatewaySelect = `
SELECT ug.id, ug.user_id, ug.gateway_id, g.code, g.name, ug.label, ug.credentials,
       ug.is_active, ug.is_default, ug.created_at, ug.updated_at
FROM user_gateways ug
JOIN gateways g ON g.id = ug.gateway_id`

func scanSQLiteUserGateway(scan func(dest ...any) error) (*UserGateway, error) {
	var (
		ug    UserGateway
		creds string
	)
	err := scan(&ug.ID, &ug.UserID, &ug.GatewayID, &ug.GatewayCode, &ug.GatewayName,
		&ug.Label, &creds, &ug.IsActive, &ug.IsDefault, &ug.CreatedAt, &ug.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user gateway: %w", err)
	}
	ug.Credentials = map[string]string{}
	fromJSONText(creds, &ug.Credentials)
	return &ug, nil
}

// CreateUserGateway inserts a configured gateway instance.
func (s *SQLiteStore) CreateUserGateway(ctx context.Context, ug *UserGateway) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO user_gateways (id, user_id, gateway_id, label, credentials, is_active, is_default, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ug.ID, ug.UserID, ug.GatewayID, ug.Label, jsonText(ug.Credentials), ug.IsActive, ug.IsDefault, now, now)
	if err != nil {
		return fmt.Errorf("insert user gateway: %w", err)
	}
	ug.CreatedAt = now
	ug.UpdatedAt = now
	return nil
}

// ListUserGateways returns the user's configured gateways with catalog names.
func (s *SQLiteStore) ListUserGateways(ctx context.Context, userID string) ([]UserGateway, error) {
	rows, err := s.db.QueryContext(ctx,
		sqliteUserGatewaySelect+` WHERE ug.user_id = ? ORDER BY ug.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user gateways: %w", err)
	}
	defer rows.Close()

	var out []UserGateway
	for rows.Next() {
		ug, err := scanSQLiteUserGateway(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *ug)
	}
	return out, rows.Err()
}

// GetUserGateway loads one configured gateway owned by the user.
func (s *SQLiteStore) GetUserGateway(ctx context.Context, userID, id string) (*UserGateway, error) {
	row := s.db.QueryRowContext(ctx,
		sqliteUserGatewaySelect+` WHERE ug.id = ? AND ug.user_id = ?`, id, userID)
	return scanSQLiteUserGateway(row.Scan)
}

// UpdateUserGateway updates label and credentials.
func (s *SQLiteStore) UpdateUserGateway(ctx context.Context, ug *UserGateway) error {
	return s.execOne(ctx, `
UPDATE user_gateways SET label = ?, credentials = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		ug.Label, jsonText(ug.Credentials), time.Now().UTC(), ug.ID, ug.UserID)
}

// ToggleUserGateway flips is_active and returns the new value.
func (s *SQLiteStore) ToggleUserGateway(ctx context.Context, userID, id string) (bool, error) {
	var active bool
	err := s.db.QueryRowContext(ctx, `
UPDATE user_gateways SET is_active = NOT is_active, updated_at = ?
WHERE id = ? AND user_id = ?
RETURNING is_active`, time.Now().UTC(), id, userID).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("toggle user gateway: %w", err)
	}
	return active, nil
}

// SetDefaultUserGateway makes one gateway the default inside a transaction.
func (s *SQLiteStore) SetDefaultUserGateway(ctx context.Context, userID, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE user_gateways SET is_default = 0, updated_at = ? WHERE user_id = ? AND is_default = 1`,
		now, userID); err != nil {
		return fmt.Errorf("clear default gateway: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE user_gateways SET is_default = 1, is_active = 1, updated_at = ? WHERE id = ? AND user_id = ?`,
		now, id, userID)
	if err != nil {
		return fmt.Errorf("set default gateway: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// DeleteUserGateway removes an owned configured gateway.
func (s *SQLiteStore) DeleteUserGateway(ctx context.Context, userID, id string) error {
	return s.execOne(ctx, `DELETE FROM user_gateways WHERE id = ? AND user_id = ?`, id, userID)
}

// CreateProduct inserts a catalog product.
func (s *SQLiteStore) CreateProduct(ctx context.Context, p *Product) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO products (id, user_id, code, name, price, category, description, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Code, p.Name, p.Price, p.Category, p.Description, now, now)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// ListProducts returns all products owned by the user.
func (s *SQLiteStore) ListProducts(ctx context.Context, userID string) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.UserID, &p.Code, &p.Name, &p.Price, &p.Category,
			&p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetProduct loads one owned product.
func (s *SQLiteStore) GetProduct(ctx context.Context, userID, id string) (*Product, error) {
	var p Product
	err := s.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ? AND user_id = ?`, id, userID).
		Scan(&p.ID, &p.UserID, &p.Code, &p.Name, &p.Price, &p.Category,
			&p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}
	return &p, nil
}

// UpdateProduct updates mutable product fields.
func (s *SQLiteStore) UpdateProduct(ctx context.Context, p *Product) error {
	return s.execOne(ctx, `
UPDATE products SET code = ?, name = ?, price = ?, category = ?, description = ?, updated_at = ?
WHERE id = ? AND user_id = ?`,
		p.Code, p.Name, p.Price, p.Category, p.Description, time.Now().UTC(), p.ID, p.UserID)
}

// DeleteProduct removes an owned product; variants and stock cascade.
func (s *SQLiteStore) DeleteProduct(ctx context.Context, userID, id string) error {
	return s.execOne(ctx, `DELETE FROM products WHERE id = ? AND user_id = ?`, id, userID)
}

// CreateVariant inserts a product variant.
func (s *SQLiteStore) CreateVariant(ctx context.Context, v *Variant) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO variants (id, product_id, name, price, created_at) VALUES (?, ?, ?, ?, ?)`,
		v.ID, v.ProductID, v.Name, v.Price, now)
	if err != nil {
		return fmt.Errorf("insert variant: %w", err)
	}
	v.CreatedAt = now
	return nil
}

// ListVariants returns the variants of one product.
func (s *SQLiteStore) ListVariants(ctx context.Context, productID string) ([]Variant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, product_id, name, price, created_at FROM variants WHERE product_id = ? ORDER BY name`, productID)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()

	var out []Variant
	for rows.Next() {
		var v Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Name, &v.Price, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// UpdateVariant updates a variant's name and price. The variant must hang off
// one of the caller's products.
func (s *SQLiteStore) UpdateVariant(ctx context.Context, userID string, v *Variant) error {
	return s.execOne(ctx, `
UPDATE variants SET name = ?, price = ?
WHERE id = ? AND product_id IN (SELECT id FROM products WHERE user_id = ?)`,
		v.Name, v.Price, v.ID, userID)
}

// DeleteVariant removes an owned variant; its stock rows keep a null variant.
func (s *SQLiteStore) DeleteVariant(ctx context.Context, userID, id string) error {
	return s.execOne(ctx, `
DELETE FROM variants
WHERE id = ? AND product_id IN (SELECT id FROM products WHERE user_id = ?)`, id, userID)
}

// AddStock inserts a batch of stock items, returning the inserted count.
func (s *SQLiteStore) AddStock(ctx context.Context, items []StockItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	inserted := 0
	for _, item := range items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stock_items (id, product_id, variant_id, data, created_at) VALUES (?, ?, ?, ?, ?)`,
			item.ID, item.ProductID, item.VariantID, item.Data, now); err != nil {
			return 0, fmt.Errorf("insert stock item: %w", err)
		}
		inserted++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// ListStock returns the stock rows of one owned product.
func (s *SQLiteStore) ListStock(ctx context.Context, userID, productID string) ([]StockItem, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT si.id, si.product_id, si.variant_id, si.data, si.is_sold, si.sold_at, si.created_at
FROM stock_items si
JOIN products p ON p.id = si.product_id
WHERE si.product_id = ? AND p.user_id = ?
ORDER BY si.created_at DESC`, productID, userID)
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	defer rows.Close()

	var out []StockItem
	for rows.Next() {
		var si StockItem
		if err := rows.Scan(&si.ID, &si.ProductID, &si.VariantID, &si.Data, &si.IsSold, &si.SoldAt, &si.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan stock item: %w", err)
		}
		out = append(out, si)
	}
	return out, rows.Err()
}

// DeleteStock removes an unsold stock item owned by the user.
func (s *SQLiteStore) DeleteStock(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `
DELETE FROM stock_items
WHERE id = ? AND is_sold = 0
  AND product_id IN (SELECT id FROM products WHERE user_id = ?)`, id, userID)
	if err != nil {
		return fmt.Errorf("delete stock item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var sold bool
		err := s.db.QueryRowContext(ctx, `
SELECT si.is_sold FROM stock_items si
JOIN products p ON p.id = si.product_id
WHERE si.id = ? AND p.user_id = ?`, id, userID).Scan(&sold)
		if err == nil && sold {
			return ErrStockSold
		}
		return ErrNotFound
	}
	return nil
}

// GroupedStock aggregates the user's stock by product and variant.
func (s *SQLiteStore) GroupedStock(ctx context.Context, userID string) ([]StockGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT p.id, p.name, si.id, si.product_id, si.variant_id, COALESCE(v.name, ''), si.data, si.is_sold, si.sold_at, si.created_at
FROM products p
JOIN stock_items si ON si.product_id = p.id
LEFT JOIN variants v ON v.id = si.variant_id
WHERE p.user_id = ?
ORDER BY p.name, v.name, si.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("grouped stock: %w", err)
	}
	defer rows.Close()

	var groups []StockGroup
	for rows.Next() {
		var (
			productID, productName, variantName string
			si                                  StockItem
		)
		if err := rows.Scan(&productID, &productName, &si.ID, &si.ProductID, &si.VariantID,
			&variantName, &si.Data, &si.IsSold, &si.SoldAt, &si.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan grouped stock: %w", err)
		}
		appendStockRow(&groups, productID, productName, variantName, si)
	}
	return groups, rows.Err()
}

// CreateTransaction inserts a new invoice row.
func (s *SQLiteStore) CreateTransaction(ctx context.Context, t *Transaction) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO transactions (id, user_id, bot_id, invoice_ref, product_code, amount, fee, status,
                          gateway_code, qr_payload, metadata, expires_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.BotID, t.InvoiceRef, t.ProductCode, t.Amount, t.Fee, t.Status,
		t.GatewayCode, t.QRPayload, jsonText(t.Metadata), t.ExpiresAt, now, now)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	t.CreatedAt = now
	t.UpdatedAt = now
	return nil
}

func scanSQLiteTransaction(scan func(dest ...any) error) (*Transaction, error) {
	var (
		t    Transaction
		meta string
	)
	err := scan(&t.ID, &t.UserID, &t.BotID, &t.InvoiceRef, &t.ProductCode, &t.Amount, &t.Fee,
		&t.Status, &t.GatewayCode, &t.QRPayload, &meta, &t.ExpiresAt, &t.PaidAt,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	fromJSONText(meta, &t.Metadata)
	return &t, nil
}

// GetTransaction loads one transaction owned by the user.
func (s *SQLiteStore) GetTransaction(ctx context.Context, userID, id string) (*Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	return scanSQLiteTransaction(row.Scan)
}

// GetTransactionByRef loads one transaction by invoice reference.
func (s *SQLiteStore) GetTransactionByRef(ctx context.Context, ref string) (*Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE invoice_ref = ?`, ref)
	return scanSQLiteTransaction(row.Scan)
}

// ListTransactions returns a filtered, paginated transaction page.
func (s *SQLiteStore) ListTransactions(ctx context.Context, userID string, f TxFilter) ([]Transaction, int64, error) {
	where := []string{"user_id = ?"}
	args := []any{userID}

	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.BotID != "" {
		where = append(where, "bot_id = ?")
		args = append(args, f.BotID)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		where = append(where, "lower(invoice_ref) LIKE ?")
		args = append(args, "%"+strings.ToLower(q)+"%")
	}
	if f.From != nil {
		where = append(where, "created_at >= ?")
		args = append(args, *f.From)
	}
	if f.To != nil {
		where = append(where, "created_at < ?")
		args = append(args, *f.To)
	}

	cond := strings.Join(where, " AND ")

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	limit, offset := pageBounds(f.Page, f.PerPage)
	args = append(args, limit, offset)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE `+cond+` ORDER BY created_at DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanSQLiteTransaction(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *t)
	}
	return out, total, rows.Err()
}

// UpdateTransactionStatus transitions a pending invoice to a new status.
func (s *SQLiteStore) UpdateTransactionStatus(ctx context.Context, ref, status string, paidAt *time.Time) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE transactions SET status = ?, paid_at = COALESCE(?, paid_at), updated_at = ?
WHERE invoice_ref = ? AND status = 'pending'`,
		status, paidAt, time.Now().UTC(), ref)
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM transactions WHERE invoice_ref = ?)`, ref).Scan(&exists); err != nil {
			return fmt.Errorf("check transaction: %w", err)
		}
		if exists {
			return ErrStatusLocked
		}
		return ErrNotFound
	}
	return nil
}

// ExpireTransactions marks overdue pending invoices expired.
func (s *SQLiteStore) ExpireTransactions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE transactions SET status = 'expired', updated_at = ?
WHERE status = 'pending' AND expires_at IS NOT NULL AND expires_at < ?`, now, now)
	if err != nil {
		return 0, fmt.Errorf("expire transactions: %w", err)
	}
	return res.RowsAffected()
}

// StatsSummary computes the dashboard home aggregates for one user.
func (s *SQLiteStore) StatsSummary(ctx context.Context, userID string) (*StatsSummary, error) {
	var sum StatsSummary

	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*), COUNT(CASE WHEN status = 'active' THEN 1 END)
FROM bots WHERE user_id = ?`, userID).Scan(&sum.TotalBots, &sum.ActiveBots)
	if err != nil {
		return nil, fmt.Errorf("stats bots: %w", err)
	}

	dayStart := time.Now().UTC().Truncate(24 * time.Hour)
	err = s.db.QueryRowContext(ctx, `
SELECT COUNT(CASE WHEN status = 'success' THEN 1 END),
       COUNT(CASE WHEN status = 'success' AND created_at >= ? THEN 1 END),
       COALESCE(SUM(CASE WHEN status = 'success' THEN amount END), 0),
       COALESCE(SUM(CASE WHEN status = 'success' AND created_at >= ? THEN amount END), 0)
FROM transactions WHERE user_id = ?`, dayStart, dayStart, userID).
		Scan(&sum.TransactionsTotal, &sum.TransactionsToday, &sum.RevenueTotal, &sum.RevenueToday)
	if err != nil {
		return nil, fmt.Errorf("stats transactions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE user_id = ? ORDER BY created_at DESC LIMIT 5`, userID)
	if err != nil {
		return nil, fmt.Errorf("stats recent transactions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		t, err := scanSQLiteTransaction(rows.Scan)
		if err != nil {
			return nil, err
		}
		sum.RecentTransactions = append(sum.RecentTransactions, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent transactions: %w", err)
	}

	return &sum, nil
}

// CreateNotification inserts a notification row for the target user.
func (s *SQLiteStore) CreateNotification(ctx context.Context, n *Notification) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, type, title, message, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Type, n.Title, n.Message, now)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	n.CreatedAt = now
	return nil
}

// ListNotifications returns the user's notifications, newest first.
func (s *SQLiteStore) ListNotifications(ctx context.Context, userID string, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, user_id, type, title, message, read, created_at
FROM notifications WHERE user_id = ?
ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// UnreadCount returns the number of unread notifications.
func (s *SQLiteStore) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read = 0`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return count, nil
}

// MarkNotificationRead flags one notification as read.
func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, userID, id string) error {
	return s.execOne(ctx, `UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?`, id, userID)
}

// MarkAllNotificationsRead flags every unread notification as read.
func (s *SQLiteStore) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE user_id = ? AND read = 0`, userID)
	if err != nil {
		return fmt.Errorf("mark all read: %w", err)
	}
	return nil
}

// DeleteNotification removes one owned notification.
func (s *SQLiteStore) DeleteNotification(ctx context.Context, userID, id string) error {
	return s.execOne(ctx, `DELETE FROM notifications WHERE id = ? AND user_id = ?`, id, userID)
}

// PurgeReadNotifications drops read notifications older than the cutoff.
func (s *SQLiteStore) PurgeReadNotifications(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE read = 1 AND created_at < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("purge notifications: %w", err)
	}
	return res.RowsAffected()
}
