package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const userColumns = `id, name, email, password_hash, role, status, avatar_seed, avatar_style, api_token, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Status,
		&u.AvatarSeed, &u.AvatarStyle, &u.APIToken, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// CreateUser inserts a new user row.
func (s *PostgresStore) CreateUser(ctx context.Context, u *User) error {
	const q = `
INSERT INTO users (id, name, email, password_hash, role, status, avatar_seed, avatar_style, api_token)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING created_at, updated_at;
`
	err := s.pool.QueryRow(ctx, q, u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.Status,
		u.AvatarSeed, u.AvatarStyle, u.APIToken).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByID loads one user by primary key.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetUserByEmail loads one user by email, case-insensitive.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

// ListUsers returns a filtered, paginated user page plus the total count.
func (s *PostgresStore) ListUsers(ctx context.Context, f UserFilter) ([]User, int64, error) {
	where := []string{"1=1"}
	args := []any{}

	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+strings.ToLower(q)+"%")
		where = append(where, fmt.Sprintf("(lower(name) LIKE $%d OR lower(email) LIKE $%d)", len(args), len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Role != "" {
		args = append(args, f.Role)
		where = append(where, fmt.Sprintf("role = $%d", len(args)))
	}

	cond := strings.Join(where, " AND ")

	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	limit, offset := pageBounds(f.Page, f.PerPage)
	args = append(args, limit, offset)
	q := fmt.Sprintf(`SELECT `+userColumns+` FROM users WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		cond, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate users: %w", err)
	}
	return users, total, nil
}

// ListAdminIDs returns the IDs of all super admins.
func (s *PostgresStore) ListAdminIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM users WHERE role = $1`, RoleSuperAdmin)
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
func (s *PostgresStore) UpdateUserProfile(ctx context.Context, id, name, avatarSeed, avatarStyle string) error {
	return s.execOne(ctx, `
UPDATE users SET name = $2, avatar_seed = $3, avatar_style = $4, updated_at = NOW()
WHERE id = $1`, id, name, avatarSeed, avatarStyle)
}

// UpdateUserPassword replaces the stored password hash.
func (s *PostgresStore) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	return s.execOne(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
}

// UpdateUserStatus moves a user through the pending/active/suspended lifecycle.
func (s *PostgresStore) UpdateUserStatus(ctx context.Context, id, status string) error {
	return s.execOne(ctx, `UPDATE users SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
}

// UpdateUserRole switches between user and super_admin.
func (s *PostgresStore) UpdateUserRole(ctx context.Context, id, role string) error {
	return s.execOne(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`, id, role)
}

// SetAPIToken stores a freshly generated API token.
func (s *PostgresStore) SetAPIToken(ctx context.Context, id, token string) error {
	return s.execOne(ctx, `UPDATE users SET api_token = $2, updated_at = NOW() WHERE id = $1`, id, token)
}

// DeleteUser removes the user and, via FK cascade, everything they own.
func (s *PostgresStore) DeleteUser(ctx context.Context, id string) error {
	return s.execOne(ctx, `DELETE FROM users WHERE id = $1`, id)
}

// RevokeToken records a logged-out token ID until its natural expiry.
func (s *PostgresStore) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO revoked_tokens (jti, expires_at) VALUES ($1, $2)
ON CONFLICT (jti) DO NOTHING`, jti, expiresAt)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsTokenRevoked reports whether the token ID has been revoked.
func (s *PostgresStore) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = $1)`, jti).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return exists, nil
}

// PurgeExpiredRevocations drops revocation rows whose tokens expired anyway.
func (s *PostgresStore) PurgeExpiredRevocations(ctx context.Context, now time.Time) (int64, error) {
	ct, err := s.pool.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge revocations: %w", err)
	}
	return ct.RowsAffected(), nil
}

// CreateVerificationCode stores a code for the email verification or
// password reset flow.
func (s *PostgresStore) CreateVerificationCode(ctx context.Context, vc *VerificationCode) error {
	const q = `
INSERT INTO verification_codes (id, user_id, email, code, purpose, expires_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING created_at;
`
	err := s.pool.QueryRow(ctx, q, vc.ID, vc.UserID, vc.Email, vc.Code, vc.Purpose, vc.ExpiresAt).Scan(&vc.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert verification code: %w", err)
	}
	return nil
}

// ConsumeVerificationCode marks a matching unexpired code as used and
// returns it. A missing or spent code yields ErrCodeExpired.
func (s *PostgresStore) ConsumeVerificationCode(ctx context.Context, email, code, purpose string) (*VerificationCode, error) {
	const q = `
UPDATE verification_codes
SET used_at = NOW()
WHERE id = (
    SELECT id FROM verification_codes
    WHERE lower(email) = lower($1) AND code = $2 AND purpose = $3
      AND used_at IS NULL AND expires_at > NOW()
    ORDER BY created_at DESC
    LIMIT 1
)
RETURNING id, user_id, email, code, purpose, expires_at, used_at, created_at;
`
	var vc VerificationCode
	err := s.pool.QueryRow(ctx, q, email, code, purpose).Scan(
		&vc.ID, &vc.UserID, &vc.Email, &vc.Code, &vc.Purpose, &vc.ExpiresAt, &vc.UsedAt, &vc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCodeExpired
		}
		return nil, fmt.Errorf("consume verification code: %w", err)
	}
	return &vc, nil
}

func (s *PostgresStore) execOne(ctx context.Context, q string, args ...any) error {
	ct, err := s.pool.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func pageBounds(page, perPage int) (limit, offset int) {
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	if page < 1 {
		page = 1
	}
	return perPage, (page - 1) * perPage
}
