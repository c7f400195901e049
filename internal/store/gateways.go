package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ListGateways returns the gateway catalog ordered by name.
func (s *PostgresStore) ListGateways(ctx context.Context) ([]Gateway, error) {
	const q = `
SELECT id, code, name, type, fee_percent, fee_flat, required_fields, created_at
FROM gateways
ORDER BY name;
`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list gateways: %w", err)
	}
	defer rows.Close()

	var out []Gateway
	for rows.Next() {
		var g Gateway
		if err := rows.Scan(&g.ID, &g.Code, &g.Name, &g.Type, &g.FeePercent, &g.FeeFlat,
			&g.RequiredFields, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan gateway: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gateways: %w", err)
	}
	return out, nil
}

// GetGatewayByID loads one catalog gateway.
func (s *PostgresStore) GetGatewayByID(ctx context.Context, id string) (*Gateway, error) {
	const q = `
SELECT id, code, name, type, fee_percent, fee_flat, required_fields, created_at
FROM gateways WHERE id = $1;
`
	var g Gateway
	err := s.pool.QueryRow(ctx, q, id).Scan(&g.ID, &g.Code, &g.Name, &g.Type,
		&g.FeePercent, &g.FeeFlat, &g.RequiredFields, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get gateway: %w", err)
	}
	return &g, nil
}

const userGatewayColumns = `
ug.id, ug.user_id, ug.gateway_id, g.code, g.name, ug.label, ug.credentials,
ug.is_active, ug.is_default, ug.created_at, ug.updated_at`

func scanUserGateway(row pgx.Row) (*UserGateway, error) {
	var ug UserGateway
	err := row.Scan(&ug.ID, &ug.UserID, &ug.GatewayID, &ug.GatewayCode, &ug.GatewayName,
		&ug.Label, &ug.Credentials, &ug.IsActive, &ug.IsDefault, &ug.CreatedAt, &ug.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user gateway: %w", err)
	}
	return &ug, nil
}

// CreateUserGateway inserts a configured gateway instance.
func (s *PostgresStore) CreateUserGateway(ctx context.Context, ug *UserGateway) error {
	const q = `
INSERT INTO user_gateways (id, user_id, gateway_id, label, credentials, is_active, is_default)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at, updated_at;
`
	err := s.pool.QueryRow(ctx, q, ug.ID, ug.UserID, ug.GatewayID, ug.Label,
		ug.Credentials, ug.IsActive, ug.IsDefault).Scan(&ug.CreatedAt, &ug.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert user gateway: %w", err)
	}
	return nil
}

// ListUserGateways returns the user's configured gateways with catalog names.
func (s *PostgresStore) ListUserGateways(ctx context.Context, userID string) ([]UserGateway, error) {
	q := `SELECT` + userGatewayColumns + `
FROM user_gateways ug
JOIN gateways g ON g.id = ug.gateway_id
WHERE ug.user_id = $1
ORDER BY ug.created_at DESC;`

	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list user gateways: %w", err)
	}
	defer rows.Close()

	var out []UserGateway
	for rows.Next() {
		ug, err := scanUserGateway(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ug)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user gateways: %w", err)
	}
	return out, nil
}

// GetUserGateway loads one configured gateway owned by the user.
func (s *PostgresStore) GetUserGateway(ctx context.Context, userID, id string) (*UserGateway, error) {
	q := `SELECT` + userGatewayColumns + `
FROM user_gateways ug
JOIN gateways g ON g.id = ug.gateway_id
WHERE ug.id = $1 AND ug.user_id = $2;`
	return scanUserGateway(s.pool.QueryRow(ctx, q, id, userID))
}

// UpdateUserGateway updates label and credentials.
func (s *PostgresStore) UpdateUserGateway(ctx context.Context, ug *UserGateway) error {
	return s.execOne(ctx, `
UPDATE user_gateways SET label = $3, credentials = $4, updated_at = NOW()
WHERE id = $1 AND user_id = $2`, ug.ID, ug.UserID, ug.Label, ug.Credentials)
}

// ToggleUserGateway flips is_active and returns the new value.
func (s *PostgresStore) ToggleUserGateway(ctx context.Context, userID, id string) (bool, error) {
	const q = `
UPDATE user_gateways SET is_active = NOT is_active, updated_at = NOW()
WHERE id = $1 AND user_id = $2
RETURNING is_active;
`
	var active bool
	err := s.pool.QueryRow(ctx, q, id, userID).Scan(&active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("toggle user gateway: %w", err)
	}
	return active, nil
}

// SetDefaultUserGateway makes one gateway the default, clearing the previous
// default in the same transaction.
func (s *PostgresStore) SetDefaultUserGateway(ctx context.Context, userID, id string) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE user_gateways SET is_default = FALSE, updated_at = NOW() WHERE user_id = $1 AND is_default`,
			userID); err != nil {
			return fmt.Errorf("clear default gateway: %w", err)
		}
		ct, err := tx.Exec(ctx,
			`UPDATE user_gateways SET is_default = TRUE, is_active = TRUE, updated_at = NOW() WHERE id = $1 AND user_id = $2`,
			id, userID)
		if err != nil {
			return fmt.Errorf("set default gateway: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// DeleteUserGateway removes an owned configured gateway.
func (s *PostgresStore) DeleteUserGateway(ctx context.Context, userID, id string) error {
	return s.execOne(ctx, `DELETE FROM user_gateways WHERE id = $1 AND user_id = $2`, id, userID)
}
