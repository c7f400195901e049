package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const botColumns = `id, user_id, name, bot_token, bot_username, status, active_gateway_id, created_at, updated_at`

func scanBot(row pgx.Row) (*Bot, error) {
	var b Bot
	err := row.Scan(&b.ID, &b.UserID, &b.Name, &b.BotToken, &b.BotUsername, &b.Status,
		&b.ActiveGatewayID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan bot: %w", err)
	}
	return &b, nil
}

// CreateBot inserts a new bot row.
func (s *PostgresStore) CreateBot(ctx context.Context, b *Bot) error {
	const q = `
INSERT INTO bots (id, user_id, name, bot_token, bot_username, status, active_gateway_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at, updated_at;
`
	err := s.pool.QueryRow(ctx, q, b.ID, b.UserID, b.Name, b.BotToken, b.BotUsername,
		b.Status, b.ActiveGatewayID).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert bot: %w", err)
	}
	return nil
}

// GetBot loads one bot owned by the user.
func (s *PostgresStore) GetBot(ctx context.Context, userID, id string) (*Bot, error) {
	return scanBot(s.pool.QueryRow(ctx,
		`SELECT `+botColumns+` FROM bots WHERE id = $1 AND user_id = $2`, id, userID))
}

// ListBots returns the user's bots with transaction aggregates.
func (s *PostgresStore) ListBots(ctx context.Context, userID string) ([]BotWithStats, error) {
	const q = `
SELECT b.id, b.user_id, b.name, b.bot_token, b.bot_username, b.status, b.active_gateway_id,
       b.created_at, b.updated_at,
       COUNT(t.id) FILTER (WHERE t.status = 'success') AS transactions_count,
       COALESCE(SUM(t.amount) FILTER (WHERE t.status = 'success'), 0) AS total_revenue
FROM bots b
LEFT JOIN transactions t ON t.bot_id = b.id
WHERE b.user_id = $1
GROUP BY b.id
ORDER BY b.created_at DESC;
`
	rows, err := s.pool.Query(ctx, q, userID)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bots: %w", err)
	}
	return out, nil
}

// UpdateBot updates mutable bot fields for its owner.
func (s *PostgresStore) UpdateBot(ctx context.Context, b *Bot) error {
	return s.execOne(ctx, `
UPDATE bots
SET name = $3, bot_token = $4, bot_username = $5, status = $6, active_gateway_id = $7, updated_at = NOW()
WHERE id = $1 AND user_id = $2`,
		b.ID, b.UserID, b.Name, b.BotToken, b.BotUsername, b.Status, b.ActiveGatewayID)
}

// ToggleBot flips active/inactive and returns the new status.
func (s *PostgresStore) ToggleBot(ctx context.Context, userID, id string) (string, error) {
	const q = `
UPDATE bots
SET status = CASE WHEN status = 'active' THEN 'inactive' ELSE 'active' END, updated_at = NOW()
WHERE id = $1 AND user_id = $2
RETURNING status;
`
	var status string
	err := s.pool.QueryRow(ctx, q, id, userID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("toggle bot: %w", err)
	}
	return status, nil
}

// DeleteBot removes an owned bot.
func (s *PostgresStore) DeleteBot(ctx context.Context, userID, id string) error {
	return s.execOne(ctx, `DELETE FROM bots WHERE id = $1 AND user_id = $2`, id, userID)
}
