package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

const txColumns = `id, user_id, bot_id, invoice_ref, product_code, amount, fee, status, gateway_code,
qr_payload, metadata, expires_at, paid_at, created_at, updated_at`

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.UserID, &t.BotID, &t.InvoiceRef, &t.ProductCode, &t.Amount, &t.Fee,
		&t.Status, &t.GatewayCode, &t.QRPayload, &t.Metadata, &t.ExpiresAt, &t.PaidAt,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return &t, nil
}

// CreateTransaction inserts a new invoice row.
func (s *PostgresStore) CreateTransaction(ctx context.Context, t *Transaction) error {
	const q = `
INSERT INTO transactions (id, user_id, bot_id, invoice_ref, product_code, amount, fee, status,
                          gateway_code, qr_payload, metadata, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING created_at, updated_at;
`
	err := s.pool.QueryRow(ctx, q, t.ID, t.UserID, t.BotID, t.InvoiceRef, t.ProductCode,
		t.Amount, t.Fee, t.Status, t.GatewayCode, t.QRPayload, t.Metadata, t.ExpiresAt).
		Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetTransaction loads one transaction owned by the user.
func (s *PostgresStore) GetTransaction(ctx context.Context, userID, id string) (*Transaction, error) {
	return scanTransaction(s.pool.QueryRow(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE id = $1 AND user_id = $2`, id, userID))
}

// GetTransactionByRef loads one transaction by invoice reference, used by
// the payment webhook where no session exists.
func (s *PostgresStore) GetTransactionByRef(ctx context.Context, ref string) (*Transaction, error) {
	return scanTransaction(s.pool.QueryRow(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE invoice_ref = $1`, ref))
}

// ListTransactions returns a filtered, paginated transaction page with the
// total matching count.
func (s *PostgresStore) ListTransactions(ctx context.Context, userID string, f TxFilter) ([]Transaction, int64, error) {
	where := []string{"user_id = $1"}
	args := []any{userID}

	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.BotID != "" {
		args = append(args, f.BotID)
		where = append(where, fmt.Sprintf("bot_id = $%d", len(args)))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+strings.ToLower(q)+"%")
		where = append(where, fmt.Sprintf("lower(invoice_ref) LIKE $%d", len(args)))
	}
	if f.From != nil {
		args = append(args, *f.From)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		where = append(where, fmt.Sprintf("created_at < $%d", len(args)))
	}

	cond := strings.Join(where, " AND ")

	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	limit, offset := pageBounds(f.Page, f.PerPage)
	args = append(args, limit, offset)
	q := fmt.Sprintf(`SELECT `+txColumns+` FROM transactions WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		cond, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, total, nil
}

// UpdateTransactionStatus transitions a pending invoice to a new status.
// Terminal rows are never touched; attempting to yields ErrStatusLocked.
func (s *PostgresStore) UpdateTransactionStatus(ctx context.Context, ref, status string, paidAt *time.Time) error {
	const q = `
UPDATE transactions
SET status = $2, paid_at = COALESCE($3, paid_at), updated_at = NOW()
WHERE invoice_ref = $1 AND status = 'pending';
`
	ct, err := s.pool.Exec(ctx, q, ref, status, paidAt)
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM transactions WHERE invoice_ref = $1)`, ref).Scan(&exists); err != nil {
			return fmt.Errorf("check transaction: %w", err)
		}
		if exists {
			return ErrStatusLocked
		}
		return ErrNotFound
	}
	return nil
}

// ExpireTransactions marks overdue pending invoices expired and returns the
// number affected.
func (s *PostgresStore) ExpireTransactions(ctx context.Context, now time.Time) (int64, error) {
	const q = `
UPDATE transactions
SET status = 'expired', updated_at = NOW()
WHERE status = 'pending' AND expires_at IS NOT NULL AND expires_at < $1;
`
	ct, err := s.pool.Exec(ctx, q, now)
	if err != nil {
		return 0, fmt.Errorf("expire transactions: %w", err)
	}
	return ct.RowsAffected(), nil
}

// StatsSummary computes the dashboard home aggregates for one user.
func (s *PostgresStore) StatsSummary(ctx context.Context, userID string) (*StatsSummary, error) {
	var sum StatsSummary

	const botsQ = `
SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'active')
FROM bots WHERE user_id = $1;
`
	if err := s.pool.QueryRow(ctx, botsQ, userID).Scan(&sum.TotalBots, &sum.ActiveBots); err != nil {
		return nil, fmt.Errorf("stats bots: %w", err)
	}

	const txQ = `
SELECT COUNT(*) FILTER (WHERE status = 'success'),
       COUNT(*) FILTER (WHERE status = 'success' AND created_at >= date_trunc('day', NOW())),
       COALESCE(SUM(amount) FILTER (WHERE status = 'success'), 0),
       COALESCE(SUM(amount) FILTER (WHERE status = 'success' AND created_at >= date_trunc('day', NOW())), 0)
FROM transactions WHERE user_id = $1;
`
	if err := s.pool.QueryRow(ctx, txQ, userID).Scan(&sum.TransactionsTotal, &sum.TransactionsToday,
		&sum.RevenueTotal, &sum.RevenueToday); err != nil {
		return nil, fmt.Errorf("stats transactions: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE user_id = $1 ORDER BY created_at DESC LIMIT 5`, userID)
	if err != nil {
		return nil, fmt.Errorf("stats recent transactions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		t, err := scanTransaction(rows)
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
