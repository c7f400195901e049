package store

import (
	"context"
	"fmt"
	"time"
)

// CreateNotification inserts a notification row for the target user.
func (s *PostgresStore) CreateNotification(ctx context.Context, n *Notification) error {
	const q = `
INSERT INTO notifications (id, user_id, type, title, message)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at;
`
	if err := s.pool.QueryRow(ctx, q, n.ID, n.UserID, n.Type, n.Title, n.Message).Scan(&n.CreatedAt); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListNotifications returns the user's notifications, newest first.
func (s *PostgresStore) ListNotifications(ctx context.Context, userID string, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, user_id, type, title, message, read, created_at
FROM notifications
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2;
`
	rows, err := s.pool.Query(ctx, q, userID, limit)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

// UnreadCount returns the number of unread notifications.
func (s *PostgresStore) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT read`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return count, nil
}

// MarkNotificationRead flags one notification as read.
func (s *PostgresStore) MarkNotificationRead(ctx context.Context, userID, id string) error {
	return s.execOne(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
}

// MarkAllNotificationsRead flags every unread notification as read.
func (s *PostgresStore) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE user_id = $1 AND NOT read`, userID)
	if err != nil {
		return fmt.Errorf("mark all read: %w", err)
	}
	return nil
}

// DeleteNotification removes one owned notification.
func (s *PostgresStore) DeleteNotification(ctx context.Context, userID, id string) error {
	return s.execOne(ctx,
		`DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
}

// PurgeReadNotifications drops read notifications older than the cutoff.
func (s *PostgresStore) PurgeReadNotifications(ctx context.Context, before time.Time) (int64, error) {
	ct, err := s.pool.Exec(ctx,
		`DELETE FROM notifications WHERE read AND created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge notifications: %w", err)
	}
	return ct.RowsAffected(), nil
}
