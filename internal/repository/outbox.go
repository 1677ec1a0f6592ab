package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/medcart/internal/domain/notification"
)

const (
	enqueueNotificationSQL = `INSERT INTO notification_outbox
		(id, type, user_id, email, phone, data, channels)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	claimNotificationsSQL = `SELECT id, type, user_id, email, phone, data, channels,
		status, attempts, last_error, created_at
		FROM notification_outbox
		WHERE status = 'pending'
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED`

	markNotificationSentSQL = `UPDATE notification_outbox
		SET status = 'sent', attempts = attempts + 1, last_error = '', sent_at = now()
		WHERE id = $1`

	markNotificationFailedSQL = `UPDATE notification_outbox
		SET attempts = attempts + 1,
			last_error = $2,
			status = CASE WHEN attempts + 1 >= $3 THEN 'failed' ELSE 'pending' END
		WHERE id = $1`

	countPendingNotificationsSQL = `SELECT count(*) FROM notification_outbox WHERE status = 'pending'`
)

var _ notification.Outbox = (*OutboxRepository)(nil)

// OutboxRepository stores notifications until the dispatch worker delivers
// them.
type OutboxRepository struct {
	pool *pgxpool.Pool
}

// NewOutboxRepository returns an OutboxRepository that uses the given pool.
func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

// Enqueue stores n as a pending message.
func (r *OutboxRepository) Enqueue(ctx context.Context, n notification.Notification) error {
	data := n.Data
	if data == nil {
		data = map[string]string{}
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling notification data: %w", err)
	}

	channels := make([]string, len(n.Channels))
	for i, c := range n.Channels {
		channels[i] = string(c)
	}

	_, err = r.pool.Exec(ctx, enqueueNotificationSQL,
		uuid.New(), string(n.Type), n.UserID, n.Email, n.Phone, dataJSON, channels,
	)
	if err != nil {
		return fmt.Errorf("enqueueing %s notification: %w", n.Type, err)
	}
	return nil
}

// Process claims up to limit pending messages with row locks and hands each
// to fn. Rows locked by another worker are skipped.
func (r *OutboxRepository) Process(
	ctx context.Context,
	limit, maxAttempts int,
	fn func(ctx context.Context, m notification.Message) error,
) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning outbox tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, claimNotificationsSQL, limit)
	if err != nil {
		return 0, fmt.Errorf("claiming notifications: %w", err)
	}
	msgs, err := pgx.CollectRows(rows, scanMessage)
	if err != nil {
		return 0, fmt.Errorf("claiming notifications: %w", err)
	}

	for _, m := range msgs {
		if dispatchErr := fn(ctx, m); dispatchErr != nil {
			if _, err := tx.Exec(ctx, markNotificationFailedSQL, m.ID, dispatchErr.Error(), maxAttempts); err != nil {
				return 0, fmt.Errorf("marking notification %s failed: %w", m.ID, err)
			}
			continue
		}
		if _, err := tx.Exec(ctx, markNotificationSentSQL, m.ID); err != nil {
			return 0, fmt.Errorf("marking notification %s sent: %w", m.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing outbox tx: %w", err)
	}
	return len(msgs), nil
}

// Pending returns the number of messages waiting for dispatch.
func (r *OutboxRepository) Pending(ctx context.Context) (int, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, countPendingNotificationsSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting pending notifications: %w", err)
	}
	return int(n), nil
}

func scanMessage(row pgx.CollectableRow) (notification.Message, error) {
	var (
		m        notification.Message
		typ      string
		status   string
		dataJSON []byte
		channels []string
		attempts int32
	)
	err := row.Scan(
		&m.ID, &typ, &m.Notification.UserID, &m.Notification.Email, &m.Notification.Phone,
		&dataJSON, &channels, &status, &attempts, &m.LastError, &m.CreatedAt,
	)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(dataJSON, &m.Notification.Data); err != nil {
		return m, fmt.Errorf("unmarshaling notification %s data: %w", m.ID, err)
	}

	m.Notification.Type = notification.Type(typ)
	for _, c := range channels {
		m.Notification.Channels = append(m.Notification.Channels, notification.Channel(c))
	}
	m.Status = notification.Status(status)
	m.Attempts = int(attempts)
	return m, nil
}
