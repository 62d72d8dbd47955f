package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/domain"
)

// OutboxRepository holds the transactional outbox and the consumer inbox.
type OutboxRepository struct {
	db
}

func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{db: db{pool: pool}}
}

func (r *OutboxRepository) EnqueueOutbox(ctx context.Context, msg domain.OutboxMessage) error {
	const stmt = `
INSERT INTO outbox_messages (event_id, event_type, aggregate_id, payload, created_at)
VALUES ($1, $2, $3, $4, $5)`

	_, err := r.exec(ctx, stmt, msg.EventID, msg.EventType, msg.AggregateID, []byte(msg.Payload), msg.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrIdempotencyConflict
		}
		return fmt.Errorf("enqueue outbox: %w", err)
	}
	return nil
}

// FetchPendingOutbox locks a batch with SKIP LOCKED, so relays running in
// parallel take disjoint rows.
func (r *OutboxRepository) FetchPendingOutbox(ctx context.Context, limit, maxRetries int) ([]domain.OutboxMessage, error) {
	const query = `
SELECT id, event_id, event_type, aggregate_id, payload, created_at, retry_count, COALESCE(last_error, '')
FROM outbox_messages
WHERE processed_at IS NULL AND retry_count < $2
ORDER BY created_at ASC, id ASC
LIMIT $1
FOR UPDATE SKIP LOCKED`

	rows, err := r.query(ctx, query, limit, maxRetries)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox: %w", err)
	}
	defer rows.Close()

	var out []domain.OutboxMessage
	for rows.Next() {
		var (
			m       domain.OutboxMessage
			payload []byte
		)
		if err := rows.Scan(&m.ID, &m.EventID, &m.EventType, &m.AggregateID, &payload, &m.CreatedAt, &m.RetryCount, &m.LastError); err != nil {
			return nil, fmt.Errorf("scan outbox message: %w", err)
		}
		m.Payload = payload
		out = append(out, m)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate outbox: %w", rows.Err())
	}
	return out, nil
}

func (r *OutboxRepository) MarkOutboxProcessed(ctx context.Context, id int64, at time.Time) error {
	const stmt = `UPDATE outbox_messages SET processed_at = $2, last_error = NULL WHERE id = $1`
	if _, err := r.exec(ctx, stmt, id, at); err != nil {
		return fmt.Errorf("mark outbox processed: %w", err)
	}
	return nil
}

func (r *OutboxRepository) MarkOutboxFailed(ctx context.Context, id int64, lastError string) error {
	const stmt = `UPDATE outbox_messages SET retry_count = retry_count + 1, last_error = $2 WHERE id = $1`
	if _, err := r.exec(ctx, stmt, id, lastError); err != nil {
		return fmt.Errorf("mark outbox failed: %w", err)
	}
	return nil
}

func (r *OutboxRepository) InboxSeen(ctx context.Context, consumerName, messageID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM inbox_messages WHERE consumer_name = $1 AND message_id = $2)`
	var seen bool
	if err := r.queryRow(ctx, query, consumerName, messageID).Scan(&seen); err != nil {
		return false, fmt.Errorf("check inbox: %w", err)
	}
	return seen, nil
}

func (r *OutboxRepository) RecordInbox(ctx context.Context, msg domain.InboxMessage) (bool, error) {
	const stmt = `
INSERT INTO inbox_messages (consumer_name, message_id, message_type, processed_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (consumer_name, message_id) DO NOTHING`

	tag, err := r.exec(ctx, stmt, msg.ConsumerName, msg.MessageID, msg.MessageType, msg.ProcessedAt)
	if err != nil {
		return false, fmt.Errorf("record inbox: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
