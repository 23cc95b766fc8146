package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const defaultOutboxBatch = 100

type outboxRow struct {
	ID            string    `db:"id"`
	AggregateType string    `db:"aggregate_type"`
	AggregateID   string    `db:"aggregate_id"`
	EventType     string    `db:"event_type"`
	Payload       []byte    `db:"payload"`
	Status        string    `db:"status"`
	CreatedAt     time.Time `db:"created_at"`
}

func (r outboxRow) toDomain() domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:            r.ID,
		AggregateType: r.AggregateType,
		AggregateID:   r.AggregateID,
		EventType:     r.EventType,
		Payload:       r.Payload,
		Status:        domain.OutboxStatus(r.Status),
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

type outboxRepository struct {
	q sqlx.ExtContext
}

// NewOutboxRepository возвращает outbox-репозиторий вне транзакции (для воркера).
func NewOutboxRepository(store *Store) domain.OutboxRepository {
	return outboxRepository{q: store.DB()}
}

func (r outboxRepository) Enqueue(ctx context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.Status = domain.OutboxStatusPending
	msg.CreatedAt = time.Now().UTC()

	_, err := sqlx.NamedExecContext(ctx, r.q, `
		INSERT INTO outbox_messages (
			id, aggregate_type, aggregate_id, event_type, payload,
			status, attempt_count, created_at, updated_at
		) VALUES (
			:id, :aggregate_type, :aggregate_id, :event_type, :payload,
			:status, 0, :created_at, :created_at
		)
	`, outboxRow{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       msg.Payload,
		Status:        string(msg.Status),
		CreatedAt:     msg.CreatedAt,
	})
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("enqueue outbox message: %w", err)
	}
	return msg, nil
}

func (r outboxRepository) PullPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = defaultOutboxBatch
	}

	var rows []outboxRow
	err := sqlx.SelectContext(ctx, r.q, &rows, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, status, created_at
		FROM outbox_messages
		WHERE status = 'pending'
		ORDER BY created_at, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("pull pending outbox messages: %w", err)
	}

	result := make([]domain.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

func (r outboxRepository) Stats(ctx context.Context) (domain.OutboxStats, error) {
	var row struct {
		Pending int          `db:"pending"`
		Oldest  sql.NullTime `db:"oldest"`
	}
	if err := sqlx.GetContext(ctx, r.q, &row, `
		SELECT COUNT(*) AS pending, MIN(created_at) AS oldest
		FROM outbox_messages
		WHERE status = 'pending'
	`); err != nil {
		return domain.OutboxStats{}, fmt.Errorf("outbox stats query failed: %w", err)
	}

	stats := domain.OutboxStats{PendingCount: row.Pending}
	if row.Oldest.Valid {
		stats.OldestPendingAt = row.Oldest.Time.UTC()
	}
	return stats, nil
}

func (r outboxRepository) MarkSent(ctx context.Context, id string) error {
	return r.markStatus(ctx, id, domain.OutboxStatusSent)
}

func (r outboxRepository) MarkFailed(ctx context.Context, id string) error {
	return r.markStatus(ctx, id, domain.OutboxStatusFailed)
}

func (r outboxRepository) markStatus(ctx context.Context, id string, status domain.OutboxStatus) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE outbox_messages
		SET status = $2,
		    attempt_count = attempt_count + 1,
		    updated_at = NOW()
		WHERE id = $1
	`, id, string(status))
	if err != nil {
		return fmt.Errorf("mark outbox message as %s: %w", status, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for outbox %s: %w", status, err)
	}
	if affected == 0 {
		return fmt.Errorf("outbox message %s: %w", id, domain.ErrOutboxPublish)
	}
	return nil
}

func (r outboxRepository) DeleteSentBefore(ctx context.Context, before time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultOutboxBatch
	}

	res, err := r.q.ExecContext(ctx, `
		DELETE FROM outbox_messages
		WHERE id IN (
			SELECT id
			FROM outbox_messages
			WHERE status = 'sent' AND created_at < $1
			ORDER BY created_at, id
			LIMIT $2
		)
	`, before.UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("delete sent outbox messages: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected for outbox cleanup: %w", err)
	}
	return int(affected), nil
}

var _ domain.OutboxRepository = outboxRepository{}
