package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const defaultOutboxBatch = 100

// outboxRecord хранит сообщение и служебные поля для in-memory реализации.
type outboxRecord struct {
	msg      domain.OutboxMessage
	seq      int64
	attempts int
}

type outboxRepository struct {
	sc scope
}

// Enqueue сохраняет событие со статусом pending.
func (r outboxRepository) Enqueue(_ context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.Status = domain.OutboxStatusPending
	msg.CreatedAt = now()

	err := r.sc.write(func(st *state) error {
		st.outboxSeq++
		st.outbox[msg.ID] = outboxRecord{msg: msg, seq: st.outboxSeq}
		return nil
	})
	return msg, err
}

func pendingRecords(st *state) []outboxRecord {
	var pending []outboxRecord
	for _, rec := range st.outbox {
		if rec.msg.Status == domain.OutboxStatusPending {
			pending = append(pending, rec)
		}
	}
	slices.SortFunc(pending, func(a, b outboxRecord) int { return cmp.Compare(a.seq, b.seq) })
	return pending
}

// PullPending возвращает до limit сообщений pending в порядке постановки.
func (r outboxRepository) PullPending(_ context.Context, limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = defaultOutboxBatch
	}

	var result []domain.OutboxMessage
	err := r.sc.read(func(st *state) error {
		for _, rec := range pendingRecords(st) {
			if len(result) >= limit {
				break
			}
			result = append(result, rec.msg)
		}
		return nil
	})
	return result, err
}

func (r outboxRepository) Stats(_ context.Context) (domain.OutboxStats, error) {
	var stats domain.OutboxStats
	err := r.sc.read(func(st *state) error {
		pending := pendingRecords(st)
		stats.PendingCount = len(pending)
		if len(pending) > 0 {
			stats.OldestPendingAt = pending[0].msg.CreatedAt
		}
		return nil
	})
	return stats, err
}

func (r outboxRepository) MarkSent(_ context.Context, id string) error {
	return r.markStatus(id, domain.OutboxStatusSent)
}

func (r outboxRepository) MarkFailed(_ context.Context, id string) error {
	return r.markStatus(id, domain.OutboxStatusFailed)
}

func (r outboxRepository) markStatus(id string, status domain.OutboxStatus) error {
	return r.sc.write(func(st *state) error {
		rec, ok := st.outbox[id]
		if !ok {
			return fmt.Errorf("outbox message %s: %w", id, domain.ErrOutboxPublish)
		}
		rec.msg.Status = status
		rec.attempts++
		st.outbox[id] = rec
		return nil
	})
}

func (r outboxRepository) DeleteSentBefore(_ context.Context, before time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultOutboxBatch
	}

	deleted := 0
	err := r.sc.write(func(st *state) error {
		var sent []outboxRecord
		for _, rec := range st.outbox {
			if rec.msg.Status == domain.OutboxStatusSent && rec.msg.CreatedAt.Before(before) {
				sent = append(sent, rec)
			}
		}
		slices.SortFunc(sent, func(a, b outboxRecord) int { return cmp.Compare(a.seq, b.seq) })
		for _, rec := range sent {
			if deleted >= limit {
				break
			}
			delete(st.outbox, rec.msg.ID)
			deleted++
		}
		return nil
	})
	return deleted, err
}

// AllPending возвращает все сообщения pending (используется в тестах).
func (s *Store) AllPending() []domain.OutboxMessage {
	var msgs []domain.OutboxMessage
	_ = s.read(func(st *state) error {
		for _, rec := range pendingRecords(st) {
			msgs = append(msgs, rec.msg)
		}
		return nil
	})
	return msgs
}

var _ domain.OutboxRepository = outboxRepository{}
