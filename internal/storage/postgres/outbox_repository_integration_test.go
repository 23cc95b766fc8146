package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestOutboxRepository_PostgresFlow(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)
	ctx := context.Background()

	first, err := repo.Enqueue(ctx, domain.OutboxMessage{
		AggregateType: domain.AggregateOrder,
		AggregateID:   "1",
		EventType:     domain.EventOrderCreated,
		Payload:       []byte(`{"order_id":1}`),
	})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	second, err := repo.Enqueue(ctx, domain.OutboxMessage{
		ID:            "outbox-fixed-id",
		AggregateType: domain.AggregateOrder,
		AggregateID:   "1",
		EventType:     domain.EventOrderItemCreated,
		Payload:       []byte(`{"order_id":1,"item_id":1}`),
	})
	require.NoError(t, err)
	require.Equal(t, "outbox-fixed-id", second.ID)

	pending, err := repo.PullPending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, domain.EventOrderCreated, pending[0].EventType)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.PendingCount)
	require.False(t, stats.OldestPendingAt.IsZero())

	require.NoError(t, repo.MarkSent(ctx, first.ID))
	require.NoError(t, repo.MarkFailed(ctx, second.ID))
	require.ErrorIs(t, repo.MarkSent(ctx, "missing"), domain.ErrOutboxPublish)

	stats, err = repo.Stats(ctx)
	require.NoError(t, err)
	require.Zero(t, stats.PendingCount)
	require.True(t, stats.OldestPendingAt.IsZero())

	deleted, err := repo.DeleteSentBefore(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Equal(t, 1, deleted, "only sent messages are purged")
	require.ErrorIs(t, repo.MarkSent(ctx, first.ID), domain.ErrOutboxPublish)
}
