package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMigrator_PostgresLifecycle(t *testing.T) {
	store := openRawPostgresStoreForIntegrationTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	require.NoError(t, store.MigrateDown(ctx, 100))
	state, err := store.MigrationStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, MigrationState{Version: 0, Applied: 0}, state)

	require.NoError(t, store.MigrateUp(ctx, 0))
	state, err = store.MigrationStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, MigrationState{Version: 4, Applied: 4}, state)

	// Повторный up ничего не меняет.
	require.NoError(t, store.MigrateUp(ctx, 0))
	state, err = store.MigrationStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, MigrationState{Version: 4, Applied: 4}, state)

	require.NoError(t, store.MigrateDown(ctx, 1))
	state, err = store.MigrationStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, MigrationState{Version: 3, Applied: 3}, state)

	require.NoError(t, store.MigrateUp(ctx, 1))
	state, err = store.MigrationStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, MigrationState{Version: 4, Applied: 4}, state)
}

func TestMigrator_NilStoreGuards(t *testing.T) {
	var nilStore *Store
	ctx := context.Background()

	require.ErrorIs(t, nilStore.MigrateUp(ctx, 0), errStoreNotInitialized)
	require.ErrorIs(t, nilStore.MigrateDown(ctx, 1), errStoreNotInitialized)
	_, err := nilStore.MigrationStatus(ctx)
	require.ErrorIs(t, err, errStoreNotInitialized)
}
