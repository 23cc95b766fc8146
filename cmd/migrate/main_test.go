package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

type fakeStore struct {
	state    postgres.MigrationState
	upSteps  []int
	down     []int
	upErr    error
	closed   bool
	openedAt string
}

func (s *fakeStore) MigrateUp(_ context.Context, steps int) error {
	s.upSteps = append(s.upSteps, steps)
	if s.upErr != nil {
		return s.upErr
	}
	s.state = postgres.MigrationState{Version: 3, Applied: 3}
	return nil
}

func (s *fakeStore) MigrateDown(_ context.Context, steps int) error {
	s.down = append(s.down, steps)
	s.state.Version -= int64(steps)
	s.state.Applied -= steps
	return nil
}

func (s *fakeStore) MigrationStatus(context.Context) (postgres.MigrationState, error) {
	return s.state, nil
}

func (s *fakeStore) Close() error {
	s.closed = true
	return nil
}

func useFakeStore(t *testing.T, store *fakeStore) {
	t.Helper()
	previous := openStore
	openStore = func(_ context.Context, dsn string) (migrationStore, error) {
		store.openedAt = dsn
		return store, nil
	}
	t.Cleanup(func() { openStore = previous })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestUpAppliesAllAndPrintsStatus(t *testing.T) {
	store := &fakeStore{}
	useFakeStore(t, store)

	out, err := execute(t, "up", "--dsn", "postgres://local/storefront")
	require.NoError(t, err)

	assert.Equal(t, []int{0}, store.upSteps)
	assert.Equal(t, "postgres://local/storefront", store.openedAt)
	assert.True(t, store.closed)
	assert.Equal(t, "migrate up ok: version=3 applied=3\n", out)
}

func TestDownDefaultsToOneStep(t *testing.T) {
	store := &fakeStore{state: postgres.MigrationState{Version: 3, Applied: 3}}
	useFakeStore(t, store)

	out, err := execute(t, "down", "--dsn", "postgres://local/storefront")
	require.NoError(t, err)

	assert.Equal(t, []int{1}, store.down)
	assert.Contains(t, out, "version=2 applied=2")
}

func TestStatusUsesEnvironmentDSN(t *testing.T) {
	store := &fakeStore{state: postgres.MigrationState{Version: 1, Applied: 1}}
	useFakeStore(t, store)
	t.Setenv(envPostgresDSN, " postgres://env/storefront ")

	out, err := execute(t, "status")
	require.NoError(t, err)

	assert.Equal(t, "postgres://env/storefront", store.openedAt)
	assert.Equal(t, "migration status: version=1 applied=1\n", out)
}

func TestMissingDSN(t *testing.T) {
	useFakeStore(t, &fakeStore{})
	t.Setenv(envPostgresDSN, "")

	_, err := execute(t, "status")
	require.ErrorIs(t, err, errMissingDSN)
}

func TestUpErrorIsWrapped(t *testing.T) {
	store := &fakeStore{upErr: errors.New("syntax error")}
	useFakeStore(t, store)

	_, err := execute(t, "up", "--steps", "2", "--dsn", "postgres://local/storefront")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "migrate up failed"))
	assert.Equal(t, []int{2}, store.upSteps)
	assert.True(t, store.closed)
}

func TestUnknownCommand(t *testing.T) {
	_, err := execute(t, "sideways")
	require.Error(t, err)
}

func TestFailExits(t *testing.T) {
	if os.Getenv("MIGRATE_TEST_FAIL_EXIT") == "1" {
		fail("forced failure %d", 42)
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestFailExits")
	cmd.Env = append(os.Environ(), "MIGRATE_TEST_FAIL_EXIT=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected subprocess to exit with error")
	}
	if exitErr, ok := err.(*exec.ExitError); !ok || exitErr.ExitCode() == 0 {
		t.Fatalf("expected non-zero exit code, got %v", err)
	}
}

func TestMigrateAgainstPostgres(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("STOREFRONT_POSTGRES_TEST_DSN"))
	if dsn == "" {
		t.Skip("postgres dsn is not available")
	}

	if _, err := execute(t, "status", "--dsn", dsn); err != nil {
		t.Skipf("postgres is not reachable: %v", err)
	}
	_, err := execute(t, "up", "--dsn", dsn)
	require.NoError(t, err)
	out, err := execute(t, "status", "--dsn", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, "migration status")
}
