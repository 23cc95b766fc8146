// Команда migrate применяет, откатывает и показывает встроенные SQL-миграции storefront.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

const (
	defaultTimeout = 30 * time.Second
	envPostgresDSN = "STOREFRONT_POSTGRES_DSN"
)

var errMissingDSN = errors.New(envPostgresDSN + " (or --dsn) is required")

// migrationStore — операции postgres.Store, которые нужны командам.
type migrationStore interface {
	MigrateUp(ctx context.Context, steps int) error
	MigrateDown(ctx context.Context, steps int) error
	MigrationStatus(ctx context.Context) (postgres.MigrationState, error)
	Close() error
}

// openStore подменяется в тестах.
var openStore = func(ctx context.Context, dsn string) (migrationStore, error) {
	return postgres.Open(ctx, dsn)
}

type rootOptions struct {
	dsn     string
	timeout time.Duration
}

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		fail("%v", err)
	}
}

func newRootCommand(out io.Writer) *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "migrate",
		Short:         "manage storefront database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.PersistentFlags().StringVar(&opts.dsn, "dsn", "", "PostgreSQL DSN (fallback: "+envPostgresDSN+")")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", defaultTimeout, "overall timeout for the command")

	rootCmd.AddCommand(
		upCommand(opts),
		downCommand(opts),
		statusCommand(opts),
	)
	return rootCmd
}

func upCommand(opts *rootOptions) *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "up",
		Short: "apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, opts, func(ctx context.Context, store migrationStore) error {
				if err := store.MigrateUp(ctx, steps); err != nil {
					return fmt.Errorf("migrate up failed: %w", err)
				}
				return printStatus(ctx, cmd.OutOrStdout(), store, "migrate up ok")
			})
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 0, "number of migrations to apply (0 = all)")
	return cmd
}

func downCommand(opts *rootOptions) *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "down",
		Short: "roll back applied migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, opts, func(ctx context.Context, store migrationStore) error {
				if err := store.MigrateDown(ctx, steps); err != nil {
					return fmt.Errorf("migrate down failed: %w", err)
				}
				return printStatus(ctx, cmd.OutOrStdout(), store, "migrate down ok")
			})
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	return cmd
}

func statusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "show current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, opts, func(ctx context.Context, store migrationStore) error {
				return printStatus(ctx, cmd.OutOrStdout(), store, "migration status")
			})
		},
	}
}

// withStore открывает хранилище на время одной команды.
func withStore(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, store migrationStore) error) error {
	dsn := strings.TrimSpace(opts.dsn)
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv(envPostgresDSN))
	}
	if dsn == "" {
		return errMissingDSN
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	store, err := openStore(ctx, dsn)
	if err != nil {
		return fmt.Errorf("open postgres store: %w", err)
	}
	defer store.Close()

	return fn(ctx, store)
}

func printStatus(ctx context.Context, out io.Writer, store migrationStore, prefix string) error {
	state, err := store.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	_, err = fmt.Fprintf(out, "%s: version=%d applied=%d\n", prefix, state.Version, state.Applied)
	return err
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
