package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

const migrateTimeout = 30 * time.Second

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var (
		dsn   string
		steps int
	)

	open := func(ctx context.Context) (*postgres.Store, error) {
		if strings.TrimSpace(dsn) == "" {
			cfg, err := opts.loadConfig()
			if err != nil {
				return nil, err
			}
			dsn = cfg.Storage.Postgres.DSN
		}
		if strings.TrimSpace(dsn) == "" {
			return nil, errors.New("postgres dsn is required (--dsn or STOREFRONT_STORAGE__POSTGRES__DSN)")
		}
		store, err := postgres.Open(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	}

	run := func(direction string) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), migrateTimeout)
			defer cancel()

			store, err := open(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			switch direction {
			case "up":
				err = store.MigrateUp(ctx, steps)
			case "down":
				n := steps
				if n <= 0 {
					n = 1
				}
				err = store.MigrateDown(ctx, n)
			}
			if err != nil {
				return fmt.Errorf("migrate %s failed: %w", direction, err)
			}

			state, err := store.MigrationStatus(ctx)
			if err != nil {
				return fmt.Errorf("migration status failed: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "migrate %s ok: version=%d applied=%d pending=%d\n",
				direction, state.Version, state.Applied, len(state.Pending))
			for _, name := range state.Pending {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  pending %s\n", name)
			}
			return err
		}
	}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage PostgreSQL schema migrations",
	}
	cmd.PersistentFlags().StringVar(&dsn, "dsn", "", "PostgreSQL DSN (fallback: storage.postgres.dsn)")
	cmd.PersistentFlags().IntVar(&steps, "steps", 0, "Number of migrations to apply/rollback (0 = all for up, 1 for down)")

	cmd.AddCommand(
		&cobra.Command{Use: "up", Short: "Apply pending migrations", Args: cobra.NoArgs, RunE: run("up")},
		&cobra.Command{Use: "down", Short: "Roll back applied migrations", Args: cobra.NoArgs, RunE: run("down")},
		&cobra.Command{Use: "status", Short: "Show schema version", Args: cobra.NoArgs, RunE: run("status")},
	)
	return cmd
}
