package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/provstream/internal/store"
)

// StoreOptions selects the provenance store backend.
type StoreOptions struct {
	Database string // SQLite path
	Postgres string // PostgreSQL DSN
}

func (o *StoreOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Database, "db", "", "path to SQLite provenance database")
	cmd.Flags().StringVar(&o.Postgres, "postgres", "", "PostgreSQL DSN of a shared provenance store")
	cmd.MarkFlagsMutuallyExclusive("db", "postgres")
	cmd.MarkFlagsOneRequired("db", "postgres")
}

// open opens the selected store. Failures are command errors.
func (o *StoreOptions) open(ctx context.Context) (store.Provenance, error) {
	if o.Postgres != "" {
		st, err := store.OpenPostgres(ctx, o.Postgres)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open PostgreSQL store", err)
		}
		slog.Debug("store ready", "backend", st.Backend())
		return st, nil
	}
	st, err := store.Open(o.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	slog.Debug("store ready", "backend", st.Backend(), "path", o.Database)
	return st, nil
}

func closeStore(st store.Provenance) {
	if err := st.Close(); err != nil {
		slog.Error("error closing store", "error", err)
	}
}
