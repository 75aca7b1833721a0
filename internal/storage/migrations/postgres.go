package migrations

import (
	"context"
	"fmt"

	"solana-wallet-engine/internal/storage/postgres"
)

// RunPostgresMigrations applies the wallet schema. Every statement uses
// IF NOT EXISTS so reruns are no-ops.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := load(postgresFS, "postgres")
	if err != nil {
		return err
	}
	for _, m := range files {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
	}
	return nil
}
