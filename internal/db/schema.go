package db

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var Schema string

// InstallSchema creates any missing tables and indexes. Safe to run on every start.
func InstallSchema(ctx context.Context, q Querier) error {
	if _, err := q.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("install schema: %w", err)
	}
	return nil
}
