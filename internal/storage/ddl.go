package storage

import (
	"context"
	"fmt"

	"dbbench/internal/schema"
)

// ApplyDDL emits the DDL registered for kind and executes each statement in
// order through x. Backends with SQL interfaces use it from EnsureTable.
func ApplyDDL(ctx context.Context, x Execer, kind, table string, s schema.LogicalSchema) error {
	d, err := schema.EmitDDL(kind, table, s)
	if err != nil {
		return err
	}
	for i, stmt := range d.Statements {
		if err := x.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply DDL statement %d/%d for %s: %w", i+1, len(d.Statements), table, err)
		}
	}
	return nil
}
