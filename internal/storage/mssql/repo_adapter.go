package mssql

import (
	"context"

	"dbbench/internal/storage"
	msddl "dbbench/internal/storage/mssql/ddl"
)

// open is a test hook that points to Open by default. Tests may replace it
// to avoid real DB connections.
var open = Open

func init() {
	storage.Register(msddl.Kind, func(ctx context.Context, cfg storage.Config) (storage.Engine, error) {
		e, err := open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return e, nil
	})
}
