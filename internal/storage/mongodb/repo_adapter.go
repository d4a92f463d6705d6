package mongodb

import (
	"context"

	"dbbench/internal/storage"
	mongoddl "dbbench/internal/storage/mongodb/ddl"
)

// open is a test hook that points to Open by default.
var open = Open

func init() {
	storage.Register(mongoddl.Kind, func(ctx context.Context, cfg storage.Config) (storage.Engine, error) {
		e, err := open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return e, nil
	})
}
