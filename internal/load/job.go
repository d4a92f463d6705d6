package load

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"dbbench/internal/coerce"
	"dbbench/internal/config"
	"dbbench/internal/datasource"
	"dbbench/internal/datasource/httpds"
	"dbbench/internal/parser/csv"
	"dbbench/internal/schema"
	"dbbench/internal/storage"
)

// Job is a complete load: open the source, prepare the table, stream.
type Job struct {
	Engine   storage.Engine
	Schema   schema.LogicalSchema
	Location string
	// Parser holds CSV reader options.
	Parser config.Options
	HTTP   httpds.Config
	// Recreate drops the table before creating it.
	Recreate bool
	Options  Options
}

// Run executes the job. Setup failures (source, header, DDL) return a nil
// report; once streaming starts the report is always returned.
func (j Job) Run(ctx context.Context) (*Report, error) {
	plan, err := coerce.Compile(j.Schema, j.Engine.Kind())
	if err != nil {
		return nil, err
	}
	rc, err := datasource.Open(ctx, j.Location, j.HTTP)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer rc.Close()

	src, err := csv.NewReader(rc, plan.Columns(), j.Parser)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", j.Location, err)
	}

	table := j.Options.Table
	if j.Recreate {
		log.WithFields(log.Fields{"engine": j.Options.Engine, "table": table}).Info("dropping table before load")
		if err := j.Engine.DropTable(ctx, table); err != nil {
			return nil, fmt.Errorf("drop %s: %w", table, err)
		}
	}
	if err := j.Engine.EnsureTable(ctx, table, j.Schema); err != nil {
		return nil, fmt.Errorf("ensure %s: %w", table, err)
	}

	opt := j.Options
	if opt.Source == "" {
		opt.Source = j.Location
	}
	return Run(ctx, src, plan, j.Engine, opt)
}
