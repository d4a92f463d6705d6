package main

import (
	"github.com/spf13/cobra"

	"dbbench/internal/datasource/httpds"
	"dbbench/internal/load"
	"dbbench/internal/report"
	"dbbench/internal/schema"
)

func (c *cli) loadCmd() *cobra.Command {
	var (
		table       string
		tolerance   string
		batchSize   int
		sampleLimit int
		recreate    bool
	)
	cmd := &cobra.Command{
		Use:   "load <engine> <csvPath>",
		Short: "Bulk load the CSV into an engine",
		Long: "Stream the CSV (a local path, optionally .gz or .zst, or an http(s) URL) into the engine in batches. " +
			"Rows that fail coercion are counted and sampled; the load aborts once they exceed the tolerance.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := c.cfg.Load

			tol := load.Tolerance{MaxFailures: cfg.MaxFailures, MaxRatio: cfg.MaxRatio}
			if tolerance != "" {
				var err error
				if tol, err = load.ParseTolerance(tolerance); err != nil {
					return err
				}
			}
			if batchSize <= 0 {
				batchSize = cfg.BatchSize
			}
			if sampleLimit < 0 {
				sampleLimit = cfg.SampleLimit
			}

			eng, ec, err := c.openEngine(ctx, args[0])
			if err != nil {
				return err
			}
			defer closeEngine(ec.Name, eng)

			tbl := tableFor(ec, table)
			release, err := c.lockTable(ctx, ec.Name, tbl, "load")
			if err != nil {
				return err
			}
			defer release()

			job := load.Job{
				Engine:   eng,
				Schema:   schema.People(),
				Location: args[1],
				Parser:   cfg.Parser,
				HTTP: httpds.Config{
					Timeout:    cfg.HTTP.Timeout,
					MaxRetries: cfg.HTTP.MaxRetries,
					UserAgent:  cfg.HTTP.UserAgent,
				},
				Recreate: recreate || cfg.Recreate,
				Options: load.Options{
					Engine:      ec.Name,
					Table:       tbl,
					BatchSize:   batchSize,
					Tolerance:   tol,
					SampleLimit: sampleLimit,
				},
			}
			rep, err := job.Run(ctx)
			if rep != nil {
				if rerr := report.RenderLoad(cmd.OutOrStdout(), rep); rerr != nil {
					return rerr
				}
				c.writeReport(cmd, "load", ec.Name, rep)
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&table, "table", "", "target table (default: the engine's configured table)")
	f.StringVar(&tolerance, "tolerance", "", `failed rows tolerated before aborting: a count ("25") or a percentage ("0.5%")`)
	f.IntVar(&batchSize, "batch-size", 0, "rows per ingest batch (default from config, 10000)")
	f.IntVar(&sampleLimit, "sample-limit", -1, "failure samples kept in the report (default from config, 10)")
	f.BoolVar(&recreate, "recreate", false, "drop and re-create the table before loading")
	return cmd
}
