package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dbbench/internal/benchmark"
	"dbbench/internal/report"
)

func (c *cli) benchmarkCmd() *cobra.Command {
	var (
		table      string
		cases      []string
		warmup     bool
		repeat     int
		concurrent bool
	)
	cmd := &cobra.Command{
		Use:   "benchmark <engine>...",
		Short: "Run the benchmark cases against one or more engines",
		Long: "Run every selected case on every engine, in the order given, and print a comparison table " +
			"with the fastest engine per case. Warm runs (--warmup) execute each query once untimed first; " +
			"warm and cold runs are reported separately.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := c.cfg.Benchmark
			flags := cmd.Flags()

			opt := benchmark.Options{
				Warmup:            cfg.Warmup,
				Repeat:            cfg.Repeat,
				ConcurrentEngines: cfg.ConcurrentEngines,
				CaseTimeout:       cfg.CaseTimeout,
			}
			if flags.Changed("warmup") {
				opt.Warmup = warmup
			}
			if flags.Changed("repeat") {
				opt.Repeat = repeat
			}
			if flags.Changed("concurrent-engines") {
				opt.ConcurrentEngines = concurrent
			}
			if !flags.Changed("cases") {
				cases = cfg.Cases
			}
			cs, err := benchmark.Select(cases)
			if err != nil {
				return err
			}

			var (
				targets []benchmark.Target
				refs    []tableRef
				seen    = map[string]bool{}
			)
			for _, name := range args {
				if seen[name] {
					return fmt.Errorf("engine %q listed twice", name)
				}
				seen[name] = true

				eng, ec, err := c.openEngine(ctx, name)
				if err != nil {
					closeTargets(targets)
					return err
				}
				tbl := tableFor(ec, table)
				targets = append(targets, benchmark.Target{Name: ec.Name, Engine: eng, Table: tbl})
				refs = append(refs, tableRef{ec.Name, tbl})
			}
			defer closeTargets(targets)

			release, err := c.lockTables(ctx, refs, "benchmark")
			if err != nil {
				return err
			}
			defer release()

			ct, err := benchmark.Run(ctx, cs, targets, opt)
			if ct != nil {
				if rerr := report.RenderComparison(cmd.OutOrStdout(), ct); rerr != nil {
					return rerr
				}
				c.writeReport(cmd, "benchmark", strings.Join(args, "_"), ct)
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&table, "table", "", "table to query on every engine (default: each engine's configured table)")
	f.StringSliceVar(&cases, "cases", nil, "case ids to run (default: all)")
	f.BoolVar(&warmup, "warmup", false, "run each query once untimed before measuring")
	f.IntVar(&repeat, "repeat", 1, "timed runs per case and engine; the median is recorded")
	f.BoolVar(&concurrent, "concurrent-engines", false, "benchmark different engines in parallel")
	return cmd
}

func closeTargets(ts []benchmark.Target) {
	for _, t := range ts {
		closeEngine(t.Name, t.Engine)
	}
}
