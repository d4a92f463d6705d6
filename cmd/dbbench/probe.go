package main

import (
	"github.com/spf13/cobra"

	"dbbench/internal/datasource/httpds"
	"dbbench/internal/probe"
	"dbbench/internal/report"
)

func (c *cli) probeCmd() *cobra.Command {
	var (
		rows  int
		limit int
	)
	cmd := &cobra.Command{
		Use:   "probe <engine> <csvPath>",
		Short: "Dry-run the head of a CSV through an engine's coercion rules",
		Long: "Read up to --rows records and coerce them as a load would, without touching any engine. " +
			"<engine> is a configured engine name or an engine kind.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := args[0]
			if ec, err := c.cfg.Engine(args[0]); err == nil {
				kind = ec.Kind
			}
			cfg := c.cfg.Load
			sum, err := probe.Run(cmd.Context(), probe.Options{
				Location:    args[1],
				Kind:        kind,
				Rows:        rows,
				SampleLimit: limit,
				Parser:      cfg.Parser,
				HTTP: httpds.Config{
					Timeout:    cfg.HTTP.Timeout,
					MaxRetries: cfg.HTTP.MaxRetries,
					UserAgent:  cfg.HTTP.UserAgent,
				},
			})
			if err != nil {
				return err
			}
			return report.RenderProbe(cmd.OutOrStdout(), sum)
		},
	}
	cmd.Flags().IntVar(&rows, "rows", probe.DefaultRows, "data rows to sample")
	cmd.Flags().IntVar(&limit, "sample-limit", 0, "failure samples to keep")
	return cmd
}
