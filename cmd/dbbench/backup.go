package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"dbbench/internal/backup"
	"dbbench/internal/config"
	"dbbench/internal/report"
	"dbbench/internal/schema"
	"dbbench/internal/storage"
)

// coordinator builds a backup coordinator for ec whose backups and restores
// hold the table lock.
func (c *cli) coordinator(ec config.Engine, eng storage.Engine) *backup.Coordinator {
	co := backup.New(ec.Name, eng, schema.People(), c.cfg.Backup.Dir)
	co.Lock = func(ctx context.Context, table, op string) (func(), error) {
		return c.lockTable(ctx, ec.Name, table, op)
	}
	return co
}

func (c *cli) backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup <engine> <table>",
		Short: "Back up a table with the engine's native dump",
		Long: "Count the table, write an engine-native artifact and a manifest (<artifact>.manifest.yaml) " +
			"recording the source row count and checksum.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, ec, err := c.openEngine(ctx, args[0])
			if err != nil {
				return err
			}
			defer closeEngine(ec.Name, eng)

			a, err := c.coordinator(ec, eng).Backup(ctx, args[1])
			if err != nil {
				return err
			}
			return report.RenderArtifact(cmd.OutOrStdout(), a)
		},
	}
	cmd.AddCommand(c.scheduleCmd())
	return cmd
}

func (c *cli) scheduleCmd() *cobra.Command {
	var (
		spec string
		keep int
	)
	cmd := &cobra.Command{
		Use:   "schedule <engine> <table>",
		Short: "Back up a table on a cron schedule until interrupted",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("cron") {
				spec = c.cfg.Backup.Cron
			}
			if !cmd.Flags().Changed("keep") {
				keep = c.cfg.Backup.Keep
			}
			if spec == "" {
				return errors.New("backup schedule needs --cron or backup.cron in the config")
			}

			ctx := cmd.Context()
			eng, ec, err := c.openEngine(ctx, args[0])
			if err != nil {
				return err
			}
			defer closeEngine(ec.Name, eng)
			return c.coordinator(ec, eng).Schedule(ctx, spec, args[1], keep)
		},
	}
	cmd.Flags().StringVar(&spec, "cron", "", `cron spec, e.g. "0 3 * * *" or "@daily"`)
	cmd.Flags().IntVar(&keep, "keep", 0, "artifacts to retain per table after each run (0 keeps all)")
	return cmd
}

func (c *cli) restoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <engine> <artifact> <newTable>",
		Short: "Restore an artifact into a new table and verify its row count",
		Long: "Restore into a table that must not exist yet; the live table is never overwritten. " +
			"<artifact> is the artifact path or its manifest. A row-count mismatch against the source at " +
			"backup time is reported as a warning and exits with status 5.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, ec, err := c.openEngine(ctx, args[0])
			if err != nil {
				return err
			}
			defer closeEngine(ec.Name, eng)

			rep, err := c.coordinator(ec, eng).Restore(ctx, args[1], args[2])
			if err != nil {
				return err
			}
			if err := report.RenderRestore(cmd.OutOrStdout(), rep); err != nil {
				return err
			}
			c.writeReport(cmd, "restore", ec.Name, rep)
			if w := rep.Verification(); w != nil {
				return w
			}
			return nil
		},
	}
}
