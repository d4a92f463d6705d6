package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"dbbench/internal/config"
	"dbbench/internal/lock"
	"dbbench/internal/report"
	"dbbench/internal/storage"
)

// defaultTable is used when neither the config nor --table names one.
const defaultTable = "people"

// cli holds global flags and the state built from them before a subcommand
// runs.
type cli struct {
	configPath     string
	logLevel       string
	logFormat      string
	metricsBackend string
	reportDir      string
	reportFormat   string

	cfg     config.Harness
	reports *report.Writer
	locks   *lock.Manager
	flush   func()
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dbbench",
		Short: "Load, benchmark and back up one dataset across database engines",
		Long: "dbbench loads a fixed-shape CSV into row, columnar and document engines, " +
			"runs a battery of benchmark queries against them, and backs up and restores the loaded tables.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", config.DefaultPath, "harness config file (YAML)")
	pf.StringVar(&c.logLevel, "log.level", "", "log level (trace, debug, info, warn, error)")
	pf.StringVar(&c.logFormat, "log.format", "", "log format (text, json, color)")
	pf.StringVar(&c.metricsBackend, "metrics-backend", "", "metrics backend (none, prom, datadog)")
	pf.StringVar(&c.reportDir, "report-dir", "", "directory for run reports")
	pf.StringVar(&c.reportFormat, "report-format", "", "report format (yaml, json)")

	root.AddCommand(
		c.schemaCmd(),
		c.probeCmd(),
		c.loadCmd(),
		c.benchmarkCmd(),
		c.backupCmd(),
		c.restoreCmd(),
		c.configCmd(),
	)
	return root
}

// setup loads the config, applies flag overrides and initializes logging,
// reports, locks and metrics.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	override(&cfg.Log.Level, c.logLevel)
	override(&cfg.Log.Format, c.logFormat)
	override(&cfg.Metrics.Backend, c.metricsBackend)
	override(&cfg.Reports.Dir, c.reportDir)
	override(&cfg.Reports.Format, c.reportFormat)
	c.cfg = cfg

	// config subcommands report issues themselves.
	if cmd.Annotations[skipValidation] != "" {
		_ = InitLog(cfg.Log)
		return nil
	}
	if err := InitLog(cfg.Log); err != nil {
		return err
	}
	if err := configErrors(c.configPath, config.ValidateHarness(cfg)); err != nil {
		return err
	}
	if c.reports, err = report.NewWriter(cfg.Reports.Dir, cfg.Reports.Format); err != nil {
		return err
	}
	c.locks = lock.New(cfg.Lock.Dir, cfg.Lock.Timeout).Identify(engineIdentity(cfg))
	c.flush = setupMetrics(cfg.Metrics)
	return nil
}

func (c *cli) shutdown() {
	if c.flush != nil {
		c.flush()
	}
}

const skipValidation = "dbbench/skip-validation"

func configErrors(path string, issues []config.Issue) error {
	var errs []error
	for _, i := range issues {
		if i.Severity == config.SeverityError {
			errs = append(errs, i)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid config %s: %w", path, errors.Join(errs...))
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// openEngine connects to the engine configured under name.
func (c *cli) openEngine(ctx context.Context, name string) (storage.Engine, config.Engine, error) {
	ec, err := c.cfg.Engine(name)
	if err != nil {
		return nil, config.Engine{}, err
	}
	eng, err := storage.New(ctx, storage.Config{
		Kind:     ec.Kind,
		Name:     ec.Name,
		DSN:      ec.DSN,
		Database: ec.Database,
		Options:  ec.Options,
	})
	if err != nil {
		return nil, ec, err
	}
	log.WithFields(log.Fields{"engine": ec.Name, "kind": ec.Kind, "dsn": storage.RedactDSN(ec.DSN)}).Debug("engine connected")
	return eng, ec, nil
}

func closeEngine(name string, eng storage.Engine) {
	if err := eng.Close(); err != nil {
		log.WithField("engine", name).WithError(err).Warn("closing engine")
	}
}

// tableFor picks the --table flag, then the engine's configured table.
func tableFor(ec config.Engine, flag string) string {
	switch {
	case flag != "":
		return flag
	case ec.Table != "":
		return ec.Table
	}
	return defaultTable
}

// lockTable takes the exclusive lock for (engine, table) and returns its
// release.
func (c *cli) lockTable(ctx context.Context, engine, table, op string) (func(), error) {
	l, err := c.locks.Acquire(ctx, engine, table, op)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := l.Release(); err != nil {
			log.WithFields(log.Fields{"engine": engine, "table": table}).WithError(err).Warn("releasing table lock")
		}
	}, nil
}

// engineIdentity resolves a configured engine name to kind, redacted DSN and
// database, so aliases of one database share table locks. SQLite paths are
// made absolute; other DSNs are compared as written.
func engineIdentity(cfg config.Harness) func(string) string {
	return func(name string) string {
		ec, err := cfg.Engine(name)
		if err != nil {
			return ""
		}
		dsn := ec.DSN
		if ec.Kind == "sqlite" && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if abs, err := filepath.Abs(dsn); err == nil {
				dsn = abs
			}
		}
		return ec.Kind + " " + storage.RedactDSN(dsn) + " " + ec.Database
	}
}

type tableRef struct{ engine, table string }

// lockTables takes every lock in a stable order so concurrent runs over
// overlapping engine sets cannot deadlock. On error nothing stays held.
func (c *cli) lockTables(ctx context.Context, refs []tableRef, op string) (func(), error) {
	sorted := append([]tableRef(nil), refs...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].engine != sorted[j].engine {
			return sorted[i].engine < sorted[j].engine
		}
		return sorted[i].table < sorted[j].table
	})
	var releases []func()
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, r := range sorted {
		release, err := c.lockTable(ctx, r.engine, r.table, op)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}

// writeReport persists v and tells the user where it went.
func (c *cli) writeReport(cmd *cobra.Command, kind, name string, v any) {
	path, err := c.reports.Write(kind, name, v)
	if err != nil {
		log.WithError(err).Error("writing report")
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "report: %s\n", path)
}
