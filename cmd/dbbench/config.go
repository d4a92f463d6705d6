package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"dbbench/internal/config"
	"dbbench/internal/report"
	"dbbench/internal/storage"
)

var errInvalidConfig = errors.New("configuration has errors")

func (c *cli) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Check or print the harness configuration",
	}
	validate := &cobra.Command{
		Use:         "validate",
		Short:       "Lint the config file and exit non-zero on errors",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipValidation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			issues := config.ValidateHarness(c.cfg)
			out := cmd.OutOrStdout()
			if len(issues) > 0 {
				if err := report.RenderIssues(out, issues); err != nil {
					return err
				}
			}
			if config.HasErrors(issues) {
				return fmt.Errorf("%s: %w", c.configPath, errInvalidConfig)
			}
			fmt.Fprintf(out, "%s: ok (%d engines)\n", c.configPath, len(c.cfg.Engines))
			return nil
		},
	}
	show := &cobra.Command{
		Use:         "show",
		Short:       "Print the effective config with defaults and overrides applied",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipValidation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			h := c.cfg
			h.Engines = append([]config.Engine(nil), h.Engines...)
			for i := range h.Engines {
				h.Engines[i].DSN = storage.RedactDSN(h.Engines[i].DSN)
			}
			b, err := yaml.Marshal(h)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
	cmd.AddCommand(validate, show)
	return cmd
}
