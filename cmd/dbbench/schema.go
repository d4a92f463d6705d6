package main

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"dbbench/internal/schema"
)

func (c *cli) schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect the logical schema and its per-engine DDL",
	}

	var table string
	emit := &cobra.Command{
		Use:   "emit <engine>",
		Short: "Print the DDL for an engine",
		Long: "Print the DDL the harness would apply. <engine> is either a configured engine name " +
			"or an engine kind such as postgres or mongodb.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, tbl := args[0], table
			if ec, err := c.cfg.Engine(args[0]); err == nil {
				kind, tbl = ec.Kind, tableFor(ec, table)
			} else if tbl == "" {
				tbl = defaultTable
			}
			ddl, err := schema.EmitDDL(kind, tbl, schema.People())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ddl.String())
			return nil
		},
	}
	emit.Flags().StringVar(&table, "table", "", "table or collection name (default: the engine's configured table)")

	kinds := &cobra.Command{
		Use:   "kinds",
		Short: "List engine kinds and their storage family",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t := tablewriter.NewWriter(cmd.OutOrStdout())
			t.Header("Kind", "Family")
			for _, k := range schema.Dialects() {
				d, _ := schema.LookupDialect(k)
				if err := t.Append([]string{k, string(d.Family())}); err != nil {
					return err
				}
			}
			return t.Render()
		},
	}

	cmd.AddCommand(emit, kinds)
	return cmd
}
