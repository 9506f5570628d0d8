/*-------------------------------------------------------------------------
 *
 * LATS Admin - Backup and Maintenance Commands
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"lats-admin/internal/backup"
	"lats-admin/internal/cleanup"
	"lats-admin/internal/config"
	"lats-admin/internal/report"
	"lats-admin/internal/store"
)

func newBackupCmd(g *globalOptions) *cobra.Command {
	var (
		dest     string
		output   string
		pageSize int
	)
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export the customer table as a JSON array",
		Long: `backup pages through the customer table in a stable order and writes every
row as a JSON object. The file can be loaded again with restore.`,
		Example: `  lats-admin backup --dest sqlite:lats.db --output customers-backup.json`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, _, closeLog, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			defer closeLog()

			ctx := cmd.Context()
			st, err := store.Open(ctx, dest, cfg)
			if err != nil {
				return fatal(err)
			}
			defer st.Close()

			sc, ok := store.As[store.Scanner](st)
			if !ok {
				return fatal(errors.New("destination cannot be scanned"))
			}

			var w io.Writer = g.stdout
			var f *os.File
			if output != "" && output != "-" {
				f, err = os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
				if err != nil {
					return fatal(fmt.Errorf("failed to create backup file: %w", err))
				}
				w = f
			}

			n, err := backup.Export(ctx, sc, pageSize, w)
			if f != nil {
				if cerr := f.Close(); err == nil {
					err = cerr
				}
			}
			if err != nil {
				return &exitError{code: report.ExitFatal, err: fmt.Errorf("backup incomplete after %d rows: %w", n, err)}
			}
			if f != nil {
				fmt.Fprintf(g.stderr, "Backed up %d rows from %s to %s\n", n, cfg.Destination.Table, output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dest, "dest", "d", "", "Destination: postgres://..., sqlite:<path> or supabase (default: config)")
	cmd.Flags().String("table", "", "Table to export (overrides config)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().IntVar(&pageSize, "page-size", backup.DefaultPageSize, "Rows read per page")
	return cmd
}

func newDedupeNamesCmd(g *globalOptions) *cobra.Command {
	var (
		dest   string
		dryRun bool
		opts   cleanup.Options
	)
	cmd := &cobra.Command{
		Use:   "dedupe-names",
		Short: "Remove repeated tokens from stored customer names",
		Long: `dedupe-names rewrites names such as "Frank Juma Frank" or "John John Smith"
to "Frank Juma" and "John Smith". Use --dry-run to review the changes first;
legitimate double names like "Maria Maria" are changed too.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, _, closeLog, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			defer closeLog()

			ctx := cmd.Context()
			st, err := store.Open(ctx, dest, cfg)
			if err != nil {
				return fatal(err)
			}
			defer st.Close()

			opts.DryRun = dryRun
			opts.NameColumn = cfg.Destination.Columns.Name
			opts.IDColumn = cfg.Destination.IDColumn
			res, err := cleanup.Run(ctx, st, opts)
			renderCleanup(g.stdout, res)
			if err != nil {
				return fatal(err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dest, "dest", "d", "", "Destination: postgres://..., sqlite:<path> or supabase (default: config)")
	cmd.Flags().String("table", "", "Customer table (overrides config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show the changes without applying them")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", 1000, "Rows read per page")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 100, "Updates per transaction")
	cmd.Flags().IntVar(&opts.SampleSize, "samples", 10, "Changes to list, -1 for all")
	return cmd
}

func renderCleanup(w io.Writer, res cleanup.Result) {
	if len(res.Samples) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"ID", "Current name", "Cleaned name"})
		for _, c := range res.Samples {
			t.AppendRow(table.Row{c.ID, c.Old, c.New})
		}
		t.Render()
	}

	if res.DryRun {
		fmt.Fprintf(w, "Scanned %d customers, %d names would change (dry run)\n", res.Scanned, res.Changed)
		return
	}
	fmt.Fprintf(w, "Scanned %d customers, %d names changed, %d rows updated\n", res.Scanned, res.Changed, res.Updated)
}

func newConfigCheckCmd(g *globalOptions) *cobra.Command {
	var writeDefaults string
	cmd := &cobra.Command{
		Use:   "config-check",
		Short: "Validate and print the effective configuration",
		Long: `config-check loads the configuration file, .env files, environment and flags
in priority order, validates the result and prints it with secrets masked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			if writeDefaults != "" {
				if config.ConfigFileExists(writeDefaults) {
					return fatal(fmt.Errorf("%s already exists", writeDefaults))
				}
				if err := config.SaveConfig(writeDefaults, config.Defaults()); err != nil {
					return fatal(err)
				}
				fmt.Fprintf(g.stderr, "Default configuration written to %s\n", writeDefaults)
				return nil
			}

			cfg, _, closeLog, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			defer closeLog()

			source := g.configFile
			if !config.ConfigFileExists(source) {
				source = "(none, defaults and environment only)"
			}
			fmt.Fprintf(g.stdout, "# configuration file: %s\n", source)

			enc := yaml.NewEncoder(g.stdout)
			enc.SetIndent(2)
			if err := enc.Encode(cfg.Redacted()); err != nil {
				return fatal(fmt.Errorf("failed to print configuration: %w", err))
			}
			return enc.Close()
		},
	}
	cmd.Flags().StringVar(&writeDefaults, "write-defaults", "", "Write a configuration file holding the defaults and exit")
	return cmd
}
