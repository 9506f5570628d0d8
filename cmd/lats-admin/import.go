/*-------------------------------------------------------------------------
 *
 * LATS Admin - Import Commands
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"lats-admin/internal/config"
	"lats-admin/internal/logging"
	"lats-admin/internal/pipeline"
	"lats-admin/internal/report"
	"lats-admin/internal/source"
	"lats-admin/internal/store"
	"lats-admin/internal/tsv"
	"lats-admin/internal/watch"
)

// importOptions are the flags of import, restore and watch
type importOptions struct {
	source    string
	format    string
	dest      string
	encoding  string
	delimiter string
	sheet     string
	sourceTag string
	dryRun    bool
	report    string
	rejects   string
}

func addImportFlags(cmd *cobra.Command, o *importOptions, withFormat bool) {
	f := cmd.Flags()
	f.StringVarP(&o.source, "source", "s", "", "Source file to import (required)")
	if withFormat {
		f.StringVarP(&o.format, "format", "f", "", "Source format: csv, xml, xlsx or json (default: from extension)")
	}
	f.StringVarP(&o.dest, "dest", "d", "", "Destination: postgres://..., sqlite:<path> or supabase (default: config)")
	f.String("table", "", "Destination table (overrides config)")
	f.Int("batch-size", 0, "Records per insert batch (default 50)")
	f.Int("lookup-batch-size", 0, "Keys per existence lookup (default 500)")
	f.Int("concurrency", 0, "Batches in flight (default 1)")
	f.Duration("batch-delay", 0, "Minimum spacing between batch starts, 0 disables pacing (default 100ms)")
	f.Duration("batch-timeout", 0, "Upper bound for one batch write (default 30s)")
	f.Bool("dedupe-names", false, "Collapse repeated name tokens, e.g. \"Frank Juma Frank\"")
	f.BoolVar(&o.dryRun, "dry-run", false, "Read, validate and check duplicates without writing")
	f.StringVar(&o.encoding, "encoding", "", "Source text encoding: utf-8, utf-16, windows-1252, latin1")
	f.StringVar(&o.delimiter, "delimiter", "", "CSV field separator (default ',')")
	f.StringVar(&o.sheet, "sheet", "", "XLSX sheet name (default: first sheet)")
	f.StringVar(&o.sourceTag, "source-tag", "", "Value stored in the source column for records without one")
	f.StringVar(&o.report, "report", "", "Write the JSON report to this file ('-' for stdout)")
	f.StringVar(&o.rejects, "rejects", "", "Write rejected and unwritten records to this TSV file")
	_ = cmd.MarkFlagRequired("source")
}

func newImportCmd(g *globalOptions) *cobra.Command {
	o := &importOptions{}
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import contacts from a CSV, XML, XLSX or JSON file",
		Example: `  lats-admin import --source customers.csv --dest sqlite:lats.db
  lats-admin import -s sms-20250301.xml --dry-run --report report.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return g.runImport(cmd, o)
		},
	}
	addImportFlags(cmd, o, true)
	return cmd
}

func newRestoreCmd(g *globalOptions) *cobra.Command {
	o := &importOptions{format: string(source.FormatJSON)}
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore customers from a JSON backup written by the backup command",
		Long: `restore imports a JSON backup through the normal import pipeline. Customers
that already exist are skipped, so a restore can be repeated safely.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return g.runImport(cmd, o)
		},
	}
	addImportFlags(cmd, o, false)
	return cmd
}

// openSource validates the source flags and opens the file
func (o *importOptions) openSource() (source.Source, error) {
	format, err := source.ParseFormat(o.format)
	if err != nil {
		return nil, err
	}

	opts := source.Options{Encoding: o.encoding, Sheet: o.sheet}
	if o.delimiter != "" {
		d := o.delimiter
		if d == `\t` {
			d = "\t"
		}
		r, size := utf8.DecodeRuneInString(d)
		if size != len(d) {
			return nil, fmt.Errorf("--delimiter must be a single character, got %q", o.delimiter)
		}
		opts.Delimiter = r
	}
	return source.Open(o.source, format, opts)
}

// pipelineOptions maps the config and flags to pipeline options
func (o *importOptions) pipelineOptions(cfg *config.Config) pipeline.Options {
	opts := pipeline.OptionsFromConfig(cfg)
	opts.DryRun = o.dryRun
	opts.Source = o.sourceTag
	opts.Destination = describeDest(o.dest, cfg)
	return opts
}

// describeDest names the destination without credentials
func describeDest(dest string, cfg *config.Config) string {
	if dest == "" {
		dest = cfg.Database.BuildConnectionString()
	}
	if dest == "supabase" {
		return "supabase " + cfg.Supabase.URL
	}
	redacted := config.Config{Database: config.DatabaseConfig{ConnectionString: dest}}
	return redacted.Redacted().Database.ConnectionString
}

func (g *globalOptions) runImport(cmd *cobra.Command, o *importOptions) error {
	cfg, _, closeLog, err := g.loadConfig(cmd)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx := cmd.Context()

	src, err := o.openSource()
	if err != nil {
		return fatal(err)
	}
	defer src.Close()

	st, err := store.Open(ctx, o.dest, cfg)
	if err != nil {
		return fatal(err)
	}
	defer st.Close()

	rep, err := g.importOnce(ctx, st, src, o, o.pipelineOptions(cfg))
	if rep == nil {
		return fatal(err)
	}
	if code := rep.ExitCode(); code != report.ExitOK {
		return &exitError{code: code, err: err}
	}
	return nil
}

// importOnce runs the pipeline on an open source and writes the report and
// rejects outputs. The report is nil only when an output could not be
// opened.
func (g *globalOptions) importOnce(ctx context.Context, st store.Store, src source.Source,
	o *importOptions, opts pipeline.Options) (*report.RunReport, error) {
	p := pipeline.New(st, opts)

	var rejects *tsv.Writer
	if o.rejects != "" {
		w, err := tsv.Create(o.rejects)
		if err != nil {
			return nil, err
		}
		rejects = w
		p.WithRejectSink(rejects)
	}

	rep, runErr := p.Run(ctx, src)

	if rejects != nil {
		if err := rejects.Close(); err != nil {
			logging.Error("failed to write rejects file", "path", o.rejects, "error", err)
		} else if n := rejects.Count(); n > 0 {
			fmt.Fprintf(g.stderr, "%d rejected or unwritten records written to %s\n", n, o.rejects)
		}
	}

	if err := g.writeReport(rep, o.report); err != nil {
		logging.Error("failed to write report", "path", o.report, "error", err)
	}
	return rep, runErr
}

// writeReport prints the table and, when requested, the JSON report.
// With --report - the JSON goes to stdout and the table to stderr.
func (g *globalOptions) writeReport(rep *report.RunReport, path string) error {
	switch path {
	case "":
		rep.Render(g.stdout)
		return nil
	case "-":
		rep.Render(g.stderr)
		return rep.WriteJSON(g.stdout)
	}

	rep.Render(g.stdout)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if err := rep.WriteJSON(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func newWatchCmd(g *globalOptions) *cobra.Command {
	o := &importOptions{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Import a drop file every time it changes",
		Long: `watch imports the source once, then again whenever the file is written or
replaced, until interrupted. Re-importing is safe because existing customers
are skipped. Changes to the configuration file are picked up between runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return g.runWatch(cmd, o)
		},
	}
	addImportFlags(cmd, o, true)
	return cmd
}

func (g *globalOptions) runWatch(cmd *cobra.Command, o *importOptions) error {
	cfg, cf, closeLog, err := g.loadConfig(cmd)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx := cmd.Context()
	rc := config.NewReloadableConfig(cfg, g.configFile, cf)
	rc.OnReload(func(c *config.Config) {
		if lvl, ok := logging.ParseLevel(c.Logging.Level); ok {
			logging.SetLevel(lvl)
		}
	})

	st, err := store.Open(ctx, o.dest, cfg)
	if err != nil {
		return fatal(err)
	}
	defer st.Close()

	importFile := func() error {
		if ctx.Err() != nil {
			return nil
		}
		src, err := o.openSource()
		if errors.Is(err, source.ErrSourceNotFound) {
			// moved away between the event and the run
			logging.Info("source not present, waiting for next change", "path", o.source)
			return nil
		}
		if err != nil {
			return err
		}
		defer src.Close()

		_, err = g.importOnce(ctx, st, src, o, o.pipelineOptions(rc.Get()))
		return err
	}

	if err := importFile(); err != nil {
		logging.Error("initial import failed", "path", o.source, "error", err)
		if errors.Is(err, store.ErrDestinationUnreachable) {
			return fatal(err)
		}
	}

	w, err := watch.NewFileWatcher(o.source, importFile)
	if err != nil {
		return fatal(err)
	}
	if config.ConfigFileExists(g.configFile) {
		if err := w.Add(g.configFile, rc.Reload); err != nil {
			logging.Warn("not watching configuration file", "path", g.configFile, "error", err)
		}
	}
	w.Start()
	defer w.Stop()

	fmt.Fprintf(g.stderr, "Watching %s (Ctrl+C to stop)\n", o.source)
	<-ctx.Done()
	return nil
}
