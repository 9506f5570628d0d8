/*-------------------------------------------------------------------------
 *
 * LATS Admin - Command Line Interface
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
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"lats-admin/internal/config"
	"lats-admin/internal/logging"
	"lats-admin/internal/report"
)

// globalOptions are the flags shared by every subcommand
type globalOptions struct {
	configFile     string
	envFiles       []string
	logLevel       string
	logFile        string
	passwordPrompt bool

	stdout io.Writer
	stderr io.Writer
	stdin  *os.File
}

// exitError carries a process exit code up through cobra
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// fatal marks a startup failure
func fatal(err error) error {
	return &exitError{code: report.ExitFatal, err: err}
}

func newRootCmd(g *globalOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "lats-admin",
		Short: "LATS CHANCE admin toolkit - contact import, backup and cleanup",
		Long: `lats-admin loads customer contacts from CSV, SMS Backup & Restore XML,
XLSX and JSON backups into the shop's customer table. Phones are normalized
to +<country code><subscriber> form, invalid records are rejected, and
existing customers are skipped, so every import can be safely re-run.

Exit codes: 0 success, 1 some records rejected or failed, 2 startup failure
or destination unreachable.`,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&g.configFile, "config", "c", config.GetDefaultConfigPath(),
		"Path to configuration file")
	root.PersistentFlags().StringSliceVar(&g.envFiles, "env-file", []string{".env"},
		"Environment files to load (missing files are skipped)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "",
		"Log level: debug, info, warn, error (overrides config)")
	root.PersistentFlags().StringVar(&g.logFile, "log-file", "",
		"Also append JSON logs to this file")
	root.PersistentFlags().BoolVar(&g.passwordPrompt, "password-prompt", false,
		"Prompt for the database password")

	root.AddCommand(
		newImportCmd(g),
		newRestoreCmd(g),
		newWatchCmd(g),
		newBackupCmd(g),
		newDedupeNamesCmd(g),
		newConfigCheckCmd(g),
	)
	return root
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code
func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g := &globalOptions{stdout: stdout, stderr: stderr, stdin: os.Stdin}
	root := newRootCmd(g)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return report.ExitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", ee.err)
		}
		return ee.code
	}
	// flag and argument errors
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return report.ExitFatal
}

// cliFlags collects the config overrides set on the command line. Only
// flags the user actually passed override the file and environment.
func (g *globalOptions) cliFlags(cmd *cobra.Command) (config.CLIFlags, error) {
	flags := cmd.Flags()
	cf := config.CLIFlags{
		ConfigFileSet: flags.Changed("config"),
		ConfigFile:    g.configFile,
		EnvFiles:      g.envFiles,
		LogLevel:      g.logLevel,
		LogLevelSet:   flags.Changed("log-level"),
		LogFile:       g.logFile,
		LogFileSet:    flags.Changed("log-file"),
	}

	if flags.Lookup("table") != nil && flags.Changed("table") {
		cf.Table, _ = flags.GetString("table")
		cf.TableSet = true
	}
	if flags.Lookup("batch-size") != nil && flags.Changed("batch-size") {
		cf.BatchSize, _ = flags.GetInt("batch-size")
		cf.BatchSizeSet = true
	}
	if flags.Lookup("lookup-batch-size") != nil && flags.Changed("lookup-batch-size") {
		cf.LookupBatchSize, _ = flags.GetInt("lookup-batch-size")
		cf.LookupBatchSizeSet = true
	}
	if flags.Lookup("concurrency") != nil && flags.Changed("concurrency") {
		cf.Concurrency, _ = flags.GetInt("concurrency")
		cf.ConcurrencySet = true
	}
	if flags.Lookup("batch-delay") != nil && flags.Changed("batch-delay") {
		cf.BatchDelay, _ = flags.GetDuration("batch-delay")
		cf.BatchDelaySet = true
	}
	if flags.Lookup("batch-timeout") != nil && flags.Changed("batch-timeout") {
		cf.BatchTimeout, _ = flags.GetDuration("batch-timeout")
		cf.BatchTimeoutSet = true
	}
	if flags.Lookup("dedupe-names") != nil && flags.Changed("dedupe-names") {
		cf.DedupeNames, _ = flags.GetBool("dedupe-names")
		cf.DedupeNamesSet = true
	}

	if g.passwordPrompt {
		password, err := g.promptPassword()
		if err != nil {
			return cf, err
		}
		cf.DBPassword = password
		cf.DBPassSet = true
	}
	return cf, nil
}

func (g *globalOptions) promptPassword() (string, error) {
	fd := int(g.stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("--password-prompt needs an interactive terminal")
	}
	fmt.Fprint(g.stderr, "Database password: ")
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(g.stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}

// loadConfig loads the configuration for cmd and sets up logging. The
// returned function closes the log file.
func (g *globalOptions) loadConfig(cmd *cobra.Command) (*config.Config, config.CLIFlags, func() error, error) {
	cf, err := g.cliFlags(cmd)
	if err != nil {
		return nil, cf, nil, fatal(err)
	}

	cfg, err := config.LoadConfig(g.configFile, cf)
	if err != nil {
		return nil, cf, nil, fatal(err)
	}

	closeLog, err := applyLogging(cfg)
	if err != nil {
		return nil, cf, nil, fatal(err)
	}
	return cfg, cf, closeLog, nil
}

// applyLogging sets the log level and destinations from cfg
func applyLogging(cfg *config.Config) (func() error, error) {
	if lvl, ok := logging.ParseLevel(cfg.Logging.Level); ok {
		logging.SetLevel(lvl)
	}
	return logging.Setup(cfg.Logging.File)
}
