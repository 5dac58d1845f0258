// Package cli provides the command-line interface for pace.
// The same binary serves the viewer and inspects the configured database.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/canonica-labs/pace/internal/adapters/builtin"
	"github.com/canonica-labs/pace/internal/config"
	"github.com/canonica-labs/pace/internal/connection"
	"github.com/canonica-labs/pace/internal/errors"
	"github.com/canonica-labs/pace/internal/observability"
	"github.com/canonica-labs/pace/internal/viewer"
)

// Exit codes.
const (
	ExitSuccess    = 0
	ExitValidation = 1
	ExitAuth       = 2
	ExitDatabase   = 3
	ExitInternal   = 4
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// CLI holds the command-line interface state.
type CLI struct {
	rootCmd *cobra.Command
	cfg     *config.Config

	// Global flags
	configPath string
	envFile    string
	jsonOutput bool
	quiet      bool
	debug      bool
}

// New creates a new CLI instance.
func New() *CLI {
	cli := &CLI{}
	cli.rootCmd = cli.newRootCmd()
	return cli
}

// SetOutput redirects standard and error output.
func (c *CLI) SetOutput(out, errOut io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(errOut)
}

// SetArgs overrides os.Args for the next Execute.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// Execute runs the CLI and returns the process exit code.
func (c *CLI) Execute() int {
	return c.ExecuteContext(context.Background())
}

// ExecuteContext runs the CLI with ctx and returns the process exit code.
func (c *CLI) ExecuteContext(ctx context.Context) int {
	if err := c.rootCmd.ExecuteContext(ctx); err != nil {
		c.errorf("Error: %v\n", err)
		return exitCode(err)
	}
	return ExitSuccess
}

func exitCode(err error) int {
	switch errors.CodeOf(err) {
	case errors.CodeValidation:
		return ExitValidation
	case errors.CodeAuth:
		return ExitAuth
	case errors.CodeConnection, errors.CodeQuery:
		return ExitDatabase
	default:
		return ExitInternal
	}
}

func (c *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pace",
		Short: "PACE - Predictive Accessorial Cost Detection Engine",
		Long: `PACE is a login-gated, read-only viewer for the tables of one database.

It provides:
  • A browser dashboard listing base tables and previewing their rows
  • A JSON API over the same data
  • Diagnostics for the configured credentials

Database credentials are read from DB_DRIVER, DB_SERVER, DB_DATABASE,
DB_USERNAME and DB_PASSWORD (environment or .env).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initConfig()
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: ./config.yaml or ~/.pace/config.yaml)")
	cmd.PersistentFlags().StringVar(&c.envFile, "env-file", "", "dotenv file with DB_* credentials (default: ./.env)")
	cmd.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "machine-readable JSON output")
	cmd.PersistentFlags().BoolVar(&c.quiet, "quiet", false, "suppress non-essential output")
	cmd.PersistentFlags().BoolVar(&c.debug, "debug", false, "verbose debug logs")

	cmd.AddCommand(c.newServeCmd())
	cmd.AddCommand(c.newTablesCmd())
	cmd.AddCommand(c.newPreviewCmd())
	cmd.AddCommand(c.newDoctorCmd())
	cmd.AddCommand(c.newConfigCmd())
	cmd.AddCommand(c.newVersionCmd())

	return cmd
}

func (c *CLI) initConfig() error {
	cfg, err := config.Load(config.Options{
		ConfigPath: c.configPath,
		EnvFile:    c.envFile,
	})
	if err != nil {
		return err
	}
	c.cfg = cfg

	if c.debug {
		c.cfg.Logging.Level = "debug"
	}
	return nil
}

// logger builds the process logger from the logging config. One-shot
// commands log warnings only unless --debug is set.
func (c *CLI) logger(serving bool) (zerolog.Logger, error) {
	level := c.cfg.Logging.Level
	if !serving && !c.debug {
		level = "warn"
	}
	return observability.SetupLogger(level, c.cfg.Logging.Format, c.rootCmd.ErrOrStderr())
}

// newViewer wires the connection manager and viewer service from config.
func (c *CLI) newViewer(log zerolog.Logger, metrics *observability.Metrics, audit observability.AccessLogger) (*viewer.Service, error) {
	registry := builtin.NewRegistry()
	conns := connection.NewManager(
		connection.NewOpener(c.cfg.Database, registry),
		connection.WithLogger(log),
		connection.WithMetrics(metrics),
	)
	return viewer.New(conns, viewer.Options{
		Logger:    log,
		Metrics:   metrics,
		Audit:     audit,
		Snapshots: c.cfg.Cache.Snapshots,
	})
}

// Helper functions for output

func (c *CLI) printf(format string, args ...interface{}) {
	if !c.quiet {
		fmt.Fprintf(c.rootCmd.OutOrStdout(), format, args...)
	}
}

func (c *CLI) println(args ...interface{}) {
	if !c.quiet {
		fmt.Fprintln(c.rootCmd.OutOrStdout(), args...)
	}
}

func (c *CLI) errorf(format string, args ...interface{}) {
	fmt.Fprintf(c.rootCmd.ErrOrStderr(), format, args...)
}

func (c *CLI) debugf(format string, args ...interface{}) {
	if c.debug {
		fmt.Fprintf(c.rootCmd.ErrOrStderr(), "[DEBUG] "+format, args...)
	}
}

func (c *CLI) outputJSON(v interface{}) error {
	enc := json.NewEncoder(c.rootCmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// stdout is used by commands that render directly, such as tablewriter.
func (c *CLI) stdout() io.Writer {
	if c.quiet {
		return io.Discard
	}
	return c.rootCmd.OutOrStdout()
}
