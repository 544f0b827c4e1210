package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/willibrandon/dbprobe/internal/config"
	"github.com/willibrandon/dbprobe/internal/db"
	"github.com/willibrandon/dbprobe/internal/logger"
	"github.com/willibrandon/dbprobe/internal/monitors"
	"github.com/willibrandon/dbprobe/internal/storage/sqlite"
)

// Version info (set by ldflags)
var version = "dev"

// Exit codes
const (
	ExitSuccess     = 0
	ExitProbeFailed = 1 // operational failure with --strict
	ExitProbeError  = 2 // non-operational error escaped the probe
	ExitConfigError = 3
)

// exitError carries a process exit code out of a cobra RunE.
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

// rootOptions holds flags that are not configuration keys.
type rootOptions struct {
	configPath string
	envFile    string
	jsonOutput bool
}

func (o *rootOptions) load(cmd *cobra.Command, skipValidation bool) (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{
		ConfigPath:     o.configPath,
		EnvFile:        o.envFile,
		Flags:          cmd.Flags(),
		SkipValidation: skipValidation,
	})
	if err != nil {
		return nil, &exitError{code: ExitConfigError, err: err}
	}
	return cfg, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the CLI with args and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", ee.err)
		}
		return ee.code
	}

	// Flag parsing and unknown commands
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return ExitConfigError
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "dbprobe",
		Short: "Check that a database accepts connections",
		Long: `dbprobe opens one connection to a database, runs a validation query
(SELECT 1 by default), prints the result and closes the connection.

Connection failures are reported and the command exits 0 unless --strict
is set. Errors that are not connection problems, such as invalid SQL,
exit 2.

Configuration is read from ~/.config/dbprobe/config.yaml, DBPROBE_*
environment variables and flags, in increasing order of precedence.

Examples:
  dbprobe --driver mysql --host 127.0.0.1 --user root --database demo_bot
  dbprobe --driver sqlite --database ./app.db --count 5 --interval 500ms
  dbprobe history --graph`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd, false)
			if err != nil {
				return err
			}
			return runProbe(cmd.Context(), cmd, cfg, opts)
		},
	}

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file path (default ~/.config/dbprobe/config.yaml)")
	pf.StringVar(&opts.envFile, "env-file", "", "load environment variables from a dotenv file")
	pf.Bool("debug", false, "enable debug logging")

	// Connection and probe settings, inherited by `config`
	pf.String("driver", config.DriverPostgres, "database driver: "+strings.Join(db.DriverNames(), ", "))
	pf.String("host", "localhost", "database host")
	pf.String("port", "", "database port (default 5432 for postgres, 3306 for mysql)")
	pf.StringP("user", "u", "", "database user")
	pf.StringP("database", "d", "", "database name, or file path for sqlite")
	pf.String("password-command", "", "command whose output is the password")
	pf.String("sslmode", "prefer", "disable, allow, prefer, require, verify-ca or verify-full")
	pf.Duration("connect-timeout", 0, "connection timeout (0 uses the driver default)")
	pf.StringP("query", "q", config.DefaultQuery, "validation query")
	pf.IntP("count", "c", 1, "number of probes to run")
	pf.Duration("interval", time.Second, "delay between probes")
	pf.Bool("strict", false, "exit 1 when a probe fails to connect")
	pf.Bool("record", false, "record probes in the history database")
	rootCmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "print one JSON object per probe")

	rootCmd.AddCommand(
		newHistoryCmd(opts),
		newConfigCmd(opts),
	)

	return rootCmd
}

// runProbe runs the configured number of probes and maps the outcome to an
// exit code.
func runProbe(ctx context.Context, cmd *cobra.Command, cfg *config.Config, opts *rootOptions) error {
	level, _ := logger.ParseLevel(cfg.Log.Level)
	if cfg.Debug {
		level = logger.LevelDebug
	}
	logger.InitLogger(level, cfg.Log.Path)
	defer logger.Close()

	password, err := db.ResolvePassword(cfg.Connection)
	if err != nil {
		return &exitError{code: ExitProbeError, err: err}
	}

	target := db.TargetFromConfig(cfg.Connection, password)
	prober := db.NewProber(target, db.WithQuery(cfg.Probe.Query))
	logger.Debug("Probe configured",
		"target", target.Redacted(),
		"count", cfg.Probe.Count,
		"interval", cfg.Probe.Interval,
		"strict", cfg.Probe.Strict,
	)

	var history *sqlite.HistoryStore
	if cfg.History.Enabled {
		store, err := sqlite.Open(ctx, cfg.History.Path)
		if err != nil {
			// The probe still runs without history
			logger.Warn("Failed to open history database", "path", cfg.History.Path, "error", err)
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: history disabled: %v\n", err)
		} else {
			defer store.Close()
			history = sqlite.NewHistoryStore(store)
		}
	}

	out := newPrinter(cmd.OutOrStdout(), opts.jsonOutput)
	monitor := monitors.NewProbeMonitor(prober, cfg.Probe.Count, cfg.Probe.Interval)
	failed := false
	var runErr error

	monitor.Run(ctx, func(res *db.Result, err error) bool {
		if history != nil {
			recordHistory(ctx, history, res)
		}
		if err != nil {
			runErr = &exitError{code: ExitProbeError, err: err}
			return false
		}
		if err := out.result(res); err != nil {
			runErr = &exitError{code: ExitProbeError, err: fmt.Errorf("failed to write result: %w", err)}
			return false
		}
		if !res.OK() {
			failed = true
		}
		return true
	})

	if history != nil {
		if n, err := history.Cleanup(ctx, cfg.History.Retention); err != nil {
			logger.Warn("Failed to prune history", "error", err)
		} else if n > 0 {
			logger.Debug("Pruned history", "deleted", n)
		}
	}

	summary := monitor.Summary()
	if cfg.Probe.Count > 1 {
		fmt.Fprintf(cmd.ErrOrStderr(), "--- %s ---\n%s\n", target.Redacted(), summary)
	}

	warns, errs := logger.GetCounts()
	logger.Info("Run complete", "probes", summary.Count, "failed", summary.Failed, "warnings", warns, "errors", errs)

	if runErr != nil {
		return runErr
	}
	if failed && cfg.Probe.Strict {
		return &exitError{code: ExitProbeFailed}
	}
	return nil
}

func recordHistory(ctx context.Context, store *sqlite.HistoryStore, res *db.Result) {
	// Record even when a signal cancelled the probe
	if err := store.Record(context.WithoutCancel(ctx), newProbeRecord(res)); err != nil {
		logger.Warn("Failed to record probe", "probe_id", res.ID.String(), "error", err)
	}
}

func newProbeRecord(res *db.Result) sqlite.ProbeRecord {
	rec := sqlite.ProbeRecord{
		ID:        res.ID.String(),
		StartedAt: res.StartedAt,
		Driver:    res.Driver,
		Target:    res.Target,
		OK:        res.OK(),
		LatencyMS: float64(res.Latency) / float64(time.Millisecond),
	}
	if res.OK() {
		rec.Value = res.ValueString()
	} else {
		rec.ErrorKind = res.Kind().String()
		rec.Error = res.Err.Error()
	}
	return rec
}
