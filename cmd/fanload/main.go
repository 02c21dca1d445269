package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/torosent/fanload/internal/config"
	"github.com/torosent/fanload/internal/hooks"
	"github.com/torosent/fanload/internal/logging"
	"github.com/torosent/fanload/internal/setup"
	"github.com/torosent/fanload/internal/tracing"
)

const (
	shutdownTimeout = 5 * time.Second

	// Exit status for a run stopped by SIGINT or SIGTERM.
	interruptedExitCode = 130
)

// exitError carries a process exit code for a failure that was already logged.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(exitCode(err, os.Stderr))
}

// exitCode maps a run error to the process exit status, printing errors that
// were not logged yet.
func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCommand(stdout, stderr)
	if args == nil {
		// cobra falls back to os.Args for nil.
		args = []string{}
	}
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fanload",
		Short: "Prepare data files for the fan API load test and run it",
		Long: `fanload logs in to the fan management API, reads fans, schedules and the
videos scheduled for each fan, writes schedule-data.csv, fans-data.csv and
videos-data.csv, then runs the load tool against the same API.

Credentials come from SUPERUSER_EMAIL, SUPERUSER_PASSWORD, FAN_MANAGER_EMAIL
and FAN_MANAGER_PASSWORD. The API address comes from API_BASE_URL or --base-url.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSetup(cmd.Context(), cmd, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	config.RegisterFlags(cmd)
	cmd.AddCommand(newSampleCommand())
	return cmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.NewLoader().LoadFlags(cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runSetup(ctx context.Context, cmd *cobra.Command, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	tp, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	driver := setup.New(cfg,
		setup.WithLogger(logger),
		setup.WithTracing(tp),
		setup.WithOutput(stdout, stderr),
		setup.WithHooks(hooks.NewRegistry(nil).Names()),
	)

	_, err = driver.Run(ctx)
	var loadErr *setup.LoadToolError
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return &exitError{code: interruptedExitCode, err: err}
	case errors.As(err, &loadErr):
		if !cfg.LoadTool.FailOnError {
			return nil
		}
		return &exitError{code: loadErr.ExitCode(), err: err}
	default:
		return &exitError{code: 1, err: err}
	}
}
