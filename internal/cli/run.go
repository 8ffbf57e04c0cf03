package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/juancollazo-ch/bulk-void-service/internal/auth"
	"github.com/juancollazo-ch/bulk-void-service/internal/config"
	"github.com/juancollazo-ch/bulk-void-service/internal/models"
	"github.com/juancollazo-ch/bulk-void-service/internal/service"
	"github.com/juancollazo-ch/bulk-void-service/internal/validator"
)

// SessionFunc obtains the session for a run.
type SessionFunc func(ctx context.Context, cfg *config.AppConfig) (models.Session, error)

func tokenSession(ctx context.Context, cfg *config.AppConfig) (models.Session, error) {
	return auth.NewTokenSource(cfg.Xero).Session(ctx)
}

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	DryRun   bool
	VoidType string
	Workers  int

	sessions SessionFunc
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(rootOpts, tokenSession)
}

func newRunCommand(rootOpts *RootOptions, sessions SessionFunc) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts, sessions: sessions}

	cmd := &cobra.Command{
		Use:   "run <identifier>...",
		Short: "Void the given invoice or credit note numbers",
		Long: `Void every given document number in ascending order.

Batches larger than void.throttle_threshold (60) are spaced by
void.min_interval (1.5s) to stay under the remote rate limit.

Example:
  bulkvoid run INV-0001 INV-0002 --dry-run
  bulkvoid run --void-type CreditNotes CN-0042 --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVoid(cmd, opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "list what would be voided without calling the API")
	cmd.Flags().StringVar(&opts.VoidType, "void-type", "", "Invoices or CreditNotes (overrides void.type)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "concurrent workers sharing the rate limit (overrides void.workers)")

	return cmd
}

func runVoid(cmd *cobra.Command, opts *RunOptions, args []string) error {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.VoidType != "" {
		cfg.Void.Type = opts.VoidType
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.Void.DryRun = config.DryRunDisabled
		if opts.DryRun {
			cfg.Void.DryRun = config.DryRunEnabled
		}
	}
	if opts.Workers > 0 {
		cfg.Void.Workers = opts.Workers
	}
	if err := validator.ValidateConfig(cfg); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	logger, err := setupLogger(opts.RootOptions, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to initialize logger", err)
	}
	defer func() { _ = logger.Sync() }()

	target, _ := models.ParseTargetType(cfg.Void.Type)

	svc, err := newVoidService(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to initialize API client", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	input := service.VoidInput{
		Target:      target,
		Identifiers: args,
		DryRun:      cfg.Void.DryRunEnabled(),
		Observers:   []service.ProgressObserver{out.ProgressObserver()},
	}

	if !input.DryRun {
		if err := validator.ValidateCredentials(cfg); err != nil {
			return WrapExitError(ExitCommandError, "missing credentials", err)
		}
		session, err := opts.sessions(ctx, cfg)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to obtain session", err)
		}
		input.Session = session
	}

	result, err := svc.HandleVoidRequest(ctx, input)
	if err != nil {
		return WrapExitError(ExitCommandError, "void run failed", err)
	}

	if result.DryRun != nil {
		return out.DryRun(result.DryRun)
	}

	report := result.Report
	if err := out.Report(report); err != nil {
		return err
	}

	switch {
	case report.Cancelled:
		zap.L().Warn("run cancelled before every identifier was processed")
		return NewExitError(ExitFailure, "run cancelled")
	case report.HasFailures():
		return NewExitError(ExitFailure, "run finished with failures")
	}
	return nil
}
