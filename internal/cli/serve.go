package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/juancollazo-ch/bulk-void-service/internal/handlers"
	"github.com/juancollazo-ch/bulk-void-service/internal/validator"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Port int

	// listening recibe la dirección real (tests con puerto 0).
	listening func(addr string)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP service",
		Long: `Start the HTTP service.

Routes:
  POST /void     run or dry-run a void batch
  GET  /health   health check
  GET  /metrics  Prometheus metrics`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", 0, "listen port (overrides server.port and $PORT)")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if err := validator.ValidateConfig(cfg); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	logger, err := setupLogger(opts.RootOptions, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to initialize logger", err)
	}
	defer func() { _ = logger.Sync() }()

	svc, err := newVoidService(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to initialize API client", err)
	}

	// Puerto para Cloud Run / local
	port := cfg.Server.Port
	if p := os.Getenv("PORT"); p != "" {
		if _, err := fmt.Sscanf(p, "%d", &port); err != nil {
			return WrapExitError(ExitCommandError, "invalid PORT", err)
		}
	}
	if opts.Port > 0 {
		port = opts.Port
	}

	server := &http.Server{
		Handler:      handlers.NewRouter(handlers.NewVoidHandler(svc, cfg.Server.RequestTimeout)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	if opts.listening != nil {
		opts.listening(ln.Addr().String())
	}

	// GRACEFUL SHUTDOWN
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()

	zap.L().Info("Server started", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Error("Server stopped unexpectedly", zap.Error(err))
			return WrapExitError(ExitFailure, "server stopped", err)
		}
		return nil
	case <-ctx.Done():
	}

	zap.L().Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("Graceful shutdown failed", zap.Error(err))
		return WrapExitError(ExitFailure, "graceful shutdown failed", err)
	}

	zap.L().Info("Server exited")
	return nil
}
