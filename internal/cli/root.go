package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/juancollazo-ch/bulk-void-service/internal/config"
	"github.com/juancollazo-ch/bulk-void-service/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

const defaultConfigPath = "config.yaml"

// NewRootCommand creates the root command for the bulkvoid CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "bulkvoid",
		Short: "Bulk void invoices and credit notes",
		Long: `bulkvoid voids invoices or credit notes in the accounting API in bulk.

Runs respect the remote rate limit, tolerate penny rounding rejections and
report progress with an ETA.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			// .env es opcional
			_ = godotenv.Load()
			return nil
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	})

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", defaultConfigPath, "config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadConfig reads the config file. A missing default file falls back to
// environment variables and defaults.
func loadConfig(opts *RootOptions) (*config.AppConfig, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		if opts.ConfigPath == defaultConfigPath && errors.Is(err, fs.ErrNotExist) {
			return config.Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// setupLogger replaces the global zap logger. --verbose forces debug level.
func setupLogger(opts *RootOptions, cfg *config.AppConfig) (*zap.Logger, error) {
	logCfg := cfg.Logging
	if opts.Verbose {
		logCfg.Level = "debug"
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}
