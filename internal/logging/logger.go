package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/juancollazo-ch/bulk-void-service/internal/config"
)

// Convertir niveles de Zap a severidad de GCP Cloud Logging
func zapLevelToGCPSeverity(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch level {
	case zapcore.DebugLevel:
		enc.AppendString("DEBUG")
	case zapcore.InfoLevel:
		enc.AppendString("INFO")
	case zapcore.WarnLevel:
		enc.AppendString("WARNING")
	case zapcore.ErrorLevel:
		enc.AppendString("ERROR")
	case zapcore.DPanicLevel, zapcore.PanicLevel:
		enc.AppendString("CRITICAL")
	case zapcore.FatalLevel:
		enc.AppendString("EMERGENCY")
	default:
		enc.AppendString("DEFAULT")
	}
}

// New construye el logger. "json" usa el formato de Cloud Logging; "console"
// usa la configuración de desarrollo de zap.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zcfg zap.Config
	switch cfg.Format {
	case "", "json":
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.MessageKey = "message"
		zcfg.EncoderConfig.LevelKey = "severity"
		zcfg.EncoderConfig.TimeKey = "timestamp"
		zcfg.EncoderConfig.EncodeLevel = zapLevelToGCPSeverity
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	case "console":
		zcfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}

	zcfg.Level = zap.NewAtomicLevelAt(level)
	// stdout queda para el reporte
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}

	return zcfg.Build()
}
