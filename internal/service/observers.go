package service

import (
	"go.uber.org/zap"

	"github.com/juancollazo-ch/bulk-void-service/internal/metrics"
	"github.com/juancollazo-ch/bulk-void-service/internal/models"
)

// LogObserver escribe una línea estructurada por identificador.
type LogObserver struct {
	logger *zap.Logger
}

func NewLogObserver(logger *zap.Logger) *LogObserver {
	if logger == nil {
		logger = zap.L()
	}
	return &LogObserver{logger: logger}
}

func (o *LogObserver) OnProgress(e ProgressEvent) {
	fields := []zap.Field{
		zap.String("identifier", e.Identifier),
		zap.Stringer("outcome", e.Outcome),
		zap.Int("processed", e.Processed),
		zap.Int("total", e.Total),
		zap.String("eta", FormatETA(e.ETA, e.ETAKnown)),
	}
	if e.Outcome.Message != "" {
		fields = append(fields, zap.String("detail", e.Outcome.Message))
	}

	switch {
	case e.Outcome.Kind.IsFailure():
		o.logger.Error("identifier failed", fields...)
	case e.Outcome.Kind == models.OutcomeNotFound:
		o.logger.Warn("identifier not found", fields...)
	default:
		o.logger.Info("identifier processed", fields...)
	}
}

// MetricsObserver actualiza los contadores de Prometheus.
type MetricsObserver struct {
	target models.TargetType
}

func NewMetricsObserver(target models.TargetType) *MetricsObserver {
	return &MetricsObserver{target: target}
}

func (o *MetricsObserver) OnProgress(e ProgressEvent) {
	metrics.OutcomesTotal.WithLabelValues(o.target.Collection(), e.Outcome.Kind.String()).Inc()
	metrics.RunRemainingItems.Set(float64(e.Total - e.Processed))
}
