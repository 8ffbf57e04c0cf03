package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/juancollazo-ch/bulk-void-service/internal/logging"
	"github.com/juancollazo-ch/bulk-void-service/internal/models"
	"github.com/juancollazo-ch/bulk-void-service/internal/models/serviceresponse"
	"github.com/juancollazo-ch/bulk-void-service/internal/ratelimit"
	"github.com/juancollazo-ch/bulk-void-service/internal/validator"
	"github.com/juancollazo-ch/bulk-void-service/internal/worker"
)

const (
	// DefaultMinInterval separa cada llamada remota de la corrida: 40 llamadas/minuto,
	// debajo del límite remoto de 60.
	DefaultMinInterval = 1500 * time.Millisecond
	// DefaultThrottleThreshold: lotes de hasta este tamaño no se espacian.
	DefaultThrottleThreshold = 60
)

// RunConfig es la configuración inmutable de una corrida.
type RunConfig struct {
	RunID       string
	Target      models.TargetType
	Throttle    bool
	MinInterval time.Duration
	Workers     int
}

// NewRunConfig decide el throttle a partir del tamaño del lote.
func NewRunConfig(target models.TargetType, count, threshold int, minInterval time.Duration, workers int) RunConfig {
	if threshold <= 0 {
		threshold = DefaultThrottleThreshold
	}
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	if workers < 1 {
		workers = 1
	}
	return RunConfig{
		Target:      target,
		Throttle:    count > threshold,
		MinInterval: minInterval,
		Workers:     workers,
	}
}

// Voider anula un identificador. *Transaction lo implementa.
type Voider interface {
	Void(ctx context.Context, session models.Session, target models.TargetType, number string) models.Outcome
}

// Scheduler recorre el lote bajo el límite de tasa y arma el reporte.
type Scheduler struct {
	voider     Voider
	observers  []ProgressObserver
	now        func() time.Time
	newLimiter func(RunConfig) ratelimit.Limiter
}

func NewScheduler(voider Voider, observers ...ProgressObserver) *Scheduler {
	return &Scheduler{
		voider:     voider,
		observers:  observers,
		now:        time.Now,
		newLimiter: newRateLimiter,
	}
}

// newRateLimiter: un token cada MinInterval, burst 1, compartido por todos los
// workers y por cada llamada remota de la corrida (reintentos incluidos).
func newRateLimiter(cfg RunConfig) ratelimit.Limiter {
	return ratelimit.New(cfg.Throttle, cfg.MinInterval)
}

// Run procesa cada identificador exactamente una vez, en orden ascendente.
// Un fallo de un identificador nunca corta la corrida; solo la cancelación
// del contexto deja identificadores sin procesar.
func (s *Scheduler) Run(
	ctx context.Context,
	cfg RunConfig,
	session models.Session,
	identifiers []string,
) *serviceresponse.RunReport {
	ids := validator.NormalizeIdentifiers(identifiers)

	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx = logging.WithRunFields(ctx, runID, session.TenantID)
	logger := logging.FromContext(ctx)

	startedAt := s.now()
	report := serviceresponse.NewRunReport(runID, cfg.Target, len(ids), startedAt)
	report.Throttled = cfg.Throttle

	if len(ids) == 0 {
		report.Finalize(nil, s.now())
		return report
	}

	logger.Info("void run started",
		zap.String("target", cfg.Target.Collection()),
		zap.Int("total", len(ids)),
		zap.Bool("throttled", cfg.Throttle),
		zap.Duration("min_interval", cfg.MinInterval),
		zap.Int("workers", cfg.Workers),
	)

	limiter := s.newLimiter(cfg)
	ctx = ratelimit.WithLimiter(ctx, limiter)
	progress := NewRunProgress(len(ids), startedAt)
	items := make([]serviceresponse.ItemResult, len(ids))

	var emitMu sync.Mutex
	process := func(ctx context.Context, i int) error {
		// este permiso es el del resolve; inspect y mutate toman el suyo en la Transaction
		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		outcome := s.voider.Void(ctx, session, cfg.Target, ids[i])
		items[i] = serviceresponse.ItemResult{Identifier: ids[i], Outcome: outcome}

		emitMu.Lock()
		defer emitMu.Unlock()
		processed, eta, known := progress.Complete(s.now())
		s.emit(ProgressEvent{
			Identifier: ids[i],
			Outcome:    outcome,
			Processed:  processed,
			Total:      len(ids),
			ETA:        eta,
			ETAKnown:   known,
		})
		return nil
	}

	var err error
	if cfg.Workers > 1 {
		err = worker.NewPool(cfg.Workers).Run(ctx, len(ids), process)
	} else {
		for i := range ids {
			if err = ctx.Err(); err != nil {
				break
			}
			if err = process(ctx, i); err != nil {
				break
			}
		}
	}

	report.Finalize(items, s.now())
	report.Cancelled = report.Processed < report.Total

	fields := []zap.Field{
		zap.Int("processed", report.Processed),
		zap.Int("total", report.Total),
		zap.Float64("elapsed_seconds", report.ElapsedSeconds),
		zap.Any("summary", report.Summary),
	}
	if report.Cancelled {
		logger.Warn("void run cancelled", append(fields, zap.Error(err))...)
	} else {
		logger.Info("void run finished", fields...)
	}
	return report
}

func (s *Scheduler) emit(e ProgressEvent) {
	for _, o := range s.observers {
		o.OnProgress(e)
	}
}
