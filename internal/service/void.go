package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/juancollazo-ch/bulk-void-service/internal/errors"
	"github.com/juancollazo-ch/bulk-void-service/internal/logging"
	"github.com/juancollazo-ch/bulk-void-service/internal/models"
	"github.com/juancollazo-ch/bulk-void-service/internal/models/serviceresponse"
	"github.com/juancollazo-ch/bulk-void-service/internal/validator"
)

const notifyTimeout = 30 * time.Second

// Notifier recibe el reporte final. *webhook.Sender lo implementa.
type Notifier interface {
	Send(ctx context.Context, report *serviceresponse.RunReport) error
}

// Options son los ajustes de corrida compartidos por todos los requests.
type Options struct {
	RoundingTolerance float64
	ThrottleThreshold int
	MinInterval       time.Duration
	Workers           int
}

type VoidService struct {
	api      RemoteAPI
	notifier Notifier
	opts     Options
}

// NewVoidService acepta notifier nil (sin webhook).
func NewVoidService(api RemoteAPI, notifier Notifier, opts Options) *VoidService {
	return &VoidService{
		api:      api,
		notifier: notifier,
		opts:     opts,
	}
}

// VoidInput describe una corrida pedida por la CLI o por HTTP.
type VoidInput struct {
	Session     models.Session
	Target      models.TargetType
	Identifiers []string
	DryRun      bool
	RunID       string
	Workers     int // 0 = Options.Workers
	Observers   []ProgressObserver
}

// VoidResult lleva el reporte de la corrida o, en dry run, la lista a anular.
type VoidResult struct {
	DryRun *serviceresponse.DryRunResult `json:"dry_run,omitempty"`
	Report *serviceresponse.RunReport    `json:"report,omitempty"`
}

// ---------------------------------------------------------
// MÉTODO PRINCIPAL
// ---------------------------------------------------------
func (s *VoidService) HandleVoidRequest(ctx context.Context, in VoidInput) (*VoidResult, error) {
	if !in.Target.Valid() {
		return nil, apperrors.ErrBadRequest("unsupported void type: "+string(in.Target), nil)
	}

	ids := validator.NormalizeIdentifiers(in.Identifiers)
	logger := logging.FromContext(ctx).With(zap.String("target", in.Target.Collection()))

	if in.DryRun {
		logger.Info("dry run, nothing will be voided", zap.Int("count", len(ids)))
		return &VoidResult{DryRun: &serviceresponse.DryRunResult{
			Target:      in.Target.Collection(),
			Count:       len(ids),
			Identifiers: ids,
		}}, nil
	}

	if !in.Session.Valid() {
		return nil, apperrors.ErrUnauthorized("access token and tenant id are required", nil)
	}

	workers := in.Workers
	if workers <= 0 {
		workers = s.opts.Workers
	}
	cfg := NewRunConfig(in.Target, len(ids), s.opts.ThrottleThreshold, s.opts.MinInterval, workers)
	cfg.RunID = in.RunID

	observers := append([]ProgressObserver{
		NewLogObserver(logger),
		NewMetricsObserver(in.Target),
	}, in.Observers...)

	scheduler := NewScheduler(NewTransaction(s.api, s.opts.RoundingTolerance), observers...)
	report := scheduler.Run(ctx, cfg, in.Session, ids)

	s.notify(ctx, report)
	return &VoidResult{Report: report}, nil
}

// notify nunca falla la corrida; el contexto del request puede estar cancelado.
func (s *VoidService) notify(ctx context.Context, report *serviceresponse.RunReport) {
	if s.notifier == nil {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := s.notifier.Send(nctx, report); err != nil {
		logging.FromContext(ctx).Warn("report notification failed",
			zap.String("run_id", report.RunID),
			zap.Error(err),
		)
	}
}
