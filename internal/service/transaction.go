package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/juancollazo-ch/bulk-void-service/internal/classify"
	apperrors "github.com/juancollazo-ch/bulk-void-service/internal/errors"
	"github.com/juancollazo-ch/bulk-void-service/internal/logging"
	"github.com/juancollazo-ch/bulk-void-service/internal/models"
	"github.com/juancollazo-ch/bulk-void-service/internal/ratelimit"
	"github.com/juancollazo-ch/bulk-void-service/internal/validator"
)

// RemoteAPI es la colección remota de documentos. *api.Client la implementa.
type RemoteAPI interface {
	FindByNumber(ctx context.Context, session models.Session, target models.TargetType, number string) ([]models.RemoteInvoice, error)
	Get(ctx context.Context, session models.Session, target models.TargetType, id string) (*models.RemoteInvoice, error)
	Void(ctx context.Context, session models.Session, target models.TargetType, inv *models.RemoteInvoice, idempotencyKey string) (*models.MutateResponse, error)
}

// Transaction anula un documento: resolve, inspect, mutate.
type Transaction struct {
	api       RemoteAPI
	tolerance float64
	newKey    func() string
}

// NewTransaction uses classify.DefaultTolerance when tolerance is negative;
// 0 only tolerates identical line totals.
func NewTransaction(api RemoteAPI, tolerance float64) *Transaction {
	if tolerance < 0 {
		tolerance = classify.DefaultTolerance
	}
	return &Transaction{
		api:       api,
		tolerance: tolerance,
		newKey:    uuid.NewString,
	}
}

// Void nunca devuelve error: todo camino termina en un Outcome.
// El permiso del resolve lo toma quien arranca el ítem (Scheduler); inspect y
// mutate toman cada uno un permiso del limiter del contexto.
func (t *Transaction) Void(
	ctx context.Context,
	session models.Session,
	target models.TargetType,
	number string,
) models.Outcome {
	logger := logging.FromContext(ctx).With(
		zap.String("identifier", number),
		zap.String("target", target.Collection()),
	)

	if err := validator.ValidateIdentifier(number); err != nil {
		return models.FatalValidation(err.Error())
	}

	// 1) Resolve
	matches, err := t.api.FindByNumber(ctx, session, target, number)
	if err != nil {
		logger.Warn("resolve failed", zap.Error(err))
		return models.NetworkFailure(err)
	}
	id := ""
	for _, m := range matches {
		if m.Number == number && m.ID != "" {
			id = m.ID
			break
		}
	}
	if id == "" {
		logger.Info("document not found")
		return models.NotFound(fmt.Sprintf("%s %s not found", target.NumberField(), number))
	}

	// 2) Inspect
	if err := ratelimit.Wait(ctx); err != nil {
		return models.NetworkFailure(err)
	}
	inv, err := t.api.Get(ctx, session, target, id)
	if err != nil {
		if apperrors.GetStatusCode(err) == http.StatusNotFound {
			return models.NotFound(fmt.Sprintf("%s %s disappeared before inspect", target.IDField(), id))
		}
		logger.Warn("inspect failed", zap.Error(err))
		return models.NetworkFailure(err)
	}
	if inv.IsVoided() {
		logger.Debug("already voided, skipping mutate")
		return models.AlreadyVoided("status is already VOIDED")
	}

	// 3) Mutate, una sola key por anulación lógica
	key := t.newKey()
	if err := ratelimit.Wait(ctx); err != nil {
		return models.NetworkFailure(err)
	}
	resp, err := t.api.Void(ctx, session, target, inv, key)
	if err != nil {
		logger.Warn("void failed", zap.Error(err), zap.String("idempotency_key", key))
		return models.NetworkFailure(err)
	}
	if resp.Succeeded() {
		return models.Voided()
	}

	errResp, err := classify.Decode(resp.Body)
	if err != nil {
		logger.Warn("undecodable void rejection",
			zap.Int("status_code", resp.StatusCode),
			zap.Error(err),
		)
		return models.NetworkFailure(fmt.Errorf("status %d: %w", resp.StatusCode, err))
	}

	outcome := classify.Classify(errResp, inv.Status, t.tolerance)
	logger.Info("void rejected",
		zap.Int("status_code", resp.StatusCode),
		zap.Stringer("outcome", outcome),
		zap.String("message", outcome.Message),
	)
	return outcome
}
