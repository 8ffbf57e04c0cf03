package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/juancollazo-ch/bulk-void-service/internal/errors"
	"github.com/juancollazo-ch/bulk-void-service/internal/logging"
	"github.com/juancollazo-ch/bulk-void-service/internal/models"
	"github.com/juancollazo-ch/bulk-void-service/internal/service"
	"github.com/juancollazo-ch/bulk-void-service/internal/validator"
)

type VoidHandler struct {
	svc       *service.VoidService
	validator *validator.RequestValidator
	timeout   time.Duration
}

func NewVoidHandler(svc *service.VoidService, timeout time.Duration) *VoidHandler {
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	return &VoidHandler{
		svc:       svc,
		validator: validator.NewRequestValidator(),
		timeout:   timeout,
	}
}

func (h *VoidHandler) Void(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Timeout acota la corrida; al vencer se devuelve el reporte parcial
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	logger := logging.FromContext(ctx)

	var req models.VoidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error("Invalid JSON", zap.Error(err))
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if err := h.validator.ValidateRequest(&req); err != nil {
		logger.Error("Request validation failed",
			zap.Error(err),
			zap.String("void_type", req.VoidType),
			zap.Int("identifiers", len(req.Identifiers)),
		)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	target, _ := models.ParseTargetType(req.VoidType)

	if !req.DryRun && (req.AccessToken == "" || req.TenantID == "") {
		http.Error(w, "access_token and tenant_id are required", http.StatusBadRequest)
		return
	}

	logger.Info("Processing void request",
		zap.String("void_type", target.Collection()),
		zap.Int("identifiers", len(req.Identifiers)),
		zap.Bool("dry_run", req.DryRun),
	)

	result, err := h.svc.HandleVoidRequest(ctx, service.VoidInput{
		Session:     models.Session{AccessToken: req.AccessToken, TenantID: req.TenantID},
		Target:      target,
		Identifiers: req.Identifiers,
		DryRun:      req.DryRun,
		RunID:       req.RunID,
	})
	if err != nil {
		logger.Error("Processing error", zap.Error(err))
		status := http.StatusInternalServerError
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			status = appErr.StatusCode
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		logger.Error("Error writing response", zap.Error(err))
		return
	}

	if result.Report != nil {
		logger.Info("Void run completed",
			zap.String("run_id", result.Report.RunID),
			zap.Int("processed", result.Report.Processed),
			zap.Int("total", result.Report.Total),
			zap.Bool("cancelled", result.Report.Cancelled),
		)
	}
}
