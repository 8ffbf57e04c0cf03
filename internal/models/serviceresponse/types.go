// internal/models/serviceresponse/types.go
package serviceresponse

import (
	"time"

	"github.com/juancollazo-ch/bulk-void-service/internal/models"
)

// RunReport representa el resultado final de una corrida de anulación.
// Items sigue el orden determinista en que se procesaron los identificadores.
type RunReport struct {
	RunID          string         `json:"run_id"`
	Target         string         `json:"target"`
	Total          int            `json:"total"`
	Processed      int            `json:"processed"`
	Throttled      bool           `json:"throttled"`
	Cancelled      bool           `json:"cancelled,omitempty"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
	ElapsedSeconds float64        `json:"elapsed_seconds"`
	Summary        map[string]int `json:"summary"`
	Items          []ItemResult   `json:"items"`
}

// ItemResult es el resultado de un identificador.
type ItemResult struct {
	Identifier string         `json:"identifier"`
	Outcome    models.Outcome `json:"outcome"`
}

// NewRunReport crea un reporte vacío para total identificadores.
func NewRunReport(runID string, target models.TargetType, total int, startedAt time.Time) *RunReport {
	return &RunReport{
		RunID:     runID,
		Target:    target.Collection(),
		Total:     total,
		StartedAt: startedAt,
		Summary:   make(map[string]int),
		Items:     make([]ItemResult, 0, total),
	}
}

// Finalize fija los contadores y la duración. Solo se llama una vez, cuando
// ya no quedan identificadores por procesar.
func (r *RunReport) Finalize(items []ItemResult, finishedAt time.Time) {
	r.Items = r.Items[:0]
	for _, kind := range models.AllOutcomeKinds {
		r.Summary[kind.String()] = 0
	}
	for _, item := range items {
		if item.Identifier == "" {
			continue // no procesado (corrida cancelada)
		}
		r.Items = append(r.Items, item)
		r.Summary[item.Outcome.Kind.String()]++
	}
	r.Processed = len(r.Items)
	r.FinishedAt = finishedAt
	r.ElapsedSeconds = finishedAt.Sub(r.StartedAt).Seconds()
}

// Count returns how many items ended with kind.
func (r *RunReport) Count(kind models.OutcomeKind) int {
	return r.Summary[kind.String()]
}

// HasFailures reports whether any item ended in a fatal validation error or a
// network error. Callers use it to pick a non-zero exit status.
func (r *RunReport) HasFailures() bool {
	return r.Count(models.OutcomeFatalValidationError) > 0 || r.Count(models.OutcomeNetworkError) > 0
}

// Benign counts items already in the desired state without a clean void.
func (r *RunReport) Benign() int {
	return r.Count(models.OutcomeAlreadyVoided) + r.Count(models.OutcomeRetriableValidationError)
}

// Failures returns the items that need an operator.
func (r *RunReport) Failures() []ItemResult {
	var failed []ItemResult
	for _, item := range r.Items {
		if item.Outcome.Kind.IsFailure() {
			failed = append(failed, item)
		}
	}
	return failed
}

// DryRunResult lista lo que se anularía sin llamar a la API.
type DryRunResult struct {
	Target      string   `json:"target"`
	Count       int      `json:"count"`
	Identifiers []string `json:"identifiers"`
}
