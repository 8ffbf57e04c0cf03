package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/juancollazo-ch/bulk-void-service/internal/models/serviceresponse"
)

type Sender struct {
	http       *http.Client
	webhookURL string
	maxRetries int
	backoff    time.Duration
}

// WebhookPayload resumen del reporte; los items fallidos van completos.
type WebhookPayload struct {
	RunID          string                       `json:"run_id"`
	Target         string                       `json:"target"`
	Total          int                          `json:"total"`
	Processed      int                          `json:"processed"`
	Cancelled      bool                         `json:"cancelled"`
	HasFailures    bool                         `json:"has_failures"`
	StartedAt      time.Time                    `json:"started_at"`
	FinishedAt     time.Time                    `json:"finished_at"`
	ElapsedSeconds float64                      `json:"elapsed_seconds"`
	Summary        map[string]int               `json:"summary"`
	Failures       []serviceresponse.ItemResult `json:"failures"`
}

// NewSender devuelve nil si no hay URL configurada.
func NewSender(webhookURL string) *Sender {
	if webhookURL == "" {
		return nil
	}

	return &Sender{
		http:       &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
		maxRetries: 3,
		backoff:    time.Second,
	}
}

func buildPayload(report *serviceresponse.RunReport) WebhookPayload {
	failures := report.Failures()
	if failures == nil {
		failures = []serviceresponse.ItemResult{}
	}
	return WebhookPayload{
		RunID:          report.RunID,
		Target:         report.Target,
		Total:          report.Total,
		Processed:      report.Processed,
		Cancelled:      report.Cancelled,
		HasFailures:    report.HasFailures(),
		StartedAt:      report.StartedAt,
		FinishedAt:     report.FinishedAt,
		ElapsedSeconds: report.ElapsedSeconds,
		Summary:        report.Summary,
		Failures:       failures,
	}
}

// Send es un no-op sobre un Sender nil.
func (s *Sender) Send(ctx context.Context, report *serviceresponse.RunReport) error {
	if s == nil {
		return nil
	}

	payload, err := json.Marshal(buildPayload(report))
	if err != nil {
		return fmt.Errorf("error marshaling report: %w", err)
	}

	// Retry logic: 3 intentos con backoff lineal
	var lastErr error

	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		lastErr = s.post(ctx, payload, attempt)
		if lastErr == nil {
			return nil // Éxito
		}
		if attempt == s.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
		case <-time.After(time.Duration(attempt) * s.backoff): // backoff: 1s, 2s
		}
	}

	return lastErr
}

func (s *Sender) post(ctx context.Context, payload []byte, attempt int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Retry-Attempt", fmt.Sprintf("%d", attempt))

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("error sending webhook (attempt %d/%d): %w", attempt, s.maxRetries, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("webhook failed with status: %d (attempt %d/%d)", resp.StatusCode, attempt, s.maxRetries)
}
