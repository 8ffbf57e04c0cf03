package cli

import (
	"github.com/juancollazo-ch/bulk-void-service/internal/api"
	"github.com/juancollazo-ch/bulk-void-service/internal/config"
	"github.com/juancollazo-ch/bulk-void-service/internal/service"
	"github.com/juancollazo-ch/bulk-void-service/internal/webhook"
)

// newVoidService inicializa dependencias a partir de la configuración.
func newVoidService(cfg *config.AppConfig) (*service.VoidService, error) {
	client, err := api.NewClient(api.Options{
		BaseURL:            cfg.Xero.APIBaseURL,
		Timeout:            cfg.Xero.Timeout,
		RetryAttempts:      cfg.Retry.Attempts,
		RetryBaseDelay:     cfg.Retry.BaseDelay,
		BreakerMaxFailures: cfg.Breaker.MaxFailures,
		BreakerOpenTimeout: cfg.Breaker.OpenTimeout,
	})
	if err != nil {
		return nil, err
	}

	var notifier service.Notifier
	if sender := webhook.NewSender(cfg.Notify.WebhookURL); sender != nil {
		notifier = sender
	}

	return service.NewVoidService(client, notifier, service.Options{
		RoundingTolerance: cfg.Void.Tolerance(),
		ThrottleThreshold: cfg.Void.ThrottleThreshold,
		MinInterval:       cfg.Void.MinInterval,
		Workers:           cfg.Void.Workers,
	}), nil
}
