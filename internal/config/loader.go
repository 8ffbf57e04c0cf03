package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	DefaultTokenURL       = "https://identity.xero.com/connect/token"
	DefaultConnectionsURL = "https://api.xero.com/connections"
	DefaultAPIBaseURL     = "https://api.xero.com/api.xro/2.0"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML content, expanding ${VAR} references and applying defaults.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a configuration with environment fallbacks and every default applied.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg
}

// applyEnv completa con variables de entorno lo que el archivo deja vacío.
func applyEnv(cfg *AppConfig) {
	setFromEnv(&cfg.Xero.ClientID, "XERO_CLIENT_ID")
	setFromEnv(&cfg.Xero.ClientSecret, "XERO_CLIENT_SECRET")
	setFromEnv(&cfg.Xero.TenantID, "XERO_TENANT_ID")
	setFromEnv(&cfg.Void.Type, "VOID_TYPE")
	setFromEnv(&cfg.Void.DryRun, "DRY_RUN")
	setFromEnv(&cfg.Notify.WebhookURL, "WEBHOOK_URL")
}

func setFromEnv(field *string, key string) {
	if *field != "" {
		return
	}
	if v := os.Getenv(key); v != "" {
		*field = v
	}
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Xero.TokenURL == "" {
		cfg.Xero.TokenURL = DefaultTokenURL
	}
	if cfg.Xero.ConnectionsURL == "" {
		cfg.Xero.ConnectionsURL = DefaultConnectionsURL
	}
	if cfg.Xero.APIBaseURL == "" {
		cfg.Xero.APIBaseURL = DefaultAPIBaseURL
	}
	if cfg.Xero.Timeout == 0 {
		cfg.Xero.Timeout = 30 * time.Second
	}

	if cfg.Void.Type == "" {
		cfg.Void.Type = "Invoices"
	}
	if cfg.Void.DryRun == "" {
		cfg.Void.DryRun = DryRunEnabled
	}
	if cfg.Void.RoundingTolerance == nil {
		tolerance := DefaultRoundingTolerance
		cfg.Void.RoundingTolerance = &tolerance
	}
	if cfg.Void.ThrottleThreshold == 0 {
		cfg.Void.ThrottleThreshold = 60
	}
	if cfg.Void.MinInterval == 0 {
		cfg.Void.MinInterval = 1500 * time.Millisecond
	}
	if cfg.Void.Workers == 0 {
		cfg.Void.Workers = 1
	}

	if cfg.Retry.Attempts == 0 {
		cfg.Retry.Attempts = 3
	}
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = 500 * time.Millisecond
	}

	if cfg.Breaker.MaxFailures == 0 {
		cfg.Breaker.MaxFailures = 5
	}
	if cfg.Breaker.OpenTimeout == 0 {
		cfg.Breaker.OpenTimeout = 30 * time.Second
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 180 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
