package config

import "time"

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Xero    XeroConfig    `yaml:"xero"`
	Void    VoidConfig    `yaml:"void"`
	Retry   RetryConfig   `yaml:"retry"`
	Breaker BreakerConfig `yaml:"breaker"`
	Server  ServerConfig  `yaml:"server"`
	Notify  NotifyConfig  `yaml:"notify"`
	Logging LoggingConfig `yaml:"logging"`
}

// XeroConfig holds credentials and endpoints of the accounting API.
type XeroConfig struct {
	ClientID       string        `yaml:"client_id"`
	ClientSecret   string        `yaml:"client_secret"`
	TenantID       string        `yaml:"tenant_id"` // empty = first connection
	TokenURL       string        `yaml:"token_url"`
	ConnectionsURL string        `yaml:"connections_url"`
	APIBaseURL     string        `yaml:"api_base_url"`
	Timeout        time.Duration `yaml:"timeout"`
}

// VoidConfig holds the run settings.
type VoidConfig struct {
	Type              string        `yaml:"type"`    // Invoices, CreditNotes
	DryRun            string        `yaml:"dry_run"` // Enabled, Disabled
	// nil = default, 0 = exact match
	RoundingTolerance *float64      `yaml:"rounding_tolerance"`
	ThrottleThreshold int           `yaml:"throttle_threshold"`
	MinInterval       time.Duration `yaml:"min_interval"`
	Workers           int           `yaml:"workers"`
}

// DryRunEnabled reports whether the run should only list identifiers.
func (v VoidConfig) DryRunEnabled() bool {
	return v.DryRun == DryRunEnabled
}

// Tolerance returns the configured rounding tolerance or DefaultRoundingTolerance.
func (v VoidConfig) Tolerance() float64 {
	if v.RoundingTolerance == nil {
		return DefaultRoundingTolerance
	}
	return *v.RoundingTolerance
}

const DefaultRoundingTolerance = 0.02

const (
	DryRunEnabled  = "Enabled"
	DryRunDisabled = "Disabled"
)

// RetryConfig holds retry settings for remote reads and writes.
type RetryConfig struct {
	Attempts  int           `yaml:"attempts"`
	BaseDelay time.Duration `yaml:"base_delay"`
}

// BreakerConfig holds circuit breaker settings.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	OpenTimeout time.Duration `yaml:"open_timeout"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// NotifyConfig holds the optional report webhook.
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}
