package validator

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/multierr"

	"github.com/juancollazo-ch/bulk-void-service/internal/config"
	"github.com/juancollazo-ch/bulk-void-service/internal/models"
)

// MaxIdentifiers limita el tamaño de un lote aceptado por request.
const MaxIdentifiers = 10000

const maxIdentifierLength = 255

// RequestValidator validates request parameters for security and format compliance
type RequestValidator struct {
	maxIdentifiers int
}

// NewRequestValidator creates a new RequestValidator instance
func NewRequestValidator() *RequestValidator {
	return &RequestValidator{maxIdentifiers: MaxIdentifiers}
}

// ValidateVoidType validates the document collection to void.
func (v *RequestValidator) ValidateVoidType(voidType string) (models.TargetType, error) {
	if voidType == "" {
		return "", errors.New("void_type is required")
	}
	return models.ParseTargetType(voidType)
}

// ValidateIdentifier rejects identifiers that would break the remote `where` filter.
func ValidateIdentifier(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("identifier cannot be empty")
	}
	if len(id) > maxIdentifierLength {
		return fmt.Errorf("identifier exceeds %d characters", maxIdentifierLength)
	}

	// Prevent dangerous characters that could be used for injection attacks
	if strings.ContainsAny(id, "\"\\") {
		return fmt.Errorf("identifier %q contains invalid characters", id)
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return fmt.Errorf("identifier %q contains control characters", id)
		}
	}
	return nil
}

// NormalizeIdentifiers trims, drops blanks and duplicates, and sorts ascending.
func NormalizeIdentifiers(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ValidateIdentifiers checks the size of the normalized batch. Malformed
// identifiers are not rejected here: each one becomes a fatal_validation_error
// item of the run.
func (v *RequestValidator) ValidateIdentifiers(ids []string) error {
	n := len(NormalizeIdentifiers(ids))
	if n == 0 {
		return errors.New("identifiers cannot be empty")
	}
	if n > v.maxIdentifiers {
		return fmt.Errorf("too many identifiers: %d (max %d)", n, v.maxIdentifiers)
	}
	return nil
}

// VoidRequest represents the request structure for validation
type VoidRequest interface {
	GetVoidType() string
	GetIdentifiers() []string
}

// ValidateRequest validates the entire request
func (v *RequestValidator) ValidateRequest(req VoidRequest) error {
	_, typeErr := v.ValidateVoidType(req.GetVoidType())
	return multierr.Combine(typeErr, v.ValidateIdentifiers(req.GetIdentifiers()))
}

// ValidateConfig checks the settings a run cannot start without.
func ValidateConfig(cfg *config.AppConfig) error {
	var errs error

	if _, err := models.ParseTargetType(cfg.Void.Type); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("void.type: %w", err))
	}
	switch cfg.Void.DryRun {
	case config.DryRunEnabled, config.DryRunDisabled:
	default:
		errs = multierr.Append(errs, fmt.Errorf("void.dry_run must be %q or %q, got %q",
			config.DryRunEnabled, config.DryRunDisabled, cfg.Void.DryRun))
	}
	if cfg.Void.Tolerance() < 0 {
		errs = multierr.Append(errs, errors.New("void.rounding_tolerance cannot be negative"))
	}
	if cfg.Void.ThrottleThreshold < 0 {
		errs = multierr.Append(errs, errors.New("void.throttle_threshold cannot be negative"))
	}
	if cfg.Void.MinInterval < 0 {
		errs = multierr.Append(errs, errors.New("void.min_interval cannot be negative"))
	}
	if cfg.Void.Workers < 1 {
		errs = multierr.Append(errs, errors.New("void.workers must be at least 1"))
	}
	if cfg.Retry.Attempts < 1 {
		errs = multierr.Append(errs, errors.New("retry.attempts must be at least 1"))
	}

	return errs
}

// ValidateCredentials checks the client credentials needed for a live run.
func ValidateCredentials(cfg *config.AppConfig) error {
	var errs error
	if cfg.Xero.ClientID == "" {
		errs = multierr.Append(errs, errors.New("xero.client_id is required"))
	}
	if cfg.Xero.ClientSecret == "" {
		errs = multierr.Append(errs, errors.New("xero.client_secret is required"))
	}
	return errs
}
