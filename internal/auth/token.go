package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/juancollazo-ch/bulk-void-service/internal/config"
	apperrors "github.com/juancollazo-ch/bulk-void-service/internal/errors"
	"github.com/juancollazo-ch/bulk-void-service/internal/models"
)

// Scope is the only permission the void run needs.
const Scope = "accounting.transactions"

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

type connection struct {
	ID         string `json:"id"`
	TenantID   string `json:"tenantId"`
	TenantType string `json:"tenantType"`
	TenantName string `json:"tenantName"`
}

// TokenSource obtiene una sesión con client credentials. El token dura
// ~30 minutos y no se renueva.
type TokenSource struct {
	client *resty.Client
	cfg    config.XeroConfig
}

func NewTokenSource(cfg config.XeroConfig) *TokenSource {
	return &TokenSource{
		client: resty.New().SetTimeout(cfg.Timeout),
		cfg:    cfg,
	}
}

// Session devuelve token + tenant. xero.tenant_id configurado gana sobre
// la primera conexión autorizada.
func (ts *TokenSource) Session(ctx context.Context) (models.Session, error) {
	token, err := ts.token(ctx)
	if err != nil {
		return models.Session{}, err
	}

	tenantID := ts.cfg.TenantID
	if tenantID == "" {
		tenantID, err = ts.firstTenant(ctx, token)
		if err != nil {
			return models.Session{}, err
		}
	}

	return models.Session{AccessToken: token, TenantID: tenantID}, nil
}

func (ts *TokenSource) token(ctx context.Context) (string, error) {
	if ts.cfg.ClientID == "" || ts.cfg.ClientSecret == "" {
		return "", errors.New("client id and client secret are required")
	}

	resp, err := ts.client.R().
		SetContext(ctx).
		SetBasicAuth(ts.cfg.ClientID, ts.cfg.ClientSecret).
		SetFormData(map[string]string{
			"grant_type": "client_credentials",
			"scope":      Scope,
		}).
		Post(ts.cfg.TokenURL)
	if err != nil {
		return "", apperrors.ErrServiceUnavailable("token request failed", err)
	}
	if !resp.IsSuccess() {
		zap.L().Error("could not fetch a token, is the app set up for client credentials?",
			zap.Int("status_code", resp.StatusCode()),
		)
		return "", apperrors.FromStatus(resp.StatusCode(), resp.Body())
	}

	var tr tokenResponse
	if err := json.Unmarshal(resp.Body(), &tr); err != nil {
		return "", fmt.Errorf("invalid token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", errors.New("token response without access_token")
	}

	zap.L().Info("obtained access token", zap.Int("expires_in_seconds", tr.ExpiresIn))
	return tr.AccessToken, nil
}

func (ts *TokenSource) firstTenant(ctx context.Context, token string) (string, error) {
	resp, err := ts.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Accept", "application/json").
		Get(ts.cfg.ConnectionsURL)
	if err != nil {
		return "", apperrors.ErrServiceUnavailable("connections request failed", err)
	}
	if !resp.IsSuccess() {
		return "", apperrors.FromStatus(resp.StatusCode(), resp.Body())
	}

	var conns []connection
	if err := json.Unmarshal(resp.Body(), &conns); err != nil {
		return "", fmt.Errorf("invalid connections response: %w", err)
	}
	for _, c := range conns {
		if c.TenantID != "" {
			zap.L().Info("using tenant",
				zap.String("tenant_id", c.TenantID),
				zap.String("tenant_name", c.TenantName),
			)
			return c.TenantID, nil
		}
	}
	return "", errors.New("no tenant connections authorised for this client")
}
