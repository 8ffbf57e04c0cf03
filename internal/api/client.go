package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	apperrors "github.com/juancollazo-ch/bulk-void-service/internal/errors"
	"github.com/juancollazo-ch/bulk-void-service/internal/metrics"
	"github.com/juancollazo-ch/bulk-void-service/internal/models"
	"github.com/juancollazo-ch/bulk-void-service/internal/ratelimit"
	"github.com/juancollazo-ch/bulk-void-service/internal/retry"
)

const (
	opFind = "find"
	opGet  = "get"
	opVoid = "void"
)

// Options configura el cliente de la API contable.
type Options struct {
	BaseURL            string
	Timeout            time.Duration
	RetryAttempts      int
	RetryBaseDelay     time.Duration
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
}

// Client habla con la colección remota de facturas / notas de crédito.
type Client struct {
	http      *http.Client
	base      string
	breaker   *gobreaker.CircuitBreaker
	attempts  int
	baseDelay time.Duration
}

func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("api base URL is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.BreakerMaxFailures == 0 {
		opts.BreakerMaxFailures = 5
	}

	maxFailures := opts.BreakerMaxFailures
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "accounting-api",
		MaxRequests: 1,
		Timeout:     opts.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			zap.L().Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		http:      &http.Client{Timeout: opts.Timeout},
		base:      strings.TrimRight(opts.BaseURL, "/"),
		breaker:   breaker,
		attempts:  opts.RetryAttempts,
		baseDelay: opts.RetryBaseDelay,
	}, nil
}

// FindByNumber resuelve un número de documento usando el filtro `where`.
// Una colección vacía (o un 404) significa que no existe.
func (c *Client) FindByNumber(
	ctx context.Context,
	session models.Session,
	target models.TargetType,
	number string,
) ([]models.RemoteInvoice, error) {
	query := url.Values{}
	query.Set("where", fmt.Sprintf(`%s=="%s"`, target.NumberField(), number))
	endpoint := c.base + "/" + target.Collection() + "?" + query.Encode()

	resp, err := c.send(ctx, opFind, session, http.MethodGet, endpoint, nil, "")
	if err != nil {
		return nil, err
	}
	if resp.status == http.StatusNotFound {
		return nil, nil
	}
	if !isSuccess(resp.status) {
		return nil, apperrors.FromStatus(resp.status, resp.body)
	}

	invoices, err := models.DecodeCollection(resp.body, target)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON from accounting API: %w", err)
	}
	return invoices, nil
}

// Get trae el documento completo por su identificador opaco.
func (c *Client) Get(
	ctx context.Context,
	session models.Session,
	target models.TargetType,
	id string,
) (*models.RemoteInvoice, error) {
	endpoint := c.base + "/" + target.Collection() + "/" + url.PathEscape(id)

	resp, err := c.send(ctx, opGet, session, http.MethodGet, endpoint, nil, "")
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp.status) {
		return nil, apperrors.FromStatus(resp.status, resp.body)
	}

	invoices, err := models.DecodeCollection(resp.body, target)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON from accounting API: %w", err)
	}
	if len(invoices) == 0 {
		return nil, apperrors.ErrNotFound(fmt.Sprintf("%s %s", target.IDField(), id), nil)
	}
	return &invoices[0], nil
}

// Void envía la anulación. Los status no exitosos vuelven en MutateResponse
// para que los clasifique el llamador; solo las fallas de transporte (o 429/5xx
// después de los reintentos) vuelven como error. Los reintentos reusan la misma
// idempotency key.
func (c *Client) Void(
	ctx context.Context,
	session models.Session,
	target models.TargetType,
	inv *models.RemoteInvoice,
	idempotencyKey string,
) (*models.MutateResponse, error) {
	payload, err := json.Marshal(inv.VoidPayload(target))
	if err != nil {
		return nil, fmt.Errorf("error marshaling void payload: %w", err)
	}

	endpoint := c.base + "/" + target.Collection() + "/" + url.PathEscape(inv.ID)

	resp, err := c.send(ctx, opVoid, session, http.MethodPost, endpoint, payload, idempotencyKey)
	if err != nil {
		return nil, err
	}
	return &models.MutateResponse{StatusCode: resp.status, Body: resp.body}, nil
}

type rawResponse struct {
	status int
	body   []byte
}

// send ejecuta el request con reintentos y circuit breaker. 429 y 5xx cuentan
// como falla del breaker y se reintentan; el resto se devuelve tal cual.
// El primer intento usa el permiso que ya tomó el llamador; cada reintento
// toma uno nuevo del limiter de la corrida.
func (c *Client) send(
	ctx context.Context,
	op string,
	session models.Session,
	method, endpoint string,
	payload []byte,
	idempotencyKey string,
) (*rawResponse, error) {
	var out *rawResponse
	attempt := 0

	err := retry.WithRetry(ctx, c.attempts, c.baseDelay, func() error {
		attempt++
		if attempt > 1 {
			if err := ratelimit.Wait(ctx); err != nil {
				return err
			}
		}

		start := time.Now()
		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.roundTrip(ctx, session, method, endpoint, payload, idempotencyKey)
		})

		status := 0
		if raw, ok := result.(*rawResponse); ok && raw != nil {
			status = raw.status
		} else if err != nil {
			var appErr *apperrors.AppError
			if errors.As(err, &appErr) {
				if code, ok := appErr.Metadata["external_status_code"].(int); ok {
					status = code
				}
			}
		}
		metrics.ObserveRemoteCall(op, status, time.Since(start))

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return apperrors.ErrServiceUnavailable("circuit breaker open", err).WithRetryable(false)
			}
			zap.L().Debug("remote call failed",
				zap.String("operation", op),
				zap.String("method", method),
				zap.Error(err),
			)
			return err
		}

		out = result.(*rawResponse)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) roundTrip(
	ctx context.Context,
	session models.Session,
	method, endpoint string,
	payload []byte,
	idempotencyKey string,
) (*rawResponse, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("error building request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+session.AccessToken)
	req.Header.Set("Xero-tenant-id", session.TenantID)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.ErrServiceUnavailable("request error", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.ErrServiceUnavailable("error reading response", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, apperrors.FromStatus(resp.StatusCode, respBody).
			WithMetadata("external_status_code", resp.StatusCode).
			WithMetadata(apperrors.MetaRetryAfter, parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()))
	}

	return &rawResponse{status: resp.StatusCode, body: respBody}, nil
}

// parseRetryAfter acepta segundos o una fecha HTTP; vacío o inválido es 0.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
