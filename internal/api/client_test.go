package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/juancollazo-ch/bulk-void-service/internal/errors"
	"github.com/juancollazo-ch/bulk-void-service/internal/models"
	"github.com/juancollazo-ch/bulk-void-service/internal/ratelimit"
)

var testSession = models.Session{AccessToken: "token-123", TenantID: "tenant-abc"}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := NewClient(Options{
		BaseURL:        url,
		Timeout:        5 * time.Second,
		RetryAttempts:  3,
		RetryBaseDelay: time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Options{})
	assert.Error(t, err)
}

func TestClient_FindByNumber(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/Invoices", r.URL.Path)
		assert.Equal(t, `InvoiceNumber=="INV-1"`, r.URL.Query().Get("where"))
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))
		assert.Equal(t, "tenant-abc", r.Header.Get("Xero-tenant-id"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		_, _ = io.WriteString(w, `{
			"Status": "OK",
			"Invoices": [{"InvoiceID": "a1", "InvoiceNumber": "INV-1", "Status": "AUTHORISED", "Total": 100.10}]
		}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	invoices, err := c.FindByNumber(context.Background(), testSession, models.TargetInvoice, "INV-1")
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, "a1", invoices[0].ID)
	assert.Equal(t, "INV-1", invoices[0].Number)
	assert.Equal(t, "AUTHORISED", invoices[0].Status)
	assert.Equal(t, json.Number("100.10"), invoices[0].Fields["Total"])
}

func TestClient_FindByNumber_CreditNotes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/CreditNotes", r.URL.Path)
		assert.Equal(t, `CreditNoteNumber=="CN-9"`, r.URL.Query().Get("where"))
		_, _ = io.WriteString(w, `{"CreditNotes": []}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	invoices, err := c.FindByNumber(context.Background(), testSession, models.TargetCreditNote, "CN-9")
	require.NoError(t, err)
	assert.Empty(t, invoices)
}

func TestClient_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Invoices/a1", r.URL.Path)
		_, _ = io.WriteString(w, `{"Invoices": [{"InvoiceID": "a1", "InvoiceNumber": "INV-1", "Status": "VOIDED"}]}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	inv, err := c.Get(context.Background(), testSession, models.TargetInvoice, "a1")
	require.NoError(t, err)
	assert.True(t, inv.IsVoided())
}

func TestClient_Get_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.Get(context.Background(), testSession, models.TargetInvoice, "zz")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, apperrors.GetStatusCode(err))
}

func TestClient_Void_SendsCarriedFieldsAndIdempotencyKey(t *testing.T) {
	var gotBody map[string][]map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/Invoices/a1", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		assert.NoError(t, dec.Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	inv := &models.RemoteInvoice{
		ID:     "a1",
		Number: "INV-1",
		Status: "AUTHORISED",
		Fields: map[string]any{
			"InvoiceID": "a1",
			"Type":      "ACCREC",
			"Total":     json.Number("100.005"),
			"Contact":   map[string]any{"Name": "ACME"},
		},
	}

	c := newTestClient(t, server.URL)
	resp, err := c.Void(context.Background(), testSession, models.TargetInvoice, inv, "key-1")
	require.NoError(t, err)
	assert.True(t, resp.Succeeded())

	require.Len(t, gotBody["Invoices"], 1)
	doc := gotBody["Invoices"][0]
	assert.Equal(t, "a1", doc["InvoiceID"])
	assert.Equal(t, "INV-1", doc["InvoiceNumber"])
	assert.Equal(t, "VOIDED", doc["Status"])
	assert.Equal(t, "ACCREC", doc["Type"])
	assert.Equal(t, json.Number("100.005"), doc["Total"])
	assert.NotContains(t, doc, "Contact")
}

func TestClient_Void_ValidationBodyIsReturned(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"ValidationErrors":[{"Message":"line total 1.00 expected 1.01"}]}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	resp, err := c.Void(context.Background(), testSession, models.TargetInvoice,
		&models.RemoteInvoice{ID: "a1", Number: "INV-1"}, "key")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "line total")
}

func TestClient_RetriesRateLimitWithSameKey(t *testing.T) {
	var calls atomic.Int32
	keys := make(chan string, 3)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys <- r.Header.Get("Idempotency-Key")
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	resp, err := c.Void(context.Background(), testSession, models.TargetInvoice,
		&models.RemoteInvoice{ID: "a1", Number: "INV-1"}, "same-key")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())

	close(keys)
	for k := range keys {
		assert.Equal(t, "same-key", k)
	}
}

func TestClient_ServerErrorExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.FindByNumber(context.Background(), testSession, models.TargetInvoice, "INV-1")
	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c, err := NewClient(Options{
		BaseURL:            server.URL,
		RetryAttempts:      1,
		BreakerMaxFailures: 2,
		BreakerOpenTimeout: time.Minute,
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := c.FindByNumber(context.Background(), testSession, models.TargetInvoice, "INV-1")
		require.Error(t, err)
	}

	_, err = c.FindByNumber(context.Background(), testSession, models.TargetInvoice, "INV-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_UnauthorizedIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.FindByNumber(context.Background(), testSession, models.TargetInvoice, "INV-1")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, apperrors.GetStatusCode(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_WaitsRetryAfterBeforeRetrying(t *testing.T) {
	var mu sync.Mutex
	var arrivals []time.Time
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		arrivals = append(arrivals, time.Now())
		first := len(arrivals) == 1
		mu.Unlock()

		if first {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	resp, err := c.Void(context.Background(), testSession, models.TargetInvoice,
		&models.RemoteInvoice{ID: "a1", Number: "INV-1"}, "key")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, arrivals, 2)
	assert.GreaterOrEqual(t, arrivals[1].Sub(arrivals[0]), time.Second)
}

// countingLimiter cuenta los permisos que piden los reintentos.
type countingLimiter struct {
	waits atomic.Int32
}

func (l *countingLimiter) Wait(ctx context.Context) error {
	l.waits.Add(1)
	return ctx.Err()
}

func TestClient_RetriesDrawFromRunLimiter(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"Invoices": []}`)
	}))
	defer server.Close()

	limiter := &countingLimiter{}
	ctx := ratelimit.WithLimiter(context.Background(), limiter)

	c := newTestClient(t, server.URL)
	_, err := c.FindByNumber(ctx, testSession, models.TargetInvoice, "INV-1")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, int32(2), limiter.waits.Load(), "one permit per retry")
}

func TestClient_RetriesAreSpacedByRunLimiter(t *testing.T) {
	var mu sync.Mutex
	var arrivals []time.Time
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		arrivals = append(arrivals, time.Now())
		n := len(arrivals)
		mu.Unlock()
		if n < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"Invoices": []}`)
	}))
	defer server.Close()

	interval := 40 * time.Millisecond
	limiter := ratelimit.New(true, interval)
	// el permiso del primer intento lo toma el llamador
	require.NoError(t, limiter.Wait(context.Background()))
	ctx := ratelimit.WithLimiter(context.Background(), limiter)

	c := newTestClient(t, server.URL)
	_, err := c.FindByNumber(ctx, testSession, models.TargetInvoice, "INV-1")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, arrivals, 3)
	for i := 1; i < len(arrivals); i++ {
		assert.GreaterOrEqual(t, arrivals[i].Sub(arrivals[i-1]), interval-5*time.Millisecond)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 0},
		{"3", 3 * time.Second},
		{"-1", 0},
		{"soon", 0},
		{now.Add(5 * time.Second).Format(http.TimeFormat), 5 * time.Second},
		{now.Add(-5 * time.Second).Format(http.TimeFormat), 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseRetryAfter(tt.value, now), "Retry-After %q", tt.value)
	}
}
