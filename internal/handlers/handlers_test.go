package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juancollazo-ch/bulk-void-service/internal/api"
	"github.com/juancollazo-ch/bulk-void-service/internal/api/apitest"
	"github.com/juancollazo-ch/bulk-void-service/internal/models"
	"github.com/juancollazo-ch/bulk-void-service/internal/service"
)

func newTestRouter(t *testing.T, remote *apitest.Server) http.Handler {
	t.Helper()
	client, err := api.NewClient(api.Options{
		BaseURL:        remote.URL,
		Timeout:        5 * time.Second,
		RetryAttempts:  1,
		RetryBaseDelay: time.Millisecond,
	})
	require.NoError(t, err)

	svc := service.NewVoidService(client, nil, service.Options{
		RoundingTolerance: 0.02,
		ThrottleThreshold: 60,
		MinInterval:       time.Millisecond,
		Workers:           1,
	})
	return NewRouter(NewVoidHandler(svc, time.Minute))
}

func postVoid(t *testing.T, router http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/void", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, apitest.NewServer(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, ServiceName, resp.Service)
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, apitest.NewServer(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestVoid_EndToEnd(t *testing.T) {
	remote := apitest.NewServer(t)
	remote.Add(models.TargetInvoice, "a1", "INV-1", "AUTHORISED")
	remote.Add(models.TargetInvoice, "a2", "INV-2", "AUTHORISED")
	router := newTestRouter(t, remote)

	rec := postVoid(t, router, models.VoidRequest{
		AccessToken: "token",
		TenantID:    "tenant",
		VoidType:    "Invoices",
		Identifiers: []string{"INV-2", "INV-1"},
		RunID:       "run-42",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(TraceHeader))

	var result service.VoidResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.NotNil(t, result.Report)
	assert.Equal(t, "run-42", result.Report.RunID)
	assert.Equal(t, 2, result.Report.Total)
	assert.Equal(t, 2, result.Report.Processed)
	require.Len(t, result.Report.Items, 2)
	assert.Equal(t, "INV-1", result.Report.Items[0].Identifier)
	assert.Equal(t, models.OutcomeVoided, result.Report.Items[0].Outcome.Kind)
	assert.Equal(t, models.OutcomeVoided, result.Report.Items[1].Outcome.Kind)

	assert.Equal(t, models.StatusVoided, remote.Status("a1"))
	assert.Equal(t, models.StatusVoided, remote.Status("a2"))
}

func TestVoid_MixedOutcomes(t *testing.T) {
	remote := apitest.NewServer(t)
	remote.Add(models.TargetCreditNote, "c1", "CN-1", "VOIDED")
	remote.Add(models.TargetCreditNote, "c2", "CN-2", "AUTHORISED")
	remote.Reject("c2", `{"Elements":[{"ValidationErrors":[{"Message":"Line total 10.00 does not equal expected 10.01"}]}]}`)
	router := newTestRouter(t, remote)

	rec := postVoid(t, router, models.VoidRequest{
		AccessToken: "token",
		TenantID:    "tenant",
		VoidType:    "CreditNotes",
		Identifiers: []string{"CN-1", "CN-2", "CN-3"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result service.VoidResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	report := result.Report
	require.NotNil(t, report)
	assert.Equal(t, "CreditNotes", report.Target)
	assert.Equal(t, 1, report.Count(models.OutcomeAlreadyVoided))
	assert.Equal(t, 1, report.Count(models.OutcomeRetriableValidationError))
	assert.Equal(t, 1, report.Count(models.OutcomeNotFound))
	assert.Equal(t, models.TagRounding, report.Items[1].Outcome.Tag)
}

func TestVoid_DryRunNeedsNoCredentials(t *testing.T) {
	remote := apitest.NewServer(t)
	remote.Add(models.TargetInvoice, "a1", "INV-1", "AUTHORISED")
	router := newTestRouter(t, remote)

	rec := postVoid(t, router, models.VoidRequest{
		VoidType:    "Invoices",
		Identifiers: []string{"INV-1"},
		DryRun:      true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result service.VoidResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.NotNil(t, result.DryRun)
	assert.Equal(t, []string{"INV-1"}, result.DryRun.Identifiers)
	assert.Equal(t, "AUTHORISED", remote.Status("a1"))
}

func TestVoid_MalformedIdentifiersBecomeItems(t *testing.T) {
	remote := apitest.NewServer(t)
	remote.Add(models.TargetInvoice, "a1", "INV-1", "AUTHORISED")
	router := newTestRouter(t, remote)

	rec := postVoid(t, router, models.VoidRequest{
		AccessToken: "token",
		TenantID:    "tenant",
		VoidType:    "Invoices",
		Identifiers: []string{"INV-1", `INV"2`, "", "  "},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result service.VoidResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	report := result.Report
	require.NotNil(t, report)
	assert.Equal(t, 2, report.Total, "blank entries are dropped")
	assert.Equal(t, 2, report.Processed)
	require.Len(t, report.Items, 2)
	assert.Equal(t, `INV"2`, report.Items[0].Identifier)
	assert.Equal(t, models.OutcomeFatalValidationError, report.Items[0].Outcome.Kind)
	assert.Equal(t, "INV-1", report.Items[1].Identifier)
	assert.Equal(t, models.OutcomeVoided, report.Items[1].Outcome.Kind)

	assert.Equal(t, models.StatusVoided, remote.Status("a1"))
}

func TestVoid_Validation(t *testing.T) {
	router := newTestRouter(t, apitest.NewServer(t))

	tests := []struct {
		name string
		body any
	}{
		{"unknown void type", models.VoidRequest{AccessToken: "t", TenantID: "x", VoidType: "Bills", Identifiers: []string{"A"}}},
		{"no identifiers", models.VoidRequest{AccessToken: "t", TenantID: "x", VoidType: "Invoices"}},
		{"only blank identifiers", models.VoidRequest{AccessToken: "t", TenantID: "x", VoidType: "Invoices", Identifiers: []string{"", " "}}},
		{"missing session", models.VoidRequest{VoidType: "Invoices", Identifiers: []string{"A"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postVoid(t, router, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestVoid_InvalidJSONAndMethod(t *testing.T) {
	router := newTestRouter(t, apitest.NewServer(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/void", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/void", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWithLogging_UsesCloudTraceHeader(t *testing.T) {
	var seen string
	h := WithLogging(func(w http.ResponseWriter, r *http.Request) {
		seen = w.Header().Get(TraceHeader)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Cloud-Trace-Context", "abc123/456;o=1")
	h(httptest.NewRecorder(), req)

	assert.Equal(t, "abc123", seen)
}
