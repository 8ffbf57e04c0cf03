package handlers

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/juancollazo-ch/bulk-void-service/internal/logging"
)

// TraceHeader devuelve el trace id generado o recibido.
const TraceHeader = "X-Trace-Id"

// WithLogging: Logging con Trace ID compatible con GCP
func WithLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		traceID := traceIDFromHeader(r.Header.Get("X-Cloud-Trace-Context"))
		if traceID == "" {
			traceID = uuid.NewString()
		}

		// Obtener Project ID para el formato completo de trace
		projectID := os.Getenv("GCP_PROJECT")
		if projectID == "" {
			projectID = os.Getenv("GOOGLE_CLOUD_PROJECT")
		}

		ctx := logging.WithTraceID(r.Context(), traceID)
		w.Header().Set(TraceHeader, traceID)

		logFields := []zap.Field{
			zap.String("httpRequest.requestMethod", r.Method),
			zap.String("httpRequest.requestUrl", r.URL.Path),
			zap.String("httpRequest.remoteIp", r.RemoteAddr),
			zap.String("httpRequest.userAgent", r.UserAgent()),
			zap.String("trace_id", traceID),
		}
		if projectID != "" {
			logFields = append(logFields, zap.String("logging.googleapis.com/trace", fmt.Sprintf("projects/%s/traces/%s", projectID, traceID)))
		}

		zap.L().Info("Request started", logFields...)

		next(w, r.WithContext(ctx))

		duration := time.Since(start)
		zap.L().Info("Request completed",
			zap.String("httpRequest.requestMethod", r.Method),
			zap.String("httpRequest.requestUrl", r.URL.Path),
			zap.Int64("httpRequest.latency.milliseconds", duration.Milliseconds()),
			zap.Float64("httpRequest.latency.seconds", duration.Seconds()),
			zap.String("trace_id", traceID),
		)
	}
}

// Formato: TRACE_ID/SPAN_ID;o=TRACE_TRUE, solo necesitamos TRACE_ID
func traceIDFromHeader(header string) string {
	if slashIdx := strings.IndexByte(header, '/'); slashIdx != -1 {
		return header[:slashIdx]
	}
	return header
}
