// internal/logging/context.go
package logging

import (
	"context"

	"go.uber.org/zap"

	"github.com/juancollazo-ch/bulk-void-service/internal/contextkeys"
)

// FieldsFromContext extrae los campos de logging (trace_id, run_id, tenant_id)
// del contexto y los devuelve como un slice de zap.Field.
func FieldsFromContext(ctx context.Context) []zap.Field {
	fields := []zap.Field{}
	if tid, ok := ctx.Value(contextkeys.TraceIDKey).(string); ok && tid != "" {
		fields = append(fields, zap.String("trace_id", tid))
	}
	if rid, ok := ctx.Value(contextkeys.RunIDKey).(string); ok && rid != "" {
		fields = append(fields, zap.String("run_id", rid))
	}
	if tenant, ok := ctx.Value(contextkeys.TenantIDKey).(string); ok && tenant != "" {
		fields = append(fields, zap.String("tenant_id", tenant))
	}
	return fields
}

// WithRunFields añade run_id y tenant_id al contexto si están presentes.
func WithRunFields(ctx context.Context, runID, tenantID string) context.Context {
	if runID != "" {
		ctx = context.WithValue(ctx, contextkeys.RunIDKey, runID)
	}
	if tenantID != "" {
		ctx = context.WithValue(ctx, contextkeys.TenantIDKey, tenantID)
	}
	return ctx
}

// WithTraceID guarda el trace id del request.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		return ctx
	}
	return context.WithValue(ctx, contextkeys.TraceIDKey, traceID)
}

// FromContext devuelve el logger global con los campos del contexto.
func FromContext(ctx context.Context) *zap.Logger {
	return zap.L().With(FieldsFromContext(ctx)...)
}
