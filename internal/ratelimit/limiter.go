// internal/ratelimit/limiter.go
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/juancollazo-ch/bulk-void-service/internal/contextkeys"
)

// Limiter entrega un permiso por llamada remota.
type Limiter interface {
	Wait(ctx context.Context) error
}

// New devuelve un token bucket de un permiso cada interval, burst 1.
// Sin throttle el límite es infinito.
func New(throttle bool, interval time.Duration) *rate.Limiter {
	if !throttle || interval <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// WithLimiter comparte el limiter de la corrida con todo lo que llama a la API.
func WithLimiter(ctx context.Context, l Limiter) context.Context {
	if l == nil {
		return ctx
	}
	return context.WithValue(ctx, contextkeys.LimiterKey, l)
}

// FromContext returns nil when the context carries no limiter.
func FromContext(ctx context.Context) Limiter {
	l, _ := ctx.Value(contextkeys.LimiterKey).(Limiter)
	return l
}

// Wait toma un permiso del limiter del contexto; sin limiter no espera.
func Wait(ctx context.Context) error {
	l := FromContext(ctx)
	if l == nil {
		return ctx.Err()
	}
	return l.Wait(ctx)
}
