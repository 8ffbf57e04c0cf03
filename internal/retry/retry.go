package retry

import (
	"context"
	"math/rand"
	"time"

	apperrors "github.com/juancollazo-ch/bulk-void-service/internal/errors"
)

// WithRetry ejecuta fn hasta attempts veces con backoff exponencial y jitter.
// Solo reintenta errores marcados como Retryable (429, 5xx, fallas de red);
// cualquier otro error se devuelve de inmediato.
func WithRetry(
	ctx context.Context,
	attempts int,
	baseDelay time.Duration,
	fn func() error,
) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error

	for i := 1; i <= attempts; i++ {
		// Verificar si el context expiró
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err = fn()
		if err == nil {
			return nil
		}

		if !apperrors.IsRetryable(err) {
			return err
		}

		// No hacer sleep en el último intento
		if i == attempts {
			break
		}

		// Backoff exponencial con jitter
		sleep := baseDelay * time.Duration(1<<uint(i-1))
		if baseDelay > 0 {
			sleep += time.Duration(rand.Int63n(int64(baseDelay)))
		}
		// Retry-After del servidor es un piso, nunca se reintenta antes
		if wait := apperrors.RetryAfter(err); wait > sleep {
			sleep = wait
		}

		// Sleep con context awareness
		select {
		case <-time.After(sleep):
			// Continuar al siguiente intento
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return err
}
