package worker

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Task procesa el elemento i del lote.
type Task func(ctx context.Context, i int) error

// Pool reparte n tareas entre un número fijo de workers.
type Pool struct {
	workers int
}

func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 5
	}
	return &Pool{workers: workers}
}

// Workers returns the concurrency limit.
func (p *Pool) Workers() int {
	return p.workers
}

// Run ejecuta task para cada índice en orden ascendente de arranque.
// Deja de encolar cuando el contexto se cancela o una tarea falla; devuelve
// el primer error de tarea, o el error del contexto.
func (p *Pool) Run(ctx context.Context, n int, task Task) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	zap.L().Debug("worker pool iniciado", zap.Int("workers", p.workers), zap.Int("tasks", n))

	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			return task(gctx, i)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
