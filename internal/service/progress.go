package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/juancollazo-ch/bulk-void-service/internal/models"
)

// RunProgress cuenta los identificadores procesados de una corrida.
// Es seguro para uso concurrente.
type RunProgress struct {
	mu        sync.Mutex
	total     int
	processed int
	startedAt time.Time
}

func NewRunProgress(total int, startedAt time.Time) *RunProgress {
	return &RunProgress{total: total, startedAt: startedAt}
}

// Complete registra un identificador terminado y devuelve el snapshot
// resultante. processed nunca supera total.
func (p *RunProgress) Complete(now time.Time) (processed int, eta time.Duration, known bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.processed < p.total {
		p.processed++
	}
	eta, known = p.etaLocked(now)
	return p.processed, eta, known
}

// Processed returns the number of completed identifiers.
func (p *RunProgress) Processed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.processed
}

// Total returns the size of the identifier set.
func (p *RunProgress) Total() int {
	return p.total
}

// ETA estima el tiempo restante como promedio por llamada * pendientes.
// Antes del primer identificador no hay estimación.
func (p *RunProgress) ETA(now time.Time) (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.etaLocked(now)
}

func (p *RunProgress) etaLocked(now time.Time) (time.Duration, bool) {
	if p.processed == 0 {
		return 0, false
	}
	elapsed := now.Sub(p.startedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	avg := elapsed / time.Duration(p.processed)
	return avg * time.Duration(p.total-p.processed), true
}

// ProgressEvent se emite después de cada identificador.
type ProgressEvent struct {
	Identifier string
	Outcome    models.Outcome
	Processed  int
	Total      int
	ETA        time.Duration
	ETAKnown   bool
}

// ETASeconds returns the estimate in seconds, or -1 when unknown.
func (e ProgressEvent) ETASeconds() float64 {
	if !e.ETAKnown {
		return -1
	}
	return e.ETA.Seconds()
}

// ProgressObserver recibe los eventos de progreso. Con más de un worker
// puede ser llamado desde distintas goroutines, pero nunca en paralelo.
type ProgressObserver interface {
	OnProgress(ProgressEvent)
}

// ObserverFunc adapts a function to ProgressObserver.
type ObserverFunc func(ProgressEvent)

func (f ObserverFunc) OnProgress(e ProgressEvent) { f(e) }

// FormatETA renders HH:MM:SS, or "unknown".
func FormatETA(d time.Duration, known bool) string {
	if !known {
		return "unknown"
	}
	secs := int64(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}
