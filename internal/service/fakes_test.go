package service

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	apperrors "github.com/juancollazo-ch/bulk-void-service/internal/errors"
	"github.com/juancollazo-ch/bulk-void-service/internal/models"
)

var testSession = models.Session{AccessToken: "token", TenantID: "tenant"}

// fakeAPI guarda documentos por número y marca VOIDED en cada void exitoso.
type fakeAPI struct {
	mu    sync.Mutex
	docs  map[string]*models.RemoteInvoice
	finds int
	gets  int
	voids int
	keys  []string

	findErr  error
	getErr   error
	voidResp func(inv *models.RemoteInvoice) (*models.MutateResponse, error)
}

func newFakeAPI(docs ...models.RemoteInvoice) *fakeAPI {
	f := &fakeAPI{docs: make(map[string]*models.RemoteInvoice)}
	for i := range docs {
		d := docs[i]
		f.docs[d.Number] = &d
	}
	return f
}

func doc(id, number, status string) models.RemoteInvoice {
	return models.RemoteInvoice{
		ID:     id,
		Number: number,
		Status: status,
		Fields: map[string]any{"Type": "ACCREC", "Total": "100.00"},
	}
}

func (f *fakeAPI) FindByNumber(ctx context.Context, s models.Session, target models.TargetType, number string) ([]models.RemoteInvoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds++
	if f.findErr != nil {
		return nil, f.findErr
	}
	d, ok := f.docs[number]
	if !ok {
		return nil, nil
	}
	return []models.RemoteInvoice{*d}, nil
}

func (f *fakeAPI) Get(ctx context.Context, s models.Session, target models.TargetType, id string) (*models.RemoteInvoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, d := range f.docs {
		if d.ID == id {
			cp := *d
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound("InvoiceID "+id, nil)
}

func (f *fakeAPI) Void(ctx context.Context, s models.Session, target models.TargetType, inv *models.RemoteInvoice, key string) (*models.MutateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.voids++
	f.keys = append(f.keys, key)
	if f.voidResp != nil {
		return f.voidResp(inv)
	}
	f.docs[inv.Number].Status = models.StatusVoided
	return &models.MutateResponse{StatusCode: http.StatusOK}, nil
}

func (f *fakeAPI) counts() (finds, gets, voids int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finds, f.gets, f.voids
}

// recordingVoider registra cuándo arranca cada identificador.
type recordingVoider struct {
	mu       sync.Mutex
	calls    []string
	starts   []time.Time
	outcomes map[string]models.Outcome
	hook     func(number string)
}

func (r *recordingVoider) Void(ctx context.Context, s models.Session, target models.TargetType, number string) models.Outcome {
	r.mu.Lock()
	r.calls = append(r.calls, number)
	r.starts = append(r.starts, time.Now())
	out, ok := r.outcomes[number]
	hook := r.hook
	r.mu.Unlock()

	if hook != nil {
		hook(number)
	}
	if !ok {
		return models.Voided()
	}
	return out
}

func (r *recordingVoider) snapshot() ([]string, []time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...), append([]time.Time(nil), r.starts...)
}

// fakeClock avanza step en cada lectura.
type fakeClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(c.step)
	return c.t
}

// remoteCall es una llamada a la API con su hora de inicio.
type remoteCall struct {
	op     string
	number string
	at     time.Time
}

// timedAPI registra la hora de cada llamada remota; findDelay simula un resolve lento.
type timedAPI struct {
	*fakeAPI
	findDelay map[string]time.Duration

	callsMu sync.Mutex
	calls   []remoteCall
}

func (a *timedAPI) record(op, number string) {
	a.callsMu.Lock()
	defer a.callsMu.Unlock()
	a.calls = append(a.calls, remoteCall{op: op, number: number, at: time.Now()})
}

func (a *timedAPI) FindByNumber(ctx context.Context, s models.Session, target models.TargetType, number string) ([]models.RemoteInvoice, error) {
	a.record("find", number)
	time.Sleep(a.findDelay[number])
	return a.fakeAPI.FindByNumber(ctx, s, target, number)
}

func (a *timedAPI) Get(ctx context.Context, s models.Session, target models.TargetType, id string) (*models.RemoteInvoice, error) {
	a.record("get", id)
	return a.fakeAPI.Get(ctx, s, target, id)
}

func (a *timedAPI) Void(ctx context.Context, s models.Session, target models.TargetType, inv *models.RemoteInvoice, key string) (*models.MutateResponse, error) {
	a.record("void", inv.Number)
	return a.fakeAPI.Void(ctx, s, target, inv, key)
}

// startTimes devuelve las horas de las llamadas op ("" = todas), ordenadas.
func (a *timedAPI) startTimes(op string) []time.Time {
	a.callsMu.Lock()
	defer a.callsMu.Unlock()
	var out []time.Time
	for _, c := range a.calls {
		if op == "" || c.op == op {
			out = append(out, c.at)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
