// Package apitest provides an in-memory accounting API for tests.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/juancollazo-ch/bulk-void-service/internal/models"
)

var wherePattern = regexp.MustCompile(`^(\w+)=="(.*)"$`)

type document struct {
	target models.TargetType
	fields map[string]any
}

// Server sirve GET /{Collection}?where=, GET y POST /{Collection}/{id}.
type Server struct {
	*httptest.Server

	mu      sync.Mutex
	docs    map[string]*document // por id
	rejects map[string]string    // id -> body 400
	keys    []string
}

func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		docs:    make(map[string]*document),
		rejects: make(map[string]string),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Add registers a document.
func (s *Server) Add(target models.TargetType, id, number, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[id] = &document{
		target: target,
		fields: map[string]any{
			target.IDField():     id,
			target.NumberField(): number,
			"Status":             status,
			"Type":               "ACCREC",
			"Total":              json.Number("100.00"),
		},
	}
}

// Reject makes every void of id answer 400 with body.
func (s *Server) Reject(id, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejects[id] = body
}

// Status returns the current status of id.
func (s *Server) Status(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.docs[id]; ok {
		status, _ := d.fields["Status"].(string)
		return status
	}
	return ""
}

// IdempotencyKeys returns the keys of every void received.
func (s *Server) IdempotencyKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.keys...)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") == "" || r.Header.Get("Xero-tenant-id") == "" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	target, err := models.ParseTargetType(parts[0])
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		s.find(w, target, r.URL.Query().Get("where"))
	case len(parts) == 2 && r.Method == http.MethodGet:
		d, ok := s.docs[parts[1]]
		if !ok || d.target != target {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeCollection(w, target, []map[string]any{d.fields})
	case len(parts) == 2 && r.Method == http.MethodPost:
		s.void(w, r, target, parts[1])
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) find(w http.ResponseWriter, target models.TargetType, where string) {
	m := wherePattern.FindStringSubmatch(where)
	if m == nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	out := []map[string]any{}
	for _, d := range s.docs {
		if d.target == target && d.fields[m[1]] == m[2] {
			out = append(out, d.fields)
		}
	}
	writeCollection(w, target, out)
}

func (s *Server) void(w http.ResponseWriter, r *http.Request, target models.TargetType, id string) {
	s.keys = append(s.keys, r.Header.Get("Idempotency-Key"))

	d, ok := s.docs[id]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if body, ok := s.rejects[id]; ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(body))
		return
	}
	if d.fields["Status"] == models.StatusVoided {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"Elements": []map[string]any{{
				"Status": models.StatusVoided,
				"ValidationErrors": []map[string]string{
					{"Message": "This document is not of valid status for modification"},
				},
			}},
		})
		return
	}

	var body map[string][]map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body[target.Collection()]) != 1 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	d.fields["Status"] = body[target.Collection()][0]["Status"]
	writeCollection(w, target, []map[string]any{d.fields})
}

func writeCollection(w http.ResponseWriter, target models.TargetType, docs []map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"Status":            "OK",
		target.Collection(): docs,
	})
}
