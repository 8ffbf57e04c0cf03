package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// StatusVoided es el estado remoto de un documento anulado.
const StatusVoided = "VOIDED"

// carriedFields se copian tal cual del documento leído al payload de anulación.
// Los montos viajan como json.Number para no reenviar valores redondeados.
var carriedFields = []string{
	"Type",
	"Reference",
	"CurrencyCode",
	"LineAmountTypes",
	"SubTotal",
	"TotalTax",
	"Total",
}

// RemoteInvoice is an invoice or credit note as read from the remote API.
// Fields holds the whole decoded document with numbers kept as json.Number.
type RemoteInvoice struct {
	ID     string
	Number string
	Status string
	Fields map[string]any
}

// IsVoided reports whether the remote document is already voided.
func (inv *RemoteInvoice) IsVoided() bool {
	return strings.EqualFold(inv.Status, StatusVoided)
}

// VoidPayload builds the mutate body for inv:
// {"<Collection>": [{"<IDField>": ..., "<NumberField>": ..., "Status": "VOIDED", ...}]}
func (inv *RemoteInvoice) VoidPayload(target TargetType) map[string]any {
	doc := map[string]any{
		target.IDField():     inv.ID,
		target.NumberField(): inv.Number,
		"Status":             StatusVoided,
	}
	for _, key := range carriedFields {
		if v, ok := inv.Fields[key]; ok && v != nil {
			doc[key] = v
		}
	}

	return map[string]any{
		target.Collection(): []map[string]any{doc},
	}
}

// DecodeCollection extrae los documentos de la colección del envelope
// {"<Collection>": [...]} que devuelve la API.
func DecodeCollection(body []byte, target TargetType) ([]RemoteInvoice, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("invalid JSON envelope: %w", err)
	}

	raw, ok := envelope[target.Collection()]
	if !ok {
		return nil, fmt.Errorf("response has no %q field", target.Collection())
	}

	var docs []map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&docs); err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", target.Collection(), err)
	}

	invoices := make([]RemoteInvoice, 0, len(docs))
	for _, doc := range docs {
		invoices = append(invoices, RemoteInvoice{
			ID:     stringField(doc, target.IDField()),
			Number: stringField(doc, target.NumberField()),
			Status: stringField(doc, "Status"),
			Fields: doc,
		})
	}
	return invoices, nil
}

func stringField(doc map[string]any, key string) string {
	if v, ok := doc[key].(string); ok {
		return v
	}
	return ""
}

// MutateResponse is the raw answer to a void request. Non-success bodies are
// handed to the classifier.
type MutateResponse struct {
	StatusCode int
	Body       []byte
}

// Succeeded reports whether the remote service accepted the void.
func (r *MutateResponse) Succeeded() bool {
	return r.StatusCode == 200 || r.StatusCode == 204
}

// ValidationError es un mensaje de validación de la API remota.
type ValidationError struct {
	Message string `json:"Message"`
}

// ErrorElement is one entry of the Elements list in an error body.
type ErrorElement struct {
	Status           string            `json:"Status,omitempty"`
	ValidationErrors []ValidationError `json:"ValidationErrors,omitempty"`
}

// ErrorResponse covers both error shapes of the remote API: a top-level
// ValidationErrors list and a nested Elements[0].ValidationErrors list.
type ErrorResponse struct {
	ErrorNumber      int               `json:"ErrorNumber,omitempty"`
	Type             string            `json:"Type,omitempty"`
	Message          string            `json:"Message,omitempty"`
	ValidationErrors []ValidationError `json:"ValidationErrors,omitempty"`
	Elements         []ErrorElement    `json:"Elements,omitempty"`
}

// Messages returns every validation message found in either shape,
// nested ones first.
func (r *ErrorResponse) Messages() []string {
	var msgs []string
	if len(r.Elements) > 0 {
		for _, ve := range r.Elements[0].ValidationErrors {
			msgs = append(msgs, ve.Message)
		}
	}
	for _, ve := range r.ValidationErrors {
		msgs = append(msgs, ve.Message)
	}
	return msgs
}

// ElementStatus is the Status echoed back in Elements[0], if any.
func (r *ErrorResponse) ElementStatus() string {
	if len(r.Elements) == 0 {
		return ""
	}
	return r.Elements[0].Status
}
