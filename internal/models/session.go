package models

import (
	"fmt"
	"strings"
)

// Session contiene las credenciales de una corrida. Se obtiene una sola vez
// y no cambia mientras dura la corrida.
type Session struct {
	AccessToken string
	TenantID    string
}

// Valid indica si la sesión trae token y tenant.
func (s Session) Valid() bool {
	return s.AccessToken != "" && s.TenantID != ""
}

// TargetType selecciona la colección remota sobre la que se anulan documentos.
type TargetType string

const (
	TargetInvoice    TargetType = "Invoices"
	TargetCreditNote TargetType = "CreditNotes"
)

// ParseTargetType acepta el nombre de la colección ("Invoices", "CreditNotes")
// sin importar mayúsculas.
func ParseTargetType(s string) (TargetType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "invoices", "invoice":
		return TargetInvoice, nil
	case "creditnotes", "creditnote":
		return TargetCreditNote, nil
	}
	return "", fmt.Errorf("void type must be Invoices or CreditNotes, got %q", s)
}

// Valid reports whether t is one of the supported collections.
func (t TargetType) Valid() bool {
	return t == TargetInvoice || t == TargetCreditNote
}

// Collection is the path segment and envelope key of the remote collection.
func (t TargetType) Collection() string {
	return string(t)
}

// IDField is the name of the opaque identifier field.
func (t TargetType) IDField() string {
	if t == TargetCreditNote {
		return "CreditNoteID"
	}
	return "InvoiceID"
}

// NumberField is the name of the human-facing document number field.
func (t TargetType) NumberField() string {
	if t == TargetCreditNote {
		return "CreditNoteNumber"
	}
	return "InvoiceNumber"
}
