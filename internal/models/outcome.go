package models

import (
	"fmt"
)

// OutcomeKind clasifica el resultado de anular un identificador.
type OutcomeKind int

const (
	OutcomeVoided OutcomeKind = iota + 1
	OutcomeAlreadyVoided
	OutcomeNotFound
	OutcomeRetriableValidationError
	OutcomeFatalValidationError
	OutcomeNetworkError
)

// AllOutcomeKinds lists every kind in report order.
var AllOutcomeKinds = []OutcomeKind{
	OutcomeVoided,
	OutcomeAlreadyVoided,
	OutcomeNotFound,
	OutcomeRetriableValidationError,
	OutcomeFatalValidationError,
	OutcomeNetworkError,
}

var outcomeNames = map[OutcomeKind]string{
	OutcomeVoided:                   "voided",
	OutcomeAlreadyVoided:            "already_voided",
	OutcomeNotFound:                 "not_found",
	OutcomeRetriableValidationError: "retriable_validation_error",
	OutcomeFatalValidationError:     "fatal_validation_error",
	OutcomeNetworkError:             "network_error",
}

func (k OutcomeKind) String() string {
	if name, ok := outcomeNames[k]; ok {
		return name
	}
	return fmt.Sprintf("outcome(%d)", int(k))
}

func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *OutcomeKind) UnmarshalText(text []byte) error {
	for kind, name := range outcomeNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", string(text))
}

// IsFailure reports whether the kind is a true failure an operator must look at.
func (k OutcomeKind) IsFailure() bool {
	return k == OutcomeFatalValidationError || k == OutcomeNetworkError
}

// IsBenign reports whether the document ended in the desired state even though
// the void call itself did not succeed cleanly.
func (k OutcomeKind) IsBenign() bool {
	return k == OutcomeAlreadyVoided || k == OutcomeRetriableValidationError
}

// TagRounding marks a validation error tolerated as a rounding discrepancy.
const TagRounding = "rounding"

// Outcome is produced once per identifier and never modified afterwards.
type Outcome struct {
	Kind    OutcomeKind `json:"kind"`
	Tag     string      `json:"tag,omitempty"`
	Message string      `json:"message,omitempty"`
}

func (o Outcome) String() string {
	s := o.Kind.String()
	if o.Tag != "" {
		s += "(" + o.Tag + ")"
	}
	return s
}

func Voided() Outcome {
	return Outcome{Kind: OutcomeVoided}
}

func AlreadyVoided(message string) Outcome {
	return Outcome{Kind: OutcomeAlreadyVoided, Message: message}
}

func NotFound(message string) Outcome {
	return Outcome{Kind: OutcomeNotFound, Message: message}
}

// RoundingTolerated is a RetriableValidationError tagged "rounding".
func RoundingTolerated(message string) Outcome {
	return Outcome{Kind: OutcomeRetriableValidationError, Tag: TagRounding, Message: message}
}

func FatalValidation(message string) Outcome {
	return Outcome{Kind: OutcomeFatalValidationError, Message: message}
}

func NetworkFailure(err error) Outcome {
	msg := "network error"
	if err != nil {
		msg = err.Error()
	}
	return Outcome{Kind: OutcomeNetworkError, Message: msg}
}
