// Package faults defines the error kinds surfaced by the optimizer and maps
// raw failures to localized explanations.
package faults

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindInvalidInput      Kind = "invalid_input"
	KindExternalService   Kind = "external_service"
	KindMalformedResponse Kind = "malformed_response"
	KindInvalidShape      Kind = "invalid_shape"
	KindOperation         Kind = "operation"
	KindConfiguration     Kind = "configuration"
)

// Error carries a machine-readable kind alongside the underlying cause.
// Status is the HTTP status reported by a remote collaborator, when known.
// Preview holds a truncated copy of an unparseable payload.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Preview string
	Err     error
}

func (e *Error) Error() string {
	message := e.Message
	if message == "" {
		message = string(e.Kind)
	}
	if e.Status != 0 {
		message = fmt.Sprintf("%s (status %d)", message, e.Status)
	}
	if e.Err != nil {
		return message + ": " + e.Err.Error()
	}
	return message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in the chain, or "" when none.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return ""
}

// StatusOf returns the remote HTTP status recorded in the chain, or 0.
func StatusOf(err error) int {
	var classified *Error
	for current := err; current != nil; {
		if !errors.As(current, &classified) {
			return 0
		}
		if classified.Status != 0 {
			return classified.Status
		}
		current = classified.Err
	}
	return 0
}

// IsFallbackEligible reports whether the local classifier may stand in for
// the failed remote workflow.
func IsFallbackEligible(err error) bool {
	switch KindOf(err) {
	case KindExternalService, KindMalformedResponse, KindInvalidShape, KindConfiguration:
		return true
	default:
		return false
	}
}

// Truncate shortens text to at most limit runes, marking the cut with an ellipsis.
func Truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "…"
}
