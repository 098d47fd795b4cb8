// Package apperr carries a machine-readable failure kind alongside the error
// chain so the HTTP layer can pick a status without string matching.
package apperr

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindValidation Kind = "validation_error"
	KindFetch      Kind = "fetch_error"
	KindExtraction Kind = "extraction_error"
	KindGeneration Kind = "generation_error"
	KindStore      Kind = "store_error"
	KindNotFound   Kind = "not_found"
	KindBadRequest Kind = "bad_request"
	KindRateLimit  Kind = "rate_limited"
	KindInternal   Kind = "internal_error"
)

// Error is a classified failure. Message is safe to show to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the same request may succeed later.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindFetch, KindGeneration, KindStore, KindRateLimit:
		return true
	}
	return false
}

func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error { return New(KindValidation, message, nil) }

func Fetch(message string, err error) *Error { return New(KindFetch, message, err) }

func Extraction(message string, err error) *Error { return New(KindExtraction, message, err) }

func Generation(message string, err error) *Error { return New(KindGeneration, message, err) }

func Store(message string, err error) *Error { return New(KindStore, message, err) }

func NotFound(message string) *Error { return New(KindNotFound, message, nil) }

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Status maps a kind to its HTTP status.
func Status(kind Kind) int {
	switch kind {
	case KindValidation, KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
