// Package apperr classifies errors crossing the service boundary so
// transport layers can map them to responses without inspecting messages.
package apperr

import (
	"errors"

	"github.com/rotisserie/eris"
)

// Kind identifies a class of failure.
type Kind int

const (
	// KindUnknown is the zero value for unclassified errors.
	KindUnknown Kind = iota
	// KindInvalidInput marks a request missing a required field.
	KindInvalidInput
	// KindNotFound marks a reference to a document that does not exist.
	KindNotFound
	// KindUpstreamFailure marks a failed or timed-out external call
	// (text extraction, LLM, search index).
	KindUpstreamFailure
	// KindMalformedUpstream marks an external response that could not be
	// parsed as the expected schema.
	KindMalformedUpstream
	// KindPersistence marks a store read/write error.
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindUpstreamFailure:
		return "upstream_failure"
	case KindMalformedUpstream:
		return "malformed_upstream_response"
	case KindPersistence:
		return "persistence_failure"
	default:
		return "unknown"
	}
}

// Error carries a Kind alongside the underlying error.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error with a plain message.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Err: eris.New(msg)}
}

// Wrap classifies an existing error, adding a message.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: eris.Wrap(err, msg)}
}

// KindOf returns the Kind of the first classified error in the chain,
// or KindUnknown if none is found.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
