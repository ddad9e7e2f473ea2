// Package errors provides the typed error taxonomy shared by the pack core
// and the packctl CLI layered on top of it.
//
// Kinds follow the five categories a retrieval core can fail in: a caller
// contract violation, a corrupt container, an unsupported format version, a
// semantic rerank requested against a pack that cannot satisfy it, or a bug.
package errors

import "fmt"

// Kind classifies a PackError.
type Kind string

const (
	// KindInvalidInput means the caller supplied a value outside its contract.
	KindInvalidInput Kind = "INVALID_INPUT"
	// KindMalformedPack means the pack bytes are truncated or internally inconsistent.
	KindMalformedPack Kind = "MALFORMED_PACK"
	// KindVersionUnsupported means the pack's format version is newer than this loader understands.
	KindVersionUnsupported Kind = "VERSION_UNSUPPORTED"
	// KindSemanticMissing means a forced semantic rerank was requested on a pack without a semantic section.
	KindSemanticMissing Kind = "SEMANTIC_MISSING"
	// KindInternal means an invariant was violated; implies a bug in this package.
	KindInternal Kind = "INTERNAL"
)

// PackError is the structured error type returned by pack, query, and patch.
type PackError struct {
	Kind    Kind
	Message string

	// Field names the offending input field or index, e.g. "embeddings[17]" or "options.top_k".
	Field string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *PackError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *PackError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a *PackError with the same Kind.
// This enables errors.Is(err, &PackError{Kind: KindMalformedPack}).
func (e *PackError) Is(target error) bool {
	t, ok := target.(*PackError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New creates a PackError with the given kind and message.
func New(kind Kind, message string) *PackError {
	return &PackError{Kind: kind, Message: message}
}

// Newf creates a PackError with a formatted message.
func Newf(kind Kind, format string, args ...any) *PackError {
	return &PackError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithField sets the Field on the error and returns it for chaining.
func (e *PackError) WithField(field string) *PackError {
	e.Field = field
	return e
}

// WithCause sets the underlying cause and returns the error for chaining.
func (e *PackError) WithCause(cause error) *PackError {
	e.Cause = cause
	return e
}

// Wrap creates a PackError of the given kind around a non-nil cause, or
// returns nil if cause is nil.
func Wrap(kind Kind, cause error) *PackError {
	if cause == nil {
		return nil
	}
	return &PackError{Kind: kind, Message: cause.Error(), Cause: cause}
}

// Invalid is a shorthand for New(KindInvalidInput, ...).WithField(field).
func Invalid(field, message string) *PackError {
	return New(KindInvalidInput, message).WithField(field)
}

// Invalidf is a shorthand for Newf(KindInvalidInput, ...).WithField(field).
func Invalidf(field, format string, args ...any) *PackError {
	return Newf(KindInvalidInput, format, args...).WithField(field)
}

// Malformed is a shorthand for New(KindMalformedPack, ...).
func Malformed(message string) *PackError {
	return New(KindMalformedPack, message)
}

// Malformedf is a shorthand for Newf(KindMalformedPack, ...).
func Malformedf(format string, args ...any) *PackError {
	return Newf(KindMalformedPack, format, args...)
}

// KindOf extracts the Kind from err, or "" if err is not a *PackError.
func KindOf(err error) Kind {
	if pe, ok := err.(*PackError); ok {
		return pe.Kind
	}
	return ""
}

// IsKind reports whether err is a *PackError of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
