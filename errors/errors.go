// Package errors defines the structured error type shared by every layer of
// the mapper. An Error names the phase it happened in, a kind from a closed
// taxonomy, and where it happened (Go type and field path).
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseMap    Phase = "map"    // descriptor and codec construction
	PhaseEncode Phase = "encode" // Go value to document
	PhaseDecode Phase = "decode" // document to Go value
)

// Kind categorizes the error
type Kind string

// Configuration kinds. They are fatal for the type being mapped.
const (
	KindDuplicateKey           Kind = "duplicate_key"
	KindDuplicateID            Kind = "duplicate_id"
	KindEmbeddedID             Kind = "embedded_id"
	KindDuplicateDiscriminator Kind = "duplicate_discriminator"
	KindNotConstructible       Kind = "not_constructible"
	KindIncompatibleField      Kind = "incompatible_field"
	KindUnknownOption          Kind = "unknown_option"
	KindNoCodec                Kind = "no_codec"
)

// Per-value kinds. They abort the current encode or decode call only.
const (
	KindUnresolvedDiscriminator Kind = "unresolved_discriminator"
	KindUnresolvedReference     Kind = "unresolved_reference"
	KindTypeMismatch            Kind = "type_mismatch"
	KindInvalidData             Kind = "invalid_data"
	KindOverflow                Kind = "overflow"
	KindInvalidEnum             Kind = "invalid_enum"
	KindHook                    Kind = "hook"
	KindDepth                   Kind = "depth"
)

// Error is the structured error type used throughout the mapper
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	GoType string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" {
		b.WriteString(": Go type ")
		b.WriteString(e.GoType)
	}

	if e.Detail != "" {
		if e.GoType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. A target with an empty
// phase or kind matches any phase or kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return (t.Phase == "" || e.Phase == t.Phase) && (t.Kind == "" || e.Kind == t.Kind)
}

// Configuration reports whether the error is a mapping-time configuration
// error, as opposed to a failure of one encode or decode call.
func (e *Error) Configuration() bool {
	return e.Phase == PhaseMap
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, goType string, got fmt.Stringer) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   path,
		GoType: goType,
		Detail: "cannot use document value of type " + got.String(),
	}
}

// Overflow creates a numeric overflow error
func Overflow(phase Phase, path []string, goType string, v any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Path:   path,
		GoType: goType,
		Value:  v,
		Detail: fmt.Sprintf("value %v does not fit", v),
	}
}

// UnresolvedDiscriminator creates an error for a type name no registered
// type answers to
func UnresolvedDiscriminator(path []string, name string) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindUnresolvedDiscriminator,
		Path:   path,
		Value:  name,
		Detail: fmt.Sprintf("no type registered for discriminator %q", name),
	}
}

// WithPath returns err with prefix prepended to its path when err is an
// *Error; other errors are wrapped into an *Error of the given phase.
func WithPath(phase Phase, err error, prefix ...string) error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		cp := *e
		cp.Path = append(append([]string{}, prefix...), e.Path...)
		return &cp
	}

	return &Error{
		Phase: phase,
		Kind:  KindInvalidData,
		Path:  prefix,
		Cause: err,
	}
}

// Is is errors.Is re-exported so callers need a single import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is errors.As re-exported so callers need a single import.
func As(err error, target any) bool {
	return errors.As(err, target)
}
