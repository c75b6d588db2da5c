package codec

import (
	"context"
	"fmt"
	"reflect"
	"strconv"

	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/bson/bsontype"

	"docmapper/errors"
	"docmapper/lifecycle"
)

// MaxDepth bounds the nesting of one encode or decode call.
const MaxDepth = 100

// Codec encodes and decodes values of one exact Go type.
type Codec interface {
	// Encode writes v to vw.
	Encode(ec *EncodeContext, vw bsonrw.ValueWriter, v reflect.Value) error
	// Decode reads the current value of vr into v. v is settable.
	Decode(dc *DecodeContext, vr bsonrw.ValueReader, v reflect.Value) error
}

// rootReader reports the top-level document of a reader as an embedded
// document. bsonrw gives it no type, and the document codecs switch on
// the type of the value they are handed.
type rootReader struct {
	bsonrw.ValueReader
}

func (r rootReader) Type() bsontype.Type {
	if t := r.ValueReader.Type(); t != bsontype.Type(0) {
		return t
	}
	return bsontype.EmbeddedDocument
}

// documentReader returns a reader positioned on the document data.
func documentReader(data []byte) bsonrw.ValueReader {
	return rootReader{bsonrw.NewBSONDocumentReader(data)}
}

// RefMode tells how a value is stored.
type RefMode int

const (
	RefNone     RefMode = iota // stored inline
	RefCompound                // stored as {$ref: collection, $id: identity}
	RefIDOnly                  // stored as the bare identity
)

// Key identifies a codec in the registry.
type Key struct {
	Type reflect.Type
	Ref  RefMode
	// Lazy references are never fetched while decoding.
	Lazy bool
}

// KeyOf returns the inline key of t.
func KeyOf(t reflect.Type) Key {
	return Key{Type: t}
}

func (k Key) elem(t reflect.Type) Key {
	return Key{Type: t, Ref: k.Ref, Lazy: k.Lazy}
}

func (k Key) String() string {
	switch k.Ref {
	case RefCompound:
		return k.Type.String() + " (reference)"
	case RefIDOnly:
		return k.Type.String() + " (reference, id only)"
	default:
		return k.Type.String()
	}
}

// state is shared by the encode and decode contexts.
type state struct {
	reg   *Registry
	hooks *lifecycle.Context
	path  []string
}

// Registry returns the registry driving the call.
func (s *state) Registry() *Registry {
	return s.reg
}

// Hooks returns the lifecycle context of the call.
func (s *state) Hooks() *lifecycle.Context {
	return s.hooks
}

// Context returns the context.Context of the call.
func (s *state) Context() context.Context {
	return s.hooks
}

// Path returns a copy of the field path currently being processed.
func (s *state) Path() []string {
	return append([]string(nil), s.path...)
}

func (s *state) enter(phase errors.Phase, name string) error {
	s.path = append(s.path, name)
	if len(s.path) > MaxDepth {
		return errors.New(phase, errors.KindDepth).
			Path(s.Path()...).
			Detail("nesting deeper than %d levels", MaxDepth).
			Build()
	}

	return nil
}

func (s *state) enterIndex(phase errors.Phase, i int) error {
	return s.enter(phase, strconv.Itoa(i))
}

func (s *state) leave() {
	s.path = s.path[:len(s.path)-1]
}

// EncodeContext carries the state of one encode call.
type EncodeContext struct {
	state
}

func (ec *EncodeContext) enter(name string) error {
	return ec.state.enter(errors.PhaseEncode, name)
}

func (ec *EncodeContext) enterIndex(i int) error {
	return ec.state.enterIndex(errors.PhaseEncode, i)
}

func (ec *EncodeContext) fail(kind errors.Kind, goType reflect.Type) *errors.Builder {
	b := errors.New(errors.PhaseEncode, kind).Path(ec.Path()...)
	if goType != nil {
		b = b.GoType(goType.String())
	}

	return b
}

// DecodeContext carries the state of one decode call: the instance under
// construction nearest to the value being decoded and the references
// already materialized by the call.
type DecodeContext struct {
	state

	instance *Instance
	pending  []func() error
	fetched  map[string]reflect.Value
}

// Instance returns the object instance under construction that encloses
// the value being decoded, or nil at the top level.
func (dc *DecodeContext) Instance() *Instance {
	return dc.instance
}

// Defer queues fn on the enclosing instance. It runs once, after every
// field of that instance has been read, in registration order. Outside
// of any instance fn runs when the top-level decode completes.
func (dc *DecodeContext) Defer(fn func(owner *Instance) error) {
	if dc.instance != nil {
		dc.instance.Defer(fn)
		return
	}

	dc.pending = append(dc.pending, func() error { return fn(nil) })
}

func (dc *DecodeContext) finish() error {
	for i := 0; i < len(dc.pending); i++ {
		if err := dc.pending[i](); err != nil {
			return err
		}
	}
	dc.pending = nil

	return nil
}

func (dc *DecodeContext) enter(name string) error {
	return dc.state.enter(errors.PhaseDecode, name)
}

func (dc *DecodeContext) enterIndex(i int) error {
	return dc.state.enterIndex(errors.PhaseDecode, i)
}

func (dc *DecodeContext) fail(kind errors.Kind, goType reflect.Type) *errors.Builder {
	b := errors.New(errors.PhaseDecode, kind).Path(dc.Path()...)
	if goType != nil {
		b = b.GoType(goType.String())
	}

	return b
}

func (dc *DecodeContext) mismatch(goType reflect.Type, got fmt.Stringer) error {
	return errors.TypeMismatch(errors.PhaseDecode, dc.Path(), goType.String(), got)
}

// wrap turns errors of the document reader or writer into *errors.Error
// located at the current path. Structured errors pass through.
func (s *state) wrap(phase errors.Phase, err error, goType reflect.Type) error {
	var e *errors.Error
	if errors.As(err, &e) {
		return err
	}

	b := errors.New(phase, errors.KindInvalidData).Path(s.Path()...).Cause(err)
	if goType != nil {
		b = b.GoType(goType.String())
	}

	return b.Build()
}
