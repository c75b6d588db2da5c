package descriptor

import (
	"reflect"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Class is the codec family a field belongs to.
type Class int

const (
	ClassScalar Class = iota + 1
	ClassCollection
	ClassMap
	ClassEmbedded
	ClassReference
	ClassPolymorphic
)

func (c Class) String() string {
	switch c {
	case ClassScalar:
		return "scalar"
	case ClassCollection:
		return "collection"
	case ClassMap:
		return "map"
	case ClassEmbedded:
		return "embedded"
	case ClassReference:
		return "reference"
	case ClassPolymorphic:
		return "polymorphic"
	default:
		return "unknown"
	}
}

// TypeDescriptor is the mapping metadata of one struct type.
type TypeDescriptor struct {
	Type reflect.Type
	// Name is the Go type name used in errors and mapping files.
	Name    string
	Options TypeOptions
	// Collection is the storage collection of entities.
	Collection string
	// Discriminator is the value written under the discriminator key.
	Discriminator string
	// Fields lists the stored fields in declaration order, promoted fields
	// of embedded structs at the position of their embedding.
	Fields []*FieldDescriptor
	// ID is the identity field, or nil.
	ID *FieldDescriptor

	byKey       map[string]*FieldDescriptor
	byName      map[string]*FieldDescriptor
	embeds      []reflect.Type
	fingerprint uint32
}

// IsEntity reports whether the type is a top-level document: marked as
// Entity, or unmarked with an identity field.
func (d *TypeDescriptor) IsEntity() bool {
	return d.Options.Marker == MarkerEntity || (d.Options.Marker == MarkerNone && d.ID != nil)
}

// UsesDiscriminator reports whether the type ever writes its discriminator.
func (d *TypeDescriptor) UsesDiscriminator() bool {
	return !d.Options.NoDiscriminator
}

// NeedsDiscriminator decides whether a value of this type, written where a
// value of declared type is expected, carries its discriminator.
func (d *TypeDescriptor) NeedsDiscriminator(declared reflect.Type) bool {
	if !d.UsesDiscriminator() {
		return false
	}

	return d.Options.AlwaysDiscriminator || declared != d.Type
}

// FieldByKey resolves a document key to the field it decodes into. Keys
// listed with alsoload resolve too.
func (d *TypeDescriptor) FieldByKey(key string) (*FieldDescriptor, bool) {
	f, ok := d.byKey[key]
	return f, ok
}

// FieldByName returns the field with the given Go name.
func (d *TypeDescriptor) FieldByName(name string) (*FieldDescriptor, bool) {
	f, ok := d.byName[name]
	return f, ok
}

// Embeds reports whether t is one of the anonymous structs flattened into d.
func (d *TypeDescriptor) Embeds(t reflect.Type) bool {
	for _, e := range d.embeds {
		if e == t {
			return true
		}
	}

	return false
}

// Fingerprint is a hash of the stored layout: keys, field types and the
// discriminator. Two descriptors with equal fingerprints read and write the
// same documents.
func (d *TypeDescriptor) Fingerprint() uint32 {
	return d.fingerprint
}

// IDValue returns the identity of v, a value of d.Type.
func (d *TypeDescriptor) IDValue(v reflect.Value) (reflect.Value, bool) {
	if d.ID == nil {
		return reflect.Value{}, false
	}

	return v.FieldByIndex(d.ID.Index), true
}

// FieldDescriptor is the mapping metadata of one stored field.
type FieldDescriptor struct {
	// Name is the Go field name.
	Name string
	// Key is the document key.
	Key string
	// AlsoLoad lists additional keys accepted on decode.
	AlsoLoad []string
	// Index is the reflect index path from the owning struct.
	Index []int
	Type  reflect.Type
	// Params are the element type of a collection, or the key and value
	// types of a map.
	Params  []reflect.Type
	Class   Class
	Options FieldOptions
}

// Value returns the field of v, a value of the owning struct type.
func (f *FieldDescriptor) Value(v reflect.Value) reflect.Value {
	return v.FieldByIndex(f.Index)
}

// HasUnknownParams reports whether a type parameter is the empty interface
// and must be resolved from the document at decode time.
func (f *FieldDescriptor) HasUnknownParams() bool {
	for _, p := range f.Params {
		if IsTopType(p) {
			return true
		}
	}

	return false
}

// IsTopType reports whether t is the empty interface.
func IsTopType(t reflect.Type) bool {
	return t != nil && t.Kind() == reflect.Interface && t.NumMethod() == 0
}

var (
	timeType       = reflect.TypeOf(time.Time{})
	objectIDType   = reflect.TypeOf(primitive.ObjectID{})
	decimalType    = reflect.TypeOf(primitive.Decimal128{})
	dateTimeType   = reflect.TypeOf(primitive.DateTime(0))
	uuidType       = reflect.TypeOf(uuid.UUID{})
	bytesType      = reflect.TypeOf([]byte(nil))
	rawType        = reflect.TypeOf(bson.Raw(nil))
	rawValueType   = reflect.TypeOf(bson.RawValue{})
	valueLikeTypes = map[reflect.Type]struct{}{
		timeType:     {},
		objectIDType: {},
		decimalType:  {},
		dateTimeType: {},
		uuidType:     {},
		bytesType:    {},
		rawType:      {},
		rawValueType: {},
	}
)

// IsValueType reports whether t is stored as a single document scalar even
// though its Go kind is a struct, array or slice.
func IsValueType(t reflect.Type) bool {
	_, ok := valueLikeTypes[t]
	return ok
}

// Classify returns the class of a field of type t. ok is false for types
// that cannot be stored at all.
func Classify(t reflect.Type, opts FieldOptions) (Class, bool) {
	if !constructible(t, map[reflect.Type]bool{}) {
		return 0, false
	}

	if opts.Reference {
		return ClassReference, true
	}

	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if IsValueType(t) {
		return ClassScalar, true
	}

	switch t.Kind() {
	case reflect.Interface:
		return ClassPolymorphic, true
	case reflect.Slice, reflect.Array:
		return ClassCollection, true
	case reflect.Map:
		return ClassMap, true
	case reflect.Struct:
		return ClassEmbedded, true
	default:
		return ClassScalar, true
	}
}

// ParamsOf returns the element type of collections and the key and value
// types of maps, looking through pointers.
func ParamsOf(t reflect.Type) []reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if IsValueType(t) {
		return nil
	}

	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return []reflect.Type{t.Elem()}
	case reflect.Map:
		return []reflect.Type{t.Key(), t.Elem()}
	default:
		return nil
	}
}

// ReferenceTarget strips pointers and containers from a reference field
// type down to the referenced entity type.
func ReferenceTarget(t reflect.Type) reflect.Type {
	for {
		switch t.Kind() {
		case reflect.Ptr, reflect.Slice, reflect.Array, reflect.Map:
			t = t.Elem()
		default:
			return t
		}
	}
}

// constructible reports whether values of t can be created and stored.
// Struct types are checked when their own descriptor is built.
func constructible(t reflect.Type, seen map[reflect.Type]bool) bool {
	if seen[t] {
		return true
	}
	seen[t] = true

	switch t.Kind() {
	case reflect.Chan, reflect.Func, reflect.Complex64, reflect.Complex128,
		reflect.UnsafePointer, reflect.Uintptr, reflect.Invalid:
		return false
	case reflect.Ptr, reflect.Slice, reflect.Array:
		return constructible(t.Elem(), seen)
	case reflect.Map:
		if !validMapKey(t.Key()) {
			return false
		}
		return constructible(t.Elem(), seen)
	default:
		return true
	}
}

func validMapKey(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}
