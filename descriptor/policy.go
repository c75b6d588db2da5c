package descriptor

import (
	"reflect"

	"docmapper/options"
)

// ShouldWrite is the serialization policy: it decides whether field f with
// value v is written under cfg. The rules apply in order and the first
// match suppresses the field:
//  1. the value is null and nulls are not stored;
//  2. the field is final and finals are ignored;
//  3. the value is an empty container and empties are not stored;
//  4. the field is marked notsaved.
func ShouldWrite(f *FieldDescriptor, v reflect.Value, cfg options.Config) bool {
	switch {
	case IsNull(v) && !cfg.StoreNulls:
		return false
	case f.Options.Final && cfg.IgnoreFinals:
		return false
	case IsEmpty(v) && !cfg.StoreEmpties:
		return false
	case f.Options.NotSaved:
		return false
	default:
		return true
	}
}

// EmptyWhenAbsent reports whether a document lacking f's key decodes f
// as an empty container. That holds for written container fields when
// nulls are stored and empties are not: a nil container would have been
// written as null, so only an empty one is missing.
func EmptyWhenAbsent(f *FieldDescriptor, cfg options.Config) bool {
	switch {
	case !cfg.StoreNulls || cfg.StoreEmpties:
		return false
	case f.Options.NotSaved, f.Options.Final && cfg.IgnoreFinals:
		return false
	case IsValueType(f.Type):
		return false
	}

	k := f.Type.Kind()
	return k == reflect.Slice || k == reflect.Map
}

// IsNull reports whether v holds no value: a nil pointer, interface, slice
// or map.
func IsNull(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}

	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map:
		return v.IsNil()
	default:
		return false
	}
}

// IsEmpty reports whether v is a non-nil container without elements.
// Value types stored as scalars (byte slices, UUIDs) are never empty.
func IsEmpty(v reflect.Value) bool {
	if !v.IsValid() || IsValueType(v.Type()) {
		return false
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Map:
		return !v.IsNil() && v.Len() == 0
	case reflect.Array:
		return v.Len() == 0
	default:
		return false
	}
}
