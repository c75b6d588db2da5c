package codec

import (
	"reflect"

	"docmapper/descriptor"
	"docmapper/primitive"
)

// Dispatch picks the codec family of k. exact reports whether a codec is
// registered for the exact type; it may be nil.
func Dispatch(k Key, exact func(reflect.Type) bool) FamilyEnum {
	t := k.Type
	if t == nil {
		return FamilyUnknown
	}

	if exact != nil && exact(t) {
		return FamilyExact
	}

	if k.Ref != RefNone {
		switch base(t).Kind() {
		case reflect.Struct, reflect.Interface:
			if t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Ptr {
				return FamilyReference
			}
		}
	}

	if t.Kind() == reflect.Ptr {
		return FamilyPointer
	}

	switch primitive.FromReflectType(t) {
	case primitive.KindPrimitiveEnum:
		return FamilyEnumeration
	case 0:
	default:
		return FamilyPrimitive
	}

	if primitive.FromReflectKind(t.Kind()) != 0 {
		return FamilyPrimitive
	}

	switch t.Kind() {
	case reflect.Map:
		return FamilyMap
	case reflect.Slice, reflect.Array:
		return FamilyCollection
	case reflect.Interface:
		if descriptor.IsTopType(t) {
			return FamilyDynamic
		}
		return FamilyPolymorphic
	case reflect.Struct:
		return FamilyObject
	default:
		return FamilyUnknown
	}
}

func base(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	return t
}
