package analyze

import (
	"reflect"
)

// AddReflect adds t and the named types reachable from its fields to the
// graph, so that types known only at runtime can be checked like loaded
// ones. Packages of reflected types count as analyzed.
func (g *TypeGraph) AddReflect(types ...reflect.Type) {
	cache := make(map[reflect.Type]*TypeInfo)

	for _, t := range types {
		for t.Kind() == reflect.Ptr {
			t = t.Elem()
		}

		if t.PkgPath() != "" {
			if _, ok := g.Packages[t.PkgPath()]; !ok {
				g.Packages[t.PkgPath()] = &PackageInfo{Path: t.PkgPath(), Name: packageName(t)}
			}
		}
	}

	for _, t := range types {
		g.reflectType(t, cache)
	}
}

func (g *TypeGraph) reflectType(t reflect.Type, cache map[reflect.Type]*TypeInfo) *TypeInfo {
	if cached, ok := cache[t]; ok {
		return cached
	}

	info := &TypeInfo{Text: t.String()}
	cache[t] = info

	if t.Name() != "" && t.PkgPath() != "" {
		info.ID = TypeID{PkgPath: t.PkgPath(), Name: t.Name()}
	}

	_, analyzed := g.Packages[t.PkgPath()]

	switch t.Kind() {
	case reflect.Struct:
		if info.IsNamed() && !analyzed && !isMarker(info.ID) {
			info.Kind = TypeKindExternal
			break
		}

		info.Kind = TypeKindStruct
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			info.Fields = append(info.Fields, FieldInfo{
				Name:     f.Name,
				Exported: f.IsExported(),
				Type:     g.reflectType(f.Type, cache),
				Tag:      f.Tag,
				Embedded: f.Anonymous,
				Index:    i,
			})
		}

	case reflect.Ptr:
		info.Kind = TypeKindPointer
		info.ElemType = g.reflectType(t.Elem(), cache)

	case reflect.Slice:
		info.Kind = TypeKindSlice
		info.ElemType = g.reflectType(t.Elem(), cache)

	case reflect.Array:
		info.Kind = TypeKindArray
		info.ElemType = g.reflectType(t.Elem(), cache)

	case reflect.Map:
		info.Kind = TypeKindMap
		info.KeyType = g.reflectType(t.Key(), cache)
		info.ElemType = g.reflectType(t.Elem(), cache)

	case reflect.Interface:
		info.Kind = TypeKindInterface

	case reflect.Chan, reflect.Func, reflect.UnsafePointer, reflect.Invalid:
		info.Kind = TypeKindUnknown

	default:
		info.Kind = TypeKindBasic
		if info.IsNamed() {
			info.Kind = TypeKindAlias
			info.Underlying = &TypeInfo{Kind: TypeKindBasic, Text: t.Kind().String()}
		}
	}

	if info.IsNamed() && analyzed {
		if _, ok := g.Types[info.ID]; !ok {
			g.Types[info.ID] = info
			pkg := g.Packages[info.ID.PkgPath]
			pkg.Types = append(pkg.Types, info.ID)
		}
	}

	return info
}

func packageName(t reflect.Type) string {
	s := t.String()
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return s[:i]
		}
	}

	return s
}
