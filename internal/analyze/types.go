package analyze

import (
	"go/types"
	"reflect"
	"sort"

	"docmapper/descriptor"
	"docmapper/internal/common"
)

// TypeID uniquely identifies a type by its package path and name.
type TypeID struct {
	PkgPath string // e.g., "docmapper/examples/shop"
	Name    string // e.g., "Order"
}

// String returns a human-readable representation of the TypeID.
func (t TypeID) String() string {
	if t.PkgPath == "" {
		return t.Name
	}

	return t.PkgPath + "." + t.Name
}

// Short returns the name qualified by the last package path element, the
// form reflect prints ("shop.Order").
func (t TypeID) Short() string {
	return common.Qualify(t.PkgPath, t.Name)
}

// TypeKind represents the kind of a type.
type TypeKind int

const (
	TypeKindUnknown   TypeKind = iota
	TypeKindBasic              // int, string, bool, etc.
	TypeKindStruct             // struct type
	TypeKindPointer            // pointer to another type
	TypeKindSlice              // slice of another type
	TypeKindArray              // array of another type
	TypeKindMap                // map with key and element types
	TypeKindInterface          // interface, including any
	TypeKindAlias              // named type wrapping a basic type
	TypeKindExternal           // external/opaque type (e.g., time.Time)
)

// String returns a human-readable representation of the TypeKind.
func (k TypeKind) String() string {
	switch k {
	case TypeKindBasic:
		return "basic"
	case TypeKindStruct:
		return "struct"
	case TypeKindPointer:
		return "pointer"
	case TypeKindSlice:
		return "slice"
	case TypeKindArray:
		return "array"
	case TypeKindMap:
		return "map"
	case TypeKindInterface:
		return "interface"
	case TypeKindAlias:
		return "alias"
	case TypeKindExternal:
		return "external"
	default:
		return common.UnknownStr
	}
}

// TypeInfo describes a Go type in the type graph.
type TypeInfo struct {
	ID         TypeID      // Unique identifier (empty for unnamed types like *T or []T)
	Kind       TypeKind    // Kind of type
	Underlying *TypeInfo   // For named types, the underlying type
	ElemType   *TypeInfo   // For pointers, slices, arrays and maps, the element type
	KeyType    *TypeInfo   // For maps, the key type
	Fields     []FieldInfo // For structs, the list of fields
	GoType     types.Type  // The original go/types.Type, nil for reflected types
	Text       string      // Type expression as written, e.g. "[]*shop.Product"
}

// IsNamed returns true if this type has a name (TypeID is set).
func (t *TypeInfo) IsNamed() bool {
	return t.ID.Name != ""
}

// Marker returns how the struct declared its mapping role.
func (t *TypeInfo) Marker() (descriptor.Marker, *FieldInfo) {
	for i := range t.Fields {
		f := &t.Fields[i]
		if !f.Embedded || f.Type == nil {
			continue
		}

		switch f.Type.ID {
		case entityID:
			return descriptor.MarkerEntity, f
		case embeddedID:
			return descriptor.MarkerEmbedded, f
		}
	}

	return descriptor.MarkerNone, nil
}

// FieldInfo describes a struct field.
type FieldInfo struct {
	Name     string            // Go field name
	Exported bool              // Whether the field is exported
	Type     *TypeInfo         // Field type
	Tag      reflect.StructTag // Raw struct tag
	Embedded bool              // Whether the field is embedded (anonymous)
	Index    int               // Field index in the struct
}

// MappingTag returns the raw odm tag and whether the field has one.
func (f *FieldInfo) MappingTag() (string, bool) {
	return f.Tag.Lookup(descriptor.TagKey)
}

// Options parses the odm tag of the field.
func (f *FieldInfo) Options() (descriptor.FieldOptions, []string) {
	tag, _ := f.MappingTag()
	return descriptor.ParseFieldTag(tag)
}

// TypeGraph holds all analyzed types from loaded packages.
type TypeGraph struct {
	// Types maps TypeID to TypeInfo for all named types.
	Types map[TypeID]*TypeInfo
	// Packages maps package paths to their package info.
	Packages map[string]*PackageInfo
}

// NewTypeGraph creates a new empty TypeGraph.
func NewTypeGraph() *TypeGraph {
	return &TypeGraph{
		Types:    make(map[TypeID]*TypeInfo),
		Packages: make(map[string]*PackageInfo),
	}
}

// GetType returns the TypeInfo for a given TypeID, or nil if not found.
func (g *TypeGraph) GetType(id TypeID) *TypeInfo {
	return g.Types[id]
}

// Structs returns the named struct types of the graph ordered by ID.
func (g *TypeGraph) Structs() []*TypeInfo {
	out := make([]*TypeInfo, 0, len(g.Types))
	for _, t := range g.Types {
		if t.Kind == TypeKindStruct {
			out = append(out, t)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})

	return out
}

// PackageInfo holds information about a loaded package.
type PackageInfo struct {
	Path  string   // Import path
	Name  string   // Package name
	Types []TypeID // Named types defined in this package
}

var (
	entityID   = TypeID{PkgPath: reflect.TypeOf(descriptor.Entity{}).PkgPath(), Name: "Entity"}
	embeddedID = TypeID{PkgPath: reflect.TypeOf(descriptor.Embedded{}).PkgPath(), Name: "Embedded"}
)

// FieldNames returns the exported field names of a struct, promoted fields
// of flattened anonymous structs included, in declaration order.
func (t *TypeInfo) FieldNames() []string {
	fields := dominant(collect(t, 0, map[*TypeInfo]bool{t: true}))

	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.field.Name)
	}

	return names
}
