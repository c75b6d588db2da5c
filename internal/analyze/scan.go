package analyze

import (
	"fmt"
	"sort"
	"strings"

	"docmapper/descriptor"
	"docmapper/errors"
	"docmapper/internal/diagnostic"
	"docmapper/internal/match"
	"docmapper/options"
)

// Role is how a mapped type is stored.
type Role string

const (
	RoleEntity   Role = "entity"
	RoleEmbedded Role = "embedded"
)

// Report lists the mapped types found by Scan.
type Report struct {
	Types []MappedType `yaml:"types"`
}

// MappedType is the storage layout of one struct type.
type MappedType struct {
	Type          string        `yaml:"type"`
	Role          Role          `yaml:"role"`
	Collection    string        `yaml:"collection,omitempty"`
	Discriminator string        `yaml:"discriminator"`
	Always        bool          `yaml:"alwaysDiscriminator,omitempty"`
	Fields        []MappedField `yaml:"fields"`
}

// MappedField is the storage layout of one field.
type MappedField struct {
	Name     string   `yaml:"name"`
	Key      string   `yaml:"key"`
	Type     string   `yaml:"type"`
	AlsoLoad []string `yaml:"alsoLoad,omitempty"`
	Options  []string `yaml:"options,omitempty"`
}

// Find returns the mapped type with the given name.
func (r *Report) Find(name string) (*MappedType, bool) {
	for i := range r.Types {
		if r.Types[i].Type == name {
			return &r.Types[i], true
		}
	}

	return nil, false
}

// Scan reports the storage layout of every mapped struct in the graph and
// the configuration errors a runtime mapping of them would raise. A struct
// is mapped when it embeds a descriptor marker or tags a field with odm.
func Scan(graph *TypeGraph, cfg options.Config) (*Report, *diagnostic.Diagnostics) {
	report := &Report{}
	diags := &diagnostic.Diagnostics{}

	if graph == nil {
		diags.AddError(errors.KindNoCodec, "type graph is nil", "", "")
		return report, diags
	}

	discriminators := make(map[string]string)

	for _, t := range graph.Structs() {
		if !isMapped(t) {
			continue
		}

		mt := scanType(t, cfg, diags)

		if prev, taken := discriminators[mt.Discriminator]; taken {
			diags.AddError(errors.KindDuplicateDiscriminator,
				fmt.Sprintf("discriminator %q already used by %s", mt.Discriminator, prev), mt.Type, "")
		} else {
			discriminators[mt.Discriminator] = mt.Type
		}

		report.Types = append(report.Types, mt)
	}

	if len(report.Types) == 0 {
		diags.AddInfo("no_mapped_types", "no mapped types found", "", "")
	}

	return report, diags
}

func isMapped(t *TypeInfo) bool {
	if marker, _ := t.Marker(); marker != descriptor.MarkerNone {
		return true
	}

	for i := range t.Fields {
		if _, ok := t.Fields[i].MappingTag(); ok {
			return true
		}
	}

	return false
}

type scanField struct {
	field *FieldInfo
	depth int
}

func scanType(t *TypeInfo, cfg options.Config, diags *diagnostic.Diagnostics) MappedType {
	name := t.ID.Short()

	var typeOpts descriptor.TypeOptions

	marker, mf := t.Marker()
	if mf != nil {
		tag, _ := mf.MappingTag()

		var unknown []string
		typeOpts, unknown = descriptor.ParseTypeTag(tag)
		for _, u := range unknown {
			addUnknown(diags, u, descriptor.TypeOptionNames(), name, mf.Name)
		}
	}

	mt := MappedType{
		Type:          name,
		Role:          RoleEmbedded,
		Discriminator: typeOpts.Discriminator,
		Always:        typeOpts.AlwaysDiscriminator,
	}
	if mt.Discriminator == "" {
		mt.Discriminator = name
	}

	var (
		keys  = make(map[string]string)
		idBy  string
		stack = map[*TypeInfo]bool{t: true}
	)

	for _, sf := range dominant(collect(t, 0, stack)) {
		f := sf.field

		opts, unknown := f.Options()
		for _, u := range unknown {
			addUnknown(diags, u, descriptor.FieldOptionNames(), name, f.Name)
		}

		if opts.Transient {
			continue
		}

		if opts.Name == options.IDKey {
			opts.ID = true
		}

		if !storable(f.Type, map[*TypeInfo]bool{}) {
			diags.AddError(errors.KindNotConstructible,
				fmt.Sprintf("values of type %s cannot be instantiated or stored", f.Type.Text), name, f.Name)
			continue
		}

		if (opts.IDOnly || opts.Lazy) && !opts.Reference {
			diags.AddError(errors.KindIncompatibleField, "idonly and lazy require the reference option", name, f.Name)
		}

		if opts.Reference && !referenceable(f.Type) {
			diags.AddError(errors.KindIncompatibleField,
				fmt.Sprintf("reference field must point at a struct or interface, got %s", f.Type.Text), name, f.Name)
		}

		if opts.ID {
			if idBy != "" {
				diags.AddError(errors.KindDuplicateID,
					fmt.Sprintf("identity already declared by field %s", idBy), name, f.Name)
				continue
			}
			idBy = f.Name
		}

		field := MappedField{
			Name:     f.Name,
			Key:      descriptor.StorageKey(f.Name, opts, cfg.FieldNaming),
			Type:     f.Type.Text,
			AlsoLoad: opts.AlsoLoad,
			Options:  optionList(opts),
		}

		duplicate := false
		for _, key := range append([]string{field.Key}, field.AlsoLoad...) {
			if prev, taken := keys[key]; taken {
				diags.AddError(errors.KindDuplicateKey,
					fmt.Sprintf("storage key %q already used by field %s", key, prev), name, f.Name)
				duplicate = true
				break
			}

			if key == cfg.DiscriminatorKey && !typeOpts.NoDiscriminator {
				diags.AddError(errors.KindDuplicateKey,
					fmt.Sprintf("storage key %q is reserved for the discriminator", key), name, f.Name)
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}

		for _, key := range append([]string{field.Key}, field.AlsoLoad...) {
			keys[key] = f.Name
		}

		mt.Fields = append(mt.Fields, field)
	}

	if marker == descriptor.MarkerEmbedded && idBy != "" {
		diags.AddError(errors.KindEmbeddedID, "type is marked Embedded but declares an identity field", name, idBy)
	}

	if marker == descriptor.MarkerEntity || (marker == descriptor.MarkerNone && idBy != "") {
		mt.Role = RoleEntity
		mt.Collection = descriptor.CollectionName(t.ID.Name, typeOpts.Collection, cfg)
	}

	if marker == descriptor.MarkerEntity && idBy == "" {
		diags.AddWarning("missing_id", "entity declares no identity field and cannot be referenced", name, "")
	}

	return mt
}

// collect lists the stored field candidates of t, flattening anonymous
// non-pointer structs declared in analyzed packages.
func collect(t *TypeInfo, depth int, stack map[*TypeInfo]bool) []scanField {
	var out []scanField

	for i := range t.Fields {
		f := &t.Fields[i]
		if f.Type != nil && isMarker(f.Type.ID) {
			continue
		}

		if f.Name == "_" || (!f.Exported && !f.Embedded) {
			continue
		}

		if flattenable(f) && !stack[f.Type] {
			stack[f.Type] = true
			out = append(out, collect(f.Type, depth+1, stack)...)
			delete(stack, f.Type)

			continue
		}

		if f.Exported {
			out = append(out, scanField{field: f, depth: depth})
		}
	}

	return out
}

func flattenable(f *FieldInfo) bool {
	if !f.Embedded || f.Type == nil || f.Type.Kind != TypeKindStruct {
		return false
	}

	tag, ok := f.MappingTag()
	if !ok {
		return true
	}

	opts, _ := descriptor.ParseFieldTag(tag)

	return opts.Name == "" && !opts.Transient && !opts.Reference
}

// dominant keeps the shallowest declaration of each field name and drops
// names declared more than once at that depth.
func dominant(fields []scanField) []scanField {
	byName := make(map[string][]scanField)
	for _, f := range fields {
		byName[f.field.Name] = append(byName[f.field.Name], f)
	}

	out := make([]scanField, 0, len(fields))
	for _, f := range fields {
		group := byName[f.field.Name]

		shallowest, count := group[0].depth, 0
		for _, g := range group {
			shallowest = min(shallowest, g.depth)
		}

		for _, g := range group {
			if g.depth == shallowest {
				count++
			}
		}

		if f.depth == shallowest && count == 1 {
			out = append(out, f)
		}
	}

	return out
}

// storable mirrors descriptor.Classify on the static side.
func storable(t *TypeInfo, seen map[*TypeInfo]bool) bool {
	if t == nil || seen[t] {
		return true
	}
	seen[t] = true

	switch t.Kind {
	case TypeKindUnknown:
		return false
	case TypeKindMap:
		return validMapKey(t.KeyType) && storable(t.ElemType, seen)
	case TypeKindPointer, TypeKindSlice, TypeKindArray:
		return storable(t.ElemType, seen)
	case TypeKindBasic, TypeKindAlias:
		return !strings.HasPrefix(t.Text, "complex") && t.Text != "uintptr" && !strings.Contains(t.Text, "unsafe.Pointer")
	default:
		return true
	}
}

func validMapKey(t *TypeInfo) bool {
	if t == nil || (t.Kind != TypeKindBasic && t.Kind != TypeKindAlias) {
		return false
	}

	text := t.Text
	if t.Underlying != nil {
		text = t.Underlying.Text
	}

	return text == "string" || (strings.Contains(text, "int") && !strings.HasPrefix(text, "uintptr"))
}

func referenceable(t *TypeInfo) bool {
	for t != nil {
		switch t.Kind {
		case TypeKindPointer, TypeKindSlice, TypeKindArray:
			t = t.ElemType
		case TypeKindMap:
			t = t.ElemType
		case TypeKindStruct, TypeKindInterface:
			return true
		default:
			return false
		}
	}

	return false
}

func optionList(opts descriptor.FieldOptions) []string {
	var out []string

	for _, o := range []struct {
		on   bool
		name string
	}{
		{opts.ID, "id"},
		{opts.NotSaved, "notsaved"},
		{opts.Final, "final"},
		{opts.Reference, "reference"},
		{opts.IDOnly, "idonly"},
		{opts.Lazy, "lazy"},
	} {
		if o.on {
			out = append(out, o.name)
		}
	}

	return out
}

func addUnknown(diags *diagnostic.Diagnostics, option string, known []string, typeName, field string) {
	var suggestions []string
	if s, ok := match.Suggest(strings.ToLower(option), known); ok {
		suggestions = append(suggestions, s)
	}

	diags.AddError(errors.KindUnknownOption, fmt.Sprintf("unknown option %q", option), typeName, field, suggestions...)
}

// SortedKeys returns the storage keys of mt in sorted order.
func (mt *MappedType) SortedKeys() []string {
	keys := make([]string, 0, len(mt.Fields))
	for _, f := range mt.Fields {
		keys = append(keys, f.Key)
	}
	sort.Strings(keys)

	return keys
}
