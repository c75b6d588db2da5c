package descriptor

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"docmapper/errors"
	"docmapper/internal/diagnostic"
	"docmapper/internal/match"
	"docmapper/options"
)

// Builder builds descriptors under one configuration.
type Builder struct {
	Config    options.Config
	Overrides Overrides
}

// candidate is a struct field reached while flattening anonymous structs.
type candidate struct {
	field reflect.StructField
	index []int
	depth int
}

// Build walks the storage fields of t (a struct or pointer to struct) and
// returns its descriptor. All configuration problems of the type are
// reported together.
func (b Builder) Build(t reflect.Type) (*TypeDescriptor, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct {
		return nil, errors.New(errors.PhaseMap, errors.KindNoCodec).
			GoType(t.String()).
			Detail("only struct types have descriptors").
			Build()
	}

	d := &TypeDescriptor{
		Type:   t,
		Name:   t.String(),
		byKey:  make(map[string]*FieldDescriptor),
		byName: make(map[string]*FieldDescriptor),
	}

	var diags diagnostic.Diagnostics

	typeOpts, cands := b.walk(t, nil, 0, d, &diags)

	override, hasOverride := b.Overrides.lookup(d.Name, t.PkgPath()+"."+t.Name())
	if hasOverride {
		typeOpts = override.apply(typeOpts)
	}

	d.Options = typeOpts
	d.Collection = CollectionName(t.Name(), typeOpts.Collection, b.Config)
	d.Discriminator = typeOpts.Discriminator
	if d.Discriminator == "" {
		d.Discriminator = d.Name
	}

	cands = dominant(cands)

	for _, c := range cands {
		b.addField(d, c, override.Fields, &diags)
	}

	if hasOverride {
		checkOverrideFields(d, cands, override.Fields, &diags)
	}

	if typeOpts.Marker == MarkerEmbedded && d.ID != nil {
		diags.AddError(errors.KindEmbeddedID,
			"type is marked Embedded but declares an identity field", d.Name, d.ID.Name)
	}

	if err := diags.Err(); err != nil {
		return nil, err
	}

	d.fingerprint = fingerprint(d)

	return d, nil
}

// walk collects the marker options of t and its stored field candidates,
// flattening anonymous non-pointer structs.
func (b Builder) walk(
	t reflect.Type, prefix []int, depth int, d *TypeDescriptor, diags *diagnostic.Diagnostics,
) (TypeOptions, []candidate) {
	var (
		opts  TypeOptions
		cands []candidate
	)

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		index := append(append([]int{}, prefix...), i)

		if marker := markerOf(f); marker != MarkerNone {
			if depth > 0 {
				continue
			}

			parsed, unknown := ParseTypeTag(f.Tag.Get(TagKey))
			parsed.Marker = marker
			opts = parsed

			for _, u := range unknown {
				addUnknown(diags, u, typeOptionNames, d.Name, f.Name)
			}

			continue
		}

		if f.Name == "_" || (!f.IsExported() && !f.Anonymous) {
			continue
		}

		if flattenable(f) {
			d.embeds = append(d.embeds, f.Type)
			_, inner := b.walk(f.Type, index, depth+1, d, diags)
			cands = append(cands, inner...)

			continue
		}

		if !f.IsExported() {
			continue
		}

		cands = append(cands, candidate{field: f, index: index, depth: depth})
	}

	return opts, cands
}

// flattenable reports whether an anonymous field contributes its fields to
// the outer struct instead of being stored under its own key.
func flattenable(f reflect.StructField) bool {
	if !f.Anonymous || f.Type.Kind() != reflect.Struct || IsValueType(f.Type) {
		return false
	}

	tag, ok := f.Tag.Lookup(TagKey)
	if !ok {
		return true
	}

	opts, _ := ParseFieldTag(tag)

	return opts.Name == "" && !opts.Transient && !opts.Reference
}

// dominant applies Go's promotion rules: a name declared at a shallower
// depth hides deeper ones, and names tied at the shallowest depth cancel
// out.
func dominant(cands []candidate) []candidate {
	byName := make(map[string][]candidate)
	for _, c := range cands {
		byName[c.field.Name] = append(byName[c.field.Name], c)
	}

	out := make([]candidate, 0, len(cands))
	for _, c := range cands {
		group := byName[c.field.Name]

		shallowest, count := group[0].depth, 0
		for _, g := range group {
			shallowest = min(shallowest, g.depth)
		}

		for _, g := range group {
			if g.depth == shallowest {
				count++
			}
		}

		if c.depth == shallowest && count == 1 {
			out = append(out, c)
		}
	}

	return out
}

func (b Builder) addField(
	d *TypeDescriptor, c candidate, overrides map[string]FieldOverride, diags *diagnostic.Diagnostics,
) {
	f := c.field

	opts, unknown := ParseFieldTag(f.Tag.Get(TagKey))
	for _, u := range unknown {
		addUnknown(diags, u, fieldOptionNames, d.Name, f.Name)
	}

	if ov, ok := overrides[f.Name]; ok {
		opts = ov.apply(opts)
	}

	if opts.Transient {
		return
	}

	if opts.Name == options.IDKey {
		opts.ID = true
	}

	class, ok := Classify(f.Type, opts)
	if !ok {
		diags.AddError(errors.KindNotConstructible,
			fmt.Sprintf("values of type %s cannot be instantiated or stored", f.Type), d.Name, f.Name)
		return
	}

	if (opts.IDOnly || opts.Lazy) && !opts.Reference {
		diags.AddError(errors.KindIncompatibleField,
			"idonly and lazy require the reference option", d.Name, f.Name)
	}

	if opts.Reference {
		target := ReferenceTarget(f.Type)
		if target.Kind() != reflect.Struct && target.Kind() != reflect.Interface {
			diags.AddError(errors.KindIncompatibleField,
				fmt.Sprintf("reference field must point at a struct or interface, got %s", f.Type), d.Name, f.Name)
		}

		if opts.ID {
			diags.AddError(errors.KindIncompatibleField,
				"identity field cannot be a reference", d.Name, f.Name)
		}
	}

	fd := &FieldDescriptor{
		Name:     f.Name,
		Key:      StorageKey(f.Name, opts, b.Config.FieldNaming),
		AlsoLoad: opts.AlsoLoad,
		Index:    c.index,
		Type:     f.Type,
		Params:   ParamsOf(f.Type),
		Class:    class,
		Options:  opts,
	}

	if opts.ID {
		if d.ID != nil {
			diags.AddError(errors.KindDuplicateID,
				fmt.Sprintf("identity already declared by field %s", d.ID.Name), d.Name, f.Name)
			return
		}

		d.ID = fd
	}

	for _, key := range append([]string{fd.Key}, fd.AlsoLoad...) {
		if prev, taken := d.byKey[key]; taken {
			diags.AddError(errors.KindDuplicateKey,
				fmt.Sprintf("storage key %q already used by field %s", key, prev.Name), d.Name, f.Name)
			return
		}

		if key == b.Config.DiscriminatorKey && !d.Options.NoDiscriminator {
			diags.AddError(errors.KindDuplicateKey,
				fmt.Sprintf("storage key %q is reserved for the discriminator", key), d.Name, f.Name)
			return
		}
	}

	for _, key := range append([]string{fd.Key}, fd.AlsoLoad...) {
		d.byKey[key] = fd
	}

	d.byName[fd.Name] = fd
	d.Fields = append(d.Fields, fd)
}

func checkOverrideFields(
	d *TypeDescriptor, cands []candidate, overrides map[string]FieldOverride, diags *diagnostic.Diagnostics,
) {
	names := make([]string, 0, len(cands))
	for _, c := range cands {
		names = append(names, c.field.Name)
	}

	unknown := make([]string, 0)
	for name := range overrides {
		found := false
		for _, n := range names {
			if n == name {
				found = true
				break
			}
		}

		if !found {
			unknown = append(unknown, name)
		}
	}

	sort.Strings(unknown)

	for _, name := range unknown {
		var suggestions []string
		if s, ok := match.Suggest(name, names); ok {
			suggestions = append(suggestions, s)
		}

		diags.AddError(errors.KindUnknownOption,
			fmt.Sprintf("override names unknown field %q", name), d.Name, name, suggestions...)
	}
}

func addUnknown(diags *diagnostic.Diagnostics, option string, known []string, typeName, field string) {
	var suggestions []string
	if s, ok := match.Suggest(strings.ToLower(option), known); ok {
		suggestions = append(suggestions, s)
	}

	diags.AddError(errors.KindUnknownOption,
		fmt.Sprintf("unknown option %q", option), typeName, field, suggestions...)
}
