package mapping

import (
	"sort"

	"docmapper/descriptor"
	"docmapper/options"
)

// CurrentVersion is the mapping file version this package reads and writes.
const CurrentVersion = "1"

// MappingFile is the root of a mapping definition.
type MappingFile struct {
	// Version is the schema version of the file.
	Version string `yaml:"version" toml:"version"`
	// Config overlays the mapper configuration. Only non-zero values take
	// effect.
	Config *options.Config `yaml:"config,omitempty" toml:"config,omitempty"`
	// Types holds per-type overrides of tag-declared metadata.
	Types []TypeMapping `yaml:"types" toml:"types"`
}

// TypeMapping overrides the metadata of one type. Unset values keep what
// the struct tags declare.
type TypeMapping struct {
	// Type names the Go type, "pkg.Type" or "import/path.Type".
	Type                string `yaml:"type" toml:"type"`
	Collection          string `yaml:"collection,omitempty" toml:"collection,omitempty"`
	Discriminator       string `yaml:"discriminator,omitempty" toml:"discriminator,omitempty"`
	AlwaysDiscriminator *bool  `yaml:"alwaysDiscriminator,omitempty" toml:"alwaysDiscriminator,omitempty"`
	NoDiscriminator     *bool  `yaml:"noDiscriminator,omitempty" toml:"noDiscriminator,omitempty"`

	// Fields is keyed by Go field name.
	Fields map[string]FieldMapping `yaml:"fields,omitempty" toml:"fields,omitempty"`
	// Ignore lists Go field names that are never stored.
	Ignore StringOrArray `yaml:"ignore,omitempty" toml:"ignore,omitempty"`
}

// FieldMapping overrides the metadata of one field.
type FieldMapping struct {
	Name      string        `yaml:"name,omitempty" toml:"name,omitempty"`
	ID        *bool         `yaml:"id,omitempty" toml:"id,omitempty"`
	NotSaved  *bool         `yaml:"notSaved,omitempty" toml:"notSaved,omitempty"`
	Final     *bool         `yaml:"final,omitempty" toml:"final,omitempty"`
	Reference *bool         `yaml:"reference,omitempty" toml:"reference,omitempty"`
	IDOnly    *bool         `yaml:"idOnly,omitempty" toml:"idOnly,omitempty"`
	Lazy      *bool         `yaml:"lazy,omitempty" toml:"lazy,omitempty"`
	Transient *bool         `yaml:"transient,omitempty" toml:"transient,omitempty"`
	AlsoLoad  StringOrArray `yaml:"alsoLoad,omitempty" toml:"alsoLoad,omitempty"`
}

// StringOrArray is a list that may be written as a single string.
type StringOrArray []string

// Find returns the mapping of the named type.
func (mf *MappingFile) Find(typeName string) (*TypeMapping, bool) {
	for i := range mf.Types {
		if mf.Types[i].Type == typeName {
			return &mf.Types[i], true
		}
	}

	return nil, false
}

// MergedConfig returns base with the file's overlay applied.
func (mf *MappingFile) MergedConfig(base options.Config) (options.Config, error) {
	if mf.Config == nil {
		return base, nil
	}

	if err := options.Merge(&base, *mf.Config); err != nil {
		return base, err
	}

	return base, nil
}

// ToOverrides converts the type mappings into descriptor overrides.
func (mf *MappingFile) ToOverrides() descriptor.Overrides {
	out := make(descriptor.Overrides, len(mf.Types))

	for i := range mf.Types {
		tm := &mf.Types[i]

		ov := descriptor.TypeOverride{
			Collection:          tm.Collection,
			Discriminator:       tm.Discriminator,
			AlwaysDiscriminator: tm.AlwaysDiscriminator,
			NoDiscriminator:     tm.NoDiscriminator,
			Fields:              make(map[string]descriptor.FieldOverride, len(tm.Fields)+len(tm.Ignore)),
		}

		for name, fm := range tm.Fields {
			ov.Fields[name] = fm.toOverride()
		}

		transient := true
		for _, name := range tm.Ignore {
			fo := ov.Fields[name]
			fo.Transient = &transient
			ov.Fields[name] = fo
		}

		out[tm.Type] = ov
	}

	return out
}

func (fm FieldMapping) toOverride() descriptor.FieldOverride {
	return descriptor.FieldOverride{
		Name:      fm.Name,
		ID:        fm.ID,
		Transient: fm.Transient,
		NotSaved:  fm.NotSaved,
		Final:     fm.Final,
		Reference: fm.Reference,
		IDOnly:    fm.IDOnly,
		Lazy:      fm.Lazy,
		AlsoLoad:  append([]string(nil), fm.AlsoLoad...),
	}
}

// FieldNames returns the field names of tm in sorted order, ignored
// fields included.
func (tm *TypeMapping) FieldNames() []string {
	names := make([]string, 0, len(tm.Fields)+len(tm.Ignore))
	for name := range tm.Fields {
		names = append(names, name)
	}

	for _, name := range tm.Ignore {
		if _, ok := tm.Fields[name]; !ok {
			names = append(names, name)
		}
	}

	sort.Strings(names)

	return names
}
