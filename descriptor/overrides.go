package descriptor

// TypeOverride replaces tag-declared metadata of one type. Nil pointers and
// empty strings leave the tag value in place.
type TypeOverride struct {
	Collection          string
	Discriminator       string
	AlwaysDiscriminator *bool
	NoDiscriminator     *bool
	// Fields is keyed by Go field name.
	Fields map[string]FieldOverride
}

// FieldOverride replaces tag-declared metadata of one field.
type FieldOverride struct {
	Name      string
	ID        *bool
	Transient *bool
	NotSaved  *bool
	Final     *bool
	Reference *bool
	IDOnly    *bool
	Lazy      *bool
	AlsoLoad  []string
}

// Overrides is keyed by Go type name, either "pkg.Type" as printed by
// reflect or the fully qualified "import/path.Type".
type Overrides map[string]TypeOverride

func (o Overrides) lookup(name, qualified string) (TypeOverride, bool) {
	if ov, ok := o[qualified]; ok {
		return ov, true
	}

	ov, ok := o[name]

	return ov, ok
}

func (o TypeOverride) apply(opts TypeOptions) TypeOptions {
	if o.Collection != "" {
		opts.Collection = o.Collection
	}

	if o.Discriminator != "" {
		opts.Discriminator = o.Discriminator
	}

	setBool(&opts.AlwaysDiscriminator, o.AlwaysDiscriminator)
	setBool(&opts.NoDiscriminator, o.NoDiscriminator)

	return opts
}

func (o FieldOverride) apply(opts FieldOptions) FieldOptions {
	if o.Name != "" {
		opts.Name = o.Name
	}

	if len(o.AlsoLoad) > 0 {
		opts.AlsoLoad = o.AlsoLoad
	}

	setBool(&opts.ID, o.ID)
	setBool(&opts.Transient, o.Transient)
	setBool(&opts.NotSaved, o.NotSaved)
	setBool(&opts.Final, o.Final)
	setBool(&opts.Reference, o.Reference)
	setBool(&opts.IDOnly, o.IDOnly)
	setBool(&opts.Lazy, o.Lazy)

	return opts
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
