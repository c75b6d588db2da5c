package descriptor

import (
	"reflect"
	"strings"
)

// TagKey is the struct tag key read by the builder.
const TagKey = "odm"

// Entity marks a struct as a top-level document stored in its own
// collection. Embed it anonymously and put type options in its tag.
type Entity struct{}

// Embedded marks a struct as a value that only ever lives inside another
// document. An Embedded type must not declare an identity field.
type Embedded struct{}

var (
	entityMarker   = reflect.TypeOf(Entity{})
	embeddedMarker = reflect.TypeOf(Embedded{})
)

// Marker tells how a type declared its role.
type Marker int

const (
	MarkerNone Marker = iota
	MarkerEntity
	MarkerEmbedded
)

// FieldOptions is the parsed form of a field's tag.
type FieldOptions struct {
	Name      string // explicit storage key
	ID        bool
	Transient bool
	NotSaved  bool
	Final     bool
	Reference bool
	IDOnly    bool
	Lazy      bool
	AlsoLoad  []string
}

// TypeOptions is the parsed form of a marker tag.
type TypeOptions struct {
	Marker              Marker
	Collection          string
	Discriminator       string
	AlwaysDiscriminator bool
	NoDiscriminator     bool
}

var (
	fieldOptionNames = []string{"id", "notsaved", "final", "reference", "idonly", "lazy", "alsoload"}
	typeOptionNames  = []string{"collection", "discriminator", "alwaysdiscriminator", "nodiscriminator"}
)

// ParseFieldTag parses `name,opt,opt=value`. Unknown options are returned
// separately so the caller can report them with context.
func ParseFieldTag(tag string) (opts FieldOptions, unknown []string) {
	if tag == "-" {
		opts.Transient = true
		return opts, nil
	}

	name, rest, _ := strings.Cut(tag, ",")
	opts.Name = strings.TrimSpace(name)

	for _, raw := range splitOptions(rest) {
		key, value, _ := strings.Cut(raw, "=")

		switch strings.ToLower(key) {
		case "id":
			opts.ID = true
		case "notsaved":
			opts.NotSaved = true
		case "final":
			opts.Final = true
		case "reference":
			opts.Reference = true
		case "idonly":
			opts.IDOnly = true
		case "lazy":
			opts.Lazy = true
		case "alsoload":
			for _, k := range strings.Split(value, "|") {
				if k = strings.TrimSpace(k); k != "" {
					opts.AlsoLoad = append(opts.AlsoLoad, k)
				}
			}
		default:
			unknown = append(unknown, key)
		}
	}

	return opts, unknown
}

// ParseTypeTag parses the tag of an Entity or Embedded marker.
func ParseTypeTag(tag string) (opts TypeOptions, unknown []string) {
	for _, raw := range splitOptions(tag) {
		key, value, _ := strings.Cut(raw, "=")
		value = strings.TrimSpace(value)

		switch strings.ToLower(key) {
		case "collection":
			opts.Collection = value
		case "discriminator":
			opts.Discriminator = value
		case "alwaysdiscriminator":
			opts.AlwaysDiscriminator = true
		case "nodiscriminator":
			opts.NoDiscriminator = true
		default:
			unknown = append(unknown, key)
		}
	}

	return opts, unknown
}

func splitOptions(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}

	return out
}

// markerOf returns the marker kind of an anonymous struct field, if any.
func markerOf(f reflect.StructField) Marker {
	if !f.Anonymous {
		return MarkerNone
	}

	switch f.Type {
	case entityMarker:
		return MarkerEntity
	case embeddedMarker:
		return MarkerEmbedded
	default:
		return MarkerNone
	}
}

// FieldOptionNames lists the options a field tag accepts.
func FieldOptionNames() []string {
	return append([]string(nil), fieldOptionNames...)
}

// TypeOptionNames lists the options a marker tag accepts.
func TypeOptionNames() []string {
	return append([]string(nil), typeOptionNames...)
}
