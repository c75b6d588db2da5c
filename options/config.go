package options

import (
	"fmt"
	"strings"

	"dario.cat/mergo"
)

const (
	// IDKey is the reserved storage key of identity fields.
	IDKey = "_id"
	// DefaultDiscriminatorKey is the storage key holding a document's type name.
	DefaultDiscriminatorKey = "className"
)

// Naming selects how a Go field name becomes a storage key when no explicit
// name is given.
type Naming string

const (
	NamingIdentity   Naming = "identity"   // Name -> Name
	NamingLowerCamel Naming = "lowerCamel" // CreatedAt -> createdAt
	NamingSnake      Naming = "snake"      // CreatedAt -> created_at
	NamingLower      Naming = "lower"      // CreatedAt -> createdat
)

// IsValid returns true if the naming is a recognized value.
func (n Naming) IsValid() bool {
	switch n {
	case NamingIdentity, NamingLowerCamel, NamingSnake, NamingLower:
		return true
	default:
		return false
	}
}

// Config is the mapper configuration surface.
type Config struct {
	StoreNulls                  bool   `yaml:"storeNulls,omitempty" toml:"storeNulls"`
	StoreEmpties                bool   `yaml:"storeEmpties,omitempty" toml:"storeEmpties"`
	IgnoreFinals                bool   `yaml:"ignoreFinals,omitempty" toml:"ignoreFinals"`
	UseLowerCaseCollectionNames bool   `yaml:"useLowerCaseCollectionNames,omitempty" toml:"useLowerCaseCollectionNames"`
	MapSubPackagesWhenScanning  bool   `yaml:"mapSubPackagesWhenScanning,omitempty" toml:"mapSubPackagesWhenScanning"`
	DiscriminatorKey            string `yaml:"discriminatorKey,omitempty" toml:"discriminatorKey"`
	FieldNaming                 Naming `yaml:"fieldNaming,omitempty" toml:"fieldNaming"`
}

// Default returns the configuration used when nothing else is specified:
// nulls and empty containers omitted, finals stored, discriminator key
// "className", lowerCamel field naming.
func Default() Config {
	return Config{
		DiscriminatorKey: DefaultDiscriminatorKey,
		FieldNaming:      NamingLowerCamel,
	}
}

// FromFlags returns Default with the given switches turned on.
func FromFlags(f Flag) Config {
	c := Default()
	c.StoreNulls = f.Has(StoreNulls)
	c.StoreEmpties = f.Has(StoreEmpties)
	c.IgnoreFinals = f.Has(IgnoreFinals)
	c.UseLowerCaseCollectionNames = f.Has(UseLowerCaseCollectionNames)
	c.MapSubPackagesWhenScanning = f.Has(MapSubPackagesWhenScanning)

	return c
}

// Flags returns the boolean switches of c as a bit set.
func (c Config) Flags() Flag {
	var f Flag
	if c.StoreNulls {
		f |= StoreNulls
	}

	if c.StoreEmpties {
		f |= StoreEmpties
	}

	if c.IgnoreFinals {
		f |= IgnoreFinals
	}

	if c.UseLowerCaseCollectionNames {
		f |= UseLowerCaseCollectionNames
	}

	if c.MapSubPackagesWhenScanning {
		f |= MapSubPackagesWhenScanning
	}

	return f
}

// Merge overlays the non-zero values of src onto dst.
func Merge(dst *Config, src Config) error {
	if err := mergo.Merge(dst, src, mergo.WithOverride); err != nil {
		return fmt.Errorf("failed to merge configuration: %w", err)
	}

	return nil
}

// Validate checks the values that cannot be expressed by the type system.
func (c Config) Validate() error {
	switch {
	case c.DiscriminatorKey == "":
		return fmt.Errorf("discriminator key must not be empty")
	case c.DiscriminatorKey == IDKey:
		return fmt.Errorf("discriminator key must not be %q", IDKey)
	case strings.HasPrefix(c.DiscriminatorKey, "$"):
		return fmt.Errorf("discriminator key %q must not start with '$'", c.DiscriminatorKey)
	case strings.Contains(c.DiscriminatorKey, "."):
		return fmt.Errorf("discriminator key %q must not contain '.'", c.DiscriminatorKey)
	case !c.FieldNaming.IsValid():
		return fmt.Errorf("unknown field naming %q", c.FieldNaming)
	}

	return nil
}
