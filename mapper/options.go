package mapper

import (
	"go.uber.org/zap"

	"docmapper/internal/mapping"
	"docmapper/lifecycle"
	"docmapper/options"
	"docmapper/store"
)

// Option configures a Mapper.
type Option func(*mapperConfig)

type mapperConfig struct {
	config      options.Config
	logger      *zap.Logger
	hooks       *lifecycle.Registry
	store       store.Store
	mappingPath string
	mapping     *mapping.MappingFile
	factories   []any
}

// WithConfig replaces the default configuration. A mapping file overlay is
// applied on top of it.
func WithConfig(cfg options.Config) Option {
	return func(c *mapperConfig) {
		c.config = cfg
	}
}

// WithFlags turns on the given switches of the default configuration.
func WithFlags(f options.Flag) Option {
	return func(c *mapperConfig) {
		c.config = options.FromFlags(f)
	}
}

// WithLogger sets the logger used for policy warnings, unresolved
// references and fingerprint mismatches.
func WithLogger(l *zap.Logger) Option {
	return func(c *mapperConfig) {
		c.logger = l
	}
}

// WithHooks sets the lifecycle listener registry. Method hooks on mapped
// types run without it.
func WithHooks(h *lifecycle.Registry) Option {
	return func(c *mapperConfig) {
		c.hooks = h
	}
}

// WithStore enables Save, Load and the fetching of referenced documents.
func WithStore(s store.Store) Option {
	return func(c *mapperConfig) {
		c.store = s
	}
}

// WithMappingFile loads per-type overrides and a configuration overlay
// from a YAML or TOML file.
func WithMappingFile(path string) Option {
	return func(c *mapperConfig) {
		c.mappingPath = path
	}
}

// WithMapping is WithMappingFile for an already parsed file.
func WithMapping(mf *mapping.MappingFile) Option {
	return func(c *mapperConfig) {
		c.mapping = mf
	}
}

// WithFactory registers an instance factory of the shape func() *T.
func WithFactory(factory any) Option {
	return func(c *mapperConfig) {
		c.factories = append(c.factories, factory)
	}
}
