package mapper

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"docmapper/codec"
	"docmapper/descriptor"
	"docmapper/errors"
	"docmapper/internal/analyze"
	"docmapper/internal/mapping"
	"docmapper/lifecycle"
	"docmapper/options"
	"docmapper/store"
)

// Mapper maps Go types onto BSON documents. It is safe for concurrent use
// once the types are mapped.
type Mapper struct {
	registry *codec.Registry
	hooks    *lifecycle.Registry
	store    store.Store
	mapping  *mapping.MappingFile
	logger   *zap.Logger

	mu     sync.RWMutex
	mapped map[reflect.Type]*descriptor.TypeDescriptor
}

// New returns a mapper configured by opts. It fails when the configuration
// or the mapping file is invalid.
func New(opts ...Option) (*Mapper, error) {
	cfg := mapperConfig{config: options.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.logger == nil {
		cfg.logger = Logger()
	}

	if cfg.hooks == nil {
		cfg.hooks = lifecycle.NewRegistry()
	}

	mf := cfg.mapping
	if mf == nil && cfg.mappingPath != "" {
		loaded, err := mapping.LoadFile(cfg.mappingPath)
		if err != nil {
			return nil, err
		}
		mf = loaded
	}

	builder := descriptor.Builder{Config: cfg.config}
	if mf != nil {
		merged, err := mf.MergedConfig(cfg.config)
		if err != nil {
			return nil, err
		}

		builder.Config = merged
		builder.Overrides = mf.ToOverrides()
	}

	if err := builder.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mapper configuration: %w", err)
	}

	instances := codec.NewInstanceBuilder()
	for _, f := range cfg.factories {
		if err := instances.Register(f); err != nil {
			return nil, fmt.Errorf("failed to register factory: %w", err)
		}
	}

	regOpts := []codec.Option{
		codec.WithDescriptors(descriptor.NewCache(builder)),
		codec.WithDispatcher(cfg.hooks),
		codec.WithInstanceBuilder(instances),
		codec.WithLogger(cfg.logger),
	}
	if cfg.store != nil {
		regOpts = append(regOpts, codec.WithResolver(&storeResolver{store: cfg.store}))
	}

	return &Mapper{
		registry: codec.NewRegistry(regOpts...),
		hooks:    cfg.hooks,
		store:    cfg.store,
		mapping:  mf,
		logger:   cfg.logger,
		mapped:   make(map[reflect.Type]*descriptor.TypeDescriptor),
	}, nil
}

// Map registers the types of the given values (structs or pointers to
// structs) and builds their codecs. Discriminators of mapped types become
// resolvable for polymorphic fields. All failures are reported together.
func (m *Mapper) Map(values ...any) error {
	var errs error

	for _, v := range values {
		t := reflect.TypeOf(v)
		for t != nil && t.Kind() == reflect.Ptr {
			t = t.Elem()
		}

		if t == nil || t.Kind() != reflect.Struct {
			errs = multierr.Append(errs, errors.New(errors.PhaseMap, errors.KindNoCodec).
				GoType(fmt.Sprintf("%T", v)).
				Detail("only struct types can be mapped").
				Build())
			continue
		}

		if _, err := m.registry.LookupType(t); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}

		d, err := m.registry.Descriptors().Get(t)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}

		m.mu.Lock()
		m.mapped[t] = d
		m.mu.Unlock()
	}

	return errs
}

// Descriptor returns the descriptor of v's type, building it if needed.
func (m *Mapper) Descriptor(v any) (*descriptor.TypeDescriptor, error) {
	t := reflect.TypeOf(v)
	if t == nil {
		return nil, errors.New(errors.PhaseMap, errors.KindNoCodec).Detail("type cannot be nil").Build()
	}

	return m.registry.Descriptors().Get(t)
}

// Mapped returns the descriptors of the mapped types ordered by name.
func (m *Mapper) Mapped() []*descriptor.TypeDescriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*descriptor.TypeDescriptor, 0, len(m.mapped))
	for _, d := range m.mapped {
		out = append(out, d)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

// Check validates the mapping file against the mapped types. Unknown
// type and field names are errors; warnings are logged.
func (m *Mapper) Check() error {
	if m.mapping == nil {
		return nil
	}

	graph := analyze.NewTypeGraph()
	for _, d := range m.Mapped() {
		graph.AddReflect(d.Type)
	}

	diags := mapping.Validate(m.mapping, graph)
	for _, w := range diags.Warnings {
		m.logger.Warn(w.Message,
			zap.String("code", w.Code), zap.String("type", w.TypeName), zap.String("field", w.FieldPath))
	}

	return diags.Err()
}

// Config returns the configuration in effect, mapping file overlay
// included.
func (m *Mapper) Config() options.Config {
	return m.registry.Config()
}

// Hooks returns the lifecycle listener registry.
func (m *Mapper) Hooks() *lifecycle.Registry {
	return m.hooks
}

// Registry returns the codec registry.
func (m *Mapper) Registry() *codec.Registry {
	return m.registry
}

// RegisterCodec makes c the codec of exactly t. It must be called before
// any type using t is mapped.
func (m *Mapper) RegisterCodec(t reflect.Type, c codec.Codec) error {
	return m.registry.RegisterCodec(t, c)
}

// RegisterFactory installs factory, a func() *T, as the way decoded
// instances of T are created.
func (m *Mapper) RegisterFactory(factory any) error {
	return m.registry.Instances().Register(factory)
}

// DriverRegistry returns a driver registry encoding the mapped types with
// this mapper's codecs.
func (m *Mapper) DriverRegistry() *bsoncodec.Registry {
	m.mu.RLock()
	types := make([]reflect.Type, 0, len(m.mapped))
	for t := range m.mapped {
		types = append(types, t)
	}
	m.mu.RUnlock()

	return m.registry.DriverRegistry(types...)
}

// Encode writes v, a struct or map, as a document.
func (m *Mapper) Encode(ctx context.Context, v any) (bson.Raw, error) {
	return m.registry.Marshal(ctx, v)
}

// Decode reads the document data into v, a non-nil pointer.
func (m *Mapper) Decode(ctx context.Context, data []byte, v any) error {
	return m.registry.Unmarshal(ctx, data, v)
}

// ToDocument encodes v into an ordered in-memory document.
func (m *Mapper) ToDocument(ctx context.Context, v any) (bson.D, error) {
	raw, err := m.Encode(ctx, v)
	if err != nil {
		return nil, err
	}

	var doc bson.D
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to read encoded document: %w", err)
	}

	return doc, nil
}

// FromDocument decodes an in-memory document into v.
func (m *Mapper) FromDocument(ctx context.Context, doc bson.D, v any) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return errors.New(errors.PhaseDecode, errors.KindInvalidData).
			GoType(fmt.Sprintf("%T", v)).
			Cause(err).
			Build()
	}

	return m.Decode(ctx, raw, v)
}
