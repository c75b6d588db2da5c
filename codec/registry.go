package codec

import (
	"bytes"
	"context"
	"reflect"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.uber.org/zap"

	"docmapper/descriptor"
	"docmapper/errors"
	"docmapper/lifecycle"
	"docmapper/options"
)

// Resolver fetches referenced documents while decoding.
type Resolver interface {
	// Resolve returns the document stored under collection and id, or nil
	// when there is none.
	Resolve(ctx context.Context, collection string, id any) (bson.Raw, error)
}

// Registry builds and memoizes codecs. Lookups of an identical Key return
// the same Codec.
type Registry struct {
	descriptors *descriptor.Cache
	index       *DiscriminatorIndex
	instances   *InstanceBuilder
	hooks       lifecycle.Dispatcher
	resolver    Resolver
	logger      *zap.Logger

	mu     sync.RWMutex
	codecs map[Key]Codec
	exact  map[reflect.Type]Codec

	// build serializes codec construction; lookups of built codecs never
	// take it.
	build  sync.Mutex
	warned sync.Map
}

// Option configures a Registry.
type Option func(*Registry)

// WithDescriptors sets the descriptor cache. Its builder carries the
// configuration every codec follows.
func WithDescriptors(c *descriptor.Cache) Option {
	return func(r *Registry) {
		r.descriptors = c
	}
}

// WithConfig builds descriptors with cfg and no overrides.
func WithConfig(cfg options.Config) Option {
	return func(r *Registry) {
		r.descriptors = descriptor.NewCache(descriptor.Builder{Config: cfg})
	}
}

// WithDispatcher sets the lifecycle hook dispatcher.
func WithDispatcher(d lifecycle.Dispatcher) Option {
	return func(r *Registry) {
		if d != nil {
			r.hooks = d
		}
	}
}

// WithResolver enables fetching of non-lazy references.
func WithResolver(res Resolver) Option {
	return func(r *Registry) {
		r.resolver = res
	}
}

// WithInstanceBuilder sets the builder creating decoded instances.
func WithInstanceBuilder(b *InstanceBuilder) Option {
	return func(r *Registry) {
		if b != nil {
			r.instances = b
		}
	}
}

// WithLogger sets the logger policy warnings are reported to.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// NewRegistry returns a registry with the built-in exact codecs.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		index:     NewDiscriminatorIndex(),
		instances: NewInstanceBuilder(),
		hooks:     lifecycle.Nop{},
		codecs:    make(map[Key]Codec),
		exact:     make(map[reflect.Type]Codec),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.descriptors == nil {
		r.descriptors = descriptor.NewCache(descriptor.Builder{Config: options.Default()})
	}
	if r.logger == nil {
		r.logger = Logger()
	}

	for t, c := range builtinCodecs() {
		r.exact[t] = c
	}

	return r
}

// Config returns the configuration codecs follow.
func (r *Registry) Config() options.Config {
	return r.descriptors.Builder().Config
}

// Descriptors returns the descriptor cache.
func (r *Registry) Descriptors() *descriptor.Cache {
	return r.descriptors
}

// Index returns the discriminator index.
func (r *Registry) Index() *DiscriminatorIndex {
	return r.index
}

// Instances returns the instance builder.
func (r *Registry) Instances() *InstanceBuilder {
	return r.instances
}

// RegisterCodec makes c the codec of exactly t, ahead of every other
// family. It fails once a codec of t has been handed out.
func (r *Registry) RegisterCodec(t reflect.Type, c Codec) error {
	r.build.Lock()
	defer r.build.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	for k := range r.codecs {
		if k.Type == t {
			return errors.New(errors.PhaseMap, errors.KindIncompatibleField).
				GoType(t.String()).
				Detail("a codec for the type is already in use").
				Build()
		}
	}

	r.exact[t] = c

	return nil
}

func (r *Registry) hasExact(t reflect.Type) bool {
	_, ok := r.exact[t]
	return ok
}

// Lookup returns the codec of k, building it on first use. A failed build
// leaves the registry unchanged.
func (r *Registry) Lookup(k Key) (Codec, error) {
	if k.Type == nil {
		return nil, errors.New(errors.PhaseMap, errors.KindNoCodec).
			Detail("type cannot be nil").
			Build()
	}

	r.mu.RLock()
	c, ok := r.codecs[k]
	r.mu.RUnlock()

	if ok {
		return c, nil
	}

	r.build.Lock()
	defer r.build.Unlock()

	s := &session{
		pending: make(map[Key]*forward),
		built:   make(map[Key]Codec),
	}

	c, err := r.resolve(s, k)
	if err != nil {
		return nil, err
	}

	if err := r.publish(s); err != nil {
		return nil, err
	}

	r.mu.RLock()
	c = r.codecs[k]
	r.mu.RUnlock()

	return c, nil
}

// LookupType returns the inline codec of t.
func (r *Registry) LookupType(t reflect.Type) (Codec, error) {
	return r.Lookup(KeyOf(t))
}

// session is one codec build: the forward placeholders of codecs under
// construction and the codecs finished so far.
type session struct {
	pending map[Key]*forward
	built   map[Key]Codec
	types   []*descriptor.TypeDescriptor
}

func (r *Registry) resolve(s *session, k Key) (Codec, error) {
	r.mu.RLock()
	c, ok := r.codecs[k]
	r.mu.RUnlock()

	if ok {
		return c, nil
	}

	if c, ok := s.built[k]; ok {
		return c, nil
	}

	if f, ok := s.pending[k]; ok {
		return f, nil
	}

	f := &forward{key: k}
	s.pending[k] = f

	c, err := r.construct(s, k)
	delete(s.pending, k)

	if err != nil {
		return nil, err
	}

	f.target = c
	s.built[k] = c

	return c, nil
}

func (r *Registry) publish(s *session) error {
	for _, d := range s.types {
		if err := r.index.AddType(d); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for k, c := range s.built {
		if _, ok := r.codecs[k]; !ok {
			r.codecs[k] = c
		}
	}

	return nil
}

func (r *Registry) construct(s *session, k Key) (Codec, error) {
	family := Dispatch(k, r.hasExact)

	switch family {
	case FamilyExact:
		return r.exact[k.Type], nil
	case FamilyReference:
		return r.newReferenceCodec(s, k)
	case FamilyPointer:
		return r.newPointerCodec(s, k)
	case FamilyEnumeration:
		return newEnumCodec(k.Type), nil
	case FamilyPrimitive:
		return newPrimitiveCodec(k.Type), nil
	case FamilyMap:
		return r.newMapCodec(s, k)
	case FamilyCollection:
		return r.newCollectionCodec(s, k)
	case FamilyPolymorphic:
		return &polymorphicCodec{reg: r, iface: k.Type}, nil
	case FamilyDynamic:
		return &dynamicCodec{reg: r}, nil
	case FamilyObject:
		return r.newObjectCodec(s, k.Type)
	default:
		return nil, errors.New(errors.PhaseMap, errors.KindNotConstructible).
			GoType(k.Type.String()).
			Detail("no codec family handles kind %s", k.Type.Kind()).
			Build()
	}
}

// forward stands in for a codec while it is being built.
type forward struct {
	key    Key
	target Codec
}

func (f *forward) Encode(ec *EncodeContext, vw bsonrw.ValueWriter, v reflect.Value) error {
	return f.target.Encode(ec, vw, v)
}

func (f *forward) Decode(dc *DecodeContext, vr bsonrw.ValueReader, v reflect.Value) error {
	return f.target.Decode(dc, vr, v)
}

// NewEncodeContext starts one encode call.
func (r *Registry) NewEncodeContext(ctx context.Context) *EncodeContext {
	return &EncodeContext{state: state{reg: r, hooks: hookContext(ctx)}}
}

// NewDecodeContext starts one decode call.
func (r *Registry) NewDecodeContext(ctx context.Context) *DecodeContext {
	return &DecodeContext{state: state{reg: r, hooks: hookContext(ctx)}}
}

func hookContext(ctx context.Context) *lifecycle.Context {
	if hc, ok := ctx.(*lifecycle.Context); ok && hc != nil {
		return hc
	}

	return lifecycle.NewContext(ctx)
}

// Marshal encodes v, a struct or map (or a pointer to one), into a
// document.
func (r *Registry) Marshal(ctx context.Context, v any) (bson.Raw, error) {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			rv = reflect.Value{}
			break
		}
		rv = rv.Elem()
	}

	if !rv.IsValid() || (rv.Kind() != reflect.Struct && rv.Kind() != reflect.Map) {
		return nil, errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
			GoType(typeName(rv)).
			Detail("only structs and maps encode to documents").
			Build()
	}

	c, err := r.LookupType(rv.Type())
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer

	vw, err := bsonrw.NewBSONValueWriter(&buf)
	if err != nil {
		return nil, err
	}

	if err := c.Encode(r.NewEncodeContext(ctx), vw, rv); err != nil {
		return nil, err
	}

	return bson.Raw(buf.Bytes()), nil
}

// Unmarshal decodes the document data into v, a non-nil pointer.
func (r *Registry) Unmarshal(ctx context.Context, data []byte, v any) error {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
			GoType(typeName(rv)).
			Detail("decode target must be a non-nil pointer").
			Build()
	}

	c, err := r.LookupType(rv.Elem().Type())
	if err != nil {
		return err
	}

	return r.DecodeWith(r.NewDecodeContext(ctx), c, documentReader(data), rv.Elem())
}

// DecodeWith runs c over vr into v and then the deferred work queued
// outside of any instance. vr may be a top-level document reader.
func (r *Registry) DecodeWith(dc *DecodeContext, c Codec, vr bsonrw.ValueReader, v reflect.Value) error {
	if _, ok := vr.(rootReader); !ok {
		vr = rootReader{vr}
	}

	if err := c.Decode(dc, vr, v); err != nil {
		return err
	}

	return dc.finish()
}

// warnOnce logs msg once per type.
func (r *Registry) warnOnce(t reflect.Type, msg string, fields ...zap.Field) {
	if _, loaded := r.warned.LoadOrStore(t, struct{}{}); loaded {
		return
	}

	r.logger.Warn(msg, append([]zap.Field{zap.String("type", t.String())}, fields...)...)
}

func typeName(v reflect.Value) string {
	if !v.IsValid() {
		return "nil"
	}

	return v.Type().String()
}

// documentEncoder is implemented by codecs that write structs as
// documents and add the discriminator when the declared type asks for it.
type documentEncoder interface {
	encodeDocument(ec *EncodeContext, vw bsonrw.ValueWriter, v reflect.Value, declared reflect.Type) error
	encodesDocument() bool
}

func (f *forward) encodeDocument(ec *EncodeContext, vw bsonrw.ValueWriter, v reflect.Value, declared reflect.Type) error {
	if de, ok := f.target.(documentEncoder); ok {
		return de.encodeDocument(ec, vw, v, declared)
	}

	return f.target.Encode(ec, vw, v)
}

func (f *forward) encodesDocument() bool {
	de, ok := f.target.(documentEncoder)
	return ok && de.encodesDocument()
}
