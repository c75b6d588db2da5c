// Package lifecycle dispatches the four per-type hooks that run around
// encoding and decoding: before and after an instance is written, before a
// raw document is read, and after an instance has been populated.
//
// Hooks come from two places: methods on the mapped type (PreEncoder,
// PostEncoder, PostDecoder) and listener functions registered per type on
// a Registry. Methods run first, then listeners in registration order.
package lifecycle

import (
	"context"
	"reflect"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
)

// Event identifies a hook slot.
type Event int

const (
	PreEncode  Event = iota + 1 // may mutate the instance; no document yet
	PostEncode                  // may replace the written document
	PreDecode                   // may rewrite the raw document; no instance yet
	PostDecode                  // informational; sees the finished instance
)

func (e Event) String() string {
	switch e {
	case PreEncode:
		return "pre-encode"
	case PostEncode:
		return "post-encode"
	case PreDecode:
		return "pre-decode"
	case PostDecode:
		return "post-decode"
	default:
		return "unknown"
	}
}

// Context is shared by every hook of one top-level encode or decode call.
type Context struct {
	context.Context

	mu     sync.Mutex
	values map[any]any
}

// NewContext wraps ctx for one top-level call.
func NewContext(ctx context.Context) *Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return &Context{Context: ctx}
}

// Set stores a value visible to later hooks of the same call.
func (c *Context) Set(key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.values == nil {
		c.values = make(map[any]any)
	}
	c.values[key] = value
}

// Get returns a value stored by an earlier hook, falling back to the
// wrapped context.
func (c *Context) Get(key any) (any, bool) {
	c.mu.Lock()
	v, ok := c.values[key]
	c.mu.Unlock()

	if ok {
		return v, true
	}

	if v := c.Context.Value(key); v != nil {
		return v, true
	}

	return nil, false
}

// Hook is a listener for one event. instance is a pointer to the struct
// (nil for PreDecode). doc is the document written or about to be read
// (nil for PreEncode). A non-nil returned document replaces doc; it is
// ignored for PreEncode and PostDecode.
type Hook func(ctx *Context, instance any, doc bson.D) (bson.D, error)

// PreEncoder is implemented by types that prepare themselves before being
// written.
type PreEncoder interface {
	PreEncode(ctx *Context) error
}

// PostEncoder is implemented by types that inspect or replace their own
// written document.
type PostEncoder interface {
	PostEncode(ctx *Context, doc bson.D) (bson.D, error)
}

// PostDecoder is implemented by types that finish themselves after being
// read, e.g. to fill derived transient fields.
type PostDecoder interface {
	PostDecode(ctx *Context, doc bson.D) error
}

// Dispatcher is the contract codecs depend on.
type Dispatcher interface {
	// Has reports whether any hook is registered for t and ev. Codecs use
	// it to stay on the streaming path when nothing listens.
	Has(t reflect.Type, ev Event) bool
	// Dispatch runs the hooks of ev for t and returns the final document.
	Dispatch(ctx *Context, ev Event, t reflect.Type, instance reflect.Value, doc bson.D) (bson.D, error)
}

var (
	preEncoderType  = reflect.TypeOf((*PreEncoder)(nil)).Elem()
	postEncoderType = reflect.TypeOf((*PostEncoder)(nil)).Elem()
	postDecoderType = reflect.TypeOf((*PostDecoder)(nil)).Elem()
)

// Registry is the default Dispatcher.
type Registry struct {
	mu    sync.RWMutex
	hooks map[reflect.Type]map[Event][]Hook
}

// NewRegistry returns a registry without listeners. Method hooks work
// without registration.
func NewRegistry() *Registry {
	return &Registry{hooks: make(map[reflect.Type]map[Event][]Hook)}
}

// On registers h for values of t (a struct type or pointer to one).
func (r *Registry) On(t reflect.Type, ev Event, h Hook) {
	t = indirect(t)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hooks[t] == nil {
		r.hooks[t] = make(map[Event][]Hook)
	}
	r.hooks[t][ev] = append(r.hooks[t][ev], h)
}

// Has implements Dispatcher.
func (r *Registry) Has(t reflect.Type, ev Event) bool {
	t = indirect(t)
	if hasMethod(t, ev) {
		return true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.hooks[t][ev]) > 0
}

// Dispatch implements Dispatcher.
func (r *Registry) Dispatch(
	ctx *Context, ev Event, t reflect.Type, instance reflect.Value, doc bson.D,
) (bson.D, error) {
	t = indirect(t)

	var target any
	if instance.IsValid() {
		if instance.Kind() != reflect.Ptr && instance.CanAddr() {
			instance = instance.Addr()
		}
		target = instance.Interface()
	}

	var err error
	if doc, err = callMethod(ctx, ev, target, doc); err != nil {
		return nil, err
	}

	r.mu.RLock()
	listeners := append([]Hook(nil), r.hooks[t][ev]...)
	r.mu.RUnlock()

	for _, h := range listeners {
		replacement, err := h(ctx, target, doc)
		if err != nil {
			return nil, err
		}

		if replacement != nil && (ev == PostEncode || ev == PreDecode) {
			doc = replacement
		}
	}

	return doc, nil
}

func callMethod(ctx *Context, ev Event, target any, doc bson.D) (bson.D, error) {
	switch ev {
	case PreEncode:
		if h, ok := target.(PreEncoder); ok {
			return doc, h.PreEncode(ctx)
		}
	case PostEncode:
		if h, ok := target.(PostEncoder); ok {
			replacement, err := h.PostEncode(ctx, doc)
			if err != nil || replacement == nil {
				return doc, err
			}
			return replacement, nil
		}
	case PostDecode:
		if h, ok := target.(PostDecoder); ok {
			return doc, h.PostDecode(ctx, doc)
		}
	}

	return doc, nil
}

func hasMethod(t reflect.Type, ev Event) bool {
	pt := reflect.PointerTo(t)

	switch ev {
	case PreEncode:
		return pt.Implements(preEncoderType)
	case PostEncode:
		return pt.Implements(postEncoderType)
	case PostDecode:
		return pt.Implements(postDecoderType)
	default:
		return false
	}
}

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	return t
}

// Nop is a Dispatcher without hooks.
type Nop struct{}

func (Nop) Has(reflect.Type, Event) bool { return false }

func (Nop) Dispatch(_ *Context, _ Event, _ reflect.Type, _ reflect.Value, doc bson.D) (bson.D, error) {
	return doc, nil
}
