package codec

import (
	"fmt"
	"reflect"
	"sync"

	"docmapper/descriptor"
	"docmapper/errors"
)

// InstanceBuilder creates the instances decoding populates. Types without
// a registered factory start from their zero value.
type InstanceBuilder struct {
	mu        sync.RWMutex
	factories map[reflect.Type]reflect.Value
}

// NewInstanceBuilder returns a builder without factories.
func NewInstanceBuilder() *InstanceBuilder {
	return &InstanceBuilder{factories: make(map[reflect.Type]reflect.Value)}
}

// Register installs factory, a func() *T, for struct type T.
func (b *InstanceBuilder) Register(factory any) error {
	fn := reflect.ValueOf(factory)
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		return errors.New(errors.PhaseMap, errors.KindIncompatibleField).
			GoType(fmt.Sprintf("%T", factory)).
			Detail("factory must be a function").
			Build()
	}

	ft := fn.Type()
	if ft.NumIn() != 0 || ft.NumOut() != 1 ||
		ft.Out(0).Kind() != reflect.Ptr || ft.Out(0).Elem().Kind() != reflect.Struct {
		return errors.New(errors.PhaseMap, errors.KindIncompatibleField).
			GoType(ft.String()).
			Detail("factory must have the shape func() *T").
			Build()
	}

	b.mu.Lock()
	b.factories[ft.Out(0).Elem()] = fn
	b.mu.Unlock()

	return nil
}

// New returns a pointer to a fresh instance of t.
func (b *InstanceBuilder) New(t reflect.Type) reflect.Value {
	b.mu.RLock()
	fn, ok := b.factories[t]
	b.mu.RUnlock()

	if ok {
		if p := fn.Call(nil)[0]; !p.IsNil() {
			return p
		}
	}

	return reflect.New(t)
}

// reset makes v, a settable struct value, a fresh instance.
func (b *InstanceBuilder) reset(v reflect.Value) {
	b.mu.RLock()
	_, ok := b.factories[v.Type()]
	b.mu.RUnlock()

	if ok {
		v.Set(b.New(v.Type()).Elem())
		return
	}

	v.Set(reflect.Zero(v.Type()))
}

// Instance is an object under construction during one decode call: the
// value being populated, the fields assigned so far and the queue of
// deferred work.
type Instance struct {
	desc     *descriptor.TypeDescriptor
	value    reflect.Value
	assigned map[string]struct{}
	deferred []func(*Instance) error
	finished bool
}

func newInstance(desc *descriptor.TypeDescriptor, v reflect.Value) *Instance {
	return &Instance{
		desc:     desc,
		value:    v,
		assigned: make(map[string]struct{}, len(desc.Fields)),
	}
}

// Descriptor returns the descriptor of the instance type.
func (i *Instance) Descriptor() *descriptor.TypeDescriptor {
	return i.desc
}

// Value returns the struct being populated.
func (i *Instance) Value() reflect.Value {
	return i.value
}

// Assigned reports whether the field with the given Go name was read from
// the document.
func (i *Instance) Assigned(name string) bool {
	_, ok := i.assigned[name]
	return ok
}

// Field returns the field with the given Go name.
func (i *Instance) Field(name string) (reflect.Value, bool) {
	f, ok := i.desc.FieldByName(name)
	if !ok {
		return reflect.Value{}, false
	}

	return f.Value(i.value), true
}

func (i *Instance) markAssigned(f *descriptor.FieldDescriptor) {
	i.assigned[f.Name] = struct{}{}
}

// Defer queues fn. Work queued while the queue runs is run too.
func (i *Instance) Defer(fn func(*Instance) error) {
	i.deferred = append(i.deferred, fn)
}

// Finish runs the deferred queue once, in registration order.
func (i *Instance) Finish() error {
	if i.finished {
		return nil
	}
	i.finished = true

	for n := 0; n < len(i.deferred); n++ {
		if err := i.deferred[n](i); err != nil {
			return err
		}
	}
	i.deferred = nil

	return nil
}

func (i *Instance) deferredError(path []string, err error) error {
	var e *errors.Error
	if errors.As(err, &e) {
		return err
	}

	return errors.New(errors.PhaseDecode, errors.KindInvalidData).
		Path(path...).
		GoType(i.desc.Type.String()).
		Detail("deferred field population failed").
		Cause(err).
		Build()
}
