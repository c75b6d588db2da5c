package codec

import (
	"reflect"
	"sort"
	"sync"

	"docmapper/descriptor"
	"docmapper/errors"
)

// DiscriminatorIndex maps discriminator strings to mapped types and keeps
// every mapped type in registration order for candidate searches.
type DiscriminatorIndex struct {
	mu     sync.RWMutex
	byName map[string]*descriptor.TypeDescriptor
	byType map[reflect.Type]*descriptor.TypeDescriptor
	order  []*descriptor.TypeDescriptor
}

// NewDiscriminatorIndex returns an empty index.
func NewDiscriminatorIndex() *DiscriminatorIndex {
	return &DiscriminatorIndex{
		byName: make(map[string]*descriptor.TypeDescriptor),
		byType: make(map[reflect.Type]*descriptor.TypeDescriptor),
	}
}

// AddType registers d. Registering the same type again is a no-op; a
// discriminator already claimed by a distinct type is a configuration
// error.
func (x *DiscriminatorIndex) AddType(d *descriptor.TypeDescriptor) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.check(d); err != nil {
		return err
	}

	if _, ok := x.byType[d.Type]; ok {
		return nil
	}

	x.byType[d.Type] = d
	x.order = append(x.order, d)

	if d.UsesDiscriminator() {
		x.byName[d.Discriminator] = d
	}

	return nil
}

// Check reports the error AddType would return for d without
// registering it.
func (x *DiscriminatorIndex) Check(d *descriptor.TypeDescriptor) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	return x.check(d)
}

func (x *DiscriminatorIndex) check(d *descriptor.TypeDescriptor) error {
	if !d.UsesDiscriminator() {
		return nil
	}

	if other, ok := x.byName[d.Discriminator]; ok && other.Type != d.Type {
		return duplicateDiscriminator(d, other)
	}

	return nil
}

func duplicateDiscriminator(d, other *descriptor.TypeDescriptor) error {
	return errors.New(errors.PhaseMap, errors.KindDuplicateDiscriminator).
		GoType(d.Type.String()).
		Value(d.Discriminator).
		Detail("discriminator %q is already used by %s", d.Discriminator, other.Type).
		Build()
}

// Resolve returns the type registered under name.
func (x *DiscriminatorIndex) Resolve(name string) (*descriptor.TypeDescriptor, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	d, ok := x.byName[name]
	return d, ok
}

// Lookup returns the registered descriptor of t.
func (x *DiscriminatorIndex) Lookup(t reflect.Type) (*descriptor.TypeDescriptor, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	d, ok := x.byType[base(t)]
	return d, ok
}

// Candidates returns the registered types assignable to iface (any type
// when iface is nil or the empty interface) and, when collection is not
// empty, stored in that collection. The most specific candidates come
// first: a type that embeds more of the other candidates ranks higher,
// ties keep registration order.
func (x *DiscriminatorIndex) Candidates(iface reflect.Type, collection string) []*descriptor.TypeDescriptor {
	x.mu.RLock()
	var out []*descriptor.TypeDescriptor
	for _, d := range x.order {
		if collection != "" && d.Collection != collection {
			continue
		}
		if iface != nil && iface.Kind() == reflect.Interface && !implements(d.Type, iface) {
			continue
		}
		if iface != nil && iface.Kind() != reflect.Interface && d.Type != iface {
			continue
		}
		out = append(out, d)
	}
	x.mu.RUnlock()

	score := make(map[reflect.Type]int, len(out))
	for _, d := range out {
		for _, other := range out {
			if other != d && d.Embeds(other.Type) {
				score[d.Type]++
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return score[out[i].Type] > score[out[j].Type]
	})

	return out
}

func implements(t, iface reflect.Type) bool {
	return t.Implements(iface) || reflect.PointerTo(t).Implements(iface)
}
