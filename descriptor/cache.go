package descriptor

import (
	"reflect"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes descriptors per type. Concurrent first requests for the
// same type share a single build; the first stored descriptor wins.
type Cache struct {
	builder Builder
	entries sync.Map // reflect.Type -> *TypeDescriptor
	group   singleflight.Group
}

// NewCache returns an empty cache building with b.
func NewCache(b Builder) *Cache {
	return &Cache{builder: b}
}

// Builder returns the builder the cache builds with.
func (c *Cache) Builder() Builder {
	return c.builder
}

// Get returns the descriptor of t, building it on first use. Failed builds
// are not cached.
func (c *Cache) Get(t reflect.Type) (*TypeDescriptor, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if d, ok := c.entries.Load(t); ok {
		return d.(*TypeDescriptor), nil
	}

	v, err, _ := c.group.Do(typeKey(t), func() (any, error) {
		if d, ok := c.entries.Load(t); ok {
			return d, nil
		}

		d, err := c.builder.Build(t)
		if err != nil {
			return nil, err
		}

		actual, _ := c.entries.LoadOrStore(t, d)

		return actual, nil
	})
	if err != nil {
		return nil, err
	}

	d := v.(*TypeDescriptor)
	if d.Type != t {
		// two distinct types printed the same key; build outside the group
		return c.getUngrouped(t)
	}

	return d, nil
}

func (c *Cache) getUngrouped(t reflect.Type) (*TypeDescriptor, error) {
	d, err := c.builder.Build(t)
	if err != nil {
		return nil, err
	}

	actual, _ := c.entries.LoadOrStore(t, d)

	return actual.(*TypeDescriptor), nil
}

// Range calls fn for every cached descriptor until fn returns false.
func (c *Cache) Range(fn func(*TypeDescriptor) bool) {
	c.entries.Range(func(_, v any) bool {
		return fn(v.(*TypeDescriptor))
	})
}

func typeKey(t reflect.Type) string {
	return t.PkgPath() + "|" + t.String()
}
