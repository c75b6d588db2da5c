package codec

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"

	"docmapper/descriptor"
	"docmapper/errors"
	"docmapper/lifecycle"
)

type otherCircle struct {
	descriptor.Embedded `odm:"discriminator=Circle"`

	R float64
}

type clash struct {
	A string `odm:"x"`
	B string `odm:"x"`
}

func TestDispatch(t *testing.T) {
	exact := func(t reflect.Type) bool { return t == timeType }

	tests := []struct {
		name string
		key  Key
		want FamilyEnum
	}{
		{name: "registered type", key: KeyOf(timeType), want: FamilyExact},
		{name: "reference to struct", key: Key{Type: reflect.TypeOf(&author{}), Ref: RefCompound}, want: FamilyReference},
		{name: "reference to interface", key: Key{Type: reflect.TypeOf((*Shape)(nil)).Elem(), Ref: RefIDOnly}, want: FamilyReference},
		{name: "reference collection", key: Key{Type: reflect.TypeOf([]*author{}), Ref: RefIDOnly}, want: FamilyCollection},
		{name: "pointer", key: KeyOf(reflect.TypeOf(&author{})), want: FamilyPointer},
		{name: "enum", key: KeyOf(reflect.TypeOf(colorRed)), want: FamilyEnumeration},
		{name: "primitive", key: KeyOf(reflect.TypeOf(int16(0))), want: FamilyPrimitive},
		{name: "map", key: KeyOf(reflect.TypeOf(map[string]int{})), want: FamilyMap},
		{name: "slice", key: KeyOf(reflect.TypeOf([]int{})), want: FamilyCollection},
		{name: "array", key: KeyOf(reflect.TypeOf([3]int{})), want: FamilyCollection},
		{name: "interface", key: KeyOf(reflect.TypeOf((*Shape)(nil)).Elem()), want: FamilyPolymorphic},
		{name: "empty interface", key: KeyOf(anyType), want: FamilyDynamic},
		{name: "struct", key: KeyOf(reflect.TypeOf(pair{})), want: FamilyObject},
		{name: "channel", key: KeyOf(reflect.TypeOf(make(chan int))), want: FamilyUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Dispatch(tt.key, exact))
		})
	}
}

func TestRegistry_LookupIsMemoized(t *testing.T) {
	reg := newTestRegistry()
	types := []reflect.Type{
		reflect.TypeOf(drawing{}),
		reflect.TypeOf(book{}),
		reflect.TypeOf(treeNode{}),
		reflect.TypeOf(map[string][]int{}),
	}

	results := make([][]Codec, 16)

	var g errgroup.Group
	for i := range results {
		i := i
		g.Go(func() error {
			for _, typ := range types {
				c, err := reg.LookupType(typ)
				if err != nil {
					return err
				}
				results[i] = append(results[i], c)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for i := 1; i < len(results); i++ {
		for j := range types {
			assert.Same(t, results[0][j], results[i][j], types[j].String())
		}
	}

	ref, err := reg.Lookup(Key{Type: reflect.TypeOf(&author{}), Ref: RefCompound})
	require.NoError(t, err)
	inline, err := reg.LookupType(reflect.TypeOf(&author{}))
	require.NoError(t, err)
	assert.NotSame(t, ref, inline)
}

func TestRegistry_ConcurrentRoundTrips(t *testing.T) {
	reg := newTestRegistry()

	var g errgroup.Group
	for i := 0; i < 32; i++ {
		i := i
		g.Go(func() error {
			in := drawing{Main: circle{Radius: float64(i)}, Layers: []Shape{&square{Side: float64(i)}}}

			doc, err := reg.Marshal(context.Background(), in)
			if err != nil {
				return err
			}

			var out drawing
			if err := reg.Unmarshal(context.Background(), doc, &out); err != nil {
				return err
			}

			if !reflect.DeepEqual(in, out) {
				return errors.New(errors.PhaseDecode, errors.KindInvalidData).Detail("round trip %d differs", i).Build()
			}
			return nil
		})
	}

	require.NoError(t, g.Wait())
}

func TestRegistry_UnmarshalRootKinds(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry()
	_, err := reg.LookupType(reflect.TypeOf(circle{}))
	require.NoError(t, err)

	t.Run("struct", func(t *testing.T) {
		in := pair{ID: primitive.NewObjectID(), Name: "a", Count: 3}

		var out pair
		require.NoError(t, reg.Unmarshal(ctx, mustMarshal(reg, in), &out))
		assert.Equal(t, in, out)
	})

	t.Run("pointer to struct", func(t *testing.T) {
		var out *pair
		require.NoError(t, reg.Unmarshal(ctx, mustDoc(bson.D{{Key: "name", Value: "p"}}), &out))
		require.NotNil(t, out)
		assert.Equal(t, "p", out.Name)
	})

	t.Run("map", func(t *testing.T) {
		in := map[string]int{"a": 1, "b": 2}

		var out map[string]int
		require.NoError(t, reg.Unmarshal(ctx, mustMarshal(reg, in), &out))
		assert.Equal(t, in, out)
	})

	t.Run("interface", func(t *testing.T) {
		doc := mustDoc(bson.D{{Key: "className", Value: "Circle"}, {Key: "radius", Value: 2.0}})

		var out Shape
		require.NoError(t, reg.Unmarshal(ctx, doc, &out))
		assert.Equal(t, circle{Radius: 2}, out)
	})

	t.Run("empty interface", func(t *testing.T) {
		var out any
		require.NoError(t, reg.Unmarshal(ctx, mustDoc(bson.D{{Key: "n", Value: int32(1)}}), &out))
		assert.Equal(t, map[string]any{"n": int32(1)}, out)
	})

	t.Run("hooked struct", func(t *testing.T) {
		hooks := lifecycle.NewRegistry()
		hooks.On(reflect.TypeOf(pair{}), lifecycle.PreDecode, func(_ *lifecycle.Context, _ any, doc bson.D) (bson.D, error) {
			return doc, nil
		})

		hooked := NewRegistry(WithDispatcher(hooks))
		in := pair{ID: primitive.NewObjectID(), Name: "h", Count: 1}

		var out pair
		require.NoError(t, hooked.Unmarshal(ctx, mustMarshal(hooked, in), &out))
		assert.Equal(t, in, out)
	})
}

func TestFamily_String(t *testing.T) {
	assert.Equal(t, "enum", FamilyEnumeration.String())
	assert.Equal(t, "object", FamilyObject.String())
	assert.Equal(t, "unknown", FamilyEnum(FamilyTotal).String())
}

func TestRegistry_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name  string
		first any
		typ   any
		kind  errors.Kind
	}{
		{name: "duplicate key", typ: clash{}, kind: errors.KindDuplicateKey},
		{name: "duplicate discriminator across lookups", first: circle{}, typ: otherCircle{}, kind: errors.KindDuplicateDiscriminator},
		{name: "duplicate discriminator in one build", typ: struct {
			A circle
			B otherCircle
		}{}, kind: errors.KindDuplicateDiscriminator},
		{name: "unsupported kind", typ: struct{ C chan int }{}, kind: errors.KindNotConstructible},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newTestRegistry()
			if tt.first != nil {
				_, err := reg.LookupType(reflect.TypeOf(tt.first))
				require.NoError(t, err)
			}

			_, err := reg.LookupType(reflect.TypeOf(tt.typ))

			var e *errors.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.kind, e.Kind)
			assert.True(t, e.Configuration())

			// a failed build publishes nothing
			_, err = reg.LookupType(reflect.TypeOf(circle{}))
			assert.NoError(t, err)
		})
	}
}

func TestRegistry_RegisterCodec(t *testing.T) {
	reg := newTestRegistry()

	regexType := reflect.TypeOf(primitive.Regex{})
	c, err := DriverCodec(regexType)
	require.NoError(t, err)
	require.NoError(t, reg.RegisterCodec(regexType, c))

	type filter struct {
		Match primitive.Regex
	}

	in := filter{Match: primitive.Regex{Pattern: "^a", Options: "i"}}
	doc := mustMarshal(reg, in)
	assert.Equal(t, bson.TypeRegex, doc.Lookup("match").Type)

	var out filter
	require.NoError(t, reg.Unmarshal(context.Background(), doc, &out))
	assert.Equal(t, in, out)

	err = reg.RegisterCodec(regexType, c)
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseMap, Kind: errors.KindIncompatibleField})
}

func TestRegistry_DriverBridge(t *testing.T) {
	reg := newTestRegistry()
	driver := reg.DriverRegistry(reflect.TypeOf(pair{}), reflect.TypeOf(&drawing{}))

	in := pair{ID: primitive.NewObjectID(), Name: "bridged", Count: 2}

	data, err := bson.MarshalWithRegistry(driver, in)
	require.NoError(t, err)
	assert.Equal(t, []string{"_id", "name", "count"}, keysOf(data))

	var out pair
	require.NoError(t, bson.UnmarshalWithRegistry(driver, data, &out))
	assert.Equal(t, in, out)

	shapes := drawing{Main: circle{Radius: 1}}
	data, err = bson.MarshalWithRegistry(driver, shapes)
	require.NoError(t, err)

	var back drawing
	require.NoError(t, bson.UnmarshalWithRegistry(driver, data, &back))
	assert.Equal(t, shapes, back)
}

func TestKey_String(t *testing.T) {
	typ := reflect.TypeOf(author{})

	assert.Equal(t, "codec.author", KeyOf(typ).String())
	assert.Equal(t, "codec.author (reference)", Key{Type: typ, Ref: RefCompound}.String())
	assert.Equal(t, "codec.author (reference, id only)", Key{Type: typ, Ref: RefIDOnly}.String())
}
