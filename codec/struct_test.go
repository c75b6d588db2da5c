package codec

import (
	"context"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"docmapper/errors"
	"docmapper/options"
)

func TestObject_PairKeysAndRoundTrip(t *testing.T) {
	reg := newTestRegistry()
	in := pair{ID: primitive.NewObjectID(), Name: "a", Count: 3}

	doc, err := reg.Marshal(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []string{"_id", "name", "count"}, keysOf(doc))
	assert.Equal(t, bson.TypeInt64, doc.Lookup("count").Type)

	var out pair
	require.NoError(t, reg.Unmarshal(context.Background(), doc, &out))
	assert.Equal(t, in, out)
}

func TestObject_EmptiesAndNulls(t *testing.T) {
	tests := []struct {
		name string
		flag options.Flag
		keys []string
	}{
		{name: "default", flag: options.FlagNone, keys: []string{}},
		{name: "store empties", flag: options.StoreEmpties, keys: []string{"items"}},
		{name: "store nulls", flag: options.StoreNulls, keys: []string{"tags", "note"}},
		{name: "both", flag: options.StoreNulls | options.StoreEmpties, keys: []string{"items", "tags", "note"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry(withFlags(tt.flag))

			doc := mustMarshal(reg, bag{Items: []string{}})
			assert.Equal(t, tt.keys, keysOf(doc))

			var out bag
			require.NoError(t, reg.Unmarshal(context.Background(), doc, &out))
			assert.Nil(t, out.Note)
			assert.Nil(t, out.Tags)
			// with nulls stored, a missing container key was an empty one
			if tt.flag.Has(options.StoreEmpties) || tt.flag.Has(options.StoreNulls) {
				assert.NotNil(t, out.Items)
				assert.Empty(t, out.Items)
			} else {
				assert.Nil(t, out.Items)
			}
		})
	}
}

func TestObject_FieldPolicies(t *testing.T) {
	in := versioned{ID: "v1", Version: 7, Cache: "warm", Skip: "x"}

	doc := mustMarshal(newTestRegistry(), in)
	assert.Equal(t, []string{"_id", "version"}, keysOf(doc))

	ignoring := NewRegistry(withFlags(options.IgnoreFinals))
	assert.Equal(t, []string{"_id"}, keysOf(mustMarshal(ignoring, in)))

	var out versioned
	stored := mustDoc(bson.D{{Key: "_id", Value: "v1"}, {Key: "cache", Value: "cold"}, {Key: "skip", Value: "y"}})
	require.NoError(t, newTestRegistry().Unmarshal(context.Background(), stored, &out))
	assert.Equal(t, versioned{ID: "v1", Cache: "cold"}, out)
}

func TestObject_AlsoLoadAndUnknownKeys(t *testing.T) {
	reg := newTestRegistry()
	stored := mustDoc(bson.D{
		{Key: "_id", Value: 4},
		{Key: "name", Value: "Dune"},
		{Key: "publisher", Value: "Chilton"},
	})

	var out book
	require.NoError(t, reg.Unmarshal(context.Background(), stored, &out))
	assert.Equal(t, 4, out.ID)
	assert.Equal(t, "Dune", out.Title)

	doc := mustMarshal(reg, out)
	assert.Equal(t, []string{"_id", "title"}, keysOf(doc))
}

func TestObject_DecodeResetsTarget(t *testing.T) {
	reg := newTestRegistry()
	out := pair{Name: "stale", Count: 9}

	require.NoError(t, reg.Unmarshal(context.Background(), mustDoc(bson.D{{Key: "name", Value: "fresh"}}), &out))
	assert.Equal(t, pair{Name: "fresh"}, out)
}

func TestObject_FactoryDefaults(t *testing.T) {
	builder := NewInstanceBuilder()
	require.NoError(t, builder.Register(func() *pair { return &pair{Count: -1} }))

	reg := newTestRegistry(WithInstanceBuilder(builder))

	var out pair
	require.NoError(t, reg.Unmarshal(context.Background(), mustDoc(bson.D{{Key: "name", Value: "n"}}), &out))
	assert.Equal(t, pair{Name: "n", Count: -1}, out)

	assert.ErrorIs(t, builder.Register(func() pair { return pair{} }), &errors.Error{Phase: errors.PhaseMap, Kind: errors.KindIncompatibleField})
	assert.ErrorIs(t, builder.Register(42), &errors.Error{Phase: errors.PhaseMap, Kind: errors.KindIncompatibleField})
}

func TestObject_DiscriminatorChecks(t *testing.T) {
	reg := newTestRegistry()
	_, err := reg.LookupType(reflect.TypeOf(square{}))
	require.NoError(t, err)

	tests := []struct {
		name string
		doc  bson.D
		kind errors.Kind
	}{
		{name: "own name", doc: bson.D{{Key: "className", Value: "Circle"}, {Key: "radius", Value: 2.0}}},
		{name: "other type", doc: bson.D{{Key: "className", Value: "Square"}}, kind: errors.KindTypeMismatch},
		{name: "unknown", doc: bson.D{{Key: "className", Value: "Hexagon"}}, kind: errors.KindUnresolvedDiscriminator},
		{name: "not a string", doc: bson.D{{Key: "className", Value: 1}}, kind: errors.KindInvalidData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out circle
			err := reg.Unmarshal(context.Background(), mustDoc(tt.doc), &out)
			if tt.kind == "" {
				require.NoError(t, err)
				assert.InDelta(t, 2.0, out.Radius, 0)
				return
			}

			var e *errors.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.kind, e.Kind)
			assert.Equal(t, errors.PhaseDecode, e.Phase)
		})
	}
}

func TestObject_DecodeMismatch(t *testing.T) {
	reg := newTestRegistry()

	var out struct{ Inner pair }
	err := reg.Unmarshal(context.Background(), mustDoc(bson.D{{Key: "inner", Value: "text"}}), &out)

	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.KindTypeMismatch, e.Kind)
	assert.Equal(t, []string{"Inner"}, e.Path)
}

func TestObject_SelfReferenceRoundTrip(t *testing.T) {
	reg := newTestRegistry()
	in := treeNode{
		Name: "root",
		Children: []*treeNode{
			{Name: "a", Children: []*treeNode{{Name: "a1"}}},
			{Name: "b"},
		},
		Next: &treeNode{Name: "sibling"},
	}

	doc := mustMarshal(reg, in)

	var out treeNode
	require.NoError(t, reg.Unmarshal(context.Background(), doc, &out))
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestObject_DepthLimit(t *testing.T) {
	reg := newTestRegistry()

	chain := func(n int) *treeNode {
		head := &treeNode{Name: "0"}
		cur := head
		for i := 1; i < n; i++ {
			cur.Next = &treeNode{Name: "n"}
			cur = cur.Next
		}
		return head
	}

	_, err := reg.Marshal(context.Background(), chain(MaxDepth/2))
	require.NoError(t, err)

	_, err = reg.Marshal(context.Background(), chain(MaxDepth+5))
	assert.ErrorIs(t, err, &errors.Error{Kind: errors.KindDepth})

	cyclic := &treeNode{Name: "loop"}
	cyclic.Next = cyclic
	_, err = reg.Marshal(context.Background(), cyclic)
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseEncode, Kind: errors.KindDepth})
}

func TestObject_AlwaysDiscriminator(t *testing.T) {
	reg := newTestRegistry()

	assert.Equal(t, []string{"radius"}, keysOf(mustMarshal(reg, circle{Radius: 1})))

	doc := mustMarshal(reg, memo{Text: "x"})
	assert.Equal(t, []string{"className", "text"}, keysOf(doc))
	assert.Equal(t, "Memo", doc.Lookup("className").StringValue())

	silent := mustMarshal(reg, loose{Value: quiet{Text: "y"}})
	inner := silent.Lookup("value").Document()
	assert.Equal(t, []string{"text"}, keysOf(inner))
}

func TestMarshal_RejectsNonDocuments(t *testing.T) {
	reg := newTestRegistry()

	for _, v := range []any{nil, 3, "s", []int{1}, (*pair)(nil)} {
		_, err := reg.Marshal(context.Background(), v)
		assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseEncode, Kind: errors.KindTypeMismatch})
	}

	var p pair
	assert.Error(t, reg.Unmarshal(context.Background(), mustDoc(bson.D{}), p))
	assert.Error(t, reg.Unmarshal(context.Background(), mustDoc(bson.D{}), (*pair)(nil)))
}
