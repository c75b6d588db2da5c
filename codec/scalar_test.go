package codec

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"docmapper/errors"
)

type numbers struct {
	Small  int8
	Count  int
	Ratio  float32
	Big    uint64
	Flag   bool
	Label  string
	Amount primitive.Decimal128
}

func TestPrimitive_Numbers(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  numbers
		kind  errors.Kind
	}{
		{name: "int32 into int8", value: bson.D{{Key: "small", Value: int32(-7)}}, want: numbers{Small: -7}},
		{name: "int64 overflowing int8", value: bson.D{{Key: "small", Value: int64(300)}}, kind: errors.KindOverflow},
		{name: "integral double into int", value: bson.D{{Key: "count", Value: 2.0}}, want: numbers{Count: 2}},
		{name: "fractional double into int", value: bson.D{{Key: "count", Value: 2.5}}, kind: errors.KindTypeMismatch},
		{name: "int into float32", value: bson.D{{Key: "ratio", Value: int32(3)}}, want: numbers{Ratio: 3}},
		{name: "negative into unsigned", value: bson.D{{Key: "big", Value: int64(-1)}}, kind: errors.KindOverflow},
		{name: "string into int", value: bson.D{{Key: "count", Value: "2"}}, kind: errors.KindTypeMismatch},
		{name: "number into bool", value: bson.D{{Key: "flag", Value: int32(1)}}, kind: errors.KindTypeMismatch},
		{name: "null resets", value: bson.D{{Key: "label", Value: nil}}, want: numbers{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := numbers{Label: "preset"}
			err := newTestRegistry().Unmarshal(context.Background(), mustDoc(tt.value), &out)
			if tt.kind != "" {
				var e *errors.Error
				require.ErrorAs(t, err, &e)
				assert.Equal(t, tt.kind, e.Kind)
				assert.Len(t, e.Path, 1)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestPrimitive_UnsignedOverflowOnEncode(t *testing.T) {
	_, err := newTestRegistry().Marshal(context.Background(), numbers{Big: math.MaxUint64})
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseEncode, Kind: errors.KindOverflow})

	doc := mustMarshal(newTestRegistry(), numbers{Big: math.MaxInt64, Small: 1})
	assert.Equal(t, int64(math.MaxInt64), doc.Lookup("big").Int64())
	assert.Equal(t, int32(1), doc.Lookup("small").Int32())
}

func TestEnum(t *testing.T) {
	reg := newTestRegistry()

	doc := mustMarshal(reg, palette{Primary: colorGreen, Levels: []level{0, 3}})
	assert.Equal(t, "green", doc.Lookup("primary").StringValue())

	var out palette
	require.NoError(t, reg.Unmarshal(context.Background(), doc, &out))
	assert.Equal(t, palette{Primary: colorGreen, Levels: []level{0, 3}}, out)

	_, err := reg.Marshal(context.Background(), palette{})
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseEncode, Kind: errors.KindInvalidEnum})

	tests := []struct {
		name string
		doc  bson.D
	}{
		{name: "unknown name", doc: bson.D{{Key: "primary", Value: "mauve"}}},
		{name: "number outside the set", doc: bson.D{{Key: "primary", Value: int32(9)}}},
		{name: "level out of range", doc: bson.D{{Key: "primary", Value: "red"}, {Key: "levels", Value: bson.A{int32(4)}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out palette
			err := reg.Unmarshal(context.Background(), mustDoc(tt.doc), &out)
			assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseDecode, Kind: errors.KindInvalidEnum})
		})
	}

	var numeric palette
	require.NoError(t, reg.Unmarshal(context.Background(), mustDoc(bson.D{{Key: "primary", Value: int32(1)}}), &numeric))
	assert.Equal(t, colorRed, numeric.Primary)
}

func TestCollection_LoneValue(t *testing.T) {
	var out struct {
		Tags  []string
		Pairs [2]int
	}

	stored := mustDoc(bson.D{{Key: "tags", Value: "solo"}, {Key: "pairs", Value: bson.A{1, 2, 3}}})
	require.NoError(t, newTestRegistry().Unmarshal(context.Background(), stored, &out))

	assert.Equal(t, []string{"solo"}, out.Tags)
	assert.Equal(t, [2]int{1, 2}, out.Pairs)

	err := newTestRegistry().Unmarshal(context.Background(), mustDoc(bson.D{{Key: "tags", Value: bson.A{"a", 1}}}), &out)

	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.KindTypeMismatch, e.Kind)
	assert.Equal(t, []string{"Tags", "1"}, e.Path)
}

type scalars struct {
	At      time.Time
	Timeout time.Duration
	Ref     primitive.ObjectID
	Token   uuid.UUID
	Blob    []byte
	Raw     bson.Raw
	When    primitive.DateTime
}

func TestExact_RoundTripAndAlternateForms(t *testing.T) {
	reg := newTestRegistry()

	in := scalars{
		At:      time.Date(2024, 5, 1, 10, 30, 0, 123_000_000, time.UTC),
		Timeout: 3 * time.Second,
		Ref:     primitive.NewObjectID(),
		Token:   uuid.New(),
		Blob:    []byte{1, 2, 3},
		Raw:     mustDoc(bson.D{{Key: "k", Value: "v"}}),
		When:    primitive.NewDateTimeFromTime(time.Unix(1_700_000_000, 0)),
	}

	doc := mustMarshal(reg, in)
	assert.Equal(t, bson.TypeDateTime, doc.Lookup("at").Type)
	subtype, _ := doc.Lookup("token").Binary()
	assert.Equal(t, byte(uuidSubtype), subtype)

	var out scalars
	require.NoError(t, reg.Unmarshal(context.Background(), doc, &out))
	assert.True(t, in.At.Equal(out.At))
	assert.Equal(t, in.Timeout, out.Timeout)
	assert.Equal(t, in.Ref, out.Ref)
	assert.Equal(t, in.Token, out.Token)
	assert.Equal(t, in.Blob, out.Blob)
	assert.Equal(t, in.Raw, out.Raw)
	assert.Equal(t, in.When, out.When)

	// instants lose precision below the millisecond
	fine := scalars{At: time.Date(2024, 5, 1, 10, 30, 0, 123_456_789, time.FixedZone("X", 3600))}
	require.NoError(t, reg.Unmarshal(context.Background(), mustMarshal(reg, fine), &out))
	assert.True(t, time.Date(2024, 5, 1, 9, 30, 0, 123_000_000, time.UTC).Equal(out.At))
	assert.Equal(t, time.UTC, out.At.Location())

	alternate := mustDoc(bson.D{
		{Key: "at", Value: "2024-05-01T10:30:00Z"},
		{Key: "ref", Value: in.Ref.Hex()},
		{Key: "token", Value: in.Token.String()},
		{Key: "blob", Value: "abc"},
	})
	require.NoError(t, reg.Unmarshal(context.Background(), alternate, &out))
	assert.True(t, time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC).Equal(out.At))
	assert.Equal(t, in.Ref, out.Ref)
	assert.Equal(t, in.Token, out.Token)
	assert.Equal(t, []byte("abc"), out.Blob)

	bad := mustDoc(bson.D{{Key: "ref", Value: "not-hex"}})
	assert.Error(t, reg.Unmarshal(context.Background(), bad, &out))
}
