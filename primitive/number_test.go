package primitive

import (
	"math"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

func TestCategory(t *testing.T) {
	tests := []struct {
		from, to KindEnum
		want     CategoryEnum
	}{
		{KindInt32, KindInt64, CategorySafeNumber},
		{KindInt32, KindInt, CategorySafeNumber},
		{KindInt64, KindInt32, CategoryUnsafeNumber},
		{KindFloat64, KindInt, CategoryUnsafeNumber},
		{KindInt64, KindDuration, CategoryNanoseconds},
		{KindString, KindPrimitiveEnum, CategoryEnumString},
		{KindBool, KindString, CategoryNone},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Category(tt.from, tt.to))
		})
	}

	assert.True(t, Allowed(KindInt64, KindInt8, CategoryAll))
	assert.False(t, Allowed(KindInt64, KindInt8, CategorySafeNumber))
}

func TestNumber_Assign(t *testing.T) {
	type Level int8

	tests := []struct {
		name    string
		n       Number
		dst     any
		want    any
		wantErr error
	}{
		{name: "int32 into int", n: IntNumber(KindInt32, 42), dst: new(int), want: 42},
		{name: "int64 into int8 fits", n: IntNumber(KindInt64, -7), dst: new(int8), want: int8(-7)},
		{name: "int64 into int8 overflows", n: IntNumber(KindInt64, 300), dst: new(int8), wantErr: ErrOverflow},
		{name: "negative into uint", n: IntNumber(KindInt32, -1), dst: new(uint16), wantErr: ErrOverflow},
		{name: "int into uint", n: IntNumber(KindInt64, 65535), dst: new(uint16), want: uint16(65535)},
		{name: "integral double into int", n: FloatNumber(12), dst: new(int64), want: int64(12)},
		{name: "fraction into int", n: FloatNumber(1.5), dst: new(int), wantErr: ErrFraction},
		{name: "nan into int", n: FloatNumber(math.NaN()), dst: new(int), wantErr: ErrOverflow},
		{name: "int into float", n: IntNumber(KindInt32, 3), dst: new(float64), want: float64(3)},
		{name: "double into float32 overflows", n: FloatNumber(math.MaxFloat64), dst: new(float32), wantErr: ErrOverflow},
		{name: "named enum", n: IntNumber(KindInt32, 2), dst: new(Level), want: Level(2)},
		{name: "not a number", n: IntNumber(KindInt32, 2), dst: new(string), wantErr: ErrNotNumber},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := reflect.ValueOf(tt.dst).Elem()
			err := tt.n.Assign(dst)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, dst.Interface())
		})
	}
}

func TestKind_BSONType(t *testing.T) {
	assert.Equal(t, bsontype.Int32, KindInt16.BSONType())
	assert.Equal(t, bsontype.Int64, KindInt.BSONType())
	assert.Equal(t, bsontype.Int64, KindDuration.BSONType())
	assert.Equal(t, bsontype.Double, KindFloat32.BSONType())
	assert.Equal(t, bsontype.DateTime, KindTime.BSONType())
	assert.Equal(t, KindFloat64, FromBSONType(bsontype.Double))
	assert.Equal(t, KindEnum(0), FromBSONType(bsontype.String))
}
