package codec

import (
	"encoding"
	"math"
	"reflect"

	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/bson/bsontype"

	"docmapper/errors"
	"docmapper/primitive"
)

// primitiveCodec handles booleans, strings and numbers by kind, named
// float types included.
type primitiveCodec struct {
	t    reflect.Type
	kind primitive.KindEnum
}

func newPrimitiveCodec(t reflect.Type) *primitiveCodec {
	return &primitiveCodec{t: t, kind: primitive.FromReflectKind(t.Kind())}
}

func (c *primitiveCodec) Encode(ec *EncodeContext, vw bsonrw.ValueWriter, v reflect.Value) error {
	switch {
	case c.kind == primitive.KindBool:
		return vw.WriteBoolean(v.Bool())
	case c.kind == primitive.KindString:
		return vw.WriteString(v.String())
	case c.kind.IsFloat():
		return vw.WriteDouble(v.Float())
	case c.kind.IsSigned():
		return writeInt(vw, c.kind, v.Int())
	default:
		u := v.Uint()
		if u > math.MaxInt64 {
			return errors.Overflow(errors.PhaseEncode, ec.Path(), c.t.String(), u)
		}
		return writeInt(vw, c.kind, int64(u))
	}
}

func writeInt(vw bsonrw.ValueWriter, kind primitive.KindEnum, i int64) error {
	if kind.BSONType() == bsontype.Int32 {
		return vw.WriteInt32(int32(i))
	}

	return vw.WriteInt64(i)
}

func (c *primitiveCodec) Decode(dc *DecodeContext, vr bsonrw.ValueReader, v reflect.Value) error {
	if vr.Type() == bsontype.Null {
		v.Set(reflect.Zero(c.t))
		return vr.ReadNull()
	}

	switch c.kind {
	case primitive.KindBool:
		if vr.Type() != bsontype.Boolean {
			return dc.mismatch(c.t, vr.Type())
		}

		b, err := vr.ReadBoolean()
		if err != nil {
			return err
		}
		v.SetBool(b)

		return nil

	case primitive.KindString:
		var (
			s   string
			err error
		)

		switch vr.Type() {
		case bsontype.String:
			s, err = vr.ReadString()
		case bsontype.Symbol:
			s, err = vr.ReadSymbol()
		default:
			return dc.mismatch(c.t, vr.Type())
		}
		if err != nil {
			return err
		}
		v.SetString(s)

		return nil

	default:
		n, ok, err := readNumber(vr)
		if err != nil {
			return err
		}
		if !ok {
			return dc.mismatch(c.t, vr.Type())
		}

		return assignNumber(dc, n, v)
	}
}

// readNumber reads an int32, int64 or double. ok is false for any other
// document type, in which case nothing was consumed.
func readNumber(vr bsonrw.ValueReader) (n primitive.Number, ok bool, err error) {
	switch vr.Type() {
	case bsontype.Int32:
		i, err := vr.ReadInt32()
		return primitive.IntNumber(primitive.KindInt32, int64(i)), true, err
	case bsontype.Int64:
		i, err := vr.ReadInt64()
		return primitive.IntNumber(primitive.KindInt64, i), true, err
	case bsontype.Double:
		f, err := vr.ReadDouble()
		return primitive.FloatNumber(f), true, err
	default:
		return primitive.Number{}, false, nil
	}
}

func assignNumber(dc *DecodeContext, n primitive.Number, v reflect.Value) error {
	err := n.Assign(v)
	if err == nil {
		return nil
	}

	var value any = n.Int
	if n.Kind.IsFloat() {
		value = n.Float
	}

	if errors.Is(err, primitive.ErrOverflow) {
		return errors.Overflow(errors.PhaseDecode, dc.Path(), v.Type().String(), value)
	}

	return dc.fail(errors.KindTypeMismatch, v.Type()).
		Value(value).
		Detail("cannot store %s value %v", n.Kind, value).
		Cause(err).
		Build()
}

var (
	textMarshalerType   = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
	validatorType       = reflect.TypeOf((*validator)(nil)).Elem()
)

// validator is implemented by enums that know their legal values.
type validator interface {
	IsValid() bool
}

// enumCodec handles named integer, string and boolean types. Types with
// text marshaling are stored as strings; the others as their underlying
// scalar. Enums with an IsValid method reject values it refuses.
type enumCodec struct {
	t      reflect.Type
	scalar *primitiveCodec
	text   bool
	valid  bool
}

func newEnumCodec(t reflect.Type) *enumCodec {
	return &enumCodec{
		t:      t,
		scalar: newPrimitiveCodec(t),
		text:   t.Implements(textMarshalerType) && reflect.PointerTo(t).Implements(textUnmarshalerType),
		valid:  t.Implements(validatorType),
	}
}

func (c *enumCodec) Encode(ec *EncodeContext, vw bsonrw.ValueWriter, v reflect.Value) error {
	if c.valid && !v.Interface().(validator).IsValid() {
		return ec.fail(errors.KindInvalidEnum, c.t).
			Value(v.Interface()).
			Detail("value %v is not a member of the enumeration", v.Interface()).
			Build()
	}

	if !c.text {
		return c.scalar.Encode(ec, vw, v)
	}

	b, err := v.Interface().(encoding.TextMarshaler).MarshalText()
	if err != nil {
		return ec.fail(errors.KindInvalidEnum, c.t).Value(v.Interface()).Cause(err).Build()
	}

	return vw.WriteString(string(b))
}

func (c *enumCodec) Decode(dc *DecodeContext, vr bsonrw.ValueReader, v reflect.Value) error {
	if c.text && vr.Type() == bsontype.String {
		s, err := vr.ReadString()
		if err != nil {
			return err
		}

		p := reflect.New(c.t)
		if err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
			return dc.fail(errors.KindInvalidEnum, c.t).Value(s).Cause(err).Build()
		}
		v.Set(p.Elem())

		return nil
	}

	null := vr.Type() == bsontype.Null

	if err := c.scalar.Decode(dc, vr, v); err != nil {
		return err
	}

	if c.valid && !null && !v.Interface().(validator).IsValid() {
		bad := v.Interface()
		v.Set(reflect.Zero(c.t))

		return dc.fail(errors.KindInvalidEnum, c.t).
			Value(bad).
			Detail("value %v is not a member of the enumeration", bad).
			Build()
	}

	return nil
}
