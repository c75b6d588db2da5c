package codec

import (
	"reflect"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	bsonprim "go.mongodb.org/mongo-driver/bson/primitive"

	"docmapper/errors"
)

// uuidSubtype is the binary subtype of standard UUIDs.
const uuidSubtype = 0x04

var (
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
	objectIDType = reflect.TypeOf(bsonprim.ObjectID{})
	decimalType  = reflect.TypeOf(bsonprim.Decimal128{})
	dateTimeType = reflect.TypeOf(bsonprim.DateTime(0))
	uuidType     = reflect.TypeOf(uuid.UUID{})
	bytesType    = reflect.TypeOf([]byte(nil))
	rawType      = reflect.TypeOf(bson.Raw(nil))
	rawValueType = reflect.TypeOf(bson.RawValue{})
)

func builtinCodecs() map[reflect.Type]Codec {
	return map[reflect.Type]Codec{
		timeType:     timeCodec{},
		durationType: durationCodec{},
		objectIDType: objectIDCodec{},
		decimalType:  decimalCodec{},
		dateTimeType: dateTimeCodec{},
		uuidType:     uuidCodec{},
		bytesType:    bytesCodec{},
		rawType:      rawCodec{},
		rawValueType: rawValueCodec{},
	}
}

// decodeNull sets v to its zero value when vr holds null.
func decodeNull(vr bsonrw.ValueReader, v reflect.Value) (bool, error) {
	if vr.Type() != bsontype.Null {
		return false, nil
	}

	v.Set(reflect.Zero(v.Type()))

	return true, vr.ReadNull()
}

// timeCodec stores instants as UTC milliseconds.
type timeCodec struct{}

func (timeCodec) Encode(_ *EncodeContext, vw bsonrw.ValueWriter, v reflect.Value) error {
	return vw.WriteDateTime(v.Interface().(time.Time).UnixMilli())
}

func (timeCodec) Decode(dc *DecodeContext, vr bsonrw.ValueReader, v reflect.Value) error {
	if null, err := decodeNull(vr, v); null || err != nil {
		return err
	}

	switch vr.Type() {
	case bsontype.DateTime:
		ms, err := vr.ReadDateTime()
		if err != nil {
			return err
		}
		v.Set(reflect.ValueOf(time.UnixMilli(ms).UTC()))
	case bsontype.Timestamp:
		sec, _, err := vr.ReadTimestamp()
		if err != nil {
			return err
		}
		v.Set(reflect.ValueOf(time.Unix(int64(sec), 0).UTC()))
	case bsontype.String:
		s, err := vr.ReadString()
		if err != nil {
			return err
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return dc.fail(errors.KindInvalidData, timeType).Value(s).Cause(err).Build()
		}
		v.Set(reflect.ValueOf(t.UTC()))
	default:
		return dc.mismatch(timeType, vr.Type())
	}

	return nil
}

// durationCodec stores durations as int64 nanoseconds.
type durationCodec struct{}

func (durationCodec) Encode(_ *EncodeContext, vw bsonrw.ValueWriter, v reflect.Value) error {
	return vw.WriteInt64(v.Int())
}

func (durationCodec) Decode(dc *DecodeContext, vr bsonrw.ValueReader, v reflect.Value) error {
	if null, err := decodeNull(vr, v); null || err != nil {
		return err
	}

	n, ok, err := readNumber(vr)
	if err != nil {
		return err
	}
	if !ok {
		return dc.mismatch(durationType, vr.Type())
	}

	return assignNumber(dc, n, v)
}

type objectIDCodec struct{}

func (objectIDCodec) Encode(_ *EncodeContext, vw bsonrw.ValueWriter, v reflect.Value) error {
	return vw.WriteObjectID(v.Interface().(bsonprim.ObjectID))
}

func (objectIDCodec) Decode(dc *DecodeContext, vr bsonrw.ValueReader, v reflect.Value) error {
	if null, err := decodeNull(vr, v); null || err != nil {
		return err
	}

	switch vr.Type() {
	case bsontype.ObjectID:
		oid, err := vr.ReadObjectID()
		if err != nil {
			return err
		}
		v.Set(reflect.ValueOf(oid))
	case bsontype.String:
		s, err := vr.ReadString()
		if err != nil {
			return err
		}
		oid, err := bsonprim.ObjectIDFromHex(s)
		if err != nil {
			return dc.fail(errors.KindInvalidData, objectIDType).Value(s).Cause(err).Build()
		}
		v.Set(reflect.ValueOf(oid))
	default:
		return dc.mismatch(objectIDType, vr.Type())
	}

	return nil
}

type decimalCodec struct{}

func (decimalCodec) Encode(_ *EncodeContext, vw bsonrw.ValueWriter, v reflect.Value) error {
	return vw.WriteDecimal128(v.Interface().(bsonprim.Decimal128))
}

func (decimalCodec) Decode(dc *DecodeContext, vr bsonrw.ValueReader, v reflect.Value) error {
	if null, err := decodeNull(vr, v); null || err != nil {
		return err
	}

	if vr.Type() != bsontype.Decimal128 {
		return dc.mismatch(decimalType, vr.Type())
	}

	d, err := vr.ReadDecimal128()
	if err != nil {
		return err
	}
	v.Set(reflect.ValueOf(d))

	return nil
}

type dateTimeCodec struct{}

func (dateTimeCodec) Encode(_ *EncodeContext, vw bsonrw.ValueWriter, v reflect.Value) error {
	return vw.WriteDateTime(v.Int())
}

func (dateTimeCodec) Decode(dc *DecodeContext, vr bsonrw.ValueReader, v reflect.Value) error {
	if null, err := decodeNull(vr, v); null || err != nil {
		return err
	}

	if vr.Type() != bsontype.DateTime {
		return dc.mismatch(dateTimeType, vr.Type())
	}

	ms, err := vr.ReadDateTime()
	if err != nil {
		return err
	}
	v.SetInt(ms)

	return nil
}

// uuidCodec stores UUIDs as binary subtype 4 and accepts their string
// form on decode.
type uuidCodec struct{}

func (uuidCodec) Encode(_ *EncodeContext, vw bsonrw.ValueWriter, v reflect.Value) error {
	u := v.Interface().(uuid.UUID)
	return vw.WriteBinaryWithSubtype(u[:], uuidSubtype)
}

func (uuidCodec) Decode(dc *DecodeContext, vr bsonrw.ValueReader, v reflect.Value) error {
	if null, err := decodeNull(vr, v); null || err != nil {
		return err
	}

	switch vr.Type() {
	case bsontype.Binary:
		b, _, err := vr.ReadBinary()
		if err != nil {
			return err
		}
		u, err := uuid.FromBytes(b)
		if err != nil {
			return dc.fail(errors.KindInvalidData, uuidType).Cause(err).Build()
		}
		v.Set(reflect.ValueOf(u))
	case bsontype.String:
		s, err := vr.ReadString()
		if err != nil {
			return err
		}
		u, err := uuid.Parse(s)
		if err != nil {
			return dc.fail(errors.KindInvalidData, uuidType).Value(s).Cause(err).Build()
		}
		v.Set(reflect.ValueOf(u))
	default:
		return dc.mismatch(uuidType, vr.Type())
	}

	return nil
}

// bytesCodec stores byte slices as generic binary.
type bytesCodec struct{}

func (bytesCodec) Encode(_ *EncodeContext, vw bsonrw.ValueWriter, v reflect.Value) error {
	if v.IsNil() {
		return vw.WriteNull()
	}

	return vw.WriteBinary(v.Bytes())
}

func (bytesCodec) Decode(dc *DecodeContext, vr bsonrw.ValueReader, v reflect.Value) error {
	if null, err := decodeNull(vr, v); null || err != nil {
		return err
	}

	switch vr.Type() {
	case bsontype.Binary:
		b, _, err := vr.ReadBinary()
		if err != nil {
			return err
		}
		v.SetBytes(append([]byte{}, b...))
	case bsontype.String:
		s, err := vr.ReadString()
		if err != nil {
			return err
		}
		v.SetBytes([]byte(s))
	default:
		return dc.mismatch(bytesType, vr.Type())
	}

	return nil
}

// rawCodec copies embedded documents verbatim.
type rawCodec struct{}

func (rawCodec) Encode(_ *EncodeContext, vw bsonrw.ValueWriter, v reflect.Value) error {
	if v.IsNil() {
		return vw.WriteNull()
	}

	return bsonrw.Copier{}.CopyDocumentFromBytes(vw, v.Bytes())
}

func (rawCodec) Decode(dc *DecodeContext, vr bsonrw.ValueReader, v reflect.Value) error {
	if null, err := decodeNull(vr, v); null || err != nil {
		return err
	}

	if vr.Type() != bsontype.EmbeddedDocument {
		return dc.mismatch(rawType, vr.Type())
	}

	b, err := bsonrw.Copier{}.CopyDocumentToBytes(vr)
	if err != nil {
		return err
	}
	v.SetBytes(b)

	return nil
}

// rawValueCodec copies any single value verbatim.
type rawValueCodec struct{}

func (rawValueCodec) Encode(_ *EncodeContext, vw bsonrw.ValueWriter, v reflect.Value) error {
	rv := v.Interface().(bson.RawValue)
	if rv.Type == 0 {
		return vw.WriteNull()
	}

	return bsonrw.Copier{}.CopyValueFromBytes(vw, rv.Type, rv.Value)
}

func (rawValueCodec) Decode(_ *DecodeContext, vr bsonrw.ValueReader, v reflect.Value) error {
	t, b, err := bsonrw.Copier{}.CopyValueToBytes(vr)
	if err != nil {
		return err
	}
	v.Set(reflect.ValueOf(bson.RawValue{Type: t, Value: b}))

	return nil
}
