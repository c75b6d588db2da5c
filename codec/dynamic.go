package codec

import (
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.uber.org/zap"

	"docmapper/errors"
)

var (
	anyType      = reflect.TypeOf((*any)(nil)).Elem()
	anyMapType   = reflect.TypeOf(map[string]any(nil))
	anySliceType = reflect.TypeOf([]any(nil))
)

// dynamicCodec handles the empty interface. Values encode by their
// runtime type; documents decode by their own type tags: nested
// documents become map[string]any unless they carry a known
// discriminator, arrays become []any.
type dynamicCodec struct {
	reg *Registry
}

func (c *dynamicCodec) Encode(ec *EncodeContext, vw bsonrw.ValueWriter, v reflect.Value) error {
	if v.IsNil() {
		return vw.WriteNull()
	}

	concrete := v.Elem()

	codec, err := ec.reg.LookupType(concrete.Type())
	if err != nil {
		return err
	}

	if de, ok := codec.(documentEncoder); ok && de.encodesDocument() {
		ec.reg.warnOnce(concrete.Type(), "struct stored in an untyped field, encoding it by its runtime type",
			zap.String("field", strings.Join(ec.path, ".")))

		return de.encodeDocument(ec, vw, concrete, anyType)
	}

	return codec.Encode(ec, vw, concrete)
}

func (c *dynamicCodec) Decode(dc *DecodeContext, vr bsonrw.ValueReader, v reflect.Value) error {
	val, err := c.decodeValue(dc, vr)
	if err != nil {
		return err
	}

	if !val.IsValid() {
		v.Set(reflect.Zero(v.Type()))
		return nil
	}

	if !val.Type().AssignableTo(v.Type()) {
		return dc.fail(errors.KindTypeMismatch, v.Type()).
			Detail("decoded %s does not implement the field type", val.Type()).
			Build()
	}

	v.Set(val)

	return nil
}

// decodeValue reads the current value by its document type. The result
// is invalid for null.
func (c *dynamicCodec) decodeValue(dc *DecodeContext, vr bsonrw.ValueReader) (reflect.Value, error) {
	switch vr.Type() {
	case bsontype.Null:
		return reflect.Value{}, vr.ReadNull()
	case bsontype.Double:
		f, err := vr.ReadDouble()
		return reflect.ValueOf(f), err
	case bsontype.String:
		s, err := vr.ReadString()
		return reflect.ValueOf(s), err
	case bsontype.Boolean:
		b, err := vr.ReadBoolean()
		return reflect.ValueOf(b), err
	case bsontype.Int32:
		i, err := vr.ReadInt32()
		return reflect.ValueOf(i), err
	case bsontype.Int64:
		i, err := vr.ReadInt64()
		return reflect.ValueOf(i), err
	case bsontype.DateTime:
		ms, err := vr.ReadDateTime()
		return reflect.ValueOf(time.UnixMilli(ms).UTC()), err
	case bsontype.ObjectID:
		oid, err := vr.ReadObjectID()
		return reflect.ValueOf(oid), err
	case bsontype.Decimal128:
		d, err := vr.ReadDecimal128()
		return reflect.ValueOf(d), err
	case bsontype.Binary:
		b, subtype, err := vr.ReadBinary()
		if err != nil {
			return reflect.Value{}, err
		}
		if subtype == uuidSubtype && len(b) == len(uuid.UUID{}) {
			u, _ := uuid.FromBytes(b)
			return reflect.ValueOf(u), nil
		}
		return reflect.ValueOf(append([]byte{}, b...)), nil
	case bsontype.Array:
		return c.decodeAs(dc, anySliceType, vr)
	case bsontype.EmbeddedDocument:
		return c.decodeDocument(dc, vr)
	default:
		t, b, err := bsonrw.Copier{}.CopyValueToBytes(vr)
		return reflect.ValueOf(bson.RawValue{Type: t, Value: b}), err
	}
}

func (c *dynamicCodec) decodeAs(dc *DecodeContext, t reflect.Type, vr bsonrw.ValueReader) (reflect.Value, error) {
	codec, err := dc.reg.LookupType(t)
	if err != nil {
		return reflect.Value{}, err
	}

	out := reflect.New(t).Elem()
	if err := codec.Decode(dc, vr, out); err != nil {
		return reflect.Value{}, err
	}

	return out, nil
}

func (c *dynamicCodec) decodeDocument(dc *DecodeContext, vr bsonrw.ValueReader) (reflect.Value, error) {
	data, err := bsonrw.Copier{}.CopyDocumentToBytes(vr)
	if err != nil {
		return reflect.Value{}, err
	}

	t := anyMapType

	if name, ok := discriminatorOf(data, dc.reg.Config().DiscriminatorKey); ok {
		d, ok := dc.reg.index.Resolve(name)
		if !ok {
			return reflect.Value{}, errors.UnresolvedDiscriminator(dc.Path(), name)
		}
		t = d.Type
	}

	return c.decodeAs(dc, t, documentReader(data))
}

// discriminatorOf returns the string stored under key in the document.
func discriminatorOf(doc bson.Raw, key string) (string, bool) {
	rv, err := doc.LookupErr(key)
	if err != nil {
		return "", false
	}

	return rv.StringValueOK()
}
