package codec

import (
	"reflect"

	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// pointerCodec writes nil as null and otherwise delegates to the codec of
// the pointed-to type.
type pointerCodec struct {
	t    reflect.Type
	elem Codec
}

func (r *Registry) newPointerCodec(s *session, k Key) (Codec, error) {
	elem, err := r.resolve(s, k.elem(k.Type.Elem()))
	if err != nil {
		return nil, err
	}

	return &pointerCodec{t: k.Type, elem: elem}, nil
}

func (c *pointerCodec) Encode(ec *EncodeContext, vw bsonrw.ValueWriter, v reflect.Value) error {
	if v.IsNil() {
		return vw.WriteNull()
	}

	return c.elem.Encode(ec, vw, v.Elem())
}

func (c *pointerCodec) Decode(dc *DecodeContext, vr bsonrw.ValueReader, v reflect.Value) error {
	if vr.Type() == bsontype.Null {
		v.Set(reflect.Zero(c.t))
		return vr.ReadNull()
	}

	p := reflect.New(c.t.Elem())
	if err := c.elem.Decode(dc, vr, p.Elem()); err != nil {
		return err
	}
	v.Set(p)

	return nil
}

// encodeDocument lets polymorphic codecs reach the object codec behind a
// pointer.
func (c *pointerCodec) encodeDocument(ec *EncodeContext, vw bsonrw.ValueWriter, v reflect.Value, declared reflect.Type) error {
	de, ok := c.elem.(documentEncoder)
	if !ok || v.IsNil() {
		return c.Encode(ec, vw, v)
	}

	return de.encodeDocument(ec, vw, v.Elem(), declared)
}

func (c *pointerCodec) encodesDocument() bool {
	de, ok := c.elem.(documentEncoder)
	return ok && de.encodesDocument()
}
