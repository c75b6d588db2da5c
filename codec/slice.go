package codec

import (
	"reflect"

	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/bson/bsontype"

	"docmapper/errors"
)

// collectionCodec handles slices and arrays. A lone value where an array
// is expected decodes into a single-element collection.
type collectionCodec struct {
	t    reflect.Type
	elem Codec
}

func (r *Registry) newCollectionCodec(s *session, k Key) (Codec, error) {
	elem, err := r.resolve(s, k.elem(k.Type.Elem()))
	if err != nil {
		return nil, err
	}

	return &collectionCodec{t: k.Type, elem: elem}, nil
}

func (c *collectionCodec) Encode(ec *EncodeContext, vw bsonrw.ValueWriter, v reflect.Value) error {
	if c.t.Kind() == reflect.Slice && v.IsNil() {
		return vw.WriteNull()
	}

	aw, err := vw.WriteArray()
	if err != nil {
		return err
	}

	for i := 0; i < v.Len(); i++ {
		ew, err := aw.WriteArrayElement()
		if err != nil {
			return err
		}

		if err := ec.enterIndex(i); err != nil {
			return err
		}

		err = c.elem.Encode(ec, ew, v.Index(i))
		ec.leave()

		if err != nil {
			return err
		}
	}

	return aw.WriteArrayEnd()
}

func (c *collectionCodec) Decode(dc *DecodeContext, vr bsonrw.ValueReader, v reflect.Value) error {
	switch vr.Type() {
	case bsontype.Null:
		v.Set(reflect.Zero(c.t))
		return vr.ReadNull()
	case bsontype.Array:
		return c.decodeArray(dc, vr, v)
	default:
		return c.decodeLone(dc, vr, v)
	}
}

func (c *collectionCodec) decodeArray(dc *DecodeContext, vr bsonrw.ValueReader, v reflect.Value) error {
	ar, err := vr.ReadArray()
	if err != nil {
		return err
	}

	var out reflect.Value
	if c.t.Kind() == reflect.Slice {
		out = reflect.MakeSlice(c.t, 0, 0)
	} else {
		out = reflect.New(c.t).Elem()
	}

	for i := 0; ; i++ {
		evr, err := ar.ReadValue()
		if errors.Is(err, bsonrw.ErrEOA) {
			break
		}
		if err != nil {
			return err
		}

		if c.t.Kind() == reflect.Array && i >= c.t.Len() {
			if err := evr.Skip(); err != nil {
				return err
			}
			continue
		}

		if err := dc.enterIndex(i); err != nil {
			return err
		}

		elem := reflect.New(c.t.Elem()).Elem()
		err = c.elem.Decode(dc, evr, elem)
		dc.leave()

		if err != nil {
			return err
		}

		if c.t.Kind() == reflect.Slice {
			out = reflect.Append(out, elem)
		} else {
			out.Index(i).Set(elem)
		}
	}

	v.Set(out)

	return nil
}

func (c *collectionCodec) decodeLone(dc *DecodeContext, vr bsonrw.ValueReader, v reflect.Value) error {
	if err := dc.enterIndex(0); err != nil {
		return err
	}
	defer dc.leave()

	elem := reflect.New(c.t.Elem()).Elem()
	if err := c.elem.Decode(dc, vr, elem); err != nil {
		return err
	}

	if c.t.Kind() == reflect.Slice {
		v.Set(reflect.Append(reflect.MakeSlice(c.t, 0, 1), elem))
		return nil
	}

	out := reflect.New(c.t).Elem()
	if c.t.Len() > 0 {
		out.Index(0).Set(elem)
	}
	v.Set(out)

	return nil
}
