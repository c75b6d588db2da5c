package codec

import (
	"reflect"
	"sort"
	"strconv"

	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/bson/bsontype"

	"docmapper/descriptor"
	"docmapper/errors"
)

// mapCodec handles maps with string or integer keys. Keys are written in
// sorted order so that equal maps encode to identical bytes.
type mapCodec struct {
	t    reflect.Type
	elem Codec
}

func (r *Registry) newMapCodec(s *session, k Key) (Codec, error) {
	switch k.Type.Key().Kind() {
	case reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
	default:
		return nil, errors.New(errors.PhaseMap, errors.KindNotConstructible).
			GoType(k.Type.String()).
			Detail("map keys must be strings or integers").
			Build()
	}

	elem, err := r.resolve(s, k.elem(k.Type.Elem()))
	if err != nil {
		return nil, err
	}

	return &mapCodec{t: k.Type, elem: elem}, nil
}

func (c *mapCodec) Encode(ec *EncodeContext, vw bsonrw.ValueWriter, v reflect.Value) error {
	if v.IsNil() {
		return vw.WriteNull()
	}

	type entry struct {
		key   string
		value reflect.Value
	}

	entries := make([]entry, 0, v.Len())
	for it := v.MapRange(); it.Next(); {
		entries = append(entries, entry{key: formatKey(it.Key()), value: it.Value()})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	dw, err := vw.WriteDocument()
	if err != nil {
		return err
	}

	for _, e := range entries {
		ew, err := dw.WriteDocumentElement(e.key)
		if err != nil {
			return err
		}

		if err := ec.enter(e.key); err != nil {
			return err
		}

		err = c.elem.Encode(ec, ew, e.value)
		ec.leave()

		if err != nil {
			return err
		}
	}

	return dw.WriteDocumentEnd()
}

func (c *mapCodec) Decode(dc *DecodeContext, vr bsonrw.ValueReader, v reflect.Value) error {
	switch vr.Type() {
	case bsontype.Null:
		v.Set(reflect.Zero(c.t))
		return vr.ReadNull()
	case bsontype.EmbeddedDocument:
	case bsontype.Array:
		if descriptor.IsTopType(c.t.Elem()) {
			return c.decodeIndexed(dc, vr, v)
		}
		return dc.mismatch(c.t, vr.Type())
	default:
		return dc.mismatch(c.t, vr.Type())
	}

	dr, err := vr.ReadDocument()
	if err != nil {
		return err
	}

	out := reflect.MakeMap(c.t)

	for {
		key, evr, err := dr.ReadElement()
		if errors.Is(err, bsonrw.ErrEOD) {
			break
		}
		if err != nil {
			return err
		}

		if err := c.decodeEntry(dc, key, evr, out); err != nil {
			return err
		}
	}

	v.Set(out)

	return nil
}

// decodeIndexed reads an array into a map of unknown values keyed by
// element position. Documents written without the map wrapper keep
// decoding; a key type that cannot hold a position reports the original
// mismatch.
func (c *mapCodec) decodeIndexed(dc *DecodeContext, vr bsonrw.ValueReader, v reflect.Value) error {
	ar, err := vr.ReadArray()
	if err != nil {
		return err
	}

	out := reflect.MakeMap(c.t)

	for i := 0; ; i++ {
		evr, err := ar.ReadValue()
		if errors.Is(err, bsonrw.ErrEOA) {
			break
		}
		if err != nil {
			return err
		}

		key := strconv.Itoa(i)
		if _, err := parseKey(c.t.Key(), key); err != nil {
			return dc.mismatch(c.t, bsontype.Array)
		}

		if err := c.decodeEntry(dc, key, evr, out); err != nil {
			return err
		}
	}

	v.Set(out)

	return nil
}

func (c *mapCodec) decodeEntry(dc *DecodeContext, key string, evr bsonrw.ValueReader, out reflect.Value) error {
	if err := dc.enter(key); err != nil {
		return err
	}
	defer dc.leave()

	k, err := parseKey(c.t.Key(), key)
	if err != nil {
		return dc.fail(errors.KindInvalidData, c.t.Key()).
			Value(key).
			Detail("document key %q is not a valid map key", key).
			Cause(err).
			Build()
	}

	elem := reflect.New(c.t.Elem()).Elem()
	if err := c.elem.Decode(dc, evr, elem); err != nil {
		return err
	}

	out.SetMapIndex(k, elem)

	return nil
}

func formatKey(k reflect.Value) string {
	switch k.Kind() {
	case reflect.String:
		return k.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10)
	default:
		return strconv.FormatUint(k.Uint(), 10)
	}
}

func parseKey(t reflect.Type, s string) (reflect.Value, error) {
	k := reflect.New(t).Elem()

	switch t.Kind() {
	case reflect.String:
		k.SetString(s)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(s, 10, t.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		k.SetInt(i)
	default:
		u, err := strconv.ParseUint(s, 10, t.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		k.SetUint(u)
	}

	return k, nil
}
