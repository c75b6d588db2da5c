package codec

import (
	"reflect"

	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/bson/bsontype"

	"docmapper/descriptor"
	"docmapper/errors"
)

// polymorphicCodec handles non-empty interfaces. Structs behind the
// interface are written with their discriminator and decoded into the
// type it names.
type polymorphicCodec struct {
	reg   *Registry
	iface reflect.Type
}

func (c *polymorphicCodec) Encode(ec *EncodeContext, vw bsonrw.ValueWriter, v reflect.Value) error {
	if v.IsNil() {
		return vw.WriteNull()
	}

	concrete := v.Elem()

	codec, err := ec.reg.LookupType(concrete.Type())
	if err != nil {
		return err
	}

	if de, ok := codec.(documentEncoder); ok && de.encodesDocument() {
		return de.encodeDocument(ec, vw, concrete, c.iface)
	}

	return codec.Encode(ec, vw, concrete)
}

func (c *polymorphicCodec) Decode(dc *DecodeContext, vr bsonrw.ValueReader, v reflect.Value) error {
	switch vr.Type() {
	case bsontype.Null:
		v.Set(reflect.Zero(c.iface))
		return vr.ReadNull()
	case bsontype.EmbeddedDocument:
	default:
		return (&dynamicCodec{reg: c.reg}).Decode(dc, vr, v)
	}

	data, err := bsonrw.Copier{}.CopyDocumentToBytes(vr)
	if err != nil {
		return err
	}

	d, err := c.concreteType(dc, data, v)
	if err != nil {
		return err
	}

	codec, err := dc.reg.LookupType(d.Type)
	if err != nil {
		return err
	}

	p := reflect.New(d.Type)
	if err := codec.Decode(dc, documentReader(data), p.Elem()); err != nil {
		return err
	}

	setConcrete(v, p)

	return nil
}

// concreteType resolves the type to instantiate: the one the
// discriminator names, else the type v already holds, else the only
// registered type implementing the interface.
func (c *polymorphicCodec) concreteType(dc *DecodeContext, data []byte, v reflect.Value) (*descriptor.TypeDescriptor, error) {
	if name, ok := discriminatorOf(data, dc.reg.Config().DiscriminatorKey); ok {
		d, ok := dc.reg.index.Resolve(name)
		if !ok {
			err := errors.UnresolvedDiscriminator(dc.Path(), name)
			err.GoType = c.iface.String()
			return nil, err
		}

		if !implements(d.Type, c.iface) {
			return nil, dc.fail(errors.KindTypeMismatch, c.iface).
				Value(name).
				Detail("discriminator %q names %s, which does not implement the field type", name, d.Type).
				Build()
		}

		return d, nil
	}

	if !v.IsNil() {
		if held := base(v.Elem().Type()); held.Kind() == reflect.Struct {
			return dc.reg.descriptors.Get(held)
		}
	}

	candidates := dc.reg.index.Candidates(c.iface, "")
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	return nil, dc.fail(errors.KindUnresolvedDiscriminator, c.iface).
		Detail("document has no discriminator and %d mapped types implement the field type", len(candidates)).
		Build()
}

// setConcrete stores p, a pointer to a fresh instance, into the interface
// v: by value when the value type implements the interface, else the
// pointer itself.
func setConcrete(v reflect.Value, p reflect.Value) {
	if p.Elem().Type().AssignableTo(v.Type()) {
		v.Set(p.Elem())
		return
	}

	v.Set(p)
}
