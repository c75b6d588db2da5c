package codec

import (
	"fmt"
	"reflect"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.uber.org/zap"

	"docmapper/descriptor"
	"docmapper/errors"
)

// Keys of a compound reference document.
const (
	RefKey = "$ref"
	IDKey  = "$id"
)

// referenceCodec stores another entity by identity. The field type is the
// entity struct, a pointer to it, or an interface its candidates
// implement.
type referenceCodec struct {
	t      reflect.Type
	target reflect.Type
	mode   RefMode
	lazy   bool
	// desc is nil for interface targets, which are resolved per document.
	desc *descriptor.TypeDescriptor
}

func (r *Registry) newReferenceCodec(s *session, k Key) (Codec, error) {
	c := &referenceCodec{t: k.Type, target: base(k.Type), mode: k.Ref, lazy: k.Lazy}

	if c.target.Kind() == reflect.Interface {
		return c, nil
	}

	d, err := r.descriptors.Get(c.target)
	if err != nil {
		return nil, err
	}

	if d.ID == nil {
		return nil, errors.New(errors.PhaseMap, errors.KindIncompatibleField).
			GoType(k.Type.String()).
			Detail("referenced type %s has no identity field", d.Name).
			Build()
	}

	// the entity codec and its identity codec are needed for fetching
	if _, err := r.resolve(s, KeyOf(c.target)); err != nil {
		return nil, err
	}
	if _, err := r.resolve(s, KeyOf(d.ID.Type)); err != nil {
		return nil, err
	}

	c.desc = d

	return c, nil
}

func (c *referenceCodec) Encode(ec *EncodeContext, vw bsonrw.ValueWriter, v reflect.Value) error {
	sv := v
	for sv.Kind() == reflect.Ptr || sv.Kind() == reflect.Interface {
		if sv.IsNil() {
			return vw.WriteNull()
		}
		sv = sv.Elem()
	}

	if sv.Kind() != reflect.Struct {
		return ec.fail(errors.KindTypeMismatch, c.t).
			Detail("referenced value of type %s is not an entity", sv.Type()).
			Build()
	}

	d, err := ec.reg.descriptors.Get(sv.Type())
	if err != nil {
		return err
	}

	idv, ok := d.IDValue(sv)
	if !ok {
		return ec.fail(errors.KindUnresolvedReference, sv.Type()).
			Detail("referenced type has no identity field").
			Build()
	}

	if idv.IsZero() {
		return ec.fail(errors.KindUnresolvedReference, sv.Type()).
			Detail("referenced entity has no identity yet").
			Build()
	}

	idc, err := ec.reg.LookupType(idv.Type())
	if err != nil {
		return err
	}

	if c.mode == RefIDOnly {
		return idc.Encode(ec, vw, idv)
	}

	dw, err := vw.WriteDocument()
	if err != nil {
		return err
	}

	ew, err := dw.WriteDocumentElement(RefKey)
	if err != nil {
		return err
	}
	if err := ew.WriteString(d.Collection); err != nil {
		return err
	}

	ew, err = dw.WriteDocumentElement(IDKey)
	if err != nil {
		return err
	}
	if err := idc.Encode(ec, ew, idv); err != nil {
		return err
	}

	return dw.WriteDocumentEnd()
}

func (c *referenceCodec) Decode(dc *DecodeContext, vr bsonrw.ValueReader, v reflect.Value) error {
	if vr.Type() == bsontype.Null {
		v.Set(reflect.Zero(c.t))
		return vr.ReadNull()
	}

	bt, data, err := bsonrw.Copier{}.CopyValueToBytes(vr)
	if err != nil {
		return err
	}

	collection := ""
	idType, idData := bt, data

	if bt == bsontype.EmbeddedDocument {
		doc := bson.Raw(data)
		if ref, ok := discriminatorOf(doc, RefKey); ok {
			id, err := doc.LookupErr(IDKey)
			if err != nil {
				return dc.fail(errors.KindInvalidData, c.t).
					Detail("reference to %q has no %s", ref, IDKey).
					Build()
			}
			collection = ref
			idType, idData = id.Type, id.Value
		}
	}

	// every candidate reads the identity from its own reader over the
	// buffered bytes, so a failed attempt consumes nothing
	for _, d := range c.candidates(dc, collection) {
		idc, err := dc.reg.LookupType(d.ID.Type)
		if err != nil {
			continue
		}

		idv := reflect.New(d.ID.Type).Elem()
		if err := idc.Decode(dc, bsonrw.NewBSONValueReader(idType, idData), idv); err != nil {
			continue
		}

		if collection == "" {
			collection = d.Collection
		}

		return c.bind(dc, v, d, collection, idv)
	}

	return dc.fail(errors.KindUnresolvedReference, c.t).
		Value(bson.RawValue{Type: idType, Value: idData}).
		Detail("no candidate type accepts the stored identity").
		Build()
}

func (c *referenceCodec) candidates(dc *DecodeContext, collection string) []*descriptor.TypeDescriptor {
	if c.desc != nil {
		return []*descriptor.TypeDescriptor{c.desc}
	}

	var out []*descriptor.TypeDescriptor
	for _, d := range dc.reg.index.Candidates(c.target, collection) {
		if d.ID != nil {
			out = append(out, d)
		}
	}

	return out
}

// bind stores a stub carrying only the identity into v and, for pointer
// and interface targets, queues the fetch of the full document.
func (c *referenceCodec) bind(
	dc *DecodeContext, v reflect.Value, d *descriptor.TypeDescriptor, collection string, idv reflect.Value,
) error {
	id := idv.Interface()

	if p, ok := dc.recalled(collection, id); ok && c.assignable(v, p) {
		c.set(v, p)
		return nil
	}

	p := dc.reg.instances.New(d.Type)
	p.Elem().FieldByIndex(d.ID.Index).Set(idv)

	if !c.assignable(v, p) {
		return dc.fail(errors.KindTypeMismatch, c.t).
			Detail("referenced %s cannot be stored in the field", d.Type).
			Build()
	}
	c.set(v, p)

	if !holdsPointer(v) {
		return nil
	}

	dc.Remember(collection, id, p)

	if c.lazy || dc.reg.resolver == nil {
		return nil
	}

	dc.Defer(func(*Instance) error {
		return fetch(dc, d, collection, id, p)
	})

	return nil
}

func (c *referenceCodec) assignable(v, p reflect.Value) bool {
	return p.Type().AssignableTo(v.Type()) || p.Elem().Type().AssignableTo(v.Type())
}

func (c *referenceCodec) set(v, p reflect.Value) {
	switch {
	case v.Kind() == reflect.Interface:
		setConcrete(v, p)
	case p.Type().AssignableTo(v.Type()):
		v.Set(p)
	default:
		v.Set(p.Elem())
	}
}

func holdsPointer(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr:
		return !v.IsNil()
	case reflect.Interface:
		return !v.IsNil() && v.Elem().Kind() == reflect.Ptr
	default:
		return false
	}
}

// fetch replaces the stub behind p with the stored document. A missing
// document keeps the stub.
func fetch(dc *DecodeContext, d *descriptor.TypeDescriptor, collection string, id any, p reflect.Value) error {
	doc, err := dc.reg.resolver.Resolve(dc.Context(), collection, id)
	if err != nil {
		return dc.fail(errors.KindUnresolvedReference, d.Type).
			Value(id).
			Detail("fetching %s/%v failed", collection, id).
			Cause(err).
			Build()
	}

	if doc == nil {
		dc.reg.logger.Warn("referenced document not found, keeping identity stub",
			zap.String("type", d.Type.String()),
			zap.String("collection", collection),
			zap.Any("id", id))

		return nil
	}

	codec, err := dc.reg.LookupType(d.Type)
	if err != nil {
		return err
	}

	return codec.Decode(dc, documentReader(doc), p.Elem())
}

// Remember records p as the instance of the entity stored under
// collection and id, so that later references to it within the same
// decode call share it.
func (dc *DecodeContext) Remember(collection string, id any, p reflect.Value) {
	if dc.fetched == nil {
		dc.fetched = make(map[string]reflect.Value)
	}

	dc.fetched[refKey(collection, id)] = p
}

func (dc *DecodeContext) recalled(collection string, id any) (reflect.Value, bool) {
	p, ok := dc.fetched[refKey(collection, id)]
	return p, ok
}

func refKey(collection string, id any) string {
	return fmt.Sprintf("%s\x00%T\x00%v", collection, id, id)
}
