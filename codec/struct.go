package codec

import (
	"bytes"
	"reflect"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/bson/bsontype"

	"docmapper/descriptor"
	"docmapper/errors"
	"docmapper/lifecycle"
)

// objectCodec encodes and decodes one struct type field by field, as its
// descriptor lays it out.
type objectCodec struct {
	reg    *Registry
	desc   *descriptor.TypeDescriptor
	fields []*fieldCodec
	byKey  map[string]*fieldCodec
}

type fieldCodec struct {
	*descriptor.FieldDescriptor
	codec Codec
}

func (r *Registry) newObjectCodec(s *session, t reflect.Type) (Codec, error) {
	d, err := r.descriptors.Get(t)
	if err != nil {
		return nil, err
	}

	if err := r.index.Check(d); err != nil {
		return nil, err
	}

	for _, other := range s.types {
		if d.UsesDiscriminator() && other.UsesDiscriminator() &&
			other.Discriminator == d.Discriminator && other.Type != d.Type {
			return nil, duplicateDiscriminator(d, other)
		}
	}
	s.types = append(s.types, d)

	oc := &objectCodec{
		reg:    r,
		desc:   d,
		fields: make([]*fieldCodec, 0, len(d.Fields)),
		byKey:  make(map[string]*fieldCodec, len(d.Fields)),
	}

	for _, f := range d.Fields {
		c, err := r.resolve(s, fieldKey(f))
		if err != nil {
			return nil, errors.WithPath(errors.PhaseMap, err, f.Name)
		}

		fc := &fieldCodec{FieldDescriptor: f, codec: c}
		oc.fields = append(oc.fields, fc)

		oc.byKey[f.Key] = fc
		for _, alias := range f.AlsoLoad {
			oc.byKey[alias] = fc
		}
	}

	return oc, nil
}

func fieldKey(f *descriptor.FieldDescriptor) Key {
	k := Key{Type: f.Type}

	if f.Options.Reference {
		k.Ref = RefCompound
		if f.Options.IDOnly {
			k.Ref = RefIDOnly
		}
		k.Lazy = f.Options.Lazy
	}

	return k
}

func (oc *objectCodec) Encode(ec *EncodeContext, vw bsonrw.ValueWriter, v reflect.Value) error {
	return oc.encodeDocument(ec, vw, v, oc.desc.Type)
}

func (oc *objectCodec) encodesDocument() bool {
	return true
}

// encodeDocument writes v where a value of type declared is expected.
func (oc *objectCodec) encodeDocument(ec *EncodeContext, vw bsonrw.ValueWriter, v reflect.Value, declared reflect.Type) error {
	d := oc.desc
	hooks := ec.reg.hooks

	pre := hooks.Has(d.Type, lifecycle.PreEncode)
	post := hooks.Has(d.Type, lifecycle.PostEncode)

	// method hooks have pointer receivers
	if (pre || post) && !v.CanAddr() {
		cp := reflect.New(d.Type).Elem()
		cp.Set(v)
		v = cp
	}

	if pre {
		if _, err := hooks.Dispatch(ec.hooks, lifecycle.PreEncode, d.Type, v, nil); err != nil {
			return hookError(&ec.state, errors.PhaseEncode, lifecycle.PreEncode, d, err)
		}
	}

	discriminate := d.NeedsDiscriminator(declared)

	if !post {
		return oc.writeFields(ec, vw, v, discriminate)
	}

	var buf bytes.Buffer

	bw, err := bsonrw.NewBSONValueWriter(&buf)
	if err != nil {
		return err
	}

	if err := oc.writeFields(ec, bw, v, discriminate); err != nil {
		return err
	}

	var doc bson.D
	if err := bson.Unmarshal(buf.Bytes(), &doc); err != nil {
		return ec.wrap(errors.PhaseEncode, err, d.Type)
	}

	doc, err = hooks.Dispatch(ec.hooks, lifecycle.PostEncode, d.Type, v, doc)
	if err != nil {
		return hookError(&ec.state, errors.PhaseEncode, lifecycle.PostEncode, d, err)
	}

	out, err := bson.Marshal(doc)
	if err != nil {
		return ec.fail(errors.KindHook, d.Type).
			Detail("%s hook returned a document that cannot be encoded", lifecycle.PostEncode).
			Cause(err).
			Build()
	}

	return bsonrw.Copier{}.CopyDocumentFromBytes(vw, out)
}

func (oc *objectCodec) writeFields(ec *EncodeContext, vw bsonrw.ValueWriter, v reflect.Value, discriminate bool) error {
	cfg := ec.reg.Config()

	dw, err := vw.WriteDocument()
	if err != nil {
		return err
	}

	if discriminate {
		ew, err := dw.WriteDocumentElement(cfg.DiscriminatorKey)
		if err != nil {
			return err
		}
		if err := ew.WriteString(oc.desc.Discriminator); err != nil {
			return err
		}
	}

	for _, fc := range oc.fields {
		fv := fc.Value(v)
		if !descriptor.ShouldWrite(fc.FieldDescriptor, fv, cfg) {
			continue
		}

		if err := ec.enter(fc.Name); err != nil {
			return err
		}

		ew, err := dw.WriteDocumentElement(fc.Key)
		if err == nil {
			err = fc.codec.Encode(ec, ew, fv)
		}
		if err != nil {
			err = ec.wrap(errors.PhaseEncode, err, fc.Type)
		}

		ec.leave()

		if err != nil {
			return err
		}
	}

	return dw.WriteDocumentEnd()
}

func (oc *objectCodec) Decode(dc *DecodeContext, vr bsonrw.ValueReader, v reflect.Value) error {
	d := oc.desc

	switch vr.Type() {
	case bsontype.Null:
		v.Set(reflect.Zero(d.Type))
		return vr.ReadNull()
	case bsontype.EmbeddedDocument:
	default:
		return dc.mismatch(d.Type, vr.Type())
	}

	hooks := dc.reg.hooks
	pre := hooks.Has(d.Type, lifecycle.PreDecode)
	post := hooks.Has(d.Type, lifecycle.PostDecode)

	var original bson.D

	// hooks see whole documents, so the streaming read gives way to a
	// buffered one
	if pre || post {
		data, err := bsonrw.Copier{}.CopyDocumentToBytes(vr)
		if err != nil {
			return dc.wrap(errors.PhaseDecode, err, d.Type)
		}

		if err := bson.Unmarshal(data, &original); err != nil {
			return dc.wrap(errors.PhaseDecode, err, d.Type)
		}

		if pre {
			doc, err := hooks.Dispatch(dc.hooks, lifecycle.PreDecode, d.Type, reflect.Value{}, append(bson.D(nil), original...))
			if err != nil {
				return hookError(&dc.state, errors.PhaseDecode, lifecycle.PreDecode, d, err)
			}

			if data, err = bson.Marshal(doc); err != nil {
				return dc.fail(errors.KindHook, d.Type).
					Detail("%s hook returned a document that cannot be encoded", lifecycle.PreDecode).
					Cause(err).
					Build()
			}
		}

		vr = documentReader(data)
	}

	dc.reg.instances.reset(v)

	inst := newInstance(d, v)
	parent := dc.instance
	dc.instance = inst

	err := oc.readFields(dc, vr, inst)
	if err == nil {
		oc.fillAbsent(dc, inst)

		if err = inst.Finish(); err != nil {
			err = inst.deferredError(dc.Path(), err)
		}
	}

	dc.instance = parent

	if err != nil {
		return err
	}

	if post {
		if _, err := hooks.Dispatch(dc.hooks, lifecycle.PostDecode, d.Type, v, original); err != nil {
			return hookError(&dc.state, errors.PhaseDecode, lifecycle.PostDecode, d, err)
		}
	}

	return nil
}

func (oc *objectCodec) readFields(dc *DecodeContext, vr bsonrw.ValueReader, inst *Instance) error {
	d := oc.desc
	discriminatorKey := dc.reg.Config().DiscriminatorKey

	dr, err := vr.ReadDocument()
	if err != nil {
		return dc.wrap(errors.PhaseDecode, err, d.Type)
	}

	for {
		key, evr, err := dr.ReadElement()
		if errors.Is(err, bsonrw.ErrEOD) {
			return nil
		}
		if err != nil {
			return dc.wrap(errors.PhaseDecode, err, d.Type)
		}

		if d.UsesDiscriminator() && key == discriminatorKey {
			if err := oc.checkDiscriminator(dc, evr); err != nil {
				return err
			}
			continue
		}

		fc, ok := oc.byKey[key]
		if !ok {
			if err := evr.Skip(); err != nil {
				return dc.wrap(errors.PhaseDecode, err, d.Type)
			}
			continue
		}

		if err := dc.enter(fc.Name); err != nil {
			return err
		}

		err = fc.codec.Decode(dc, evr, fc.Value(inst.value))
		if err != nil {
			err = dc.wrap(errors.PhaseDecode, err, fc.Type)
		}

		dc.leave()

		if err != nil {
			return err
		}

		inst.markAssigned(fc.FieldDescriptor)
	}
}

// fillAbsent sets the unassigned container fields that an absent key
// leaves empty rather than nil.
func (oc *objectCodec) fillAbsent(dc *DecodeContext, inst *Instance) {
	cfg := dc.reg.Config()

	for _, fc := range oc.fields {
		if inst.Assigned(fc.Name) || !descriptor.EmptyWhenAbsent(fc.FieldDescriptor, cfg) {
			continue
		}

		fv := fc.Value(inst.value)
		if !fv.IsNil() {
			continue
		}

		switch fv.Kind() {
		case reflect.Slice:
			fv.Set(reflect.MakeSlice(fv.Type(), 0, 0))
		case reflect.Map:
			fv.Set(reflect.MakeMap(fv.Type()))
		}
	}
}

// checkDiscriminator accepts the discriminator of the decoded type and
// rejects any other.
func (oc *objectCodec) checkDiscriminator(dc *DecodeContext, vr bsonrw.ValueReader) error {
	d := oc.desc

	if vr.Type() != bsontype.String {
		return dc.fail(errors.KindInvalidData, d.Type).
			Detail("discriminator is stored as %s, not as a string", vr.Type()).
			Build()
	}

	name, err := vr.ReadString()
	if err != nil {
		return err
	}

	if name == d.Discriminator {
		return nil
	}

	other, ok := dc.reg.index.Resolve(name)
	if !ok {
		err := errors.UnresolvedDiscriminator(dc.Path(), name)
		err.GoType = d.Type.String()
		return err
	}

	return dc.fail(errors.KindTypeMismatch, d.Type).
		Value(name).
		Detail("document was written by %s", other.Type).
		Build()
}

func hookError(s *state, phase errors.Phase, ev lifecycle.Event, d *descriptor.TypeDescriptor, err error) error {
	return errors.New(phase, errors.KindHook).
		Path(s.Path()...).
		GoType(d.Type.String()).
		Detail("%s hook failed", ev).
		Cause(err).
		Build()
}
