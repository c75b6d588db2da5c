package codec

import (
	"context"
	"reflect"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
)

// DriverRegistry returns a driver registry that encodes and decodes the
// given types through r. Every other type keeps the driver's default
// codecs, so mapped types can be passed to bson.MarshalWithRegistry or to
// driver collections.
func (r *Registry) DriverRegistry(types ...reflect.Type) *bsoncodec.Registry {
	reg := bson.NewRegistry()
	bridge := &driverBridge{reg: r}

	for _, t := range types {
		t = base(t)
		reg.RegisterTypeEncoder(t, bridge)
		reg.RegisterTypeDecoder(t, bridge)
	}

	return reg
}

type driverBridge struct {
	reg *Registry
}

func (b *driverBridge) EncodeValue(_ bsoncodec.EncodeContext, vw bsonrw.ValueWriter, v reflect.Value) error {
	c, err := b.reg.LookupType(v.Type())
	if err != nil {
		return err
	}

	return c.Encode(b.reg.NewEncodeContext(context.Background()), vw, v)
}

func (b *driverBridge) DecodeValue(_ bsoncodec.DecodeContext, vr bsonrw.ValueReader, v reflect.Value) error {
	if !v.CanSet() {
		return bsoncodec.ValueDecoderError{Name: "docmapper", Types: []reflect.Type{v.Type()}, Received: v}
	}

	c, err := b.reg.LookupType(v.Type())
	if err != nil {
		return err
	}

	return b.reg.DecodeWith(b.reg.NewDecodeContext(context.Background()), c, vr, v)
}

// FromDriver adapts a driver encoder and decoder into a Codec. Values
// they meet that need further codecs are looked up in the driver's
// default registry.
func FromDriver(enc bsoncodec.ValueEncoder, dec bsoncodec.ValueDecoder) Codec {
	return &driverCodec{enc: enc, dec: dec}
}

// DriverCodec returns the driver's default codec for t, for types the
// mapper has no family for (regular expressions, timestamps and the
// like).
func DriverCodec(t reflect.Type) (Codec, error) {
	enc, err := bson.DefaultRegistry.LookupEncoder(t)
	if err != nil {
		return nil, err
	}

	dec, err := bson.DefaultRegistry.LookupDecoder(t)
	if err != nil {
		return nil, err
	}

	return FromDriver(enc, dec), nil
}

type driverCodec struct {
	enc bsoncodec.ValueEncoder
	dec bsoncodec.ValueDecoder
}

func (c *driverCodec) Encode(_ *EncodeContext, vw bsonrw.ValueWriter, v reflect.Value) error {
	return c.enc.EncodeValue(bsoncodec.EncodeContext{Registry: bson.DefaultRegistry}, vw, v)
}

func (c *driverCodec) Decode(_ *DecodeContext, vr bsonrw.ValueReader, v reflect.Value) error {
	return c.dec.DecodeValue(bsoncodec.DecodeContext{Registry: bson.DefaultRegistry}, vr, v)
}
