// Package codec turns Go values into BSON documents and back.
//
// A Registry hands out one Codec per Key (a Go type plus the reference
// mode it is stored with). Codecs are built lazily on first use from the
// type's descriptor and memoized forever; self-referential types resolve
// through forward placeholders so that building the codec of T while
// building T terminates.
//
// Codec families, in lookup priority order:
//
//   - hand-registered codecs for exact types (time.Time, ObjectID,
//     Decimal128, uuid.UUID, []byte, raw documents and user codecs)
//   - references to other entities (id-only or {$ref, $id})
//   - pointers
//   - enums (named integer, string and boolean types)
//   - plain scalars by kind
//   - maps with string or integer keys
//   - slices and arrays
//   - interfaces, resolved through the discriminator index
//   - the empty interface, decoded by the document's own type tags
//   - structs, through the object codec
//
// Encoding and decoding of one value is single-threaded; the registry and
// the discriminator index are safe for concurrent use.
package codec
