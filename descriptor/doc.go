// Package descriptor builds the immutable mapping metadata of Go struct
// types: which fields are stored, under which document keys, how each field
// is classified, and how the type is named in the store.
//
// Metadata is read from the `odm` struct tag and from an embedded marker:
//
//	type Circle struct {
//		descriptor.Entity `odm:"collection=shapes,discriminator=circle"`
//
//		ID     primitive.ObjectID `odm:",id"`
//		Radius float64
//		Owner  *User `odm:"owner,reference,idonly"`
//		Cache  []byte `odm:"-"`
//	}
//
// Field options: id, notsaved, final, reference, idonly, lazy,
// alsoload=a|b. A "-" name makes the field transient. Type options on the
// marker: collection=, discriminator=, alwaysdiscriminator, nodiscriminator.
//
// Descriptors are built once per type and cached; a built descriptor is
// never mutated and is safe for concurrent use.
package descriptor
