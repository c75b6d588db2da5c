// Package analyze loads Go packages and reports how their mapped structs
// would be stored, without running them.
//
// It uses golang.org/x/tools/go/packages with go/types to build a
// canonical in-memory model of structs and their fields, then applies the
// same tag rules the runtime descriptor builder applies. Types known only
// at runtime can be added to a graph through reflection, so that mapping
// files are validated against one model either way.
//
// Key types:
//   - TypeID: package import path + type name
//   - TypeInfo: describes kind (struct/basic/alias/pointer/slice/map/...)
//   - FieldInfo: describes field name, type, tags, and embedding
//   - Report: storage keys, collections and discriminators of mapped types
package analyze
