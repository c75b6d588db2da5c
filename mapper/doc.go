// Package mapper is the entry point of docmapper. A Mapper owns a codec
// registry configured from options.Config, an optional mapping file and
// lifecycle listeners, and maps struct types onto BSON documents:
//
//	m, err := mapper.New(mapper.WithStore(store.NewMemory()))
//	if err != nil {
//		return err
//	}
//	if err := m.Map(shop.Types()...); err != nil {
//		return err
//	}
//	id, err := m.Save(ctx, &shop.Customer{Email: "ann@example.com"})
//
// With a store configured, entities can be saved, loaded and deleted by
// identity, and references between entities are fetched on decode unless
// the field is lazy. Without a store, references decode to stubs holding
// only the identity.
//
// A mapping file (YAML or TOML) renames collections and fields, changes
// reference modes and ignores fields without touching the Go types; see
// WithMappingFile and Check.
package mapper
