// Package mapping reads declarative mapping files: per-type and per-field
// overrides of the metadata struct tags declare, plus an overlay of the
// mapper configuration. Files are YAML (.yaml, .yml) or TOML (.toml).
//
// # Schema Overview
//
//	version: "1"
//	config:
//	  storeEmpties: true
//	  fieldNaming: snake
//	types:
//	  - type: shop.Order            # "pkg.Type" or "import/path.Type"
//	    collection: orders
//	    discriminator: order
//	    alwaysDiscriminator: true
//	    fields:
//	      Customer:
//	        reference: true
//	        idOnly: true
//	      Title:
//	        name: title
//	        alsoLoad: [headline, caption]
//	    ignore: [Scratch]           # never stored
//
// The same file in TOML:
//
//	version = "1"
//	[config]
//	storeEmpties = true
//	[[types]]
//	type = "shop.Order"
//	collection = "orders"
//	ignore = ["Scratch"]
//	[types.fields.Customer]
//	reference = true
//
// In TOML, alsoLoad and ignore must be arrays; YAML also accepts a single
// string.
//
// # Precedence
//
// Values in the file win over struct tags; options the file leaves unset
// keep the tag value. The config overlay only sets options: a false or
// empty value in the file does not clear a value set in code.
//
// Validate checks a file against a type graph, either loaded statically
// by the analyze package or built from registered types through
// reflection, and reports unknown names with suggestions.
package mapping
