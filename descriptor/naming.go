package descriptor

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"docmapper/internal/match"
	"docmapper/options"
)

// StorageKey resolves the document key of a field. Precedence: an explicit
// name, then the reserved identity key, then the Go field name under the
// configured naming. The decoder's key lookup is built from this same
// function, so both directions always agree.
func StorageKey(goName string, opts FieldOptions, naming options.Naming) string {
	switch {
	case opts.Name != "":
		return opts.Name
	case opts.ID:
		return options.IDKey
	default:
		return ApplyNaming(goName, naming)
	}
}

// ApplyNaming renders a Go identifier under a naming strategy.
func ApplyNaming(name string, naming options.Naming) string {
	switch naming {
	case options.NamingIdentity:
		return name
	case options.NamingLower:
		return strings.ToLower(name)
	case options.NamingSnake:
		return strings.Join(match.TokenizeIdent(name), "_")
	default:
		tokens := match.Tokens(name)
		if len(tokens) == 0 {
			return name
		}

		tokens[0] = strings.ToLower(tokens[0])
		for i := 1; i < len(tokens); i++ {
			tokens[i] = upperFirst(tokens[i])
		}

		return strings.Join(tokens, "")
	}
}

// CollectionName is the explicit collection name if any, otherwise the
// type name, lower-cased when configured.
func CollectionName(typeName, explicit string, cfg options.Config) string {
	if explicit != "" {
		return explicit
	}

	if cfg.UseLowerCaseCollectionNames {
		return strings.ToLower(typeName)
	}

	return typeName
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}

	return string(unicode.ToUpper(r)) + s[size:]
}
