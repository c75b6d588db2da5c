package mapping

import (
	"strings"

	"docmapper/internal/analyze"
)

// ResolveTypeID resolves a type ID string like:
// - "shop.Order" (short)
// - "docmapper/examples/shop.Order" (full)
// - "Order" (name only, when unambiguous).
func ResolveTypeID(typeIDStr string, graph *analyze.TypeGraph) *analyze.TypeInfo {
	if graph == nil || typeIDStr == "" {
		return nil
	}

	if !strings.Contains(typeIDStr, ".") {
		var found *analyze.TypeInfo

		for id, t := range graph.Types {
			if id.Name != typeIDStr {
				continue
			}

			if found != nil {
				return nil
			}
			found = t
		}

		return found
	}

	lastDot := strings.LastIndex(typeIDStr, ".")

	pkgStr := typeIDStr[:lastDot]
	name := typeIDStr[lastDot+1:]
	if pkgStr == "" || name == "" {
		return nil
	}

	// 1) exact match (for fully qualified import path)
	if t := graph.GetType(analyze.TypeID{PkgPath: pkgStr, Name: name}); t != nil {
		return t
	}

	// 2) suffix match (for short forms like "shop.Order")
	for id, t := range graph.Types {
		if id.Name != name {
			continue
		}

		if id.PkgPath == pkgStr || strings.HasSuffix(id.PkgPath, "/"+pkgStr) {
			return t
		}
	}

	return nil
}

// typeNames lists the short names of the graph's structs for suggestions.
func typeNames(graph *analyze.TypeGraph) []string {
	structs := graph.Structs()

	names := make([]string, 0, len(structs))
	for _, t := range structs {
		names = append(names, t.ID.Short())
	}

	return names
}
