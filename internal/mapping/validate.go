package mapping

import (
	"fmt"
	"sort"
	"strings"

	"docmapper/errors"
	"docmapper/internal/analyze"
	"docmapper/internal/diagnostic"
	"docmapper/internal/match"
	"docmapper/options"
)

// Validate checks a mapping definition against the given type graph: the
// named types and fields must exist, and the options set on them must be
// consistent. It does not build descriptors; tag-level problems of the
// types themselves are reported by the descriptor builder or the scanner.
func Validate(mf *MappingFile, graph *analyze.TypeGraph) *diagnostic.Diagnostics {
	res := &diagnostic.Diagnostics{}
	if mf == nil {
		res.AddError(errors.KindNoCodec, "mapping file is nil", "", "")
		return res
	}

	if graph == nil {
		res.AddError(errors.KindNoCodec, "type graph is nil", "", "")
		return res
	}

	if mf.Version != CurrentVersion {
		res.AddError(errors.KindUnknownOption,
			fmt.Sprintf("unsupported mapping version %q", mf.Version), "", "version", CurrentVersion)
	}

	if mf.Config != nil {
		cfg, err := mf.MergedConfig(options.Default())
		if err == nil {
			err = cfg.Validate()
		}

		if err != nil {
			res.AddError(errors.KindIncompatibleField, err.Error(), "", "config")
		}
	}

	seenTypes := make(map[string]struct{})
	discriminators := make(map[string]string)
	known := typeNames(graph)

	for i := range mf.Types {
		tm := &mf.Types[i]

		if tm.Type == "" {
			res.AddError(errors.KindUnknownOption, fmt.Sprintf("types[%d] names no type", i), "", "")
			continue
		}

		if _, dup := seenTypes[tm.Type]; dup {
			res.AddError(errors.KindDuplicateKey, fmt.Sprintf("type %q is mapped twice", tm.Type), tm.Type, "")
			continue
		}
		seenTypes[tm.Type] = struct{}{}

		info := ResolveTypeID(tm.Type, graph)
		if info == nil || info.Kind != analyze.TypeKindStruct {
			addNotFound(res, fmt.Sprintf("type %q not found", tm.Type), tm.Type, "", tm.Type, known)
			continue
		}

		if !strings.Contains(tm.Type, ".") {
			res.AddError(errors.KindUnknownOption,
				fmt.Sprintf("type %q must be qualified by its package", tm.Type), tm.Type, "", info.ID.Short())
		}

		if tm.Discriminator != "" {
			if prev, taken := discriminators[tm.Discriminator]; taken {
				res.AddError(errors.KindDuplicateDiscriminator,
					fmt.Sprintf("discriminator %q already used by %s", tm.Discriminator, prev), tm.Type, "")
			} else {
				discriminators[tm.Discriminator] = tm.Type
			}
		}

		if isSet(tm.AlwaysDiscriminator) && isSet(tm.NoDiscriminator) {
			res.AddError(errors.KindIncompatibleField,
				"alwaysDiscriminator and noDiscriminator exclude each other", tm.Type, "")
		}

		validateFields(res, tm, info)
	}

	return res
}

func validateFields(res *diagnostic.Diagnostics, tm *TypeMapping, info *analyze.TypeInfo) {
	fieldNames := info.FieldNames()

	known := make(map[string]struct{}, len(fieldNames))
	for _, n := range fieldNames {
		known[n] = struct{}{}
	}

	ignored := make(map[string]struct{}, len(tm.Ignore))
	for _, name := range tm.Ignore {
		if _, ok := known[name]; !ok {
			addNotFound(res, fmt.Sprintf("ignored field %q not found", name), tm.Type, name, name, fieldNames)
			continue
		}
		ignored[name] = struct{}{}
	}

	names := make([]string, 0, len(tm.Fields))
	for name := range tm.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var ids []string

	for _, name := range names {
		fm := tm.Fields[name]

		if _, ok := known[name]; !ok {
			addNotFound(res, fmt.Sprintf("field %q not found", name), tm.Type, name, name, fieldNames)
			continue
		}

		if _, ok := ignored[name]; ok {
			res.AddWarning("ignored_field_mapped",
				"field is both ignored and mapped; it is not stored", tm.Type, name)
		}

		if isSet(fm.ID) {
			ids = append(ids, name)

			if isSet(fm.Transient) || isSet(fm.Reference) {
				res.AddError(errors.KindIncompatibleField,
					"identity field cannot be transient or a reference", tm.Type, name)
			}
		}

		if (isSet(fm.IDOnly) || isSet(fm.Lazy)) && isCleared(fm.Reference) {
			res.AddError(errors.KindIncompatibleField,
				"idOnly and lazy require the reference option", tm.Type, name)
		}

		if fm.Name != "" && (fm.Name == options.IDKey) != isSet(fm.ID) && fm.ID != nil {
			res.AddError(errors.KindIncompatibleField,
				fmt.Sprintf("storage key %q contradicts the id option", fm.Name), tm.Type, name)
		}

		if strings.HasPrefix(fm.Name, "$") || strings.Contains(fm.Name, ".") {
			res.AddError(errors.KindIncompatibleField,
				fmt.Sprintf("storage key %q must not start with '$' or contain '.'", fm.Name), tm.Type, name)
		}
	}

	if len(ids) > 1 {
		res.AddError(errors.KindDuplicateID,
			fmt.Sprintf("identity set on several fields: %s", strings.Join(ids, ", ")), tm.Type, ids[1])
	}
}

func addNotFound(res *diagnostic.Diagnostics, msg, typeName, field, name string, known []string) {
	var suggestions []string
	if s, ok := match.Suggest(name, known); ok {
		suggestions = append(suggestions, s)
	}

	res.AddError(errors.KindUnknownOption, msg, typeName, field, suggestions...)
}

func isSet(b *bool) bool {
	return b != nil && *b
}

// isCleared reports whether b is explicitly false. An absent reference
// option may still be declared by the field's tag.
func isCleared(b *bool) bool {
	return b != nil && !*b
}
