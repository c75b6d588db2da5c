package common

import (
	"path"
	"strings"
)

// UnknownStr is printed for enum values without a name.
const UnknownStr = "unknown"

// PkgAlias returns the package alias (last element of path) for a given package path.
// Returns empty string if pkgPath is empty.
func PkgAlias(pkgPath string) string {
	if pkgPath == "" {
		return ""
	}

	return path.Base(pkgPath)
}

// Qualify returns name qualified by the alias of pkgPath, the form reflect
// prints for named types ("shop.Order"). Without a package the name is
// returned as is.
func Qualify(pkgPath, name string) string {
	if pkgPath == "" {
		return name
	}

	return PkgAlias(pkgPath) + "." + name
}

// SplitFuncName splits a runtime function name such as
// "docmapper/examples/shop.(*Order).Check" into the package alias "shop"
// and the remainder "(*Order).Check".
func SplitFuncName(full string) (alias, name string) {
	_, last := path.Split(full)
	alias, name, _ = strings.Cut(last, ".")

	return alias, name
}
