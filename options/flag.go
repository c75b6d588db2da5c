package options

import "strings"

// Flag is one boolean switch of Config. Flags combine as a bit set so that
// every combination of switches can be enumerated.
type Flag int

const (
	StoreNulls                  Flag = 1 << iota // write null values instead of omitting the key
	StoreEmpties                                 // write empty slices, arrays and maps
	IgnoreFinals                                 // never write fields tagged final
	UseLowerCaseCollectionNames                  // lower-case default collection names
	MapSubPackagesWhenScanning                   // scanner descends into sub-packages

	FlagAll  Flag = (1 << iota) - 1 // all flags combined
	FlagNone Flag = 0               // no flags selected
)

var flagNames = []struct {
	flag Flag
	name string
}{
	{StoreNulls, "storeNulls"},
	{StoreEmpties, "storeEmpties"},
	{IgnoreFinals, "ignoreFinals"},
	{UseLowerCaseCollectionNames, "useLowerCaseCollectionNames"},
	{MapSubPackagesWhenScanning, "mapSubPackagesWhenScanning"},
}

// Has reports whether all bits of other are set in f.
func (f Flag) Has(other Flag) bool {
	return f&other == other
}

func (f Flag) String() string {
	if f == FlagNone {
		return "none"
	}

	var parts []string
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			parts = append(parts, fn.name)
		}
	}

	return strings.Join(parts, "|")
}

// Combinations returns every subset of FlagAll, FlagNone first.
func Combinations() []Flag {
	out := make([]Flag, 0, FlagAll+1)
	for f := FlagNone; f <= FlagAll; f++ {
		out = append(out, f)
	}

	return out
}
