package codec

// FamilyEnum is the codec family a Key resolves to.
type FamilyEnum int

const (
	FamilyUnknown FamilyEnum = iota
	FamilyExact
	FamilyReference
	FamilyPointer
	FamilyEnumeration
	FamilyPrimitive
	FamilyMap
	FamilyCollection
	FamilyPolymorphic
	FamilyDynamic
	FamilyObject

	// FamilyTotal is a constant that represents the total number of families defined
	FamilyTotal = int(iota)
)

func (f FamilyEnum) String() string {
	switch f {
	case FamilyExact:
		return "exact"
	case FamilyReference:
		return "reference"
	case FamilyPointer:
		return "pointer"
	case FamilyEnumeration:
		return "enum"
	case FamilyPrimitive:
		return "primitive"
	case FamilyMap:
		return "map"
	case FamilyCollection:
		return "collection"
	case FamilyPolymorphic:
		return "polymorphic"
	case FamilyDynamic:
		return "dynamic"
	case FamilyObject:
		return "object"
	default:
		return "unknown"
	}
}
