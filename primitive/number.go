package primitive

import (
	"errors"
	"math"
	"reflect"
)

var (
	// ErrOverflow reports a number outside the range of the destination.
	ErrOverflow = errors.New("number overflows destination")
	// ErrFraction reports a non-integral number read into an integer.
	ErrFraction = errors.New("number has a fractional part")
	// ErrNotNumber reports a destination that cannot hold numbers.
	ErrNotNumber = errors.New("destination is not a number")
)

// Number is a numeric value read from a document together with the kind it
// was stored as (KindInt32, KindInt64 or KindFloat64).
type Number struct {
	Kind  KindEnum
	Int   int64
	Float float64
}

// IntNumber returns a Number carrying an integer of the given stored kind.
func IntNumber(kind KindEnum, v int64) Number {
	return Number{Kind: kind, Int: v}
}

// FloatNumber returns a Number carrying a double.
func FloatNumber(v float64) Number {
	return Number{Kind: KindFloat64, Float: v}
}

// Assign stores n into dst, which must be settable and of an integer or
// float reflect kind (named types included). Conversions that are lossless
// for every value are applied directly; the others are checked value by
// value and fail with ErrOverflow or ErrFraction.
func (n Number) Assign(dst reflect.Value) error {
	to := FromReflectKind(dst.Kind())
	if !to.IsNumber() {
		return ErrNotNumber
	}

	lossless := Lossless(n.Kind, to)

	switch {
	case to.IsFloat():
		f := n.Float
		if !n.Kind.IsFloat() {
			f = float64(n.Int)
		}
		if !lossless && to == KindFloat32 && !fitsFloat32(f) {
			return ErrOverflow
		}
		dst.SetFloat(f)

	case to.IsSigned():
		i, err := n.integer()
		if err != nil {
			return err
		}
		if !lossless && dst.OverflowInt(i) {
			return ErrOverflow
		}
		dst.SetInt(i)

	default:
		i, err := n.integer()
		if err != nil {
			return err
		}
		if i < 0 {
			return ErrOverflow
		}
		if !lossless && dst.OverflowUint(uint64(i)) {
			return ErrOverflow
		}
		dst.SetUint(uint64(i))
	}

	return nil
}

func (n Number) integer() (int64, error) {
	if !n.Kind.IsFloat() {
		return n.Int, nil
	}

	if math.IsNaN(n.Float) || math.IsInf(n.Float, 0) {
		return 0, ErrOverflow
	}

	if n.Float != math.Trunc(n.Float) {
		return 0, ErrFraction
	}

	if n.Float < math.MinInt64 || n.Float >= math.MaxInt64 {
		return 0, ErrOverflow
	}

	return int64(n.Float), nil
}

func fitsFloat32(f float64) bool {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return true
	}

	return math.Abs(f) <= math.MaxFloat32
}
