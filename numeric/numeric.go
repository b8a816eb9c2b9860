// Package numeric implements the float-to-integer truncation edge cases the
// interpreter's numeric instruction family needs: CanTruncate/FloatTruncate
// carry the exact IEEE-754 boundary constants for float-to-integer
// conversion, and SaturatingTruncate reuses them for the non-trapping
// trunc_sat family. The f32/f64 arithmetic helpers live in package vm.
package numeric

import "math"

// Type tags the six numeric kinds CanTruncate/FloatTruncate operate over:
// the two float sources and the four integer destinations (signed/unsigned
// 32/64-bit).
type Type int

const (
	I32 Type = iota
	I64
	U32
	U64
	F32
	F64
)

// Min returns the minimum representable value of an integer Type, bit-cast
// into uint64.
func Min(t Type) uint64 {
	switch t {
	case I32:
		lo := int32(math.MinInt32)
		return uint64(uint32(lo))
	case I64:
		lo := int64(math.MinInt64)
		return uint64(lo)
	case U32, U64:
		return 0
	}
	panic("numeric: Min of non-integer type")
}

// Max returns the maximum representable value of an integer Type, bit-cast
// into uint64.
func Max(t Type) uint64 {
	switch t {
	case I32:
		return uint64(uint32(math.MaxInt32))
	case I64:
		return uint64(uint64(math.MaxInt64))
	case U32:
		return uint64(math.MaxUint32)
	case U64:
		return math.MaxUint64
	}
	panic("numeric: Max of non-integer type")
}

// CanTruncate reports whether a float value of kind `from` truncates
// in-range to the integer kind `to`, using the exact per-width boundary
// constants (the f32 comparisons are done in float32 so the boundary
// matches the nearest representable f32, e.g. 2147483648.0 exactly and the
// adjacent representable value below -2147483648.0 being out of range).
func CanTruncate(from, to Type, value interface{}) bool {
	switch {
	case from == F32 && to == I32:
		v := value.(float32)
		return float32(math.MinInt32) <= v && v < float32(math.MaxInt32)+1
	case from == F64 && to == I32:
		v := value.(float64)
		return float64(math.MinInt32)-1 < v && v < float64(math.MaxInt32)+1
	case from == F32 && to == U32:
		v := value.(float32)
		return -1 < v && v < float32(math.MaxUint32)+1
	case from == F64 && to == U32:
		v := value.(float64)
		return -1 < v && v < float64(math.MaxUint32)+1
	case from == F32 && to == I64:
		v := value.(float32)
		return float32(math.MinInt64) <= v && v < float32(math.MaxInt64)+1
	case from == F64 && to == I64:
		v := value.(float64)
		return float64(math.MinInt64) <= v && v < float64(math.MaxInt64)+1
	case from == F32 && to == U64:
		v := value.(float32)
		return -1 < v && v < float32(math.MaxUint64)+1
	case from == F64 && to == U64:
		v := value.(float64)
		return -1 < v && v < float64(math.MaxUint64)+1
	}
	panic("numeric: invalid conversion types")
}

// TrapCode classifies why FloatTruncate could not produce a value. It is
// deliberately distinct from wasmerr.RuntimeKind: numeric stays decoupled
// from the interpreter's error taxonomy, and the vm package maps NaNTrap ->
// BadConversionToInteger, ConvertTrap -> UnrepresentableResult.
type TrapCode int

const (
	NoTrap TrapCode = iota
	NaNTrap
	ConvertTrap
)

// FloatTruncate truncates the float bit pattern floatBits (of kind `from`)
// toward zero into the integer kind `to`. On NaN it reports NaNTrap; on ±Inf
// or any value outside the representable range it reports ConvertTrap and
// additionally returns the saturated value (Min/Max/0 as appropriate) so
// callers implementing the *saturating* truncation opcodes can reuse this
// function and simply ignore the trap code.
func FloatTruncate(from, to Type, floatBits uint64) (uint64, TrapCode) {
	var signbit bool
	var canTrunc bool
	var value interface{}
	var isNaN bool

	switch from {
	case F32:
		f := math.Float32frombits(uint32(floatBits))
		isNaN = f != f
		signbit = math.Signbit(float64(f))
		value = f
		canTrunc = !isNaN && CanTruncate(from, to, f)
	case F64:
		f := math.Float64frombits(floatBits)
		isNaN = f != f
		signbit = math.Signbit(f)
		value = f
		canTrunc = !isNaN && CanTruncate(from, to, f)
	default:
		panic("numeric: FloatTruncate from must be a float type")
	}

	if isNaN {
		return 0, NaNTrap
	}
	if !canTrunc {
		if signbit {
			return Min(to), ConvertTrap
		}
		return Max(to), ConvertTrap
	}

	var r uint64
	switch v := value.(type) {
	case float32:
		switch to {
		case I32:
			r = uint64(uint32(int32(v)))
		case I64:
			r = uint64(int64(v))
		case U32:
			r = uint64(uint32(v))
		case U64:
			r = uint64(v)
		}
	case float64:
		switch to {
		case I32:
			r = uint64(uint32(int32(v)))
		case I64:
			r = uint64(int64(v))
		case U32:
			r = uint64(uint32(v))
		case U64:
			r = uint64(v)
		}
	}
	return r, NoTrap
}

// SaturatingTruncate implements the 0xFC-prefixed trunc_sat family: it never
// traps. NaN saturates to 0; out-of-range values saturate to the
// destination's Min or Max depending on sign.
func SaturatingTruncate(from, to Type, floatBits uint64) uint64 {
	v, _ := FloatTruncate(from, to, floatBits)
	return v
}
