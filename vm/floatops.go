package vm

import (
	"math"

	"github.com/chewxy/math32"
)

// f32 arithmetic is delegated to chewxy/math32 rather than widened to
// float64 and narrowed back: a widen-compute-narrow round trip can differ
// from a native single-precision computation by up to 1ulp for
// transcendental ops like sqrt, which would make this interpreter diverge
// from a real Wasm engine on bit-exact comparisons. Min/Max/Nearest are
// hand-rolled because Wasm's signed-zero and ties-to-even rules are more
// specific than a generic library minimum/rounding function.

func f32Nearest(x float32) float32 {
	if math32.IsNaN(x) || math32.IsInf(x, 0) || x == 0 {
		return x
	}
	floor := math32.Floor(x)
	diff := x - floor
	switch {
	case diff < 0.5:
		return floor
	case diff > 0.5:
		return floor + 1
	default:
		if math32.Mod(floor, 2) == 0 {
			return floor
		}
		return floor + 1
	}
}

func f32Min(a, b float32) float32 {
	if math32.IsNaN(a) {
		return a
	}
	if math32.IsNaN(b) {
		return b
	}
	if a == 0 && b == 0 {
		if math32.Signbit(a) {
			return a
		}
		return b
	}
	if a < b {
		return a
	}
	return b
}

func f32Max(a, b float32) float32 {
	if math32.IsNaN(a) {
		return a
	}
	if math32.IsNaN(b) {
		return b
	}
	if a == 0 && b == 0 {
		if math32.Signbit(a) {
			return b
		}
		return a
	}
	if a > b {
		return a
	}
	return b
}

func f64Nearest(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) || x == 0 {
		return x
	}
	return math.RoundToEven(x)
}

func f64Min(a, b float64) float64 {
	if math.IsNaN(a) {
		return a
	}
	if math.IsNaN(b) {
		return b
	}
	if a == 0 && b == 0 {
		if math.Signbit(a) {
			return a
		}
		return b
	}
	if a < b {
		return a
	}
	return b
}

func f64Max(a, b float64) float64 {
	if math.IsNaN(a) {
		return a
	}
	if math.IsNaN(b) {
		return b
	}
	if a == 0 && b == 0 {
		if math.Signbit(a) {
			return b
		}
		return a
	}
	if a > b {
		return a
	}
	return b
}
