package numeric

import (
	"math"
	"testing"
)

func TestCanTruncateF64ToI32Bounds(t *testing.T) {
	if !CanTruncate(F64, I32, float64(2147483647)) {
		t.Error("2147483647.0 should truncate to i32")
	}
	if CanTruncate(F64, I32, float64(2147483648)) {
		t.Error("2147483648.0 is one past i32 max and should not truncate")
	}
	if !CanTruncate(F64, I32, float64(-2147483648)) {
		t.Error("-2147483648.0 should truncate to i32 (exactly MinInt32)")
	}
	if CanTruncate(F64, I32, float64(-2147483649)) {
		t.Error("-2147483649.0 is one past i32 min and should not truncate")
	}
}

func TestFloatTruncateNaN(t *testing.T) {
	bits := math.Float64bits(math.NaN())
	_, trap := FloatTruncate(F64, I32, bits)
	if trap != NaNTrap {
		t.Errorf("expected NaNTrap, got %v", trap)
	}
}

func TestFloatTruncateOutOfRangeSaturates(t *testing.T) {
	bits := math.Float64bits(1e20)
	v, trap := FloatTruncate(F64, I32, bits)
	if trap != ConvertTrap {
		t.Errorf("expected ConvertTrap, got %v", trap)
	}
	if v != Max(I32) {
		t.Errorf("expected saturated value to be I32 max, got %d", v)
	}
}

func TestSaturatingTruncateNaNIsZero(t *testing.T) {
	bits := math.Float64bits(math.NaN())
	v := SaturatingTruncate(F64, I32, bits)
	if v != 0 {
		t.Errorf("NaN should saturate to 0, got %d", v)
	}
}

func TestSaturatingTruncateNegativeSaturatesToMin(t *testing.T) {
	bits := math.Float64bits(-1e20)
	v := SaturatingTruncate(F64, I64, bits)
	if v != Min(I64) {
		t.Errorf("expected saturated value to be I64 min, got %d", v)
	}
}

func TestFloatTruncateInRange(t *testing.T) {
	bits := math.Float64bits(42.9)
	v, trap := FloatTruncate(F64, I32, bits)
	if trap != NoTrap {
		t.Fatalf("expected no trap, got %v", trap)
	}
	if int32(uint32(v)) != 42 {
		t.Errorf("expected truncation toward zero to give 42, got %d", int32(uint32(v)))
	}
}
