package vm

import (
	"math"

	"github.com/tinywasm/tinywasm/validate"
	"github.com/tinywasm/tinywasm/wasm"
)

func asI32(v validate.Value) int32   { return int32(uint32(v.Bits)) }
func asU32(v validate.Value) uint32  { return uint32(v.Bits) }
func asI64(v validate.Value) int64   { return int64(v.Bits) }
func asU64(v validate.Value) uint64  { return v.Bits }
func asF32(v validate.Value) float32 { return math.Float32frombits(uint32(v.Bits)) }
func asF64(v validate.Value) float64 { return math.Float64frombits(v.Bits) }

func mkI32(x int32) validate.Value   { return validate.Value{Type: wasm.I32, Bits: uint64(uint32(x))} }
func mkU32(x uint32) validate.Value  { return validate.Value{Type: wasm.I32, Bits: uint64(x)} }
func mkI64(x int64) validate.Value   { return validate.Value{Type: wasm.I64, Bits: uint64(x)} }
func mkU64(x uint64) validate.Value  { return validate.Value{Type: wasm.I64, Bits: x} }
func mkF32(x float32) validate.Value {
	return validate.Value{Type: wasm.F32, Bits: uint64(math.Float32bits(x))}
}
func mkF64(x float64) validate.Value {
	return validate.Value{Type: wasm.F64, Bits: math.Float64bits(x)}
}

func mkBool(b bool) validate.Value {
	if b {
		return mkI32(1)
	}
	return mkI32(0)
}
