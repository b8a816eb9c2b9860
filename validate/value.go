package validate

import "github.com/tinywasm/tinywasm/wasm"

// Value is a typed operand: a value type tag plus its bit pattern. Numeric
// values carry their bits verbatim (an f32 in the low 32 bits, zero-extended);
// reference values carry a function index (FuncRef) or zero for null.
//
// This is the one representation shared by the constant-expression evaluator
// and the interpreter's operand stack, so a global's initializer and a
// running function's locals are the same shape end to end.
type Value struct {
	Type wasm.ValType
	Bits uint64
}

// ZeroValue returns the default value the Wasm spec assigns a local or
// global of type t before it is ever written: numeric zero, null reference.
func ZeroValue(t wasm.ValType) Value {
	return Value{Type: t, Bits: 0}
}
