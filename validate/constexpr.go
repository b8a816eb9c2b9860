package validate

import (
	"github.com/tinywasm/tinywasm/leb128"
	"github.com/tinywasm/tinywasm/reader"
	"github.com/tinywasm/tinywasm/wasm"
	"github.com/tinywasm/tinywasm/wasmerr"
)

// GlobalResolver supplies the value of a global referenced by global.get
// inside a constant expression. During validation it only needs to resolve
// to the right Type (Validate calls it with placeholder zero values, since
// an import's actual value isn't known until instantiation); at
// instantiation the vm package supplies the real resolved values.
type GlobalResolver func(idx uint32) (Value, error)

// EvalConstExpr evaluates the restricted constant-expression grammar Wasm
// allows: global.get, i32/i64/f32/f64.const, ref.null, ref.func, and
// i32/i64.{add,sub,mul}, terminated by end. It is the sole interpreter for
// both global initializers and active data-segment/element offsets, used by
// both Validate (type-checking only) and the vm package's instantiation step
// (real evaluation). The restricted opcode set is interpreted directly
// against a tiny value stack rather than deferred to a later pass.
func EvalConstExpr(bytes []byte, span reader.Span, resolveGlobal GlobalResolver) (Value, error) {
	r := reader.New(bytes[span.Start:span.End()])
	var stack []Value

	for {
		op, err := r.ReadU8()
		if err != nil {
			return Value{}, err
		}
		switch op {
		case 0x0b: // end
			if len(stack) != 1 {
				return Value{}, wasmerr.NewValidationError(wasmerr.InvalidInitExpr)
			}
			return stack[0], nil

		case 0x41: // i32.const
			v, err := leb128.ReadI32(r)
			if err != nil {
				return Value{}, err
			}
			stack = append(stack, Value{Type: wasm.I32, Bits: uint64(uint32(v))})

		case 0x42: // i64.const
			v, err := leb128.ReadI64(r)
			if err != nil {
				return Value{}, err
			}
			stack = append(stack, Value{Type: wasm.I64, Bits: uint64(v)})

		case 0x43: // f32.const
			bits, err := r.ReadU32LE()
			if err != nil {
				return Value{}, err
			}
			stack = append(stack, Value{Type: wasm.F32, Bits: uint64(bits)})

		case 0x44: // f64.const
			bits, err := r.ReadU64LE()
			if err != nil {
				return Value{}, err
			}
			stack = append(stack, Value{Type: wasm.F64, Bits: bits})

		case 0x23: // global.get
			idx, err := leb128.ReadU32(r)
			if err != nil {
				return Value{}, err
			}
			v, err := resolveGlobal(idx)
			if err != nil {
				return Value{}, err
			}
			stack = append(stack, v)

		case 0xd0: // ref.null
			b, err := r.ReadU8()
			if err != nil {
				return Value{}, err
			}
			t := wasm.ValType(int8(b))
			if !t.IsRefType() {
				return Value{}, wasmerr.NewValidationError(wasmerr.InvalidRefType)
			}
			stack = append(stack, Value{Type: t, Bits: 0})

		case 0xd2: // ref.func
			idx, err := leb128.ReadU32(r)
			if err != nil {
				return Value{}, err
			}
			stack = append(stack, Value{Type: wasm.FuncRef, Bits: uint64(idx)})

		case 0x6a, 0x6b, 0x6c, 0x7c, 0x7d, 0x7e: // i32/i64.{add,sub,mul}
			if len(stack) < 2 {
				return Value{}, wasmerr.NewValidationError(wasmerr.StackMismatch)
			}
			b := stack[len(stack)-1]
			a := stack[len(stack)-2]
			stack = stack[:len(stack)-2]
			want := wasm.I32
			if op >= 0x7c {
				want = wasm.I64
			}
			if a.Type != want || b.Type != want {
				return Value{}, wasmerr.NewValidationError(wasmerr.StackMismatch)
			}
			var res uint64
			switch op {
			case 0x6a:
				res = uint64(uint32(a.Bits) + uint32(b.Bits))
			case 0x6b:
				res = uint64(uint32(a.Bits) - uint32(b.Bits))
			case 0x6c:
				res = uint64(uint32(a.Bits) * uint32(b.Bits))
			case 0x7c:
				res = a.Bits + b.Bits
			case 0x7d:
				res = a.Bits - b.Bits
			case 0x7e:
				res = a.Bits * b.Bits
			}
			stack = append(stack, Value{Type: want, Bits: res})

		default:
			return Value{}, wasmerr.NewValidationErrorf(wasmerr.InvalidInstr, int(op))
		}
	}
}
