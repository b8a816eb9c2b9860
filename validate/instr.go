package validate

import (
	"github.com/tinywasm/tinywasm/leb128"
	"github.com/tinywasm/tinywasm/opcode"
	"github.com/tinywasm/tinywasm/reader"
	"github.com/tinywasm/tinywasm/wasm"
	"github.com/tinywasm/tinywasm/wasmerr"
)

// stack is the abstract operand stack checkFunction type-checks against: it
// tracks value types only, never values.
type stack struct {
	types []wasm.ValType
}

func (s *stack) push(t wasm.ValType) { s.types = append(s.types, t) }

func (s *stack) pop() (wasm.ValType, error) {
	if len(s.types) == 0 {
		return 0, wasmerr.NewValidationError(wasmerr.StackMismatch)
	}
	t := s.types[len(s.types)-1]
	s.types = s.types[:len(s.types)-1]
	return t, nil
}

func (s *stack) popExpect(want wasm.ValType) error {
	t, err := s.pop()
	if err != nil {
		return err
	}
	if t != want {
		return wasmerr.NewValidationError(wasmerr.StackMismatch)
	}
	return nil
}

// loadResultType and storeValueType record the value type a load produces /
// a store consumes, keyed by opcode.
var loadResultType = map[opcode.Opcode]wasm.ValType{
	opcode.I32Load: wasm.I32, opcode.I32Load8S: wasm.I32, opcode.I32Load8U: wasm.I32,
	opcode.I32Load16S: wasm.I32, opcode.I32Load16U: wasm.I32,
	opcode.I64Load: wasm.I64, opcode.I64Load8S: wasm.I64, opcode.I64Load8U: wasm.I64,
	opcode.I64Load16S: wasm.I64, opcode.I64Load16U: wasm.I64,
	opcode.I64Load32S: wasm.I64, opcode.I64Load32U: wasm.I64,
	opcode.F32Load: wasm.F32,
	opcode.F64Load: wasm.F64,
}

var storeValueType = map[opcode.Opcode]wasm.ValType{
	opcode.I32Store: wasm.I32, opcode.I32Store8: wasm.I32, opcode.I32Store16: wasm.I32,
	opcode.I64Store: wasm.I64, opcode.I64Store8: wasm.I64, opcode.I64Store16: wasm.I64, opcode.I64Store32: wasm.I64,
	opcode.F32Store: wasm.F32,
	opcode.F64Store: wasm.F64,
}

// sameTypeBinary is every "(X, X) -> X" arithmetic opcode: integer
// add/sub/mul/div/rem/bitwise/shift/rotate, float add/sub/mul/div/min/max/copysign.
var sameTypeBinary = map[opcode.Opcode]wasm.ValType{
	opcode.I32Add: wasm.I32, opcode.I32Sub: wasm.I32, opcode.I32Mul: wasm.I32,
	opcode.I32DivS: wasm.I32, opcode.I32DivU: wasm.I32, opcode.I32RemS: wasm.I32, opcode.I32RemU: wasm.I32,
	opcode.I32And: wasm.I32, opcode.I32Or: wasm.I32, opcode.I32Xor: wasm.I32,
	opcode.I32Shl: wasm.I32, opcode.I32ShrS: wasm.I32, opcode.I32ShrU: wasm.I32,
	opcode.I32Rotl: wasm.I32, opcode.I32Rotr: wasm.I32,

	opcode.I64Add: wasm.I64, opcode.I64Sub: wasm.I64, opcode.I64Mul: wasm.I64,
	opcode.I64DivS: wasm.I64, opcode.I64DivU: wasm.I64, opcode.I64RemS: wasm.I64, opcode.I64RemU: wasm.I64,
	opcode.I64And: wasm.I64, opcode.I64Or: wasm.I64, opcode.I64Xor: wasm.I64,
	opcode.I64Shl: wasm.I64, opcode.I64ShrS: wasm.I64, opcode.I64ShrU: wasm.I64,
	opcode.I64Rotl: wasm.I64, opcode.I64Rotr: wasm.I64,

	opcode.F32Add: wasm.F32, opcode.F32Sub: wasm.F32, opcode.F32Mul: wasm.F32, opcode.F32Div: wasm.F32,
	opcode.F32Min: wasm.F32, opcode.F32Max: wasm.F32, opcode.F32Copysign: wasm.F32,

	opcode.F64Add: wasm.F64, opcode.F64Sub: wasm.F64, opcode.F64Mul: wasm.F64, opcode.F64Div: wasm.F64,
	opcode.F64Min: wasm.F64, opcode.F64Max: wasm.F64, opcode.F64Copysign: wasm.F64,
}

// comparisons is every "(X, X) -> i32" opcode.
var comparisons = map[opcode.Opcode]wasm.ValType{
	opcode.I32Eq: wasm.I32, opcode.I32Ne: wasm.I32,
	opcode.I32LtS: wasm.I32, opcode.I32LtU: wasm.I32, opcode.I32GtS: wasm.I32, opcode.I32GtU: wasm.I32,
	opcode.I32LeS: wasm.I32, opcode.I32LeU: wasm.I32, opcode.I32GeS: wasm.I32, opcode.I32GeU: wasm.I32,

	opcode.I64Eq: wasm.I64, opcode.I64Ne: wasm.I64,
	opcode.I64LtS: wasm.I64, opcode.I64LtU: wasm.I64, opcode.I64GtS: wasm.I64, opcode.I64GtU: wasm.I64,
	opcode.I64LeS: wasm.I64, opcode.I64LeU: wasm.I64, opcode.I64GeS: wasm.I64, opcode.I64GeU: wasm.I64,

	opcode.F32Eq: wasm.F32, opcode.F32Ne: wasm.F32, opcode.F32Lt: wasm.F32, opcode.F32Gt: wasm.F32,
	opcode.F32Le: wasm.F32, opcode.F32Ge: wasm.F32,

	opcode.F64Eq: wasm.F64, opcode.F64Ne: wasm.F64, opcode.F64Lt: wasm.F64, opcode.F64Gt: wasm.F64,
	opcode.F64Le: wasm.F64, opcode.F64Ge: wasm.F64,
}

// eqz is the unary "X -> i32" test family.
var eqz = map[opcode.Opcode]wasm.ValType{
	opcode.I32Eqz: wasm.I32,
	opcode.I64Eqz: wasm.I64,
}

// sameTypeUnary is every "X -> X" opcode: clz/ctz/popcnt and the float unary
// family (abs/neg/ceil/floor/trunc/nearest/sqrt).
var sameTypeUnary = map[opcode.Opcode]wasm.ValType{
	opcode.I32Clz: wasm.I32, opcode.I32Ctz: wasm.I32, opcode.I32Popcnt: wasm.I32,
	opcode.I64Clz: wasm.I64, opcode.I64Ctz: wasm.I64, opcode.I64Popcnt: wasm.I64,

	opcode.F32Abs: wasm.F32, opcode.F32Neg: wasm.F32, opcode.F32Ceil: wasm.F32, opcode.F32Floor: wasm.F32,
	opcode.F32Trunc: wasm.F32, opcode.F32Nearest: wasm.F32, opcode.F32Sqrt: wasm.F32,

	opcode.F64Abs: wasm.F64, opcode.F64Neg: wasm.F64, opcode.F64Ceil: wasm.F64, opcode.F64Floor: wasm.F64,
	opcode.F64Trunc: wasm.F64, opcode.F64Nearest: wasm.F64, opcode.F64Sqrt: wasm.F64,
}

type conv struct{ in, out wasm.ValType }

// conversions is every explicit-width-change opcode, covering wrap, extend,
// the non-saturating truncations, the int-to-float conversions, demote/
// promote, and the bit-preserving reinterprets.
var conversions = map[opcode.Opcode]conv{
	opcode.I32WrapI64: {wasm.I64, wasm.I32},

	opcode.I32TruncF32S: {wasm.F32, wasm.I32}, opcode.I32TruncF32U: {wasm.F32, wasm.I32},
	opcode.I32TruncF64S: {wasm.F64, wasm.I32}, opcode.I32TruncF64U: {wasm.F64, wasm.I32},

	opcode.I64ExtendI32S: {wasm.I32, wasm.I64}, opcode.I64ExtendI32U: {wasm.I32, wasm.I64},
	opcode.I64TruncF32S: {wasm.F32, wasm.I64}, opcode.I64TruncF32U: {wasm.F32, wasm.I64},
	opcode.I64TruncF64S: {wasm.F64, wasm.I64}, opcode.I64TruncF64U: {wasm.F64, wasm.I64},

	opcode.F32ConvertI32S: {wasm.I32, wasm.F32}, opcode.F32ConvertI32U: {wasm.I32, wasm.F32},
	opcode.F32ConvertI64S: {wasm.I64, wasm.F32}, opcode.F32ConvertI64U: {wasm.I64, wasm.F32},
	opcode.F32DemoteF64: {wasm.F64, wasm.F32},

	opcode.F64ConvertI32S: {wasm.I32, wasm.F64}, opcode.F64ConvertI32U: {wasm.I32, wasm.F64},
	opcode.F64ConvertI64S: {wasm.I64, wasm.F64}, opcode.F64ConvertI64U: {wasm.I64, wasm.F64},
	opcode.F64PromoteF32: {wasm.F32, wasm.F64},

	opcode.I32ReinterpretF32: {wasm.F32, wasm.I32},
	opcode.I64ReinterpretF64: {wasm.F64, wasm.I64},
	opcode.F32ReinterpretI32: {wasm.I32, wasm.F32},
	opcode.F64ReinterpretI64: {wasm.I64, wasm.F64},
}

// miscSat maps the saturating-truncation secondary opcodes to their
// (source, destination) value types, same shape as conversions.
var miscSat = map[opcode.Misc]conv{
	opcode.I32TruncSatF32S: {wasm.F32, wasm.I32}, opcode.I32TruncSatF32U: {wasm.F32, wasm.I32},
	opcode.I32TruncSatF64S: {wasm.F64, wasm.I32}, opcode.I32TruncSatF64U: {wasm.F64, wasm.I32},
	opcode.I64TruncSatF32S: {wasm.F32, wasm.I64}, opcode.I64TruncSatF32U: {wasm.F32, wasm.I64},
	opcode.I64TruncSatF64S: {wasm.F64, wasm.I64}, opcode.I64TruncSatF64U: {wasm.F64, wasm.I64},
}

// flatLocals expands a function's run-length-encoded local declarations
// into one ValType per index, prefixed by the function's parameters: this is
// the same index space local.get/set/tee address at runtime, so the
// validator and the interpreter agree on it.
func flatLocals(fd *FuncDef) []wasm.ValType {
	locals := append([]wasm.ValType{}, fd.Type.Params...)
	for _, e := range fd.Locals {
		for i := uint32(0); i < e.Count; i++ {
			locals = append(locals, e.ValType)
		}
	}
	return locals
}

// checkFunction type-checks one locally defined function's body against the
// abstract operand stack, from its first instruction through the
// terminating `end`. The body must consume exactly the function's declared
// locals/globals/memory/table, and must leave exactly the function's
// declared result types on the stack when it ends.
func checkFunction(info *ValidationInfo, fd *FuncDef) error {
	locals := flatLocals(fd)
	r := reader.New(info.Bytes[fd.Body.Start:fd.Body.End()])
	var st stack

	resultsMatch := func() bool {
		if len(st.types) != len(fd.Type.Results) {
			return false
		}
		for i, t := range fd.Type.Results {
			if st.types[i] != t {
				return false
			}
		}
		return true
	}

	for {
		b, err := r.ReadU8()
		if err != nil {
			return err
		}
		op := opcode.Opcode(b)

		switch {
		case op == opcode.End:
			if !resultsMatch() {
				return wasmerr.NewValidationError(wasmerr.StackMismatch)
			}
			if r.Remaining() != 0 {
				return wasmerr.NewValidationErrorf(wasmerr.InvalidInstr, int(op))
			}
			return nil

		case op == opcode.Return:
			if !resultsMatch() {
				return wasmerr.NewValidationError(wasmerr.StackMismatch)
			}

		case op == opcode.Call:
			idx, err := leb128.ReadU32(r)
			if err != nil {
				return err
			}
			if int(idx) >= len(info.Funcs) {
				return wasmerr.NewValidationError(wasmerr.InvalidFuncIndex)
			}
			ft := info.Funcs[idx].Type
			for i := len(ft.Params) - 1; i >= 0; i-- {
				if err := st.popExpect(ft.Params[i]); err != nil {
					return err
				}
			}
			for _, t := range ft.Results {
				st.push(t)
			}

		case op == opcode.Drop:
			if _, err := st.pop(); err != nil {
				return err
			}

		case op == opcode.LocalGet, op == opcode.LocalSet, op == opcode.LocalTee:
			idx, err := leb128.ReadU32(r)
			if err != nil {
				return err
			}
			if int(idx) >= len(locals) {
				return wasmerr.NewValidationError(wasmerr.InvalidLocalIndex)
			}
			t := locals[idx]
			switch op {
			case opcode.LocalGet:
				st.push(t)
			case opcode.LocalSet:
				if err := st.popExpect(t); err != nil {
					return err
				}
			case opcode.LocalTee:
				if err := st.popExpect(t); err != nil {
					return err
				}
				st.push(t)
			}

		case op == opcode.GlobalGet, op == opcode.GlobalSet:
			idx, err := leb128.ReadU32(r)
			if err != nil {
				return err
			}
			if int(idx) >= len(info.Globals) {
				return wasmerr.NewValidationError(wasmerr.InvalidGlobalIndex)
			}
			g := info.Globals[idx]
			if op == opcode.GlobalGet {
				st.push(g.Type.ValType)
			} else {
				if !g.Type.Mutable {
					return wasmerr.NewValidationError(wasmerr.GlobalIsImmutable)
				}
				if err := st.popExpect(g.Type.ValType); err != nil {
					return err
				}
			}

		case op == opcode.MemorySize, op == opcode.MemoryGrow:
			if _, err := r.ReadU8(); err != nil { // memory index byte, reserved 0
				return err
			}
			if len(info.Mems) == 0 {
				return wasmerr.NewValidationError(wasmerr.InvalidMemIndex)
			}
			if op == opcode.MemoryGrow {
				if err := st.popExpect(wasm.I32); err != nil {
					return err
				}
			}
			st.push(wasm.I32)

		case op == opcode.I32Const:
			if _, err := leb128.ReadI32(r); err != nil {
				return err
			}
			st.push(wasm.I32)
		case op == opcode.I64Const:
			if _, err := leb128.ReadI64(r); err != nil {
				return err
			}
			st.push(wasm.I64)
		case op == opcode.F32Const:
			if _, err := r.ReadU32LE(); err != nil {
				return err
			}
			st.push(wasm.F32)
		case op == opcode.F64Const:
			if _, err := r.ReadU64LE(); err != nil {
				return err
			}
			st.push(wasm.F64)

		case opcode.IsLoad(op):
			if err := readMemArg(r); err != nil {
				return err
			}
			if len(info.Mems) == 0 {
				return wasmerr.NewValidationError(wasmerr.InvalidMemIndex)
			}
			if err := st.popExpect(wasm.I32); err != nil {
				return err
			}
			st.push(loadResultType[op])

		case opcode.IsStore(op):
			if err := readMemArg(r); err != nil {
				return err
			}
			if len(info.Mems) == 0 {
				return wasmerr.NewValidationError(wasmerr.InvalidMemIndex)
			}
			if err := st.popExpect(storeValueType[op]); err != nil {
				return err
			}
			if err := st.popExpect(wasm.I32); err != nil {
				return err
			}

		case op == opcode.MiscPrefix:
			if err := checkMisc(info, r, &st); err != nil {
				return err
			}

		default:
			if t, ok := eqz[op]; ok {
				if err := st.popExpect(t); err != nil {
					return err
				}
				st.push(wasm.I32)
				break
			}
			if t, ok := sameTypeUnary[op]; ok {
				if err := st.popExpect(t); err != nil {
					return err
				}
				st.push(t)
				break
			}
			if t, ok := sameTypeBinary[op]; ok {
				if err := st.popExpect(t); err != nil {
					return err
				}
				if err := st.popExpect(t); err != nil {
					return err
				}
				st.push(t)
				break
			}
			if t, ok := comparisons[op]; ok {
				if err := st.popExpect(t); err != nil {
					return err
				}
				if err := st.popExpect(t); err != nil {
					return err
				}
				st.push(wasm.I32)
				break
			}
			if c, ok := conversions[op]; ok {
				if err := st.popExpect(c.in); err != nil {
					return err
				}
				st.push(c.out)
				break
			}
			return wasmerr.NewValidationErrorf(wasmerr.InvalidInstr, int(op))
		}
	}
}

func readMemArg(r *reader.Reader) error {
	if _, err := leb128.ReadU32(r); err != nil { // align
		return err
	}
	_, err := leb128.ReadU32(r) // offset
	return err
}

// checkMisc type-checks the 0xFC-prefixed secondary opcode space: the
// saturating truncations and the bulk-memory family.
func checkMisc(info *ValidationInfo, r *reader.Reader, st *stack) error {
	idx, err := leb128.ReadU32(r)
	if err != nil {
		return err
	}
	misc := opcode.Misc(idx)

	if c, ok := miscSat[misc]; ok {
		if err := st.popExpect(c.in); err != nil {
			return err
		}
		st.push(c.out)
		return nil
	}

	switch misc {
	case opcode.MemoryInit:
		dataIdx, err := leb128.ReadU32(r)
		if err != nil {
			return err
		}
		if int(dataIdx) >= len(info.Datas) {
			return wasmerr.NewValidationError(wasmerr.InvalidDataIndex)
		}
		if _, err := r.ReadU8(); err != nil { // memory index byte, reserved 0
			return err
		}
		if len(info.Mems) == 0 {
			return wasmerr.NewValidationError(wasmerr.InvalidMemIndex)
		}
		return popI32x3(st)

	case opcode.DataDrop:
		dataIdx, err := leb128.ReadU32(r)
		if err != nil {
			return err
		}
		if int(dataIdx) >= len(info.Datas) {
			return wasmerr.NewValidationError(wasmerr.InvalidDataIndex)
		}
		return nil

	case opcode.MemoryCopy:
		if _, err := r.ReadU8(); err != nil { // dst memory index byte
			return err
		}
		if _, err := r.ReadU8(); err != nil { // src memory index byte
			return err
		}
		if len(info.Mems) == 0 {
			return wasmerr.NewValidationError(wasmerr.InvalidMemIndex)
		}
		return popI32x3(st)

	case opcode.MemoryFill:
		if _, err := r.ReadU8(); err != nil { // memory index byte
			return err
		}
		if len(info.Mems) == 0 {
			return wasmerr.NewValidationError(wasmerr.InvalidMemIndex)
		}
		return popI32x3(st)
	}
	return wasmerr.NewValidationErrorf(wasmerr.InvalidInstr, int(idx))
}

func popI32x3(st *stack) error {
	for i := 0; i < 3; i++ {
		if err := st.popExpect(wasm.I32); err != nil {
			return err
		}
	}
	return nil
}
