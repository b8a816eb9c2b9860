package vm

import (
	"math"
	"math/bits"

	"github.com/chewxy/math32"

	"github.com/tinywasm/tinywasm/numeric"
	"github.com/tinywasm/tinywasm/opcode"
	"github.com/tinywasm/tinywasm/validate"
	"github.com/tinywasm/tinywasm/wasmerr"
)

// execArith handles every numeric instruction that isn't a const, a
// load/store, or behind the 0xFC prefix: comparisons, unary/binary integer
// and float ops, and the conversion/reinterpret family. One big switch
// mirrors the table-driven type checks in validate/instr.go but operates on
// actual values instead of static types.
func execArith(op opcode.Opcode, st *Stack) error {
	switch op {
	case opcode.I32Eqz:
		v, err := st.pop()
		if err != nil {
			return err
		}
		st.push(mkBool(asI32(v) == 0))
	case opcode.I64Eqz:
		v, err := st.pop()
		if err != nil {
			return err
		}
		st.push(mkBool(asI64(v) == 0))

	case opcode.I32Eq, opcode.I32Ne, opcode.I32LtS, opcode.I32LtU, opcode.I32GtS, opcode.I32GtU,
		opcode.I32LeS, opcode.I32LeU, opcode.I32GeS, opcode.I32GeU:
		return cmpI32(st, op)
	case opcode.I64Eq, opcode.I64Ne, opcode.I64LtS, opcode.I64LtU, opcode.I64GtS, opcode.I64GtU,
		opcode.I64LeS, opcode.I64LeU, opcode.I64GeS, opcode.I64GeU:
		return cmpI64(st, op)
	case opcode.F32Eq, opcode.F32Ne, opcode.F32Lt, opcode.F32Gt, opcode.F32Le, opcode.F32Ge:
		return cmpF32(st, op)
	case opcode.F64Eq, opcode.F64Ne, opcode.F64Lt, opcode.F64Gt, opcode.F64Le, opcode.F64Ge:
		return cmpF64(st, op)

	case opcode.I32Clz, opcode.I32Ctz, opcode.I32Popcnt:
		v, err := st.pop()
		if err != nil {
			return err
		}
		u := asU32(v)
		switch op {
		case opcode.I32Clz:
			st.push(mkU32(uint32(bits.LeadingZeros32(u))))
		case opcode.I32Ctz:
			st.push(mkU32(uint32(bits.TrailingZeros32(u))))
		case opcode.I32Popcnt:
			st.push(mkU32(uint32(bits.OnesCount32(u))))
		}

	case opcode.I64Clz, opcode.I64Ctz, opcode.I64Popcnt:
		v, err := st.pop()
		if err != nil {
			return err
		}
		u := asU64(v)
		switch op {
		case opcode.I64Clz:
			st.push(mkU64(uint64(bits.LeadingZeros64(u))))
		case opcode.I64Ctz:
			st.push(mkU64(uint64(bits.TrailingZeros64(u))))
		case opcode.I64Popcnt:
			st.push(mkU64(uint64(bits.OnesCount64(u))))
		}

	case opcode.I32Add, opcode.I32Sub, opcode.I32Mul, opcode.I32DivS, opcode.I32DivU,
		opcode.I32RemS, opcode.I32RemU, opcode.I32And, opcode.I32Or, opcode.I32Xor,
		opcode.I32Shl, opcode.I32ShrS, opcode.I32ShrU, opcode.I32Rotl, opcode.I32Rotr:
		return binI32(st, op)
	case opcode.I64Add, opcode.I64Sub, opcode.I64Mul, opcode.I64DivS, opcode.I64DivU,
		opcode.I64RemS, opcode.I64RemU, opcode.I64And, opcode.I64Or, opcode.I64Xor,
		opcode.I64Shl, opcode.I64ShrS, opcode.I64ShrU, opcode.I64Rotl, opcode.I64Rotr:
		return binI64(st, op)

	case opcode.F32Abs, opcode.F32Neg, opcode.F32Ceil, opcode.F32Floor, opcode.F32Trunc,
		opcode.F32Nearest, opcode.F32Sqrt:
		return unaryF32(st, op)
	case opcode.F32Add, opcode.F32Sub, opcode.F32Mul, opcode.F32Div, opcode.F32Min,
		opcode.F32Max, opcode.F32Copysign:
		return binF32(st, op)

	case opcode.F64Abs, opcode.F64Neg, opcode.F64Ceil, opcode.F64Floor, opcode.F64Trunc,
		opcode.F64Nearest, opcode.F64Sqrt:
		return unaryF64(st, op)
	case opcode.F64Add, opcode.F64Sub, opcode.F64Mul, opcode.F64Div, opcode.F64Min,
		opcode.F64Max, opcode.F64Copysign:
		return binF64(st, op)

	case opcode.I32WrapI64:
		v, err := st.pop()
		if err != nil {
			return err
		}
		st.push(mkI32(int32(uint32(asU64(v)))))

	case opcode.I64ExtendI32S:
		v, err := st.pop()
		if err != nil {
			return err
		}
		st.push(mkI64(int64(asI32(v))))
	case opcode.I64ExtendI32U:
		v, err := st.pop()
		if err != nil {
			return err
		}
		st.push(mkU64(uint64(asU32(v))))

	case opcode.F32DemoteF64:
		v, err := st.pop()
		if err != nil {
			return err
		}
		st.push(mkF32(float32(asF64(v))))
	case opcode.F64PromoteF32:
		v, err := st.pop()
		if err != nil {
			return err
		}
		st.push(mkF64(float64(asF32(v))))

	case opcode.F32ConvertI32S:
		v, err := st.pop()
		if err != nil {
			return err
		}
		st.push(mkF32(float32(asI32(v))))
	case opcode.F32ConvertI32U:
		v, err := st.pop()
		if err != nil {
			return err
		}
		st.push(mkF32(float32(asU32(v))))
	case opcode.F32ConvertI64S:
		v, err := st.pop()
		if err != nil {
			return err
		}
		st.push(mkF32(float32(asI64(v))))
	case opcode.F32ConvertI64U:
		v, err := st.pop()
		if err != nil {
			return err
		}
		st.push(mkF32(float32(asU64(v))))

	case opcode.F64ConvertI32S:
		v, err := st.pop()
		if err != nil {
			return err
		}
		st.push(mkF64(float64(asI32(v))))
	case opcode.F64ConvertI32U:
		v, err := st.pop()
		if err != nil {
			return err
		}
		st.push(mkF64(float64(asU32(v))))
	case opcode.F64ConvertI64S:
		v, err := st.pop()
		if err != nil {
			return err
		}
		st.push(mkF64(float64(asI64(v))))
	case opcode.F64ConvertI64U:
		v, err := st.pop()
		if err != nil {
			return err
		}
		st.push(mkF64(float64(asU64(v))))

	case opcode.I32ReinterpretF32:
		v, err := st.pop()
		if err != nil {
			return err
		}
		st.push(mkU32(uint32(v.Bits)))
	case opcode.I64ReinterpretF64:
		v, err := st.pop()
		if err != nil {
			return err
		}
		st.push(mkU64(v.Bits))
	case opcode.F32ReinterpretI32:
		v, err := st.pop()
		if err != nil {
			return err
		}
		st.push(mkF32(math32.Float32frombits(asU32(v))))
	case opcode.F64ReinterpretI64:
		v, err := st.pop()
		if err != nil {
			return err
		}
		st.push(mkF64(asF64(v)))

	case opcode.I32TruncF32S, opcode.I32TruncF32U, opcode.I32TruncF64S, opcode.I32TruncF64U,
		opcode.I64TruncF32S, opcode.I64TruncF32U, opcode.I64TruncF64S, opcode.I64TruncF64U:
		return truncOp(st, op)

	default:
		return wasmerr.NewRuntimeError(wasmerr.InternalInvariant)
	}
	return nil
}

func cmpI32(st *Stack, op opcode.Opcode) error {
	b, err := st.pop()
	if err != nil {
		return err
	}
	a, err := st.pop()
	if err != nil {
		return err
	}
	ai, bi, au, bu := asI32(a), asI32(b), asU32(a), asU32(b)
	switch op {
	case opcode.I32Eq:
		st.push(mkBool(ai == bi))
	case opcode.I32Ne:
		st.push(mkBool(ai != bi))
	case opcode.I32LtS:
		st.push(mkBool(ai < bi))
	case opcode.I32LtU:
		st.push(mkBool(au < bu))
	case opcode.I32GtS:
		st.push(mkBool(ai > bi))
	case opcode.I32GtU:
		st.push(mkBool(au > bu))
	case opcode.I32LeS:
		st.push(mkBool(ai <= bi))
	case opcode.I32LeU:
		st.push(mkBool(au <= bu))
	case opcode.I32GeS:
		st.push(mkBool(ai >= bi))
	case opcode.I32GeU:
		st.push(mkBool(au >= bu))
	}
	return nil
}

func cmpI64(st *Stack, op opcode.Opcode) error {
	b, err := st.pop()
	if err != nil {
		return err
	}
	a, err := st.pop()
	if err != nil {
		return err
	}
	ai, bi, au, bu := asI64(a), asI64(b), asU64(a), asU64(b)
	switch op {
	case opcode.I64Eq:
		st.push(mkBool(ai == bi))
	case opcode.I64Ne:
		st.push(mkBool(ai != bi))
	case opcode.I64LtS:
		st.push(mkBool(ai < bi))
	case opcode.I64LtU:
		st.push(mkBool(au < bu))
	case opcode.I64GtS:
		st.push(mkBool(ai > bi))
	case opcode.I64GtU:
		st.push(mkBool(au > bu))
	case opcode.I64LeS:
		st.push(mkBool(ai <= bi))
	case opcode.I64LeU:
		st.push(mkBool(au <= bu))
	case opcode.I64GeS:
		st.push(mkBool(ai >= bi))
	case opcode.I64GeU:
		st.push(mkBool(au >= bu))
	}
	return nil
}

func cmpF32(st *Stack, op opcode.Opcode) error {
	b, err := st.pop()
	if err != nil {
		return err
	}
	a, err := st.pop()
	if err != nil {
		return err
	}
	x, y := asF32(a), asF32(b)
	switch op {
	case opcode.F32Eq:
		st.push(mkBool(x == y))
	case opcode.F32Ne:
		st.push(mkBool(x != y))
	case opcode.F32Lt:
		st.push(mkBool(x < y))
	case opcode.F32Gt:
		st.push(mkBool(x > y))
	case opcode.F32Le:
		st.push(mkBool(x <= y))
	case opcode.F32Ge:
		st.push(mkBool(x >= y))
	}
	return nil
}

func cmpF64(st *Stack, op opcode.Opcode) error {
	b, err := st.pop()
	if err != nil {
		return err
	}
	a, err := st.pop()
	if err != nil {
		return err
	}
	x, y := asF64(a), asF64(b)
	switch op {
	case opcode.F64Eq:
		st.push(mkBool(x == y))
	case opcode.F64Ne:
		st.push(mkBool(x != y))
	case opcode.F64Lt:
		st.push(mkBool(x < y))
	case opcode.F64Gt:
		st.push(mkBool(x > y))
	case opcode.F64Le:
		st.push(mkBool(x <= y))
	case opcode.F64Ge:
		st.push(mkBool(x >= y))
	}
	return nil
}

// binI32 implements the wrapping/trapping arithmetic, bitwise and shift
// family over i32. Division and remainder trap on divide-by-zero, and
// i32.div_s additionally traps on MinInt32 / -1, the one case where the
// mathematical result doesn't fit back in 32 bits.
func binI32(st *Stack, op opcode.Opcode) error {
	b, err := st.pop()
	if err != nil {
		return err
	}
	a, err := st.pop()
	if err != nil {
		return err
	}
	ai, bi, au, bu := asI32(a), asI32(b), asU32(a), asU32(b)
	switch op {
	case opcode.I32Add:
		st.push(mkI32(ai + bi))
	case opcode.I32Sub:
		st.push(mkI32(ai - bi))
	case opcode.I32Mul:
		st.push(mkI32(ai * bi))
	case opcode.I32DivS:
		if bi == 0 {
			return wasmerr.NewRuntimeError(wasmerr.DivideBy0)
		}
		if ai == math.MinInt32 && bi == -1 {
			return wasmerr.NewRuntimeError(wasmerr.UnrepresentableResult)
		}
		st.push(mkI32(ai / bi))
	case opcode.I32DivU:
		if bu == 0 {
			return wasmerr.NewRuntimeError(wasmerr.DivideBy0)
		}
		st.push(mkU32(au / bu))
	case opcode.I32RemS:
		if bi == 0 {
			return wasmerr.NewRuntimeError(wasmerr.DivideBy0)
		}
		if ai == math.MinInt32 && bi == -1 {
			st.push(mkI32(0))
			return nil
		}
		st.push(mkI32(ai % bi))
	case opcode.I32RemU:
		if bu == 0 {
			return wasmerr.NewRuntimeError(wasmerr.DivideBy0)
		}
		st.push(mkU32(au % bu))
	case opcode.I32And:
		st.push(mkU32(au & bu))
	case opcode.I32Or:
		st.push(mkU32(au | bu))
	case opcode.I32Xor:
		st.push(mkU32(au ^ bu))
	case opcode.I32Shl:
		st.push(mkU32(au << (bu & 31)))
	case opcode.I32ShrS:
		st.push(mkI32(ai >> (bu & 31)))
	case opcode.I32ShrU:
		st.push(mkU32(au >> (bu & 31)))
	case opcode.I32Rotl:
		st.push(mkU32(bits.RotateLeft32(au, int(bu&31))))
	case opcode.I32Rotr:
		st.push(mkU32(bits.RotateLeft32(au, -int(bu&31))))
	}
	return nil
}

func binI64(st *Stack, op opcode.Opcode) error {
	b, err := st.pop()
	if err != nil {
		return err
	}
	a, err := st.pop()
	if err != nil {
		return err
	}
	ai, bi, au, bu := asI64(a), asI64(b), asU64(a), asU64(b)
	switch op {
	case opcode.I64Add:
		st.push(mkI64(ai + bi))
	case opcode.I64Sub:
		st.push(mkI64(ai - bi))
	case opcode.I64Mul:
		st.push(mkI64(ai * bi))
	case opcode.I64DivS:
		if bi == 0 {
			return wasmerr.NewRuntimeError(wasmerr.DivideBy0)
		}
		if ai == math.MinInt64 && bi == -1 {
			return wasmerr.NewRuntimeError(wasmerr.UnrepresentableResult)
		}
		st.push(mkI64(ai / bi))
	case opcode.I64DivU:
		if bu == 0 {
			return wasmerr.NewRuntimeError(wasmerr.DivideBy0)
		}
		st.push(mkU64(au / bu))
	case opcode.I64RemS:
		if bi == 0 {
			return wasmerr.NewRuntimeError(wasmerr.DivideBy0)
		}
		if ai == math.MinInt64 && bi == -1 {
			st.push(mkI64(0))
			return nil
		}
		st.push(mkI64(ai % bi))
	case opcode.I64RemU:
		if bu == 0 {
			return wasmerr.NewRuntimeError(wasmerr.DivideBy0)
		}
		st.push(mkU64(au % bu))
	case opcode.I64And:
		st.push(mkU64(au & bu))
	case opcode.I64Or:
		st.push(mkU64(au | bu))
	case opcode.I64Xor:
		st.push(mkU64(au ^ bu))
	case opcode.I64Shl:
		st.push(mkU64(au << (bu & 63)))
	case opcode.I64ShrS:
		st.push(mkI64(ai >> (bu & 63)))
	case opcode.I64ShrU:
		st.push(mkU64(au >> (bu & 63)))
	case opcode.I64Rotl:
		st.push(mkU64(bits.RotateLeft64(au, int(bu&63))))
	case opcode.I64Rotr:
		st.push(mkU64(bits.RotateLeft64(au, -int(bu&63))))
	}
	return nil
}

func unaryF32(st *Stack, op opcode.Opcode) error {
	v, err := st.pop()
	if err != nil {
		return err
	}
	x := asF32(v)
	switch op {
	case opcode.F32Abs:
		st.push(mkF32(math32.Abs(x)))
	case opcode.F32Neg:
		st.push(mkF32(-x))
	case opcode.F32Ceil:
		st.push(mkF32(math32.Ceil(x)))
	case opcode.F32Floor:
		st.push(mkF32(math32.Floor(x)))
	case opcode.F32Trunc:
		st.push(mkF32(math32.Trunc(x)))
	case opcode.F32Nearest:
		st.push(mkF32(f32Nearest(x)))
	case opcode.F32Sqrt:
		st.push(mkF32(math32.Sqrt(x)))
	}
	return nil
}

func binF32(st *Stack, op opcode.Opcode) error {
	b, err := st.pop()
	if err != nil {
		return err
	}
	a, err := st.pop()
	if err != nil {
		return err
	}
	x, y := asF32(a), asF32(b)
	switch op {
	case opcode.F32Add:
		st.push(mkF32(x + y))
	case opcode.F32Sub:
		st.push(mkF32(x - y))
	case opcode.F32Mul:
		st.push(mkF32(x * y))
	case opcode.F32Div:
		st.push(mkF32(x / y))
	case opcode.F32Min:
		st.push(mkF32(f32Min(x, y)))
	case opcode.F32Max:
		st.push(mkF32(f32Max(x, y)))
	case opcode.F32Copysign:
		st.push(mkF32(math32.Copysign(x, y)))
	}
	return nil
}

func unaryF64(st *Stack, op opcode.Opcode) error {
	v, err := st.pop()
	if err != nil {
		return err
	}
	x := asF64(v)
	switch op {
	case opcode.F64Abs:
		st.push(mkF64(math.Abs(x)))
	case opcode.F64Neg:
		st.push(mkF64(-x))
	case opcode.F64Ceil:
		st.push(mkF64(math.Ceil(x)))
	case opcode.F64Floor:
		st.push(mkF64(math.Floor(x)))
	case opcode.F64Trunc:
		st.push(mkF64(math.Trunc(x)))
	case opcode.F64Nearest:
		st.push(mkF64(f64Nearest(x)))
	case opcode.F64Sqrt:
		st.push(mkF64(math.Sqrt(x)))
	}
	return nil
}

func binF64(st *Stack, op opcode.Opcode) error {
	b, err := st.pop()
	if err != nil {
		return err
	}
	a, err := st.pop()
	if err != nil {
		return err
	}
	x, y := asF64(a), asF64(b)
	switch op {
	case opcode.F64Add:
		st.push(mkF64(x + y))
	case opcode.F64Sub:
		st.push(mkF64(x - y))
	case opcode.F64Mul:
		st.push(mkF64(x * y))
	case opcode.F64Div:
		st.push(mkF64(x / y))
	case opcode.F64Min:
		st.push(mkF64(f64Min(x, y)))
	case opcode.F64Max:
		st.push(mkF64(f64Max(x, y)))
	case opcode.F64Copysign:
		st.push(mkF64(math.Copysign(x, y)))
	}
	return nil
}

// truncOp implements the non-saturating i32/i64.trunc_f32/f64 family: a NaN
// or out-of-range operand traps rather than producing a value, unlike the
// 0xFC trunc_sat variants handled in misc.go.
func truncOp(st *Stack, op opcode.Opcode) error {
	v, err := st.pop()
	if err != nil {
		return err
	}
	pair := truncTypes[op]
	raw, trap := numeric.FloatTruncate(pair.from, pair.to, v.Bits)
	switch trap {
	case numeric.NaNTrap:
		return wasmerr.NewRuntimeError(wasmerr.BadConversionToInteger)
	case numeric.ConvertTrap:
		return wasmerr.NewRuntimeError(wasmerr.UnrepresentableResult)
	}
	st.push(pair.wrap(raw))
	return nil
}

type truncEntry struct {
	from, to numeric.Type
	wrap     func(uint64) validate.Value
}

var truncTypes = map[opcode.Opcode]truncEntry{
	opcode.I32TruncF32S: {numeric.F32, numeric.I32, func(b uint64) validate.Value { return mkI32(int32(uint32(b))) }},
	opcode.I32TruncF32U: {numeric.F32, numeric.U32, func(b uint64) validate.Value { return mkU32(uint32(b)) }},
	opcode.I32TruncF64S: {numeric.F64, numeric.I32, func(b uint64) validate.Value { return mkI32(int32(uint32(b))) }},
	opcode.I32TruncF64U: {numeric.F64, numeric.U32, func(b uint64) validate.Value { return mkU32(uint32(b)) }},
	opcode.I64TruncF32S: {numeric.F32, numeric.I64, func(b uint64) validate.Value { return mkI64(int64(b)) }},
	opcode.I64TruncF32U: {numeric.F32, numeric.U64, func(b uint64) validate.Value { return mkU64(b) }},
	opcode.I64TruncF64S: {numeric.F64, numeric.I64, func(b uint64) validate.Value { return mkI64(int64(b)) }},
	opcode.I64TruncF64U: {numeric.F64, numeric.U64, func(b uint64) validate.Value { return mkU64(b) }},
}
