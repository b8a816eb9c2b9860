package vm

import (
	"github.com/tinywasm/tinywasm/leb128"
	"github.com/tinywasm/tinywasm/opcode"
	"github.com/tinywasm/tinywasm/validate"
	"github.com/tinywasm/tinywasm/wasm"
	"github.com/tinywasm/tinywasm/wasmerr"
)

// Interp walks one already-validated module's instruction stream as one big
// opcode switch instrumented with gas charges. One Interp is shared by every
// call an invocation makes (directly or transitively), so gas accounting
// accumulates across the whole call tree; each call gets its own operand
// Stack and Frame. There is no block/loop/if tree to dispatch on — this
// interpreter only executes straight-line instruction sequences.
type Interp struct {
	store    *Store
	gas      *Gas
	policy   GasPolicy
	resolver HostResolver
}

func newInterp(s *Store, policy GasPolicy, limit uint64, resolver HostResolver) *Interp {
	return &Interp{store: s, gas: &Gas{Limit: limit}, policy: policy, resolver: resolver}
}

// callFunc invokes funcIdx with args, recursing into a fresh operand Stack
// and Frame per call — call depth rides on the host Go stack rather than an
// explicit frame table, since nothing in this instruction set needs to
// inspect frames below the current one.
func (in *Interp) callFunc(idx uint32, args []validate.Value) ([]validate.Value, error) {
	if int(idx) >= len(in.store.Funcs) {
		return nil, wasmerr.NewRuntimeError(wasmerr.InternalInvariant)
	}
	fn := &in.store.Funcs[idx]
	if fn.IsImport {
		if in.resolver == nil {
			return nil, wasmerr.NewRuntimeError(wasmerr.UnresolvedImport)
		}
		hf, ok := in.resolver.ResolveFunc(fn.ImportModule, fn.ImportField)
		if !ok {
			return nil, wasmerr.NewRuntimeError(wasmerr.UnresolvedImport)
		}
		return hf(args)
	}
	return in.run(newFrame(fn, args))
}

func (in *Interp) charge(op opcode.Opcode) error {
	return in.gas.charge(in.policy.GetCostForOp(op))
}

// run executes one function activation to completion: either it falls off
// the end (an implicit return of whatever's on the stack) or hits an
// explicit return. Both leave exactly fn.Type.Results values on the stack,
// guaranteed by validate.Validate having already type-checked this body.
func (in *Interp) run(f *Frame) ([]validate.Value, error) {
	var st Stack
	results := len(f.fn.Type.Results)

	for {
		b, err := f.r.ReadU8()
		if err != nil {
			return nil, err
		}
		op := opcode.Opcode(b)
		if err := in.charge(op); err != nil {
			return nil, err
		}

		switch {
		case op == opcode.End, op == opcode.Return:
			return st.popN(results)

		case op == opcode.Call:
			idx, err := leb128.ReadU32(f.r)
			if err != nil {
				return nil, err
			}
			callee := &in.store.Funcs[idx]
			args, err := st.popN(len(callee.Type.Params))
			if err != nil {
				return nil, err
			}
			res, err := in.callFunc(idx, args)
			if err != nil {
				return nil, err
			}
			for _, v := range res {
				st.push(v)
			}

		case op == opcode.Drop:
			if _, err := st.pop(); err != nil {
				return nil, err
			}

		case op == opcode.LocalGet:
			idx, err := leb128.ReadU32(f.r)
			if err != nil {
				return nil, err
			}
			st.push(f.locals[idx])

		case op == opcode.LocalSet:
			idx, err := leb128.ReadU32(f.r)
			if err != nil {
				return nil, err
			}
			v, err := st.pop()
			if err != nil {
				return nil, err
			}
			f.locals[idx] = v

		case op == opcode.LocalTee:
			idx, err := leb128.ReadU32(f.r)
			if err != nil {
				return nil, err
			}
			v, err := st.pop()
			if err != nil {
				return nil, err
			}
			f.locals[idx] = v
			st.push(v)

		case op == opcode.GlobalGet:
			idx, err := leb128.ReadU32(f.r)
			if err != nil {
				return nil, err
			}
			st.push(in.store.Globals[idx].Value)

		case op == opcode.GlobalSet:
			idx, err := leb128.ReadU32(f.r)
			if err != nil {
				return nil, err
			}
			v, err := st.pop()
			if err != nil {
				return nil, err
			}
			in.store.Globals[idx].Value = v

		case op == opcode.MemorySize:
			if _, err := f.r.ReadU8(); err != nil {
				return nil, err
			}
			st.push(mkU32(in.store.Mems[0].Size()))

		case op == opcode.MemoryGrow:
			if _, err := f.r.ReadU8(); err != nil {
				return nil, err
			}
			delta, err := st.pop()
			if err != nil {
				return nil, err
			}
			d := asU32(delta)
			if err := in.gas.charge(in.policy.GetCostForMalloc(int(d))); err != nil {
				return nil, err
			}
			st.push(mkI32(in.store.Mems[0].Grow(d)))

		case op == opcode.I32Const:
			v, err := leb128.ReadI32(f.r)
			if err != nil {
				return nil, err
			}
			st.push(mkI32(v))

		case op == opcode.I64Const:
			v, err := leb128.ReadI64(f.r)
			if err != nil {
				return nil, err
			}
			st.push(mkI64(v))

		case op == opcode.F32Const:
			v, err := f.r.ReadU32LE()
			if err != nil {
				return nil, err
			}
			st.push(validate.Value{Type: wasm.F32, Bits: uint64(v)})

		case op == opcode.F64Const:
			v, err := f.r.ReadU64LE()
			if err != nil {
				return nil, err
			}
			st.push(validate.Value{Type: wasm.F64, Bits: v})

		case opcode.IsLoad(op):
			if err := in.execLoad(f, &st, op); err != nil {
				return nil, err
			}

		case opcode.IsStore(op):
			if err := in.execStore(f, &st, op); err != nil {
				return nil, err
			}

		case op == opcode.MiscPrefix:
			if err := in.execMisc(f, &st); err != nil {
				return nil, err
			}

		default:
			if err := execArith(op, &st); err != nil {
				return nil, err
			}
		}
	}
}

func effectiveAddr(base, offset, width uint32, memLen int) (uint32, error) {
	addr := uint64(base) + uint64(offset)
	if addr+uint64(width) > uint64(memLen) {
		return 0, wasmerr.NewRuntimeError(wasmerr.MemoryAccessOutOfBounds)
	}
	return uint32(addr), nil
}

func (in *Interp) execLoad(f *Frame, st *Stack, op opcode.Opcode) error {
	if _, err := leb128.ReadU32(f.r); err != nil { // align, unused
		return err
	}
	offset, err := leb128.ReadU32(f.r)
	if err != nil {
		return err
	}
	base, err := st.pop()
	if err != nil {
		return err
	}
	mem := &in.store.Mems[0]
	width := loadWidth[op]
	addr, err := effectiveAddr(asU32(base), offset, width, len(mem.Data))
	if err != nil {
		return err
	}
	st.push(decodeLoad(op, mem.Data[addr:addr+width]))
	return nil
}

func (in *Interp) execStore(f *Frame, st *Stack, op opcode.Opcode) error {
	if _, err := leb128.ReadU32(f.r); err != nil { // align, unused
		return err
	}
	offset, err := leb128.ReadU32(f.r)
	if err != nil {
		return err
	}
	val, err := st.pop()
	if err != nil {
		return err
	}
	base, err := st.pop()
	if err != nil {
		return err
	}
	mem := &in.store.Mems[0]
	width := storeWidth[op]
	addr, err := effectiveAddr(asU32(base), offset, width, len(mem.Data))
	if err != nil {
		return err
	}
	encodeStore(op, mem.Data[addr:addr+width], val)
	return nil
}

var loadWidth = map[opcode.Opcode]uint32{
	opcode.I32Load: 4, opcode.I64Load: 8, opcode.F32Load: 4, opcode.F64Load: 8,
	opcode.I32Load8S: 1, opcode.I32Load8U: 1, opcode.I32Load16S: 2, opcode.I32Load16U: 2,
	opcode.I64Load8S: 1, opcode.I64Load8U: 1, opcode.I64Load16S: 2, opcode.I64Load16U: 2,
	opcode.I64Load32S: 4, opcode.I64Load32U: 4,
}

var storeWidth = map[opcode.Opcode]uint32{
	opcode.I32Store: 4, opcode.I64Store: 8, opcode.F32Store: 4, opcode.F64Store: 8,
	opcode.I32Store8: 1, opcode.I32Store16: 2,
	opcode.I64Store8: 1, opcode.I64Store16: 2, opcode.I64Store32: 4,
}

func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func leU64(b []byte) uint64 {
	return uint64(leU32(b[0:4])) | uint64(leU32(b[4:8]))<<32
}

func leU16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

func putLE32(b []byte, v uint32) {
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}

func putLE64(b []byte, v uint64) {
	putLE32(b[0:4], uint32(v))
	putLE32(b[4:8], uint32(v>>32))
}

func decodeLoad(op opcode.Opcode, b []byte) validate.Value {
	switch op {
	case opcode.I32Load:
		return mkU32(leU32(b))
	case opcode.I32Load8S:
		return mkI32(int32(int8(b[0])))
	case opcode.I32Load8U:
		return mkU32(uint32(b[0]))
	case opcode.I32Load16S:
		return mkI32(int32(int16(leU16(b))))
	case opcode.I32Load16U:
		return mkU32(uint32(leU16(b)))
	case opcode.I64Load:
		return mkU64(leU64(b))
	case opcode.I64Load8S:
		return mkI64(int64(int8(b[0])))
	case opcode.I64Load8U:
		return mkU64(uint64(b[0]))
	case opcode.I64Load16S:
		return mkI64(int64(int16(leU16(b))))
	case opcode.I64Load16U:
		return mkU64(uint64(leU16(b)))
	case opcode.I64Load32S:
		return mkI64(int64(int32(leU32(b))))
	case opcode.I64Load32U:
		return mkU64(uint64(leU32(b)))
	case opcode.F32Load:
		return validate.Value{Type: wasm.F32, Bits: uint64(leU32(b))}
	case opcode.F64Load:
		return validate.Value{Type: wasm.F64, Bits: leU64(b)}
	}
	panic("vm: unhandled load opcode")
}

func encodeStore(op opcode.Opcode, b []byte, v validate.Value) {
	switch op {
	case opcode.I32Store:
		putLE32(b, asU32(v))
	case opcode.I32Store8:
		b[0] = byte(asU32(v))
	case opcode.I32Store16:
		x := asU32(v)
		b[0], b[1] = byte(x), byte(x>>8)
	case opcode.I64Store:
		putLE64(b, asU64(v))
	case opcode.I64Store8:
		b[0] = byte(asU64(v))
	case opcode.I64Store16:
		x := asU64(v)
		b[0], b[1] = byte(x), byte(x>>8)
	case opcode.I64Store32:
		putLE32(b, uint32(asU64(v)))
	case opcode.F32Store:
		putLE32(b, uint32(v.Bits))
	case opcode.F64Store:
		putLE64(b, v.Bits)
	default:
		panic("vm: unhandled store opcode")
	}
}
