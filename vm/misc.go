package vm

import (
	"github.com/tinywasm/tinywasm/leb128"
	"github.com/tinywasm/tinywasm/numeric"
	"github.com/tinywasm/tinywasm/opcode"
	"github.com/tinywasm/tinywasm/validate"
	"github.com/tinywasm/tinywasm/wasmerr"
)

// execMisc handles the secondary opcode space behind the 0xFC prefix: the
// saturating truncation family and the bulk-memory instructions
// (memory.init, data.drop, memory.copy, memory.fill).
func (in *Interp) execMisc(f *Frame, st *Stack) error {
	sub, err := leb128.ReadU32(f.r)
	if err != nil {
		return err
	}
	m := opcode.Misc(sub)

	if pair, ok := satTruncTypes[m]; ok {
		v, err := st.pop()
		if err != nil {
			return err
		}
		raw := numeric.SaturatingTruncate(pair.from, pair.to, v.Bits)
		st.push(pair.wrap(raw))
		return nil
	}

	switch m {
	case opcode.MemoryInit:
		dataIdx, err := leb128.ReadU32(f.r)
		if err != nil {
			return err
		}
		if _, err := f.r.ReadU8(); err != nil { // memidx, reserved
			return err
		}
		n, src, dst, err := pop3(st)
		if err != nil {
			return err
		}
		return in.memoryInit(dataIdx, dst, src, n)

	case opcode.DataDrop:
		dataIdx, err := leb128.ReadU32(f.r)
		if err != nil {
			return err
		}
		if int(dataIdx) >= len(in.store.Datas) {
			return wasmerr.NewRuntimeError(wasmerr.InternalInvariant)
		}
		in.store.Datas[dataIdx].Init = nil
		return nil

	case opcode.MemoryCopy:
		if _, err := f.r.ReadU8(); err != nil { // dst memidx, reserved
			return err
		}
		if _, err := f.r.ReadU8(); err != nil { // src memidx, reserved
			return err
		}
		n, src, dst, err := pop3(st)
		if err != nil {
			return err
		}
		return in.memoryCopy(dst, src, n)

	case opcode.MemoryFill:
		if _, err := f.r.ReadU8(); err != nil { // memidx, reserved
			return err
		}
		n, val, dst, err := pop3(st)
		if err != nil {
			return err
		}
		return in.memoryFill(dst, val, n)
	}
	return wasmerr.NewRuntimeError(wasmerr.InternalInvariant)
}

// pop3 pops the (n, middle, first) triple every bulk-memory op shares: all
// three operands are i32, popped in reverse push order.
func pop3(st *Stack) (n, mid, first uint32, err error) {
	vs, err := st.popN(3)
	if err != nil {
		return 0, 0, 0, err
	}
	return asU32(vs[2]), asU32(vs[1]), asU32(vs[0]), nil
}

func (in *Interp) memoryInit(dataIdx, dst, src, n uint32) error {
	if int(dataIdx) >= len(in.store.Datas) {
		return wasmerr.NewRuntimeError(wasmerr.InternalInvariant)
	}
	data := in.store.Datas[dataIdx].Init
	mem := &in.store.Mems[0]
	if uint64(src)+uint64(n) > uint64(len(data)) || uint64(dst)+uint64(n) > uint64(len(mem.Data)) {
		return wasmerr.NewRuntimeError(wasmerr.MemoryAccessOutOfBounds)
	}
	copy(mem.Data[dst:dst+n], data[src:src+n])
	return nil
}

func (in *Interp) memoryCopy(dst, src, n uint32) error {
	mem := &in.store.Mems[0]
	if uint64(src)+uint64(n) > uint64(len(mem.Data)) || uint64(dst)+uint64(n) > uint64(len(mem.Data)) {
		return wasmerr.NewRuntimeError(wasmerr.MemoryAccessOutOfBounds)
	}
	// Data must end up as if copied byte-by-byte through a temporary, so
	// overlapping regions pick the copy direction Go's builtin already
	// gets right for a single slice (copy handles overlap like memmove).
	copy(mem.Data[dst:dst+n], mem.Data[src:src+n])
	return nil
}

func (in *Interp) memoryFill(dst, val, n uint32) error {
	mem := &in.store.Mems[0]
	if uint64(dst)+uint64(n) > uint64(len(mem.Data)) {
		return wasmerr.NewRuntimeError(wasmerr.MemoryAccessOutOfBounds)
	}
	b := byte(val)
	region := mem.Data[dst : dst+n]
	for i := range region {
		region[i] = b
	}
	return nil
}

var satTruncTypes = map[opcode.Misc]truncEntry{
	opcode.I32TruncSatF32S: {numeric.F32, numeric.I32, func(b uint64) validate.Value { return mkI32(int32(uint32(b))) }},
	opcode.I32TruncSatF32U: {numeric.F32, numeric.U32, func(b uint64) validate.Value { return mkU32(uint32(b)) }},
	opcode.I32TruncSatF64S: {numeric.F64, numeric.I32, func(b uint64) validate.Value { return mkI32(int32(uint32(b))) }},
	opcode.I32TruncSatF64U: {numeric.F64, numeric.U32, func(b uint64) validate.Value { return mkU32(uint32(b)) }},
	opcode.I64TruncSatF32S: {numeric.F32, numeric.I64, func(b uint64) validate.Value { return mkI64(int64(b)) }},
	opcode.I64TruncSatF32U: {numeric.F32, numeric.U64, func(b uint64) validate.Value { return mkU64(b) }},
	opcode.I64TruncSatF64S: {numeric.F64, numeric.I64, func(b uint64) validate.Value { return mkI64(int64(b)) }},
	opcode.I64TruncSatF64U: {numeric.F64, numeric.U64, func(b uint64) validate.Value { return mkU64(b) }},
}
