package vm

import (
	"github.com/tinywasm/tinywasm/reader"
	"github.com/tinywasm/tinywasm/validate"
	"github.com/tinywasm/tinywasm/wasm"
)

// Frame holds one function activation's execution state: a cursor over its
// instruction bytes and its locals (parameters followed by declared
// locals, addressable by a single flat index — the same index space
// package validate type-checked local.get/set/tee against). The cursor is a
// reader.Reader over the function's own byte Span, read straight from the
// module's bytes rather than a pre-built instruction list.
type Frame struct {
	fn     *FuncInst
	r      *reader.Reader
	locals []validate.Value
}

func newFrame(fn *FuncInst, args []validate.Value) *Frame {
	locals := make([]validate.Value, 0, len(fn.Type.Params)+localCount(fn.Locals))
	locals = append(locals, args...)
	for _, e := range fn.Locals {
		for i := uint32(0); i < e.Count; i++ {
			locals = append(locals, validate.ZeroValue(e.ValType))
		}
	}
	return &Frame{fn: fn, r: reader.New(fn.Code), locals: locals}
}

func localCount(entries []wasm.LocalEntry) int {
	n := 0
	for _, e := range entries {
		n += int(e.Count)
	}
	return n
}
