// Package vm implements the runtime store and the interpreter loop:
// instantiating a validated module into live function, memory, global and
// data-segment instances, and executing exported functions against them.
package vm

import (
	"github.com/tinywasm/tinywasm/validate"
	"github.com/tinywasm/tinywasm/wasm"
	"github.com/tinywasm/tinywasm/wasmerr"
)

// PageSize is the fixed size of one unit of linear-memory growth, 64KiB.
const PageSize = 1 << 16

// MaxPages is the hard ceiling on a memory's size, matching wasm.MaxPages.
const MaxPages = 1 << 16

// MaxBytes is the hard ceiling on a memory's size in bytes: MaxPages pages
// of PageSize bytes each.
const MaxBytes = MaxPages * PageSize

// FuncInst is one function in the store's function index space: either a
// locally defined function (with its locals and code Span) or an imported
// one (resolved through a HostResolver at call time).
type FuncInst struct {
	Type         wasm.FuncType
	IsImport     bool
	ImportModule string
	ImportField  string
	Locals       []wasm.LocalEntry
	Code         []byte // the function body, sliced once at instantiation
}

// MemInst is a live linear memory: its declared type and its backing bytes,
// always a whole multiple of PageSize.
type MemInst struct {
	Type wasm.MemType
	Data []byte
}

// Grow appends delta pages of zeroed bytes and returns the previous size in
// pages, or -1 if growing would exceed MaxPages or the memory's own declared
// maximum. memory.grow never shrinks a memory, and failure never panics.
func (m *MemInst) Grow(delta uint32) int32 {
	cur := uint32(len(m.Data) / PageSize)
	next := cur + delta
	if next < cur || next > MaxPages || (m.Type.Limits.HasMax && next > m.Type.Limits.Max) {
		return -1
	}
	m.Data = append(m.Data, make([]byte, uint64(delta)*PageSize)...)
	return int32(cur)
}

// Size reports the memory's current size in pages.
func (m *MemInst) Size() uint32 {
	return uint32(len(m.Data) / PageSize)
}

// GlobalInst is a live global: its declared type and current value.
type GlobalInst struct {
	Type  wasm.GlobalType
	Value validate.Value
}

// DataInst is a live (possibly already data.drop'd) data segment: Init is
// replaced with an empty slice once dropped.
type DataInst struct {
	Init []byte
}

// Store is all state instantiation allocates for one module: function,
// memory, global instances and the (possibly already-dropped) data
// segments. It has no notion of tables beyond their declared type, since
// this interpreter never executes call_indirect or table instructions
// (spec's Non-goals).
type Store struct {
	Funcs   []FuncInst
	Mems    []MemInst
	Globals []GlobalInst
	Datas   []DataInst

	info *validate.ValidationInfo
}

// NewStore instantiates a validated module: it builds the function, memory
// and global instances in index-space order (imports first), evaluates every
// global initializer and active data-segment offset, and copies active data
// segments into memory. It does not invoke the start function;
// RuntimeInstance does that once the Store is fully built, since that's the
// first point a HostResolver could matter.
func NewStore(info *validate.ValidationInfo, resolver HostResolver) (*Store, error) {
	s := &Store{info: info}

	for _, fd := range info.Funcs {
		fi := FuncInst{Type: fd.Type, IsImport: fd.IsImport, ImportModule: fd.ImportModule, ImportField: fd.ImportField, Locals: fd.Locals}
		if !fd.IsImport {
			fi.Code = info.Bytes[fd.Body.Start:fd.Body.End()]
		}
		s.Funcs = append(s.Funcs, fi)
	}

	for _, md := range info.Mems {
		mt := md.Type
		s.Mems = append(s.Mems, MemInst{
			Type: mt,
			Data: make([]byte, uint64(mt.Limits.Min)*PageSize),
		})
	}

	// Globals are resolved in index order: an import gets its type's zero
	// value (resolveHostGlobal), a local global's initializer may only
	// reference an imported global (enforced by Validate), which by this
	// point in the forward pass is already appended to s.Globals.
	resolveGlobal := func(idx uint32) (validate.Value, error) {
		if int(idx) >= len(s.Globals) {
			return validate.Value{}, wasmerr.NewRuntimeError(wasmerr.InternalInvariant)
		}
		return s.Globals[idx].Value, nil
	}
	for _, gd := range info.Globals {
		if gd.IsImport {
			v, err := resolveHostGlobal(resolver, gd)
			if err != nil {
				return nil, err
			}
			s.Globals = append(s.Globals, GlobalInst{Type: gd.Type, Value: v})
			continue
		}
		v, err := validate.EvalConstExpr(info.Bytes, gd.Init, resolveGlobal)
		if err != nil {
			return nil, err
		}
		s.Globals = append(s.Globals, GlobalInst{Type: gd.Type, Value: v})
	}

	for _, d := range info.Datas {
		own := make([]byte, len(d.Init))
		copy(own, d.Init)
		s.Datas = append(s.Datas, DataInst{Init: own})
	}

	for _, d := range info.Datas {
		if d.Mode != wasm.Active {
			continue
		}
		offVal, err := validate.EvalConstExpr(info.Bytes, d.Offset, resolveGlobal)
		if err != nil {
			return nil, err
		}
		offset := uint32(offVal.Bits)
		mem := &s.Mems[d.MemIdx]
		end := uint64(offset) + uint64(len(d.Init))
		if end > uint64(len(mem.Data)) {
			return nil, wasmerr.NewValidationError(wasmerr.DataSegmentOutOfBounds)
		}
		copy(mem.Data[offset:], d.Init)
	}

	return s, nil
}

// resolveHostGlobal gives every imported global its zero value: this
// interpreter's HostResolver only resolves imported functions; imported
// globals are parsed but never wired to a real host environment.
func resolveHostGlobal(resolver HostResolver, gd validate.GlobalDef) (validate.Value, error) {
	return validate.ZeroValue(gd.Type.ValType), nil
}
