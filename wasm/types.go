// Package wasm implements the structural (non-executing) parts of the Wasm
// MVP binary format: value/ref/func/limits/memory/table type decoding and
// section splitting into byte Spans.
//
// Every byte range the decoder remembers is a reader.Span into the original
// module bytes rather than a copied []byte, so a function body's code isn't
// materialized into an instruction tree until the validator or interpreter
// actually walks it.
package wasm

import "github.com/tinywasm/tinywasm/reader"

// Magic is the four-byte Wasm module magic number, "\0asm".
const Magic uint32 = 0x6d736100

// Version is the only module version this decoder accepts.
const Version uint32 = 0x1

// ValType tags a value's static type. NumType (I32/I64/F32/F64), VecType
// (V128), and RefType (FuncRef/ExternRef) are folded into one enum since the
// three families share one byte-tag namespace in the binary format.
type ValType int8

const (
	I32       ValType = 0x7f
	I64       ValType = 0x7e
	F32       ValType = 0x7d
	F64       ValType = 0x7c
	V128      ValType = 0x7b
	FuncRef   ValType = 0x70
	ExternRef ValType = 0x6f
)

func (t ValType) String() string {
	switch t {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case V128:
		return "v128"
	case FuncRef:
		return "funcref"
	case ExternRef:
		return "externref"
	default:
		return "invalid"
	}
}

// IsNumType reports whether t is one of I32/I64/F32/F64.
func (t ValType) IsNumType() bool {
	return t == I32 || t == I64 || t == F32 || t == F64
}

// IsRefType reports whether t is FuncRef or ExternRef.
func (t ValType) IsRefType() bool {
	return t == FuncRef || t == ExternRef
}

// Limits is the (min, max option) pair underlying MemType and TableType.
type Limits struct {
	Min    uint32
	Max    uint32
	HasMax bool
}

// MemType is a memory's Limits, measured in 64KiB pages, with the
// additional MVP bound that min/max never exceed 2^16 pages.
type MemType struct {
	Limits Limits
}

// TableType is a RefType element together with Limits.
type TableType struct {
	ElemType ValType
	Limits   Limits
}

// FuncType is a function signature: ordered parameter types and ordered
// result types.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// GlobalType is a value type plus a mutability flag.
type GlobalType struct {
	ValType ValType
	Mutable bool
}

// Global is a module-level global: its type and the Span of its constant
// initializer expression (evaluated lazily, once, at instantiation).
type Global struct {
	Type GlobalType
	Init reader.Span
}

// ImportKind tags which namespace an Import's descriptor occupies.
type ImportKind byte

const (
	ImportFunc   ImportKind = 0x00
	ImportTable  ImportKind = 0x01
	ImportMem    ImportKind = 0x02
	ImportGlobal ImportKind = 0x03
)

// Import is one entry of the Import section.
type Import struct {
	Module string
	Field  string
	Kind   ImportKind
	// Exactly one of the following is populated, selected by Kind.
	TypeIdx    uint32
	Table      TableType
	Mem        MemType
	GlobalType GlobalType
}

// ExportKind tags which index space an Export's Idx refers to.
type ExportKind byte

const (
	ExportFunc   ExportKind = 0x00
	ExportTable  ExportKind = 0x01
	ExportMem    ExportKind = 0x02
	ExportGlobal ExportKind = 0x03
)

// Export is one entry of the Export section.
type Export struct {
	Name string
	Kind ExportKind
	Idx  uint32
}

// Element is a decoded Element-section entry: table-initializer function
// indices with their active offset expression. This interpreter has no
// table or call_indirect support, so elements are decoded for structural
// completeness but never consumed at instantiation or run time.
type Element struct {
	TableIdx uint32
	Offset   reader.Span
	FuncIdxs []uint32
}

// DataMode tags whether a DataSegment is copied into memory eagerly at
// instantiation (Active) or held for a later memory.init (Passive).
type DataMode int

const (
	Passive DataMode = iota
	Active
)

// DataSegment is one entry of the Data section. Active segments carry the
// offset expression as a Span, evaluated once at instantiation rather than
// as a pre-computed integer, so the segment's offset still observes the
// same lazy, zero-copy Span discipline as function bodies.
type DataSegment struct {
	Init     []byte
	Mode     DataMode
	MemIdx   uint32
	Offset   reader.Span
}

// Code is one Code-section entry: the function's declared locals (run-length
// encoded by count+type, as in the wire format) and the Span of its body,
// inclusive of the trailing `end` opcode.
type Code struct {
	Locals []LocalEntry
	Body   reader.Span
}

// LocalEntry is a run of Count locals sharing ValType, as declared in a
// function body's locals vector.
type LocalEntry struct {
	Count   uint32
	ValType ValType
}

// Module is the raw structural decode of a Wasm binary: one slice/field per
// section, with byte ranges kept as Spans rather than copies. Validation
// (package validate) consumes a Module and produces the execution-ready
// ValidationInfo.
type Module struct {
	Version uint32

	Types   []FuncType
	Imports []Import
	// FuncTypeIdxs[i] is the TypeIdx of the i-th locally defined function
	// (the Function section); it does not include imported functions.
	FuncTypeIdxs []uint32
	Tables       []TableType
	Mems         []MemType
	Globals      []Global
	Exports      []Export
	ExportByName map[string]Export
	HasStart     bool
	Start        uint32
	Elements     []Element
	Codes        []Code
	Datas        []DataSegment
}
