// Package validate implements the module validator and the
// constant-expression evaluator that sit between the structural decoder
// (package wasm) and the store/interpreter (package vm): Validate
// type-checks every function body against an abstract operand stack and
// produces a ValidationInfo the vm package can instantiate directly, without
// re-walking the byte stream.
package validate

import (
	"github.com/tinywasm/tinywasm/reader"
	"github.com/tinywasm/tinywasm/wasm"
	"github.com/tinywasm/tinywasm/wasmerr"
)

// FuncDef is one entry of the function index space: imported functions come
// first (Body is the zero Span), then locally defined functions in
// declaration order.
type FuncDef struct {
	Type         wasm.FuncType
	IsImport     bool
	ImportModule string
	ImportField  string
	Locals       []wasm.LocalEntry
	Body         reader.Span
}

// TableDef is one entry of the table index space.
type TableDef struct {
	Type         wasm.TableType
	IsImport     bool
	ImportModule string
	ImportField  string
}

// MemDef is one entry of the memory index space.
type MemDef struct {
	Type         wasm.MemType
	IsImport     bool
	ImportModule string
	ImportField  string
}

// GlobalDef is one entry of the global index space. Imported globals carry
// no Init span; the vm package gives them their type's zero value at
// instantiation, since its HostResolver only resolves functions.
type GlobalDef struct {
	Type         wasm.GlobalType
	IsImport     bool
	ImportModule string
	ImportField  string
	Init         reader.Span
}

// ValidationInfo is the fully type-checked module, ready for the vm package
// to instantiate. It owns the module's bytes: every Span inside it (Init,
// Body, data/element offsets) is only meaningful sliced against Bytes.
type ValidationInfo struct {
	Bytes []byte

	Types   []wasm.FuncType
	Imports []wasm.Import

	Funcs   []FuncDef
	Tables  []TableDef
	Mems    []MemDef
	Globals []GlobalDef

	Exports      []wasm.Export
	ExportByName map[string]wasm.Export

	Elements []wasm.Element
	Datas    []wasm.DataSegment

	HasStart bool
	Start    uint32

	// FuncBlocks holds the Body span of every locally defined function, in
	// declaration order; always the same length as the Code section, since
	// Validate rejects a module whose Function and Code sections differ in
	// length (FuncCodeCountMismatch).
	FuncBlocks []reader.Span
}

// Validate decodes and fully type-checks a Wasm module. On success the
// returned ValidationInfo is ready for vm.NewRuntimeInstance; on failure the
// module is rejected outright and no Store is ever built for it.
func Validate(bytes []byte) (*ValidationInfo, error) {
	m, err := wasm.Decode(reader.New(bytes))
	if err != nil {
		return nil, err
	}

	if len(m.Mems) > 1 {
		return nil, wasmerr.NewValidationError(wasmerr.MoreThanOneMemory)
	}
	if len(m.Tables) > 1 {
		return nil, wasmerr.NewValidationError(wasmerr.MoreThanOneTable)
	}
	if len(m.FuncTypeIdxs) != len(m.Codes) {
		return nil, wasmerr.NewValidationError(wasmerr.FuncCodeCountMismatch)
	}

	info := &ValidationInfo{
		Bytes:        bytes,
		Types:        m.Types,
		Imports:      m.Imports,
		Exports:      m.Exports,
		ExportByName: m.ExportByName,
		Elements:     m.Elements,
		Datas:        m.Datas,
		HasStart:     m.HasStart,
		Start:        m.Start,
	}

	for _, imp := range m.Imports {
		switch imp.Kind {
		case wasm.ImportFunc:
			if int(imp.TypeIdx) >= len(m.Types) {
				return nil, wasmerr.NewValidationError(wasmerr.InvalidTypeIndex)
			}
			info.Funcs = append(info.Funcs, FuncDef{
				Type: m.Types[imp.TypeIdx], IsImport: true,
				ImportModule: imp.Module, ImportField: imp.Field,
			})
		case wasm.ImportTable:
			info.Tables = append(info.Tables, TableDef{
				Type: imp.Table, IsImport: true,
				ImportModule: imp.Module, ImportField: imp.Field,
			})
		case wasm.ImportMem:
			info.Mems = append(info.Mems, MemDef{
				Type: imp.Mem, IsImport: true,
				ImportModule: imp.Module, ImportField: imp.Field,
			})
		case wasm.ImportGlobal:
			info.Globals = append(info.Globals, GlobalDef{
				Type: imp.GlobalType, IsImport: true,
				ImportModule: imp.Module, ImportField: imp.Field,
			})
		}
	}
	if len(info.Mems) > 1 {
		return nil, wasmerr.NewValidationError(wasmerr.MoreThanOneMemory)
	}
	if len(info.Tables) > 1 {
		return nil, wasmerr.NewValidationError(wasmerr.MoreThanOneTable)
	}

	for i, typeIdx := range m.FuncTypeIdxs {
		if int(typeIdx) >= len(m.Types) {
			return nil, wasmerr.NewValidationError(wasmerr.InvalidTypeIndex)
		}
		code := m.Codes[i]
		info.Funcs = append(info.Funcs, FuncDef{
			Type:   m.Types[typeIdx],
			Locals: code.Locals,
			Body:   code.Body,
		})
		info.FuncBlocks = append(info.FuncBlocks, code.Body)
	}
	for _, t := range m.Tables {
		info.Tables = append(info.Tables, TableDef{Type: t})
	}
	for _, mt := range m.Mems {
		info.Mems = append(info.Mems, MemDef{Type: mt})
	}
	for _, g := range m.Globals {
		info.Globals = append(info.Globals, GlobalDef{Type: g.Type, Init: g.Init})
	}

	if info.HasStart {
		if int(info.Start) >= len(info.Funcs) {
			return nil, wasmerr.NewValidationError(wasmerr.InvalidFuncIndex)
		}
	}

	// Global initializers may only reference an already-defined (i.e.
	// imported) global, since locally defined globals have no value until
	// their own initializer runs. Validate type-checks every initializer
	// with a resolver that only succeeds for imported-global indices, using
	// a zero placeholder value: the real value is substituted by the vm
	// package at instantiation.
	numImportedGlobals := 0
	for _, g := range info.Globals {
		if g.IsImport {
			numImportedGlobals++
		}
	}
	placeholderResolver := func(idx uint32) (Value, error) {
		if int(idx) >= numImportedGlobals {
			return Value{}, wasmerr.NewValidationError(wasmerr.InvalidGlobalIndex)
		}
		return ZeroValue(info.Globals[idx].Type.ValType), nil
	}
	for _, g := range info.Globals {
		if g.IsImport {
			continue
		}
		v, err := EvalConstExpr(bytes, g.Init, placeholderResolver)
		if err != nil {
			return nil, err
		}
		if v.Type != g.Type.ValType {
			return nil, wasmerr.NewValidationError(wasmerr.InvalidInitExpr)
		}
	}

	for _, d := range info.Datas {
		if d.Mode != wasm.Active {
			continue
		}
		if int(d.MemIdx) >= len(info.Mems) {
			return nil, wasmerr.NewValidationError(wasmerr.InvalidMemIndex)
		}
		v, err := EvalConstExpr(bytes, d.Offset, placeholderResolver)
		if err != nil {
			return nil, err
		}
		if v.Type != wasm.I32 {
			return nil, wasmerr.NewValidationError(wasmerr.InvalidInitExpr)
		}
		// Bounds are only checkable here when the offset is a literal
		// constant; an offset that reads an imported global can't be
		// bounds-checked until the host value is known, so the vm package
		// re-checks this at instantiation.
		mem := info.Mems[d.MemIdx]
		offset := uint64(uint32(v.Bits))
		if offset+uint64(len(d.Init)) > uint64(mem.Type.Limits.Min)*pageSize {
			return nil, wasmerr.NewValidationError(wasmerr.DataSegmentOutOfBounds)
		}
	}

	for _, e := range info.Elements {
		if int(e.TableIdx) >= len(info.Tables) {
			return nil, wasmerr.NewValidationError(wasmerr.InvalidTableIndex)
		}
		if _, err := EvalConstExpr(bytes, e.Offset, placeholderResolver); err != nil {
			return nil, err
		}
	}

	for i := range info.Funcs {
		if info.Funcs[i].IsImport {
			continue
		}
		if err := checkFunction(info, &info.Funcs[i]); err != nil {
			return nil, err
		}
	}

	return info, nil
}

const pageSize = 65536
