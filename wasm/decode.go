package wasm

import (
	"unicode/utf8"

	"github.com/tinywasm/tinywasm/leb128"
	"github.com/tinywasm/tinywasm/reader"
	"github.com/tinywasm/tinywasm/wasmerr"
)

// Section ids.
const (
	secCustom    = 0
	secType      = 1
	secImport    = 2
	secFunction  = 3
	secTable     = 4
	secMemory    = 5
	secGlobal    = 6
	secExport    = 7
	secStart     = 8
	secElement   = 9
	secCode      = 10
	secData      = 11
	secDataCount = 12
)

// Decode reads the module header and every section from r, returning the
// raw structural Module. It enforces a few header invariants: the fixed
// magic+version header, ascending non-custom section ids (custom sections
// may appear anywhere, any number of times), and that the cursor lands
// exactly at end-of-input once every section has been consumed.
func Decode(r *reader.Reader) (*Module, error) {
	if err := readHeader(r); err != nil {
		return nil, err
	}

	m := &Module{Version: Version, ExportByName: map[string]Export{}}
	lastID := -1
	for r.Remaining() > 0 {
		id, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		length, err := leb128.ReadU32(r)
		if err != nil {
			return nil, err
		}
		start := r.Pos()
		if int(id) != secCustom {
			if int(id) <= lastID {
				return nil, wasmerr.NewValidationErrorf(wasmerr.SectionOutOfOrder, int(id))
			}
			lastID = int(id)
		}

		if err := decodeSection(m, r, int(id), length); err != nil {
			return nil, err
		}

		// A malformed section whose declared length disagrees with what was
		// actually consumed is still caught here: the cursor must land
		// exactly at start+length.
		if r.Pos() != start+length {
			return nil, wasmerr.NewValidationError(wasmerr.Eof)
		}
	}
	return m, nil
}

func readHeader(r *reader.Reader) error {
	magic, err := r.ReadU32LE()
	if err != nil {
		return err
	}
	if magic != Magic {
		return wasmerr.NewValidationError(wasmerr.InvalidMagic)
	}
	version, err := r.ReadU32LE()
	if err != nil {
		return err
	}
	if version != Version {
		return wasmerr.NewValidationError(wasmerr.InvalidVersion)
	}
	return nil
}

func decodeSection(m *Module, r *reader.Reader, id int, length uint32) error {
	switch id {
	case secCustom:
		return r.Skip(length)
	case secType:
		return decodeTypeSec(m, r)
	case secImport:
		return decodeImportSec(m, r)
	case secFunction:
		return decodeFunctionSec(m, r)
	case secTable:
		return decodeTableSec(m, r)
	case secMemory:
		return decodeMemorySec(m, r)
	case secGlobal:
		return decodeGlobalSec(m, r)
	case secExport:
		return decodeExportSec(m, r)
	case secStart:
		return decodeStartSec(m, r)
	case secElement:
		return decodeElementSec(m, r)
	case secCode:
		return decodeCodeSec(m, r)
	case secData:
		return decodeDataSec(m, r)
	case secDataCount:
		// Accepted but unused: the count isn't cross-checked against the
		// Data section.
		_, err := leb128.ReadU32(r)
		return err
	default:
		return wasmerr.NewValidationErrorf(wasmerr.SectionOutOfOrder, id)
	}
}

func readVec(r *reader.Reader, elem func() error) (uint32, error) {
	n, err := leb128.ReadU32(r)
	if err != nil {
		return 0, err
	}
	for i := uint32(0); i < n; i++ {
		if err := elem(); err != nil {
			return 0, err
		}
	}
	return n, nil
}

func decodeTypeSec(m *Module, r *reader.Reader) error {
	_, err := readVec(r, func() error {
		form, err := r.ReadU8()
		if err != nil {
			return err
		}
		if form != 0x60 {
			return wasmerr.NewValidationError(wasmerr.InvalidFuncType)
		}
		var ft FuncType
		if ft.Params, err = readValTypeVec(r); err != nil {
			return err
		}
		if ft.Results, err = readValTypeVec(r); err != nil {
			return err
		}
		m.Types = append(m.Types, ft)
		return nil
	})
	return err
}

func readValTypeVec(r *reader.Reader) ([]ValType, error) {
	n, err := leb128.ReadU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]ValType, n)
	for i := range out {
		if out[i], err = readValType(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func readValType(r *reader.Reader) (ValType, error) {
	b, err := r.ReadU8()
	if err != nil {
		return 0, err
	}
	t := ValType(int8(b))
	if !t.IsNumType() && t != V128 && !t.IsRefType() {
		return 0, wasmerr.NewValidationError(wasmerr.InvalidValType)
	}
	return t, nil
}

func readRefType(r *reader.Reader) (ValType, error) {
	t, err := readValType(r)
	if err != nil {
		return 0, err
	}
	if !t.IsRefType() {
		return 0, wasmerr.NewValidationError(wasmerr.InvalidRefType)
	}
	return t, nil
}

func readLimits(r *reader.Reader) (Limits, error) {
	flag, err := r.ReadU8()
	if err != nil {
		return Limits{}, err
	}
	var l Limits
	switch flag {
	case 0x00:
		if l.Min, err = leb128.ReadU32(r); err != nil {
			return l, err
		}
	case 0x01:
		if l.Min, err = leb128.ReadU32(r); err != nil {
			return l, err
		}
		if l.Max, err = leb128.ReadU32(r); err != nil {
			return l, err
		}
		l.HasMax = true
	default:
		return l, wasmerr.NewValidationErrorf(wasmerr.InvalidLimitsType, int(flag))
	}
	if l.HasMax && l.Min > l.Max {
		return l, wasmerr.NewValidationError(wasmerr.SizeMinIsGreaterThanMax)
	}
	return l, nil
}

// MaxPages is the hard ceiling on linear-memory size: 2^16 pages.
const MaxPages = 1 << 16

func readMemType(r *reader.Reader) (MemType, error) {
	l, err := readLimits(r)
	if err != nil {
		return MemType{}, err
	}
	if l.Min > MaxPages || (l.HasMax && l.Max > MaxPages) {
		return MemType{}, wasmerr.NewValidationError(wasmerr.MemSizeTooBig)
	}
	return MemType{Limits: l}, nil
}

func readTableType(r *reader.Reader) (TableType, error) {
	elem, err := readRefType(r)
	if err != nil {
		return TableType{}, err
	}
	l, err := readLimits(r)
	if err != nil {
		return TableType{}, err
	}
	return TableType{ElemType: elem, Limits: l}, nil
}

func readGlobalType(r *reader.Reader) (GlobalType, error) {
	vt, err := readValType(r)
	if err != nil {
		return GlobalType{}, err
	}
	mut, err := r.ReadU8()
	if err != nil {
		return GlobalType{}, err
	}
	if mut != 0x00 && mut != 0x01 {
		return GlobalType{}, wasmerr.NewValidationError(wasmerr.InvalidValType)
	}
	return GlobalType{ValType: vt, Mutable: mut == 0x01}, nil
}

func readName(r *reader.Reader) (string, error) {
	n, err := leb128.ReadU32(r)
	if err != nil {
		return "", err
	}
	b, err := r.ReadBytes(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", wasmerr.NewValidationError(wasmerr.InvalidUTF8)
	}
	return string(b), nil
}

func decodeImportSec(m *Module, r *reader.Reader) error {
	_, err := readVec(r, func() error {
		var imp Import
		var err error
		if imp.Module, err = readName(r); err != nil {
			return err
		}
		if imp.Field, err = readName(r); err != nil {
			return err
		}
		kind, err := r.ReadU8()
		if err != nil {
			return err
		}
		imp.Kind = ImportKind(kind)
		switch imp.Kind {
		case ImportFunc:
			if imp.TypeIdx, err = leb128.ReadU32(r); err != nil {
				return err
			}
		case ImportTable:
			if imp.Table, err = readTableType(r); err != nil {
				return err
			}
		case ImportMem:
			if imp.Mem, err = readMemType(r); err != nil {
				return err
			}
		case ImportGlobal:
			if imp.GlobalType, err = readGlobalType(r); err != nil {
				return err
			}
		default:
			return wasmerr.NewValidationErrorf(wasmerr.InvalidInstr, int(kind))
		}
		m.Imports = append(m.Imports, imp)
		return nil
	})
	return err
}

func decodeFunctionSec(m *Module, r *reader.Reader) error {
	_, err := readVec(r, func() error {
		idx, err := leb128.ReadU32(r)
		if err != nil {
			return err
		}
		m.FuncTypeIdxs = append(m.FuncTypeIdxs, idx)
		return nil
	})
	return err
}

func decodeTableSec(m *Module, r *reader.Reader) error {
	_, err := readVec(r, func() error {
		t, err := readTableType(r)
		if err != nil {
			return err
		}
		m.Tables = append(m.Tables, t)
		return nil
	})
	return err
}

func decodeMemorySec(m *Module, r *reader.Reader) error {
	_, err := readVec(r, func() error {
		t, err := readMemType(r)
		if err != nil {
			return err
		}
		m.Mems = append(m.Mems, t)
		return nil
	})
	return err
}

func decodeGlobalSec(m *Module, r *reader.Reader) error {
	_, err := readVec(r, func() error {
		gt, err := readGlobalType(r)
		if err != nil {
			return err
		}
		init, err := readConstExprSpan(r)
		if err != nil {
			return err
		}
		m.Globals = append(m.Globals, Global{Type: gt, Init: init})
		return nil
	})
	return err
}

func decodeExportSec(m *Module, r *reader.Reader) error {
	_, err := readVec(r, func() error {
		var e Export
		var err error
		if e.Name, err = readName(r); err != nil {
			return err
		}
		kind, err := r.ReadU8()
		if err != nil {
			return err
		}
		if kind > byte(ExportGlobal) {
			return wasmerr.NewValidationErrorf(wasmerr.InvalidInstr, int(kind))
		}
		e.Kind = ExportKind(kind)
		if e.Idx, err = leb128.ReadU32(r); err != nil {
			return err
		}
		m.Exports = append(m.Exports, e)
		m.ExportByName[e.Name] = e
		return nil
	})
	return err
}

func decodeStartSec(m *Module, r *reader.Reader) error {
	idx, err := leb128.ReadU32(r)
	if err != nil {
		return err
	}
	m.HasStart = true
	m.Start = idx
	return nil
}

func decodeElementSec(m *Module, r *reader.Reader) error {
	_, err := readVec(r, func() error {
		var e Element
		var err error
		if e.TableIdx, err = leb128.ReadU32(r); err != nil {
			return err
		}
		if e.Offset, err = readConstExprSpan(r); err != nil {
			return err
		}
		n, err := leb128.ReadU32(r)
		if err != nil {
			return err
		}
		e.FuncIdxs = make([]uint32, n)
		for i := range e.FuncIdxs {
			if e.FuncIdxs[i], err = leb128.ReadU32(r); err != nil {
				return err
			}
		}
		m.Elements = append(m.Elements, e)
		return nil
	})
	return err
}

func decodeCodeSec(m *Module, r *reader.Reader) error {
	_, err := readVec(r, func() error {
		size, err := leb128.ReadU32(r)
		if err != nil {
			return err
		}
		bodyStart := r.Pos()
		locals, err := readLocals(r)
		if err != nil {
			return err
		}
		codeStart := r.Pos()
		codeEnd := bodyStart + size
		if codeEnd < codeStart || codeEnd > r.Len() {
			return wasmerr.NewValidationError(wasmerr.Eof)
		}
		body := reader.Span{Start: codeStart, Len: codeEnd - codeStart}
		r.MoveTo(codeEnd)
		m.Codes = append(m.Codes, Code{Locals: locals, Body: body})
		return nil
	})
	return err
}

func readLocals(r *reader.Reader) ([]LocalEntry, error) {
	n, err := leb128.ReadU32(r)
	if err != nil {
		return nil, err
	}
	locals := make([]LocalEntry, n)
	for i := range locals {
		if locals[i].Count, err = leb128.ReadU32(r); err != nil {
			return nil, err
		}
		if locals[i].ValType, err = readValType(r); err != nil {
			return nil, err
		}
	}
	return locals, nil
}

func decodeDataSec(m *Module, r *reader.Reader) error {
	_, err := readVec(r, func() error {
		memIdx, err := leb128.ReadU32(r)
		if err != nil {
			return err
		}
		offset, err := readConstExprSpan(r)
		if err != nil {
			return err
		}
		n, err := leb128.ReadU32(r)
		if err != nil {
			return err
		}
		init, err := r.ReadBytes(n)
		if err != nil {
			return err
		}
		// ReadBytes returns a sub-slice of the module bytes; copy it so a
		// later data.drop can replace Init without mutating the module.
		own := make([]byte, len(init))
		copy(own, init)
		m.Datas = append(m.Datas, DataSegment{
			Init:   own,
			Mode:   Active,
			MemIdx: memIdx,
			Offset: offset,
		})
		return nil
	})
	return err
}

// readConstExprSpan records the Span of a constant-expression without
// interpreting it: it scans forward to the matching `end` (0x0b) opcode.
// Actual evaluation happens later, in package validate's EvalConstExpr:
// once during validation for type-checking and once at instantiation.
func readConstExprSpan(r *reader.Reader) (reader.Span, error) {
	start := r.Pos()
	for {
		b, err := r.ReadU8()
		if err != nil {
			return reader.Span{}, err
		}
		if b == 0x0b {
			return r.EndSpan(start), nil
		}
		// Skip over any immediate operand bytes so the 0x0b terminator of a
		// f64.const literal (whose bit pattern may itself contain 0x0b) is
		// never mistaken for `end`.
		if err := skipImmediate(r, b); err != nil {
			return reader.Span{}, err
		}
	}
}

// skipImmediate advances r past the immediate operand(s) of the restricted
// set of opcodes the constant-expression grammar allows, so
// readConstExprSpan can scan for `end` without a false match inside a
// literal's byte pattern.
func skipImmediate(r *reader.Reader, op byte) error {
	switch op {
	case 0x41: // i32.const
		_, err := leb128.ReadI32(r)
		return err
	case 0x42: // i64.const
		_, err := leb128.ReadI64(r)
		return err
	case 0x43: // f32.const
		return r.Skip(4)
	case 0x44: // f64.const
		return r.Skip(8)
	case 0x23: // global.get
		_, err := leb128.ReadU32(r)
		return err
	case 0xd0: // ref.null
		_, err := r.ReadU8()
		return err
	case 0xd2: // ref.func
		_, err := leb128.ReadU32(r)
		return err
	default:
		// i32/i64.{add,sub,mul} and any other no-immediate opcode: nothing
		// to skip.
		return nil
	}
}
