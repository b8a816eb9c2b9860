// Package reader implements the primitive cursor over a Wasm module's bytes:
// single-byte reads, fixed-width little-endian reads, and the Span bookkeeping
// the validator uses to remember sub-slices of the module without copying.
package reader

import (
	"encoding/binary"

	"github.com/tinywasm/tinywasm/wasmerr"
)

// Span is a (start, length) pair into the module byte slice. Spans let the
// validator remember a function body or a constant-expression without
// copying; a Span never carries the bytes themselves.
type Span struct {
	Start uint32
	Len   uint32
}

// End returns the first offset past the span.
func (s Span) End() uint32 { return s.Start + s.Len }

// Reader is a cursor over an immutable byte slice.
type Reader struct {
	b   []byte
	pos uint32
}

// New wraps b in a Reader starting at offset 0.
func New(b []byte) *Reader {
	return &Reader{b: b}
}

// Bytes returns the full underlying slice the Reader was built from.
func (r *Reader) Bytes() []byte { return r.b }

// Pos returns the current cursor offset.
func (r *Reader) Pos() uint32 { return r.pos }

// Len returns the total length of the underlying slice.
func (r *Reader) Len() uint32 { return uint32(len(r.b)) }

// Remaining reports how many bytes are left to read.
func (r *Reader) Remaining() uint32 { return r.Len() - r.pos }

// Slice returns the bytes covered by span, without copying.
func (r *Reader) Slice(span Span) []byte {
	return r.b[span.Start:span.End()]
}

// MoveTo sets the cursor to an absolute offset, e.g. to jump into a function
// body or a constant-expression span.
func (r *Reader) MoveTo(pos uint32) {
	r.pos = pos
}

// Skip advances the cursor by n bytes without reading them.
func (r *Reader) Skip(n uint32) error {
	if r.pos+n > r.Len() || r.pos+n < r.pos {
		return wasmerr.NewValidationError(wasmerr.Eof)
	}
	r.pos += n
	return nil
}

// ReadU8 reads and consumes a single byte.
func (r *Reader) ReadU8() (byte, error) {
	if r.pos >= r.Len() {
		return 0, wasmerr.NewValidationError(wasmerr.Eof)
	}
	b := r.b[r.pos]
	r.pos++
	return b, nil
}

// PeekU8 reads the next byte without consuming it.
func (r *Reader) PeekU8() (byte, error) {
	if r.pos >= r.Len() {
		return 0, wasmerr.NewValidationError(wasmerr.Eof)
	}
	return r.b[r.pos], nil
}

// ReadBytes reads a fixed-width run of n bytes.
func (r *Reader) ReadBytes(n uint32) ([]byte, error) {
	if r.pos+n > r.Len() || r.pos+n < r.pos {
		return nil, wasmerr.NewValidationError(wasmerr.Eof)
	}
	b := r.b[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadU32LE reads a 4-byte little-endian unsigned integer (used for the Wasm
// magic/version header and for f32 literal bit patterns).
func (r *Reader) ReadU32LE() (uint32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadU64LE reads an 8-byte little-endian unsigned integer (f64 literal bit
// patterns).
func (r *Reader) ReadU64LE() (uint64, error) {
	b, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// StartSpan begins recording a Span at the current position; pair with EndSpan.
func (r *Reader) StartSpan() uint32 {
	return r.pos
}

// EndSpan closes a Span started at `start`, running up to (not including)
// the current cursor position.
func (r *Reader) EndSpan(start uint32) Span {
	return Span{Start: start, Len: r.pos - start}
}
