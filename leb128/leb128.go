// Package leb128 implements the LEB128 variable-length integer encoding used
// throughout the Wasm binary format: 7 bits of payload per byte, a
// continuation bit, sign-extension for the signed variants. An overlong
// encoding is reported as a wasmerr.ValidationError rather than killing the
// embedding process outright.
package leb128

import (
	"github.com/tinywasm/tinywasm/reader"
	"github.com/tinywasm/tinywasm/wasmerr"
)

// maxBytes is the largest number of LEB128 bytes a value of the given bit
// width can legally spend: ceil(width/7), e.g. 5 for 32-bit, 10 for 64-bit.
func maxBytes(width uint32) uint32 {
	return (width + 6) / 7
}

// read is the shared unsigned/signed LEB128 decoder for a value of the given
// bit width. It rejects an encoding that runs past maxBytes(width) bytes.
func read(r *reader.Reader, width uint32, signed bool) (uint64, error) {
	var (
		result uint64
		shift  uint32
		n      uint32
	)
	for {
		b, err := r.ReadU8()
		if err != nil {
			return 0, err
		}
		n++
		result |= uint64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if signed && shift < 64 && b&0x40 != 0 {
				result |= ^uint64(0) << shift
			}
			return result, nil
		}
		if n >= maxBytes(width) {
			return 0, wasmerr.NewValidationError(wasmerr.ErrLebOverflow)
		}
	}
}

// ReadU32 reads an unsigned LEB128-encoded 32-bit integer.
func ReadU32(r *reader.Reader) (uint32, error) {
	v, err := read(r, 32, false)
	return uint32(v), err
}

// ReadI32 reads a signed LEB128-encoded 32-bit integer, sign-extended.
func ReadI32(r *reader.Reader) (int32, error) {
	v, err := read(r, 32, true)
	return int32(v), err
}

// ReadU64 reads an unsigned LEB128-encoded 64-bit integer.
func ReadU64(r *reader.Reader) (uint64, error) {
	return read(r, 64, false)
}

// ReadI64 reads a signed LEB128-encoded 64-bit integer, sign-extended.
func ReadI64(r *reader.Reader) (int64, error) {
	v, err := read(r, 64, true)
	return int64(v), err
}

// AppendU32 encodes v as unsigned LEB128, appending to buf. Used by tests
// that need to construct synthetic module bytes.
func AppendU32(buf []byte, v uint32) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf = append(buf, b)
		if v == 0 {
			return buf
		}
	}
}

// AppendI32 encodes v as signed LEB128, appending to buf.
func AppendI32(buf []byte, v int32) []byte {
	more := true
	val := int64(v)
	for more {
		b := byte(val & 0x7f)
		val >>= 7
		if (val == 0 && b&0x40 == 0) || (val == -1 && b&0x40 != 0) {
			more = false
		} else {
			b |= 0x80
		}
		buf = append(buf, b)
	}
	return buf
}
