package leb128

import (
	"testing"

	"github.com/tinywasm/tinywasm/reader"
)

func TestU32RoundTrip(t *testing.T) {
	cases := []uint32{0, 1, 127, 128, 300, 1 << 20, 1<<32 - 1}
	for _, v := range cases {
		buf := AppendU32(nil, v)
		got, err := ReadU32(reader.New(buf))
		if err != nil {
			t.Fatalf("ReadU32(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("round trip %d: got %d", v, got)
		}
	}
}

func TestI32RoundTrip(t *testing.T) {
	cases := []int32{0, 1, -1, 127, -128, 1 << 20, -(1 << 20), 1<<31 - 1, -(1 << 31)}
	for _, v := range cases {
		buf := AppendI32(nil, v)
		got, err := ReadI32(reader.New(buf))
		if err != nil {
			t.Fatalf("ReadI32(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("round trip %d: got %d", v, got)
		}
	}
}

func TestU32OverlongOverflow(t *testing.T) {
	// Six bytes for a 32-bit value is one more than the five-byte maximum.
	buf := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}
	if _, err := ReadU32(reader.New(buf)); err == nil {
		t.Fatal("expected overlong leb128 to be rejected")
	}
}

func TestReadU64(t *testing.T) {
	// 300 encoded as two LEB128 bytes: 0xac 0x02.
	buf := []byte{0xac, 0x02}
	v, err := ReadU64(reader.New(buf))
	if err != nil {
		t.Fatalf("ReadU64: %v", err)
	}
	if v != 300 {
		t.Errorf("got %d, want 300", v)
	}
}
