package vm_test

import (
	"testing"

	"github.com/tinywasm/tinywasm/leb128"
	"github.com/tinywasm/tinywasm/validate"
	"github.com/tinywasm/tinywasm/vm"
	"github.com/tinywasm/tinywasm/wasm"
)

// The tests in this file hand-assemble minimal .wasm binaries byte by byte
// rather than loading checked-in binary fixtures, since no wat2wasm
// toolchain is available to produce them.

func section(id byte, body []byte) []byte {
	out := []byte{id}
	out = leb128.AppendU32(out, uint32(len(body)))
	return append(out, body...)
}

func vecLen(n int) []byte {
	return leb128.AppendU32(nil, uint32(n))
}

func name(s string) []byte {
	return append(vecLen(len(s)), []byte(s)...)
}

// buildModule assembles a module exporting:
//   add(i32, i32) -> i32            : i32.add of its two params
//   memtest() -> i32                : stores 42 at address 0, loads it back
//   addone(i32) -> i32              : calls add(x, 1)
func buildModule() []byte {
	m := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	var typeBody []byte
	typeBody = append(typeBody, vecLen(3)...)
	typeBody = append(typeBody, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f) // type0: (i32,i32)->i32
	typeBody = append(typeBody, 0x60, 0x00, 0x01, 0x7f)             // type1: ()->i32
	typeBody = append(typeBody, 0x60, 0x01, 0x7f, 0x01, 0x7f)       // type2: (i32)->i32
	m = append(m, section(1, typeBody)...)

	funcBody := append(vecLen(3), 0x00, 0x01, 0x02)
	m = append(m, section(3, funcBody)...)

	memBody := append(vecLen(1), 0x00, 0x01) // one memory, min 1 page, no max
	m = append(m, section(5, memBody)...)

	var exportBody []byte
	exportBody = append(exportBody, vecLen(3)...)
	exportBody = append(exportBody, name("add")...)
	exportBody = append(exportBody, 0x00, 0x00)
	exportBody = append(exportBody, name("memtest")...)
	exportBody = append(exportBody, 0x00, 0x01)
	exportBody = append(exportBody, name("addone")...)
	exportBody = append(exportBody, 0x00, 0x02)
	m = append(m, section(7, exportBody)...)

	addBody := append([]byte{0x00}, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b)

	var memtestBody []byte
	memtestBody = append(memtestBody, 0x00) // 0 local entries
	memtestBody = append(memtestBody, 0x41)
	memtestBody = append(memtestBody, leb128.AppendI32(nil, 0)...) // i32.const 0 (addr)
	memtestBody = append(memtestBody, 0x41)
	memtestBody = append(memtestBody, leb128.AppendI32(nil, 42)...) // i32.const 42 (value)
	memtestBody = append(memtestBody, 0x36, 0x02, 0x00)             // i32.store align=2 offset=0
	memtestBody = append(memtestBody, 0x41)
	memtestBody = append(memtestBody, leb128.AppendI32(nil, 0)...) // i32.const 0 (addr)
	memtestBody = append(memtestBody, 0x28, 0x02, 0x00)            // i32.load align=2 offset=0
	memtestBody = append(memtestBody, 0x0b)

	var addoneBody []byte
	addoneBody = append(addoneBody, 0x00) // 0 local entries
	addoneBody = append(addoneBody, 0x20, 0x00)
	addoneBody = append(addoneBody, 0x41)
	addoneBody = append(addoneBody, leb128.AppendI32(nil, 1)...)
	addoneBody = append(addoneBody, 0x10) // call
	addoneBody = append(addoneBody, leb128.AppendU32(nil, 0)...)
	addoneBody = append(addoneBody, 0x0b)

	var codeBody []byte
	codeBody = append(codeBody, vecLen(3)...)
	for _, b := range [][]byte{addBody, memtestBody, addoneBody} {
		codeBody = append(codeBody, leb128.AppendU32(nil, uint32(len(b)))...)
		codeBody = append(codeBody, b...)
	}
	m = append(m, section(10, codeBody)...)

	return m
}

func mustInstantiate(t *testing.T) *vm.RuntimeInstance {
	t.Helper()
	info, err := validate.Validate(buildModule())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	ri, err := vm.NewRuntimeInstance(info)
	if err != nil {
		t.Fatalf("NewRuntimeInstance: %v", err)
	}
	return ri
}

func TestInvokeAdd(t *testing.T) {
	ri := mustInstantiate(t)
	idx, ok := ri.GetFunctionByName("add")
	if !ok {
		t.Fatal("add export not found")
	}
	res, err := ri.Invoke(idx,
		validate.Value{Type: wasm.I32, Bits: uint64(uint32(3))},
		validate.Value{Type: wasm.I32, Bits: uint64(uint32(4))},
	)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(res) != 1 || int32(uint32(res[0].Bits)) != 7 {
		t.Fatalf("expected [7], got %v", res)
	}
}

func TestInvokeMemtest(t *testing.T) {
	ri := mustInstantiate(t)
	idx, ok := ri.GetFunctionByName("memtest")
	if !ok {
		t.Fatal("memtest export not found")
	}
	res, err := ri.Invoke(idx)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(res) != 1 || int32(uint32(res[0].Bits)) != 42 {
		t.Fatalf("expected [42], got %v", res)
	}
}

func TestInvokeCallsAnotherFunction(t *testing.T) {
	ri := mustInstantiate(t)
	idx, ok := ri.GetFunctionByName("addone")
	if !ok {
		t.Fatal("addone export not found")
	}
	res, err := ri.Invoke(idx, validate.Value{Type: wasm.I32, Bits: uint64(uint32(9))})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(res) != 1 || int32(uint32(res[0].Bits)) != 10 {
		t.Fatalf("expected [10], got %v", res)
	}
}

func TestInvokeWrongArgumentCount(t *testing.T) {
	ri := mustInstantiate(t)
	idx, _ := ri.GetFunctionByName("add")
	_, err := ri.Invoke(idx, validate.Value{Type: wasm.I32, Bits: 1})
	if err == nil {
		t.Fatal("expected WrongArgumentCount trap")
	}
}

func TestGasExhaustion(t *testing.T) {
	info, err := validate.Validate(buildModule())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	ri, err := vm.NewRuntimeInstance(info, vm.WithGasPolicy(&vm.SimpleGasPolicy{}), vm.WithGasLimit(1))
	if err != nil {
		t.Fatalf("NewRuntimeInstance: %v", err)
	}
	idx, _ := ri.GetFunctionByName("add")
	_, err = ri.Invoke(idx,
		validate.Value{Type: wasm.I32, Bits: 1},
		validate.Value{Type: wasm.I32, Bits: 1},
	)
	if err == nil {
		t.Fatal("expected out-of-gas trap with a 1-unit budget")
	}
}
