package vm

import "github.com/tinywasm/tinywasm/validate"

// HostFunc is a host-provided implementation of an imported function: it
// receives the call's argument values and returns result values, or an
// error to abort the invocation.
type HostFunc func(args []validate.Value) ([]validate.Value, error)

// HostResolver looks up the host implementation of an imported function by
// its (module, field) name pair. call traps with wasmerr.UnresolvedImport
// when a resolver is nil, or returns false, or the module never declares
// one — a library must never panic on a caller-supplied module.
type HostResolver interface {
	ResolveFunc(module, field string) (HostFunc, bool)
}

// MapResolver is the simplest HostResolver: a flat module/field lookup
// table, convenient for tests and embedders. cmd/tinywasm does not install
// one, so imported functions trap there when called.
type MapResolver map[string]map[string]HostFunc

func (m MapResolver) ResolveFunc(module, field string) (HostFunc, bool) {
	fns, ok := m[module]
	if !ok {
		return nil, false
	}
	fn, ok := fns[field]
	return fn, ok
}
