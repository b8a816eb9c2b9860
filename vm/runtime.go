package vm

import (
	"github.com/tinywasm/tinywasm/validate"
	"github.com/tinywasm/tinywasm/wasm"
	"github.com/tinywasm/tinywasm/wasmerr"
)

// RuntimeInstance ties a Store to the interpreter and gas configuration that
// runs against it: one RuntimeInstance per instantiated module, built once
// via NewRuntimeInstance and then invoked any number of times through
// Invoke.
type RuntimeInstance struct {
	info   *validate.ValidationInfo
	store  *Store
	interp *Interp
}

// Option configures a RuntimeInstance at construction time.
type Option func(*options)

type options struct {
	policy   GasPolicy
	limit    uint64
	resolver HostResolver
}

// WithGasPolicy selects the cost model charged per instruction and per
// memory.grow page. The default is FreeGasPolicy (metering disabled).
func WithGasPolicy(p GasPolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithGasLimit sets the total gas budget for every Invoke call this instance
// makes. A limit of 0 (the default) disables metering regardless of policy.
func WithGasLimit(limit uint64) Option {
	return func(o *options) { o.limit = limit }
}

// WithHostResolver supplies the host functions imported modules call into.
// An import with no matching entry traps with UnresolvedImport at call time
// rather than failing instantiation.
func WithHostResolver(r HostResolver) Option {
	return func(o *options) { o.resolver = r }
}

// NewRuntimeInstance instantiates a validated module (allocating its Store)
// and, if the module declares a start function, invokes it immediately —
// matching the Wasm instantiation algorithm's final step.
func NewRuntimeInstance(info *validate.ValidationInfo, opts ...Option) (*RuntimeInstance, error) {
	o := &options{policy: &FreeGasPolicy{}}
	for _, opt := range opts {
		opt(o)
	}

	store, err := NewStore(info, o.resolver)
	if err != nil {
		return nil, err
	}

	ri := &RuntimeInstance{
		info:   info,
		store:  store,
		interp: newInterp(store, o.policy, o.limit, o.resolver),
	}

	if info.HasStart {
		if _, err := ri.interp.callFunc(info.Start, nil); err != nil {
			return nil, err
		}
	}

	return ri, nil
}

// GetFunctionByName looks up an exported function by name, returning its
// index into the function space and whether the export exists and is
// actually a function (not a memory/global/table export of the same name).
func (ri *RuntimeInstance) GetFunctionByName(name string) (uint32, bool) {
	exp, ok := ri.info.ExportByName[name]
	if !ok || exp.Kind != wasm.ExportFunc {
		return 0, false
	}
	return exp.Idx, true
}

// Invoke calls the function at funcIdx with args, validating arity and
// argument types before entering the interpreter — a caller-supplied
// mismatch traps with WrongArgumentCount rather than corrupting the operand
// stack the way a validated `call` instruction never can.
func (ri *RuntimeInstance) Invoke(funcIdx uint32, args ...validate.Value) ([]validate.Value, error) {
	if int(funcIdx) >= len(ri.store.Funcs) {
		return nil, wasmerr.NewRuntimeError(wasmerr.InternalInvariant)
	}
	fn := &ri.store.Funcs[funcIdx]
	if len(args) != len(fn.Type.Params) {
		return nil, wasmerr.NewRuntimeError(wasmerr.WrongArgumentCount)
	}
	for i, a := range args {
		if a.Type != fn.Type.Params[i] {
			return nil, wasmerr.NewRuntimeError(wasmerr.WrongArgumentCount)
		}
	}
	return ri.interp.callFunc(funcIdx, args)
}

// GasUsed reports the cumulative gas charged across every Invoke call this
// instance has made so far.
func (ri *RuntimeInstance) GasUsed() uint64 {
	return ri.interp.gas.Used
}
