package vm

import (
	"github.com/tinywasm/tinywasm/opcode"
	"github.com/tinywasm/tinywasm/wasmerr"
)

// Gas tracks how much of a RuntimeInstance's metering budget an invocation
// has used against its limit.
type Gas struct {
	Used  uint64
	Limit uint64
}

// charge adds cost to Used and traps with OutOfGas once Limit is exceeded.
// A zero Limit means unmetered.
func (g *Gas) charge(cost uint64) error {
	if g.Limit == 0 {
		return nil
	}
	g.Used += cost
	if g.Used > g.Limit {
		return wasmerr.NewRuntimeError(wasmerr.OutOfGas)
	}
	return nil
}

// GasPolicy prices every opcode the interpreter dispatches and every page a
// memory.grow allocates.
type GasPolicy interface {
	GetCostForOp(op opcode.Opcode) uint64
	GetCostForMalloc(pages int) uint64
}

// FreeGasPolicy charges nothing; paired with a zero Limit it's the default
// an instance runs with when no WithGasPolicy option is given.
type FreeGasPolicy struct{}

func (p *FreeGasPolicy) GetCostForOp(op opcode.Opcode) uint64 { return 0 }
func (p *FreeGasPolicy) GetCostForMalloc(pages int) uint64    { return 0 }

// SimpleGasPolicy charges a flat 1 gas per opcode and 1024 gas per page
// grown.
type SimpleGasPolicy struct{}

func (p *SimpleGasPolicy) GetCostForOp(op opcode.Opcode) uint64 { return 1 }
func (p *SimpleGasPolicy) GetCostForMalloc(pages int) uint64    { return uint64(pages) * 1024 }
