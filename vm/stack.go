package vm

import (
	"github.com/tinywasm/tinywasm/validate"
	"github.com/tinywasm/tinywasm/wasmerr"
)

// Stack is the operand stack one function activation pushes and pops
// values from while it runs. Each call gets its own Stack; results are
// passed back to the caller explicitly rather than shared across frames.
type Stack struct {
	vals []validate.Value
}

func (s *Stack) push(v validate.Value) {
	s.vals = append(s.vals, v)
}

func (s *Stack) pop() (validate.Value, error) {
	if len(s.vals) == 0 {
		return validate.Value{}, wasmerr.NewRuntimeError(wasmerr.InternalInvariant)
	}
	v := s.vals[len(s.vals)-1]
	s.vals = s.vals[:len(s.vals)-1]
	return v, nil
}

func (s *Stack) popN(n int) ([]validate.Value, error) {
	if len(s.vals) < n {
		return nil, wasmerr.NewRuntimeError(wasmerr.InternalInvariant)
	}
	vs := make([]validate.Value, n)
	copy(vs, s.vals[len(s.vals)-n:])
	s.vals = s.vals[:len(s.vals)-n]
	return vs, nil
}

// Depth reports the current number of values on the stack. Exposed mainly
// for tests that assert an invocation leaves the stack exactly balanced.
func (s *Stack) Depth() int { return len(s.vals) }

// Reset empties the stack, for tests that reuse one across cases.
func (s *Stack) Reset() { s.vals = s.vals[:0] }
