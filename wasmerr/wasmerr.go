// Package wasmerr defines the two disjoint error taxonomies used across the
// decoder/validator and the interpreter: validation errors reject a module
// before any Store is allocated, runtime errors abort a single invocation.
package wasmerr

import "fmt"

// ValidationError is returned by validate.Validate. The module is rejected
// and no Store is ever allocated for it.
type ValidationError struct {
	Kind ValidationKind
	// Detail carries the offending byte/id for errors that embed one
	// (InvalidLimitsType(tag), SectionOutOfOrder(id), InvalidInstr(byte)).
	Detail int
}

// ValidationKind enumerates the categories of module rejection.
type ValidationKind int

const (
	InvalidMagic ValidationKind = iota
	InvalidVersion
	InvalidNumType
	InvalidVecType
	InvalidRefType
	InvalidValType
	InvalidFuncType
	InvalidLimitsType
	MemSizeTooBig
	SizeMinIsGreaterThanMax
	MoreThanOneMemory
	MoreThanOneTable
	SectionOutOfOrder
	ExprMissingEnd
	InvalidInstr
	InvalidInitExpr
	StackMismatch
	Eof
	ErrLebOverflow
	InvalidUTF8
	InvalidGlobalIndex
	InvalidFuncIndex
	InvalidTypeIndex
	InvalidMemIndex
	InvalidTableIndex
	InvalidLocalIndex
	InvalidDataIndex
	GlobalIsImmutable
	FuncCodeCountMismatch
	DataSegmentOutOfBounds
)

var validationNames = map[ValidationKind]string{
	InvalidMagic:            "invalid magic number",
	InvalidVersion:          "invalid version number",
	InvalidNumType:          "invalid num type",
	InvalidVecType:          "invalid vec type",
	InvalidRefType:          "invalid ref type",
	InvalidValType:          "invalid value type",
	InvalidFuncType:         "invalid func type",
	InvalidLimitsType:       "invalid limits type",
	MemSizeTooBig:           "memory size too big",
	SizeMinIsGreaterThanMax: "limits min is greater than max",
	MoreThanOneMemory:       "more than one memory",
	MoreThanOneTable:        "more than one table",
	SectionOutOfOrder:       "section out of order",
	ExprMissingEnd:          "constant expression missing end",
	InvalidInstr:            "invalid instruction",
	InvalidInitExpr:         "invalid init expression",
	StackMismatch:           "operand stack mismatch",
	Eof:                     "unexpected end of input",
	ErrLebOverflow:          "leb128 overflow",
	InvalidUTF8:             "invalid utf-8 string",
	InvalidGlobalIndex:      "invalid global index",
	InvalidFuncIndex:        "invalid function index",
	InvalidTypeIndex:        "invalid type index",
	InvalidMemIndex:         "invalid memory index",
	InvalidTableIndex:       "invalid table index",
	InvalidLocalIndex:       "invalid local index",
	InvalidDataIndex:        "invalid data segment index",
	GlobalIsImmutable:       "global is immutable",
	FuncCodeCountMismatch:   "function and code section counts differ",
	DataSegmentOutOfBounds:  "data segment out of bounds",
}

func (e *ValidationError) Error() string {
	name, ok := validationNames[e.Kind]
	if !ok {
		name = "unknown validation error"
	}
	switch e.Kind {
	case InvalidLimitsType, SectionOutOfOrder, InvalidInstr:
		return fmt.Sprintf("wasm: %s (%d)", name, e.Detail)
	default:
		return fmt.Sprintf("wasm: %s", name)
	}
}

// NewValidationError builds a ValidationError with no detail payload.
func NewValidationError(kind ValidationKind) error {
	return &ValidationError{Kind: kind}
}

// NewValidationErrorf builds a ValidationError carrying a detail value, for
// the taxonomy members that embed one (tag byte, section id, opcode byte).
func NewValidationErrorf(kind ValidationKind, detail int) error {
	return &ValidationError{Kind: kind, Detail: detail}
}

// RuntimeError is returned by Invoke. It aborts the current invocation only;
// the Store remains in a well-defined state (writes committed before the
// trap stay observable).
type RuntimeError struct {
	Kind RuntimeKind
}

// RuntimeKind enumerates the categories of trap, plus the gas and
// import-resolution traps the host-embedding layer adds on top of the core
// numeric/memory trap conditions.
type RuntimeKind int

const (
	DivideBy0 RuntimeKind = iota
	UnrepresentableResult
	BadConversionToInteger
	MemoryAccessOutOfBounds
	OutOfGas
	UnresolvedImport
	InternalInvariant
	WrongArgumentCount
)

var runtimeNames = map[RuntimeKind]string{
	DivideBy0:               "integer divide by zero",
	UnrepresentableResult:   "integer overflow",
	BadConversionToInteger:  "invalid conversion to integer",
	MemoryAccessOutOfBounds: "out of bounds memory access",
	OutOfGas:                "out of gas",
	UnresolvedImport:        "call to unresolved import",
	InternalInvariant:       "internal invariant violated",
	WrongArgumentCount:      "wrong number of arguments",
}

func (e *RuntimeError) Error() string {
	if name, ok := runtimeNames[e.Kind]; ok {
		return name
	}
	return "unknown runtime error"
}

// NewRuntimeError builds a RuntimeError for the given trap kind.
func NewRuntimeError(kind RuntimeKind) error {
	return &RuntimeError{Kind: kind}
}

// Sentinel instances for errors.Is-style comparison by callers that only
// care about the trap kind, not the wrapping.
var (
	ErrDivideBy0               = NewRuntimeError(DivideBy0)
	ErrUnrepresentableResult   = NewRuntimeError(UnrepresentableResult)
	ErrBadConversionToInteger  = NewRuntimeError(BadConversionToInteger)
	ErrMemoryAccessOutOfBounds = NewRuntimeError(MemoryAccessOutOfBounds)
	ErrOutOfGas                = NewRuntimeError(OutOfGas)
	ErrUnresolvedImport        = NewRuntimeError(UnresolvedImport)
	ErrInternalInvariant       = NewRuntimeError(InternalInvariant)
	ErrWrongArgumentCount      = NewRuntimeError(WrongArgumentCount)
)

// Is implements errors.Is support so wasmerr.ErrDivideBy0 etc. can be
// compared against errors returned by the interpreter without caring about
// the concrete pointer identity.
func (e *RuntimeError) Is(target error) bool {
	other, ok := target.(*RuntimeError)
	if !ok {
		return false
	}
	return other.Kind == e.Kind
}

// Is implements errors.Is support for ValidationError, analogous to RuntimeError.
func (e *ValidationError) Is(target error) bool {
	other, ok := target.(*ValidationError)
	if !ok {
		return false
	}
	return other.Kind == e.Kind
}
