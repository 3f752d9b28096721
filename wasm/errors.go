package wasm

import (
	"errors"
	"fmt"
)

var ErrCustomSectionNotFound = errors.New("custom section not found")

// LinkErrorKind classifies why an import failed to resolve.
type LinkErrorKind byte

const (
	// LinkErrUnknownImport: the registry has no item under the imported
	// module/item name.
	LinkErrUnknownImport LinkErrorKind = iota
	// LinkErrTypeMismatch: the item exists but its kind or type differs
	// from the declared import type.
	LinkErrTypeMismatch
	// LinkErrLimitsMismatch: a table or memory exists with the right type
	// but its actual limits cannot satisfy the declared ones.
	LinkErrLimitsMismatch
	// LinkErrMutabilityMismatch: a global exists with the right value type
	// but the wrong mutability.
	LinkErrMutabilityMismatch
)

// LinkError reports a failed import resolution. Expected and Found carry
// the rendered descriptions verbatim; the Error string shapes are a
// compatibility contract with external test harnesses and must not be
// rephrased.
type LinkError struct {
	ModuleName, ItemName string
	Kind                 LinkErrorKind
	Expected, Found      string
}

func (e *LinkError) Error() string {
	switch e.Kind {
	case LinkErrUnknownImport:
		return fmt.Sprintf("unknown import `%s::%s`", e.ModuleName, e.ItemName)
	case LinkErrLimitsMismatch:
		return fmt.Sprintf("import `%s::%s`: expected %s doesn't match provided %s",
			e.ModuleName, e.ItemName, e.Expected, e.Found)
	default:
		return fmt.Sprintf("import `%s::%s`: expected %s, found %s",
			e.ModuleName, e.ItemName, e.Expected, e.Found)
	}
}

// TrapCode identifies why execution (or instantiation-time segment
// evaluation) aborted.
type TrapCode byte

const (
	TrapCodeUnreachable TrapCode = iota
	TrapCodeOutOfBoundsMemoryAccess
	TrapCodeIntegerDivideByZero
	TrapCodeIntegerOverflow
	TrapCodeInvalidConversionToInteger
	TrapCodeUninitializedTableElement
	TrapCodeIndirectCallTypeMismatch
	TrapCodeStackOverflow
	// Instantiation-time codes.
	TrapCodeOutOfBoundsDataSegment
	TrapCodeOutOfBoundsElementSegment
)

func (c TrapCode) String() string {
	switch c {
	case TrapCodeUnreachable:
		return "unreachable"
	case TrapCodeOutOfBoundsMemoryAccess:
		return "out of bounds memory access"
	case TrapCodeIntegerDivideByZero:
		return "integer divide by zero"
	case TrapCodeIntegerOverflow:
		return "integer overflow"
	case TrapCodeInvalidConversionToInteger:
		return "invalid conversion to integer"
	case TrapCodeUninitializedTableElement:
		return "uninitialized table element"
	case TrapCodeIndirectCallTypeMismatch:
		return "indirect call type mismatch"
	case TrapCodeStackOverflow:
		return "call stack overflow"
	case TrapCodeOutOfBoundsDataSegment:
		return "out of bounds data segment"
	case TrapCodeOutOfBoundsElementSegment:
		return "out of bounds element segment"
	default:
		return "unknown trap"
	}
}

// Trap is a terminal execution error. It aborts the current host-level
// invocation (or instantiation attempt) but never poisons instance state:
// memory, table and global contents as of just before the trapping
// instruction remain valid.
type Trap struct {
	Code TrapCode
}

func NewTrap(code TrapCode) *Trap {
	return &Trap{Code: code}
}

func (t *Trap) Error() string {
	return "wasm trap: " + t.Code.String()
}
