package wasm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLinkErrorMessages(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  *LinkError
		exp  string
	}{
		{
			name: "unknown import",
			err:  &LinkError{ModuleName: "m", ItemName: "g", Kind: LinkErrUnknownImport},
			exp:  "unknown import `m::g`",
		},
		{
			name: "type mismatch",
			err: &LinkError{
				ModuleName: "m", ItemName: "g", Kind: LinkErrTypeMismatch,
				Expected: "global of type `i64`", Found: "global of type `i32`",
			},
			exp: "import `m::g`: expected global of type `i64`, found global of type `i32`",
		},
		{
			name: "mutability mismatch",
			err: &LinkError{
				ModuleName: "m", ItemName: "g", Kind: LinkErrMutabilityMismatch,
				Expected: "global of type `mut i32`", Found: "global of type `i32`",
			},
			exp: "import `m::g`: expected global of type `mut i32`, found global of type `i32`",
		},
		{
			name: "limits mismatch",
			err: &LinkError{
				ModuleName: "m", ItemName: "g", Kind: LinkErrLimitsMismatch,
				Expected: "table limits (min: 1, max: none)",
				Found:    "table limits (min: 0, max: none)",
			},
			exp: "import `m::g`: expected table limits (min: 1, max: none) doesn't match provided table limits (min: 0, max: none)",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.EqualError(t, tc.err, tc.exp)
		})
	}
}

func TestTrapError(t *testing.T) {
	assert.EqualError(t, NewTrap(TrapCodeUnreachable), "wasm trap: unreachable")
	assert.EqualError(t, NewTrap(TrapCodeOutOfBoundsMemoryAccess), "wasm trap: out of bounds memory access")
	assert.EqualError(t, NewTrap(TrapCodeIntegerDivideByZero), "wasm trap: integer divide by zero")
	assert.EqualError(t, NewTrap(TrapCodeStackOverflow), "wasm trap: call stack overflow")
	assert.EqualError(t, NewTrap(TrapCodeIndirectCallTypeMismatch), "wasm trap: indirect call type mismatch")
}
