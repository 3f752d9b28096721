package interpreter

import (
	"fmt"

	"github.com/sigilvm/sigil/internal/arith"
	"github.com/sigilvm/sigil/wasm"
)

// execWide handles the 128-bit arithmetic operators. A 128-bit value
// occupies two stack slots, low half pushed first.
func (fr *frame) execWide(op wasm.Opcode) {
	switch op {
	case wasm.OpcodeI64Add128:
		hiB, loB := fr.pop(), fr.pop()
		hiA, loA := fr.pop(), fr.pop()
		lo, hi := arith.Add128(loA, hiA, loB, hiB)
		fr.push(lo)
		fr.push(hi)
	case wasm.OpcodeI64Sub128:
		hiB, loB := fr.pop(), fr.pop()
		hiA, loA := fr.pop(), fr.pop()
		lo, hi := arith.Sub128(loA, hiA, loB, hiB)
		fr.push(lo)
		fr.push(hi)
	case wasm.OpcodeI64MulWideS:
		b, a := int64(fr.pop()), int64(fr.pop())
		lo, hi := arith.MulWideS(a, b)
		fr.push(lo)
		fr.push(hi)
	case wasm.OpcodeI64MulWideU:
		b, a := fr.pop(), fr.pop()
		lo, hi := arith.MulWideU(a, b)
		fr.push(lo)
		fr.push(hi)
	default:
		// The dispatch loop routes anything it does not recognize here;
		// an opcode the decoder never emits is a bug, not a trap.
		panic(fmt.Sprintf("unhandled opcode 0x%x", byte(op)))
	}
}
