// Package arith implements 128-bit integer arithmetic over pairs of 64-bit
// words. Results follow two's-complement semantics for signed operations and
// modulo-2^128 semantics for unsigned ones.
package arith

import "math/bits"

// Add128 adds two 128-bit values given as (low, high) word pairs. The carry
// out of the low-word addition propagates into the high word; the overall
// result wraps modulo 2^128.
func Add128(loA, hiA, loB, hiB uint64) (lo, hi uint64) {
	lo, carry := bits.Add64(loA, loB, 0)
	hi, _ = bits.Add64(hiA, hiB, carry)
	return
}

// Sub128 subtracts the 128-bit value (loB, hiB) from (loA, hiA), with the
// borrow out of the low-word subtraction propagating into the high word.
func Sub128(loA, hiA, loB, hiB uint64) (lo, hi uint64) {
	lo, borrow := bits.Sub64(loA, loB, 0)
	hi, _ = bits.Sub64(hiA, hiB, borrow)
	return
}

// MulWideU multiplies two unsigned 64-bit values into a full 128-bit
// product.
func MulWideU(a, b uint64) (lo, hi uint64) {
	hi, lo = bits.Mul64(a, b)
	return
}

// MulWideS multiplies two signed 64-bit values into a full 128-bit
// two's-complement product. The unsigned product's high word is corrected
// for each negative operand: (a - 2^64*sa)(b - 2^64*sb) leaves the low word
// untouched and subtracts sa*b + sb*a from the high word.
func MulWideS(a, b int64) (lo, hi uint64) {
	lo, hi = MulWideU(uint64(a), uint64(b))
	if a < 0 {
		hi -= uint64(b)
	}
	if b < 0 {
		hi -= uint64(a)
	}
	return
}
