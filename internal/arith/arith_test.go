package arith

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pairs used as operands by the property tests below. Chosen to cover both
// signs, word boundaries and carry/borrow edges.
var samples = []struct{ lo, hi uint64 }{
	{0, 0},
	{1, 0},
	{0, 1},
	{0xffffffffffffffff, 0xffffffffffffffff}, // -1
	{0xffffffffffffffff, 0},                  // 2^64-1
	{0, 0xffffffffffffffff},
	{0x8000000000000000, 0},
	{0, 0x8000000000000000}, // 128-bit min
	{0xdeadbeefcafebabe, 0x0123456789abcdef},
	{0x0000000100000000, 0x00000000ffffffff},
}

func TestAdd128(t *testing.T) {
	for _, c := range []struct {
		loA, hiA, loB, hiB uint64
		expLo, expHi       uint64
	}{
		{0, 0, 0, 0, 0, 0},
		{1, 0, 1, 0, 2, 0},
		// Carry out of the low word.
		{0xffffffffffffffff, 0, 1, 0, 0, 1},
		// 1 + (-1) == 0 in 128-bit two's complement.
		{1, 0, 0xffffffffffffffff, 0xffffffffffffffff, 0, 0},
		// (1,1) + (-1,-1): low wraps to 0 with carry, high 1-1+1 = 1.
		{1, 1, 0xffffffffffffffff, 0xffffffffffffffff, 0, 1},
		// Wrap of the whole 128-bit range.
		{0xffffffffffffffff, 0xffffffffffffffff, 1, 0, 0, 0},
	} {
		lo, hi := Add128(c.loA, c.hiA, c.loB, c.hiB)
		assert.Equal(t, c.expLo, lo)
		assert.Equal(t, c.expHi, hi)
	}
}

func TestSub128(t *testing.T) {
	for _, c := range []struct {
		loA, hiA, loB, hiB uint64
		expLo, expHi       uint64
	}{
		{0, 0, 0, 0, 0, 0},
		{2, 0, 1, 0, 1, 0},
		// Borrow out of the low word.
		{0, 1, 1, 0, 0xffffffffffffffff, 0},
		// 0 - 1 == -1.
		{0, 0, 1, 0, 0xffffffffffffffff, 0xffffffffffffffff},
	} {
		lo, hi := Sub128(c.loA, c.hiA, c.loB, c.hiB)
		assert.Equal(t, c.expLo, lo)
		assert.Equal(t, c.expHi, hi)
	}
}

// Adding then subtracting the same operand recovers the original pair.
func TestAdd128Sub128RoundTrip(t *testing.T) {
	for _, a := range samples {
		for _, b := range samples {
			lo, hi := Add128(a.lo, a.hi, b.lo, b.hi)
			lo, hi = Sub128(lo, hi, b.lo, b.hi)
			require.Equal(t, a.lo, lo)
			require.Equal(t, a.hi, hi)
		}
	}
}

func TestMulWideU(t *testing.T) {
	for _, c := range []struct {
		a, b         uint64
		expLo, expHi uint64
	}{
		{0, 0, 0, 0},
		{1, 1, 1, 0},
		{0xffffffffffffffff, 2, 0xfffffffffffffffe, 1},
		{0xffffffffffffffff, 0xffffffffffffffff, 1, 0xfffffffffffffffe},
		{1 << 32, 1 << 32, 0, 1},
	} {
		lo, hi := MulWideU(c.a, c.b)
		assert.Equal(t, c.expLo, lo)
		assert.Equal(t, c.expHi, hi)
	}
}

func TestMulWideUCommutative(t *testing.T) {
	for _, a := range samples {
		for _, b := range samples {
			lo1, hi1 := MulWideU(a.lo, b.lo)
			lo2, hi2 := MulWideU(b.lo, a.lo)
			require.Equal(t, lo1, lo2)
			require.Equal(t, hi1, hi2)
		}
	}
}

func TestMulWideS(t *testing.T) {
	for _, c := range []struct {
		a, b         int64
		expLo, expHi uint64
	}{
		{0, 0, 0, 0},
		{1, 1, 1, 0},
		{-1, -1, 1, 0},
		{-1, 1, 0xffffffffffffffff, 0xffffffffffffffff},
		{-2, 3, 0xfffffffffffffffa, 0xffffffffffffffff},
		{-9223372036854775808, -1, 0x8000000000000000, 0},
		{-9223372036854775808, 2, 0, 0xffffffffffffffff},
		{4294967296, 4294967296, 0, 1},
	} {
		lo, hi := MulWideS(c.a, c.b)
		assert.Equal(t, c.expLo, lo, "a=%d b=%d", c.a, c.b)
		assert.Equal(t, c.expHi, hi, "a=%d b=%d", c.a, c.b)
	}
}

// Multiplying by one yields the value with its sign extension as the high
// word.
func TestMulWideSIdentity(t *testing.T) {
	for _, s := range samples {
		a := int64(s.lo)
		lo, hi := MulWideS(a, 1)
		require.Equal(t, uint64(a), lo)
		if a < 0 {
			require.Equal(t, uint64(0xffffffffffffffff), hi)
		} else {
			require.Equal(t, uint64(0), hi)
		}
	}
}
