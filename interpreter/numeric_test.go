package interpreter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigilvm/sigil/wasm"
)

// evalI32 runs one binary i32 operator over the given operands.
func evalI32(op wasm.Opcode, a, b int32) uint64 {
	fr := &frame{}
	fr.pushI32(a)
	fr.pushI32(b)
	fr.execNumeric(op)
	return fr.pop()
}

func evalI64(op wasm.Opcode, a, b int64) uint64 {
	fr := &frame{}
	fr.push(uint64(a))
	fr.push(uint64(b))
	fr.execNumeric(op)
	return fr.pop()
}

// i64Bits widens a signed value to its stack representation.
func i64Bits(v int64) uint64 { return uint64(v) }

func requirePanicsWithTrap(t *testing.T, code wasm.TrapCode, fn func()) {
	t.Helper()
	defer func() {
		trap, ok := recover().(*wasm.Trap)
		require.True(t, ok, "expected a trap")
		require.Equal(t, code, trap.Code)
	}()
	fn()
}

func TestI32Arithmetic(t *testing.T) {
	assert.Equal(t, uint64(25), evalI32(wasm.OpcodeI32Add, 24, 1))
	assert.Equal(t, i64Bits(-5), evalI32(wasm.OpcodeI32Sub, 5, 10))
	assert.Equal(t, uint64(50), evalI32(wasm.OpcodeI32Mul, 5, 10))

	// Wraparound re-extends the sign on the stack.
	assert.Equal(t, i64Bits(math.MinInt32),
		evalI32(wasm.OpcodeI32Add, math.MaxInt32, 1))
}

func TestI32Division(t *testing.T) {
	assert.Equal(t, i64Bits(-3), evalI32(wasm.OpcodeI32DivS, 7, -2))
	assert.Equal(t, uint64(3), evalI32(wasm.OpcodeI32DivU, 7, 2))
	assert.Equal(t, uint64(1), evalI32(wasm.OpcodeI32RemS, 7, -2))
	assert.Equal(t, uint64(1), evalI32(wasm.OpcodeI32RemU, 7, 2))

	// -7 divu 2: the dividend reads as a large unsigned value.
	assert.Equal(t, uint64(int64(int32(0x7ffffffc))),
		evalI32(wasm.OpcodeI32DivU, -7, 2))

	requirePanicsWithTrap(t, wasm.TrapCodeIntegerDivideByZero, func() {
		evalI32(wasm.OpcodeI32DivS, 1, 0)
	})
	requirePanicsWithTrap(t, wasm.TrapCodeIntegerDivideByZero, func() {
		evalI32(wasm.OpcodeI32RemU, 1, 0)
	})
	requirePanicsWithTrap(t, wasm.TrapCodeIntegerOverflow, func() {
		evalI32(wasm.OpcodeI32DivS, math.MinInt32, -1)
	})
	// rem_s of the same pair is defined as zero, not a trap.
	assert.Equal(t, uint64(0), evalI32(wasm.OpcodeI32RemS, math.MinInt32, -1))
}

func TestI64Division(t *testing.T) {
	assert.Equal(t, uint64(3), evalI64(wasm.OpcodeI64DivU, 7, 2))
	requirePanicsWithTrap(t, wasm.TrapCodeIntegerDivideByZero, func() {
		evalI64(wasm.OpcodeI64DivS, 1, 0)
	})
	requirePanicsWithTrap(t, wasm.TrapCodeIntegerOverflow, func() {
		evalI64(wasm.OpcodeI64DivS, math.MinInt64, -1)
	})
	assert.Equal(t, uint64(0), evalI64(wasm.OpcodeI64RemS, math.MinInt64, -1))
}

func TestI32Shifts(t *testing.T) {
	// Shift amounts are taken modulo the bit width.
	assert.Equal(t, uint64(24), evalI32(wasm.OpcodeI32ShrU, 24, 32))
	assert.Equal(t, uint64(1), evalI32(wasm.OpcodeI32Shl, 1, 0))
	assert.Equal(t, uint64(4), evalI32(wasm.OpcodeI32Shl, 1, 34))
	assert.Equal(t, i64Bits(-1), evalI32(wasm.OpcodeI32ShrS, -1, 5))
	assert.Equal(t, uint64(0x07ffffff), evalI32(wasm.OpcodeI32ShrU, -1, 5))
	assert.Equal(t, i64Bits(-0x7fffffff),
		evalI32(wasm.OpcodeI32Rotl, -0x7fffffff, 0))
	assert.Equal(t, uint64(3), evalI32(wasm.OpcodeI32Rotl, -0x7fffffff, 1))
	assert.Equal(t, uint64(3), evalI32(wasm.OpcodeI32Rotr, 6, 1))
}

func TestI64Shifts(t *testing.T) {
	assert.Equal(t, uint64(24), evalI64(wasm.OpcodeI64ShrU, 24, 64))
	assert.Equal(t, uint64(1)<<40, evalI64(wasm.OpcodeI64Shl, 1, 40))
	assert.Equal(t, ^uint64(0), evalI64(wasm.OpcodeI64ShrS, -1, 13))
	assert.Equal(t, uint64(3), evalI64(wasm.OpcodeI64Rotr, 6, 1))
}

func TestI32Comparisons(t *testing.T) {
	assert.Equal(t, uint64(1), evalI32(wasm.OpcodeI32LtS, -1, 0))
	assert.Equal(t, uint64(0), evalI32(wasm.OpcodeI32LtU, -1, 0))
	assert.Equal(t, uint64(1), evalI32(wasm.OpcodeI32GtU, -1, 0))
	assert.Equal(t, uint64(1), evalI32(wasm.OpcodeI32Eq, 3, 3))
	assert.Equal(t, uint64(1), evalI32(wasm.OpcodeI32Ne, 3, 4))
	assert.Equal(t, uint64(1), evalI32(wasm.OpcodeI32GeS, 3, 3))

	fr := &frame{}
	fr.pushI32(0)
	fr.execNumeric(wasm.OpcodeI32Eqz)
	assert.Equal(t, uint64(1), fr.pop())
}

func TestBitCounting(t *testing.T) {
	fr := &frame{}
	fr.pushI32(1)
	fr.execNumeric(wasm.OpcodeI32Clz)
	assert.Equal(t, uint64(31), fr.pop())

	fr.pushI32(0)
	fr.execNumeric(wasm.OpcodeI32Ctz)
	assert.Equal(t, uint64(32), fr.pop())

	fr.push(^uint64(0))
	fr.execNumeric(wasm.OpcodeI64Popcnt)
	assert.Equal(t, uint64(64), fr.pop())
}

func TestFloatArithmetic(t *testing.T) {
	fr := &frame{}
	fr.pushF64(1.5)
	fr.pushF64(2.25)
	fr.execNumeric(wasm.OpcodeF64Add)
	assert.Equal(t, 3.75, fr.popF64())

	fr.pushF32(1.0)
	fr.pushF32(0.0)
	fr.execNumeric(wasm.OpcodeF32Div)
	assert.True(t, math.IsInf(float64(fr.popF32()), 1))

	fr.pushF64(-2.5)
	fr.execNumeric(wasm.OpcodeF64Abs)
	assert.Equal(t, 2.5, fr.popF64())

	fr.pushF64(2.5)
	fr.execNumeric(wasm.OpcodeF64Neg)
	assert.Equal(t, -2.5, fr.popF64())

	fr.pushF64(2.5)
	fr.execNumeric(wasm.OpcodeF64Nearest)
	assert.Equal(t, 2.0, fr.popF64())

	fr.pushF64(3.5)
	fr.execNumeric(wasm.OpcodeF64Nearest)
	assert.Equal(t, 4.0, fr.popF64())

	fr.pushF64(9.0)
	fr.execNumeric(wasm.OpcodeF64Sqrt)
	assert.Equal(t, 3.0, fr.popF64())

	fr.pushF64(3.0)
	fr.pushF64(-4.0)
	fr.execNumeric(wasm.OpcodeF64Copysign)
	assert.Equal(t, -3.0, fr.popF64())
}

func TestFloatMinMax(t *testing.T) {
	fr := &frame{}
	fr.pushF64(1.0)
	fr.pushF64(math.NaN())
	fr.execNumeric(wasm.OpcodeF64Min)
	assert.True(t, math.IsNaN(fr.popF64()))

	fr.pushF64(math.Copysign(0, -1))
	fr.pushF64(0)
	fr.execNumeric(wasm.OpcodeF64Min)
	assert.True(t, math.Signbit(fr.popF64()))

	fr.pushF64(1.0)
	fr.pushF64(2.0)
	fr.execNumeric(wasm.OpcodeF64Max)
	assert.Equal(t, 2.0, fr.popF64())
}

func TestFloatComparisonsWithNaN(t *testing.T) {
	fr := &frame{}
	fr.pushF64(math.NaN())
	fr.pushF64(math.NaN())
	fr.execNumeric(wasm.OpcodeF64Eq)
	assert.Equal(t, uint64(0), fr.pop())

	fr.pushF64(math.NaN())
	fr.pushF64(1.0)
	fr.execNumeric(wasm.OpcodeF64Ne)
	assert.Equal(t, uint64(1), fr.pop())

	fr.pushF32(float32(math.NaN()))
	fr.pushF32(1.0)
	fr.execNumeric(wasm.OpcodeF32Lt)
	assert.Equal(t, uint64(0), fr.pop())
}

func TestTruncations(t *testing.T) {
	fr := &frame{}
	fr.pushF64(-3.7)
	fr.execNumeric(wasm.OpcodeI32TruncF64S)
	assert.Equal(t, i64Bits(-3), fr.pop())

	fr.pushF64(3.7)
	fr.execNumeric(wasm.OpcodeI32TruncF64U)
	assert.Equal(t, uint64(3), fr.pop())

	fr.pushF32(100.9)
	fr.execNumeric(wasm.OpcodeI64TruncF32S)
	assert.Equal(t, uint64(100), fr.pop())

	fr.pushF64(-0.5)
	fr.execNumeric(wasm.OpcodeI32TruncF64U)
	assert.Equal(t, uint64(0), fr.pop())

	requirePanicsWithTrap(t, wasm.TrapCodeInvalidConversionToInteger, func() {
		fr := &frame{}
		fr.pushF64(math.NaN())
		fr.execNumeric(wasm.OpcodeI32TruncF64S)
	})
	requirePanicsWithTrap(t, wasm.TrapCodeIntegerOverflow, func() {
		fr := &frame{}
		fr.pushF64(2147483648.0)
		fr.execNumeric(wasm.OpcodeI32TruncF64S)
	})
	requirePanicsWithTrap(t, wasm.TrapCodeIntegerOverflow, func() {
		fr := &frame{}
		fr.pushF64(-1.0)
		fr.execNumeric(wasm.OpcodeI32TruncF64U)
	})
	requirePanicsWithTrap(t, wasm.TrapCodeIntegerOverflow, func() {
		fr := &frame{}
		fr.pushF32(float32(math.Inf(1)))
		fr.execNumeric(wasm.OpcodeI64TruncF32S)
	})

	// The exact boundary value -2^63 converts.
	fr = &frame{}
	fr.pushF64(-9223372036854775808.0)
	fr.execNumeric(wasm.OpcodeI64TruncF64S)
	assert.Equal(t, i64Bits(math.MinInt64), fr.pop())
}

func TestConversions(t *testing.T) {
	fr := &frame{}
	fr.push(uint64(0x1_0000_0001))
	fr.execNumeric(wasm.OpcodeI32WrapI64)
	assert.Equal(t, uint64(1), fr.pop())

	fr.pushI32(-1)
	fr.execNumeric(wasm.OpcodeI64ExtendI32S)
	assert.Equal(t, ^uint64(0), fr.pop())

	fr.pushI32(-1)
	fr.execNumeric(wasm.OpcodeI64ExtendI32U)
	assert.Equal(t, uint64(0xffffffff), fr.pop())

	fr.pushI32(-5)
	fr.execNumeric(wasm.OpcodeF64ConvertI32S)
	assert.Equal(t, -5.0, fr.popF64())

	fr.pushI32(-1)
	fr.execNumeric(wasm.OpcodeF64ConvertI32U)
	assert.Equal(t, 4294967295.0, fr.popF64())

	fr.pushF64(1.5)
	fr.execNumeric(wasm.OpcodeF32DemoteF64)
	assert.Equal(t, float32(1.5), fr.popF32())

	fr.pushF32(1.5)
	fr.execNumeric(wasm.OpcodeF64PromoteF32)
	assert.Equal(t, 1.5, fr.popF64())
}

func TestReinterpretsNormalize(t *testing.T) {
	// f32 bits with the sign bit set come back as a sign-extended i32.
	fr := &frame{}
	fr.pushF32(float32(math.Copysign(0, -1)))
	fr.execNumeric(wasm.OpcodeI32ReinterpretF32)
	assert.Equal(t, i64Bits(-0x80000000), fr.pop())

	// An i32 on the stack is sign-extended; its f32 reinterpretation
	// must be the zero-extended 32-bit pattern.
	fr.pushI32(-1)
	fr.execNumeric(wasm.OpcodeF32ReinterpretI32)
	assert.Equal(t, uint64(0xffffffff), fr.pop())

	fr.pushF64(1.0)
	fr.execNumeric(wasm.OpcodeI64ReinterpretF64)
	assert.Equal(t, math.Float64bits(1.0), fr.pop())
}

func TestSignExtensionOps(t *testing.T) {
	fr := &frame{}
	fr.pushI32(0x80)
	fr.execNumeric(wasm.OpcodeI32Extend8S)
	assert.Equal(t, i64Bits(-128), fr.pop())

	fr.pushI32(0x7f)
	fr.execNumeric(wasm.OpcodeI32Extend8S)
	assert.Equal(t, uint64(127), fr.pop())

	fr.pushI32(0x8000)
	fr.execNumeric(wasm.OpcodeI32Extend16S)
	assert.Equal(t, i64Bits(-32768), fr.pop())

	fr.push(0x80000000)
	fr.execNumeric(wasm.OpcodeI64Extend32S)
	assert.Equal(t, i64Bits(math.MinInt32), fr.pop())
}

func TestSelectAndDropViaEngine(t *testing.T) {
	// select picks the first value on a nonzero condition and must also
	// accept negative (sign-extended) conditions.
	e := NewEngine()
	f := &wasm.FunctionInstance{
		ModuleInstance: &wasm.ModuleInstance{},
		Signature: &wasm.FunctionType{
			Params: []wasm.ValueType{
				wasm.ValueTypeI64, wasm.ValueTypeI64, wasm.ValueTypeI32,
			},
			Results: []wasm.ValueType{wasm.ValueTypeI64},
		},
		Body: []wasm.Instruction{
			{Opcode: wasm.OpcodeLocalGet, U1: 0},
			{Opcode: wasm.OpcodeLocalGet, U1: 1},
			{Opcode: wasm.OpcodeLocalGet, U1: 2},
			{Opcode: wasm.OpcodeSelect},
			{Opcode: wasm.OpcodeEnd},
		},
	}
	require.NoError(t, e.Compile(f))

	ret, err := e.Call(f, 10, 20, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{10}, ret)

	ret, err = e.Call(f, 10, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{20}, ret)

	ret, err = e.Call(f, 10, 20, uint64(0xffffffffffffffff))
	require.NoError(t, err)
	assert.Equal(t, []uint64{10}, ret)
}
