package interpreter

import (
	"math"
	"math/bits"

	"github.com/sigilvm/sigil/wasm"
)

// Typed stack accessors. i32 values live on the stack sign-extended to 64
// bits; f32 values as their zero-extended bit pattern. Every i32 operator
// converts explicitly on pop and re-extends on push, so mixed
// representations left by reinterprets or host calls never leak through.

func (fr *frame) pushBool(b bool) {
	if b {
		fr.push(1)
	} else {
		fr.push(0)
	}
}

func (fr *frame) pushI32(v int32)   { fr.push(uint64(int64(v))) }
func (fr *frame) pushU32(v uint32)  { fr.pushI32(int32(v)) }
func (fr *frame) pushF32(v float32) { fr.push(uint64(math.Float32bits(v))) }
func (fr *frame) pushF64(v float64) { fr.push(math.Float64bits(v)) }

func (fr *frame) popI32() int32     { return int32(fr.pop()) }
func (fr *frame) popU32() uint32    { return uint32(fr.pop()) }
func (fr *frame) popF32() float32   { return math.Float32frombits(uint32(fr.pop())) }
func (fr *frame) popF64() float64   { return math.Float64frombits(fr.pop()) }
func (fr *frame) popF32x2() (a, b float32) { b, a = fr.popF32(), fr.popF32(); return }
func (fr *frame) popF64x2() (a, b float64) { b, a = fr.popF64(), fr.popF64(); return }

func (fr *frame) popI32x2() (a, b int32)   { b, a = fr.popI32(), fr.popI32(); return }
func (fr *frame) popU32x2() (a, b uint32)  { b, a = fr.popU32(), fr.popU32(); return }
func (fr *frame) popI64x2() (a, b int64)   { b, a = int64(fr.pop()), int64(fr.pop()); return }
func (fr *frame) popU64x2() (a, b uint64)  { b, a = fr.pop(), fr.pop(); return }

const f32SignBit = uint32(1) << 31
const f64SignBit = uint64(1) << 63

func truncS32(f float64) int32 {
	if math.IsNaN(f) {
		trap(wasm.TrapCodeInvalidConversionToInteger)
	}
	t := math.Trunc(f)
	if t < -2147483648 || t >= 2147483648 {
		trap(wasm.TrapCodeIntegerOverflow)
	}
	return int32(t)
}

func truncU32(f float64) uint32 {
	if math.IsNaN(f) {
		trap(wasm.TrapCodeInvalidConversionToInteger)
	}
	t := math.Trunc(f)
	if t < 0 || t >= 4294967296 {
		trap(wasm.TrapCodeIntegerOverflow)
	}
	return uint32(t)
}

func truncS64(f float64) int64 {
	if math.IsNaN(f) {
		trap(wasm.TrapCodeInvalidConversionToInteger)
	}
	t := math.Trunc(f)
	if t < -9223372036854775808 || t >= 9223372036854775808 {
		trap(wasm.TrapCodeIntegerOverflow)
	}
	return int64(t)
}

func truncU64(f float64) uint64 {
	if math.IsNaN(f) {
		trap(wasm.TrapCodeInvalidConversionToInteger)
	}
	t := math.Trunc(f)
	if t < 0 || t >= 18446744073709551616 {
		trap(wasm.TrapCodeIntegerOverflow)
	}
	return uint64(t)
}

func (fr *frame) execNumeric(op wasm.Opcode) {
	switch op {
	// i32 comparisons.
	case wasm.OpcodeI32Eqz:
		fr.pushBool(fr.popU32() == 0)
	case wasm.OpcodeI32Eq:
		a, b := fr.popU32x2()
		fr.pushBool(a == b)
	case wasm.OpcodeI32Ne:
		a, b := fr.popU32x2()
		fr.pushBool(a != b)
	case wasm.OpcodeI32LtS:
		a, b := fr.popI32x2()
		fr.pushBool(a < b)
	case wasm.OpcodeI32LtU:
		a, b := fr.popU32x2()
		fr.pushBool(a < b)
	case wasm.OpcodeI32GtS:
		a, b := fr.popI32x2()
		fr.pushBool(a > b)
	case wasm.OpcodeI32GtU:
		a, b := fr.popU32x2()
		fr.pushBool(a > b)
	case wasm.OpcodeI32LeS:
		a, b := fr.popI32x2()
		fr.pushBool(a <= b)
	case wasm.OpcodeI32LeU:
		a, b := fr.popU32x2()
		fr.pushBool(a <= b)
	case wasm.OpcodeI32GeS:
		a, b := fr.popI32x2()
		fr.pushBool(a >= b)
	case wasm.OpcodeI32GeU:
		a, b := fr.popU32x2()
		fr.pushBool(a >= b)

	// i64 comparisons.
	case wasm.OpcodeI64Eqz:
		fr.pushBool(fr.pop() == 0)
	case wasm.OpcodeI64Eq:
		a, b := fr.popU64x2()
		fr.pushBool(a == b)
	case wasm.OpcodeI64Ne:
		a, b := fr.popU64x2()
		fr.pushBool(a != b)
	case wasm.OpcodeI64LtS:
		a, b := fr.popI64x2()
		fr.pushBool(a < b)
	case wasm.OpcodeI64LtU:
		a, b := fr.popU64x2()
		fr.pushBool(a < b)
	case wasm.OpcodeI64GtS:
		a, b := fr.popI64x2()
		fr.pushBool(a > b)
	case wasm.OpcodeI64GtU:
		a, b := fr.popU64x2()
		fr.pushBool(a > b)
	case wasm.OpcodeI64LeS:
		a, b := fr.popI64x2()
		fr.pushBool(a <= b)
	case wasm.OpcodeI64LeU:
		a, b := fr.popU64x2()
		fr.pushBool(a <= b)
	case wasm.OpcodeI64GeS:
		a, b := fr.popI64x2()
		fr.pushBool(a >= b)
	case wasm.OpcodeI64GeU:
		a, b := fr.popU64x2()
		fr.pushBool(a >= b)

	// Float comparisons. Any NaN operand makes eq/lt/gt/le/ge false and
	// ne true.
	case wasm.OpcodeF32Eq:
		a, b := fr.popF32x2()
		fr.pushBool(a == b)
	case wasm.OpcodeF32Ne:
		a, b := fr.popF32x2()
		fr.pushBool(a != b)
	case wasm.OpcodeF32Lt:
		a, b := fr.popF32x2()
		fr.pushBool(a < b)
	case wasm.OpcodeF32Gt:
		a, b := fr.popF32x2()
		fr.pushBool(a > b)
	case wasm.OpcodeF32Le:
		a, b := fr.popF32x2()
		fr.pushBool(a <= b)
	case wasm.OpcodeF32Ge:
		a, b := fr.popF32x2()
		fr.pushBool(a >= b)
	case wasm.OpcodeF64Eq:
		a, b := fr.popF64x2()
		fr.pushBool(a == b)
	case wasm.OpcodeF64Ne:
		a, b := fr.popF64x2()
		fr.pushBool(a != b)
	case wasm.OpcodeF64Lt:
		a, b := fr.popF64x2()
		fr.pushBool(a < b)
	case wasm.OpcodeF64Gt:
		a, b := fr.popF64x2()
		fr.pushBool(a > b)
	case wasm.OpcodeF64Le:
		a, b := fr.popF64x2()
		fr.pushBool(a <= b)
	case wasm.OpcodeF64Ge:
		a, b := fr.popF64x2()
		fr.pushBool(a >= b)

	// i32 arithmetic.
	case wasm.OpcodeI32Clz:
		fr.pushU32(uint32(bits.LeadingZeros32(fr.popU32())))
	case wasm.OpcodeI32Ctz:
		fr.pushU32(uint32(bits.TrailingZeros32(fr.popU32())))
	case wasm.OpcodeI32Popcnt:
		fr.pushU32(uint32(bits.OnesCount32(fr.popU32())))
	case wasm.OpcodeI32Add:
		a, b := fr.popU32x2()
		fr.pushU32(a + b)
	case wasm.OpcodeI32Sub:
		a, b := fr.popU32x2()
		fr.pushU32(a - b)
	case wasm.OpcodeI32Mul:
		a, b := fr.popU32x2()
		fr.pushU32(a * b)
	case wasm.OpcodeI32DivS:
		a, b := fr.popI32x2()
		if b == 0 {
			trap(wasm.TrapCodeIntegerDivideByZero)
		}
		if a == math.MinInt32 && b == -1 {
			trap(wasm.TrapCodeIntegerOverflow)
		}
		fr.pushI32(a / b)
	case wasm.OpcodeI32DivU:
		a, b := fr.popU32x2()
		if b == 0 {
			trap(wasm.TrapCodeIntegerDivideByZero)
		}
		fr.pushU32(a / b)
	case wasm.OpcodeI32RemS:
		a, b := fr.popI32x2()
		if b == 0 {
			trap(wasm.TrapCodeIntegerDivideByZero)
		}
		if a == math.MinInt32 && b == -1 {
			fr.pushI32(0)
			return
		}
		fr.pushI32(a % b)
	case wasm.OpcodeI32RemU:
		a, b := fr.popU32x2()
		if b == 0 {
			trap(wasm.TrapCodeIntegerDivideByZero)
		}
		fr.pushU32(a % b)
	case wasm.OpcodeI32And:
		a, b := fr.popU32x2()
		fr.pushU32(a & b)
	case wasm.OpcodeI32Or:
		a, b := fr.popU32x2()
		fr.pushU32(a | b)
	case wasm.OpcodeI32Xor:
		a, b := fr.popU32x2()
		fr.pushU32(a ^ b)
	case wasm.OpcodeI32Shl:
		a, b := fr.popU32x2()
		fr.pushU32(a << (b % 32))
	case wasm.OpcodeI32ShrS:
		b := fr.popU32()
		fr.pushI32(fr.popI32() >> (b % 32))
	case wasm.OpcodeI32ShrU:
		a, b := fr.popU32x2()
		fr.pushU32(a >> (b % 32))
	case wasm.OpcodeI32Rotl:
		a, b := fr.popU32x2()
		fr.pushU32(bits.RotateLeft32(a, int(b%32)))
	case wasm.OpcodeI32Rotr:
		a, b := fr.popU32x2()
		fr.pushU32(bits.RotateLeft32(a, -int(b%32)))

	// i64 arithmetic.
	case wasm.OpcodeI64Clz:
		fr.push(uint64(bits.LeadingZeros64(fr.pop())))
	case wasm.OpcodeI64Ctz:
		fr.push(uint64(bits.TrailingZeros64(fr.pop())))
	case wasm.OpcodeI64Popcnt:
		fr.push(uint64(bits.OnesCount64(fr.pop())))
	case wasm.OpcodeI64Add:
		a, b := fr.popU64x2()
		fr.push(a + b)
	case wasm.OpcodeI64Sub:
		a, b := fr.popU64x2()
		fr.push(a - b)
	case wasm.OpcodeI64Mul:
		a, b := fr.popU64x2()
		fr.push(a * b)
	case wasm.OpcodeI64DivS:
		a, b := fr.popI64x2()
		if b == 0 {
			trap(wasm.TrapCodeIntegerDivideByZero)
		}
		if a == math.MinInt64 && b == -1 {
			trap(wasm.TrapCodeIntegerOverflow)
		}
		fr.push(uint64(a / b))
	case wasm.OpcodeI64DivU:
		a, b := fr.popU64x2()
		if b == 0 {
			trap(wasm.TrapCodeIntegerDivideByZero)
		}
		fr.push(a / b)
	case wasm.OpcodeI64RemS:
		a, b := fr.popI64x2()
		if b == 0 {
			trap(wasm.TrapCodeIntegerDivideByZero)
		}
		if a == math.MinInt64 && b == -1 {
			fr.push(0)
			return
		}
		fr.push(uint64(a % b))
	case wasm.OpcodeI64RemU:
		a, b := fr.popU64x2()
		if b == 0 {
			trap(wasm.TrapCodeIntegerDivideByZero)
		}
		fr.push(a % b)
	case wasm.OpcodeI64And:
		a, b := fr.popU64x2()
		fr.push(a & b)
	case wasm.OpcodeI64Or:
		a, b := fr.popU64x2()
		fr.push(a | b)
	case wasm.OpcodeI64Xor:
		a, b := fr.popU64x2()
		fr.push(a ^ b)
	case wasm.OpcodeI64Shl:
		a, b := fr.popU64x2()
		fr.push(a << (b % 64))
	case wasm.OpcodeI64ShrS:
		b := fr.pop()
		fr.push(uint64(int64(fr.pop()) >> (b % 64)))
	case wasm.OpcodeI64ShrU:
		a, b := fr.popU64x2()
		fr.push(a >> (b % 64))
	case wasm.OpcodeI64Rotl:
		a, b := fr.popU64x2()
		fr.push(bits.RotateLeft64(a, int(b%64)))
	case wasm.OpcodeI64Rotr:
		a, b := fr.popU64x2()
		fr.push(bits.RotateLeft64(a, -int(b%64)))

	// f32 arithmetic. Sign manipulation works on raw bits so NaN
	// payloads pass through untouched.
	case wasm.OpcodeF32Abs:
		fr.push(uint64(uint32(fr.pop()) &^ f32SignBit))
	case wasm.OpcodeF32Neg:
		fr.push(uint64(uint32(fr.pop()) ^ f32SignBit))
	case wasm.OpcodeF32Ceil:
		fr.pushF32(float32(math.Ceil(float64(fr.popF32()))))
	case wasm.OpcodeF32Floor:
		fr.pushF32(float32(math.Floor(float64(fr.popF32()))))
	case wasm.OpcodeF32Trunc:
		fr.pushF32(float32(math.Trunc(float64(fr.popF32()))))
	case wasm.OpcodeF32Nearest:
		fr.pushF32(float32(math.RoundToEven(float64(fr.popF32()))))
	case wasm.OpcodeF32Sqrt:
		fr.pushF32(float32(math.Sqrt(float64(fr.popF32()))))
	case wasm.OpcodeF32Add:
		a, b := fr.popF32x2()
		fr.pushF32(a + b)
	case wasm.OpcodeF32Sub:
		a, b := fr.popF32x2()
		fr.pushF32(a - b)
	case wasm.OpcodeF32Mul:
		a, b := fr.popF32x2()
		fr.pushF32(a * b)
	case wasm.OpcodeF32Div:
		a, b := fr.popF32x2()
		fr.pushF32(a / b)
	case wasm.OpcodeF32Min:
		a, b := fr.popF32x2()
		fr.pushF32(float32(math.Min(float64(a), float64(b))))
	case wasm.OpcodeF32Max:
		a, b := fr.popF32x2()
		fr.pushF32(float32(math.Max(float64(a), float64(b))))
	case wasm.OpcodeF32Copysign:
		b := uint32(fr.pop())
		a := uint32(fr.pop())
		fr.push(uint64(a&^f32SignBit | b&f32SignBit))

	// f64 arithmetic.
	case wasm.OpcodeF64Abs:
		fr.push(fr.pop() &^ f64SignBit)
	case wasm.OpcodeF64Neg:
		fr.push(fr.pop() ^ f64SignBit)
	case wasm.OpcodeF64Ceil:
		fr.pushF64(math.Ceil(fr.popF64()))
	case wasm.OpcodeF64Floor:
		fr.pushF64(math.Floor(fr.popF64()))
	case wasm.OpcodeF64Trunc:
		fr.pushF64(math.Trunc(fr.popF64()))
	case wasm.OpcodeF64Nearest:
		fr.pushF64(math.RoundToEven(fr.popF64()))
	case wasm.OpcodeF64Sqrt:
		fr.pushF64(math.Sqrt(fr.popF64()))
	case wasm.OpcodeF64Add:
		a, b := fr.popF64x2()
		fr.pushF64(a + b)
	case wasm.OpcodeF64Sub:
		a, b := fr.popF64x2()
		fr.pushF64(a - b)
	case wasm.OpcodeF64Mul:
		a, b := fr.popF64x2()
		fr.pushF64(a * b)
	case wasm.OpcodeF64Div:
		a, b := fr.popF64x2()
		fr.pushF64(a / b)
	case wasm.OpcodeF64Min:
		a, b := fr.popF64x2()
		fr.pushF64(math.Min(a, b))
	case wasm.OpcodeF64Max:
		a, b := fr.popF64x2()
		fr.pushF64(math.Max(a, b))
	case wasm.OpcodeF64Copysign:
		b := fr.pop()
		a := fr.pop()
		fr.push(a&^f64SignBit | b&f64SignBit)

	// Conversions.
	case wasm.OpcodeI32WrapI64:
		fr.pushI32(int32(fr.pop()))
	case wasm.OpcodeI32TruncF32S:
		fr.pushI32(truncS32(float64(fr.popF32())))
	case wasm.OpcodeI32TruncF32U:
		fr.pushU32(truncU32(float64(fr.popF32())))
	case wasm.OpcodeI32TruncF64S:
		fr.pushI32(truncS32(fr.popF64()))
	case wasm.OpcodeI32TruncF64U:
		fr.pushU32(truncU32(fr.popF64()))
	case wasm.OpcodeI64ExtendI32S:
		fr.push(uint64(int64(fr.popI32())))
	case wasm.OpcodeI64ExtendI32U:
		fr.push(uint64(fr.popU32()))
	case wasm.OpcodeI64TruncF32S:
		fr.push(uint64(truncS64(float64(fr.popF32()))))
	case wasm.OpcodeI64TruncF32U:
		fr.push(truncU64(float64(fr.popF32())))
	case wasm.OpcodeI64TruncF64S:
		fr.push(uint64(truncS64(fr.popF64())))
	case wasm.OpcodeI64TruncF64U:
		fr.push(truncU64(fr.popF64()))
	case wasm.OpcodeF32ConvertI32S:
		fr.pushF32(float32(fr.popI32()))
	case wasm.OpcodeF32ConvertI32U:
		fr.pushF32(float32(fr.popU32()))
	case wasm.OpcodeF32ConvertI64S:
		fr.pushF32(float32(int64(fr.pop())))
	case wasm.OpcodeF32ConvertI64U:
		fr.pushF32(float32(fr.pop()))
	case wasm.OpcodeF32DemoteF64:
		fr.pushF32(float32(fr.popF64()))
	case wasm.OpcodeF64ConvertI32S:
		fr.pushF64(float64(fr.popI32()))
	case wasm.OpcodeF64ConvertI32U:
		fr.pushF64(float64(fr.popU32()))
	case wasm.OpcodeF64ConvertI64S:
		fr.pushF64(float64(int64(fr.pop())))
	case wasm.OpcodeF64ConvertI64U:
		fr.pushF64(float64(fr.pop()))
	case wasm.OpcodeF64PromoteF32:
		fr.pushF64(float64(fr.popF32()))

	// Reinterprets re-normalize the stack representation of the result
	// type even though the bits are unchanged.
	case wasm.OpcodeI32ReinterpretF32:
		fr.pushI32(int32(fr.pop()))
	case wasm.OpcodeI64ReinterpretF64:
		// Identity on raw slots.
	case wasm.OpcodeF32ReinterpretI32:
		fr.push(uint64(uint32(fr.pop())))
	case wasm.OpcodeF64ReinterpretI64:
		// Identity on raw slots.

	// Sign extension.
	case wasm.OpcodeI32Extend8S:
		fr.pushI32(int32(int8(fr.pop())))
	case wasm.OpcodeI32Extend16S:
		fr.pushI32(int32(int16(fr.pop())))
	case wasm.OpcodeI64Extend8S:
		fr.push(uint64(int64(int8(fr.pop()))))
	case wasm.OpcodeI64Extend16S:
		fr.push(uint64(int64(int16(fr.pop()))))
	case wasm.OpcodeI64Extend32S:
		fr.push(uint64(int64(int32(fr.pop()))))
	}
}
