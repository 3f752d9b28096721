package interpreter

import (
	"encoding/binary"

	"github.com/sigilvm/sigil/wasm"
)

func mustInBounds(ok bool) {
	if !ok {
		trap(wasm.TrapCodeOutOfBoundsMemoryAccess)
	}
}

// effectiveAddress combines a popped base address with the instruction's
// static offset. For 32-bit memories the base is masked to 32 bits; for
// 64-bit memories a wrapping sum is out of bounds by definition.
func effectiveAddress(mem *wasm.MemoryInstance, base, offset uint64) uint64 {
	if !mem.Type.Is64() {
		return uint64(uint32(base)) + offset
	}
	ea := base + offset
	if ea < base {
		trap(wasm.TrapCodeOutOfBoundsMemoryAccess)
	}
	return ea
}

func (fr *frame) execMemoryAccess(ins *wasm.Instruction) {
	mem := fr.f.ModuleInstance.Memories[ins.U2]
	op := ins.Opcode

	if op >= wasm.OpcodeI32Store {
		val := fr.pop()
		ea := effectiveAddress(mem, fr.pop(), ins.U1)
		var ok bool
		switch op {
		case wasm.OpcodeI32Store, wasm.OpcodeF32Store, wasm.OpcodeI64Store32:
			ok = mem.WriteUint32Le(ea, uint32(val))
		case wasm.OpcodeI64Store, wasm.OpcodeF64Store:
			ok = mem.WriteUint64Le(ea, val)
		case wasm.OpcodeI32Store8, wasm.OpcodeI64Store8:
			ok = mem.Write(ea, []byte{byte(val)})
		case wasm.OpcodeI32Store16, wasm.OpcodeI64Store16:
			var buf [2]byte
			binary.LittleEndian.PutUint16(buf[:], uint16(val))
			ok = mem.Write(ea, buf[:])
		}
		mustInBounds(ok)
		return
	}

	ea := effectiveAddress(mem, fr.pop(), ins.U1)
	switch op {
	case wasm.OpcodeI32Load:
		v, ok := mem.ReadUint32Le(ea)
		mustInBounds(ok)
		fr.push(uint64(int64(int32(v))))
	case wasm.OpcodeI64Load, wasm.OpcodeF64Load:
		v, ok := mem.ReadUint64Le(ea)
		mustInBounds(ok)
		fr.push(v)
	case wasm.OpcodeF32Load:
		v, ok := mem.ReadUint32Le(ea)
		mustInBounds(ok)
		fr.push(uint64(v))
	case wasm.OpcodeI32Load8S, wasm.OpcodeI64Load8S:
		b, ok := mem.Read(ea, 1)
		mustInBounds(ok)
		fr.push(uint64(int64(int8(b[0]))))
	case wasm.OpcodeI32Load8U, wasm.OpcodeI64Load8U:
		b, ok := mem.Read(ea, 1)
		mustInBounds(ok)
		fr.push(uint64(b[0]))
	case wasm.OpcodeI32Load16S, wasm.OpcodeI64Load16S:
		b, ok := mem.Read(ea, 2)
		mustInBounds(ok)
		fr.push(uint64(int64(int16(binary.LittleEndian.Uint16(b)))))
	case wasm.OpcodeI32Load16U, wasm.OpcodeI64Load16U:
		b, ok := mem.Read(ea, 2)
		mustInBounds(ok)
		fr.push(uint64(binary.LittleEndian.Uint16(b)))
	case wasm.OpcodeI64Load32S:
		v, ok := mem.ReadUint32Le(ea)
		mustInBounds(ok)
		fr.push(uint64(int64(int32(v))))
	case wasm.OpcodeI64Load32U:
		v, ok := mem.ReadUint32Le(ea)
		mustInBounds(ok)
		fr.push(uint64(v))
	}
}

// execMemoryAdmin handles memory.size and memory.grow. Grow failure is
// reported as -1, never trapped.
func (fr *frame) execMemoryAdmin(ins *wasm.Instruction) {
	mem := fr.f.ModuleInstance.Memories[ins.U1]
	if ins.Opcode == wasm.OpcodeMemorySize {
		fr.push(mem.PageCount())
		return
	}
	delta := fr.pop()
	if !mem.Type.Is64() {
		delta = uint64(uint32(delta))
	}
	prev, ok := mem.Grow(delta)
	if !ok {
		fr.push(^uint64(0))
		return
	}
	fr.push(prev)
}

func (fr *frame) execMemoryBulk(ins *wasm.Instruction) {
	if ins.Opcode == wasm.OpcodeMemoryFill {
		mem := fr.f.ModuleInstance.Memories[ins.U1]
		n, val, dst := fr.pop(), fr.pop(), fr.pop()
		if !mem.Type.Is64() {
			n, dst = uint64(uint32(n)), uint64(uint32(dst))
		}
		region, ok := mem.Read(dst, n)
		mustInBounds(ok)
		b := byte(val)
		for i := range region {
			region[i] = b
		}
		return
	}

	dstMem := fr.f.ModuleInstance.Memories[ins.U1]
	srcMem := fr.f.ModuleInstance.Memories[ins.U2]
	n, src, dst := fr.pop(), fr.pop(), fr.pop()
	// The length operand has the narrower of the two index types.
	if !dstMem.Type.Is64() || !srcMem.Type.Is64() {
		n = uint64(uint32(n))
	}
	if !dstMem.Type.Is64() {
		dst = uint64(uint32(dst))
	}
	if !srcMem.Type.Is64() {
		src = uint64(uint32(src))
	}
	srcRegion, ok := srcMem.Read(src, n)
	mustInBounds(ok)
	dstRegion, ok := dstMem.Read(dst, n)
	mustInBounds(ok)
	copy(dstRegion, srcRegion)
}
