package wasm

import (
	"encoding/binary"
	"math"
	"reflect"
)

type (
	// ModuleInstance is the live, mutable incarnation of a Module after
	// successful linking. Index spaces list imported items first, in
	// declaration order, followed by locally defined ones.
	ModuleInstance struct {
		Name      string
		Exports   map[string]*ExportInstance
		Functions []*FunctionInstance
		Globals   []*GlobalInstance
		Memories  []*MemoryInstance
		Tables    []*TableInstance

		Types []*FunctionType
	}

	// ExportInstance points at one exported entity. Exactly one of the
	// entity fields is set, selected by Kind.
	ExportInstance struct {
		Kind     byte
		Function *FunctionInstance
		Global   *GlobalInstance
		Memory   *MemoryInstance
		Table    *TableInstance
	}

	// FunctionInstance is a callable function: either a wasm function
	// (Body set, Blocks filled in by Engine.Compile) or a host function
	// (HostFunction set). The owning ModuleInstance travels with the
	// function so that indirect calls across instances resolve index
	// spaces against the callee's module.
	FunctionInstance struct {
		Name           string
		ModuleInstance *ModuleInstance
		Signature      *FunctionType
		LocalTypes     []ValueType
		Body           []Instruction
		// Blocks maps the pc of each block/loop/if instruction to its
		// control metadata.
		Blocks       map[uint64]*FunctionBlock
		HostFunction *reflect.Value
	}

	// FunctionBlock records the decoded boundaries of one structured
	// control construct. ElseAt equals EndAt when an if has no else arm.
	FunctionBlock struct {
		StartAt, ElseAt, EndAt uint64
		BlockType              *FunctionType
		IsLoop                 bool
		IsIf                   bool
	}

	// GlobalInstance is one global cell holding raw value bits.
	GlobalInstance struct {
		Type *GlobalType
		Val  uint64
	}

	// TableInstance holds function references. A nil slot is
	// uninitialized; calling through it traps.
	TableInstance struct {
		Elements []*FunctionInstance
		Type     *TableType
	}

	// MemoryInstance is a growable byte buffer. Its length is always a
	// multiple of PageSize. The buffer's base address is not stable
	// across Grow.
	MemoryInstance struct {
		Buffer []byte
		Type   *MemoryType
	}

	// HostFunctionCallContext is the first argument of every host
	// function: the calling module's first memory, if it has one.
	HostFunctionCallContext struct {
		Memory *MemoryInstance
	}
)

// Page ceilings for memories that declare no max: the full 32-bit page
// space for i32 memories and a host-practical cap for i64 ones.
const (
	memory32PageCeiling uint64 = 1 << 16
	memory64PageCeiling uint64 = 1 << 32
)

// PageCount returns the current size in pages.
func (m *MemoryInstance) PageCount() uint64 {
	return uint64(len(m.Buffer)) / PageSize
}

func (m *MemoryInstance) pageCeiling() uint64 {
	ceiling := memory32PageCeiling
	if m.Type.Is64() {
		ceiling = memory64PageCeiling
	}
	if m.Type.Limits.Max != nil && *m.Type.Limits.Max < ceiling {
		ceiling = *m.Type.Limits.Max
	}
	return ceiling
}

// Grow extends the memory by delta pages, zero-filled. It returns the
// previous page count, or ok=false if the new size would exceed the
// declared max (or the implementation ceiling) or the host allocator
// cannot satisfy it. Failure is reported, never trapped. Existing contents
// are preserved byte-for-byte, though the buffer may be reallocated.
func (m *MemoryInstance) Grow(delta uint64) (prev uint64, ok bool) {
	prev = m.PageCount()
	if delta == 0 {
		return prev, true
	}
	newPages := prev + delta
	if newPages < prev || newPages > m.pageCeiling() {
		return 0, false
	}
	if newPages > uint64(math.MaxInt64)/PageSize {
		return 0, false
	}
	m.Buffer = append(m.Buffer, make([]byte, delta*PageSize)...)
	return prev, true
}

// hasLen reports whether size bytes at offset are in bounds.
func (m *MemoryInstance) hasLen(offset, size uint64) bool {
	if size > uint64(len(m.Buffer)) {
		return false
	}
	return offset <= uint64(len(m.Buffer))-size
}

// Read returns a view of byteCount bytes at offset.
func (m *MemoryInstance) Read(offset, byteCount uint64) ([]byte, bool) {
	if !m.hasLen(offset, byteCount) {
		return nil, false
	}
	return m.Buffer[offset : offset+byteCount], true
}

// Write copies val into the buffer at offset.
func (m *MemoryInstance) Write(offset uint64, val []byte) bool {
	if !m.hasLen(offset, uint64(len(val))) {
		return false
	}
	copy(m.Buffer[offset:], val)
	return true
}

func (m *MemoryInstance) ReadUint32Le(offset uint64) (uint32, bool) {
	if !m.hasLen(offset, 4) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(m.Buffer[offset:]), true
}

func (m *MemoryInstance) WriteUint32Le(offset uint64, v uint32) bool {
	if !m.hasLen(offset, 4) {
		return false
	}
	binary.LittleEndian.PutUint32(m.Buffer[offset:], v)
	return true
}

func (m *MemoryInstance) ReadUint64Le(offset uint64) (uint64, bool) {
	if !m.hasLen(offset, 8) {
		return 0, false
	}
	return binary.LittleEndian.Uint64(m.Buffer[offset:]), true
}

func (m *MemoryInstance) WriteUint64Le(offset uint64, v uint64) bool {
	if !m.hasLen(offset, 8) {
		return false
	}
	binary.LittleEndian.PutUint64(m.Buffer[offset:], v)
	return true
}
