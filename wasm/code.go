package wasm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/sigilvm/sigil/leb128"
)

// Instruction is one decoded instruction: an opcode plus its immediates.
// The meaning of U1 and U2 depends on the opcode:
//
//	block/loop/if            U1 = raw signed block type (s33, two's complement)
//	br/br_if                 U1 = label depth
//	br_table                 Targets = explicit targets, U1 = default target
//	call                     U1 = function index
//	call_indirect            U1 = type index, U2 = table index
//	local.*/global.*         U1 = index
//	*.const                  U1 = value bits (i32 sign-extended)
//	loads/stores             U1 = static offset, U2 = memory index
//	memory.size/grow/fill    U1 = memory index
//	memory.copy              U1 = destination memory, U2 = source memory
type Instruction struct {
	Opcode  Opcode
	U1, U2  uint64
	Targets []uint32
}

// Code is one function body: its declared locals (parameters excluded) and
// decoded instructions. Bodies always terminate with an end instruction.
type Code struct {
	LocalTypes []ValueType
	Body       []Instruction
}

// Convenience constructors for building instruction streams directly, used
// mainly by tests and host tooling. i32 constants are stored sign-extended,
// matching the interpreter's stack convention.

func I32Const(v int32) Instruction {
	return Instruction{Opcode: OpcodeI32Const, U1: uint64(int64(v))}
}

func I64Const(v int64) Instruction {
	return Instruction{Opcode: OpcodeI64Const, U1: uint64(v)}
}

func F32Const(v float32) Instruction {
	return Instruction{Opcode: OpcodeF32Const, U1: uint64(math.Float32bits(v))}
}

func F64Const(v float64) Instruction {
	return Instruction{Opcode: OpcodeF64Const, U1: math.Float64bits(v)}
}

// blockTypeEmpty is the s33 encoding (0x40) of a block with no parameters
// and no results.
const blockTypeEmpty int64 = -64

var blockTypeFuncs = map[int64]*FunctionType{
	blockTypeEmpty: {},
	-1:             {Results: []ValueType{ValueTypeI32}},
	-2:             {Results: []ValueType{ValueTypeI64}},
	-3:             {Results: []ValueType{ValueTypeF32}},
	-4:             {Results: []ValueType{ValueTypeF64}},
}

// ResolveBlockType maps a raw s33 block type to a function type: negative
// values encode at most one result type, non-negative values index the type
// section.
func ResolveBlockType(types []*FunctionType, raw int64) (*FunctionType, error) {
	if raw < 0 {
		if ft, ok := blockTypeFuncs[raw]; ok {
			return ft, nil
		}
		return nil, fmt.Errorf("invalid block type: %d", raw)
	}
	if raw >= int64(len(types)) {
		return nil, fmt.Errorf("block type index out of range: %d", raw)
	}
	return types[raw], nil
}

// DecodeFunctionBody decodes a binary-format expression (the body of a
// function, terminated by end) into instructions. This is the boundary to
// the parser collaborator: section decoding happens upstream, but bodies
// arrive as raw bytes and are decoded once here, never re-parsed during
// execution.
func DecodeFunctionBody(raw []byte) ([]Instruction, error) {
	r := bytes.NewReader(raw)
	var body []Instruction
	for {
		b, err := r.ReadByte()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		ins, err := decodeInstruction(Opcode(b), r)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", Opcode(b).Name(), err)
		}
		body = append(body, ins)
	}
	if len(body) == 0 || body[len(body)-1].Opcode != OpcodeEnd {
		return nil, fmt.Errorf("function body must end with the end opcode")
	}
	return body, nil
}

func decodeInstruction(op Opcode, r *bytes.Reader) (Instruction, error) {
	ins := Instruction{Opcode: op}
	switch op {
	case OpcodeBlock, OpcodeLoop, OpcodeIf:
		bt, _, err := leb128.DecodeInt33AsInt64(r)
		if err != nil {
			return ins, fmt.Errorf("read block type: %w", err)
		}
		ins.U1 = uint64(bt)
	case OpcodeBr, OpcodeBrIf, OpcodeCall, OpcodeLocalGet, OpcodeLocalSet,
		OpcodeLocalTee, OpcodeGlobalGet, OpcodeGlobalSet,
		OpcodeMemorySize, OpcodeMemoryGrow:
		v, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return ins, fmt.Errorf("read immediate: %w", err)
		}
		ins.U1 = uint64(v)
	case OpcodeBrTable:
		n, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return ins, fmt.Errorf("read target count: %w", err)
		}
		ins.Targets = make([]uint32, n)
		for i := range ins.Targets {
			t, _, err := leb128.DecodeUint32(r)
			if err != nil {
				return ins, fmt.Errorf("read target %d: %w", i, err)
			}
			ins.Targets[i] = t
		}
		def, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return ins, fmt.Errorf("read default target: %w", err)
		}
		ins.U1 = uint64(def)
	case OpcodeCallIndirect:
		typeIndex, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return ins, fmt.Errorf("read type index: %w", err)
		}
		tableIndex, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return ins, fmt.Errorf("read table index: %w", err)
		}
		ins.U1, ins.U2 = uint64(typeIndex), uint64(tableIndex)
	case OpcodeI32Const:
		v, _, err := leb128.DecodeInt32(r)
		if err != nil {
			return ins, fmt.Errorf("read i32 immediate: %w", err)
		}
		ins.U1 = uint64(int64(v))
	case OpcodeI64Const:
		v, _, err := leb128.DecodeInt64(r)
		if err != nil {
			return ins, fmt.Errorf("read i64 immediate: %w", err)
		}
		ins.U1 = uint64(v)
	case OpcodeF32Const:
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return ins, fmt.Errorf("read f32 immediate: %w", err)
		}
		ins.U1 = uint64(binary.LittleEndian.Uint32(buf[:]))
	case OpcodeF64Const:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return ins, fmt.Errorf("read f64 immediate: %w", err)
		}
		ins.U1 = binary.LittleEndian.Uint64(buf[:])
	case OpcodeMiscPrefix:
		return decodeMiscInstruction(r)
	default:
		if op >= OpcodeI32Load && op <= OpcodeI64Store32 {
			return decodeMemArg(op, r)
		}
		if opcodeHasNoImmediates(op) {
			return ins, nil
		}
		return ins, fmt.Errorf("unsupported opcode 0x%x", byte(op))
	}
	return ins, nil
}

// decodeMemArg reads the alignment/offset immediate pair of a load or
// store. Bit 6 of the alignment field flags an explicit memory index
// (multi-memory encoding).
func decodeMemArg(op Opcode, r *bytes.Reader) (Instruction, error) {
	ins := Instruction{Opcode: op}
	align, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return ins, fmt.Errorf("read alignment: %w", err)
	}
	hasMemIndex := align&(1<<6) != 0
	offset, _, err := leb128.DecodeUint64(r)
	if err != nil {
		return ins, fmt.Errorf("read offset: %w", err)
	}
	ins.U1 = offset
	if hasMemIndex {
		idx, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return ins, fmt.Errorf("read memory index: %w", err)
		}
		ins.U2 = uint64(idx)
	}
	return ins, nil
}

func decodeMiscInstruction(r *bytes.Reader) (Instruction, error) {
	var ins Instruction
	sub, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return ins, fmt.Errorf("read sub-opcode: %w", err)
	}
	switch sub {
	case miscOpMemoryCopy:
		dst, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return ins, fmt.Errorf("read destination memory: %w", err)
		}
		src, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return ins, fmt.Errorf("read source memory: %w", err)
		}
		return Instruction{Opcode: OpcodeMemoryCopy, U1: uint64(dst), U2: uint64(src)}, nil
	case miscOpMemoryFill:
		mem, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return ins, fmt.Errorf("read memory index: %w", err)
		}
		return Instruction{Opcode: OpcodeMemoryFill, U1: uint64(mem)}, nil
	case miscOpI64Add128:
		return Instruction{Opcode: OpcodeI64Add128}, nil
	case miscOpI64Sub128:
		return Instruction{Opcode: OpcodeI64Sub128}, nil
	case miscOpI64MulWideS:
		return Instruction{Opcode: OpcodeI64MulWideS}, nil
	case miscOpI64MulWideU:
		return Instruction{Opcode: OpcodeI64MulWideU}, nil
	default:
		return ins, fmt.Errorf("unsupported sub-opcode %d", sub)
	}
}

func opcodeHasNoImmediates(op Opcode) bool {
	switch {
	case op == OpcodeUnreachable, op == OpcodeNop, op == OpcodeElse,
		op == OpcodeEnd, op == OpcodeReturn, op == OpcodeDrop, op == OpcodeSelect:
		return true
	case op >= OpcodeI32Eqz && op <= OpcodeI64Extend32S:
		// All plain numeric operators.
		return true
	default:
		return false
	}
}
