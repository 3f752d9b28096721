package interpreter

import "github.com/sigilvm/sigil/wasm"

// execControl handles one control or call instruction, advancing fr.pc
// itself. It reports true when the current function returns.
func (e *Engine) execControl(fr *frame, ins *wasm.Instruction) (funcReturn bool) {
	switch ins.Opcode {
	case wasm.OpcodeUnreachable:
		trap(wasm.TrapCodeUnreachable)
	case wasm.OpcodeNop:
		fr.pc++
	case wasm.OpcodeBlock:
		b := fr.f.Blocks[fr.pc]
		fr.pushLabel(len(b.BlockType.Results), b.EndAt+1, len(b.BlockType.Params))
		fr.pc++
	case wasm.OpcodeLoop:
		// A branch to a loop label re-executes the loop instruction,
		// which pushes a fresh label; it carries the block parameters.
		b := fr.f.Blocks[fr.pc]
		fr.pushLabel(len(b.BlockType.Params), b.StartAt, len(b.BlockType.Params))
		fr.pc++
	case wasm.OpcodeIf:
		b := fr.f.Blocks[fr.pc]
		cond := fr.pop()
		switch {
		case uint32(cond) != 0:
			fr.pushLabel(len(b.BlockType.Results), b.EndAt+1, len(b.BlockType.Params))
			fr.pc++
		case b.ElseAt != b.EndAt:
			fr.pushLabel(len(b.BlockType.Results), b.EndAt+1, len(b.BlockType.Params))
			fr.pc = b.ElseAt + 1
		default:
			// No else arm: skip the construct without a label.
			fr.pc = b.EndAt + 1
		}
	case wasm.OpcodeElse:
		// Reached by falling out of the then arm: leave the construct,
		// skipping the end that would otherwise pop the label.
		l := fr.popLabel()
		fr.pc = l.cont
	case wasm.OpcodeEnd:
		if len(fr.labels) > 0 {
			fr.popLabel()
		}
		fr.pc++
	case wasm.OpcodeBr:
		return fr.branch(int(ins.U1))
	case wasm.OpcodeBrIf:
		if uint32(fr.pop()) != 0 {
			return fr.branch(int(ins.U1))
		}
		fr.pc++
	case wasm.OpcodeBrTable:
		n := uint32(fr.pop())
		depth := uint32(ins.U1)
		if int64(n) < int64(len(ins.Targets)) {
			depth = ins.Targets[n]
		}
		return fr.branch(int(depth))
	case wasm.OpcodeReturn:
		return true
	case wasm.OpcodeCall:
		e.execCall(fr, fr.f.ModuleInstance.Functions[ins.U1])
		fr.pc++
	case wasm.OpcodeCallIndirect:
		e.execCallIndirect(fr, ins)
		fr.pc++
	}
	return false
}
