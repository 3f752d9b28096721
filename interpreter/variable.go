package interpreter

import "github.com/sigilvm/sigil/wasm"

func (fr *frame) execVariable(ins *wasm.Instruction) {
	switch ins.Opcode {
	case wasm.OpcodeLocalGet:
		fr.push(fr.locals[ins.U1])
	case wasm.OpcodeLocalSet:
		fr.locals[ins.U1] = fr.pop()
	case wasm.OpcodeLocalTee:
		fr.locals[ins.U1] = fr.peek()
	case wasm.OpcodeGlobalGet:
		fr.push(fr.f.ModuleInstance.Globals[ins.U1].Val)
	case wasm.OpcodeGlobalSet:
		fr.f.ModuleInstance.Globals[ins.U1].Val = fr.pop()
	}
}
