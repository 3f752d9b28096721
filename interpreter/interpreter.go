// Package interpreter implements wasm.Engine as a naive stack machine
// over decoded instruction streams. Compile scans each function body once
// to record block boundaries; Call then walks the body instruction by
// instruction, dispatching on the opcode.
package interpreter

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sigilvm/sigil/wasm"
)

// callStackCeiling bounds the depth of nested wasm calls. Exceeding it
// raises a call stack overflow trap instead of exhausting the Go stack.
const callStackCeiling = 2048

type Engine struct {
	callDepth int
}

func NewEngine() *Engine {
	return &Engine{}
}

// trap aborts the current invocation. The panic unwinds to the recover in
// Call, so a trap tears down exactly one engine invocation and nothing
// else.
func trap(code wasm.TrapCode) {
	panic(wasm.NewTrap(code))
}

// Compile records the boundaries of every block, loop and if in f's body
// into f.Blocks. Host functions have no body and compile to nothing.
func (e *Engine) Compile(f *wasm.FunctionInstance) error {
	if f.HostFunction != nil {
		return nil
	}
	f.Blocks = map[uint64]*wasm.FunctionBlock{}
	var open []*wasm.FunctionBlock
	for pc, ins := range f.Body {
		switch ins.Opcode {
		case wasm.OpcodeBlock, wasm.OpcodeLoop, wasm.OpcodeIf:
			bt, err := wasm.ResolveBlockType(f.ModuleInstance.Types, int64(ins.U1))
			if err != nil {
				return fmt.Errorf("instruction %d: %w", pc, err)
			}
			b := &wasm.FunctionBlock{
				StartAt:   uint64(pc),
				BlockType: bt,
				IsLoop:    ins.Opcode == wasm.OpcodeLoop,
				IsIf:      ins.Opcode == wasm.OpcodeIf,
			}
			f.Blocks[uint64(pc)] = b
			open = append(open, b)
		case wasm.OpcodeElse:
			if len(open) == 0 || !open[len(open)-1].IsIf {
				return fmt.Errorf("instruction %d: else outside of an if", pc)
			}
			open[len(open)-1].ElseAt = uint64(pc)
		case wasm.OpcodeEnd:
			if len(open) == 0 {
				// The end closing the function body itself.
				if pc != len(f.Body)-1 {
					return fmt.Errorf("instruction %d: unbalanced end", pc)
				}
				continue
			}
			b := open[len(open)-1]
			open = open[:len(open)-1]
			b.EndAt = uint64(pc)
			if b.ElseAt == 0 {
				// An if without an else arm; blocks and loops also land
				// here, harmlessly.
				b.ElseAt = b.EndAt
			}
		}
	}
	if len(open) != 0 {
		return fmt.Errorf("%d unclosed block(s)", len(open))
	}
	return nil
}

// Call invokes f with raw argument values. Traps surface as a *wasm.Trap
// error; the instance stays usable for further calls either way.
func (e *Engine) Call(f *wasm.FunctionInstance, args ...uint64) (results []uint64, err error) {
	defer func() {
		if v := recover(); v != nil {
			t, ok := v.(*wasm.Trap)
			if !ok {
				panic(v)
			}
			wasm.Logger().Debug("trap raised",
				zap.String("function", f.Name), zap.String("code", t.Code.String()))
			results, err = nil, t
		}
	}()
	if len(args) != len(f.Signature.Params) {
		return nil, fmt.Errorf("invalid number of arguments: expected %d, got %d",
			len(f.Signature.Params), len(args))
	}
	return e.callFunction(f, args, f.ModuleInstance), nil
}

func (e *Engine) callFunction(f *wasm.FunctionInstance, args []uint64, caller *wasm.ModuleInstance) []uint64 {
	e.callDepth++
	defer func() { e.callDepth-- }()
	if e.callDepth > callStackCeiling {
		trap(wasm.TrapCodeStackOverflow)
	}

	if f.HostFunction != nil {
		return e.callHostFunction(f, args, caller)
	}

	locals := make([]uint64, len(f.Signature.Params)+len(f.LocalTypes))
	copy(locals, args)
	fr := &frame{f: f, locals: locals}
	e.exec(fr)

	nres := len(f.Signature.Results)
	results := make([]uint64, nres)
	copy(results, fr.stack[len(fr.stack)-nres:])
	return results
}

func (e *Engine) exec(fr *frame) {
	body := fr.f.Body
	for fr.pc < uint64(len(body)) {
		ins := &body[fr.pc]
		op := ins.Opcode
		switch {
		case op <= wasm.OpcodeCallIndirect:
			// Control and call instructions manage the pc themselves.
			if e.execControl(fr, ins) {
				return
			}
			continue
		case op == wasm.OpcodeDrop:
			fr.pop()
		case op == wasm.OpcodeSelect:
			c := fr.pop()
			v2, v1 := fr.pop(), fr.pop()
			if uint32(c) != 0 {
				fr.push(v1)
			} else {
				fr.push(v2)
			}
		case op <= wasm.OpcodeGlobalSet:
			fr.execVariable(ins)
		case op <= wasm.OpcodeI64Store32:
			fr.execMemoryAccess(ins)
		case op <= wasm.OpcodeMemoryGrow:
			fr.execMemoryAdmin(ins)
		case op <= wasm.OpcodeF64Const:
			fr.push(ins.U1)
		case op <= wasm.OpcodeI64Extend32S:
			fr.execNumeric(op)
		case op == wasm.OpcodeMemoryCopy || op == wasm.OpcodeMemoryFill:
			fr.execMemoryBulk(ins)
		default:
			fr.execWide(op)
		}
		fr.pc++
	}
}
