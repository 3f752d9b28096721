package interpreter

import (
	"math"
	"reflect"

	"github.com/sigilvm/sigil/wasm"
)

func (e *Engine) execCall(fr *frame, target *wasm.FunctionInstance) {
	args := fr.popN(len(target.Signature.Params))
	for _, v := range e.callFunction(target, args, fr.f.ModuleInstance) {
		fr.push(v)
	}
}

// execCallIndirect resolves the callee through the table named by the
// instruction, checking the slot and the declared type. Index spaces are
// the caller's; the resolved function may belong to any instance.
func (e *Engine) execCallIndirect(fr *frame, ins *wasm.Instruction) {
	table := fr.f.ModuleInstance.Tables[ins.U2]
	index := uint32(fr.pop())
	if uint64(index) >= uint64(len(table.Elements)) {
		trap(wasm.TrapCodeUninitializedTableElement)
	}
	target := table.Elements[index]
	if target == nil {
		trap(wasm.TrapCodeUninitializedTableElement)
	}
	expected := fr.f.ModuleInstance.Types[ins.U1]
	if !expected.EqualsSignature(target.Signature) {
		trap(wasm.TrapCodeIndirectCallTypeMismatch)
	}
	e.execCall(fr, target)
}

func (e *Engine) callHostFunction(f *wasm.FunctionInstance, args []uint64, caller *wasm.ModuleInstance) []uint64 {
	hf := *f.HostFunction
	t := hf.Type()

	ctx := &wasm.HostFunctionCallContext{}
	if len(caller.Memories) > 0 {
		ctx.Memory = caller.Memories[0]
	}
	in := make([]reflect.Value, t.NumIn())
	in[0] = reflect.ValueOf(ctx)
	for i, raw := range args {
		p := reflect.New(t.In(i + 1)).Elem()
		switch p.Kind() {
		case reflect.Int32:
			p.SetInt(int64(int32(raw)))
		case reflect.Int64:
			p.SetInt(int64(raw))
		case reflect.Uint32:
			p.SetUint(uint64(uint32(raw)))
		case reflect.Uint64:
			p.SetUint(raw)
		case reflect.Float32:
			p.SetFloat(float64(math.Float32frombits(uint32(raw))))
		case reflect.Float64:
			p.SetFloat(math.Float64frombits(raw))
		}
		in[i+1] = p
	}

	out := hf.Call(in)
	results := make([]uint64, len(out))
	for i, v := range out {
		switch v.Kind() {
		case reflect.Int32, reflect.Int64:
			results[i] = uint64(v.Int())
		case reflect.Uint32:
			results[i] = uint64(int64(int32(uint32(v.Uint()))))
		case reflect.Uint64:
			results[i] = v.Uint()
		case reflect.Float32:
			results[i] = uint64(math.Float32bits(float32(v.Float())))
		case reflect.Float64:
			results[i] = math.Float64bits(v.Float())
		}
	}
	return results
}
