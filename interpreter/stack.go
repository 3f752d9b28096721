package interpreter

import "github.com/sigilvm/sigil/wasm"

// label is one entry of a frame's control stack. arity is the number of
// operand values a branch to this label carries, cont the pc execution
// resumes at, and sp the operand stack height underneath the construct's
// parameters.
type label struct {
	arity int
	cont  uint64
	sp    int
}

// frame is the per-call execution state: the function, its locals
// (parameters first), the operand stack, the control stack and the
// program counter into the decoded body.
type frame struct {
	f      *wasm.FunctionInstance
	locals []uint64
	stack  []uint64
	labels []label
	pc     uint64
}

func (fr *frame) push(v uint64) {
	fr.stack = append(fr.stack, v)
}

func (fr *frame) pop() uint64 {
	v := fr.stack[len(fr.stack)-1]
	fr.stack = fr.stack[:len(fr.stack)-1]
	return v
}

func (fr *frame) peek() uint64 {
	return fr.stack[len(fr.stack)-1]
}

// popN pops n values, returning them in push order.
func (fr *frame) popN(n int) []uint64 {
	vals := make([]uint64, n)
	for i := n - 1; i >= 0; i-- {
		vals[i] = fr.pop()
	}
	return vals
}

func (fr *frame) pushLabel(arity int, cont uint64, params int) {
	fr.labels = append(fr.labels, label{arity: arity, cont: cont, sp: len(fr.stack) - params})
}

func (fr *frame) popLabel() label {
	l := fr.labels[len(fr.labels)-1]
	fr.labels = fr.labels[:len(fr.labels)-1]
	return l
}

// branch unwinds to the label depth levels up, carrying the label's arity
// of values, and jumps to its continuation. Branching to the function's
// own label (depth == len(labels)) reports true: the caller returns with
// the results already on top of the stack.
func (fr *frame) branch(depth int) (funcReturn bool) {
	if depth >= len(fr.labels) {
		return true
	}
	idx := len(fr.labels) - 1 - depth
	l := fr.labels[idx]
	fr.labels = fr.labels[:idx]
	copy(fr.stack[l.sp:], fr.stack[len(fr.stack)-l.arity:])
	fr.stack = fr.stack[:l.sp+l.arity]
	fr.pc = l.cont
	return false
}
