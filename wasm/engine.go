package wasm

// PageSize is the WebAssembly memory page size in bytes. Memory byte
// lengths are always a multiple of it.
const PageSize uint64 = 65536

// Engine is the interface implemented by interpreters.
type Engine interface {
	// Compile prepares a function instance for execution; for an
	// interpreter this means scanning the body once to record block
	// boundaries. Called by the Store while building instances.
	Compile(f *FunctionInstance) error
	// Call invokes a function instance f with the given raw argument
	// values and returns the function's results, or a *Trap.
	Call(f *FunctionInstance, args ...uint64) (returns []uint64, err error)
}
