package wasm

// Module is the immutable parsed representation of one module. It is
// produced by the parser collaborator (or built programmatically) and may
// be instantiated any number of times, each instantiation yielding an
// independent ModuleInstance.
type Module struct {
	TypeSection     []*FunctionType
	ImportSection   []*Import
	FunctionSection []uint32
	TableSection    []*TableType
	MemorySection   []*MemoryType
	GlobalSection   []*Global
	ExportSection   map[string]*Export
	StartSection    *uint32
	ElementSection  []*ElementSegment
	CodeSection     []*Code
	DataSection     []*DataSegment
	CustomSections  map[string][]byte
}

// Import and export kinds, in wire order.
const (
	ImportKindFunction byte = 0x00
	ImportKindTable    byte = 0x01
	ImportKindMemory   byte = 0x02
	ImportKindGlobal   byte = 0x03

	ExportKindFunction byte = 0x00
	ExportKindTable    byte = 0x01
	ExportKindMemory   byte = 0x02
	ExportKindGlobal   byte = 0x03
)

func importKindName(kind byte) string {
	switch kind {
	case ImportKindFunction:
		return "function"
	case ImportKindTable:
		return "table"
	case ImportKindMemory:
		return "memory"
	case ImportKindGlobal:
		return "global"
	default:
		return "unknown"
	}
}

// Import declares one imported item: where it comes from and the type the
// importing module requires of it. Exactly one Desc field is set, selected
// by Kind.
type Import struct {
	Module, Name string
	Kind         byte
	// DescFunc is a type section index.
	DescFunc   uint32
	DescTable  *TableType
	DescMem    *MemoryType
	DescGlobal *GlobalType
}

// Export maps a name to an index in the owning instance's corresponding
// index space.
type Export struct {
	Name  string
	Kind  byte
	Index uint32
}

// Global pairs a global's type with its initializer expression.
type Global struct {
	Type *GlobalType
	Init *ConstantExpression
}

// ConstantExpression is a decoded initializer: a single const instruction
// or a read of an (already-resolved, imported) global.
//
// For OpcodeI32Const/OpcodeI64Const, Value holds the sign-extended bits;
// for OpcodeF32Const/OpcodeF64Const the IEEE 754 bit pattern; for
// OpcodeGlobalGet the global index.
type ConstantExpression struct {
	Opcode Opcode
	Value  uint64
}

// ElementSegment initializes a run of table slots with function indices at
// instantiation time.
type ElementSegment struct {
	TableIndex uint32
	Offset     *ConstantExpression
	Init       []uint32
}

// DataSegment initializes a run of memory bytes at instantiation time. The
// offset expression's type must match the target memory's index type.
type DataSegment struct {
	MemoryIndex uint32
	Offset      *ConstantExpression
	Init        []byte
}

// ImportedFunctionCount returns how many of the module's function indices
// are satisfied by imports. Imported functions occupy the low indices of
// the function index space.
func (m *Module) ImportedFunctionCount() uint32 {
	var n uint32
	for _, im := range m.ImportSection {
		if im.Kind == ImportKindFunction {
			n++
		}
	}
	return n
}
