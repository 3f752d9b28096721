package wasm

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"
)

// Store is the registry tying named module instances together: the linker
// resolves imports against it, and host-defined items are added to it
// before dependent modules instantiate. A Store is not safe for concurrent
// mutation; embedders running multiple interpreter threads synchronize
// around it themselves.
type Store struct {
	Engine          Engine
	ModuleInstances map[string]*ModuleInstance
}

func NewStore(engine Engine) *Store {
	return &Store{Engine: engine, ModuleInstances: map[string]*ModuleInstance{}}
}

// Instantiate links module against the store's registry and, on success,
// registers the resulting instance under name. Linking is all-or-nothing:
// on any failure, mutations already applied to imported tables or memories
// are rolled back and the registry is left unchanged. The returned error is
// a *LinkError for import resolution failures, a *Trap for out-of-bounds
// element or data segments, or a plain error for malformed modules.
func (s *Store) Instantiate(module *Module, name string) (*ModuleInstance, error) {
	if _, ok := s.ModuleInstances[name]; ok {
		return nil, fmt.Errorf("module '%s' already instantiated", name)
	}

	instance := &ModuleInstance{
		Name:    name,
		Types:   module.TypeSection,
		Exports: map[string]*ExportInstance{},
	}
	if err := s.resolveImports(module, instance); err != nil {
		Logger().Debug("link failed", zap.String("module", name), zap.Error(err))
		return nil, err
	}

	// Element and data segments may write into imported tables and
	// memories; those writes must be undone if a later step fails.
	// Segments may overlap, so snapshots are restored newest-first.
	var rollbackFuncs []func()
	defer func() {
		for i := len(rollbackFuncs) - 1; i >= 0; i-- {
			rollbackFuncs[i]()
		}
	}()

	if err := s.buildGlobalInstances(module, instance); err != nil {
		return nil, err
	}
	if err := s.buildFunctionInstances(module, instance); err != nil {
		return nil, err
	}
	rs, err := s.buildTableInstances(module, instance)
	rollbackFuncs = append(rollbackFuncs, rs...)
	if err != nil {
		return nil, err
	}
	rs, err = s.buildMemoryInstances(module, instance)
	rollbackFuncs = append(rollbackFuncs, rs...)
	if err != nil {
		return nil, err
	}
	if err := s.buildExportInstances(module, instance); err != nil {
		return nil, err
	}

	var start *FunctionInstance
	if module.StartSection != nil {
		index := *module.StartSection
		if int(index) >= len(instance.Functions) {
			return nil, fmt.Errorf("invalid start function index: %d", index)
		}
		start = instance.Functions[index]
		if len(start.Signature.Params) != 0 || len(start.Signature.Results) != 0 {
			return nil, fmt.Errorf("start function must have an empty signature")
		}
	}

	// Safe to finalize.
	rollbackFuncs = nil
	s.ModuleInstances[name] = instance

	if start != nil {
		if _, err := s.Engine.Call(start); err != nil {
			delete(s.ModuleInstances, name)
			return nil, fmt.Errorf("calling start function failed: %w", err)
		}
	}
	Logger().Debug("module instantiated",
		zap.String("module", name),
		zap.Int("functions", len(instance.Functions)),
		zap.Int("memories", len(instance.Memories)),
		zap.Int("tables", len(instance.Tables)),
		zap.Int("globals", len(instance.Globals)))
	return instance, nil
}

// CallFunction invokes the exported function funcName of moduleName with
// raw argument values and returns the result values alongside their types.
// A *Trap aborts only this invocation; the instance remains usable.
func (s *Store) CallFunction(moduleName, funcName string, args ...uint64) (returns []uint64, returnTypes []ValueType, err error) {
	m, ok := s.ModuleInstances[moduleName]
	if !ok {
		return nil, nil, fmt.Errorf("module '%s' not instantiated", moduleName)
	}
	exp, ok := m.Exports[funcName]
	if !ok {
		return nil, nil, fmt.Errorf("exported function '%s' not found in '%s'", funcName, moduleName)
	}
	if exp.Kind != ExportKindFunction {
		return nil, nil, fmt.Errorf("'%s' is not a function export", funcName)
	}
	f := exp.Function
	if len(f.Signature.Params) != len(args) {
		return nil, nil, fmt.Errorf("invalid number of arguments: expected %d, got %d",
			len(f.Signature.Params), len(args))
	}
	ret, err := s.Engine.Call(f, args...)
	if err != nil {
		Logger().Debug("invocation failed",
			zap.String("module", moduleName), zap.String("function", funcName), zap.Error(err))
		return nil, nil, err
	}
	return ret, f.Signature.Results, nil
}

func (s *Store) resolveImports(module *Module, target *ModuleInstance) error {
	for _, im := range module.ImportSection {
		if err := s.resolveImport(target, im); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) resolveImport(target *ModuleInstance, im *Import) error {
	em, ok := s.ModuleInstances[im.Module]
	if !ok {
		return &LinkError{ModuleName: im.Module, ItemName: im.Name, Kind: LinkErrUnknownImport}
	}
	e, ok := em.Exports[im.Name]
	if !ok {
		return &LinkError{ModuleName: im.Module, ItemName: im.Name, Kind: LinkErrUnknownImport}
	}
	if e.Kind != im.Kind {
		return &LinkError{
			ModuleName: im.Module, ItemName: im.Name, Kind: LinkErrTypeMismatch,
			Expected: importKindName(im.Kind), Found: importKindName(e.Kind),
		}
	}
	switch im.Kind {
	case ImportKindFunction:
		return s.applyFunctionImport(target, im, e)
	case ImportKindTable:
		return s.applyTableImport(target, im, e)
	case ImportKindMemory:
		return s.applyMemoryImport(target, im, e)
	case ImportKindGlobal:
		return s.applyGlobalImport(target, im, e)
	default:
		return fmt.Errorf("invalid import kind: %#x", im.Kind)
	}
}

func (s *Store) applyFunctionImport(target *ModuleInstance, im *Import, e *ExportInstance) error {
	if int(im.DescFunc) >= len(target.Types) {
		return fmt.Errorf("unknown type index for function import: %d", im.DescFunc)
	}
	expected := target.Types[im.DescFunc]
	actual := e.Function.Signature
	if !expected.EqualsSignature(actual) {
		return &LinkError{
			ModuleName: im.Module, ItemName: im.Name, Kind: LinkErrTypeMismatch,
			Expected: fmt.Sprintf("type `%s`", expected),
			Found:    fmt.Sprintf("type `%s`", actual),
		}
	}
	target.Functions = append(target.Functions, e.Function)
	return nil
}

// limitsSatisfiable implements the import subtyping rule for tables and
// memories: the provided (actual) limits satisfy the declared ones when
// actual.min >= declared.min and the declared max, if any, is at least the
// actual max (which must then be present).
func limitsSatisfiable(declared, actual Limits) bool {
	if actual.Min < declared.Min {
		return false
	}
	if declared.Max == nil {
		return true
	}
	return actual.Max != nil && *actual.Max <= *declared.Max
}

func (s *Store) applyTableImport(target *ModuleInstance, im *Import, e *ExportInstance) error {
	table := e.Table
	declared := im.DescTable
	if table.Type.ElemType != declared.ElemType {
		return &LinkError{
			ModuleName: im.Module, ItemName: im.Name, Kind: LinkErrTypeMismatch,
			Expected: fmt.Sprintf("table of type `%s`", declared.ElemType),
			Found:    fmt.Sprintf("table of type `%s`", table.Type.ElemType),
		}
	}
	// The provided minimum is the table's current size, not its declared
	// minimum: a table grown past its declared min still satisfies larger
	// import minimums.
	actual := Limits{Min: uint64(len(table.Elements)), Max: table.Type.Limits.Max}
	if !limitsSatisfiable(declared.Limits, actual) {
		return &LinkError{
			ModuleName: im.Module, ItemName: im.Name, Kind: LinkErrLimitsMismatch,
			Expected: fmt.Sprintf("table limits (%s)", declared.Limits),
			Found:    fmt.Sprintf("table limits (%s)", actual),
		}
	}
	target.Tables = append(target.Tables, table)
	return nil
}

func memoryIndexName(t ValueType) string {
	if t == ValueTypeI64 {
		return "64-bit memory"
	}
	return "32-bit memory"
}

func (s *Store) applyMemoryImport(target *ModuleInstance, im *Import, e *ExportInstance) error {
	memory := e.Memory
	declared := im.DescMem
	if memory.Type.IndexType != declared.IndexType {
		return &LinkError{
			ModuleName: im.Module, ItemName: im.Name, Kind: LinkErrTypeMismatch,
			Expected: memoryIndexName(declared.IndexType),
			Found:    memoryIndexName(memory.Type.IndexType),
		}
	}
	actual := Limits{Min: memory.PageCount(), Max: memory.Type.Limits.Max}
	if !limitsSatisfiable(declared.Limits, actual) {
		return &LinkError{
			ModuleName: im.Module, ItemName: im.Name, Kind: LinkErrLimitsMismatch,
			Expected: fmt.Sprintf("memory limits (%s)", declared.Limits),
			Found:    fmt.Sprintf("memory limits (%s)", actual),
		}
	}
	target.Memories = append(target.Memories, memory)
	return nil
}

func (s *Store) applyGlobalImport(target *ModuleInstance, im *Import, e *ExportInstance) error {
	g := e.Global
	declared := im.DescGlobal
	if g.Type.ValType != declared.ValType {
		return &LinkError{
			ModuleName: im.Module, ItemName: im.Name, Kind: LinkErrTypeMismatch,
			Expected: fmt.Sprintf("global of type `%s`", declared.ValType),
			Found:    fmt.Sprintf("global of type `%s`", g.Type.ValType),
		}
	}
	if g.Type.Mutable != declared.Mutable {
		return &LinkError{
			ModuleName: im.Module, ItemName: im.Name, Kind: LinkErrMutabilityMismatch,
			Expected: fmt.Sprintf("global of type `%s`", declared),
			Found:    fmt.Sprintf("global of type `%s`", g.Type),
		}
	}
	target.Globals = append(target.Globals, g)
	return nil
}

// executeConstExpression evaluates an initializer against the instance
// under construction. global.get may only reference globals resolved so
// far, which by construction order means imported ones; forward references
// to not-yet-built local globals fail here.
func (s *Store) executeConstExpression(target *ModuleInstance, expr *ConstantExpression) (bits uint64, t ValueType, err error) {
	switch expr.Opcode {
	case OpcodeI32Const:
		return expr.Value, ValueTypeI32, nil
	case OpcodeI64Const:
		return expr.Value, ValueTypeI64, nil
	case OpcodeF32Const:
		return expr.Value, ValueTypeF32, nil
	case OpcodeF64Const:
		return expr.Value, ValueTypeF64, nil
	case OpcodeGlobalGet:
		if expr.Value >= uint64(len(target.Globals)) {
			return 0, 0, fmt.Errorf("global index out of range in constant expression")
		}
		g := target.Globals[expr.Value]
		return g.Val, g.Type.ValType, nil
	default:
		return 0, 0, fmt.Errorf("invalid constant expression opcode: %s", expr.Opcode.Name())
	}
}

func (s *Store) buildGlobalInstances(module *Module, target *ModuleInstance) error {
	for i, gs := range module.GlobalSection {
		bits, t, err := s.executeConstExpression(target, gs.Init)
		if err != nil {
			return fmt.Errorf("global %d initializer: %w", i, err)
		}
		if t != gs.Type.ValType {
			return fmt.Errorf("global %d initializer type %s doesn't match declared type %s", i, t, gs.Type.ValType)
		}
		target.Globals = append(target.Globals, &GlobalInstance{Type: gs.Type, Val: bits})
	}
	return nil
}

func (s *Store) buildFunctionInstances(module *Module, target *ModuleInstance) error {
	importedCount := module.ImportedFunctionCount()
	var names map[uint32]string
	if _, ok := module.CustomSections["name"]; ok {
		// Debug names only; entries whose index is out of range (tools
		// emit indices up to u32 max) simply never match a function.
		names, _ = module.FunctionNames()
	}
	if len(module.FunctionSection) != len(module.CodeSection) {
		return fmt.Errorf("function and code sections have inconsistent lengths")
	}
	for codeIndex, typeIndex := range module.FunctionSection {
		if int(typeIndex) >= len(module.TypeSection) {
			return fmt.Errorf("function %d: type index out of range", codeIndex)
		}
		code := module.CodeSection[codeIndex]
		f := &FunctionInstance{
			Signature:      module.TypeSection[typeIndex],
			Body:           code.Body,
			LocalTypes:     code.LocalTypes,
			ModuleInstance: target,
			Name:           names[importedCount+uint32(codeIndex)],
		}
		if err := s.Engine.Compile(f); err != nil {
			return fmt.Errorf("compilation failed for function %d/%d: %w",
				codeIndex, len(module.FunctionSection), err)
		}
		target.Functions = append(target.Functions, f)
	}
	return nil
}

func (s *Store) buildTableInstances(module *Module, target *ModuleInstance) (rollbackFuncs []func(), err error) {
	for _, tt := range module.TableSection {
		if !tt.Limits.Valid() {
			return rollbackFuncs, fmt.Errorf("invalid table limits: min %d > max %d", tt.Limits.Min, *tt.Limits.Max)
		}
		target.Tables = append(target.Tables, &TableInstance{
			Elements: make([]*FunctionInstance, tt.Limits.Min),
			Type:     tt,
		})
	}

	for _, elem := range module.ElementSection {
		if int(elem.TableIndex) >= len(target.Tables) {
			return rollbackFuncs, fmt.Errorf("element segment table index out of range: %d", elem.TableIndex)
		}
		bits, t, err := s.executeConstExpression(target, elem.Offset)
		if err != nil {
			return rollbackFuncs, fmt.Errorf("element segment offset: %w", err)
		}
		if t != ValueTypeI32 {
			return rollbackFuncs, fmt.Errorf("element segment offset must be i32, got %s", t)
		}
		offset := uint64(uint32(bits))
		table := target.Tables[elem.TableIndex]
		if offset+uint64(len(elem.Init)) > uint64(len(table.Elements)) {
			return rollbackFuncs, NewTrap(TrapCodeOutOfBoundsElementSegment)
		}
		for i, funcIndex := range elem.Init {
			if int(funcIndex) >= len(target.Functions) {
				return rollbackFuncs, fmt.Errorf("element segment references unknown function %d", funcIndex)
			}
			pos := offset + uint64(i)
			original := table.Elements[pos]
			rollbackFuncs = append(rollbackFuncs, func() {
				table.Elements[pos] = original
			})
			table.Elements[pos] = target.Functions[funcIndex]
		}
	}
	return rollbackFuncs, nil
}

func (s *Store) buildMemoryInstances(module *Module, target *ModuleInstance) (rollbackFuncs []func(), err error) {
	for _, mt := range module.MemorySection {
		if !mt.Limits.Valid() {
			return rollbackFuncs, fmt.Errorf("invalid memory limits: min %d > max %d", mt.Limits.Min, *mt.Limits.Max)
		}
		target.Memories = append(target.Memories, &MemoryInstance{
			Buffer: make([]byte, mt.Limits.Min*PageSize),
			Type:   mt,
		})
	}

	for _, d := range module.DataSection {
		if int(d.MemoryIndex) >= len(target.Memories) {
			return rollbackFuncs, fmt.Errorf("data segment memory index out of range: %d", d.MemoryIndex)
		}
		mem := target.Memories[d.MemoryIndex]
		bits, t, err := s.executeConstExpression(target, d.Offset)
		if err != nil {
			return rollbackFuncs, fmt.Errorf("data segment offset: %w", err)
		}
		if t != mem.Type.IndexType {
			return rollbackFuncs, fmt.Errorf("data segment offset type %s doesn't match memory index type %s",
				t, mem.Type.IndexType)
		}
		offset := bits
		if !mem.Type.Is64() {
			offset = uint64(uint32(bits))
		}
		end := offset + uint64(len(d.Init))
		if end < offset || end > uint64(len(mem.Buffer)) {
			return rollbackFuncs, NewTrap(TrapCodeOutOfBoundsDataSegment)
		}
		original := make([]byte, len(d.Init))
		copy(original, mem.Buffer[offset:end])
		rollbackFuncs = append(rollbackFuncs, func() {
			copy(mem.Buffer[offset:], original)
		})
		copy(mem.Buffer[offset:], d.Init)
	}
	return rollbackFuncs, nil
}

func (s *Store) buildExportInstances(module *Module, target *ModuleInstance) error {
	for name, exp := range module.ExportSection {
		index := int(exp.Index)
		switch exp.Kind {
		case ExportKindFunction:
			if index >= len(target.Functions) {
				return fmt.Errorf("export '%s': unknown function %d", name, index)
			}
			target.Exports[name] = &ExportInstance{Kind: exp.Kind, Function: target.Functions[index]}
		case ExportKindGlobal:
			if index >= len(target.Globals) {
				return fmt.Errorf("export '%s': unknown global %d", name, index)
			}
			target.Exports[name] = &ExportInstance{Kind: exp.Kind, Global: target.Globals[index]}
		case ExportKindMemory:
			if index >= len(target.Memories) {
				return fmt.Errorf("export '%s': unknown memory %d", name, index)
			}
			target.Exports[name] = &ExportInstance{Kind: exp.Kind, Memory: target.Memories[index]}
		case ExportKindTable:
			if index >= len(target.Tables) {
				return fmt.Errorf("export '%s': unknown table %d", name, index)
			}
			target.Exports[name] = &ExportInstance{Kind: exp.Kind, Table: target.Tables[index]}
		default:
			return fmt.Errorf("export '%s': invalid kind %#x", name, exp.Kind)
		}
	}
	return nil
}

// getModuleInstance returns the named instance, creating an empty one if
// needed. Host items are added to such synthesized instances before any
// dependent module links against them.
func (s *Store) getModuleInstance(name string) *ModuleInstance {
	m, ok := s.ModuleInstances[name]
	if !ok {
		m = &ModuleInstance{Name: name, Exports: map[string]*ExportInstance{}}
		s.ModuleInstances[name] = m
	}
	return m
}

// AddHostFunction exports a Go function under moduleName::funcName. The
// function must accept *HostFunctionCallContext as its first parameter;
// remaining parameters and all results must be (u)int32, (u)int64,
// float32 or float64.
func (s *Store) AddHostFunction(moduleName, funcName string, fn reflect.Value) error {
	sig, err := getSignature(fn.Type())
	if err != nil {
		return fmt.Errorf("invalid signature for host function '%s.%s': %w", moduleName, funcName, err)
	}
	m := s.getModuleInstance(moduleName)
	if _, ok := m.Exports[funcName]; ok {
		return fmt.Errorf("name '%s' already exists in module '%s'", funcName, moduleName)
	}
	f := &FunctionInstance{
		Name:           fmt.Sprintf("%s.%s", moduleName, funcName),
		HostFunction:   &fn,
		Signature:      sig,
		ModuleInstance: m,
	}
	m.Exports[funcName] = &ExportInstance{Kind: ExportKindFunction, Function: f}
	m.Functions = append(m.Functions, f)
	return nil
}

// AddGlobal exports a host-defined global cell.
func (s *Store) AddGlobal(moduleName, name string, value uint64, valueType ValueType, mutable bool) error {
	m := s.getModuleInstance(moduleName)
	if _, ok := m.Exports[name]; ok {
		return fmt.Errorf("name '%s' already exists in module '%s'", name, moduleName)
	}
	g := &GlobalInstance{Type: &GlobalType{ValType: valueType, Mutable: mutable}, Val: value}
	m.Exports[name] = &ExportInstance{Kind: ExportKindGlobal, Global: g}
	m.Globals = append(m.Globals, g)
	return nil
}

// AddTableInstance exports a host-defined table with min uninitialized
// slots.
func (s *Store) AddTableInstance(moduleName, name string, tt *TableType) error {
	if !tt.Limits.Valid() {
		return fmt.Errorf("invalid table limits: min %d > max %d", tt.Limits.Min, *tt.Limits.Max)
	}
	m := s.getModuleInstance(moduleName)
	if _, ok := m.Exports[name]; ok {
		return fmt.Errorf("name '%s' already exists in module '%s'", name, moduleName)
	}
	table := &TableInstance{Elements: make([]*FunctionInstance, tt.Limits.Min), Type: tt}
	m.Exports[name] = &ExportInstance{Kind: ExportKindTable, Table: table}
	m.Tables = append(m.Tables, table)
	return nil
}

// AddMemoryInstance exports a host-defined memory of mt.Limits.Min pages.
func (s *Store) AddMemoryInstance(moduleName, name string, mt *MemoryType) error {
	if !mt.Limits.Valid() {
		return fmt.Errorf("invalid memory limits: min %d > max %d", mt.Limits.Min, *mt.Limits.Max)
	}
	m := s.getModuleInstance(moduleName)
	if _, ok := m.Exports[name]; ok {
		return fmt.Errorf("name '%s' already exists in module '%s'", name, moduleName)
	}
	mem := &MemoryInstance{Buffer: make([]byte, mt.Limits.Min*PageSize), Type: mt}
	m.Exports[name] = &ExportInstance{Kind: ExportKindMemory, Memory: mem}
	m.Memories = append(m.Memories, mem)
	return nil
}

var hostCallContextType = reflect.TypeOf(&HostFunctionCallContext{})

func getSignature(p reflect.Type) (*FunctionType, error) {
	if p.Kind() != reflect.Func {
		return nil, fmt.Errorf("not a function: %s", p.Kind())
	}
	if p.NumIn() == 0 || p.In(0) != hostCallContextType {
		return nil, fmt.Errorf("first parameter must be *HostFunctionCallContext")
	}
	var ret FunctionType
	for i := 1; i < p.NumIn(); i++ {
		t, err := getValueType(p.In(i))
		if err != nil {
			return nil, err
		}
		ret.Params = append(ret.Params, t)
	}
	for i := 0; i < p.NumOut(); i++ {
		t, err := getValueType(p.Out(i))
		if err != nil {
			return nil, err
		}
		ret.Results = append(ret.Results, t)
	}
	return &ret, nil
}

func getValueType(t reflect.Type) (ValueType, error) {
	switch t.Kind() {
	case reflect.Int32, reflect.Uint32:
		return ValueTypeI32, nil
	case reflect.Int64, reflect.Uint64:
		return ValueTypeI64, nil
	case reflect.Float32:
		return ValueTypeF32, nil
	case reflect.Float64:
		return ValueTypeF64, nil
	default:
		return 0, fmt.Errorf("invalid type: %s", t.Kind())
	}
}
