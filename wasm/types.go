package wasm

import (
	"fmt"
	"strings"
)

// FunctionType is the signature of a function: ordered parameter and result
// types. Equality is structural.
type FunctionType struct {
	Params, Results []ValueType
}

// EqualsSignature reports structural equality with another signature.
func (t *FunctionType) EqualsSignature(other *FunctionType) bool {
	return HasSameSignature(t.Params, other.Params) &&
		HasSameSignature(t.Results, other.Results)
}

// String renders the type in text-format notation, e.g.
// "(func (param i32 i64) (result i64))". This rendering is part of the link
// error contract.
func (t *FunctionType) String() string {
	var sb strings.Builder
	sb.WriteString("(func")
	if len(t.Params) > 0 {
		sb.WriteString(" (param")
		for _, p := range t.Params {
			sb.WriteByte(' ')
			sb.WriteString(p.String())
		}
		sb.WriteByte(')')
	}
	if len(t.Results) > 0 {
		sb.WriteString(" (result")
		for _, r := range t.Results {
			sb.WriteByte(' ')
			sb.WriteString(r.String())
		}
		sb.WriteByte(')')
	}
	sb.WriteByte(')')
	return sb.String()
}

// Limits constrains the growable size of a memory (in pages) or table
// (in elements). Min must not exceed Max when Max is present.
type Limits struct {
	Min uint64
	Max *uint64
}

// String renders limits the way link errors report them, e.g.
// "min: 1, max: none".
func (l Limits) String() string {
	if l.Max == nil {
		return fmt.Sprintf("min: %d, max: none", l.Min)
	}
	return fmt.Sprintf("min: %d, max: %d", l.Min, *l.Max)
}

// Valid reports whether min <= max holds (vacuously true without a max).
func (l Limits) Valid() bool {
	return l.Max == nil || l.Min <= *l.Max
}

// RefType is the element type of a table.
type RefType byte

const (
	RefTypeFunc   RefType = 0x70
	RefTypeExtern RefType = 0x6f
)

func (r RefType) String() string {
	switch r {
	case RefTypeFunc:
		return "funcref"
	case RefTypeExtern:
		return "externref"
	default:
		return fmt.Sprintf("unknown(0x%x)", byte(r))
	}
}

// TableType declares a table's element type and size limits.
type TableType struct {
	ElemType RefType
	Limits   Limits
}

// MemoryType declares a memory's size limits (in 64KiB pages) and its index
// type: ValueTypeI32 for ordinary memories, ValueTypeI64 for 64-bit-indexed
// ones. Addresses, offsets, sizes and grow deltas all take the index type.
type MemoryType struct {
	Limits    Limits
	IndexType ValueType
}

// Is64 reports whether the memory uses 64-bit indexing.
func (m *MemoryType) Is64() bool {
	return m.IndexType == ValueTypeI64
}

// GlobalType declares a global's value type and mutability.
type GlobalType struct {
	ValType ValueType
	Mutable bool
}

// String renders the global type the way link errors report it: "i32" for
// immutable globals, "mut i32" for mutable ones.
func (g GlobalType) String() string {
	if g.Mutable {
		return "mut " + g.ValType.String()
	}
	return g.ValType.String()
}
