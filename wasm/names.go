package wasm

import (
	"bytes"
	"fmt"
	"io"

	"github.com/sigilvm/sigil/leb128"
)

// FunctionNames decodes the function-name subsection of the "name" custom
// section into an index-to-name map. Indices are returned as decoded, even
// when they exceed the module's function count (debug tooling emits such
// entries, up to the full u32 range); callers associating names with
// functions skip out-of-range indices rather than failing.
func (m *Module) FunctionNames() (map[uint32]string, error) {
	namesec, ok := m.CustomSections["name"]
	if !ok {
		return nil, fmt.Errorf("'name' %w", ErrCustomSectionNotFound)
	}

	r := bytes.NewReader(namesec)
	for {
		id, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("failed to read subsection ID: %w", err)
		}
		size, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read the size of subsection %d: %w", id, err)
		}
		if id == 1 {
			// Function name subsection.
			break
		}
		if _, err := r.Seek(int64(size), io.SeekCurrent); err != nil {
			return nil, fmt.Errorf("failed to skip subsection %d: %w", id, err)
		}
	}

	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read the size of name vector: %w", err)
	}

	names := make(map[uint32]string, count)
	for i := uint32(0); i < count; i++ {
		index, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read function index: %w", err)
		}
		name, err := readName(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read function name: %w", err)
		}
		names[index] = name
	}
	return names, nil
}

func readName(r *bytes.Reader) (string, error) {
	size, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return "", fmt.Errorf("read size of name: %w", err)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read bytes of name: %w", err)
	}
	return string(buf), nil
}
