package wasm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFunctionNames(t *testing.T) {
	// Subsection 0 (module name) is skipped; subsection 1 holds three
	// entries, one of them with an index beyond any function count.
	namesec := []byte{
		0x00, 0x05, 0x04, 'd', 'e', 'm', 'o',
		0x01, 0x16,
		0x03,
		0x00, 0x03, 'a', 'd', 'd',
		0x01, 0x03, 'm', 'u', 'l',
		0xff, 0xff, 0xff, 0xff, 0x0f, 0x05, 'g', 'h', 'o', 's', 't',
	}
	m := &Module{CustomSections: map[string][]byte{"name": namesec}}

	names, err := m.FunctionNames()
	require.NoError(t, err)
	assert.Equal(t, map[uint32]string{
		0:          "add",
		1:          "mul",
		0xffffffff: "ghost",
	}, names)
}

func TestFunctionNamesMissingSection(t *testing.T) {
	m := &Module{CustomSections: map[string][]byte{}}
	_, err := m.FunctionNames()
	assert.ErrorIs(t, err, ErrCustomSectionNotFound)
}

func TestFunctionNamesTruncated(t *testing.T) {
	m := &Module{CustomSections: map[string][]byte{"name": {0x01, 0x02, 0x01}}}
	_, err := m.FunctionNames()
	assert.Error(t, err)
}
