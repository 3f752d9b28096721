// Package leb128 decodes the variable-length integers used by the
// WebAssembly binary format.
package leb128

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrOverflow32 means a varint kept a continuation bit past the last
	// byte a 32-bit value may occupy.
	ErrOverflow32 = errors.New("overflows a 32-bit integer")
	// ErrOverflow64 is ErrOverflow32 for 64-bit values.
	ErrOverflow64 = errors.New("overflows a 64-bit integer")
)

// DecodeUint32 reads an unsigned 32-bit LEB128 integer. num is the number of
// bytes consumed.
func DecodeUint32(r io.Reader) (ret uint32, num uint64, err error) {
	for shift := 0; shift < 35; shift += 7 {
		b, err := readByte(r)
		if err != nil {
			return 0, 0, fmt.Errorf("readByte failed: %w", err)
		}
		num++
		ret |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		if shift == 28 {
			return 0, 0, ErrOverflow32
		}
	}
	return
}

// DecodeUint64 reads an unsigned 64-bit LEB128 integer.
func DecodeUint64(r io.Reader) (ret uint64, num uint64, err error) {
	for shift := 0; shift < 64; shift += 7 {
		b, err := readByte(r)
		if err != nil {
			return 0, 0, fmt.Errorf("readByte failed: %w", err)
		}
		num++
		ret |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		if shift == 63 {
			return 0, 0, ErrOverflow64
		}
	}
	return
}

// DecodeInt32 reads a signed 32-bit LEB128 integer.
func DecodeInt32(r io.Reader) (ret int32, num uint64, err error) {
	var shift int
	var b byte
	for shift < 35 {
		b, err = readByte(r)
		if err != nil {
			return 0, 0, fmt.Errorf("readByte failed: %w", err)
		}
		num++
		ret |= int32(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	// Sign-extend when the final group's sign bit is set.
	if shift < 32 && b&0x40 != 0 {
		ret |= ^0 << shift
	}
	return
}

// DecodeInt64 reads a signed 64-bit LEB128 integer.
func DecodeInt64(r io.Reader) (ret int64, num uint64, err error) {
	var shift int
	var b byte
	for shift < 64 {
		b, err = readByte(r)
		if err != nil {
			return 0, 0, fmt.Errorf("readByte failed: %w", err)
		}
		num++
		ret |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < 64 && b&0x40 != 0 {
		ret |= ^0 << shift
	}
	return
}

// DecodeInt33AsInt64 reads a signed 33-bit LEB128 integer, the encoding
// used by block types, widened to int64.
func DecodeInt33AsInt64(r io.Reader) (ret int64, num uint64, err error) {
	const (
		mask33 int64 = 1<<33 - 1
		sign33 int64 = 1 << 32
	)
	var shift int
	var b byte
	for shift < 35 {
		b, err = readByte(r)
		if err != nil {
			return 0, 0, fmt.Errorf("readByte failed: %w", err)
		}
		num++
		ret |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < 33 && b&0x40 != 0 {
		ret |= mask33 << shift
	}
	ret &= mask33
	if ret&sign33 != 0 {
		ret -= sign33 << 1
	}
	return ret, num, nil
}

func readByte(r io.Reader) (byte, error) {
	if br, ok := r.(io.ByteReader); ok {
		return br.ReadByte()
	}
	var b [1]byte
	_, err := io.ReadFull(r, b[:])
	return b[0], err
}
