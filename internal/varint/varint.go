// Package varint decodes SQLite's 1-to-9-byte big-endian variable-length
// integers: the first eight bytes contribute their low 7 bits each, stopping
// at the first byte whose high bit is clear; a ninth byte, if reached,
// contributes all 8 bits.
package varint

import "github.com/hgye/litescan/internal/litescanerr"

// Read decodes a varint from the start of data, returning the decoded value
// and the number of bytes consumed. It fails with ErrTruncatedVarint if data
// is empty.
func Read(data []byte) (value uint64, consumed int, err error) {
	if len(data) == 0 {
		return 0, 0, litescanerr.ErrTruncatedVarint
	}

	var result uint64
	n := len(data)
	if n > 9 {
		n = 9
	}
	for i := 0; i < n; i++ {
		b := data[i]
		if i == 8 {
			result = (result << 8) | uint64(b)
			return result, i + 1, nil
		}
		result = (result << 7) | uint64(b&0x7F)
		if b&0x80 == 0 {
			return result, i + 1, nil
		}
	}
	// Ran out of bytes before the high bit cleared.
	return 0, 0, litescanerr.ErrTruncatedVarint
}

// ReadAt is a convenience wrapper reading a varint at an offset within a
// larger buffer, returning the absolute offset just past the varint.
func ReadAt(data []byte, offset int) (value uint64, next int, err error) {
	if offset < 0 || offset > len(data) {
		return 0, offset, litescanerr.ErrTruncatedVarint
	}
	v, n, err := Read(data[offset:])
	if err != nil {
		return 0, offset, err
	}
	return v, offset + n, nil
}
