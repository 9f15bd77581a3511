// Package testutil builds synthetic SQLite-file-format byte buffers for
// tests, so package tests never depend on an external sample.db fixture.
// It is test-only tooling: the engine itself never writes pages.
package testutil

import (
	"encoding/binary"
	"math"
)

// PutVarint encodes v using SQLite's putVarint64 algorithm: 7 bits per byte
// for up to 8 bytes, a 9th byte carrying the remaining 8 bits when the top
// byte (bits 56-63) is nonzero.
func PutVarint(v uint64) []byte {
	if v&0xFF00000000000000 != 0 {
		buf := make([]byte, 9)
		buf[8] = byte(v)
		v >>= 8
		for i := 7; i >= 0; i-- {
			buf[i] = byte(v&0x7f) | 0x80
			v >>= 7
		}
		return buf
	}
	var tmp [9]byte
	n := 0
	for {
		tmp[n] = byte(v&0x7f) | 0x80
		n++
		v >>= 7
		if v == 0 {
			break
		}
	}
	tmp[0] &^= 0x80
	out := make([]byte, n)
	for i, j := 0, n-1; j >= 0; i, j = i+1, j-1 {
		out[i] = tmp[j]
	}
	return out
}

// Value is one record column, ready to be laid into a header serial type
// and a body byte run.
type Value struct {
	serialType uint64
	body       []byte
}

func Null() Value { return Value{serialType: 0} }

func Int(v int64) Value {
	u := uint64(v)
	switch {
	case v >= -128 && v <= 127:
		return Value{serialType: 1, body: []byte{byte(u)}}
	case v >= -32768 && v <= 32767:
		return Value{serialType: 2, body: be(2, u)}
	case v >= -8388608 && v <= 8388607:
		return Value{serialType: 3, body: be(3, u)}
	case v >= -2147483648 && v <= 2147483647:
		return Value{serialType: 4, body: be(4, u)}
	default:
		return Value{serialType: 6, body: be(8, u)}
	}
}

func Real(f float64) Value {
	return Value{serialType: 7, body: be(8, math.Float64bits(f))}
}

func Text(s string) Value {
	b := []byte(s)
	return Value{serialType: uint64(13 + 2*len(b)), body: b}
}

func Blob(b []byte) Value {
	return Value{serialType: uint64(12 + 2*len(b)), body: b}
}

func be(n int, v uint64) []byte {
	b := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

// EncodeRecord lays out a full record payload: header_size varint, one
// serial-type varint per value, then the value bodies in order.
func EncodeRecord(values ...Value) []byte {
	var serials []byte
	for _, v := range values {
		serials = append(serials, PutVarint(v.serialType)...)
	}

	// header_size includes its own varint encoding; try 1 byte first and
	// grow if that's not self-consistent (only matters for very wide rows).
	headerLen := 1 + len(serials)
	headerSizeBytes := PutVarint(uint64(headerLen))
	for len(headerSizeBytes)+len(serials) != headerLen {
		headerLen = len(headerSizeBytes) + len(serials)
		headerSizeBytes = PutVarint(uint64(headerLen))
	}

	out := append([]byte(nil), headerSizeBytes...)
	out = append(out, serials...)
	for _, v := range values {
		out = append(out, v.body...)
	}
	return out
}

// EncodeTableLeafCell builds a TableLeafCell: payload_size varint, rowid
// varint, payload.
func EncodeTableLeafCell(rowid uint64, payload []byte) []byte {
	out := PutVarint(uint64(len(payload)))
	out = append(out, PutVarint(rowid)...)
	out = append(out, payload...)
	return out
}

// EncodeTableInteriorCell builds a TableInteriorCell: 4-byte left_child,
// varint key.
func EncodeTableInteriorCell(leftChild uint32, key uint64) []byte {
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, leftChild)
	out = append(out, PutVarint(key)...)
	return out
}

// EncodeIndexLeafCell builds an IndexLeafCell: payload_size varint, payload.
func EncodeIndexLeafCell(payload []byte) []byte {
	out := PutVarint(uint64(len(payload)))
	out = append(out, payload...)
	return out
}

// EncodeIndexInteriorCell builds an IndexInteriorCell: 4-byte left_child,
// payload_size varint, payload.
func EncodeIndexInteriorCell(leftChild uint32, payload []byte) []byte {
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, leftChild)
	out = append(out, PutVarint(uint64(len(payload)))...)
	out = append(out, payload...)
	return out
}

// Page describes one page to be laid into a synthetic database image.
// Cells must be supplied in ascending logical-key (array) order; BuildPage
// lays their bytes from the end of the page backward and records cell
// pointers in the same order so iterating the pointer array in array order
// yields cells in ascending key order, per spec.
type Page struct {
	Kind           byte // page.Kind value
	HeaderOffset   int  // 100 for page 1, 0 otherwise
	RightmostChild uint32
	Cells          [][]byte
}

// BuildPage renders one fixed-size page buffer.
func BuildPage(pageSize int, p Page) []byte {
	buf := make([]byte, pageSize)

	headerSize := 8
	isInterior := p.Kind == 0x05 || p.Kind == 0x02
	if isInterior {
		headerSize = 12
	}

	buf[p.HeaderOffset] = p.Kind
	binary.BigEndian.PutUint16(buf[p.HeaderOffset+3:], uint16(len(p.Cells)))
	if isInterior {
		binary.BigEndian.PutUint32(buf[p.HeaderOffset+8:], p.RightmostChild)
	}

	pointerArrayStart := p.HeaderOffset + headerSize
	cellEnd := pageSize
	pointers := make([]uint16, len(p.Cells))
	for i, cell := range p.Cells {
		cellEnd -= len(cell)
		copy(buf[cellEnd:], cell)
		pointers[i] = uint16(cellEnd)
	}
	binary.BigEndian.PutUint16(buf[p.HeaderOffset+5:], uint16(cellEnd))

	for i, ptr := range pointers {
		off := pointerArrayStart + i*2
		binary.BigEndian.PutUint16(buf[off:], ptr)
	}

	return buf
}

// BuildDatabase assembles a full database file image from 1-based page
// buffers (each already pageSize bytes, as returned by BuildPage), and
// stamps the 100-byte database header (magic, page size, reserved bytes)
// into page 1.
func BuildDatabase(pageSize int, reservedPerPage uint8, pages map[uint32][]byte) []byte {
	maxPage := uint32(0)
	for n := range pages {
		if n > maxPage {
			maxPage = n
		}
	}

	out := make([]byte, int(maxPage)*pageSize)
	for n, data := range pages {
		offset := int(n-1) * pageSize
		copy(out[offset:offset+pageSize], data)
	}

	copy(out[0:16], []byte("SQLite format 3\x00"))
	pageSizeField := uint16(pageSize)
	if pageSize == 65536 {
		pageSizeField = 1
	}
	binary.BigEndian.PutUint16(out[16:18], pageSizeField)
	out[20] = reservedPerPage

	return out
}
