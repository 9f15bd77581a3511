// Package page parses SQLite page headers and the four cell layouts that
// appear in table and index B-tree pages.
package page

import (
	"encoding/binary"
	"fmt"

	"github.com/hgye/litescan/internal/litescanerr"
	"github.com/hgye/litescan/internal/varint"
)

// Kind tags the type of a B-tree page, read from the first byte of its
// page-header.
type Kind byte

const (
	KindTableInterior Kind = 0x05
	KindTableLeaf     Kind = 0x0D
	KindIndexInterior Kind = 0x02
	KindIndexLeaf     Kind = 0x0A
)

// IsInterior reports whether this kind routes by key rather than carrying
// payloads directly.
func (k Kind) IsInterior() bool {
	return k == KindTableInterior || k == KindIndexInterior
}

// IsTable reports whether this kind belongs to a table B-tree (as opposed
// to an index B-tree).
func (k Kind) IsTable() bool {
	return k == KindTableInterior || k == KindTableLeaf
}

func parseKind(b byte) (Kind, error) {
	switch Kind(b) {
	case KindTableInterior, KindTableLeaf, KindIndexInterior, KindIndexLeaf:
		return Kind(b), nil
	default:
		return 0, litescanerr.Wrap("page.parseKind", fmt.Errorf("%w: 0x%02x", litescanerr.ErrUnknownPageKind, b), nil)
	}
}

// Header is a decoded B-tree page-header. RightmostChild is only meaningful
// when Kind.IsInterior() is true.
type Header struct {
	Kind             Kind
	FirstFreeblock   uint16
	CellCount        uint16
	CellContentStart uint16
	FragmentedBytes  uint8
	RightmostChild   uint32
}

// HeaderSize returns 8 for leaf pages, 12 for interior pages.
func (h Header) HeaderSize() int {
	if h.Kind.IsInterior() {
		return 12
	}
	return 8
}

// ParseHeader decodes the page-header starting at the given offset within
// pageData. Page 1's header starts at offset 100; every other page's header
// starts at offset 0.
func ParseHeader(pageData []byte, offset int) (Header, error) {
	if offset+8 > len(pageData) {
		return Header{}, litescanerr.Wrap("page.ParseHeader", fmt.Errorf("%w: page too short for header at offset %d", litescanerr.ErrInvalidHeader, offset), nil)
	}
	kind, err := parseKind(pageData[offset])
	if err != nil {
		return Header{}, err
	}
	h := Header{
		Kind:             kind,
		FirstFreeblock:   binary.BigEndian.Uint16(pageData[offset+1 : offset+3]),
		CellCount:        binary.BigEndian.Uint16(pageData[offset+3 : offset+5]),
		CellContentStart: binary.BigEndian.Uint16(pageData[offset+5 : offset+7]),
		FragmentedBytes:  pageData[offset+7],
	}
	if kind.IsInterior() {
		if offset+12 > len(pageData) {
			return Header{}, litescanerr.Wrap("page.ParseHeader", fmt.Errorf("%w: page too short for interior header at offset %d", litescanerr.ErrInvalidHeader, offset), nil)
		}
		h.RightmostChild = binary.BigEndian.Uint32(pageData[offset+8 : offset+12])
	}
	return h, nil
}

// CellPointers reads the n_cells big-endian u16 offsets that immediately
// follow the page-header.
func CellPointers(pageData []byte, headerOffset int, h Header) ([]uint16, error) {
	start := headerOffset + h.HeaderSize()
	end := start + int(h.CellCount)*2
	if end > len(pageData) {
		return nil, litescanerr.Wrap("page.CellPointers", fmt.Errorf("%w: cell pointer array overruns page", litescanerr.ErrInvalidHeader), nil)
	}
	out := make([]uint16, h.CellCount)
	for i := range out {
		out[i] = binary.BigEndian.Uint16(pageData[start+i*2 : start+i*2+2])
	}
	return out, nil
}

// TableLeafCell is a row in a table B-tree leaf page.
type TableLeafCell struct {
	Rowid   uint64
	Payload []byte
}

// TableInteriorCell routes a table B-tree interior page.
type TableInteriorCell struct {
	LeftChild uint32
	Key       uint64 // rowid
}

// IndexLeafCell is an entry in an index B-tree leaf page.
type IndexLeafCell struct {
	Payload []byte
}

// IndexInteriorCell routes an index B-tree interior page.
type IndexInteriorCell struct {
	LeftChild uint32
	Payload   []byte
}

// tableLeafMaxLocal is the largest payload a table leaf cell may store
// entirely on-page before SQLite spills the remainder to an overflow chain
// (SQLite file format §1.6: X = U-35).
func tableLeafMaxLocal(usablePageSize int) int {
	return usablePageSize - 35
}

// indexMaxLocal is the largest payload an index cell (leaf or interior) may
// store entirely on-page (SQLite file format §1.6: X = (U-12)*64/255-23).
func indexMaxLocal(usablePageSize int) int {
	return (usablePageSize-12)*64/255 - 23
}

func checkNoOverflow(operation string, payloadSize uint64, maxLocal int) error {
	if int64(payloadSize) > int64(maxLocal) {
		return litescanerr.Wrap(operation, fmt.Errorf("%w: overflow (payload_size %d exceeds local max %d)", litescanerr.ErrUnsupported, payloadSize, maxLocal), map[string]any{"payload_size": payloadSize, "max_local": maxLocal})
	}
	return nil
}

// ReadTableLeafCell parses a TableLeafCell at the given page-relative
// offset: payload_size varint, rowid varint, then payload_size bytes.
// usablePageSize is the page size minus reserved bytes, used to detect
// payloads that would require an overflow chain (unsupported, see
// Non-goals).
func ReadTableLeafCell(pageData []byte, offset int, usablePageSize int) (TableLeafCell, error) {
	payloadSize, pos, err := varint.ReadAt(pageData, offset)
	if err != nil {
		return TableLeafCell{}, err
	}
	rowid, pos2, err := varint.ReadAt(pageData, pos)
	if err != nil {
		return TableLeafCell{}, err
	}
	if err := checkNoOverflow("page.ReadTableLeafCell", payloadSize, tableLeafMaxLocal(usablePageSize)); err != nil {
		return TableLeafCell{}, err
	}
	payload, err := slice(pageData, pos2, payloadSize)
	if err != nil {
		return TableLeafCell{}, err
	}
	return TableLeafCell{Rowid: rowid, Payload: payload}, nil
}

// ReadTableInteriorCell parses a TableInteriorCell: 4-byte big-endian
// left_child followed by a varint key.
func ReadTableInteriorCell(pageData []byte, offset int) (TableInteriorCell, error) {
	if offset+4 > len(pageData) {
		return TableInteriorCell{}, litescanerr.Wrap("page.ReadTableInteriorCell", fmt.Errorf("%w: cell at %d exceeds page", litescanerr.ErrInvalidHeader, offset), nil)
	}
	leftChild := binary.BigEndian.Uint32(pageData[offset : offset+4])
	key, _, err := varint.ReadAt(pageData, offset+4)
	if err != nil {
		return TableInteriorCell{}, err
	}
	return TableInteriorCell{LeftChild: leftChild, Key: key}, nil
}

// ReadIndexLeafCell parses an IndexLeafCell: payload_size varint, then
// payload_size bytes.
func ReadIndexLeafCell(pageData []byte, offset int, usablePageSize int) (IndexLeafCell, error) {
	payloadSize, pos, err := varint.ReadAt(pageData, offset)
	if err != nil {
		return IndexLeafCell{}, err
	}
	if err := checkNoOverflow("page.ReadIndexLeafCell", payloadSize, indexMaxLocal(usablePageSize)); err != nil {
		return IndexLeafCell{}, err
	}
	payload, err := slice(pageData, pos, payloadSize)
	if err != nil {
		return IndexLeafCell{}, err
	}
	return IndexLeafCell{Payload: payload}, nil
}

// ReadIndexInteriorCell parses an IndexInteriorCell: 4-byte big-endian
// left_child, payload_size varint, then payload_size bytes.
func ReadIndexInteriorCell(pageData []byte, offset int, usablePageSize int) (IndexInteriorCell, error) {
	if offset+4 > len(pageData) {
		return IndexInteriorCell{}, litescanerr.Wrap("page.ReadIndexInteriorCell", fmt.Errorf("%w: cell at %d exceeds page", litescanerr.ErrInvalidHeader, offset), nil)
	}
	leftChild := binary.BigEndian.Uint32(pageData[offset : offset+4])
	payloadSize, pos, err := varint.ReadAt(pageData, offset+4)
	if err != nil {
		return IndexInteriorCell{}, err
	}
	if err := checkNoOverflow("page.ReadIndexInteriorCell", payloadSize, indexMaxLocal(usablePageSize)); err != nil {
		return IndexInteriorCell{}, err
	}
	payload, err := slice(pageData, pos, payloadSize)
	if err != nil {
		return IndexInteriorCell{}, err
	}
	return IndexInteriorCell{LeftChild: leftChild, Payload: payload}, nil
}

func slice(data []byte, start int, size uint64) ([]byte, error) {
	end := start + int(size)
	if start < 0 || end > len(data) || size > uint64(len(data)) {
		return nil, litescanerr.Wrap("page.slice", fmt.Errorf("%w: payload [%d:%d] exceeds buffer of length %d", litescanerr.ErrMalformedRecord, start, end, len(data)), nil)
	}
	return data[start:end], nil
}
