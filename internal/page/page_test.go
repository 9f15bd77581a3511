package page

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hgye/litescan/internal/testutil"
)

func TestParseHeaderLeaf(t *testing.T) {
	cell := testutil.EncodeTableLeafCell(7, []byte{0x01, 0x00})
	buf := testutil.BuildPage(512, testutil.Page{Kind: byte(KindTableLeaf), HeaderOffset: 0, Cells: [][]byte{cell}})

	h, err := ParseHeader(buf, 0)
	assert.NoError(t, err)
	assert.Equal(t, KindTableLeaf, h.Kind)
	assert.Equal(t, uint16(1), h.CellCount)
	assert.Equal(t, 8, h.HeaderSize())
}

func TestParseHeaderInteriorHasRightmostChild(t *testing.T) {
	cell := testutil.EncodeTableInteriorCell(9, 5)
	buf := testutil.BuildPage(512, testutil.Page{Kind: byte(KindTableInterior), HeaderOffset: 0, RightmostChild: 42, Cells: [][]byte{cell}})

	h, err := ParseHeader(buf, 0)
	assert.NoError(t, err)
	assert.Equal(t, KindTableInterior, h.Kind)
	assert.Equal(t, uint32(42), h.RightmostChild)
	assert.Equal(t, 12, h.HeaderSize())
}

func TestParseHeaderRejectsUnknownKind(t *testing.T) {
	buf := make([]byte, 512)
	buf[0] = 0xFF
	_, err := ParseHeader(buf, 0)
	assert.Error(t, err)
}

func TestParseHeaderAtPage1Offset(t *testing.T) {
	buf := testutil.BuildPage(512, testutil.Page{Kind: byte(KindTableLeaf), HeaderOffset: 100})
	h, err := ParseHeader(buf, 100)
	assert.NoError(t, err)
	assert.Equal(t, KindTableLeaf, h.Kind)
}

func TestCellPointersArrayOrderMatchesInsertOrder(t *testing.T) {
	c1 := testutil.EncodeTableLeafCell(1, []byte{0xAA})
	c2 := testutil.EncodeTableLeafCell(2, []byte{0xBB, 0xBB})
	c3 := testutil.EncodeTableLeafCell(3, []byte{0xCC, 0xCC, 0xCC})
	buf := testutil.BuildPage(512, testutil.Page{Kind: byte(KindTableLeaf), HeaderOffset: 0, Cells: [][]byte{c1, c2, c3}})

	h, err := ParseHeader(buf, 0)
	assert.NoError(t, err)
	ptrs, err := CellPointers(buf, 0, h)
	assert.NoError(t, err)
	assert.Len(t, ptrs, 3)

	cell, err := ReadTableLeafCell(buf, int(ptrs[0]), 512)
	assert.NoError(t, err)
	assert.Equal(t, uint64(1), cell.Rowid)

	cell2, err := ReadTableLeafCell(buf, int(ptrs[1]), 512)
	assert.NoError(t, err)
	assert.Equal(t, uint64(2), cell2.Rowid)
}

func TestReadTableLeafCell(t *testing.T) {
	payload := []byte("hello!")
	buf := append(testutil.EncodeTableLeafCell(99, payload), 0, 0, 0)
	cell, err := ReadTableLeafCell(buf, 0, 512)
	assert.NoError(t, err)
	assert.Equal(t, uint64(99), cell.Rowid)
	assert.Equal(t, payload, cell.Payload)
}

func TestReadTableInteriorCell(t *testing.T) {
	buf := testutil.EncodeTableInteriorCell(55, 1000)
	cell, err := ReadTableInteriorCell(buf, 0)
	assert.NoError(t, err)
	assert.Equal(t, uint32(55), cell.LeftChild)
	assert.Equal(t, uint64(1000), cell.Key)
}

func TestReadIndexLeafCell(t *testing.T) {
	payload := []byte("key-bytes")
	buf := testutil.EncodeIndexLeafCell(payload)
	cell, err := ReadIndexLeafCell(buf, 0, 512)
	assert.NoError(t, err)
	assert.Equal(t, payload, cell.Payload)
}

func TestReadIndexInteriorCell(t *testing.T) {
	payload := []byte("key-bytes")
	buf := testutil.EncodeIndexInteriorCell(3, payload)
	cell, err := ReadIndexInteriorCell(buf, 0, 512)
	assert.NoError(t, err)
	assert.Equal(t, uint32(3), cell.LeftChild)
	assert.Equal(t, payload, cell.Payload)
}

func TestReadTableLeafCellRejectsOverrun(t *testing.T) {
	buf := testutil.PutVarint(100) // payload_size=100 but no bytes follow
	buf = append(buf, testutil.PutVarint(1)...)
	_, err := ReadTableLeafCell(buf, 0, 512)
	assert.Error(t, err)
}

func TestReadTableLeafCellRejectsOverflowPayload(t *testing.T) {
	// usable=512 -> max local = 477; a declared payload_size of 5000 must be
	// rejected as requiring an overflow chain, not treated as truncated data.
	payload := make([]byte, 5000)
	buf := testutil.EncodeTableLeafCell(1, payload)
	_, err := ReadTableLeafCell(buf, 0, 512)
	assert.Error(t, err)
}

func TestReadIndexLeafCellAcceptsPayloadWithinLocalMax(t *testing.T) {
	payload := make([]byte, 100)
	buf := testutil.EncodeIndexLeafCell(payload)
	_, err := ReadIndexLeafCell(buf, 0, 512)
	assert.NoError(t, err)
}
