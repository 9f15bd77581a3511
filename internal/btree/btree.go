// Package btree implements the three traversal primitives over a SQLite
// B-tree rooted at a page number: full table scan, table rowid point
// lookup, and index equality scan. ScanTable uses an explicit work-stack
// rather than recursion to bound stack depth on pathologically deep trees;
// LookupRowid follows a single descent path iteratively; ScanIndexEq
// recurses once per tree level.
package btree

import (
	"fmt"

	"github.com/hgye/litescan/internal/litescanerr"
	"github.com/hgye/litescan/internal/page"
	"github.com/hgye/litescan/internal/pager"
	"github.com/hgye/litescan/internal/record"
)

// PageSource is the minimal Pager surface the walker needs, letting tests
// substitute an in-memory fixture without pulling in the real Pager.
type PageSource interface {
	ReadPage(n uint32) ([]byte, error)
	UsablePageSize() int
}

func headerAndPointers(ps PageSource, pageNum uint32) ([]byte, page.Header, []uint16, error) {
	data, err := ps.ReadPage(pageNum)
	if err != nil {
		return nil, page.Header{}, nil, err
	}
	offset := pager.PageHeaderOffset(pageNum)
	h, err := page.ParseHeader(data, offset)
	if err != nil {
		return nil, page.Header{}, nil, err
	}
	ptrs, err := page.CellPointers(data, offset, h)
	if err != nil {
		return nil, page.Header{}, nil, err
	}
	return data, h, ptrs, nil
}

// VisitFunc is called once per (rowid, payload) pair found during a table
// scan. Returning cont=false halts traversal early without error.
type VisitFunc func(rowid uint64, payload []byte) (cont bool, err error)

// ScanTable performs an in-order traversal of the table B-tree rooted at
// root, calling visit for every TableLeafCell encountered in ascending
// rowid order.
func ScanTable(ps PageSource, root uint32, visit VisitFunc) error {
	stack := []uint32{root}
	for len(stack) > 0 {
		pageNum := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		data, h, ptrs, err := headerAndPointers(ps, pageNum)
		if err != nil {
			return err
		}

		switch h.Kind {
		case page.KindTableLeaf:
			for _, ptr := range ptrs {
				cell, err := page.ReadTableLeafCell(data, int(ptr), ps.UsablePageSize())
				if err != nil {
					return err
				}
				cont, err := visit(cell.Rowid, cell.Payload)
				if err != nil {
					return err
				}
				if !cont {
					return nil
				}
			}
		case page.KindTableInterior:
			// Push children so popping yields them left-to-right: the
			// rightmost child goes on first (popped last), each cell's
			// left_child goes on in reverse cell order (popped in order).
			children := make([]uint32, 0, len(ptrs)+1)
			children = append(children, h.RightmostChild)
			for i := len(ptrs) - 1; i >= 0; i-- {
				cell, err := page.ReadTableInteriorCell(data, int(ptrs[i]))
				if err != nil {
					return err
				}
				children = append(children, cell.LeftChild)
			}
			stack = append(stack, children...)
		default:
			return litescanerr.Wrap("btree.ScanTable", fmt.Errorf("%w: page %d has kind %x, expected a table page", litescanerr.ErrUnknownPageKind, pageNum, byte(h.Kind)), nil)
		}
	}
	return nil
}

// LookupRowid performs a point lookup for rowid, descending interior pages
// by the first cell whose key is >= rowid (or the rightmost child if none
// qualifies), and linear-scanning the leaf it lands on. Fails with
// ErrNotFound if no cell matches.
func LookupRowid(ps PageSource, root uint32, rowid uint64) ([]byte, error) {
	pageNum := root
	for {
		data, h, ptrs, err := headerAndPointers(ps, pageNum)
		if err != nil {
			return nil, err
		}

		switch h.Kind {
		case page.KindTableLeaf:
			for _, ptr := range ptrs {
				cell, err := page.ReadTableLeafCell(data, int(ptr), ps.UsablePageSize())
				if err != nil {
					return nil, err
				}
				if cell.Rowid == rowid {
					return cell.Payload, nil
				}
			}
			return nil, litescanerr.Wrap("btree.LookupRowid", fmt.Errorf("%w: rowid %d", litescanerr.ErrNotFound, rowid), map[string]any{"rowid": rowid})
		case page.KindTableInterior:
			next := h.RightmostChild
			for _, ptr := range ptrs {
				cell, err := page.ReadTableInteriorCell(data, int(ptr))
				if err != nil {
					return nil, err
				}
				if cell.Key >= rowid {
					next = cell.LeftChild
					break
				}
			}
			pageNum = next
		default:
			return nil, litescanerr.Wrap("btree.LookupRowid", fmt.Errorf("%w: page %d has kind %x, expected a table page", litescanerr.ErrUnknownPageKind, pageNum, byte(h.Kind)), nil)
		}
	}
}

// KeyComparator compares a search key against an index cell's key column,
// returning <0 if key<cellKey, 0 if equal, >0 if key>cellKey.
type KeyComparator func(key, cellKey []byte) int

// ByteCompare is the default binary (BINARY collation) comparator.
func ByteCompare(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// ASCIICaseInsensitiveCompare folds ASCII letters before comparing, matching
// the documented (non-SQLite-conformant) case-insensitive behavior this
// engine preserves for TEXT equality predicates.
func ASCIICaseInsensitiveCompare(a, b []byte) int {
	return ByteCompare(foldASCII(a), foldASCII(b))
}

func foldASCII(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return out
}

// IndexVisitFunc is called once per matching rowid found during an index
// equality scan, in the index's yield order (ascending rowid for a unique
// key).
type IndexVisitFunc func(rowid uint64) (cont bool, err error)

// ScanIndexEq performs an equality scan of the index B-tree rooted at root
// for the given key, using cmp to compare the search key against each
// cell's first payload column.
func ScanIndexEq(ps PageSource, root uint32, key []byte, cmp KeyComparator, visit IndexVisitFunc) error {
	halted := false
	err := scanIndexPage(ps, root, key, cmp, visit, &halted)
	return err
}

func scanIndexPage(ps PageSource, pageNum uint32, key []byte, cmp KeyComparator, visit IndexVisitFunc, halted *bool) error {
	if *halted {
		return nil
	}
	data, h, ptrs, err := headerAndPointers(ps, pageNum)
	if err != nil {
		return err
	}

	switch h.Kind {
	case page.KindIndexLeaf:
		for _, ptr := range ptrs {
			cell, err := page.ReadIndexLeafCell(data, int(ptr), ps.UsablePageSize())
			if err != nil {
				return err
			}
			rec, err := record.Decode(cell.Payload)
			if err != nil {
				return err
			}
			cellKey := rec.ColumnBytes(0)
			c := cmp(key, cellKey)
			if c == 0 {
				rowid, err := rec.AsInteger(1)
				if err != nil {
					return err
				}
				cont, err := visit(uint64(rowid))
				if err != nil {
					return err
				}
				if !cont {
					*halted = true
					return nil
				}
			} else if c < 0 {
				// cellKey > key: ascending order means nothing further
				// on this leaf can match.
				return nil
			}
		}
		return nil

	case page.KindIndexInterior:
		for _, ptr := range ptrs {
			cell, err := page.ReadIndexInteriorCell(data, int(ptr), ps.UsablePageSize())
			if err != nil {
				return err
			}
			rec, err := record.Decode(cell.Payload)
			if err != nil {
				return err
			}
			cellKey := rec.ColumnBytes(0)
			c := cmp(key, cellKey)

			switch {
			case c < 0:
				// key < cell_key: descend left_child, then this page's
				// scan is done — every remaining sibling and the rightmost
				// child only holds keys >= cell_key > key.
				if err := scanIndexPage(ps, cell.LeftChild, key, cmp, visit, halted); err != nil {
					return err
				}
				return nil
			case c == 0:
				if err := scanIndexPage(ps, cell.LeftChild, key, cmp, visit, halted); err != nil {
					return err
				}
				if *halted {
					return nil
				}
				rowid, err := rec.AsInteger(1)
				if err != nil {
					return err
				}
				cont, err := visit(uint64(rowid))
				if err != nil {
					return err
				}
				if !cont {
					*halted = true
					return nil
				}
			default:
				// key > cell_key: continue to next sibling.
			}
		}
		return scanIndexPage(ps, h.RightmostChild, key, cmp, visit, halted)

	default:
		return litescanerr.Wrap("btree.ScanIndexEq", fmt.Errorf("%w: page %d has kind %x, expected an index page", litescanerr.ErrUnknownPageKind, pageNum, byte(h.Kind)), nil)
	}
}
