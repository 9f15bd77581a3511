// Package schema bootstraps from the sqlite_schema catalog table (page 1)
// and exposes the table/index metadata the planner and executor need.
package schema

import (
	"fmt"
	"strings"

	"github.com/hgye/litescan/internal/btree"
	"github.com/hgye/litescan/internal/litescanerr"
	"github.com/hgye/litescan/internal/page"
	"github.com/hgye/litescan/internal/pager"
	"github.com/hgye/litescan/internal/record"
)

// StorageClass is the declared column type, mapped from the CREATE TABLE
// type keyword (not to be confused with a row's actual per-value serial
// type, which can differ, e.g. for the rowid alias).
type StorageClass int

const (
	Integer StorageClass = iota
	Text
	Real
	Blob
	Null
)

func storageClassFromKeyword(kw string) StorageClass {
	switch strings.ToUpper(strings.TrimSpace(kw)) {
	case "INTEGER", "INT":
		return Integer
	case "TEXT", "VARCHAR", "CHAR":
		return Text
	case "REAL", "FLOAT", "DOUBLE":
		return Real
	case "BLOB":
		return Blob
	default:
		return Text
	}
}

// ColumnDef is one declared column of a table schema.
type ColumnDef struct {
	Name         string
	StorageClass StorageClass
}

// EntryKind is the sqlite_schema row's "type" field.
type EntryKind string

const (
	KindTable   EntryKind = "table"
	KindIndex   EntryKind = "index"
	KindView    EntryKind = "view"
	KindTrigger EntryKind = "trigger"
)

// Entry is one row of sqlite_schema.
type Entry struct {
	Kind     EntryKind
	Name     string
	TblName  string
	RootPage uint32
	SQL      string

	// Columns holds the ordered declared column list for table entries,
	// and the ordered indexed-column name list for index entries.
	Columns []ColumnDef
}

// Schema is the full catalog loaded from sqlite_schema: every entry plus a
// name-indexed view of the tables and indexes for fast lookup.
type Schema struct {
	Entries []Entry
	tables  map[string]*Entry
	indexes map[string]*Entry
}

// Table looks up a table entry by name.
func (s *Schema) Table(name string) (*Entry, error) {
	e, ok := s.tables[name]
	if !ok {
		return nil, litescanerr.Wrap("schema.Table", fmt.Errorf("%w: %s", litescanerr.ErrSchemaNotFound, name), map[string]any{"table": name})
	}
	return e, nil
}

// Index looks up an index entry by name.
func (s *Schema) Index(name string) (*Entry, error) {
	e, ok := s.indexes[name]
	if !ok {
		return nil, litescanerr.Wrap("schema.Index", fmt.Errorf("%w: %s", litescanerr.ErrSchemaNotFound, name), map[string]any{"index": name})
	}
	return e, nil
}

// IndexesForTable returns every index entry whose tbl_name matches table,
// in schema order.
func (s *Schema) IndexesForTable(table string) []*Entry {
	var out []*Entry
	for _, e := range s.Entries {
		e := e
		if e.Kind == KindIndex && e.TblName == table {
			out = append(out, &e)
		}
	}
	return out
}

// schemaRootPage is always page 1: sqlite_schema's table B-tree root.
const schemaRootPage uint32 = 1

// Load bootstraps the schema: reads page 1's header, confirms it is (or
// contains) a table B-tree, and scans it for sqlite_schema rows.
func Load(ps btree.PageSource) (*Schema, error) {
	data, err := ps.ReadPage(schemaRootPage)
	if err != nil {
		return nil, litescanerr.Wrap("schema.Load", err, nil)
	}
	h, err := page.ParseHeader(data, pager.PageHeaderOffset(schemaRootPage))
	if err != nil {
		return nil, litescanerr.Wrap("schema.Load", err, nil)
	}
	if !h.Kind.IsTable() {
		return nil, litescanerr.Wrap("schema.Load", fmt.Errorf("%w: page 1 is not a table B-tree", litescanerr.ErrInvalidSchema), nil)
	}

	var entries []Entry
	// Page 1's root is almost always itself a TableLeaf, but a database
	// large enough to need an interior root at page 1 must still work:
	// scan_table handles both cases uniformly.
	err = btree.ScanTable(ps, schemaRootPage, func(rowid uint64, payload []byte) (bool, error) {
		rec, err := record.Decode(payload)
		if err != nil {
			return false, err
		}
		if rec.ColumnCount() != 5 {
			return false, litescanerr.Wrap("schema.Load", fmt.Errorf("%w: sqlite_schema row has %d columns, expected 5", litescanerr.ErrInvalidSchema, rec.ColumnCount()), nil)
		}

		kind, err := rec.AsText(0)
		if err != nil {
			return false, err
		}
		name, err := rec.AsText(1)
		if err != nil {
			return false, err
		}
		tblName, err := rec.AsText(2)
		if err != nil {
			return false, err
		}
		rootPage, err := rec.AsInteger(3)
		if err != nil {
			return false, err
		}
		var sql string
		if !rec.IsNull(4) {
			sql, err = rec.AsText(4)
			if err != nil {
				return false, err
			}
		}

		entry := Entry{
			Kind:     EntryKind(kind),
			Name:     name,
			TblName:  tblName,
			RootPage: uint32(rootPage),
			SQL:      sql,
		}

		switch entry.Kind {
		case KindTable:
			cols, err := ParseCreateTableColumns(sql)
			if err != nil {
				return false, err
			}
			entry.Columns = cols
		case KindIndex:
			cols, err := ParseCreateIndexColumns(sql)
			if err != nil {
				return false, err
			}
			entry.Columns = cols
		}

		entries = append(entries, entry)
		return true, nil
	})
	if err != nil {
		return nil, litescanerr.Wrap("schema.Load", err, nil)
	}

	s := &Schema{Entries: entries, tables: map[string]*Entry{}, indexes: map[string]*Entry{}}
	for i := range entries {
		e := &entries[i]
		switch e.Kind {
		case KindTable:
			s.tables[e.Name] = e
		case KindIndex:
			s.indexes[e.Name] = e
		}
	}
	return s, nil
}
