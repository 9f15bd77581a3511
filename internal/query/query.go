// Package query implements the QueryPlan executor: CountAll and Select,
// orchestrating the B-tree walker and record decoder against a loaded
// schema to produce projected rows.
package query

import (
	"fmt"
	"strconv"

	"github.com/hgye/litescan/internal/btree"
	"github.com/hgye/litescan/internal/litescanerr"
	"github.com/hgye/litescan/internal/record"
	"github.com/hgye/litescan/internal/schema"
)

// Filter is an equality predicate: column = literal_text.
type Filter struct {
	Column string
	Value  string
}

// SelectPlan is the Select variant of the QueryPlan value in spec.md §3.
type SelectPlan struct {
	Table      string
	Projection []string
	Filter     *Filter
	// UseIndex, when non-nil, names the index to scan instead of doing a
	// full table scan. The planner decides this, not the executor.
	UseIndex *string
}

// Executor orchestrates schema-driven query execution against a page
// source. It holds no mutable state between calls.
type Executor struct {
	ps  btree.PageSource
	sch *schema.Schema
}

// New builds an Executor over an already-loaded schema.
func New(ps btree.PageSource, sch *schema.Schema) *Executor {
	return &Executor{ps: ps, sch: sch}
}

// CountAll resolves table and sums TableLeafCell visits across its table
// B-tree — equivalent to summing leaf-page n_cells without ever counting
// interior-page cells, since ScanTable only visits leaf cells.
func (e *Executor) CountAll(table string) (int, error) {
	entry, err := e.sch.Table(table)
	if err != nil {
		return 0, litescanerr.Wrap("query.CountAll", err, map[string]any{"table": table})
	}

	count := 0
	err = btree.ScanTable(e.ps, entry.RootPage, func(rowid uint64, payload []byte) (bool, error) {
		count++
		return true, nil
	})
	if err != nil {
		return 0, litescanerr.Wrap("query.CountAll", err, map[string]any{"table": table, "rootpage": entry.RootPage})
	}
	return count, nil
}

// Select executes a projection, optionally filtered and optionally served
// from an index, returning one []string per row in emission order.
func (e *Executor) Select(plan SelectPlan) ([][]string, error) {
	entry, err := e.sch.Table(plan.Table)
	if err != nil {
		return nil, litescanerr.Wrap("query.Select", err, map[string]any{"table": plan.Table})
	}

	projIdx := make([]int, len(plan.Projection))
	for i, name := range plan.Projection {
		idx, err := columnIndex(entry, name)
		if err != nil {
			return nil, litescanerr.Wrap("query.Select", err, map[string]any{"table": plan.Table, "column": name})
		}
		projIdx[i] = idx
	}

	var filterIdx int = -1
	if plan.Filter != nil {
		idx, err := columnIndex(entry, plan.Filter.Column)
		if err != nil {
			return nil, litescanerr.Wrap("query.Select", err, map[string]any{"table": plan.Table, "column": plan.Filter.Column})
		}
		filterIdx = idx
	}

	if plan.UseIndex != nil {
		return e.selectViaIndex(entry, *plan.UseIndex, plan, projIdx)
	}
	return e.selectViaScan(entry, plan, projIdx, filterIdx)
}

func columnIndex(entry *schema.Entry, name string) (int, error) {
	for i, c := range entry.Columns {
		if c.Name == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: column %q not found in table %q", litescanerr.ErrSchemaNotFound, name, entry.Name)
}

func (e *Executor) selectViaScan(entry *schema.Entry, plan SelectPlan, projIdx []int, filterIdx int) ([][]string, error) {
	var rows [][]string
	err := btree.ScanTable(e.ps, entry.RootPage, func(rowid uint64, payload []byte) (bool, error) {
		rec, err := record.Decode(payload)
		if err != nil {
			return false, err
		}

		if plan.Filter != nil {
			if !matchesFilter(rec, filterIdx, plan.Filter.Value) {
				return true, nil
			}
		}

		row, err := projectRow(rec, rowid, projIdx)
		if err != nil {
			return false, err
		}
		rows = append(rows, row)
		return true, nil
	})
	if err != nil {
		return nil, litescanerr.Wrap("query.selectViaScan", err, map[string]any{"table": entry.Name, "rootpage": entry.RootPage})
	}
	return rows, nil
}

func (e *Executor) selectViaIndex(entry *schema.Entry, indexName string, plan SelectPlan, projIdx []int) ([][]string, error) {
	idxEntry, err := e.sch.Index(indexName)
	if err != nil {
		return nil, litescanerr.Wrap("query.selectViaIndex", err, map[string]any{"index": indexName})
	}

	var rowids []uint64
	key := []byte(plan.Filter.Value)
	err = btree.ScanIndexEq(e.ps, idxEntry.RootPage, key, btree.ASCIICaseInsensitiveCompare, func(rowid uint64) (bool, error) {
		rowids = append(rowids, rowid)
		return true, nil
	})
	if err != nil {
		return nil, litescanerr.Wrap("query.selectViaIndex", err, map[string]any{"index": indexName, "rootpage": idxEntry.RootPage})
	}

	rows := make([][]string, 0, len(rowids))
	for _, rowid := range rowids {
		payload, err := btree.LookupRowid(e.ps, entry.RootPage, rowid)
		if err != nil {
			return nil, litescanerr.Wrap("query.selectViaIndex", err, map[string]any{"table": entry.Name, "rowid": rowid})
		}
		rec, err := record.Decode(payload)
		if err != nil {
			return nil, err
		}
		row, err := projectRow(rec, rowid, projIdx)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func matchesFilter(rec *record.Record, filterIdx int, literal string) bool {
	if rec.IsNull(filterIdx) {
		return false
	}
	text, err := rec.AsText(filterIdx)
	if err != nil {
		return false
	}
	return btree.ASCIICaseInsensitiveCompare([]byte(text), []byte(literal)) == 0
}

func projectRow(rec *record.Record, rowid uint64, projIdx []int) ([]string, error) {
	row := make([]string, len(projIdx))
	for i, idx := range projIdx {
		v, err := formatColumn(rec, idx, rowid)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

// formatColumn renders record column idx as the text that appears in query
// output. Column 0 holding a NULL is the rowid-alias convention: the cell's
// rowid is substituted, rendered as decimal.
func formatColumn(rec *record.Record, idx int, rowid uint64) (string, error) {
	if idx == 0 && rec.IsNull(0) {
		return strconv.FormatUint(rowid, 10), nil
	}

	switch rec.SerialTypeAt(idx).Class() {
	case record.ClassNull:
		return "", nil
	case record.ClassInteger:
		v, err := rec.AsInteger(idx)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(v, 10), nil
	case record.ClassReal:
		v, err := rec.AsReal(idx)
		if err != nil {
			return "", err
		}
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case record.ClassText:
		return rec.AsText(idx)
	case record.ClassBlob:
		b, err := rec.AsBlob(idx)
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return "", nil
	}
}
