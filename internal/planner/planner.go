// Package planner turns raw SQL text into the executor's QueryPlan values
// (query.SelectPlan, or a bare COUNT(*) request), using sqlparser to build a
// real AST instead of regex-matching the query text.
package planner

import (
	"fmt"
	"strings"

	"github.com/xwb1989/sqlparser"

	"github.com/hgye/litescan/internal/litescanerr"
	"github.com/hgye/litescan/internal/query"
	"github.com/hgye/litescan/internal/schema"
)

// QueryPlan is either a CountAll request (IsCount true, Table set) or a
// Select request (Select set).
type QueryPlan struct {
	IsCount bool
	Table   string
	Select  *query.SelectPlan
}

// Plan parses sqlText against sch, resolving projections, an optional
// equality filter, and the REDESIGN index-selection heuristic: when the
// filter column matches an index's first indexed column, the plan is routed
// through that index rather than a full table scan.
func Plan(sqlText string, sch *schema.Schema) (*QueryPlan, error) {
	stmt, err := sqlparser.Parse(sqlText)
	if err != nil {
		return nil, litescanerr.Wrap("planner.Plan", fmt.Errorf("%w: %v", litescanerr.ErrUnsupported, err), map[string]any{"sql": sqlText})
	}

	sel, ok := stmt.(*sqlparser.Select)
	if !ok {
		return nil, litescanerr.Wrap("planner.Plan", fmt.Errorf("%w: only SELECT is supported", litescanerr.ErrUnsupported), map[string]any{"sql": sqlText})
	}

	table, err := tableName(sel)
	if err != nil {
		return nil, litescanerr.Wrap("planner.Plan", err, map[string]any{"sql": sqlText})
	}

	if isCountStar(sel) {
		return &QueryPlan{IsCount: true, Table: table}, nil
	}

	entry, err := sch.Table(table)
	if err != nil {
		return nil, litescanerr.Wrap("planner.Plan", err, map[string]any{"table": table})
	}

	projection, err := projection(sel, entry)
	if err != nil {
		return nil, litescanerr.Wrap("planner.Plan", err, map[string]any{"table": table})
	}

	filter, err := filter(sel)
	if err != nil {
		return nil, litescanerr.Wrap("planner.Plan", err, map[string]any{"table": table})
	}

	plan := &query.SelectPlan{Table: table, Projection: projection, Filter: filter}
	if filter != nil {
		if idxName := chooseIndex(sch, table, filter.Column); idxName != "" {
			plan.UseIndex = &idxName
		}
	}
	return &QueryPlan{Select: plan}, nil
}

func tableName(sel *sqlparser.Select) (string, error) {
	if len(sel.From) == 0 {
		return "", fmt.Errorf("%w: no FROM clause", litescanerr.ErrUnsupported)
	}
	aliased, ok := sel.From[0].(*sqlparser.AliasedTableExpr)
	if !ok {
		return "", fmt.Errorf("%w: unsupported FROM expression %T", litescanerr.ErrUnsupported, sel.From[0])
	}
	tn, ok := aliased.Expr.(sqlparser.TableName)
	if !ok {
		return "", fmt.Errorf("%w: unsupported table expression %T", litescanerr.ErrUnsupported, aliased.Expr)
	}
	return tn.Name.String(), nil
}

// isCountStar recognizes exactly `SELECT COUNT(*) FROM t`, the only
// aggregate form this engine supports.
func isCountStar(sel *sqlparser.Select) bool {
	if len(sel.SelectExprs) != 1 {
		return false
	}
	aliased, ok := sel.SelectExprs[0].(*sqlparser.AliasedExpr)
	if !ok {
		return false
	}
	fn, ok := aliased.Expr.(*sqlparser.FuncExpr)
	if !ok || !strings.EqualFold(fn.Name.String(), "count") {
		return false
	}
	if len(fn.Exprs) != 1 {
		return false
	}
	_, isStar := fn.Exprs[0].(*sqlparser.StarExpr)
	return isStar
}

// projection resolves SELECT's column list. A bare `*` expands to every
// schema column in declaration order.
func projection(sel *sqlparser.Select, entry *schema.Entry) ([]string, error) {
	if len(sel.SelectExprs) == 1 {
		if _, ok := sel.SelectExprs[0].(*sqlparser.StarExpr); ok {
			names := make([]string, len(entry.Columns))
			for i, c := range entry.Columns {
				names[i] = c.Name
			}
			return names, nil
		}
	}

	names := make([]string, 0, len(sel.SelectExprs))
	for _, se := range sel.SelectExprs {
		aliased, ok := se.(*sqlparser.AliasedExpr)
		if !ok {
			return nil, fmt.Errorf("%w: unsupported select expression %T", litescanerr.ErrUnsupported, se)
		}
		col, ok := aliased.Expr.(*sqlparser.ColName)
		if !ok {
			return nil, fmt.Errorf("%w: unsupported select expression %T", litescanerr.ErrUnsupported, aliased.Expr)
		}
		names = append(names, col.Name.String())
	}
	return names, nil
}

// filter extracts a single `column = 'literal'` equality predicate from the
// WHERE clause. Anything else (AND/OR, non-equality operators) is rejected
// as unsupported rather than silently ignored.
func filter(sel *sqlparser.Select) (*query.Filter, error) {
	if sel.Where == nil {
		return nil, nil
	}
	cmp, ok := sel.Where.Expr.(*sqlparser.ComparisonExpr)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported WHERE expression %T", litescanerr.ErrUnsupported, sel.Where.Expr)
	}
	if cmp.Operator != sqlparser.EqualStr {
		return nil, fmt.Errorf("%w: unsupported comparison operator %q", litescanerr.ErrUnsupported, cmp.Operator)
	}
	col, ok := cmp.Left.(*sqlparser.ColName)
	if !ok {
		return nil, fmt.Errorf("%w: WHERE left side must be a column", litescanerr.ErrUnsupported)
	}
	val, ok := cmp.Right.(*sqlparser.SQLVal)
	if !ok {
		return nil, fmt.Errorf("%w: WHERE right side must be a literal", litescanerr.ErrUnsupported)
	}
	return &query.Filter{Column: col.Name.String(), Value: string(val.Val)}, nil
}

// chooseIndex implements the REDESIGN index-selection heuristic: use an
// index on table whose first indexed column equals filterColumn. The first
// such index found wins; ties are not otherwise broken.
func chooseIndex(sch *schema.Schema, table, filterColumn string) string {
	for _, idx := range sch.IndexesForTable(table) {
		if len(idx.Columns) > 0 && strings.EqualFold(idx.Columns[0].Name, filterColumn) {
			return idx.Name
		}
	}
	return ""
}
