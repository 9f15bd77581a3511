package schema

import (
	"fmt"
	"strings"

	"github.com/xwb1989/sqlparser"

	"github.com/hgye/litescan/internal/litescanerr"
)

// ParseCreateTableColumns extracts the ordered column declarations from a
// CREATE TABLE statement using sqlparser, after normalizing SQLite-specific
// syntax to the MySQL-ish dialect sqlparser accepts.
func ParseCreateTableColumns(sqlText string) ([]ColumnDef, error) {
	if strings.TrimSpace(sqlText) == "" {
		return nil, nil
	}

	normalized := normalizeSQLiteToMySQL(sqlText)
	stmt, err := sqlparser.Parse(normalized)
	start, end := strings.Index(sqlText, "("), strings.LastIndex(sqlText, ")")
	if ddl, ok := stmt.(*sqlparser.DDL); (err != nil || (ok && ddl.TableSpec == nil)) && start != -1 && start < end {
		// sqlparser needs a declared type on every column and SQLite does
		// not (e.g. sqlite_sequence(name,seq)): read "name [type]" from each
		// comma-separated entry of the column list instead.
		var cols []ColumnDef
		for _, p := range strings.Split(sqlText[start+1:end], ",") {
			if f := strings.Fields(p); len(f) > 0 {
				cols = append(cols, ColumnDef{Name: strings.Trim(f[0], `"'`+"`"), StorageClass: storageClassFromKeyword(strings.Join(f[1:min(len(f), 2)], ""))})
			}
		}
		return cols, nil
	}
	if err != nil {
		return nil, litescanerr.Wrap("schema.ParseCreateTableColumns", fmt.Errorf("%w: %v", litescanerr.ErrInvalidSchema, err), map[string]any{"sql": sqlText})
	}

	ddl, ok := stmt.(*sqlparser.DDL)
	if !ok || ddl.Action != "create" || ddl.TableSpec == nil {
		return nil, litescanerr.Wrap("schema.ParseCreateTableColumns", fmt.Errorf("%w: not a CREATE TABLE statement", litescanerr.ErrInvalidSchema), map[string]any{"sql": sqlText})
	}

	cols := make([]ColumnDef, len(ddl.TableSpec.Columns))
	for i, c := range ddl.TableSpec.Columns {
		cols[i] = ColumnDef{
			Name:         c.Name.String(),
			StorageClass: storageClassFromKeyword(c.Type.Type),
		}
	}
	return cols, nil
}

// normalizeSQLiteToMySQL rewrites SQLite-specific CREATE TABLE syntax into
// the MySQL-ish dialect sqlparser understands: double-quoted identifiers
// become bare identifiers, and "PRIMARY KEY AUTOINCREMENT" is reordered to
// the form sqlparser expects.
func normalizeSQLiteToMySQL(sqlText string) string {
	normalized := strings.ReplaceAll(sqlText, `"`, "")
	normalized = strings.ReplaceAll(normalized, "primary key autoincrement", "AUTO_INCREMENT PRIMARY KEY")
	normalized = strings.ReplaceAll(normalized, "PRIMARY KEY AUTOINCREMENT", "AUTO_INCREMENT PRIMARY KEY")
	return strings.TrimSpace(normalized)
}

// ParseCreateIndexColumns extracts the ordered indexed-column names from a
// CREATE INDEX statement. xwb1989/sqlparser has no grammar for standalone
// CREATE INDEX (only inline KEY clauses inside CREATE TABLE), so this falls
// back to splitting the parenthesized column list on commas, preserving the
// identifiers' original case. The indexed table's name is not read here;
// see IndexTableName.
func ParseCreateIndexColumns(sqlText string) ([]ColumnDef, error) {
	start := strings.Index(sqlText, "(")
	end := strings.LastIndex(sqlText, ")")
	if start == -1 || end == -1 || start >= end {
		return nil, litescanerr.Wrap("schema.ParseCreateIndexColumns", fmt.Errorf("%w: no column list in %q", litescanerr.ErrInvalidSchema, sqlText), nil)
	}

	parts := strings.Split(sqlText[start+1:end], ",")
	cols := make([]ColumnDef, 0, len(parts))
	for _, p := range parts {
		name := strings.Trim(strings.TrimSpace(p), `"'`+"`")
		if name == "" {
			continue
		}
		cols = append(cols, ColumnDef{Name: name, StorageClass: Text})
	}
	return cols, nil
}

// IndexTableName extracts the table name an index's CREATE INDEX SQL
// targets, reading the sqlite_schema tbl_name field instead wherever
// possible — this is only needed if a caller has SQL text without the
// catalog row available.
func IndexTableName(sqlText string) string {
	lower := strings.ToLower(sqlText)
	onIdx := strings.Index(lower, " on ")
	if onIdx == -1 {
		return ""
	}
	rest := strings.TrimSpace(sqlText[onIdx+4:])
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return ""
	}
	name := fields[0]
	if p := strings.Index(name, "("); p != -1 {
		name = name[:p]
	}
	return strings.Trim(name, `"'`+"`")
}
