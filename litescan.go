// Package litescan is a read-only query engine for single-file databases in
// the SQLite file format. It wires the Pager, Schema loader, planner, and
// query executor behind a single Database handle.
package litescan

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/hgye/litescan/internal/litescanerr"
	"github.com/hgye/litescan/internal/pager"
	"github.com/hgye/litescan/internal/planner"
	"github.com/hgye/litescan/internal/query"
	"github.com/hgye/litescan/internal/schema"
)

// Config holds the tunables a caller can set via Option.
type Config struct {
	Logger *logrus.Logger
}

// Option is a functional option for Open, following the config pattern the
// teacher repo's DatabaseOption establishes.
type Option func(*Config)

// WithLogger sets the logrus logger used for structured diagnostics. The
// default is logrus.StandardLogger().
func WithLogger(l *logrus.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

func defaultConfig() *Config {
	return &Config{Logger: logrus.StandardLogger()}
}

// Database is a read-only handle onto one SQLite-format file.
type Database struct {
	closer io.Closer
	pager  *pager.Pager
	schema *schema.Schema
	exec   *query.Executor
	log    *logrus.Entry
}

// Open reads path's header and catalog and returns a ready-to-query
// Database. The underlying file is held open until Close.
func Open(path string, opts ...Option) (*Database, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	logEntry := cfg.Logger.WithField("path", path)

	f, err := os.Open(path)
	if err != nil {
		return nil, litescanerr.Wrap("litescan.Open", err, map[string]any{"path": path})
	}

	pg, err := pager.Open(f, logEntry)
	if err != nil {
		f.Close()
		return nil, litescanerr.Wrap("litescan.Open", err, map[string]any{"path": path})
	}

	sch, err := schema.Load(pg)
	if err != nil {
		f.Close()
		return nil, litescanerr.Wrap("litescan.Open", err, map[string]any{"path": path})
	}

	return &Database{
		closer: f,
		pager:  pg,
		schema: sch,
		exec:   query.New(pg, sch),
		log:    logEntry,
	}, nil
}

// Close releases the underlying file handle.
func (d *Database) Close() error {
	return d.closer.Close()
}

// PageSize returns the database's declared page size, in bytes.
func (d *Database) PageSize() int {
	return d.pager.PageSize()
}

// TableCount returns the number of sqlite_schema rows, matching `.dbinfo`'s
// "number of tables" line (which, per sqlite3's own .dbinfo, counts every
// catalog row — tables, indexes, views, and triggers alike — not just user
// tables).
func (d *Database) TableCount() int {
	return len(d.schema.Entries)
}

// Tables returns every table name in sqlite_schema, in catalog order,
// including bookkeeping tables like sqlite_sequence.
func (d *Database) Tables() []string {
	var names []string
	for _, e := range d.schema.Entries {
		if e.Kind == schema.KindTable {
			names = append(names, e.Name)
		}
	}
	return names
}

// Result is the outcome of ExecuteSQL: either a scalar Count (from
// SELECT COUNT(*)) or a set of projected Rows.
type Result struct {
	Count *int
	Rows  [][]string
}

// ExecuteSQL parses sql, plans it against the loaded schema, and executes
// it: COUNT(*) queries set Result.Count, everything else sets Result.Rows.
func (d *Database) ExecuteSQL(sql string) (*Result, error) {
	plan, err := planner.Plan(sql, d.schema)
	if err != nil {
		return nil, litescanerr.Wrap("litescan.ExecuteSQL", err, map[string]any{"sql": sql})
	}

	if plan.IsCount {
		n, err := d.exec.CountAll(plan.Table)
		if err != nil {
			return nil, litescanerr.Wrap("litescan.ExecuteSQL", err, map[string]any{"sql": sql})
		}
		return &Result{Count: &n}, nil
	}

	rows, err := d.exec.Select(*plan.Select)
	if err != nil {
		return nil, litescanerr.Wrap("litescan.ExecuteSQL", err, map[string]any{"sql": sql})
	}
	return &Result{Rows: rows}, nil
}

// FormatRows renders rows the way the CLI prints them: one line per row,
// columns joined with "|" (omitted entirely for single-column rows).
func FormatRows(rows [][]string) string {
	var out string
	for _, row := range rows {
		line := row[0]
		for _, col := range row[1:] {
			line += "|" + col
		}
		out += line + "\n"
	}
	return out
}
