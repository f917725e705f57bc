// Package database is the access layer for the embedded engine. It opens
// the two files being reconciled as the "main" and "aux" schemas of a
// single connection (in watch mode the backup is "main" and the primary is
// "aux"). Never deal with diff construction here.
package database

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// Database is one connection with up to two attached schemas. Each diff
// and each replay opens its own.
type Database struct {
	db *sql.DB
}

// Open opens path as the "main" schema and verifies that it is a usable
// database file.
//
// The pool is pinned to one connection: ATTACH state is per-connection,
// and a single connection keeps the engine single-threaded.
func Open(path string) (*Database, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	d := &Database{db: db}
	if err := d.probe("main", path); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// Attach adds path under the given schema name and re-probes.
func (d *Database) Attach(path, schema string) error {
	stmt := fmt.Sprintf("ATTACH %s AS %s", quoteText(path), schema)
	if _, err := d.db.Exec(stmt); err != nil {
		return fmt.Errorf("cannot attach %q: %w", path, err)
	}
	return d.probe(schema, path)
}

func (d *Database) probe(schema, path string) error {
	query := fmt.Sprintf("SELECT 1 FROM %s.sqlite_master LIMIT 1", schema)
	rows, err := d.db.Query(query)
	if err != nil {
		return fmt.Errorf("%q does not appear to be a valid database: %w", path, err)
	}
	return rows.Close()
}

// LoadExtensions loads each listed extension library into the connection.
func (d *Database) LoadExtensions(paths []string) error {
	for _, path := range paths {
		if _, err := d.db.Exec("SELECT load_extension(" + quoteText(path) + ")"); err != nil {
			return fmt.Errorf("cannot load extension %q: %w", path, err)
		}
	}
	return nil
}

// TableNames returns the names of all non-virtual tables in the schema,
// leaving out the engine's internal sqlite_ tables.
func (d *Database) TableNames(schema string) ([]string, error) {
	rows, err := d.db.Query(fmt.Sprintf(
		`SELECT name FROM %s.sqlite_master
		  WHERE type = 'table'
		    AND name NOT LIKE 'sqlite_%%'
		    AND sql NOT LIKE 'CREATE VIRTUAL%%'`, schema))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// DB exposes the underlying connection pool.
func (d *Database) DB() *sql.DB {
	return d.db
}

func (d *Database) Close() error {
	return d.db.Close()
}

// ScanRow scans the current row of rows into a generic value slice. The
// engine's dynamic types come back as int64, float64, string, []byte or
// nil.
func ScanRow(rows *sql.Rows) ([]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	return vals, nil
}

// quoteText renders s as a single-quoted SQL string.
func quoteText(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
