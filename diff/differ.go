// Package diff generates the statement stream that transforms the "main"
// database of a connection into its attached "aux" database.
package diff

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/chinarulezzz/repqlite/database"
)

// timeLayout renders the journal header timestamp.
const timeLayout = "02 January 2006 03:04:05 PM"

// Journal is the append-only output stream for a diff. Offset reports the
// byte position at which the next write lands.
type Journal interface {
	io.Writer
	Offset() int64
}

// tableDiffer generates the statements reconciling a single table. The
// two implementations are the standard SQL differ and the RBU staging
// differ, selected at construction.
type tableDiffer interface {
	diffTable(w io.Writer, tab string) error
}

// Differ drives a diff of every table of a database pair.
type Differ struct {
	db       *database.Database
	conf     Config
	perTable tableDiffer
}

// New builds a differ over db, which must have the backup open as "main"
// and the primary attached as "aux".
func New(db *database.Database, conf Config) *Differ {
	if conf.RBU {
		// Staged updates identify rows by the declared key.
		conf.SchemaPK = true
	}
	d := &Differ{db: db, conf: conf}
	if conf.RBU {
		d.perTable = rbuDiffer{d}
	} else {
		d.perTable = standardDiffer{d}
	}
	return d
}

type standardDiffer struct{ d *Differ }

func (s standardDiffer) diffTable(w io.Writer, tab string) error {
	return s.d.diffStandard(w, tab)
}

type rbuDiffer struct{ d *Differ }

func (r rbuDiffer) diffTable(w io.Writer, tab string) error {
	return r.d.diffRBU(w, tab)
}

// Diff appends a timestamp header and the statements reconciling every
// table to out. It returns the byte offset of the first statement, or -1
// when the databases already match (in which case nothing beyond the
// header is written, transaction brackets included).
func (d *Differ) Diff(out Journal) (int64, error) {
	if _, err := fmt.Fprintf(out, "-- %s\n", time.Now().Format(timeLayout)); err != nil {
		return -1, err
	}
	fstart := out.Offset()

	// Union of the table names on both sides, sorted so the statement
	// stream is deterministic.
	seen := map[string]bool{}
	var tables []string
	for _, schema := range []string{"main", "aux"} {
		names, err := d.db.TableNames(schema)
		if err != nil {
			return -1, err
		}
		for _, name := range names {
			if !seen[name] {
				seen[name] = true
				tables = append(tables, name)
			}
		}
	}
	sort.Strings(tables)

	var buf bytes.Buffer
	for _, name := range tables {
		if !d.conf.wantTable(name) {
			continue
		}
		if err := d.perTable.diffTable(&buf, name); err != nil {
			return -1, fmt.Errorf("table %s: %w", name, err)
		}
	}
	if buf.Len() == 0 {
		return -1, nil
	}

	if d.conf.Transaction {
		if _, err := io.WriteString(out, "BEGIN TRANSACTION;\n"); err != nil {
			return -1, err
		}
	}
	if _, err := out.Write(buf.Bytes()); err != nil {
		return -1, err
	}
	if d.conf.Transaction {
		if _, err := io.WriteString(out, "COMMIT;\n"); err != nil {
			return -1, err
		}
	}
	return fstart, nil
}

// query runs q and returns every row as a generic value slice.
func (d *Differ) query(q string) ([][]any, error) {
	rows, err := d.db.DB().Query(q)
	if err != nil {
		return nil, fmt.Errorf("%w in: %s", err, q)
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		vals, err := database.ScanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}

// debugQuery prints q and reports true when DebugQueries asks for the
// generated SQL instead of its execution.
func (d *Differ) debugQuery(q string) bool {
	if d.conf.Debug&DebugQueries == 0 {
		return false
	}
	fmt.Fprintf(os.Stderr, "%s\n", q)
	return true
}
