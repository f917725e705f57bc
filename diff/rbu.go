package diff

import (
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/chinarulezzz/repqlite/database"
	"github.com/chinarulezzz/repqlite/delta"
)

// diffRBU appends the staged-update form of one table's diff: a
// CREATE TABLE for the data_<tab> staging table (emitted before the first
// row only) and one INSERT per differing row, carrying an rbu_control
// value describing the change.
func (d *Differ) diffRBU(w io.Writer, tab string) error {
	match, present, err := d.schemasMatch(tab)
	if err != nil {
		return err
	}
	if !present {
		return fmt.Errorf("table %s missing from one or both databases", tab)
	}
	if !match {
		return fmt.Errorf("schema changed for table %s", tab)
	}

	azCol, nPK, implicitRowid, err := d.tableColumns("main", tab)
	if err != nil {
		return err
	}
	if azCol == nil {
		slog.Warn("table has no usable primary key, skipped", "table", tab)
		return nil
	}
	nCol := len(azCol)
	bRowid := 0
	if implicitRowid {
		bRowid = 1
	}

	// Staging-table column list: the rowid (if any) appears under the
	// fixed name rbu_rowid.
	staged := azCol[bRowid:]
	cols := ""
	if implicitRowid {
		cols = "rbu_rowid, "
	}
	cols += strings.Join(staged, ", ") + ", rbu_control"

	qTab := strings.ReplaceAll(tab, "'", "''")
	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS 'data_%s'(%s);", qTab, cols)
	insPrefix := fmt.Sprintf("INSERT INTO 'data_%s' (%s) VALUES(", qTab, cols)

	q := rbuDiffQuery(tab, azCol, nPK, implicitRowid)
	if d.debugQuery(q) {
		return nil
	}

	rows, err := d.db.DB().Query(q)
	if err != nil {
		return fmt.Errorf("%w in: %s", err, q)
	}
	defer rows.Close()

	first := true
	for rows.Next() {
		vals, err := database.ScanRow(rows)
		if err != nil {
			return err
		}
		if first {
			fmt.Fprintf(w, "%s\n", create)
			first = false
		}
		io.WriteString(w, insPrefix)

		// The control column is an integer for inserts (0) and deletes
		// (1); updates carry a dot/x string with the old row values
		// following for delta generation.
		control := vals[nCol]
		if _, ok := control.(int64); ok {
			sep := ""
			for i := 0; i <= nCol; i++ {
				fmt.Fprintf(w, "%s%s", sep, valueOf(vals[i]).Literal())
				sep = ", "
			}
		} else {
			ctl := []byte(asString(control))
			for i := 0; i < nCol; i++ {
				emitted := false
				if i >= nPK {
					// A blob-to-blob change is worth a delta only when
					// the encoding actually shrinks it.
					if nv, ok := vals[i].([]byte); ok {
						if ov, ok := vals[nCol+1+i].([]byte); ok {
							enc := delta.Encode(ov, nv)
							if len(enc) < len(nv) {
								fmt.Fprintf(w, "x'%s'", hex.EncodeToString(enc))
								ctl[i-bRowid] = 'f'
								emitted = true
							}
						}
					}
				}
				if !emitted {
					io.WriteString(w, valueOf(vals[i]).Literal())
				}
				io.WriteString(w, ", ")
			}
			fmt.Fprintf(w, "'%s'", ctl)
		}
		io.WriteString(w, ");\n")
	}
	return rows.Err()
}

// rbuDiffQuery builds the three-branch query describing one table's diff
// in staging form. Each result row holds the new values for every column,
// the control value, and the old values (NULL except for updates).
func rbuDiffQuery(tab string, azCol []string, nPK int, implicitRowid bool) string {
	var q strings.Builder
	nCol := len(azCol)
	pk := azCol[:nPK]
	data := azCol[nPK:]
	qId := QuoteID(tab)

	nulls := func(n int) string {
		return strings.TrimSuffix(strings.Repeat("NULL, ", n), ", ")
	}
	pkMatch := joinCols(pk, " AND ", func(c string) string {
		return fmt.Sprintf("(n.%s = o.%s)", c, c)
	})
	pkNotNull := joinCols(pk, " AND ", func(c string) string {
		return fmt.Sprintf("(n.%s IS NOT NULL)", c)
	})

	// Newly inserted rows; control 0.
	fmt.Fprintf(&q, "SELECT %s, 0, %s\n  FROM aux.%s AS n WHERE NOT EXISTS (\n",
		strings.Join(azCol, ", "), nulls(nCol), qId)
	fmt.Fprintf(&q, "    SELECT 1 FROM main.%s AS o WHERE %s\n) AND %s",
		qId, pkMatch, pkNotNull)

	// Deleted rows; control 1.
	q.WriteString("\nUNION ALL\nSELECT ")
	q.WriteString(strings.Join(pk, ", "))
	if len(data) > 0 {
		q.WriteString(", " + nulls(len(data)))
	}
	fmt.Fprintf(&q, ", 1, %s\n  FROM main.%s AS n WHERE NOT EXISTS (\n", nulls(nCol), qId)
	fmt.Fprintf(&q, "    SELECT 1 FROM aux.%s AS o WHERE %s\n) AND %s",
		qId, pkMatch, pkNotNull)

	// Updated rows. When every column is part of the key there can be no
	// updates and the branch is omitted.
	if len(data) > 0 {
		q.WriteString("\nUNION ALL\nSELECT ")
		q.WriteString(joinCols(pk, ", ", func(c string) string {
			return "n." + c
		}))
		for _, c := range data {
			fmt.Fprintf(&q, ",\n    CASE WHEN n.%s IS o.%s THEN NULL ELSE n.%s END", c, c, c)
		}
		// The control string: one dot per key position (suppressed when
		// the key is the rowid, which travels as rbu_rowid), then a
		// dot/x flag per data column.
		if implicitRowid {
			q.WriteString(",\n")
		} else {
			fmt.Fprintf(&q, ", '%s' ||\n", strings.Repeat(".", nPK))
		}
		q.WriteString(joinCols(data, " ||\n", func(c string) string {
			return fmt.Sprintf("    CASE WHEN n.%s IS o.%s THEN '.' ELSE 'x' END", c, c)
		}))
		fmt.Fprintf(&q, "\nAS ota_control, %s", nulls(nPK))
		for _, c := range data {
			fmt.Fprintf(&q, ",\n    o.%s", c)
		}
		fmt.Fprintf(&q, "\nFROM main.%s AS o, aux.%s AS n\nWHERE %s AND ota_control LIKE '%%x%%'",
			qId, qId, pkMatch)
	}

	q.WriteString("\nORDER BY ")
	for i := 1; i <= nPK; i++ {
		if i > 1 {
			q.WriteString(", ")
		}
		fmt.Fprintf(&q, "%d", i)
	}
	return q.String()
}

// joinCols renders one SQL fragment per column and joins them with sep.
func joinCols(cols []string, sep string, render func(string) string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = render(c)
	}
	return strings.Join(parts, sep)
}
