package diff

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/chinarulezzz/repqlite/database"
)

// diffStandard appends the SQL statements that, executed against a copy of
// main, reconcile one table with aux.
func (d *Differ) diffStandard(w io.Writer, tab string) error {
	zId := QuoteID(tab)

	mainHas, err := d.hasTable("main", tab)
	if err != nil {
		return err
	}
	auxHas, err := d.hasTable("aux", tab)
	if err != nil {
		return err
	}
	switch {
	case !mainHas && !auxHas:
		return nil
	case mainHas && !auxHas:
		fmt.Fprintf(w, "DROP TABLE %s;\n", zId)
		return nil
	case !mainHas && auxHas:
		return d.dumpTable(w, tab)
	}

	az, nPk, _, err := d.tableColumns("main", tab)
	if err != nil {
		return err
	}
	az2, nPk2, _, err := d.tableColumns("aux", tab)
	if err != nil {
		return err
	}
	if az == nil || az2 == nil {
		slog.Warn("table has no usable primary key, skipped", "table", tab)
		return nil
	}

	// The column lists must agree on the key and on every column main
	// declares; aux may only add trailing columns.
	same := nPk == nPk2 && len(az) <= len(az2)
	if same {
		for i := range az {
			if !strings.EqualFold(az[i], az2[i]) {
				same = false
				break
			}
		}
	}
	if !same {
		fmt.Fprintf(w, "DROP TABLE %s; -- due to schema mismatch\n", zId)
		return d.dumpTable(w, tab)
	}

	for _, col := range az2[len(az):] {
		fmt.Fprintf(w, "ALTER TABLE %s ADD COLUMN %s;\n", zId, col)
	}

	if err := d.dropMissingIndexes(w, tab); err != nil {
		return err
	}
	if err := d.diffRows(w, zId, az, az2, nPk); err != nil {
		return err
	}
	return d.createNewIndexes(w, tab)
}

// diffRows runs the three-branch comparison query and emits one
// UPDATE/DELETE/INSERT per differing row.
func (d *Differ) diffRows(w io.Writer, zId string, az, az2 []string, nPk int) error {
	q := rowDiffQuery(zId, az, az2, nPk, d.conf.SchemaPK)
	if d.debugQuery(q) {
		return nil
	}

	n2 := len(az2)
	rows, err := d.db.DB().Query(q)
	if err != nil {
		return fmt.Errorf("%w in: %s", err, q)
	}
	defer rows.Close()

	for rows.Next() {
		vals, err := database.ScanRow(rows)
		if err != nil {
			return err
		}
		switch asInt(vals[nPk]) {
		case 1: // changed
			fmt.Fprintf(w, "UPDATE %s", zId)
			sep := " SET"
			for j, i := 0, nPk; i < n2; j, i = j+1, i+1 {
				if asInt(vals[nPk+1+2*j]) == 0 {
					continue
				}
				fmt.Fprintf(w, "%s %s=%s", sep, az2[i], valueOf(vals[nPk+2+2*j]).Literal())
				sep = ","
			}
			writePkClause(w, az2, vals, nPk)
		case 2: // deleted
			fmt.Fprintf(w, "DELETE FROM %s", zId)
			writePkClause(w, az2, vals, nPk)
		case 3: // inserted
			fmt.Fprintf(w, "INSERT INTO %s(%s) VALUES(", zId, strings.Join(az2, ","))
			sep := ""
			for i := 0; i < nPk; i++ {
				fmt.Fprintf(w, "%s%s", sep, valueOf(vals[i]).Literal())
				sep = ","
			}
			for j, i := 0, nPk; i < n2; j, i = j+1, i+1 {
				fmt.Fprintf(w, "%s%s", sep, valueOf(vals[nPk+2+2*j]).Literal())
				sep = ","
			}
			io.WriteString(w, ");\n")
		}
	}
	return rows.Err()
}

func writePkClause(w io.Writer, az []string, vals []any, nPk int) {
	sep := " WHERE"
	for i := 0; i < nPk; i++ {
		fmt.Fprintf(w, "%s %s=%s", sep, az[i], valueOf(vals[i]).Literal())
		sep = " AND"
	}
	io.WriteString(w, ";\n")
}

// rowDiffQuery builds a single UNION ALL query whose rows describe every
// difference of one table: the key values, an op code (1 changed,
// 2 deleted, 3 inserted) and, per data column, a changed flag and the new
// value. Comparisons use IS NOT so two NULLs compare equal; output is
// ordered by the key so replay is deterministic.
func rowDiffQuery(zId string, az, az2 []string, nPk int, schemaPK bool) string {
	var q strings.Builder
	n1, n2 := len(az), len(az2)
	pk := az2[:nPk]

	pkMatch := func(b *strings.Builder) {
		for i, c := range pk {
			if i > 0 {
				b.WriteString(" AND ")
			}
			fmt.Fprintf(b, "A.%s=B.%s", c, c)
		}
	}
	// Under a declared key, rows with a NULL key column take part in no
	// branch of the comparison.
	pkNotNull := func(b *strings.Builder, alias string) {
		if !schemaPK {
			return
		}
		for _, c := range pk {
			fmt.Fprintf(b, " AND %s.%s IS NOT NULL", alias, c)
		}
	}

	if n2 > nPk {
		q.WriteString("SELECT ")
		for _, c := range pk {
			fmt.Fprintf(&q, "B.%s, ", c)
		}
		q.WriteString("1") // changed row
		for i := nPk; i < n2; i++ {
			c := az2[i]
			if i < n1 {
				fmt.Fprintf(&q, ",\n       A.%s IS NOT B.%s, B.%s", c, c, c)
			} else {
				// Column added on the aux side; the patched copy holds
				// NULL after ALTER TABLE.
				fmt.Fprintf(&q, ",\n       B.%s IS NOT NULL, B.%s", c, c)
			}
		}
		fmt.Fprintf(&q, "\n  FROM main.%s A, aux.%s B\n WHERE ", zId, zId)
		pkMatch(&q)
		pkNotNull(&q, "B")
		q.WriteString("\n   AND (")
		for i := nPk; i < n2; i++ {
			if i > nPk {
				q.WriteString(" OR ")
			}
			if c := az2[i]; i < n1 {
				fmt.Fprintf(&q, "A.%s IS NOT B.%s", c, c)
			} else {
				fmt.Fprintf(&q, "B.%s IS NOT NULL", c)
			}
		}
		q.WriteString(")\n UNION ALL\n")
	}

	q.WriteString("SELECT ")
	for _, c := range pk {
		fmt.Fprintf(&q, "A.%s, ", c)
	}
	q.WriteString("2") // deleted row
	for i := nPk; i < n2; i++ {
		q.WriteString(",\n       NULL, NULL")
	}
	fmt.Fprintf(&q, "\n  FROM main.%s A\n WHERE NOT EXISTS(SELECT 1 FROM aux.%s B WHERE ", zId, zId)
	pkMatch(&q)
	q.WriteString(")")
	pkNotNull(&q, "A")

	q.WriteString("\n UNION ALL\nSELECT ")
	for _, c := range pk {
		fmt.Fprintf(&q, "B.%s, ", c)
	}
	q.WriteString("3") // inserted row
	for i := nPk; i < n2; i++ {
		fmt.Fprintf(&q, ",\n       1, B.%s", az2[i])
	}
	fmt.Fprintf(&q, "\n  FROM aux.%s B\n WHERE NOT EXISTS(SELECT 1 FROM main.%s A WHERE ", zId, zId)
	pkMatch(&q)
	q.WriteString(")")
	pkNotNull(&q, "B")

	q.WriteString("\n ORDER BY ")
	for i := 1; i <= nPk; i++ {
		if i > 1 {
			q.WriteString(", ")
		}
		fmt.Fprintf(&q, "%d", i)
	}
	return q.String()
}

// dumpTable writes the aux-side schema of tab, every row, and its indexes.
func (d *Differ) dumpTable(w io.Writer, tab string) error {
	zId := QuoteID(tab)

	rows, err := d.query(fmt.Sprintf(
		"SELECT sql FROM aux.sqlite_master WHERE type = 'table' AND name = %s",
		StringConstant(tab)))
	if err != nil {
		return err
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%s;\n", asString(r[0]))
	}

	az, nPk, _, err := d.tableColumns("aux", tab)
	if err != nil {
		return err
	}
	var sel, insPrefix string
	if az == nil {
		// No usable key; dump in storage order.
		sel = fmt.Sprintf("SELECT * FROM aux.%s", zId)
		insPrefix = fmt.Sprintf("INSERT INTO %s VALUES", zId)
	} else {
		var q strings.Builder
		q.WriteString("SELECT " + strings.Join(az, ", "))
		fmt.Fprintf(&q, " FROM aux.%s ORDER BY ", zId)
		for i := 1; i <= nPk; i++ {
			if i > 1 {
				q.WriteString(", ")
			}
			fmt.Fprintf(&q, "%d", i)
		}
		sel = q.String()
		insPrefix = fmt.Sprintf("INSERT INTO %s(%s) VALUES", zId, strings.Join(az, ","))
	}

	if !d.debugQuery(sel) {
		data, err := d.db.DB().Query(sel)
		if err != nil {
			return err
		}
		defer data.Close()
		for data.Next() {
			vals, err := database.ScanRow(data)
			if err != nil {
				return err
			}
			io.WriteString(w, insPrefix)
			sep := "("
			for _, v := range vals {
				fmt.Fprintf(w, "%s%s", sep, valueOf(v).Literal())
				sep = ","
			}
			io.WriteString(w, ");\n")
		}
		if err := data.Err(); err != nil {
			return err
		}
	}

	idx, err := d.query(fmt.Sprintf(
		"SELECT sql FROM aux.sqlite_master WHERE type = 'index' AND tbl_name = %s AND sql IS NOT NULL",
		StringConstant(tab)))
	if err != nil {
		return err
	}
	for _, r := range idx {
		fmt.Fprintf(w, "%s;\n", asString(r[0]))
	}
	return nil
}

// dropMissingIndexes drops every index of main whose definition no longer
// appears in aux.
func (d *Differ) dropMissingIndexes(w io.Writer, tab string) error {
	rows, err := d.query(fmt.Sprintf(
		`SELECT name FROM main.sqlite_master
		  WHERE type = 'index' AND tbl_name = %s AND sql IS NOT NULL
		    AND sql NOT IN (SELECT sql FROM aux.sqlite_master
		                     WHERE type = 'index' AND tbl_name = %s AND sql IS NOT NULL)`,
		StringConstant(tab), StringConstant(tab)))
	if err != nil {
		return err
	}
	for _, r := range rows {
		fmt.Fprintf(w, "DROP INDEX %s;\n", QuoteID(asString(r[0])))
	}
	return nil
}

// createNewIndexes replays, verbatim, every index definition present in
// aux but absent from main.
func (d *Differ) createNewIndexes(w io.Writer, tab string) error {
	rows, err := d.query(fmt.Sprintf(
		`SELECT sql FROM aux.sqlite_master
		  WHERE type = 'index' AND tbl_name = %s AND sql IS NOT NULL
		    AND sql NOT IN (SELECT sql FROM main.sqlite_master
		                     WHERE type = 'index' AND tbl_name = %s AND sql IS NOT NULL)`,
		StringConstant(tab), StringConstant(tab)))
	if err != nil {
		return err
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%s;\n", asString(r[0]))
	}
	return nil
}
