package diff

import (
	"fmt"
	"os"
	"strings"

	"github.com/k0kubun/pp/v3"
)

// rowidAliases are the names under which the synthesised row identifier is
// reachable, in preference order. An alias is only usable when no declared
// column shadows it.
var rowidAliases = []string{"rowid", "_rowid_", "oid"}

// tableColumns resolves the ordered column list of schema.tab: primary-key
// columns first (in declared order), then data columns in declared order.
// Identifiers come back in SQL-safe form. implicitRowid reports that the
// key is the synthesised row identifier, in which case az[0] holds its
// chosen alias.
//
// When the key is the rowid but every alias collides with a declared
// column, the table cannot be diffed and the result is (nil, 0, false, nil).
func (d *Differ) tableColumns(schema, tab string) (az []string, nPK int, implicitRowid bool, err error) {
	// truePk means the declared pk ordinals of table_info identify the key
	// columns; otherwise the key is the hidden rowid.
	truePk := false

	if d.conf.SchemaPK {
		// Use whatever PRIMARY KEY the schema declares; fall back to the
		// rowid when there is none.
		truePk = true
		rows, err := d.query(fmt.Sprintf("PRAGMA %s.table_info = %s", schema, StringConstant(tab)))
		if err != nil {
			return nil, 0, false, err
		}
		for _, r := range rows {
			if asInt(r[5]) > 0 {
				nPK++
			}
		}
		if nPK == 0 {
			nPK = 1
		}
	} else {
		// Find the true key: the declared PRIMARY KEY for WITHOUT ROWID
		// tables and INTEGER PRIMARY KEY tables, the rowid otherwise.
		pkIdx := ""
		rows, err := d.query(fmt.Sprintf("PRAGMA %s.index_list = %s", schema, StringConstant(tab)))
		if err != nil {
			return nil, 0, false, err
		}
		for _, r := range rows {
			if strings.EqualFold(asString(r[3]), "pk") {
				pkIdx = asString(r[1])
				break
			}
		}
		if pkIdx == "" {
			// No PRIMARY KEY index: either an INTEGER PRIMARY KEY (whose
			// table_info ordinal still places it) or a plain rowid table.
			truePk = true
			nPK = 1
		} else {
			xinfo, err := d.query(fmt.Sprintf("PRAGMA %s.index_xinfo = %s", schema, StringConstant(pkIdx)))
			if err != nil {
				return nil, 0, false, err
			}
			nCol, nKey := 0, 0
			for _, r := range xinfo {
				nCol++
				if asInt(r[5]) != 0 {
					nKey++
				} else if asInt(r[1]) >= 0 {
					// A non-key column that is a real table column (not
					// the rowid, cid -1): the index is a WITHOUT ROWID
					// table itself.
					truePk = true
				}
			}
			if nCol == nKey {
				// Every index column is a key column: WITHOUT ROWID.
				truePk = true
			}
			if truePk {
				// WITHOUT ROWID: the declared key is honest.
				nPK = nKey
			} else {
				nPK = 1
			}
		}
	}

	az = make([]string, nPK)
	info, err := d.query(fmt.Sprintf("PRAGMA %s.table_info = %s", schema, StringConstant(tab)))
	if err != nil {
		return nil, 0, false, err
	}
	for _, r := range info {
		name := QuoteID(asString(r[1]))
		if pkOrd := asInt(r[5]); truePk && pkOrd > 0 {
			az[pkOrd-1] = name
		} else {
			az = append(az, name)
		}
	}

	if az[0] == "" {
		implicitRowid = true
		for _, alias := range rowidAliases {
			collides := false
			for _, col := range az[1:] {
				if strings.EqualFold(col, alias) {
					collides = true
					break
				}
			}
			if !collides {
				az[0] = alias
				break
			}
		}
		if az[0] == "" {
			// Every alias is shadowed by a declared column; there is no
			// way to name the key.
			return nil, 0, false, nil
		}
	}

	if d.conf.Debug&DebugColumns != 0 {
		pp.Fprintln(os.Stderr, struct {
			Schema, Table string
			Columns       []string
			NPk           int
			ImplicitRowid bool
		}{schema, tab, az, nPK, implicitRowid})
	}
	return az, nPK, implicitRowid, nil
}

// hasTable reports whether schema contains a table named tab.
func (d *Differ) hasTable(schema, tab string) (bool, error) {
	rows, err := d.query(fmt.Sprintf(
		"SELECT count(*) FROM %s.sqlite_master WHERE type = 'table' AND name = %s",
		schema, StringConstant(tab)))
	if err != nil {
		return false, err
	}
	return len(rows) > 0 && asInt(rows[0][0]) > 0, nil
}

// schemasMatch reports whether tab has byte-identical declared SQL in both
// databases. The second result is false when the table is missing from
// either side.
func (d *Differ) schemasMatch(tab string) (match, present bool, err error) {
	rows, err := d.query(fmt.Sprintf(
		"SELECT A.sql = B.sql FROM main.sqlite_master A, aux.sqlite_master B"+
			" WHERE A.name = %s AND B.name = %s",
		StringConstant(tab), StringConstant(tab)))
	if err != nil {
		return false, false, err
	}
	if len(rows) == 0 {
		return false, false, nil
	}
	return asInt(rows[0][0]) != 0, true, nil
}
