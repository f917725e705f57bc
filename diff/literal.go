package diff

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ValueKind is the engine's dynamic type of a cell.
type ValueKind int

const (
	Null ValueKind = iota
	Integer
	Float
	Text
	Blob
)

// Value is one cell of a result row.
type Value struct {
	Kind  ValueKind
	Int   int64
	Real  float64
	Str   string
	Bytes []byte
}

// valueOf maps a generic scan result to a Value.
func valueOf(v any) Value {
	switch v := v.(type) {
	case nil:
		return Value{Kind: Null}
	case int64:
		return Value{Kind: Integer, Int: v}
	case int:
		return Value{Kind: Integer, Int: int64(v)}
	case float64:
		return Value{Kind: Float, Real: v}
	case string:
		return Value{Kind: Text, Str: v}
	case []byte:
		return Value{Kind: Blob, Bytes: v}
	case bool:
		n := int64(0)
		if v {
			n = 1
		}
		return Value{Kind: Integer, Int: n}
	case time.Time:
		// Declared date/time columns come back converted; render the
		// engine's canonical text form.
		return Value{Kind: Text, Str: v.Format("2006-01-02 15:04:05")}
	default:
		return Value{Kind: Text, Str: fmt.Sprint(v)}
	}
}

// Literal renders v as an SQL literal.
func (v Value) Literal() string {
	switch v.Kind {
	case Null:
		return "NULL"
	case Integer:
		return strconv.FormatInt(v.Int, 10)
	case Float:
		return formatFloat(v.Real)
	case Text:
		return StringConstant(v.Str)
	case Blob:
		if v.Bytes == nil {
			return "NULL"
		}
		return "x'" + hex.EncodeToString(v.Bytes) + "'"
	}
	return "NULL"
}

// StringConstant returns a quoted SQL string constant.
func StringConstant(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// formatFloat renders f in its shortest round-trip form, always with a
// decimal point or exponent so the literal stays a REAL.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NULL"
	case math.IsInf(f, 1):
		return "1e999"
	case math.IsInf(f, -1):
		return "-1e999"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func asString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func asInt(v any) int64 {
	switch v := v.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case []byte:
		n, _ := strconv.ParseInt(string(v), 10, 64)
		return n
	default:
		return 0
	}
}
