package diff

import "strings"

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func quoted(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// QuoteID returns a form of id that is safe to interpolate into generated
// SQL. Plain alphabetic identifiers pass through verbatim unless they are
// reserved words; identifiers made of letters, underscores and digits pass
// through when no digit is the first character; anything else is wrapped
// in double quotes with internal quotes doubled.
func QuoteID(id string) string {
	if id == "" {
		return `""`
	}
	digits := false
	for i := 0; i < len(id); i++ {
		c := id[i]
		if isAlpha(c) || c == '_' {
			continue
		}
		if i > 0 && isDigit(c) {
			digits = true
			continue
		}
		return quoted(id)
	}
	if digits || !isKeyword(id) {
		return id
	}
	return quoted(id)
}
