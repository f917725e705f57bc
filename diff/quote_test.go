package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoteIDPlain(t *testing.T) {
	assert.Equal(t, "users", QuoteID("users"))
	assert.Equal(t, "_tmp", QuoteID("_tmp"))
	assert.Equal(t, "UsersTable", QuoteID("UsersTable"))
}

func TestQuoteIDEmpty(t *testing.T) {
	assert.Equal(t, `""`, QuoteID(""))
}

func TestQuoteIDNumericSuffix(t *testing.T) {
	// A digit anywhere after the first character is allowed unquoted,
	// even when the alphabetic prefix is a reserved word.
	assert.Equal(t, "abc1", QuoteID("abc1"))
	assert.Equal(t, "order2", QuoteID("order2"))
	assert.Equal(t, "_1", QuoteID("_1"))
	assert.Equal(t, `"1abc"`, QuoteID("1abc"))
}

func TestQuoteIDKeyword(t *testing.T) {
	assert.Equal(t, `"select"`, QuoteID("select"))
	assert.Equal(t, `"SELECT"`, QuoteID("SELECT"))
	assert.Equal(t, `"Order"`, QuoteID("Order"))
	assert.Equal(t, "selector", QuoteID("selector"))
}

func TestQuoteIDSpecialCharacters(t *testing.T) {
	assert.Equal(t, `"a b"`, QuoteID("a b"))
	assert.Equal(t, `"a""b"`, QuoteID(`a"b`))
	assert.Equal(t, `"naïve"`, QuoteID("naïve"))
}

func TestIsKeyword(t *testing.T) {
	assert.True(t, isKeyword("select"))
	assert.True(t, isKeyword("WITHOUT"))
	assert.False(t, isKeyword("rowid"))
	assert.False(t, isKeyword("frobnicate"))
}
