package watch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEligible(t *testing.T) {
	assert.True(t, Eligible("app.db"))
	assert.True(t, Eligible("users"))
	assert.False(t, Eligible(""))
	// The engine's rollback journal must never trigger a diff.
	assert.False(t, Eligible("app.db-journal"))
	assert.False(t, Eligible("x-journal-backup"))
}

func TestParseEventKind(t *testing.T) {
	k, ok := ParseEventKind("close_write")
	assert.True(t, ok)
	assert.Equal(t, CloseWrite, k)

	k, ok = ParseEventKind("modify")
	assert.True(t, ok)
	assert.Equal(t, Modify, k)

	_, ok = ParseEventKind("rename")
	assert.False(t, ok)
}
