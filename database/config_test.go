package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFileConfigEmptyPath(t *testing.T) {
	config, err := ParseFileConfig("")
	require.NoError(t, err)
	assert.Empty(t, config.TargetTables)
	assert.Empty(t, config.SkipTables)
}

func TestParseFileConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(
		"target_tables:\n  - users\n  - orders\nskip_tables:\n  - sessions\n"), 0644))

	config, err := ParseFileConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"users", "orders"}, config.TargetTables)
	assert.Equal(t, []string{"sessions"}, config.SkipTables)
}

func TestParseFileConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("target_tables: {oops\n"), 0644))

	_, err := ParseFileConfig(path)
	assert.Error(t, err)
}
