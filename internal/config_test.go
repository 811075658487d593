package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagedb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sort:
  file: tape_data.bin
  page_size: 400
  buffers: 10
store:
  prefix: database
  blocking: 4
  alpha: 0.5
  threshold: 0.2
verbose: true
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "tape_data.bin", cfg.Sort.File)
	assert.Equal(t, 400, cfg.Sort.PageSize)
	assert.Equal(t, 10, cfg.Sort.Buffers)
	assert.Equal(t, "database", cfg.Store.Prefix)
	assert.Equal(t, 4, cfg.Store.Blocking)
	assert.InDelta(t, 0.5, cfg.Store.Alpha, 1e-9)
	assert.InDelta(t, 0.2, cfg.Store.Threshold, 1e-9)
	assert.True(t, cfg.Verbose)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
