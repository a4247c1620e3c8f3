package files

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveSaveCreatesDirectoryAndFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	a := NewArchive(dir, nil)

	path, err := a.Save("leads_final_20250101_120000_abcd1234.csv", []byte("first_name\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first_name\n", string(data))
	assert.True(t, a.Exists("leads_final_20250101_120000_abcd1234.csv"))

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestArchiveSaveOverwritesExisting(t *testing.T) {
	a := NewArchive(t.TempDir(), nil)

	_, err := a.Save("report.csv", []byte("old"))
	require.NoError(t, err)
	path, err := a.Save("report.csv", []byte("new"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestArchiveListNewestFirst(t *testing.T) {
	a := NewArchive(t.TempDir(), nil)

	older, err := a.Save("older.csv", []byte("a"))
	require.NoError(t, err)
	_, err = a.Save("ignored.txt", []byte("b"))
	require.NoError(t, err)
	_, err = a.Save("newer.xlsx", []byte("cc"))
	require.NoError(t, err)

	// Force distinct mtimes; directory granularity can be coarse.
	require.NoError(t, os.Chtimes(older, time.Now().Add(-time.Hour), time.Now().Add(-time.Hour)))

	exports, err := a.List()
	require.NoError(t, err)
	require.Len(t, exports, 2)
	assert.Equal(t, "newer.xlsx", exports[0].Name)
	assert.Equal(t, "older.csv", exports[1].Name)
	assert.Equal(t, int64(2), exports[0].Size)
}

func TestArchiveListMissingDirectory(t *testing.T) {
	a := NewArchive(filepath.Join(t.TempDir(), "never-created"), nil)

	exports, err := a.List()
	require.NoError(t, err)
	assert.Empty(t, exports)
}

func TestArchiveExistsFalseForUnknown(t *testing.T) {
	a := NewArchive(t.TempDir(), nil)
	assert.False(t, a.Exists("nope.csv"))
}
