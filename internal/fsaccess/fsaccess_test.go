package fsaccess

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListEntries_Types(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, mem.MkdirAll("/root/sub", 0o755))
	require.NoError(t, afero.WriteFile(mem, "/root/a.txt", []byte("hello"), 0o644))

	acc := New(mem, nil)
	entries := acc.ListEntries("/root")

	require.Len(t, entries, 2)

	byName := map[string]EntryType{}
	for _, e := range entries {
		byName[e.Name] = e.Type
	}

	assert.Equal(t, TypeFile, byName["a.txt"])
	assert.Equal(t, TypeDir, byName["sub"])
}

func TestListEntries_MissingDirectoryIsEmpty(t *testing.T) {
	acc := New(afero.NewMemMapFs(), nil)

	entries := acc.ListEntries("/does/not/exist")

	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestStat(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "/f.bin", make([]byte, 42), 0o644))

	acc := New(mem, nil)

	info, ok := acc.Stat("/f.bin")
	require.True(t, ok)
	assert.Equal(t, uint64(42), info.Size)
	assert.True(t, info.IsFile)
	assert.False(t, info.IsDir)

	_, ok = acc.Stat("/missing")
	assert.False(t, ok)
}

func TestListEntries_SymlinkIsOther(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}

	dir := t.TempDir()
	target := filepath.Join(dir, "target.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))
	require.NoError(t, os.Symlink(target, filepath.Join(dir, "link")))

	entries := NewOS(nil).ListEntries(dir)

	require.Len(t, entries, 2)

	for _, e := range entries {
		switch e.Name {
		case "link":
			assert.Equal(t, TypeOther, e.Type)
		case "target.txt":
			assert.Equal(t, TypeFile, e.Type)
		}
	}
}

func TestOpen(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "/f.txt", []byte("content"), 0o644))

	acc := New(mem, nil)

	r, err := acc.Open("/f.txt")
	require.NoError(t, err)

	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))

	_, err = acc.Open("/missing")
	require.Error(t, err)
}

func TestHost(t *testing.T) {
	assert.True(t, NewOS(nil).Host())
	assert.False(t, New(afero.NewMemMapFs(), nil).Host())
}
