package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idelchi/dirhover/internal/dirstat"
)

// execute runs the root command with an isolated configuration file.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("logging:\n  level: error\n"), 0o644))

	var out bytes.Buffer

	cmd := New("v1.2.3").Command()
	cmd.SetOut(&out)
	cmd.SetArgs(append(args, "--config", cfgPath))

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

func tree(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), make([]byte, 100), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b"), make([]byte, 200), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub", "deep"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "c"), make([]byte, 300), 0o644))

	return dir
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "v1.2.3\n", out)
}

func TestCalc_JSON(t *testing.T) {
	dir := tree(t)

	out, err := execute(t, "calc", dir, "-o", "json")
	require.NoError(t, err)

	var report dirstat.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))

	assert.Equal(t, dirstat.DirectoryStats{Size: 600, FileCount: 3, FolderCount: 2}, report.Stats)
}

func TestCalc_Excludes(t *testing.T) {
	dir := tree(t)

	out, err := execute(t, "calc", dir, "-o", "json", "--exclude", `/sub$`)
	require.NoError(t, err)

	var report dirstat.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))

	assert.Equal(t, dirstat.DirectoryStats{Size: 300, FileCount: 2}, report.Stats)
}

func TestCalc_Table(t *testing.T) {
	out, err := execute(t, "calc", tree(t))
	require.NoError(t, err)

	assert.Contains(t, out, "600 B (600 bytes)")
}

func TestCalc_InvalidOutput(t *testing.T) {
	_, err := execute(t, "calc", t.TempDir(), "-o", "xml")
	require.ErrorContains(t, err, "invalid output format")
}

func TestCalc_MissingPath(t *testing.T) {
	_, err := execute(t, "calc", filepath.Join(t.TempDir(), "absent"))
	require.ErrorIs(t, err, dirstat.ErrRootUnavailable)
}

func TestHover_WaitsForDirectory(t *testing.T) {
	dir := tree(t)

	out, err := execute(t, "hover", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "size: 600 B")
	assert.Contains(t, out, "childFile: 3")
	assert.Contains(t, out, "childFolder: 2")
}

func TestHover_NoWait(t *testing.T) {
	out, err := execute(t, "hover", "--no-wait", tree(t))
	require.NoError(t, err)

	assert.Contains(t, out, "Calculating...")
}

func TestHover_FileJSON(t *testing.T) {
	dir := tree(t)

	out, err := execute(t, "hover", "-o", "json", filepath.Join(dir, "a"))
	require.NoError(t, err)

	var got []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)

	assert.Equal(t, "a", got[0]["name"])
	assert.Equal(t, "file", got[0]["state"])
	assert.Contains(t, got[0]["tooltip"], "size: 100 B")
}

func TestHover_MissingPath(t *testing.T) {
	_, err := execute(t, "hover", filepath.Join(t.TempDir(), "absent"))
	require.ErrorContains(t, err, "cannot be accessed")
}

func TestInvalidConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("file_size_base: 7\n"), 0o644))

	cmd := New("dev").Command()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"hover", t.TempDir(), "--config", cfgPath})

	require.ErrorContains(t, cmd.ExecuteContext(context.Background()), "loading config")
}

func TestCalc_StatusBarText(t *testing.T) {
	dir := tree(t)

	out, err := execute(t, "calc", dir, "-o", "text")
	require.NoError(t, err)

	assert.Equal(t, filepath.Base(dir)+": 600 B, 3 files, 2 folders\n", out)
}
