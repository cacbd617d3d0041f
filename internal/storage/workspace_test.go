package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWorkspaces_CreateSaveRelease(t *testing.T) {
	base := t.TempDir()
	ws := NewWorkspaces(base, zap.NewNop())

	job, err := ws.Create("6a3847a3-14f5-4c7e-a5d1-26c7fb0bf6ef")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "6a3847a3-14f5-4c7e-a5d1-26c7fb0bf6ef"), job.Dir())
	assert.DirExists(t, job.Dir())

	first, err := job.Save("Q4 Report.pdf", []byte("%PDF-1.4 one"))
	require.NoError(t, err)
	second, err := job.Save("Q4 Report.pdf", []byte("%PDF-1.4 two"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(job.Dir(), "Q4 Report.pdf"), first)
	assert.Equal(t, filepath.Join(job.Dir(), "Q4 Report_2.pdf"), second)

	traversal, err := job.Save("../../etc/passwd", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, job.Dir(), filepath.Dir(traversal))

	entries, err := os.ReadDir(job.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	require.NoError(t, job.Release())
	assert.NoDirExists(t, job.Dir())
	assert.NoError(t, job.Release(), "release is idempotent")
}

func TestWorkspaces_RejectsEmptyID(t *testing.T) {
	ws := NewWorkspaces(t.TempDir(), zap.NewNop())

	_, err := ws.Create("../..")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestSanitizeNames(t *testing.T) {
	folders := map[string]string{
		"ABC123-XYZ-456":    "ABC123-XYZ-456",
		"../../../etc":      "etc",
		"job/with\\slashes": "jobwithslashes",
		"job id: 7!":        "jobid7",
	}
	for in, want := range folders {
		assert.Equal(t, want, SanitizeFolderName(in), in)
	}

	files := map[string]string{
		"report.pdf":         "report.pdf",
		"C:\\docs\\fund.pdf": "fund.pdf",
		"fund<Q4>|final.pdf": "fund_Q4__final.pdf",
		".hidden.pdf":        "hidden.pdf",
		"":                   "document.pdf",
		"résumé 2023.pdf":    "r_sum_ 2023.pdf",
	}
	for in, want := range files {
		assert.Equal(t, want, SanitizeFileName(in), in)
	}
}

func TestOutputStore(t *testing.T) {
	dir := t.TempDir()
	store := NewOutputStore(dir, zap.NewNop())

	path, err := store.Path("abc_fund_Private_Equity.xlsx")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "abc_fund_Private_Equity.xlsx"), path)

	_, err = store.Path("../escape.xlsx")
	assert.ErrorIs(t, err, ErrPathEscapes)

	_, err = store.Resolve(path)
	assert.ErrorIs(t, err, ErrOutputNotFound)

	require.NoError(t, os.WriteFile(path, []byte("PK"), 0o644))
	resolved, err := store.Resolve(path)
	require.NoError(t, err)
	assert.Equal(t, path, resolved)

	_, err = store.Resolve("/etc/passwd")
	assert.ErrorIs(t, err, ErrPathEscapes)
}

func TestOutputStore_Prune(t *testing.T) {
	dir := t.TempDir()
	store := NewOutputStore(dir, zap.NewNop())
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	write := func(name string, age time.Duration) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte("PK"), 0o644))
		mod := now.Add(-age)
		require.NoError(t, os.Chtimes(p, mod, mod))
		return p
	}

	old := write("old.xlsx", 48*time.Hour)
	fresh := write("fresh.xlsx", time.Hour)
	other := write("notes.txt", 72*time.Hour)

	removed, err := store.Prune(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.FileExists(t, other)

	missing := NewOutputStore(filepath.Join(dir, "missing"), zap.NewNop())
	removed, err = missing.Prune(time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)
}
