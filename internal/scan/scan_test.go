package scan

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel string, size int, mtime time.Time) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), size), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func newTestScanner(exclude ...string) *Scanner {
	log, _ := logtest.NewNullLogger()
	return &Scanner{Log: log, Exclude: exclude}
}

func TestScanCollectsRegularFiles(t *testing.T) {
	root := t.TempDir()
	now := time.Now()

	a := writeFile(t, root, "a.bin", 100, now.Add(-3*time.Hour))
	b := writeFile(t, root, "nested/deep/b.bin", 50, now.Add(-2*time.Hour))
	c := writeFile(t, root, "nested/c.bin", 80, now.Add(-time.Hour))

	snap, err := newTestScanner().Scan(context.Background(), root)
	require.NoError(t, err)

	assert.Len(t, snap.Files, 3)
	assert.Equal(t, int64(230), snap.TotalSize)
	assert.Equal(t, snap.TotalSize, SumSize(snap.Files))
	assert.Zero(t, snap.Skipped)

	paths := make(map[string]int64)
	for _, entry := range snap.Files {
		require.True(t, filepath.IsAbs(entry.Path), "path %s should be absolute", entry.Path)
		paths[entry.Path] = entry.Size
	}
	assert.Equal(t, int64(100), paths[a])
	assert.Equal(t, int64(50), paths[b])
	assert.Equal(t, int64(80), paths[c])
}

func TestScanEmptyDirectory(t *testing.T) {
	snap, err := newTestScanner().Scan(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, snap.Files)
	assert.Zero(t, snap.TotalSize)
}

func TestScanSkipsSymlinks(t *testing.T) {
	root := t.TempDir()
	target := writeFile(t, root, "target.bin", 100, time.Now())
	require.NoError(t, os.Symlink(target, filepath.Join(root, "link.bin")))

	snap, err := newTestScanner().Scan(context.Background(), root)
	require.NoError(t, err)

	// The link is opaque: the target is counted exactly once.
	require.Len(t, snap.Files, 1)
	assert.Equal(t, target, snap.Files[0].Path)
	assert.Equal(t, int64(100), snap.TotalSize)
}

func TestScanExcludePatterns(t *testing.T) {
	root := t.TempDir()
	now := time.Now()
	writeFile(t, root, "keep/pinned.bin", 100, now)
	kept := writeFile(t, root, "data/evictable.bin", 40, now)

	snap, err := newTestScanner("keep/**").Scan(context.Background(), root)
	require.NoError(t, err)

	require.Len(t, snap.Files, 1)
	assert.Equal(t, kept, snap.Files[0].Path)
	assert.Equal(t, int64(40), snap.TotalSize)
}

func TestScanMissingRoot(t *testing.T) {
	_, err := newTestScanner().Scan(context.Background(), filepath.Join(t.TempDir(), "gone"))
	assert.Error(t, err)
}

func TestScanRootNotDirectory(t *testing.T) {
	root := t.TempDir()
	file := writeFile(t, root, "plain.bin", 10, time.Now())

	_, err := newTestScanner().Scan(context.Background(), file)
	assert.ErrorContains(t, err, "not a directory")
}

func TestScanCancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.bin", 10, time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestScanner().Scan(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSumSizeEmpty(t *testing.T) {
	assert.Zero(t, SumSize(nil))
}
