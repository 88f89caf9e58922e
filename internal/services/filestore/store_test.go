package filestore

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	root := filepath.Join(t.TempDir(), "uploads")
	return New(root, filepath.Join(root, "tmp"), "http://localhost:8080")
}

func TestSecureFilename(t *testing.T) {
	re := regexp.MustCompile(`^[0-9a-f]{16}-[0-9a-f]{32}\.pdf$`)
	seen := map[string]struct{}{}
	for i := 0; i < 100; i++ {
		name, err := SecureFilename("contrat.pdf", ".pdf")
		require.NoError(t, err)
		assert.Regexp(t, re, name)
		assert.NotContains(t, name, "contrat")
		seen[name] = struct{}{}
	}
	assert.Len(t, seen, 100)
}

func TestSaveLayoutAndPermissions(t *testing.T) {
	s := newTestStore(t)
	src := filepath.Join(t.TempDir(), "in.pdf")
	require.NoError(t, os.WriteFile(src, []byte("%PDF-1.4 test"), 0o600))

	stored, err := s.Save(src, KindEncrypted, "in.pdf")
	require.NoError(t, err)

	now := time.Now()
	wantPrefix := fmt.Sprintf("encrypted/%04d/%02d/", now.Year(), now.Month())
	assert.Contains(t, stored.RelativePath, wantPrefix)
	assert.Equal(t, "http://localhost:8080/uploads/"+stored.RelativePath, stored.URL)

	info, err := os.Stat(stored.Path)
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
		dirInfo, err := os.Stat(filepath.Dir(stored.Path))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o700), dirInfo.Mode().Perm())
	}
}

func TestURLRoundTrip(t *testing.T) {
	s := newTestStore(t)
	rel := "documents/2025/01/abcd.pdf"
	url := s.PublicURL(rel)
	got, err := s.RelativeFromURL(url)
	require.NoError(t, err)
	assert.Equal(t, rel, got)

	_, err = s.RelativeFromURL("http://evil.example/uploads/x.pdf")
	assert.Error(t, err)
}

func TestIsPathSafe(t *testing.T) {
	ok, err := IsPathSafe("/uploads/../../etc/passwd", "/uploads")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = IsPathSafe("/uploads/documents/2025/01/abc.pdf", "/uploads")
	require.NoError(t, err)
	assert.True(t, ok)

	// sibling directory sharing the prefix must not pass
	ok, err = IsPathSafe("/uploads-evil/abc.pdf", "/uploads")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalPathRejectsTraversal(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LocalPath("../../../etc/passwd")
	require.Error(t, err)

	p, err := s.LocalPath("documents/2025/01/abc.pdf")
	require.NoError(t, err)
	assert.Contains(t, p, filepath.Join("documents", "2025", "01"))
}

func TestLocalPathRejectsTempRoot(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LocalPath("tmp/decrypted.pdf")
	require.Error(t, err)
	_, err = s.LocalPath("tmp")
	require.Error(t, err)

	// temp root outside the store root cannot be reached at all
	out := New(filepath.Join(t.TempDir(), "u"), filepath.Join(t.TempDir(), "scratch"), "http://localhost")
	p, err := out.LocalPath("tmp/decrypted.pdf")
	require.NoError(t, err)
	assert.Contains(t, p, filepath.Join("u", "tmp"))
}

func TestCleanupTempFiles(t *testing.T) {
	s := newTestStore(t)
	old := filepath.Join(s.TempRoot, "2025", "01")
	require.NoError(t, os.MkdirAll(old, 0o700))
	oldFile := filepath.Join(old, "stale.bin")
	require.NoError(t, os.WriteFile(oldFile, []byte("x"), 0o600))
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldFile, past, past))

	fresh, err := s.TempPath(".bin")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(fresh, []byte("y"), 0o600))

	n, err := s.CleanupTempFiles(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = os.Stat(oldFile)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err), "emptied directories should be pruned")
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}

func TestCleanupMissingTempRoot(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "u"), filepath.Join(t.TempDir(), "nope"), "http://localhost")
	require.NoError(t, os.RemoveAll(s.TempRoot))
	n, err := s.CleanupTempFiles(time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)
}
