package filex

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDir_CreatesNested(t *testing.T) {
	tmp := t.TempDir()
	want := filepath.Join(tmp, "data", "attachments")

	got, err := EnsureDir(want)
	require.NoError(t, err)
	require.Equal(t, want, got)

	fi, err := os.Stat(want)
	require.NoError(t, err)
	require.True(t, fi.IsDir(), "should create a directory")

	if runtime.GOOS != "windows" {
		require.Equal(t, os.FileMode(0o700), fi.Mode().Perm()&0o700)
	}
}

func TestEnsureDir_Idempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "x")

	first, err := EnsureDir(dir)
	require.NoError(t, err)
	second, err := EnsureDir(dir)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestEnsureDir_FailsIfFileWithSameNameExists(t *testing.T) {
	tmp := t.TempDir()
	p := filepath.Join(tmp, "blocked")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))

	_, err := EnsureDir(p)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "mkdir"))
}

func TestEnsureDir_Empty(t *testing.T) {
	_, err := EnsureDir("")
	require.Error(t, err)
}

func TestReadAttachment(t *testing.T) {
	tmp := t.TempDir()

	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}
	p := filepath.Join(tmp, "photo.png")
	require.NoError(t, os.WriteFile(p, png, 0o600))

	a, err := ReadAttachment(p)
	require.NoError(t, err)
	assert.Equal(t, "photo.png", a.Name)
	assert.Equal(t, "image/png", a.ContentType)
	assert.Equal(t, png, a.Data)
	assert.Equal(t, p, a.Path)

	txt := filepath.Join(tmp, "note.txt")
	require.NoError(t, os.WriteFile(txt, []byte("plain words"), 0o600))
	a, err = ReadAttachment(txt)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(a.ContentType, "text/plain"))

	_, err = ReadAttachment(filepath.Join(tmp, "missing.jpg"))
	require.Error(t, err)
}

func TestExistsAndRemoveQuietly(t *testing.T) {
	tmp := t.TempDir()
	p := filepath.Join(tmp, "a.bin")
	require.NoError(t, os.WriteFile(p, []byte{1}, 0o600))

	assert.True(t, Exists(p))
	assert.False(t, Exists(tmp), "directories are not attachments")

	require.NoError(t, RemoveQuietly(p))
	assert.False(t, Exists(p))
	require.NoError(t, RemoveQuietly(p), "second removal is a no-op")
}

func TestCopyInto(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "in.jpg")
	require.NoError(t, os.WriteFile(src, []byte("jpeg bytes"), 0o600))

	dir := filepath.Join(tmp, "managed")
	dst, err := CopyInto(src, dir, "abc-in.jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "abc-in.jpg"), dst)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(got))
	assert.True(t, Exists(src), "source is left in place")

	_, err = CopyInto(src, dir, "abc-in.jpg")
	require.Error(t, err, "existing copies are never overwritten")

	_, err = CopyInto(filepath.Join(tmp, "nope"), dir, "x")
	require.Error(t, err)
}

func TestWithin(t *testing.T) {
	base := filepath.Join(string(filepath.Separator), "data", "attachments")

	assert.True(t, Within(filepath.Join(base, "a.jpg"), base))
	assert.True(t, Within(filepath.Join(base, "sub", "a.jpg"), base))
	assert.False(t, Within(base, base))
	assert.False(t, Within(filepath.Join(base, "..", "a.jpg"), base))
	assert.False(t, Within(filepath.Join(string(filepath.Separator), "data", "attachments2", "a.jpg"), base))
	assert.False(t, Within("a.jpg", ""))
}
