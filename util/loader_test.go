package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestIsImage(t *testing.T) {
	assert.True(t, IsImage("a.jpg"))
	assert.True(t, IsImage("dir/b.JPEG"))
	assert.True(t, IsImage("c.webp"))
	assert.False(t, IsImage("d.txt"))
	assert.False(t, IsImage("jpg"))
}

func TestImagePathsDirectory(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "b.png", "b")
	touch(t, dir, "a.jpg", "a")
	touch(t, dir, "notes.txt", "n")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.jpg"), 0o700))

	paths, err := ImagePaths(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.jpg"), filepath.Join(dir, "b.png")}, paths)
}

func TestImagePathsFile(t *testing.T) {
	dir := t.TempDir()
	img := touch(t, dir, "car.jpg", "x")
	txt := touch(t, dir, "car.txt", "x")

	paths, err := ImagePaths(img)
	require.NoError(t, err)
	assert.Equal(t, []string{img}, paths)

	_, err = ImagePaths(txt)
	assert.Error(t, err)

	_, err = ImagePaths(filepath.Join(dir, "missing.jpg"))
	assert.Error(t, err)
}

func TestLoadDirectoryImageFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "2.jpg", "second")
	touch(t, dir, "1.jpg", "first")

	files, err := LoadDirectoryImageFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, []byte("first"), files[0].Data)
	assert.Equal(t, []byte("second"), files[1].Data)

	empty, err := LoadDirectoryImageFiles(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, empty)
}
