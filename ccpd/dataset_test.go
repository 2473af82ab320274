package ccpd

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSplit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "val.txt")
	content := "ccpd_base/a.jpg\n\n  ccpd_blur/b.jpg  \nccpd_db/c.jpg"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	got, err := ReadSplit(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"ccpd_base/a.jpg", "ccpd_blur/b.jpg", "ccpd_db/c.jpg"}, got)
}

func TestReadSplitMissing(t *testing.T) {
	_, err := ReadSplit(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func samplePaths(n int) []string {
	paths := make([]string, n)
	for i := range paths {
		paths[i] = fmt.Sprintf("ccpd_base/%04d.jpg", i)
	}
	return paths
}

func TestSample(t *testing.T) {
	paths := samplePaths(100)

	first := Sample(paths, 10, 42)
	assert.Len(t, first, 10)
	assert.Equal(t, first, Sample(paths, 10, 42))
	assert.NotEqual(t, first, Sample(paths, 10, 7))
	for _, p := range first {
		assert.Contains(t, paths, p)
	}
}

func TestSampleWholeInput(t *testing.T) {
	paths := samplePaths(20)

	all := Sample(paths, 500, 42)
	assert.Equal(t, paths, all)
	all[0] = "changed"
	assert.NotEqual(t, "changed", paths[0])

	assert.Equal(t, paths, Sample(paths, 0, 42))
	assert.Empty(t, Sample(nil, 5, 42))
}

func TestSampleWithoutReplacement(t *testing.T) {
	seen := map[string]bool{}
	for _, p := range Sample(samplePaths(50), 49, 1) {
		assert.False(t, seen[p], "duplicate %s", p)
		seen[p] = true
	}
	assert.Len(t, seen, 49)
}
