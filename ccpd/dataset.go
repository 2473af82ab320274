package ccpd

import (
	"bufio"
	"math/rand"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// ReadSplit reads a CCPD split file such as splits/val.txt. Each non-empty
// line is one image path relative to the dataset root.
func ReadSplit(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open split file %s", path)
	}
	defer f.Close()

	var paths []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		paths = append(paths, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read split file %s", path)
	}

	return paths, nil
}

// Sample picks n paths without replacement, deterministically for a given
// seed. The picks keep their order of selection. When n <= 0 or n covers the
// whole input, a copy of paths is returned unchanged.
func Sample(paths []string, n int, seed int64) []string {
	if n <= 0 || n >= len(paths) {
		return append([]string(nil), paths...)
	}

	rng := rand.New(rand.NewSource(seed))
	picked := make([]string, n)
	for i, j := range rng.Perm(len(paths))[:n] {
		picked[i] = paths[j]
	}
	return picked
}
