package util

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ImageExtensions are the file extensions treated as images, lower case.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".webp"}

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Data is the raw bytes of the image file.
	Data []byte
}

// IsImage reports whether path has one of ImageExtensions.
func IsImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range ImageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ImagePaths resolves a file or directory to image paths.
//
// Arguments:
//   - path: An image file, or a directory whose images (not recursively) are listed.
//
// Returns:
//   - []string: The image paths sorted by name.
//   - error: An error if path does not exist or a file is not an image.
func ImagePaths(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if !IsImage(path) {
			return nil, errors.Errorf("unsupported file extension: %s. Supported extensions: %v", filepath.Ext(path), ImageExtensions)
		}
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !IsImage(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(path, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadImageFile reads one image file.
func LoadImageFile(path string) (ImageFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ImageFile{}, errors.Wrapf(err, "failed to read %s", path)
	}
	return ImageFile{Path: path, Data: data}, nil
}

// LoadDirectoryImageFiles reads all image files of a directory.
//
// Arguments:
//   - dir: Directory path containing image files.
//
// Returns:
//   - []ImageFile: The files sorted by name, each with its raw bytes.
//   - error: Error if loading fails.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	paths, err := ImagePaths(dir)
	if err != nil {
		return nil, err
	}

	files := make([]ImageFile, 0, len(paths))
	for _, p := range paths {
		f, err := LoadImageFile(p)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}
