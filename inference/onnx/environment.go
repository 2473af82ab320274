// Package onnx - Local plate detection with ONNX Runtime.
package onnx

import (
	"os"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ErrLibraryNotFound is returned when the onnxruntime shared library is missing.
var ErrLibraryNotFound = errors.New("onnxruntime shared library not found")

var envMu sync.Mutex

// DefaultSharedLibraryPath returns the conventional library location for the
// current platform.
func DefaultSharedLibraryPath() (string, error) {
	switch runtime.GOOS {
	case "windows":
		return "./third_party/onnxruntime.dll", nil
	case "darwin":
		return "./third_party/libonnxruntime.dylib", nil
	case "linux":
		if runtime.GOARCH == "arm64" {
			return "./third_party/onnxruntime_arm64.so", nil
		}
		return "./third_party/onnxruntime.so", nil
	}
	return "", errors.Errorf("no onnxruntime library known for %s/%s", runtime.GOOS, runtime.GOARCH)
}

// initEnvironment loads the shared library once per process. Later calls are
// no-ops, whichever path they pass.
func initEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}

	if libPath == "" {
		p, err := DefaultSharedLibraryPath()
		if err != nil {
			return err
		}
		libPath = p
	}
	if _, err := os.Stat(libPath); err != nil {
		return errors.Wrapf(ErrLibraryNotFound, "%s: %v", libPath, err)
	}

	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "error initializing ORT environment")
	}
	return nil
}
