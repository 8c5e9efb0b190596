package detections

import (
	"fmt"
	"os"
	"runtime"

	ort "github.com/yalue/onnxruntime_go"
)

// DefaultSharedLibraryPath returns the conventional location of the ONNX
// Runtime shared library for the current platform.
func DefaultSharedLibraryPath() string {
	switch runtime.GOOS {
	case "darwin":
		return "./lib/libonnxruntime.dylib"
	case "windows":
		return "./lib/onnxruntime.dll"
	default:
		return "./lib/libonnxruntime.so"
	}
}

func InitEnvironment(libPath string) error {
	if _, err := os.Stat(libPath); err != nil {
		return fmt.Errorf("onnxruntime library not found: %s: %w", libPath, err)
	}

	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnxruntime: %w", err)
	}
	return nil
}

func DestroyEnvironment() error {
	return ort.DestroyEnvironment()
}
