package inference

import (
	"os"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// LibraryPathEnv overrides the onnxruntime shared library location.
const LibraryPathEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

var (
	envMu          sync.Mutex
	envInitialized bool
)

// GetSharedLibPath returns the path to the shared library for the current platform.
//
// The LibraryPathEnv environment variable takes precedence over the
// platform default.
//
// Returns:
//   - string: The path to the shared library.
func GetSharedLibPath() string {
	if path := os.Getenv(LibraryPathEnv); path != "" {
		return path
	}

	switch runtime.GOOS {
	case "windows":
		return "./third_party/onnxruntime.dll"
	case "darwin":
		return "./third_party/libonnxruntime.dylib"
	default:
		if runtime.GOARCH == "arm64" {
			return "./third_party/onnxruntime_arm64.so"
		}
		return "./third_party/onnxruntime.so"
	}
}

// InitializeEnvironment loads the onnxruntime shared library and prepares the
// runtime. Calls after a successful one do nothing until DestroyEnvironment;
// a failed call can be retried.
//
// Arguments:
//   - libPath: The shared library path. Empty means GetSharedLibPath().
//
// Returns:
//   - error: An error if the library is missing or the runtime fails to start.
func InitializeEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if envInitialized {
		return nil
	}

	if libPath == "" {
		libPath = GetSharedLibPath()
	}
	if _, err := os.Stat(libPath); err != nil {
		return errors.Wrapf(err, "onnxruntime library not found at %s", libPath)
	}

	// Point ONNX Runtime to the exact shared library path (overrides default search).
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "error initializing ORT environment")
	}

	envInitialized = true
	return nil
}

// EnvironmentInitialized reports whether the runtime is ready for sessions.
func EnvironmentInitialized() bool {
	envMu.Lock()
	defer envMu.Unlock()
	return envInitialized
}

// DestroyEnvironment releases the runtime. Sessions must be closed first.
// A later InitializeEnvironment starts the runtime again.
func DestroyEnvironment() error {
	envMu.Lock()
	defer envMu.Unlock()

	if !envInitialized {
		return nil
	}
	if err := ort.DestroyEnvironment(); err != nil {
		return errors.Wrap(err, "error destroying ORT environment")
	}

	envInitialized = false
	return nil
}
