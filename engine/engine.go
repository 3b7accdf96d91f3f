// Package engine runs transcode commands inside a private working namespace.
//
// A Handle owns one namespace (a directory) and runs one command at a time.
// Handles must not be shared by concurrent jobs; callers that need parallelism
// ask the Factory for one handle per job.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"

	"vidshape/logger"
)

var (
	ErrNotFound    = errors.New("engine: file not found")
	ErrInvalidName = errors.New("engine: invalid file name")
	ErrBusy        = errors.New("engine: handle already running a command")
	ErrClosed      = errors.New("engine: handle closed")
)

// ProgressFunc receives the engine's coarse progress signal. Values are nominally
// in [0,1] but are not guaranteed to be; consumers clamp.
type ProgressFunc func(ratio float64)

// Handle is one engine instance bound to its own working namespace.
type Handle interface {
	WriteFile(name string, data []byte) error
	ReadFile(name string) ([]byte, error)
	Run(ctx context.Context, args ...string) error
	// Delete removes the named entries. Missing entries are not an error.
	Delete(names ...string) error
	// Close releases the namespace and everything left in it.
	Close() error
}

// Factory creates independent handles. progress may be nil.
type Factory interface {
	New(progress ProgressFunc) (Handle, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(progress ProgressFunc) (Handle, error)

func (f FactoryFunc) New(progress ProgressFunc) (Handle, error) { return f(progress) }

// RunError reports a failed engine command together with its diagnostic output.
type RunError struct {
	ExitCode   int
	Diagnostic string
	Err        error
}

func (e *RunError) Error() string {
	if e.Diagnostic == "" {
		return fmt.Sprintf("engine exited with code %d: %v", e.ExitCode, e.Err)
	}
	return fmt.Sprintf("engine exited with code %d: %s", e.ExitCode, lastLine(e.Diagnostic))
}

func (e *RunError) Unwrap() error { return e.Err }

var (
	registryMu sync.RWMutex
	// Registry maps engine name → factory
	Registry = map[string]Factory{}
)

// Register adds a factory if the underlying command exists, logs status
func Register(name string, cmdName string, f Factory) {
	if _, err := exec.LookPath(cmdName); err != nil {
		logger.Warnf("engine [%s] skipped: command '%s' not found in PATH", name, cmdName)
		return
	}
	registryMu.Lock()
	Registry[name] = f
	registryMu.Unlock()
	logger.Debugf("engine [%s] registered (command: %s)", name, cmdName)
}

// Get looks up an engine by name.
func Get(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := Registry[name]
	return f, ok
}

// RegisterDefaults registers the ffmpeg engine using the given binary and work root.
func RegisterDefaults(ffmpegPath, workRoot string) {
	Register("ffmpeg", ffmpegPath, &FFmpeg{Binary: ffmpegPath, WorkRoot: workRoot})
}
