// Package enginetest provides an in-memory engine for tests.
package enginetest

import (
	"context"
	"fmt"
	"sync"

	"vidshape/engine"
)

// RunFunc scripts one Run call. files is the handle's namespace; progress
// forwards to the handle's sink.
type RunFunc func(ctx context.Context, files map[string][]byte, args []string, progress engine.ProgressFunc) error

// Factory hands out in-memory handles and records what they did.
type Factory struct {
	Run RunFunc
	// NewErr, when set, is returned by New.
	NewErr error
	// DeleteErr, when set, is returned by every handle's Delete.
	DeleteErr error

	mu      sync.Mutex
	handles []*Handle
}

func (f *Factory) New(progress engine.ProgressFunc) (engine.Handle, error) {
	if f.NewErr != nil {
		return nil, f.NewErr
	}
	h := &Handle{factory: f, progress: progress, files: map[string][]byte{}}
	f.mu.Lock()
	f.handles = append(f.handles, h)
	f.mu.Unlock()
	return h, nil
}

// Handles returns every handle created so far.
func (f *Factory) Handles() []*Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Handle(nil), f.handles...)
}

// Handle is an in-memory engine.Handle.
type Handle struct {
	factory  *Factory
	progress engine.ProgressFunc

	mu      sync.Mutex
	files   map[string][]byte
	args    [][]string
	closed  bool
	running bool
}

func (h *Handle) WriteFile(name string, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return engine.ErrClosed
	}
	h.files[name] = append([]byte(nil), data...)
	return nil
}

func (h *Handle) ReadFile(name string) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, engine.ErrClosed
	}
	data, ok := h.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", engine.ErrNotFound, name)
	}
	return data, nil
}

func (h *Handle) Run(ctx context.Context, args ...string) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return engine.ErrClosed
	}
	if h.running {
		h.mu.Unlock()
		return engine.ErrBusy
	}
	h.running = true
	h.args = append(h.args, args)
	files := h.files
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
	}()
	if h.factory.Run == nil {
		return nil
	}
	progress := h.progress
	if progress == nil {
		progress = func(float64) {}
	}
	// The script owns the namespace map for the duration of the run.
	return h.factory.Run(ctx, files, args, progress)
}

func (h *Handle) Delete(names ...string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, name := range names {
		delete(h.files, name)
	}
	return h.factory.DeleteErr
}

func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

// Files returns a copy of the names left in the namespace.
func (h *Handle) Files() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.files))
	for name := range h.files {
		names = append(names, name)
	}
	return names
}

// Closed reports whether Close was called.
func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Args returns the arguments of every Run call.
func (h *Handle) Args() [][]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][]string(nil), h.args...)
}

// OutputArg returns the last argument of args, the engine's output target.
func OutputArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[len(args)-1]
}

// FlagValue returns the value following flag in args.
func FlagValue(args []string, flag string) (string, bool) {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1], true
		}
	}
	return "", false
}

// HLS is a RunFunc that writes a playlist with n segments named after the
// -hls_segment_filename pattern, reporting progress along the way.
func HLS(n int) RunFunc {
	return func(ctx context.Context, files map[string][]byte, args []string, progress engine.ProgressFunc) error {
		pattern, ok := FlagValue(args, "-hls_segment_filename")
		if !ok {
			return fmt.Errorf("not a segmented command")
		}
		manifest := "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:6\n#EXT-X-PLAYLIST-TYPE:VOD\n"
		for i := 0; i < n; i++ {
			seg := fmt.Sprintf(pattern, i)
			files[seg] = []byte(seg)
			manifest += "#EXTINF:6.000000,\n" + seg + "\n"
			progress(float64(i+1) / float64(n))
		}
		manifest += "#EXT-X-ENDLIST\n"
		files[OutputArg(args)] = []byte(manifest)
		return ctx.Err()
	}
}
