package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"vidshape/logger"
)

// diagnosticLines is how much of ffmpeg's stderr is kept for error reports.
const diagnosticLines = 40

// FFmpeg creates handles backed by the ffmpeg binary, one temp directory each.
type FFmpeg struct {
	Binary   string // default "ffmpeg"
	WorkRoot string // parent of namespace directories; "" = os.TempDir()
}

func (f *FFmpeg) New(progress ProgressFunc) (Handle, error) {
	bin := f.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	id := uuid.NewString()
	dir, err := os.MkdirTemp(f.WorkRoot, "engine-"+id[:8]+"-")
	if err != nil {
		return nil, fmt.Errorf("create engine namespace: %w", err)
	}
	logger.Debugf("engine namespace %s created", dir)
	return &ffmpegHandle{bin: bin, dir: dir, progress: progress}, nil
}

type ffmpegHandle struct {
	bin      string
	dir      string
	progress ProgressFunc

	mu      sync.Mutex
	running bool
	closed  bool
}

// Dir exposes the namespace directory, mainly for tests and diagnostics.
func (h *ffmpegHandle) Dir() string { return h.dir }

func (h *ffmpegHandle) path(name string) (string, error) {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(h.dir, name), nil
}

func (h *ffmpegHandle) checkOpen() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	return nil
}

func (h *ffmpegHandle) WriteFile(name string, data []byte) error {
	if err := h.checkOpen(); err != nil {
		return err
	}
	p, err := h.path(name)
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

func (h *ffmpegHandle) ReadFile(name string) ([]byte, error) {
	if err := h.checkOpen(); err != nil {
		return nil, err
	}
	p, err := h.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return data, err
}

func (h *ffmpegHandle) Delete(names ...string) error {
	if err := h.checkOpen(); err != nil {
		return err
	}
	var errs []error
	for _, name := range names {
		p, err := h.path(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *ffmpegHandle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()
	return os.RemoveAll(h.dir)
}

func (h *ffmpegHandle) Run(ctx context.Context, args ...string) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	if h.running {
		h.mu.Unlock()
		return ErrBusy
	}
	h.running = true
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
	}()

	full := append([]string{"-hide_banner", "-nostdin", "-y", "-nostats", "-progress", "pipe:1"}, args...)
	cmd := exec.CommandContext(ctx, h.bin, full...)
	cmd.Dir = h.dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("engine stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("engine stderr pipe: %w", err)
	}

	logger.Debugf("engine run in %s: %s %s", h.dir, h.bin, strings.Join(full, " "))
	if err := cmd.Start(); err != nil {
		return &RunError{ExitCode: -1, Err: err}
	}

	tracker := newProgressTracker(h.progress)
	tail := newTailBuffer(diagnosticLines)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanLines(stderr, func(line string) {
			tail.add(line)
			tracker.stderrLine(line)
		})
	}()
	scanLines(stdout, tracker.progressLine)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &RunError{ExitCode: code, Diagnostic: tail.String(), Err: err}
	}
	tracker.finish()
	return nil
}

func scanLines(r io.Reader, fn func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(scanCRLF)
	for scanner.Scan() {
		fn(scanner.Text())
	}
	// Drain whatever is left so the process never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}

// scanCRLF splits on \n or \r; ffmpeg rewrites status lines with carriage returns.
func scanCRLF(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, b := range data {
		if b == '\n' || b == '\r' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

type tailBuffer struct {
	mu    sync.Mutex
	max   int
	lines []string
}

func newTailBuffer(max int) *tailBuffer { return &tailBuffer{max: max} }

func (t *tailBuffer) add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "\n")
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
