package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		line string
		want float64
		ok   bool
	}{
		{"  Duration: 00:00:12.50, start: 0.000000, bitrate: 1200 kb/s", 12.5, true},
		{"  Duration: 01:02:03.00, start: 0.0", 3723, true},
		{"  Duration: N/A, bitrate: N/A", 0, false},
		{"Stream #0:0: Video: h264", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseDuration(tc.line)
		if ok != tc.ok || got != tc.want {
			t.Errorf("parseDuration(%q) = %v,%v want %v,%v", tc.line, got, ok, tc.want, tc.ok)
		}
	}
}

func TestProgressTracker(t *testing.T) {
	var got []float64
	tr := newProgressTracker(func(r float64) { got = append(got, r) })

	tr.progressLine("out_time_us=1000000") // no duration yet, ignored
	tr.stderrLine("  Duration: 00:00:10.00, start: 0.0")
	tr.stderrLine("  Duration: 00:00:99.00, start: 0.0") // second input ignored
	tr.progressLine("out_time_us=2500000")
	tr.progressLine("out_time_ms=5000000")
	tr.progressLine("out_time_ms=5000000") // duplicate suppressed
	tr.progressLine("frame=10")
	tr.progressLine("progress=end")
	tr.finish()

	want := []float64{0.25, 0.5, 1}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("progress[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestHandleFiles(t *testing.T) {
	f := &FFmpeg{Binary: "ffmpeg", WorkRoot: t.TempDir()}
	h, err := f.New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	dir := h.(*ffmpegHandle).Dir()

	if err := h.WriteFile("in.mp4", []byte("payload")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := h.ReadFile("in.mp4")
	if err != nil || string(data) != "payload" {
		t.Fatalf("ReadFile = %q, %v", data, err)
	}
	if _, err := h.ReadFile("missing.ts"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	for _, bad := range []string{"", "..", "../escape", "a/b", `a\b`} {
		if err := h.WriteFile(bad, nil); !errors.Is(err, ErrInvalidName) {
			t.Errorf("WriteFile(%q): expected ErrInvalidName, got %v", bad, err)
		}
	}
	if err := h.Delete("in.mp4", "never-existed"); err != nil {
		t.Errorf("Delete: %v", err)
	}
	if _, err := h.ReadFile("in.mp4"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected deleted file to be gone, got %v", err)
	}

	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("Expected namespace %s removed, stat err = %v", dir, err)
	}
	if err := h.WriteFile("x", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after Close, got %v", err)
	}
	if err := h.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}

func TestHandlesAreIsolated(t *testing.T) {
	f := &FFmpeg{WorkRoot: t.TempDir()}
	a, _ := f.New(nil)
	b, _ := f.New(nil)
	defer a.Close()
	defer b.Close()

	if err := a.WriteFile("out.m3u8", []byte("a")); err != nil {
		t.Fatal(err)
	}
	if _, err := b.ReadFile("out.m3u8"); !errors.Is(err, ErrNotFound) {
		t.Errorf("handle b should not see handle a's files, got %v", err)
	}
}

// fakeFFmpeg writes a shell script that mimics ffmpeg's progress protocol.
func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script engine requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\n" + body
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunReportsProgress(t *testing.T) {
	bin := fakeFFmpeg(t, `echo "  Duration: 00:00:04.00, start: 0.0" >&2
echo "out_time_us=1000000"
echo "out_time_us=2000000"
echo "progress=continue"
echo "out_time_us=4000000"
echo "progress=end"
echo done > out.txt
`)
	var mu sync.Mutex
	var got []float64
	f := &FFmpeg{Binary: bin, WorkRoot: t.TempDir()}
	h, err := f.New(func(r float64) {
		mu.Lock()
		got = append(got, r)
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	if err := h.Run(context.Background(), "-i", "in.mp4", "out.txt"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if data, err := h.ReadFile("out.txt"); err != nil || string(data) != "done\n" {
		t.Errorf("Expected command to run inside namespace, got %q, %v", data, err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []float64{0.25, 0.5, 1}
	if len(got) != len(want) {
		t.Fatalf("Expected progress %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("progress[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRunFailureCarriesDiagnostic(t *testing.T) {
	bin := fakeFFmpeg(t, `echo "in.mp4: Invalid data found when processing input" >&2
exit 3
`)
	f := &FFmpeg{Binary: bin, WorkRoot: t.TempDir()}
	h, _ := f.New(nil)
	defer h.Close()

	err := h.Run(context.Background(), "-i", "in.mp4")
	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("Expected *RunError, got %T %v", err, err)
	}
	if runErr.ExitCode != 3 {
		t.Errorf("Expected exit code 3, got %d", runErr.ExitCode)
	}
	if runErr.Diagnostic != "in.mp4: Invalid data found when processing input" {
		t.Errorf("Unexpected diagnostic %q", runErr.Diagnostic)
	}
}

func TestRunMissingBinary(t *testing.T) {
	f := &FFmpeg{Binary: filepath.Join(t.TempDir(), "no-such-ffmpeg"), WorkRoot: t.TempDir()}
	h, _ := f.New(nil)
	defer h.Close()

	var runErr *RunError
	if err := h.Run(context.Background()); !errors.As(err, &runErr) {
		t.Errorf("Expected *RunError for missing binary, got %v", err)
	}
}

func TestRegisterSkipsMissingCommand(t *testing.T) {
	Register("ghost", "vidshape-no-such-command", &FFmpeg{})
	if _, ok := Get("ghost"); ok {
		t.Error("Expected engine with missing command to be skipped")
	}
}
