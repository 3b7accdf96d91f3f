package render

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vidshape/capture"
	"vidshape/output"
)

// These tests drive real ffmpeg processes and skip when the binaries are
// not on PATH.

func requireFFmpeg(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not found in PATH", bin)
		}
	}
}

// recordableMime returns a container type whose video encoder this ffmpeg build has.
func recordableMime(t *testing.T) string {
	t.Helper()
	out, err := exec.Command("ffmpeg", "-hide_banner", "-encoders").Output()
	if err != nil {
		t.Skipf("list encoders: %v", err)
	}
	for _, mime := range []string{"video/webm", "video/mp4"} {
		if strings.Contains(string(out), " "+profiles[mime].videoCodec+" ") {
			return mime
		}
	}
	t.Skip("no libvpx-vp9 or libx264 encoder available")
	return ""
}

// testSource renders a 64x48 test pattern of the given length.
func testSource(t *testing.T, seconds string) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.mp4")
	cmd := exec.Command("ffmpeg", "-hide_banner", "-nostdin", "-loglevel", "error",
		"-f", "lavfi", "-i", "testsrc=size=64x48:rate=30",
		"-t", seconds, "-c:v", "mpeg4", "-pix_fmt", "yuv420p", path)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("generate source: %v: %s", err, out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestPlayerPacesToWallClock(t *testing.T) {
	requireFFmpeg(t)
	data := testSource(t, "1")

	p := &Player{FFmpeg: "ffmpeg", TempDir: t.TempDir()}
	p.Prober.Binary = "ffprobe"
	defer p.Close()

	meta, err := p.Load(context.Background(), data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if meta.Width != 64 || meta.Height != 48 {
		t.Errorf("Expected 64x48, got %dx%d", meta.Width, meta.Height)
	}
	if p.ReadyState() != capture.HaveMetadata {
		t.Errorf("Expected HaveMetadata after load, got %v", p.ReadyState())
	}

	start := time.Now()
	if err := p.Play(1); err != nil {
		t.Fatalf("Play: %v", err)
	}
	// the first frames may lag while the decoder starts
	if !waitUntil(t, 5*time.Second, func() bool { return p.CurrentTime() >= 0.3 }) {
		t.Fatal("Playback did not advance")
	}
	if got := p.ReadyState(); got != capture.HaveEnoughData {
		t.Errorf("Expected HaveEnoughData while keeping up, got %v", got)
	}

	for !p.Ended() {
		// a frame may be shown up to one frame early
		limit := time.Since(start).Seconds() + 1/DecodeFrameRate
		if cur := p.CurrentTime(); cur > limit {
			t.Fatalf("Playback ran ahead of the clock: at %.3fs after %.3fs", cur, limit)
		}
		if time.Since(start) > 10*time.Second {
			t.Fatal("Playback never ended")
		}
		time.Sleep(20 * time.Millisecond)
	}
	if elapsed := time.Since(start); elapsed < 800*time.Millisecond {
		t.Errorf("A 1s source ended after %v at speed 1", elapsed)
	}
	if cur := p.CurrentTime(); cur < 0.9 {
		t.Errorf("Expected current time near the duration at end, got %.3f", cur)
	}
}

func TestPlayerReportsBehindClock(t *testing.T) {
	requireFFmpeg(t)
	data := testSource(t, "1")

	p := &Player{FFmpeg: "ffmpeg", TempDir: t.TempDir()}
	p.Prober.Binary = "ffprobe"
	defer p.Close()

	if _, err := p.Load(context.Background(), data); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := p.Play(1); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if !waitUntil(t, 5*time.Second, func() bool { return p.Frame() != nil }) {
		t.Fatal("No frame decoded")
	}

	// Jump the clock past the end so every remaining frame is late.
	p.mu.Lock()
	p.clockPos += 10
	p.mu.Unlock()

	if !waitUntil(t, 5*time.Second, p.Ended) {
		t.Fatal("Playback never ended")
	}
	if got := p.ReadyState(); got != capture.HaveCurrentData {
		t.Errorf("Expected HaveCurrentData after falling behind, got %v", got)
	}
}

func TestRecorderStartStopDrain(t *testing.T) {
	requireFFmpeg(t)
	mime := recordableMime(t)

	canvas, err := NewCanvas(32, 24)
	if err != nil {
		t.Fatal(err)
	}
	defer canvas.Close()
	stream, err := canvas.CaptureStream(30)
	if err != nil {
		t.Fatal(err)
	}

	rec, err := NewRecorder("ffmpeg", stream.(*FrameStream), capture.RecorderOptions{
		MimeType:  mime,
		FrameRate: 30,
		Speed:     1,
	})
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	defer rec.Close()

	if err := rec.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if ev := <-rec.Events(); ev.Kind != capture.EventStarted {
		t.Fatalf("Expected EventStarted first, got %v", ev.Kind)
	}

	time.Sleep(300 * time.Millisecond)
	if err := rec.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	var size int
	timeout := time.After(10 * time.Second)
	for stopped := false; !stopped; {
		select {
		case ev := <-rec.Events():
			switch ev.Kind {
			case capture.EventData:
				size += len(ev.Data)
			case capture.EventError:
				t.Fatalf("Recorder error: %v", ev.Err)
			case capture.EventStopped:
				stopped = true
			}
		case <-timeout:
			t.Fatal("Recorder did not stop")
		}
	}
	if size == 0 {
		t.Error("Expected encoded data before EventStopped")
	}
}

func TestCaptureEndToEnd(t *testing.T) {
	requireFFmpeg(t)
	mime := recordableMime(t)
	data := testSource(t, "0.5")

	var progress []float64
	c := capture.New(NewPlatform("ffmpeg", "ffprobe", t.TempDir()))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := c.Capture(ctx, data, capture.Options{
		Width:    32,
		Height:   24,
		MimeType: mime,
		Output:   output.Bytes,
		Progress: func(p float64) { progress = append(progress, p) },
	})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if res.MimeType != mime {
		t.Errorf("Expected %s, got %s", mime, res.MimeType)
	}
	if len(res.Data) == 0 {
		t.Error("Expected recorded bytes")
	}
	if len(progress) == 0 || progress[len(progress)-1] != 100 {
		t.Errorf("Expected progress to end at 100, got %v", progress)
	}
	for i := 1; i < len(progress); i++ {
		if progress[i] < progress[i-1] {
			t.Errorf("Progress decreased at %d: %v", i, progress)
			break
		}
	}
}
