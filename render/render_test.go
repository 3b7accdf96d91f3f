package render

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"vidshape/capture"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCanvasClearAndDraw(t *testing.T) {
	c, err := NewCanvas(4, 2)
	if err != nil {
		t.Fatal(err)
	}
	c.Clear(color.Black)
	if got := c.img.RGBAAt(3, 1); got != (color.RGBA{A: 255}) {
		t.Errorf("Expected opaque black after Clear, got %v", got)
	}

	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range src.Pix {
		src.Pix[i] = 255
	}
	c.Draw(src, image.Rect(2, 0, 4, 2))

	if got := c.img.RGBAAt(0, 0); got != (color.RGBA{A: 255}) {
		t.Errorf("Expected letterbox area untouched, got %v", got)
	}
	if got := c.img.RGBAAt(3, 1); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("Expected drawn area white, got %v", got)
	}
}

func TestCanvasDrawClipsOutsideRect(t *testing.T) {
	c, _ := NewCanvas(4, 4)
	c.Clear(color.Black)
	src := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for i := range src.Pix {
		src.Pix[i] = 200
	}
	// cover-style rect overflowing both sides
	c.Draw(src, image.Rect(-2, 0, 6, 4))
	for x := 0; x < 4; x++ {
		if got := c.img.RGBAAt(x, 2); got.R != 200 {
			t.Errorf("pixel %d not covered: %v", x, got)
		}
	}
}

func TestNewCanvasRejectsEmpty(t *testing.T) {
	if _, err := NewCanvas(0, 10); err == nil {
		t.Error("Expected error for zero width")
	}
}

func TestFrameStreamSamples(t *testing.T) {
	c, _ := NewCanvas(2, 2)
	c.Clear(color.White)
	s, err := c.CaptureStream(200)
	if err != nil {
		t.Fatal(err)
	}
	fs := s.(*FrameStream)

	select {
	case frame := <-fs.Frames():
		if len(frame) != 2*2*4 {
			t.Errorf("Expected 16-byte RGBA frame, got %d", len(frame))
		}
	case <-time.After(time.Second):
		t.Fatal("no frame sampled")
	}

	if _, err := c.CaptureStream(30); err == nil {
		t.Error("Expected a second stream on one canvas to fail")
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	for range fs.Frames() {
		// drained until closed
	}
}

func TestFrameStreamTracks(t *testing.T) {
	c, _ := NewCanvas(2, 2)
	s, _ := c.CaptureStream(30)
	defer c.Close()

	fs := s.(*FrameStream)
	if fs.AudioPath() != "" {
		t.Error("Expected no audio before merge")
	}
	fs.AddTrack(SourceAudio{Path: "/tmp/src"})
	if fs.AudioPath() != "/tmp/src" || len(fs.Tracks()) != 2 {
		t.Errorf("unexpected tracks %v", fs.Tracks())
	}
}

func TestSupportsType(t *testing.T) {
	for _, m := range capture.SupportedMimeTypes {
		if !SupportsType(m) {
			t.Errorf("Expected %s supported", m)
		}
	}
	if !SupportsType("video/webm; codecs=vp9,opus") {
		t.Error("Expected whitespace-insensitive match")
	}
	if SupportsType("video/x-flv") {
		t.Error("Expected flv unsupported")
	}
}

func TestRecorderArgs(t *testing.T) {
	stream := &FrameStream{Width: 640, Height: 360}
	r, err := NewRecorder("ffmpeg", stream, capture.RecorderOptions{
		MimeType:        "video/mp4",
		VideoBitrateBps: 1000000,
		AudioBitrateBps: 96000,
		FrameRate:       30,
		Speed:           2,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"-s", "640x360",
		"-framerate", "15",
		"-i", "pipe:0",
		"-r", "30", "-c:v", "libx264", "-b:v", "1000000",
		"-preset", "veryfast", "-pix_fmt", "yuv420p", "-movflags", "frag_keyframe+empty_moov",
		"-f", "mp4", "pipe:1",
	}
	if diff := cmp.Diff(want, r.Args()); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}

	stream.AddTrack(SourceAudio{Path: "src.mp4"})
	args := r.Args()
	if diff := cmp.Diff([]string{"-i", "src.mp4", "-map", "0:v:0", "-map", "1:a:0", "-shortest"}, args[14:21]); diff != "" {
		t.Errorf("audio input mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"-c:a", "aac", "-b:a", "96000", "-f", "mp4", "pipe:1"}, args[len(args)-7:]); diff != "" {
		t.Errorf("audio codec mismatch (-want +got):\n%s", diff)
	}
}

func TestNewRecorderRejectsUnknownType(t *testing.T) {
	if _, err := NewRecorder("ffmpeg", &FrameStream{}, capture.RecorderOptions{MimeType: "video/ogg"}); err == nil {
		t.Error("Expected error for unsupported type")
	}
}

type otherStream struct{}

func (otherStream) Tracks() []capture.Track { return nil }
func (otherStream) AddTrack(capture.Track) {}
func (otherStream) Close() error { return nil }

func TestPlatformRequiresCanvasStream(t *testing.T) {
	p := NewPlatform("ffmpeg", "ffprobe", t.TempDir())
	if _, err := p.NewRecorder(otherStream{}, capture.RecorderOptions{MimeType: "video/webm"}); err == nil {
		t.Error("Expected error for foreign stream type")
	}
}

func TestPlayerWithoutAudio(t *testing.T) {
	p := &Player{}
	if _, err := p.AudioTrack(); err == nil {
		t.Error("Expected error when the source has no audio")
	}
	if p.ReadyState() != capture.HaveNothing {
		t.Errorf("Expected HaveNothing before load, got %v", p.ReadyState())
	}
	if err := p.Play(1); err == nil {
		t.Error("Expected Play before Load to fail")
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close on an unloaded player: %v", err)
	}
}
