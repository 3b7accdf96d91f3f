package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"vidshape/capture"
)

// containerProfile maps a negotiated MIME type to ffmpeg output settings.
type containerProfile struct {
	videoCodec string
	audioCodec string
	format     string
	extra      []string
}

var profiles = map[string]containerProfile{
	"video/webm;codecs=vp9,opus": {videoCodec: "libvpx-vp9", audioCodec: "libopus", format: "webm", extra: []string{"-deadline", "realtime", "-row-mt", "1"}},
	"video/webm;codecs=vp8,opus": {videoCodec: "libvpx", audioCodec: "libopus", format: "webm", extra: []string{"-deadline", "realtime"}},
	"video/webm":                 {videoCodec: "libvpx-vp9", audioCodec: "libopus", format: "webm", extra: []string{"-deadline", "realtime", "-row-mt", "1"}},
	"video/mp4":                  {videoCodec: "libx264", audioCodec: "aac", format: "mp4", extra: []string{"-preset", "veryfast", "-pix_fmt", "yuv420p", "-movflags", "frag_keyframe+empty_moov"}},
}

func normalizeMime(m string) string {
	return strings.ToLower(strings.ReplaceAll(m, " ", ""))
}

// SupportsType reports whether the recorder has a profile for mimeType.
func SupportsType(mimeType string) bool {
	_, ok := profiles[normalizeMime(mimeType)]
	return ok
}

const chunkSize = 64 * 1024

// Recorder pipes FrameStream frames into ffmpeg and emits its output as chunks.
type Recorder struct {
	FFmpeg string

	stream *FrameStream
	opts   capture.RecorderOptions

	events chan capture.RecorderEvent
	stop   chan struct{}
	quit   chan struct{}

	stopOnce sync.Once
	quitOnce sync.Once
	wg       sync.WaitGroup

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
}

func NewRecorder(ffmpeg string, stream *FrameStream, opts capture.RecorderOptions) (*Recorder, error) {
	if _, ok := profiles[normalizeMime(opts.MimeType)]; !ok {
		return nil, fmt.Errorf("unsupported mime type %q", opts.MimeType)
	}
	return &Recorder{
		FFmpeg: ffmpeg,
		stream: stream,
		opts:   opts,
		events: make(chan capture.RecorderEvent, 64),
		stop:   make(chan struct{}),
		quit:   make(chan struct{}),
	}, nil
}

// Args returns the ffmpeg arguments for this recorder.
func (r *Recorder) Args() []string {
	profile := profiles[normalizeMime(r.opts.MimeType)]
	fps := r.opts.FrameRate
	if fps <= 0 {
		fps = capture.DefaultFrameRate
	}
	speed := r.opts.Speed
	if speed <= 0 {
		speed = 1
	}
	// Frames are sampled at fps wall-clock while the source plays at speed×,
	// so each frame spans speed/fps of source time.
	inputRate := strconv.FormatFloat(fps/speed, 'f', -1, 64)

	args := []string{
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", r.stream.Width, r.stream.Height),
		"-framerate", inputRate,
		"-i", "pipe:0",
	}
	audio := r.stream.AudioPath()
	if audio != "" {
		args = append(args, "-i", audio, "-map", "0:v:0", "-map", "1:a:0", "-shortest")
	}
	args = append(args, "-r", strconv.FormatFloat(fps, 'f', -1, 64), "-c:v", profile.videoCodec)
	if r.opts.VideoBitrateBps > 0 {
		args = append(args, "-b:v", strconv.Itoa(r.opts.VideoBitrateBps))
	}
	args = append(args, profile.extra...)
	if audio != "" {
		args = append(args, "-c:a", profile.audioCodec)
		if r.opts.AudioBitrateBps > 0 {
			args = append(args, "-b:a", strconv.Itoa(r.opts.AudioBitrateBps))
		}
	}
	return append(args, "-f", profile.format, "pipe:1")
}

func (r *Recorder) Events() <-chan capture.RecorderEvent { return r.events }

func (r *Recorder) emit(ev capture.RecorderEvent) {
	select {
	case r.events <- ev:
	case <-r.quit:
	}
}

func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errors.New("recorder already started")
	}
	bin := r.FFmpeg
	if bin == "" {
		bin = "ffmpeg"
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, bin, r.Args()...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return err
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start recorder: %w", err)
	}
	r.cancel = cancel
	r.started = true

	r.emit(capture.RecorderEvent{Kind: capture.EventStarted})

	r.wg.Add(2)
	go r.feed(stdin)
	go r.collect(cmd, stdout, &stderr)
	return nil
}

// feed writes frames until Stop, stream end, or Close.
func (r *Recorder) feed(stdin io.WriteCloser) {
	defer r.wg.Done()
	defer stdin.Close()
	frames := r.stream.Frames()
	for {
		select {
		case <-r.stop:
			return
		case <-r.quit:
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if _, err := stdin.Write(frame); err != nil {
				return
			}
		}
	}
}

func (r *Recorder) collect(cmd *exec.Cmd, stdout io.Reader, stderr *bytes.Buffer) {
	defer r.wg.Done()
	for {
		buf := make([]byte, chunkSize)
		n, err := stdout.Read(buf)
		if n > 0 {
			r.emit(capture.RecorderEvent{Kind: capture.EventData, Data: buf[:n]})
		}
		if err != nil {
			break
		}
	}
	if err := cmd.Wait(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		r.emit(capture.RecorderEvent{Kind: capture.EventError, Err: errors.New(msg)})
		return
	}
	r.emit(capture.RecorderEvent{Kind: capture.EventStopped})
}

// Stop ends the input; ffmpeg flushes and exits, producing EventStopped.
func (r *Recorder) Stop() error {
	r.stopOnce.Do(func() { close(r.stop) })
	return nil
}

// Close kills a running recorder and waits for its goroutines.
func (r *Recorder) Close() error {
	r.quitOnce.Do(func() { close(r.quit) })
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
	return nil
}
