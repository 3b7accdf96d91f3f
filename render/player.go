package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"vidshape/capture"
	"vidshape/logger"
	"vidshape/models"
	"vidshape/probe"
)

var log = logger.With("render")

// DecodeFrameRate is the rate the player decodes source frames at.
const DecodeFrameRate = 30.0

// SourceAudio is an audio track read straight from the source file.
type SourceAudio struct {
	Path string
}

func (SourceAudio) Kind() string { return "audio" }

// Player decodes a source with ffmpeg into RGBA frames, releasing each frame
// once the playback clock (wall time × speed) reaches its timestamp.
type Player struct {
	FFmpeg  string
	Prober  probe.FFProbe
	TempDir string

	mu       sync.Mutex
	path     string
	source   models.SourceDescriptor
	frame    *image.RGBA
	current  float64
	ended    bool
	paused   bool
	playing  bool
	behind   bool
	speed    float64
	clockAt  time.Time // wall time the clock was last (re)started
	clockPos float64   // source time at clockAt
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func (p *Player) Load(ctx context.Context, data []byte) (capture.Metadata, error) {
	f, err := os.CreateTemp(p.TempDir, "vidshape-source-*")
	if err != nil {
		return capture.Metadata{}, fmt.Errorf("spool source: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return capture.Metadata{}, fmt.Errorf("spool source: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return capture.Metadata{}, err
	}

	src, err := p.Prober.ProbeFile(ctx, f.Name())
	if err != nil {
		os.Remove(f.Name())
		return capture.Metadata{}, err
	}
	p.mu.Lock()
	p.path = f.Name()
	p.source = src
	p.mu.Unlock()
	return capture.Metadata{Width: src.Width, Height: src.Height, Duration: src.DurationSeconds}, nil
}

func (p *Player) clockLocked(now time.Time) float64 {
	if !p.playing {
		return p.clockPos
	}
	return p.clockPos + now.Sub(p.clockAt).Seconds()*p.speed
}

func (p *Player) Play(speed float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.path == "" {
		return errors.New("no source loaded")
	}
	if p.playing {
		return nil
	}
	if speed <= 0 {
		speed = 1
	}
	p.speed = speed
	p.clockAt = time.Now()
	p.playing = true
	p.paused = false
	if p.cancel != nil {
		// resumed; the decoder is still running
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	bin := p.FFmpeg
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, bin,
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-i", p.path,
		"-an",
		"-vf", "fps="+strconv.FormatFloat(DecodeFrameRate, 'f', -1, 64),
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"pipe:1",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start decoder: %w", err)
	}
	p.cancel = cancel
	p.wg.Add(1)
	go p.decode(ctx, cmd, stdout, p.source.Width, p.source.Height)
	return nil
}

func (p *Player) decode(ctx context.Context, cmd *exec.Cmd, r io.Reader, w, h int) {
	defer p.wg.Done()
	frameSize := w * h * 4
	for i := 0; ; i++ {
		ts := float64(i) / DecodeFrameRate
		if !p.waitFor(ctx, ts) {
			break
		}
		buf := make([]byte, frameSize)
		if _, err := io.ReadFull(r, buf); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) && ctx.Err() == nil {
				log.Warnf("decoder read: %v", err)
			}
			break
		}
		img := &image.RGBA{Pix: buf, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}
		p.mu.Lock()
		p.frame = img
		p.current = ts
		p.behind = p.clockLocked(time.Now())-ts > 2/DecodeFrameRate
		p.mu.Unlock()
	}
	_, _ = io.Copy(io.Discard, r)
	if err := cmd.Wait(); err != nil && ctx.Err() == nil {
		log.Warnf("decoder exited: %v", err)
	}
	p.mu.Lock()
	if ctx.Err() == nil {
		p.ended = true
		if p.source.DurationSeconds > p.current {
			p.current = p.source.DurationSeconds
		}
	}
	p.mu.Unlock()
}

// waitFor blocks until the playback clock reaches ts.
func (p *Player) waitFor(ctx context.Context, ts float64) bool {
	for {
		p.mu.Lock()
		wait := time.Duration(0)
		if !p.playing {
			wait = 10 * time.Millisecond
		} else if ahead := ts - p.clockLocked(time.Now()); ahead > 0 {
			wait = time.Duration(ahead / p.speed * float64(time.Second))
		}
		p.mu.Unlock()
		if wait == 0 {
			return true
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}
	}
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		p.clockPos = p.clockLocked(time.Now())
		p.playing = false
	}
	p.paused = true
}

func (p *Player) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *Player) Ended() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ended
}

func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *Player) ReadyState() capture.ReadyState {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.path == "":
		return capture.HaveNothing
	case p.frame == nil:
		return capture.HaveMetadata
	case p.behind:
		return capture.HaveCurrentData
	}
	return capture.HaveEnoughData
}

func (p *Player) Frame() image.Image {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.frame == nil {
		return nil
	}
	return p.frame
}

// AudioTrack hands the source file to the recorder as an audio input.
func (p *Player) AudioTrack() (capture.Track, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.source.HasAudio {
		return nil, errors.New("source has no audio stream")
	}
	return SourceAudio{Path: p.path}, nil
}

// Close stops decoding. The spooled source is removed once the recorder that
// may read its audio has been closed, so Close is the last call of a capture.
func (p *Player) Close() error {
	p.mu.Lock()
	cancel := p.cancel
	path := p.path
	p.path = ""
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
	if path != "" {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}
