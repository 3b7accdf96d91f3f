// Package capture produces one encoded output from one source by playing it
// back and resampling frames onto a surface in real time.
//
// A capture moves through Idle, Loading, Ready, Recording, Draining and
// Completed, or ends in Failed. The recording loop is driven by a ticker at
// the capture frame rate and checks the context on every tick. A watchdog
// fails the capture when playback time stops advancing.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"vidshape/geometry"
	"vidshape/logger"
	"vidshape/metrics"
	"vidshape/output"
)

var log = logger.With("capture")

var (
	ErrSourceLoad     = errors.New("source could not be loaded")
	ErrStalledCapture = errors.New("capture stalled")
	ErrRecorder       = errors.New("recorder failed")
	ErrBusy           = errors.New("capturer is busy")
)

// State of a Capturer.
type State int

const (
	Idle State = iota
	Loading
	Ready
	Recording
	Draining
	Completed
	Failed
)

var stateNames = [...]string{"idle", "loading", "ready", "recording", "draining", "completed", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Result of a completed capture.
type Result struct {
	MimeType string
	Data     []byte
	Output   output.Representation
	Geometry geometry.Geometry
	Duration float64
	Frames   int
}

// Capturer runs captures on a Platform, one at a time.
type Capturer struct {
	platform Platform

	mu    sync.Mutex
	busy  bool
	state State
	err   error
}

func New(platform Platform) *Capturer {
	return &Capturer{platform: platform}
}

// State returns the current (or last) capture state.
func (c *Capturer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error of the last failed capture.
func (c *Capturer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Capturer) setState(s *session, st State) {
	c.mu.Lock()
	c.state = st
	c.mu.Unlock()
	log.Debugf("%s: %s", s.id, st)
}

// session is the explicit per-capture state; nothing is stashed on collaborators.
type session struct {
	id   string
	opts Options
	data []byte

	player   Player
	surface  Surface
	stream   Stream
	recorder Recorder
	events   <-chan RecorderEvent
	stopped  bool

	meta     Metadata
	geo      geometry.Geometry
	mimeType string
	chunks   [][]byte
	frames   int
	progress progressReporter
}

// Capture records data according to opts. Only one capture may run at a time.
func (c *Capturer) Capture(ctx context.Context, data []byte, opts Options) (*Result, error) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	c.busy = true
	c.err = nil
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	opts = opts.withDefaults()
	s := &session{
		id:       uuid.NewString()[:8],
		opts:     opts,
		data:     data,
		progress: progressReporter{sink: opts.Progress, last: -1},
	}
	defer s.release()

	res, err := c.run(ctx, s)
	if err != nil {
		s.stopRecorder()
		c.mu.Lock()
		c.state = Failed
		c.err = err
		c.mu.Unlock()
		metrics.CapturesTotal.WithLabelValues(failureLabel(err)).Inc()
		log.Errorf("%s: failed: %v", s.id, err)
		return nil, err
	}
	metrics.CapturesTotal.WithLabelValues("success").Inc()
	return res, nil
}

func (c *Capturer) run(ctx context.Context, s *session) (*Result, error) {
	c.setState(s, Loading)
	if err := c.load(ctx, s); err != nil {
		return nil, err
	}

	c.setState(s, Ready)
	if err := c.prepare(s); err != nil {
		return nil, err
	}

	c.setState(s, Recording)
	if err := c.startRecording(ctx, s); err != nil {
		return nil, err
	}
	if err := c.record(ctx, s); err != nil {
		return nil, err
	}

	c.setState(s, Draining)
	if err := c.drain(ctx, s); err != nil {
		return nil, err
	}

	blob := bytes.Join(s.chunks, nil)
	rep, err := output.Represent(output.Artifact{
		Name:     s.outputName(),
		MimeType: s.mimeType,
		Data:     blob,
	}, s.opts.Output)
	if err != nil {
		return nil, err
	}
	s.progress.complete()
	c.setState(s, Completed)
	log.Infof("%s: captured %d frames, %d bytes as %s", s.id, s.frames, len(blob), s.mimeType)

	return &Result{
		MimeType: s.mimeType,
		Data:     blob,
		Output:   rep,
		Geometry: s.geo,
		Duration: s.meta.Duration,
		Frames:   s.frames,
	}, nil
}

func (c *Capturer) load(ctx context.Context, s *session) error {
	player, err := c.platform.NewPlayer()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceLoad, err)
	}
	s.player = player

	loadCtx, cancel := context.WithTimeout(ctx, s.opts.LoadTimeout)
	defer cancel()
	meta, err := player.Load(loadCtx, s.data)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: metadata not available after %s", ErrSourceLoad, s.opts.LoadTimeout)
		}
		return fmt.Errorf("%w: %v", ErrSourceLoad, err)
	}
	if meta.Width <= 0 || meta.Height <= 0 || !(meta.Duration > 0) || math.IsInf(meta.Duration, 0) {
		return fmt.Errorf("%w: unusable metadata %dx%d, %.3fs", ErrSourceLoad, meta.Width, meta.Height, meta.Duration)
	}
	s.meta = meta
	log.Debugf("%s: source %dx%d, %.3fs", s.id, meta.Width, meta.Height, meta.Duration)
	return nil
}

func (c *Capturer) prepare(s *session) error {
	tw, th, err := geometry.InferTarget(s.meta.Width, s.meta.Height, s.opts.Width, s.opts.Height)
	if err != nil {
		return err
	}
	geo, err := geometry.Resolve(s.meta.Width, s.meta.Height, tw, th, s.opts.Fit)
	if err != nil {
		return err
	}
	s.geo = geo

	surface, err := c.platform.NewSurface(geo.CanvasWidth, geo.CanvasHeight)
	if err != nil {
		return fmt.Errorf("%w: surface: %v", ErrRecorder, err)
	}
	s.surface = surface
	log.Debugf("%s: geometry %s", s.id, geo)
	return nil
}

func (c *Capturer) startRecording(ctx context.Context, s *session) error {
	stream, err := s.surface.CaptureStream(s.opts.FrameRate)
	if err != nil {
		return fmt.Errorf("%w: capture stream: %v", ErrRecorder, err)
	}
	s.stream = stream

	if s.opts.IncludeAudio {
		if src, ok := s.player.(AudioSource); ok {
			track, err := src.AudioTrack()
			if err != nil {
				log.Warnf("%s: audio not extractable, recording video only: %v", s.id, err)
			} else if track != nil {
				stream.AddTrack(track)
			}
		} else {
			log.Debugf("%s: player has no audio source, recording video only", s.id)
		}
	}

	mimeType, ok := NegotiateMimeType(s.opts.MimeType, c.platform.IsTypeSupported)
	if !ok {
		return fmt.Errorf("%w: no supported container type (requested %q)", ErrRecorder, s.opts.MimeType)
	}
	s.mimeType = mimeType

	rec, err := c.platform.NewRecorder(stream, RecorderOptions{
		MimeType:        mimeType,
		VideoBitrateBps: s.opts.VideoBitrateBps,
		AudioBitrateBps: s.opts.AudioBitrateBps,
		FrameRate:       s.opts.FrameRate,
		Speed:           s.opts.Speed,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRecorder, err)
	}
	s.recorder = rec
	s.events = rec.Events()

	if err := rec.Start(); err != nil {
		return fmt.Errorf("%w: start: %v", ErrRecorder, err)
	}
	if err := s.awaitStart(ctx); err != nil {
		return err
	}

	if err := s.player.Play(s.opts.Speed); err != nil {
		return fmt.Errorf("%w: playback: %v", ErrSourceLoad, err)
	}
	return nil
}

// awaitStart waits for the recorder's start acknowledgment. A missing
// acknowledgment is assumed after StartTimeout.
func (s *session) awaitStart(ctx context.Context) error {
	timer := time.NewTimer(s.opts.StartTimeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			log.Warnf("%s: recorder start not acknowledged within %s, assuming started", s.id, s.opts.StartTimeout)
			return nil
		case ev, ok := <-s.events:
			if !ok {
				return fmt.Errorf("%w: event channel closed before start", ErrRecorder)
			}
			switch ev.Kind {
			case EventStarted:
				return nil
			case EventData:
				s.chunks = append(s.chunks, ev.Data)
			case EventError:
				return fmt.Errorf("%w: %v", ErrRecorder, ev.Err)
			case EventStopped:
				return fmt.Errorf("%w: stopped before start", ErrRecorder)
			}
		}
	}
}

func (c *Capturer) record(ctx context.Context, s *session) error {
	ticker := time.NewTicker(frameInterval(s.opts.FrameRate))
	defer ticker.Stop()

	d := s.meta.Duration
	rect := s.geo.DrawRect()
	lastTime := math.Inf(-1)
	lastAdvance := time.Now()
	lastReport := math.Inf(-1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-s.events:
			if !ok {
				return fmt.Errorf("%w: event channel closed while recording", ErrRecorder)
			}
			switch ev.Kind {
			case EventData:
				s.chunks = append(s.chunks, ev.Data)
			case EventError:
				return fmt.Errorf("%w: %v", ErrRecorder, ev.Err)
			case EventStopped:
				return fmt.Errorf("%w: stopped unexpectedly", ErrRecorder)
			}

		case now := <-ticker.C:
			t := s.player.CurrentTime()

			s.surface.Clear(color.Black)
			if frame := s.player.Frame(); frame != nil {
				s.surface.Draw(frame, rect)
			}
			s.frames++
			metrics.CaptureFramesTotal.Inc()

			if t-lastReport >= progressInterval {
				s.progress.report(math.Min(t/d, 1) * 100)
				lastReport = t
			}

			if t > lastTime {
				lastTime = t
				lastAdvance = now
			} else {
				grace := s.opts.BufferingTimeout
				if s.player.ReadyState() >= HaveFutureData {
					grace = s.opts.StallTimeout
				}
				if stalled := now.Sub(lastAdvance); stalled > grace {
					return fmt.Errorf("%w: playback stuck at %.3fs for %s", ErrStalledCapture, t, stalled.Round(time.Millisecond))
				}
			}

			switch {
			case t >= d-endTolerance:
				log.Debugf("%s: reached end at %.3fs", s.id, t)
				return nil
			case s.player.Ended():
				log.Debugf("%s: source ended at %.3fs", s.id, t)
				return nil
			case s.player.Paused():
				log.Debugf("%s: playback paused at %.3fs", s.id, t)
				return nil
			}
		}
	}
}

func (c *Capturer) drain(ctx context.Context, s *session) error {
	if err := s.stopRecorder(); err != nil {
		return fmt.Errorf("%w: stop: %v", ErrRecorder, err)
	}
	s.player.Pause()

	timer := time.NewTimer(s.opts.DrainTimeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return fmt.Errorf("%w: final data not flushed within %s", ErrRecorder, s.opts.DrainTimeout)
		case ev, ok := <-s.events:
			if !ok {
				return nil
			}
			switch ev.Kind {
			case EventData:
				s.chunks = append(s.chunks, ev.Data)
			case EventError:
				return fmt.Errorf("%w: %v", ErrRecorder, ev.Err)
			case EventStopped:
				return nil
			}
		}
	}
}

// stopRecorder calls Stop at most once per session.
func (s *session) stopRecorder() error {
	if s.recorder == nil || s.stopped {
		return nil
	}
	s.stopped = true
	return s.recorder.Stop()
}

func (s *session) release() {
	if s.recorder != nil {
		if err := s.recorder.Close(); err != nil {
			log.Warnf("%s: close recorder: %v", s.id, err)
		}
	}
	if s.stream != nil {
		if err := s.stream.Close(); err != nil {
			log.Warnf("%s: close stream: %v", s.id, err)
		}
	}
	if s.surface != nil {
		if err := s.surface.Close(); err != nil {
			log.Warnf("%s: close surface: %v", s.id, err)
		}
	}
	if s.player != nil {
		if err := s.player.Close(); err != nil {
			log.Warnf("%s: close player: %v", s.id, err)
		}
	}
}

func (s *session) outputName() string {
	name := s.opts.Name
	if name == "" {
		name = "capture"
	}
	return name + output.Extension(s.mimeType)
}

// NegotiateMimeType picks the requested type if supported, otherwise the first
// supported entry of SupportedMimeTypes.
func NegotiateMimeType(requested string, supported func(string) bool) (string, bool) {
	if requested != "" && supported(requested) {
		return requested, true
	}
	for _, candidate := range SupportedMimeTypes {
		if candidate != requested && supported(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func frameInterval(fps float64) time.Duration {
	iv := time.Duration(float64(time.Second) / fps)
	if iv < time.Millisecond {
		iv = time.Millisecond
	}
	return iv
}

type progressReporter struct {
	sink func(float64)
	last float64
}

func (p *progressReporter) report(v float64) {
	if v <= p.last {
		return
	}
	p.last = v
	if p.sink != nil {
		p.sink(v)
	}
}

func (p *progressReporter) complete() { p.report(100) }

func failureLabel(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, ErrSourceLoad):
		return "load_error"
	case errors.Is(err, ErrStalledCapture):
		return "stalled"
	case errors.Is(err, ErrRecorder):
		return "recorder_error"
	}
	return "error"
}
