package capture

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"time"
)

type fakePlayer struct {
	mu sync.Mutex

	meta      Metadata
	loadErr   error
	loadBlock bool          // Load waits for ctx
	loadGate  chan struct{} // Load waits for this channel when set

	step    float64
	t       float64
	playing bool
	paused  bool
	speed   float64
	pauseAt float64

	stallAt    float64
	stallFor   time.Duration // 0 = forever
	stallReady ReadyState
	stallStart time.Time
	stalled    bool

	audioErr error
	closed   bool
}

func (p *fakePlayer) Load(ctx context.Context, data []byte) (Metadata, error) {
	if p.loadGate != nil {
		select {
		case <-p.loadGate:
		case <-ctx.Done():
			return Metadata{}, ctx.Err()
		}
	}
	if p.loadBlock {
		<-ctx.Done()
		return Metadata{}, ctx.Err()
	}
	return p.meta, p.loadErr
}

func (p *fakePlayer) Play(speed float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = true
	p.speed = speed
	return nil
}

func (p *fakePlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
	p.paused = true
}

func (p *fakePlayer) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return p.t
	}
	if p.stallAt > 0 && p.t >= p.stallAt {
		if p.stallStart.IsZero() {
			p.stallStart = time.Now()
		}
		if p.stallFor == 0 || time.Since(p.stallStart) < p.stallFor {
			p.stalled = true
			return p.t
		}
		p.stallAt = 0
		p.stalled = false
	}
	p.t += p.step
	if p.t > p.meta.Duration {
		p.t = p.meta.Duration
	}
	if p.pauseAt > 0 && p.t >= p.pauseAt {
		p.playing = false
		p.paused = true
	}
	return p.t
}

func (p *fakePlayer) Ended() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.t >= p.meta.Duration
}

func (p *fakePlayer) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *fakePlayer) ReadyState() ReadyState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stalled {
		return p.stallReady
	}
	return HaveEnoughData
}

func (p *fakePlayer) Frame() image.Image {
	return image.NewUniform(color.White)
}

func (p *fakePlayer) AudioTrack() (Track, error) {
	if p.audioErr != nil {
		return nil, p.audioErr
	}
	return fakeTrack("audio"), nil
}

func (p *fakePlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

type fakeTrack string

func (t fakeTrack) Kind() string { return string(t) }

type fakeStream struct {
	tracks []Track
	closed bool
}

func (s *fakeStream) Tracks() []Track { return s.tracks }
func (s *fakeStream) AddTrack(t Track) { s.tracks = append(s.tracks, t) }
func (s *fakeStream) Close() error { s.closed = true; return nil }

type fakeSurface struct {
	width, height int
	clears        int
	draws         []image.Rectangle
	stream        *fakeStream
	closed        bool
}

func (s *fakeSurface) Clear(c color.Color) { s.clears++ }

func (s *fakeSurface) Draw(frame image.Image, rect image.Rectangle) {
	s.draws = append(s.draws, rect)
}

func (s *fakeSurface) CaptureStream(fps float64) (Stream, error) {
	s.stream = &fakeStream{tracks: []Track{fakeTrack("video")}}
	return s.stream, nil
}

func (s *fakeSurface) Close() error { s.closed = true; return nil }

type fakeRecorder struct {
	opts      RecorderOptions
	events    chan RecorderEvent
	noAck     bool
	noStopped bool
	failAfter bool // emit an error right after starting

	mu     sync.Mutex
	stops  int
	closed bool
}

func (r *fakeRecorder) Start() error {
	if !r.noAck {
		r.events <- RecorderEvent{Kind: EventStarted}
	}
	r.events <- RecorderEvent{Kind: EventData, Data: []byte("head|")}
	if r.failAfter {
		r.events <- RecorderEvent{Kind: EventError, Err: errors.New("encoder crashed")}
	}
	return nil
}

func (r *fakeRecorder) Stop() error {
	r.mu.Lock()
	r.stops++
	r.mu.Unlock()
	r.events <- RecorderEvent{Kind: EventData, Data: []byte("tail")}
	if !r.noStopped {
		r.events <- RecorderEvent{Kind: EventStopped}
	}
	return nil
}

func (r *fakeRecorder) Events() <-chan RecorderEvent { return r.events }

func (r *fakeRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeRecorder) Stops() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops
}

type fakePlatform struct {
	player    *fakePlayer
	surface   *fakeSurface
	recorder  *fakeRecorder
	supported map[string]bool // nil = everything
}

func newFakePlatform(meta Metadata) *fakePlatform {
	return &fakePlatform{
		player:   &fakePlayer{meta: meta, step: 0.05},
		recorder: &fakeRecorder{events: make(chan RecorderEvent, 64)},
	}
}

func (p *fakePlatform) NewPlayer() (Player, error) { return p.player, nil }

func (p *fakePlatform) NewSurface(w, h int) (Surface, error) {
	p.surface = &fakeSurface{width: w, height: h}
	return p.surface, nil
}

func (p *fakePlatform) NewRecorder(stream Stream, opts RecorderOptions) (Recorder, error) {
	p.recorder.opts = opts
	return p.recorder, nil
}

func (p *fakePlatform) IsTypeSupported(mimeType string) bool {
	return p.supported == nil || p.supported[mimeType]
}
