package capture

import (
	"context"
	"image"
	"image/color"
)

// ReadyState mirrors how much media a player has buffered.
type ReadyState int

const (
	HaveNothing ReadyState = iota
	HaveMetadata
	HaveCurrentData
	HaveFutureData
	HaveEnoughData
)

// Metadata is what a player learns about a source once it is loaded.
type Metadata struct {
	Width    int
	Height   int
	Duration float64 // seconds
}

// Player plays one source. CurrentTime is in source seconds.
type Player interface {
	Load(ctx context.Context, data []byte) (Metadata, error)
	Play(speed float64) error
	Pause()
	CurrentTime() float64
	Ended() bool
	Paused() bool
	ReadyState() ReadyState
	// Frame returns the frame for CurrentTime, or nil before the first one.
	Frame() image.Image
	Close() error
}

// AudioSource is implemented by players that can hand their audio to a recorder.
type AudioSource interface {
	AudioTrack() (Track, error)
}

// Track is one media track of a stream.
type Track interface {
	Kind() string // "video" or "audio"
}

// Stream is the live output of a surface, plus any merged tracks.
type Stream interface {
	Tracks() []Track
	AddTrack(t Track)
	Close() error
}

// Surface is the render target frames are drawn onto.
type Surface interface {
	Clear(c color.Color)
	Draw(frame image.Image, rect image.Rectangle)
	CaptureStream(fps float64) (Stream, error)
	Close() error
}

// EventKind tags recorder events.
type EventKind int

const (
	EventStarted EventKind = iota
	EventData
	EventStopped
	EventError
)

// RecorderEvent is emitted by a recorder on its Events channel.
type RecorderEvent struct {
	Kind EventKind
	Data []byte
	Err  error
}

// RecorderOptions configure a recorder for one stream.
type RecorderOptions struct {
	MimeType        string
	VideoBitrateBps int
	AudioBitrateBps int
	FrameRate       float64
	Speed           float64
}

// Recorder encodes a stream into container chunks. Stop flushes the remaining
// data and is followed by an EventStopped. Close releases the recorder whether
// or not it was stopped.
type Recorder interface {
	Start() error
	Stop() error
	Events() <-chan RecorderEvent
	Close() error
}

// Platform creates the collaborators of one capture.
type Platform interface {
	NewPlayer() (Player, error)
	NewSurface(width, height int) (Surface, error)
	NewRecorder(stream Stream, opts RecorderOptions) (Recorder, error)
	IsTypeSupported(mimeType string) bool
}
