package capture

import (
	"time"

	"vidshape/geometry"
	"vidshape/output"
)

const (
	DefaultFrameRate        = 30.0
	DefaultSpeed            = 2.0
	DefaultVideoBitrateBps  = 2500000
	DefaultAudioBitrateBps  = 128000
	DefaultLoadTimeout      = 10 * time.Second
	DefaultStartTimeout     = time.Second
	DefaultStallTimeout     = 5 * time.Second
	DefaultBufferingTimeout = 30 * time.Second
	DefaultDrainTimeout     = 10 * time.Second

	// progressInterval is the minimum source time between progress reports.
	progressInterval = 0.05
	// endTolerance ends recording slightly before the reported duration.
	endTolerance = 0.1
)

// SupportedMimeTypes is the negotiation fallback order.
var SupportedMimeTypes = []string{
	"video/webm;codecs=vp9,opus",
	"video/webm;codecs=vp8,opus",
	"video/webm",
	"video/mp4",
}

// Options configure one capture. Zero values take the defaults above.
type Options struct {
	// Requested output size; one axis may be 0 to keep the aspect ratio,
	// both 0 keeps the source size.
	Width  int
	Height int
	Fit    geometry.FitPolicy

	FrameRate       float64
	Speed           float64
	MimeType        string
	VideoBitrateBps int
	AudioBitrateBps int
	IncludeAudio    bool

	Output output.Format
	Name   string
	// Progress receives non-decreasing percentages ending at 100.
	Progress func(percent float64)

	LoadTimeout      time.Duration
	StartTimeout     time.Duration
	StallTimeout     time.Duration // time not advancing while data is buffered
	BufferingTimeout time.Duration // time not advancing while the player is starved
	DrainTimeout     time.Duration
}

func (o Options) withDefaults() Options {
	if o.Fit == "" {
		o.Fit = geometry.Contain
	}
	if o.FrameRate <= 0 {
		o.FrameRate = DefaultFrameRate
	}
	if o.Speed <= 0 {
		o.Speed = DefaultSpeed
	}
	if o.VideoBitrateBps <= 0 {
		o.VideoBitrateBps = DefaultVideoBitrateBps
	}
	if o.AudioBitrateBps <= 0 {
		o.AudioBitrateBps = DefaultAudioBitrateBps
	}
	if o.LoadTimeout <= 0 {
		o.LoadTimeout = DefaultLoadTimeout
	}
	if o.StartTimeout <= 0 {
		o.StartTimeout = DefaultStartTimeout
	}
	if o.StallTimeout <= 0 {
		o.StallTimeout = DefaultStallTimeout
	}
	if o.BufferingTimeout <= 0 {
		o.BufferingTimeout = DefaultBufferingTimeout
	}
	if o.BufferingTimeout < o.StallTimeout {
		o.BufferingTimeout = o.StallTimeout
	}
	if o.DrainTimeout <= 0 {
		o.DrainTimeout = DefaultDrainTimeout
	}
	return o
}
