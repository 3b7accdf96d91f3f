// Package render implements the capture platform in software: an RGBA canvas,
// an ffmpeg-decoding player paced to the wall clock, and an ffmpeg recorder
// fed with raw canvas frames.
package render

import (
	"errors"
	"image"
	"image/color"
	"sync"
	"time"

	"golang.org/x/image/draw"

	"vidshape/capture"
)

// Canvas is an in-memory capture surface.
type Canvas struct {
	mu     sync.Mutex
	img    *image.RGBA
	closed bool
	stream *FrameStream
}

func NewCanvas(width, height int) (*Canvas, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.New("canvas dimensions must be positive")
	}
	return &Canvas{img: image.NewRGBA(image.Rect(0, 0, width, height))}, nil
}

func (c *Canvas) Bounds() image.Rectangle { return c.img.Bounds() }

func (c *Canvas) Clear(col color.Color) {
	c.mu.Lock()
	defer c.mu.Unlock()
	draw.Draw(c.img, c.img.Bounds(), image.NewUniform(col), image.Point{}, draw.Src)
}

// Draw scales frame into rect; parts of rect outside the canvas are clipped.
func (c *Canvas) Draw(frame image.Image, rect image.Rectangle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	draw.ApproxBiLinear.Scale(c.img, rect, frame, frame.Bounds(), draw.Src, nil)
}

// Snapshot copies the current pixels.
func (c *Canvas) Snapshot() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.img.Pix...)
}

func (c *Canvas) CaptureStream(fps float64) (capture.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("canvas closed")
	}
	if c.stream != nil {
		return nil, errors.New("canvas already has a capture stream")
	}
	c.stream = newFrameStream(c, fps)
	return c.stream, nil
}

func (c *Canvas) Close() error {
	c.mu.Lock()
	stream := c.stream
	c.closed = true
	c.mu.Unlock()
	if stream != nil {
		return stream.Close()
	}
	return nil
}

// videoTrack is the canvas track of a FrameStream.
type videoTrack struct{}

func (videoTrack) Kind() string { return "video" }

// FrameStream samples its canvas at a fixed rate onto Frames.
type FrameStream struct {
	Width  int
	Height int
	FPS    float64

	frames chan []byte
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once

	mu     sync.Mutex
	tracks []capture.Track
}

func newFrameStream(c *Canvas, fps float64) *FrameStream {
	b := c.img.Bounds()
	s := &FrameStream{
		Width:  b.Dx(),
		Height: b.Dy(),
		FPS:    fps,
		frames: make(chan []byte, 8),
		done:   make(chan struct{}),
		tracks: []capture.Track{videoTrack{}},
	}
	s.wg.Add(1)
	go s.sample(c)
	return s
}

func (s *FrameStream) sample(c *Canvas) {
	defer s.wg.Done()
	defer close(s.frames)
	ticker := time.NewTicker(time.Duration(float64(time.Second) / s.FPS))
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			frame := c.Snapshot()
			select {
			case s.frames <- frame:
			case <-s.done:
				return
			default:
				// consumer is behind; drop the oldest queued frame
				select {
				case <-s.frames:
				default:
				}
				select {
				case s.frames <- frame:
				default:
				}
			}
		}
	}
}

// Frames delivers RGBA frames until the stream is closed.
func (s *FrameStream) Frames() <-chan []byte { return s.frames }

func (s *FrameStream) Tracks() []capture.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]capture.Track(nil), s.tracks...)
}

func (s *FrameStream) AddTrack(t capture.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks = append(s.tracks, t)
}

// AudioPath returns the file of a merged SourceAudio track, if any.
func (s *FrameStream) AudioPath() string {
	for _, t := range s.Tracks() {
		if a, ok := t.(SourceAudio); ok {
			return a.Path
		}
	}
	return ""
}

func (s *FrameStream) Close() error {
	s.once.Do(func() { close(s.done) })
	s.wg.Wait()
	return nil
}
