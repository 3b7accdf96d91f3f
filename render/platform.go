package render

import (
	"fmt"

	"vidshape/capture"
	"vidshape/probe"
)

// Platform wires the software canvas and the ffmpeg player and recorder.
type Platform struct {
	FFmpeg  string
	FFprobe string
	TempDir string
}

func NewPlatform(ffmpeg, ffprobe, tempDir string) *Platform {
	return &Platform{FFmpeg: ffmpeg, FFprobe: ffprobe, TempDir: tempDir}
}

func (p *Platform) NewPlayer() (capture.Player, error) {
	return &Player{
		FFmpeg:  p.FFmpeg,
		Prober:  probe.FFProbe{Binary: p.FFprobe, TempDir: p.TempDir},
		TempDir: p.TempDir,
	}, nil
}

func (p *Platform) NewSurface(width, height int) (capture.Surface, error) {
	return NewCanvas(width, height)
}

func (p *Platform) NewRecorder(stream capture.Stream, opts capture.RecorderOptions) (capture.Recorder, error) {
	fs, ok := stream.(*FrameStream)
	if !ok {
		return nil, fmt.Errorf("stream %T is not a canvas stream", stream)
	}
	return NewRecorder(p.FFmpeg, fs, opts)
}

func (p *Platform) IsTypeSupported(mimeType string) bool { return SupportsType(mimeType) }
