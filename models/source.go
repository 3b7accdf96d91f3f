package models

import "fmt"

// SourceDescriptor describes one probed input. It is produced once by the
// prober and never mutated afterwards.
type SourceDescriptor struct {
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	DurationSeconds float64 `json:"durationSeconds"`
	ByteSize        int64   `json:"byteSize"`
	HasAudio        bool    `json:"hasAudio"`
}

// AspectRatio returns width/height, or 0 when the height is unknown.
func (s SourceDescriptor) AspectRatio() float64 {
	if s.Height <= 0 {
		return 0
	}
	return float64(s.Width) / float64(s.Height)
}

func (s SourceDescriptor) String() string {
	return fmt.Sprintf("%dx%d %.2fs %d bytes", s.Width, s.Height, s.DurationSeconds, s.ByteSize)
}
