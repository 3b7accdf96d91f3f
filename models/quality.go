package models

import (
	"fmt"
	"strings"
)

// DefaultAudioBitrateBps is used when a quality level leaves the audio bitrate unset,
// both in the encode command and in the declared manifest bandwidth.
const DefaultAudioBitrateBps = 128000

// QualityLevel is one rung of an adaptive-bitrate ladder. Zero dimensions mean
// "unspecified": one zero axis is inferred from the source aspect ratio, two
// zero axes inherit the source resolution.
type QualityLevel struct {
	Name            string `json:"name" toml:"name"`
	TargetWidth     int    `json:"targetWidth,omitempty" toml:"width"`
	TargetHeight    int    `json:"targetHeight,omitempty" toml:"height"`
	VideoBitrateBps int    `json:"videoBitrateBps" toml:"video_bitrate"`
	AudioBitrateBps int    `json:"audioBitrateBps,omitempty" toml:"audio_bitrate"`
}

// HasDimensions reports whether either target axis is set.
func (q QualityLevel) HasDimensions() bool {
	return q.TargetWidth > 0 || q.TargetHeight > 0
}

// EffectiveAudioBitrate returns the audio bitrate, falling back to DefaultAudioBitrateBps.
func (q QualityLevel) EffectiveAudioBitrate() int {
	if q.AudioBitrateBps > 0 {
		return q.AudioBitrateBps
	}
	return DefaultAudioBitrateBps
}

// Bandwidth is the declared peak bandwidth of the rendition in bits per second.
func (q QualityLevel) Bandwidth() int {
	return q.VideoBitrateBps + q.EffectiveAudioBitrate()
}

// Validate checks the fields a rendition cannot be encoded without.
func (q QualityLevel) Validate() error {
	if strings.TrimSpace(q.Name) == "" {
		return fmt.Errorf("quality level: name is required")
	}
	if q.TargetWidth < 0 || q.TargetHeight < 0 {
		return fmt.Errorf("quality level %s: negative dimension %dx%d", q.Name, q.TargetWidth, q.TargetHeight)
	}
	if q.VideoBitrateBps <= 0 {
		return fmt.Errorf("quality level %s: video bitrate must be positive", q.Name)
	}
	if q.AudioBitrateBps < 0 {
		return fmt.Errorf("quality level %s: negative audio bitrate", q.Name)
	}
	return nil
}

// DefaultLadder returns the preset ladder, lowest rung first.
func DefaultLadder() []QualityLevel {
	return []QualityLevel{
		{Name: "360p", TargetWidth: 640, TargetHeight: 360, VideoBitrateBps: 800000, AudioBitrateBps: 96000},
		{Name: "480p", TargetWidth: 854, TargetHeight: 480, VideoBitrateBps: 1400000, AudioBitrateBps: 128000},
		{Name: "720p", TargetWidth: 1280, TargetHeight: 720, VideoBitrateBps: 2800000, AudioBitrateBps: 128000},
		{Name: "1080p", TargetWidth: 1920, TargetHeight: 1080, VideoBitrateBps: 5000000, AudioBitrateBps: 192000},
	}
}

// Preset looks up a DefaultLadder level by name.
func Preset(name string) (QualityLevel, bool) {
	for _, level := range DefaultLadder() {
		if strings.EqualFold(level.Name, name) {
			return level, true
		}
	}
	return QualityLevel{}, false
}
