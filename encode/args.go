package encode

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"vidshape/models"
)

const (
	DefaultVideoCodec     = "libx264"
	DefaultAudioCodec     = "aac"
	DefaultContainer      = "mp4"
	DefaultInputName      = "input"
	DefaultOutputName     = "output"
	DefaultSegmentSeconds = 6.0
)

// Options describes one engine invocation.
type Options struct {
	TargetWidth     int // 0 = keep aspect from height
	TargetHeight    int // 0 = keep aspect from width
	VideoBitrateBps int
	AudioBitrateBps int // 0 = models.DefaultAudioBitrateBps
	VideoCodec      string
	AudioCodec      string
	Container       string // flat output only
	// SegmentSeconds > 0 switches to segmented (HLS) output.
	SegmentSeconds float64
	// Name is the output base name: <Name>.m3u8 + <Name>_%03d.ts, or <Name>.<Container>.
	Name      string
	InputName string
}

// OptionsForLevel returns segmented options for one ladder rung.
func OptionsForLevel(level models.QualityLevel, segmentSeconds float64) Options {
	if segmentSeconds <= 0 {
		segmentSeconds = DefaultSegmentSeconds
	}
	return Options{
		TargetWidth:     level.TargetWidth,
		TargetHeight:    level.TargetHeight,
		VideoBitrateBps: level.VideoBitrateBps,
		AudioBitrateBps: level.AudioBitrateBps,
		SegmentSeconds:  segmentSeconds,
		Name:            SanitizeName(level.Name),
	}
}

// Segmenting reports whether the options request manifest + segment output.
func (o Options) Segmenting() bool { return o.SegmentSeconds > 0 }

func (o Options) withDefaults() Options {
	if o.VideoCodec == "" {
		o.VideoCodec = DefaultVideoCodec
	}
	if o.AudioCodec == "" {
		o.AudioCodec = DefaultAudioCodec
	}
	if o.AudioBitrateBps <= 0 {
		o.AudioBitrateBps = models.DefaultAudioBitrateBps
	}
	if o.Container == "" {
		o.Container = DefaultContainer
	}
	if o.Name == "" {
		o.Name = DefaultOutputName
	}
	if o.InputName == "" {
		o.InputName = DefaultInputName
	}
	return o
}

// ManifestName is the per-rendition manifest written when segmenting.
func (o Options) ManifestName() string { return o.withDefaults().Name + ".m3u8" }

// SegmentPattern is the engine's segment filename template.
func (o Options) SegmentPattern() string { return o.withDefaults().Name + "_%03d.ts" }

// OutputName is the flat output file name.
func (o Options) OutputName() string {
	o = o.withDefaults()
	return o.Name + "." + o.Container
}

// ScaleFilter returns the scale expression, or "" when no target axis is set.
// A missing axis uses -2: keep aspect ratio, rounded to an even number.
func ScaleFilter(width, height int) string {
	switch {
	case width > 0 && height > 0:
		return fmt.Sprintf("scale=%d:%d", width, height)
	case width > 0:
		return fmt.Sprintf("scale=%d:-2", width)
	case height > 0:
		return fmt.Sprintf("scale=-2:%d", height)
	default:
		return ""
	}
}

// BuildArgs assembles the engine arguments for one invocation.
func BuildArgs(inputName string, opts Options) []string {
	opts = opts.withDefaults()
	if inputName == "" {
		inputName = opts.InputName
	}

	args := []string{"-i", inputName}
	if vf := ScaleFilter(opts.TargetWidth, opts.TargetHeight); vf != "" {
		args = append(args, "-vf", vf)
	}
	args = append(args, "-c:v", opts.VideoCodec)
	if opts.VideoBitrateBps > 0 {
		args = append(args, "-b:v", strconv.Itoa(opts.VideoBitrateBps))
	}
	args = append(args, "-c:a", opts.AudioCodec, "-b:a", strconv.Itoa(opts.AudioBitrateBps))

	if opts.Segmenting() {
		return append(args,
			"-f", "hls",
			"-hls_time", strconv.FormatFloat(opts.SegmentSeconds, 'f', -1, 64),
			"-hls_playlist_type", "vod",
			"-hls_list_size", "0",
			"-hls_segment_filename", opts.SegmentPattern(),
			opts.ManifestName(),
		)
	}
	if opts.Container == "mp4" || opts.Container == "mov" {
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, opts.OutputName())
}

// ScaledSize predicts the output resolution the scale filter produces.
// Zero results mean the source size was unknown.
func ScaledSize(srcW, srcH, width, height int) (int, int) {
	switch {
	case width > 0 && height > 0:
		return width, height
	case width > 0:
		if srcW <= 0 || srcH <= 0 {
			return width, 0
		}
		return width, evenRescale(width, srcH, srcW)
	case height > 0:
		if srcW <= 0 || srcH <= 0 {
			return 0, height
		}
		return evenRescale(height, srcW, srcH), height
	default:
		return srcW, srcH
	}
}

// evenRescale computes round(v*num/(den*2))*2, the engine's -2 arithmetic.
func evenRescale(v, num, den int) int {
	n := int(math.Round(float64(v) * float64(num) / float64(den*2)))
	if n < 1 {
		n = 1
	}
	return n * 2
}

// SanitizeName maps a level name to a safe file base name.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// ParseSegments lists the segment references of a media playlist in order.
func ParseSegments(manifest string) []string {
	var segments []string
	for _, line := range strings.Split(manifest, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		segments = append(segments, line)
	}
	return segments
}
