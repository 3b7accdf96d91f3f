// Package probe reads intrinsic video metadata (dimensions, duration) with ffprobe.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"vidshape/models"
)

// ErrProbe marks unreadable or corrupt input.
var ErrProbe = errors.New("probe failed")

// Prober returns the intrinsic geometry and duration of a video.
type Prober interface {
	Probe(ctx context.Context, data []byte) (models.SourceDescriptor, error)
}

// FFProbe runs the ffprobe binary. The zero value uses "ffprobe" from PATH.
type FFProbe struct {
	Binary  string
	TempDir string // where in-memory sources are spooled; "" = os.TempDir()
}

// Probe spools data to a temp file so containers with trailing indexes (mp4
// moov atoms) can be seeked, then probes the file.
func (p FFProbe) Probe(ctx context.Context, data []byte) (models.SourceDescriptor, error) {
	if len(data) == 0 {
		return models.SourceDescriptor{}, fmt.Errorf("%w: empty input", ErrProbe)
	}
	f, err := os.CreateTemp(p.TempDir, "probe-*")
	if err != nil {
		return models.SourceDescriptor{}, fmt.Errorf("spool probe input: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(data); err != nil {
		f.Close()
		return models.SourceDescriptor{}, fmt.Errorf("spool probe input: %w", err)
	}
	if err := f.Close(); err != nil {
		return models.SourceDescriptor{}, fmt.Errorf("spool probe input: %w", err)
	}
	return p.ProbeFile(ctx, f.Name())
}

// ProbeFile probes a file on disk.
func (p FFProbe) ProbeFile(ctx context.Context, path string) (models.SourceDescriptor, error) {
	bin := p.Binary
	if bin == "" {
		bin = "ffprobe"
	}
	cmd := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return models.SourceDescriptor{}, ctx.Err()
		}
		return models.SourceDescriptor{}, fmt.Errorf("%w: ffprobe %s: %v - %s", ErrProbe, path, err, strings.TrimSpace(stderr.String()))
	}

	desc, err := Parse(stdout.Bytes())
	if err != nil {
		return models.SourceDescriptor{}, err
	}
	if info, statErr := os.Stat(path); statErr == nil {
		desc.ByteSize = info.Size()
	}
	return desc, nil
}

type ffprobeSideData struct {
	Rotation float64 `json:"rotation"`
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
		Tags      struct {
			Rotate string `json:"rotate"`
		} `json:"tags"`
		SideDataList []ffprobeSideData `json:"side_data_list"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
	} `json:"format"`
}

// Parse decodes ffprobe's JSON output into a SourceDescriptor. The first video
// stream provides the dimensions; a quarter-turn rotation, from the legacy
// rotate tag or a display matrix side data entry, swaps them.
func Parse(raw []byte) (models.SourceDescriptor, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return models.SourceDescriptor{}, fmt.Errorf("%w: decode ffprobe output: %v", ErrProbe, err)
	}

	var desc models.SourceDescriptor
	videoFound := false
	streamDuration := 0.0
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if videoFound {
				continue
			}
			videoFound = true
			desc.Width, desc.Height = s.Width, s.Height
			if quarterTurn(s.Tags.Rotate, s.SideDataList) {
				desc.Width, desc.Height = desc.Height, desc.Width
			}
			streamDuration, _ = strconv.ParseFloat(s.Duration, 64)
		case "audio":
			desc.HasAudio = true
		}
	}
	if !videoFound || desc.Width <= 0 || desc.Height <= 0 {
		return models.SourceDescriptor{}, fmt.Errorf("%w: no video stream with dimensions", ErrProbe)
	}

	desc.DurationSeconds, _ = strconv.ParseFloat(out.Format.Duration, 64)
	if desc.DurationSeconds <= 0 {
		desc.DurationSeconds = streamDuration
	}
	if desc.DurationSeconds <= 0 {
		return models.SourceDescriptor{}, fmt.Errorf("%w: unknown duration", ErrProbe)
	}
	desc.ByteSize, _ = strconv.ParseInt(out.Format.Size, 10, 64)
	return desc, nil
}

// quarterTurn reports whether the stream is displayed rotated by 90 or 270
// degrees. The rotate tag wins when present; ffmpeg 5+ only reports side data.
func quarterTurn(tag string, sideData []ffprobeSideData) bool {
	if tag != "" {
		if deg, err := strconv.ParseFloat(strings.TrimSpace(tag), 64); err == nil {
			return isQuarterTurn(deg)
		}
	}
	for _, sd := range sideData {
		if sd.Rotation != 0 {
			return isQuarterTurn(sd.Rotation)
		}
	}
	return false
}

func isQuarterTurn(deg float64) bool {
	return math.Mod(math.Abs(math.Round(deg)), 180) == 90
}
