package packager

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"vidshape/encode"
	"vidshape/models"
)

// ladderFile is the on-disk TOML form:
//
//	[[level]]
//	name = "720p"
//	width = 1280
//	height = 720
//	video_bitrate = 2800000
//	audio_bitrate = 128000
type ladderFile struct {
	Levels []models.QualityLevel `toml:"level"`
}

// LoadLadder reads a ladder from a TOML file.
func LoadLadder(path string) ([]models.QualityLevel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ladder %s: %w", path, err)
	}
	return ParseLadder(data)
}

// ParseLadder decodes TOML ladder content and validates every level.
func ParseLadder(data []byte) ([]models.QualityLevel, error) {
	var f ladderFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse ladder: %w", err)
	}
	for _, level := range f.Levels {
		if err := level.Validate(); err != nil {
			return nil, err
		}
	}
	return f.Levels, nil
}

// ResolvePresets maps preset names to levels, keeping the given order.
func ResolvePresets(names []string) ([]models.QualityLevel, error) {
	levels := make([]models.QualityLevel, 0, len(names))
	for _, name := range names {
		level, ok := models.Preset(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("unknown quality preset %q", name)
		}
		levels = append(levels, level)
	}
	return levels, nil
}

// FilterLadder drops levels that would upscale the source on either axis.
// Levels without dimensions are always kept. Order is preserved.
func FilterLadder(ladder []models.QualityLevel, src models.SourceDescriptor) (kept, dropped []models.QualityLevel) {
	for _, level := range ladder {
		if level.TargetWidth > src.Width || level.TargetHeight > src.Height {
			dropped = append(dropped, level)
			continue
		}
		kept = append(kept, level)
	}
	return kept, dropped
}

// checkLadder rejects levels that cannot coexist in one package.
func checkLadder(levels []models.QualityLevel) error {
	seen := make(map[string]string, len(levels))
	for _, level := range levels {
		if err := level.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrManifestAssembly, err)
		}
		file := encode.SanitizeName(level.Name)
		if prev, ok := seen[file]; ok {
			return fmt.Errorf("%w: levels %q and %q share output name %q", ErrManifestAssembly, prev, level.Name, file)
		}
		seen[file] = level.Name
	}
	return nil
}
