// Package geometry maps a source frame onto a target frame under a fit policy.
package geometry

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"
)

var (
	ErrInvalidDimension = errors.New("invalid dimension")
	ErrUnknownFitPolicy = errors.New("unknown fit policy")
)

// FitPolicy determines how a source rectangle maps onto a target rectangle.
type FitPolicy string

const (
	// Contain shrinks the canvas to the largest source-aspect rectangle inside the target.
	Contain FitPolicy = "contain"
	// Cover fills the target and crops the overflowing axis around the center.
	Cover FitPolicy = "cover"
	// Stretch fills the target exactly, ignoring aspect ratio.
	Stretch FitPolicy = "stretch"
)

// ParseFitPolicy is case-insensitive; an empty string selects Contain.
func ParseFitPolicy(s string) (FitPolicy, error) {
	switch FitPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", Contain:
		return Contain, nil
	case Cover:
		return Cover, nil
	case Stretch:
		return Stretch, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFitPolicy, s)
	}
}

// Geometry is the canvas size and the rectangle the source frame is drawn into.
// The draw rectangle may extend past the canvas (Cover) and is clipped by the surface.
type Geometry struct {
	CanvasWidth  int `json:"canvasWidth"`
	CanvasHeight int `json:"canvasHeight"`
	DrawX        int `json:"drawX"`
	DrawY        int `json:"drawY"`
	DrawWidth    int `json:"drawWidth"`
	DrawHeight   int `json:"drawHeight"`
}

// DrawRect returns the draw rectangle in canvas coordinates.
func (g Geometry) DrawRect() image.Rectangle {
	return image.Rect(g.DrawX, g.DrawY, g.DrawX+g.DrawWidth, g.DrawY+g.DrawHeight)
}

// CanvasRect returns the canvas bounds.
func (g Geometry) CanvasRect() image.Rectangle {
	return image.Rect(0, 0, g.CanvasWidth, g.CanvasHeight)
}

func (g Geometry) String() string {
	return fmt.Sprintf("canvas %dx%d draw %dx%d@(%d,%d)",
		g.CanvasWidth, g.CanvasHeight, g.DrawWidth, g.DrawHeight, g.DrawX, g.DrawY)
}

// Resolve computes the output geometry for a source of sourceW x sourceH drawn
// into targetW x targetH under policy.
func Resolve(sourceW, sourceH, targetW, targetH int, policy FitPolicy) (Geometry, error) {
	if err := checkPositive("source width", sourceW); err != nil {
		return Geometry{}, err
	}
	if err := checkPositive("source height", sourceH); err != nil {
		return Geometry{}, err
	}
	if err := checkPositive("target width", targetW); err != nil {
		return Geometry{}, err
	}
	if err := checkPositive("target height", targetH); err != nil {
		return Geometry{}, err
	}

	srcAspect := float64(sourceW) / float64(sourceH)
	dstAspect := float64(targetW) / float64(targetH)

	switch policy {
	case Stretch:
		return Geometry{
			CanvasWidth: targetW, CanvasHeight: targetH,
			DrawWidth: targetW, DrawHeight: targetH,
		}, nil

	case Cover:
		g := Geometry{CanvasWidth: targetW, CanvasHeight: targetH}
		if srcAspect > dstAspect {
			// relatively wider source: height is matched, width overflows
			g.DrawHeight = targetH
			g.DrawWidth = roundPositive(float64(targetH) * srcAspect)
			g.DrawX = (targetW - g.DrawWidth) / 2
		} else {
			g.DrawWidth = targetW
			g.DrawHeight = roundPositive(float64(targetW) / srcAspect)
			g.DrawY = (targetH - g.DrawHeight) / 2
		}
		return g, nil

	case Contain:
		var w, h int
		if srcAspect > dstAspect {
			w = targetW
			h = roundPositive(float64(targetW) / srcAspect)
		} else {
			w = roundPositive(float64(targetH) * srcAspect)
			h = targetH
		}
		return Geometry{
			CanvasWidth: w, CanvasHeight: h,
			DrawWidth: w, DrawHeight: h,
		}, nil

	default:
		return Geometry{}, fmt.Errorf("%w: %q", ErrUnknownFitPolicy, string(policy))
	}
}

// InferTarget fills in an unspecified (zero) target axis from the source aspect
// ratio, rounding to the nearest pixel. With neither axis given the source size is used.
func InferTarget(sourceW, sourceH, reqW, reqH int) (int, int, error) {
	if err := checkPositive("source width", sourceW); err != nil {
		return 0, 0, err
	}
	if err := checkPositive("source height", sourceH); err != nil {
		return 0, 0, err
	}
	if reqW < 0 {
		return 0, 0, fmt.Errorf("%w: requested width %d", ErrInvalidDimension, reqW)
	}
	if reqH < 0 {
		return 0, 0, fmt.Errorf("%w: requested height %d", ErrInvalidDimension, reqH)
	}

	switch {
	case reqW > 0 && reqH > 0:
		return reqW, reqH, nil
	case reqW > 0:
		return reqW, roundPositive(float64(reqW) * float64(sourceH) / float64(sourceW)), nil
	case reqH > 0:
		return roundPositive(float64(reqH) * float64(sourceW) / float64(sourceH)), reqH, nil
	default:
		return sourceW, sourceH, nil
	}
}

func checkPositive(field string, v int) error {
	if v <= 0 {
		return fmt.Errorf("%w: %s %d", ErrInvalidDimension, field, v)
	}
	return nil
}

// roundPositive rounds to the nearest integer and never returns less than 1.
func roundPositive(v float64) int {
	r := int(math.Round(v))
	if r < 1 {
		return 1
	}
	return r
}
