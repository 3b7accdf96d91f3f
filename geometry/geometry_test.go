package geometry

import (
	"errors"
	"math"
	"testing"
)

var gridSizes = []int{1, 2, 3, 7, 16, 100, 240, 320, 360, 640, 720, 1080, 1280, 1920}

func TestResolveStretchFillsTarget(t *testing.T) {
	for _, sw := range gridSizes {
		for _, sh := range gridSizes {
			for _, tw := range gridSizes {
				for _, th := range gridSizes {
					g, err := Resolve(sw, sh, tw, th, Stretch)
					if err != nil {
						t.Fatalf("Resolve(%d,%d,%d,%d,stretch): %v", sw, sh, tw, th, err)
					}
					if g.DrawWidth != tw || g.DrawHeight != th || g.CanvasWidth != tw || g.CanvasHeight != th {
						t.Fatalf("stretch %dx%d->%dx%d: unexpected %v", sw, sh, tw, th, g)
					}
					if g.DrawX != 0 || g.DrawY != 0 {
						t.Fatalf("stretch offsets must be zero, got %v", g)
					}
				}
			}
		}
	}
}

func TestResolveContainKeepsAspectInsideTarget(t *testing.T) {
	for _, sw := range gridSizes {
		for _, sh := range gridSizes {
			for _, tw := range gridSizes {
				for _, th := range gridSizes {
					g, err := Resolve(sw, sh, tw, th, Contain)
					if err != nil {
						t.Fatalf("Resolve(%d,%d,%d,%d,contain): %v", sw, sh, tw, th, err)
					}
					if g.CanvasWidth > tw || g.CanvasHeight > th {
						t.Fatalf("contain %dx%d->%dx%d: canvas exceeds target: %v", sw, sh, tw, th, g)
					}
					if g.DrawRect() != g.CanvasRect() {
						t.Fatalf("contain draw rect must equal canvas: %v", g)
					}
					aspect := float64(sw) / float64(sh)
					widthBound := g.CanvasWidth == tw && math.Abs(float64(g.CanvasHeight)-math.Max(1, float64(tw)/aspect)) <= 0.5+1e-9
					heightBound := g.CanvasHeight == th && math.Abs(float64(g.CanvasWidth)-math.Max(1, float64(th)*aspect)) <= 0.5+1e-9
					if !widthBound && !heightBound {
						t.Fatalf("contain %dx%d->%dx%d: canvas %dx%d does not preserve aspect %.4f",
							sw, sh, tw, th, g.CanvasWidth, g.CanvasHeight, aspect)
					}
				}
			}
		}
	}
}

func TestResolveCoverOverflowsOneAxis(t *testing.T) {
	for _, sw := range gridSizes {
		for _, sh := range gridSizes {
			for _, tw := range gridSizes {
				for _, th := range gridSizes {
					g, err := Resolve(sw, sh, tw, th, Cover)
					if err != nil {
						t.Fatalf("Resolve(%d,%d,%d,%d,cover): %v", sw, sh, tw, th, err)
					}
					if g.CanvasWidth != tw || g.CanvasHeight != th {
						t.Fatalf("cover canvas must equal target: %v", g)
					}
					if g.DrawWidth < tw || g.DrawHeight < th {
						t.Fatalf("cover %dx%d->%dx%d: draw rect smaller than target: %v", sw, sh, tw, th, g)
					}
					if g.DrawWidth != tw && g.DrawHeight != th {
						t.Fatalf("cover %dx%d->%dx%d: no axis matches target: %v", sw, sh, tw, th, g)
					}
					if g.DrawX != (tw-g.DrawWidth)/2 || g.DrawY != (th-g.DrawHeight)/2 {
						t.Fatalf("cover offsets not centered: %v", g)
					}
				}
			}
		}
	}
}

func TestResolveTieBreak(t *testing.T) {
	// 16:9 source into 4:3 target: source is relatively wider.
	contain, err := Resolve(1920, 1080, 640, 480, Contain)
	if err != nil {
		t.Fatal(err)
	}
	if contain.CanvasWidth != 640 || contain.CanvasHeight != 360 {
		t.Errorf("contain: expected width-limited 640x360, got %v", contain)
	}

	cover, err := Resolve(1920, 1080, 640, 480, Cover)
	if err != nil {
		t.Fatal(err)
	}
	if cover.DrawHeight != 480 || cover.DrawWidth != 853 || cover.DrawX != -106 || cover.DrawY != 0 {
		t.Errorf("cover: expected height-fit 853x480 at (-106,0), got %v", cover)
	}

	// 4:3 source into 16:9 target: source is relatively taller.
	contain, _ = Resolve(640, 480, 1280, 720, Contain)
	if contain.CanvasWidth != 960 || contain.CanvasHeight != 720 {
		t.Errorf("contain: expected height-limited 960x720, got %v", contain)
	}
	cover, _ = Resolve(640, 480, 1280, 720, Cover)
	if cover.DrawWidth != 1280 || cover.DrawHeight != 960 || cover.DrawY != -120 || cover.DrawX != 0 {
		t.Errorf("cover: expected width-fit 1280x960 at (0,-120), got %v", cover)
	}
}

func TestResolveRejectsNonPositive(t *testing.T) {
	cases := [][4]int{
		{0, 1080, 640, 360},
		{1920, -1, 640, 360},
		{1920, 1080, 0, 360},
		{1920, 1080, 640, -360},
	}
	for _, c := range cases {
		_, err := Resolve(c[0], c[1], c[2], c[3], Contain)
		if !errors.Is(err, ErrInvalidDimension) {
			t.Errorf("Resolve(%v): expected ErrInvalidDimension, got %v", c, err)
		}
	}
}

func TestResolveUnknownPolicy(t *testing.T) {
	_, err := Resolve(10, 10, 10, 10, FitPolicy("fill"))
	if !errors.Is(err, ErrUnknownFitPolicy) {
		t.Errorf("Expected ErrUnknownFitPolicy, got %v", err)
	}
}

func TestInferTarget(t *testing.T) {
	cases := []struct {
		name           string
		sw, sh, rw, rh int
		ww, wh         int
	}{
		{"width only", 1920, 1080, 1280, 0, 1280, 720},
		{"height only", 1920, 1080, 0, 360, 640, 360},
		{"both", 1920, 1080, 100, 100, 100, 100},
		{"neither", 1920, 1080, 0, 0, 1920, 1080},
		{"rounding", 1000, 333, 500, 0, 500, 167},
	}
	for _, tc := range cases {
		w, h, err := InferTarget(tc.sw, tc.sh, tc.rw, tc.rh)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if w != tc.ww || h != tc.wh {
			t.Errorf("%s: expected %dx%d, got %dx%d", tc.name, tc.ww, tc.wh, w, h)
		}
	}

	if _, _, err := InferTarget(1920, 1080, -1, 0); !errors.Is(err, ErrInvalidDimension) {
		t.Errorf("Expected ErrInvalidDimension for negative request, got %v", err)
	}
}

func TestParseFitPolicy(t *testing.T) {
	for in, want := range map[string]FitPolicy{"": Contain, "COVER": Cover, " stretch ": Stretch, "contain": Contain} {
		got, err := ParseFitPolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseFitPolicy(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFitPolicy("zoom"); !errors.Is(err, ErrUnknownFitPolicy) {
		t.Errorf("Expected ErrUnknownFitPolicy, got %v", err)
	}
}
