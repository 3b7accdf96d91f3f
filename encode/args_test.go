package encode

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"vidshape/models"
)

func TestScaleFilter(t *testing.T) {
	cases := []struct {
		w, h int
		want string
	}{
		{1280, 720, "scale=1280:720"},
		{1280, 0, "scale=1280:-2"},
		{0, 480, "scale=-2:480"},
		{0, 0, ""},
	}
	for _, tc := range cases {
		if got := ScaleFilter(tc.w, tc.h); got != tc.want {
			t.Errorf("ScaleFilter(%d,%d) = %q, want %q", tc.w, tc.h, got, tc.want)
		}
	}
}

func TestBuildArgsSegmented(t *testing.T) {
	level := models.QualityLevel{Name: "360p", TargetWidth: 640, TargetHeight: 360, VideoBitrateBps: 800000, AudioBitrateBps: 96000}
	got := BuildArgs("input", OptionsForLevel(level, 4))
	want := []string{
		"-i", "input",
		"-vf", "scale=640:360",
		"-c:v", "libx264", "-b:v", "800000",
		"-c:a", "aac", "-b:a", "96000",
		"-f", "hls",
		"-hls_time", "4",
		"-hls_playlist_type", "vod",
		"-hls_list_size", "0",
		"-hls_segment_filename", "360p_%03d.ts",
		"360p.m3u8",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BuildArgs mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildArgsFlatDefaults(t *testing.T) {
	got := BuildArgs("", Options{VideoBitrateBps: 1000000})
	want := []string{
		"-i", "input",
		"-c:v", "libx264", "-b:v", "1000000",
		"-c:a", "aac", "-b:a", "128000",
		"-movflags", "+faststart",
		"output.mp4",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BuildArgs mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildArgsOmitsScaleWithoutDimensions(t *testing.T) {
	for _, arg := range BuildArgs("in", Options{Container: "webm", VideoCodec: "libvpx-vp9", AudioCodec: "libopus"}) {
		if arg == "-vf" {
			t.Fatal("scale filter must be omitted when no dimension is given")
		}
		if arg == "-movflags" {
			t.Fatal("faststart only applies to mp4 containers")
		}
	}
}

func TestScaledSize(t *testing.T) {
	cases := []struct {
		srcW, srcH, w, h int
		wantW, wantH     int
	}{
		{1920, 1080, 1280, 0, 1280, 720},
		{1920, 1080, 0, 480, 854, 480},
		{1000, 333, 500, 0, 500, 166},
		{1920, 1080, 640, 360, 640, 360},
		{1920, 1080, 0, 0, 1920, 1080},
		{0, 0, 640, 0, 640, 0},
	}
	for _, tc := range cases {
		w, h := ScaledSize(tc.srcW, tc.srcH, tc.w, tc.h)
		if w != tc.wantW || h != tc.wantH {
			t.Errorf("ScaledSize(%d,%d,%d,%d) = %dx%d, want %dx%d", tc.srcW, tc.srcH, tc.w, tc.h, w, h, tc.wantW, tc.wantH)
		}
	}
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"720p":        "720p",
		"hd ready":    "hd_ready",
		"../evil":     "___evil",
		" 1080p-high": "1080p-high",
	}
	for in, want := range cases {
		if got := SanitizeName(in); got != want {
			t.Errorf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseSegments(t *testing.T) {
	manifest := "#EXTM3U\n#EXT-X-VERSION:3\n#EXTINF:6.0,\n720p_000.ts\n\n#EXTINF:2.5,\r\n720p_001.ts\r\n#EXT-X-ENDLIST\n"
	want := []string{"720p_000.ts", "720p_001.ts"}
	if diff := cmp.Diff(want, ParseSegments(manifest)); diff != "" {
		t.Errorf("ParseSegments mismatch (-want +got):\n%s", diff)
	}
}
