package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestConfigDataDirDefault(t *testing.T) {
	t.Setenv("VIDSHAPE_DATA_DIR", "")

	if got := GetDataDir(); got != "./data" {
		t.Errorf("Expected default data dir ./data, got %s", got)
	}
}

func TestConfigDataDirEnv(t *testing.T) {
	customDir := filepath.Join(t.TempDir(), "vidshape-data")
	t.Setenv("VIDSHAPE_DATA_DIR", customDir)

	paths := map[string]string{
		"credentials.db": GetCredentialsDBPath(),
		"failures.db":    GetFailuresDBPath(),
		"success.db":     GetSuccessDBPath(),
		"queue.db":       GetQueueDBPath(),
	}
	for name, got := range paths {
		want := filepath.Join(customDir, name)
		if got != want {
			t.Errorf("Expected %s path %s, got %s", name, want, got)
		}
	}
}

func TestConfigBinaries(t *testing.T) {
	t.Setenv("VIDSHAPE_FFMPEG", "")
	t.Setenv("VIDSHAPE_FFPROBE", "/opt/ffmpeg/bin/ffprobe")

	if got := GetFFmpegPath(); got != "ffmpeg" {
		t.Errorf("Expected ffmpeg default, got %s", got)
	}
	if got := GetFFprobePath(); got != "/opt/ffmpeg/bin/ffprobe" {
		t.Errorf("Expected ffprobe override, got %s", got)
	}
}

func TestConfigRecordRetention(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Duration
	}{
		{"", 30 * 24 * time.Hour},
		{"48h", 48 * time.Hour},
		{"7", 7 * 24 * time.Hour},
		{"garbage", 30 * 24 * time.Hour},
		{"-5", 30 * 24 * time.Hour},
	}
	for _, tc := range cases {
		t.Setenv("VIDSHAPE_RECORD_RETENTION", tc.raw)
		if got := GetRecordRetention(); got != tc.want {
			t.Errorf("retention %q: expected %v, got %v", tc.raw, tc.want, got)
		}
	}
}

func TestConfigJWTSecret(t *testing.T) {
	t.Setenv("VIDSHAPE_JWT_SECRET", "")
	if GetJWTSecret() != nil {
		t.Error("Expected nil secret when unset")
	}

	t.Setenv("VIDSHAPE_JWT_SECRET", "s3cr3t")
	if string(GetJWTSecret()) != "s3cr3t" {
		t.Errorf("Expected secret s3cr3t, got %q", GetJWTSecret())
	}
}
