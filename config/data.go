package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// DATA_DIR is the directory where vidshape stores its data (databases, etc.)
// Defaults to "./data" relative to the executable
var DATA_DIR = getDataDir()

// getDataDir determines the data directory path from environment or default.
// Priority: VIDSHAPE_DATA_DIR environment variable > "./data" default
func getDataDir() string {
	if dir := os.Getenv("VIDSHAPE_DATA_DIR"); dir != "" {
		return dir
	}
	return "./data"
}

// GetDataDir returns the current data directory path.
// The environment is read on every call so tests and operators can change it at runtime.
func GetDataDir() string {
	return getDataDir()
}

// GetCredentialsDBPath returns the full path to the writer credentials database.
// Path: {DATA_DIR}/credentials.db
func GetCredentialsDBPath() string {
	return filepath.Join(GetDataDir(), "credentials.db")
}

// GetFailuresDBPath returns the full path to the failures database.
// Path: {DATA_DIR}/failures.db
func GetFailuresDBPath() string {
	return filepath.Join(GetDataDir(), "failures.db")
}

// GetSuccessDBPath returns the full path to the success database.
// Path: {DATA_DIR}/success.db
func GetSuccessDBPath() string {
	return filepath.Join(GetDataDir(), "success.db")
}

// GetQueueDBPath returns the full path to the durable pending-job queue.
// Path: {DATA_DIR}/queue.db
func GetQueueDBPath() string {
	return filepath.Join(GetDataDir(), "queue.db")
}

// GetDirectServeBaseDir returns the base directory for direct file serving.
// Configurable via VIDSHAPE_SERVE_DIR for server administrators only.
// Defaults to "./serve" relative to the executable.
func GetDirectServeBaseDir() string {
	if dir := os.Getenv("VIDSHAPE_SERVE_DIR"); dir != "" {
		return dir
	}
	return "./serve"
}

// GetWorkDir returns the root under which uploads and engine namespaces are created.
// Defaults to the OS temp directory.
func GetWorkDir() string {
	if dir := os.Getenv("VIDSHAPE_WORK_DIR"); dir != "" {
		return dir
	}
	return os.TempDir()
}

// GetListenAddr returns the HTTP listen address (VIDSHAPE_LISTEN_ADDR, default ":8080").
func GetListenAddr() string {
	if addr := os.Getenv("VIDSHAPE_LISTEN_ADDR"); addr != "" {
		return addr
	}
	return ":8080"
}

// GetFFmpegPath returns the ffmpeg binary (VIDSHAPE_FFMPEG, default "ffmpeg" on PATH).
func GetFFmpegPath() string {
	if bin := os.Getenv("VIDSHAPE_FFMPEG"); bin != "" {
		return bin
	}
	return "ffmpeg"
}

// GetFFprobePath returns the ffprobe binary (VIDSHAPE_FFPROBE, default "ffprobe" on PATH).
func GetFFprobePath() string {
	if bin := os.Getenv("VIDSHAPE_FFPROBE"); bin != "" {
		return bin
	}
	return "ffprobe"
}

// GetRecordRetention returns how long success/failure records are kept.
// VIDSHAPE_RECORD_RETENTION accepts a Go duration ("720h") or a number of days ("30").
func GetRecordRetention() time.Duration {
	const fallback = 30 * 24 * time.Hour
	raw := os.Getenv("VIDSHAPE_RECORD_RETENTION")
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if days, err := strconv.Atoi(raw); err == nil && days > 0 {
		return time.Duration(days) * 24 * time.Hour
	}
	return fallback
}
