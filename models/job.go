package models

// Job modes
const (
	ModeCapture = "capture" // real-time frame resampling into one container
	ModeResize  = "resize"  // flat engine transcode
	ModePackage = "package" // multi-quality HLS package
)

type WriterJob struct {
	Type          string // "directServe", "s3", "gcs" or "sftp"
	CredentialKey string // key into the credentials store; empty for directServe
}

// CaptureTask holds the settings of a capture job.
type CaptureTask struct {
	Width, Height   int     // 0 = infer from source aspect
	Fit             string  // contain, cover, stretch
	FrameRate       int     // capture frames per second
	Speed           float64 // playback speed multiplier
	MimeType        string  // requested container/codec
	VideoBitrateBps int
	AudioBitrateBps int
	IncludeAudio    bool
}

// ResizeTask holds the settings of a flat engine transcode.
type ResizeTask struct {
	Width, Height   int
	VideoBitrateBps int
	AudioBitrateBps int
	Container       string // output extension, e.g. "mp4"
}

// PackageTask holds the settings of a multi-quality package job.
type PackageTask struct {
	Ladder           []QualityLevel
	Parallel         bool
	DisableFiltering bool
	SegmentSeconds   float64
}
