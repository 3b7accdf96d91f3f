package models

type VidshapeJWT struct {
	Issuer    string  `json:"iss"` // optional
	Subject   string  `json:"sub"`
	IssuedAt  int64   `json:"iat"`
	ExpiresAt int64   `json:"exp"`
	Job       JobSpec `json:"job"`
}

// Core job specification
type JobSpec struct {
	CompletionCallback string            `json:"completionCallback"` // callback URL
	CallbackHeaders    map[string]string `json:"callbackHeaders,omitempty"`
	Priority           int               `json:"priority"` // 0 = realtime, 1 = queued

	Mode    string       `json:"mode"` // capture, resize, package
	Capture *CaptureSpec `json:"capture,omitempty"`
	Resize  *ResizeSpec  `json:"resize,omitempty"`
	Package *PackageSpec `json:"package,omitempty"`

	// Storage backends, each keyed by an access key from the credentials store
	StorageKeys map[string]string `json:"storageKeys,omitempty"` // e.g., {"s3":"abc123", "sftp":"def456"}

	// Direct host storage
	DirectHost bool   `json:"directHost,omitempty"` // true if we want to serve via vidshape HTTP
	SubDir     string `json:"subDir,omitempty"`     // tenant folder or logical subdir
}

type CaptureSpec struct {
	Width        int     `json:"width,omitempty"`
	Height       int     `json:"height,omitempty"`
	Fit          string  `json:"fit,omitempty"`
	FrameRate    int     `json:"frameRate,omitempty"`
	Speed        float64 `json:"speed,omitempty"`
	MimeType     string  `json:"mimeType,omitempty"`
	VideoBitrate int     `json:"videoBitrate,omitempty"`
	AudioBitrate int     `json:"audioBitrate,omitempty"`
	IncludeAudio bool    `json:"includeAudio,omitempty"`
}

type ResizeSpec struct {
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	VideoBitrate int    `json:"videoBitrate"`
	AudioBitrate int    `json:"audioBitrate,omitempty"`
	Container    string `json:"container,omitempty"`
}

type PackageSpec struct {
	// Either explicit levels or preset names ("360p", "720p", ...); empty means the full preset ladder.
	Levels           []QualityLevel `json:"levels,omitempty"`
	Presets          []string       `json:"presets,omitempty"`
	Parallel         bool           `json:"parallel,omitempty"`
	DisableFiltering bool           `json:"disableFiltering,omitempty"`
	SegmentSeconds   float64        `json:"segmentSeconds,omitempty"`
}
