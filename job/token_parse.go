package job

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"vidshape/config"
	"vidshape/geometry"
	"vidshape/models"
	"vidshape/packager"
	"vidshape/utils"
)

// ErrInvalidJob is wrapped by every job spec validation failure.
var ErrInvalidJob = errors.New("invalid job")

// Containers accepted for resize output.
var resizeContainers = map[string]bool{"mp4": true, "mov": true, "mkv": true, "webm": true}

// CombinedJob is the validated, executable form of a job token.
type CombinedJob struct {
	Mode            string              `json:"mode"`
	Capture         *models.CaptureTask `json:"capture,omitempty"`
	Resize          *models.ResizeTask  `json:"resize,omitempty"`
	Package         *models.PackageTask `json:"package,omitempty"`
	WriterJobs      []models.WriterJob  `json:"writerJobs"`
	CallbackURL     string              `json:"callbackURL,omitempty"`
	CallbackHeaders map[string]string   `json:"callbackHeaders,omitempty"`
	Priority        int                 `json:"priority"`
	SubDir          string              `json:"subDir,omitempty"`
}

// ParseToken verifies a job token with the configured secret and converts its claims.
func ParseToken(tokenString string) (CombinedJob, error) {
	claims, err := utils.VerifyVidshapeJWT(tokenString, utils.VerifyConfig{
		SecretKey:      config.GetJWTSecret(),
		ExpectedIssuer: config.GetJWTIssuer(),
	})
	if err != nil {
		return CombinedJob{}, err
	}
	return ParseTokenIntoJobsFromClaims(claims)
}

// ParseTokenIntoJobsFromClaims validates the job claim and resolves its defaults.
func ParseTokenIntoJobsFromClaims(claims *models.VidshapeJWT) (CombinedJob, error) {
	if claims == nil {
		return CombinedJob{}, fmt.Errorf("%w: missing claims", ErrInvalidJob)
	}
	spec := claims.Job

	out := CombinedJob{
		Mode:            strings.ToLower(strings.TrimSpace(spec.Mode)),
		CallbackURL:     spec.CompletionCallback,
		CallbackHeaders: spec.CallbackHeaders,
		Priority:        spec.Priority,
		SubDir:          spec.SubDir,
	}

	if out.SubDir != "" && !filepath.IsLocal(out.SubDir) {
		return CombinedJob{}, fmt.Errorf("%w: subDir %q escapes the output root", ErrInvalidJob, out.SubDir)
	}

	var err error
	switch out.Mode {
	case models.ModeCapture:
		out.Capture, err = captureTask(spec.Capture)
	case models.ModeResize:
		out.Resize, err = resizeTask(spec.Resize)
	case models.ModePackage:
		out.Package, err = packageTask(spec.Package)
	case "":
		err = fmt.Errorf("%w: mode is required", ErrInvalidJob)
	default:
		err = fmt.Errorf("%w: unknown mode %q", ErrInvalidJob, spec.Mode)
	}
	if err != nil {
		return CombinedJob{}, err
	}

	out.WriterJobs = writerJobs(spec)
	if len(out.WriterJobs) == 0 {
		return CombinedJob{}, fmt.Errorf("%w: no storage destination (set storageKeys or directHost)", ErrInvalidJob)
	}
	return out, nil
}

func captureTask(spec *models.CaptureSpec) (*models.CaptureTask, error) {
	if spec == nil {
		spec = &models.CaptureSpec{}
	}
	if spec.Width < 0 || spec.Height < 0 {
		return nil, fmt.Errorf("%w: negative capture size %dx%d", ErrInvalidJob, spec.Width, spec.Height)
	}
	if spec.FrameRate < 0 || spec.Speed < 0 {
		return nil, fmt.Errorf("%w: negative frame rate or speed", ErrInvalidJob)
	}
	fit, err := geometry.ParseFitPolicy(spec.Fit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	return &models.CaptureTask{
		Width:           spec.Width,
		Height:          spec.Height,
		Fit:             string(fit),
		FrameRate:       spec.FrameRate,
		Speed:           spec.Speed,
		MimeType:        spec.MimeType,
		VideoBitrateBps: spec.VideoBitrate,
		AudioBitrateBps: spec.AudioBitrate,
		IncludeAudio:    spec.IncludeAudio,
	}, nil
}

func resizeTask(spec *models.ResizeSpec) (*models.ResizeTask, error) {
	if spec == nil {
		return nil, fmt.Errorf("%w: resize settings are required", ErrInvalidJob)
	}
	if spec.Width < 0 || spec.Height < 0 {
		return nil, fmt.Errorf("%w: negative resize size %dx%d", ErrInvalidJob, spec.Width, spec.Height)
	}
	if spec.VideoBitrate <= 0 {
		return nil, fmt.Errorf("%w: resize videoBitrate must be positive", ErrInvalidJob)
	}
	container := strings.ToLower(strings.TrimPrefix(spec.Container, "."))
	if container == "" {
		container = "mp4"
	}
	if !resizeContainers[container] {
		return nil, fmt.Errorf("%w: unsupported container %q", ErrInvalidJob, spec.Container)
	}
	return &models.ResizeTask{
		Width:           spec.Width,
		Height:          spec.Height,
		VideoBitrateBps: spec.VideoBitrate,
		AudioBitrateBps: spec.AudioBitrate,
		Container:       container,
	}, nil
}

func packageTask(spec *models.PackageSpec) (*models.PackageTask, error) {
	if spec == nil {
		spec = &models.PackageSpec{}
	}
	if spec.SegmentSeconds < 0 {
		return nil, fmt.Errorf("%w: negative segment duration", ErrInvalidJob)
	}

	var ladder []models.QualityLevel
	switch {
	case len(spec.Levels) > 0:
		for _, l := range spec.Levels {
			if err := l.Validate(); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidJob, err)
			}
		}
		ladder = spec.Levels
	case len(spec.Presets) > 0:
		resolved, err := packager.ResolvePresets(spec.Presets)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJob, err)
		}
		ladder = resolved
	default:
		ladder = models.DefaultLadder()
	}

	return &models.PackageTask{
		Ladder:           ladder,
		Parallel:         spec.Parallel,
		DisableFiltering: spec.DisableFiltering,
		SegmentSeconds:   spec.SegmentSeconds,
	}, nil
}

// writerJobs returns one writer per storage key, sorted by backend, then directServe.
func writerJobs(spec models.JobSpec) []models.WriterJob {
	backends := make([]string, 0, len(spec.StorageKeys))
	for backend := range spec.StorageKeys {
		backends = append(backends, backend)
	}
	sort.Strings(backends)

	jobs := make([]models.WriterJob, 0, len(backends)+1)
	for _, backend := range backends {
		jobs = append(jobs, models.WriterJob{Type: backend, CredentialKey: spec.StorageKeys[backend]})
	}
	if spec.DirectHost {
		jobs = append(jobs, models.WriterJob{Type: "directServe"})
	}
	return jobs
}
