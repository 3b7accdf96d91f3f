package job

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"vidshape/capture"
	"vidshape/config"
	"vidshape/credentials"
	"vidshape/encode"
	"vidshape/engine"
	"vidshape/failures"
	"vidshape/geometry"
	"vidshape/logger"
	"vidshape/metrics"
	"vidshape/models"
	"vidshape/output"
	"vidshape/packager"
	"vidshape/probe"
	"vidshape/render"
	"vidshape/success"
	writerbackends "vidshape/writerBackends"
)

// Runtime holds the media collaborators jobs run against.
type Runtime struct {
	Prober   probe.Prober
	Factory  engine.Factory
	Platform capture.Platform
}

var (
	rtMu sync.RWMutex
	rt   *Runtime

	callbackClient = &http.Client{Timeout: 30 * time.Second}
)

// SetRuntime replaces the collaborators used by ProcessJob.
func SetRuntime(r Runtime) {
	rtMu.Lock()
	rt = &r
	rtMu.Unlock()
}

// DefaultRuntime wires ffprobe, the registered ffmpeg engine and the render
// platform from config.
func DefaultRuntime() (Runtime, error) {
	workDir := config.GetWorkDir()
	engine.RegisterDefaults(config.GetFFmpegPath(), workDir)
	factory, ok := engine.Get("ffmpeg")
	if !ok {
		return Runtime{}, fmt.Errorf("ffmpeg engine unavailable (%s)", config.GetFFmpegPath())
	}
	return Runtime{
		Prober:   probe.FFProbe{Binary: config.GetFFprobePath(), TempDir: workDir},
		Factory:  factory,
		Platform: render.NewPlatform(config.GetFFmpegPath(), config.GetFFprobePath(), workDir),
	}, nil
}

func currentRuntime() (*Runtime, error) {
	rtMu.RLock()
	r := rt
	rtMu.RUnlock()
	if r != nil {
		return r, nil
	}
	d, err := DefaultRuntime()
	if err != nil {
		return nil, err
	}
	SetRuntime(d)
	return &d, nil
}

// ProcessJob processes a single job from the pending queue
func ProcessJob(ctx context.Context, jobDir string) error {
	start := time.Now()
	metrics.JobsInProgress.Inc()
	defer metrics.JobsInProgress.Dec()

	instr, err := ReadInstructions(jobDir)
	if err != nil {
		logger.Errorf("Failed to read instructions for %s: %v", jobDir, err)
		os.RemoveAll(jobDir)
		return storeFailure(JobInstructions{Hash: filepath.Base(jobDir)}, err)
	}
	mode := instr.Job.Mode

	// The work folder is removed whatever the outcome.
	defer func() {
		if err := os.RemoveAll(jobDir); err != nil {
			logger.Errorf("Failed to cleanup work directory %s: %v", jobDir, err)
		}
	}()

	fail := func(err error) error {
		status := "error"
		if errors.Is(err, context.Canceled) {
			status = "canceled"
		}
		metrics.JobsTotal.WithLabelValues(mode, status).Inc()
		storeFailure(instr, err)
		if cbErr := sendCallback(instr, "failed", nil, err); cbErr != nil {
			logger.Errorf("Failed to send failure callback for %s: %v", instr.Hash, cbErr)
		}
		return err
	}

	logger.Infof("Processing %s job %s: %s", mode, instr.Hash, instr.OriginalFile)

	outputDir := filepath.Join(jobDir, "output")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fail(fmt.Errorf("create output directory: %w", err))
	}

	r, err := currentRuntime()
	if err != nil {
		return fail(err)
	}

	progress := func(percent float64) { setProgress(instr.Hash, percent) }
	if err := runMode(ctx, r, instr, outputDir, progress); err != nil {
		logger.Errorf("Job %s (%s) failed: %v", instr.Hash, mode, err)
		return fail(err)
	}

	files, err := processWriters(ctx, instr, outputDir)
	if err != nil {
		logger.Errorf("Failed to publish %s: %v", instr.Hash, err)
		return fail(err)
	}

	took := time.Since(start)
	metrics.JobsTotal.WithLabelValues(mode, "success").Inc()
	metrics.JobDuration.WithLabelValues(mode).Observe(took.Seconds())

	if err := success.StoreSuccess(instr.Hash, mode, instr.Job, files, took); err != nil {
		logger.Errorf("Failed to store success record for %s: %v", instr.Hash, err)
	}
	if err := sendCallback(instr, "completed", files, nil); err != nil {
		logger.Errorf("Failed to send callback for %s: %v", instr.Hash, err)
	}

	logger.Infof("Job %s done: %d files in %s", instr.Hash, len(files), took.Round(time.Millisecond))
	return nil
}

// baseName is the sanitized source name without extension.
func baseName(originalFile string) string {
	name := strings.TrimSuffix(filepath.Base(originalFile), filepath.Ext(originalFile))
	if name = encode.SanitizeName(name); name == "" {
		return "output"
	}
	return name
}

// runMode executes the job's transformation and leaves its files in outputDir.
func runMode(ctx context.Context, r *Runtime, instr JobInstructions, outputDir string, progress func(float64)) error {
	data, err := os.ReadFile(instr.InputPath())
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}

	switch instr.Job.Mode {
	case models.ModeCapture:
		return runCapture(ctx, r, data, instr, outputDir, progress)
	case models.ModeResize:
		return runResize(ctx, r, data, instr, outputDir, progress)
	case models.ModePackage:
		return runPackage(ctx, r, data, instr, outputDir, progress)
	}
	return fmt.Errorf("%w: unknown mode %q", ErrInvalidJob, instr.Job.Mode)
}

func runCapture(ctx context.Context, r *Runtime, data []byte, instr JobInstructions, outputDir string, progress func(float64)) error {
	task := instr.Job.Capture
	if task == nil {
		return fmt.Errorf("%w: capture settings missing", ErrInvalidJob)
	}
	res, err := capture.New(r.Platform).Capture(ctx, data, capture.Options{
		Width:           task.Width,
		Height:          task.Height,
		Fit:             geometry.FitPolicy(task.Fit),
		FrameRate:       float64(task.FrameRate),
		Speed:           task.Speed,
		MimeType:        task.MimeType,
		VideoBitrateBps: task.VideoBitrateBps,
		AudioBitrateBps: task.AudioBitrateBps,
		IncludeAudio:    task.IncludeAudio,
		Output:          output.FileFormat,
		Name:            baseName(instr.OriginalFile),
		Progress:        progress,
	})
	if err != nil {
		return err
	}
	f := res.Output.File
	return os.WriteFile(filepath.Join(outputDir, f.Name), f.Bytes(), 0o644)
}

func runResize(ctx context.Context, r *Runtime, data []byte, instr JobInstructions, outputDir string, progress func(float64)) error {
	task := instr.Job.Resize
	if task == nil {
		return fmt.Errorf("%w: resize settings missing", ErrInvalidJob)
	}
	opts := encode.Options{
		TargetWidth:     task.Width,
		TargetHeight:    task.Height,
		VideoBitrateBps: task.VideoBitrateBps,
		AudioBitrateBps: task.AudioBitrateBps,
		Container:       task.Container,
		Name:            baseName(instr.OriginalFile),
	}
	out, err := encode.Encode(ctx, r.Factory, data, opts, func(ratio float64) { progress(ratio * 100) })
	if err != nil {
		return err
	}
	progress(100)
	return os.WriteFile(filepath.Join(outputDir, opts.OutputName()), out, 0o644)
}

func runPackage(ctx context.Context, r *Runtime, data []byte, instr JobInstructions, outputDir string, progress func(float64)) error {
	task := instr.Job.Package
	if task == nil {
		return fmt.Errorf("%w: package settings missing", ErrInvalidJob)
	}
	mode := packager.Sequential
	if task.Parallel {
		mode = packager.Parallel
	}
	manifest, err := packager.New(r.Prober, r.Factory).Package(ctx, data, task.Ladder, packager.Options{
		Mode:             mode,
		DisableFiltering: task.DisableFiltering,
		SegmentSeconds:   task.SegmentSeconds,
		Progress:         progress,
	})
	if err != nil {
		return err
	}
	for name, content := range manifest.Files() {
		if err := os.WriteFile(filepath.Join(outputDir, name), content, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

// processWriters publishes the output folder to every configured backend.
func processWriters(ctx context.Context, instr JobInstructions, outputDir string) ([]string, error) {
	var published []string
	for _, writerJob := range instr.Job.WriterJobs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("job cancelled during writing: %w", err)
		}

		accessInfo, err := prepareAccessInfo(writerJob, instr.Job.SubDir)
		if err != nil {
			return nil, err
		}
		files, err := writerbackends.PublishDir(ctx, writerJob.Type, accessInfo, outputDir)
		if err != nil {
			return nil, err
		}
		published = files
	}
	return published, nil
}

// prepareAccessInfo resolves the writer's stored credentials plus its target folder.
func prepareAccessInfo(writerJob models.WriterJob, subDir string) (map[string]string, error) {
	accessInfo := make(map[string]string)

	if writerJob.CredentialKey != "" {
		creds, err := credentials.GetCredentials(writerJob.CredentialKey)
		if err != nil {
			return nil, fmt.Errorf("credentials for %s: %w", writerJob.Type, err)
		}
		for k, v := range creds {
			accessInfo[k] = v
		}
	}

	accessInfo["folder"] = subDir

	switch writerJob.Type {
	case "directServe":
		accessInfo["baseDir"] = config.GetDirectServeBaseDir()
	}
	return accessInfo, nil
}

// failureKind classifies err for the failure record.
func failureKind(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrInvalidJob):
		return "invalid_job"
	case errors.Is(err, probe.ErrProbe):
		return "probe"
	case errors.Is(err, packager.ErrEmptyLadder):
		return "empty_ladder"
	case errors.Is(err, packager.ErrManifestAssembly):
		return "manifest"
	case errors.Is(err, encode.ErrEncode):
		return "encode"
	case errors.Is(err, capture.ErrSourceLoad):
		return "source_load"
	case errors.Is(err, capture.ErrStalledCapture):
		return "stalled"
	case errors.Is(err, capture.ErrRecorder):
		return "recorder"
	case errors.Is(err, credentials.ErrNotFound):
		return "credentials"
	}
	return "processing"
}

// storeFailure stores a processing failure in the failure store
func storeFailure(instr JobInstructions, err error) error {
	if instr.Hash == "" {
		logger.Errorf("Cannot store failure: missing hash")
		return err
	}

	if storeErr := failures.StoreFailure(instr.Hash, instr.Job.Mode, failureKind(err), err, instr); storeErr != nil {
		logger.Errorf("Failed to store failure for hash %s: %v", instr.Hash, storeErr)
	}
	return err
}

// CallbackPayload is POSTed to the job's completion callback.
type CallbackPayload struct {
	Hash      string      `json:"hash"`
	Status    string      `json:"status"` // "completed" or "failed"
	Mode      string      `json:"mode"`
	Files     []string    `json:"files,omitempty"`
	FileCount int         `json:"file_count"`
	Error     string      `json:"error,omitempty"`
	Timestamp int64       `json:"timestamp"`
	JobData   CombinedJob `json:"job_data"`
}

// sendCallback sends the completion callback if configured
func sendCallback(instr JobInstructions, status string, files []string, jobErr error) error {
	if instr.Job.CallbackURL == "" {
		return nil
	}

	payload := CallbackPayload{
		Hash:      instr.Hash,
		Status:    status,
		Mode:      instr.Job.Mode,
		Files:     files,
		FileCount: len(files),
		Timestamp: time.Now().Unix(),
		JobData:   instr.Job,
	}
	if jobErr != nil {
		payload.Error = jobErr.Error()
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal callback payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, instr.Job.CallbackURL, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return fmt.Errorf("failed to create callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "vidshape/1.0")
	for key, value := range instr.Job.CallbackHeaders {
		req.Header.Set(key, value)
	}

	resp, err := callbackClient.Do(req)
	if err != nil {
		return fmt.Errorf("callback request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned non-2xx status: %d", resp.StatusCode)
	}

	logger.Infof("Sent %s callback to %s", status, instr.Job.CallbackURL)
	return nil
}
