// Package encode runs single-rendition transcodes on an engine handle.
package encode

import (
	"context"
	"errors"
	"fmt"

	"vidshape/engine"
	"vidshape/logger"
	"vidshape/models"
)

var log = logger.With("encode")

// ErrEncode classifies every engine-side failure of a job.
var ErrEncode = errors.New("encode failed")

// EncodeError carries the failing rendition and the engine's diagnostic text.
type EncodeError struct {
	Rendition  string
	Diagnostic string
	Err        error
}

func (e *EncodeError) Error() string {
	// RunError already quotes the last diagnostic line.
	var runErr *engine.RunError
	if e.Diagnostic == "" || errors.As(e.Err, &runErr) {
		return fmt.Sprintf("encode %s: %v", e.Rendition, e.Err)
	}
	return fmt.Sprintf("encode %s: %v: %s", e.Rendition, e.Err, e.Diagnostic)
}

func (e *EncodeError) Unwrap() error { return e.Err }

func (e *EncodeError) Is(target error) bool { return target == ErrEncode }

// ReportFunc receives a job's contribution in [0, Weight].
type ReportFunc func(contribution float64)

// Job is one rendition encode. Input is shared read-only between jobs.
type Job struct {
	Level   models.QualityLevel
	Input   []byte
	Options Options
	Weight  float64
	// Source dimensions, used to declare the output resolution.
	SourceWidth  int
	SourceHeight int
}

// Result holds a job's output. Exactly one of Rendition or Output is set.
type Result struct {
	Rendition  *models.RenditionOutput
	Output     []byte
	OutputName string
	// CleanupErr records a failure to release the engine namespace; it never fails the job.
	CleanupErr error
}

func (j *Job) name() string {
	if j.Level.Name != "" {
		return j.Level.Name
	}
	return j.Options.withDefaults().Name
}

func (j *Job) clamp(ratio float64) float64 {
	if ratio != ratio || ratio < 0 { // NaN or negative
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return ratio * j.Weight
}

// Run executes the job on a fresh handle from factory. The handle's namespace
// is emptied and closed whatever the outcome.
func (j *Job) Run(ctx context.Context, factory engine.Factory, report ReportFunc) (res *Result, err error) {
	name := j.name()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("rendition %s: %w", name, err)
	}

	opts := j.Options.withDefaults()
	handle, err := factory.New(func(ratio float64) {
		if report != nil {
			report(j.clamp(ratio))
		}
	})
	if err != nil {
		return nil, &EncodeError{Rendition: name, Err: err}
	}

	// Outputs are listed up front so a failed run still has them removed.
	written := []string{opts.InputName, opts.OutputName()}
	if opts.Segmenting() {
		written[1] = opts.ManifestName()
	}
	defer func() {
		cerr := errors.Join(handle.Delete(written...), handle.Close())
		if cerr == nil {
			return
		}
		log.Warnf("rendition %s: cleanup failed: %v", name, cerr)
		if res != nil {
			res.CleanupErr = cerr
		}
	}()

	if err := handle.WriteFile(opts.InputName, j.Input); err != nil {
		return nil, &EncodeError{Rendition: name, Err: err}
	}

	args := BuildArgs(opts.InputName, opts)
	log.Debugf("rendition %s: running engine with %d args", name, len(args))
	if err := handle.Run(ctx, args...); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("rendition %s: %w", name, ctx.Err())
		}
		encErr := &EncodeError{Rendition: name, Err: err}
		var runErr *engine.RunError
		if errors.As(err, &runErr) {
			encErr.Diagnostic = runErr.Diagnostic
		}
		return nil, encErr
	}

	if !opts.Segmenting() {
		out := opts.OutputName()
		data, err := handle.ReadFile(out)
		if err != nil {
			return nil, &EncodeError{Rendition: name, Err: err}
		}
		if report != nil {
			report(j.Weight)
		}
		return &Result{Output: data, OutputName: out}, nil
	}

	manifestName := opts.ManifestName()
	manifest, err := handle.ReadFile(manifestName)
	if err != nil {
		return nil, &EncodeError{Rendition: name, Err: err}
	}
	segmentNames := ParseSegments(string(manifest))
	written = append(written, segmentNames...)
	if len(segmentNames) == 0 {
		return nil, &EncodeError{Rendition: name, Err: errors.New("manifest lists no segments"), Diagnostic: string(manifest)}
	}

	segments := make(map[string][]byte, len(segmentNames))
	for _, seg := range segmentNames {
		data, err := handle.ReadFile(seg)
		if err != nil {
			return nil, &EncodeError{Rendition: name, Err: err}
		}
		segments[seg] = data
	}

	w, h := ScaledSize(j.SourceWidth, j.SourceHeight, opts.TargetWidth, opts.TargetHeight)
	if report != nil {
		report(j.Weight)
	}
	return &Result{Rendition: &models.RenditionOutput{
		Level:        j.Level,
		ManifestFile: manifestName,
		SegmentFiles: segmentNames,
		ManifestText: string(manifest),
		Segments:     segments,
		Width:        w,
		Height:       h,
	}}, nil
}

// Encode produces one flat output; the fast-resize path.
func Encode(ctx context.Context, factory engine.Factory, input []byte, opts Options, progress engine.ProgressFunc) ([]byte, error) {
	opts.SegmentSeconds = 0
	job := &Job{Input: input, Options: opts, Weight: 1}
	var report ReportFunc
	if progress != nil {
		report = func(c float64) { progress(c) }
	}
	res, err := job.Run(ctx, factory, report)
	if err != nil {
		return nil, err
	}
	return res.Output, nil
}
