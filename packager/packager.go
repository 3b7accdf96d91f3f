// Package packager turns one source into a multi-quality HLS package.
//
// A run probes the source, filters the ladder so no rendition upscales, encodes
// every remaining level (one at a time or concurrently, each on its own engine
// handle) and assembles the top-level manifest in ladder order.
package packager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"vidshape/encode"
	"vidshape/engine"
	"vidshape/logger"
	"vidshape/metrics"
	"vidshape/models"
	"vidshape/probe"
)

var log = logger.With("packager")

var (
	ErrEmptyLadder      = errors.New("no quality levels left after filtering")
	ErrManifestAssembly = errors.New("manifest assembly failed")
)

// Mode selects how rendition jobs are scheduled.
type Mode int

const (
	Sequential Mode = iota
	Parallel
)

func (m Mode) String() string {
	if m == Parallel {
		return "parallel"
	}
	return "sequential"
}

// ParseMode accepts "sequential" or "parallel"; empty means sequential.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sequential":
		return Sequential, nil
	case "parallel":
		return Parallel, nil
	}
	return Sequential, fmt.Errorf("unknown scheduling mode %q", s)
}

// Options tune one Package call.
type Options struct {
	Mode             Mode
	DisableFiltering bool
	// MaxParallel caps concurrent jobs in Parallel mode; 0 = no cap.
	MaxParallel    int
	SegmentSeconds float64 // 0 = encode.DefaultSegmentSeconds
	MasterName     string  // "" = DefaultMasterName
	Progress       func(percent float64)
}

// Packager owns its collaborators; it holds no per-run state and may be shared.
type Packager struct {
	Prober  probe.Prober
	Factory engine.Factory
}

func New(prober probe.Prober, factory engine.Factory) *Packager {
	return &Packager{Prober: prober, Factory: factory}
}

// Package encodes input at every viable ladder level. Any job failure fails the
// whole run; no partial result is returned.
func (p *Packager) Package(ctx context.Context, input []byte, ladder []models.QualityLevel, opts Options) (*models.PackageManifest, error) {
	if len(ladder) == 0 {
		return nil, fmt.Errorf("%w: ladder is empty", ErrEmptyLadder)
	}

	src, err := p.Prober.Probe(ctx, input)
	if err != nil {
		return nil, err
	}
	log.Infof("source %s, %d ladder levels, %s", src, len(ladder), opts.Mode)

	levels := ladder
	if !opts.DisableFiltering {
		var dropped []models.QualityLevel
		levels, dropped = FilterLadder(ladder, src)
		for _, level := range dropped {
			log.Debugf("dropping %s (%dx%d): exceeds source %dx%d", level.Name, level.TargetWidth, level.TargetHeight, src.Width, src.Height)
		}
		metrics.LadderFilteredTotal.Add(float64(len(dropped)))
	}
	if len(levels) == 0 {
		return nil, fmt.Errorf("%w: source %dx%d is smaller than every level", ErrEmptyLadder, src.Width, src.Height)
	}
	if err := checkLadder(levels); err != nil {
		return nil, err
	}

	agg := NewProgressAggregate(len(levels), opts.Progress)
	jobs := make([]*encode.Job, len(levels))
	for i, level := range levels {
		jobs[i] = &encode.Job{
			Level:        level,
			Input:        input,
			Options:      encode.OptionsForLevel(level, opts.SegmentSeconds),
			Weight:       agg.Weight(),
			SourceWidth:  src.Width,
			SourceHeight: src.Height,
		}
	}

	var renditions []models.RenditionOutput
	if opts.Mode == Parallel {
		renditions, err = p.runParallel(ctx, jobs, agg, opts.MaxParallel)
	} else {
		renditions, err = p.runSequential(ctx, jobs, agg)
	}
	if err != nil {
		return nil, err
	}

	master, err := BuildMasterManifest(renditions)
	if err != nil {
		return nil, err
	}
	masterName := opts.MasterName
	if masterName == "" {
		masterName = DefaultMasterName
	}
	agg.Complete()

	return &models.PackageManifest{
		Renditions:           renditions,
		TopLevelManifestFile: masterName,
		TopLevelManifestText: master,
	}, nil
}

func (p *Packager) runSequential(ctx context.Context, jobs []*encode.Job, agg *ProgressAggregate) ([]models.RenditionOutput, error) {
	out := make([]models.RenditionOutput, len(jobs))
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := p.runJob(ctx, i, job, agg)
		if err != nil {
			return nil, err
		}
		out[i] = *r
	}
	return out, nil
}

func (p *Packager) runParallel(ctx context.Context, jobs []*encode.Job, agg *ProgressAggregate, limit int) ([]models.RenditionOutput, error) {
	out := make([]models.RenditionOutput, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			r, err := p.runJob(gctx, i, job, agg)
			if err != nil {
				return err
			}
			// each goroutine owns its slot
			out[i] = *r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Packager) runJob(ctx context.Context, i int, job *encode.Job, agg *ProgressAggregate) (*models.RenditionOutput, error) {
	start := time.Now()
	res, err := job.Run(ctx, p.Factory, func(c float64) { agg.Report(i, c) })
	metrics.RenditionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RenditionsTotal.WithLabelValues("error").Inc()
		log.Errorf("rendition %s failed: %v", job.Level.Name, err)
		return nil, err
	}
	metrics.RenditionsTotal.WithLabelValues("success").Inc()
	if res.CleanupErr != nil {
		metrics.EngineCleanupErrorsTotal.Inc()
		log.Warnf("rendition %s: engine cleanup: %v", job.Level.Name, res.CleanupErr)
	}
	if res.Rendition == nil {
		return nil, fmt.Errorf("%w: rendition %s produced no manifest", ErrManifestAssembly, job.Level.Name)
	}
	agg.Done(i)
	log.Infof("rendition %s done: %d segments in %s", job.Level.Name, len(res.Rendition.SegmentFiles), time.Since(start).Round(time.Millisecond))
	return res.Rendition, nil
}
