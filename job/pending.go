package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"vidshape/logger"
	"vidshape/metrics"
	taskqueue "vidshape/taskQueue"
)

// JobState represents the current state of a job
type JobState int

const (
	JobStatePending JobState = iota
	JobStateProcessing
	JobStateCompleted
	JobStateFailed
	JobStateCancelled
)

func (s JobState) String() string {
	switch s {
	case JobStatePending:
		return "pending"
	case JobStateProcessing:
		return "processing"
	case JobStateCompleted:
		return "completed"
	case JobStateFailed:
		return "failed"
	case JobStateCancelled:
		return "cancelled"
	}
	return "unknown"
}

var (
	ErrJobNotFound    = errors.New("job not found")
	ErrNotCancellable = errors.New("job cannot be cancelled")
)

// MaxAttempts bounds how often a restored job is retried after a crash.
const MaxAttempts = 3

var (
	pendingJobs []string                              // slice of directory paths with pending jobs
	activeJobs  = make(map[string]context.CancelFunc) // hash -> cancel function
	jobStates   = make(map[string]JobState)           // hash -> job state
	jobProgress = make(map[string]float64)            // hash -> percent
	mu          sync.RWMutex

	wake = make(chan struct{}, 1)
)

// AddPendingJob adds a job directory to the pending list
func AddPendingJob(dir string) {
	hash := filepath.Base(dir)
	mu.Lock()
	for _, p := range pendingJobs {
		if p == dir {
			mu.Unlock()
			return
		}
	}
	pendingJobs = append(pendingJobs, dir)
	jobStates[hash] = JobStatePending
	jobProgress[hash] = 0
	metrics.QueueDepth.Set(float64(len(pendingJobs)))
	mu.Unlock()

	select {
	case wake <- struct{}{}:
	default:
	}
}

// RemovePendingJob removes a job directory from the pending list
func RemovePendingJob(dir string) {
	mu.Lock()
	defer mu.Unlock()
	removePendingLocked(dir)
}

func removePendingLocked(dir string) {
	for i, p := range pendingJobs {
		if p == dir {
			pendingJobs = append(pendingJobs[:i], pendingJobs[i+1:]...)
			break
		}
	}
	metrics.QueueDepth.Set(float64(len(pendingJobs)))
}

// GetPendingJobs returns a copy of the pending jobs list
func GetPendingJobs() []string {
	mu.RLock()
	defer mu.RUnlock()
	jobs := make([]string, len(pendingJobs))
	copy(jobs, pendingJobs)
	return jobs
}

// CancelJob cancels a pending or running job by hash.
func CancelJob(hash string) error {
	mu.Lock()
	defer mu.Unlock()

	state, exists := jobStates[hash]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, hash)
	}

	switch state {
	case JobStateCompleted:
		return fmt.Errorf("%w: %s already completed", ErrNotCancellable, hash)
	case JobStateFailed:
		return fmt.Errorf("%w: %s already failed", ErrNotCancellable, hash)
	case JobStateCancelled:
		return fmt.Errorf("%w: %s already cancelled", ErrNotCancellable, hash)
	case JobStateProcessing:
		cancel, ok := activeJobs[hash]
		if !ok {
			return fmt.Errorf("%w: %s is processing but not active", ErrNotCancellable, hash)
		}
		cancel()
		return nil
	case JobStatePending:
		for _, dir := range pendingJobs {
			if filepath.Base(dir) != hash {
				continue
			}
			removePendingLocked(dir)
			if err := os.RemoveAll(dir); err != nil {
				logger.Warnf("Failed to remove cancelled job directory %s: %v", dir, err)
			}
			break
		}
		if err := taskqueue.Remove(hash); err != nil && !errors.Is(err, taskqueue.ErrNotOpen) {
			logger.Warnf("Failed to remove cancelled job %s from queue: %v", hash, err)
		}
		jobStates[hash] = JobStateCancelled
		return nil
	default:
		return fmt.Errorf("%w: %s is in state %s", ErrNotCancellable, hash, state)
	}
}

// GetJobState returns the current state of a job
func GetJobState(hash string) (JobState, bool) {
	mu.RLock()
	defer mu.RUnlock()
	state, exists := jobStates[hash]
	return state, exists
}

// GetJobProgress returns the last reported percentage of a job.
func GetJobProgress(hash string) (float64, bool) {
	mu.RLock()
	defer mu.RUnlock()
	p, ok := jobProgress[hash]
	return p, ok
}

func setProgress(hash string, percent float64) {
	mu.Lock()
	if percent > jobProgress[hash] {
		jobProgress[hash] = percent
	}
	mu.Unlock()
}

// IsJobCancellable checks if a job can be cancelled
func IsJobCancellable(hash string) bool {
	mu.RLock()
	defer mu.RUnlock()
	state, exists := jobStates[hash]
	return exists && (state == JobStatePending || state == JobStateProcessing)
}

// RestorePendingJobs re-adds jobs left in the durable queue by a previous run.
// Entries whose work folder is gone, or that already used MaxAttempts, are dropped.
func RestorePendingJobs() (int, error) {
	entries, err := taskqueue.List()
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, e := range entries {
		if _, statErr := os.Stat(filepath.Join(e.Dir, InstructionsFile)); statErr != nil {
			logger.Warnf("Dropping queued job %s: %v", e.Hash, statErr)
			taskqueue.Remove(e.Hash)
			continue
		}
		if e.Attempts >= MaxAttempts {
			logger.Warnf("Dropping queued job %s after %d attempts", e.Hash, e.Attempts)
			if instr, readErr := ReadInstructions(e.Dir); readErr == nil {
				storeFailure(instr, fmt.Errorf("abandoned after %d attempts", e.Attempts))
			}
			taskqueue.Remove(e.Hash)
			os.RemoveAll(e.Dir)
			continue
		}
		AddPendingJob(e.Dir)
		restored++
	}
	return restored, nil
}

// processJob runs one job directory and settles its state.
func processJob(jobDir string) error {
	hash := filepath.Base(jobDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mu.Lock()
	if jobStates[hash] == JobStateCancelled {
		mu.Unlock()
		os.RemoveAll(jobDir)
		return context.Canceled
	}
	jobStates[hash] = JobStateProcessing
	activeJobs[hash] = cancel
	mu.Unlock()

	defer func() {
		mu.Lock()
		delete(activeJobs, hash)
		mu.Unlock()
	}()

	if _, err := taskqueue.MarkAttempt(hash); err != nil {
		logger.Debugf("No queue entry for %s: %v", hash, err)
	}

	err := ProcessJob(ctx, jobDir)

	mu.Lock()
	switch {
	case err == nil:
		jobStates[hash] = JobStateCompleted
		jobProgress[hash] = 100
	case errors.Is(err, context.Canceled):
		jobStates[hash] = JobStateCancelled
	default:
		jobStates[hash] = JobStateFailed
	}
	mu.Unlock()

	if qErr := taskqueue.Remove(hash); qErr != nil && !errors.Is(qErr, taskqueue.ErrNotOpen) {
		logger.Warnf("Failed to remove %s from queue: %v", hash, qErr)
	}
	return err
}

// ProcessPendingJobs processes pending jobs in order until ctx is done.
func ProcessPendingJobs(ctx context.Context) {
	for {
		jobs := GetPendingJobs()
		if len(jobs) == 0 {
			select {
			case <-ctx.Done():
				return
			case <-wake:
			case <-time.After(time.Second):
			}
			continue
		}
		logger.Infof("Processing %d pending jobs", len(jobs))

		for _, jobDir := range jobs {
			if ctx.Err() != nil {
				return
			}
			RemovePendingJob(jobDir)
			if err := processJob(jobDir); err != nil {
				logger.Errorf("Failed to process job in %s: %v", jobDir, err)
			} else {
				logger.Infof("Processed job in %s", jobDir)
			}
		}
	}
}
