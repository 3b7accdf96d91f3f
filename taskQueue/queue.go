// Package taskqueue keeps accepted jobs on disk until a worker finishes them,
// so pending work survives a restart.
package taskqueue

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"vidshape/kvstore"
)

// ErrNotOpen is returned when the queue is used before Open.
var ErrNotOpen = errors.New("task queue not open")

// Entry is one queued job: the hash names its work directory.
type Entry struct {
	Hash       string    `json:"hash"`
	Dir        string    `json:"dir"`
	Mode       string    `json:"mode"`
	Priority   int       `json:"priority"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	Attempts   int       `json:"attempts"`
}

var (
	mu    sync.Mutex
	queue *kvstore.Store
)

// Open opens (or creates) the queue database at dataFile.
func Open(dataFile string) error {
	s, err := kvstore.Open(dataFile)
	if err != nil {
		return fmt.Errorf("open task queue: %w", err)
	}
	mu.Lock()
	queue = s
	mu.Unlock()
	return nil
}

// Close closes the queue database.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	s := queue
	queue = nil
	return s.Close()
}

// Enqueue durably records e. Re-enqueueing a hash replaces the earlier entry.
func Enqueue(e Entry) error {
	if e.Hash == "" {
		return errors.New("task queue: entry without hash")
	}
	if e.EnqueuedAt.IsZero() {
		e.EnqueuedAt = time.Now()
	}
	mu.Lock()
	defer mu.Unlock()
	if queue == nil {
		return ErrNotOpen
	}
	return queue.SetJSON(e.Hash, e)
}

// MarkAttempt bumps the attempt counter of hash and returns the new count.
func MarkAttempt(hash string) (int, error) {
	mu.Lock()
	defer mu.Unlock()
	if queue == nil {
		return 0, ErrNotOpen
	}
	var e Entry
	if err := queue.GetJSON(hash, &e); err != nil {
		return 0, err
	}
	e.Attempts++
	return e.Attempts, queue.SetJSON(hash, e)
}

// Remove drops hash from the queue. Removing an absent hash is not an error.
func Remove(hash string) error {
	mu.Lock()
	defer mu.Unlock()
	if queue == nil {
		return ErrNotOpen
	}
	return queue.Delete(hash)
}

// List returns queued entries ordered by priority, then enqueue time.
func List() ([]Entry, error) {
	mu.Lock()
	defer mu.Unlock()
	if queue == nil {
		return nil, ErrNotOpen
	}
	var entries []Entry
	err := queue.Each(func(_, value []byte) bool {
		var e Entry
		if json.Unmarshal(value, &e) == nil {
			entries = append(entries, e)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority < entries[j].Priority
		}
		return entries[i].EnqueuedAt.Before(entries[j].EnqueuedAt)
	})
	return entries, nil
}

// CheckHealth reports whether the queue database is usable.
func CheckHealth() error {
	mu.Lock()
	defer mu.Unlock()
	if queue == nil {
		return ErrNotOpen
	}
	return queue.CheckHealth()
}
