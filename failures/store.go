package failures

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vidshape/kvstore"
)

// FailureRecord represents a processing failure
type FailureRecord struct {
	Hash      string    `json:"hash"`
	Timestamp time.Time `json:"timestamp"`
	Mode      string    `json:"mode,omitempty"`
	Kind      string    `json:"kind"` // classification, e.g. "probe", "encode", "stalled"
	Error     string    `json:"error"`
	JobData   string    `json:"job_data"` // JSON string of the job instructions
}

var store *kvstore.Store

// Init initializes the failure store
func Init(dbPath string) error {
	s, err := kvstore.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open failure store: %w", err)
	}
	store = s
	return nil
}

// Close closes the failure store
func Close() error {
	s := store
	store = nil
	return s.Close()
}

func ready() error {
	if store == nil {
		return fmt.Errorf("failure store not initialized")
	}
	return nil
}

// StoreFailure stores a processing failure
func StoreFailure(hash, mode, kind string, err error, jobData interface{}) error {
	if rerr := ready(); rerr != nil {
		return rerr
	}

	jobJSON, jsonErr := json.Marshal(jobData)
	if jsonErr != nil {
		jobJSON = []byte(fmt.Sprintf("failed to marshal job data: %v", jsonErr))
	}

	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return store.SetJSON(hash, FailureRecord{
		Hash:      hash,
		Timestamp: time.Now(),
		Mode:      mode,
		Kind:      kind,
		Error:     msg,
		JobData:   string(jobJSON),
	})
}

// GetFailure retrieves a failure record by hash; nil when absent.
func GetFailure(hash string) (*FailureRecord, error) {
	if err := ready(); err != nil {
		return nil, err
	}
	var record FailureRecord
	if err := store.GetJSON(hash, &record); err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, nil // No failure found
		}
		return nil, fmt.Errorf("failed to get failure: %w", err)
	}
	return &record, nil
}

// DeleteFailure removes a failure record
func DeleteFailure(hash string) error {
	if err := ready(); err != nil {
		return err
	}
	return store.Delete(hash)
}

// ListFailures returns all failure records (for admin purposes)
func ListFailures() ([]FailureRecord, error) {
	if err := ready(); err != nil {
		return nil, err
	}
	records := []FailureRecord{}
	err := store.Each(func(_, value []byte) bool {
		var record FailureRecord
		if json.Unmarshal(value, &record) == nil {
			records = append(records, record)
		}
		return true
	})
	return records, err
}

// CleanupOldRecords removes failure records older than maxAge.
func CleanupOldRecords(maxAge time.Duration) (int, error) {
	if err := ready(); err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-maxAge)
	return store.DeleteWhere(func(_, value []byte) bool {
		var record FailureRecord
		if err := json.Unmarshal(value, &record); err != nil {
			return false
		}
		return record.Timestamp.Before(cutoff)
	})
}

// CheckHealth performs a basic health check on the failure database
func CheckHealth() error {
	if err := ready(); err != nil {
		return err
	}
	return store.CheckHealth()
}
