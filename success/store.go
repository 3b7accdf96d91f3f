package success

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vidshape/kvstore"
)

// SuccessRecord represents a successful job completion
type SuccessRecord struct {
	Hash      string    `json:"hash"`
	Timestamp time.Time `json:"timestamp"`
	Mode      string    `json:"mode"`
	JobData   string    `json:"job_data"`   // JSON string of the job instructions
	FileCount int       `json:"file_count"` // Number of files published
	Files     []string  `json:"files,omitempty"`
	Duration  string    `json:"duration,omitempty"`
}

var store *kvstore.Store

// Init initializes the success store
func Init(dbPath string) error {
	s, err := kvstore.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open success store: %w", err)
	}
	store = s
	return nil
}

// Close closes the success store
func Close() error {
	s := store
	store = nil
	return s.Close()
}

func ready() error {
	if store == nil {
		return fmt.Errorf("success store not initialized")
	}
	return nil
}

// StoreSuccess records a completed job and the files it published.
func StoreSuccess(hash, mode string, jobData interface{}, files []string, took time.Duration) error {
	if err := ready(); err != nil {
		return err
	}

	jobJSON, jsonErr := json.Marshal(jobData)
	if jsonErr != nil {
		jobJSON = []byte(fmt.Sprintf("failed to marshal job data: %v", jsonErr))
	}

	return store.SetJSON(hash, SuccessRecord{
		Hash:      hash,
		Timestamp: time.Now(),
		Mode:      mode,
		JobData:   string(jobJSON),
		FileCount: len(files),
		Files:     files,
		Duration:  took.Round(time.Millisecond).String(),
	})
}

// GetSuccess retrieves a success record by hash; nil when absent.
func GetSuccess(hash string) (*SuccessRecord, error) {
	if err := ready(); err != nil {
		return nil, err
	}
	var record SuccessRecord
	if err := store.GetJSON(hash, &record); err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// DeleteSuccess removes a success record
func DeleteSuccess(hash string) error {
	if err := ready(); err != nil {
		return err
	}
	return store.Delete(hash)
}

// ListSuccessRecords returns all success records (for admin/debugging)
func ListSuccessRecords() ([]SuccessRecord, error) {
	if err := ready(); err != nil {
		return nil, err
	}
	records := []SuccessRecord{}
	err := store.Each(func(_, value []byte) bool {
		var record SuccessRecord
		if json.Unmarshal(value, &record) == nil {
			records = append(records, record)
		}
		return true
	})
	return records, err
}

// CleanupOldRecords removes success records older than maxAge.
func CleanupOldRecords(maxAge time.Duration) (int, error) {
	if err := ready(); err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-maxAge)
	return store.DeleteWhere(func(_, value []byte) bool {
		var record SuccessRecord
		if err := json.Unmarshal(value, &record); err != nil {
			return false
		}
		return record.Timestamp.Before(cutoff)
	})
}

// CheckHealth performs a basic health check on the success database
func CheckHealth() error {
	if err := ready(); err != nil {
		return err
	}
	return store.CheckHealth()
}
