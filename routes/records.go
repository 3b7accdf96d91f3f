package routes

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"vidshape/failures"
	"vidshape/logger"
	"vidshape/success"
)

// SuccessResponse reports one completed job.
type SuccessResponse struct {
	Hash      string    `json:"hash"`
	Status    string    `json:"status"`
	Mode      string    `json:"mode,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	Duration  string    `json:"duration,omitempty"`
	FileCount int       `json:"file_count"`
	Files     []string  `json:"files,omitempty"`
	JobData   string    `json:"job_data,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// FailureResponse reports one failed job.
type FailureResponse struct {
	Hash      string    `json:"hash"`
	Status    string    `json:"status"`
	Mode      string    `json:"mode,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	Error     string    `json:"error,omitempty"`
	JobData   string    `json:"job_data,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// listFilter holds the optional ?mode= and ?limit= parameters of the list endpoints.
type listFilter struct {
	mode  string
	limit int
}

func parseListFilter(r *http.Request) (listFilter, bool) {
	f := listFilter{mode: r.URL.Query().Get("mode")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, false
		}
		f.limit = n
	}
	return f, true
}

func (f listFilter) keep(mode string) bool { return f.mode == "" || f.mode == mode }

func (f listFilter) cap(n int) int {
	if f.limit > 0 && f.limit < n {
		return f.limit
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}

// hashQuery validates method and the hash parameter shared by both record lookups.
func hashQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return "", false
	}
	hash := r.URL.Query().Get("hash")
	if hash == "" {
		http.Error(w, "hash parameter required", http.StatusBadRequest)
		return "", false
	}
	return hash, true
}

// SuccessQueryHandler answers GET /success?hash=.
func SuccessQueryHandler(w http.ResponseWriter, r *http.Request) {
	hash, ok := hashQuery(w, r)
	if !ok {
		return
	}

	record, err := success.GetSuccess(hash)
	if err != nil {
		logger.Errorf("Failed to query success for hash %s: %v", hash, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if record == nil {
		writeJSON(w, http.StatusOK, SuccessResponse{
			Hash:    hash,
			Status:  "not_found",
			Message: "No success record found for this hash",
		})
		return
	}
	writeJSON(w, http.StatusOK, successResponse(record))
}

func successResponse(record *success.SuccessRecord) SuccessResponse {
	return SuccessResponse{
		Hash:      record.Hash,
		Status:    "success",
		Mode:      record.Mode,
		Timestamp: record.Timestamp,
		Duration:  record.Duration,
		FileCount: record.FileCount,
		Files:     record.Files,
		JobData:   record.JobData,
	}
}

// SuccessListHandler answers GET /success/list, newest first.
func SuccessListHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	filter, ok := parseListFilter(r)
	if !ok {
		http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
		return
	}

	records, err := success.ListSuccessRecords()
	if err != nil {
		logger.Errorf("Failed to list success records: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	out := make([]SuccessResponse, 0, len(records))
	for i := range records {
		if filter.keep(records[i].Mode) {
			out = append(out, successResponse(&records[i]))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	out = out[:filter.cap(len(out))]

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success_records": out,
		"count":           len(out),
	})
}

// FailureQueryHandler answers GET /failures?hash=.
func FailureQueryHandler(w http.ResponseWriter, r *http.Request) {
	hash, ok := hashQuery(w, r)
	if !ok {
		return
	}

	record, err := failures.GetFailure(hash)
	if err != nil {
		logger.Errorf("Failed to query failure for hash %s: %v", hash, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if record == nil {
		writeJSON(w, http.StatusOK, FailureResponse{
			Hash:    hash,
			Status:  "not_found",
			Message: "No failure record found for this hash",
		})
		return
	}
	writeJSON(w, http.StatusOK, failureResponse(record))
}

func failureResponse(record *failures.FailureRecord) FailureResponse {
	return FailureResponse{
		Hash:      record.Hash,
		Status:    "failed",
		Mode:      record.Mode,
		Kind:      record.Kind,
		Timestamp: record.Timestamp,
		Error:     record.Error,
		JobData:   record.JobData,
	}
}

// FailureListHandler answers GET /failures/list, newest first.
func FailureListHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	filter, ok := parseListFilter(r)
	if !ok {
		http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
		return
	}

	records, err := failures.ListFailures()
	if err != nil {
		logger.Errorf("Failed to list failures: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	out := make([]FailureResponse, 0, len(records))
	for i := range records {
		if filter.keep(records[i].Mode) {
			out = append(out, failureResponse(&records[i]))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	out = out[:filter.cap(len(out))]

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"failures": out,
		"count":    len(out),
	})
}
