package routes

import (
	"net/http"

	"vidshape/failures"
	"vidshape/job"
	"vidshape/logger"
	"vidshape/success"
)

// JobStatusResponse reports where a job is in its lifecycle.
type JobStatusResponse struct {
	Hash        string  `json:"hash"`
	State       string  `json:"state"`
	Progress    float64 `json:"progress"` // percent, 0 to 100
	Cancellable bool    `json:"cancellable"`
}

// JobStatusHandler returns the state of a job by hash. Jobs finished before the
// last restart are answered from the success and failure stores.
func JobStatusHandler(w http.ResponseWriter, r *http.Request) {
	logger.Debugf("Job status request: method=%s, remoteAddr=%s", r.Method, r.RemoteAddr)

	hash, ok := hashQuery(w, r)
	if !ok {
		return
	}

	if state, exists := job.GetJobState(hash); exists {
		progress, _ := job.GetJobProgress(hash)
		writeJSON(w, http.StatusOK, JobStatusResponse{
			Hash:        hash,
			State:       state.String(),
			Progress:    progress,
			Cancellable: job.IsJobCancellable(hash),
		})
		return
	}

	if rec, err := success.GetSuccess(hash); err == nil && rec != nil {
		writeJSON(w, http.StatusOK, JobStatusResponse{Hash: hash, State: job.JobStateCompleted.String(), Progress: 100})
		return
	}
	if rec, err := failures.GetFailure(hash); err == nil && rec != nil {
		writeJSON(w, http.StatusOK, JobStatusResponse{Hash: hash, State: job.JobStateFailed.String()})
		return
	}
	http.Error(w, "Job "+hash+" not found", http.StatusNotFound)
}
