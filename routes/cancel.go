package routes

import (
	"errors"
	"fmt"
	"net/http"

	"vidshape/job"
	"vidshape/logger"
)

// CancelJobHandler cancels a pending or running job by hash
func CancelJobHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	hash := r.URL.Query().Get("hash")
	if hash == "" {
		http.Error(w, "Missing hash parameter", http.StatusBadRequest)
		return
	}

	logger.Infof("Attempting to cancel job: %s", hash)
	if err := job.CancelJob(hash); err != nil {
		logger.Warnf("Failed to cancel job %s: %v", hash, err)
		if errors.Is(err, job.ErrJobNotFound) {
			http.Error(w, fmt.Sprintf("Job not found: %v", err), http.StatusNotFound)
		} else {
			http.Error(w, fmt.Sprintf("Cannot cancel job: %v", err), http.StatusConflict)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
