package routes

import (
	"encoding/json"
	"net/http"

	"vidshape/credentials"
	"vidshape/logger"
)

// RegisterCredentialsHandler stores writer credentials and returns the key jobs
// reference them by. The body is a flat JSON object with a "type" field
// ("s3", "gcs" or "sftp") plus the backend's fields.
func RegisterCredentialsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	credsBody := make(map[string]string)
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&credsBody); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	backend := credsBody["type"]
	delete(credsBody, "type")

	if err := credentials.Validate(backend, credsBody); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	key, err := credentials.Register(backend, credsBody)
	if err != nil {
		logger.Errorf("Failed to store %s credentials: %v", backend, err)
		http.Error(w, "Failed to store credentials", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"access_key": key,
		"type":       backend,
	})
}
