package routes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"vidshape/credentials"
	"vidshape/failures"
	"vidshape/job"
	"vidshape/logger"
	"vidshape/success"
	taskqueue "vidshape/taskQueue"
)

// Build-time variables (injected by ldflags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Version     string            `json:"version"`
	GoVersion   string            `json:"go_version"`
	Uptime      string            `json:"uptime"`
	StartTime   string            `json:"start_time"`
	PendingJobs int               `json:"pending_jobs"`
	Stores      map[string]string `json:"stores"`
}

// Global start time for uptime calculation
var startTime = time.Now()

// storeChecks are consulted by the health endpoint.
var storeChecks = map[string]func() error{
	"success":     success.CheckHealth,
	"failures":    failures.CheckHealth,
	"credentials": credentials.CheckHealth,
	"queue":       taskqueue.CheckHealth,
}

// formatUptime formats a duration into days, hours, minutes, seconds
func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
}

// HealthHandler reports process and store health; any failing store makes it 503.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:      "healthy",
		Timestamp:   time.Now(),
		Version:     version,
		GoVersion:   runtime.Version(),
		Uptime:      formatUptime(time.Since(startTime)),
		StartTime:   startTime.Format("2006-01-02 15:04:05 MST"),
		PendingJobs: len(job.GetPendingJobs()),
		Stores:      make(map[string]string, len(storeChecks)),
	}

	code := http.StatusOK
	for name, check := range storeChecks {
		if err := check(); err != nil {
			response.Stores[name] = err.Error()
			response.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		response.Stores[name] = "ok"
	}
	if code != http.StatusOK {
		logger.Warnf("Health check degraded: %v", response.Stores)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Errorf("Failed to encode health response: %v", err)
	}
}
