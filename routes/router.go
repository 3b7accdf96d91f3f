package routes

import (
	"net/http"
	"strings"

	"vidshape/output"
)

// NewRouter registers every endpoint. serveDir is exposed read-only under /files/.
func NewRouter(serveDir string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/upload", UploadHandler)
	mux.HandleFunc("/health", HealthHandler)
	mux.HandleFunc("/version", VersionHandler)
	mux.HandleFunc("/status", JobStatusHandler)
	mux.HandleFunc("/cancel", CancelJobHandler)
	mux.HandleFunc("/credentials", RegisterCredentialsHandler)
	mux.HandleFunc("/failures", FailureQueryHandler)
	mux.HandleFunc("/failures/list", FailureListHandler)
	mux.HandleFunc("/success", SuccessQueryHandler)
	mux.HandleFunc("/success/list", SuccessListHandler)
	mux.Handle("/metrics", MetricsHandler())
	mux.Handle("/files/", http.StripPrefix("/files/", serveFiles(serveDir)))
	return Instrument(mux)
}

// serveFiles serves published artifacts with playlist-aware content types.
func serveFiles(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		if ct := output.ContentType(r.URL.Path); ct != "application/octet-stream" {
			w.Header().Set("Content-Type", ct)
		}
		fs.ServeHTTP(w, r)
	})
}
