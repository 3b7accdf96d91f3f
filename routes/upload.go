package routes

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vidshape/capture"
	"vidshape/config"
	"vidshape/encode"
	"vidshape/job"
	"vidshape/logger"
	"vidshape/models"
	"vidshape/output"
	"vidshape/packager"
	taskqueue "vidshape/taskQueue"
)

// maxMemory is how much of a multipart upload is held in memory; the rest spools to disk.
const maxMemory = 32 << 20

// UploadResponse is returned for an accepted job.
type UploadResponse struct {
	Hash          string   `json:"hash"`
	Mode          string   `json:"mode"`
	ExpectedFiles []string `json:"expected_files"`
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("authorization header required")
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader {
		return "", fmt.Errorf("invalid authorization header format")
	}
	return token, nil
}

// sourceName reduces a client supplied filename to a safe base name.
func sourceName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" || name == job.InstructionsFile {
		return "source"
	}
	return name
}

// spool copies src into a fresh folder under root and returns the folder and
// the SHA256 of the content.
func spool(root, filename string, src io.Reader) (dir, hash string, err error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", "", err
	}
	dir, err = os.MkdirTemp(root, "upload-")
	if err != nil {
		return "", "", err
	}
	defer func() {
		if err != nil {
			os.RemoveAll(dir)
		}
	}()

	f, err := os.Create(filepath.Join(dir, filename))
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(f, io.TeeReader(src, h)); err != nil {
		return "", "", err
	}
	return dir, hex.EncodeToString(h.Sum(nil)), nil
}

// expectedFiles predicts the artifact names a job will publish. Package jobs
// list every candidate rung; rungs that would upscale the source are skipped later.
func expectedFiles(originalFile string, cj job.CombinedJob) []string {
	base := encode.SanitizeName(strings.TrimSuffix(originalFile, filepath.Ext(originalFile)))
	if base == "" {
		base = "output"
	}
	switch cj.Mode {
	case models.ModeResize:
		return []string{base + "." + cj.Resize.Container}
	case models.ModeCapture:
		mime := cj.Capture.MimeType
		if mime == "" {
			mime = capture.SupportedMimeTypes[0]
		}
		return []string{base + output.Extension(mime)}
	case models.ModePackage:
		files := []string{packager.DefaultMasterName}
		for _, l := range cj.Package.Ladder {
			files = append(files, encode.SanitizeName(l.Name)+".m3u8")
		}
		return files
	}
	return nil
}

// UploadHandler accepts a source video plus a job token and queues the job.
func UploadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token, err := bearerToken(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid token: %v", err), http.StatusUnauthorized)
		return
	}
	combined, err := job.ParseToken(token)
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, job.ErrInvalidJob) {
			status = http.StatusBadRequest
		}
		http.Error(w, fmt.Sprintf("Invalid token: %v", err), status)
		return
	}

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		http.Error(w, "Failed to parse multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Failed to get file from form", http.StatusBadRequest)
		return
	}
	defer file.Close()

	name := sourceName(header.Filename)
	workRoot := filepath.Join(config.GetWorkDir(), "vidshape-jobs")
	tmpDir, hash, err := spool(workRoot, name, file)
	if err != nil {
		logger.Errorf("Failed to spool upload: %v", err)
		http.Error(w, "Failed to save file", http.StatusInternalServerError)
		return
	}

	jobDir := filepath.Join(workRoot, hash)
	if state, ok := job.GetJobState(hash); ok && (state == job.JobStatePending || state == job.JobStateProcessing) {
		os.RemoveAll(tmpDir)
		http.Error(w, fmt.Sprintf("Job %s is already %s", hash, state), http.StatusConflict)
		return
	}
	os.RemoveAll(jobDir)
	if err := os.Rename(tmpDir, jobDir); err != nil {
		os.RemoveAll(tmpDir)
		logger.Errorf("Failed to create job directory %s: %v", jobDir, err)
		http.Error(w, "Failed to create job directory", http.StatusInternalServerError)
		return
	}

	instr := job.JobInstructions{
		FilePath:     jobDir,
		OriginalFile: name,
		Hash:         hash,
		ReceivedAt:   time.Now(),
		Job:          combined,
	}
	if err := job.WriteInstructions(jobDir, instr); err != nil {
		os.RemoveAll(jobDir)
		http.Error(w, fmt.Sprintf("Failed to write instructions: %v", err), http.StatusInternalServerError)
		return
	}

	err = taskqueue.Enqueue(taskqueue.Entry{
		Hash:       hash,
		Dir:        jobDir,
		Mode:       combined.Mode,
		Priority:   combined.Priority,
		EnqueuedAt: instr.ReceivedAt,
	})
	if err != nil && !errors.Is(err, taskqueue.ErrNotOpen) {
		logger.Warnf("Job %s is not durable: %v", hash, err)
	}

	job.AddPendingJob(jobDir)
	logger.Infof("Accepted %s job %s (%s)", combined.Mode, hash, name)

	writeJSON(w, http.StatusAccepted, UploadResponse{
		Hash:          hash,
		Mode:          combined.Mode,
		ExpectedFiles: expectedFiles(name, combined),
	})
}
