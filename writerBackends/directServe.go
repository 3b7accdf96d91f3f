package writerbackends

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"vidshape/logger"
)

// UploadToDirectServe writes content under baseDir/folder/filename, which the
// HTTP server exposes at /files/.
func UploadToDirectServe(ctx context.Context, accessInfo map[string]string, reader io.Reader) error {
	baseDir := accessInfo["baseDir"]
	rel := filepath.FromSlash(objectKey(accessInfo))
	if rel == "" || !filepath.IsLocal(rel) {
		return fmt.Errorf("invalid target path %q", objectKey(accessInfo))
	}

	fullPath := filepath.Join(baseDir, rel)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", fullPath, err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return fmt.Errorf("failed to write to file %s: %w", fullPath, err)
	}

	logger.Debugf("Saved '%s' to '%s'", accessInfo["filename"], fullPath)
	return nil
}
