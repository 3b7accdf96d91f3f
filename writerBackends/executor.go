package writerbackends

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"vidshape/metrics"
)

// countingReader tallies bytes read for the upload metrics.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// WriteArtifact publishes one file to backendType. accessInfo carries the backend
// credentials plus "folder" and "filename"; filename may contain "/" separators.
func WriteArtifact(ctx context.Context, accessInfo map[string]string, reader io.Reader, backendType string) error {
	cr := &countingReader{r: reader}
	var err error
	switch backendType {
	case "directServe":
		err = UploadToDirectServe(ctx, accessInfo, cr)
		if err != nil {
			err = fmt.Errorf("failed to upload to direct serve: %w", err)
		}
	case "s3":
		err = UploadToS3WithCreds(ctx, accessInfo, cr)
		if err != nil {
			err = fmt.Errorf("failed to upload to S3: %w", err)
		}
	case "gcs":
		err = UploadToGCSWithJSON(ctx, accessInfo, cr)
		if err != nil {
			err = fmt.Errorf("failed to upload to GCS: %w", err)
		}
	case "sftp":
		err = UploadToSFTPWithCreds(ctx, accessInfo, cr)
		if err != nil {
			err = fmt.Errorf("failed to upload to SFTP: %w", err)
		}
	default:
		return fmt.Errorf("unknown backend type: %s", backendType)
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.WriterUploadsTotal.WithLabelValues(backendType, status).Inc()
	metrics.WriterUploadBytes.WithLabelValues(backendType).Add(float64(cr.n))
	return err
}

// ListArtifacts returns every regular file under dir as a slash-separated
// relative path, sorted.
func ListArtifacts(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// PublishDir writes every file under dir to backendType, keeping each file's
// path relative to dir so manifests keep resolving their segments.
func PublishDir(ctx context.Context, backendType string, accessInfo map[string]string, dir string) ([]string, error) {
	files, err := ListArtifacts(dir)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}

	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("publishing cancelled: %w", err)
		}

		info := make(map[string]string, len(accessInfo)+1)
		for k, v := range accessInfo {
			info[k] = v
		}
		info["filename"] = rel

		f, err := os.Open(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			return nil, fmt.Errorf("failed to open file %s: %w", rel, err)
		}
		err = WriteArtifact(ctx, info, f, backendType)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to write %s to %s: %w", rel, backendType, err)
		}
	}
	return files, nil
}

// objectKey joins folder and the relative filename into a remote key.
func objectKey(accessInfo map[string]string) string {
	return path.Join(accessInfo["folder"], accessInfo["filename"])
}
