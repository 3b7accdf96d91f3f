package writerbackends

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"

	"vidshape/logger"
	"vidshape/output"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// serviceAccountJSON accepts the key as base64 or as raw JSON.
func serviceAccountJSON(raw string) []byte {
	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil {
		return decoded
	}
	return []byte(raw)
}

// UploadToGCSWithJSON uploads content to bucket/folder/filename using a
// service account key.
func UploadToGCSWithJSON(ctx context.Context, accessInfo map[string]string, reader io.Reader) error {
	bucketName := accessInfo["bucket"]
	objectName := objectKey(accessInfo)
	if bucketName == "" || objectName == "" {
		return fmt.Errorf("missing bucket or object name")
	}

	client, err := storage.NewClient(ctx, option.WithCredentialsJSON(serviceAccountJSON(accessInfo["serviceAccountJSON"])))
	if err != nil {
		return fmt.Errorf("storage.NewClient: %w", err)
	}
	defer client.Close()

	wc := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = output.ContentType(objectName)

	if _, err = io.Copy(wc, reader); err != nil {
		wc.Close()
		return fmt.Errorf("io.Copy: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("Writer.Close: %w", err)
	}

	logger.Debugf("Uploaded object '%s' to bucket '%s'", objectName, bucketName)
	return nil
}
