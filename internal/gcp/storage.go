package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// SaveToGCSAtomically writes content to a GCS object only if it doesn't already exist.
func SaveToGCSAtomically(ctx context.Context, bucket *storage.BucketHandle, objectName string, content []byte) error {
	writer := bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)

	if _, err := io.Copy(writer, bytes.NewReader(content)); err != nil {
		_ = writer.Close()
		if isPreconditionFailed(err) {
			slog.Info("Object already exists, skipping.", "gcsObject", objectName)
			return nil
		}
		return fmt.Errorf("failed to write to GCS: %w", err)
	}

	// The precondition is usually only reported when the upload is finalized.
	if err := writer.Close(); err != nil {
		if isPreconditionFailed(err) {
			slog.Info("Object already exists, skipping.", "gcsObject", objectName)
			return nil
		}
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

// WriteToGCS overwrites objectName with content.
func WriteToGCS(ctx context.Context, bucket *storage.BucketHandle, objectName, contentType string, content []byte) error {
	writer := bucket.Object(objectName).NewWriter(ctx)
	writer.ContentType = contentType
	if _, err := io.Copy(writer, bytes.NewReader(content)); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}

// GCSPublisher mirrors indexing artifacts into a bucket.
type GCSPublisher struct {
	client *storage.Client
	bucket string
}

// NewGCSPublisher creates a publisher writing into bucket.
func NewGCSPublisher(ctx context.Context, bucket string) (*GCSPublisher, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket must be provided to create a GCS publisher")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSPublisher{client: client, bucket: bucket}, nil
}

// ArchiveSource stores acquired source bytes under their content hash.
// Identical content is written once.
func (p *GCSPublisher) ArchiveSource(ctx context.Context, fileHash string, content []byte) (string, error) {
	objectName := fmt.Sprintf("sources/%s.pdf", fileHash)
	if err := SaveToGCSAtomically(ctx, p.client.Bucket(p.bucket), objectName, content); err != nil {
		return "", err
	}
	return fmt.Sprintf("gs://%s/%s", p.bucket, objectName), nil
}

// PublishIndex writes the rendered index for a run, overwriting any previous copy.
func (p *GCSPublisher) PublishIndex(ctx context.Context, runID, indexText string) (string, error) {
	objectName := fmt.Sprintf("indexes/%s/data_room_index.txt", runID)
	if err := WriteToGCS(ctx, p.client.Bucket(p.bucket), objectName, "text/plain; charset=utf-8", []byte(indexText)); err != nil {
		return "", err
	}
	return fmt.Sprintf("gs://%s/%s", p.bucket, objectName), nil
}

// Close releases the underlying client.
func (p *GCSPublisher) Close() error {
	return p.client.Close()
}
