package gcp

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/Lllllllleong/dataroomindexer/internal/models"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// FirestoreStatusRecorder keeps one status document per Drive file, keyed by docId.
type FirestoreStatusRecorder struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreStatusRecorder records statuses into the given collection.
func NewFirestoreStatusRecorder(client *firestore.Client, collection string) *FirestoreStatusRecorder {
	return &FirestoreStatusRecorder{client: client, collection: collection}
}

// RecordStatus replaces the document's tracking entry with status.
func (r *FirestoreStatusRecorder) RecordStatus(ctx context.Context, status models.DocumentStatus) error {
	if status.DocID == "" {
		return fmt.Errorf("status has empty docId")
	}
	if status.UpdatedAt.IsZero() {
		status.UpdatedAt = time.Now()
	}
	_, err := r.client.Collection(r.collection).Doc(status.DocID).Set(ctx, status)
	if err != nil {
		return fmt.Errorf("failed to record status for %s: %w", status.DocID, err)
	}
	return nil
}

// Close releases the underlying client.
func (r *FirestoreStatusRecorder) Close() error {
	return r.client.Close()
}
