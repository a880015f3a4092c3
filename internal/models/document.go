package models

import (
	"fmt"
	"time"
)

// RemoteFileDescriptor identifies one source document in a Drive folder listing.
type RemoteFileDescriptor struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	MimeType  string `json:"mimeType"`
	SizeBytes *int64 `json:"sizeBytes,omitempty"`
}

// PageSummary is the model's description of a single rasterized page.
type PageSummary struct {
	PageNumber  int    `json:"page_num"`
	SummaryText string `json:"summary"`
}

// DocumentRecord is the persisted result of indexing one source document.
// StorageLocation is derived from where the sidecar was found and is never serialized.
type DocumentRecord struct {
	DocID           string        `json:"doc_id"`
	FileName        string        `json:"file_name"`
	MimeType        string        `json:"mime_type"`
	TotalPages      int           `json:"total_pages"`
	DocumentSummary string        `json:"document_summary"`
	Pages           []PageSummary `json:"pages"`
	StorageLocation string        `json:"-"`
}

// NewDocumentRecord builds a record from an ordered page sequence and checks its invariants.
func NewDocumentRecord(desc RemoteFileDescriptor, documentSummary string, pages []PageSummary, location string) (*DocumentRecord, error) {
	rec := &DocumentRecord{
		DocID:           desc.ID,
		FileName:        desc.Name,
		MimeType:        desc.MimeType,
		TotalPages:      len(pages),
		DocumentSummary: documentSummary,
		Pages:           pages,
		StorageLocation: location,
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

// Validate enforces totalPages == len(pages) and contiguous 1-based page numbers.
func (r *DocumentRecord) Validate() error {
	if r.DocID == "" {
		return fmt.Errorf("document record has empty doc_id")
	}
	if r.TotalPages != len(r.Pages) {
		return fmt.Errorf("document %s: total_pages %d does not match %d pages", r.DocID, r.TotalPages, len(r.Pages))
	}
	for i, p := range r.Pages {
		if p.PageNumber != i+1 {
			return fmt.Errorf("document %s: page at position %d has number %d", r.DocID, i, p.PageNumber)
		}
	}
	return nil
}

// Document status values tracked in Firestore.
const (
	StatusProcessing = "PROCESSING"
	StatusIndexed    = "INDEXED"
	StatusFailed     = "FAILED"
)

// DocumentStatus is the per-document tracking entry written to Firestore during a run.
type DocumentStatus struct {
	DocID         string    `firestore:"docId,omitempty"`
	FileName      string    `firestore:"fileName,omitempty"`
	MimeType      string    `firestore:"mimeType,omitempty"`
	FileHash      string    `firestore:"fileHash,omitempty"`
	Status        string    `firestore:"status,omitempty"`
	ErrorDetails  string    `firestore:"errorDetails,omitempty"`
	PageCount     int       `firestore:"pageCount,omitempty"`
	DegradedPages int       `firestore:"degradedPages,omitempty"`
	RunID         string    `firestore:"runId,omitempty"` // For traceability
	UpdatedAt     time.Time `firestore:"updatedAt,omitempty"`
}
