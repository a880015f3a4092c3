// Package tools exposes indexed documents to the downstream analysis agent.
package tools

import (
	"encoding/base64"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/Lllllllleong/dataroomindexer/internal/models"
	"github.com/Lllllllleong/dataroomindexer/internal/store"
)

const imagePreviewChars = 100

// DocumentTools answers lookups against the records of one working root.
type DocumentTools struct {
	store *store.Store

	mu      sync.RWMutex
	records map[string]*models.DocumentRecord
}

// NewDocumentTools loads every record under st's root.
func NewDocumentTools(st *store.Store) (*DocumentTools, error) {
	t := &DocumentTools{store: st}
	if err := t.Reload(); err != nil {
		return nil, err
	}
	return t, nil
}

// Reload rescans the working root, picking up documents indexed since the last load.
func (t *DocumentTools) Reload() error {
	records, err := t.store.LoadAll()
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.records = records
	t.mu.Unlock()
	return nil
}

// Count returns the number of loaded documents.
func (t *DocumentTools) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

func (t *DocumentTools) lookup(docID string) (*models.DocumentRecord, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[docID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrDocumentNotFound, docID)
	}
	return rec, nil
}

// GetDocument renders the metadata, document summary and every page summary.
func (t *DocumentTools) GetDocument(docID string) (string, error) {
	rec, err := t.lookup(docID)
	if err != nil {
		return "", err
	}

	parts := []string{
		"Document: " + rec.FileName,
		"Type: " + rec.MimeType,
		fmt.Sprintf("Pages: %d", rec.TotalPages),
		"\nDocument Summary:",
		rec.DocumentSummary,
		"\nPage-by-Page Summaries:",
	}
	for _, p := range rec.Pages {
		parts = append(parts, fmt.Sprintf("\nPage %d: %s", p.PageNumber, p.SummaryText))
	}
	return strings.Join(parts, "\n"), nil
}

// GetDocumentPages renders the summary and a base64 preview of each requested
// page image. Pages that do not exist are reported inline, not as an error.
func (t *DocumentTools) GetDocumentPages(docID string, pageNums []int) (string, error) {
	rec, err := t.lookup(docID)
	if err != nil {
		return "", err
	}
	pagesDir := store.PagesDir(rec.StorageLocation)
	if _, err := os.Stat(pagesDir); err != nil {
		return "", fmt.Errorf("pages directory not found for %s: %w", docID, err)
	}

	parts := []string{
		"Document: " + rec.FileName,
		fmt.Sprintf("Requested pages: %v\n", pageNums),
	}
	for _, n := range pageNums {
		if n < 1 || n > rec.TotalPages {
			parts = append(parts, fmt.Sprintf("\nPage %d: Not found", n))
			continue
		}
		data, err := os.ReadFile(store.PageImagePath(rec, n))
		if err != nil {
			if os.IsNotExist(err) {
				parts = append(parts, fmt.Sprintf("\nPage %d: Not found", n))
			} else {
				parts = append(parts, fmt.Sprintf("\nPage %d: Error reading image - %v", n, err))
			}
			continue
		}
		encoded := base64.StdEncoding.EncodeToString(data)
		previewLen := min(len(encoded), imagePreviewChars)
		parts = append(parts, fmt.Sprintf(
			"\nPage %d:\nSummary: %s\nImage (base64, first %d chars): %s...\n[Full image data: %d characters]",
			n, rec.Pages[n-1].SummaryText, imagePreviewChars, encoded[:previewLen], len(encoded),
		))
	}
	return strings.Join(parts, "\n"), nil
}

// ListDocuments renders every loaded document in index format, ordered by file name.
func (t *DocumentTools) ListDocuments() string {
	t.mu.RLock()
	records := make([]*models.DocumentRecord, 0, len(t.records))
	for _, rec := range t.records {
		records = append(records, rec)
	}
	t.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if records[i].FileName != records[j].FileName {
			return records[i].FileName < records[j].FileName
		}
		return records[i].DocID < records[j].DocID
	})

	entries := make([]models.IndexEntry, len(records))
	for i, rec := range records {
		entries[i] = models.EntryFromRecord(rec)
	}
	return models.RenderIndex(entries)
}
