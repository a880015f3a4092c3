package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Lllllllleong/dataroomindexer/internal/models"
	"github.com/Lllllllleong/dataroomindexer/internal/rasterizer"
	"github.com/Lllllllleong/dataroomindexer/internal/store"
	"github.com/Lllllllleong/dataroomindexer/internal/testutil"
)

type fakeDrive struct {
	mu        sync.Mutex
	files     map[string][]byte
	fail      map[string]bool
	listing   []models.RemoteFileDescriptor
	listErr   error
	downloads []string
	exports   []string
}

func newFakeDrive() *fakeDrive {
	return &fakeDrive{files: map[string][]byte{}, fail: map[string]bool{}}
}

// add registers a document with a PDF of the given page count.
func (d *fakeDrive) add(id, name, mimeType string, pages int) models.RemoteFileDescriptor {
	desc := models.RemoteFileDescriptor{ID: id, Name: name, MimeType: mimeType}
	d.files[id] = testutil.MinimalPDF(pages)
	d.listing = append(d.listing, desc)
	return desc
}

func (d *fakeDrive) List(_ context.Context, _ string) ([]models.RemoteFileDescriptor, error) {
	if d.listErr != nil {
		return nil, d.listErr
	}
	return d.listing, nil
}

func (d *fakeDrive) Download(_ context.Context, fileID string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.downloads = append(d.downloads, fileID)
	return d.get(fileID)
}

func (d *fakeDrive) Export(_ context.Context, fileID, targetMimeType string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.exports = append(d.exports, fileID+"->"+targetMimeType)
	return d.get(fileID)
}

func (d *fakeDrive) get(fileID string) ([]byte, error) {
	if d.fail[fileID] {
		return nil, errors.New("simulated acquisition failure")
	}
	data, ok := d.files[fileID]
	if !ok {
		return nil, fmt.Errorf("file %s not found", fileID)
	}
	return data, nil
}

// fakePageSummarizer answers from texts keyed by page number, or "Summary of page N".
type fakePageSummarizer struct {
	texts map[int]string
	// delay makes earlier pages finish later, to shake out ordering bugs.
	delay bool
}

func (s *fakePageSummarizer) SummarizePage(_ context.Context, _ string, pageNumber int) string {
	if s.delay {
		time.Sleep(time.Duration(10-pageNumber%10) * time.Millisecond)
	}
	if text, ok := s.texts[pageNumber]; ok {
		return text
	}
	return fmt.Sprintf("Summary of page %d", pageNumber)
}

type fakeDocumentSummarizer struct {
	mu       sync.Mutex
	summary  string
	received map[string][]models.PageSummary
}

func (s *fakeDocumentSummarizer) SummarizeDocument(_ context.Context, pages []models.PageSummary, documentName string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.received == nil {
		s.received = map[string][]models.PageSummary{}
	}
	s.received[documentName] = append([]models.PageSummary(nil), pages...)
	if s.summary != "" {
		return s.summary
	}
	return "Summary of " + documentName
}

type fakeStatusRecorder struct {
	mu       sync.Mutex
	statuses []models.DocumentStatus
}

func (r *fakeStatusRecorder) RecordStatus(_ context.Context, status models.DocumentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
	return nil
}

func (r *fakeStatusRecorder) last(docID string) models.DocumentStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.statuses) - 1; i >= 0; i-- {
		if r.statuses[i].DocID == docID {
			return r.statuses[i]
		}
	}
	return models.DocumentStatus{}
}

type fakePublisher struct {
	err      error
	archived []string
	indexes  map[string]string
	handoffs []models.AnalysisHandoff
}

func (p *fakePublisher) ArchiveSource(_ context.Context, fileHash string, _ []byte) (string, error) {
	p.archived = append(p.archived, fileHash)
	return "gs://bucket/sources/" + fileHash + ".pdf", p.err
}

func (p *fakePublisher) PublishIndex(_ context.Context, runID, indexText string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	if p.indexes == nil {
		p.indexes = map[string]string{}
	}
	p.indexes[runID] = indexText
	return "gs://bucket/indexes/" + runID + "/data_room_index.txt", nil
}

func (p *fakePublisher) Trigger(_ context.Context, payload models.AnalysisHandoff) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.handoffs = append(p.handoffs, payload)
	return "executions/1", nil
}

type processorFixture struct {
	root      string
	drive     *fakeDrive
	pages     *fakePageSummarizer
	documents *fakeDocumentSummarizer
	store     *store.Store
}

func newProcessorFixture(root string) *processorFixture {
	return &processorFixture{
		root:      root,
		drive:     newFakeDrive(),
		pages:     &fakePageSummarizer{},
		documents: &fakeDocumentSummarizer{},
		store:     store.New(root),
	}
}

func (f *processorFixture) processor(opts ProcessorOptions) *DocumentProcessor {
	return NewDocumentProcessor(f.drive, rasterizer.New(72, &testutil.FakeRenderer{}), f.pages, f.documents, f.store, opts)
}
