package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/dataroomindexer/internal/gcp"
	"github.com/Lllllllleong/dataroomindexer/internal/models"
	"github.com/Lllllllleong/dataroomindexer/internal/store"
)

// DriveSource acquires the bytes of a remote file.
type DriveSource interface {
	Download(ctx context.Context, fileID string) ([]byte, error)
	Export(ctx context.Context, fileID, targetMimeType string) ([]byte, error)
}

// PageRasterizer turns PDF bytes into ordered page image paths.
type PageRasterizer interface {
	Rasterize(ctx context.Context, source []byte, targetDir string) ([]string, error)
}

// StatusRecorder tracks per-document progress outside the working root.
type StatusRecorder interface {
	RecordStatus(ctx context.Context, status models.DocumentStatus) error
}

// SourceArchiver keeps a copy of acquired source bytes keyed by content hash.
type SourceArchiver interface {
	ArchiveSource(ctx context.Context, fileHash string, content []byte) (string, error)
}

// ProcessorOptions tune a DocumentProcessor. Status and Archive are optional.
type ProcessorOptions struct {
	MaxParallelPages int
	CallTimeout      time.Duration
	SkipExisting     bool
	Status           StatusRecorder
	Archive          SourceArchiver
}

// DocumentProcessor turns one RemoteFileDescriptor into a persisted DocumentRecord.
type DocumentProcessor struct {
	source     DriveSource
	rasterizer PageRasterizer
	pages      PageSummarizer
	documents  DocumentSummarizer
	store      *store.Store
	opts       ProcessorOptions
}

// NewDocumentProcessor wires the collaborators of a processor.
func NewDocumentProcessor(source DriveSource, rasterizer PageRasterizer, pages PageSummarizer, documents DocumentSummarizer, st *store.Store, opts ProcessorOptions) *DocumentProcessor {
	if opts.MaxParallelPages < 1 {
		opts.MaxParallelPages = 1
	}
	return &DocumentProcessor{
		source:     source,
		rasterizer: rasterizer,
		pages:      pages,
		documents:  documents,
		store:      st,
		opts:       opts,
	}
}

// exportTargets maps the Google Workspace types that Drive can export to PDF.
var exportTargets = map[string]string{
	gcp.MimeTypeGoogleDoc:    gcp.MimeTypePDF,
	gcp.MimeTypeGoogleSheet:  gcp.MimeTypePDF,
	gcp.MimeTypeGoogleSlides: gcp.MimeTypePDF,
}

// IsSupportedMimeType reports whether Process will attempt a document of this type.
func IsSupportedMimeType(mimeType string) bool {
	if mimeType == gcp.MimeTypePDF {
		return true
	}
	_, ok := exportTargets[mimeType]
	return ok
}

// Process runs acquire, rasterize, summarize and persist for desc. Every
// failure is returned as a *ProcessingError; degraded summaries are not failures.
func (p *DocumentProcessor) Process(ctx context.Context, desc models.RemoteFileDescriptor) (*models.DocumentRecord, error) {
	logCtx := slog.With("docId", desc.ID, "fileName", desc.Name, "mimeType", desc.MimeType)

	if !IsSupportedMimeType(desc.MimeType) {
		logCtx.Warn("Unsupported file type, skipping.")
		return nil, &ProcessingError{
			Reason:   ReasonUnsupportedType,
			DocID:    desc.ID,
			FileName: desc.Name,
			Err:      fmt.Errorf("unsupported mime type %q", desc.MimeType),
		}
	}

	if p.opts.SkipExisting {
		rec, err := p.store.LoadExisting(desc)
		if err == nil {
			logCtx.Info("Reusing existing document record.", "path", rec.StorageLocation)
			return rec, nil
		}
		if !errors.Is(err, store.ErrDocumentNotFound) {
			logCtx.Warn("Existing document record unusable, reprocessing.", "error", err)
		}
	}

	status := models.DocumentStatus{
		DocID:    desc.ID,
		FileName: desc.Name,
		MimeType: desc.MimeType,
		RunID:    RunIDFromContext(ctx),
		Status:   models.StatusProcessing,
	}
	p.recordStatus(ctx, logCtx, status)

	// Step 1: acquire source bytes.
	logCtx.Info("Acquiring source.")
	data, err := p.acquire(ctx, desc)
	if err != nil {
		return nil, p.fail(ctx, logCtx, status, ReasonAcquisitionFailed, "failed to acquire source", err)
	}
	status.FileHash = hashBytes(data)
	logCtx = logCtx.With("fileHash", status.FileHash)
	p.archive(ctx, logCtx, status.FileHash, data)

	docDir := p.store.DocumentDir(desc)
	if _, err := p.store.WriteSource(docDir, data); err != nil {
		return nil, p.fail(ctx, logCtx, status, ReasonPersistenceFailed, "failed to store source", err)
	}

	// Step 2: rasterize.
	logCtx.Info("Rasterizing pages.")
	imagePaths, err := p.rasterizer.Rasterize(ctx, data, store.PagesDir(docDir))
	if err == nil && len(imagePaths) == 0 {
		err = errors.New("no pages produced")
	}
	if err != nil {
		return nil, p.fail(ctx, logCtx, status, ReasonRasterizationFailed, "failed to rasterize source", err)
	}
	status.PageCount = len(imagePaths)

	// Step 3: summarize pages.
	logCtx.Info("Summarizing pages.", "pageCount", len(imagePaths))
	pages := p.summarizePages(ctx, logCtx, imagePaths)
	for _, page := range pages {
		if IsDegradedPageSummary(page.SummaryText, page.PageNumber) {
			status.DegradedPages++
		}
	}

	// Step 4: summarize the document from pages in page order.
	logCtx.Info("Summarizing document.")
	documentSummary := p.documents.SummarizeDocument(ctx, pages, desc.Name)

	// Step 5: persist.
	rec, err := models.NewDocumentRecord(desc, documentSummary, pages, docDir)
	if err != nil {
		return nil, p.fail(ctx, logCtx, status, ReasonPersistenceFailed, "failed to build document record", err)
	}
	if err := p.store.Persist(rec); err != nil {
		return nil, p.fail(ctx, logCtx, status, ReasonPersistenceFailed, "failed to persist document record", err)
	}

	status.Status = models.StatusIndexed
	p.recordStatus(ctx, logCtx, status)
	logCtx.Info("Document processed.", "pageCount", rec.TotalPages, "degradedPages", status.DegradedPages, "path", docDir)
	return rec, nil
}

func (p *DocumentProcessor) acquire(ctx context.Context, desc models.RemoteFileDescriptor) ([]byte, error) {
	callCtx, cancel := withOptionalTimeout(ctx, p.opts.CallTimeout)
	defer cancel()

	if target, ok := exportTargets[desc.MimeType]; ok {
		return p.source.Export(callCtx, desc.ID, target)
	}
	return p.source.Download(callCtx, desc.ID)
}

// summarizePages fans out one call per page and reassembles results in page order.
func (p *DocumentProcessor) summarizePages(ctx context.Context, logCtx *slog.Logger, imagePaths []string) []models.PageSummary {
	pages := make([]models.PageSummary, len(imagePaths))

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(p.opts.MaxParallelPages)
	for i, imagePath := range imagePaths {
		pageNumber := i + 1
		eg.Go(func() error {
			summary := p.pages.SummarizePage(gctx, imagePath, pageNumber)
			pages[i] = models.PageSummary{PageNumber: pageNumber, SummaryText: summary}
			logCtx.Info("Page summarized.", "page", pageNumber, "total", len(imagePaths))
			return nil
		})
	}
	_ = eg.Wait() // summarizers never return errors

	return pages
}

func (p *DocumentProcessor) archive(ctx context.Context, logCtx *slog.Logger, fileHash string, data []byte) {
	if p.opts.Archive == nil {
		return
	}
	uri, err := p.opts.Archive.ArchiveSource(ctx, fileHash, data)
	if err != nil {
		logCtx.Warn("Failed to archive source.", "error", err)
		return
	}
	logCtx.Info("Archived source.", "gcsUri", uri)
}

func (p *DocumentProcessor) fail(ctx context.Context, logCtx *slog.Logger, status models.DocumentStatus, reason FailureReason, message string, originalErr error) error {
	logCtx.Error(message, "reason", reason, "error", originalErr)
	status.Status = models.StatusFailed
	status.ErrorDetails = fmt.Sprintf("%s: %s: %v", reason, message, originalErr)
	p.recordStatus(ctx, logCtx, status)
	return &ProcessingError{
		Reason:   reason,
		DocID:    status.DocID,
		FileName: status.FileName,
		Err:      fmt.Errorf("%s: %w", message, originalErr),
	}
}

func (p *DocumentProcessor) recordStatus(ctx context.Context, logCtx *slog.Logger, status models.DocumentStatus) {
	if p.opts.Status == nil {
		return
	}
	status.UpdatedAt = time.Now()
	if err := p.opts.Status.RecordStatus(ctx, status); err != nil {
		logCtx.Warn("Failed to record document status.", "status", status.Status, "error", err)
	}
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

type runIDKey struct{}

// WithRunID tags ctx with the identifier of the indexing run.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run identifier set by WithRunID, or "".
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
