package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/dataroomindexer/internal/models"
)

// DefaultIndexFileName is written under the working root when no output path is given.
const DefaultIndexFileName = "data_room_index.txt"

// FolderLister enumerates a Drive folder, exhausting pagination.
type FolderLister interface {
	List(ctx context.Context, folderID string) ([]models.RemoteFileDescriptor, error)
}

// DocumentRunner processes a single document. *DocumentProcessor implements it.
type DocumentRunner interface {
	Process(ctx context.Context, desc models.RemoteFileDescriptor) (*models.DocumentRecord, error)
}

// IndexPublisher mirrors the rendered index somewhere outside the working root.
type IndexPublisher interface {
	PublishIndex(ctx context.Context, runID, indexText string) (string, error)
}

// AnalysisTrigger hands a finished index to the downstream analysis.
type AnalysisTrigger interface {
	Trigger(ctx context.Context, payload models.AnalysisHandoff) (string, error)
}

// IndexerOptions tune a FolderIndexer. Publisher and Handoff are optional.
type IndexerOptions struct {
	WorkingRoot          string
	MaxParallelDocuments int
	Publisher            IndexPublisher
	Handoff              AnalysisTrigger
}

// FolderIndexer builds the data room index for a whole folder.
type FolderIndexer struct {
	lister    FolderLister
	processor DocumentRunner
	opts      IndexerOptions
}

// IndexResult is the outcome of one BuildIndex run.
type IndexResult struct {
	Text   string
	Report *models.RunReport
}

func NewFolderIndexer(lister FolderLister, processor DocumentRunner, opts IndexerOptions) *FolderIndexer {
	if opts.MaxParallelDocuments < 1 {
		opts.MaxParallelDocuments = 1
	}
	return &FolderIndexer{lister: lister, processor: processor, opts: opts}
}

type documentOutcome struct {
	record *models.DocumentRecord
	err    error
}

// BuildIndex lists folderID, processes every document, and writes the rendered
// index to outputPath (or <working root>/data_room_index.txt when empty).
// Per-document failures only exclude that document. A listing failure returns
// ErrListingFailed and no result. A write failure returns both the result and
// the error, so callers always get the index text once listing succeeded.
func (fi *FolderIndexer) BuildIndex(ctx context.Context, folderID, outputPath string) (*IndexResult, error) {
	report := &models.RunReport{
		RunID:     uuid.NewString(),
		FolderID:  folderID,
		StartedAt: time.Now(),
		Skipped:   []models.SkippedDocument{},
	}
	ctx = WithRunID(ctx, report.RunID)
	logCtx := slog.With("runId", report.RunID, "folderId", folderID)

	// Step 1: list.
	logCtx.Info("Listing folder.")
	descriptors, err := fi.lister.List(ctx, folderID)
	if err != nil {
		logCtx.Error("Failed to list folder.", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrListingFailed, err)
	}
	report.Listed = len(descriptors)
	logCtx.Info("Found files to process.", "count", len(descriptors))

	// Step 2: process with a bounded pool; outcomes stay in listing order.
	outcomes := fi.processAll(ctx, logCtx, descriptors)

	// Step 3: compile.
	entries := make([]models.IndexEntry, 0, len(descriptors))
	for i, outcome := range outcomes {
		desc := descriptors[i]
		if outcome.err != nil {
			skipped := models.SkippedDocument{
				DocID:    desc.ID,
				FileName: desc.Name,
				Reason:   string(FailureReasonOf(outcome.err)),
				Details:  outcome.err.Error(),
			}
			if skipped.Reason == "" {
				skipped.Reason = "Unknown"
			}
			report.Skipped = append(report.Skipped, skipped)
			continue
		}
		entries = append(entries, models.EntryFromRecord(outcome.record))
		report.DegradedPages += countDegradedPages(outcome.record)
	}
	report.Indexed = len(entries)

	// Step 4: render.
	indexText := models.RenderIndex(entries)

	// Step 5: persist.
	if outputPath == "" {
		outputPath = filepath.Join(fi.opts.WorkingRoot, DefaultIndexFileName)
	}
	report.OutputPath = outputPath
	result := &IndexResult{Text: indexText, Report: report}

	if err := writeIndex(outputPath, indexText); err != nil {
		report.FinishedAt = time.Now()
		logCtx.Error("Failed to write index.", "path", outputPath, "error", err)
		return result, err
	}
	logCtx.Info("Data room index saved.", "path", outputPath)

	fi.handOff(ctx, logCtx, report, indexText)

	report.FinishedAt = time.Now()
	logRunSummary(logCtx, report)
	return result, nil
}

func (fi *FolderIndexer) processAll(ctx context.Context, logCtx *slog.Logger, descriptors []models.RemoteFileDescriptor) []documentOutcome {
	outcomes := make([]documentOutcome, len(descriptors))

	var eg errgroup.Group
	eg.SetLimit(fi.opts.MaxParallelDocuments)
	for i, desc := range descriptors {
		eg.Go(func() error {
			logCtx.Info("Processing document.", "index", i+1, "total", len(descriptors), "docId", desc.ID, "fileName", desc.Name)
			rec, err := fi.processor.Process(ctx, desc)
			if err == nil && rec == nil {
				err = errors.New("processor returned no record")
			}
			outcomes[i] = documentOutcome{record: rec, err: err}
			return nil
		})
	}
	_ = eg.Wait() // per-document failures are carried in outcomes

	return outcomes
}

// handOff publishes the index and triggers analysis. Failures are logged only.
func (fi *FolderIndexer) handOff(ctx context.Context, logCtx *slog.Logger, report *models.RunReport, indexText string) {
	var indexURI string
	if fi.opts.Publisher != nil {
		uri, err := fi.opts.Publisher.PublishIndex(ctx, report.RunID, indexText)
		if err != nil {
			logCtx.Warn("Failed to publish index.", "error", err)
		} else {
			indexURI = uri
			logCtx.Info("Published index.", "gcsUri", uri)
		}
	}

	if fi.opts.Handoff != nil {
		execution, err := fi.opts.Handoff.Trigger(ctx, models.AnalysisHandoff{
			RunID:         report.RunID,
			FolderID:      report.FolderID,
			IndexPath:     report.OutputPath,
			IndexGCSUri:   indexURI,
			DocumentCount: report.Indexed,
		})
		if err != nil {
			logCtx.Warn("Failed to trigger analysis workflow.", "error", err)
		} else {
			logCtx.Info("Triggered analysis workflow.", "execution", execution)
		}
	}
}

// ConfineOutputPath resolves outputPath against root and rejects any path that
// would land outside it. Relative paths are taken relative to root; an empty
// path stays empty so BuildIndex picks the default.
func ConfineOutputPath(root, outputPath string) (string, error) {
	if outputPath == "" {
		return "", nil
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve working root %s: %w", root, err)
	}
	target := outputPath
	if !filepath.IsAbs(target) {
		target = filepath.Join(absRoot, target)
	}
	target = filepath.Clean(target)

	rel, err := filepath.Rel(absRoot, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutputOutsideRoot, outputPath)
	}
	return target, nil
}

func writeIndex(path, text string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create index directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write index %s: %w", path, err)
	}
	return nil
}

func countDegradedPages(rec *models.DocumentRecord) int {
	n := 0
	for _, p := range rec.Pages {
		if IsDegradedPageSummary(p.SummaryText, p.PageNumber) {
			n++
		}
	}
	return n
}

func logRunSummary(logCtx *slog.Logger, report *models.RunReport) {
	logCtx.Info("Indexing run complete.",
		"listed", report.Listed,
		"indexed", report.Indexed,
		"skipped", len(report.Skipped),
		"degradedPages", report.DegradedPages,
		"duration", report.FinishedAt.Sub(report.StartedAt).String(),
	)
	for _, s := range report.Skipped {
		logCtx.Warn("Document skipped.", "docId", s.DocID, "fileName", s.FileName, "reason", s.Reason)
	}
}
