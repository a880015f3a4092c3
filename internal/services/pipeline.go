package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Lllllllleong/dataroomindexer/internal/gcp"
	"github.com/Lllllllleong/dataroomindexer/internal/rasterizer"
	"github.com/Lllllllleong/dataroomindexer/internal/store"
)

// Pipeline bundles an indexer with the clients it owns.
type Pipeline struct {
	Indexer   *FolderIndexer
	Processor *DocumentProcessor
	Store     *store.Store
	config    IndexerConfig
	closers   []func() error
}

// NewPipeline creates every client named by cfg and wires them together.
// Cloud hand-off components are only created when their settings are present.
func NewPipeline(ctx context.Context, cfg *IndexerConfig) (*Pipeline, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}

	p := &Pipeline{Store: store.New(cfg.WorkingDir), config: *cfg}

	limiter := gcp.NewRateLimiter(cfg.DriveRequestsPerSecond, 0)
	driveClient, err := gcp.NewDriveClient(ctx, cfg.CredentialsPath, limiter)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive client: %w", err)
	}

	vertexClient, err := gcp.NewVertexClient(ctx, gcp.VertexConfig{
		ProjectID:     cfg.ProjectID,
		Region:        cfg.VertexAIRegion,
		PageModel:     cfg.PageModel,
		DocumentModel: cfg.DocumentModel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex client: %w", err)
	}
	p.closers = append(p.closers, vertexClient.Close)

	procOpts := ProcessorOptions{
		MaxParallelPages: cfg.MaxParallelPages,
		CallTimeout:      cfg.CallTimeout(),
		SkipExisting:     cfg.SkipExisting,
	}
	idxOpts := IndexerOptions{
		WorkingRoot:          cfg.WorkingDir,
		MaxParallelDocuments: cfg.MaxParallelDocuments,
	}

	if cfg.FirestoreCollection != "" {
		firestoreClient, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID)
		if err != nil {
			p.Close()
			return nil, err
		}
		recorder := gcp.NewFirestoreStatusRecorder(firestoreClient, cfg.FirestoreCollection)
		p.closers = append(p.closers, recorder.Close)
		procOpts.Status = recorder
	}

	if cfg.IndexBucket != "" {
		publisher, err := gcp.NewGCSPublisher(ctx, cfg.IndexBucket)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.closers = append(p.closers, publisher.Close)
		procOpts.Archive = publisher
		idxOpts.Publisher = publisher
	}

	if cfg.WorkflowID != "" {
		handoff, err := gcp.NewWorkflowHandoff(ctx, cfg.ProjectID, cfg.WorkflowLocation, cfg.WorkflowID)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.closers = append(p.closers, handoff.Close)
		idxOpts.Handoff = handoff
	}

	p.Processor = NewDocumentProcessor(
		driveClient,
		rasterizer.New(cfg.PDFDPI, rasterizer.NewPdftoppmRenderer(cfg.PdftoppmPath)),
		NewVertexPageSummarizer(vertexClient.PageSummarizerModel, cfg.CallTimeout()),
		NewVertexDocumentSummarizer(vertexClient.DocumentSummarizerModel, cfg.CallTimeout()),
		p.Store,
		procOpts,
	)
	p.Indexer = NewFolderIndexer(driveClient, p.Processor, idxOpts)

	slog.Info("Indexing pipeline initialized.",
		"workingDir", cfg.WorkingDir,
		"pdfDpi", cfg.PDFDPI,
		"maxParallelDocuments", cfg.MaxParallelDocuments,
		"maxParallelPages", cfg.MaxParallelPages,
		"statusTracking", procOpts.Status != nil,
		"indexBucket", cfg.IndexBucket,
		"workflowId", cfg.WorkflowID,
	)
	return p, nil
}

// NewPipelineFromEnv builds a pipeline for a cloud function. The optional
// INDEXER_CONFIG file is applied before the environment, and the working
// directory defaults to the instance's temp dir, the only writable location.
func NewPipelineFromEnv(ctx context.Context) (*Pipeline, error) {
	cfg, err := LoadIndexerConfig(gcp.GetEnv("INDEXER_CONFIG", ""))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if _, ok := os.LookupEnv("WORKING_DIR"); !ok {
		cfg.WorkingDir = filepath.Join(os.TempDir(), "data_room_processing")
	}
	return NewPipeline(ctx, cfg)
}

// Config returns the configuration the pipeline was built from.
func (p *Pipeline) Config() IndexerConfig { return p.config }

// Close releases every client the pipeline created.
func (p *Pipeline) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		errs = append(errs, p.closers[i]())
	}
	p.closers = nil
	return errors.Join(errs...)
}
