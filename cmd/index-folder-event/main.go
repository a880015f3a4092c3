package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/dataroomindexer/internal/models"
	"github.com/Lllllllleong/dataroomindexer/internal/services"
)

// folderIndexer is satisfied by *services.FolderIndexer.
type folderIndexer interface {
	BuildIndex(ctx context.Context, folderID, outputPath string) (*services.IndexResult, error)
}

var (
	indexerInstance folderIndexer
	workingRoot     string
	once            sync.Once
	initErr         error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Register the CloudEvent function for Pub/Sub "index this folder" messages.
	functions.CloudEvent("IndexFolderFromMessage", indexFolderFromMessage)
}

// main is required by the Go Functions Framework.
func main() {}

func initIndexer() {
	pipeline, err := services.NewPipelineFromEnv(context.Background())
	if err != nil {
		initErr = err
		return
	}
	indexerInstance = pipeline.Indexer
	workingRoot = pipeline.Config().WorkingDir
}

// indexFolderFromMessage runs one indexing pass. Returning an error makes
// Pub/Sub redeliver, so only run-level failures are returned.
func indexFolderFromMessage(ctx context.Context, e cloudevents.Event) error {
	once.Do(initIndexer)
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	req, err := decodeRequest(e)
	if err != nil {
		// A malformed message will never succeed; acknowledge it.
		slog.Error("Dropping malformed message", "error", err, "eventId", e.ID())
		return nil
	}

	logCtx := slog.With("folderId", req.FolderID, "eventId", e.ID())
	outputPath, err := services.ConfineOutputPath(workingRoot, req.OutputPath)
	if err != nil {
		logCtx.Error("Dropping message with rejected output path", "outputPath", req.OutputPath, "error", err)
		return nil
	}

	result, err := indexerInstance.BuildIndex(ctx, req.FolderID, outputPath)
	if err != nil {
		logCtx.Error("Indexing run failed", "error", err)
		return err
	}
	logCtx.Info("Indexing run finished.", "runId", result.Report.RunID, "indexed", result.Report.Indexed, "skipped", len(result.Report.Skipped))
	return nil
}

func decodeRequest(e cloudevents.Event) (*models.IndexFolderRequest, error) {
	var msg models.MessagePublishedData
	if err := json.Unmarshal(e.Data(), &msg); err != nil {
		return nil, fmt.Errorf("json.Unmarshal event data: %w", err)
	}
	var req models.IndexFolderRequest
	if err := json.Unmarshal(msg.Message.Data, &req); err != nil {
		return nil, fmt.Errorf("json.Unmarshal message data: %w", err)
	}
	if req.FolderID == "" {
		return nil, fmt.Errorf("message has no folderId")
	}
	return &req, nil
}
