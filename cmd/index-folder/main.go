package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

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

	functions.HTTP("HandleIndexFolder", handleIndexFolder)
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

// handleIndexFolder indexes the folder named in the JSON body and returns the index.
func handleIndexFolder(w http.ResponseWriter, r *http.Request) {
	once.Do(initIndexer)
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.IndexFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}
	if req.FolderID == "" {
		http.Error(w, "Bad Request: folderId is required", http.StatusBadRequest)
		return
	}

	outputPath, err := services.ConfineOutputPath(workingRoot, req.OutputPath)
	if err != nil {
		slog.Warn("Rejected output path.", "outputPath", req.OutputPath, "error", err)
		http.Error(w, "Bad Request: outputPath must be inside the working directory", http.StatusBadRequest)
		return
	}

	result, err := indexerInstance.BuildIndex(r.Context(), req.FolderID, outputPath)
	if err != nil {
		if errors.Is(err, services.ErrListingFailed) {
			http.Error(w, "Bad Gateway: failed to list folder", http.StatusBadGateway)
			return
		}
		if result == nil {
			http.Error(w, "Internal Server Error: indexing failed", http.StatusInternalServerError)
			return
		}
		// The index was built but could not be written; the caller still gets it.
		slog.Warn("Returning index that could not be persisted.", "error", err)
	}

	res := models.IndexFolderResponse{Status: "success", Index: result.Text, Report: result.Report}
	if err != nil {
		res.Status = "unsaved"
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
