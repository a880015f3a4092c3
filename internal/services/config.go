package services

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Lllllllleong/dataroomindexer/internal/gcp"
)

// IndexerConfig holds all configuration for the indexing pipeline.
type IndexerConfig struct {
	ProjectID              string  `yaml:"project_id"`
	VertexAIRegion         string  `yaml:"vertex_region"`
	PageModel              string  `yaml:"page_model"`
	DocumentModel          string  `yaml:"document_model"`
	CredentialsPath        string  `yaml:"credentials_path"`
	FolderID               string  `yaml:"folder_id"`
	WorkingDir             string  `yaml:"working_dir"`
	PdftoppmPath           string  `yaml:"pdftoppm_path"`
	PDFDPI                 int     `yaml:"pdf_dpi"`
	MaxParallelDocuments   int     `yaml:"max_parallel_documents"`
	MaxParallelPages       int     `yaml:"max_parallel_pages"`
	CallTimeoutSeconds     int     `yaml:"call_timeout_seconds"`
	DriveRequestsPerSecond float64 `yaml:"drive_requests_per_second"`
	SkipExisting           bool    `yaml:"skip_existing"`

	// Optional cloud hand-off.
	FirestoreCollection string `yaml:"firestore_collection"`
	IndexBucket         string `yaml:"index_bucket"`
	WorkflowID          string `yaml:"workflow_id"`
	WorkflowLocation    string `yaml:"workflow_location"`
}

// DefaultIndexerConfig returns the built-in defaults.
func DefaultIndexerConfig() IndexerConfig {
	return IndexerConfig{
		VertexAIRegion:         "us-central1",
		PageModel:              "gemini-1.5-pro",
		DocumentModel:          "gemini-1.5-pro",
		WorkingDir:             "./data_room_processing",
		PDFDPI:                 200,
		MaxParallelDocuments:   4,
		MaxParallelPages:       4,
		CallTimeoutSeconds:     120,
		DriveRequestsPerSecond: 8,
		WorkflowLocation:       "us-central1",
	}
}

// LoadIndexerConfig applies defaults, then the YAML file at path (if non-empty),
// then environment variables, and validates the result.
func LoadIndexerConfig(path string) (*IndexerConfig, error) {
	cfg := DefaultIndexerConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *IndexerConfig) applyEnv() error {
	c.ProjectID = gcp.GetEnv("PROJECT_ID", c.ProjectID)
	c.VertexAIRegion = gcp.GetEnv("VERTEX_AI_REGION", c.VertexAIRegion)
	c.PageModel = gcp.GetEnv("PAGE_MODEL", c.PageModel)
	c.DocumentModel = gcp.GetEnv("DOCUMENT_MODEL", c.DocumentModel)
	c.CredentialsPath = gcp.GetEnv("GOOGLE_CREDENTIALS_PATH", c.CredentialsPath)
	c.FolderID = gcp.GetEnv("GOOGLE_DRIVE_FOLDER_ID", c.FolderID)
	c.WorkingDir = gcp.GetEnv("WORKING_DIR", c.WorkingDir)
	c.PdftoppmPath = gcp.GetEnv("PDFTOPPM_PATH", c.PdftoppmPath)
	c.FirestoreCollection = gcp.GetEnv("FIRESTORE_COLLECTION", c.FirestoreCollection)
	c.IndexBucket = gcp.GetEnv("INDEX_BUCKET", c.IndexBucket)
	c.WorkflowID = gcp.GetEnv("WORKFLOW_ID", c.WorkflowID)
	c.WorkflowLocation = gcp.GetEnv("WORKFLOW_LOCATION", c.WorkflowLocation)

	var errs []error
	intVar := func(key string, dst *int) {
		raw, ok := os.LookupEnv(key)
		if !ok {
			return
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s must be an integer: %w", key, err))
			return
		}
		*dst = v
	}
	intVar("PDF_DPI", &c.PDFDPI)
	intVar("MAX_PARALLEL_DOCUMENTS", &c.MaxParallelDocuments)
	intVar("MAX_PARALLEL_PAGES", &c.MaxParallelPages)
	intVar("CALL_TIMEOUT_SECONDS", &c.CallTimeoutSeconds)

	if raw, ok := os.LookupEnv("DRIVE_REQUESTS_PER_SECOND"); ok {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("DRIVE_REQUESTS_PER_SECOND must be a number: %w", err))
		} else {
			c.DriveRequestsPerSecond = v
		}
	}
	if raw, ok := os.LookupEnv("SKIP_EXISTING"); ok {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("SKIP_EXISTING must be a boolean: %w", err))
		} else {
			c.SkipExisting = v
		}
	}
	return errors.Join(errs...)
}

// Validate checks value ranges. It does not require cloud settings; those are
// checked when the corresponding clients are built.
func (c *IndexerConfig) Validate() error {
	var errs []error
	if c.WorkingDir == "" {
		errs = append(errs, errors.New("working_dir must be set"))
	}
	if c.PDFDPI < 72 || c.PDFDPI > 600 {
		errs = append(errs, fmt.Errorf("pdf_dpi must be between 72 and 600, got %d", c.PDFDPI))
	}
	if c.MaxParallelDocuments < 1 || c.MaxParallelDocuments > 20 {
		errs = append(errs, fmt.Errorf("max_parallel_documents must be between 1 and 20, got %d", c.MaxParallelDocuments))
	}
	if c.MaxParallelPages < 1 || c.MaxParallelPages > 20 {
		errs = append(errs, fmt.Errorf("max_parallel_pages must be between 1 and 20, got %d", c.MaxParallelPages))
	}
	if c.CallTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("call_timeout_seconds must be positive, got %d", c.CallTimeoutSeconds))
	}
	if c.DriveRequestsPerSecond <= 0 {
		errs = append(errs, fmt.Errorf("drive_requests_per_second must be positive, got %v", c.DriveRequestsPerSecond))
	}
	return errors.Join(errs...)
}

// CallTimeout is the deadline applied to each external call.
func (c *IndexerConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSeconds) * time.Second
}
