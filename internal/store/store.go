// Package store persists DocumentRecords as JSON sidecars, one directory per document.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/Lllllllleong/dataroomindexer/internal/models"
	"github.com/Lllllllleong/dataroomindexer/internal/rasterizer"
)

const (
	// SidecarFileName is the record file inside each document directory.
	SidecarFileName = "document_record.json"
	// PagesDirName holds the rasterized page images.
	PagesDirName = "pages"
)

var (
	ErrMalformedRecord  = errors.New("malformed document record")
	ErrDocumentNotFound = errors.New("document not found")
)

// Store owns the on-disk layout under a working root.
type Store struct {
	root string
}

// New creates a store rooted at root. The directory is created lazily.
func New(root string) *Store {
	return &Store{root: root}
}

// Root returns the working root directory.
func (s *Store) Root() string { return s.root }

// DocumentDir returns the directory that holds everything for desc.
func (s *Store) DocumentDir(desc models.RemoteFileDescriptor) string {
	return filepath.Join(s.root, DirName(desc.Name, desc.ID))
}

// SourcePath is where the acquired PDF bytes of a document directory are kept.
func SourcePath(docDir string) string {
	return filepath.Join(docDir, filepath.Base(docDir)+".pdf")
}

// PagesDir is where page images of a document directory are rendered.
func PagesDir(docDir string) string {
	return filepath.Join(docDir, PagesDirName)
}

// PageImagePath locates the image of a 1-based page of a loaded record.
func PageImagePath(rec *models.DocumentRecord, page int) string {
	width := len(strconv.Itoa(rec.TotalPages))
	return filepath.Join(PagesDir(rec.StorageLocation), rasterizer.PageFileName(page, width))
}

// WriteSource stores the acquired source bytes, creating the directory if needed.
func (s *Store) WriteSource(docDir string, data []byte) (string, error) {
	if err := os.MkdirAll(docDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create document directory %s: %w", docDir, err)
	}
	path := SourcePath(docDir)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write source %s: %w", path, err)
	}
	return path, nil
}

// Persist writes rec's sidecar into rec.StorageLocation. The file is written to
// a temporary name and renamed into place so readers never see partial JSON.
// Persisting the same record again overwrites the sidecar.
func (s *Store) Persist(rec *models.DocumentRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("refusing to persist invalid record: %w", err)
	}
	dir := rec.StorageLocation
	if dir == "" {
		return fmt.Errorf("document %s has no storage location", rec.DocID)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create document directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", rec.DocID, err)
	}

	tmp, err := os.CreateTemp(dir, "."+SidecarFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp sidecar: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write sidecar: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync sidecar: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close sidecar: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, SidecarFileName)); err != nil {
		return fmt.Errorf("failed to move sidecar into place: %w", err)
	}
	return nil
}

// Load reads the sidecar in docDir. StorageLocation is set to docDir.
func Load(docDir string) (*models.DocumentRecord, error) {
	data, err := os.ReadFile(filepath.Join(docDir, SidecarFileName))
	if err != nil {
		return nil, err
	}
	var rec models.DocumentRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	rec.StorageLocation = docDir
	return &rec, nil
}

// LoadExisting returns the persisted record for desc, or ErrDocumentNotFound
// when no valid sidecar with the same docId exists at its directory.
func (s *Store) LoadExisting(desc models.RemoteFileDescriptor) (*models.DocumentRecord, error) {
	rec, err := Load(s.DocumentDir(desc))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	if rec.DocID != desc.ID {
		return nil, ErrDocumentNotFound
	}
	return rec, nil
}

// LoadAll scans the immediate subdirectories of the store root.
func (s *Store) LoadAll() (map[string]*models.DocumentRecord, error) {
	return LoadAll(s.root)
}

// LoadAll scans the immediate subdirectories of root for sidecars and returns
// the records keyed by docId. Malformed sidecars are logged and skipped.
// A missing root yields an empty map.
func LoadAll(root string) (map[string]*models.DocumentRecord, error) {
	records := make(map[string]*models.DocumentRecord)

	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Warn("Working directory not found.", "path", root)
			return records, nil
		}
		return nil, fmt.Errorf("failed to read working directory %s: %w", root, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		docDir := filepath.Join(root, entry.Name())
		rec, err := Load(docDir)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				slog.Warn("Skipping unreadable document record.", "path", docDir, "error", err)
			}
			continue
		}
		if existing, ok := records[rec.DocID]; ok {
			slog.Warn("Duplicate docId in working directory, keeping first.", "docId", rec.DocID, "kept", existing.StorageLocation, "ignored", docDir)
			continue
		}
		records[rec.DocID] = rec
	}

	slog.Info("Loaded document records.", "count", len(records), "root", root)
	return records, nil
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// DirName derives a filesystem-safe, collision-free directory name from a
// display name and its Drive id.
func DirName(fileName, docID string) string {
	name := sanitize(fileName, 100)
	if name == "" {
		name = "document"
	}
	id := sanitize(docID, 64)
	if id == "" {
		return name
	}
	return name + "__" + id
}

func sanitize(s string, maxLength int) string {
	sanitized := unsafeNameChars.ReplaceAllString(s, "_")
	sanitized = strings.Trim(sanitized, "_.")
	if len(sanitized) > maxLength {
		sanitized = strings.Trim(sanitized[:maxLength], "_.")
	}
	return sanitized
}
