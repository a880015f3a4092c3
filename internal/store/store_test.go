package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/dataroomindexer/internal/models"
)

func newRecord(t *testing.T, s *Store, id, name string, pages ...string) *models.DocumentRecord {
	t.Helper()
	desc := models.RemoteFileDescriptor{ID: id, Name: name, MimeType: "application/pdf"}
	summaries := make([]models.PageSummary, len(pages))
	for i, p := range pages {
		summaries[i] = models.PageSummary{PageNumber: i + 1, SummaryText: p}
	}
	rec, err := models.NewDocumentRecord(desc, "Summary of "+name, summaries, s.DocumentDir(desc))
	require.NoError(t, err)
	return rec
}

func TestPersistLoadAllRoundTrip(t *testing.T) {
	root := t.TempDir()
	s := New(root)
	rec := newRecord(t, s, "F1", "Contract A.pdf", "Page one text", "Page two text")

	require.NoError(t, s.Persist(rec))

	loaded, err := LoadAll(root)
	require.NoError(t, err)
	require.Contains(t, loaded, "F1")

	got := loaded["F1"]
	assert.Equal(t, rec, got)
	assert.Equal(t, filepath.Join(root, "Contract_A.pdf__F1"), got.StorageLocation)
	assert.Equal(t, 2, got.TotalPages)
}

func TestPersistIsIdempotent(t *testing.T) {
	root := t.TempDir()
	s := New(root)
	rec := newRecord(t, s, "F1", "Contract A.pdf", "only page")

	require.NoError(t, s.Persist(rec))
	require.NoError(t, s.Persist(rec))

	loaded, err := s.LoadAll()
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
	assert.Equal(t, rec, loaded["F1"])

	// No temp files are left behind.
	entries, err := os.ReadDir(rec.StorageLocation)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), e.Name())
	}
}

func TestSidecarExcludesStorageLocation(t *testing.T) {
	s := New(t.TempDir())
	rec := newRecord(t, s, "F1", "a.pdf", "p1")
	require.NoError(t, s.Persist(rec))

	data, err := os.ReadFile(filepath.Join(rec.StorageLocation, SidecarFileName))
	require.NoError(t, err)
	assert.NotContains(t, string(data), rec.StorageLocation)
	assert.Contains(t, string(data), `"doc_id": "F1"`)
	assert.Contains(t, string(data), `"page_num": 1`)
}

func TestLoadAllSkipsMalformed(t *testing.T) {
	root := t.TempDir()
	s := New(root)
	for _, id := range []string{"A", "B", "C"} {
		require.NoError(t, s.Persist(newRecord(t, s, id, "doc "+id, "page")))
	}

	bad := filepath.Join(root, "broken")
	require.NoError(t, os.MkdirAll(bad, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bad, SidecarFileName), []byte("{not json"), 0o644))

	inconsistent := filepath.Join(root, "inconsistent")
	require.NoError(t, os.MkdirAll(inconsistent, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(inconsistent, SidecarFileName),
		[]byte(`{"doc_id":"Z","total_pages":2,"pages":[{"page_num":1,"summary":"x"}]}`), 0o644))

	// Directories without a sidecar and stray files are ignored.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data_room_index.txt"), []byte("# Data Room Index\n"), 0o644))

	loaded, err := LoadAll(root)
	require.NoError(t, err)
	assert.Len(t, loaded, 3)
	assert.NotContains(t, loaded, "Z")
}

func TestLoadAllMissingRoot(t *testing.T) {
	loaded, err := LoadAll(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestLoadMalformedError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SidecarFileName), []byte("[]"), 0o644))
	_, err := Load(dir)
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestLoadExisting(t *testing.T) {
	s := New(t.TempDir())
	desc := models.RemoteFileDescriptor{ID: "F1", Name: "a.pdf"}

	_, err := s.LoadExisting(desc)
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	rec := newRecord(t, s, "F1", "a.pdf", "p1")
	require.NoError(t, s.Persist(rec))

	got, err := s.LoadExisting(desc)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestPersistRejectsInvalidRecord(t *testing.T) {
	s := New(t.TempDir())
	rec := &models.DocumentRecord{DocID: "F1", TotalPages: 2, StorageLocation: filepath.Join(s.Root(), "x")}
	assert.Error(t, s.Persist(rec))
}

func TestDirName(t *testing.T) {
	tests := []struct {
		name, fileName, id, want string
	}{
		{"spaces", "Contract A.pdf", "F1", "Contract_A.pdf__F1"},
		{"slashes", "Q1/Q2 report", "abc", "Q1_Q2_report__abc"},
		{"empty name", "", "F2", "document__F2"},
		{"dot dot", "..", "F3", "document__F3"},
		{"unicode", "Vertrag über Anteile", "F4", "Vertrag_ber_Anteile__F4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DirName(tt.fileName, tt.id))
		})
	}
}

func TestDirNameDistinctForCollidingNames(t *testing.T) {
	assert.NotEqual(t, DirName("Contract A.pdf", "F1"), DirName("Contract/A.pdf", "F2"))
}

func TestPathsForRecord(t *testing.T) {
	rec := &models.DocumentRecord{TotalPages: 3, StorageLocation: "/root/doc"}
	assert.Equal(t, "/root/doc/pages/page_0002.png", PageImagePath(rec, 2))
	assert.Equal(t, "/root/doc/doc.pdf", SourcePath("/root/doc"))
}
