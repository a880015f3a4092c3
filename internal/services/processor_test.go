package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/dataroomindexer/internal/gcp"
	"github.com/Lllllllleong/dataroomindexer/internal/models"
	"github.com/Lllllllleong/dataroomindexer/internal/store"
	"github.com/Lllllllleong/dataroomindexer/internal/testutil"
)

func TestProcessTwoPageContract(t *testing.T) {
	f := newProcessorFixture(t.TempDir())
	desc := f.drive.add("F1", "Contract A.pdf", gcp.MimeTypePDF, 2)
	f.pages.texts = map[int]string{1: "Page one text", 2: "Page two text"}
	f.documents.summary = "A two-page contract."

	rec, err := f.processor(ProcessorOptions{MaxParallelPages: 2}).Process(context.Background(), desc)
	require.NoError(t, err)

	assert.Equal(t, "F1", rec.DocID)
	assert.Equal(t, 2, rec.TotalPages)
	assert.Equal(t, "A two-page contract.", rec.DocumentSummary)
	assert.Equal(t, []models.PageSummary{
		{PageNumber: 1, SummaryText: "Page one text"},
		{PageNumber: 2, SummaryText: "Page two text"},
	}, rec.Pages)
	assert.Equal(t, []string{"F1"}, f.drive.downloads)

	// Sidecar, source and page images live in the document directory.
	loaded, err := store.LoadAll(f.root)
	require.NoError(t, err)
	require.Contains(t, loaded, "F1")
	assert.Equal(t, 2, loaded["F1"].TotalPages)
	assert.Equal(t, rec.StorageLocation, loaded["F1"].StorageLocation)

	_, err = os.Stat(store.SourcePath(rec.StorageLocation))
	assert.NoError(t, err)
	for page := 1; page <= 2; page++ {
		_, err := os.Stat(store.PageImagePath(rec, page))
		assert.NoError(t, err)
	}
}

func TestProcessUnsupportedTypeCreatesNothing(t *testing.T) {
	f := newProcessorFixture(t.TempDir())
	desc := models.RemoteFileDescriptor{ID: "V1", Name: "walkthrough.mp4", MimeType: "video/mp4"}

	rec, err := f.processor(ProcessorOptions{}).Process(context.Background(), desc)
	assert.Nil(t, rec)
	assert.Equal(t, ReasonUnsupportedType, FailureReasonOf(err))

	entries, err := os.ReadDir(f.root)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, f.drive.downloads)
	assert.Empty(t, f.drive.exports)
}

func TestProcessExportsWorkspaceTypes(t *testing.T) {
	for _, mimeType := range []string{gcp.MimeTypeGoogleDoc, gcp.MimeTypeGoogleSheet, gcp.MimeTypeGoogleSlides} {
		t.Run(mimeType, func(t *testing.T) {
			f := newProcessorFixture(t.TempDir())
			desc := f.drive.add("G1", "Board minutes", mimeType, 1)

			rec, err := f.processor(ProcessorOptions{}).Process(context.Background(), desc)
			require.NoError(t, err)
			assert.Equal(t, mimeType, rec.MimeType)
			assert.Equal(t, []string{"G1->" + gcp.MimeTypePDF}, f.drive.exports)
			assert.Empty(t, f.drive.downloads)
		})
	}
}

func TestProcessFailures(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(f *processorFixture) models.RemoteFileDescriptor
		reason FailureReason
	}{
		{
			name: "acquisition",
			setup: func(f *processorFixture) models.RemoteFileDescriptor {
				desc := f.drive.add("F1", "a.pdf", gcp.MimeTypePDF, 1)
				f.drive.fail["F1"] = true
				return desc
			},
			reason: ReasonAcquisitionFailed,
		},
		{
			name: "corrupt source",
			setup: func(f *processorFixture) models.RemoteFileDescriptor {
				desc := f.drive.add("F1", "a.pdf", gcp.MimeTypePDF, 1)
				f.drive.files["F1"] = []byte("not a pdf at all")
				return desc
			},
			reason: ReasonRasterizationFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newProcessorFixture(t.TempDir())
			desc := tt.setup(f)
			recorder := &fakeStatusRecorder{}

			rec, err := f.processor(ProcessorOptions{Status: recorder}).Process(context.Background(), desc)
			assert.Nil(t, rec)
			require.Error(t, err)
			assert.Equal(t, tt.reason, FailureReasonOf(err))

			var perr *ProcessingError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, "F1", perr.DocID)
			assert.Equal(t, "a.pdf", perr.FileName)

			last := recorder.last("F1")
			assert.Equal(t, models.StatusFailed, last.Status)
			assert.Contains(t, last.ErrorDetails, string(tt.reason))

			loaded, err := store.LoadAll(f.root)
			require.NoError(t, err)
			assert.Empty(t, loaded, "a failed document produces no record")
		})
	}
}

func TestProcessPersistenceFailure(t *testing.T) {
	// A regular file where the working root should be makes every write fail.
	root := filepath.Join(t.TempDir(), "root")
	require.NoError(t, os.WriteFile(root, []byte("x"), 0o644))

	f := newProcessorFixture(root)
	desc := f.drive.add("F1", "a.pdf", gcp.MimeTypePDF, 1)

	_, err := f.processor(ProcessorOptions{}).Process(context.Background(), desc)
	assert.Equal(t, ReasonPersistenceFailed, FailureReasonOf(err))
}

func TestProcessDegradedPageContinues(t *testing.T) {
	f := newProcessorFixture(t.TempDir())
	desc := f.drive.add("F1", "a.pdf", gcp.MimeTypePDF, 3)
	f.pages.texts = map[int]string{2: DegradedPageSummary(2)}
	recorder := &fakeStatusRecorder{}

	rec, err := f.processor(ProcessorOptions{Status: recorder}).Process(context.Background(), desc)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.TotalPages)
	assert.Equal(t, "Error processing page 2", rec.Pages[1].SummaryText)

	last := recorder.last("F1")
	assert.Equal(t, models.StatusIndexed, last.Status)
	assert.Equal(t, 1, last.DegradedPages)
	assert.Equal(t, 3, last.PageCount)
	assert.Len(t, last.FileHash, 64)
}

func TestProcessPreservesPageOrderUnderConcurrency(t *testing.T) {
	f := newProcessorFixture(t.TempDir())
	desc := f.drive.add("F1", "long.pdf", gcp.MimeTypePDF, 12)
	f.pages.delay = true

	rec, err := f.processor(ProcessorOptions{MaxParallelPages: 6}).Process(context.Background(), desc)
	require.NoError(t, err)
	require.NoError(t, rec.Validate())
	for i, p := range rec.Pages {
		assert.Equal(t, i+1, p.PageNumber)
	}

	// The document summarizer saw every page, in order.
	received := f.documents.received["long.pdf"]
	require.Len(t, received, 12)
	assert.Equal(t, rec.Pages, received)
}

func TestProcessSkipExisting(t *testing.T) {
	f := newProcessorFixture(t.TempDir())
	desc := f.drive.add("F1", "a.pdf", gcp.MimeTypePDF, 2)

	first, err := f.processor(ProcessorOptions{}).Process(context.Background(), desc)
	require.NoError(t, err)

	// Acquisition would now fail, so a second success proves the record was reused.
	f.drive.fail["F1"] = true
	second, err := f.processor(ProcessorOptions{SkipExisting: true}).Process(context.Background(), desc)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, f.drive.downloads, 1)
}

func TestProcessReprocessWithFewerPages(t *testing.T) {
	f := newProcessorFixture(t.TempDir())
	desc := f.drive.add("F1", "Contract A.pdf", gcp.MimeTypePDF, 3)

	_, err := f.processor(ProcessorOptions{}).Process(context.Background(), desc)
	require.NoError(t, err)

	// The source in Drive was replaced by a shorter revision.
	f.drive.files["F1"] = testutil.MinimalPDF(2)
	rec, err := f.processor(ProcessorOptions{}).Process(context.Background(), desc)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.TotalPages)

	entries, err := os.ReadDir(store.PagesDir(rec.StorageLocation))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"page_0001.png", "page_0002.png"}, names)
}

func TestProcessArchivesSourceByHash(t *testing.T) {
	f := newProcessorFixture(t.TempDir())
	desc := f.drive.add("F1", "a.pdf", gcp.MimeTypePDF, 1)
	publisher := &fakePublisher{}

	_, err := f.processor(ProcessorOptions{Archive: publisher}).Process(context.Background(), desc)
	require.NoError(t, err)
	require.Len(t, publisher.archived, 1)
	assert.Equal(t, hashBytes(f.drive.files["F1"]), publisher.archived[0])
}

func TestRunIDContext(t *testing.T) {
	assert.Equal(t, "", RunIDFromContext(context.Background()))
	assert.Equal(t, "run-1", RunIDFromContext(WithRunID(context.Background(), "run-1")))
}
