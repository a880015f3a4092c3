package rasterizer

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/dataroomindexer/internal/testutil"
)

type recordingRenderer struct {
	testutil.FakeRenderer
	dpis []int
}

func (r *recordingRenderer) RenderPage(ctx context.Context, pdfPath string, page, dpi int, outPath string) error {
	r.dpis = append(r.dpis, dpi)
	return r.FakeRenderer.RenderPage(ctx, pdfPath, page, dpi, outPath)
}

func TestRasterizeProducesOrderedPages(t *testing.T) {
	for _, pages := range []int{1, 3, 12} {
		dir := filepath.Join(t.TempDir(), "pages")
		r := New(150, &testutil.FakeRenderer{})

		paths, err := r.Rasterize(context.Background(), testutil.MinimalPDF(pages), dir)
		require.NoError(t, err)
		require.Len(t, paths, pages)

		assert.True(t, sort.StringsAreSorted(paths), "paths must sort in page order")
		for i := 1; i < len(paths); i++ {
			assert.Less(t, paths[i-1], paths[i])
		}
		assert.Equal(t, filepath.Join(dir, "page_0001.png"), paths[0])
		for _, p := range paths {
			_, err := os.Stat(p)
			assert.NoError(t, err)
		}

		// Only page images remain in the directory.
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, pages)
	}
}

func TestRasterizeReplacesStalePages(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pages")
	r := New(200, &testutil.FakeRenderer{})

	_, err := r.Rasterize(context.Background(), testutil.MinimalPDF(3), dir)
	require.NoError(t, err)

	paths, err := r.Rasterize(context.Background(), testutil.MinimalPDF(2), dir)
	require.NoError(t, err)
	require.Len(t, paths, 2)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"page_0001.png", "page_0002.png"}, names)
}

func TestRasterizePassesDPI(t *testing.T) {
	renderer := &recordingRenderer{}
	r := New(300, renderer)
	_, err := r.Rasterize(context.Background(), testutil.MinimalPDF(2), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, []int{300, 300}, renderer.dpis)
}

func TestNewDefaultsDPI(t *testing.T) {
	assert.Equal(t, DefaultDPI, New(0, &testutil.FakeRenderer{}).DPI())
	assert.Equal(t, DefaultDPI, New(-5, &testutil.FakeRenderer{}).DPI())
}

func TestRasterizeCorruptSource(t *testing.T) {
	tests := []struct {
		name   string
		source []byte
	}{
		{name: "empty", source: nil},
		{name: "not a pdf", source: []byte("this is not a pdf")},
		{name: "truncated header", source: []byte("%PDF-1.4\n1 0 obj\n<<")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "pages")
			paths, err := New(200, &testutil.FakeRenderer{}).Rasterize(context.Background(), tt.source, dir)
			assert.Empty(t, paths)
			assert.ErrorIs(t, err, ErrRasterizationFailed)
		})
	}
}

func TestRasterizeRendererFailureLeavesNoPages(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pages")
	r := New(200, &testutil.FakeRenderer{FailOnPage: 2})

	paths, err := r.Rasterize(context.Background(), testutil.MinimalPDF(3), dir)
	assert.Nil(t, paths)
	assert.ErrorIs(t, err, ErrRasterizationFailed)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPageFileName(t *testing.T) {
	assert.Equal(t, "page_0001.png", PageFileName(1, 1))
	assert.Equal(t, "page_0042.png", PageFileName(42, 2))
	assert.Equal(t, "page_00007.png", PageFileName(7, 5))
}

func TestPdftoppmRenderer(t *testing.T) {
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		t.Skip("pdftoppm not installed")
	}
	dir := t.TempDir()
	paths, err := New(72, NewPdftoppmRenderer("")).Rasterize(context.Background(), testutil.MinimalPDF(2), dir)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}
