// Package rasterizer turns PDF bytes into one PNG image per page.
package rasterizer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// DefaultDPI balances legibility for the vision model against image size.
const DefaultDPI = 200

// ErrRasterizationFailed is returned whenever no page images could be produced.
var ErrRasterizationFailed = errors.New("rasterization failed")

// PageRenderer renders a single 1-based page of a PDF file to a PNG at outPath.
type PageRenderer interface {
	RenderPage(ctx context.Context, pdfPath string, page, dpi int, outPath string) error
}

// Rasterizer validates a PDF with pdfcpu and renders each page through a PageRenderer.
type Rasterizer struct {
	dpi      int
	renderer PageRenderer
}

// New creates a Rasterizer. A non-positive dpi selects DefaultDPI.
func New(dpi int, renderer PageRenderer) *Rasterizer {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	if renderer == nil {
		renderer = NewPdftoppmRenderer("")
	}
	return &Rasterizer{dpi: dpi, renderer: renderer}
}

// DPI returns the resolution pages are rendered at.
func (r *Rasterizer) DPI() int { return r.dpi }

// Rasterize writes page images into targetDir and returns their paths in page order.
// Page images already in targetDir are replaced.
// On any failure it returns nil and an error wrapping ErrRasterizationFailed;
// no partially rendered pages are left behind.
func (r *Rasterizer) Rasterize(ctx context.Context, source []byte, targetDir string) (paths []string, err error) {
	defer func() {
		// pdfcpu can panic on sufficiently broken input.
		if rec := recover(); rec != nil {
			removeAll(paths)
			paths, err = nil, fmt.Errorf("%w: panic while reading PDF: %v", ErrRasterizationFailed, rec)
		}
	}()

	optimized, pageCount, err := prepare(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRasterizationFailed, err)
	}
	if pageCount == 0 {
		return nil, fmt.Errorf("%w: document has no pages", ErrRasterizationFailed)
	}

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", ErrRasterizationFailed, targetDir, err)
	}
	if err := clearPages(targetDir); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRasterizationFailed, err)
	}

	tmp, err := os.CreateTemp(targetDir, ".source-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("%w: create temp file: %w", ErrRasterizationFailed, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(optimized); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("%w: write temp file: %w", ErrRasterizationFailed, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("%w: close temp file: %w", ErrRasterizationFailed, err)
	}

	width := padWidth(pageCount)
	paths = make([]string, 0, pageCount)
	for page := 1; page <= pageCount; page++ {
		outPath := filepath.Join(targetDir, PageFileName(page, width))
		if err := r.renderer.RenderPage(ctx, tmp.Name(), page, r.dpi, outPath); err != nil {
			removeAll(paths)
			return nil, fmt.Errorf("%w: page %d: %w", ErrRasterizationFailed, page, err)
		}
		paths = append(paths, outPath)
		slog.Debug("Rendered page.", "page", page, "path", outPath)
	}
	return paths, nil
}

// prepare validates and optimizes the source, returning the optimized bytes and page count.
func prepare(source []byte) ([]byte, int, error) {
	if len(source) == 0 {
		return nil, 0, errors.New("empty source")
	}
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed

	var optimized bytes.Buffer
	if err := api.Optimize(bytes.NewReader(source), &optimized, cfg); err != nil {
		return nil, 0, fmt.Errorf("failed to validate/optimize PDF: %w", err)
	}
	pageCount, err := api.PageCount(bytes.NewReader(optimized.Bytes()), cfg)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get page count: %w", err)
	}
	return optimized.Bytes(), pageCount, nil
}

// PageFileName names page n so that names sort lexicographically in page order
// for every page of a document whose page count needs at most width digits.
func PageFileName(page, width int) string {
	if width < 4 {
		width = 4
	}
	return fmt.Sprintf("page_%0*d.png", width, page)
}

func padWidth(pageCount int) int {
	return len(strconv.Itoa(pageCount))
}

// clearPages removes page images left by an earlier run, so the directory only
// ever lists the pages of the current source.
func clearPages(dir string) error {
	stale, err := filepath.Glob(filepath.Join(dir, "page_*.png"))
	if err != nil {
		return fmt.Errorf("list existing pages in %s: %w", dir, err)
	}
	for _, p := range stale {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove stale page %s: %w", p, err)
		}
	}
	return nil
}

func removeAll(paths []string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}
