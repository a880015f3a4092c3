package rasterizer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// PdftoppmRenderer renders pages with poppler's pdftoppm.
type PdftoppmRenderer struct {
	binary string
}

// NewPdftoppmRenderer uses binary, or "pdftoppm" from PATH when empty.
func NewPdftoppmRenderer(binary string) *PdftoppmRenderer {
	if binary == "" {
		binary = "pdftoppm"
	}
	return &PdftoppmRenderer{binary: binary}
}

// RenderPage renders exactly one page as a lossless PNG.
func (r *PdftoppmRenderer) RenderPage(ctx context.Context, pdfPath string, page, dpi int, outPath string) error {
	n := strconv.Itoa(page)
	// -singlefile makes pdftoppm append only ".png" to the prefix.
	prefix := strings.TrimSuffix(outPath, ".png")
	cmd := exec.CommandContext(ctx, r.binary,
		"-png",
		"-r", strconv.Itoa(dpi),
		"-f", n, "-l", n,
		"-singlefile",
		pdfPath, prefix,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if _, err := os.Stat(outPath); err != nil {
		return fmt.Errorf("pdftoppm produced no output for page %d: %w", page, err)
	}
	return nil
}
