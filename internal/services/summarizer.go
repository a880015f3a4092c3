package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"

	"github.com/Lllllllleong/dataroomindexer/internal/gcp"
	"github.com/Lllllllleong/dataroomindexer/internal/models"
)

// PageSummarizer describes one rasterized page. It never fails: on error it
// returns DegradedPageSummary(pageNumber).
type PageSummarizer interface {
	SummarizePage(ctx context.Context, imagePath string, pageNumber int) string
}

// DocumentSummarizer condenses ordered page summaries into one document summary.
// On error it returns DegradedDocumentSummary(documentName).
type DocumentSummarizer interface {
	SummarizeDocument(ctx context.Context, pages []models.PageSummary, documentName string) string
}

// DegradedPageSummary is substituted for a page whose summary call failed.
func DegradedPageSummary(pageNumber int) string {
	return fmt.Sprintf("Error processing page %d", pageNumber)
}

// DegradedDocumentSummary is substituted when the document summary call failed.
func DegradedDocumentSummary(documentName string) string {
	return fmt.Sprintf("Error summarizing document %s", documentName)
}

// IsDegradedPageSummary reports whether text is the sentinel for pageNumber.
func IsDegradedPageSummary(text string, pageNumber int) bool {
	return text == DegradedPageSummary(pageNumber)
}

// contentGenerator is the subset of *genai.GenerativeModel the summarizers use.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// VertexPageSummarizer sends one PNG page per call to a Gemini model.
type VertexPageSummarizer struct {
	model   contentGenerator
	timeout time.Duration
}

// NewVertexPageSummarizer wraps model; timeout <= 0 disables the per-call deadline.
func NewVertexPageSummarizer(model contentGenerator, timeout time.Duration) *VertexPageSummarizer {
	return &VertexPageSummarizer{model: model, timeout: timeout}
}

func (s *VertexPageSummarizer) SummarizePage(ctx context.Context, imagePath string, pageNumber int) string {
	logCtx := slog.With("imagePath", imagePath, "page", pageNumber)

	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		logCtx.Warn("Failed to read page image.", "error", err)
		return DegradedPageSummary(pageNumber)
	}

	callCtx, cancel := withOptionalTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.model.GenerateContent(callCtx,
		genai.Blob{MIMEType: "image/png", Data: imageData},
		genai.Text(fmt.Sprintf(gcp.PageSummarizerUserPrompt, pageNumber)),
	)
	if err != nil {
		logCtx.Warn("Page summary call failed.", "error", err)
		return DegradedPageSummary(pageNumber)
	}

	summary := gcp.ExtractText(resp)
	if summary == "" || gcp.IsBlocked(resp) || gcp.IsRefusal(summary) {
		logCtx.Warn("Page summary unusable.", "response", preview(summary, 200))
		return DegradedPageSummary(pageNumber)
	}
	logCtx.Debug("Summarized page.", "preview", preview(summary, 100))
	return summary
}

// VertexDocumentSummarizer synthesizes a document summary from page summaries.
type VertexDocumentSummarizer struct {
	model   contentGenerator
	timeout time.Duration
}

func NewVertexDocumentSummarizer(model contentGenerator, timeout time.Duration) *VertexDocumentSummarizer {
	return &VertexDocumentSummarizer{model: model, timeout: timeout}
}

func (s *VertexDocumentSummarizer) SummarizeDocument(ctx context.Context, pages []models.PageSummary, documentName string) string {
	logCtx := slog.With("fileName", documentName, "pageCount", len(pages))

	callCtx, cancel := withOptionalTimeout(ctx, s.timeout)
	defer cancel()

	prompt := fmt.Sprintf(gcp.DocumentSummarizerUserPrompt, documentName, CombinePageSummaries(pages))
	resp, err := s.model.GenerateContent(callCtx, genai.Text(prompt))
	if err != nil {
		logCtx.Warn("Document summary call failed.", "error", err)
		return DegradedDocumentSummary(documentName)
	}

	summary := gcp.ExtractText(resp)
	if summary == "" || gcp.IsBlocked(resp) || gcp.IsRefusal(summary) {
		logCtx.Warn("Document summary unusable.", "response", preview(summary, 200))
		return DegradedDocumentSummary(documentName)
	}
	return summary
}

// CombinePageSummaries renders pages as "Page N: summary" blocks in the order given.
func CombinePageSummaries(pages []models.PageSummary) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = fmt.Sprintf("Page %d: %s", p.PageNumber, p.SummaryText)
	}
	return strings.Join(parts, "\n\n")
}

func withOptionalTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
