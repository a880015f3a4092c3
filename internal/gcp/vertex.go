package gcp

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

// --- Page Summarizer Model Prompts ---
const PageSummarizerSystemPrompt = "You are a legal due diligence assistant. You read single pages of legal documents from a data room and describe them precisely and factually."
const PageSummarizerUserPrompt = `You are analyzing page %d of a legal document.
Please provide a concise summary that captures:

1. The type of content on this page (e.g., contract clause, financial table, signature block, exhibit)
2. Key information present (parties, dates, amounts, obligations, terms)
3. Any notable or concerning provisions
4. References to other documents or sections

Be specific and factual. Focus on information that would be relevant for legal risk assessment.
Keep your summary to 2-3 sentences unless the page contains complex information requiring more detail.`

// --- Document Summarizer Model Prompts ---
const DocumentSummarizerSystemPrompt = "You are a senior legal analyst. You synthesize page-level notes into a single document-level summary for a due diligence review."
const DocumentSummarizerUserPrompt = `You are creating a comprehensive summary of the document "%s"
based on individual page summaries.

Here are the summaries of each page:

%s

Please provide a document-level summary that:

1. Identifies the document type and purpose
2. Lists the main parties involved
3. Summarizes key terms, provisions, or information
4. Notes any concerning clauses or unusual provisions
5. Highlights important dates, amounts, or obligations
6. Indicates the document's relevance for legal due diligence

Your summary should be comprehensive but concise (approximately 150-200 words).
Focus on information that would help a legal analyst understand this document's
significance without reading every page.`

// VertexConfig selects the models used for page and document summarization.
type VertexConfig struct {
	ProjectID     string
	Region        string
	PageModel     string
	DocumentModel string
}

// VertexClient holds all pre-configured generative models for the indexer.
type VertexClient struct {
	PageSummarizerModel     *genai.GenerativeModel
	DocumentSummarizerModel *genai.GenerativeModel
	baseClient              *genai.Client
}

// NewVertexClient creates a new client holding the page and document models.
func NewVertexClient(ctx context.Context, cfg VertexConfig) (*VertexClient, error) {
	if cfg.ProjectID == "" || cfg.Region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	// --- Configure the page summarizer model ---
	pageModel := baseClient.GenerativeModel(cfg.PageModel)
	pageModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(PageSummarizerSystemPrompt)},
	}
	pageModel.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: genai.Ptr[int32](300),
		Temperature:     genai.Ptr[float32](0.2),
	}

	// --- Configure the document summarizer model ---
	documentModel := baseClient.GenerativeModel(cfg.DocumentModel)
	documentModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(DocumentSummarizerSystemPrompt)},
	}
	documentModel.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: genai.Ptr[int32](500),
		Temperature:     genai.Ptr[float32](0.2),
	}

	// Legal documents routinely describe violence, fraud and the like.
	safety := []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}
	pageModel.SafetySettings = safety
	documentModel.SafetySettings = safety

	return &VertexClient{
		PageSummarizerModel:     pageModel,
		DocumentSummarizerModel: documentModel,
		baseClient:              baseClient,
	}, nil
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}

// ExtractText concatenates the text parts of the first candidate and strips markdown fences.
func ExtractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ""
	}

	var contentBuilder strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			contentBuilder.WriteString(string(txt))
		}
	}

	contentStr := strings.TrimSpace(contentBuilder.String())
	contentStr = strings.TrimPrefix(contentStr, "```markdown")
	contentStr = strings.TrimPrefix(contentStr, "```")
	contentStr = strings.TrimSuffix(contentStr, "```")
	return strings.TrimSpace(contentStr)
}

var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"i cannot provide",
	"as a large language model",
}

// IsRefusal reports whether model output reads as a refusal rather than a
// summary. Only the opening of the response counts: summaries of correspondence
// routinely quote these phrases.
func IsRefusal(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, phrase := range refusalPhrases {
		if strings.HasPrefix(lower, phrase) {
			return true
		}
	}
	return false
}

// IsBlocked reports whether the first candidate was stopped by a safety filter.
func IsBlocked(resp *genai.GenerateContentResponse) bool {
	if resp == nil || len(resp.Candidates) == 0 {
		return false
	}
	return resp.Candidates[0].FinishReason == genai.FinishReasonSafety
}
