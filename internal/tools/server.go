package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Lllllllleong/dataroomindexer/internal/store"
)

const (
	// ServerName is the MCP server name
	ServerName = "dataroom-documents"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server around a DocumentTools instance.
type Server struct {
	mcp  *server.MCPServer
	docs *DocumentTools
}

// NewServer registers the document tools on a fresh MCP server.
func NewServer(docs *DocumentTools) *Server {
	s := &Server{
		mcp:  server.NewMCPServer(ServerName, ServerVersion),
		docs: docs,
	}
	s.mcp.AddTool(getDocumentTool(), s.handleGetDocument)
	s.mcp.AddTool(getDocumentPagesTool(), s.handleGetDocumentPages)
	s.mcp.AddTool(listDocumentsTool(), s.handleListDocuments)
	return s
}

// Serve runs the server on stdio and blocks until the client disconnects or ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	return s.serve(ctx, os.Stdin, os.Stdout)
}

func (s *Server) serve(ctx context.Context, in io.Reader, out io.Writer) error {
	slog.Info("Serving document tools on stdio.", "documents", s.docs.Count())
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

func getDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_document",
		Description: "Get the full summary of an indexed document, including every page summary",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"doc_id": map[string]interface{}{
					"type":        "string",
					"description": "Document identifier as shown in the data room index",
				},
			},
			Required: []string{"doc_id"},
		},
	}
}

func getDocumentPagesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_document_pages",
		Description: "Get summaries and page images (base64 preview) for specific pages of a document",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"doc_id": map[string]interface{}{
					"type":        "string",
					"description": "Document identifier as shown in the data room index",
				},
				"page_numbers": map[string]interface{}{
					"type":        "array",
					"description": "1-based page numbers to retrieve",
					"items": map[string]interface{}{
						"type":    "integer",
						"minimum": 1,
					},
				},
			},
			Required: []string{"doc_id", "page_numbers"},
		},
	}
}

func listDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_documents",
		Description: "List every indexed document with its summary, in data room index format",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

func (s *Server) handleGetDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments"), nil
	}
	docID, ok := args["doc_id"].(string)
	if !ok || docID == "" {
		return mcp.NewToolResultError("doc_id parameter is required"), nil
	}

	text, err := s.docs.GetDocument(docID)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleGetDocumentPages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments"), nil
	}
	docID, ok := args["doc_id"].(string)
	if !ok || docID == "" {
		return mcp.NewToolResultError("doc_id parameter is required"), nil
	}
	pageNums, err := intSlice(args["page_numbers"])
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("page_numbers: %v", err)), nil
	}

	text, err := s.docs.GetDocumentPages(docID, pageNums)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleListDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.docs.Reload(); err != nil {
		slog.Warn("Failed to reload document records, serving cached list.", "error", err)
	}
	return mcp.NewToolResultText(s.docs.ListDocuments()), nil
}

func toolError(err error) *mcp.CallToolResult {
	if !errors.Is(err, store.ErrDocumentNotFound) {
		slog.Error("Document tool failed.", "error", err)
	}
	return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err))
}

// intSlice converts a JSON array argument into page numbers.
func intSlice(v interface{}) ([]int, error) {
	raw, ok := v.([]interface{})
	if !ok {
		return nil, errors.New("must be an array of integers")
	}
	out := make([]int, 0, len(raw))
	for _, item := range raw {
		switch n := item.(type) {
		case float64:
			if n != float64(int(n)) {
				return nil, fmt.Errorf("%v is not an integer", n)
			}
			out = append(out, int(n))
		case int:
			out = append(out, n)
		default:
			return nil, fmt.Errorf("%v is not an integer", item)
		}
	}
	return out, nil
}
