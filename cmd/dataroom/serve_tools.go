package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/dataroomindexer/internal/store"
	"github.com/Lllllllleong/dataroomindexer/internal/tools"
)

var serveToolsCmd = &cobra.Command{
	Use:   "serve-tools",
	Short: "Serve indexed documents to an MCP client over stdio",
	Long: `Start a Model Context Protocol server exposing the indexed documents.

Tools:
  get_document        full document and page summaries
  get_document_pages  page summaries with base64 image previews
  list_documents      every document in index format

Logs go to stderr; stdout carries the JSON-RPC stream.`,
	RunE: runServeTools,
}

func init() {
	rootCmd.AddCommand(serveToolsCmd)
}

func runServeTools(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	docs, err := tools.NewDocumentTools(store.New(cfg.WorkingDir))
	if err != nil {
		return err
	}
	return tools.NewServer(docs).Serve(cmd.Context())
}
