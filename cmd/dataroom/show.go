package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/dataroomindexer/internal/store"
	"github.com/Lllllllleong/dataroomindexer/internal/tools"
)

var showPages []int

var showCmd = &cobra.Command{
	Use:   "show [doc-id]",
	Short: "Show indexed documents from the working directory",
	Long: `Show indexed documents from the working directory.

Without arguments every document is listed in index format. With a document ID
the full document summary and page summaries are printed; --pages limits the
output to the given pages and includes a preview of their images.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().IntSliceVar(&showPages, "pages", nil, "page numbers to show (e.g. --pages 1,3)")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	docs, err := tools.NewDocumentTools(store.New(cfg.WorkingDir))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		fmt.Fprint(out, docs.ListDocuments())
		return nil
	}

	var text string
	if len(showPages) > 0 {
		text, err = docs.GetDocumentPages(args[0], showPages)
	} else {
		text, err = docs.GetDocument(args[0])
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(out, text)
	return nil
}
