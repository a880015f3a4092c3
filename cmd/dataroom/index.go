package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/dataroomindexer/internal/models"
	"github.com/Lllllllleong/dataroomindexer/internal/services"
)

var (
	folderID        string
	outputPath      string
	credentialsPath string
	skipExisting    bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the data room index for a Drive folder",
	Long: `Build the data room index for a Drive folder.

Every PDF and Google Docs/Sheets/Slides file in the folder is downloaded (or
exported to PDF), rasterized, and summarized page by page. Documents that fail
are skipped and reported; the command only fails when the folder cannot be
listed or the index cannot be written.

Examples:
  dataroom index --folder-id 1AbC...xyz
  dataroom index --folder-id 1AbC...xyz --output ./index.txt --working-dir ./processing`,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&folderID, "folder-id", "", "Google Drive folder ID (defaults to GOOGLE_DRIVE_FOLDER_ID)")
	indexCmd.Flags().StringVarP(&outputPath, "output", "o", "", "index output path (defaults to <working-dir>/data_room_index.txt)")
	indexCmd.Flags().StringVar(&credentialsPath, "credentials", "", "service account credentials file (overrides GOOGLE_CREDENTIALS_PATH)")
	indexCmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "reuse documents that already have a valid record")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if credentialsPath != "" {
		cfg.CredentialsPath = credentialsPath
	}
	if skipExisting {
		cfg.SkipExisting = true
	}
	folder := folderID
	if folder == "" {
		folder = cfg.FolderID
	}
	if folder == "" {
		return errors.New("a folder ID is required (--folder-id or GOOGLE_DRIVE_FOLDER_ID)")
	}

	pipeline, err := services.NewPipeline(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	defer pipeline.Close()

	result, err := pipeline.Indexer.BuildIndex(cmd.Context(), folder, outputPath)
	if result == nil {
		return err
	}
	if err != nil {
		// The index could not be written; don't lose it.
		fmt.Fprint(cmd.OutOrStdout(), result.Text)
	}
	printReport(cmd.OutOrStdout(), result.Report)
	return err
}

func printReport(w io.Writer, report *models.RunReport) {
	fmt.Fprintln(w, "Data room indexing complete")
	fmt.Fprintf(w, "  Run:       %s\n", report.RunID)
	fmt.Fprintf(w, "  Listed:    %d\n", report.Listed)
	fmt.Fprintf(w, "  Indexed:   %d\n", report.Indexed)
	fmt.Fprintf(w, "  Skipped:   %d\n", len(report.Skipped))
	if report.DegradedPages > 0 {
		fmt.Fprintf(w, "  Degraded pages: %d\n", report.DegradedPages)
	}
	fmt.Fprintf(w, "  Index:     %s\n", report.OutputPath)
	for _, s := range report.Skipped {
		fmt.Fprintf(w, "  - %s (%s): %s\n", s.FileName, s.DocID, s.Reason)
	}
}
