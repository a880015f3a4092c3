package models

import (
	"bufio"
	"strings"
	"time"
)

// IndexHeader is the first line of every rendered data room index.
const IndexHeader = "# Data Room Index"

// IndexEntry is one line item of the data room index.
type IndexEntry struct {
	DocID           string
	FileName        string
	DocumentSummary string
}

// SkippedDocument names a listed document that was excluded from the index.
type SkippedDocument struct {
	DocID    string `json:"docId"`
	FileName string `json:"fileName"`
	Reason   string `json:"reason"`
	Details  string `json:"details,omitempty"`
}

// RunReport summarises one folder indexing run.
type RunReport struct {
	RunID         string            `json:"runId"`
	FolderID      string            `json:"folderId"`
	Listed        int               `json:"listed"`
	Indexed       int               `json:"indexed"`
	Skipped       []SkippedDocument `json:"skipped"`
	DegradedPages int               `json:"degradedPages"`
	OutputPath    string            `json:"outputPath"`
	StartedAt     time.Time         `json:"startedAt"`
	FinishedAt    time.Time         `json:"finishedAt"`
}

// EntryFromRecord projects a record onto its index line item.
func EntryFromRecord(r *DocumentRecord) IndexEntry {
	return IndexEntry{DocID: r.DocID, FileName: r.FileName, DocumentSummary: r.DocumentSummary}
}

// RenderIndex renders entries in the order given. Line breaks inside a summary
// are folded to spaces so each entry stays on exactly two lines.
func RenderIndex(entries []IndexEntry) string {
	lines := []string{IndexHeader + "\n"}
	for _, e := range entries {
		lines = append(lines, "- **"+singleLine(e.DocID)+"**: "+singleLine(e.FileName))
		lines = append(lines, "  Summary: "+singleLine(e.DocumentSummary)+"\n")
	}
	return strings.Join(lines, "\n")
}

// ParseIndex recovers the entries of a rendered index by line scanning.
func ParseIndex(text string) []IndexEntry {
	var entries []IndexEntry
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "- **"):
			rest := strings.TrimPrefix(line, "- **")
			id, name, ok := strings.Cut(rest, "**: ")
			if !ok {
				continue
			}
			entries = append(entries, IndexEntry{DocID: id, FileName: name})
		case strings.HasPrefix(line, "  Summary: ") && len(entries) > 0:
			entries[len(entries)-1].DocumentSummary = strings.TrimPrefix(line, "  Summary: ")
		}
	}
	return entries
}

func singleLine(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	return strings.Join(strings.Fields(s), " ")
}
