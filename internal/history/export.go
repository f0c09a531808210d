// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joshndala/shyft-rag-app/internal/util"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter renders history entries as a document.
type Exporter interface {
	// Export converts entries, newest first, to the target format.
	Export(entries []Entry) ([]byte, error)

	// FileExtension returns the file extension, e.g. ".md".
	FileExtension() string
}

// ExportOptions configures exporters.
type ExportOptions struct {
	// IncludeMetadata writes the front matter and per-entry details
	IncludeMetadata bool
	// Now stamps the export. Defaults to time.Now.
	Now func() time.Time
}

// DefaultExportOptions returns the options used by `shyft history export`.
func DefaultExportOptions() ExportOptions {
	return ExportOptions{IncludeMetadata: true, Now: time.Now}
}

// NewExporter returns the exporter for format: "md", "markdown" or "json".
func NewExporter(format string, opts ExportOptions) (Exporter, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "md", "markdown":
		return &MarkdownExporter{options: opts}, nil
	case "json":
		return &JSONExporter{options: opts}, nil
	}
	return nil, fmt.Errorf("unknown export format %q (want md or json)", format)
}

// ExportToFile writes entries into dir under a timestamped name and returns
// the path.
func ExportToFile(entries []Entry, exporter Exporter, dir string) (string, error) {
	content, err := exporter.Export(entries)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}
	if dir == "" {
		dir = "."
	}
	name := fmt.Sprintf("shyft_history_%s%s", time.Now().Format("20060102_150405"), exporter.FileExtension())
	path := filepath.Join(dir, name)
	if err := util.AtomicWriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter renders entries as a Markdown document.
type MarkdownExporter struct {
	options ExportOptions
}

// Export converts entries to Markdown.
func (e *MarkdownExporter) Export(entries []Entry) ([]byte, error) {
	now := e.options.Now()
	var sb strings.Builder

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "entries: %d\n", len(entries))
		fmt.Fprintf(&sb, "exported: %s\n", now.Format(time.RFC3339))
		sb.WriteString("generator: shyft\n")
		sb.WriteString("---\n\n")
	}

	sb.WriteString("# shyft history\n\n")
	if len(entries) == 0 {
		sb.WriteString("*No entries.*\n")
		return []byte(sb.String()), nil
	}

	for i, entry := range entries {
		if i > 0 {
			sb.WriteString("---\n\n")
		}
		fmt.Fprintf(&sb, "## %s\n\n", escapeMarkdown(entry.Query))
		if e.options.IncludeMetadata {
			fmt.Fprintf(&sb, "*%s, %s, %s*\n\n", entry.Kind,
				entry.CreatedAt.Format("2006-01-02 15:04:05"), entry.Duration.Round(time.Millisecond))
		}

		if entry.Failed() {
			fmt.Fprintf(&sb, "> **Error:** %s\n\n", entry.Error)
		}

		switch entry.Kind {
		case KindSearch:
			writeMarkdownResults(&sb, entry)
		default:
			if entry.Answer != "" {
				sb.WriteString(entry.Answer)
				sb.WriteString("\n\n")
			}
		}
	}

	fmt.Fprintf(&sb, "---\n\n*Exported from shyft on %s*\n", now.Format("January 2, 2006 at 3:04 PM"))
	return []byte(sb.String()), nil
}

func writeMarkdownResults(sb *strings.Builder, entry Entry) {
	if len(entry.Results) == 0 {
		if !entry.Failed() {
			sb.WriteString("No results found\n\n")
		}
		return
	}
	for i, r := range entry.Results {
		fmt.Fprintf(sb, "%d. **%s** (score: %.2f)\n", i+1, escapeMarkdown(r.Source()), r.Score)
		fmt.Fprintf(sb, "   %s\n", util.CollapseSpace(r.Text))
	}
	sb.WriteString("\n")
}

// escapeMarkdown escapes characters that would start Markdown structure at
// the beginning of a heading or list item.
func escapeMarkdown(s string) string {
	s = util.CollapseSpace(s)
	replacer := strings.NewReplacer(
		"*", "\\*",
		"_", "\\_",
		"`", "\\`",
		"#", "\\#",
		"[", "\\[",
		"]", "\\]",
	)
	return replacer.Replace(s)
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter writes entries as an indented JSON document that keeps every
// stored field.
type JSONExporter struct {
	options ExportOptions
}

type jsonExport struct {
	Exported  time.Time `json:"exported"`
	Generator string    `json:"generator"`
	Entries   []Entry   `json:"entries"`
}

// Export converts entries to JSON.
func (e *JSONExporter) Export(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	return json.MarshalIndent(jsonExport{
		Exported:  e.options.Now().UTC(),
		Generator: "shyft",
		Entries:   entries,
	}, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}
