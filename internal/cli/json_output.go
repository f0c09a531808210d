// json_output.go - JSON output support for scripting shyft.
//
// Every command accepts --json and then prints exactly one JSONResponse on
// stdout. Progress and warnings go to stderr.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joshndala/shyft-rag-app/internal/history"
	"github.com/joshndala/shyft-rag-app/internal/transport"
)

// JSONResponse is the response envelope for all CLI commands.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data interface{} `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// Timestamp is the RFC3339 time the response was generated
	Timestamp string `json:"timestamp"`

	// Command is the command that was executed
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Error:     nil,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a new error JSON response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	errStr := err.Error()
	return &JSONResponse{
		Success:   false,
		Data:      nil,
		Error:     &errStr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print outputs the JSON response to stdout.
func (r *JSONResponse) Print() error {
	return r.Fprint(os.Stdout)
}

// Fprint writes the indented response to w.
func (r *JSONResponse) Fprint(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// String returns the JSON response as a string.
func (r *JSONResponse) String() string {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":"failed to marshal response: %s","timestamp":"%s"}`,
			err.Error(), time.Now().UTC().Format(time.RFC3339))
	}
	return string(data)
}

// StderrPrint prints a message to stderr (for human-readable output in JSON mode).
func StderrPrint(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
}

// =============================================================================
// COMMAND-SPECIFIC DATA STRUCTURES
// =============================================================================

// VersionData represents the data returned by the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
}

// AskData represents the data returned by the ask command.
type AskData struct {
	Query      string `json:"query"`
	Answer     string `json:"answer"`
	Streamed   bool   `json:"streamed"`
	SessionID  string `json:"session_id,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// SearchData represents the data returned by the search command.
type SearchData struct {
	Query          string                   `json:"query"`
	TopK           int                      `json:"top_k"`
	SemanticWeight float64                  `json:"semantic_weight"`
	KeywordWeight  float64                  `json:"keyword_weight"`
	TotalResults   int                      `json:"total_results"`
	Results        []transport.SearchResult `json:"results"`
}

// UploadData represents the data returned by the upload command.
type UploadData struct {
	Files     []UploadFileResult `json:"files"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
}

// UploadFileResult is the outcome for one uploaded file.
type UploadFileResult struct {
	Path    string `json:"path"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// StatusData represents the data returned by the status command.
type StatusData struct {
	Server    string `json:"server"`
	Reachable bool   `json:"reachable"`
	Message   string `json:"message,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`

	ConfigPath     string `json:"config_path"`
	HistoryPath    string `json:"history_path,omitempty"`
	HistoryEntries int    `json:"history_entries"`
}

// HistoryData represents the data returned by history list and search.
type HistoryData struct {
	Entries []history.Entry `json:"entries"`
	Count   int             `json:"count"`
	Total   int             `json:"total"`
}

// WatchData represents the data returned by watch --once.
type WatchData struct {
	Dir      string             `json:"dir"`
	Uploaded []UploadFileResult `json:"uploaded"`
	Skipped  int                `json:"skipped"`
}

// ConfigData represents the data returned by config show.
type ConfigData struct {
	Path   string      `json:"config_path"`
	Config interface{} `json:"config"`
}
