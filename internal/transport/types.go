// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"fmt"
	"strconv"
	"strings"
)

// Search defaults used by the backend when a parameter is omitted.
const (
	DefaultTopK           = 5
	DefaultSemanticWeight = 0.7
	DefaultKeywordWeight  = 0.3
)

// UnknownSource labels a result whose metadata names no document.
const UnknownSource = "Unknown source"

// Weights balances the semantic and keyword halves of a hybrid search.
// Values are sent as given; the client neither validates nor normalizes them.
type Weights struct {
	Semantic float64 `json:"semantic_weight"`
	Keyword  float64 `json:"keyword_weight"`
}

// DefaultWeights returns the backend's default 0.7 / 0.3 split.
func DefaultWeights() Weights {
	return Weights{Semantic: DefaultSemanticWeight, Keyword: DefaultKeywordWeight}
}

// SearchResult is one ranked passage. Score is expected in 0..1 but not
// enforced. Metadata values are strings or numbers.
type SearchResult struct {
	Text     string                 `json:"text"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Source returns a display label for the passage's document: the
// document_id when present, else the last underscore separated part of the
// stored filename.
func (r SearchResult) Source() string {
	if id := metaString(r.Metadata, "document_id"); id != "" {
		return id
	}
	if name := metaString(r.Metadata, "filename"); name != "" {
		parts := strings.Split(name, "_")
		if last := parts[len(parts)-1]; last != "" {
			return last
		}
	}
	return UnknownSource
}

func metaString(m map[string]interface{}, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

// SearchResponse is the decoded body of GET /search/. Results keep the order
// the backend sent them in.
type SearchResponse struct {
	Query        string         `json:"query"`
	Results      []SearchResult `json:"results"`
	TotalResults int            `json:"total_results"`
}

// UploadResult is the decoded body of a successful POST /upload/.
type UploadResult struct {
	Message string `json:"message"`
	// File is the name the document was sent under
	File string `json:"file"`
}

// FrameKind tags a Frame.
type FrameKind int

const (
	// FrameOpen is sent once when the server accepted the stream.
	FrameOpen FrameKind = iota
	// FrameData carries one event payload.
	FrameData
	// FrameClosed is the last frame when the connection failed or ended on
	// its own. Err holds a *ConnectionError.
	FrameClosed
)

// String returns the kind name for logs.
func (k FrameKind) String() string {
	switch k {
	case FrameOpen:
		return "open"
	case FrameData:
		return "data"
	case FrameClosed:
		return "closed"
	default:
		return fmt.Sprintf("FrameKind(%d)", int(k))
	}
}

// Frame is one unit delivered by a StreamHandle.
type Frame struct {
	Kind FrameKind
	// Data is the raw event payload for FrameData
	Data []byte
	// Err is set on FrameClosed, and on FrameData when the event could not
	// be read (oversized); such a data frame should be skipped.
	Err error
}
