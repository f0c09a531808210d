// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshndala/shyft-rag-app/internal/config"
	"github.com/joshndala/shyft-rag-app/internal/history"
	"github.com/joshndala/shyft-rag-app/internal/query"
	"github.com/joshndala/shyft-rag-app/internal/stream"
	"github.com/joshndala/shyft-rag-app/internal/transport"
)

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain", errors.New("boom"), ExitGeneralError},
		{"cli validation", NewValidationError("top-k", "x", "bad"), ExitUsageError},
		{"empty query", &query.ValidationError{Err: query.ErrEmptyQuery}, ExitUsageError},
		{"config", fmt.Errorf("invalid config: %w", config.ValidateErrors{{Field: "search.top_k", Message: "bad"}}), ExitConfigError},
		{"not found", NewNotFoundError("file", "a.pdf"), ExitNotFoundError},
		{"history not found", fmt.Errorf("get: %w", history.ErrNotFound), ExitNotFoundError},
		{"payload", &stream.PayloadError{Message: "index not found"}, ExitBackendError},
		{"stream connection", &transport.ConnectionError{Err: transport.ErrStreamEnded}, ExitNetworkError},
		{"unreachable", &transport.TransportError{Op: "search", Err: errors.New("connection refused")}, ExitNetworkError},
		{"http 500", &transport.TransportError{Op: "search", StatusCode: 500, Detail: "db down"}, ExitBackendError},
		{"http 404", &transport.TransportError{Op: "search", StatusCode: http.StatusNotFound}, ExitNotFoundError},
		{"deadline", fmt.Errorf("ask: %w", context.DeadlineExceeded), ExitNetworkError},
		{"wrapped by user message", askError(&transport.ConnectionError{Err: errors.New("refused")}), ExitNetworkError},
		{"reported", &reportedError{NewNotFoundError("file", "x")}, ExitNotFoundError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestAskError_ConnectionMessage(t *testing.T) {
	err := askError(&transport.ConnectionError{StatusCode: 502, Err: errors.New("bad gateway")})
	assert.EqualError(t, err, ConnectionFailedMessage)

	payload := &stream.PayloadError{Message: "index not found"}
	assert.Same(t, error(payload), askError(payload))
}

func TestSearchError_Detail(t *testing.T) {
	err := searchError(&transport.TransportError{Op: "search", StatusCode: 500, Detail: "collection missing"})
	assert.EqualError(t, err, "collection missing")

	err = searchError(&transport.TransportError{Op: "search", Err: errors.New("refused")})
	assert.EqualError(t, err, SearchFailedMessage)
	assert.Equal(t, ExitNetworkError, GetExitCode(err))
}

func TestDisplayError_JSON(t *testing.T) {
	var buf bytes.Buffer
	DisplayError(&buf, "search", NewValidationErrorWithExample("top-k", "0", "must be positive", "--top-k 5"), true)

	var resp struct {
		Success bool                   `json:"success"`
		Error   string                 `json:"error"`
		Command string                 `json:"command"`
		Data    map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "search", resp.Command)
	assert.Contains(t, resp.Error, "must be positive")
	assert.Equal(t, "validation_error", resp.Data["error_type"])
	assert.Equal(t, "top-k", resp.Data["field"])
	assert.EqualValues(t, ExitUsageError, resp.Data["exit_code"])
}

func TestDisplayError_Text(t *testing.T) {
	var buf bytes.Buffer
	DisplayError(&buf, "ask", &transport.TransportError{Op: "ask", Err: errors.New("refused")}, false)
	out := buf.String()
	assert.Contains(t, out, "[ERROR]")
	assert.Contains(t, out, "shyft status")
}
