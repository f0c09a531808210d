// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Commands(t *testing.T) {
	tests := []struct {
		name    string
		argv    []string
		wantCmd Command
		check   func(*testing.T, Args)
	}{
		{
			name:    "no args starts the TUI",
			argv:    nil,
			wantCmd: CmdTUI,
		},
		{
			name:    "ask joins words",
			argv:    []string{"ask", "What", "is", "RAG?"},
			wantCmd: CmdAsk,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "What is RAG?", a.Query)
				assert.False(t, a.NoStream)
			},
		},
		{
			name:    "ask flags",
			argv:    []string{"ask", "--no-stream", "--plain", "What is RAG?"},
			wantCmd: CmdAsk,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "What is RAG?", a.Query)
				assert.True(t, a.NoStream)
				assert.True(t, a.Plain)
			},
		},
		{
			name:    "bare question keeps its case",
			argv:    []string{"What", "is", "RAG?"},
			wantCmd: CmdAsk,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "What is RAG?", a.Query)
			},
		},
		{
			name:    "search options",
			argv:    []string{"search", "vector", "db", "-k", "10", "--semantic", "0.5", "--keyword=0.25", "--full"},
			wantCmd: CmdSearch,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "vector db", a.Query)
				assert.Equal(t, 10, a.TopK)
				require.NotNil(t, a.SemanticWeight)
				require.NotNil(t, a.KeywordWeight)
				assert.Equal(t, 0.5, *a.SemanticWeight)
				assert.Equal(t, 0.25, *a.KeywordWeight)
				assert.True(t, a.Full)
			},
		},
		{
			name:    "search without weights leaves them unset",
			argv:    []string{"find", "revenue"},
			wantCmd: CmdSearch,
			check: func(t *testing.T, a Args) {
				assert.Nil(t, a.SemanticWeight)
				assert.Nil(t, a.KeywordWeight)
				assert.Zero(t, a.TopK)
			},
		},
		{
			name:    "upload files",
			argv:    []string{"upload", "a.pdf", "b.html"},
			wantCmd: CmdUpload,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, []string{"a.pdf", "b.html"}, a.Files)
			},
		},
		{
			name:    "watch",
			argv:    []string{"watch", "inbox", "--poll", "--once"},
			wantCmd: CmdWatch,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "inbox", a.Dir)
				assert.True(t, a.Poll)
				assert.True(t, a.Once)
			},
		},
		{
			name:    "history search",
			argv:    []string{"history", "search", "quarterly", "revenue", "--limit", "5"},
			wantCmd: CmdHistory,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "search", a.Subcommand)
				assert.Equal(t, "quarterly revenue", a.Query)
				assert.Equal(t, 5, a.Limit)
			},
		},
		{
			name:    "history clear",
			argv:    []string{"hist", "clear", "--confirm"},
			wantCmd: CmdHistory,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "clear", a.Subcommand)
				assert.True(t, a.Confirm)
			},
		},
		{
			name:    "history export to stdout",
			argv:    []string{"history", "export", "--format", "json", "--out", "-"},
			wantCmd: CmdHistory,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "export", a.Subcommand)
				assert.Equal(t, "json", a.Format)
				assert.Equal(t, "-", a.Output)
			},
		},
		{
			name:    "config set keeps the value verbatim",
			argv:    []string{"config", "set", "server.url", "http://10.0.0.5:8000"},
			wantCmd: CmdConfig,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "set", a.Subcommand)
				assert.Equal(t, "server.url", a.ConfigKey)
				assert.Equal(t, "http://10.0.0.5:8000", a.ConfigVal)
			},
		},
		{
			name:    "global flags anywhere",
			argv:    []string{"search", "--json", "docs", "--server", "http://h:1", "-q"},
			wantCmd: CmdSearch,
			check: func(t *testing.T, a Args) {
				assert.True(t, a.JSON)
				assert.True(t, a.Quiet)
				assert.Equal(t, "http://h:1", a.Server)
				assert.Equal(t, "docs", a.Query)
			},
		},
		{
			name:    "status alias",
			argv:    []string{"s"},
			wantCmd: CmdStatus,
		},
		{
			name:    "version",
			argv:    []string{"version"},
			wantCmd: CmdVersion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args, err := Parse(tt.argv)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCmd, cmd)
			if tt.check != nil {
				tt.check(t, args)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		argv []string
	}{
		{"typo of a command", []string{"serch"}},
		{"unknown flag", []string{"--bogus"}},
		{"unknown search flag", []string{"search", "x", "--bogus"}},
		{"bad top-k", []string{"search", "x", "-k", "zero"}},
		{"bad weight", []string{"search", "x", "--semantic", "high"}},
		{"server without value", []string{"--server"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Parse(tt.argv)
			require.Error(t, err)
			assert.Equal(t, ExitUsageError, GetExitCode(err))
		})
	}
}

func TestParse_TypoSuggestion(t *testing.T) {
	_, _, err := Parse([]string{"uplaod"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shyft upload")
}

func TestPrintUsage(t *testing.T) {
	var buf bytes.Buffer
	PrintUsage(&buf)
	out := buf.String()
	for _, cmd := range []string{"ask", "search", "upload", "chat", "watch", "history", "status", "config"} {
		assert.True(t, strings.Contains(out, "shyft "+cmd), "usage should mention %s", cmd)
	}
	assert.Contains(t, out, Version)
}

func TestCommand_String(t *testing.T) {
	assert.Equal(t, "search", CmdSearch.String())
	assert.Equal(t, "history", CmdHistory.String())
	assert.Equal(t, "Command(99)", Command(99).String())
}
