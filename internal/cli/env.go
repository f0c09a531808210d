// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// env.go - Shared dependencies for command handlers.
package cli

import (
	"io"
	"os"
	"sync"

	"github.com/joshndala/shyft-rag-app/internal/config"
	"github.com/joshndala/shyft-rag-app/internal/history"
	"github.com/joshndala/shyft-rag-app/internal/logging"
	"github.com/joshndala/shyft-rag-app/internal/query"
	"github.com/joshndala/shyft-rag-app/internal/transport"
)

// Env carries what every handler needs. The history store is opened on
// first use.
type Env struct {
	Config *config.Config
	Logger logging.Logger
	Client *transport.Client

	// Out receives answers and results; Err receives progress and warnings.
	Out io.Writer
	Err io.Writer

	JSON  bool
	Quiet bool

	historyOnce sync.Once
	history     *history.Store
	historyErr  error
}

// NewEnv builds the backend client from cfg. args.Server overrides the
// configured URL.
func NewEnv(cfg *config.Config, args Args, logger logging.Logger) *Env {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	serverURL := cfg.Server.URL
	if args.Server != "" {
		serverURL = args.Server
	}
	client := transport.New(serverURL).
		WithTimeout(cfg.Timeout()).
		WithLogger(logger).
		WithUserAgent("shyft/" + Version).
		WithSearchCache(cfg.SearchCacheTTL())

	return &Env{
		Config: cfg,
		Logger: logger,
		Client: client,
		Out:    os.Stdout,
		Err:    os.Stderr,
		JSON:   args.JSON,
		Quiet:  args.Quiet,
	}
}

// History returns the history store, or nil when history is disabled.
func (e *Env) History() (*history.Store, error) {
	if !e.Config.History.Enabled {
		return nil, nil
	}
	e.historyOnce.Do(func() {
		e.history, e.historyErr = history.Open(e.Config.HistoryPath(), e.Config.History.MaxEntries)
		if e.historyErr != nil {
			e.Logger.Warn("cli", "history unavailable", map[string]interface{}{"error": e.historyErr})
		}
	})
	return e.history, e.historyErr
}

// Controller returns a query controller wired to the client, the configured
// search defaults and, when available, the history store. Callers Teardown
// it when done.
func (e *Env) Controller(extra ...query.Option) *query.Controller {
	opts := []query.Option{
		query.WithLogger(e.Logger),
		query.WithSearchDefaults(e.Config.Search.TopK, transport.Weights{
			Semantic: e.Config.Search.SemanticWeight,
			Keyword:  e.Config.Search.KeywordWeight,
		}),
	}
	// A broken history database never blocks asking questions
	if store, err := e.History(); err == nil && store != nil {
		opts = append(opts, query.WithRecorder(store))
	}
	return query.NewForClient(e.Client, append(opts, extra...)...)
}

// Close releases the history store.
func (e *Env) Close() error {
	if e.history != nil {
		return e.history.Close()
	}
	return nil
}
