// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshndala/shyft-rag-app/internal/query"
	"github.com/joshndala/shyft-rag-app/internal/stream"
	"github.com/joshndala/shyft-rag-app/internal/transport"
)

func openStore(t *testing.T, max int) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history", "history.db"), max)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndList(t *testing.T) {
	s := openStore(t, 0)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, query.Outcome{
		Mode:      query.Ask,
		Query:     "What is RAG?",
		Answer:    "Retrieval-Augmented Generation",
		SessionID: "sess-1",
		Started:   base,
		Duration:  1500 * time.Millisecond,
	}))
	require.NoError(t, s.Record(ctx, query.Outcome{
		Mode:    query.Search,
		Query:   "hybrid search",
		Results: []transport.SearchResult{{Text: "b", Score: 0.2}, {Text: "a", Score: 0.9}},
		Started: base.Add(time.Minute),
	}))

	entries, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first
	assert.Equal(t, KindSearch, entries[0].Kind)
	assert.Equal(t, 2, entries[0].ResultCount)
	require.Len(t, entries[0].Results, 2)
	assert.Equal(t, "b", entries[0].Results[0].Text, "stored hits keep server order")

	ask := entries[1]
	assert.Equal(t, KindAsk, ask.Kind)
	assert.Equal(t, "Retrieval-Augmented Generation", ask.Answer)
	assert.Equal(t, "sess-1", ask.SessionID)
	assert.Equal(t, 1500*time.Millisecond, ask.Duration)
	assert.True(t, ask.CreatedAt.Equal(base))
	assert.Len(t, ask.ID, 36)

	limited, err := s.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRecordFailure(t *testing.T) {
	s := openStore(t, 0)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, query.Outcome{
		Query:  "q",
		Answer: "partial",
		Err:    &stream.PayloadError{Message: "index not found"},
	}))
	entries, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Failed())
	assert.Equal(t, "index not found", entries[0].Error)
	assert.Equal(t, "partial", entries[0].Answer)
}

func TestSearch(t *testing.T) {
	s := openStore(t, 0)
	ctx := context.Background()

	for _, e := range []Entry{
		{Kind: KindAsk, Query: "What is RAG?", Answer: "Retrieval-Augmented Generation"},
		{Kind: KindAsk, Query: "How do embeddings work?", Answer: "Vectors in a shared space"},
		{Kind: KindSearch, Query: "quarterly report"},
	} {
		_, err := s.Add(ctx, e)
		require.NoError(t, err)
	}

	hits, err := s.Search(ctx, "retriev", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "What is RAG?", hits[0].Query)

	hits, err = s.Search(ctx, "embeddings", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	// FTS operators are matched literally instead of failing
	hits, err = s.Search(ctx, `report" OR (x`, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = s.Search(ctx, "  ", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestGetByPrefix(t *testing.T) {
	s := openStore(t, 0)
	ctx := context.Background()

	a, err := s.Add(ctx, Entry{ID: "abc-111", Kind: KindAsk, Query: "one"})
	require.NoError(t, err)
	_, err = s.Add(ctx, Entry{ID: "abc-222", Kind: KindAsk, Query: "two"})
	require.NoError(t, err)

	got, err := s.Get(ctx, "abc-1")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = s.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrAmbiguousID)

	_, err = s.Get(ctx, "zzz")
	assert.ErrorIs(t, err, ErrNotFound)

	// LIKE wildcards in the prefix are literal
	_, err = s.Get(ctx, "abc%")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteAndClear(t *testing.T) {
	s := openStore(t, 0)
	ctx := context.Background()

	a, err := s.Add(ctx, Entry{Kind: KindAsk, Query: "delete me please"})
	require.NoError(t, err)
	_, err = s.Add(ctx, Entry{Kind: KindAsk, Query: "keep me"})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, a.ID))
	assert.ErrorIs(t, s.Delete(ctx, a.ID), ErrNotFound)

	// The FTS index follows deletes
	hits, err := s.Search(ctx, "delete", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)

	n, err := s.Clear(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMaxEntriesPrunes(t *testing.T) {
	s := openStore(t, 3)
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 5; i++ {
		_, err := s.Add(ctx, Entry{Kind: KindAsk, Query: string(rune('a' + i)), CreatedAt: base.Add(time.Duration(i) * time.Second)})
		require.NoError(t, err)
	}

	entries, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "e", entries[0].Query)
	assert.Equal(t, "c", entries[2].Query)
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s, err := Open(path, 0)
	require.NoError(t, err)
	_, err = s.Add(ctx, Entry{Kind: KindAsk, Query: "persisted"})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.List(ctx, 0)
	assert.True(t, errors.Is(err, ErrClosed))

	s, err = Open(path, 0)
	require.NoError(t, err)
	defer s.Close()
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestControllerRecordsToStore(t *testing.T) {
	s := openStore(t, 0)
	searcher := searchFunc(func(ctx context.Context, q string) (*transport.SearchResponse, error) {
		return &transport.SearchResponse{Results: []transport.SearchResult{{Text: "hit"}}}, nil
	})
	c := query.New(searcher, nil, query.WithRecorder(s))

	require.NoError(t, c.Submit(context.Background(), query.Query{Text: "docs", Mode: query.Search}))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := c.Wait(ctx)
	require.NoError(t, err)
	c.Teardown()

	entries, err := s.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, KindSearch, entries[0].Kind)
	assert.Equal(t, "docs", entries[0].Query)
}

type searchFunc func(ctx context.Context, q string) (*transport.SearchResponse, error)

func (f searchFunc) Search(ctx context.Context, q string, _ transport.Weights, _ int) (*transport.SearchResponse, error) {
	return f(ctx, q)
}
