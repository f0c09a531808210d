// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package query

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshndala/shyft-rag-app/internal/stream"
	"github.com/joshndala/shyft-rag-app/internal/transport"
)

// =============================================================================
// FAKES
// =============================================================================

type pipeHandle struct {
	in     chan transport.Frame
	out    chan transport.Frame
	closed chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newPipeHandle() *pipeHandle {
	h := &pipeHandle{
		in:     make(chan transport.Frame),
		out:    make(chan transport.Frame),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(h.done)
		defer close(h.out)
		for {
			select {
			case f := <-h.in:
				select {
				case h.out <- f:
				case <-h.closed:
					return
				}
			case <-h.closed:
				return
			}
		}
	}()
	return h
}

func (h *pipeHandle) Frames() <-chan transport.Frame { return h.out }

func (h *pipeHandle) Close() {
	h.once.Do(func() { close(h.closed) })
	<-h.done
}

func (h *pipeHandle) send(payload string) bool {
	f := transport.Frame{Kind: transport.FrameData, Data: []byte(payload)}
	select {
	case h.in <- f:
		return true
	case <-h.closed:
		return false
	}
}

func (h *pipeHandle) isClosed() bool {
	select {
	case <-h.closed:
		return true
	default:
		return false
	}
}

// backend counts every network operation.
type backend struct {
	mu       sync.Mutex
	handles  []*pipeHandle
	queries  []string
	searches int32
	search   func(ctx context.Context, q string) (*transport.SearchResponse, error)
}

func (b *backend) Search(ctx context.Context, q string, _ transport.Weights, _ int) (*transport.SearchResponse, error) {
	atomic.AddInt32(&b.searches, 1)
	if b.search != nil {
		return b.search(ctx, q)
	}
	return &transport.SearchResponse{Query: q}, nil
}

func (b *backend) open(_ context.Context, q string) stream.Handle {
	h := newPipeHandle()
	b.mu.Lock()
	b.handles = append(b.handles, h)
	b.queries = append(b.queries, q)
	b.mu.Unlock()
	return h
}

func (b *backend) handle(i int) *pipeHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handles[i]
}

func (b *backend) opens() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handles)
}

type memRecorder struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (r *memRecorder) Record(_ context.Context, o Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	return nil
}

func (r *memRecorder) all() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Outcome(nil), r.outcomes...)
}

func wait(t *testing.T, c *Controller) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := c.Wait(ctx)
	require.NoError(t, err)
	return st
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestSubmit_EmptyQueryMakesNoNetworkCall(t *testing.T) {
	b := &backend{}
	c := New(b, b.open)
	defer c.Teardown()

	for _, mode := range []Mode{Ask, Search} {
		err := c.Submit(context.Background(), Query{Text: "   \t", Mode: mode})
		var ve *ValidationError
		require.True(t, errors.As(err, &ve))

		st := c.State()
		assert.Equal(t, Invalid, st.Status)
		assert.ErrorIs(t, st.Err, ErrEmptyQuery)
	}
	assert.Zero(t, b.opens())
	assert.Zero(t, atomic.LoadInt32(&b.searches))
}

func TestSubmit_InvalidSupersedesRunningStream(t *testing.T) {
	b := &backend{}
	c := New(b, b.open)
	defer c.Teardown()

	require.NoError(t, c.Submit(context.Background(), Query{Text: "first"}))
	h := b.handle(0)
	require.True(t, h.send(`{"content":"foo"}`))

	assert.Error(t, c.Submit(context.Background(), Query{Text: ""}))
	assert.True(t, h.isClosed())
	assert.Equal(t, Invalid, c.State().Status)
}

// =============================================================================
// ASK
// =============================================================================

func TestSubmit_AskStreamsToSuccess(t *testing.T) {
	b := &backend{}
	rec := &memRecorder{}
	c := New(b, b.open, WithRecorder(rec))

	require.NoError(t, c.Submit(context.Background(), Query{Text: "  What is RAG? "}))
	assert.Equal(t, Loading, c.State().Status)
	assert.NotEmpty(t, c.State().SessionID)

	h := b.handle(0)
	h.send(`{"content":"Retrieval-"}`)
	require.Eventually(t, func() bool { return c.State().Status == Streaming }, time.Second, time.Millisecond)
	assert.Equal(t, "Retrieval-", c.State().Answer)

	h.send(`{"content":"Augmented Generation"}`)
	h.send(`{"end":true}`)

	st := wait(t, c)
	assert.Equal(t, Succeeded, st.Status)
	assert.Equal(t, "Retrieval-Augmented Generation", st.Answer)
	assert.Equal(t, "What is RAG?", st.Query)
	assert.Equal(t, []string{"What is RAG?"}, b.queries)

	c.Teardown()
	outs := rec.all()
	require.Len(t, outs, 1)
	assert.Equal(t, Ask, outs[0].Mode)
	assert.Equal(t, "Retrieval-Augmented Generation", outs[0].Answer)
	assert.Equal(t, st.SessionID, outs[0].SessionID)
}

func TestSubmit_LoadingCarriesSessionID(t *testing.T) {
	b := &backend{}
	c := New(b, b.open)
	defer c.Teardown()

	states, unsubscribe := c.Subscribe()
	defer unsubscribe()

	require.NoError(t, c.Submit(context.Background(), Query{Text: "q"}))

	var first State
	select {
	case first = <-states:
	case <-time.After(time.Second):
		t.Fatal("no state published")
	}
	// Nothing has been sent on the stream yet, so this is the Loading snapshot
	assert.Equal(t, Loading, first.Status)
	assert.NotEmpty(t, first.SessionID)
	assert.Equal(t, c.State().SessionID, first.SessionID)
}

func TestSubmit_AskPayloadError(t *testing.T) {
	b := &backend{}
	c := New(b, b.open)
	defer c.Teardown()

	require.NoError(t, c.Submit(context.Background(), Query{Text: "q"}))
	h := b.handle(0)
	h.send(`{"error":"index not found"}`)

	st := wait(t, c)
	assert.Equal(t, Failed, st.Status)
	var pe *stream.PayloadError
	require.True(t, errors.As(st.Err, &pe))
	assert.Equal(t, "index not found", pe.Message)
	assert.True(t, h.isClosed())
}

func TestSubmit_SupersededSessionIsDiscarded(t *testing.T) {
	b := &backend{}
	c := New(b, b.open)
	defer c.Teardown()

	states, unsubscribe := c.Subscribe()
	defer unsubscribe()

	require.NoError(t, c.Submit(context.Background(), Query{Text: "first"}))
	first := b.handle(0)
	first.send(`{"content":"old "}`)
	require.Eventually(t, func() bool { return c.State().Answer == "old " }, time.Second, time.Millisecond)

	require.NoError(t, c.Submit(context.Background(), Query{Text: "second"}))
	assert.True(t, first.isClosed(), "previous session is cancelled before the new one opens")
	assert.False(t, first.send(`{"content":"late"}`))

	second := b.handle(1)
	second.send(`{"content":"new"}`)
	second.send(`{"end":true}`)
	st := wait(t, c)
	assert.Equal(t, "new", st.Answer)
	assert.Equal(t, "second", st.Query)

	// Drain: whatever the subscriber saw last belongs to the second query
	var last State
	require.Eventually(t, func() bool {
		select {
		case s := <-states:
			last = s
		default:
		}
		return last.Status == Succeeded
	}, time.Second, time.Millisecond)
	assert.Equal(t, "second", last.Query)
}

func TestCancel_ReturnsToIdle(t *testing.T) {
	b := &backend{}
	c := New(b, b.open)
	defer c.Teardown()

	require.NoError(t, c.Submit(context.Background(), Query{Text: "q"}))
	b.handle(0).send(`{"content":"x"}`)

	c.Cancel()
	c.Cancel()
	st := c.State()
	assert.Equal(t, Idle, st.Status)
	assert.Equal(t, "q", st.Query)
	assert.True(t, b.handle(0).isClosed())

	// Wait returns for a cancelled submission
	wait(t, c)
}

func TestTeardown(t *testing.T) {
	b := &backend{}
	c := New(b, b.open)

	states, _ := c.Subscribe()
	require.NoError(t, c.Submit(context.Background(), Query{Text: "q"}))
	h := b.handle(0)

	c.Teardown()
	assert.True(t, h.isClosed())
	assert.ErrorIs(t, c.Submit(context.Background(), Query{Text: "again"}), ErrClosed)

	// Subscription is closed after delivering what was buffered
	require.Eventually(t, func() bool {
		_, ok := <-states
		return !ok
	}, time.Second, time.Millisecond)

	c.Teardown()
}

// =============================================================================
// SEARCH
// =============================================================================

func TestSubmit_SearchPreservesServerOrder(t *testing.T) {
	results := []transport.SearchResult{
		{Text: "low", Score: 0.1},
		{Text: "high", Score: 0.9},
		{Text: "mid", Score: 0.5},
	}
	b := &backend{search: func(_ context.Context, q string) (*transport.SearchResponse, error) {
		return &transport.SearchResponse{Query: q, Results: results}, nil
	}}
	rec := &memRecorder{}
	c := New(b, b.open, WithRecorder(rec))

	require.NoError(t, c.Submit(context.Background(), Query{Text: "rag", Mode: Search}))
	st := wait(t, c)
	require.Equal(t, Succeeded, st.Status)
	assert.Equal(t, results, st.Results)

	c.Teardown()
	require.Len(t, rec.all(), 1)
	assert.Equal(t, Search, rec.all()[0].Mode)
}

func TestSubmit_SearchEmptyResults(t *testing.T) {
	b := &backend{}
	c := New(b, b.open)
	defer c.Teardown()

	require.NoError(t, c.Submit(context.Background(), Query{Text: "nothing", Mode: Search}))
	st := wait(t, c)
	assert.Equal(t, Succeeded, st.Status)
	assert.NotNil(t, st.Results)
	assert.Empty(t, st.Results)
}

func TestSubmit_SearchFailure(t *testing.T) {
	boom := &transport.TransportError{Op: "search", StatusCode: 500, Detail: "boom"}
	b := &backend{search: func(context.Context, string) (*transport.SearchResponse, error) {
		return nil, boom
	}}
	c := New(b, b.open)
	defer c.Teardown()

	require.NoError(t, c.Submit(context.Background(), Query{Text: "q", Mode: Search}))
	st := wait(t, c)
	assert.Equal(t, Failed, st.Status)
	assert.ErrorIs(t, st.Err, boom)
}

func TestSubmit_StaleSearchDiscarded(t *testing.T) {
	release := make(chan struct{})
	b := &backend{search: func(ctx context.Context, q string) (*transport.SearchResponse, error) {
		if q == "slow" {
			<-release
			return &transport.SearchResponse{Results: []transport.SearchResult{{Text: "stale"}}}, nil
		}
		return &transport.SearchResponse{Results: []transport.SearchResult{{Text: "fresh"}}}, nil
	}}
	c := New(b, b.open)
	defer c.Teardown()

	require.NoError(t, c.Submit(context.Background(), Query{Text: "slow", Mode: Search}))
	require.NoError(t, c.Submit(context.Background(), Query{Text: "fast", Mode: Search}))
	st := wait(t, c)
	require.Equal(t, "fresh", st.Results[0].Text)

	close(release)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, "fresh", c.State().Results[0].Text)
	assert.Equal(t, "fast", c.State().Query)
}

func TestSubmit_SearchSupersedesAsk(t *testing.T) {
	b := &backend{}
	c := New(b, b.open)
	defer c.Teardown()

	require.NoError(t, c.Submit(context.Background(), Query{Text: "ask first"}))
	h := b.handle(0)
	require.NoError(t, c.Submit(context.Background(), Query{Text: "then search", Mode: Search}))
	assert.True(t, h.isClosed())

	st := wait(t, c)
	assert.Equal(t, Search, st.Mode)
	assert.Equal(t, Succeeded, st.Status)
}

// =============================================================================
// END TO END
// =============================================================================

func TestController_OverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search/":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"results":[{"text":"b","score":0.2,"metadata":{}},{"text":"a","score":0.8,"metadata":{}}]}`)
		case "/ask/":
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, "data: {\"content\":\"Retrieval-\"}\n\ndata: {\"content\":\"Augmented Generation\"}\n\ndata: {\"end\":true}\n\n")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewForClient(transport.New(srv.URL))
	defer c.Teardown()

	require.NoError(t, c.Submit(context.Background(), Query{Text: "What is RAG?"}))
	st := wait(t, c)
	assert.Equal(t, Succeeded, st.Status)
	assert.Equal(t, "Retrieval-Augmented Generation", st.Answer)

	require.NoError(t, c.Submit(context.Background(), Query{Text: "docs", Mode: Search}))
	st = wait(t, c)
	require.Len(t, st.Results, 2)
	assert.Equal(t, "b", st.Results[0].Text)
	assert.Equal(t, "a", st.Results[1].Text)
}
