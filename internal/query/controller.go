// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package query

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/joshndala/shyft-rag-app/internal/logging"
	"github.com/joshndala/shyft-rag-app/internal/stream"
	"github.com/joshndala/shyft-rag-app/internal/transport"
)

const logModule = "query"

// Searcher runs a hybrid search. *transport.Client implements it.
type Searcher interface {
	Search(ctx context.Context, query string, weights transport.Weights, topK int) (*transport.SearchResponse, error)
}

// Outcome is handed to a Recorder when a submission finishes.
type Outcome struct {
	Mode      Mode
	Query     string
	Answer    string
	Results   []transport.SearchResult
	Err       error
	SessionID string
	Started   time.Time
	Duration  time.Duration
}

// Recorder persists finished submissions.
type Recorder interface {
	Record(ctx context.Context, o Outcome) error
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller and session logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRecorder stores every finished submission. Cancelled and invalid
// submissions are not recorded.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// WithSearchDefaults overrides top_k and the hybrid weights used for Search.
func WithSearchDefaults(topK int, w transport.Weights) Option {
	return func(c *Controller) {
		if topK > 0 {
			c.topK = topK
		}
		c.weights = w
	}
}

// Controller runs at most one submission at a time.
type Controller struct {
	searcher Searcher
	open     stream.OpenFunc
	logger   logging.Logger
	recorder Recorder
	topK     int
	weights  transport.Weights

	// opMu serializes Submit, Cancel and Teardown. Session callbacks only
	// take mu, so holding opMu across session.Cancel is safe.
	opMu sync.Mutex

	mu           sync.Mutex
	state        State
	seq          uint64
	session      *stream.Session
	searchCancel context.CancelFunc
	started      time.Time
	done         chan struct{}
	subs         map[int]chan State
	nextSub      int
	closed       bool

	records sync.WaitGroup
}

// New returns an Idle controller.
func New(searcher Searcher, open stream.OpenFunc, opts ...Option) *Controller {
	done := make(chan struct{})
	close(done)
	c := &Controller{
		searcher: searcher,
		open:     open,
		logger:   logging.NewNop(),
		topK:     transport.DefaultTopK,
		weights:  transport.DefaultWeights(),
		done:     done,
		subs:     make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewForClient wires a controller to a transport client.
func NewForClient(client *transport.Client, opts ...Option) *Controller {
	return New(client, stream.FromClient(client), opts...)
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe returns a channel that always holds the latest state. Slow
// readers miss intermediate states, never the last one. The channel is
// closed by the returned func or by Teardown.
func (c *Controller) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan State, 1)
	if c.closed {
		ch <- c.state
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.state

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

// Submit cancels the running submission and starts q. A blank query moves
// the controller to Invalid and returns a *ValidationError without touching
// the network. Submit returns once the request has been started.
func (c *Controller) Submit(ctx context.Context, q Query) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	c.supersede()

	text, err := q.Validate()
	if err != nil {
		c.mu.Lock()
		c.seq++
		c.setLocked(State{Status: Invalid, Mode: q.Mode, Err: err, Seq: c.seq})
		c.mu.Unlock()
		c.logger.Debug(logModule, "query rejected", map[string]interface{}{"mode": q.Mode.String()})
		return err
	}

	var (
		seq uint64
		s   *stream.Session
	)
	if q.Mode == Ask {
		// seq is assigned below, before Open starts the session goroutine
		s = stream.New(
			stream.WithLogger(c.logger),
			stream.WithObserver(func(u stream.Update) { c.onUpdate(seq, text, u) }),
		)
	}

	c.mu.Lock()
	c.seq++
	seq = c.seq
	c.started = time.Now()
	c.done = make(chan struct{})
	loading := State{Status: Loading, Mode: q.Mode, Query: text, Seq: seq}
	if s != nil {
		c.session = s
		loading.SessionID = s.ID()
	}
	c.setLocked(loading)
	c.mu.Unlock()

	c.logger.Info(logModule, "query submitted", map[string]interface{}{
		"mode":  q.Mode.String(),
		"chars": len(text),
	})

	if q.Mode == Search {
		c.startSearch(ctx, seq, text)
		return nil
	}
	return c.startAsk(ctx, seq, text, s)
}

// Cancel abandons the running submission. The controller goes back to Idle
// unless the submission already finished.
func (c *Controller) Cancel() {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.supersede()
}

// Teardown cancels the running submission, closes all subscriptions and
// waits for pending history writes. Submit fails afterwards.
func (c *Controller) Teardown() {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.supersede()

	c.mu.Lock()
	if !c.closed {
		c.closed = true
		for id, ch := range c.subs {
			delete(c.subs, id)
			close(ch)
		}
	}
	c.mu.Unlock()

	c.records.Wait()
}

// Wait blocks until the current submission finishes or is superseded, or
// ctx ends.
func (c *Controller) Wait(ctx context.Context) (State, error) {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	select {
	case <-done:
		return c.State(), nil
	case <-ctx.Done():
		return c.State(), ctx.Err()
	}
}

// supersede stops the running submission. Caller holds opMu, not mu.
func (c *Controller) supersede() {
	c.mu.Lock()
	s := c.session
	cancel := c.searchCancel
	c.session = nil
	c.searchCancel = nil
	// Bumping seq first makes any callback that is already past its own
	// check see a stale sequence number
	c.seq++
	if c.state.Status.Busy() {
		c.setLocked(State{Status: Idle, Mode: c.state.Mode, Query: c.state.Query, Seq: c.seq})
	}
	c.finishLocked()
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if s != nil {
		// Returns only after the session has stopped delivering updates
		s.Cancel()
		c.logger.Debug(logModule, "superseded answer stream", map[string]interface{}{"session": s.ID()})
	}
}

func (c *Controller) startSearch(ctx context.Context, seq uint64, text string) {
	sctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.searchCancel = cancel
	topK, weights := c.topK, c.weights
	c.mu.Unlock()

	go func() {
		defer cancel()
		resp, err := c.searcher.Search(sctx, text, weights, topK)

		c.mu.Lock()
		if seq != c.seq {
			c.mu.Unlock()
			return
		}
		st := State{Status: Succeeded, Mode: Search, Query: text, Seq: seq}
		if err != nil {
			st.Status = Failed
			st.Err = err
		} else if resp != nil {
			st.Results = resp.Results
		}
		if st.Results == nil && err == nil {
			st.Results = []transport.SearchResult{}
		}
		c.searchCancel = nil
		c.setLocked(st)
		c.finishLocked()
		c.recordLocked(Outcome{Mode: Search, Query: text, Results: st.Results, Err: err, Started: c.started, Duration: time.Since(c.started)})
		c.mu.Unlock()

		if err != nil {
			c.logger.Warn(logModule, "search failed", map[string]interface{}{"error": err})
		}
	}()
}

func (c *Controller) startAsk(ctx context.Context, seq uint64, text string, s *stream.Session) error {
	if err := s.Open(ctx, c.open, text); err != nil {
		c.mu.Lock()
		if seq == c.seq {
			c.session = nil
			c.setLocked(State{Status: Failed, Mode: Ask, Query: text, Err: err, SessionID: s.ID(), Seq: seq})
			c.finishLocked()
		}
		c.mu.Unlock()
		return err
	}
	return nil
}

// onUpdate maps session states onto controller states. It runs on the
// session goroutine.
func (c *Controller) onUpdate(seq uint64, text string, u stream.Update) {
	c.mu.Lock()
	if seq != c.seq {
		c.mu.Unlock()
		return
	}

	st := State{Mode: Ask, Query: text, Answer: u.State.Text, SessionID: u.SessionID, Seq: seq}
	switch u.State.Phase {
	case stream.Connecting:
		st.Status = Loading
	case stream.Streaming:
		st.Status = Streaming
	case stream.Completed:
		st.Status = Succeeded
	case stream.Failed:
		st.Status = Failed
		st.Err = u.State.Err
	default:
		st.Status = Idle
	}
	c.setLocked(st)

	if u.State.Phase.Terminal() {
		c.session = nil
		c.finishLocked()
		c.recordLocked(Outcome{Mode: Ask, Query: text, Answer: st.Answer, Err: st.Err, SessionID: u.SessionID, Started: c.started, Duration: time.Since(c.started)})
	}
	c.mu.Unlock()
}

// setLocked stores st and fans it out. Caller holds mu.
func (c *Controller) setLocked(st State) {
	c.state = st
	for _, ch := range c.subs {
		select {
		case ch <- st:
		default:
			// Replace the stale value
			select {
			case <-ch:
			default:
			}
			ch <- st
		}
	}
}

// finishLocked releases Wait callers. Caller holds mu.
func (c *Controller) finishLocked() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}

// recordLocked hands o to the recorder in the background. Caller holds mu,
// which orders the Add before Teardown's Wait.
func (c *Controller) recordLocked(o Outcome) {
	if c.recorder == nil {
		return
	}
	var ve *ValidationError
	if errors.As(o.Err, &ve) {
		return
	}
	c.records.Add(1)
	go func() {
		defer c.records.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.recorder.Record(ctx, o); err != nil {
			c.logger.Warn(logModule, "failed to record history", map[string]interface{}{"error": err})
		}
	}()
}
