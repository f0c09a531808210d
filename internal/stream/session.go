// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joshndala/shyft-rag-app/internal/logging"
	"github.com/joshndala/shyft-rag-app/internal/transport"
)

const logModule = "stream"

// Handle is the part of *transport.StreamHandle a Session needs.
type Handle interface {
	Frames() <-chan transport.Frame
	Close()
}

// OpenFunc opens an answer stream for query. It must return immediately.
type OpenFunc func(ctx context.Context, query string) Handle

// FromClient adapts a transport client to an OpenFunc.
func FromClient(c *transport.Client) OpenFunc {
	return func(ctx context.Context, query string) Handle {
		return c.OpenAnswerStream(ctx, query)
	}
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger used for skipped frames and lifecycle entries.
func WithLogger(l logging.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithObserver registers fn to receive every state change. fn runs on the
// session goroutine, one update at a time, and must not block or call Cancel
// on the same session.
func WithObserver(fn func(Update)) Option {
	return func(s *Session) {
		s.observer = fn
	}
}

// WithID overrides the generated session ID.
func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// Session is one streaming exchange. It is single use: open it once, then
// let it finish or cancel it.
type Session struct {
	id       string
	logger   logging.Logger
	observer func(Update)

	mu        sync.Mutex
	state     State
	text      strings.Builder
	opened    bool
	cancelled bool
	stats     Stats

	// emitMu serializes frame processing with observer delivery so that
	// Cancel can wait out an in-flight notification.
	emitMu sync.Mutex

	handle   releaser
	finished chan struct{}
	finish   sync.Once
}

// New returns an Idle session.
func New(opts ...Option) *Session {
	s := &Session{
		id:       uuid.NewString(),
		logger:   logging.NewNop(),
		finished: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session's unique ID.
func (s *Session) ID() string {
	return s.id
}

// State returns the current snapshot.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns timing and counters collected so far.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	if st.Duration == 0 && !st.Started.IsZero() {
		st.Duration = time.Since(st.Started)
	}
	return st
}

// Done is closed when the session becomes terminal or is cancelled.
func (s *Session) Done() <-chan struct{} {
	return s.finished
}

// Wait blocks until the session is terminal or cancelled, or ctx ends.
func (s *Session) Wait(ctx context.Context) (State, error) {
	select {
	case <-s.finished:
		return s.State(), nil
	case <-ctx.Done():
		return s.State(), ctx.Err()
	}
}

// Open moves the session from Idle to Connecting and starts consuming the
// handle returned by open. It does not block on the network.
func (s *Session) Open(ctx context.Context, open OpenFunc, query string) error {
	s.mu.Lock()
	switch {
	case s.cancelled:
		s.mu.Unlock()
		return ErrCancelled
	case s.opened:
		s.mu.Unlock()
		return ErrAlreadyOpened
	}
	s.opened = true
	s.state = State{Phase: Connecting}
	s.stats.Started = time.Now()
	s.mu.Unlock()

	s.logger.Debug(logModule, "session opening", map[string]interface{}{"session": s.id})
	s.emitMu.Lock()
	if s.live() {
		s.notify(State{Phase: Connecting})
	}
	s.emitMu.Unlock()

	h := open(ctx, query)
	// A Cancel that raced with open closes the handle right here
	s.handle.set(h.Close)
	go s.pump(ctx, h)
	return nil
}

func (s *Session) live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.cancelled && !s.state.Phase.Terminal()
}

// Cancel abandons the exchange: the state becomes Idle, the handle is closed
// and no further update is delivered once Cancel returns. Calling it again,
// or on a Completed or Failed session, does nothing.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.cancelled || s.state.Phase.Terminal() {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	s.state = State{Phase: Idle}
	s.closeStats()
	s.mu.Unlock()

	s.handle.run()

	// Wait out a notification that was already being delivered
	s.emitMu.Lock()
	s.emitMu.Unlock()

	s.logger.Debug(logModule, "session cancelled", map[string]interface{}{"session": s.id})
	s.finish.Do(func() { close(s.finished) })
}

// pump consumes frames in arrival order until the session stops.
func (s *Session) pump(ctx context.Context, h Handle) {
	for f := range h.Frames() {
		if stop := s.apply(f); stop {
			break
		}
	}

	// Channel closed without a terminal frame: the caller's context ended
	// or the handle was closed underneath us
	var err error = &transport.ConnectionError{Err: transport.ErrStreamEnded}
	if ctx.Err() != nil {
		err = &transport.ConnectionError{Err: ctx.Err()}
	}
	s.apply(transport.Frame{Kind: transport.FrameClosed, Err: err})
	s.handle.run()
}

// apply folds one frame into the state. It reports whether the session is
// finished with its handle.
func (s *Session) apply(f transport.Frame) bool {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.cancelled || s.state.Phase.Terminal() {
		s.mu.Unlock()
		return true
	}

	switch f.Kind {
	case transport.FrameOpen:
		if s.state.Phase != Connecting {
			s.mu.Unlock()
			return false
		}
		s.state = State{Phase: Streaming}

	case transport.FrameData:
		if f.Err != nil {
			s.skip(&DecodeError{Err: f.Err})
			s.mu.Unlock()
			return false
		}
		ev, err := Decode(f.Data)
		if err != nil {
			s.skip(err)
			s.mu.Unlock()
			return false
		}
		s.fold(ev)

	case transport.FrameClosed:
		err := f.Err
		if err == nil {
			err = &transport.ConnectionError{Err: transport.ErrStreamEnded}
		}
		s.state = State{Phase: Failed, Text: s.text.String(), Err: err}
	}

	st := s.state
	terminal := st.Phase.Terminal()
	if terminal {
		s.closeStats()
	}
	s.mu.Unlock()

	if terminal {
		// Release the connection before anyone observes the terminal state
		s.handle.run()
		s.logTerminal(st)
	}
	s.notify(st)
	if terminal {
		s.finish.Do(func() { close(s.finished) })
	}
	return terminal
}

// fold applies a decoded event. Caller holds s.mu.
func (s *Session) fold(ev Event) {
	if s.state.Phase == Connecting {
		s.state = State{Phase: Streaming}
	}
	switch e := ev.(type) {
	case Content:
		if s.stats.Fragments == 0 {
			s.stats.FirstContent = time.Since(s.stats.Started)
		}
		s.stats.Fragments++
		s.text.WriteString(e.Text)
		s.state = State{Phase: Streaming, Text: s.text.String()}
	case End:
		s.state = State{Phase: Completed, Text: s.text.String()}
	case Error:
		s.state = State{Phase: Failed, Text: s.text.String(), Err: &PayloadError{Message: e.Message}}
	}
}

// skip records a malformed frame. Caller holds s.mu.
func (s *Session) skip(err error) {
	s.stats.Skipped++
	s.logger.Warn(logModule, "skipping malformed frame", map[string]interface{}{
		"session": s.id,
		"error":   err,
	})
}

// closeStats stamps the duration. Caller holds s.mu.
func (s *Session) closeStats() {
	if !s.stats.Started.IsZero() && s.stats.Duration == 0 {
		s.stats.Duration = time.Since(s.stats.Started)
	}
}

func (s *Session) logTerminal(st State) {
	details := map[string]interface{}{
		"session": s.id,
		"phase":   st.Phase.String(),
		"chars":   len(st.Text),
	}
	if st.Err != nil {
		details["error"] = st.Err
		s.logger.Warn(logModule, "session failed", details)
		return
	}
	s.logger.Info(logModule, "session completed", details)
}

func (s *Session) notify(st State) {
	if s.observer != nil {
		s.observer(Update{SessionID: s.id, State: st})
	}
}
