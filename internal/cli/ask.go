// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - The ask command: stream one answer to stdout.
package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/joshndala/shyft-rag-app/internal/query"
	"github.com/joshndala/shyft-rag-app/internal/transport"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// renderMarkdown renders markdown for the terminal, or returns content
// unchanged if glamour fails.
func renderMarkdown(content string, width int) string {
	if width <= 0 {
		width = DefaultTerminalWidth
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// =============================================================================
// ERRORS SHOWN TO THE USER
// =============================================================================

// userError shows Message in place of the wrapped error's text. Exit codes
// still follow the wrapped error.
type userError struct {
	Message string
	Err     error
}

func (e *userError) Error() string {
	return e.Message
}

func (e *userError) Unwrap() error {
	return e.Err
}

// askError replaces connection failures with the generic retry message.
func askError(err error) error {
	var ce *transport.ConnectionError
	if errors.As(err, &ce) {
		return &userError{Message: ConnectionFailedMessage, Err: err}
	}
	var te *transport.TransportError
	if errors.As(err, &te) && te.Network() {
		return &userError{Message: ConnectionFailedMessage, Err: err}
	}
	return err
}

// =============================================================================
// ASK COMMAND
// =============================================================================

// HandleAsk handles "shyft ask". An empty question fails before any request
// is made.
func HandleAsk(ctx context.Context, env *Env, args Args) error {
	q := query.Query{Text: args.Query, Mode: query.Ask}
	text, err := q.Validate()
	if err != nil {
		return err
	}

	if args.NoStream {
		return askOnce(ctx, env, args, text)
	}
	return askStream(ctx, env, q)
}

// askStream prints each fragment as it arrives.
func askStream(ctx context.Context, env *Env, q query.Query) error {
	ctrl := env.Controller()
	defer ctrl.Teardown()

	updates, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	start := time.Now()
	if err := ctrl.Submit(ctx, q); err != nil {
		return askError(err)
	}
	seq := ctrl.State().Seq

	live := !env.JSON
	printed := 0
	var final query.State

loop:
	for {
		select {
		case st, ok := <-updates:
			if !ok {
				final = ctrl.State()
				break loop
			}
			if st.Seq != seq {
				continue
			}
			if live && len(st.Answer) > printed {
				fmt.Fprint(env.Out, st.Answer[printed:])
				printed = len(st.Answer)
			}
			if st.Status.Done() {
				final = st
				break loop
			}
		case <-ctx.Done():
			ctrl.Cancel()
			if live && printed > 0 {
				fmt.Fprintln(env.Out)
			}
			return ctx.Err()
		}
	}

	if live && printed > 0 {
		fmt.Fprintln(env.Out)
	}

	if final.Status == query.Failed {
		return askError(final.Err)
	}

	if env.JSON {
		return NewJSONResponse("ask", AskData{
			Query:      final.Query,
			Answer:     final.Answer,
			Streamed:   true,
			SessionID:  final.SessionID,
			DurationMs: time.Since(start).Milliseconds(),
		}).Fprint(env.Out)
	}

	if !env.Quiet && IsStdoutTTY() {
		fmt.Fprintln(env.Err, DimStyle.Render(formatDurationShort(time.Since(start))))
	}
	return nil
}

// askOnce waits for the complete answer and renders it as markdown on a
// terminal.
func askOnce(ctx context.Context, env *Env, args Args, text string) error {
	start := time.Now()
	answer, err := env.Client.Ask(ctx, text)

	if store, herr := env.History(); herr == nil && store != nil {
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if rerr := store.Record(rctx, query.Outcome{
			Mode:     query.Ask,
			Query:    text,
			Answer:   answer,
			Err:      err,
			Started:  start,
			Duration: time.Since(start),
		}); rerr != nil {
			env.Logger.Warn("cli", "failed to record history", map[string]interface{}{"error": rerr})
		}
		cancel()
	}

	if err != nil {
		return askError(err)
	}

	if env.JSON {
		return NewJSONResponse("ask", AskData{
			Query:      text,
			Answer:     answer,
			Streamed:   false,
			DurationMs: time.Since(start).Milliseconds(),
		}).Fprint(env.Out)
	}

	if env.Config.UI.Markdown && !args.Plain && IsStdoutTTY() {
		fmt.Fprint(env.Out, renderMarkdown(answer, GetTerminalWidth()-4))
		return nil
	}
	fmt.Fprintln(env.Out, answer)
	return nil
}
