// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package query

import (
	"fmt"

	"github.com/joshndala/shyft-rag-app/internal/transport"
)

// Status is what a front end shows for the current submission.
type Status int

const (
	// Idle: nothing submitted, or the last submission was cancelled.
	Idle Status = iota
	// Invalid: the last submission failed validation.
	Invalid
	// Loading: waiting for the first byte of a search or answer.
	Loading
	// Streaming: answer text is arriving.
	Streaming
	// Succeeded: search results or a complete answer are available.
	Succeeded
	// Failed: see State.Err.
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Invalid:
		return "invalid"
	case Loading:
		return "loading"
	case Streaming:
		return "streaming"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Busy reports whether a request is in flight.
func (s Status) Busy() bool {
	return s == Loading || s == Streaming
}

// Done reports whether the submission reached an outcome.
func (s Status) Done() bool {
	return s == Invalid || s == Succeeded || s == Failed
}

// State is a snapshot of the controller.
type State struct {
	Status Status
	Mode   Mode
	// Query is the normalized text of the submission this state belongs to
	Query string
	// Answer holds streamed text (partial while Streaming or after a failure)
	Answer string
	// Results holds search hits in server order
	Results []transport.SearchResult
	Err     error
	// SessionID is set for Ask submissions
	SessionID string
	// Seq increases with every submission
	Seq uint64
}
