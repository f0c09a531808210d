// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"fmt"
	"time"
)

// Phase is the lifecycle position of a Session.
type Phase int

const (
	// Idle is a session that was never opened or was cancelled.
	Idle Phase = iota
	// Connecting waits for the server to accept the stream.
	Connecting
	// Streaming is accumulating content.
	Streaming
	// Completed received the end marker.
	Completed
	// Failed received an error payload or lost its connection.
	Failed
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Terminal reports whether no further events are processed in this phase.
func (p Phase) Terminal() bool {
	return p == Completed || p == Failed
}

// Active reports whether a connection is open or being opened.
func (p Phase) Active() bool {
	return p == Connecting || p == Streaming
}

// State is an immutable snapshot of a session.
type State struct {
	Phase Phase
	// Text is the accumulated answer while Streaming, the final answer when
	// Completed, and whatever arrived before the failure when Failed.
	Text string
	// Err is a *PayloadError or *transport.ConnectionError when Failed.
	Err error
}

// Update is delivered to observers after every state change.
type Update struct {
	SessionID string
	State     State
}

// Stats summarizes one session.
type Stats struct {
	Started time.Time
	// FirstContent is the delay until the first content fragment
	FirstContent time.Duration
	// Duration runs until the session became terminal or was cancelled
	Duration  time.Duration
	Fragments int
	// Skipped counts malformed frames
	Skipped int
}
