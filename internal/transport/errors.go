// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"errors"
	"fmt"
)

// Error variables for common transport failures.
var (
	// ErrStreamEnded means the server closed the event stream without sending
	// a terminal payload.
	ErrStreamEnded = errors.New("stream ended before completion")

	// ErrFrameTooLarge means a single event exceeded MaxFrameSize.
	ErrFrameTooLarge = errors.New("event exceeds maximum frame size")

	// ErrResponseTooLarge means a response body exceeded MaxResponseSize.
	ErrResponseTooLarge = errors.New("response exceeds maximum size")
)

// TransportError describes a failed request/response call: the request never
// completed, the server answered with a non-2xx status, or a 2xx body carried
// an {"error": ...} payload.
type TransportError struct {
	// Op is the client operation: upload, search, ask or ping
	Op string
	// StatusCode is the HTTP status, 0 when no response arrived
	StatusCode int
	// Detail is the server supplied message, if any
	Detail string
	Err    error
}

func (e *TransportError) Error() string {
	switch {
	case e.Detail != "" && e.StatusCode != 0:
		return fmt.Sprintf("%s failed (HTTP %d): %s", e.Op, e.StatusCode, e.Detail)
	case e.Detail != "":
		return fmt.Sprintf("%s failed: %s", e.Op, e.Detail)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s failed (HTTP %d)", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return e.Op + " failed"
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Network reports whether the call failed before any response arrived.
func (e *TransportError) Network() bool {
	return e.StatusCode == 0 && e.Detail == ""
}

// ConnectionError reports that an answer stream could not be opened or was
// lost before a terminal payload arrived.
type ConnectionError struct {
	// StatusCode is set when the server refused the stream
	StatusCode int
	Err        error
}

func (e *ConnectionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("stream connection failed (HTTP %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("stream connection failed: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
