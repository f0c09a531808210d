// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyFrame is a frame with no payload.
	ErrEmptyFrame = errors.New("empty frame")

	// ErrNoEvent is a well-formed payload that carries none of the known keys.
	ErrNoEvent = errors.New("frame carries no event")

	// ErrContentNotText is a content value that is an object or array.
	ErrContentNotText = errors.New("content is not text")

	// ErrAlreadyOpened is returned when Open is called twice on a session.
	ErrAlreadyOpened = errors.New("session already opened")

	// ErrCancelled is returned when Open is called on a cancelled session.
	ErrCancelled = errors.New("session cancelled")
)

// PayloadError is a failure the server reported inside the stream.
type PayloadError struct {
	Message string
}

func (e *PayloadError) Error() string {
	return e.Message
}

// DecodeError describes a frame that could not be turned into an Event.
// Sessions log and skip these; they never end a session.
type DecodeError struct {
	Data []byte
	Err  error
}

func (e *DecodeError) Error() string {
	const maxShown = 80
	shown := string(e.Data)
	if len(shown) > maxShown {
		shown = shown[:maxShown] + "..."
	}
	return fmt.Sprintf("malformed frame %q: %v", shown, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
