// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Event is one decoded stream payload. It is a closed set: Content, End and
// Error are the only implementations.
type Event interface {
	event()
}

// Content is an incremental fragment of the answer.
type Content struct {
	Text string
}

// End marks successful completion. Nothing follows it.
type End struct{}

// Error is a failure reported inside the stream payload.
type Error struct {
	Message string
}

func (Content) event() {}
func (End) event()     {}
func (Error) event()   {}

// payload mirrors the producer's {content?} | {end: true} | {error: string}.
type payload struct {
	Content json.RawMessage `json:"content"`
	End     json.RawMessage `json:"end"`
	Error   json.RawMessage `json:"error"`
}

// Decode parses one frame. When a payload sets several keys, end wins over
// error, and error over content. Keys are tested for truthiness, so
// {"end": false} or {"error": ""} do not count. Anything that does not yield
// exactly one event is a *DecodeError.
func Decode(data []byte) (Event, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &DecodeError{Data: data, Err: ErrEmptyFrame}
	}

	var p payload
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, &DecodeError{Data: data, Err: err}
	}

	if truthy(p.End) {
		return End{}, nil
	}
	if truthy(p.Error) {
		return Error{Message: rawText(p.Error)}, nil
	}
	if len(p.Content) > 0 && !isNull(p.Content) {
		// Numbers and booleans are appended as their JSON text
		switch bytes.TrimSpace(p.Content)[0] {
		case '{', '[':
			return nil, &DecodeError{Data: data, Err: ErrContentNotText}
		}
		return Content{Text: rawText(p.Content)}, nil
	}
	return nil, &DecodeError{Data: data, Err: ErrNoEvent}
}

// truthy follows JSON-producer truthiness: false, 0, "", null and absent
// are false; everything else, including objects and arrays, is true.
func truthy(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || isNull(raw) {
		return false
	}
	switch raw[0] {
	case 't':
		return true
	case 'f':
		return false
	case '"':
		var s string
		return json.Unmarshal(raw, &s) == nil && s != ""
	case '{', '[':
		return true
	default:
		f, err := strconv.ParseFloat(string(raw), 64)
		return err == nil && f != 0
	}
}

// rawText returns a JSON string's value, or the raw JSON for other types.
func rawText(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
