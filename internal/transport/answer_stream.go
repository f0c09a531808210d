// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// STREAMING: the answer stream is owned by exactly one StreamHandle.

// frameBuffer lets the reader run a few events ahead of a slow consumer.
const frameBuffer = 16

// StreamHandle is one open answer stream. Frames are delivered in arrival
// order on a single channel which is closed when the stream goroutine exits.
//
// The handle is the only capability to observe or close the stream and must
// not be shared between owners.
type StreamHandle struct {
	frames chan Frame
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
}

// OpenAnswerStream starts GET /ask/?query=...&stream=true and returns at once.
// The connection is made on a background goroutine; its outcome arrives as
// the first frame (FrameOpen or FrameClosed).
func (c *Client) OpenAnswerStream(ctx context.Context, query string) *StreamHandle {
	ctx, cancel := context.WithCancel(ctx)
	h := &StreamHandle{
		frames: make(chan Frame, frameBuffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	target := c.endpoint("/ask/", url.Values{"query": {query}, "stream": {"true"}})
	go h.run(ctx, c, target)
	return h
}

// Frames returns the frame channel. It is closed after the last frame, or
// soon after Close.
func (h *StreamHandle) Frames() <-chan Frame {
	return h.frames
}

// Done is closed once the stream goroutine has exited and the connection is
// released.
func (h *StreamHandle) Done() <-chan struct{} {
	return h.done
}

// Close aborts the stream and waits until the connection is released.
// Safe to call multiple times and from any goroutine except a consumer that
// would block the handle (the handle never blocks on a closed consumer).
func (h *StreamHandle) Close() {
	h.once.Do(h.cancel)
	<-h.done
}

func (h *StreamHandle) run(ctx context.Context, c *Client, target string) {
	defer close(h.done)
	defer close(h.frames)
	defer h.cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		h.emit(ctx, Frame{Kind: FrameClosed, Err: &ConnectionError{Err: err}})
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.streamClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn(logModule, "stream connect failed", map[string]interface{}{"error": err})
		h.emit(ctx, Frame{Kind: FrameClosed, Err: &ConnectionError{Err: err}})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		detail := errorDetail(body)
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		h.emit(ctx, Frame{Kind: FrameClosed, Err: &ConnectionError{StatusCode: resp.StatusCode, Err: errors.New(detail)}})
		return
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch mediaType {
	case "text/event-stream", "":
	case "application/json":
		// The backend answers "no relevant documents" with a plain JSON body
		// instead of a stream; deliver it as the only event.
		if !h.emit(ctx, Frame{Kind: FrameOpen}) {
			return
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, MaxFrameSize+1))
		switch {
		case err != nil:
			h.closeWith(ctx, err)
		case len(data) > MaxFrameSize:
			h.emit(ctx, Frame{Kind: FrameData, Err: ErrFrameTooLarge})
			h.closeWith(ctx, ErrStreamEnded)
		default:
			if h.emit(ctx, Frame{Kind: FrameData, Data: data}) {
				h.closeWith(ctx, ErrStreamEnded)
			}
		}
		return
	default:
		h.emit(ctx, Frame{Kind: FrameClosed, Err: &ConnectionError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected content type %q", mediaType),
		}})
		return
	}

	c.logger.Debug(logModule, "stream open", map[string]interface{}{"connect": time.Since(start).String()})
	if !h.emit(ctx, Frame{Kind: FrameOpen}) {
		return
	}

	reader := NewSSEReader(resp.Body)
	for {
		eventType, data, err := reader.ReadEvent()
		if errors.Is(err, ErrFrameTooLarge) {
			if !h.emit(ctx, Frame{Kind: FrameData, Err: err}) {
				return
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				err = ErrStreamEnded
			}
			h.closeWith(ctx, err)
			return
		}
		// Named events are not answer payloads
		if eventType != "" && eventType != "message" {
			continue
		}
		if !h.emit(ctx, Frame{Kind: FrameData, Data: data}) {
			return
		}
	}
}

func (h *StreamHandle) closeWith(ctx context.Context, err error) {
	h.emit(ctx, Frame{Kind: FrameClosed, Err: &ConnectionError{Err: err}})
}

// emit delivers f unless the handle was closed first.
func (h *StreamHandle) emit(ctx context.Context, f Frame) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case h.frames <- f:
		return true
	case <-ctx.Done():
		return false
	}
}
