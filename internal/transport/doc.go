// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport implements the HTTP client for the RAG document service.
//
// The backend exposes four routes: POST /upload/ for documents, GET /search/
// for hybrid semantic and keyword search, GET /ask/ for answers (plain or as a
// Server-Sent Events stream) and GET / as a health check.
//
// # Key Types
//
//   - Client: request/response calls plus OpenAnswerStream
//   - StreamHandle: one open answer stream; the only way to observe or close it
//   - Frame: one unit delivered by a StreamHandle (open, data, closed)
//   - SSEReader: Server-Sent Events parser
//   - TransportError, ConnectionError: request and stream failures
//
// # Usage
//
//	client := transport.New(cfg.Server.URL, transport.WithTimeout(cfg.Timeout()))
//	resp, err := client.Search(ctx, "vector db", transport.DefaultWeights(), 5)
//
//	h := client.OpenAnswerStream(ctx, "What is RAG?")
//	defer h.Close()
//	for f := range h.Frames() {
//	    ...
//	}
//
// Nothing in this package retries. A failed call is reported once and the
// caller decides what to do next.
package transport
