// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream turns one answer stream into a small state machine.
//
// A Session consumes the frames of a single transport.StreamHandle, decodes
// each payload into an Event and folds the events into a State:
//
//	Idle -> Connecting -> Streaming(text) -> Completed(text)
//	                                      -> Failed(reason)
//	any non-terminal state --Cancel--> Idle
//
// Completed and Failed are terminal. Once a session is terminal or cancelled
// it ignores everything its handle still delivers, and the handle is closed.
//
// # Key Types
//
//   - Event: Content, End or Error, decoded by Decode
//   - State, Phase: snapshot of a session
//   - Session: owns one handle and its state
//   - PayloadError, DecodeError: stream level failures
//
// # Usage
//
//	s := stream.New(stream.WithObserver(func(u stream.Update) { ... }))
//	_ = s.Open(ctx, stream.FromClient(client), "What is RAG?")
//	st, _ := s.Wait(ctx)
package stream
