// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package query owns the user's current question.
//
// A Controller accepts a Query, validates it, cancels whatever was running
// and starts either a search or a streamed answer. Front ends read the result
// through State or Subscribe; they never touch sessions directly.
//
// Only the most recent submission can change the visible state. A search
// that returns after being superseded, or a stream frame that arrives from a
// cancelled session, is dropped.
package query
