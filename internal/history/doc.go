// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history keeps a local record of asks and searches.
//
// Entries live in a SQLite database (pure Go driver) with an FTS5 index over
// the query and answer text, so `shyft history search` works offline. A Store
// satisfies query.Recorder and is handed to the controller directly.
package history
