// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app is the full-screen shyft terminal UI.
//
// The UI has three tabs:
//
//	Ask     stream an answer to a question about the uploaded documents
//	Search  run a hybrid search and list the matching chunks
//	Upload  send a PDF or HTML file to the backend
//
// Ask and Search share one query.Controller, so a new submission on either
// tab supersedes whatever is still running. The model never talks to the
// backend directly: it submits to the controller and renders the State
// snapshots that arrive on the controller's subscription channel.
//
// KEY BINDINGS:
//
//	Enter       submit
//	Tab         next tab
//	Esc         cancel the running request
//	Ctrl+C      cancel, or quit when nothing is running
//	PgUp/PgDn   scroll
//	F1          toggle help
package app
