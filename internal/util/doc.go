// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small helpers shared by the shyft packages.
//
// # Key Functions
//
//   - AtomicWriteFile: crash-safe file replacement (config, watch state)
//   - TruncateWidth: display-width aware truncation for search snippets
//   - CollapseSpace: folds runs of whitespace in backend text
package util
