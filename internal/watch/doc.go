// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package watch uploads documents dropped into a folder.
//
// A Watcher listens for file changes with fsnotify, or polls when fsnotify is
// unavailable, waits for writes to settle, and uploads each new or changed
// file once. Content hashes are kept in a small state file so restarts do not
// upload the same document again. Uploads are rate limited.
package watch
