// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import "sync"

// =============================================================================
// HANDLE RELEASE (THREAD-SAFE)
// =============================================================================

// releaser holds the close function of the current handle. Both the session
// goroutine (on a terminal event) and Cancel (from the owner) release it, so
// access is mutex protected and the function runs at most once.
type releaser struct {
	mu      sync.Mutex
	release func()
	done    bool
}

// set stores fn. If release already ran, fn is invoked immediately so a
// handle that arrives after a cancel is never leaked.
func (r *releaser) set(fn func()) {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		fn()
		return
	}
	r.release = fn
	r.mu.Unlock()
}

// run invokes and clears the stored function. Safe to call multiple times or
// before set.
func (r *releaser) run() {
	r.mu.Lock()
	fn := r.release
	r.release = nil
	r.done = true
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}
