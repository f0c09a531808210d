// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Ellipsis is appended to truncated text.
const Ellipsis = "..."

// UNICODE: Width-aware truncation keeps CJK and emoji snippets aligned in
// the terminal and never splits a multi-byte character.

// TruncateWidth cuts s so that it occupies at most maxWidth terminal cells,
// ellipsis included. Strings that already fit are returned unchanged.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= len(Ellipsis) {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, Ellipsis)
}

// CollapseSpace replaces every run of whitespace (newlines included) with a
// single space and trims the ends. Extracted PDF text is full of hard wraps.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// PadRight pads s with spaces to width display cells.
func PadRight(s string, width int) string {
	return runewidth.FillRight(s, width)
}
