// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package query

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Mode selects what a submission does.
type Mode int

const (
	// Ask streams a generated answer.
	Ask Mode = iota
	// Search runs a hybrid document search.
	Search
)

func (m Mode) String() string {
	switch m {
	case Ask:
		return "ask"
	case Search:
		return "search"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "ask" or "search", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ask", "":
		return Ask, nil
	case "search":
		return Search, nil
	}
	return Ask, fmt.Errorf("unknown mode %q (want ask or search)", s)
}

// Query is one user submission.
type Query struct {
	Text string
	Mode Mode
}

// Normalize returns the text that is actually sent: NFC-normalized with
// surrounding whitespace removed.
func Normalize(text string) string {
	return strings.TrimSpace(norm.NFC.String(text))
}

// ErrEmptyQuery is wrapped by the ValidationError for blank input.
var ErrEmptyQuery = errors.New("query is empty")

// ErrClosed is returned by Submit after Teardown.
var ErrClosed = errors.New("controller is torn down")

// ValidationError rejects a query before any network call.
type ValidationError struct {
	Query string
	Err   error
}

func (e *ValidationError) Error() string {
	return "invalid query: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validate returns the normalized text, or a *ValidationError.
func (q Query) Validate() (string, error) {
	text := Normalize(q.Text)
	if text == "" {
		return "", &ValidationError{Query: q.Text, Err: ErrEmptyQuery}
	}
	return text, nil
}
