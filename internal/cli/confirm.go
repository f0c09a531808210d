// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// confirm.go - Confirmation for destructive commands.
//
//  1. If --confirm is present, proceed without prompting
//  2. In --json mode, require --confirm (no interactive prompts)
//  3. If stdin is not a TTY, require --confirm (can't prompt)
//  4. Otherwise, prompt

package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrConfirmationRequired is returned when --confirm is needed but missing.
var ErrConfirmationRequired = &ValidationError{
	Field:   "confirm",
	Reason:  "confirmation required for destructive actions",
	Example: "shyft history clear --confirm",
}

// RequireConfirmation checks if the user has confirmed a destructive action.
// It returns false without error when the user answers no.
func RequireConfirmation(confirmFlag bool, action string, jsonMode bool) (bool, error) {
	if confirmFlag {
		return true, nil
	}
	if jsonMode || !IsTTY() {
		return false, ErrConfirmationRequired
	}
	return promptYesNo(os.Stdin, os.Stderr, fmt.Sprintf("Are you sure you want to %s?", action)), nil
}

// PromptYesNo prompts with a yes/no question. Non-TTY stdin answers no.
func PromptYesNo(question string) bool {
	if !IsTTY() {
		return false
	}
	return promptYesNo(os.Stdin, os.Stderr, question)
}

func promptYesNo(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)

	reader := bufio.NewReader(in)
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return false
	}

	response := strings.ToLower(strings.TrimSpace(input))
	return response == "y" || response == "yes"
}

// ShowCancellationMessage displays a standard cancellation message.
func ShowCancellationMessage(w io.Writer) {
	fmt.Fprintln(w, DimStyle.Render("Cancelled."))
}
