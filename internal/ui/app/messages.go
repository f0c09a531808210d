// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/joshndala/shyft-rag-app/internal/query"
)

// stateMsg carries one controller snapshot into the update loop.
type stateMsg struct {
	state query.State
}

// subscriptionClosedMsg is sent once the controller has been torn down.
type subscriptionClosedMsg struct{}

// uploadDoneMsg reports a finished upload.
type uploadDoneMsg struct {
	path    string
	message string
	err     error
}

// waitForState reads the next snapshot. The model re-issues it after every
// stateMsg, so exactly one read is pending at a time.
func waitForState(updates <-chan query.State) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-updates
		if !ok {
			return subscriptionClosedMsg{}
		}
		return stateMsg{state: st}
	}
}
