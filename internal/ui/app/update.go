// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joshndala/shyft-rag-app/internal/query"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.resize()
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case stateMsg:
		m.applyState(msg.state)
		return m, waitForState(m.updates)

	case subscriptionClosedMsg:
		return m, nil

	case uploadDoneMsg:
		entry := uploadEntry{path: msg.path, message: msg.message, err: msg.err}
		if msg.err == nil && !supportedUpload(msg.path) {
			entry.warning = "not a .pdf or .html file"
		}
		m.uploads = append(m.uploads, entry)
		m.uploading = ""
		if msg.err != nil {
			m.opts.Logger.Warn(logModule, "upload failed", map[string]interface{}{"file": msg.path, "error": msg.err.Error()})
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.inputs[m.tab], cmd = m.inputs[m.tab].Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Interrupt):
		if m.cancel() {
			return m, nil
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		m.cancel()
		return m, nil

	case key.Matches(msg, m.keys.NextTab):
		m.setTab((m.tab + 1) % tabCount)
		return m, nil

	case key.Matches(msg, m.keys.PrevTab):
		m.setTab((m.tab + tabCount - 1) % tabCount)
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m, m.submit()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.resize()
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Up):
		m.viewport.LineUp(1)
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.viewport.LineDown(1)
		return m, nil
	}

	var cmd tea.Cmd
	m.inputs[m.tab], cmd = m.inputs[m.tab].Update(msg)
	return m, cmd
}

// applyState files a snapshot under its mode and redraws when it belongs
// to the visible tab.
func (m *Model) applyState(st query.State) {
	m.latest = st
	switch st.Mode {
	case query.Search:
		m.search = st
	default:
		m.ask = st
	}
	follow := m.tab == TabAsk && st.Mode == query.Ask && m.viewport.AtBottom()
	m.refresh()
	if follow {
		m.viewport.GotoBottom()
	}
}

// resize lays out the viewport between the header and the input.
func (m *Model) resize() {
	if !m.ready {
		return
	}
	m.help.Width = m.width

	for i := range m.inputs {
		m.inputs[i].Width = max(m.width-6, 10)
	}

	chrome := lipgloss.Height(m.headerView()) +
		lipgloss.Height(m.tabsView()) +
		lipgloss.Height(m.inputView()) +
		lipgloss.Height(m.statusView())
	height := max(m.height-chrome, 1)
	width := max(m.width, 20)

	if m.viewport.Width == 0 && m.viewport.Height == 0 {
		m.viewport = newViewport(width, height)
		return
	}
	m.viewport.Width = width
	m.viewport.Height = height
}

// refresh re-renders the active tab into the viewport.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.contentView())
}
