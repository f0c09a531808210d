// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/joshndala/shyft-rag-app/internal/query"
	"github.com/joshndala/shyft-rag-app/internal/transport"
	"github.com/joshndala/shyft-rag-app/internal/ui/styles"
	"github.com/joshndala/shyft-rag-app/internal/util"
)

// Messages shown in place of raw errors.
const (
	ConnectionFailedMessage = "Connection error. Please try again."
	SearchFailedMessage     = "Error searching documents"
	NoResultsMessage        = "No results found"
)

func newViewport(width, height int) viewport.Model {
	vp := viewport.New(width, height)
	vp.MouseWheelEnabled = true
	return vp
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "\n  Starting shyft..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		m.tabsView(),
		m.viewport.View(),
		m.inputView(),
		m.statusView(),
	)
}

// =============================================================================
// CHROME
// =============================================================================

func (m Model) headerView() string {
	line := m.theme.HeaderBrand.Render("shyft") + "  " + m.theme.HeaderInfo.Render(m.opts.ServerURL)
	return m.theme.Header.Width(max(m.width, 1)).Render(line)
}

func (m Model) tabsView() string {
	tabs := make([]string, 0, tabCount)
	for t := Tab(0); t < tabCount; t++ {
		style := m.theme.TabInactive
		if t == m.tab {
			style = m.theme.TabActive
		}
		tabs = append(tabs, style.Render(t.String()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) inputView() string {
	return m.theme.InputContainer.Width(max(m.width, 1)).Render(m.inputs[m.tab].View())
}

func (m Model) statusView() string {
	var status string
	if m.busy() {
		status = m.spinner.View() + " " + m.statusText()
	} else {
		status = m.theme.MutedStyle.Render(m.statusText())
	}
	bar := m.theme.StatusBar.Render(status)
	return lipgloss.JoinVertical(lipgloss.Left, bar, m.help.View(m.keys))
}

func (m Model) statusText() string {
	if m.uploading != "" {
		return "Uploading " + filepath.Base(m.uploading) + "..."
	}
	switch m.latest.Status {
	case query.Loading:
		if m.latest.Mode == query.Search {
			return "Searching..."
		}
		return "Waiting for the answer..."
	case query.Streaming:
		return "Streaming answer..."
	}
	return "Ready"
}

// =============================================================================
// CONTENT
// =============================================================================

func (m Model) contentView() string {
	width := max(m.viewport.Width-2, 20)
	switch m.tab {
	case TabSearch:
		return renderSearch(m.theme, m.search, width, m.opts.SnippetLength, m.opts.ShowScores)
	case TabUpload:
		return renderUploads(m.theme, m.uploads, m.uploading)
	default:
		return renderAnswer(m.theme, m.ask, width, m.opts.Markdown)
	}
}

// renderAnswer draws the ask tab for one controller snapshot.
func renderAnswer(th *styles.Theme, st query.State, width int, markdown bool) string {
	if st.Status == query.Invalid {
		return th.Warning("Please enter a question.")
	}
	if st.Query == "" {
		return th.Placeholder.Render("Ask a question about your uploaded documents.")
	}

	var b strings.Builder
	b.WriteString(th.Question.Render("> " + st.Query))
	b.WriteString("\n\n")

	body := th.Answer.Width(width)
	switch st.Status {
	case query.Loading:
		b.WriteString(th.MutedStyle.Render("Waiting for the answer..."))
	case query.Streaming:
		b.WriteString(body.Render(st.Answer))
	case query.Succeeded:
		if markdown {
			b.WriteString(th.Markdown(st.Answer, width))
		} else {
			b.WriteString(body.Render(st.Answer))
		}
	case query.Failed:
		if st.Answer != "" {
			b.WriteString(body.Render(st.Answer))
			b.WriteString("\n\n")
		}
		b.WriteString(th.Error(answerErrorMessage(st.Err)))
	case query.Idle:
		if st.Answer != "" {
			b.WriteString(body.Render(st.Answer))
			b.WriteString("\n\n")
		}
		b.WriteString(th.Warning("Cancelled"))
	}
	return b.String()
}

// renderSearch draws the search tab. Results keep the server's order.
func renderSearch(th *styles.Theme, st query.State, width, snippet int, showScores bool) string {
	switch {
	case st.Status == query.Invalid:
		return th.Warning("Please enter a search query.")
	case st.Query == "":
		return th.Placeholder.Render("Search your documents with hybrid semantic and keyword matching.")
	case st.Status == query.Loading:
		return th.MutedStyle.Render("Searching for " + st.Query + "...")
	case st.Status == query.Idle:
		return th.Warning("Cancelled")
	case st.Status == query.Failed:
		return th.Error(searchErrorMessage(st.Err))
	case len(st.Results) == 0:
		return th.Placeholder.Render(NoResultsMessage)
	}

	var b strings.Builder
	for i, r := range st.Results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		line := th.ResultIndex.Render(fmt.Sprintf("%d.", i+1)) + " " + th.ResultSource.Render(r.Source())
		if showScores {
			line += " " + th.ResultScore.Render(fmt.Sprintf("(score: %.2f)", r.Score))
		}
		b.WriteString(line)
		b.WriteString("\n")
		text := util.TruncateWidth(util.CollapseSpace(r.Text), snippet)
		b.WriteString(th.ResultText.Width(width).Render(text))
	}
	return b.String()
}

// renderUploads lists finished uploads, newest last.
func renderUploads(th *styles.Theme, uploads []uploadEntry, running string) string {
	if len(uploads) == 0 && running == "" {
		return th.Placeholder.Render("Type the path of a .pdf or .html file and press Enter to upload it.")
	}

	lines := make([]string, 0, len(uploads)+1)
	for _, u := range uploads {
		switch {
		case u.err != nil:
			lines = append(lines, th.Error(u.path+": "+uploadErrorMessage(u.err)))
		case u.message == "" && u.warning != "":
			lines = append(lines, th.Warning(u.path+": "+u.warning))
		default:
			line := th.Success(u.path)
			if u.message != "" {
				line += " " + th.MutedStyle.Render(u.message)
			}
			if u.warning != "" {
				line += " " + th.WarningStyle.Render("("+u.warning+")")
			}
			lines = append(lines, line)
		}
	}
	if running != "" {
		lines = append(lines, th.MutedStyle.Render(styles.StatusIndicators.Pending+" "+running))
	}
	return strings.Join(lines, "\n")
}

// =============================================================================
// ERROR MESSAGES
// =============================================================================

func answerErrorMessage(err error) string {
	if transport.IsNetworkError(err) {
		return ConnectionFailedMessage
	}
	if err == nil {
		return "Unknown error"
	}
	return err.Error()
}

func searchErrorMessage(err error) string {
	var te *transport.TransportError
	if errors.As(err, &te) && te.Detail != "" {
		return te.Detail
	}
	return SearchFailedMessage
}

func uploadErrorMessage(err error) string {
	var te *transport.TransportError
	if errors.As(err, &te) && te.Detail != "" {
		return te.Detail
	}
	return err.Error()
}
