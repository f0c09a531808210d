// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/joshndala/shyft-rag-app/internal/logging"
	"github.com/joshndala/shyft-rag-app/internal/query"
	"github.com/joshndala/shyft-rag-app/internal/transport"
	"github.com/joshndala/shyft-rag-app/internal/ui/styles"
)

const logModule = "tui"

// =============================================================================
// TABS
// =============================================================================

// Tab identifies one of the three views.
type Tab int

const (
	TabAsk Tab = iota
	TabSearch
	TabUpload
	tabCount
)

func (t Tab) String() string {
	switch t {
	case TabAsk:
		return "Ask"
	case TabSearch:
		return "Search"
	case TabUpload:
		return "Upload"
	}
	return "?"
}

// =============================================================================
// MODEL
// =============================================================================

// Uploader sends one document to the backend. *transport.Client implements it.
type Uploader interface {
	Upload(ctx context.Context, path string) (*transport.UploadResult, error)
}

// Options configures the TUI.
type Options struct {
	Controller *query.Controller
	Uploader   Uploader
	Theme      *styles.Theme
	Logger     logging.Logger

	// ServerURL is shown in the header
	ServerURL string
	// Markdown renders completed answers through glamour
	Markdown bool
	// ShowScores prints relevance scores next to results
	ShowScores bool
	// SnippetLength is the display width result text is cut to
	SnippetLength int
}

type uploadEntry struct {
	path    string
	message string
	warning string
	err     error
}

// Model is the Bubble Tea model of the TUI.
type Model struct {
	ctx   context.Context
	opts  Options
	theme *styles.Theme
	keys  KeyMap
	help  help.Model

	tab      Tab
	inputs   [tabCount]textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	spinning bool

	updates     <-chan query.State
	unsubscribe func()

	// latest is the newest controller snapshot; ask and search keep the
	// newest snapshot of each mode so switching tabs shows the last result
	latest query.State
	ask    query.State
	search query.State

	uploads   []uploadEntry
	uploading string

	width  int
	height int
	ready  bool
}

// New builds the model and subscribes to the controller. Call Close when the
// program has exited.
func New(ctx context.Context, opts Options) Model {
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme("auto")
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.SnippetLength <= 0 {
		opts.SnippetLength = 300
	}

	m := Model{
		ctx:   ctx,
		opts:  opts,
		theme: opts.Theme,
		keys:  DefaultKeyMap(),
		help:  help.New(),
	}

	placeholders := [tabCount]string{
		TabAsk:    "Ask a question about your documents",
		TabSearch: "Search your documents",
		TabUpload: "Path to a .pdf or .html file",
	}
	for i := range m.inputs {
		in := textinput.New()
		in.Prompt = "> "
		in.PromptStyle = m.theme.InputPrompt
		in.Placeholder = placeholders[i]
		in.CharLimit = 4000
		m.inputs[i] = in
	}
	m.inputs[TabAsk].Focus()

	m.spinner = spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(m.theme.Spinner),
	)

	m.updates, m.unsubscribe = opts.Controller.Subscribe()
	return m
}

// Close releases the controller subscription.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForState(m.updates))
}

// Tab returns the active tab.
func (m Model) Tab() Tab {
	return m.tab
}

// busy reports whether the controller or an upload has a request in flight.
func (m Model) busy() bool {
	return m.latest.Status.Busy() || m.uploading != ""
}

func (m *Model) setTab(t Tab) {
	m.inputs[m.tab].Blur()
	m.tab = t
	m.inputs[m.tab].Focus()
	m.refresh()
	m.viewport.GotoTop()
}

// startSpinner returns the first tick unless the spinner is already running.
func (m *Model) startSpinner() tea.Cmd {
	if m.spinning {
		return nil
	}
	m.spinning = true
	return m.spinner.Tick
}

// =============================================================================
// ACTIONS
// =============================================================================

// submit acts on the active tab's input.
func (m *Model) submit() tea.Cmd {
	in := &m.inputs[m.tab]
	text := in.Value()

	switch m.tab {
	case TabAsk, TabSearch:
		mode := query.Ask
		if m.tab == TabSearch {
			mode = query.Search
		}
		// Every outcome, Invalid included, arrives through the subscription
		if err := m.opts.Controller.Submit(m.ctx, query.Query{Text: text, Mode: mode}); err != nil {
			m.opts.Logger.Debug(logModule, "submit rejected", map[string]interface{}{"error": err.Error()})
			return nil
		}
		if mode == query.Ask {
			in.Reset()
		}
		return m.startSpinner()

	case TabUpload:
		path := expandHome(strings.TrimSpace(text))
		if path == "" {
			return nil
		}
		if m.uploading != "" {
			m.uploads = append(m.uploads, uploadEntry{path: path, warning: "another upload is still running"})
			m.refresh()
			return nil
		}
		in.Reset()
		m.uploading = path
		m.refresh()
		return tea.Batch(m.uploadCmd(path), m.startSpinner())
	}
	return nil
}

func (m Model) uploadCmd(path string) tea.Cmd {
	ctx, up := m.ctx, m.opts.Uploader
	return func() tea.Msg {
		res, err := up.Upload(ctx, path)
		msg := uploadDoneMsg{path: path, err: err}
		if res != nil {
			msg.message = res.Message
		}
		return msg
	}
}

// cancel abandons the controller's running request. Uploads run to
// completion.
func (m *Model) cancel() bool {
	if !m.latest.Status.Busy() {
		return false
	}
	m.opts.Controller.Cancel()
	return true
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func supportedUpload(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".html":
		return true
	}
	return false
}
