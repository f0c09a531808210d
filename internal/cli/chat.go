// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive question loop.
//
// Command: chat
//
// Every line is a question answered from the uploaded documents. Ctrl+C
// while an answer streams cancels it; Ctrl+C or Ctrl+D at the prompt exits.
//
// Slash commands:
//   /search <terms>   Hybrid search
//   /upload <file>    Upload a document
//   /history [n]      Recent questions
//   /clear            Clear the screen
//   /help             Show commands
//   /exit             Leave (also /quit)
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/joshndala/shyft-rag-app/internal/config"
	"github.com/joshndala/shyft-rag-app/internal/query"
)

var promptStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("39")).
	Bold(true)

// =============================================================================
// LINE EDITING
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI whose history lives in the config directory.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	c.LoadHistory()
	return c
}

// LoadHistory loads input history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists input history with 0600 permissions.
func (c *ChatCLI) SaveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and closes the liner.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// CHAT SESSION
// =============================================================================

// chatSession runs one line at a time against a single controller, so a
// new question always supersedes whatever was still streaming.
type chatSession struct {
	env  *Env
	ctrl *query.Controller

	updates     <-chan query.State
	unsubscribe func()

	// interrupt cancels the running submission; nil disables it
	interrupt <-chan os.Signal

	asked int
}

func newChatSession(env *Env, interrupt <-chan os.Signal) *chatSession {
	ctrl := env.Controller()
	updates, unsubscribe := ctrl.Subscribe()
	return &chatSession{
		env:         env,
		ctrl:        ctrl,
		updates:     updates,
		unsubscribe: unsubscribe,
		interrupt:   interrupt,
	}
}

func (c *chatSession) close() {
	c.unsubscribe()
	c.ctrl.Teardown()
}

// HandleChat handles "shyft chat".
func HandleChat(ctx context.Context, env *Env, args Args) error {
	if !IsTTY() {
		return NewValidationErrorWithExample("stdin", "", "chat needs an interactive terminal", "shyft ask \"What is RAG?\"")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	session := newChatSession(env, sigChan)
	defer session.close()

	input := NewChatCLI()
	defer input.Close()

	if !env.Quiet {
		printChatWelcome(env)
	}

	for {
		line, err := input.ReadInput(promptStyle.Render("shyft> "))
		if err != nil {
			// Ctrl+C (liner.ErrPromptAborted) or Ctrl+D at the prompt
			fmt.Fprintln(env.Out)
			break
		}
		if session.handle(ctx, line) {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	if !env.Quiet {
		fmt.Fprintln(env.Err, DimStyle.Render(fmt.Sprintf("%d questions this session", session.asked)))
	}
	return nil
}

// handle processes one input line and reports whether the loop should end.
func (c *chatSession) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	if strings.HasPrefix(line, "/") {
		return c.slash(ctx, line)
	}
	if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
		return true
	}

	c.asked++
	c.run(ctx, query.Query{Text: line, Mode: query.Ask})
	return false
}

func (c *chatSession) slash(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	cmd := strings.ToLower(fields[0])
	rest := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))

	switch cmd {
	case "/exit", "/quit", "/q":
		return true
	case "/help", "/?":
		printChatHelp(c.env)
	case "/clear":
		fmt.Fprint(c.env.Out, "\033[H\033[2J")
	case "/search", "/s":
		c.run(ctx, query.Query{Text: rest, Mode: query.Search})
	case "/upload", "/u":
		if rest == "" {
			c.printError(ErrMissingArgument("file", "/upload report.pdf"))
			break
		}
		if res := uploadOne(ctx, c.env, rest); res.err != nil {
			c.env.Logger.Debug("cli", "chat upload failed", map[string]interface{}{"path": rest, "error": res.err})
		}
	case "/history", "/h":
		c.showHistory(ctx, rest)
	default:
		c.printError(NewValidationErrorWithExample("command", cmd, "unknown command", "/help"))
	}
	return false
}

// run submits q and prints its progress until it finishes or is interrupted.
func (c *chatSession) run(ctx context.Context, q query.Query) {
	// An interrupt that arrived while idle must not cancel this submission
	select {
	case <-c.interrupt:
	default:
	}

	start := time.Now()
	if err := c.ctrl.Submit(ctx, q); err != nil {
		c.printError(chatError(q.Mode, err))
		return
	}
	seq := c.ctrl.State().Seq

	printed := 0
	for {
		select {
		case st, ok := <-c.updates:
			if !ok {
				return
			}
			if st.Seq != seq {
				continue
			}
			if q.Mode == query.Ask && len(st.Answer) > printed {
				fmt.Fprint(c.env.Out, st.Answer[printed:])
				printed = len(st.Answer)
			}
			if !st.Status.Done() {
				continue
			}
			if printed > 0 {
				fmt.Fprintln(c.env.Out)
			}
			switch {
			case st.Status == query.Failed:
				c.printError(chatError(q.Mode, st.Err))
			case q.Mode == query.Search:
				writeResults(c.env.Out, st.Results, c.env.Config.Search.SnippetLength, c.env.Config.UI.ShowScores)
			}
			if !c.env.Quiet {
				fmt.Fprintln(c.env.Err, DimStyle.Render(formatDurationShort(time.Since(start))))
			}
			return

		case <-c.interrupt:
			c.ctrl.Cancel()
			if printed > 0 {
				fmt.Fprintln(c.env.Out)
			}
			fmt.Fprintln(c.env.Err, WarningStyle.Render("[Cancelled]"))
			return

		case <-ctx.Done():
			c.ctrl.Cancel()
			return
		}
	}
}

func chatError(mode query.Mode, err error) error {
	if mode == query.Search {
		var ve *query.ValidationError
		if errors.As(err, &ve) {
			return err
		}
		return searchError(err)
	}
	return askError(err)
}

func (c *chatSession) showHistory(ctx context.Context, arg string) {
	store, err := c.env.History()
	if err != nil {
		c.printError(err)
		return
	}
	if store == nil {
		fmt.Fprintln(c.env.Out, DimStyle.Render("History is disabled"))
		return
	}
	limit := 10
	if n, err := strconv.Atoi(arg); err == nil && n > 0 {
		limit = n
	}
	entries, err := store.List(ctx, limit)
	if err != nil {
		c.printError(err)
		return
	}
	writeEntryList(c.env.Out, entries, time.Now())
}

func (c *chatSession) printError(err error) {
	fmt.Fprintf(c.env.Err, "%s %v\n", ErrorStyle.Render("[Error]"), err)
}

func printChatWelcome(env *Env) {
	fmt.Fprintln(env.Out, TitleStyle.Render("shyft chat"))
	fmt.Fprintf(env.Out, "%s %s\n", DimStyle.Render("Backend:"), env.Client.BaseURL())
	fmt.Fprintln(env.Out, DimStyle.Render("Ask anything about your documents. /help for commands, Ctrl+C cancels an answer."))
	fmt.Fprintln(env.Out)
}

func printChatHelp(env *Env) {
	w := env.Out
	fmt.Fprintln(w, SectionStyle.Render("Commands"))
	fmt.Fprintf(w, "  %s Hybrid search\n", helpKey("/search <terms>"))
	fmt.Fprintf(w, "  %s Upload a document\n", helpKey("/upload <file>"))
	fmt.Fprintf(w, "  %s Recent questions\n", helpKey("/history [n]"))
	fmt.Fprintf(w, "  %s Clear the screen\n", helpKey("/clear"))
	fmt.Fprintf(w, "  %s Leave\n", helpKey("/exit"))
}

func helpKey(s string) string {
	return HighlightStyle.Render(fmt.Sprintf("%-18s", s))
}
