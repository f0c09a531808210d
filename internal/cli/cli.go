// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and usage text for shyft.
package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdAsk
	CmdSearch
	CmdUpload
	CmdChat
	CmdWatch
	CmdHistory
	CmdStatus
	CmdConfig
	CmdVersion
	CmdHelp
)

// String returns the command name used in JSON output and logs.
func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdAsk:
		return "ask"
	case CmdSearch:
		return "search"
	case CmdUpload:
		return "upload"
	case CmdChat:
		return "chat"
	case CmdWatch:
		return "watch"
	case CmdHistory:
		return "history"
	case CmdStatus:
		return "status"
	case CmdConfig:
		return "config"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	}
	return fmt.Sprintf("Command(%d)", int(c))
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet   bool
	Verbose bool
	JSON    bool // Output in JSON format
	NoColor bool
	Server  string // Overrides server.url for this run

	// Command-specific
	Query      string
	Files      []string
	Dir        string
	Subcommand string
	ConfigKey  string
	ConfigVal  string

	NoStream bool // ask: wait for the complete answer
	Plain    bool // ask: never render markdown
	Confirm  bool
	Poll     bool // watch: force polling
	Once     bool // watch: sync and exit
	Full     bool // search: do not truncate snippets
	Format   string // history export: md or json
	Output   string // history export: directory, or "-" for stdout

	TopK           int
	Limit          int
	SemanticWeight *float64
	KeywordWeight  *float64

	// Raw args (remaining after flag parsing)
	Raw []string
}

const usageText = `shyft - terminal client for a RAG document service

Upload PDF and HTML documents, search them, and ask questions answered from
their content with the answer streamed as it is generated.

Usage:
  shyft                          Start the TUI (default)
  shyft ask "question"           Stream an answer to one question
  shyft search "terms"           Hybrid search over uploaded documents
  shyft upload FILE...           Upload documents (.pdf, .html)
  shyft chat                     Interactive question loop
  shyft watch DIR                Upload new or changed documents in DIR
  shyft history [subcommand]     Browse past questions and searches
  shyft status, s                Check the backend
  shyft config [subcommand]      Configuration
  shyft version                  Version information

Ask Options:
  --no-stream                    Wait for the complete answer
  --plain                        Print the answer without markdown rendering

Search Options:
  -k, --top-k N                  Number of results (default: 5)
  --semantic W                   Semantic weight (default: 0.7)
  --keyword W                    Keyword weight (default: 0.3)
  --full                         Do not truncate result text

Watch Options:
  --poll                         Poll instead of using file system events
  --once                         Upload what changed and exit

History Commands:
  shyft history list             Most recent entries (default)
    --limit N                    Number of entries (default: 20)
  shyft history search TEXT      Full text search over questions and answers
  shyft history show ID          Show one entry (ID prefix is enough)
  shyft history delete ID        Delete one entry
  shyft history clear --confirm  Delete every entry
  shyft history export           Write history to a file (--format md|json, --out DIR|-)

Config Commands:
  shyft config show              Show the effective configuration
  shyft config get KEY           Print one value (e.g. search.top_k)
  shyft config set KEY VALUE     Change and save one value
  shyft config path              Print the config file location
  shyft config init [--confirm]  Write a config file with defaults

Global Flags:
  --server URL    Backend URL for this run (default: http://127.0.0.1:8000)
  -q, --quiet     Minimal output
  -v, --verbose   Debug logging to stderr
  --json          Output in JSON format
  --no-color      Disable colors

Environment:
  SHYFT_SERVER_URL, SHYFT_TIMEOUT, SHYFT_TOP_K, SHYFT_SEMANTIC_WEIGHT,
  SHYFT_KEYWORD_WEIGHT, SHYFT_LOG_LEVEL, SHYFT_LOG_FILE, SHYFT_HISTORY,
  SHYFT_CONFIG_DIR. A .env file in the working directory is loaded first.

Examples:
  shyft ask "What is RAG?"
  shyft search "quarterly revenue" -k 10 --semantic 0.5 --keyword 0.5
  shyft upload report.pdf notes.html
  shyft watch ~/Documents/inbox
  shyft history search revenue
  shyft --json search "embeddings" | jq '.data.results[0]'

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "shyft version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
}

// Parse parses command-line arguments (without the program name) and
// returns the command and its args.
func Parse(argv []string) (Command, Args, error) {
	remaining, parsedArgs, err := parseGlobalFlags(argv)
	if err != nil {
		return CmdHelp, parsedArgs, err
	}

	// No command: start the TUI
	if len(remaining) == 0 {
		return CmdTUI, parsedArgs, nil
	}

	word := remaining[0]
	cmd := strings.ToLower(word)
	remaining = remaining[1:]
	parsedArgs.Raw = remaining

	switch cmd {
	case "tui":
		return CmdTUI, parsedArgs, nil

	case "ask", "a":
		return CmdAsk, parsedArgs, parseAskArgs(&parsedArgs, remaining)

	case "search", "find":
		return CmdSearch, parsedArgs, parseSearchArgs(&parsedArgs, remaining)

	case "upload", "up":
		parseUploadArgs(&parsedArgs, remaining)
		return CmdUpload, parsedArgs, nil

	case "chat":
		return CmdChat, parsedArgs, nil

	case "watch":
		parseWatchArgs(&parsedArgs, remaining)
		return CmdWatch, parsedArgs, nil

	case "history", "hist":
		return CmdHistory, parsedArgs, parseHistoryArgs(&parsedArgs, remaining)

	case "status", "s":
		return CmdStatus, parsedArgs, nil

	case "config":
		parseConfigArgs(&parsedArgs, remaining)
		return CmdConfig, parsedArgs, nil

	case "version", "--version":
		return CmdVersion, parsedArgs, nil

	case "help", "-h", "--help":
		return CmdHelp, parsedArgs, nil
	}

	if strings.HasPrefix(cmd, "-") {
		return CmdHelp, parsedArgs, NewValidationErrorWithExample("flag", cmd, "unknown flag", "shyft help")
	}

	// A lone word close to a command is a typo; anything else is a question
	if suggestion := SuggestCommand(cmd); suggestion != "" && len(remaining) == 0 {
		return CmdHelp, parsedArgs, &ValidationError{
			Field:   "command",
			Value:   cmd,
			Reason:  "unknown command",
			Example: fmt.Sprintf("did you mean 'shyft %s'?", suggestion),
		}
	}
	all := append([]string{word}, remaining...)
	parsedArgs.Raw = all
	return CmdAsk, parsedArgs, parseAskArgs(&parsedArgs, all)
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(args []string) ([]string, Args, error) {
	var remaining []string
	var parsedArgs Args

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-q", "--quiet":
			parsedArgs.Quiet = true
		case "-v", "--verbose":
			parsedArgs.Verbose = true
		case "--json":
			parsedArgs.JSON = true
		case "--no-color":
			parsedArgs.NoColor = true
		case "--server":
			if i+1 >= len(args) {
				return nil, parsedArgs, ErrMissingArgument("--server", "--server http://localhost:8000")
			}
			i++
			parsedArgs.Server = args[i]
		case "--":
			// Everything after -- is positional
			remaining = append(remaining, args[i+1:]...)
			return remaining, parsedArgs, nil
		default:
			if strings.HasPrefix(arg, "--server=") {
				parsedArgs.Server = strings.TrimPrefix(arg, "--server=")
			} else {
				remaining = append(remaining, arg)
			}
		}
	}

	return remaining, parsedArgs, nil
}

// parseAskArgs parses ask command specific arguments.
func parseAskArgs(args *Args, remaining []string) error {
	p := NewArgParser(remaining, "no-stream", "plain")
	args.NoStream = p.BoolFlag("no-stream")
	args.Plain = p.BoolFlag("plain")
	args.Query = JoinPositionalArgs(p, 0)
	return p.Unknown("no-stream", "plain")
}

// parseSearchArgs parses search command specific arguments.
func parseSearchArgs(args *Args, remaining []string) error {
	p := NewArgParser(remaining, "full")
	args.Full = p.BoolFlag("full")
	args.Query = JoinPositionalArgs(p, 0)

	if v := firstFlag(p, "top-k", "k"); v != "" {
		n, err := ParseIntWithValidation(v, "top-k")
		if err != nil {
			return err
		}
		args.TopK = n
	}
	for _, w := range []struct {
		name string
		dst  **float64
	}{
		{"semantic", &args.SemanticWeight},
		{"keyword", &args.KeywordWeight},
	} {
		v := p.Flag(w.name)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return ErrInvalidFormat(w.name, v, "a number such as 0.7")
		}
		*w.dst = &f
	}
	return p.Unknown("full", "top-k", "k", "semantic", "keyword")
}

// parseUploadArgs parses upload command specific arguments.
func parseUploadArgs(args *Args, remaining []string) {
	args.Files = append([]string(nil), remaining...)
}

// parseWatchArgs parses watch command specific arguments.
func parseWatchArgs(args *Args, remaining []string) {
	p := NewArgParser(remaining, "poll", "once")
	args.Poll = p.BoolFlag("poll")
	args.Once = p.BoolFlag("once")
	args.Dir = p.Positional(0)
}

// parseHistoryArgs parses history command specific arguments.
func parseHistoryArgs(args *Args, remaining []string) error {
	p := NewArgParser(remaining, "confirm")
	args.Subcommand = p.Subcommand()
	args.Confirm = p.BoolFlag("confirm")
	args.Query = JoinPositionalArgs(p, 1)
	args.Format = firstFlag(p, "format", "f")
	args.Output = firstFlag(p, "out", "o")
	if v := firstFlag(p, "limit", "n"); v != "" {
		n, err := ParseIntWithValidation(v, "limit")
		if err != nil {
			return err
		}
		args.Limit = n
	}
	return nil
}

// parseConfigArgs parses config command specific arguments.
// Values may start with a dash, so only --confirm is treated as a flag.
func parseConfigArgs(args *Args, remaining []string) {
	var rest []string
	for _, a := range remaining {
		if a == "--confirm" {
			args.Confirm = true
			continue
		}
		rest = append(rest, a)
	}
	remaining = rest
	if len(remaining) > 0 {
		args.Subcommand = strings.ToLower(remaining[0])
		if len(remaining) > 1 {
			args.ConfigKey = remaining[1]
		}
		if len(remaining) > 2 {
			args.ConfigVal = strings.Join(remaining[2:], " ")
		}
	}
}

func firstFlag(p *ArgParser, names ...string) string {
	for _, n := range names {
		if v := p.Flag(n); v != "" {
			return v
		}
	}
	return ""
}

// =============================================================================
// COMMAND HANDLERS
// =============================================================================

// HandleVersion handles the "version" command with JSON output support.
func HandleVersion(args Args) {
	if args.JSON {
		NewJSONResponse("version", VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
		}).Print()
		return
	}
	PrintVersion(os.Stdout)
}

// HandleHelp handles the "help" command.
func HandleHelp() {
	PrintUsage(os.Stdout)
}
