// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history_cmd.go - History command implementation.
//
// Command: history [subcommand]
// Aliases: hist
//
// Subcommands:
//   list (default)      Most recent entries (--limit N)
//   search <text>       Full text search over questions and answers
//   show <id>           One entry in full (an ID prefix is enough)
//   delete <id>         Delete one entry
//   clear --confirm     Delete every entry
//   export              Markdown or JSON export (--format md|json, --out DIR|-)
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joshndala/shyft-rag-app/internal/history"
	"github.com/joshndala/shyft-rag-app/internal/util"
)

const defaultHistoryLimit = 20

// HandleHistory handles "shyft history".
func HandleHistory(ctx context.Context, env *Env, args Args) error {
	store, err := env.History()
	if err != nil {
		return err
	}
	if store == nil {
		return NewCommandError("history", args.Subcommand, "history is disabled (history.enabled = false)", nil)
	}

	limit := args.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	switch args.Subcommand {
	case "", "list", "ls":
		entries, err := store.List(ctx, limit)
		if err != nil {
			return err
		}
		return showEntries(ctx, env, store, entries)

	case "search", "find":
		if args.Query == "" {
			return ErrMissingArgument("text", "shyft history search revenue")
		}
		entries, err := store.Search(ctx, args.Query, limit)
		if err != nil {
			return err
		}
		return showEntries(ctx, env, store, entries)

	case "show":
		e, err := getEntry(ctx, store, args.Query)
		if err != nil {
			return err
		}
		if env.JSON {
			return NewJSONResponse("history", e).Fprint(env.Out)
		}
		writeEntry(env.Out, e, env.Config.Search.SnippetLength)
		return nil

	case "delete", "rm":
		e, err := getEntry(ctx, store, args.Query)
		if err != nil {
			return err
		}
		if err := store.Delete(ctx, e.ID); err != nil {
			return err
		}
		if env.JSON {
			return NewJSONResponse("history", map[string]interface{}{"deleted": e.ID}).Fprint(env.Out)
		}
		if !env.Quiet {
			fmt.Fprintf(env.Out, "%s deleted %s\n", RenderStatus("ok"), shortID(e.ID))
		}
		return nil

	case "clear":
		ok, err := RequireConfirmation(args.Confirm, "delete all history", env.JSON)
		if err != nil {
			return err
		}
		if !ok {
			ShowCancellationMessage(env.Err)
			return nil
		}
		n, err := store.Clear(ctx)
		if err != nil {
			return err
		}
		if env.JSON {
			return NewJSONResponse("history", map[string]interface{}{"deleted": n}).Fprint(env.Out)
		}
		fmt.Fprintf(env.Out, "%s deleted %d entries\n", RenderStatus("ok"), n)
		return nil

	case "export":
		return exportHistory(ctx, env, store, args)
	}

	return NewValidationErrorWithExample("subcommand", args.Subcommand,
		"unknown history subcommand", "shyft history [list|search|show|delete|clear|export]")
}

// exportHistory writes every entry (or the newest --limit) as Markdown or
// JSON, to a timestamped file in --out or to stdout with --out -.
func exportHistory(ctx context.Context, env *Env, store *history.Store, args Args) error {
	exporter, err := history.NewExporter(args.Format, history.DefaultExportOptions())
	if err != nil {
		return ErrInvalidFormat("format", args.Format, "md or json")
	}
	entries, err := store.List(ctx, args.Limit)
	if err != nil {
		return err
	}

	if args.Output == "-" {
		data, err := exporter.Export(entries)
		if err != nil {
			return err
		}
		_, err = env.Out.Write(data)
		return err
	}

	dir := args.Output
	if dir == "" {
		dir = "."
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return NewNotFoundError("directory", dir)
	}
	path, err := history.ExportToFile(entries, exporter, dir)
	if err != nil {
		return err
	}
	if env.JSON {
		return NewJSONResponse("history", map[string]interface{}{"path": path, "entries": len(entries)}).Fprint(env.Out)
	}
	if !env.Quiet {
		fmt.Fprintf(env.Out, "%s exported %d entries to %s\n", RenderStatus("ok"), len(entries), path)
	}
	return nil
}

func getEntry(ctx context.Context, store *history.Store, id string) (history.Entry, error) {
	if id == "" {
		return history.Entry{}, ErrMissingArgument("id", "shyft history show 3f2a")
	}
	e, err := store.Get(ctx, id)
	switch {
	case errors.Is(err, history.ErrNotFound):
		return e, NewNotFoundError("history entry", id)
	case errors.Is(err, history.ErrAmbiguousID):
		return e, NewValidationErrorWithExample("id", id, "matches more than one entry", "use more characters of the id")
	}
	return e, err
}

func showEntries(ctx context.Context, env *Env, store *history.Store, entries []history.Entry) error {
	if env.JSON {
		total, err := store.Count(ctx)
		if err != nil {
			return err
		}
		if entries == nil {
			entries = []history.Entry{}
		}
		return NewJSONResponse("history", HistoryData{Entries: entries, Count: len(entries), Total: total}).Fprint(env.Out)
	}
	writeEntryList(env.Out, entries, time.Now())
	return nil
}

// writeEntryList prints one line per entry: id, age, kind, status, question.
func writeEntryList(w io.Writer, entries []history.Entry, now time.Time) {
	if len(entries) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No history yet"))
		return
	}
	for _, e := range entries {
		status := RenderStatus("ok")
		if e.Failed() {
			status = RenderStatus("fail")
		}
		fmt.Fprintf(w, "%s  %s  %s %s %s\n",
			HighlightStyle.Render(shortID(e.ID)),
			DimStyle.Render(util.PadRight(formatDuration(now.Sub(e.CreatedAt))+" ago", 8)),
			util.PadRight(string(e.Kind), 6),
			status,
			util.TruncateWidth(util.CollapseSpace(e.Query), 60),
		)
	}
}

// writeEntry prints one entry in full.
func writeEntry(w io.Writer, e history.Entry, snippetWidth int) {
	fmt.Fprintln(w, TitleStyle.Render(e.Query))
	fmt.Fprintf(w, "%s%s\n", RenderLabel("ID:"), e.ID)
	fmt.Fprintf(w, "%s%s\n", RenderLabel("Kind:"), e.Kind)
	fmt.Fprintf(w, "%s%s\n", RenderLabel("When:"), e.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "%s%s\n", RenderLabel("Took:"), formatDurationShort(e.Duration))
	if e.SessionID != "" {
		fmt.Fprintf(w, "%s%s\n", RenderLabel("Session:"), e.SessionID)
	}
	if e.Failed() {
		fmt.Fprintf(w, "%s%s\n", RenderLabel("Error:"), ErrorStyle.Render(e.Error))
	}
	fmt.Fprintln(w)

	switch e.Kind {
	case history.KindSearch:
		writeResults(w, e.Results, snippetWidth, true)
	default:
		if e.Answer != "" {
			fmt.Fprintln(w, e.Answer)
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
