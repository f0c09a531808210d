// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - The status command.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/joshndala/shyft-rag-app/internal/config"
)

// HandleStatus handles "shyft status": backend reachability plus local paths.
func HandleStatus(ctx context.Context, env *Env, args Args) error {
	data := StatusData{Server: env.Client.BaseURL()}

	start := time.Now()
	msg, err := env.Client.Ping(ctx)
	data.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		data.Error = err.Error()
	} else {
		data.Reachable = true
		data.Message = msg
	}

	if p, perr := config.ConfigPathTOML(); perr == nil {
		data.ConfigPath = p
	}
	if store, herr := env.History(); herr == nil && store != nil {
		data.HistoryPath = store.Path()
		if n, cerr := store.Count(ctx); cerr == nil {
			data.HistoryEntries = n
		}
	}

	if env.JSON {
		resp := NewJSONResponse("status", data)
		if err != nil {
			errStr := (&NetworkError{URL: data.Server, Err: err}).Error()
			resp.Success = false
			resp.Error = &errStr
			resp.Fprint(env.Out)
			return &reportedError{&NetworkError{URL: data.Server, Err: err}}
		}
		return resp.Fprint(env.Out)
	}

	w := env.Out
	if !env.Quiet {
		fmt.Fprintln(w, TitleStyle.Render("shyft status"))
	}
	if err != nil {
		fmt.Fprintf(w, "%s%s %s\n", RenderLabel("Backend:"), RenderStatus("fail"), data.Server)
	} else {
		fmt.Fprintf(w, "%s%s %s %s\n", RenderLabel("Backend:"), RenderStatus("ok"), data.Server,
			DimStyle.Render(formatDurationShort(time.Duration(data.LatencyMs)*time.Millisecond)))
		if data.Message != "" {
			fmt.Fprintf(w, "%s%s\n", RenderLabel("Message:"), ValueStyle.Render(data.Message))
		}
	}
	if !env.Quiet {
		fmt.Fprintf(w, "%s%s\n", RenderLabel("Config:"), data.ConfigPath)
		if data.HistoryPath != "" {
			fmt.Fprintf(w, "%s%s (%d entries)\n", RenderLabel("History:"), data.HistoryPath, data.HistoryEntries)
		} else {
			fmt.Fprintf(w, "%s%s\n", RenderLabel("History:"), "disabled")
		}
	}

	if err != nil {
		return &NetworkError{URL: data.Server, Err: err}
	}
	return nil
}
