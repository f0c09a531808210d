// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// watch_cmd.go - The watch command: upload documents dropped into a folder.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/joshndala/shyft-rag-app/internal/watch"
)

// HandleWatch handles "shyft watch DIR". It runs until ctx is cancelled, or
// uploads whatever changed and returns with --once.
func HandleWatch(ctx context.Context, env *Env, args Args) error {
	if args.Dir == "" {
		return ErrMissingArgument("dir", "shyft watch ~/Documents/inbox")
	}
	if _, err := os.Stat(args.Dir); errors.Is(err, os.ErrNotExist) {
		return NewNotFoundError("directory", args.Dir)
	}

	cfg := env.Config
	var (
		mu      sync.Mutex
		results []watch.Result
	)
	opts := watch.Options{
		Dir:              args.Dir,
		Extensions:       cfg.Watch.Extensions,
		Debounce:         cfg.Debounce(),
		UploadsPerMinute: cfg.Watch.UploadsPerMinute,
		StateFile:        cfg.WatchStatePath(),
		ForcePolling:     args.Poll,
		Logger:           env.Logger,
		OnResult: func(r watch.Result) {
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			if !env.JSON {
				printWatchResult(env, r)
			}
		},
	}

	w, err := watch.New(env.Client, opts)
	if err != nil {
		return err
	}

	if args.Once {
		synced := w.Sync(ctx)
		if env.JSON {
			return NewJSONResponse("watch", watchData(w.Dir(), synced)).Fprint(env.Out)
		}
		if !env.Quiet {
			data := watchData(w.Dir(), synced)
			fmt.Fprintf(env.Err, "%s uploaded %d, unchanged %d\n",
				DimStyle.Render(w.Dir()+":"), len(data.Uploaded), data.Skipped)
		}
		return firstWatchError(synced)
	}

	if !env.JSON && !env.Quiet {
		fmt.Fprintf(env.Err, "%s %s %s\n", TitleStyle.Render("Watching"), w.Dir(),
			DimStyle.Render("(Ctrl+C to stop)"))
	}

	err = w.Run(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		return err
	}

	if env.JSON {
		mu.Lock()
		defer mu.Unlock()
		return NewJSONResponse("watch", watchData(w.Dir(), results)).Fprint(env.Out)
	}
	return nil
}

func printWatchResult(env *Env, r watch.Result) {
	switch {
	case r.Err != nil:
		fmt.Fprintf(env.Err, "%s %s %s: %v\n", DimStyle.Render(r.Time.Format("15:04:05")), RenderStatus("fail"), r.Path, r.Err)
	case r.Skipped:
		if !env.Quiet {
			fmt.Fprintf(env.Err, "%s %s %s %s\n", DimStyle.Render(r.Time.Format("15:04:05")), DimStyle.Render("[SKIP]"), r.Path, DimStyle.Render("unchanged"))
		}
	default:
		fmt.Fprintf(env.Out, "%s %s %s %s\n", DimStyle.Render(r.Time.Format("15:04:05")), RenderStatus("ok"), r.Path, DimStyle.Render(r.Message))
	}
}

func watchData(dir string, results []watch.Result) WatchData {
	data := WatchData{Dir: dir, Uploaded: []UploadFileResult{}}
	for _, r := range results {
		if r.Skipped {
			data.Skipped++
			continue
		}
		fr := UploadFileResult{Path: r.Path, Message: r.Message}
		if r.Err != nil {
			fr.Error = r.Err.Error()
		}
		data.Uploaded = append(data.Uploaded, fr)
	}
	return data
}

func firstWatchError(results []watch.Result) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}
