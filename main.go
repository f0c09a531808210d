// shyft - terminal client for a RAG document service.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joshndala/shyft-rag-app/internal/cli"
	"github.com/joshndala/shyft-rag-app/internal/config"
	"github.com/joshndala/shyft-rag-app/internal/logging"
	"github.com/joshndala/shyft-rag-app/internal/ui/app"
	"github.com/joshndala/shyft-rag-app/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes one command and returns the process exit code.
func run(argv []string) int {
	cmd, args, err := cli.Parse(argv)
	if err != nil {
		cli.DisplayError(os.Stderr, cmd.String(), err, args.JSON)
		return cli.GetExitCode(err)
	}

	if args.NoColor {
		cli.ForceColorsEnabled(false)
	}

	// Commands that need neither config nor network
	switch cmd {
	case cli.CmdVersion:
		cli.HandleVersion(args)
		return cli.ExitSuccess
	case cli.CmdHelp:
		cli.HandleHelp()
		return cli.ExitSuccess
	}

	cfg, cfgErr := config.Load()
	if cfg == nil {
		// The config command must still work so the file can be fixed
		if cmd != cli.CmdConfig {
			cli.DisplayError(os.Stderr, cmd.String(), cfgErr, args.JSON)
			return cli.GetExitCode(cfgErr)
		}
		cfg = config.Default()
	}
	if cfgErr != nil && !args.JSON && !args.Quiet {
		fmt.Fprintf(os.Stderr, "%s %v (using defaults)\n", cli.RenderStatus("warn"), cfgErr)
	}
	config.SetGlobal(cfg)

	level := cfg.Log.Level
	if args.Verbose {
		level = "debug"
	}
	logger := logging.New(logging.Options{
		File:    cfg.LogPath(),
		Level:   level,
		Console: args.Verbose || cfg.Log.Console,
	})
	logging.SetGlobal(logger)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := cli.NewEnv(cfg, args, logger)
	defer env.Close()

	logger.Debug("main", "command started", map[string]interface{}{
		"command": cmd.String(),
		"server":  env.Client.BaseURL(),
	})

	err = dispatch(ctx, cmd, env, args)
	if err == nil {
		return cli.ExitSuccess
	}
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		// Interrupted by the user; whatever was printed stands
		return cli.ExitGeneralError
	}

	logger.Debug("main", "command failed", map[string]interface{}{
		"command": cmd.String(),
		"error":   err.Error(),
	})
	if !cli.IsReported(err) {
		out := os.Stderr
		if args.JSON {
			out = os.Stdout
		}
		cli.DisplayError(out, cmd.String(), err, args.JSON)
	}
	return cli.GetExitCode(err)
}

func dispatch(ctx context.Context, cmd cli.Command, env *cli.Env, args cli.Args) error {
	switch cmd {
	case cli.CmdAsk:
		return cli.HandleAsk(ctx, env, args)
	case cli.CmdSearch:
		return cli.HandleSearch(ctx, env, args)
	case cli.CmdUpload:
		return cli.HandleUpload(ctx, env, args)
	case cli.CmdChat:
		return cli.HandleChat(ctx, env, args)
	case cli.CmdWatch:
		return cli.HandleWatch(ctx, env, args)
	case cli.CmdHistory:
		return cli.HandleHistory(ctx, env, args)
	case cli.CmdStatus:
		return cli.HandleStatus(ctx, env, args)
	case cli.CmdConfig:
		return cli.HandleConfig(env, args)
	default:
		return runTUI(ctx, env)
	}
}

// runTUI starts the full-screen interface.
func runTUI(ctx context.Context, env *cli.Env) error {
	if !cli.IsTTY() || !cli.IsStdoutTTY() {
		cli.PrintUsage(os.Stderr)
		return cli.NewValidationErrorWithExample("terminal", "", "the interactive UI needs a terminal", "shyft ask \"What is RAG?\"")
	}

	ctrl := env.Controller()
	defer ctrl.Teardown()

	return app.Run(ctx, app.Options{
		Controller:    ctrl,
		Uploader:      env.Client,
		Theme:         styles.NewTheme(env.Config.UI.Theme),
		Logger:        env.Logger,
		ServerURL:     env.Client.BaseURL(),
		Markdown:      env.Config.UI.Markdown,
		ShowScores:    env.Config.UI.ShowScores,
		SnippetLength: env.Config.Search.SnippetLength,
	})
}
