// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command implementation.
//
// Command: config [subcommand]
//
// Subcommands:
//   show (default)      Display the effective configuration
//   get <key>           Print one value
//   set <key> <value>   Set and save one value
//   path                Show configuration file path
//   init                Write a config file with defaults
//
// Examples:
//   shyft config set server.url http://10.0.0.5:8000
//   shyft config set search.top_k 10
//   shyft config set watch.extensions .pdf,.html
//   shyft config get search.semantic_weight
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/joshndala/shyft-rag-app/internal/config"
)

// HandleConfig handles "shyft config".
func HandleConfig(env *Env, args Args) error {
	switch args.Subcommand {
	case "", "show":
		return handleConfigShow(env)
	case "get":
		return handleConfigGet(env, args.ConfigKey)
	case "set":
		return handleConfigSet(env, args.ConfigKey, args.ConfigVal)
	case "path":
		return handleConfigPath(env)
	case "init":
		return handleConfigInit(env, args.Confirm)
	default:
		return NewValidationErrorWithExample("subcommand", args.Subcommand,
			"unknown config subcommand", "shyft config [show|get|set|path|init]")
	}
}

func configPath() string {
	p, err := config.ConfigPathTOML()
	if err != nil {
		return ""
	}
	return p
}

func handleConfigShow(env *Env) error {
	if env.JSON {
		return NewJSONResponse("config", ConfigData{Path: configPath(), Config: env.Config}).Fprint(env.Out)
	}

	w := env.Out
	fmt.Fprintln(w, TitleStyle.Render("shyft configuration"))
	for _, key := range config.GetAllKeys() {
		v, err := env.Config.Get(key)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "%s%s\n", RenderLabel(key, 30), ValueStyle.Render(fmt.Sprint(v)))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s\n", DimStyle.Render("File: "+configPath()))
	return nil
}

func handleConfigGet(env *Env, key string) error {
	if key == "" {
		return ErrMissingArgument("key", "shyft config get search.top_k")
	}
	v, err := env.Config.Get(key)
	if err != nil {
		return NewValidationErrorWithExample("key", key, err.Error(), "shyft config show")
	}
	if env.JSON {
		return NewJSONResponse("config", map[string]interface{}{"key": key, "value": v}).Fprint(env.Out)
	}
	fmt.Fprintln(env.Out, v)
	return nil
}

// handleConfigSet edits the file on disk, not the effective configuration,
// so environment overrides are never persisted.
func handleConfigSet(env *Env, key, value string) error {
	if key == "" {
		return ErrMissingArgument("key", "shyft config set search.top_k 10")
	}

	path := configPath()
	if path == "" {
		return NewCommandError("config", "set", "cannot locate config directory", nil)
	}
	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		if err := config.LoadTOML(cfg, path); err != nil {
			return err
		}
	}

	if err := cfg.Set(key, value); err != nil {
		return NewValidationErrorWithExample("key", key, err.Error(), "shyft config show")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.EnsureConfigDir(); err != nil {
		return err
	}
	if err := config.SaveTOML(cfg, path); err != nil {
		return err
	}

	v, _ := cfg.Get(key)
	if env.JSON {
		return NewJSONResponse("config", map[string]interface{}{"key": key, "value": v, "path": path}).Fprint(env.Out)
	}
	if !env.Quiet {
		fmt.Fprintf(env.Out, "%s %s = %v\n", RenderStatus("ok"), key, v)
	}
	return nil
}

func handleConfigPath(env *Env) error {
	path := configPath()
	if env.JSON {
		_, statErr := os.Stat(path)
		return NewJSONResponse("config", map[string]interface{}{"path": path, "exists": statErr == nil}).Fprint(env.Out)
	}
	fmt.Fprintln(env.Out, path)
	return nil
}

func handleConfigInit(env *Env, force bool) error {
	path := configPath()
	if path == "" {
		return NewCommandError("config", "init", "cannot locate config directory", nil)
	}
	if _, err := os.Stat(path); err == nil && !force {
		return NewCommandError("config", "init", "config file already exists (use --confirm to overwrite)", nil)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := config.EnsureConfigDir(); err != nil {
		return err
	}
	if err := config.SaveTOML(config.Default(), path); err != nil {
		return err
	}
	if env.JSON {
		return NewJSONResponse("config", map[string]interface{}{"path": path}).Fprint(env.Out)
	}
	fmt.Fprintf(env.Out, "%s wrote %s\n", RenderStatus("ok"), path)
	return nil
}
