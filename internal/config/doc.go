// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for shyft.
//
// Supports TOML and JSON configuration files with defaults, .env loading,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: main configuration structure
//   - ServerConfig: backend URL and request timeouts
//   - SearchConfig: default hybrid search parameters
//   - WatchConfig: folder watcher behavior
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (SHYFT_*), including those from ./.env
//   - ~/.shyft/config.toml
//   - ~/.shyft/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	client := transport.New(cfg.Server.URL)
package config
