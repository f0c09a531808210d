// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging provides structured logging for shyft.
//
// Logs are JSON lines written to a rotating file (lumberjack). An optional
// human-readable console core writes to stderr so that stdout stays reserved
// for answers and --json output.
//
// # Key Types
//
//   - Logger: module-tagged Debug/Info/Warn/Error with a details map
//   - ZapLogger: zap implementation
//
// # Usage
//
//	log := logging.New(logging.Options{File: cfg.Log.File, Level: cfg.Log.Level})
//	defer log.Sync()
//	log.Info("stream", "session opened", map[string]interface{}{"session": id})
package logging
