// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the non-interactive commands
// of shyft.
//
// # Key Types
//
//   - Command: enumeration of the available commands
//   - Args: parsed global and command-specific flags
//   - Env: configuration, logger, backend client and history shared by handlers
//   - JSONResponse: the --json output envelope
//
// # Usage
//
//	cmd, args, err := cli.Parse(os.Args[1:])
//	switch cmd {
//	case cli.CmdAsk:
//	    cli.HandleAsk(args)
//	case cli.CmdSearch:
//	    cli.HandleSearch(args)
//	// ... other commands
//	}
//
// # Commands Overview
//
//   - ask: stream an answer to one question
//   - search: hybrid document search
//   - upload: send PDF or HTML documents to the backend
//   - chat: interactive question loop
//   - watch: upload documents dropped into a folder
//   - history: browse and search past questions
//   - status, config, version, help
//
// All commands support the --json flag.
package cli
