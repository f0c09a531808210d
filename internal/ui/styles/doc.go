// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles holds the colors and lipgloss styles of the shyft TUI.
//
// Colors are lipgloss.AdaptiveColor values so the same palette works on dark
// and light terminals. NewTheme picks the background from the ui.theme
// setting ("dark", "light" or "auto") and builds every style once:
//
//	theme := styles.NewTheme(cfg.UI.Theme)
//	header := theme.Header.Render("shyft")
//
// Markdown answers are rendered with glamour through Theme.Markdown, which
// caches one renderer per wrap width.
package styles
