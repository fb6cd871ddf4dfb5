// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the idlesync tab.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection. State colors:

	Emerald - session active
	Amber   - idle warning shown
	Rose    - logged out

# Theme System (theme.go)

	theme := styles.NewTheme()
	if theme.HasTrueColor {
		// Terminal supports 16M colors
	}

Every state is rendered with an ASCII indicator from StatusIndicators as
well as a color.
*/
package styles
