// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func TestNewThemeWithProfile(t *testing.T) {
	th := NewThemeWithProfile(termenv.TrueColor, true)
	assert.True(t, th.HasTrueColor)
	assert.True(t, th.IsDark)
	assert.Equal(t, termenv.TrueColor, th.ColorProfile)

	th = NewThemeWithProfile(termenv.Ascii, false)
	assert.False(t, th.HasTrueColor)
	assert.False(t, th.IsDark)
}

func TestStatusIndicators_AreASCII(t *testing.T) {
	for _, s := range []string{
		StatusIndicators.Success,
		StatusIndicators.Error,
		StatusIndicators.Warning,
		StatusIndicators.Info,
	} {
		assert.NotEmpty(t, s)
		for _, r := range s {
			assert.Less(t, r, rune(128), "indicator %q must be ASCII", s)
		}
	}
}
