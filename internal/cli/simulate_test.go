// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventsAt(events []SimEvent, at int64, event string) []string {
	var tabs []string
	for _, ev := range events {
		if ev.AtMs == at && ev.Event == event {
			tabs = append(tabs, ev.Tab)
		}
	}
	return tabs
}

func firstAt(events []SimEvent, event string) int64 {
	for _, ev := range events {
		if ev.Event == event {
			return ev.AtMs
		}
	}
	return -1
}

func TestSimulate_IdleLogsOutEveryTab(t *testing.T) {
	events, err := Simulate(SimOptions{Tabs: 2, Idle: 200 * time.Millisecond, Warning: 100 * time.Millisecond})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"tab-1", "tab-2"}, eventsAt(events, 0, "open"))
	assert.ElementsMatch(t, []string{"tab-1", "tab-2"}, eventsAt(events, 100, "warning"))
	assert.ElementsMatch(t, []string{"tab-1", "tab-2"}, eventsAt(events, 200, "logged out"))
	assert.ElementsMatch(t, []string{"tab-1", "tab-2"}, eventsAt(events, 250, "redirect"))

	for _, ev := range events {
		if ev.Event == "redirect" {
			assert.Equal(t, "/login", ev.Detail)
		}
	}
}

func TestSimulate_ActivityInOneTabKeepsAllAlive(t *testing.T) {
	events, err := Simulate(SimOptions{
		Tabs:     3,
		Idle:     200 * time.Millisecond,
		Warning:  100 * time.Millisecond,
		Activity: []time.Duration{150 * time.Millisecond},
		Until:    500 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"tab-2"}, eventsAt(events, 150, "activity"))
	assert.ElementsMatch(t, []string{"tab-1", "tab-2", "tab-3"}, eventsAt(events, 150, "warning closed"))
	assert.ElementsMatch(t, []string{"tab-1", "tab-2", "tab-3"}, eventsAt(events, 250, "warning"))
	assert.Equal(t, int64(350), firstAt(events, "logged out"))
	assert.Len(t, eventsAt(events, 350, "logged out"), 3)
	assert.Len(t, eventsAt(events, 400, "redirect"), 3)
}

func TestSimulate_LogOutNowPropagates(t *testing.T) {
	events, err := Simulate(SimOptions{
		Tabs:     2,
		Idle:     time.Second,
		Warning:  500 * time.Millisecond,
		LogoutAt: 60 * time.Millisecond,
		Until:    200 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"tab-1"}, eventsAt(events, 60, "log out now"))
	assert.ElementsMatch(t, []string{"tab-1", "tab-2"}, eventsAt(events, 60, "logged out"))
	assert.Len(t, eventsAt(events, 110, "redirect"), 2)
	assert.Equal(t, int64(-1), firstAt(events, "warning"))
}

func TestSimulate_AdminRouteHasNoWarning(t *testing.T) {
	events, err := Simulate(SimOptions{
		Tabs:    1,
		Idle:    100 * time.Millisecond,
		Warning: 50 * time.Millisecond,
		Path:    "/admin/users",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(-1), firstAt(events, "warning"))
	assert.Equal(t, []string{"tab-1"}, eventsAt(events, 100, "logged out"))
	for _, ev := range events {
		if ev.Event == "redirect" {
			assert.Equal(t, "/admin/login", ev.Detail)
		}
	}
}

func TestSimulate_RejectsWarningAfterIdle(t *testing.T) {
	_, err := Simulate(SimOptions{Idle: 100 * time.Millisecond, Warning: 200 * time.Millisecond})
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestRun_SimulateJSON(t *testing.T) {
	code, out, errOut := run(t, "simulate", "--tabs", "2", "--activity", "50ms", "--json")
	require.Equal(t, ExitSuccess, code, errOut)

	var resp struct {
		Success bool       `json:"success"`
		Data    []SimEvent `json:"data"`
	}
	require.NoError(t, sonic.UnmarshalString(out, &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, []string{"tab-2"}, eventsAt(resp.Data, 50, "activity"))
	assert.Len(t, eventsAt(resp.Data, 250, "logged out"), 2)
}

func TestRun_SimulateText(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	code, out, errOut := run(t, "simulate", "--tabs", "1")
	require.Equal(t, ExitSuccess, code, errOut)
	assert.Contains(t, out, "Simulating 1 tabs: idle 200ms, warning 100ms")
	assert.Contains(t, out, "+200ms  tab-1   logged out")

	code, _, _ = run(t, "simulate", "--tabs", "0")
	assert.Equal(t, ExitUsageError, code)
}
