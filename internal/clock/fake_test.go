// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockNow(t *testing.T) {
	c := Fake(epoch)
	assert.True(t, c.Now().Equal(epoch))

	c.Advance(5 * time.Second)
	assert.True(t, c.Now().Equal(epoch.Add(5*time.Second)))
}

func TestFakeClockAfterFuncFiresInDeadlineOrder(t *testing.T) {
	c := Fake(epoch)
	var order []string
	var seen []time.Duration

	c.AfterFunc(200*time.Millisecond, func() {
		order = append(order, "late")
		seen = append(seen, c.Now().Sub(epoch))
	})
	c.AfterFunc(100*time.Millisecond, func() {
		order = append(order, "early")
		seen = append(seen, c.Now().Sub(epoch))
	})

	c.Advance(150 * time.Millisecond)
	assert.Equal(t, []string{"early"}, order)

	c.Advance(100 * time.Millisecond)
	assert.Equal(t, []string{"early", "late"}, order)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, seen)
	assert.True(t, c.Now().Equal(epoch.Add(250*time.Millisecond)))
}

func TestFakeClockCallbackCanReschedule(t *testing.T) {
	c := Fake(epoch)
	fired := 0

	var tick func()
	tick = func() {
		fired++
		if fired < 3 {
			c.AfterFunc(10*time.Millisecond, tick)
		}
	}
	c.AfterFunc(10*time.Millisecond, tick)

	c.Advance(time.Second)
	assert.Equal(t, 3, fired)
	assert.Equal(t, 0, c.Pending())
}

func TestFakeClockStop(t *testing.T) {
	c := Fake(epoch)
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	c.Advance(2 * time.Second)
	assert.False(t, fired)
}

func TestFakeClockStopAfterFire(t *testing.T) {
	c := Fake(epoch)
	timer := c.AfterFunc(time.Second, func() {})
	c.Advance(time.Second)
	assert.False(t, timer.Stop())
}

func TestFakeClockZeroDelayWaitsForAdvance(t *testing.T) {
	c := Fake(epoch)
	fired := false
	c.AfterFunc(0, func() { fired = true })
	assert.False(t, fired)

	c.Advance(0)
	assert.True(t, fired)
}

func TestFakeClockSetThenAdvanceFiresOverdue(t *testing.T) {
	c := Fake(epoch)
	var at time.Time
	c.AfterFunc(time.Minute, func() { at = c.Now() })

	c.Set(epoch.Add(time.Hour))
	c.Advance(0)
	assert.True(t, at.Equal(epoch.Add(time.Hour)), "overdue callback should observe the jumped clock")
}

func TestFakeClockTicker(t *testing.T) {
	c := Fake(epoch)
	ticker := c.NewTicker(time.Second)
	defer ticker.Stop()

	c.Advance(time.Second)
	select {
	case <-ticker.C:
	default:
		t.Fatal("ticker did not fire")
	}
	assert.Equal(t, 1, c.Pending())
}

func TestFakeClockSleep(t *testing.T) {
	c := Fake(epoch)
	done := make(chan struct{})
	go func() {
		c.Sleep(time.Second)
		close(done)
	}()

	c.WaitForTimers(1)
	c.Advance(time.Second)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Sleep did not return after Advance")
	}
}

func TestEpochMillisRoundTrip(t *testing.T) {
	ms := EpochMillis(epoch)
	require.NotZero(t, ms)
	assert.True(t, FromEpochMillis(ms).Equal(epoch))
	assert.True(t, FromEpochMillis(0).IsZero())
}
