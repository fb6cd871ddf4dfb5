// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package idle

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/idlesync/internal/clock"
)

// DefaultThrottleWindow is how often raw input may turn into a Reset.
const DefaultThrottleWindow = time.Second

// Throttle admits at most one event per window, measured on the injected
// clock. The first event of a burst passes; the rest are dropped.
type Throttle struct {
	limiter *rate.Limiter
	clock   clock.Clock
}

// NewThrottle returns a Throttle for window. A non-positive window admits
// everything.
func NewThrottle(window time.Duration, clk clock.Clock) *Throttle {
	if clk == nil {
		clk = clock.Real()
	}
	limit := rate.Inf
	if window > 0 {
		limit = rate.Every(window)
	}
	return &Throttle{limiter: rate.NewLimiter(limit, 1), clock: clk}
}

// Allow reports whether an event happening now may pass.
func (t *Throttle) Allow() bool {
	return t.limiter.AllowN(t.clock.Now(), 1)
}
