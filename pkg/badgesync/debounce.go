// keepsake - A family memory-sharing app for Keepers and Tellers.
// Copyright (C) 2026 The Keepsake Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package badgesync

import (
	"sync"
	"time"
)

// Debounce thresholds. One logical resume can fire up to four lifecycle
// signals (visible, pageshow-restored, window-focus, plus a trailing
// focus); the gate lets exactly one of them through.
const (
	// minHiddenForReconnect: a visible transition only counts as a resume
	// if the app was actually gone for a while, not a quick tab flick.
	minHiddenForReconnect = 5 * time.Second
	// reconnectCooldown suppresses the other signals of the same burst.
	reconnectCooldown = 2 * time.Second
	// focusVisibleGap: window focus alone is too noisy to trust unless the
	// app hasn't been visible for a long stretch.
	focusVisibleGap = 10 * time.Second
)

// ReconnectGate decides whether a lifecycle signal should trigger a
// reconciliation run. All state is in-memory and resets on process
// restart; cold start is covered by the reconciler's explicit startup run,
// not by the gate.
//
// All firing kinds share one lastReconnect timestamp: whichever signal of
// a burst arrives first wins and suppresses the rest via the cooldown.
// Correctness only needs "at least one signal fires, debounced" — never a
// particular one.
type ReconnectGate struct {
	clock func() time.Time

	mu            sync.Mutex
	lastHidden    time.Time
	lastVisible   time.Time
	lastReconnect time.Time
}

// NewReconnectGate builds a gate with an injectable clock for tests. A nil
// clock means time.Now.
func NewReconnectGate(clock func() time.Time) *ReconnectGate {
	if clock == nil {
		clock = time.Now
	}
	g := &ReconnectGate{clock: clock}
	// The process starts in the foreground, so treat construction time as
	// the last visible moment. Otherwise the first stray focus event would
	// see an infinite visible gap and fire immediately.
	g.lastVisible = clock()
	return g
}

// Observe feeds one signal through the gate and reports whether the caller
// should reconcile now.
func (g *ReconnectGate) Observe(signal LifecycleSignal) bool {
	return g.shouldFire(signal, g.clock())
}

func (g *ReconnectGate) shouldFire(signal LifecycleSignal, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch signal {
	case SignalHidden, SignalPageHide:
		// Never fire; just mark when we went away.
		g.lastHidden = now
		return false

	case SignalVisible:
		hiddenAt := g.lastHidden
		g.lastVisible = now
		if hiddenAt.IsZero() {
			return false
		}
		if now.Sub(hiddenAt) <= minHiddenForReconnect {
			return false
		}
		return g.fire(now)

	case SignalPageShowRestored:
		return g.fire(now)

	case SignalWindowFocus:
		if now.Sub(g.lastVisible) <= focusVisibleGap {
			return false
		}
		return g.fire(now)

	default:
		return false
	}
}

// fire applies the shared cooldown and stamps lastReconnect on success.
// Callers must hold g.mu.
func (g *ReconnectGate) fire(now time.Time) bool {
	if !g.lastReconnect.IsZero() && now.Sub(g.lastReconnect) <= reconnectCooldown {
		return false
	}
	g.lastReconnect = now
	return true
}
