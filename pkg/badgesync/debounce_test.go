// keepsake - A family memory-sharing app for Keepers and Tellers.
// Copyright (C) 2026 The Keepsake Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package badgesync

import (
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func TestReconnectGateShortHiddenDoesNotFire(t *testing.T) {
	clock := newFakeClock()
	gate := NewReconnectGate(clock.Now)

	if gate.Observe(SignalHidden) {
		t.Fatal("hidden signal must never fire")
	}
	clock.Advance(3 * time.Second)
	if gate.Observe(SignalVisible) {
		t.Error("visible after 3s hidden should not fire (threshold is 5s)")
	}
}

func TestReconnectGateLongHiddenFires(t *testing.T) {
	clock := newFakeClock()
	gate := NewReconnectGate(clock.Now)

	gate.Observe(SignalHidden)
	clock.Advance(6 * time.Second)
	if !gate.Observe(SignalVisible) {
		t.Error("visible after 6s hidden should fire")
	}
}

func TestReconnectGateVisibleWithoutHiddenDoesNotFire(t *testing.T) {
	clock := newFakeClock()
	gate := NewReconnectGate(clock.Now)

	clock.Advance(time.Hour)
	if gate.Observe(SignalVisible) {
		t.Error("visible with no recorded hidden transition should not fire")
	}
}

func TestReconnectGatePageHideNeverFires(t *testing.T) {
	clock := newFakeClock()
	gate := NewReconnectGate(clock.Now)

	for i := 0; i < 5; i++ {
		clock.Advance(time.Minute)
		if gate.Observe(SignalPageHide) {
			t.Fatal("pagehide must never fire")
		}
	}
	// But it must have updated the hidden timestamp.
	clock.Advance(6 * time.Second)
	if !gate.Observe(SignalVisible) {
		t.Error("visible 6s after pagehide should fire")
	}
}

func TestReconnectGateBurstFiresOnce(t *testing.T) {
	clock := newFakeClock()
	gate := NewReconnectGate(clock.Now)
	clock.Advance(time.Minute)

	fired := 0
	if gate.Observe(SignalPageShowRestored) {
		fired++
	}
	clock.Advance(500 * time.Millisecond)
	if gate.Observe(SignalWindowFocus) {
		fired++
	}
	if fired != 1 {
		t.Errorf("burst of two signals fired %d times, want exactly 1", fired)
	}
}

func TestReconnectGateBurstFocusFirst(t *testing.T) {
	clock := newFakeClock()
	gate := NewReconnectGate(clock.Now)

	// Focus needs >10s since the last visible moment (construction time).
	clock.Advance(15 * time.Second)
	fired := 0
	if gate.Observe(SignalWindowFocus) {
		fired++
	}
	clock.Advance(500 * time.Millisecond)
	if gate.Observe(SignalPageShowRestored) {
		fired++
	}
	if fired != 1 {
		t.Errorf("burst of two signals fired %d times, want exactly 1", fired)
	}
}

func TestReconnectGateFocusNeedsVisibleGap(t *testing.T) {
	clock := newFakeClock()
	gate := NewReconnectGate(clock.Now)

	clock.Advance(5 * time.Second)
	if gate.Observe(SignalWindowFocus) {
		t.Error("focus 5s after construction should not fire (needs >10s since visible)")
	}

	// A visible transition resets the gap.
	gate.Observe(SignalHidden)
	clock.Advance(time.Second)
	gate.Observe(SignalVisible)
	clock.Advance(11 * time.Second)
	if !gate.Observe(SignalWindowFocus) {
		t.Error("focus 11s after last visible should fire")
	}
}

func TestReconnectGateCooldownExpires(t *testing.T) {
	clock := newFakeClock()
	gate := NewReconnectGate(clock.Now)
	clock.Advance(time.Minute)

	if !gate.Observe(SignalPageShowRestored) {
		t.Fatal("first pageshow should fire")
	}
	clock.Advance(time.Second)
	if gate.Observe(SignalPageShowRestored) {
		t.Error("pageshow 1s after a run should be suppressed")
	}
	clock.Advance(2 * time.Second)
	if !gate.Observe(SignalPageShowRestored) {
		t.Error("pageshow after the cooldown should fire again")
	}
}

func TestReconnectGateVisibleRespectsCooldown(t *testing.T) {
	clock := newFakeClock()
	gate := NewReconnectGate(clock.Now)
	clock.Advance(time.Minute)

	gate.Observe(SignalHidden)
	clock.Advance(6 * time.Second)
	if !gate.Observe(SignalPageShowRestored) {
		t.Fatal("pageshow should fire")
	}
	// Same burst: the visible transition would qualify on hidden duration
	// alone but the shared cooldown keeps the run count at one.
	clock.Advance(300 * time.Millisecond)
	if gate.Observe(SignalVisible) {
		t.Error("visible in the same burst as a fired pageshow should be suppressed")
	}
}
