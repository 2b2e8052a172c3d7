// keepsake - A family memory-sharing app for Keepers and Tellers.
// Copyright (C) 2026 The Keepsake Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package badgesync

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const defaultStepTimeout = 8 * time.Second

// ReconcilerCallbacks are how reconciliation results reach the app shell.
// All callbacks are optional and invoked from the reconciliation
// goroutine.
type ReconcilerCallbacks struct {
	// OnMessages delivers the reloaded feed of the active connection.
	OnMessages func(ConnectionID, []Message)
	// OnUnread delivers each authoritative unread summary.
	OnUnread func(UnreadSummary)
	// OnRealtimeEvent delivers live events from the resubscribed channel.
	OnRealtimeEvent func(RealtimeEvent)
}

// Reconciler runs in the foreground process. It funnels the OS lifecycle
// signals through the reconnect gate and, when one passes, performs the
// bounded refresh that brings local state back in line with the backend:
//
//  1. instant badge restore from the persistent store
//  2. connection list refresh
//  3. authoritative unread summary (supersedes step 1's badge value)
//  4. message reload for the active connection only
//  5. realtime resubscribe
//
// Steps run sequentially under a per-step timeout; a failed or timed-out
// step is logged and skipped, never retried, never fatal. Only the active
// connection gets a message reload — background connections are covered
// entirely by the unread summary, which keeps a resume at O(1) fetches no
// matter how many connections exist.
type Reconciler struct {
	store    *BadgeStore
	backend  Backend
	realtime RealtimeSubscriber
	badge    BadgeSetter
	gate     *ReconnectGate
	log      zerolog.Logger

	stepTimeout time.Duration
	callbacks   ReconcilerCallbacks

	mu          sync.Mutex
	connections []Connection
	unread      map[ConnectionID]int
	selection   Selection
	sub         SubscriptionHandle
	watcher     *storeWatcher
	initialized bool

	// reconciling makes an in-flight run immune to new triggers: the gate
	// stops new runs from starting, this stops them from overlapping when
	// the gate is bypassed.
	reconciling atomic.Bool
}

func NewReconciler(store *BadgeStore, backend Backend, realtime RealtimeSubscriber, badge BadgeSetter, callbacks ReconcilerCallbacks, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		store:       store,
		backend:     backend,
		realtime:    realtime,
		badge:       badge,
		gate:        NewReconnectGate(nil),
		log:         log.With().Str("component", "reconciler").Logger(),
		stepTimeout: defaultStepTimeout,
		callbacks:   callbacks,
		unread:      map[ConnectionID]int{},
	}
}

// Initialize starts the store watcher and runs the cold-start
// reconciliation. The app shell must feed lifecycle signals through
// OnLifecycleSignal afterwards and call Cleanup on shutdown.
func (r *Reconciler) Initialize(ctx context.Context) error {
	r.mu.Lock()
	if r.initialized {
		r.mu.Unlock()
		return fmt.Errorf("reconciler already initialized")
	}
	r.initialized = true
	r.mu.Unlock()

	watcher, err := newStoreWatcher(r.store.HintPath(), func() {
		// A background push landed while we're foregrounded: mirror the
		// persisted total onto the OS badge right away. The full refresh
		// waits for the realtime event or the next lifecycle signal.
		bgCtx, cancel := context.WithTimeout(context.Background(), r.stepTimeout)
		defer cancel()
		if badgeErr := r.badge.SetBadge(bgCtx, r.store.ReadBadge(bgCtx)); badgeErr != nil {
			r.log.Debug().Err(badgeErr).Msg("OS badge not updated from store change")
		}
	}, r.log)
	if err != nil {
		// No watcher just means background pushes surface on the next
		// lifecycle signal instead of instantly.
		r.log.Warn().Err(err).Msg("Store watcher unavailable")
	} else {
		r.watcher = watcher
	}

	go r.Reconcile(ctx)
	return nil
}

// OnLifecycleSignal is the entry point for all four resume-ish OS signals
// plus the hidden transitions. At most one reconciliation starts per
// debounce window regardless of how many signals a resume fires.
func (r *Reconciler) OnLifecycleSignal(signal LifecycleSignal) {
	if !r.gate.Observe(signal) {
		r.log.Trace().Stringer("signal", signal).Msg("Lifecycle signal gated")
		return
	}
	r.log.Debug().Stringer("signal", signal).Msg("Lifecycle signal triggered reconciliation")
	go r.Reconcile(context.Background())
}

// Reconcile runs one full reconciliation, bypassing the debounce gate.
// A run already in flight is never preempted; the new request is dropped.
func (r *Reconciler) Reconcile(ctx context.Context) {
	if !r.reconciling.CompareAndSwap(false, true) {
		r.log.Debug().Msg("Reconciliation already in flight, skipping")
		return
	}
	defer r.reconciling.Store(false)

	start := time.Now()
	r.step(ctx, "restore-badge", r.restoreBadge)
	r.step(ctx, "refresh-connections", r.refreshConnections)
	r.step(ctx, "apply-unread-summary", r.applyUnreadSummary)
	r.step(ctx, "reload-active-messages", r.reloadActiveMessages)
	r.step(ctx, "resubscribe-realtime", r.resubscribeRealtime)
	r.log.Debug().Dur("elapsed", time.Since(start)).Msg("Reconciliation finished")
}

// step runs one phase under the step timeout. Failures are logged and
// swallowed so later steps still run — in particular, a dead backend must
// not stop the realtime resubscribe.
func (r *Reconciler) step(ctx context.Context, name string, fn func(context.Context) error) {
	stepCtx, cancel := context.WithTimeout(ctx, r.stepTimeout)
	defer cancel()
	if err := fn(stepCtx); err != nil {
		r.log.Warn().Err(err).Str("step", name).Msg("Reconciliation step failed, continuing")
	}
}

// restoreBadge covers the gap between cold start and the authoritative
// fetch: whatever the background process last persisted goes on the OS
// badge immediately. Step 3 overwrites it.
func (r *Reconciler) restoreBadge(ctx context.Context) error {
	return r.badge.SetBadge(ctx, r.store.ReadBadge(ctx))
}

// refreshConnections re-fetches the connection list (an invitation may
// have been accepted while backgrounded) and recomputes the active
// selection against the persisted last-active hint.
func (r *Reconciler) refreshConnections(ctx context.Context) error {
	connections, err := r.backend.Connections(ctx)
	if err != nil {
		return err
	}
	lastActive := r.store.ReadLastActive(ctx)
	r.mu.Lock()
	r.connections = connections
	r.selection = SelectActiveConnection(connections, lastActive)
	selection := r.selection
	r.mu.Unlock()
	r.log.Debug().
		Int("connections", len(connections)).
		Str("active", string(selection.ConnectionID)).
		Stringer("source", selection.Source).
		Msg("Connection list refreshed")
	return nil
}

// applyUnreadSummary installs the backend's authoritative unread state:
// the per-connection map is replaced wholesale (never merged, so local
// state can't drift) and the badge is set to the summary total, which
// supersedes the step-1 restore within this run.
func (r *Reconciler) applyUnreadSummary(ctx context.Context) error {
	summary, err := r.backend.UnreadSummary(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.unread = summary.PerConnection
	r.mu.Unlock()

	if err = r.badge.SetBadge(ctx, summary.Total); err != nil {
		r.log.Debug().Err(err).Msg("OS badge not set from unread summary")
	}
	r.store.WriteBadge(ctx, summary.Total)

	if r.callbacks.OnUnread != nil {
		r.callbacks.OnUnread(*summary)
	}
	return nil
}

// reloadActiveMessages refreshes the feed of the single active
// connection. Background connections never get a message reload here;
// their unread counts from step 3 are all the UI needs.
func (r *Reconciler) reloadActiveMessages(ctx context.Context) error {
	selection := r.ActiveSelection()
	if selection.ConnectionID == "" {
		return nil
	}
	messages, err := r.backend.Messages(ctx, selection.ConnectionID)
	if err != nil {
		return err
	}
	if r.callbacks.OnMessages != nil {
		r.callbacks.OnMessages(selection.ConnectionID, messages)
	}
	return nil
}

// resubscribeRealtime drops the old subscription and opens a fresh one
// for every connected connection. The old handle is closed first; a
// half-dead socket from before the suspend is useless anyway.
func (r *Reconciler) resubscribeRealtime(ctx context.Context) error {
	r.mu.Lock()
	old := r.sub
	r.sub = nil
	var ids []ConnectionID
	for _, conn := range r.connections {
		if conn.IsConnected {
			ids = append(ids, conn.ID)
		}
	}
	r.mu.Unlock()

	if old != nil {
		old.Close()
	}
	if len(ids) == 0 {
		return nil
	}
	sub, err := r.realtime.Subscribe(ctx, ids, func(event RealtimeEvent) {
		if r.callbacks.OnRealtimeEvent != nil {
			r.callbacks.OnRealtimeEvent(event)
		}
	})
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.sub = sub
	r.mu.Unlock()
	return nil
}

// SetActiveConnection records an explicit user switch: the hint is
// persisted (keyed by user id in the store) so the next cold start can
// restore this conversation, and the in-memory selection follows suit.
func (r *Reconciler) SetActiveConnection(ctx context.Context, id ConnectionID) {
	r.store.WriteLastActive(ctx, id)
	r.mu.Lock()
	r.selection = SelectActiveConnection(r.connections, id)
	r.mu.Unlock()
}

// ActiveSelection returns the current active-connection choice.
func (r *Reconciler) ActiveSelection() Selection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selection
}

// Unread returns a copy of the per-connection unread map from the last
// applied summary.
func (r *Reconciler) Unread() map[ConnectionID]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[ConnectionID]int, len(r.unread))
	for id, n := range r.unread {
		out[id] = n
	}
	return out
}

// Connections returns the last fetched connection list.
func (r *Reconciler) Connections() []Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Connection, len(r.connections))
	copy(out, r.connections)
	return out
}

// Cleanup tears down the watcher and the realtime subscription. The
// reconciler can't be reused afterwards.
func (r *Reconciler) Cleanup() {
	r.mu.Lock()
	watcher := r.watcher
	sub := r.sub
	r.watcher = nil
	r.sub = nil
	r.mu.Unlock()
	if watcher != nil {
		watcher.Close()
	}
	if sub != nil {
		sub.Close()
	}
}
