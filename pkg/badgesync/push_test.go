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
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

type fakeBadgeSetter struct {
	mu    sync.Mutex
	calls []int
	fail  bool
}

func (f *fakeBadgeSetter) SetBadge(_ context.Context, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return ErrBadgeUnavailable
	}
	f.calls = append(f.calls, count)
	return nil
}

func (f *fakeBadgeSetter) ClearBadge(ctx context.Context) error {
	return f.SetBadge(ctx, 0)
}

func (f *fakeBadgeSetter) last() (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return 0, false
	}
	return f.calls[len(f.calls)-1], true
}

type fakeNotifier struct {
	mu    sync.Mutex
	shown []Notification
	fail  bool
}

func (f *fakeNotifier) Show(_ context.Context, notif Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("notifier down")
	}
	f.shown = append(f.shown, notif)
	return nil
}

type fakeRouter struct {
	focused []ConnectionID
	prompts int
	roots   int
}

func (f *fakeRouter) FocusConversation(_ context.Context, id ConnectionID) error {
	f.focused = append(f.focused, id)
	return nil
}

func (f *fakeRouter) OpenPrompts(context.Context) error {
	f.prompts++
	return nil
}

func (f *fakeRouter) OpenRoot(context.Context) error {
	f.roots++
	return nil
}

func newTestPushHandler(t *testing.T) (*PushHandler, *BadgeStore, *fakeBadgeSetter, *fakeNotifier, *fakeRouter) {
	t.Helper()
	store := newTestStore(t)
	setter := &fakeBadgeSetter{}
	notifier := &fakeNotifier{}
	router := &fakeRouter{}
	handler := NewPushHandler(store, setter, notifier, router, zerolog.Nop())
	return handler, store, setter, notifier, router
}

func TestHandlePushPersistsLastProcessedTotal(t *testing.T) {
	handler, store, setter, notifier, _ := newTestPushHandler(t)
	ctx := context.Background()

	// Out-of-order and duplicate deliveries of absolute totals: the badge
	// must equal the total of the last processed push, never a sum.
	for _, total := range []int{3, 1, 1, 5, 2} {
		handler.HandlePush(ctx, []byte(fmt.Sprintf(`{"badge": %d}`, total)))
	}
	if got := store.ReadBadge(ctx); got != 2 {
		t.Errorf("persisted badge = %d, want 2 (last processed)", got)
	}
	if last, ok := setter.last(); !ok || last != 2 {
		t.Errorf("OS badge = %d (%v), want 2", last, ok)
	}
	if len(notifier.shown) != 5 {
		t.Errorf("notifications shown = %d, want 5", len(notifier.shown))
	}
}

func TestHandlePushStoreWriteSurvivesBadgeFailure(t *testing.T) {
	handler, store, setter, notifier, _ := newTestPushHandler(t)
	setter.fail = true
	ctx := context.Background()

	handler.HandlePush(ctx, []byte(`{"badge": 8}`))
	if got := store.ReadBadge(ctx); got != 8 {
		t.Errorf("persisted badge = %d, want 8 even when OS badge fails", got)
	}
	if len(notifier.shown) != 1 {
		t.Error("notification should still render when OS badge fails")
	}
}

func TestHandlePushMalformedStillNotifies(t *testing.T) {
	handler, store, _, notifier, _ := newTestPushHandler(t)
	ctx := context.Background()

	handler.HandlePush(ctx, []byte("garbage{{{"))
	if len(notifier.shown) != 1 {
		t.Fatal("malformed payload must still produce a notification")
	}
	if notifier.shown[0].Title != defaultTitle {
		t.Errorf("fallback title = %q, want %q", notifier.shown[0].Title, defaultTitle)
	}
	if got := store.ReadBadge(ctx); got != defaultBadgeCount {
		t.Errorf("persisted badge = %d, want default %d", got, defaultBadgeCount)
	}
}

func TestHandlePushNotifierFailureIsNonFatal(t *testing.T) {
	handler, store, _, notifier, _ := newTestPushHandler(t)
	notifier.fail = true
	ctx := context.Background()

	handler.HandlePush(ctx, []byte(`{"badge": 4}`))
	if got := store.ReadBadge(ctx); got != 4 {
		t.Errorf("persisted badge = %d, want 4 despite notifier failure", got)
	}
}

func TestHandleClickRouting(t *testing.T) {
	tests := []struct {
		name  string
		click NotificationClick
		check func(t *testing.T, router *fakeRouter)
	}{
		{
			name:  "reply focuses the conversation",
			click: NotificationClick{Action: ActionReply, Type: NotifMessage, ConnectionID: "conn-9"},
			check: func(t *testing.T, router *fakeRouter) {
				if len(router.focused) != 1 || router.focused[0] != "conn-9" {
					t.Errorf("focused = %v, want [conn-9]", router.focused)
				}
			},
		},
		{
			name:  "reply without connection opens root",
			click: NotificationClick{Action: ActionReply, Type: NotifMessage},
			check: func(t *testing.T, router *fakeRouter) {
				if router.roots != 1 {
					t.Errorf("roots = %d, want 1", router.roots)
				}
			},
		},
		{
			name:  "answer opens prompts",
			click: NotificationClick{Action: ActionAnswer, Type: NotifPrompt},
			check: func(t *testing.T, router *fakeRouter) {
				if router.prompts != 1 {
					t.Errorf("prompts = %d, want 1", router.prompts)
				}
			},
		},
		{
			name:  "celebrate opens prompts",
			click: NotificationClick{Action: ActionCelebrate, Type: NotifMilestone},
			check: func(t *testing.T, router *fakeRouter) {
				if router.prompts != 1 {
					t.Errorf("prompts = %d, want 1", router.prompts)
				}
			},
		},
		{
			name:  "body click opens root",
			click: NotificationClick{Type: NotifMessage, ConnectionID: "conn-9"},
			check: func(t *testing.T, router *fakeRouter) {
				if router.roots != 1 {
					t.Errorf("roots = %d, want 1", router.roots)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, store, _, _, router := newTestPushHandler(t)
			ctx := context.Background()
			store.WriteBadge(ctx, 5)

			handler.HandleClick(ctx, tt.click)
			tt.check(t, router)
			if got := store.ReadBadge(ctx); got != 0 {
				t.Errorf("persisted badge after click = %d, want 0", got)
			}
		})
	}
}
