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

	"github.com/rs/zerolog"
)

// PushHandler runs in the background process and reacts to each incoming
// push: persist the declared badge total, mirror it onto the OS badge,
// and render a notification. It also handles notification clicks.
//
// Everything here is best-effort. A parse failure still shows a generic
// notification; a badge failure still leaves the durable record correct;
// the worst outcome of any failure is a stale badge until the next push
// or reconciliation.
type PushHandler struct {
	store    *BadgeStore
	badge    BadgeSetter
	notifier Notifier
	router   ClickRouter
	log      zerolog.Logger
}

func NewPushHandler(store *BadgeStore, badge BadgeSetter, notifier Notifier, router ClickRouter, log zerolog.Logger) *PushHandler {
	return &PushHandler{
		store:    store,
		badge:    badge,
		notifier: notifier,
		router:   router,
		log:      log.With().Str("component", "push-handler").Logger(),
	}
}

// HandlePush processes one raw push body end to end. The store write
// happens before the OS badge attempt so the durable record is right even
// when badge-setting fails; both happen before notification rendering so
// a slow notifier can't delay them.
func (h *PushHandler) HandlePush(ctx context.Context, body []byte) Notification {
	notif := ParsePushPayload(body)
	log := h.log.With().
		Str("type", string(notif.Type)).
		Str("tag", notif.Tag).
		Int("badge", notif.BadgeCount).
		Logger()

	h.store.WriteBadge(ctx, notif.BadgeCount)

	if err := h.badge.SetBadge(ctx, notif.BadgeCount); err != nil {
		// Expected on platforms without a badge entry point.
		log.Debug().Err(err).Msg("OS badge not set")
	}

	if err := h.notifier.Show(ctx, notif); err != nil {
		log.Warn().Err(err).Msg("Failed to render notification")
	} else {
		log.Debug().Msg("Push handled")
	}
	return notif
}

// NotificationClick is a user interaction with a rendered notification.
// Action is empty when the notification body itself was clicked.
type NotificationClick struct {
	Action       string
	Type         NotificationType
	ConnectionID ConnectionID
}

// HandleClick clears the OS badge (best-effort, never blocking the
// routing decision) and opens the matching view: reply goes straight to
// the conversation, answer/celebrate to the prompts view, everything else
// to the app root.
func (h *PushHandler) HandleClick(ctx context.Context, click NotificationClick) {
	log := h.log.With().Str("action", click.Action).Str("type", string(click.Type)).Logger()

	go func() {
		if err := h.badge.ClearBadge(context.WithoutCancel(ctx)); err != nil {
			log.Debug().Err(err).Msg("OS badge not cleared on click")
		}
	}()
	h.store.ClearBadge(ctx)

	var err error
	switch click.Action {
	case ActionReply:
		if click.ConnectionID != "" {
			err = h.router.FocusConversation(ctx, click.ConnectionID)
		} else {
			err = h.router.OpenRoot(ctx)
		}
	case ActionAnswer, ActionCelebrate:
		err = h.router.OpenPrompts(ctx)
	default:
		err = h.router.OpenRoot(ctx)
	}
	if err != nil {
		log.Warn().Err(err).Msg("Failed to route notification click")
	}
}
