// keepsake - A family memory-sharing app for Keepers and Tellers.
// Copyright (C) 2026 The Keepsake Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package badgesync

import (
	"encoding/json"
	"time"
)

// NotificationType is the declared push type tag. It selects the vibration
// pattern, interaction requirement, action buttons, and click routing.
type NotificationType string

const (
	NotifPrompt    NotificationType = "prompt"
	NotifMessage   NotificationType = "message"
	NotifMemory    NotificationType = "memory"
	NotifMilestone NotificationType = "milestone"
)

// Notification action identifiers. These come back on click events and
// drive routing: reply opens the conversation, answer/celebrate open the
// prompts view.
const (
	ActionReply     = "reply"
	ActionAnswer    = "answer"
	ActionCelebrate = "celebrate"
)

const (
	defaultTitle      = "Keepsake"
	defaultBody       = "You have a new memory waiting"
	defaultBadgeCount = 1
)

// NotificationAction is one button on a rendered notification.
type NotificationAction struct {
	ID    string
	Title string
}

// Notification is the normalized, fully-defaulted form of a push payload.
// Nothing downstream of ParsePushPayload ever touches raw JSON.
type Notification struct {
	Title              string
	Body               string
	Icon               string
	Image              string
	Tag                string
	Type               NotificationType
	RequireInteraction bool
	Silent             bool

	// BadgeCount is the server-declared absolute unread total. It is never
	// a delta: the push channel may coalesce, reorder, or drop deliveries,
	// and an increment would drift under any of those.
	BadgeCount int

	// ConnectionID is set when the payload's data identifies the
	// conversation the push belongs to.
	ConnectionID ConnectionID

	Vibration []time.Duration
	Actions   []NotificationAction
}

// rawPushPayload mirrors the wire schema. The badge field is inconsistent
// at the source: sometimes a bare integer, sometimes {data:{badgeCount}},
// and sometimes the count only appears under the top-level data object.
type rawPushPayload struct {
	Title              string          `json:"title"`
	Body               string          `json:"body"`
	Icon               string          `json:"icon"`
	Badge              json.RawMessage `json:"badge"`
	Data               rawPushData     `json:"data"`
	Tag                string          `json:"tag"`
	Type               string          `json:"type"`
	RequireInteraction *bool           `json:"requireInteraction"`
	Image              string          `json:"image"`
	Silent             bool            `json:"silent"`
}

type rawPushData struct {
	BadgeCount   *int   `json:"badgeCount"`
	ConnectionID string `json:"connectionId"`
}

type rawBadgeObject struct {
	Data rawPushData `json:"data"`
}

// ParsePushPayload normalizes a raw push body. It never fails: malformed
// JSON produces the generic fallback notification so the user still sees
// that something arrived. Unknown type tags fall through to message
// presentation.
func ParsePushPayload(body []byte) Notification {
	var raw rawPushPayload
	if err := json.Unmarshal(body, &raw); err != nil {
		raw = rawPushPayload{}
	}

	notif := Notification{
		Title:        raw.Title,
		Body:         raw.Body,
		Icon:         raw.Icon,
		Image:        raw.Image,
		Tag:          raw.Tag,
		Silent:       raw.Silent,
		BadgeCount:   extractBadgeCount(raw),
		ConnectionID: ConnectionID(raw.Data.ConnectionID),
	}
	if notif.Title == "" {
		notif.Title = defaultTitle
	}
	if notif.Body == "" {
		notif.Body = defaultBody
	}

	switch NotificationType(raw.Type) {
	case NotifPrompt:
		notif.Type = NotifPrompt
		notif.RequireInteraction = true
		notif.Vibration = vibrationPattern(100, 50, 100)
		notif.Actions = []NotificationAction{{ID: ActionAnswer, Title: "Answer"}}
	case NotifMilestone:
		notif.Type = NotifMilestone
		notif.RequireInteraction = true
		notif.Vibration = vibrationPattern(300, 100, 300, 100, 300)
		notif.Actions = []NotificationAction{{ID: ActionCelebrate, Title: "Celebrate"}}
	case NotifMemory:
		// Memories present exactly like messages, they just carry media.
		notif.Type = NotifMemory
		notif.Vibration = vibrationPattern(200)
		notif.Actions = []NotificationAction{{ID: ActionReply, Title: "Reply"}}
	default:
		notif.Type = NotifMessage
		notif.Vibration = vibrationPattern(200)
		notif.Actions = []NotificationAction{{ID: ActionReply, Title: "Reply"}}
	}

	// An explicit requireInteraction always wins over the type default.
	if raw.RequireInteraction != nil {
		notif.RequireInteraction = *raw.RequireInteraction
	}
	return notif
}

// extractBadgeCount digs the declared absolute total out of whichever spot
// the sender put it: top-level integer badge, badge.data.badgeCount, or
// data.badgeCount. A missing count falls back to 1, a negative one clamps
// to 0 (the badge is never negative).
func extractBadgeCount(raw rawPushPayload) int {
	if len(raw.Badge) > 0 {
		var n int
		if err := json.Unmarshal(raw.Badge, &n); err == nil {
			return clampBadge(n)
		}
		var obj rawBadgeObject
		if err := json.Unmarshal(raw.Badge, &obj); err == nil && obj.Data.BadgeCount != nil {
			return clampBadge(*obj.Data.BadgeCount)
		}
	}
	if raw.Data.BadgeCount != nil {
		return clampBadge(*raw.Data.BadgeCount)
	}
	return defaultBadgeCount
}

func clampBadge(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func vibrationPattern(ms ...int) []time.Duration {
	pattern := make([]time.Duration, len(ms))
	for i, v := range ms {
		pattern[i] = time.Duration(v) * time.Millisecond
	}
	return pattern
}
