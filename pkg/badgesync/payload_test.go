// keepsake - A family memory-sharing app for Keepers and Tellers.
// Copyright (C) 2026 The Keepsake Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package badgesync

import "testing"

func TestParsePushPayloadBadgeExtraction(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"top-level integer", `{"badge": 7}`, 7},
		{"badge object with nested count", `{"badge": {"data": {"badgeCount": 12}}}`, 12},
		{"count under data", `{"data": {"badgeCount": 3}}`, 3},
		{"top-level wins over data", `{"badge": 5, "data": {"badgeCount": 9}}`, 5},
		{"missing defaults to one", `{"title": "hi"}`, 1},
		{"zero is a valid total", `{"badge": 0}`, 0},
		{"negative clamps to zero", `{"badge": -4}`, 0},
		{"unparseable badge falls back to data", `{"badge": "lots", "data": {"badgeCount": 2}}`, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notif := ParsePushPayload([]byte(tt.body))
			if notif.BadgeCount != tt.want {
				t.Errorf("BadgeCount = %d, want %d", notif.BadgeCount, tt.want)
			}
		})
	}
}

func TestParsePushPayloadMalformedFallsBack(t *testing.T) {
	for _, body := range []string{"", "not json", `{"title": `, "\x00\x01"} {
		notif := ParsePushPayload([]byte(body))
		if notif.Title != defaultTitle {
			t.Errorf("Title = %q, want fallback %q for body %q", notif.Title, defaultTitle, body)
		}
		if notif.Body != defaultBody {
			t.Errorf("Body = %q, want fallback %q for body %q", notif.Body, defaultBody, body)
		}
		if notif.BadgeCount != defaultBadgeCount {
			t.Errorf("BadgeCount = %d, want %d for body %q", notif.BadgeCount, defaultBadgeCount, body)
		}
		if notif.Type != NotifMessage {
			t.Errorf("Type = %q, want %q for body %q", notif.Type, NotifMessage, body)
		}
	}
}

func TestParsePushPayloadTypePresentation(t *testing.T) {
	tests := []struct {
		name               string
		body               string
		wantType           NotificationType
		wantAction         string
		requireInteraction bool
	}{
		{"prompt", `{"type": "prompt"}`, NotifPrompt, ActionAnswer, true},
		{"milestone", `{"type": "milestone"}`, NotifMilestone, ActionCelebrate, true},
		{"message", `{"type": "message"}`, NotifMessage, ActionReply, false},
		{"memory presents like message", `{"type": "memory"}`, NotifMemory, ActionReply, false},
		{"unknown tag defaults to message", `{"type": "party"}`, NotifMessage, ActionReply, false},
		{"explicit flag overrides type default", `{"type": "prompt", "requireInteraction": false}`, NotifPrompt, ActionAnswer, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notif := ParsePushPayload([]byte(tt.body))
			if notif.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", notif.Type, tt.wantType)
			}
			if len(notif.Actions) != 1 || notif.Actions[0].ID != tt.wantAction {
				t.Errorf("Actions = %+v, want single %q", notif.Actions, tt.wantAction)
			}
			if notif.RequireInteraction != tt.requireInteraction {
				t.Errorf("RequireInteraction = %v, want %v", notif.RequireInteraction, tt.requireInteraction)
			}
			if len(notif.Vibration) == 0 {
				t.Error("every type should carry a vibration pattern")
			}
		})
	}
}

func TestParsePushPayloadFields(t *testing.T) {
	body := `{
		"title": "Nana shared a memory",
		"body": "Tap to see the photo",
		"tag": "conn-42",
		"image": "https://cdn.keepsake.example/m/1.jpg",
		"silent": true,
		"data": {"connectionId": "conn-42", "badgeCount": 2}
	}`
	notif := ParsePushPayload([]byte(body))
	if notif.Title != "Nana shared a memory" {
		t.Errorf("Title = %q", notif.Title)
	}
	if notif.ConnectionID != "conn-42" {
		t.Errorf("ConnectionID = %q, want conn-42", notif.ConnectionID)
	}
	if !notif.Silent || notif.Tag != "conn-42" || notif.BadgeCount != 2 {
		t.Errorf("unexpected normalization: %+v", notif)
	}
}
