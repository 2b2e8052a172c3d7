// keepsake - A family memory-sharing app for Keepers and Tellers.
// Copyright (C) 2026 The Keepsake Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package badgesync keeps the OS unread badge, the per-connection unread
// map, and the realtime memory feed consistent between the background
// push-handling process and the foreground app process. The two processes
// never share memory; they hand off state through the badge store only.
package badgesync

import (
	"encoding/json"

	"go.mau.fi/util/jsontime"
)

// ConnectionID identifies a Keeper↔Teller connection on the backend.
type ConnectionID string

// Connection is one persistent Keeper↔Teller relationship as returned by
// the connections endpoint. Pending connections (invitation sent but not
// accepted) have IsConnected=false.
type Connection struct {
	ID          ConnectionID       `json:"id"`
	IsConnected bool               `json:"isConnected"`
	KeeperName  string             `json:"keeperName,omitempty"`
	TellerName  string             `json:"tellerName,omitempty"`
	CreatedAt   jsontime.UnixMilli `json:"createdAt,omitempty"`
}

// Message is a single memory in a connection's feed. Content semantics
// (text, photo, video, voice, document) live on the backend; this process
// only moves messages around.
type Message struct {
	ID           string             `json:"id"`
	ConnectionID ConnectionID       `json:"connectionId"`
	SenderID     string             `json:"senderId"`
	Kind         string             `json:"kind"`
	Text         string             `json:"text,omitempty"`
	MediaURL     string             `json:"mediaUrl,omitempty"`
	CreatedAt    jsontime.UnixMilli `json:"createdAt"`
}

// UnreadSummary is the authoritative unread state from the backend. Total
// is the OS badge value; PerConnection replaces the local unread map
// wholesale on every fetch so local state can never drift.
type UnreadSummary struct {
	Total         int                  `json:"total"`
	PerConnection map[ConnectionID]int `json:"perConnection"`
}

// RealtimeEvent is one decoded frame from the realtime channel.
type RealtimeEvent struct {
	Type         string          `json:"type"`
	ConnectionID ConnectionID    `json:"connectionId,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// LifecycleSignal is a transient OS/app lifecycle event. Signals are never
// persisted; they only feed the reconnect gate.
type LifecycleSignal int

const (
	SignalHidden LifecycleSignal = iota
	SignalVisible
	SignalPageHide
	SignalPageShowRestored
	SignalWindowFocus
)

func (s LifecycleSignal) String() string {
	switch s {
	case SignalHidden:
		return "hidden"
	case SignalVisible:
		return "visible"
	case SignalPageHide:
		return "pagehide"
	case SignalPageShowRestored:
		return "pageshow-restored"
	case SignalWindowFocus:
		return "window-focus"
	default:
		return "unknown"
	}
}

// SelectionSource says which rule picked the active connection.
type SelectionSource int

const (
	SourceNone SelectionSource = iota
	SourceRestored
	SourceFirstActive
	SourceFirstPending
)

func (s SelectionSource) String() string {
	switch s {
	case SourceRestored:
		return "restored"
	case SourceFirstActive:
		return "first-active"
	case SourceFirstPending:
		return "first-pending"
	default:
		return "none"
	}
}

// Selection is the active-connection choice for the current connection
// list. A None selection has an empty ConnectionID.
type Selection struct {
	ConnectionID ConnectionID
	IsConnected  bool
	Source       SelectionSource
}

// SelectActiveConnection picks the conversation the foreground app should
// show. Priority: the persisted last-active connection if it is still in
// the list and connected, then the first connected connection, then the
// first connection of any state, then none. Deterministic and
// side-effect-free; persisting lastActiveID on explicit switches is the
// caller's job (see Reconciler.SetActiveConnection).
func SelectActiveConnection(connections []Connection, lastActiveID ConnectionID) Selection {
	if lastActiveID != "" {
		for _, conn := range connections {
			if conn.ID == lastActiveID && conn.IsConnected {
				return Selection{ConnectionID: conn.ID, IsConnected: true, Source: SourceRestored}
			}
		}
	}
	for _, conn := range connections {
		if conn.IsConnected {
			return Selection{ConnectionID: conn.ID, IsConnected: true, Source: SourceFirstActive}
		}
	}
	if len(connections) > 0 {
		return Selection{ConnectionID: connections[0].ID, IsConnected: false, Source: SourceFirstPending}
	}
	return Selection{Source: SourceNone}
}
