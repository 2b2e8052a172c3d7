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
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrNoForegroundInstance means no foreground app was listening on the
// route socket. The router falls back to launching one.
var ErrNoForegroundInstance = errors.New("no foreground instance listening")

// ClickRouter delivers a notification click to the right app view.
type ClickRouter interface {
	FocusConversation(ctx context.Context, id ConnectionID) error
	OpenPrompts(ctx context.Context) error
	OpenRoot(ctx context.Context) error
}

// RouteMessage is the frame posted to a running foreground instance over
// its route socket. The foreground shell listens on SocketPath and
// navigates accordingly.
type RouteMessage struct {
	Route        string       `json:"route"`
	ConnectionID ConnectionID `json:"connectionId,omitempty"`
}

// AppRouter posts route messages to a live foreground instance over a
// unix socket, or launches a fresh instance with the route as an argument
// when nothing is listening.
type AppRouter struct {
	SocketPath string
	AppCommand string
	log        zerolog.Logger
}

func NewAppRouter(socketPath, appCommand string, log zerolog.Logger) *AppRouter {
	return &AppRouter{
		SocketPath: socketPath,
		AppCommand: appCommand,
		log:        log.With().Str("component", "click-router").Logger(),
	}
}

func (r *AppRouter) FocusConversation(ctx context.Context, id ConnectionID) error {
	return r.route(ctx, RouteMessage{Route: "connection", ConnectionID: id})
}

func (r *AppRouter) OpenPrompts(ctx context.Context) error {
	return r.route(ctx, RouteMessage{Route: "prompts"})
}

func (r *AppRouter) OpenRoot(ctx context.Context) error {
	return r.route(ctx, RouteMessage{Route: "root"})
}

func (r *AppRouter) route(ctx context.Context, msg RouteMessage) error {
	err := r.postToForeground(msg)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNoForegroundInstance) {
		r.log.Debug().Err(err).Str("route", msg.Route).Msg("Posting to foreground failed, launching instead")
	}
	return r.launch(msg)
}

func (r *AppRouter) postToForeground(msg RouteMessage) error {
	if r.SocketPath == "" {
		return ErrNoForegroundInstance
	}
	conn, err := net.DialTimeout("unix", r.SocketPath, time.Second)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoForegroundInstance, err)
	}
	defer conn.Close()
	_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
	frame, _ := json.Marshal(msg)
	if _, err = conn.Write(append(frame, '\n')); err != nil {
		return fmt.Errorf("failed to post route to foreground: %w", err)
	}
	return nil
}

func (r *AppRouter) launch(msg RouteMessage) error {
	if r.AppCommand == "" {
		return fmt.Errorf("no app command configured, cannot open %s view", msg.Route)
	}
	parts := strings.Fields(r.AppCommand)
	route := msg.Route
	if msg.ConnectionID != "" {
		route += "/" + string(msg.ConnectionID)
	}
	args := append(parts[1:], "--route="+route)
	// Not CommandContext: the app must outlive the click handler.
	cmd := exec.Command(parts[0], args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to launch app for %s view: %w", msg.Route, err)
	}
	go func() { _ = cmd.Wait() }()
	r.log.Info().Str("route", route).Int("pid", cmd.Process.Pid).Msg("Launched foreground app")
	return nil
}
