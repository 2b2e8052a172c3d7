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
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
)

// RealtimeSubscriber opens the live event channel for a set of
// connections. Implemented by RealtimeClient; faked in tests.
type RealtimeSubscriber interface {
	Subscribe(ctx context.Context, ids []ConnectionID, onEvent func(RealtimeEvent)) (SubscriptionHandle, error)
}

// SubscriptionHandle is an open realtime subscription. Close is idempotent.
type SubscriptionHandle interface {
	Close()
}

// RealtimeClient talks to the keepsake realtime gateway over websocket.
// The same gateway feeds the background daemon raw push frames (Listen)
// and the foreground app decoded events (Subscribe).
type RealtimeClient struct {
	url   string
	token string
	log   zerolog.Logger
}

func NewRealtimeClient(url, token string, log zerolog.Logger) *RealtimeClient {
	return &RealtimeClient{
		url:   url,
		token: token,
		log:   log.With().Str("component", "realtime").Logger(),
	}
}

func (r *RealtimeClient) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	header := http.Header{}
	if r.token != "" {
		header.Set("Authorization", "Bearer "+r.token)
	}
	conn, _, err := websocket.Dial(dialCtx, r.url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, fmt.Errorf("realtime dial failed: %w", err)
	}
	return conn, nil
}

// Subscribe opens the channel, registers interest in the given
// connections, and delivers decoded events to onEvent from a background
// goroutine until the subscription is closed or the connection drops.
// A dropped connection is not retried here: the next reconciliation run
// resubscribes.
func (r *RealtimeClient) Subscribe(ctx context.Context, ids []ConnectionID, onEvent func(RealtimeEvent)) (SubscriptionHandle, error) {
	conn, err := r.dial(ctx)
	if err != nil {
		return nil, err
	}

	frame, _ := json.Marshal(map[string]any{
		"action":        "subscribe",
		"connectionIds": ids,
	})
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = conn.Write(writeCtx, websocket.MessageText, frame)
	cancel()
	if err != nil {
		conn.Close(websocket.StatusInternalError, "subscribe failed")
		return nil, fmt.Errorf("realtime subscribe failed: %w", err)
	}

	readCtx, stop := context.WithCancel(context.Background())
	sub := &realtimeSubscription{conn: conn, stop: stop, done: make(chan struct{})}
	go r.readLoop(readCtx, conn, onEvent, sub.done)
	r.log.Debug().Int("connections", len(ids)).Msg("Realtime subscription opened")
	return sub, nil
}

func (r *RealtimeClient) readLoop(ctx context.Context, conn *websocket.Conn, onEvent func(RealtimeEvent), done chan struct{}) {
	defer close(done)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				r.log.Debug().Err(err).Msg("Realtime channel closed by remote")
			}
			return
		}
		var event RealtimeEvent
		if err = json.Unmarshal(data, &event); err != nil {
			r.log.Debug().Err(err).Msg("Skipping undecodable realtime frame")
			continue
		}
		onEvent(event)
	}
}

type realtimeSubscription struct {
	conn *websocket.Conn
	stop context.CancelFunc
	done chan struct{}
}

func (s *realtimeSubscription) Close() {
	s.stop()
	s.conn.Close(websocket.StatusNormalClosure, "")
	<-s.done
}

// Listen is the background daemon's push transport: every text frame from
// the gateway is handed to onPush as a raw payload for the push handler.
// It blocks until ctx is cancelled or the connection drops; the daemon
// wraps it in a redial loop.
func (r *RealtimeClient) Listen(ctx context.Context, onPush func(ctx context.Context, body []byte)) error {
	conn, err := r.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	r.log.Info().Str("url", r.url).Msg("Listening for pushes")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("push channel read failed: %w", err)
		}
		onPush(ctx, data)
	}
}
