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
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// Backend is the slice of the keepsake API this subsystem consumes. The
// backend itself (profiles, memory CRUD, file storage, AI) is an external
// collaborator; only these three reads matter here.
type Backend interface {
	Connections(ctx context.Context) ([]Connection, error)
	UnreadSummary(ctx context.Context) (*UnreadSummary, error)
	Messages(ctx context.Context, id ConnectionID) ([]Message, error)
}

// BackendClient is the HTTP implementation of Backend. Call deadlines come
// from the caller's context — the reconciler passes short ones so a
// stalled fetch can't hold up the realtime resubscribe.
type BackendClient struct {
	baseURL string
	token   string
	http    *http.Client
	log     zerolog.Logger
}

func NewBackendClient(baseURL, token string, log zerolog.Logger) *BackendClient {
	return &BackendClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     log.With().Str("component", "backend").Logger(),
	}
}

func (c *BackendClient) Connections(ctx context.Context) ([]Connection, error) {
	var resp struct {
		Connections []Connection `json:"connections"`
	}
	if err := c.get(ctx, "/v1/connections", &resp); err != nil {
		return nil, err
	}
	return resp.Connections, nil
}

func (c *BackendClient) UnreadSummary(ctx context.Context) (*UnreadSummary, error) {
	var summary UnreadSummary
	if err := c.get(ctx, "/v1/notifications/unread-summary", &summary); err != nil {
		return nil, err
	}
	if summary.PerConnection == nil {
		summary.PerConnection = map[ConnectionID]int{}
	}
	if summary.Total < 0 {
		summary.Total = 0
	}
	return &summary, nil
}

func (c *BackendClient) Messages(ctx context.Context, id ConnectionID) ([]Message, error) {
	var resp struct {
		Messages []Message `json:"messages"`
	}
	path := fmt.Sprintf("/v1/connections/%s/memories", url.PathEscape(string(id)))
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (c *BackendClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned HTTP %d: %s", path, resp.StatusCode, firstLine(body))
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
