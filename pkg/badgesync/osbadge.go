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
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"
)

// ErrBadgeUnavailable means no badge entry point exists in this context.
// This is the normal case on many platforms and is never treated as a
// real error by callers.
var ErrBadgeUnavailable = errors.New("no OS badge entry point available")

// BadgeSetter writes the numeric unread badge on the app icon. Both
// processes hold one; the OS value is global last-write-wins.
type BadgeSetter interface {
	SetBadge(ctx context.Context, count int) error
	ClearBadge(ctx context.Context) error
}

// DetectBadgeSetter probes the known entry points in preference order:
// an operator-supplied badge command, the platform-native hook (macOS
// dock), and a launcher count file. All probed setters are kept — SetBadge
// tries each until one succeeds, since e.g. the count file may exist while
// the dock hook doesn't.
func DetectBadgeSetter(badgeCommand, countFilePath string, log zerolog.Logger) BadgeSetter {
	log = log.With().Str("component", "os-badge").Logger()
	var setters []BadgeSetter
	if badgeCommand != "" {
		setters = append(setters, &commandBadgeSetter{command: badgeCommand})
	}
	if native := platformBadgeSetter(); native != nil {
		setters = append(setters, native)
	}
	if countFilePath != "" {
		setters = append(setters, &countFileBadgeSetter{path: countFilePath})
	}
	if len(setters) == 0 {
		log.Debug().Msg("No OS badge entry point on this platform — badge updates are no-ops")
	}
	return &probedBadgeSetter{setters: setters, log: log}
}

// probedBadgeSetter fans a badge write across all detected entry points
// until one accepts it.
type probedBadgeSetter struct {
	setters []BadgeSetter
	log     zerolog.Logger
}

func (p *probedBadgeSetter) SetBadge(ctx context.Context, count int) error {
	if count < 0 {
		count = 0
	}
	var lastErr error
	for _, s := range p.setters {
		if err := s.SetBadge(ctx, count); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr != nil {
		p.log.Debug().Err(lastErr).Int("count", count).Msg("All badge entry points failed")
		return lastErr
	}
	return ErrBadgeUnavailable
}

func (p *probedBadgeSetter) ClearBadge(ctx context.Context) error {
	return p.SetBadge(ctx, 0)
}

// commandBadgeSetter shells out to an operator-configured command with the
// count as the single argument. Lets desktop integrations (e.g. a GNOME
// extension helper) own the actual badge drawing.
type commandBadgeSetter struct {
	command string
}

func (c *commandBadgeSetter) SetBadge(ctx context.Context, count int) error {
	cmd := exec.CommandContext(ctx, c.command, strconv.Itoa(count))
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("badge command failed: %w (%s)", err, firstLine(out))
	}
	return nil
}

func (c *commandBadgeSetter) ClearBadge(ctx context.Context) error {
	return c.SetBadge(ctx, 0)
}

// countFileBadgeSetter writes the count to a file consumed by launchers
// implementing the count-file convention. An empty file means no badge.
type countFileBadgeSetter struct {
	path string
}

func (f *countFileBadgeSetter) SetBadge(_ context.Context, count int) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	if count == 0 {
		return os.WriteFile(f.path, nil, 0o644)
	}
	return os.WriteFile(f.path, []byte(strconv.Itoa(count)+"\n"), 0o644)
}

func (f *countFileBadgeSetter) ClearBadge(ctx context.Context) error {
	return f.SetBadge(ctx, 0)
}

func firstLine(out []byte) string {
	for i, b := range out {
		if b == '\n' {
			return string(out[:i])
		}
	}
	return string(out)
}
