// keepsake - A family memory-sharing app for Keepers and Tellers.
// Copyright (C) 2026 The Keepsake Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

//go:build darwin

package badgesync

import (
	"context"
	"fmt"
	"os/exec"
)

// platformBadgeSetter drives the macOS dock tile through osascript. The
// binary may be missing in sandboxed or headless environments, so its
// presence is checked per call rather than cached.
func platformBadgeSetter() BadgeSetter {
	return &dockBadgeSetter{}
}

type dockBadgeSetter struct{}

func (d *dockBadgeSetter) SetBadge(ctx context.Context, count int) error {
	osascript, err := exec.LookPath("osascript")
	if err != nil {
		return ErrBadgeUnavailable
	}
	label := ""
	if count > 0 {
		label = fmt.Sprintf("%d", count)
	}
	script := fmt.Sprintf(`tell application "Keepsake" to set badge label to %q`, label)
	cmd := exec.CommandContext(ctx, osascript, "-e", script)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("dock badge failed: %w (%s)", err, firstLine(out))
	}
	return nil
}

func (d *dockBadgeSetter) ClearBadge(ctx context.Context) error {
	return d.SetBadge(ctx, 0)
}
