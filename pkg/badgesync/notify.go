// keepsake - A family memory-sharing app for Keepers and Tellers.
// Copyright (C) 2026 The Keepsake Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package badgesync

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Notifier renders one notification to the user. Failures are always
// non-fatal to callers.
type Notifier interface {
	Show(ctx context.Context, notif Notification) error
}

const (
	notifIconMaxEdge  = 128
	notifImageTimeout = 3 * time.Second
	notifImageMaxSize = 5 << 20
)

// DesktopNotifier shells out to the platform notifier (notify-send on
// Linux/BSD, osascript on macOS). Push image/icon URLs are fetched,
// verified, and downscaled before being handed over; a broken image just
// means a notification without one.
type DesktopNotifier struct {
	http    *http.Client
	iconDir string
	log     zerolog.Logger
}

func NewDesktopNotifier(log zerolog.Logger) *DesktopNotifier {
	return &DesktopNotifier{
		http:    &http.Client{Timeout: notifImageTimeout},
		iconDir: filepath.Join(os.TempDir(), "keepsake-notif"),
		log:     log.With().Str("component", "notifier").Logger(),
	}
}

func (n *DesktopNotifier) Show(ctx context.Context, notif Notification) error {
	if runtime.GOOS == "darwin" {
		return n.showDarwin(ctx, notif)
	}
	return n.showNotifySend(ctx, notif)
}

func (n *DesktopNotifier) showNotifySend(ctx context.Context, notif Notification) error {
	bin, err := exec.LookPath("notify-send")
	if err != nil {
		return fmt.Errorf("notify-send not available: %w", err)
	}

	args := []string{"--app-name=Keepsake"}
	// Long/strong vibration patterns map to urgency; requireInteraction
	// keeps the notification on screen until dismissed.
	if notif.RequireInteraction {
		args = append(args, "--urgency=critical", "--expire-time=0")
	} else {
		args = append(args, "--urgency=normal")
	}
	if notif.Silent {
		args = append(args, "--hint=boolean:suppress-sound:true")
	}
	if notif.Tag != "" {
		args = append(args, "--hint=string:x-keepsake-tag:"+notif.Tag)
	}
	if icon := n.prepareIcon(ctx, notif); icon != "" {
		args = append(args, "--icon="+icon)
	}
	for _, action := range notif.Actions {
		args = append(args, fmt.Sprintf("--action=%s=%s", action.ID, action.Title))
	}
	args = append(args, notif.Title, notif.Body)

	cmd := exec.CommandContext(ctx, bin, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("notify-send failed: %w (%s)", err, firstLine(out))
	}
	return nil
}

func (n *DesktopNotifier) showDarwin(ctx context.Context, notif Notification) error {
	osascript, err := exec.LookPath("osascript")
	if err != nil {
		return fmt.Errorf("osascript not available: %w", err)
	}
	script := fmt.Sprintf(`display notification %q with title %q`, notif.Body, notif.Title)
	cmd := exec.CommandContext(ctx, osascript, "-e", script)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("osascript notification failed: %w (%s)", err, firstLine(out))
	}
	return nil
}

// prepareIcon fetches the push's image (preferred) or icon URL, verifies
// it really is an image, downscales it to notifier size, and returns a
// local PNG path. Any failure returns "" — the notification renders
// without an icon.
func (n *DesktopNotifier) prepareIcon(ctx context.Context, notif Notification) string {
	url := notif.Image
	if url == "" {
		url = notif.Icon
	}
	if url == "" || !strings.HasPrefix(url, "http") {
		return ""
	}

	data, err := n.fetchImage(ctx, url)
	if err != nil {
		n.log.Debug().Err(err).Str("url", url).Msg("Notification image fetch failed")
		return ""
	}
	// Never trust the URL extension or Content-Type; sniff the bytes.
	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		n.log.Debug().Str("mime", mtype.String()).Str("url", url).
			Msg("Notification image URL did not resolve to an image")
		return ""
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		n.log.Debug().Err(err).Str("mime", mtype.String()).Msg("Notification image decode failed")
		return ""
	}
	icon := scaleToIcon(src)

	if err = os.MkdirAll(n.iconDir, 0o700); err != nil {
		return ""
	}
	path := filepath.Join(n.iconDir, fmt.Sprintf("icon-%d.png", time.Now().UnixNano()))
	file, err := os.Create(path)
	if err != nil {
		return ""
	}
	defer file.Close()
	if err = png.Encode(file, icon); err != nil {
		os.Remove(path)
		return ""
	}
	return path
}

func (n *DesktopNotifier) fetchImage(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, notifImageTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := n.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image fetch returned HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, notifImageMaxSize))
}

// scaleToIcon downscales to at most notifIconMaxEdge on the long edge.
// Images already small enough pass through untouched.
func scaleToIcon(src image.Image) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= notifIconMaxEdge && h <= notifIconMaxEdge {
		return src
	}
	if w >= h {
		h = h * notifIconMaxEdge / w
		w = notifIconMaxEdge
	} else {
		w = w * notifIconMaxEdge / h
		h = notifIconMaxEdge
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}
