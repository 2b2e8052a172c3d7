// keepsake - A family memory-sharing app for Keepers and Tellers.
// Copyright (C) 2026 The Keepsake Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package badgesync

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
user_id: user-1
backend:
    base_url: https://api.keepsake.example
realtime:
    url: wss://rt.keepsake.example/channel
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Database.Path == "" {
		t.Error("database path default not applied")
	}
	if cfg.App.SocketPath == "" {
		t.Error("socket path default not applied")
	}
	if len(cfg.Logging.Writers) == 0 {
		t.Error("logging default not applied")
	}
	if _, err = cfg.CompileLogger(); err != nil {
		t.Errorf("CompileLogger failed: %v", err)
	}
}

func TestLoadConfigRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing user_id", "backend:\n    base_url: x\nrealtime:\n    url: y\n"},
		{"missing backend url", "user_id: u\nrealtime:\n    url: y\n"},
		{"missing realtime url", "user_id: u\nbackend:\n    base_url: x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.content)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
