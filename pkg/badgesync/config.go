// keepsake - A family memory-sharing app for Keepers and Tellers.
// Copyright (C) 2026 The Keepsake Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package badgesync

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"go.mau.fi/zeroconfig"
	"gopkg.in/yaml.v3"
)

// Config is the subsystem configuration shared by the push daemon and the
// foreground app shell. Both must point at the same database path — that
// file is the only channel between them.
type Config struct {
	// UserID scopes badge and last-active rows; the store is per-device
	// but a device can serve multiple logins over time.
	UserID string `yaml:"user_id"`

	Database struct {
		// Path to the SQLite badge database. Defaults to the OS state dir.
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backend struct {
		BaseURL string `yaml:"base_url"`
		Token   string `yaml:"token"`
	} `yaml:"backend"`

	Realtime struct {
		URL string `yaml:"url"`
	} `yaml:"realtime"`

	App struct {
		// Command launches the foreground app when a notification click
		// finds no running instance.
		Command string `yaml:"command"`
		// SocketPath is where a running foreground instance listens for
		// route messages.
		SocketPath string `yaml:"socket_path"`
	} `yaml:"app"`

	Badge struct {
		// Command overrides badge drawing with an external helper.
		Command string `yaml:"command"`
		// CountFile is the launcher count-file path; empty disables it.
		CountFile string `yaml:"count_file"`
	} `yaml:"badge"`

	Logging zeroconfig.Config `yaml:"logging"`
}

// LoadConfig reads and validates a config file. A missing file is an
// error; missing optional fields get defaults in PostProcess.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err = cfg.PostProcess(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PostProcess fills defaults and validates the few fields nothing can
// work without.
func (cfg *Config) PostProcess() error {
	if cfg.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if cfg.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if cfg.Realtime.URL == "" {
		return fmt.Errorf("realtime.url is required")
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(defaultStateDir(), "badge.db")
	}
	if cfg.App.SocketPath == "" {
		cfg.App.SocketPath = filepath.Join(defaultRuntimeDir(), "keepsake-app.sock")
	}
	if len(cfg.Logging.Writers) == 0 {
		cfg.Logging.Writers = []zeroconfig.WriterConfig{{
			Type:   zeroconfig.WriterTypeStderr,
			Format: zeroconfig.LogFormatPrettyColored,
		}}
	}
	return nil
}

// CompileLogger builds the zerolog root logger from the logging section.
func (cfg *Config) CompileLogger() (zerolog.Logger, error) {
	log, err := cfg.Logging.Compile()
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("failed to compile logging config: %w", err)
	}
	return *log, nil
}

func defaultStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "keepsake")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "state", "keepsake")
}

func defaultRuntimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "keepsake")
	}
	return os.TempDir()
}
