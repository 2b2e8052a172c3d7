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
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"go.mau.fi/util/dbutil"
)

// ErrStoreUnavailable is returned by NewBadgeStore when the database can't
// be opened. Callers generally don't need to check it: the store it comes
// with is still usable, just degraded to no-op writes and zero reads.
var ErrStoreUnavailable = errors.New("badge store unavailable")

// BadgeStore is the durable hand-off point between the background push
// process and the foreground app. Both open the same SQLite file; writes
// are single-row upserts so readers never observe a partial value.
//
// The store is deliberately forgiving: if the database can't be opened or
// a query fails, reads degrade to 0 and writes become no-ops. A broken
// badge is strictly better than a broken app.
type BadgeStore struct {
	db       *dbutil.Database
	userID   string
	hintPath string
	log      zerolog.Logger

	degradedOnce sync.Once
}

// NewBadgeStore opens (or creates) the badge database at path. On failure
// it returns a degraded store together with ErrStoreUnavailable — the
// store is always usable, never nil.
func NewBadgeStore(ctx context.Context, path, userID string, log zerolog.Logger) (*BadgeStore, error) {
	log = log.With().Str("component", "badge-store").Logger()
	store := &BadgeStore{
		userID:   userID,
		hintPath: path + ".push",
		log:      log,
	}
	uri := fmt.Sprintf("file:%s?_txlock=immediate", path)
	db, err := dbutil.NewFromConfig("keepsake", dbutil.Config{
		PoolConfig: dbutil.PoolConfig{
			Type:         "sqlite3",
			URI:          uri,
			MaxOpenConns: 2,
			MaxIdleConns: 1,
		},
	}, dbutil.ZeroLogger(log))
	if err != nil {
		log.Warn().Err(err).Str("path", path).
			Msg("Badge store unavailable — running with in-memory-only badge")
		return store, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err = ensureBadgeSchema(ctx, db); err != nil {
		db.Close()
		log.Warn().Err(err).Msg("Badge store schema init failed — running degraded")
		return store, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	store.db = db
	return store, nil
}

func ensureBadgeSchema(ctx context.Context, db *dbutil.Database) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS badge_state (
			user_id TEXT NOT NULL PRIMARY KEY,
			badge_count INTEGER NOT NULL DEFAULT 0,
			updated_ts BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS last_active_connection (
			user_id TEXT NOT NULL PRIMARY KEY,
			connection_id TEXT NOT NULL,
			updated_ts BIGINT NOT NULL
		)`,
	}
	for _, query := range queries {
		if _, err := db.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to ensure badge schema: %w", err)
		}
	}
	return nil
}

func (s *BadgeStore) degraded(err error, op string) {
	s.degradedOnce.Do(func() {
		s.log.Warn().Err(err).Str("operation", op).
			Msg("Badge store degraded — further store errors logged at debug")
	})
	s.log.Debug().Err(err).Str("operation", op).Msg("Badge store operation failed")
}

// WriteBadge persists the OS badge total. The value is always an absolute
// count declared by the server, never a delta: duplicate or reordered
// pushes just rewrite the same row. Negative input is clamped to 0.
// Failures are swallowed (last durable value simply stays).
func (s *BadgeStore) WriteBadge(ctx context.Context, count int) {
	if count < 0 {
		count = 0
	}
	if s.db == nil {
		return
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO badge_state (user_id, badge_count, updated_ts) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET badge_count=excluded.badge_count, updated_ts=excluded.updated_ts
	`, s.userID, count, time.Now().UnixMilli())
	if err != nil {
		s.degraded(err, "write-badge")
		return
	}
	s.touchHint()
}

// ReadBadge returns the persisted badge total, 0 when absent or when the
// store is degraded.
func (s *BadgeStore) ReadBadge(ctx context.Context) int {
	if s.db == nil {
		return 0
	}
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT badge_count FROM badge_state WHERE user_id=$1`, s.userID,
	).Scan(&count)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.degraded(err, "read-badge")
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return count
}

// ClearBadge zeroes the persisted badge. Used on notification click and
// explicit cache clear.
func (s *BadgeStore) ClearBadge(ctx context.Context) {
	s.WriteBadge(ctx, 0)
}

// WriteLastActive remembers which connection the user had open, keyed by
// user id, so the selector can restore it on the next cold start.
func (s *BadgeStore) WriteLastActive(ctx context.Context, id ConnectionID) {
	if s.db == nil || id == "" {
		return
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO last_active_connection (user_id, connection_id, updated_ts) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET connection_id=excluded.connection_id, updated_ts=excluded.updated_ts
	`, s.userID, string(id), time.Now().UnixMilli())
	if err != nil {
		s.degraded(err, "write-last-active")
	}
}

// ReadLastActive returns the persisted last-active connection hint, or ""
// when there is none.
func (s *BadgeStore) ReadLastActive(ctx context.Context) ConnectionID {
	if s.db == nil {
		return ""
	}
	var id string
	err := s.db.QueryRow(ctx,
		`SELECT connection_id FROM last_active_connection WHERE user_id=$1`, s.userID,
	).Scan(&id)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.degraded(err, "read-last-active")
		}
		return ""
	}
	return ConnectionID(id)
}

// touchHint rewrites the sidecar hint file after every successful badge
// write. A foregrounded app watches this file (see storeWatcher) so a
// background push is reflected in the UI without polling the database.
func (s *BadgeStore) touchHint() {
	err := os.WriteFile(s.hintPath, []byte(strconv.FormatInt(time.Now().UnixNano(), 10)), 0o600)
	if err != nil {
		s.log.Debug().Err(err).Msg("Failed to touch badge hint file")
	}
}

// HintPath is the sidecar file touched on every badge write.
func (s *BadgeStore) HintPath() string {
	return s.hintPath
}

// Close releases the database. Safe on a degraded store.
func (s *BadgeStore) Close() {
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
}
