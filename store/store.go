package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"queuebot/audio"
)

// Store persists per-guild settings across restarts.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at path. ":memory:"
// gives a throwaway database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one connection, so ":memory:" is a single database and writes serialize
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS guild_settings (
			guild_id   TEXT PRIMARY KEY,
			loop_mode  TEXT NOT NULL DEFAULT 'off',
			updated_at INTEGER NOT NULL
		)
	`)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// LoopModes returns the saved loop mode of every guild. Rows with a mode
// this build does not know are skipped.
func (s *Store) LoopModes(ctx context.Context) (map[string]audio.LoopMode, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT guild_id, loop_mode FROM guild_settings`)
	if err != nil {
		return nil, fmt.Errorf("query loop modes: %w", err)
	}
	defer rows.Close()

	modes := make(map[string]audio.LoopMode)
	for rows.Next() {
		var guildID, raw string
		if err := rows.Scan(&guildID, &raw); err != nil {
			return nil, err
		}
		mode, err := audio.ParseLoopMode(raw)
		if err != nil {
			continue
		}
		modes[guildID] = mode
	}
	return modes, rows.Err()
}

func (s *Store) SaveLoopMode(ctx context.Context, guildID string, mode audio.LoopMode) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guild_settings (guild_id, loop_mode, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			loop_mode = excluded.loop_mode,
			updated_at = excluded.updated_at
	`, guildID, mode.String(), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save loop mode of %s: %w", guildID, err)
	}
	return nil
}

// Restore applies the saved loop modes to queues and returns how many
// guilds it touched.
func (s *Store) Restore(ctx context.Context, queues *audio.QueueManager) (int, error) {
	modes, err := s.LoopModes(ctx)
	if err != nil {
		return 0, err
	}
	for guildID, mode := range modes {
		queues.Get(guildID).SetLoopMode(mode)
	}
	return len(modes), nil
}
