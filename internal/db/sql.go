package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SQLDB wraps a database/sql pool opened with either the postgres (lib/pq)
// or sqlite (modernc) driver. Queries are written with ? placeholders and
// rebound for postgres.
type SQLDB struct {
	DB     *sql.DB
	Driver string
}

func OpenSQL(driver, dsn string) (*SQLDB, error) {
	switch driver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	if driver == "sqlite" {
		// SQLite allows one writer; serialise through a single connection.
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(50)
		conn.SetMaxIdleConns(10)
		conn.SetConnMaxIdleTime(5 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}

	if driver == "sqlite" {
		if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	s := &SQLDB{DB: conn, Driver: driver}
	if err := CreateSchema(s.DB); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Rebind converts ? placeholders to $1, $2, ... for postgres.
func (s *SQLDB) Rebind(query string) string {
	if s.Driver != "postgres" {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLDB) Close() error {
	return s.DB.Close()
}

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Timestamps are unix milliseconds so both drivers store them the same way.
const schema = `
-- Users
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    display_name TEXT NOT NULL UNIQUE,
    rating INTEGER NOT NULL DEFAULT 1000 CHECK (rating >= 0),
    wins INTEGER NOT NULL DEFAULT 0,
    draws INTEGER NOT NULL DEFAULT 0,
    losses INTEGER NOT NULL DEFAULT 0,
    matches_played INTEGER NOT NULL DEFAULT 0,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_users_rating ON users(rating);
CREATE INDEX IF NOT EXISTS idx_users_wins ON users(wins);

-- Players
CREATE TABLE IF NOT EXISTS players (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    tier TEXT,
    speed INTEGER NOT NULL DEFAULT 0,
    goal_decisiveness INTEGER NOT NULL DEFAULT 0,
    shoot_power INTEGER NOT NULL DEFAULT 0,
    defense INTEGER NOT NULL DEFAULT 0,
    stamina INTEGER NOT NULL DEFAULT 0
);

-- Teams
CREATE TABLE IF NOT EXISTS teams (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
    name TEXT
);

CREATE TABLE IF NOT EXISTS team_members (
    team_id TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
    slot INTEGER NOT NULL,
    player_id TEXT NOT NULL REFERENCES players(id),
    PRIMARY KEY (team_id, slot)
);

-- Match history
CREATE TABLE IF NOT EXISTS match_history (
    id TEXT PRIMARY KEY,
    participant_a TEXT NOT NULL,
    participant_b TEXT NOT NULL,
    outcome TEXT NOT NULL CHECK (outcome IN ('winA', 'winB', 'draw')),
    score_a INTEGER NOT NULL,
    score_b INTEGER NOT NULL,
    rating_delta_a INTEGER NOT NULL,
    rating_delta_b INTEGER NOT NULL,
    power_a INTEGER NOT NULL,
    power_b INTEGER NOT NULL,
    completed_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_match_history_a ON match_history(participant_a, completed_at);
CREATE INDEX IF NOT EXISTS idx_match_history_b ON match_history(participant_b, completed_at);

-- Matchmaking journal
CREATE TABLE IF NOT EXISTS match_events (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    match_id TEXT,
    participant_a TEXT,
    participant_b TEXT,
    actor TEXT,
    reason TEXT,
    created_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_match_events_match ON match_events(match_id, created_at);
`
