// Package history persists match results to a local SQLite file so a
// player can review past duels. Writes come from the session on the
// game-loop goroutine; reads come from the status API.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS matches (
	match_id  TEXT PRIMARY KEY,
	outcome   TEXT NOT NULL,
	rounds    INTEGER NOT NULL,
	ended_at  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS rounds (
	match_id     TEXT NOT NULL,
	round        INTEGER NOT NULL,
	local_lives  INTEGER NOT NULL,
	remote_lives INTEGER NOT NULL,
	recorded_at  INTEGER NOT NULL,
	PRIMARY KEY (match_id, round)
);
`

// Match is one finished duel.
type Match struct {
	MatchID string    `json:"match_id"`
	Outcome string    `json:"outcome"`
	Rounds  int       `json:"rounds"`
	EndedAt time.Time `json:"ended_at"`
}

// Round is the lives tally at the end of one round.
type Round struct {
	MatchID     string    `json:"match_id"`
	Round       int       `json:"round"`
	LocalLives  int       `json:"local_lives"`
	RemoteLives int       `json:"remote_lives"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// Store is a SQLite-backed match history.
type Store struct {
	db *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the history database at path, creating the schema if
// needed.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("history path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordRound stores the lives tally for one completed round,
// overwriting any previous record for the same round.
func (s *Store) RecordRound(matchID string, round, localLives, remoteLives int) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("history is not configured")
	}
	_, err := s.db.Exec(
		`INSERT INTO rounds (match_id, round, local_lives, remote_lives, recorded_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(match_id, round) DO UPDATE SET
		   local_lives = excluded.local_lives,
		   remote_lives = excluded.remote_lives,
		   recorded_at = excluded.recorded_at`,
		matchID, round, localLives, remoteLives, toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("record round: %w", err)
	}
	return nil
}

// RecordResult stores the final outcome of a match.
func (s *Store) RecordResult(matchID, outcome string, rounds int) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("history is not configured")
	}
	_, err := s.db.Exec(
		`INSERT INTO matches (match_id, outcome, rounds, ended_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(match_id) DO UPDATE SET
		   outcome = excluded.outcome,
		   rounds = excluded.rounds,
		   ended_at = excluded.ended_at`,
		matchID, outcome, rounds, toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	return nil
}

// RecentMatches returns up to limit finished matches, newest first.
func (s *Store) RecentMatches(ctx context.Context, limit int) ([]Match, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("history is not configured")
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT match_id, outcome, rounds, ended_at
		 FROM matches ORDER BY ended_at DESC, match_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var m Match
		var endedAt int64
		if err := rows.Scan(&m.MatchID, &m.Outcome, &m.Rounds, &endedAt); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.EndedAt = fromMillis(endedAt)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return out, nil
}

// Rounds returns the per-round tallies for one match, in round order.
func (s *Store) Rounds(ctx context.Context, matchID string) ([]Round, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("history is not configured")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT match_id, round, local_lives, remote_lives, recorded_at
		 FROM rounds WHERE match_id = ? ORDER BY round`, matchID)
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	defer rows.Close()

	var out []Round
	for rows.Next() {
		var r Round
		var recordedAt int64
		if err := rows.Scan(&r.MatchID, &r.Round, &r.LocalLives, &r.RemoteLives, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		r.RecordedAt = fromMillis(recordedAt)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rounds: %w", err)
	}
	return out, nil
}
