package metrics

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at     REAL NOT NULL,
	ended_at       REAL,
	segments       INTEGER NOT NULL DEFAULT 0,
	words          INTEGER NOT NULL DEFAULT 0,
	active_audio_s REAL NOT NULL DEFAULT 0,
	wpm            REAL NOT NULL DEFAULT 0,
	avg_latency_ms REAL NOT NULL DEFAULT 0,
	failures       INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS segments (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id INTEGER NOT NULL REFERENCES sessions(id),
	seq        INTEGER NOT NULL,
	created_at REAL NOT NULL,
	audio_s    REAL NOT NULL,
	words      INTEGER NOT NULL,
	stt_ms     REAL NOT NULL,
	latency_ms REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS lifetime_stats (
	id             INTEGER PRIMARY KEY CHECK (id = 1),
	sessions       INTEGER NOT NULL DEFAULT 0,
	segments       INTEGER NOT NULL DEFAULT 0,
	words          INTEGER NOT NULL DEFAULT 0,
	active_audio_s REAL NOT NULL DEFAULT 0
);

INSERT OR IGNORE INTO lifetime_stats (id) VALUES (1);
`

// Store persists sessions and segments. Session IDs come from the
// sessions table's autoincrement, so they stay strictly increasing
// across daemon restarts.
type Store struct {
	db *sql.DB
}

// DefaultDBPath puts the database next to other persistent app data.
func DefaultDBPath() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "voxd", "metrics.db"), nil
}

func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	// The daemon is the only writer, one connection avoids lock churn.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func unixF(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// BeginSession inserts a session row and returns its id.
func (s *Store) BeginSession(startedAt time.Time) (int64, error) {
	res, err := s.db.Exec(`INSERT INTO sessions (started_at) VALUES (?)`, unixF(startedAt))
	if err != nil {
		return 0, fmt.Errorf("inserting session: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) RecordSegment(sessionID int64, seg Segment, at time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO segments (session_id, seq, created_at, audio_s, words, stt_ms, latency_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, seg.Seq, unixF(at), seg.AudioS, seg.Words, seg.SttMs, seg.LatencyMs)
	if err != nil {
		return fmt.Errorf("inserting segment: %w", err)
	}
	return nil
}

// EndSession finalizes the session row and folds it into the
// lifetime totals.
func (s *Store) EndSession(sum Summary, endedAt time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`UPDATE sessions SET ended_at = ?, segments = ?, words = ?, active_audio_s = ?,
		 wpm = ?, avg_latency_ms = ?, failures = ? WHERE id = ?`,
		unixF(endedAt), sum.Segments, sum.Words, sum.ActiveAudioS,
		sum.WPM, sum.AvgLatencyMs, sum.Failures, sum.SessionID)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	_, err = tx.Exec(
		`UPDATE lifetime_stats SET sessions = sessions + 1, segments = segments + ?,
		 words = words + ?, active_audio_s = active_audio_s + ? WHERE id = 1`,
		sum.Segments, sum.Words, sum.ActiveAudioS)
	if err != nil {
		return fmt.Errorf("updating lifetime stats: %w", err)
	}
	return tx.Commit()
}

func (s *Store) Lifetime() (Lifetime, error) {
	var lt Lifetime
	err := s.db.QueryRow(
		`SELECT sessions, segments, words, active_audio_s FROM lifetime_stats WHERE id = 1`).
		Scan(&lt.Sessions, &lt.Segments, &lt.Words, &lt.ActiveAudioS)
	if err != nil {
		return Lifetime{}, fmt.Errorf("reading lifetime stats: %w", err)
	}
	return lt, nil
}
