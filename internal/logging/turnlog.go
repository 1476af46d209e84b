package logging

import (
	"database/sql"
	"fmt"
	"time"
)

// #region schema
const turnLogSchema = `
CREATE TABLE IF NOT EXISTS turn_log (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    turn_id       TEXT NOT NULL,
    session_id    TEXT NOT NULL,
    category      TEXT NOT NULL,
    confidence    REAL NOT NULL,
    kairos        INTEGER NOT NULL DEFAULT 0,
    cycles        INTEGER NOT NULL,
    energy        REAL NOT NULL,
    satisfaction  REAL NOT NULL,
    cluster_id    TEXT NOT NULL,
    distance      REAL NOT NULL,
    created_new   INTEGER NOT NULL DEFAULT 0,
    reason        TEXT,
    created_at    TEXT NOT NULL
);
`

// #endregion schema

// #region entry
// TurnEntry is one turn's provenance row: what was decided and why.
type TurnEntry struct {
	TurnID       string
	SessionID    string
	Category     string
	Confidence   float64
	Kairos       bool
	Cycles       int
	Energy       float64
	Satisfaction float64
	ClusterID    string
	Distance     float64
	CreatedNew   bool
	Reason       string
	CreatedAt    time.Time
}

// #endregion entry

// #region ensure-schema
// EnsureSchema creates the turn_log table.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(turnLogSchema); err != nil {
		return fmt.Errorf("turn log schema: %w", err)
	}
	return nil
}

// #endregion ensure-schema

// #region log-turn
// LogTurn writes a provenance entry to the turn_log table.
func LogTurn(db *sql.DB, entry TurnEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO turn_log
		 (turn_id, session_id, category, confidence, kairos, cycles, energy,
		  satisfaction, cluster_id, distance, created_new, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.TurnID,
		entry.SessionID,
		entry.Category,
		entry.Confidence,
		boolToInt(entry.Kairos),
		entry.Cycles,
		entry.Energy,
		entry.Satisfaction,
		entry.ClusterID,
		entry.Distance,
		boolToInt(entry.CreatedNew),
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log turn: %w", err)
	}
	return nil
}

// #endregion log-turn

// #region recent
// RecentTurns returns the most recent provenance rows, newest first.
func RecentTurns(db *sql.DB, limit int) ([]TurnEntry, error) {
	rows, err := db.Query(
		`SELECT turn_id, session_id, category, confidence, kairos, cycles, energy,
		        satisfaction, cluster_id, distance, created_new, reason, created_at
		 FROM turn_log ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent turns: %w", err)
	}
	defer rows.Close()

	var entries []TurnEntry
	for rows.Next() {
		var e TurnEntry
		var kairos, createdNew int
		var reason sql.NullString
		var createdStr string
		if err := rows.Scan(&e.TurnID, &e.SessionID, &e.Category, &e.Confidence,
			&kairos, &e.Cycles, &e.Energy, &e.Satisfaction, &e.ClusterID,
			&e.Distance, &createdNew, &reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		e.Kairos = kairos != 0
		e.CreatedNew = createdNew != 0
		if reason.Valid {
			e.Reason = reason.String
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// #endregion recent

// #region helpers
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
