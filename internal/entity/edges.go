package entity

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// #region schema
const edgesSchema = `
CREATE TABLE IF NOT EXISTS entity_edges (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    source_id   TEXT NOT NULL,
    target_id   TEXT NOT NULL,
    count       INTEGER NOT NULL DEFAULT 1,
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL,
    UNIQUE(source_id, target_id)
);
CREATE INDEX IF NOT EXISTS idx_entity_edges_source ON entity_edges(source_id);
CREATE INDEX IF NOT EXISTS idx_entity_edges_target ON entity_edges(target_id);
`

// #endregion schema

// #region types
// Edge is a co-mention link between two entities. The pair is stored once,
// source < target lexicographically.
type Edge struct {
	ID        int64
	SourceID  string
	TargetID  string
	Count     int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CoOccurStore mirrors entity co-occurrence counts into SQLite so they can
// be inspected and queried without loading full tracker snapshots.
type CoOccurStore struct {
	db *sql.DB
}

// #endregion types

// #region constructor
// NewCoOccurStore creates the entity_edges table and returns a store.
func NewCoOccurStore(db *sql.DB) (*CoOccurStore, error) {
	if _, err := db.Exec(edgesSchema); err != nil {
		return nil, fmt.Errorf("entity edges schema: %w", err)
	}
	return &CoOccurStore{db: db}, nil
}

// #endregion constructor

// #region increment
// Increment bumps the co-mention count for a pair, creating the edge on
// first sight.
func (s *CoOccurStore) Increment(a, b string) error {
	if a == b || a == "" || b == "" {
		return nil
	}
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(
		`INSERT INTO entity_edges (source_id, target_id, count, created_at, updated_at)
		 VALUES (?, ?, 1, ?, ?)
		 ON CONFLICT(source_id, target_id) DO UPDATE SET
		   count = entity_edges.count + 1,
		   updated_at = ?`,
		a, b, now, now, now,
	)
	return err
}

// IncrementAll records every pair in one turn's entity list.
func (s *CoOccurStore) IncrementAll(entityIDs []string) error {
	for i := 0; i < len(entityIDs); i++ {
		for j := i + 1; j < len(entityIDs); j++ {
			if err := s.Increment(entityIDs[i], entityIDs[j]); err != nil {
				return err
			}
		}
	}
	return nil
}

// #endregion increment

// #region top
// Top returns the highest-count edges touching entityID, descending.
func (s *CoOccurStore) Top(entityID string, limit int) ([]Edge, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(
		`SELECT id, source_id, target_id, count, created_at, updated_at
		 FROM entity_edges
		 WHERE source_id = ? OR target_id = ?
		 ORDER BY count DESC, source_id, target_id
		 LIMIT ?`,
		entityID, entityID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		var createdAt, updatedAt string
		if err := rows.Scan(&e.ID, &e.SourceID, &e.TargetID, &e.Count, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// #endregion top
