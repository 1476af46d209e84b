package assoc

import (
	"database/sql"
	"math"
	"time"
)

// #region schema
const decisionOutcomesSchema = `
CREATE TABLE IF NOT EXISTS decision_outcomes (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    turn_id     TEXT NOT NULL,
    session_id  TEXT NOT NULL,
    organ_id    TEXT NOT NULL,
    lure        REAL NOT NULL,
    quality     REAL NOT NULL,
    category    TEXT NOT NULL,
    created_at  TEXT NOT NULL
);
`

const decisionOutcomesIndex = `
CREATE INDEX IF NOT EXISTS idx_decision_outcomes_organ
ON decision_outcomes(organ_id);
`

// #endregion schema

// #region outcome-log
// OutcomeRecord is a single row for decision_outcomes: one organ's share of
// one turn's externally observed outcome quality.
type OutcomeRecord struct {
	TurnID    string
	SessionID string
	OrganID   string
	Lure      float64
	Quality   float64
	Category  string
	CreatedAt time.Time
}

// OutcomeLog persists outcome feedback in SQLite and queries decay-weighted
// per-organ success correlations.
type OutcomeLog struct {
	db *sql.DB
}

// NewOutcomeLog initializes the decision_outcomes table.
func NewOutcomeLog(db *sql.DB) (*OutcomeLog, error) {
	if _, err := db.Exec(decisionOutcomesSchema); err != nil {
		return nil, err
	}
	if _, err := db.Exec(decisionOutcomesIndex); err != nil {
		return nil, err
	}
	return &OutcomeLog{db: db}, nil
}

// Record persists a single outcome row.
func (l *OutcomeLog) Record(rec OutcomeRecord) error {
	_, err := l.db.Exec(`
		INSERT INTO decision_outcomes
		(turn_id, session_id, organ_id, lure, quality, category, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.TurnID,
		rec.SessionID,
		rec.OrganID,
		rec.Lure,
		rec.Quality,
		rec.Category,
		rec.CreatedAt.Format(time.RFC3339),
	)
	return err
}

// SuccessByOrgan returns the decay-weighted mean outcome quality per organ,
// weighted by how active the organ was on each turn (its lure). Organs with
// fewer than 3 samples are omitted.
func (l *OutcomeLog) SuccessByOrgan(halfLifeHours float64) (map[string]float64, error) {
	rows, err := l.db.Query(`SELECT organ_id, lure, quality, created_at FROM decision_outcomes`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type accum struct {
		weightedSum float64
		totalWeight float64
		count       int
	}

	now := time.Now()
	acc := make(map[string]*accum)

	for rows.Next() {
		var organID, createdAtStr string
		var lure, quality float64
		if err := rows.Scan(&organID, &lure, &quality, &createdAtStr); err != nil {
			return nil, err
		}
		createdAt, err := time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			continue
		}
		ageHours := now.Sub(createdAt).Hours()
		weight := lure * math.Exp(-ageHours*math.Ln2/halfLifeHours)

		if _, ok := acc[organID]; !ok {
			acc[organID] = &accum{}
		}
		acc[organID].weightedSum += quality * weight
		acc[organID].totalWeight += weight
		acc[organID].count++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]float64)
	for id, a := range acc {
		if a.count < 3 || a.totalWeight == 0 {
			continue
		}
		out[id] = a.weightedSum / a.totalWeight
	}
	return out, nil
}

// #endregion outcome-log
