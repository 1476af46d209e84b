package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/feltcore/dae/internal/organ"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture: a recorded
// sequence of pre-scored turns plus the decisions they are expected to
// produce when run against a fresh engine.
type Fixture struct {
	Description string            `json:"description"`
	Turns       []FixtureTurn     `json:"turns"`
	Expected    []FixtureExpected `json:"expected"`
}

// FixtureScore mirrors organ.Output with JSON tags.
type FixtureScore struct {
	Vector    []float64 `json:"vector"`
	Coherence float64   `json:"coherence"`
	Lure      float64   `json:"lure"`
}

// FixtureTurn is one recorded turn. Scores are keyed by organ ID; the
// registry is bypassed so a replay is independent of lexicon drift in the
// built-in organs.
type FixtureTurn struct {
	TurnID         string                  `json:"turn_id"`
	SessionID      string                  `json:"session_id"`
	Text           string                  `json:"text"`
	EntityIDs      []string                `json:"entity_ids"`
	Scores         map[string]FixtureScore `json:"scores"`
	OutcomeQuality *float64                `json:"outcome_quality"`
}

// FixtureExpected captures the expected decision per turn.
type FixtureExpected struct {
	TurnID   string `json:"turn_id"`
	Category string `json:"category"`
	Kairos   bool   `json:"kairos"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToOutputs converts a turn's recorded scores to domain organ outputs.
func (t *FixtureTurn) ToOutputs() map[string]organ.Output {
	out := make(map[string]organ.Output, len(t.Scores))
	for id, s := range t.Scores {
		out[id] = organ.Output{Vector: s.Vector, Coherence: s.Coherence, Lure: s.Lure}
	}
	return out
}

// #endregion fixture-loader
