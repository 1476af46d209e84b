package replay

import (
	"context"
	"fmt"

	"github.com/feltcore/dae/internal/config"
	"github.com/feltcore/dae/internal/gate"
	"github.com/feltcore/dae/internal/orchestrator"
	"github.com/feltcore/dae/internal/organ"
	"github.com/feltcore/dae/internal/persist"
)

// #region types
// Result captures one replayed turn against its expectation. Expected fields
// are zero-valued when the fixture carries no expectation for the turn.
type Result struct {
	TurnID           string
	Category         gate.Category
	Confidence       float64
	Kairos           bool
	Energy           float64
	Satisfaction     float64
	CyclesUsed       int
	ExpectedCategory string
	ExpectedKairos   bool
	HasExpectation   bool
	Match            bool
}

// Summary aggregates a replay run.
type Summary struct {
	TotalTurns   int
	Expectations int
	Matches      int
	Mismatches   int
}

// #endregion types

// #region replay
// Replay runs every fixture turn through a fresh engine over an in-memory
// store. The engine is fully deterministic, so a fixture either always
// matches or always fails.
func Replay(f *Fixture, cfg config.Config) ([]Result, Summary, error) {
	store := persist.NewMemStore()
	engine, err := orchestrator.New(cfg, store, organ.NewRegistry(), nil)
	if err != nil {
		return nil, Summary{}, fmt.Errorf("replay engine: %w", err)
	}

	expected := make(map[string]FixtureExpected, len(f.Expected))
	for _, e := range f.Expected {
		expected[e.TurnID] = e
	}

	ctx := context.Background()
	results := make([]Result, 0, len(f.Turns))
	var summary Summary

	for _, turn := range f.Turns {
		tr, err := engine.ProcessTurn(ctx, orchestrator.TurnInput{
			TurnID:    turn.TurnID,
			SessionID: turn.SessionID,
			Unit: organ.Unit{
				Text:      turn.Text,
				EntityIDs: turn.EntityIDs,
			},
			Scores:         turn.ToOutputs(),
			OutcomeQuality: turn.OutcomeQuality,
		})
		if err != nil {
			return nil, Summary{}, fmt.Errorf("replay turn %s: %w", turn.TurnID, err)
		}

		r := Result{
			TurnID:       tr.TurnID,
			Category:     tr.Category,
			Confidence:   tr.Confidence,
			Kairos:       tr.Kairos,
			Energy:       tr.Energy,
			Satisfaction: tr.Satisfaction,
			CyclesUsed:   tr.CyclesUsed,
		}
		if exp, ok := expected[turn.TurnID]; ok {
			r.HasExpectation = true
			r.ExpectedCategory = exp.Category
			r.ExpectedKairos = exp.Kairos
			r.Match = string(tr.Category) == exp.Category && tr.Kairos == exp.Kairos
			summary.Expectations++
			if r.Match {
				summary.Matches++
			} else {
				summary.Mismatches++
			}
		}
		results = append(results, r)
	}

	summary.TotalTurns = len(results)
	return results, summary, nil
}

// #endregion replay
