package orchestrator

import (
	"github.com/feltcore/dae/internal/gate"
	"github.com/feltcore/dae/internal/organ"
)

// #region turn-input
// TurnInput is one conversational turn as handed to the engine. Scores is
// an optional pre-scored path: when non-nil the registry is bypassed and
// the given outputs are used verbatim (replay, tests). OutcomeQuality is
// optional delayed feedback about the previous response; learning that
// depends on it simply waits when it is absent.
type TurnInput struct {
	TurnID         string
	SessionID      string
	Unit           organ.Unit
	Scores         map[string]organ.Output
	OutcomeQuality *float64
}

// #endregion turn-input

// #region turn-result
// TurnResult is everything a caller needs about one processed turn.
type TurnResult struct {
	TurnID            string
	SessionID         string
	Category          gate.Category
	Confidence        float64
	Kairos            bool
	Reason            string
	CyclesUsed        int
	Energy            float64
	Satisfaction      float64
	ClusterID         string
	ClusterDistance   float64
	CreatedNewCluster bool
}

// #endregion turn-result
