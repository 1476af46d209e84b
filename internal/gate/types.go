package gate

import "github.com/feltcore/dae/internal/organ"

// #region category
// Category is the closed set of decision categories a turn can resolve to.
type Category string

const (
	// CategoryExploratory: two or more organs are independently interested.
	CategoryExploratory Category = "exploratory"
	// CategoryClarifying: the organs disagree; ask rather than assert.
	CategoryClarifying Category = "clarifying"
	// Tie-break categories, selected by minimum energy when no gate fires.
	CategoryReflective Category = "reflective"
	CategoryGrounding  Category = "grounding"
	CategoryAffirming  Category = "affirming"
)

// #endregion category

// #region tie-break
// TieBreak names one fallback decision type and the organ subset its
// energy formula reads. Order in the config is the fixed priority order
// used to break exact energy ties.
type TieBreak struct {
	Category Category
	Organs   []string
}

// #endregion tie-break

// #region config
// Config holds the gate thresholds.
type Config struct {
	LureThreshold   float64 // per-organ interest threshold (default 0.6)
	IntersectionMin int     // organs over threshold to call it exploratory (default 2)
	CoherenceFloor  float64 // aggregate coherence below this forces clarifying (default 0.4)
	KairosBoost     float64 // confidence multiplier when convergence hit the window (default 1.5)
	TieBreaks       []TieBreak
}

// DefaultConfig returns the reference gate thresholds and the fixed
// tie-break priority: reflective, grounding, affirming.
func DefaultConfig() Config {
	return Config{
		LureThreshold:   0.6,
		IntersectionMin: 2,
		CoherenceFloor:  0.4,
		KairosBoost:     1.5,
		TieBreaks: []TieBreak{
			{Category: CategoryReflective, Organs: []string{organ.OrganValence, organ.OrganRhythm}},
			{Category: CategoryGrounding, Organs: []string{organ.OrganUrgency, organ.OrganSalience}},
			{Category: CategoryAffirming, Organs: []string{organ.OrganValence, organ.OrganNovelty}},
		},
	}
}

// #endregion config

// #region decision
// Decision is the gate's output for one turn. Pure data; all persistence
// updates happen afterward, driven by these fields.
type Decision struct {
	Category   Category
	Confidence float64 // always clamped to [0,1]
	Kairos     bool
	Reason     string
}

// #endregion decision
