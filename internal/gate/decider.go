package gate

import (
	"fmt"
	"math"
	"sort"

	"github.com/feltcore/dae/internal/assoc"
	"github.com/feltcore/dae/internal/converge"
)

// #region decider
// Decider applies the four gates in fixed order: intersection, coherence,
// Kairos boost, energy tie-break. It reads the association matrix for organ
// confidence multipliers but never writes anything.
type Decider struct {
	config Config
}

// NewDecider creates a decider with the given configuration.
func NewDecider(config Config) *Decider {
	return &Decider{config: config}
}

// Decide selects the turn's category and confidence from the per-organ
// coherences and lures plus the convergence outcome.
func (d *Decider) Decide(
	coherences map[string]float64,
	lures map[string]float64,
	conv converge.Result,
	mem *assoc.Memory,
) Decision {
	organIDs := sortedKeys(lures)

	// --- Gate 1: intersection ---
	// Count organs whose multiplier-adjusted lure clears the threshold.
	var interested int
	var weightedLureSum float64
	for _, id := range organIDs {
		weighted := mem.Multiplier(id) * lures[id]
		weightedLureSum += weighted
		if weighted > d.config.LureThreshold {
			interested++
		}
	}
	meanWeightedLure := 0.0
	if len(organIDs) > 0 {
		meanWeightedLure = weightedLureSum / float64(len(organIDs))
	}

	var category Category
	var reason string
	if interested >= d.config.IntersectionMin {
		category = CategoryExploratory
		reason = fmt.Sprintf("intersection: %d organs over lure %.2f", interested, d.config.LureThreshold)
	}

	// --- Gate 2: coherence ---
	// Disagreement among the organs overrides gate 1: ask, don't assert.
	aggCoherence := 1 - stddevOf(coherences)
	if aggCoherence < d.config.CoherenceFloor {
		category = CategoryClarifying
		reason = fmt.Sprintf("coherence %.3f below floor %.2f", aggCoherence, d.config.CoherenceFloor)
	}

	// --- Gate 4: energy tie-break ---
	// Runs only when gates 1-2 produced no candidate.
	if category == "" {
		category, reason = d.tieBreak(coherences, lures)
	}

	// --- Confidence, then Gate 3: Kairos boost ---
	confidence := 0.4*clamp01(aggCoherence) + 0.3*clamp01(meanWeightedLure) + 0.3*clamp01(1-conv.Energy)
	if conv.ReachedTarget {
		confidence *= d.config.KairosBoost
	}
	confidence = clamp01(confidence)

	return Decision{
		Category:   category,
		Confidence: confidence,
		Kairos:     conv.ReachedTarget,
		Reason:     reason,
	}
}

// tieBreak evaluates the named fallback decision types and picks the one
// with minimum energy. Exact ties resolve by the fixed priority order of
// the tie-break table, never randomly. Organs missing from the maps
// contribute zero (degraded, not an error).
func (d *Decider) tieBreak(coherences, lures map[string]float64) (Category, string) {
	best := d.config.TieBreaks[0].Category
	bestEnergy := math.Inf(1)
	for _, tb := range d.config.TieBreaks {
		var sum float64
		for _, id := range tb.Organs {
			sum += 0.5*lures[id] + 0.5*coherences[id]
		}
		energy := 1.0
		if len(tb.Organs) > 0 {
			energy = 1 - sum/float64(len(tb.Organs))
		}
		if energy < bestEnergy {
			bestEnergy = energy
			best = tb.Category
		}
	}
	return best, fmt.Sprintf("tie-break: min energy %.3f -> %s", bestEnergy, best)
}

// #endregion decider

// #region helpers
func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func stddevOf(m map[string]float64) float64 {
	if len(m) == 0 {
		return 0
	}
	var sum float64
	for _, v := range m {
		sum += v
	}
	mu := sum / float64(len(m))
	var variance float64
	for _, v := range m {
		d := v - mu
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(m)))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers
