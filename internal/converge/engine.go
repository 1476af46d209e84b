package converge

import (
	"math"
	"sort"

	"github.com/feltcore/dae/internal/assoc"
)

// #region input
// Input is the per-turn material the descent runs over. All fields are
// fixed for the duration of one run; only satisfaction and the energy
// recursion evolve across cycles.
type Input struct {
	Coherences map[string]float64 // per-organ coherence
	Lures      map[string]float64 // per-organ lure, multiplier-adjusted
	Distance   float64            // signature distance to assigned centroid
}

// #endregion input

// #region engine
// Engine runs the bounded energy descent. Given identical input and an
// identical association snapshot the trajectory is exactly reproducible:
// there is no randomness anywhere in the loop.
type Engine struct {
	config Config
}

// NewEngine creates an engine with the given configuration. The
// configuration must already be validated.
func NewEngine(config Config) *Engine {
	return &Engine{config: config}
}

// Converge iterates the energy recursion up to MaxCycles, stopping early
// when satisfaction lands inside the Kairos window while the energy change
// between consecutive cycles is below epsilon.
func (e *Engine) Converge(in Input, mem *assoc.Memory) Result {
	organIDs := sortedKeys(in.Coherences)

	// Static per-turn terms.
	agreement := 1 - stddevOf(in.Coherences, organIDs)
	appetition := meanOf(in.Lures, sortedKeys(in.Lures))
	resonance := mem.MeanWeight(organIDs)
	intensity := in.Distance / (1 + in.Distance)

	w := e.config.Weights
	aw := e.config.AgreementWeight

	prevEnergy := 1.0 // no descent yet: maximal unrest
	prevPrev := 1.0
	var result Result

	for cycle := 0; cycle < e.config.MaxCycles; cycle++ {
		state := StateDescending
		if cycle == 0 {
			state = StateExploring
		}

		satisfaction := aw*agreement + (1-aw)*(1-prevEnergy)

		// Cycle 0 has no change history; treat the rate term as maximal.
		rate := 1.0
		if cycle > 0 {
			rate = clamp01(math.Abs(prevEnergy - prevPrev))
		}

		energy := w.SatisfactionDeficit*(1-satisfaction) +
			w.EnergyChangeRate*rate +
			w.AppetitionDeficit*(1-appetition) +
			w.ResonanceDeficit*(1-resonance) +
			w.IntersectionIntensity*intensity

		result.Trajectory = append(result.Trajectory, CyclePoint{
			Cycle:        cycle,
			Energy:       energy,
			Satisfaction: satisfaction,
			State:        state,
		})
		result.Energy = energy
		result.Satisfaction = satisfaction
		result.CyclesUsed = cycle + 1

		settled := cycle > 0 && math.Abs(energy-prevEnergy) < e.config.Epsilon
		inWindow := satisfaction >= e.config.KairosLow && satisfaction <= e.config.KairosHigh
		if settled && inWindow {
			result.ReachedTarget = true
			result.FinalState = StateConverged
			return result
		}

		prevPrev = prevEnergy
		prevEnergy = energy
	}

	result.FinalState = StateExhausted
	return result
}

// #endregion engine

// #region helpers
func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func meanOf(m map[string]float64, keys []string) float64 {
	if len(keys) == 0 {
		return 0
	}
	var sum float64
	for _, k := range keys {
		sum += m[k]
	}
	return sum / float64(len(keys))
}

func stddevOf(m map[string]float64, keys []string) float64 {
	if len(keys) == 0 {
		return 0
	}
	mu := meanOf(m, keys)
	var variance float64
	for _, k := range keys {
		d := m[k] - mu
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(keys)))
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
