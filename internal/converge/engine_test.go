package converge

import (
	"math"
	"testing"

	"github.com/feltcore/dae/internal/assoc"
)

func TestConvergeDeterministic(t *testing.T) {
	e := NewEngine(DefaultConfig())
	mem := assoc.NewMemory(assoc.DefaultConfig())
	in := Input{
		Coherences: map[string]float64{"urgency": 0.3, "valence": 0.8, "novelty": 0.55},
		Lures:      map[string]float64{"urgency": 0.7, "valence": 0.4, "novelty": 0.6},
		Distance:   1.2,
	}

	a := e.Converge(in, mem)
	b := e.Converge(in, mem)

	if len(a.Trajectory) != len(b.Trajectory) {
		t.Fatalf("trajectory lengths differ: %d vs %d", len(a.Trajectory), len(b.Trajectory))
	}
	for i := range a.Trajectory {
		if a.Trajectory[i] != b.Trajectory[i] {
			t.Fatalf("trajectory diverges at cycle %d: %+v vs %+v", i, a.Trajectory[i], b.Trajectory[i])
		}
	}
	if a.ReachedTarget != b.ReachedTarget || a.FinalState != b.FinalState {
		t.Fatal("terminal outcome differs across identical runs")
	}
}

func TestConvergeReachesKairosWindow(t *testing.T) {
	e := NewEngine(DefaultConfig())
	mem := assoc.NewMemory(assoc.DefaultConfig())

	// Agreement 0.6 (coherence spread 0.4) settles satisfaction inside
	// [0.45, 0.70] within a few cycles; the energy recursion contracts.
	in := Input{
		Coherences: map[string]float64{"a": 0.1, "b": 0.9},
		Lures:      map[string]float64{"a": 0.5, "b": 0.5},
		Distance:   0,
	}
	result := e.Converge(in, mem)

	if !result.ReachedTarget {
		t.Fatalf("expected Kairos hit, got state %s with satisfaction %f", result.FinalState, result.Satisfaction)
	}
	if result.FinalState != StateConverged {
		t.Fatalf("expected converged, got %s", result.FinalState)
	}
	if result.CyclesUsed >= DefaultConfig().MaxCycles {
		t.Fatalf("expected early stop, used all %d cycles", result.CyclesUsed)
	}
	if result.Satisfaction < 0.45 || result.Satisfaction > 0.70 {
		t.Fatalf("final satisfaction %f outside the window", result.Satisfaction)
	}

	// Cycle 0 is the exploration step; later cycles descend.
	if result.Trajectory[0].State != StateExploring {
		t.Fatalf("cycle 0 should be exploring, got %s", result.Trajectory[0].State)
	}
	if len(result.Trajectory) > 1 && result.Trajectory[1].State != StateDescending {
		t.Fatalf("cycle 1 should be descending, got %s", result.Trajectory[1].State)
	}
}

func TestConvergeExhaustsOutsideWindow(t *testing.T) {
	e := NewEngine(DefaultConfig())
	mem := assoc.NewMemory(assoc.DefaultConfig())

	// Perfect agreement pushes satisfaction above the window from cycle 1
	// on, so the loop runs all its cycles and exits EXHAUSTED.
	in := Input{
		Coherences: map[string]float64{"a": 0.8, "b": 0.8, "c": 0.8},
		Lures:      map[string]float64{"a": 0.9, "b": 0.9, "c": 0.9},
		Distance:   0,
	}
	result := e.Converge(in, mem)

	if result.ReachedTarget {
		t.Fatal("satisfaction outside the window must not count as Kairos")
	}
	if result.FinalState != StateExhausted {
		t.Fatalf("expected exhausted, got %s", result.FinalState)
	}
	if result.CyclesUsed != DefaultConfig().MaxCycles {
		t.Fatalf("expected all %d cycles used, got %d", DefaultConfig().MaxCycles, result.CyclesUsed)
	}
}

func TestConvergeNeverStopsOnCycleZero(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Epsilon = 10 // any change counts as settled
	e := NewEngine(cfg)
	mem := assoc.NewMemory(assoc.DefaultConfig())

	in := Input{
		Coherences: map[string]float64{"a": 0.1, "b": 0.9},
		Lures:      map[string]float64{"a": 0.5, "b": 0.5},
	}
	result := e.Converge(in, mem)
	if result.CyclesUsed < 2 {
		t.Fatalf("cycle 0 has no change history and must not settle, used %d", result.CyclesUsed)
	}
}

func TestEnergyUsesLearnedResonance(t *testing.T) {
	e := NewEngine(DefaultConfig())
	in := Input{
		Coherences: map[string]float64{"a": 0.5, "b": 0.5},
		Lures:      map[string]float64{"a": 0.5, "b": 0.5},
		Distance:   1.0,
	}

	neutral := assoc.NewMemory(assoc.DefaultConfig())
	learned := assoc.NewMemory(assoc.DefaultConfig())
	for i := 0; i < 200; i++ {
		learned.Update("a", "b", 1.0, 1.0)
	}

	baseline := e.Converge(in, neutral)
	resonant := e.Converge(in, learned)

	// Higher resonance lowers the resonance deficit term on every cycle.
	if resonant.Energy >= baseline.Energy {
		t.Fatalf("learned associations should lower final energy: %f vs %f", resonant.Energy, baseline.Energy)
	}
}

func TestWeightsValidate(t *testing.T) {
	if err := DefaultWeights().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}

	bad := DefaultWeights()
	bad.SatisfactionDeficit = 0.5
	if err := bad.Validate(); err == nil {
		t.Fatal("weights not summing to 1.0 must fail")
	}

	neg := Weights{SatisfactionDeficit: 1.2, EnergyChangeRate: -0.2}
	if err := neg.Validate(); err == nil {
		t.Fatal("negative weight must fail")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}

	cases := []func(*Config){
		func(c *Config) { c.MaxCycles = 0 },
		func(c *Config) { c.KairosLow = 0.8 }, // low >= high
		func(c *Config) { c.KairosHigh = 1.5 },
		func(c *Config) { c.Epsilon = 0 },
		func(c *Config) { c.AgreementWeight = 1.1 },
	}
	for i, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("case %d should have failed validation", i)
		}
	}
}

func TestSatisfactionFormula(t *testing.T) {
	e := NewEngine(DefaultConfig())
	mem := assoc.NewMemory(assoc.DefaultConfig())

	in := Input{
		Coherences: map[string]float64{"a": 0.1, "b": 0.9},
		Lures:      map[string]float64{"a": 0.5, "b": 0.5},
	}
	result := e.Converge(in, mem)

	// Cycle 0: satisfaction = 0.7*agreement + 0.3*(1-1.0) with agreement
	// 1 - stddev({0.1, 0.9}) = 0.6.
	want := 0.7 * 0.6
	if math.Abs(result.Trajectory[0].Satisfaction-want) > 1e-12 {
		t.Fatalf("cycle 0 satisfaction: want %f, got %f", want, result.Trajectory[0].Satisfaction)
	}
}
