package converge

import (
	"fmt"
	"math"
)

// #region state
// State is the per-turn convergence state machine. EXPLORING covers cycle 0,
// DESCENDING the following cycles; CONVERGED and EXHAUSTED are terminal.
type State string

const (
	StateExploring  State = "exploring"
	StateDescending State = "descending"
	StateConverged  State = "converged"
	StateExhausted  State = "exhausted"
)

// #endregion state

// #region weights
// Weights are the five energy sub-term coefficients. They must sum to 1.0
// and are applied in this priority order, satisfaction deficit dominant.
// The defaults are empirically tuned; change them through configuration,
// not inline.
type Weights struct {
	SatisfactionDeficit   float64 `json:"satisfaction_deficit" koanf:"satisfaction_deficit"`
	EnergyChangeRate      float64 `json:"energy_change_rate" koanf:"energy_change_rate"`
	AppetitionDeficit     float64 `json:"appetition_deficit" koanf:"appetition_deficit"`
	ResonanceDeficit      float64 `json:"resonance_deficit" koanf:"resonance_deficit"`
	IntersectionIntensity float64 `json:"intersection_intensity" koanf:"intersection_intensity"`
}

// DefaultWeights returns the reference coefficients 0.40/0.25/0.15/0.10/0.10.
func DefaultWeights() Weights {
	return Weights{
		SatisfactionDeficit:   0.40,
		EnergyChangeRate:      0.25,
		AppetitionDeficit:     0.15,
		ResonanceDeficit:      0.10,
		IntersectionIntensity: 0.10,
	}
}

// Sum returns the coefficient total.
func (w Weights) Sum() float64 {
	return w.SatisfactionDeficit + w.EnergyChangeRate + w.AppetitionDeficit +
		w.ResonanceDeficit + w.IntersectionIntensity
}

// Validate rejects coefficient sets that do not sum to 1.0 or carry
// negative terms.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"satisfaction_deficit":   w.SatisfactionDeficit,
		"energy_change_rate":     w.EnergyChangeRate,
		"appetition_deficit":     w.AppetitionDeficit,
		"resonance_deficit":      w.ResonanceDeficit,
		"intersection_intensity": w.IntersectionIntensity,
	} {
		if v < 0 {
			return fmt.Errorf("energy weight %s is negative: %f", name, v)
		}
	}
	if math.Abs(w.Sum()-1.0) > 1e-9 {
		return fmt.Errorf("energy weights must sum to 1.0, got %f", w.Sum())
	}
	return nil
}

// #endregion weights

// #region config
// Config holds the convergence loop parameters.
type Config struct {
	Weights         Weights
	KairosLow       float64 // lower bound of the target satisfaction window
	KairosHigh      float64 // upper bound of the target satisfaction window
	Epsilon         float64 // max energy change between cycles to count as settled
	MaxCycles       int
	AgreementWeight float64 // satisfaction = aw*agreement + (1-aw)*(1-prevEnergy)
}

// DefaultConfig returns the reference convergence parameters.
func DefaultConfig() Config {
	return Config{
		Weights:         DefaultWeights(),
		KairosLow:       0.45,
		KairosHigh:      0.70,
		Epsilon:         0.05,
		MaxCycles:       7,
		AgreementWeight: 0.7,
	}
}

// Validate fails fast on nonsensical bounds; silently proceeding would
// produce undefined numeric behavior.
func (c Config) Validate() error {
	if c.MaxCycles < 1 {
		return fmt.Errorf("max cycles must be >= 1, got %d", c.MaxCycles)
	}
	if c.KairosLow < 0 || c.KairosHigh > 1 || c.KairosLow >= c.KairosHigh {
		return fmt.Errorf("kairos window [%f, %f] is not a valid sub-interval of [0,1]", c.KairosLow, c.KairosHigh)
	}
	if c.Epsilon <= 0 {
		return fmt.Errorf("epsilon must be positive, got %f", c.Epsilon)
	}
	if c.AgreementWeight < 0 || c.AgreementWeight > 1 {
		return fmt.Errorf("agreement weight must be in [0,1], got %f", c.AgreementWeight)
	}
	return c.Weights.Validate()
}

// #endregion config

// #region result
// CyclePoint is one step of the energy trajectory, kept for replay
// diagnostics and tests.
type CyclePoint struct {
	Cycle        int
	Energy       float64
	Satisfaction float64
	State        State
}

// Result is the terminal outcome of one convergence run. EXHAUSTED is a
// normal outcome, not an error: downstream logic simply skips the boost.
type Result struct {
	Energy        float64
	Satisfaction  float64
	CyclesUsed    int
	ReachedTarget bool
	FinalState    State
	Trajectory    []CyclePoint
}

// #endregion result
