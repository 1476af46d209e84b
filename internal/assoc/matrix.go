package assoc

import (
	"log"
	"math"
	"strings"

	"github.com/feltcore/dae/internal/persist"
)

// #region config
// Config holds the learning parameters for the association matrix.
type Config struct {
	Alpha           float64 // EMA learning rate (default 0.12)
	MaxStep         float64 // hard cap on single-update weight movement (default 0.15)
	MultiplierFloor float64 // lower bound of organ confidence multipliers (default 0.8)
	MultiplierCeil  float64 // upper bound of organ confidence multipliers (default 1.2)
}

// DefaultConfig returns the reference learning parameters.
func DefaultConfig() Config {
	return Config{
		Alpha:           0.12,
		MaxStep:         0.15,
		MultiplierFloor: 0.8,
		MultiplierCeil:  1.2,
	}
}

// #endregion config

// #region memory
// Memory is the Hebbian pairwise association matrix over organ IDs, plus a
// per-organ success EMA that drives confidence multipliers. Neutral weight
// is 0.5 for pairs never observed. Not safe for concurrent use; the
// orchestrator serializes writers.
type Memory struct {
	cfg     Config
	weights map[string]float64 // sorted "i|j" pair key
	success map[string]float64 // per-organ success EMA, neutral 0.5
}

// NewMemory returns a neutral matrix.
func NewMemory(cfg Config) *Memory {
	return &Memory{
		cfg:     cfg,
		weights: make(map[string]float64),
		success: make(map[string]float64),
	}
}

// Weight returns the EMA weight for an organ pair, 0.5 if never observed.
func (m *Memory) Weight(i, j string) float64 {
	if w, ok := m.weights[pairKey(i, j)]; ok {
		return w
	}
	return 0.5
}

// Pairs returns the number of observed pairs.
func (m *Memory) Pairs() int { return len(m.weights) }

// Update applies one bounded EMA step to a pair weight. quality in [0,1]
// scales the effective learning rate: clearly successful turns move weights
// harder than ambiguous ones, but a single update can never move a weight
// by more than alpha*|observed-previous|, and never past MaxStep.
func (m *Memory) Update(i, j string, observed, quality float64) {
	key := pairKey(i, j)
	old := 0.5
	if w, ok := m.weights[key]; ok {
		old = w
	}

	effAlpha := m.cfg.Alpha * (0.5 + 0.5*clamp01(quality))
	step := effAlpha * (observed - old)
	if step > m.cfg.MaxStep {
		step = m.cfg.MaxStep
	} else if step < -m.cfg.MaxStep {
		step = -m.cfg.MaxStep
	}

	m.weights[key] = clamp01(old + step)
}

// RecordSuccess folds an observed outcome quality into an organ's success
// EMA. Neutral starting point is 0.5.
func (m *Memory) RecordSuccess(organID string, quality float64) {
	old := 0.5
	if s, ok := m.success[organID]; ok {
		old = s
	}
	m.success[organID] = clamp01((1-m.cfg.Alpha)*old + m.cfg.Alpha*clamp01(quality))
}

// Multiplier maps an organ's success EMA onto the bounded multiplier range:
// 0.5 success is exactly neutral (1.0). Used by the gate to re-weight each
// organ's lure contribution.
func (m *Memory) Multiplier(organID string) float64 {
	s := 0.5
	if v, ok := m.success[organID]; ok {
		s = v
	}
	mult := m.cfg.MultiplierFloor + (m.cfg.MultiplierCeil-m.cfg.MultiplierFloor)*s
	return clampRange(mult, m.cfg.MultiplierFloor, m.cfg.MultiplierCeil)
}

// MeanWeight returns the mean association weight across the given organ
// IDs' pairs. Used as the resonance input to the convergence engine.
// Returns the neutral 0.5 when fewer than two organs are present.
func (m *Memory) MeanWeight(organIDs []string) float64 {
	if len(organIDs) < 2 {
		return 0.5
	}
	var sum float64
	var n int
	for a := 0; a < len(organIDs); a++ {
		for b := a + 1; b < len(organIDs); b++ {
			sum += m.Weight(organIDs[a], organIDs[b])
			n++
		}
	}
	return sum / float64(n)
}

// #endregion memory

// #region snapshot
// SnapshotVersion tags persisted matrix payloads.
const SnapshotVersion = 2

type snapshot struct {
	Weights map[string]float64 `json:"weights"`
	Success map[string]float64 `json:"success"`
}

// Snapshot serializes the matrix inside a versioned envelope.
func (m *Memory) Snapshot() ([]byte, error) {
	return persist.Wrap(SnapshotVersion, snapshot{Weights: m.weights, Success: m.success})
}

// Load restores a matrix from the store. A missing, corrupt, or
// version-mismatched snapshot is recoverable: it logs a warning and
// returns a neutral matrix. Startup never fails here.
func Load(store persist.Store, key string, cfg Config) *Memory {
	m := NewMemory(cfg)
	data, err := store.Load(key)
	if err != nil {
		log.Printf("[ASSOC] load %s failed, starting neutral: %v", key, err)
		return m
	}
	if data == nil {
		return m
	}
	var snap snapshot
	if err := persist.Unwrap(data, SnapshotVersion, &snap); err != nil {
		log.Printf("[ASSOC] snapshot %s unusable, starting neutral: %v", key, err)
		return m
	}
	if snap.Weights != nil {
		m.weights = snap.Weights
	}
	if snap.Success != nil {
		m.success = snap.Success
	}
	return m
}

// Save writes the matrix snapshot to the store.
func Save(store persist.Store, key string, m *Memory) error {
	data, err := m.Snapshot()
	if err != nil {
		return err
	}
	return store.Save(key, data)
}

// #endregion snapshot

// #region helpers
// pairKey orders the two organ IDs so (i,j) and (j,i) share one weight.
func pairKey(i, j string) string {
	if strings.Compare(i, j) > 0 {
		i, j = j, i
	}
	return i + "|" + j
}

func clamp01(v float64) float64 {
	return clampRange(v, 0, 1)
}

func clampRange(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

// #endregion helpers
