package config

import (
	"fmt"

	"github.com/feltcore/dae/internal/assoc"
	"github.com/feltcore/dae/internal/cluster"
	"github.com/feltcore/dae/internal/converge"
	"github.com/feltcore/dae/internal/entity"
	"github.com/feltcore/dae/internal/gate"
)

// #region config
// Config is the full engine configuration. Defaults match the reference
// values the engine was tuned with; Validate runs before any turn is
// processed and rejects nonsensical bounds outright.
type Config struct {
	// Signature
	SignatureDim int `koanf:"signature_dim"` // must match the compiled slot schema

	// Convergence
	MaxConvergenceCycles int              `koanf:"max_convergence_cycles"`
	KairosLow            float64          `koanf:"kairos_low"`
	KairosHigh           float64          `koanf:"kairos_high"`
	ConvergenceEpsilon   float64          `koanf:"convergence_epsilon"`
	AgreementWeight      float64          `koanf:"agreement_weight"`
	EnergyWeights        converge.Weights `koanf:"energy_weights"`

	// Clustering
	ClusterThresholdSchedule []cluster.ThresholdStep `koanf:"cluster_threshold_schedule"`

	// Association matrix
	EMAAlphaAssociation float64 `koanf:"ema_alpha_association"`
	AssociationMaxStep  float64 `koanf:"association_max_step"`

	// Entity tracker
	EMAAlphaEntity        float64 `koanf:"ema_alpha_entity"`
	MinMentionsForPattern int     `koanf:"min_mentions_for_pattern"`

	// Gate
	LureThreshold   float64 `koanf:"lure_threshold"`
	IntersectionMin int     `koanf:"intersection_min"`
	CoherenceFloor  float64 `koanf:"coherence_floor"`
	KairosBoost     float64 `koanf:"kairos_boost"`

	// Shared multiplier bounds
	MultiplierFloor float64 `koanf:"multiplier_floor"`
	MultiplierCeil  float64 `koanf:"multiplier_ceil"`

	// Lifecycle
	DBPath               string  `koanf:"db_path"`
	SaveEveryTurns       int     `koanf:"save_every_turns"`
	OutcomeHalfLifeHours float64 `koanf:"outcome_half_life_hours"`
}

// Default returns the documented reference configuration.
func Default() Config {
	return Config{
		SignatureDim:             57,
		MaxConvergenceCycles:     7,
		KairosLow:                0.45,
		KairosHigh:               0.70,
		ConvergenceEpsilon:       0.05,
		AgreementWeight:          0.7,
		EnergyWeights:            converge.DefaultWeights(),
		ClusterThresholdSchedule: cluster.DefaultConfig().Schedule,
		EMAAlphaAssociation:      0.12,
		AssociationMaxStep:       0.15,
		EMAAlphaEntity:           0.15,
		MinMentionsForPattern:    3,
		LureThreshold:            0.6,
		IntersectionMin:          2,
		CoherenceFloor:           0.4,
		KairosBoost:              1.5,
		MultiplierFloor:          0.8,
		MultiplierCeil:           1.2,
		DBPath:                   "dae.db",
		SaveEveryTurns:           10,
		OutcomeHalfLifeHours:     7 * 24,
	}
}

// #endregion config

// #region validate
// Validate fails fast on invalid configuration. Called once at startup;
// an error here is fatal by design.
func (c *Config) Validate() error {
	if c.SignatureDim <= 0 {
		return fmt.Errorf("signature_dim must be positive, got %d", c.SignatureDim)
	}
	if c.MaxConvergenceCycles < 1 {
		return fmt.Errorf("max_convergence_cycles must be >= 1, got %d", c.MaxConvergenceCycles)
	}
	if err := c.Converge().Validate(); err != nil {
		return err
	}
	if len(c.ClusterThresholdSchedule) == 0 {
		return fmt.Errorf("cluster_threshold_schedule must not be empty")
	}
	prevCount := -1
	prevTau := 0.0
	for _, step := range c.ClusterThresholdSchedule {
		if step.MinClusters < 0 || step.Tau <= 0 {
			return fmt.Errorf("malformed threshold step {%d, %f}", step.MinClusters, step.Tau)
		}
		if step.MinClusters <= prevCount {
			return fmt.Errorf("threshold schedule breakpoints must strictly increase")
		}
		if step.Tau < prevTau {
			return fmt.Errorf("threshold schedule tau must be non-decreasing in cluster count")
		}
		prevCount = step.MinClusters
		prevTau = step.Tau
	}
	if c.EMAAlphaAssociation <= 0 || c.EMAAlphaAssociation > 1 {
		return fmt.Errorf("ema_alpha_association must be in (0,1], got %f", c.EMAAlphaAssociation)
	}
	if c.EMAAlphaEntity <= 0 || c.EMAAlphaEntity > 1 {
		return fmt.Errorf("ema_alpha_entity must be in (0,1], got %f", c.EMAAlphaEntity)
	}
	if c.AssociationMaxStep <= 0 {
		return fmt.Errorf("association_max_step must be positive, got %f", c.AssociationMaxStep)
	}
	if c.MinMentionsForPattern < 1 {
		return fmt.Errorf("min_mentions_for_pattern must be >= 1, got %d", c.MinMentionsForPattern)
	}
	if c.LureThreshold < 0 || c.LureThreshold > 1 {
		return fmt.Errorf("lure_threshold must be in [0,1], got %f", c.LureThreshold)
	}
	if c.IntersectionMin < 1 {
		return fmt.Errorf("intersection_min must be >= 1, got %d", c.IntersectionMin)
	}
	if c.CoherenceFloor < 0 || c.CoherenceFloor > 1 {
		return fmt.Errorf("coherence_floor must be in [0,1], got %f", c.CoherenceFloor)
	}
	if c.KairosBoost < 1 {
		return fmt.Errorf("kairos_boost must be >= 1, got %f", c.KairosBoost)
	}
	if c.MultiplierFloor <= 0 || c.MultiplierCeil < c.MultiplierFloor {
		return fmt.Errorf("multiplier bounds [%f, %f] are malformed", c.MultiplierFloor, c.MultiplierCeil)
	}
	if c.SaveEveryTurns < 1 {
		return fmt.Errorf("save_every_turns must be >= 1, got %d", c.SaveEveryTurns)
	}
	if c.OutcomeHalfLifeHours <= 0 {
		return fmt.Errorf("outcome_half_life_hours must be positive, got %f", c.OutcomeHalfLifeHours)
	}
	return nil
}

// #endregion validate

// #region converters
// Converge assembles the convergence engine's config.
func (c *Config) Converge() converge.Config {
	return converge.Config{
		Weights:         c.EnergyWeights,
		KairosLow:       c.KairosLow,
		KairosHigh:      c.KairosHigh,
		Epsilon:         c.ConvergenceEpsilon,
		MaxCycles:       c.MaxConvergenceCycles,
		AgreementWeight: c.AgreementWeight,
	}
}

// Cluster assembles the assignor's config.
func (c *Config) Cluster() cluster.Config {
	return cluster.Config{Schedule: c.ClusterThresholdSchedule}
}

// Assoc assembles the association matrix's config.
func (c *Config) Assoc() assoc.Config {
	return assoc.Config{
		Alpha:           c.EMAAlphaAssociation,
		MaxStep:         c.AssociationMaxStep,
		MultiplierFloor: c.MultiplierFloor,
		MultiplierCeil:  c.MultiplierCeil,
	}
}

// Entity assembles the tracker's config.
func (c *Config) Entity() entity.Config {
	return entity.Config{
		Alpha:           c.EMAAlphaEntity,
		MinMentions:     c.MinMentionsForPattern,
		MultiplierFloor: c.MultiplierFloor,
		MultiplierCeil:  c.MultiplierCeil,
	}
}

// Gate assembles the decider's config, keeping the default tie-break table.
func (c *Config) Gate() gate.Config {
	g := gate.DefaultConfig()
	g.LureThreshold = c.LureThreshold
	g.IntersectionMin = c.IntersectionMin
	g.CoherenceFloor = c.CoherenceFloor
	g.KairosBoost = c.KairosBoost
	return g
}

// #endregion converters
