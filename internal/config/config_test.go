package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := map[string]func(*Config){
		"zero signature dim":    func(c *Config) { c.SignatureDim = 0 },
		"zero cycles":           func(c *Config) { c.MaxConvergenceCycles = 0 },
		"inverted kairos":       func(c *Config) { c.KairosLow, c.KairosHigh = 0.8, 0.4 },
		"bad energy weights":    func(c *Config) { c.EnergyWeights.SatisfactionDeficit = 0.9 },
		"empty schedule":        func(c *Config) { c.ClusterThresholdSchedule = nil },
		"non-increasing breaks": func(c *Config) { c.ClusterThresholdSchedule[1].MinClusters = 0 },
		"decreasing tau":        func(c *Config) { c.ClusterThresholdSchedule[2].Tau = 0.5 },
		"alpha over one":        func(c *Config) { c.EMAAlphaAssociation = 1.5 },
		"zero max step":         func(c *Config) { c.AssociationMaxStep = 0 },
		"zero min mentions":     func(c *Config) { c.MinMentionsForPattern = 0 },
		"lure out of range":     func(c *Config) { c.LureThreshold = 1.2 },
		"boost under one":       func(c *Config) { c.KairosBoost = 0.9 },
		"inverted multipliers":  func(c *Config) { c.MultiplierFloor, c.MultiplierCeil = 1.2, 0.8 },
		"zero save interval":    func(c *Config) { c.SaveEveryTurns = 0 },
		"zero half life":        func(c *Config) { c.OutcomeHalfLifeHours = 0 },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation failure", name)
		}
	}
}

func TestLoadDefaultsWhenNoSources(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SignatureDim != 57 || cfg.LureThreshold != 0.6 {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadYAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
lure_threshold: 0.55
max_convergence_cycles: 9
db_path: /tmp/other.db
energy_weights:
  satisfaction_deficit: 0.45
  energy_change_rate: 0.20
  appetition_deficit: 0.15
  resonance_deficit: 0.10
  intersection_intensity: 0.10
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LureThreshold != 0.55 {
		t.Fatalf("lure_threshold not overridden: %f", cfg.LureThreshold)
	}
	if cfg.MaxConvergenceCycles != 9 {
		t.Fatalf("max_convergence_cycles not overridden: %d", cfg.MaxConvergenceCycles)
	}
	if cfg.EnergyWeights.SatisfactionDeficit != 0.45 {
		t.Fatalf("nested weights not overridden: %f", cfg.EnergyWeights.SatisfactionDeficit)
	}
	// Untouched fields keep their defaults.
	if cfg.KairosLow != 0.45 {
		t.Fatalf("untouched field lost its default: %f", cfg.KairosLow)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("lure_threshold: 0.55\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("DAE_LURE_THRESHOLD", "0.65")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LureThreshold != 0.65 {
		t.Fatalf("env should win over file, got %f", cfg.LureThreshold)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("DAE_MAX_CONVERGENCE_CYCLES", "0")
	if _, err := Load(""); err == nil {
		t.Fatal("invalid env value must fail validation")
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("a missing config file is not an error: %v", err)
	}
	if cfg.SignatureDim != 57 {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestConvertersCarryValues(t *testing.T) {
	cfg := Default()
	cfg.EMAAlphaAssociation = 0.2
	cfg.LureThreshold = 0.7
	cfg.MinMentionsForPattern = 5

	if got := cfg.Assoc().Alpha; got != 0.2 {
		t.Fatalf("assoc alpha not carried: %f", got)
	}
	if got := cfg.Gate().LureThreshold; got != 0.7 {
		t.Fatalf("gate threshold not carried: %f", got)
	}
	if got := cfg.Entity().MinMentions; got != 5 {
		t.Fatalf("entity min mentions not carried: %d", got)
	}
	if got := cfg.Converge().MaxCycles; got != cfg.MaxConvergenceCycles {
		t.Fatalf("converge cycles not carried: %d", got)
	}
	if len(cfg.Cluster().Schedule) != len(cfg.ClusterThresholdSchedule) {
		t.Fatal("cluster schedule not carried")
	}
	// Gate keeps the fixed tie-break priority table.
	if len(cfg.Gate().TieBreaks) != 3 {
		t.Fatal("tie-break table lost in conversion")
	}
}
