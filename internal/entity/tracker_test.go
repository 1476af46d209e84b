package entity

import (
	"math"
	"testing"
	"time"

	"github.com/feltcore/dae/internal/persist"
)

var testNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func TestFirstObservationSeedsEMA(t *testing.T) {
	tr := NewTracker(DefaultConfig())

	tr.Update([]string{"jordan"}, map[string]float64{"urgency": 0.8}, FeltState{}, nil, testNow)

	rec, ok := tr.Get("jordan")
	if !ok {
		t.Fatal("record should exist after first mention")
	}
	if rec.Activations["urgency"] != 0.8 {
		t.Fatalf("first observation must seed the EMA directly, got %f", rec.Activations["urgency"])
	}
	if rec.MentionCount != 1 {
		t.Fatalf("expected 1 mention, got %d", rec.MentionCount)
	}
	if rec.SuccessRate != 0.5 {
		t.Fatalf("success rate must start neutral, got %f", rec.SuccessRate)
	}
}

func TestActivationEMA(t *testing.T) {
	cfg := DefaultConfig()
	tr := NewTracker(cfg)

	tr.Update([]string{"work"}, map[string]float64{"urgency": 1.0}, FeltState{}, nil, testNow)
	tr.Update([]string{"work"}, map[string]float64{"urgency": 0.0}, FeltState{}, nil, testNow)

	rec, _ := tr.Get("work")
	want := (1 - cfg.Alpha) * 1.0 // 0.85
	if math.Abs(rec.Activations["urgency"]-want) > 1e-12 {
		t.Fatalf("expected EMA %f, got %f", want, rec.Activations["urgency"])
	}
}

func TestTypicalStateDominantLabel(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	acts := map[string]float64{"urgency": 0.5}

	tr.Update([]string{"mom"}, acts, FeltState{Category: "clarifying"}, nil, testNow)
	tr.Update([]string{"mom"}, acts, FeltState{Category: "grounding"}, nil, testNow)
	tr.Update([]string{"mom"}, acts, FeltState{Category: "grounding"}, nil, testNow)

	rec, _ := tr.Get("mom")
	if rec.TypicalState != "grounding" {
		t.Fatalf("expected grounding, got %s", rec.TypicalState)
	}

	// A tie resolves lexicographically, so it is stable across runs.
	tr.Update([]string{"mom"}, acts, FeltState{Category: "clarifying"}, nil, testNow)
	rec, _ = tr.Get("mom")
	if rec.TypicalState != "clarifying" {
		t.Fatalf("tie should resolve lexicographically, got %s", rec.TypicalState)
	}
}

func TestCoOccurrenceCounts(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	acts := map[string]float64{"urgency": 0.5}

	tr.Update([]string{"jordan", "work"}, acts, FeltState{}, nil, testNow)
	tr.Update([]string{"jordan", "work", "sleep"}, acts, FeltState{}, nil, testNow)

	rec, _ := tr.Get("jordan")
	if rec.CoOccur["work"] != 2 {
		t.Fatalf("expected jordan-work count 2, got %d", rec.CoOccur["work"])
	}
	if rec.CoOccur["sleep"] != 1 {
		t.Fatalf("expected jordan-sleep count 1, got %d", rec.CoOccur["sleep"])
	}
	if rec.CoOccur["jordan"] != 0 {
		t.Fatal("an entity must not co-occur with itself")
	}
}

func TestMultipliersRequireMinMentions(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	acts := map[string]float64{"urgency": 1.0}

	tr.Update([]string{"new"}, acts, FeltState{}, nil, testNow)
	tr.Update([]string{"new"}, acts, FeltState{}, nil, testNow)

	if m := tr.Multipliers([]string{"new"}); len(m) != 0 {
		t.Fatalf("an entity below MinMentions must contribute nothing, got %v", m)
	}
	if m := tr.Multipliers([]string{"never-seen"}); len(m) != 0 {
		t.Fatalf("an unknown entity must be neutral, got %v", m)
	}

	tr.Update([]string{"new"}, acts, FeltState{}, nil, testNow)
	if m := tr.Multipliers([]string{"new"}); len(m) == 0 {
		t.Fatal("at MinMentions the entity should start contributing")
	}
}

func TestMultipliersBounded(t *testing.T) {
	cfg := DefaultConfig()
	tr := NewTracker(cfg)

	// "spike" always runs hot on urgency while the global mean is pulled
	// down by other entities.
	for i := 0; i < 5; i++ {
		tr.Update([]string{"spike"}, map[string]float64{"urgency": 1.0}, FeltState{}, nil, testNow)
		tr.Update([]string{"flat"}, map[string]float64{"urgency": 0.1}, FeltState{}, nil, testNow)
	}

	mults := tr.Multipliers([]string{"spike"})
	m, ok := mults["urgency"]
	if !ok {
		t.Fatal("expected an urgency multiplier")
	}
	if m < 1.0 || m > cfg.MultiplierCeil {
		t.Fatalf("hot entity multiplier should sit in (1.0, %f], got %f", cfg.MultiplierCeil, m)
	}

	mults = tr.Multipliers([]string{"flat"})
	if m := mults["urgency"]; m < cfg.MultiplierFloor || m > 1.0 {
		t.Fatalf("cold entity multiplier should sit in [%f, 1.0], got %f", cfg.MultiplierFloor, m)
	}
}

func TestMultipliersCombineAndReclamp(t *testing.T) {
	cfg := DefaultConfig()
	tr := NewTracker(cfg)

	// Two hot entities: each alone clamps to the ceiling, and the product
	// must re-clamp instead of escaping the range.
	for i := 0; i < 5; i++ {
		tr.Update([]string{"a", "b"}, map[string]float64{"urgency": 1.0}, FeltState{}, nil, testNow)
		tr.Update([]string{"cold"}, map[string]float64{"urgency": 0.05}, FeltState{}, nil, testNow)
	}

	mults := tr.Multipliers([]string{"a", "b"})
	if m := mults["urgency"]; m > cfg.MultiplierCeil+1e-12 {
		t.Fatalf("combined multiplier escaped the ceiling: %f", m)
	}
}

func TestSuccessEMAOnlyMovesWithOutcome(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	acts := map[string]float64{"urgency": 0.5}

	tr.Update([]string{"x"}, acts, FeltState{}, nil, testNow)
	rec, _ := tr.Get("x")
	if rec.SuccessRate != 0.5 {
		t.Fatalf("no outcome should leave the success EMA untouched, got %f", rec.SuccessRate)
	}

	quality := 1.0
	tr.Update([]string{"x"}, acts, FeltState{}, &quality, testNow)
	rec, _ = tr.Get("x")
	if rec.SuccessRate <= 0.5 {
		t.Fatalf("positive outcome should raise the success EMA, got %f", rec.SuccessRate)
	}
}

func TestTrackerSnapshotRoundTrip(t *testing.T) {
	store := persist.NewMemStore()
	cfg := DefaultConfig()
	tr := NewTracker(cfg)

	for i := 0; i < 4; i++ {
		tr.Update([]string{"jordan", "work"}, map[string]float64{"urgency": 0.9}, FeltState{Category: "grounding"}, nil, testNow)
	}

	if err := Save(store, "entities/default", tr); err != nil {
		t.Fatalf("save: %v", err)
	}

	restored := Load(store, "entities/default", cfg)
	if restored.Len() != tr.Len() {
		t.Fatalf("record count lost: %d vs %d", restored.Len(), tr.Len())
	}
	a := tr.Multipliers([]string{"jordan"})
	b := restored.Multipliers([]string{"jordan"})
	if len(a) != len(b) {
		t.Fatal("multipliers differ after round trip")
	}
	for k, v := range a {
		if math.Abs(b[k]-v) > 1e-12 {
			t.Fatalf("multiplier %s differs after round trip: %f vs %f", k, b[k], v)
		}
	}
}

func TestTrackerLoadCorruptResetsEmpty(t *testing.T) {
	store := persist.NewMemStore()
	if err := store.Save("entities/default", []byte("junk")); err != nil {
		t.Fatalf("seed corrupt: %v", err)
	}
	tr := Load(store, "entities/default", DefaultConfig())
	if tr.Len() != 0 {
		t.Fatal("corrupt snapshot must reset to an empty tracker")
	}
}
