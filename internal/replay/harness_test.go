package replay

import (
	"testing"

	"github.com/feltcore/dae/internal/config"
)

func basicFixture() *Fixture {
	return &Fixture{
		Description: "intersection turn followed by a kairos tie-break turn",
		Turns: []FixtureTurn{
			{
				TurnID: "t1",
				Scores: map[string]FixtureScore{
					"urgency":  {Vector: []float64{0.8, 0.8}, Coherence: 0.8, Lure: 0.9},
					"valence":  {Vector: []float64{0.8, 0.8}, Coherence: 0.8, Lure: 0.9},
					"novelty":  {Vector: []float64{0.8, 0.8}, Coherence: 0.8, Lure: 0.9},
					"rhythm":   {Vector: []float64{0.8, 0.8}, Coherence: 0.8, Lure: 0.9},
					"salience": {Vector: []float64{0.8, 0.8}, Coherence: 0.8, Lure: 0.9},
				},
			},
			{
				TurnID: "t2",
				Scores: map[string]FixtureScore{
					"urgency": {Vector: []float64{0.1}, Coherence: 0.1, Lure: 0.5},
					"valence": {Vector: []float64{0.9}, Coherence: 0.9, Lure: 0.5},
				},
			},
		},
		Expected: []FixtureExpected{
			{TurnID: "t1", Category: "exploratory", Kairos: false},
			{TurnID: "t2", Category: "reflective", Kairos: true},
		},
	}
}

func TestReplayMatchesExpectations(t *testing.T) {
	results, summary, err := Replay(basicFixture(), config.Default())
	if err != nil {
		t.Fatalf("replay: %v", err)
	}

	if summary.TotalTurns != 2 || summary.Expectations != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Mismatches != 0 {
		for _, r := range results {
			t.Logf("turn %s: got %s kairos=%v, want %s kairos=%v",
				r.TurnID, r.Category, r.Kairos, r.ExpectedCategory, r.ExpectedKairos)
		}
		t.Fatalf("%d turns diverged from the fixture", summary.Mismatches)
	}
}

func TestReplayDeterministic(t *testing.T) {
	f := basicFixture()
	cfg := config.Default()

	a, _, err := Replay(f, cfg)
	if err != nil {
		t.Fatalf("first replay: %v", err)
	}
	b, _, err := Replay(f, cfg)
	if err != nil {
		t.Fatalf("second replay: %v", err)
	}

	for i := range a {
		if a[i].Category != b[i].Category || a[i].Energy != b[i].Energy ||
			a[i].Satisfaction != b[i].Satisfaction || a[i].CyclesUsed != b[i].CyclesUsed {
			t.Fatalf("replay diverged at turn %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestLoadFixture(t *testing.T) {
	f, err := LoadFixture("testdata/basic.json")
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	if len(f.Turns) != 2 || len(f.Expected) != 2 {
		t.Fatalf("fixture shape wrong: %d turns, %d expectations", len(f.Turns), len(f.Expected))
	}

	_, summary, err := Replay(f, config.Default())
	if err != nil {
		t.Fatalf("replay fixture: %v", err)
	}
	if summary.Mismatches != 0 {
		t.Fatalf("fixture file should match itself, %d diverged", summary.Mismatches)
	}
}

func TestLoadFixtureMissingFile(t *testing.T) {
	if _, err := LoadFixture("testdata/no-such-file.json"); err == nil {
		t.Fatal("expected missing fixture to fail")
	}
}
