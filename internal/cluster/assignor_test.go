package cluster

import (
	"math"
	"testing"

	"github.com/feltcore/dae/internal/persist"
	"github.com/feltcore/dae/internal/signature"
)

func sig(c float64) signature.Signature {
	values := make([]float64, 57)
	for i := range values {
		values[i] = c
	}
	return signature.Signature{Values: values, SchemaVersion: signature.SchemaVersion}
}

func TestDistinctFeltStatesFormDistinctClusters(t *testing.T) {
	a := NewAssignor(DefaultConfig())

	// Crisis, safety, ambivalence, collapse: intensity levels far enough
	// apart that raw magnitude separates them under the initial threshold.
	levels := []float64{1.0, 0.65, 0.32, 0.0}
	ids := make([]string, 0, len(levels))
	for _, lvl := range levels {
		asn := a.Assign(sig(lvl))
		if !asn.CreatedNew {
			t.Fatalf("level %.2f should have formed a new cluster", lvl)
		}
		ids = append(ids, asn.ClusterID)
	}
	if a.Len() != 4 {
		t.Fatalf("expected 4 clusters, got %d", a.Len())
	}

	// Re-presenting each felt state must land in its own cluster.
	for i, lvl := range levels {
		asn := a.Assign(sig(lvl))
		if asn.CreatedNew {
			t.Fatalf("repeat of level %.2f should not create a cluster", lvl)
		}
		if asn.ClusterID != ids[i] {
			t.Fatalf("repeat of level %.2f landed in the wrong cluster", lvl)
		}
		if asn.Distance != 0 {
			t.Fatalf("identical signature should have zero distance, got %f", asn.Distance)
		}
	}
}

func TestNewClusterReportsZeroDistance(t *testing.T) {
	a := NewAssignor(DefaultConfig())

	// First ever assignment: there is no nearest cluster to measure against,
	// and the distance must still come back finite.
	first := a.Assign(sig(0.5))
	if !first.CreatedNew {
		t.Fatal("first assignment should create a cluster")
	}
	if first.Distance != 0 {
		t.Fatalf("a turn that opens a cluster has zero distance, got %f", first.Distance)
	}

	// Later creations must not leak the distance to the rejected candidate.
	second := a.Assign(sig(1.0)) // 0.5*sqrt(57) ~ 3.77, well past tau 1.5
	if !second.CreatedNew {
		t.Fatal("distant signature should create a cluster")
	}
	if second.Distance != 0 {
		t.Fatalf("expected zero distance on creation, got %f", second.Distance)
	}
}

func TestCentroidRunningMean(t *testing.T) {
	a := NewAssignor(DefaultConfig())

	first := a.Assign(sig(0.5))
	a.Assign(sig(0.6)) // within tau 1.5: distance is 0.1*sqrt(57) ~ 0.755

	c, ok := a.Get(first.ClusterID)
	if !ok {
		t.Fatal("cluster not found")
	}
	if c.MemberCount != 2 {
		t.Fatalf("expected 2 members, got %d", c.MemberCount)
	}
	for i, v := range c.Centroid {
		if math.Abs(v-0.55) > 1e-12 {
			t.Fatalf("centroid[%d] should be the running mean 0.55, got %f", i, v)
		}
	}
}

func TestThresholdSchedule(t *testing.T) {
	a := NewAssignor(DefaultConfig())
	if tau := a.Threshold(); tau != 1.5 {
		t.Fatalf("empty assignor should use tau 1.5, got %f", tau)
	}

	// Spaced levels: adjacent distance is 0.4*sqrt(57) ~ 3.02, far beyond
	// every tau, so each assignment creates a cluster.
	for i := 0; i < 8; i++ {
		a.Assign(sig(float64(i) * 0.4))
	}
	if a.Len() != 8 {
		t.Fatalf("expected 8 clusters, got %d", a.Len())
	}
	if tau := a.Threshold(); tau != 2.0 {
		t.Fatalf("at 8 clusters tau should loosen to 2.0, got %f", tau)
	}

	for i := 8; i < 25; i++ {
		a.Assign(sig(float64(i) * 0.4))
	}
	if a.Len() != 25 {
		t.Fatalf("expected 25 clusters, got %d", a.Len())
	}
	if tau := a.Threshold(); tau != 2.5 {
		t.Fatalf("at 25 clusters tau should loosen to 2.5, got %f", tau)
	}
}

func TestLooserThresholdConsolidates(t *testing.T) {
	a := NewAssignor(DefaultConfig())

	// 0.25*sqrt(57) ~ 1.89: outside tau 1.5, inside tau 2.0.
	first := a.Assign(sig(0.0))
	second := a.Assign(sig(0.25))
	if second.CreatedNew == false || second.ClusterID == first.ClusterID {
		t.Fatal("under the tight threshold the second signature must split off")
	}

	for i := 2; i < 8; i++ {
		a.Assign(sig(float64(i)))
	}
	if a.Threshold() != 2.0 {
		t.Fatalf("setup should reach tau 2.0, got %f", a.Threshold())
	}

	asn := a.Assign(sig(0.125))
	if asn.CreatedNew {
		t.Fatal("under the loosened threshold the midpoint should join an existing cluster")
	}
}

func TestRecordSatisfaction(t *testing.T) {
	a := NewAssignor(DefaultConfig())
	asn := a.Assign(sig(0.5))

	a.RecordSatisfaction(asn.ClusterID, 0.8)
	a.RecordSatisfaction(asn.ClusterID, 0.4)

	c, _ := a.Get(asn.ClusterID)
	if math.Abs(c.MeanSatisfaction-0.6) > 1e-12 {
		t.Fatalf("expected running mean 0.6, got %f", c.MeanSatisfaction)
	}
	if c.SatisfactionN != 2 {
		t.Fatalf("expected 2 satisfaction samples, got %d", c.SatisfactionN)
	}

	// Unknown cluster IDs are ignored.
	a.RecordSatisfaction("no-such-cluster", 1.0)
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := persist.NewMemStore()
	a := NewAssignor(DefaultConfig())
	asn := a.Assign(sig(0.7))
	a.RecordSatisfaction(asn.ClusterID, 0.9)

	if err := Save(store, "clusters", a); err != nil {
		t.Fatalf("save: %v", err)
	}

	restored := Load(store, "clusters", DefaultConfig())
	if restored.Len() != 1 {
		t.Fatalf("expected 1 cluster after load, got %d", restored.Len())
	}
	c, ok := restored.Get(asn.ClusterID)
	if !ok {
		t.Fatal("cluster ID lost in round trip")
	}
	if c.MeanSatisfaction != 0.9 {
		t.Fatalf("satisfaction lost in round trip: %f", c.MeanSatisfaction)
	}

	// Assignment against the restored set behaves identically.
	again := restored.Assign(sig(0.7))
	if again.CreatedNew || again.ClusterID != asn.ClusterID {
		t.Fatal("restored assignor should place the same signature in the same cluster")
	}
}

func TestLoadCorruptSnapshotResetsEmpty(t *testing.T) {
	store := persist.NewMemStore()
	if err := store.Save("clusters", []byte("garbage")); err != nil {
		t.Fatalf("seed corrupt: %v", err)
	}
	a := Load(store, "clusters", DefaultConfig())
	if a.Len() != 0 {
		t.Fatal("corrupt snapshot must reset to an empty cluster set")
	}
}
