package cluster

import (
	"log"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/feltcore/dae/internal/persist"
	"github.com/feltcore/dae/internal/signature"
)

// #region cluster
// Cluster is a family of signatures within a distance threshold of a shared
// centroid. Centroids are plain running means of raw member signatures and
// are never renormalized. An earlier design renormalized centroids and collapsed
// high- and low-intensity families into one; do not reintroduce that.
type Cluster struct {
	ID               string    `json:"id"`
	Centroid         []float64 `json:"centroid"`
	MemberCount      int       `json:"member_count"`
	MeanSatisfaction float64   `json:"mean_satisfaction"`
	SatisfactionN    int       `json:"satisfaction_n"`
	CreatedAt        time.Time `json:"created_at"`
}

// DominantDims returns the indices of the k largest-magnitude centroid
// components, a cheap summary for inspection.
func (c *Cluster) DominantDims(k int) []int {
	idx := make([]int, len(c.Centroid))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		return math.Abs(c.Centroid[idx[a]]) > math.Abs(c.Centroid[idx[b]])
	})
	if k > len(idx) {
		k = len(idx)
	}
	return idx[:k]
}

// #endregion cluster

// #region config
// ThresholdStep is one breakpoint of the adaptive distance threshold
// schedule: once the cluster count reaches MinClusters, Tau applies.
type ThresholdStep struct {
	MinClusters int     `json:"min_clusters" koanf:"min_clusters"`
	Tau         float64 `json:"tau" koanf:"tau"`
}

// Config holds the assignor's threshold schedule. Tau must be
// non-decreasing in cluster count: tight early for differentiation,
// looser later to force consolidation instead of unbounded growth.
type Config struct {
	Schedule []ThresholdStep
}

// DefaultConfig returns the reference schedule: under 8 clusters tau=1.5,
// 8-24 tau=2.0, 25 and up tau=2.5.
func DefaultConfig() Config {
	return Config{Schedule: []ThresholdStep{
		{MinClusters: 0, Tau: 1.5},
		{MinClusters: 8, Tau: 2.0},
		{MinClusters: 25, Tau: 2.5},
	}}
}

// #endregion config

// #region assignor
// Assignment is the result of placing one signature.
type Assignment struct {
	ClusterID  string
	Distance   float64
	CreatedNew bool
	Threshold  float64
}

// Assignor owns the cluster set and places signatures into families.
// Clusters are never merged, split, or deleted. Not safe for concurrent
// use; the orchestrator serializes writers.
type Assignor struct {
	schedule []ThresholdStep
	clusters []*Cluster
	byID     map[string]*Cluster
}

// NewAssignor returns an empty assignor over the given schedule.
// The schedule is sorted by MinClusters ascending.
func NewAssignor(cfg Config) *Assignor {
	schedule := make([]ThresholdStep, len(cfg.Schedule))
	copy(schedule, cfg.Schedule)
	sort.Slice(schedule, func(a, b int) bool {
		return schedule[a].MinClusters < schedule[b].MinClusters
	})
	return &Assignor{schedule: schedule, byID: make(map[string]*Cluster)}
}

// Len returns the current cluster count.
func (a *Assignor) Len() int { return len(a.clusters) }

// Get returns the cluster with the given ID.
func (a *Assignor) Get(id string) (*Cluster, bool) {
	c, ok := a.byID[id]
	return c, ok
}

// All returns the clusters in creation order.
func (a *Assignor) All() []*Cluster {
	out := make([]*Cluster, len(a.clusters))
	copy(out, a.clusters)
	return out
}

// Threshold returns the effective tau for the current cluster count.
func (a *Assignor) Threshold() float64 {
	tau := a.schedule[0].Tau
	for _, step := range a.schedule {
		if len(a.clusters) >= step.MinClusters {
			tau = step.Tau
		}
	}
	return tau
}

// Assign places a signature into the nearest cluster whose centroid is
// within the adaptive threshold, by Euclidean distance on the raw vector.
// Ties go strictly to the minimum distance; when nothing is within
// threshold a new cluster is created with the signature as its centroid.
// Always returns a valid assignment.
func (a *Assignor) Assign(sig signature.Signature) Assignment {
	tau := a.Threshold()

	best := -1
	bestDist := math.Inf(1)
	for i, c := range a.clusters {
		d := euclidean(sig.Values, c.Centroid)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}

	if best >= 0 && bestDist <= tau {
		c := a.clusters[best]
		// Running arithmetic mean over raw members, weighted by count.
		n := float64(c.MemberCount + 1)
		for i := range c.Centroid {
			c.Centroid[i] += (sig.Values[i] - c.Centroid[i]) / n
		}
		c.MemberCount++
		return Assignment{ClusterID: c.ID, Distance: bestDist, Threshold: tau}
	}

	centroid := make([]float64, len(sig.Values))
	copy(centroid, sig.Values)
	c := &Cluster{
		ID:          uuid.New().String(),
		Centroid:    centroid,
		MemberCount: 1,
		CreatedAt:   time.Now().UTC(),
	}
	a.clusters = append(a.clusters, c)
	a.byID[c.ID] = c
	// The new cluster's centroid is the signature itself, so the distance
	// is zero regardless of how far the rejected candidates were.
	return Assignment{ClusterID: c.ID, Distance: 0, CreatedNew: true, Threshold: tau}
}

// RecordSatisfaction folds a turn's final satisfaction into the cluster's
// running mean.
func (a *Assignor) RecordSatisfaction(clusterID string, satisfaction float64) {
	c, ok := a.byID[clusterID]
	if !ok {
		return
	}
	c.SatisfactionN++
	c.MeanSatisfaction += (satisfaction - c.MeanSatisfaction) / float64(c.SatisfactionN)
}

// #endregion assignor

// #region snapshot
// SnapshotVersion tags persisted cluster payloads. It folds in the
// signature schema version so a layout change invalidates stale centroids.
const SnapshotVersion = 100 + signature.SchemaVersion

type snapshot struct {
	Clusters []*Cluster `json:"clusters"`
}

// Snapshot serializes the cluster set inside a versioned envelope.
func (a *Assignor) Snapshot() ([]byte, error) {
	return persist.Wrap(SnapshotVersion, snapshot{Clusters: a.clusters})
}

// Load restores an assignor from the store, falling back to an empty
// cluster set on any missing, corrupt, or version-mismatched snapshot.
func Load(store persist.Store, key string, cfg Config) *Assignor {
	a := NewAssignor(cfg)
	data, err := store.Load(key)
	if err != nil {
		log.Printf("[CLUSTER] load %s failed, starting empty: %v", key, err)
		return a
	}
	if data == nil {
		return a
	}
	var snap snapshot
	if err := persist.Unwrap(data, SnapshotVersion, &snap); err != nil {
		log.Printf("[CLUSTER] snapshot %s unusable, starting empty: %v", key, err)
		return a
	}
	a.clusters = snap.Clusters
	for _, c := range a.clusters {
		a.byID[c.ID] = c
	}
	return a
}

// Save writes the cluster snapshot to the store.
func Save(store persist.Store, key string, a *Assignor) error {
	data, err := a.Snapshot()
	if err != nil {
		return err
	}
	return store.Save(key, data)
}

// #endregion snapshot

// #region helpers
// euclidean computes raw Euclidean distance. Shorter vector is treated as
// zero-padded; signatures from the same schema always match anyway.
func euclidean(a, b []float64) float64 {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		var av, bv float64
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		d := av - bv
		sum += d * d
	}
	return math.Sqrt(sum)
}

// #endregion helpers
