package entity

import (
	"log"
	"math"
	"sort"
	"time"

	"github.com/feltcore/dae/internal/persist"
)

// #region config
// Config holds the tracker's learning parameters.
type Config struct {
	Alpha           float64 // EMA rate for activations, dims, success (default 0.15)
	MinMentions     int     // mentions required before a record yields multipliers (default 3)
	MultiplierFloor float64 // default 0.8
	MultiplierCeil  float64 // default 1.2
}

// DefaultConfig returns the reference tracker parameters.
func DefaultConfig() Config {
	return Config{
		Alpha:           0.15,
		MinMentions:     3,
		MultiplierFloor: 0.8,
		MultiplierCeil:  1.2,
	}
}

// #endregion config

// #region record
// FeltState is the discretized felt-state label plus scalar dimensions that
// co-occurred with the entities of one turn.
type FeltState struct {
	Category string
	Dims     map[string]float64
}

// Record accumulates what the engine has learned about one entity. Records
// are created on first mention and never deleted.
type Record struct {
	ID           string             `json:"id"`
	Activations  map[string]float64 `json:"activations"`   // per-organ EMA
	StateCounts  map[string]int     `json:"state_counts"`  // felt-state label histogram
	TypicalState string             `json:"typical_state"` // most frequent label
	Dims         map[string]float64 `json:"dims"`          // felt scalar EMAs
	CoOccur      map[string]int     `json:"co_occur"`      // other entities seen in the same turn
	MentionCount int                `json:"mention_count"`
	FirstSeen    time.Time          `json:"first_seen"`
	LastSeen     time.Time          `json:"last_seen"`
	SuccessRate  float64            `json:"success_rate"` // outcome EMA, neutral 0.5
}

// #endregion record

// #region tracker
// Tracker maintains per-entity association records and global per-organ
// activation means used to normalize multipliers. Not safe for concurrent
// use; the orchestrator holds a per-session lock around it.
type Tracker struct {
	cfg         Config
	records     map[string]*Record
	organMeans  map[string]float64 // running mean activation per organ
	organCounts map[string]int
}

// NewTracker returns an empty tracker.
func NewTracker(cfg Config) *Tracker {
	return &Tracker{
		cfg:         cfg,
		records:     make(map[string]*Record),
		organMeans:  make(map[string]float64),
		organCounts: make(map[string]int),
	}
}

// Len returns the number of tracked entities.
func (t *Tracker) Len() int { return len(t.records) }

// Get returns the record for an entity ID.
func (t *Tracker) Get(id string) (*Record, bool) {
	r, ok := t.records[id]
	return r, ok
}

// IDs returns tracked entity IDs, sorted.
func (t *Tracker) IDs() []string {
	ids := make([]string, 0, len(t.records))
	for id := range t.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Update folds one turn's organ activations and felt state into every
// referenced entity's record. outcomeQuality is optional; the success EMA
// moves only when it is provided. Absent entities are created; nothing here
// can fail.
func (t *Tracker) Update(
	entityIDs []string,
	activations map[string]float64,
	felt FeltState,
	outcomeQuality *float64,
	now time.Time,
) {
	if len(entityIDs) == 0 {
		return
	}

	// Global running means, one observation per organ per turn.
	for _, organID := range sortedFloatKeys(activations) {
		t.organCounts[organID]++
		n := float64(t.organCounts[organID])
		t.organMeans[organID] += (activations[organID] - t.organMeans[organID]) / n
	}

	for _, id := range entityIDs {
		rec, ok := t.records[id]
		if !ok {
			rec = &Record{
				ID:          id,
				Activations: make(map[string]float64),
				StateCounts: make(map[string]int),
				Dims:        make(map[string]float64),
				CoOccur:     make(map[string]int),
				FirstSeen:   now,
				SuccessRate: 0.5,
			}
			t.records[id] = rec
		}

		rec.MentionCount++
		rec.LastSeen = now

		for organID, v := range activations {
			if _, seen := rec.Activations[organID]; !seen {
				rec.Activations[organID] = v // first observation seeds the EMA
				continue
			}
			rec.Activations[organID] = (1-t.cfg.Alpha)*rec.Activations[organID] + t.cfg.Alpha*v
		}

		for dim, v := range felt.Dims {
			if _, seen := rec.Dims[dim]; !seen {
				rec.Dims[dim] = v
				continue
			}
			rec.Dims[dim] = (1-t.cfg.Alpha)*rec.Dims[dim] + t.cfg.Alpha*v
		}

		if felt.Category != "" {
			rec.StateCounts[felt.Category]++
			rec.TypicalState = dominantState(rec.StateCounts)
		}

		for _, other := range entityIDs {
			if other != id {
				rec.CoOccur[other]++
			}
		}

		if outcomeQuality != nil {
			rec.SuccessRate = (1-t.cfg.Alpha)*rec.SuccessRate + t.cfg.Alpha*clamp01(*outcomeQuality)
		}
	}
}

// Multipliers derives per-organ re-weighting factors from the qualifying
// entities in the list. An entity below MinMentions contributes nothing
// (identity); multiple qualifying entities combine multiplicatively and the
// product is re-clamped to the bounded range. Unknown entities are neutral.
func (t *Tracker) Multipliers(entityIDs []string) map[string]float64 {
	combined := make(map[string]float64)

	for _, id := range entityIDs {
		rec, ok := t.records[id]
		if !ok || rec.MentionCount < t.cfg.MinMentions {
			continue
		}
		for organID, act := range rec.Activations {
			mean := t.organMeans[organID]
			if mean < 1e-9 {
				continue
			}
			ratio := clampRange(act/mean, t.cfg.MultiplierFloor, t.cfg.MultiplierCeil)
			if _, seen := combined[organID]; !seen {
				combined[organID] = 1.0
			}
			combined[organID] *= ratio
		}
	}

	for organID, m := range combined {
		combined[organID] = clampRange(m, t.cfg.MultiplierFloor, t.cfg.MultiplierCeil)
	}
	return combined
}

// #endregion tracker

// #region snapshot
// SnapshotVersion tags persisted tracker payloads.
const SnapshotVersion = 2

type snapshot struct {
	Records     map[string]*Record `json:"records"`
	OrganMeans  map[string]float64 `json:"organ_means"`
	OrganCounts map[string]int     `json:"organ_counts"`
}

// Snapshot serializes the tracker inside a versioned envelope.
func (t *Tracker) Snapshot() ([]byte, error) {
	return persist.Wrap(SnapshotVersion, snapshot{
		Records:     t.records,
		OrganMeans:  t.organMeans,
		OrganCounts: t.organCounts,
	})
}

// Load restores a tracker from the store, falling back to an empty tracker
// on any missing, corrupt, or version-mismatched snapshot.
func Load(store persist.Store, key string, cfg Config) *Tracker {
	t := NewTracker(cfg)
	data, err := store.Load(key)
	if err != nil {
		log.Printf("[ENTITY] load %s failed, starting empty: %v", key, err)
		return t
	}
	if data == nil {
		return t
	}
	var snap snapshot
	if err := persist.Unwrap(data, SnapshotVersion, &snap); err != nil {
		log.Printf("[ENTITY] snapshot %s unusable, starting empty: %v", key, err)
		return t
	}
	if snap.Records != nil {
		t.records = snap.Records
	}
	if snap.OrganMeans != nil {
		t.organMeans = snap.OrganMeans
	}
	if snap.OrganCounts != nil {
		t.organCounts = snap.OrganCounts
	}
	return t
}

// Save writes the tracker snapshot to the store.
func Save(store persist.Store, key string, t *Tracker) error {
	data, err := t.Snapshot()
	if err != nil {
		return err
	}
	return store.Save(key, data)
}

// #endregion snapshot

// #region helpers
// dominantState picks the most frequent label, ties broken lexicographically
// so the result is deterministic.
func dominantState(counts map[string]int) string {
	labels := make([]string, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	best := ""
	bestCount := -1
	for _, l := range labels {
		if counts[l] > bestCount {
			bestCount = counts[l]
			best = l
		}
	}
	return best
}

func sortedFloatKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func clamp01(v float64) float64 {
	return clampRange(v, 0, 1)
}

func clampRange(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

// #endregion helpers
