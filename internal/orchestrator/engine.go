package orchestrator

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/feltcore/dae/internal/assoc"
	"github.com/feltcore/dae/internal/cluster"
	"github.com/feltcore/dae/internal/config"
	"github.com/feltcore/dae/internal/converge"
	"github.com/feltcore/dae/internal/entity"
	"github.com/feltcore/dae/internal/gate"
	"github.com/feltcore/dae/internal/logging"
	"github.com/feltcore/dae/internal/organ"
	"github.com/feltcore/dae/internal/persist"
	"github.com/feltcore/dae/internal/signature"
)

// #region keys
const (
	keyAssoc    = "assoc"
	keyClusters = "clusters"

	defaultSession = "default"
)

func entityKey(sessionID string) string { return "entities/" + sessionID }

// #endregion keys

// #region engine
// Engine wires the full turn pipeline: organs, signature, clustering,
// convergence, gate, and the learning updates that follow a decision.
// All mutation runs under one lock; a turn is processed atomically.
type Engine struct {
	cfg      config.Config
	registry *organ.Registry
	builder  *signature.Builder
	store    persist.Store

	mu       sync.Mutex
	mem      *assoc.Memory
	clusters *cluster.Assignor
	sessions map[string]*sessionState
	conv     *converge.Engine
	decider  *gate.Decider

	// SQLite-backed provenance, nil when running on a non-SQL store.
	db       *sql.DB
	outcomes *assoc.OutcomeLog
	edges    *entity.CoOccurStore

	turnsSinceSave int
}

// sessionState is the per-session learning surface: the entity tracker plus
// the prior handed to organs on the next turn.
type sessionState struct {
	tracker          *entity.Tracker
	lastCategory     string
	lastSatisfaction float64
	turnIndex        int
}

// New builds an engine over the given store. Configuration errors are fatal
// by contract; corrupt or missing snapshots are not, they reset to neutral.
// db may be nil; provenance logging is skipped in that case.
func New(cfg config.Config, store persist.Store, registry *organ.Registry, db *sql.DB) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	schema := signature.DefaultSchema()
	if cfg.SignatureDim != schema.Dim {
		return nil, fmt.Errorf("config: signature_dim %d does not match schema dim %d", cfg.SignatureDim, schema.Dim)
	}

	e := &Engine{
		cfg:      cfg,
		registry: registry,
		builder:  signature.NewBuilder(schema),
		store:    store,
		mem:      assoc.Load(store, keyAssoc, cfg.Assoc()),
		clusters: cluster.Load(store, keyClusters, cfg.Cluster()),
		sessions: make(map[string]*sessionState),
		conv:     converge.NewEngine(cfg.Converge()),
		decider:  gate.NewDecider(cfg.Gate()),
		db:       db,
	}

	if db != nil {
		if err := logging.EnsureSchema(db); err != nil {
			return nil, err
		}
		outcomes, err := assoc.NewOutcomeLog(db)
		if err != nil {
			return nil, fmt.Errorf("outcome log: %w", err)
		}
		edges, err := entity.NewCoOccurStore(db)
		if err != nil {
			return nil, fmt.Errorf("entity edges: %w", err)
		}
		e.outcomes = outcomes
		e.edges = edges
	}

	return e, nil
}

// #endregion engine

// #region process-turn
// ProcessTurn runs one turn end to end and applies every learning update.
// The same input against the same persisted state always yields the same
// result.
func (e *Engine) ProcessTurn(ctx context.Context, in TurnInput) (TurnResult, error) {
	if in.TurnID == "" {
		in.TurnID = uuid.New().String()
	}
	if in.SessionID == "" {
		in.SessionID = defaultSession
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	sess := e.sessionFor(in.SessionID)

	// 1. Score. Pre-scored inputs bypass the registry entirely.
	outputs := in.Scores
	if outputs == nil {
		prior := organ.Prior{
			LastCategory:     sess.lastCategory,
			LastSatisfaction: sess.lastSatisfaction,
			TurnIndex:        sess.turnIndex,
		}
		outputs = e.registry.ScoreAll(ctx, in.Unit, prior)
	}

	// 2. Entity re-weighting. Learned multipliers scale each organ's slots
	// and lure before the signature is built; unknown or thin entities are
	// exactly neutral.
	mults := sess.tracker.Multipliers(in.Unit.EntityIDs)
	adjusted := make(map[string]organ.Output, len(outputs))
	coherences := make(map[string]float64, len(outputs))
	lures := make(map[string]float64, len(outputs))
	for id, out := range outputs {
		m, ok := mults[id]
		if !ok {
			m = 1.0
		}
		scaled := organ.Output{
			Vector:    make([]float64, len(out.Vector)),
			Coherence: out.Coherence,
			Lure:      clamp01(out.Lure * m),
		}
		for i, v := range out.Vector {
			scaled.Vector[i] = v * m
		}
		adjusted[id] = scaled
		coherences[id] = out.Coherence
		lures[id] = scaled.Lure
	}

	// 3. Signature and cluster assignment. A turn that opens a cluster
	// reports zero distance; the assignor guarantees that.
	sig := e.builder.Build(adjusted)
	assignment := e.clusters.Assign(sig)

	// 4. Convergence descent.
	conv := e.conv.Converge(converge.Input{
		Coherences: coherences,
		Lures:      lures,
		Distance:   assignment.Distance,
	}, e.mem)

	// 5. Gate decision.
	decision := e.decider.Decide(coherences, lures, conv, e.mem)

	// 6. Learning updates, in fixed order.
	e.applyLearning(in, lures, conv, decision)
	e.clusters.RecordSatisfaction(assignment.ClusterID, conv.Satisfaction)

	felt := entity.FeltState{
		Category: string(decision.Category),
		Dims: map[string]float64{
			"energy":       conv.Energy,
			"satisfaction": conv.Satisfaction,
			"urgency":      lures[organ.OrganUrgency],
		},
	}
	sess.tracker.Update(in.Unit.EntityIDs, lures, felt, in.OutcomeQuality, time.Now().UTC())

	sess.lastCategory = string(decision.Category)
	sess.lastSatisfaction = conv.Satisfaction
	sess.turnIndex++

	// 7. Provenance, best effort. A failed log never fails the turn.
	e.logTurn(in, lures, assignment, conv, decision)

	// 8. Periodic snapshot.
	e.turnsSinceSave++
	if e.turnsSinceSave >= e.cfg.SaveEveryTurns {
		if err := e.saveLocked(); err != nil {
			log.Printf("[ORCH] periodic save failed, continuing: %v", err)
		} else {
			e.turnsSinceSave = 0
		}
	}

	return TurnResult{
		TurnID:            in.TurnID,
		SessionID:         in.SessionID,
		Category:          decision.Category,
		Confidence:        decision.Confidence,
		Kairos:            decision.Kairos,
		Reason:            decision.Reason,
		CyclesUsed:        conv.CyclesUsed,
		Energy:            conv.Energy,
		Satisfaction:      conv.Satisfaction,
		ClusterID:         assignment.ClusterID,
		ClusterDistance:   assignment.Distance,
		CreatedNewCluster: assignment.CreatedNew,
	}, nil
}

// applyLearning moves the association matrix after a decision. Co-activation
// is the product of the two organs' lures; update quality comes from the
// external outcome when present, otherwise from the gate's own confidence.
func (e *Engine) applyLearning(in TurnInput, lures map[string]float64, conv converge.Result, decision gate.Decision) {
	quality := decision.Confidence
	if in.OutcomeQuality != nil {
		quality = *in.OutcomeQuality
	}

	ids := sortedKeys(lures)
	for a := 0; a < len(ids); a++ {
		for b := a + 1; b < len(ids); b++ {
			observed := lures[ids[a]] * lures[ids[b]]
			e.mem.Update(ids[a], ids[b], observed, quality)
		}
	}

	// Success EMAs move only on real outcome feedback, and only for the
	// organs that were actually pushing for a response.
	if in.OutcomeQuality != nil {
		for _, id := range ids {
			if lures[id] > e.cfg.LureThreshold {
				e.mem.RecordSuccess(id, *in.OutcomeQuality)
			}
		}
	}
}

// logTurn writes provenance rows when a SQLite store is attached.
func (e *Engine) logTurn(in TurnInput, lures map[string]float64, assignment cluster.Assignment, conv converge.Result, decision gate.Decision) {
	if e.db == nil {
		return
	}
	err := logging.LogTurn(e.db, logging.TurnEntry{
		TurnID:       in.TurnID,
		SessionID:    in.SessionID,
		Category:     string(decision.Category),
		Confidence:   decision.Confidence,
		Kairos:       decision.Kairos,
		Cycles:       conv.CyclesUsed,
		Energy:       conv.Energy,
		Satisfaction: conv.Satisfaction,
		ClusterID:    assignment.ClusterID,
		Distance:     assignment.Distance,
		CreatedNew:   assignment.CreatedNew,
		Reason:       decision.Reason,
	})
	if err != nil {
		log.Printf("[ORCH] turn log failed, continuing: %v", err)
	}

	if e.edges != nil && len(in.Unit.EntityIDs) > 1 {
		if err := e.edges.IncrementAll(in.Unit.EntityIDs); err != nil {
			log.Printf("[ORCH] entity edges failed, continuing: %v", err)
		}
	}

	if e.outcomes != nil && in.OutcomeQuality != nil {
		e.RecordOutcome(in.TurnID, in.SessionID, lures, decision.Category, *in.OutcomeQuality)
	}
}

// RecordOutcome persists per-organ outcome rows for a turn that already ran.
// Used by callers that learn the outcome quality later.
func (e *Engine) RecordOutcome(turnID, sessionID string, lures map[string]float64, category gate.Category, quality float64) {
	if e.outcomes == nil {
		return
	}
	now := time.Now().UTC()
	for _, id := range sortedKeys(lures) {
		err := e.outcomes.Record(assoc.OutcomeRecord{
			TurnID:    turnID,
			SessionID: sessionID,
			OrganID:   id,
			Lure:      lures[id],
			Quality:   quality,
			Category:  string(category),
			CreatedAt: now,
		})
		if err != nil {
			log.Printf("[ORCH] outcome record failed, continuing: %v", err)
			return
		}
	}
}

// #endregion process-turn

// #region lifecycle
// sessionFor returns the session state, loading the tracker lazily.
func (e *Engine) sessionFor(sessionID string) *sessionState {
	if s, ok := e.sessions[sessionID]; ok {
		return s
	}
	s := &sessionState{
		tracker: entity.Load(e.store, entityKey(sessionID), e.cfg.Entity()),
	}
	e.sessions[sessionID] = s
	return s
}

// Tracker exposes a session's entity tracker for inspection.
func (e *Engine) Tracker(sessionID string) *entity.Tracker {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionFor(sessionID).tracker
}

// Memory exposes the association matrix for inspection.
func (e *Engine) Memory() *assoc.Memory { return e.mem }

// Clusters exposes the assignor for inspection.
func (e *Engine) Clusters() *cluster.Assignor { return e.clusters }

// Save snapshots every learning structure to the store.
func (e *Engine) Save() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saveLocked()
}

func (e *Engine) saveLocked() error {
	if err := assoc.Save(e.store, keyAssoc, e.mem); err != nil {
		return fmt.Errorf("save associations: %w", err)
	}
	if err := cluster.Save(e.store, keyClusters, e.clusters); err != nil {
		return fmt.Errorf("save clusters: %w", err)
	}
	for _, sessionID := range sortedSessionIDs(e.sessions) {
		if err := entity.Save(e.store, entityKey(sessionID), e.sessions[sessionID].tracker); err != nil {
			return fmt.Errorf("save entities %s: %w", sessionID, err)
		}
	}
	return nil
}

// Close saves and releases the store.
func (e *Engine) Close() error {
	if err := e.Save(); err != nil {
		log.Printf("[ORCH] final save failed: %v", err)
	}
	return e.store.Close()
}

// #endregion lifecycle

// #region helpers
func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedSessionIDs(m map[string]*sessionState) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers
