package organ

import (
	"context"
	"fmt"
	"log"
)

// #region registry
// Registry maps organ IDs to scorers. Concrete organs are registered once
// at startup; lookup order is the registration order.
type Registry struct {
	scorers map[string]Scorer
	order   []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{scorers: make(map[string]Scorer)}
}

// Register adds a scorer. Duplicate IDs are a wiring bug and rejected.
func (r *Registry) Register(s Scorer) error {
	id := s.ID()
	if _, ok := r.scorers[id]; ok {
		return fmt.Errorf("organ %q already registered", id)
	}
	r.scorers[id] = s
	r.order = append(r.order, id)
	return nil
}

// Get returns the scorer for id, if registered.
func (r *Registry) Get(id string) (Scorer, bool) {
	s, ok := r.scorers[id]
	return s, ok
}

// IDs returns organ IDs in registration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// #endregion registry

// #region score-all
// ScoreAll runs every registered organ over the unit. An organ that errors
// is skipped with a warning; its slots degrade to zero downstream. Missing
// organs are never fatal.
func (r *Registry) ScoreAll(ctx context.Context, unit Unit, prior Prior) map[string]Output {
	outputs := make(map[string]Output, len(r.order))
	for _, id := range r.order {
		out, err := r.scorers[id].Score(ctx, unit, prior)
		if err != nil {
			log.Printf("[ORGAN] %s failed, degrading to zero: %v", id, err)
			continue
		}
		outputs[id] = out
	}
	return outputs
}

// #endregion score-all
