package organ

import "context"

// #region unit
// Unit is one turn's structured input as seen by the organs.
type Unit struct {
	Text      string
	EntityIDs []string
}

// #endregion unit

// #region prior
// Prior carries optional context from earlier turns. Zero value means
// no prior context; organs must tolerate that.
type Prior struct {
	LastCategory     string
	LastSatisfaction float64
	TurnIndex        int
}

// #endregion prior

// #region output
// Output is the fixed contract every organ returns: a fixed-width feature
// vector, an internal-agreement scalar, and an attraction-to-respond scalar.
type Output struct {
	Vector    []float64
	Coherence float64 // [0,1], agreement among this organ's own features
	Lure      float64 // [0,1], how strongly this organ wants to act
}

// #endregion output

// #region scorer
// Scorer is the pluggable organ contract. Implementations must be pure:
// the same unit and prior always produce the same output.
type Scorer interface {
	ID() string
	Width() int
	Score(ctx context.Context, unit Unit, prior Prior) (Output, error)
}

// #endregion scorer
