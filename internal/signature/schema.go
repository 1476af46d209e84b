package signature

import "github.com/feltcore/dae/internal/organ"

// #region schema-version
// SchemaVersion tags persisted artifacts built against the slot layout.
// Bump whenever slot offsets, widths, or amplification rules change;
// mismatched persisted state is reset to neutral on load.
const SchemaVersion = 3

// #endregion schema-version

// #region slot
// Slot maps one organ to a fixed index range: Width vector slots followed
// by one lure slot at Offset+Width.
type Slot struct {
	OrganID string
	Offset  int
	Width   int
}

// #endregion slot

// #region amplify
// Amplify multiplies one vector component in place at build time. Used for
// dimensions that would otherwise be drowned out by higher-count slots from
// less discriminative organs.
type Amplify struct {
	OrganID string
	Index   int
	Factor  float64
}

// #endregion amplify

// #region schema
// Schema is the static, versioned slot layout. Signatures built against
// the same schema are comparable across turns and restarts.
type Schema struct {
	Version   int
	Dim       int
	Slots     []Slot
	Amplified []Amplify
}

// DefaultSchema lays out the five built-in organs: urgency 12+1, then
// valence/novelty/rhythm/salience 10+1 each, for a total dim of 57.
// The urgency scalar (index 0) and zone scalar (index 1) are amplified by
// 2.0 so intensity differences dominate clustering distance.
func DefaultSchema() Schema {
	slots := []Slot{
		{OrganID: organ.OrganUrgency, Offset: 0, Width: organ.UrgencyWidth},
		{OrganID: organ.OrganValence, Offset: 13, Width: organ.DefaultWidth},
		{OrganID: organ.OrganNovelty, Offset: 24, Width: organ.DefaultWidth},
		{OrganID: organ.OrganRhythm, Offset: 35, Width: organ.DefaultWidth},
		{OrganID: organ.OrganSalience, Offset: 46, Width: organ.DefaultWidth},
	}
	return Schema{
		Version: SchemaVersion,
		Dim:     57,
		Slots:   slots,
		Amplified: []Amplify{
			{OrganID: organ.OrganUrgency, Index: 0, Factor: 2.0},
			{OrganID: organ.OrganUrgency, Index: 1, Factor: 2.0},
		},
	}
}

// #endregion schema
