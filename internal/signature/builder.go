package signature

import "github.com/feltcore/dae/internal/organ"

// #region signature
// Signature is one turn's flat feature vector. It is never L2-normalized:
// raw magnitude is the primary clustering signal and normalizing it away
// collapses high- and low-intensity turns into the same family.
type Signature struct {
	Values        []float64
	SchemaVersion int
}

// Dim returns the signature dimensionality.
func (s Signature) Dim() int { return len(s.Values) }

// #endregion signature

// #region builder
// Builder arranges per-organ outputs into the schema's fixed slot layout.
type Builder struct {
	schema Schema
}

// NewBuilder creates a builder over the given schema.
func NewBuilder(schema Schema) *Builder {
	return &Builder{schema: schema}
}

// Schema returns the builder's schema.
func (b *Builder) Schema() Schema { return b.schema }

// Build produces a signature from the organ outputs of one turn.
// Organs absent from the map contribute zero-valued slots; organs not in
// the schema are ignored. Pure function, no failure modes.
func (b *Builder) Build(outputs map[string]organ.Output) Signature {
	values := make([]float64, b.schema.Dim)

	for _, slot := range b.schema.Slots {
		out, ok := outputs[slot.OrganID]
		if !ok {
			continue
		}
		for i := 0; i < slot.Width && i < len(out.Vector); i++ {
			values[slot.Offset+i] = out.Vector[i]
		}
		values[slot.Offset+slot.Width] = out.Lure
	}

	for _, amp := range b.schema.Amplified {
		slot, ok := b.slotFor(amp.OrganID)
		if !ok || amp.Index >= slot.Width {
			continue
		}
		values[slot.Offset+amp.Index] *= amp.Factor
	}

	return Signature{Values: values, SchemaVersion: b.schema.Version}
}

func (b *Builder) slotFor(organID string) (Slot, bool) {
	for _, s := range b.schema.Slots {
		if s.OrganID == organID {
			return s, true
		}
	}
	return Slot{}, false
}

// #endregion builder
