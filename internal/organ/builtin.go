package organ

import (
	"context"
	"math"
	"strings"
	"unicode"
)

// Built-in heuristic organs. These make cmd/dae usable end to end over raw
// text; callers that already have structured scores bypass them entirely.
// All of them are pure functions of the unit text.

// #region ids
const (
	OrganUrgency  = "urgency"
	OrganValence  = "valence"
	OrganNovelty  = "novelty"
	OrganRhythm   = "rhythm"
	OrganSalience = "salience"
)

// DefaultWidth is the vector width of most built-in organs.
const DefaultWidth = 10

// UrgencyWidth is wider: slots 0 and 1 hold the urgency and zone scalars
// that the signature schema amplifies.
const UrgencyWidth = 12

// #endregion ids

// #region register-builtins
// RegisterBuiltins registers the five built-in organs on r.
func RegisterBuiltins(r *Registry) error {
	for _, s := range []Scorer{
		&UrgencyOrgan{},
		&ValenceOrgan{},
		&NoveltyOrgan{},
		&RhythmOrgan{},
		&SalienceOrgan{},
	} {
		if err := r.Register(s); err != nil {
			return err
		}
	}
	return nil
}

// #endregion register-builtins

// #region urgency
// UrgencyOrgan reads crisis pressure from lexical markers, punctuation,
// and capitalization. Vector[0] is the urgency scalar, vector[1] the
// autonomic zone scalar (0 ventral, 0.5 mixed, 1 sympathetic).
type UrgencyOrgan struct{}

var urgentMarkers = []string{
	"now", "urgent", "emergency", "help", "can't", "cannot",
	"immediately", "asap", "panic", "scared", "crisis", "hurry",
}

var calmMarkers = []string{
	"calm", "fine", "okay", "relaxed", "safe", "settled", "rest", "peaceful",
}

func (o *UrgencyOrgan) ID() string { return OrganUrgency }

func (o *UrgencyOrgan) Width() int { return UrgencyWidth }

func (o *UrgencyOrgan) Score(_ context.Context, unit Unit, _ Prior) (Output, error) {
	tokens := tokenize(unit.Text)
	n := float64(len(tokens))

	markers := markerDensity(tokens, urgentMarkers)
	calm := markerDensity(tokens, calmMarkers)
	exclaim := runeDensity(unit.Text, '!')
	question := runeDensity(unit.Text, '?')
	caps := capsRatio(unit.Text)
	negation := markerDensity(tokens, []string{"no", "not", "never", "nothing", "nobody"})
	brevity := 0.0
	if n > 0 && n < 6 {
		brevity = 1 - n/6
	}

	urgencyScalar := clamp01(2.5*markers + 1.5*exclaim + caps - 1.5*calm)
	zone := clamp01(0.5 + 0.6*urgencyScalar - 0.8*calm)

	vec := make([]float64, UrgencyWidth)
	vec[0] = urgencyScalar
	vec[1] = zone
	vec[2] = clamp01(3 * markers)
	vec[3] = clamp01(3 * exclaim)
	vec[4] = clamp01(2 * question)
	vec[5] = clamp01(2 * caps)
	vec[6] = clamp01(2 * negation)
	vec[7] = clamp01(2 * calm)
	vec[8] = brevity
	vec[9] = clamp01(urgencyScalar * (1 - calm))
	vec[10] = clamp01(0.5 * (urgencyScalar + zone))
	vec[11] = clamp01(math.Abs(urgencyScalar - calm))

	features := []float64{vec[2], vec[3], vec[5], vec[6]}
	return Output{
		Vector:    vec,
		Coherence: 1 - stddev(features),
		Lure:      clamp01(0.3 + 0.7*urgencyScalar),
	}, nil
}

// #endregion urgency

// #region valence
// ValenceOrgan reads emotional tone from small positive/negative lexicons
// and lexical diversity, following the sentiment heuristic shape used by
// the signal producer it replaced.
type ValenceOrgan struct{}

var positiveMarkers = []string{
	"good", "great", "love", "happy", "glad", "thanks", "better", "hope", "wonderful",
}

var negativeMarkers = []string{
	"bad", "hate", "sad", "angry", "worse", "awful", "hurt", "alone", "tired", "hopeless",
}

func (o *ValenceOrgan) ID() string { return OrganValence }

func (o *ValenceOrgan) Width() int { return DefaultWidth }

func (o *ValenceOrgan) Score(_ context.Context, unit Unit, _ Prior) (Output, error) {
	tokens := tokenize(unit.Text)

	pos := markerDensity(tokens, positiveMarkers)
	neg := markerDensity(tokens, negativeMarkers)
	diversity := typeTokenRatio(tokens)
	polarity := clamp01(0.5 + 2*(pos-neg)) // 0.5 neutral
	intensity := clamp01(3 * (pos + neg))

	vec := make([]float64, DefaultWidth)
	vec[0] = polarity
	vec[1] = intensity
	vec[2] = clamp01(4 * pos)
	vec[3] = clamp01(4 * neg)
	vec[4] = diversity
	vec[5] = clamp01(diversity * intensity)
	vec[6] = clamp01(math.Abs(polarity - 0.5) * 2)
	vec[7] = clamp01(1 - intensity)
	vec[8] = clamp01(polarity * diversity)
	vec[9] = clamp01((1 - polarity) * intensity)

	return Output{
		Vector:    vec,
		Coherence: 1 - stddev([]float64{vec[2], vec[3], vec[6]}),
		Lure:      clamp01(0.2 + 0.8*intensity),
	}, nil
}

// #endregion valence

// #region novelty
// NoveltyOrgan estimates how unfamiliar the unit is: rare-token ratio,
// long-word ratio, and question density as tiers, mirroring the old
// three-tier novelty fallback.
type NoveltyOrgan struct{}

func (o *NoveltyOrgan) ID() string { return OrganNovelty }

func (o *NoveltyOrgan) Width() int { return DefaultWidth }

func (o *NoveltyOrgan) Score(_ context.Context, unit Unit, prior Prior) (Output, error) {
	tokens := tokenize(unit.Text)

	diversity := typeTokenRatio(tokens)
	longWords := longWordRatio(tokens, 8)
	question := runeDensity(unit.Text, '?')
	firstTurn := 0.0
	if prior.TurnIndex == 0 {
		firstTurn = 1.0
	}
	novelty := clamp01(0.5*diversity + 0.3*longWords + 0.2*firstTurn)

	vec := make([]float64, DefaultWidth)
	vec[0] = novelty
	vec[1] = diversity
	vec[2] = longWords
	vec[3] = clamp01(2 * question)
	vec[4] = firstTurn
	vec[5] = clamp01(novelty * diversity)
	vec[6] = clamp01(1 - novelty)
	vec[7] = clamp01(novelty * (1 - firstTurn))
	vec[8] = clamp01(0.5 * (diversity + longWords))
	vec[9] = clamp01(novelty * question * 2)

	return Output{
		Vector:    vec,
		Coherence: 1 - stddev([]float64{diversity, longWords, clamp01(2 * question)}),
		Lure:      clamp01(0.25 + 0.75*novelty),
	}, nil
}

// #endregion novelty

// #region rhythm
// RhythmOrgan reads pacing: sentence length spread and punctuation cadence.
type RhythmOrgan struct{}

func (o *RhythmOrgan) ID() string { return OrganRhythm }

func (o *RhythmOrgan) Width() int { return DefaultWidth }

func (o *RhythmOrgan) Score(_ context.Context, unit Unit, _ Prior) (Output, error) {
	sentences := splitSentences(unit.Text)
	lengths := make([]float64, 0, len(sentences))
	for _, s := range sentences {
		lengths = append(lengths, float64(len(strings.Fields(s))))
	}

	meanLen := mean(lengths)
	spread := stddev(normalizeBy(lengths, 20))
	pauses := runeDensity(unit.Text, ',') + runeDensity(unit.Text, ';')
	ellipsis := 0.0
	if strings.Contains(unit.Text, "...") {
		ellipsis = 1.0
	}
	staccato := clamp01(1 - meanLen/12)

	vec := make([]float64, DefaultWidth)
	vec[0] = clamp01(meanLen / 20)
	vec[1] = clamp01(spread)
	vec[2] = clamp01(3 * pauses)
	vec[3] = ellipsis
	vec[4] = staccato
	vec[5] = clamp01(float64(len(sentences)) / 6)
	vec[6] = clamp01(staccato * (1 - ellipsis))
	vec[7] = clamp01(spread + ellipsis)
	vec[8] = clamp01(vec[0] * vec[2])
	vec[9] = clamp01(1 - spread)

	return Output{
		Vector:    vec,
		Coherence: 1 - stddev([]float64{vec[0], vec[1], vec[2]}),
		Lure:      clamp01(0.2 + 0.5*spread + 0.3*ellipsis),
	}, nil
}

// #endregion rhythm

// #region salience
// SalienceOrgan reads how much concrete material the unit carries:
// capitalized tokens, numbers, and self-reference density.
type SalienceOrgan struct{}

func (o *SalienceOrgan) ID() string { return OrganSalience }

func (o *SalienceOrgan) Width() int { return DefaultWidth }

func (o *SalienceOrgan) Score(_ context.Context, unit Unit, _ Prior) (Output, error) {
	raw := strings.Fields(unit.Text)
	tokens := tokenize(unit.Text)
	n := float64(len(raw))

	var capitalized, numeric float64
	for i, w := range raw {
		r := []rune(w)
		if len(r) == 0 {
			continue
		}
		if i > 0 && unicode.IsUpper(r[0]) {
			capitalized++
		}
		if unicode.IsDigit(r[0]) {
			numeric++
		}
	}
	capDensity := 0.0
	numDensity := 0.0
	if n > 0 {
		capDensity = capitalized / n
		numDensity = numeric / n
	}
	selfRef := markerDensity(tokens, []string{"i", "me", "my", "myself", "mine"})
	entityBoost := clamp01(float64(len(unit.EntityIDs)) / 4)

	vec := make([]float64, DefaultWidth)
	vec[0] = clamp01(3 * capDensity)
	vec[1] = clamp01(3 * numDensity)
	vec[2] = clamp01(3 * selfRef)
	vec[3] = entityBoost
	vec[4] = clamp01(capDensity + numDensity + selfRef)
	vec[5] = clamp01(vec[0] * vec[2])
	vec[6] = clamp01(entityBoost * vec[2])
	vec[7] = clamp01(1 - vec[4])
	vec[8] = clamp01(0.5 * (vec[0] + entityBoost))
	vec[9] = clamp01(vec[4] * entityBoost)

	return Output{
		Vector:    vec,
		Coherence: 1 - stddev([]float64{vec[0], vec[1], vec[2]}),
		Lure:      clamp01(0.2 + 0.8*vec[4]),
	}, nil
}

// #endregion salience

// #region helpers
// tokenize splits text into lowercase whitespace-delimited tokens with
// leading/trailing punctuation stripped.
func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		t := strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
		})
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func markerDensity(tokens []string, markers []string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(markers))
	for _, m := range markers {
		set[m] = struct{}{}
	}
	var hits float64
	for _, t := range tokens {
		if _, ok := set[t]; ok {
			hits++
		}
	}
	return hits / float64(len(tokens))
}

func runeDensity(text string, target rune) float64 {
	if len(text) == 0 {
		return 0
	}
	var hits, total float64
	for _, r := range text {
		total++
		if r == target {
			hits++
		}
	}
	return clamp01(hits / total * 20)
}

func capsRatio(text string) float64 {
	var upper, letters float64
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters == 0 {
		return 0
	}
	return upper / letters
}

func typeTokenRatio(tokens []string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	unique := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		unique[t] = struct{}{}
	}
	return float64(len(unique)) / float64(len(tokens))
}

func longWordRatio(tokens []string, minLen int) float64 {
	if len(tokens) == 0 {
		return 0
	}
	var long float64
	for _, t := range tokens {
		if len(t) >= minLen {
			long++
		}
	}
	return long / float64(len(tokens))
}

func splitSentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func stddev(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	m := mean(vals)
	var variance float64
	for _, v := range vals {
		d := v - m
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(vals)))
}

func normalizeBy(vals []float64, denom float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = clamp01(v / denom)
	}
	return out
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
