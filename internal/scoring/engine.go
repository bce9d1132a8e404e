// Package scoring turns the raw response stream of a completed assessment
// into standardized ScaleScore rows plus a validity verdict. All scorers are
// pure; the engine only reads its inputs.
package scoring

import (
	"sort"

	"github.com/talentprofile/talentprofile/internal/assessment"
)

// Input is everything the engine needs for one assessment: the scale catalog,
// the administered items keyed by id, and the ordered response stream.
type Input struct {
	Scales    []assessment.Scale
	Items     map[string]assessment.Item
	Responses []assessment.Response
}

type Option func(*Engine)

// WithFCWeight overrides the forced-choice share of the combined behavioral
// score (default 0.3; Likert carries the remainder).
func WithFCWeight(w float64) Option {
	return func(e *Engine) {
		if w >= 0 && w <= 1 {
			e.fcWeight = w
		}
	}
}

// WithMAPThreshold sets the administered-item count below which ability is
// estimated with the Bayesian prior instead of plain MLE.
func WithMAPThreshold(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.mapThreshold = n
		}
	}
}

type Engine struct {
	fcWeight     float64
	mapThreshold int
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{fcWeight: 0.3, mapThreshold: 5}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Result is the finalized profile: one score per active non-composite scale
// the candidate answered, one learning-index composite when cognitive
// sub-scales were administered, one distortion score plus a Validity verdict
// when distortion items were administered.
type Result struct {
	Scores   []assessment.ScaleScore
	Validity *Validity
}

// Score computes the full profile. Emitted ScaleScore rows carry scale id,
// raw, STEN, percentile, theta and item count; identity and timestamps are
// the caller's concern.
func (e *Engine) Score(in Input) (Result, error) {
	byScale := groupResponses(in)

	var out Result
	for _, sc := range in.Scales {
		switch sc.Type {
		case assessment.ScaleCognitive:
			if len(sc.CompositeOf) > 0 {
				continue // composites are scored after their parts
			}
			if s, ok := e.scoreCognitive(sc, byScale[sc.ID], in.Items); ok {
				out.Scores = append(out.Scores, s)
			}
		case assessment.ScaleTrait:
			if s, ok := e.scoreTrait(sc, in); ok {
				out.Scores = append(out.Scores, s)
			}
		case assessment.ScaleInterest:
			// ranked jointly below
		case assessment.ScaleDistortion:
			// scored with the validity verdict below
		}
	}

	out.Scores = append(out.Scores, e.scoreInterests(in)...)

	for _, sc := range in.Scales {
		if sc.Type == assessment.ScaleCognitive && len(sc.CompositeOf) > 0 {
			if s, ok := e.scoreComposite(sc, out.Scores); ok {
				out.Scores = append(out.Scores, s)
			}
		}
	}

	if v, s, ok := e.detectDistortion(in); ok {
		out.Validity = &v
		out.Scores = append(out.Scores, s)
	}

	sort.Slice(out.Scores, func(i, j int) bool { return out.Scores[i].ScaleID < out.Scores[j].ScaleID })
	return out, nil
}

// groupResponses buckets responses under the scale of the item they answered.
// Forced-choice interest pairs are handled separately by the interest scorer
// and distortion items by the detector, so both are excluded here.
func groupResponses(in Input) map[string][]assessment.Response {
	m := map[string][]assessment.Response{}
	for _, r := range in.Responses {
		it, ok := in.Items[r.ItemID]
		if !ok || it.Distortion {
			continue
		}
		if it.Domain == assessment.DomainInterests {
			continue
		}
		m[it.ScaleID] = append(m[it.ScaleID], r)
	}
	return m
}
