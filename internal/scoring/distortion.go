package scoring

import (
	"math"

	"github.com/talentprofile/talentprofile/internal/assessment"
	"github.com/talentprofile/talentprofile/internal/psych/stats"
)

type DistortionCategory string

const (
	DistortionValid   DistortionCategory = "valid"
	DistortionWarning DistortionCategory = "warning"
	DistortionInvalid DistortionCategory = "invalid"
)

type Recommendation string

const (
	RecommendUse       Recommendation = "use"
	RecommendInterview Recommendation = "interview"
	RecommendDiscard   Recommendation = "discard"
)

// Pattern flags raised by the response-stream checks.
const (
	PatternStraightLine = "straight_line"
	PatternAlternating  = "alternating"
	PatternRandom       = "random"
)

// Validity is the distortion verdict for one assessment. High endorsement of
// the distortion items (faking good) drives the STEN up, so a high STEN is
// the invalid direction.
type Validity struct {
	Sten             int                `json:"sten"`
	Category         DistortionCategory `json:"category"`
	ConsistencyScore int                `json:"consistency_score"`
	Patterns         []string           `json:"patterns,omitempty"`
	Recommendation   Recommendation     `json:"recommendation"`
}

// detectDistortion scores the distortion scale and runs the pattern checks
// over the full behavioral Likert stream. Reports ok=false when no distortion
// items were administered.
func (e *Engine) detectDistortion(in Input) (Validity, assessment.ScaleScore, bool) {
	var distortionScale string
	for _, sc := range in.Scales {
		if sc.Type == assessment.ScaleDistortion {
			distortionScale = sc.ID
			break
		}
	}

	var dResponses []int
	var stream []int
	for _, r := range in.Responses {
		it, ok := in.Items[r.ItemID]
		if !ok || r.Value.Kind != assessment.KindLikert {
			continue
		}
		if it.Domain == assessment.DomainBehavioral {
			stream = append(stream, r.Value.Likert)
		}
		if it.Distortion {
			dResponses = append(dResponses, r.Value.Likert)
		}
	}
	if len(dResponses) == 0 {
		return Validity{}, assessment.ScaleScore{}, false
	}

	sten := stats.LikertSumToSten(dResponses)
	category := CategorizeDistortion(sten)

	var patterns []string
	if straightLine(stream) {
		patterns = append(patterns, PatternStraightLine)
	}
	if alternating(stream) {
		patterns = append(patterns, PatternAlternating)
	}
	random := randomRuns(stream)
	if random {
		patterns = append(patterns, PatternRandom)
	}

	v := Validity{
		Sten:             sten,
		Category:         category,
		ConsistencyScore: consistencyScore(stream),
		Patterns:         patterns,
	}
	switch {
	case category == DistortionInvalid || random:
		v.Recommendation = RecommendDiscard
	case category == DistortionWarning || len(patterns) > 0:
		v.Recommendation = RecommendInterview
	default:
		v.Recommendation = RecommendUse
	}

	score := assessment.ScaleScore{
		ScaleID:    distortionScale,
		Raw:        float64(sumInts(dResponses)),
		Sten:       sten,
		Percentile: stats.StenToPercentile(sten),
		ItemCount:  len(dResponses),
	}
	return v, score, true
}

// CategorizeDistortion maps the distortion STEN to a validity category.
// High scores mean over-endorsement of the "too good to be true" items.
func CategorizeDistortion(sten int) DistortionCategory {
	switch {
	case sten >= 7:
		return DistortionInvalid
	case sten >= 4:
		return DistortionWarning
	default:
		return DistortionValid
	}
}

// consistencyScore scales response spread into 0..100; a flat stream scores 0.
func consistencyScore(stream []int) int {
	if len(stream) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range stream {
		mean += float64(v)
	}
	mean /= float64(len(stream))
	ss := 0.0
	for _, v := range stream {
		d := float64(v) - mean
		ss += d * d
	}
	sigma := math.Sqrt(ss / float64(len(stream)))
	score := sigma / 1.5 * 100.0
	if score > 100 {
		score = 100
	}
	return int(math.Round(score))
}

func straightLine(stream []int) bool {
	if len(stream) < 5 {
		return false
	}
	for _, v := range stream[1:] {
		if v != stream[0] {
			return false
		}
	}
	return true
}

// alternating reports an A-B-A-B answering pattern: at least 80% of the
// stride-2 pairs repeat the same value.
func alternating(stream []int) bool {
	if len(stream) < 5 {
		return false
	}
	pairs, equal := 0, 0
	for i := 0; i+2 < len(stream); i++ {
		pairs++
		if stream[i] == stream[i+2] {
			equal++
		}
	}
	if pairs == 0 {
		return false
	}
	return float64(equal)/float64(pairs) >= 0.8
}

// randomRuns applies the runs-up-and-down test: a random stream has close to
// (2n-1)/3 monotone runs; within 30% of that expectation reads as random
// answering.
func randomRuns(stream []int) bool {
	n := len(stream)
	if n < 5 {
		return false
	}
	runs := 1
	prevSign := 0
	for i := 1; i < n; i++ {
		sign := 0
		if stream[i] > stream[i-1] {
			sign = 1
		} else if stream[i] < stream[i-1] {
			sign = -1
		}
		if sign == 0 {
			continue
		}
		if prevSign != 0 && sign != prevSign {
			runs++
		}
		prevSign = sign
	}
	expected := float64(2*n-1) / 3.0
	return math.Abs(float64(runs)-expected) < 0.3*expected
}
