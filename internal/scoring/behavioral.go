package scoring

import (
	"math"

	"github.com/talentprofile/talentprofile/internal/assessment"
	"github.com/talentprofile/talentprofile/internal/psych/stats"
)

// scoreTrait scores one behavioral scale. Likert items sum (reverse-keyed
// inverted) to a normed STEN; multidimensional forced-choice blocks add a
// second estimate from their trait loadings. When both exist they combine
// as a weighted average in raw and in STEN space.
func (e *Engine) scoreTrait(sc assessment.Scale, in Input) (assessment.ScaleScore, bool) {
	var likert []int
	likertItems := 0
	for _, r := range in.Responses {
		it, ok := in.Items[r.ItemID]
		if !ok || it.Distortion || it.ScaleID != sc.ID || r.Value.Kind != assessment.KindLikert {
			continue
		}
		v := r.Value.Likert
		if it.ReverseKeyed {
			v = 6 - v
		}
		likert = append(likert, v)
		likertItems++
	}

	fcNorm, fcItems, hasFC := e.forcedChoiceLoad(sc.ID, in)

	switch {
	case likertItems == 0 && !hasFC:
		return assessment.ScaleScore{}, false
	case likertItems > 0 && !hasFC:
		sten := stats.LikertSumToSten(likert)
		return traitScore(sc.ID, float64(sumInts(likert)), sten, likertItems), true
	case likertItems == 0 && hasFC:
		sten := stats.RawToSten(fcNorm, 1, 5)
		return traitScore(sc.ID, fcNorm, sten, fcItems), true
	}

	lw := 1.0 - e.fcWeight
	likertRaw := float64(sumInts(likert))
	likertSten := stats.LikertSumToSten(likert)
	fcSten := stats.RawToSten(fcNorm, 1, 5)

	raw := lw*likertRaw + e.fcWeight*fcNorm
	sten := stats.ClampSten(int(math.Round(lw*float64(likertSten) + e.fcWeight*float64(fcSten))))
	return traitScore(sc.ID, raw, sten, likertItems+fcItems), true
}

// forcedChoiceLoad accumulates the scale's signed loadings over behavioral
// forced-choice responses (choice A adds the loading, B subtracts it) and
// normalizes the total into the 1..5 Likert band.
func (e *Engine) forcedChoiceLoad(scaleID string, in Input) (norm float64, items int, ok bool) {
	var sum, span float64
	for _, r := range in.Responses {
		it, found := in.Items[r.ItemID]
		if !found || it.Domain != assessment.DomainBehavioral || it.Format != assessment.FormatForcedChoice {
			continue
		}
		w, loads := it.Loadings[scaleID]
		if !loads || r.Value.Kind != assessment.KindForcedChoice {
			continue
		}
		sign := 1.0
		if r.Value.Option == "B" {
			sign = -1.0
		}
		sum += w * sign
		span += math.Abs(w)
		items++
	}
	if items == 0 || span == 0 {
		return 0, 0, false
	}
	// sum/span lies in [-1,1]; center on 3 to land in [1,5]
	return 3.0 + 2.0*(sum/span), items, true
}

func traitScore(scaleID string, raw float64, sten, itemCount int) assessment.ScaleScore {
	return assessment.ScaleScore{
		ScaleID:    scaleID,
		Raw:        raw,
		Sten:       sten,
		Percentile: stats.StenToPercentile(sten),
		ItemCount:  itemCount,
	}
}

func sumInts(v []int) int {
	s := 0
	for _, x := range v {
		s += x
	}
	return s
}
