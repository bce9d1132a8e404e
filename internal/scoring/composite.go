package scoring

import (
	"github.com/talentprofile/talentprofile/internal/assessment"
	"github.com/talentprofile/talentprofile/internal/psych/stats"
)

// Fallback norming bounds for the learning-index composite, used only when
// the sub-scale item counts are unknown.
const (
	compositeFallbackMin = 80
	compositeFallbackMax = 400
)

// scoreComposite sums the raw scores of the composite's sub-scales and norms
// against the actually administered item counts (each cognitive item scores
// 0 or 1). The historical [80,400] band only applies when no item counts are
// available.
func (e *Engine) scoreComposite(sc assessment.Scale, scored []assessment.ScaleScore) (assessment.ScaleScore, bool) {
	parts := map[string]bool{}
	for _, id := range sc.CompositeOf {
		parts[id] = true
	}

	raw := 0.0
	items := 0
	found := 0
	for _, s := range scored {
		if !parts[s.ScaleID] {
			continue
		}
		raw += s.Raw
		items += s.ItemCount
		found++
	}
	if found == 0 {
		return assessment.ScaleScore{}, false
	}

	var sten int
	if items > 0 {
		sten = stats.RawToSten(raw, 0, float64(items))
	} else {
		sten = stats.RawToSten(raw, compositeFallbackMin, compositeFallbackMax)
	}
	return assessment.ScaleScore{
		ScaleID:    sc.ID,
		Raw:        raw,
		Sten:       sten,
		Percentile: stats.StenToPercentile(sten),
		ItemCount:  items,
	}, true
}
