package scoring

import (
	"errors"

	"github.com/talentprofile/talentprofile/internal/assessment"
	"github.com/talentprofile/talentprofile/internal/psych/irt"
	"github.com/talentprofile/talentprofile/internal/psych/stats"
)

// scoreCognitive estimates ability from the 0/1 correctness vector of one
// scale's responses. Short patterns use the MAP prior; degenerate patterns
// take the sentinel theta at the clamp boundary.
func (e *Engine) scoreCognitive(sc assessment.Scale, resps []assessment.Response, items map[string]assessment.Item) (assessment.ScaleScore, bool) {
	if len(resps) == 0 {
		return assessment.ScaleScore{}, false
	}

	correct := make([]bool, 0, len(resps))
	params := make([]irt.Params, 0, len(resps))
	raw := 0
	for _, r := range resps {
		u := r.IsCorrect != nil && *r.IsCorrect
		if u {
			raw++
		}
		correct = append(correct, u)
		params = append(params, items[r.ItemID].IRT)
	}

	theta := EstimateTheta(correct, params, e.mapThreshold)
	sten := stats.ThetaToSten(theta)
	return assessment.ScaleScore{
		ScaleID:    sc.ID,
		Raw:        float64(raw),
		Sten:       sten,
		Percentile: stats.StenToPercentile(sten),
		Theta:      &theta,
		ItemCount:  len(resps),
	}, true
}

// EstimateTheta is the shared ability-estimation policy: MAP below the item
// threshold, MLE after, and the +-4 sentinel when the likelihood has no
// finite maximum. Also used by the session manager for per-response theta
// snapshots.
func EstimateTheta(correct []bool, params []irt.Params, mapThreshold int) float64 {
	var (
		theta float64
		err   error
	)
	if len(correct) < mapThreshold {
		theta, err = irt.EstimateMAP(correct, params, 0, 1)
	} else {
		theta, err = irt.EstimateMLE(correct, params)
	}
	if err != nil {
		if errors.Is(err, irt.ErrEstimationDiverged) {
			if allTrue(correct) {
				return irt.ThetaMax
			}
			return irt.ThetaMin
		}
		return 0
	}
	return theta
}

func allTrue(v []bool) bool {
	for _, b := range v {
		if !b {
			return false
		}
	}
	return true
}
