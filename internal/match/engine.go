// Package match scores a candidate profile against a job performance model:
// distance-decay penalties per scale, weighted domain aggregation and a
// rank-order comparison for the interest domain.
package match

import (
	"math"
	"sort"

	"github.com/talentprofile/talentprofile/internal/assessment"
	"github.com/talentprofile/talentprofile/internal/scoring"
)

// Domain weights of the overall fit.
const (
	weightCognitive  = 0.4
	weightBehavioral = 0.4
	weightInterests  = 0.2
)

type Direction string

const (
	DirectionHigh Direction = "high"
	DirectionLow  Direction = "low"
	DirectionIn   Direction = "in"
)

// Deviation is the per-scale diagnostic of a match.
type Deviation struct {
	ScaleID   string    `json:"scale_id"`
	ScaleName string    `json:"scale_name,omitempty"`
	Sten      int       `json:"sten"`
	TargetMin int       `json:"target_min"`
	TargetMax int       `json:"target_max"`
	Distance  int       `json:"distance"`
	Direction Direction `json:"direction"`
}

// Result is one computed job match. MissingScales lists model scales the
// candidate has no score for; they contribute nothing to the fit.
type Result struct {
	ModelID       string      `json:"model_id"`
	AssessmentID  string      `json:"assessment_id"`
	Overall       int         `json:"overall"`
	CognitiveFit  float64     `json:"cognitive_fit"`
	BehavioralFit float64     `json:"behavioral_fit"`
	InterestsFit  float64     `json:"interests_fit"`
	Deviations    []Deviation `json:"deviations"`
	MissingScales []string    `json:"missing_scales,omitempty"`
	Validity      string      `json:"validity,omitempty"`
}

// Penalty applies the distance-decay curve to an integer STEN distance from
// the band: 1 inside, 0.80 one step out, 0.10 three steps out, 0 at five.
func Penalty(d int) float64 {
	if d <= 0 {
		return 1
	}
	df := float64(d)
	p := 1.0 - (0.15*df + 0.05*df*df)
	if p < 0 {
		return 0
	}
	return p
}

// BandDistance returns how far a STEN sits outside [lo, hi] (0 when inside)
// and which side it falls on.
func BandDistance(sten, lo, hi int) (int, Direction) {
	switch {
	case sten < lo:
		return lo - sten, DirectionLow
	case sten > hi:
		return sten - hi, DirectionHigh
	default:
		return 0, DirectionIn
	}
}

// Compute scores the candidate's ScaleScores against the model. Scales is the
// catalog (for domain membership and display names). Scores for scales the
// model does not mention are ignored; model ranges without a candidate score
// are reported in MissingScales.
func Compute(scores []assessment.ScaleScore, scales []assessment.Scale, model assessment.PerformanceModel) Result {
	byID := map[string]assessment.ScaleScore{}
	for _, s := range scores {
		byID[s.ScaleID] = s
	}
	scaleInfo := map[string]assessment.Scale{}
	for _, sc := range scales {
		scaleInfo[sc.ID] = sc
	}

	res := Result{ModelID: model.ID}

	var cogNum, cogDen, behNum, behDen float64
	for _, r := range model.Ranges {
		sc, known := scaleInfo[r.ScaleID]
		if known && sc.Type == assessment.ScaleInterest {
			continue // interests use rank-order matching below
		}
		s, has := byID[r.ScaleID]
		if !has {
			res.MissingScales = append(res.MissingScales, r.ScaleID)
			continue
		}
		d, dir := BandDistance(s.Sten, r.TargetMin, r.TargetMax)
		res.Deviations = append(res.Deviations, Deviation{
			ScaleID:   r.ScaleID,
			ScaleName: sc.Name,
			Sten:      s.Sten,
			TargetMin: r.TargetMin,
			TargetMax: r.TargetMax,
			Distance:  d,
			Direction: dir,
		})
		p := Penalty(d) * r.Weight
		switch sc.Domain {
		case assessment.DomainBehavioral:
			behNum += p
			behDen += r.Weight
		default: // cognitive, including composites
			cogNum += p
			cogDen += r.Weight
		}
	}

	res.CognitiveFit = domainFit(cogNum, cogDen)
	res.BehavioralFit = domainFit(behNum, behDen)
	res.InterestsFit = math.Round(interestsFit(scores, scales, model))
	res.Overall = overall(res.CognitiveFit, res.BehavioralFit, res.InterestsFit)
	sort.Slice(res.Deviations, func(i, j int) bool { return res.Deviations[i].ScaleID < res.Deviations[j].ScaleID })
	return res
}

func domainFit(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den * 100.0
}

// interestsFit compares the candidate's top-3 interests against the model's
// top-3 (ranked by band midpoint). Position-wise agreement maps onto
// {33, 56, 78, 100}.
func interestsFit(scores []assessment.ScaleScore, scales []assessment.Scale, model assessment.PerformanceModel) float64 {
	candTop := scoring.TopInterests(scores, scales, 3)

	interest := map[string]bool{}
	for _, sc := range scales {
		if sc.Type == assessment.ScaleInterest {
			interest[sc.ID] = true
		}
	}
	var ranges []assessment.ModelScaleRange
	for _, r := range model.Ranges {
		if interest[r.ScaleID] {
			ranges = append(ranges, r)
		}
	}
	sort.SliceStable(ranges, func(i, j int) bool {
		mi := float64(ranges[i].TargetMin+ranges[i].TargetMax) / 2.0
		mj := float64(ranges[j].TargetMin+ranges[j].TargetMax) / 2.0
		if mi != mj {
			return mi > mj
		}
		return ranges[i].ScaleID < ranges[j].ScaleID
	})

	matches := 0
	for i := 0; i < 3 && i < len(candTop) && i < len(ranges); i++ {
		if candTop[i] == ranges[i].ScaleID {
			matches++
		}
	}
	return 33.33 + float64(matches)*22.22
}

func overall(cog, beh, intr float64) int {
	v := math.Round(weightCognitive*cog + weightBehavioral*beh + weightInterests*intr)
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return int(v)
}

// OutOfBand filters deviations to those outside the model band, the input the
// interview generator consumes.
func OutOfBand(devs []Deviation) []Deviation {
	out := make([]Deviation, 0, len(devs))
	for _, d := range devs {
		if d.Direction != DirectionIn {
			out = append(out, d)
		}
	}
	return out
}
