package scoring

import (
	"math"
	"sort"

	"github.com/talentprofile/talentprofile/internal/assessment"
	"github.com/talentprofile/talentprofile/internal/psych/stats"
)

// scoreInterests converts the ipsative forced-choice sweep into normative
// scores: each pair response awards a win to the chosen option's scale, the
// scales rank by wins, and the rank percentile maps through the inverse
// normal onto the STEN scale.
func (e *Engine) scoreInterests(in Input) []assessment.ScaleScore {
	wins := map[string]int{}
	appearances := map[string]int{}
	var order []string
	for _, sc := range in.Scales {
		if sc.Type == assessment.ScaleInterest {
			wins[sc.ID] = 0
			order = append(order, sc.ID)
		}
	}
	if len(order) == 0 {
		return nil
	}
	sort.Strings(order)

	answered := 0
	for _, r := range in.Responses {
		it, ok := in.Items[r.ItemID]
		if !ok || it.Domain != assessment.DomainInterests || r.Value.Kind != assessment.KindForcedChoice {
			continue
		}
		winner := it.ScaleID
		if r.Value.Option == "B" {
			winner = it.PairScaleID
		}
		if _, known := wins[winner]; known {
			wins[winner]++
		}
		appearances[it.ScaleID]++
		appearances[it.PairScaleID]++
		answered++
	}
	if answered == 0 {
		return nil
	}

	// rank descending by wins, ties by scale id
	ranked := append([]string{}, order...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if wins[ranked[i]] != wins[ranked[j]] {
			return wins[ranked[i]] > wins[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})

	n := len(ranked)
	out := make([]assessment.ScaleScore, 0, n)
	for i, id := range ranked {
		rank := i + 1
		pct := (float64(n) - float64(rank) + 0.5) / float64(n) * 100.0
		z := stats.NormalInverse(pct / 100.0)
		sten := stats.ClampSten(int(math.Round(5.5 + 2.0*z)))
		out = append(out, assessment.ScaleScore{
			ScaleID:    id,
			Raw:        float64(wins[id]),
			Sten:       sten,
			Percentile: int(math.Round(pct)),
			ItemCount:  appearances[id],
		})
	}
	return out
}

// TopInterests returns the ids of the strongest interest scales, highest STEN
// first; ties break on higher raw win count, then on scale id.
func TopInterests(scores []assessment.ScaleScore, scales []assessment.Scale, n int) []string {
	interest := map[string]bool{}
	for _, sc := range scales {
		if sc.Type == assessment.ScaleInterest {
			interest[sc.ID] = true
		}
	}
	var pool []assessment.ScaleScore
	for _, s := range scores {
		if interest[s.ScaleID] {
			pool = append(pool, s)
		}
	}
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].Sten != pool[j].Sten {
			return pool[i].Sten > pool[j].Sten
		}
		if pool[i].Raw != pool[j].Raw {
			return pool[i].Raw > pool[j].Raw
		}
		return pool[i].ScaleID < pool[j].ScaleID
	})
	if n > len(pool) {
		n = len(pool)
	}
	out := make([]string, 0, n)
	for _, s := range pool[:n] {
		out = append(out, s.ScaleID)
	}
	return out
}
