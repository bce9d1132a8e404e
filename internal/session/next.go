package session

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/talentprofile/talentprofile/internal/assessment"
	"github.com/talentprofile/talentprofile/internal/psych/irt"
	"github.com/talentprofile/talentprofile/internal/scoring"
)

// Next is the item-dispatch result: either an item to administer or a
// section boundary. When the last section exhausts, the assessment is
// finalized and Completed is set.
type Next struct {
	Item            *assessment.Item  `json:"item,omitempty"`
	Section         assessment.Domain `json:"section,omitempty"`
	ItemIndex       int               `json:"item_index"`
	SectionComplete bool              `json:"section_complete"`
	NextSection     assessment.Domain `json:"next_section,omitempty"`
	Completed       bool              `json:"completed"`
}

// NextItem selects the next item for the current section: maximum-information
// CAT for cognitive scales, deterministic sequential order for behavioral and
// interest items. On a section boundary the assessment advances and the
// caller decides whether to ask again immediately.
func (s *Service) NextItem(ctx context.Context, id string) (Next, error) {
	unlock := s.lock(id)
	defer unlock()

	a, err := s.loadLive(ctx, id)
	if err != nil {
		return Next{}, err
	}
	if a.Status != assessment.StatusInProgress {
		return Next{}, fmt.Errorf("%w: next requires an assessment in progress", assessment.ErrStateInvalid)
	}

	resps, err := s.store.ListResponses(ctx, id)
	if err != nil {
		return Next{}, err
	}

	item, err := s.selectFor(ctx, a.CurrentSection, resps)
	if err != nil {
		return Next{}, err
	}
	if item != nil {
		return Next{Item: item, Section: a.CurrentSection, ItemIndex: a.CurrentItemIndex}, nil
	}

	// section exhausted: advance, or finalize after the last one
	sections := a.Sections()
	pos := 0
	for i, sec := range sections {
		if sec == a.CurrentSection {
			pos = i
			break
		}
	}
	if pos+1 < len(sections) {
		a.CurrentSection = sections[pos+1]
		a.CurrentItemIndex = 0
		if err := s.store.UpdateAssessment(ctx, a); err != nil {
			return Next{}, err
		}
		s.record(ctx, "SectionAdvanced", a.ID, a.CurrentSection)
		return Next{SectionComplete: true, NextSection: a.CurrentSection}, nil
	}
	if _, err := s.completeLocked(ctx, id); err != nil {
		return Next{}, err
	}
	return Next{SectionComplete: true, Completed: true}, nil
}

// selectFor returns the next administrable item in the section, or nil when
// the section is exhausted.
func (s *Service) selectFor(ctx context.Context, section assessment.Domain, resps []assessment.Response) (*assessment.Item, error) {
	answered := make(map[string]bool, len(resps))
	for _, r := range resps {
		answered[r.ItemID] = true
	}
	items, err := s.store.ListItems(ctx, assessment.ItemFilter{Domain: section, ActiveOnly: true})
	if err != nil {
		return nil, err
	}

	if section == assessment.DomainCognitive {
		return s.selectCognitive(ctx, items, resps, answered)
	}

	// behavioral and interest sections run in fixed order: scale, then the
	// authored item order. Distortion items ride along flagged.
	var pool []assessment.Item
	for _, it := range items {
		if !answered[it.ID] {
			pool = append(pool, it)
		}
	}
	if len(pool) == 0 {
		return nil, nil
	}
	sort.Slice(pool, func(i, j int) bool {
		if pool[i].ScaleID != pool[j].ScaleID {
			return pool[i].ScaleID < pool[j].ScaleID
		}
		if pool[i].Order != pool[j].Order {
			return pool[i].Order < pool[j].Order
		}
		return pool[i].ID < pool[j].ID
	})
	return &pool[0], nil
}

// selectCognitive walks the cognitive scales in catalog order and runs the
// per-scale adaptive loop: estimate theta from the scale's responses so far,
// stop when the termination criterion holds, otherwise administer the most
// informative remaining item.
func (s *Service) selectCognitive(ctx context.Context, items []assessment.Item, resps []assessment.Response, answered map[string]bool) (*assessment.Item, error) {
	scales, err := s.store.ListScales(ctx)
	if err != nil {
		return nil, err
	}
	var cogScales []assessment.Scale
	for _, sc := range scales {
		if sc.Type == assessment.ScaleCognitive && len(sc.CompositeOf) == 0 {
			cogScales = append(cogScales, sc)
		}
	}
	sort.Slice(cogScales, func(i, j int) bool {
		if cogScales[i].SortOrder != cogScales[j].SortOrder {
			return cogScales[i].SortOrder < cogScales[j].SortOrder
		}
		return cogScales[i].ID < cogScales[j].ID
	})

	itemByID := make(map[string]assessment.Item, len(items))
	byScale := map[string][]assessment.Item{}
	for _, it := range items {
		itemByID[it.ID] = it
		byScale[it.ScaleID] = append(byScale[it.ScaleID], it)
	}

	for _, sc := range cogScales {
		var correct []bool
		var params []irt.Params
		for _, r := range resps {
			it, ok := itemByID[r.ItemID]
			if !ok || it.ScaleID != sc.ID {
				continue
			}
			correct = append(correct, r.IsCorrect != nil && *r.IsCorrect)
			params = append(params, it.IRT)
		}

		theta := 0.0
		if len(correct) > 0 {
			theta = scoring.EstimateTheta(correct, params, s.mapThreshold)
		}
		sumInfo := 0.0
		for _, p := range params {
			sumInfo += irt.Information(theta, p)
		}
		if irt.Terminated(len(correct), sumInfo, s.irtOpts) {
			continue
		}

		var pool []irt.Candidate
		for _, it := range byScale[sc.ID] {
			if !answered[it.ID] {
				pool = append(pool, irt.Candidate{ID: it.ID, Params: it.IRT})
			}
		}
		best, ok := irt.SelectNext(theta, pool)
		if !ok {
			continue // scale ran out of items before reaching the SEM target
		}
		it := itemByID[best.ID]
		return &it, nil
	}
	return nil, nil
}

// Respond records one answer. For cognitive items the correctness and a
// fresh theta snapshot are derived before the append; the next NextItem call
// observes this response.
func (s *Service) Respond(ctx context.Context, id, itemID string, value assessment.ResponseValue, responseTimeMs int) (assessment.Response, error) {
	unlock := s.lock(id)
	defer unlock()

	a, err := s.loadLive(ctx, id)
	if err != nil {
		return assessment.Response{}, err
	}
	if a.Status != assessment.StatusInProgress {
		return assessment.Response{}, fmt.Errorf("%w: respond requires an assessment in progress", assessment.ErrStateInvalid)
	}

	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return assessment.Response{}, err
	}
	if !item.Active {
		return assessment.Response{}, fmt.Errorf("%w: item %s is not active", assessment.ErrInputInvalid, itemID)
	}
	if !value.Matches(item.Format) {
		return assessment.Response{}, fmt.Errorf("%w: response kind %q does not fit item format %q", assessment.ErrInputInvalid, value.Kind, item.Format)
	}
	if responseTimeMs < 0 {
		return assessment.Response{}, fmt.Errorf("%w: negative response time", assessment.ErrInputInvalid)
	}

	resps, err := s.store.ListResponses(ctx, id)
	if err != nil {
		return assessment.Response{}, err
	}
	for _, r := range resps {
		if r.ItemID == itemID {
			return assessment.Response{}, fmt.Errorf("%w: item %s already answered", assessment.ErrStateInvalid, itemID)
		}
	}

	r := assessment.Response{
		ID:             uuid.NewString(),
		AssessmentID:   id,
		ItemID:         itemID,
		Value:          value,
		ResponseTimeMs: responseTimeMs,
		CreatedAt:      s.now().Unix(),
	}

	if item.Domain == assessment.DomainCognitive {
		correct := isCorrect(item, value)
		r.IsCorrect = &correct
		theta, err := s.thetaSnapshot(ctx, item, resps, correct)
		if err != nil {
			return assessment.Response{}, err
		}
		r.Theta = &theta
	}

	if err := s.store.AppendResponse(ctx, r); err != nil {
		return assessment.Response{}, err
	}
	a.CurrentItemIndex++
	if err := s.store.UpdateAssessment(ctx, a); err != nil {
		return assessment.Response{}, err
	}
	s.record(ctx, "ResponseRecorded", a.ID, r)
	return r, nil
}

func isCorrect(item assessment.Item, v assessment.ResponseValue) bool {
	switch v.Kind {
	case assessment.KindMultipleChoice:
		return normalizedEqual(v.Choice, item.CorrectAnswer)
	case assessment.KindBinary:
		return normalizedEqual(strconv.FormatBool(v.Flag), item.CorrectAnswer)
	default:
		return false
	}
}

// thetaSnapshot re-estimates ability over the item's scale including the
// response being recorded.
func (s *Service) thetaSnapshot(ctx context.Context, item assessment.Item, prior []assessment.Response, correct bool) (float64, error) {
	scaleItems, err := s.store.ListItems(ctx, assessment.ItemFilter{ScaleID: item.ScaleID})
	if err != nil {
		return 0, err
	}
	byID := make(map[string]assessment.Item, len(scaleItems))
	for _, it := range scaleItems {
		byID[it.ID] = it
	}

	var pattern []bool
	var params []irt.Params
	for _, r := range prior {
		it, ok := byID[r.ItemID]
		if !ok {
			continue
		}
		pattern = append(pattern, r.IsCorrect != nil && *r.IsCorrect)
		params = append(params, it.IRT)
	}
	pattern = append(pattern, correct)
	params = append(params, item.IRT)
	return scoring.EstimateTheta(pattern, params, s.mapThreshold), nil
}
