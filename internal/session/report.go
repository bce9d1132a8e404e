package session

import (
	"context"
	"fmt"
	"sort"

	"github.com/talentprofile/talentprofile/internal/assessment"
	"github.com/talentprofile/talentprofile/internal/interview"
	"github.com/talentprofile/talentprofile/internal/match"
	"github.com/talentprofile/talentprofile/internal/scoring"
)

// Match scores a completed assessment against a performance model. Missing
// scale scores reduce coverage, not validity; an invalid distortion verdict
// flags the result so callers can refuse to act on it.
func (s *Service) Match(ctx context.Context, assessmentID, modelID string) (match.Result, error) {
	a, err := s.store.GetAssessment(ctx, assessmentID)
	if err != nil {
		return match.Result{}, err
	}
	if a.Status != assessment.StatusCompleted {
		return match.Result{}, fmt.Errorf("%w: assessment %s not completed", assessment.ErrStateInvalid, assessmentID)
	}
	model, err := s.store.GetModel(ctx, modelID)
	if err != nil {
		return match.Result{}, err
	}
	scores, err := s.store.ListScaleScores(ctx, assessmentID)
	if err != nil {
		return match.Result{}, err
	}
	scales, err := s.store.ListScales(ctx)
	if err != nil {
		return match.Result{}, err
	}

	res := match.Compute(scores, scales, model)
	res.AssessmentID = assessmentID
	res.Validity = string(validityOf(scores, scales))
	return res, nil
}

// validityOf recovers the distortion category from the stored profile.
func validityOf(scores []assessment.ScaleScore, scales []assessment.Scale) scoring.DistortionCategory {
	distortion := map[string]bool{}
	for _, sc := range scales {
		if sc.Type == assessment.ScaleDistortion {
			distortion[sc.ID] = true
		}
	}
	for _, s := range scores {
		if distortion[s.ScaleID] {
			return scoring.CategorizeDistortion(s.Sten)
		}
	}
	return scoring.DistortionValid
}

// InterviewQuestions generates probe blocks for every scale outside the
// model band, ordered by scale id.
func (s *Service) InterviewQuestions(ctx context.Context, assessmentID, modelID string) ([]interview.Block, error) {
	res, err := s.Match(ctx, assessmentID, modelID)
	if err != nil {
		return nil, err
	}
	devs := match.OutOfBand(res.Deviations)
	sort.Slice(devs, func(i, j int) bool { return devs[i].ScaleID < devs[j].ScaleID })
	return interview.Generate(s.catalog, devs), nil
}
