// Package session drives an examinee through an assessment: section walk,
// adaptive and sequential item dispatch, response collection and profile
// finalization. State is authoritative in the Store; a per-assessment lock
// serializes concurrent operations on the same assessment.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talentprofile/talentprofile/internal/assessment"
	"github.com/talentprofile/talentprofile/internal/interview"
	"github.com/talentprofile/talentprofile/internal/psych/irt"
	"github.com/talentprofile/talentprofile/internal/scoring"
)

// Recorder receives lifecycle events. Implementations must be safe for
// concurrent use; a nil Recorder disables event logging.
type Recorder interface {
	Append(ctx context.Context, typ, key string, data any) error
}

type Option func(*Service)

func WithIRTOptions(o irt.Options) Option     { return func(s *Service) { s.irtOpts = o } }
func WithEngine(e *scoring.Engine) Option     { return func(s *Service) { s.engine = e } }
func WithCatalog(c *interview.Catalog) Option { return func(s *Service) { s.catalog = c } }
func WithRecorder(r Recorder) Option          { return func(s *Service) { s.events = r } }
func WithClock(now func() time.Time) Option   { return func(s *Service) { s.now = now } }
func WithExpiry(d time.Duration) Option       { return func(s *Service) { s.expiry = d } }
func WithMAPThreshold(n int) Option           { return func(s *Service) { s.mapThreshold = n } }

type Service struct {
	store        assessment.Store
	engine       *scoring.Engine
	catalog      *interview.Catalog
	events       Recorder
	irtOpts      irt.Options
	mapThreshold int
	expiry       time.Duration
	now          func() time.Time

	locks sync.Map // assessment id -> *sync.Mutex
}

func New(store assessment.Store, opts ...Option) *Service {
	s := &Service{
		store:        store,
		engine:       scoring.NewEngine(),
		catalog:      interview.Default(),
		irtOpts:      irt.DefaultOptions(),
		mapThreshold: 5,
		expiry:       14 * 24 * time.Hour,
		now:          time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) lock(id string) func() {
	mu, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

func (s *Service) record(ctx context.Context, typ, key string, data any) {
	if s.events == nil {
		return
	}
	_ = s.events.Append(ctx, typ, key, data)
}

// Create registers a new assessment for a candidate.
func (s *Service) Create(ctx context.Context, candidateID string, typ assessment.AssessmentType) (assessment.Assessment, error) {
	if strings.TrimSpace(candidateID) == "" {
		return assessment.Assessment{}, fmt.Errorf("%w: candidate id required", assessment.ErrInputInvalid)
	}
	switch typ {
	case assessment.TypeFull, assessment.TypeCognitiveOnly, assessment.TypeBehavioralOnly, assessment.TypeInterestsOnly:
	default:
		return assessment.Assessment{}, fmt.Errorf("%w: unknown assessment type %q", assessment.ErrInputInvalid, typ)
	}
	if _, err := s.store.GetCandidate(ctx, candidateID); err != nil {
		return assessment.Assessment{}, err
	}

	now := s.now()
	a := assessment.Assessment{
		ID:          uuid.NewString(),
		CandidateID: candidateID,
		Type:        typ,
		Status:      assessment.StatusNotStarted,
		ExpiresAt:   now.Add(s.expiry).Unix(),
		CreatedAt:   now.Unix(),
	}
	if err := s.store.CreateAssessment(ctx, a); err != nil {
		return assessment.Assessment{}, err
	}
	s.record(ctx, "AssessmentCreated", a.ID, a)
	return a, nil
}

// Start moves a fresh assessment into its first section. Calling Start on an
// assessment already in progress returns the current state unchanged.
func (s *Service) Start(ctx context.Context, id string) (assessment.Assessment, error) {
	unlock := s.lock(id)
	defer unlock()

	a, err := s.loadLive(ctx, id)
	if err != nil {
		return assessment.Assessment{}, err
	}
	switch a.Status {
	case assessment.StatusInProgress:
		return a, nil
	case assessment.StatusCompleted:
		return assessment.Assessment{}, fmt.Errorf("%w: assessment %s already completed", assessment.ErrStateInvalid, id)
	}

	a.Status = assessment.StatusInProgress
	a.StartedAt = s.now().Unix()
	a.CurrentSection = a.Sections()[0]
	a.CurrentItemIndex = 0
	if err := s.store.UpdateAssessment(ctx, a); err != nil {
		return assessment.Assessment{}, err
	}
	s.record(ctx, "AssessmentStarted", a.ID, a)
	return a, nil
}

// loadLive fetches the assessment and observes expiry: an assessment past
// its deadline flips to expired on the spot and the operation fails with
// ErrExpired. Partial responses are preserved.
func (s *Service) loadLive(ctx context.Context, id string) (assessment.Assessment, error) {
	a, err := s.store.GetAssessment(ctx, id)
	if err != nil {
		return assessment.Assessment{}, err
	}
	if a.Status == assessment.StatusExpired {
		return assessment.Assessment{}, fmt.Errorf("%w: %s", assessment.ErrExpired, id)
	}
	if a.Status == assessment.StatusCompleted {
		return a, nil
	}
	if a.ExpiresAt > 0 && s.now().Unix() > a.ExpiresAt {
		a.Status = assessment.StatusExpired
		if err := s.store.UpdateAssessment(ctx, a); err != nil {
			return assessment.Assessment{}, err
		}
		s.record(ctx, "AssessmentExpired", a.ID, a)
		return assessment.Assessment{}, fmt.Errorf("%w: %s", assessment.ErrExpired, id)
	}
	return a, nil
}

// Complete finalizes the profile: every administered scale gets its
// ScaleScore row. Idempotent; a second call returns the stored scores.
func (s *Service) Complete(ctx context.Context, id string) (map[string]assessment.ScaleScore, error) {
	unlock := s.lock(id)
	defer unlock()
	return s.completeLocked(ctx, id)
}

func (s *Service) completeLocked(ctx context.Context, id string) (map[string]assessment.ScaleScore, error) {
	a, err := s.loadLive(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == assessment.StatusCompleted {
		return s.scoresMap(ctx, id)
	}
	if a.Status != assessment.StatusInProgress {
		return nil, fmt.Errorf("%w: complete requires an assessment in progress", assessment.ErrStateInvalid)
	}

	in, err := s.scoringInput(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := s.engine.Score(in)
	if err != nil {
		return nil, err
	}

	now := s.now().Unix()
	for i := range res.Scores {
		res.Scores[i].ID = uuid.NewString()
		res.Scores[i].AssessmentID = id
		res.Scores[i].ComputedAt = now
	}
	if err := s.store.PutScaleScores(ctx, id, res.Scores); err != nil {
		return nil, err
	}

	a.Status = assessment.StatusCompleted
	a.CompletedAt = now
	if err := s.store.UpdateAssessment(ctx, a); err != nil {
		return nil, err
	}
	s.record(ctx, "AssessmentCompleted", a.ID, res.Validity)

	out := make(map[string]assessment.ScaleScore, len(res.Scores))
	for _, sc := range res.Scores {
		out[sc.ScaleID] = sc
	}
	return out, nil
}

func (s *Service) scoresMap(ctx context.Context, id string) (map[string]assessment.ScaleScore, error) {
	scores, err := s.store.ListScaleScores(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make(map[string]assessment.ScaleScore, len(scores))
	for _, sc := range scores {
		out[sc.ScaleID] = sc
	}
	return out, nil
}

func (s *Service) scoringInput(ctx context.Context, id string) (scoring.Input, error) {
	scales, err := s.store.ListScales(ctx)
	if err != nil {
		return scoring.Input{}, err
	}
	items, err := s.store.ListItems(ctx, assessment.ItemFilter{})
	if err != nil {
		return scoring.Input{}, err
	}
	resps, err := s.store.ListResponses(ctx, id)
	if err != nil {
		return scoring.Input{}, err
	}
	byID := make(map[string]assessment.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	return scoring.Input{Scales: scales, Items: byID, Responses: resps}, nil
}

// Get returns the assessment without mutating it.
func (s *Service) Get(ctx context.Context, id string) (assessment.Assessment, error) {
	return s.store.GetAssessment(ctx, id)
}

// Profile returns the finalized scores of a completed assessment.
func (s *Service) Profile(ctx context.Context, id string) (map[string]assessment.ScaleScore, error) {
	a, err := s.store.GetAssessment(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status != assessment.StatusCompleted {
		return nil, fmt.Errorf("%w: assessment %s not completed", assessment.ErrStateInvalid, id)
	}
	return s.scoresMap(ctx, id)
}

// normalizedEqual is the cognitive correctness rule: exact match after
// trimming and case folding.
func normalizedEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
