package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/talentprofile/talentprofile/internal/assessment"
	"github.com/talentprofile/talentprofile/internal/psych/irt"
)

/* ---------------- in-memory fake satisfying assessment.Store ---------------- */

type memStore struct {
	mu          sync.Mutex
	scales      map[string]assessment.Scale
	items       map[string]assessment.Item
	candidates  map[string]assessment.Candidate
	assessments map[string]assessment.Assessment
	responses   map[string][]assessment.Response
	scores      map[string][]assessment.ScaleScore
	models      map[string]assessment.PerformanceModel
}

func newMemStore() *memStore {
	return &memStore{
		scales:      map[string]assessment.Scale{},
		items:       map[string]assessment.Item{},
		candidates:  map[string]assessment.Candidate{},
		assessments: map[string]assessment.Assessment{},
		responses:   map[string][]assessment.Response{},
		scores:      map[string][]assessment.ScaleScore{},
		models:      map[string]assessment.PerformanceModel{},
	}
}

func (m *memStore) PutScale(_ context.Context, s assessment.Scale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scales[s.ID] = s
	return nil
}

func (m *memStore) ListScales(_ context.Context) ([]assessment.Scale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]assessment.Scale, 0, len(m.scales))
	for _, s := range m.scales {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) PutItem(_ context.Context, it assessment.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[it.ID] = it
	return nil
}

func (m *memStore) GetItem(_ context.Context, id string) (assessment.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return assessment.Item{}, fmt.Errorf("%w: item %s", assessment.ErrNotFound, id)
	}
	return it, nil
}

func (m *memStore) ListItems(_ context.Context, f assessment.ItemFilter) ([]assessment.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []assessment.Item
	for _, it := range m.items {
		if f.Domain != "" && it.Domain != f.Domain {
			continue
		}
		if f.ScaleID != "" && it.ScaleID != f.ScaleID {
			continue
		}
		if f.ActiveOnly && !it.Active {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) PutCandidate(_ context.Context, c assessment.Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates[c.ID] = c
	return nil
}

func (m *memStore) GetCandidate(_ context.Context, id string) (assessment.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.candidates[id]
	if !ok {
		return assessment.Candidate{}, fmt.Errorf("%w: candidate %s", assessment.ErrNotFound, id)
	}
	return c, nil
}

func (m *memStore) CreateAssessment(_ context.Context, a assessment.Assessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assessments[a.ID] = a
	return nil
}

func (m *memStore) GetAssessment(_ context.Context, id string) (assessment.Assessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assessments[id]
	if !ok {
		return assessment.Assessment{}, fmt.Errorf("%w: assessment %s", assessment.ErrNotFound, id)
	}
	return a, nil
}

func (m *memStore) UpdateAssessment(_ context.Context, a assessment.Assessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assessments[a.ID] = a
	return nil
}

func (m *memStore) ListAssessments(_ context.Context, opts assessment.ListOpts) ([]assessment.Assessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []assessment.Assessment
	for _, a := range m.assessments {
		if opts.CandidateID != "" && a.CandidateID != opts.CandidateID {
			continue
		}
		if opts.Status != "" && a.Status != opts.Status {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *memStore) AppendResponse(_ context.Context, r assessment.Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[r.AssessmentID] = append(m.responses[r.AssessmentID], r)
	return nil
}

func (m *memStore) ListResponses(_ context.Context, id string) ([]assessment.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]assessment.Response{}, m.responses[id]...), nil
}

func (m *memStore) PutScaleScores(_ context.Context, id string, scores []assessment.ScaleScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[id] = append([]assessment.ScaleScore{}, scores...)
	return nil
}

func (m *memStore) ListScaleScores(_ context.Context, id string) ([]assessment.ScaleScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]assessment.ScaleScore{}, m.scores[id]...), nil
}

func (m *memStore) PutModel(_ context.Context, pm assessment.PerformanceModel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.models[pm.ID] = pm
	return nil
}

func (m *memStore) GetModel(_ context.Context, id string) (assessment.PerformanceModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pm, ok := m.models[id]
	if !ok {
		return assessment.PerformanceModel{}, fmt.Errorf("%w: model %s", assessment.ErrNotFound, id)
	}
	return pm, nil
}

func (m *memStore) ListModels(_ context.Context) ([]assessment.PerformanceModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []assessment.PerformanceModel
	for _, pm := range m.models {
		out = append(out, pm)
	}
	return out, nil
}

/* ---------------- fixtures ---------------- */

func seedStore(t *testing.T) *memStore {
	t.Helper()
	st := newMemStore()
	ctx := context.Background()

	scales := []assessment.Scale{
		{ID: "numeric", Name: "Numeric Reasoning", Domain: assessment.DomainCognitive, Type: assessment.ScaleCognitive, SortOrder: 1},
		{ID: "verbal", Name: "Verbal Reasoning", Domain: assessment.DomainCognitive, Type: assessment.ScaleCognitive, SortOrder: 2},
		{ID: "learning_index", Name: "Learning Index", Domain: assessment.DomainCognitive, Type: assessment.ScaleCognitive, CompositeOf: []string{"numeric", "verbal"}},
		{ID: "assertiveness", Name: "Assertiveness", Domain: assessment.DomainBehavioral, Type: assessment.ScaleTrait},
		{ID: "social_desirability", Name: "Social Desirability", Domain: assessment.DomainBehavioral, Type: assessment.ScaleDistortion},
		{ID: "artistic", Name: "Artistic", Domain: assessment.DomainInterests, Type: assessment.ScaleInterest},
		{ID: "enterprising", Name: "Enterprising", Domain: assessment.DomainInterests, Type: assessment.ScaleInterest},
	}
	for _, s := range scales {
		if err := st.PutScale(ctx, s); err != nil {
			t.Fatal(err)
		}
	}

	for scale, prefix := range map[string]string{"numeric": "n", "verbal": "v"} {
		for i := 0; i < 8; i++ {
			id := fmt.Sprintf("%s%d", prefix, i)
			if err := st.PutItem(ctx, assessment.Item{
				ID: id, ScaleID: scale, Domain: assessment.DomainCognitive,
				Format: assessment.FormatMultipleChoice, Options: []string{"A", "B", "C", "D"},
				CorrectAnswer: "A", Active: true, Order: i,
				IRT: irt.Params{A: 1.2, B: -1.2 + 0.4*float64(i), C: 0.2},
			}); err != nil {
				t.Fatal(err)
			}
		}
	}
	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("beh%d", i)
		if err := st.PutItem(ctx, assessment.Item{
			ID: id, ScaleID: "assertiveness", Domain: assessment.DomainBehavioral,
			Format: assessment.FormatLikert, Active: true, Order: i,
		}); err != nil {
			t.Fatal(err)
		}
	}
	if err := st.PutItem(ctx, assessment.Item{
		ID: "dst0", ScaleID: "social_desirability", Domain: assessment.DomainBehavioral,
		Format: assessment.FormatLikert, Distortion: true, Active: true, Order: 0,
	}); err != nil {
		t.Fatal(err)
	}
	if err := st.PutItem(ctx, assessment.Item{
		ID: "pair0", ScaleID: "artistic", PairScaleID: "enterprising",
		Domain: assessment.DomainInterests, Format: assessment.FormatForcedChoice,
		Options: []string{"Paint a mural", "Pitch a client"}, Active: true, Order: 0,
	}); err != nil {
		t.Fatal(err)
	}

	if err := st.PutCandidate(ctx, assessment.Candidate{ID: "cand-1", Name: "Jo Tester"}); err != nil {
		t.Fatal(err)
	}
	return st
}

func newService(st *memStore, opts ...Option) *Service {
	base := []Option{WithIRTOptions(irt.Options{MinItems: 2, MaxItems: 4, TargetSEM: 0.9})}
	return New(st, append(base, opts...)...)
}

/* ---------------- tests ---------------- */

func TestCreateValidations(t *testing.T) {
	svc := newService(seedStore(t))
	ctx := context.Background()

	if _, err := svc.Create(ctx, "", assessment.TypeFull); !errors.Is(err, assessment.ErrInputInvalid) {
		t.Errorf("empty candidate: got %v", err)
	}
	if _, err := svc.Create(ctx, "cand-1", "half"); !errors.Is(err, assessment.ErrInputInvalid) {
		t.Errorf("bad type: got %v", err)
	}
	if _, err := svc.Create(ctx, "ghost", assessment.TypeFull); !errors.Is(err, assessment.ErrNotFound) {
		t.Errorf("unknown candidate: got %v", err)
	}
	a, err := svc.Create(ctx, "cand-1", assessment.TypeFull)
	if err != nil {
		t.Fatal(err)
	}
	if a.Status != assessment.StatusNotStarted || a.ID == "" {
		t.Errorf("created = %+v", a)
	}
}

func TestStartIdempotent(t *testing.T) {
	svc := newService(seedStore(t))
	ctx := context.Background()
	a, _ := svc.Create(ctx, "cand-1", assessment.TypeFull)

	s1, err := svc.Start(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if s1.Status != assessment.StatusInProgress || s1.CurrentSection != assessment.DomainCognitive {
		t.Errorf("started = %+v", s1)
	}
	s2, err := svc.Start(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if s2.StartedAt != s1.StartedAt || s2.CurrentSection != s1.CurrentSection {
		t.Errorf("second start changed state: %+v vs %+v", s2, s1)
	}
}

func TestNextRequiresInProgress(t *testing.T) {
	svc := newService(seedStore(t))
	ctx := context.Background()
	a, _ := svc.Create(ctx, "cand-1", assessment.TypeFull)
	if _, err := svc.NextItem(ctx, a.ID); !errors.Is(err, assessment.ErrStateInvalid) {
		t.Errorf("next before start: got %v", err)
	}
}

// Drive a full assessment end to end: adaptive cognitive section, sequential
// behavioral and interest sections, auto-finalize on exhaustion.
func TestFullAssessmentFlow(t *testing.T) {
	svc := newService(seedStore(t))
	ctx := context.Background()
	a, _ := svc.Create(ctx, "cand-1", assessment.TypeFull)
	if _, err := svc.Start(ctx, a.ID); err != nil {
		t.Fatal(err)
	}

	seen := map[string]bool{}
	answered := 0
	var completed bool
	for steps := 0; steps < 200; steps++ {
		nx, err := svc.NextItem(ctx, a.ID)
		if err != nil {
			t.Fatal(err)
		}
		if nx.Completed {
			completed = true
			break
		}
		if nx.SectionComplete {
			continue
		}
		it := nx.Item
		if seen[it.ID] {
			t.Fatalf("item %s served twice", it.ID)
		}
		seen[it.ID] = true

		var v assessment.ResponseValue
		switch it.Format {
		case assessment.FormatMultipleChoice:
			choice := "A"
			if answered%2 == 1 {
				choice = "B"
			}
			v = assessment.ResponseValue{Kind: assessment.KindMultipleChoice, Choice: choice}
		case assessment.FormatLikert:
			v = assessment.ResponseValue{Kind: assessment.KindLikert, Likert: 2 + answered%3}
		case assessment.FormatForcedChoice:
			v = assessment.ResponseValue{Kind: assessment.KindForcedChoice, Option: "A"}
		}
		if _, err := svc.Respond(ctx, a.ID, it.ID, v, 1200); err != nil {
			t.Fatal(err)
		}
		answered++
	}
	if !completed {
		t.Fatal("assessment never completed")
	}

	got, err := svc.Get(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != assessment.StatusCompleted || got.CompletedAt == 0 {
		t.Errorf("final state = %+v", got)
	}

	profile, err := svc.Profile(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"numeric", "verbal", "learning_index", "assertiveness", "social_desirability", "artistic", "enterprising"} {
		if _, ok := profile[want]; !ok {
			t.Errorf("profile missing scale %s (have %d scores)", want, len(profile))
		}
	}
	if profile["numeric"].Theta == nil {
		t.Error("cognitive score missing theta")
	}
}

func TestRespondValidations(t *testing.T) {
	svc := newService(seedStore(t))
	ctx := context.Background()
	a, _ := svc.Create(ctx, "cand-1", assessment.TypeFull)
	svc.Start(ctx, a.ID)

	if _, err := svc.Respond(ctx, a.ID, "ghost", assessment.ResponseValue{Kind: assessment.KindMultipleChoice, Choice: "A"}, 10); !errors.Is(err, assessment.ErrNotFound) {
		t.Errorf("unknown item: got %v", err)
	}
	if _, err := svc.Respond(ctx, a.ID, "n0", assessment.ResponseValue{Kind: assessment.KindLikert, Likert: 3}, 10); !errors.Is(err, assessment.ErrInputInvalid) {
		t.Errorf("kind mismatch: got %v", err)
	}
	if _, err := svc.Respond(ctx, a.ID, "n0", assessment.ResponseValue{Kind: assessment.KindMultipleChoice, Choice: "A"}, -5); !errors.Is(err, assessment.ErrInputInvalid) {
		t.Errorf("negative time: got %v", err)
	}

	r, err := svc.Respond(ctx, a.ID, "n0", assessment.ResponseValue{Kind: assessment.KindMultipleChoice, Choice: " a "}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if r.IsCorrect == nil || !*r.IsCorrect {
		t.Error("trimmed case-insensitive answer should be correct")
	}
	if r.Theta == nil {
		t.Error("cognitive response missing theta snapshot")
	}

	if _, err := svc.Respond(ctx, a.ID, "n0", assessment.ResponseValue{Kind: assessment.KindMultipleChoice, Choice: "A"}, 10); !errors.Is(err, assessment.ErrStateInvalid) {
		t.Errorf("double answer: got %v", err)
	}
}

func TestCompleteIdempotent(t *testing.T) {
	svc := newService(seedStore(t))
	ctx := context.Background()
	a, _ := svc.Create(ctx, "cand-1", assessment.TypeBehavioralOnly)
	svc.Start(ctx, a.ID)

	for _, id := range []string{"beh0", "beh1", "beh2", "beh3"} {
		if _, err := svc.Respond(ctx, a.ID, id, assessment.ResponseValue{Kind: assessment.KindLikert, Likert: 4}, 10); err != nil {
			t.Fatal(err)
		}
	}
	first, err := svc.Complete(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Complete(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Fatalf("idempotent complete changed score count: %d vs %d", len(first), len(second))
	}
	for k, v := range first {
		w := second[k]
		if v.ID != w.ID || v.Sten != w.Sten || v.Raw != w.Raw || v.ComputedAt != w.ComputedAt {
			t.Errorf("scale %s scores differ between completes: %+v vs %+v", k, v, w)
		}
	}
}

func TestExpiryObserved(t *testing.T) {
	st := seedStore(t)
	now := time.Now()
	clock := func() time.Time { return now }
	svc := newService(st, WithClock(clock), WithExpiry(time.Hour))
	ctx := context.Background()

	a, _ := svc.Create(ctx, "cand-1", assessment.TypeFull)
	svc.Start(ctx, a.ID)
	if _, err := svc.Respond(ctx, a.ID, "n0", assessment.ResponseValue{Kind: assessment.KindMultipleChoice, Choice: "A"}, 10); err != nil {
		t.Fatal(err)
	}

	now = now.Add(2 * time.Hour)
	if _, err := svc.NextItem(ctx, a.ID); !errors.Is(err, assessment.ErrExpired) {
		t.Errorf("next past expiry: got %v", err)
	}
	got, _ := svc.Get(ctx, a.ID)
	if got.Status != assessment.StatusExpired {
		t.Errorf("status = %s, want expired", got.Status)
	}
	// partial responses preserved
	resps, _ := st.ListResponses(ctx, a.ID)
	if len(resps) != 1 {
		t.Errorf("responses = %d, want 1 preserved", len(resps))
	}
	if _, err := svc.Respond(ctx, a.ID, "n1", assessment.ResponseValue{Kind: assessment.KindMultipleChoice, Choice: "A"}, 10); !errors.Is(err, assessment.ErrExpired) {
		t.Errorf("respond past expiry: got %v", err)
	}
}

// The response recorded by Respond must be visible to the NextItem call that
// follows it: the same item is never served twice.
func TestNextObservesRespond(t *testing.T) {
	svc := newService(seedStore(t))
	ctx := context.Background()
	a, _ := svc.Create(ctx, "cand-1", assessment.TypeCognitiveOnly)
	svc.Start(ctx, a.ID)

	nx, err := svc.NextItem(ctx, a.ID)
	if err != nil || nx.Item == nil {
		t.Fatalf("next: %+v err=%v", nx, err)
	}
	first := nx.Item.ID
	if _, err := svc.Respond(ctx, a.ID, first, assessment.ResponseValue{Kind: assessment.KindMultipleChoice, Choice: "A"}, 10); err != nil {
		t.Fatal(err)
	}
	nx, err = svc.NextItem(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if nx.Item != nil && nx.Item.ID == first {
		t.Errorf("item %s served again after being answered", first)
	}
}

func TestMatchAndInterviewFlow(t *testing.T) {
	st := seedStore(t)
	svc := newService(st)
	ctx := context.Background()

	model := assessment.PerformanceModel{
		ID:   "model-1",
		Name: "Field Sales",
		Ranges: []assessment.ModelScaleRange{
			{ScaleID: "assertiveness", TargetMin: 1, TargetMax: 3, Weight: 1},
			{ScaleID: "numeric", TargetMin: 4, TargetMax: 7, Weight: 1},
		},
	}
	if err := st.PutModel(ctx, model); err != nil {
		t.Fatal(err)
	}

	a, _ := svc.Create(ctx, "cand-1", assessment.TypeBehavioralOnly)
	svc.Start(ctx, a.ID)
	for _, id := range []string{"beh0", "beh1", "beh2", "beh3", "dst0"} {
		if _, err := svc.Respond(ctx, a.ID, id, assessment.ResponseValue{Kind: assessment.KindLikert, Likert: 5}, 10); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := svc.Match(ctx, a.ID, "model-1"); !errors.Is(err, assessment.ErrStateInvalid) {
		t.Errorf("match before complete: got %v", err)
	}
	if _, err := svc.Complete(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Match(ctx, a.ID, "ghost"); !errors.Is(err, assessment.ErrNotFound) {
		t.Errorf("unknown model: got %v", err)
	}

	res, err := svc.Match(ctx, a.ID, "model-1")
	if err != nil {
		t.Fatal(err)
	}
	// all-5 assertiveness is far above the [1,3] band
	var dev bool
	for _, d := range res.Deviations {
		if d.ScaleID == "assertiveness" && d.Direction == "high" {
			dev = true
		}
	}
	if !dev {
		t.Errorf("expected high assertiveness deviation, got %+v", res.Deviations)
	}
	// no cognitive section was administered: numeric is missing, not fatal
	if len(res.MissingScales) != 1 || res.MissingScales[0] != "numeric" {
		t.Errorf("missing scales = %v", res.MissingScales)
	}
	if res.Validity == "" {
		t.Error("match result should carry a validity flag")
	}

	blocks, err := svc.InterviewQuestions(ctx, a.ID, "model-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) == 0 {
		t.Fatal("expected interview blocks for the out-of-band scale")
	}
	if blocks[0].ScaleID != "assertiveness" || len(blocks[0].Questions) == 0 {
		t.Errorf("block = %+v", blocks[0])
	}
}

func TestEventRecorderSeesLifecycle(t *testing.T) {
	st := seedStore(t)
	rec := &memRecorder{}
	svc := newService(st, WithRecorder(rec))
	ctx := context.Background()

	a, _ := svc.Create(ctx, "cand-1", assessment.TypeBehavioralOnly)
	svc.Start(ctx, a.ID)
	svc.Respond(ctx, a.ID, "beh0", assessment.ResponseValue{Kind: assessment.KindLikert, Likert: 3}, 10)
	svc.Complete(ctx, a.ID)

	want := []string{"AssessmentCreated", "AssessmentStarted", "ResponseRecorded", "AssessmentCompleted"}
	if len(rec.types) != len(want) {
		t.Fatalf("events = %v, want %v", rec.types, want)
	}
	for i := range want {
		if rec.types[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, rec.types[i], want[i])
		}
	}
}

type memRecorder struct {
	mu    sync.Mutex
	types []string
}

func (r *memRecorder) Append(_ context.Context, typ, _ string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, typ)
	return nil
}
