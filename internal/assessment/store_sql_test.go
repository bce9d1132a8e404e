package assessment_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/talentprofile/talentprofile/internal/assessment"
	"github.com/talentprofile/talentprofile/internal/db"
	"github.com/talentprofile/talentprofile/internal/psych/irt"
)

func openStore(t *testing.T) *assessment.SQLStore {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "store_test.db")
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })
	return assessment.NewSQLStore(dbh, "sqlite")
}

func TestSQLStoreScaleAndItemRoundTrip(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	sc := assessment.Scale{
		ID: "verbal", Name: "Verbal Reasoning",
		Domain: assessment.DomainCognitive, Type: assessment.ScaleCognitive, SortOrder: 1,
	}
	if err := st.PutScale(ctx, sc); err != nil {
		t.Fatal(err)
	}
	comp := assessment.Scale{
		ID: "learning_index", Name: "Learning Index",
		Domain: assessment.DomainCognitive, Type: assessment.ScaleCognitive,
		CompositeOf: []string{"verbal"}, SortOrder: 2,
	}
	if err := st.PutScale(ctx, comp); err != nil {
		t.Fatal(err)
	}
	scales, err := st.ListScales(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(scales) != 2 || scales[0].ID != "verbal" {
		t.Fatalf("scales = %+v", scales)
	}
	if len(scales[1].CompositeOf) != 1 || scales[1].CompositeOf[0] != "verbal" {
		t.Errorf("composite list lost in round trip: %+v", scales[1])
	}

	it := assessment.Item{
		ID: "vr-1", ScaleID: "verbal", Text: "FAST is to SLOW as HOT is to:",
		Format: assessment.FormatMultipleChoice, Options: []string{"Cold", "Warm"},
		CorrectAnswer: "Cold", IRT: irt.Params{A: 1.1, B: 0.2, C: 0.2},
		Domain: assessment.DomainCognitive, Active: true, Order: 1,
	}
	if err := st.PutItem(ctx, it); err != nil {
		t.Fatal(err)
	}
	got, err := st.GetItem(ctx, "vr-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.CorrectAnswer != "Cold" || got.IRT.A != 1.1 || !got.Active {
		t.Errorf("item round trip = %+v", got)
	}
	if _, err := st.GetItem(ctx, "nope"); !errors.Is(err, assessment.ErrNotFound) {
		t.Errorf("missing item: got %v", err)
	}

	inactive := it
	inactive.ID = "vr-2"
	inactive.Active = false
	if err := st.PutItem(ctx, inactive); err != nil {
		t.Fatal(err)
	}
	active, err := st.ListItems(ctx, assessment.ItemFilter{Domain: assessment.DomainCognitive, ActiveOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].ID != "vr-1" {
		t.Errorf("active filter = %+v", active)
	}
}

func TestSQLStoreAssessmentLifecycle(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	if err := st.PutCandidate(ctx, assessment.Candidate{ID: "c1", Name: "Sam Pole", CreatedAt: 100}); err != nil {
		t.Fatal(err)
	}
	if _, err := st.GetCandidate(ctx, "ghost"); !errors.Is(err, assessment.ErrNotFound) {
		t.Errorf("missing candidate: got %v", err)
	}

	a := assessment.Assessment{
		ID: "a1", CandidateID: "c1", Type: assessment.TypeFull,
		Status: assessment.StatusNotStarted, ExpiresAt: 9999999999, CreatedAt: 100,
	}
	if err := st.CreateAssessment(ctx, a); err != nil {
		t.Fatal(err)
	}
	a.Status = assessment.StatusInProgress
	a.CurrentSection = assessment.DomainCognitive
	a.StartedAt = 101
	if err := st.UpdateAssessment(ctx, a); err != nil {
		t.Fatal(err)
	}
	got, err := st.GetAssessment(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != assessment.StatusInProgress || got.CurrentSection != assessment.DomainCognitive {
		t.Errorf("assessment round trip = %+v", got)
	}
	if err := st.UpdateAssessment(ctx, assessment.Assessment{ID: "ghost"}); !errors.Is(err, assessment.ErrNotFound) {
		t.Errorf("update missing: got %v", err)
	}

	listed, err := st.ListAssessments(ctx, assessment.ListOpts{CandidateID: "c1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 || listed[0].ID != "a1" {
		t.Errorf("listing = %+v", listed)
	}
}

// Responses must come back in append order regardless of id ordering.
func TestSQLStoreResponseOrdering(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	if err := st.PutCandidate(ctx, assessment.Candidate{ID: "c1", Name: "n", CreatedAt: 1}); err != nil {
		t.Fatal(err)
	}
	if err := st.PutScale(ctx, assessment.Scale{ID: "s1", Name: "S", Domain: assessment.DomainBehavioral, Type: assessment.ScaleTrait}); err != nil {
		t.Fatal(err)
	}
	if err := st.CreateAssessment(ctx, assessment.Assessment{ID: "a1", CandidateID: "c1", Type: assessment.TypeFull, Status: assessment.StatusInProgress, CreatedAt: 1}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		itemID := fmt.Sprintf("it-%d", i)
		if err := st.PutItem(ctx, assessment.Item{
			ID: itemID, ScaleID: "s1", Format: assessment.FormatLikert,
			Domain: assessment.DomainBehavioral, Active: true, Order: i,
		}); err != nil {
			t.Fatal(err)
		}
		// descending response ids, ascending append order
		r := assessment.Response{
			ID:           fmt.Sprintf("r-%d", 9-i),
			AssessmentID: "a1",
			ItemID:       itemID,
			Value:        assessment.ResponseValue{Kind: assessment.KindLikert, Likert: 1 + i%5},
			CreatedAt:    int64(1000 + i),
		}
		if err := st.AppendResponse(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	resps, err := st.ListResponses(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if len(resps) != 5 {
		t.Fatalf("responses = %d, want 5", len(resps))
	}
	for i, r := range resps {
		if r.ItemID != fmt.Sprintf("it-%d", i) {
			t.Errorf("position %d: item %s, want it-%d", i, r.ItemID, i)
		}
		if r.Value.Kind != assessment.KindLikert {
			t.Errorf("value kind lost: %+v", r.Value)
		}
	}

	// the (assessment, item) pair is unique: a second answer must fail
	dup := assessment.Response{
		ID: "r-dup", AssessmentID: "a1", ItemID: "it-0",
		Value: assessment.ResponseValue{Kind: assessment.KindLikert, Likert: 2}, CreatedAt: 2000,
	}
	if err := st.AppendResponse(ctx, dup); err == nil {
		t.Error("duplicate (assessment, item) response accepted")
	}
}

func TestSQLStoreScoresAndModels(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	if err := st.PutCandidate(ctx, assessment.Candidate{ID: "c1", Name: "n", CreatedAt: 1}); err != nil {
		t.Fatal(err)
	}
	if err := st.PutScale(ctx, assessment.Scale{ID: "s1", Name: "S", Domain: assessment.DomainBehavioral, Type: assessment.ScaleTrait}); err != nil {
		t.Fatal(err)
	}
	if err := st.CreateAssessment(ctx, assessment.Assessment{ID: "a1", CandidateID: "c1", Type: assessment.TypeFull, Status: assessment.StatusCompleted, CreatedAt: 1}); err != nil {
		t.Fatal(err)
	}

	theta := 0.75
	scores := []assessment.ScaleScore{
		{ID: "sc1", AssessmentID: "a1", ScaleID: "s1", Raw: 12, Sten: 7, Percentile: 76, Theta: &theta, ItemCount: 4, ComputedAt: 999},
	}
	if err := st.PutScaleScores(ctx, "a1", scores); err != nil {
		t.Fatal(err)
	}
	// overwrite must replace, not accumulate
	if err := st.PutScaleScores(ctx, "a1", scores); err != nil {
		t.Fatal(err)
	}
	got, err := st.ListScaleScores(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Sten != 7 || got[0].Theta == nil || *got[0].Theta != 0.75 {
		t.Errorf("scores round trip = %+v", got)
	}

	m := assessment.PerformanceModel{
		ID: "m1", Name: "Role", Template: true,
		Ranges: []assessment.ModelScaleRange{{ScaleID: "s1", TargetMin: 4, TargetMax: 7, Weight: 1.5}},
	}
	if err := st.PutModel(ctx, m); err != nil {
		t.Fatal(err)
	}
	gm, err := st.GetModel(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if len(gm.Ranges) != 1 || gm.Ranges[0].Weight != 1.5 {
		t.Errorf("model round trip = %+v", gm)
	}
	if _, err := st.GetModel(ctx, "ghost"); !errors.Is(err, assessment.ErrNotFound) {
		t.Errorf("missing model: got %v", err)
	}

	bad := m
	bad.ID = "m2"
	bad.Ranges = []assessment.ModelScaleRange{{ScaleID: "s1", TargetMin: 8, TargetMax: 3, Weight: 1}}
	if err := st.PutModel(ctx, bad); !errors.Is(err, assessment.ErrInputInvalid) {
		t.Errorf("inverted band accepted: %v", err)
	}
}
