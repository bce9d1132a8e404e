package seed

import (
	"context"
	"testing"

	"github.com/talentprofile/talentprofile/internal/assessment"
)

type captureStore struct {
	assessment.Store
	scales []assessment.Scale
	items  []assessment.Item
	models []assessment.PerformanceModel
}

func (c *captureStore) PutScale(_ context.Context, s assessment.Scale) error {
	c.scales = append(c.scales, s)
	return nil
}
func (c *captureStore) PutItem(_ context.Context, it assessment.Item) error {
	c.items = append(c.items, it)
	return nil
}
func (c *captureStore) PutModel(_ context.Context, m assessment.PerformanceModel) error {
	c.models = append(c.models, m)
	return nil
}
func (c *captureStore) ListScales(_ context.Context) ([]assessment.Scale, error) {
	return c.scales, nil
}

func TestLoadEmbeddedCatalog(t *testing.T) {
	st := &captureStore{}
	if err := Load(context.Background(), st); err != nil {
		t.Fatal(err)
	}

	byType := map[assessment.ScaleType]int{}
	for _, s := range st.scales {
		byType[s.Type]++
	}
	if byType[assessment.ScaleCognitive] != 5 { // 4 sub-scales + composite
		t.Errorf("cognitive scales = %d, want 5", byType[assessment.ScaleCognitive])
	}
	if byType[assessment.ScaleTrait] != 11 {
		t.Errorf("trait scales = %d, want 11", byType[assessment.ScaleTrait])
	}
	if byType[assessment.ScaleInterest] != 6 {
		t.Errorf("interest scales = %d, want 6", byType[assessment.ScaleInterest])
	}
	if byType[assessment.ScaleDistortion] != 1 {
		t.Errorf("distortion scales = %d, want 1", byType[assessment.ScaleDistortion])
	}

	var composite assessment.Scale
	for _, s := range st.scales {
		if s.ID == "learning_index" {
			composite = s
		}
	}
	if len(composite.CompositeOf) != 4 {
		t.Errorf("learning index composite of %d scales, want 4", len(composite.CompositeOf))
	}

	pairSeen := map[string]bool{}
	for _, it := range st.items {
		if !it.Active {
			t.Errorf("item %s seeded inactive", it.ID)
		}
		switch it.Domain {
		case assessment.DomainCognitive:
			if it.CorrectAnswer == "" {
				t.Errorf("cognitive item %s has no answer key", it.ID)
			}
			hit := false
			for _, o := range it.Options {
				if o == it.CorrectAnswer {
					hit = true
				}
			}
			if !hit {
				t.Errorf("item %s: correct answer %q not among options", it.ID, it.CorrectAnswer)
			}
		case assessment.DomainInterests:
			k := it.ScaleID + "|" + it.PairScaleID
			if pairSeen[k] {
				t.Errorf("duplicate interest pairing %s", k)
			}
			pairSeen[k] = true
		default:
			if it.CorrectAnswer != "" {
				t.Errorf("behavioral item %s carries an answer key", it.ID)
			}
		}
	}
	// all 15 distinct pairings over 6 interest scales
	if len(pairSeen) != 15 {
		t.Errorf("interest pairings = %d, want 15", len(pairSeen))
	}

	if len(st.models) != 2 {
		t.Fatalf("models = %d, want 2 templates", len(st.models))
	}
	for _, m := range st.models {
		if !m.Template {
			t.Errorf("model %s should be a template", m.ID)
		}
		if err := m.Validate(); err != nil {
			t.Errorf("model %s invalid: %v", m.ID, err)
		}
	}
}

func TestNeeded(t *testing.T) {
	st := &captureStore{}
	need, err := Needed(context.Background(), st)
	if err != nil || !need {
		t.Errorf("empty store should need seeding: %v %v", need, err)
	}
	st.scales = append(st.scales, assessment.Scale{ID: "x"})
	need, err = Needed(context.Background(), st)
	if err != nil || need {
		t.Errorf("seeded store should not need seeding: %v %v", need, err)
	}
}
