// Package seed loads the built-in scale catalog, item bank and performance
// model templates into an empty store on first boot.
package seed

import (
	"context"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/talentprofile/talentprofile/internal/assessment"
	"github.com/talentprofile/talentprofile/internal/psych/irt"
)

//go:embed data.yaml
var dataYAML []byte

type itemSeed struct {
	ID            string             `yaml:"id"`
	ScaleID       string             `yaml:"scale_id"`
	Text          string             `yaml:"text"`
	Format        string             `yaml:"format"`
	Options       []string           `yaml:"options"`
	CorrectAnswer string             `yaml:"correct_answer"`
	A             float64            `yaml:"a"`
	B             float64            `yaml:"b"`
	C             float64            `yaml:"c"`
	Domain        string             `yaml:"domain"`
	PairScaleID   string             `yaml:"pair_scale_id"`
	Loadings      map[string]float64 `yaml:"loadings"`
	ReverseKeyed  bool               `yaml:"reverse_keyed"`
	Distortion    bool               `yaml:"distortion"`
	Order         int                `yaml:"order"`
}

type scaleSeed struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Domain      string   `yaml:"domain"`
	Type        string   `yaml:"type"`
	CompositeOf []string `yaml:"composite_of"`
	SortOrder   int      `yaml:"sort_order"`
}

type modelSeed struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
	Template bool   `yaml:"template"`
	Ranges   []struct {
		ScaleID   string  `yaml:"scale_id"`
		TargetMin int     `yaml:"target_min"`
		TargetMax int     `yaml:"target_max"`
		Weight    float64 `yaml:"weight"`
	} `yaml:"ranges"`
}

type dataFile struct {
	Scales []scaleSeed `yaml:"scales"`
	Items  []itemSeed  `yaml:"items"`
	Models []modelSeed `yaml:"models"`
}

// Load upserts the embedded catalog. Existing rows with the same ids are
// overwritten; call Needed first to keep user-edited banks intact.
func Load(ctx context.Context, store assessment.Store) error {
	var f dataFile
	if err := yaml.Unmarshal(dataYAML, &f); err != nil {
		return fmt.Errorf("seed: parse: %w", err)
	}
	for _, s := range f.Scales {
		sc := assessment.Scale{
			ID:          s.ID,
			Name:        s.Name,
			Domain:      assessment.Domain(s.Domain),
			Type:        assessment.ScaleType(s.Type),
			CompositeOf: s.CompositeOf,
			SortOrder:   s.SortOrder,
		}
		if err := store.PutScale(ctx, sc); err != nil {
			return fmt.Errorf("seed: scale %s: %w", s.ID, err)
		}
	}
	for _, i := range f.Items {
		it := assessment.Item{
			ID:            i.ID,
			ScaleID:       i.ScaleID,
			Text:          i.Text,
			Format:        assessment.ItemFormat(i.Format),
			Options:       i.Options,
			CorrectAnswer: i.CorrectAnswer,
			IRT:           irt.Params{A: i.A, B: i.B, C: i.C},
			Domain:        assessment.Domain(i.Domain),
			PairScaleID:   i.PairScaleID,
			Loadings:      i.Loadings,
			ReverseKeyed:  i.ReverseKeyed,
			Distortion:    i.Distortion,
			Active:        true,
			Order:         i.Order,
		}
		if err := validateItem(it); err != nil {
			return err
		}
		if err := store.PutItem(ctx, it); err != nil {
			return fmt.Errorf("seed: item %s: %w", i.ID, err)
		}
	}
	for _, m := range f.Models {
		pm := assessment.PerformanceModel{
			ID:       m.ID,
			Name:     m.Name,
			Category: m.Category,
			Template: m.Template,
		}
		for _, r := range m.Ranges {
			pm.Ranges = append(pm.Ranges, assessment.ModelScaleRange{
				ScaleID:   r.ScaleID,
				TargetMin: r.TargetMin,
				TargetMax: r.TargetMax,
				Weight:    r.Weight,
			})
		}
		if err := pm.Validate(); err != nil {
			return fmt.Errorf("seed: model %s: %w", m.ID, err)
		}
		if err := store.PutModel(ctx, pm); err != nil {
			return fmt.Errorf("seed: model %s: %w", m.ID, err)
		}
	}
	return nil
}

// Needed reports whether the store has no scale catalog yet.
func Needed(ctx context.Context, store assessment.Store) (bool, error) {
	scales, err := store.ListScales(ctx)
	if err != nil {
		return false, err
	}
	return len(scales) == 0, nil
}

// validateItem enforces the item-bank invariants before anything reaches the
// store: cognitive items carry an answer key and sane 3PL parameters,
// non-cognitive ones carry no answer key; interest pairs name two scales.
func validateItem(it assessment.Item) error {
	cognitive := it.Domain == assessment.DomainCognitive
	if cognitive {
		if it.CorrectAnswer == "" {
			return fmt.Errorf("seed: item %s: cognitive item without correct answer", it.ID)
		}
		if it.IRT.A <= 0 || it.IRT.B < -4 || it.IRT.B > 4 || it.IRT.C < 0 || it.IRT.C > 0.35 {
			return fmt.Errorf("seed: item %s: 3PL parameters out of range: %+v", it.ID, it.IRT)
		}
	} else if it.CorrectAnswer != "" {
		return fmt.Errorf("seed: item %s: non-cognitive item with correct answer", it.ID)
	}
	if it.Domain == assessment.DomainInterests {
		if it.Format != assessment.FormatForcedChoice || it.PairScaleID == "" || it.PairScaleID == it.ScaleID {
			return fmt.Errorf("seed: item %s: interest items are forced-choice pairs over two scales", it.ID)
		}
	}
	return nil
}
