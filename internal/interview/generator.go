package interview

import (
	"fmt"

	"github.com/talentprofile/talentprofile/internal/match"
)

// Block is the interview material for one out-of-band scale.
type Block struct {
	ScaleID   string          `json:"scale_id"`
	ScaleName string          `json:"scale_name"`
	Sten      int             `json:"sten"`
	TargetMin int             `json:"target_min"`
	TargetMax int             `json:"target_max"`
	Direction match.Direction `json:"direction"`
	Questions []Question      `json:"questions"`
}

// Generate emits one block per out-of-band deviation, in the order given.
// In-band deviations are skipped; scales the catalog does not know get two
// generic probes interpolating the scale name.
func Generate(cat *Catalog, deviations []match.Deviation) []Block {
	blocks := make([]Block, 0, len(deviations))
	for _, d := range deviations {
		if d.Direction == match.DirectionIn {
			continue
		}
		name := d.ScaleName
		if name == "" {
			name = d.ScaleID
		}
		qs := cat.Questions(d.ScaleID, d.Direction)
		if len(qs) == 0 {
			qs = genericQuestions(d.ScaleID, name, d.Direction)
		}
		blocks = append(blocks, Block{
			ScaleID:   d.ScaleID,
			ScaleName: name,
			Sten:      d.Sten,
			TargetMin: d.TargetMin,
			TargetMax: d.TargetMax,
			Direction: d.Direction,
			Questions: qs,
		})
	}
	return blocks
}

func genericQuestions(scaleID, name string, dir match.Direction) []Question {
	level := "higher"
	if dir == match.DirectionLow {
		level = "lower"
	}
	return []Question{
		{
			ID:       fmt.Sprintf("generic-%s-%s-1", scaleID, dir),
			Text:     fmt.Sprintf("Your %s score is %s than this role typically calls for. Tell me about a recent situation where that showed up in your work.", name, level),
			Category: "general",
		},
		{
			ID:       fmt.Sprintf("generic-%s-%s-2", scaleID, dir),
			Text:     fmt.Sprintf("How do you adapt your approach when a situation demands a different level of %s than comes naturally to you?", name),
			Category: "general",
		},
	}
}
