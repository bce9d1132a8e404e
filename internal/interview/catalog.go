// Package interview turns out-of-band match deviations into curated probe
// questions for a structured follow-up interview. The catalog is loaded once
// from an embedded file and shared read-only across sessions.
package interview

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/talentprofile/talentprofile/internal/match"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Question is one curated probe.
type Question struct {
	ID       string `yaml:"id" json:"id"`
	Text     string `yaml:"text" json:"text"`
	Category string `yaml:"category" json:"category"`
}

type catalogEntry struct {
	ScaleID   string     `yaml:"scale_id"`
	Direction string     `yaml:"direction"` // high | low
	Questions []Question `yaml:"questions"`
}

type catalogFile struct {
	Entries []catalogEntry `yaml:"entries"`
}

type key struct {
	scaleID   string
	direction match.Direction
}

// Catalog is an immutable (scale, direction) -> questions table.
type Catalog struct {
	entries map[key][]Question
}

// Load parses a catalog document.
func Load(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("interview catalog: %w", err)
	}
	c := &Catalog{entries: make(map[key][]Question, len(f.Entries))}
	for _, e := range f.Entries {
		dir := match.Direction(e.Direction)
		if dir != match.DirectionHigh && dir != match.DirectionLow {
			return nil, fmt.Errorf("interview catalog: scale %s: bad direction %q", e.ScaleID, e.Direction)
		}
		c.entries[key{e.ScaleID, dir}] = e.Questions
	}
	return c, nil
}

// Default returns the built-in catalog. Panics only on a corrupt embedded
// file, which is a build defect.
func Default() *Catalog {
	c, err := Load(catalogYAML)
	if err != nil {
		panic(err)
	}
	return c
}

// Questions returns the curated probes for one scale and direction, or nil
// when the catalog has none.
func (c *Catalog) Questions(scaleID string, dir match.Direction) []Question {
	return c.entries[key{scaleID, dir}]
}
