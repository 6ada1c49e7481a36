package main

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-finder/internal/keyword"
	"github.com/sells-group/contact-finder/internal/model"
	"github.com/sells-group/contact-finder/internal/pipeline"
)

// criteriaInput is the raw, user-facing form of the search criteria shared
// by the find flags and the discover request body.
type criteriaInput struct {
	Preset      string   `json:"preset,omitempty"`
	Titles      []string `json:"titles,omitempty"`
	Exclude     []string `json:"exclude,omitempty"`
	Departments []string `json:"departments,omitempty"`
	Geography   []string `json:"geography,omitempty"`
}

// resolveCriteria applies a preset (if named), then explicit values, then the
// configured department and geography defaults for anything still empty.
func resolveCriteria(in criteriaInput, presets map[string]pipeline.Preset, defaults model.Criteria) (model.Criteria, error) {
	explicit := model.Criteria{
		TitleKeywords:   keyword.Clean(in.Titles),
		ExcludeKeywords: keyword.Clean(in.Exclude),
		Departments:     keyword.Clean(in.Departments),
		Geography:       keyword.Clean(in.Geography),
	}

	c := explicit
	if name := strings.ToLower(strings.TrimSpace(in.Preset)); name != "" {
		p, ok := presets[name]
		if !ok {
			return model.Criteria{}, eris.Errorf("criteria: unknown preset %q (available: %s)",
				in.Preset, strings.Join(pipeline.PresetNames(presets), ", "))
		}
		c = p.Merge(explicit)
	}

	if len(c.Departments) == 0 {
		c.Departments = keyword.Clean(defaults.Departments)
	}
	if len(c.Geography) == 0 {
		c.Geography = keyword.Clean(defaults.Geography)
	}
	return c, nil
}

