package pipeline

import (
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/contact-finder/internal/keyword"
	"github.com/sells-group/contact-finder/internal/model"
)

// Preset is a named, reusable set of criteria.
type Preset struct {
	Name        string `yaml:"-" json:"name"`
	Description string `yaml:"description" json:"description,omitempty"`

	model.Criteria `yaml:",inline"`
}

// BuiltinPresets returns the presets that are always available.
func BuiltinPresets() map[string]Preset {
	return map[string]Preset{
		"ma": {
			Name:        "ma",
			Description: "M&A and corporate development leaders",
			Criteria: model.Criteria{
				TitleKeywords: []string{"M&A", "corporate development", "strategy", "strategic", "growth", "merger"},
			},
		},
	}
}

// LoadPresets reads presets from a YAML file and merges them over the
// built-ins. An empty path returns only the built-ins. The file has a
// top-level "presets" map keyed by name.
func LoadPresets(path string) (map[string]Preset, error) {
	presets := BuiltinPresets()
	if path == "" {
		return presets, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read presets %s", path)
	}

	var wrapper struct {
		Presets map[string]Preset `yaml:"presets"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "pipeline: parse presets")
	}

	for name, p := range wrapper.Presets {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		p.Name = key
		p.TitleKeywords = keyword.Clean(p.TitleKeywords)
		p.ExcludeKeywords = keyword.Clean(p.ExcludeKeywords)
		p.Departments = keyword.Clean(p.Departments)
		p.Geography = keyword.Clean(p.Geography)
		if len(p.TitleKeywords) == 0 && len(p.Departments) == 0 {
			return nil, eris.Errorf("pipeline: preset %q has no titles or departments", key)
		}
		presets[key] = p
	}
	return presets, nil
}

// PresetNames returns preset names in sorted order.
func PresetNames(presets map[string]Preset) []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Merge overlays explicitly supplied criteria on a preset. Non-empty fields
// of override replace the preset's.
func (p Preset) Merge(override model.Criteria) model.Criteria {
	out := p.Criteria
	if len(override.TitleKeywords) > 0 {
		out.TitleKeywords = override.TitleKeywords
	}
	if len(override.ExcludeKeywords) > 0 {
		out.ExcludeKeywords = override.ExcludeKeywords
	}
	if len(override.Departments) > 0 {
		out.Departments = override.Departments
	}
	if len(override.Geography) > 0 {
		out.Geography = override.Geography
	}
	return out
}
