package model

// CriterionKind tags the search strategy a SearchCriterion drives.
type CriterionKind string

const (
	CriterionTitle             CriterionKind = "title"
	CriterionDepartment        CriterionKind = "department"
	CriterionSkill             CriterionKind = "skill"
	CriterionSeniorityFallback CriterionKind = "seniority_fallback"
)

// SeniorityLevels is the fixed management-level set searched by the fallback
// stage. It is not configurable.
var SeniorityLevels = []string{
	"Founder/Owner",
	"C-Level",
	"Vice President",
}

// SearchCriterion describes one batched search against the people-search API.
type SearchCriterion struct {
	Kind           CriterionKind `json:"kind"`
	Values         []string      `json:"values"`
	ExcludedValues []string      `json:"excluded_values,omitempty"`
	Geography      []string      `json:"geography,omitempty"`
}

// Valid reports whether c can be sent. Only the seniority fallback may carry
// an empty Values list, because it always searches SeniorityLevels.
func (c SearchCriterion) Valid() bool {
	if c.Kind == CriterionSeniorityFallback {
		return true
	}
	return len(c.Values) > 0
}

// Criteria is the caller-supplied filter set for a discovery run.
type Criteria struct {
	TitleKeywords   []string `json:"titles" yaml:"titles"`
	ExcludeKeywords []string `json:"exclude,omitempty" yaml:"exclude"`
	Departments     []string `json:"departments,omitempty" yaml:"departments"`
	Geography       []string `json:"geography,omitempty" yaml:"geography"`
}
