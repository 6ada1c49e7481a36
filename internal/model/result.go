package model

import (
	"encoding/json"
	"fmt"
)

// StatusKind is the terminal outcome of discovery for one company.
type StatusKind string

const (
	StatusFound           StatusKind = "found"
	StatusNoContactsFound StatusKind = "no_contacts_found"
	StatusNoValidEmails   StatusKind = "no_valid_emails"
)

// Status is Found(n), NoContactsFound, or NoValidEmails.
type Status struct {
	Kind  StatusKind
	Count int
}

// Found returns the Found(n) status.
func Found(n int) Status { return Status{Kind: StatusFound, Count: n} }

// NoContactsFound is the status for a company where no stage returned a candidate.
var NoContactsFound = Status{Kind: StatusNoContactsFound}

// NoValidEmails is the status for a company whose candidates all failed email resolution.
var NoValidEmails = Status{Kind: StatusNoValidEmails}

// String renders the status as a human-readable label for export rows.
func (s Status) String() string {
	switch s.Kind {
	case StatusFound:
		return fmt.Sprintf("found (%d)", s.Count)
	case StatusNoContactsFound:
		return "no contacts found"
	case StatusNoValidEmails:
		return "no valid emails"
	default:
		return string(s.Kind)
	}
}

// MarshalJSON encodes the status as {"kind": ..., "count": ...}.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind  StatusKind `json:"kind"`
		Count int        `json:"count"`
	}{s.Kind, s.Count})
}

// StageName identifies a discovery stage.
type StageName string

const (
	StageTitle      StageName = "title"
	StageDepartment StageName = "department"
	StageSkill      StageName = "skill"
	StageFallback   StageName = "fallback"
)

// StageReport records what a single stage did for one company.
type StageReport struct {
	Stage      StageName `json:"stage"`
	Ran        bool      `json:"ran"`
	SkipReason string    `json:"skip_reason,omitempty"`
	Candidates int       `json:"candidates"`
	Resolved   int       `json:"resolved"`
	Error      string    `json:"error,omitempty"`
}

// CompanyResult is the immutable outcome of discovery for one company.
type CompanyResult struct {
	Company  CompanyTarget     `json:"company"`
	Contacts []VerifiedContact `json:"contacts"`
	Status   Status            `json:"status"`
	Stages   []StageReport     `json:"stages,omitempty"`
	// Note carries a short reason when the company degraded without searching,
	// e.g. an unparseable identifier.
	Note string `json:"note,omitempty"`
}

// ComputeStatus derives the terminal status from the number of verified
// contacts and whether any stage produced a candidate.
func ComputeStatus(contacts int, sawCandidates bool) Status {
	switch {
	case contacts > 0:
		return Found(contacts)
	case sawCandidates:
		return NoValidEmails
	default:
		return NoContactsFound
	}
}
