package model

import "strings"

// Grade is the remote service's deliverability confidence for an email.
type Grade string

const (
	GradeA        Grade = "A"
	GradeAMinus   Grade = "A-"
	GradeB        Grade = "B"
	GradeBMinus   Grade = "B-"
	GradeC        Grade = "C"
	GradeD        Grade = "D"
	GradeF        Grade = "F"
	GradeUngraded Grade = ""
)

// gradeRanks orders grades best-first. Anything absent sorts after F.
var gradeRanks = map[Grade]int{
	GradeA:      0,
	GradeAMinus: 1,
	GradeB:      2,
	GradeBMinus: 3,
	GradeC:      4,
	GradeD:      5,
	GradeF:      6,
}

// ParseGrade normalizes a wire grade ("a-", " B ") to a Grade. Unknown values
// become GradeUngraded.
func ParseGrade(s string) Grade {
	g := Grade(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := gradeRanks[g]; ok {
		return g
	}
	return GradeUngraded
}

// Rank returns the position of g in the total order A > A- > B > B- > C > D > F
// > ungraded. Lower is better.
func (g Grade) Rank() int {
	if r, ok := gradeRanks[g]; ok {
		return r
	}
	return len(gradeRanks)
}

// Better reports whether g strictly outranks other.
func (g Grade) Better(other Grade) bool {
	return g.Rank() < other.Rank()
}

// SMTPValidity is the tri-state result of protocol-level deliverability probing.
type SMTPValidity string

const (
	SMTPValid      SMTPValidity = "valid"
	SMTPInvalid    SMTPValidity = "invalid"
	SMTPUnverified SMTPValidity = "unverified"
)

// ParseSMTPValidity maps wire values to SMTPValidity. Only the exact values
// "valid" and "invalid" are trusted; everything else is unverified.
func ParseSMTPValidity(s string) SMTPValidity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "valid":
		return SMTPValid
	case "invalid":
		return SMTPInvalid
	default:
		return SMTPUnverified
	}
}

// EmailType distinguishes work addresses from personal ones.
type EmailType string

const (
	EmailProfessional EmailType = "professional"
	EmailPersonal     EmailType = "personal"
)

// ParseEmailType maps wire values to EmailType. The API labels work
// addresses "professional" and sometimes "work".
func ParseEmailType(s string) EmailType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "professional", "work", "current":
		return EmailProfessional
	default:
		return EmailPersonal
	}
}

// EmailRecord is one graded email attached to a person.
type EmailRecord struct {
	Address      string       `json:"address"`
	Type         EmailType    `json:"type"`
	Grade        Grade        `json:"grade"`
	SMTPValidity SMTPValidity `json:"smtp_validity"`
}

// Candidate is a search hit not yet enriched with contact detail.
type Candidate struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	LinkedInURL string   `json:"linkedin_url"`
	Skills      []string `json:"skills,omitempty"`
}

// RawDetail is the full profile returned by a lookup, before email resolution.
type RawDetail struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Title       string `json:"title"`
	LinkedInURL string `json:"linkedin_url"`

	// RecommendedEmail is the service's recommended professional address.
	RecommendedEmail string `json:"recommended_email,omitempty"`
	// CurrentWorkEmail is the address the service flags as the current work email.
	CurrentWorkEmail string `json:"current_work_email,omitempty"`

	Emails []EmailRecord `json:"emails,omitempty"`
}

// VerifiedContact is a person with a usable professional email. Email is never
// empty and SMTPValidity is never SMTPInvalid.
type VerifiedContact struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Title        string       `json:"title"`
	LinkedInURL  string       `json:"linkedin_url"`
	Email        string       `json:"email"`
	EmailGrade   Grade        `json:"email_grade"`
	SMTPValidity SMTPValidity `json:"smtp_validity"`
}
