// Package resolve picks the single best professional email for a person.
package resolve

import (
	"strings"

	"github.com/sells-group/contact-finder/internal/model"
)

// Source identifies which rung of the hierarchy produced an email.
type Source string

const (
	SourceRecommended Source = "recommended"
	SourceCurrentWork Source = "current_work"
	SourceGraded      Source = "graded"
)

// Resolve returns the VerifiedContact for d, or false when no usable email
// exists. The hierarchy is, first match wins:
//
//  1. the recommended professional email, unless the same address is listed
//     as SMTP-invalid;
//  2. the current work email, same check;
//  3. the best-graded professional record that is not SMTP-invalid, ties
//     broken by list order.
//
// Resolve is pure: the same detail always yields the same result.
func Resolve(d model.RawDetail) (model.VerifiedContact, bool) {
	email, _, ok := Choose(d)
	if !ok {
		return model.VerifiedContact{}, false
	}
	return model.VerifiedContact{
		ID:           d.ID,
		Name:         d.Name,
		Title:        d.Title,
		LinkedInURL:  d.LinkedInURL,
		Email:        email.Address,
		EmailGrade:   email.Grade,
		SMTPValidity: email.SMTPValidity,
	}, true
}

// Choose returns the selected email record and the rung that produced it.
func Choose(d model.RawDetail) (model.EmailRecord, Source, bool) {
	if rec, ok := flagged(d.RecommendedEmail, d.Emails); ok {
		return rec, SourceRecommended, true
	}
	if rec, ok := flagged(d.CurrentWorkEmail, d.Emails); ok {
		return rec, SourceCurrentWork, true
	}
	if rec, ok := bestGraded(d.Emails); ok {
		return rec, SourceGraded, true
	}
	return model.EmailRecord{}, "", false
}

// flagged resolves a service-flagged address against the record list. Grade
// and validity come from the matching record; an unlisted address is
// ungraded and unverified.
func flagged(addr string, records []model.EmailRecord) (model.EmailRecord, bool) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return model.EmailRecord{}, false
	}
	rec := model.EmailRecord{
		Address:      addr,
		Type:         model.EmailProfessional,
		Grade:        model.GradeUngraded,
		SMTPValidity: model.SMTPUnverified,
	}
	if match, ok := find(addr, records); ok {
		rec.Grade = match.Grade
		rec.SMTPValidity = match.SMTPValidity
	}
	if rec.SMTPValidity == model.SMTPInvalid {
		return model.EmailRecord{}, false
	}
	return rec, true
}

// find returns the first record whose address equals addr, case-insensitively.
// An invalid duplicate anywhere in the list wins so a flagged address is never
// accepted when any listing of it failed probing.
func find(addr string, records []model.EmailRecord) (model.EmailRecord, bool) {
	var (
		first model.EmailRecord
		found bool
	)
	for _, r := range records {
		if !strings.EqualFold(strings.TrimSpace(r.Address), addr) {
			continue
		}
		if r.SMTPValidity == model.SMTPInvalid {
			return r, true
		}
		if !found {
			first, found = r, true
		}
	}
	return first, found
}

func bestGraded(records []model.EmailRecord) (model.EmailRecord, bool) {
	var (
		best  model.EmailRecord
		found bool
	)
	for _, r := range records {
		if r.Type != model.EmailProfessional || r.SMTPValidity == model.SMTPInvalid {
			continue
		}
		addr := strings.TrimSpace(r.Address)
		if addr == "" {
			continue
		}
		// Another listing of the same address may have failed probing.
		if match, _ := find(addr, records); match.SMTPValidity == model.SMTPInvalid {
			continue
		}
		if !found || r.Grade.Better(best.Grade) {
			best, found = r, true
		}
	}
	best.Address = strings.TrimSpace(best.Address)
	return best, found
}
