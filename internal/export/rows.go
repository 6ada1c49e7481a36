// Package export flattens company results into fixed-width rows and writes
// them as CSV, XLSX or JSON.
package export

import (
	"fmt"

	"github.com/sells-group/contact-finder/internal/model"
)

// slotFields are the per-contact column labels, in order.
var slotFields = []string{"name", "title", "email", "email grade", "linkedin"}

// Header returns the column labels for rows padded to quota contact slots.
func Header(quota int) []string {
	if quota < 0 {
		quota = 0
	}
	h := make([]string, 0, 2+quota*len(slotFields)+1)
	h = append(h, "company", "status")
	for i := 1; i <= quota; i++ {
		for _, f := range slotFields {
			h = append(h, fmt.Sprintf("%s %d", f, i))
		}
	}
	return append(h, "note")
}

// Flatten renders r as one row matching Header(quota). Unfilled slots are
// empty strings; contacts beyond quota are dropped.
func Flatten(r model.CompanyResult, quota int) []string {
	if quota < 0 {
		quota = 0
	}
	row := make([]string, 0, 2+quota*len(slotFields)+1)
	row = append(row, companyLabel(r.Company), r.Status.String())
	for i := 0; i < quota; i++ {
		if i < len(r.Contacts) {
			c := r.Contacts[i]
			row = append(row, c.Name, c.Title, c.Email, string(c.EmailGrade), c.LinkedInURL)
			continue
		}
		for range slotFields {
			row = append(row, "")
		}
	}
	return append(row, r.Note)
}

// Rows flattens every result in order.
func Rows(results []model.CompanyResult, quota int) [][]string {
	rows := make([][]string, len(results))
	for i, r := range results {
		rows[i] = Flatten(r, quota)
	}
	return rows
}

func companyLabel(c model.CompanyTarget) string {
	if c.Domain != "" {
		return c.Domain
	}
	return c.Input
}
