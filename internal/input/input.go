// Package input reads company lists from CSV and XLSX files.
package input

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-finder/internal/model"
)

// headerNames are column labels recognised as the company identifier.
var headerNames = map[string]bool{
	"domain":         true,
	"company_domain": true,
	"website":        true,
	"url":            true,
	"company_url":    true,
}

// Option configures ReadCompanies.
type Option func(*options)

type options struct {
	sheet string
}

// WithSheet selects an XLSX sheet by name instead of the first one.
func WithSheet(name string) Option {
	return func(o *options) { o.sheet = name }
}

// ReadCompanies reads company identifiers from path. The format is chosen by
// extension: .xlsx reads a workbook sheet, .tsv is tab separated and anything
// else is parsed as CSV. Blank identifiers are dropped; everything else is
// returned as written so the runner can report unparseable entries.
func ReadCompanies(path string, opts ...Option) ([]string, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	var (
		rows [][]string
		err  error
	)
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".xlsx":
		rows, err = workbook(path, o.sheet)
	default:
		comma := ','
		if ext == ".tsv" {
			comma = '\t'
		}
		var f *os.File
		f, err = os.Open(path) // #nosec G304 -- path is a user-supplied input file
		if err != nil {
			return nil, eris.Wrap(err, "input: open file")
		}
		defer f.Close() //nolint:errcheck
		rows, err = delimited(f, comma)
	}
	if err != nil {
		return nil, err
	}
	return Column(rows), nil
}

// Column extracts the company column from rows. If the first row names a
// known identifier column it is treated as a header and that column is used.
// Otherwise the first column is used, and the first row is still skipped as an
// unnamed header when it holds no domain but the row after it does.
func Column(rows [][]string) []string {
	if len(rows) == 0 {
		return nil
	}
	col := 0
	start := 0
	if idx, ok := headerIndex(rows[0]); ok {
		col, start = idx, 1
	} else if len(rows) > 1 && !looksLikeDomain(rows[0]) && looksLikeDomain(rows[1]) {
		start = 1
	}

	var out []string
	for _, row := range rows[start:] {
		if col >= len(row) {
			continue
		}
		v := strings.TrimSpace(row[col])
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

func headerIndex(row []string) (int, bool) {
	for i, cell := range row {
		name := strings.ToLower(strings.TrimSpace(cell))
		name = strings.ReplaceAll(name, " ", "_")
		if headerNames[name] {
			return i, true
		}
	}
	return 0, false
}

func looksLikeDomain(row []string) bool {
	if len(row) == 0 {
		return false
	}
	return model.IsValidDomain(model.NormalizeDomain(row[0]))
}
