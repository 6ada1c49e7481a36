package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/contact-finder/internal/model"
)

// Format selects an output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// ParseFormat maps a flag value to a Format. An empty value means CSV.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatXLSX, FormatJSON:
		return f, nil
	default:
		return "", eris.Errorf("export: unknown format %q (want csv, xlsx or json)", s)
	}
}

// FormatForPath infers a Format from a file extension, defaulting to CSV.
func FormatForPath(path string) Format {
	switch {
	case strings.HasSuffix(strings.ToLower(path), ".xlsx"):
		return FormatXLSX
	case strings.HasSuffix(strings.ToLower(path), ".json"):
		return FormatJSON
	default:
		return FormatCSV
	}
}

// Run is the JSON envelope for one pipeline run.
type Run struct {
	ID          string                `json:"run_id"`
	GeneratedAt time.Time             `json:"generated_at"`
	Quota       int                   `json:"quota"`
	Results     []model.CompanyResult `json:"results"`
}

// NewRun stamps results with a fresh run id.
func NewRun(results []model.CompanyResult, quota int, now time.Time) Run {
	if results == nil {
		results = []model.CompanyResult{}
	}
	return Run{ID: uuid.New().String(), GeneratedAt: now.UTC(), Quota: quota, Results: results}
}

// Write encodes run to w in the given format.
func Write(w io.Writer, format Format, run Run) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, run.Results, run.Quota)
	case FormatXLSX:
		return WriteXLSX(w, run.Results, run.Quota)
	case FormatJSON:
		return WriteJSON(w, run)
	default:
		return eris.Errorf("export: unknown format %q", format)
	}
}

// WriteCSV writes a header row and one fixed-width row per result.
func WriteCSV(w io.Writer, results []model.CompanyResult, quota int) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(quota)); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	if err := cw.WriteAll(Rows(results, quota)); err != nil {
		return eris.Wrap(err, "export: write csv rows")
	}
	return nil
}

// WriteXLSX writes a single "contacts" sheet laid out like WriteCSV.
func WriteXLSX(w io.Writer, results []model.CompanyResult, quota int) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("contacts")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}
	addRow(sheet, Header(quota))
	for _, row := range Rows(results, quota) {
		addRow(sheet, row)
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, v := range cells {
		row.AddCell().SetString(v)
	}
}

// WriteJSON writes run as indented JSON.
func WriteJSON(w io.Writer, run Run) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(run), "export: write json")
}
