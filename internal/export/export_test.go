package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/contact-finder/internal/model"
)

func sampleResults() []model.CompanyResult {
	return []model.CompanyResult{
		{
			Company: model.CompanyTarget{Domain: "acme.com", Input: "https://acme.com"},
			Contacts: []model.VerifiedContact{
				{ID: "1", Name: "Ada Lovelace", Title: "CFO", Email: "ada@acme.com", EmailGrade: model.GradeA, LinkedInURL: "https://linkedin.com/in/ada"},
				{ID: "2", Name: "Alan Turing", Title: "VP Strategy", Email: "alan@acme.com", EmailGrade: model.GradeB},
			},
			Status: model.Found(2),
		},
		{
			Company: model.CompanyTarget{Input: "not a domain"},
			Status:  model.NoContactsFound,
			Note:    "invalid company identifier",
		},
	}
}

func TestHeader(t *testing.T) {
	assert.Equal(t, []string{"company", "status", "note"}, Header(0))
	assert.Equal(t, []string{"company", "status", "note"}, Header(-1))

	h := Header(2)
	require.Len(t, h, 2+2*5+1)
	assert.Equal(t, []string{"name 1", "title 1", "email 1", "email grade 1", "linkedin 1"}, h[2:7])
	assert.Equal(t, "linkedin 2", h[11])
}

func TestFlatten_PadsToQuota(t *testing.T) {
	rs := sampleResults()

	row := Flatten(rs[0], 3)
	require.Len(t, row, len(Header(3)))
	assert.Equal(t, "acme.com", row[0])
	assert.Equal(t, "found (2)", row[1])
	assert.Equal(t, []string{"Ada Lovelace", "CFO", "ada@acme.com", "A", "https://linkedin.com/in/ada"}, row[2:7])
	assert.Equal(t, []string{"Alan Turing", "VP Strategy", "alan@acme.com", "B", ""}, row[7:12])
	assert.Equal(t, []string{"", "", "", "", ""}, row[12:17])

	row = Flatten(rs[1], 3)
	assert.Equal(t, "not a domain", row[0])
	assert.Equal(t, "no contacts found", row[1])
	assert.Equal(t, "invalid company identifier", row[len(row)-1])
}

func TestFlatten_TruncatesBeyondQuota(t *testing.T) {
	row := Flatten(sampleResults()[0], 1)
	require.Len(t, row, len(Header(1)))
	assert.Equal(t, "Ada Lovelace", row[2])
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatCSV, "CSV": FormatCSV, " xlsx ": FormatXLSX, "json": FormatJSON} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("parquet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown format "parquet"`)
}

func TestFormatForPath(t *testing.T) {
	assert.Equal(t, FormatXLSX, FormatForPath("out/Contacts.XLSX"))
	assert.Equal(t, FormatJSON, FormatForPath("out.json"))
	assert.Equal(t, FormatCSV, FormatForPath("out.csv"))
	assert.Equal(t, FormatCSV, FormatForPath(""))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, NewRun(sampleResults(), 2, time.Now())))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, Header(2), records[0])
	assert.Equal(t, "acme.com", records[1][0])
	assert.Equal(t, "no contacts found", records[2][1])
	for _, rec := range records {
		assert.Len(t, rec, len(Header(2)))
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, NewRun(sampleResults(), 2, time.Now())))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	sheet, ok := f.Sheet["contacts"]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "company", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "ada@acme.com", sheet.Rows[1].Cells[4].String())
}

func TestWriteJSON(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	run := NewRun(sampleResults(), 3, now)
	assert.NotEmpty(t, run.ID)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, run))

	var decoded struct {
		RunID       string    `json:"run_id"`
		GeneratedAt time.Time `json:"generated_at"`
		Quota       int       `json:"quota"`
		Results     []struct {
			Status struct {
				Kind  string `json:"kind"`
				Count int    `json:"count"`
			} `json:"status"`
			Contacts []model.VerifiedContact `json:"contacts"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, run.ID, decoded.RunID)
	assert.True(t, now.Equal(decoded.GeneratedAt))
	assert.Equal(t, 3, decoded.Quota)
	require.Len(t, decoded.Results, 2)
	assert.Equal(t, "found", decoded.Results[0].Status.Kind)
	assert.Equal(t, 2, decoded.Results[0].Status.Count)
	assert.Equal(t, "no_contacts_found", decoded.Results[1].Status.Kind)
}

func TestNewRun_EmptyResults(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, NewRun(nil, 3, time.Now())))
	assert.Contains(t, buf.String(), `"results": []`)
}

func TestWrite_UnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, Format("yaml"), Run{})
	require.Error(t, err)
}
