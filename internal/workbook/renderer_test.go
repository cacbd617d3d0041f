package workbook

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/pe-report-extractor/internal/record"
	"github.com/garyjia/pe-report-extractor/internal/template"
)

var raw = excelize.Options{RawCellValue: true}

func parse(t *testing.T, s string) record.Value {
	t.Helper()
	v, err := record.ParseString(s)
	require.NoError(t, err)
	return v
}

func newTestRenderer() *Renderer {
	r := NewRenderer(zap.NewNop())
	r.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) }
	return r
}

func cellValue(t *testing.T, f *excelize.File, sheet, ref string) string {
	t.Helper()
	v, err := f.GetCellValue(sheet, ref, raw)
	require.NoError(t, err)
	return v
}

// fieldValues collects column A to column B pairs from a sheet.
func fieldValues(t *testing.T, f *excelize.File, sheet string) map[string]string {
	t.Helper()
	rows, err := f.GetRows(sheet, raw)
	require.NoError(t, err)
	out := make(map[string]string)
	for _, row := range rows {
		if len(row) >= 2 {
			out[row[0]] = row[1]
		}
	}
	return out
}

func TestRender_AcmeFundDetails(t *testing.T) {
	rec := parse(t, `{
		"Fund_and_Investment_Vehicle_Information": {
			"Fund_Details": {"Fund_Name": "Acme Capital Partners", "Fund_Size": 500000000, "Vintage_Year": 2019}
		},
		"_metadata": {"template_id": 1}
	}`)
	tmpl := template.MustLookup(template.PrivateEquityFund)

	f := newTestRenderer().Render(rec, tmpl, SourceInfo{Files: []string{"acme_q4.pdf"}})
	defer f.Close()

	sheets := f.GetSheetList()
	require.Len(t, sheets, len(tmpl.Sections)+1, "overview plus one sheet per planned section")
	assert.Equal(t, SheetName("acme_q4 - Private Equity Fund Detailed Template"), sheets[0])
	assert.LessOrEqual(t, len(sheets[0]), MaxSheetNameLen)

	fundSheet := SheetName("Fund and Investment Vehicle Information")
	assert.Equal(t, fundSheet, sheets[1])
	assert.Equal(t, "Fund and Investment Vehicle Information", cellValue(t, f, fundSheet, "A1"))
	assert.Equal(t, "Fund Details", cellValue(t, f, fundSheet, "A3"))
	assert.Equal(t, "Field", cellValue(t, f, fundSheet, "A4"))
	assert.Equal(t, "Value", cellValue(t, f, fundSheet, "B4"))

	fields := fieldValues(t, f, fundSheet)
	assert.Equal(t, "Acme Capital Partners", fields["Fund Name"])
	assert.Equal(t, "500000000", fields["Fund Size"])
	assert.Equal(t, "2019", fields["Vintage Year"])

	for _, name := range sheets {
		assert.NotContains(t, strings.ToLower(name), "metadata")
	}

	manager := fieldValues(t, f, "Fund Manager")
	assert.Empty(t, manager)
	assert.Equal(t, "No Fund Manager data found in the document", cellValue(t, f, "Fund Manager", "A3"))

	width, err := f.GetColWidth(fundSheet, "B")
	require.NoError(t, err)
	assert.Equal(t, float64(maxFinancialWidth), width)
}

func TestRender_Overview(t *testing.T) {
	rec := parse(t, `{"Fund_Companies": [{"Company_Name": "A"}, {"Company_Name": "B"}], "Fund_Manager": null}`)
	tmpl := template.MustLookup(template.PrivateEquityFund)

	f := newTestRenderer().Render(rec, tmpl, SourceInfo{
		Files:    []string{"a.pdf", "b.pdf"},
		Excluded: []string{"scan.pdf"},
	})
	defer f.Close()

	overview := f.GetSheetList()[0]
	assert.Equal(t, "Private Equity Fund Detailed Template - a.pdf", cellValue(t, f, overview, "A1"))

	info := fieldValues(t, f, overview)
	assert.Equal(t, "1", info["Template ID:"])
	assert.Equal(t, "Private Equity Fund Detailed Template", info["Template Name:"])
	assert.Equal(t, "a.pdf, b.pdf", info["PDF File:"])
	assert.Equal(t, "2024-05-01 09:30:00", info["Extraction Date:"])
	assert.Equal(t, "map", info["Data Type:"])
	assert.Equal(t, "2", info["Files Processed:"])
	assert.Equal(t, "scan.pdf", info["Files Excluded:"])
	assert.Equal(t, "Fund_Companies", info["Available Sections:"])
	assert.Equal(t, "2", info["Total Data Points:"])
}

func TestRender_SectionErrorsAndUnclaimedKeys(t *testing.T) {
	rec := parse(t, `{
		"Fund_Manager": {"error": "model timed out"},
		"Fund_Companies": [{"Status": "Active", "Amount": 1500, "Company_Name": "Widget Co"}, {"Company_Name": "Gadget Inc"}],
		"Extra_Notes": "Audited by KPMG"
	}`)
	tmpl := template.MustLookup(template.PrivateEquityFund)

	f := newTestRenderer().Render(rec, tmpl, SourceInfo{Files: []string{"report.pdf"}})
	defer f.Close()

	assert.Equal(t, "Extraction error: model timed out", cellValue(t, f, "Fund Manager", "A3"))

	rows, err := f.GetRows("Fund Companies", raw)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 5)
	assert.Equal(t, []string{"Company Name", "Amount", "Status"}, rows[2])
	assert.Equal(t, []string{"Widget Co", "1500", "Active"}, rows[3])
	assert.Equal(t, []string{"Gadget Inc", "N/A", "N/A"}, rows[4])

	styleID, err := f.GetCellStyle("Fund Companies", "B4")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.CustomNumFmt)
	assert.Equal(t, FormatThousand, *style.CustomNumFmt)
	require.NotNil(t, style.Alignment)
	assert.Equal(t, "right", style.Alignment.Horizontal)

	sheets := f.GetSheetList()
	assert.Contains(t, sheets, "Additional_Extra_Notes")
	assert.Equal(t, "Audited by KPMG", fieldValues(t, f, "Additional_Extra_Notes")["Extra Notes"])
}

func TestRender_FlexibleMappingCoversEveryKey(t *testing.T) {
	rec := parse(t, `{
		"fund_info": {"Name": "Acme", "Size": 100},
		"random_stuff": ["x", "y"],
		"empty": null,
		"_metadata": {"data_points": 3}
	}`)
	tmpl := template.MustLookup(template.PrivateEquityFund)

	f := newTestRenderer().Render(rec, tmpl, SourceInfo{Files: []string{"x.pdf"}})
	defer f.Close()

	sheets := f.GetSheetList()
	require.Len(t, sheets, 3)
	assert.Equal(t, SheetName("Fund and Investment Vehicle Information"), sheets[1])
	assert.Equal(t, "Additional_random_stuff", sheets[2])

	fields := fieldValues(t, f, sheets[1])
	assert.Equal(t, "Acme", fields["Name"])
	assert.Equal(t, "100", fields["Size"])

	assert.Equal(t, "x", cellValue(t, f, "Additional_random_stuff", "B3"))
	assert.Equal(t, "y", cellValue(t, f, "Additional_random_stuff", "B4"))
}

func TestRender_SchemaTolerance(t *testing.T) {
	tests := []struct {
		name string
		rec  record.Value
	}{
		{"null", record.Null()},
		{"empty map", record.MapValue(record.NewMap())},
		{"scalar", record.String("just text")},
		{"top-level list", parse(t, `[{"a": 1}, {"b": 2}]`)},
		{"wrong section types", parse(t, `{"Fund_Manager": 42, "Fund_Companies": {"Company_Name": "A"}, "Reference_Values": "none"}`)},
		{"nested lists", parse(t, `{"Fund_Companies": [[1, 2], {"x": [{"y": {"z": 1}}]}]}`)},
		{"only metadata", parse(t, `{"_metadata": {"data_points": 0}}`)},
		{"fallback record", parse(t, `{"error": "No structured data extracted", "raw_response": "garbage"}`)},
		{"deep nesting", parse(t, `{"a": {"b": {"c": {"d": {"e": {"f": {"g": {"h": 1}}}}}}}}`)},
	}

	for _, id := range template.IDs() {
		tmpl := template.MustLookup(id)
		for _, tt := range tests {
			t.Run(tmpl.Name+"/"+tt.name, func(t *testing.T) {
				r := newTestRenderer()
				f := r.Render(tt.rec, tmpl, SourceInfo{})
				require.NotNil(t, f)
				defer f.Close()

				sheets := f.GetSheetList()
				assert.GreaterOrEqual(t, len(sheets), 2, "overview plus at least one data or note sheet")

				path := filepath.Join(t.TempDir(), "out.xlsx")
				require.NoError(t, r.Save(f, path))
				assert.FileExists(t, path)
			})
		}
	}
}

func TestRender_NoData(t *testing.T) {
	tmpl := template.MustLookup(template.PortfolioSummary)
	f := newTestRenderer().Render(record.MapValue(record.NewMap()), tmpl, SourceInfo{})
	defer f.Close()

	sheets := f.GetSheetList()
	require.Equal(t, []string{tmpl.Name, NoDataSheet}, sheets)
	assert.Equal(t, "No data received - check LLM processing", cellValue(t, f, sheets[0], "A12"))
	assert.Equal(t, "No structured data was extracted from the document", cellValue(t, f, NoDataSheet, "A3"))
}

func TestRender_ReferenceSection(t *testing.T) {
	rec := parse(t, `{"Reference_Values": {"Currencies": ["USD", "EUR"], "Industries": []}}`)
	tmpl := template.MustLookup(template.PortfolioSummary)

	f := newTestRenderer().Render(rec, tmpl, SourceInfo{})
	defer f.Close()

	rows, err := f.GetRows("Reference Values", raw)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 5)
	assert.Equal(t, "Currencies", rows[2][0])
	assert.Equal(t, "USD", rows[3][0])
	assert.Equal(t, "EUR", rows[4][0])
}

func TestSave_Failure(t *testing.T) {
	r := newTestRenderer()
	f := r.Render(record.Null(), template.MustLookup(template.PrivateEquityFund), SourceInfo{})
	defer f.Close()

	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, r.Save(f, blocker))

	err := r.Save(f, filepath.Join(blocker, "nested", "out.xlsx"))
	assert.ErrorIs(t, err, ErrSaveFailed)
}

func TestTableHeaders_PriorityFirst(t *testing.T) {
	a := record.NewMap().Set("Status", record.String("x")).Set("Amount", record.Number(1))
	b := record.NewMap().Set("Notes", record.String("y")).Set("Company_Name", record.String("z")).
		Set("_notes", record.String("n")).Set(record.MetadataKey, record.Number(1))
	assert.Equal(t, []string{"Company_Name", "Amount", "Status", "Notes", "_notes"}, tableHeaders([]*record.Map{a, b}))
}
