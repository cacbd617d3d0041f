package workbook

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/garyjia/pe-report-extractor/internal/record"
	"github.com/garyjia/pe-report-extractor/internal/template"
)

func TestNumberFormat(t *testing.T) {
	tests := []struct {
		field string
		n     float64
		want  string
	}{
		{"Fund_Size", 500_000_000, FormatMillions},
		{"Management_Fee", 25_000, FormatThousand},
		{"Fee", 500, FormatCurrency},
		{"Total_Value", -2_500_000, FormatMillions},
		{"Gross_IRR", 0.25, FormatPercent},
		{"Ownership_Percentage", 45, FormatPoints},
		{"TVPI", 1.8, FormatMultiple},
		{"Net_MOIC", 2.1, FormatMultiple},
		{"Vintage_Year", 2019, FormatYear},
		{"Employees", 1200, FormatInteger},
		{"Employees", 12.5, FormatDecimal},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, NumberFormat(tt.field, tt.n))
		})
	}
}

func TestFormatCell(t *testing.T) {
	long := strings.Repeat("a", 60)
	tests := []struct {
		name    string
		field   string
		v       record.Value
		display string
		numeric bool
	}{
		{"null", "Name", record.Null(), "N/A", false},
		{"true", "Audited", record.Bool(true), "Yes", false},
		{"false", "Audited", record.Bool(false), "No", false},
		{"millions", "Fund_Size", record.Number(500_000_000), "$500.0M", true},
		{"thousands", "Amount", record.Number(1_500), "$2K", true},
		{"percent", "Net_IRR", record.Number(0.125), "12.50%", true},
		{"multiple", "DPI", record.Number(1.5), "1.50x", true},
		{"integer", "Headcount", record.Number(12345), "12,345", true},
		{"decimal", "Score", record.Number(1234.5), "1,234.50", true},
		{"decimal rounds up", "ratio_score", record.Number(1.999), "2.00", true},
		{"decimal carries into tens", "Score", record.Number(9.996), "10.00", true},
		{"negative fraction", "Score", record.Number(-0.5), "-0.50", true},
		{"negative grouped", "Score", record.Number(-1234567.5), "-1,234,567.50", true},
		{"negative rounds to zero", "Score", record.Number(-0.001), "0.00", true},
		{"long string", "Description", record.String(long), strings.Repeat("a", 50) + "...", false},
		{"us date", "Closing", record.String("03/15/2024"), "2024-03-15", false},
		{"timestamp", "Closing", record.String("2024-03-15T10:00:00Z"), "2024-03-15", false},
		{"list preview", "Sectors", record.List(record.String("a"), record.String("b"), record.String("c"), record.String("d"), record.String("e")), "a, b, c ... (+2 more)", false},
		{"number list", "Scores", record.List(record.Number(1.999), record.Number(-0.25)), "2.00, -0.25", false},
		{"short list", "Sectors", record.List(record.String("a"), record.String("b")), "a, b", false},
		{"map", "Nested", record.MapValue(record.NewMap().Set("a", record.Number(1)).Set("b", record.Null())), "2 fields", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := formatCell(tt.field, tt.v, notApplicable)
			assert.Equal(t, tt.display, c.display)
			assert.Equal(t, tt.numeric, c.numeric)
		})
	}
}

func TestOverviewValue_Numbers(t *testing.T) {
	assert.Equal(t, "10.00", overviewValue(record.Number(9.996)))
	assert.Equal(t, "-0.50", overviewValue(record.Number(-0.5)))
}

func TestLocateSections_IgnoresEmptyKey(t *testing.T) {
	pe := template.MustLookup(template.PrivateEquityFund)
	m := record.NewMap().Set("", record.String("stray"))

	for _, p := range locateSections(m, pe.Sections) {
		assert.False(t, p.found, "section %s matched an empty key", p.section.Key)
	}
}

func TestNormalizeDate_RejectsText(t *testing.T) {
	for _, s := range []string{"Q4 2023", "soon", "2024", "15 March 2024 onwards"} {
		_, ok := NormalizeDate(s)
		assert.False(t, ok, s)
	}
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "a_b_c_d_e_f_g_h", SheetName(`a[b]c:d*e?f/g\h`))
	assert.Equal(t, "Fund and Investment Vehicle Inf", SheetName("Fund and Investment Vehicle Information"))
	assert.Equal(t, "Sheet", SheetName("''"))
	assert.Len(t, []rune(SheetName(strings.Repeat("é", 40))), MaxSheetNameLen)
}

func TestSheetNamer_Deduplicates(t *testing.T) {
	n := newSheetNamer()
	assert.Equal(t, "Fund Manager", n.next("Fund Manager"))
	assert.Equal(t, "Fund Manager (2)", n.next("Fund Manager"))
	assert.Equal(t, "fund manager (3)", n.next("fund manager"))

	long := strings.Repeat("x", 40)
	first := n.next(long)
	second := n.next(long)
	assert.Len(t, first, MaxSheetNameLen)
	assert.Len(t, second, MaxSheetNameLen)
	assert.True(t, strings.HasSuffix(second, " (2)"))
}

func TestFileName(t *testing.T) {
	pe := template.MustLookup(template.PrivateEquityFund)
	ps := template.MustLookup(template.PortfolioSummary)

	assert.Equal(t, "3f2a9c1e_My_Report__Q4_2023_Private_Equity.xlsx",
		FileName("/tmp/uploads/My Report: Q4 2023.pdf", pe, "3f2a9c1e-7b6d-4e0a-9c3b-2a1d5e6f7a8b"))
	assert.Equal(t, "abc_fund_Portfolio_Summary.xlsx", FileName("fund.pdf", ps, "abc"))
	assert.Equal(t, "extracted_data_Portfolio_Summary.xlsx", FileName("", ps, ""))

	same := FileName("a.pdf", pe, "11111111-x")
	other := FileName("a.pdf", pe, "22222222-x")
	assert.NotEqual(t, same, other)
	assert.Equal(t, same, FileName("a.pdf", pe, "11111111-x"))

	base := CleanFileBase(strings.Repeat("y", 150))
	assert.Len(t, base, 100)
}

func TestHumanize(t *testing.T) {
	assert.Equal(t, "Fund Size", Humanize("Fund_Size"))
	assert.Equal(t, "NAV Gross", Humanize("NAV_Gross"))
	assert.Equal(t, "Vintage Year", Humanize("vintage_year"))
	assert.Equal(t, "Field", Humanize(""))
}

func TestMatchScore(t *testing.T) {
	pe := template.MustLookup(template.PrivateEquityFund)
	ps := template.MustLookup(template.PortfolioSummary)

	assert.Equal(t, exactMatch, MatchScore("fund_manager", "Fund_Manager", pe.SynonymTerms))
	assert.Equal(t, 3, MatchScore("fund_info", "Fund_Manager", pe.SynonymTerms))
	assert.Equal(t, 0, MatchScore("random_stuff", "Fund_Manager", pe.SynonymTerms))
	assert.Equal(t, 2, MatchScore("Cash_Flows", "Statements_of_Cashflows", ps.SynonymTerms))
	assert.Zero(t, MatchScore("", "Fund_Manager", pe.SynonymTerms))
	assert.Zero(t, MatchScore("  ", "Fund_Manager", pe.SynonymTerms))

	sec, ok := bestSection("Cash_Flows", ps)
	assert.True(t, ok)
	assert.Equal(t, "Statements_of_Cashflows", sec.Key)

	_, ok = bestSection("random_stuff", pe)
	assert.False(t, ok)
}
