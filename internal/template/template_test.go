package template

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ID
		wantErr bool
	}{
		{"private equity", "1", PrivateEquityFund, false},
		{"portfolio summary with spaces", " 2 ", PortfolioSummary, false},
		{"unknown id", "3", 0, true},
		{"zero", "0", 0, true},
		{"not a number", "abc", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnknownTemplate)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseID_NamesInvalidValue(t *testing.T) {
	_, err := ParseID("3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3")
}

func TestCatalog_SheetOrder(t *testing.T) {
	pe := MustLookup(PrivateEquityFund)
	assert.Equal(t, []string{
		"Fund and Investment Vehicle Information",
		"Fund Manager",
		"Fund Investment Vehicle Financial Position",
		"LP Investor Cashflows",
		"Fund Companies",
		"Initial Investments",
		"Company Investment Positions",
		"Company Valuation",
		"Company Financials",
		"Investment History",
		"Reference Values",
	}, pe.SheetNames())
	assert.Equal(t, "1.3.0", pe.Version)

	ps := MustLookup(PortfolioSummary)
	assert.Len(t, ps.Sections, 9)
	assert.Equal(t, "1.2.0", ps.Version)
	assert.Equal(t, []string{"Executive_Portfolio_Summary", "Schedule_of_Investments"}, ps.MarkerKeys)
}

func TestCatalog_SheetNamesDistinctAfterTruncation(t *testing.T) {
	for _, tmpl := range All() {
		seen := make(map[string]string)
		for _, s := range tmpl.Sections {
			short := s.SheetName
			if len(short) > 31 {
				short = short[:31]
			}
			prev, dup := seen[short]
			assert.False(t, dup, "%q and %q collide", prev, s.SheetName)
			seen[short] = s.SheetName
		}
	}
}

func TestSchemaHint_IsValidJSON(t *testing.T) {
	for _, tmpl := range All() {
		for _, v := range []Variant{VariantFull, VariantSimplified} {
			t.Run(tmpl.Name+"/"+v.String(), func(t *testing.T) {
				var doc map[string]any
				require.NoError(t, json.Unmarshal([]byte(tmpl.SchemaHint(v)), &doc))
				for _, s := range tmpl.SectionsFor(v) {
					assert.Contains(t, doc, s.Key)
				}
			})
		}
	}
}

func TestSchemaHint_SimplifiedIsSmaller(t *testing.T) {
	for _, tmpl := range All() {
		assert.Less(t, len(tmpl.SchemaHint(VariantSimplified)), len(tmpl.SchemaHint(VariantFull)))
		assert.Less(t, len(tmpl.GuidelinesFor(VariantSimplified)), len(tmpl.GuidelinesFor(VariantFull)))
	}
}

func TestCompileJSONSchema(t *testing.T) {
	tmpl := MustLookup(PrivateEquityFund)
	schema, err := tmpl.CompileJSONSchema()
	require.NoError(t, err)

	t.Run("accepts partial document", func(t *testing.T) {
		var doc any
		require.NoError(t, json.Unmarshal([]byte(`{"Fund_Manager": {"Management_Company": {"Management_Company_Name": "Acme GP"}}, "Extra": 1}`), &doc))
		assert.NoError(t, schema.Validate(doc))
	})

	t.Run("flags wrong leaf type", func(t *testing.T) {
		var doc any
		require.NoError(t, json.Unmarshal([]byte(`{"Fund_and_Investment_Vehicle_Information": {"Fund_Details": {"Fund_Size": "lots"}}}`), &doc))
		assert.Error(t, schema.Validate(doc))
	})
}
