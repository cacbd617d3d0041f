package structuring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/pe-report-extractor/internal/record"
	"github.com/garyjia/pe-report-extractor/internal/template"
)

func TestParseResponse_Stages(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		stage ParseStage
		keys  []string
	}{
		{"direct", ` {"Fund_Manager": {"Name": "Acme"}} `, StageDirect, []string{"Fund_Manager"}},
		{"fenced", "Sure!\n```json\n{\"b\": 1, \"a\": 2}\n```\nDone.", StageFenced, []string{"b", "a"}},
		{"fenced without language", "```\n{\"x\": true}\n```", StageFenced, []string{"x"}},
		{"braces", `Result: {"a": {"b": "has } brace"}, "c": "esc \" quote"} trailing`, StageBraces, []string{"a", "c"}},
		{"repaired trailing comma", `{"a": 1, "b": [1, 2,],}`, StageRepaired, []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, stage := ParseResponse(tt.raw)
			assert.Equal(t, tt.stage, stage)
			m, ok := v.AsMap()
			require.True(t, ok)
			assert.Equal(t, tt.keys, m.Keys())
		})
	}
}

func TestParseResponse_RecoversEmbeddedObject(t *testing.T) {
	raw := `Here is the data: {"Executive_Portfolio_Summary": {"Portfolio_Overview": {"Assets_Under_Management": 1000000}}} Hope this helps!`

	v, stage := ParseResponse(raw)
	assert.Equal(t, StageBraces, stage)

	m, ok := v.AsMap()
	require.True(t, ok)
	assert.Equal(t, []string{"Executive_Portfolio_Summary"}, m.Keys())

	eps, _ := m.Get("Executive_Portfolio_Summary")
	epsMap, _ := eps.AsMap()
	overview, _ := epsMap.Get("Portfolio_Overview")
	ovMap, _ := overview.AsMap()
	aum, _ := ovMap.Get("Assets_Under_Management")
	n, ok := aum.AsNumber()
	require.True(t, ok)
	assert.Equal(t, 1000000.0, n)
}

func TestParseResponse_FallbackRecord(t *testing.T) {
	raw := strings.Repeat("x", 600)
	v, stage := ParseResponse(raw)
	assert.Equal(t, StageFallback, stage)

	m, ok := v.AsMap()
	require.True(t, ok)
	msg, _ := m.Get("error")
	s, _ := msg.AsString()
	assert.Equal(t, FallbackError, s)

	excerptVal, _ := m.Get("raw_response")
	ex, _ := excerptVal.AsString()
	assert.Len(t, ex, 500)

	v, stage = ParseResponse("")
	assert.Equal(t, StageFallback, stage)
	_, ok = v.AsMap()
	assert.True(t, ok)
}

func TestOutermostObject(t *testing.T) {
	assert.Equal(t, `{"a": {"b": 1}}`, outermostObject(`noise {"a": {"b": 1}} {"c": 2}`))
	assert.Equal(t, "", outermostObject(`{"a": 1`))
	assert.Equal(t, "", outermostObject(`no braces`))
	assert.Equal(t, `{"s": "\\"}`, outermostObject(`{"s": "\\"}`))
}

func TestValidator(t *testing.T) {
	v := NewValidator(nil)

	parse := func(s string) record.Value {
		rec, err := record.ParseString(s)
		require.NoError(t, err)
		return rec
	}

	tests := []struct {
		name    string
		rec     record.Value
		id      template.ID
		wantErr bool
	}{
		{"valid", parse(`{"Fund_Manager": {"Name": "Acme", "City": "NYC", "AUM": 5}}`), template.PrivateEquityFund, false},
		{"marker case-insensitive", parse(`{"fund_companies": [{"Company_Name": "A"}, {"Company_Name": "B"}, {"Company_Name": "C"}]}`), template.PrivateEquityFund, false},
		{"not an object", parse(`[1, 2, 3]`), template.PrivateEquityFund, true},
		{"no marker", parse(`{"Something": {"a": 1, "b": 2, "c": 3}}`), template.PrivateEquityFund, true},
		{"too few points", parse(`{"Schedule_of_Investments": [{"Company_Name": "A", "Cost": null}]}`), template.PortfolioSummary, true},
		{"fallback record", FallbackRecord("garbage"), template.PortfolioSummary, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.rec, tt.id)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRecord)
				return
			}
			assert.NoError(t, err)
		})
	}

	err := v.Validate(parse(`{}`), template.ID(3))
	assert.ErrorIs(t, err, template.ErrUnknownTemplate)
}

func TestValidator_Overrides(t *testing.T) {
	v := NewValidator(map[template.ID]Rules{
		template.PortfolioSummary:  {MinDataPoints: 1},
		template.PrivateEquityFund: {MarkerKeys: []string{"Custom"}},
	})

	assert.Equal(t, 1, v.Rules(template.PortfolioSummary).MinDataPoints)
	assert.Equal(t, []string{"Executive_Portfolio_Summary", "Schedule_of_Investments"}, v.Rules(template.PortfolioSummary).MarkerKeys)
	assert.Equal(t, []string{"Custom"}, v.Rules(template.PrivateEquityFund).MarkerKeys)
	assert.Equal(t, 3, v.Rules(template.PrivateEquityFund).MinDataPoints)

	rec, err := record.ParseString(`{"Executive_Portfolio_Summary": {"Portfolio_Overview": {"Assets_Under_Management": 1000000}}}`)
	require.NoError(t, err)
	assert.NoError(t, v.Validate(rec, template.PortfolioSummary))
}
