package record

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_PreservesKeyOrder(t *testing.T) {
	v, err := ParseString(`{"b": 1, "a": {"z": true, "y": null}, "c": [1, "x"]}`)
	require.NoError(t, err)

	m, ok := v.AsMap()
	require.True(t, ok)
	assert.Equal(t, []string{"b", "a", "c"}, m.Keys())

	inner, _ := m.Get("a")
	im, ok := inner.AsMap()
	require.True(t, ok)
	assert.Equal(t, []string{"z", "y"}, im.Keys())

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `{"b":1,"a":{"z":true,"y":null},"c":[1,"x"]}`, string(out))
}

func TestParse_RejectsTrailingContent(t *testing.T) {
	_, err := ParseString(`{"a": 1} trailing`)
	assert.ErrorIs(t, err, ErrNotJSON)

	_, err = ParseString(``)
	assert.ErrorIs(t, err, ErrNotJSON)
}

func TestParse_LargeIntegersRoundTrip(t *testing.T) {
	v, err := ParseString(`{"Fund_Size": 500000000}`)
	require.NoError(t, err)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Fund_Size": 500000000}`, string(out))
}

func TestDataPoints(t *testing.T) {
	tests := []struct {
		name string
		json string
		want int
	}{
		{"scalars", `{"a": "x", "b": 0, "c": false}`, 3},
		{"placeholders skipped", `{"a": "null", "b": "None", "c": "N/A", "d": "  ", "e": null}`, 0},
		{"nested", `{"a": {"b": [{"c": 1}, {"c": "two"}], "d": []}}`, 2},
		{"empty", `{}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseString(tt.json)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.DataPoints())
		})
	}
}

func TestIsEmptyAndMeaningful(t *testing.T) {
	assert.True(t, Null().IsEmpty())
	assert.True(t, String(" ").IsEmpty())
	assert.True(t, List().IsEmpty())
	assert.True(t, MapValue(nil).IsEmpty())
	assert.False(t, Number(0).IsEmpty())

	v, err := ParseString(`{"a": {"b": null, "c": [null, ""]}}`)
	require.NoError(t, err)
	assert.False(t, v.HasMeaningfulData())

	v, err = ParseString(`{"a": {"b": null, "c": [null, 3]}}`)
	require.NoError(t, err)
	assert.True(t, v.HasMeaningfulData())
}

func TestMap_SetDeleteKeepOrder(t *testing.T) {
	m := NewMap().Set("a", Number(1)).Set("b", Number(2)).Set("c", Number(3))
	m.Set("a", Number(10))
	assert.Equal(t, []string{"a", "b", "c"}, m.Keys())

	m.Delete("b")
	assert.Equal(t, []string{"a", "c"}, m.Keys())

	m.Delete("missing")
	assert.Equal(t, 2, m.Len())
}

func TestMap_DomainKeysHidesOnlyMetadata(t *testing.T) {
	m := NewMap().Set("Fund_Name", String("Acme")).Set("_notes", String("see p.4")).Set(MetadataKey, MapValue(NewMap()))
	assert.Equal(t, []string{"Fund_Name", "_notes"}, m.DomainKeys())
}

func TestFromAny_SortsKeys(t *testing.T) {
	v := FromAny(map[string]any{"z": 1.0, "a": []any{"x", nil}})
	m, ok := v.AsMap()
	require.True(t, ok)
	assert.Equal(t, []string{"a", "z"}, m.Keys())
}

func TestMetadataAttachAndStrip(t *testing.T) {
	rec, err := ParseString(`{"Fund_Manager": {"Name": "Acme"}}`)
	require.NoError(t, err)

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	withMeta := WithMetadata(rec, Metadata{
		ExtractionTimestamp: ts,
		TemplateName:        "Private Equity Fund Detailed Template",
		TemplateID:          1,
		TemplateVersion:     "1.3.0",
		ProcessorVersion:    ProcessorVersion,
		DataPoints:          1,
	})

	m, _ := withMeta.AsMap()
	meta, ok := m.Get(MetadataKey)
	require.True(t, ok)
	mm, _ := meta.AsMap()
	ver, _ := mm.Get("processor_version")
	s, _ := ver.AsString()
	assert.Equal(t, "2.3.0", s)

	// the original is untouched
	orig, _ := rec.AsMap()
	_, has := orig.Get(MetadataKey)
	assert.False(t, has)

	stripped, _ := StripMetadata(withMeta).AsMap()
	assert.Equal(t, []string{"Fund_Manager"}, stripped.Keys())
}
