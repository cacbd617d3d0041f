package structuring

import (
	"fmt"
	"strings"

	"github.com/garyjia/pe-report-extractor/internal/record"
	"github.com/garyjia/pe-report-extractor/internal/template"
)

// Rules are the per-template acceptance criteria for a parsed record.
type Rules struct {
	MarkerKeys    []string `mapstructure:"marker_keys"`
	MinDataPoints int      `mapstructure:"min_data_points"`
}

// Validator accepts or rejects parsed records.
type Validator struct {
	rules map[template.ID]Rules
}

// NewValidator starts from the catalog defaults and applies overrides.
// Override fields left empty keep the default.
func NewValidator(overrides map[template.ID]Rules) *Validator {
	rules := make(map[template.ID]Rules)
	for _, t := range template.All() {
		r := Rules{MarkerKeys: t.MarkerKeys, MinDataPoints: t.MinDataPoints}
		if o, ok := overrides[t.ID]; ok {
			if len(o.MarkerKeys) > 0 {
				r.MarkerKeys = o.MarkerKeys
			}
			if o.MinDataPoints > 0 {
				r.MinDataPoints = o.MinDataPoints
			}
		}
		rules[t.ID] = r
	}
	return &Validator{rules: rules}
}

// Rules returns the effective rules for id.
func (v *Validator) Rules(id template.ID) Rules {
	return v.rules[id]
}

// Validate returns nil when rec is a mapping that carries at least one
// marker key and enough data points. Errors wrap ErrInvalidRecord.
func (v *Validator) Validate(rec record.Value, id template.ID) error {
	r, ok := v.rules[id]
	if !ok {
		return fmt.Errorf("%w: %d", template.ErrUnknownTemplate, int(id))
	}

	m, ok := rec.AsMap()
	if !ok {
		return fmt.Errorf("%w: response is a %s, not an object", ErrInvalidRecord, rec.Kind())
	}
	if !hasMarker(m, r.MarkerKeys) {
		return fmt.Errorf("%w: none of %s present", ErrInvalidRecord, strings.Join(r.MarkerKeys, ", "))
	}
	if n := rec.DataPoints(); n < r.MinDataPoints {
		return fmt.Errorf("%w: %d data points, need %d", ErrInvalidRecord, n, r.MinDataPoints)
	}
	return nil
}

func hasMarker(m *record.Map, markers []string) bool {
	for _, k := range m.Keys() {
		for _, want := range markers {
			if strings.EqualFold(k, want) {
				return true
			}
		}
	}
	return false
}
