// Package template holds the static catalog of supported report templates.
//
// A template describes one spreadsheet layout: the ordered sections the model is
// asked to fill, the schema hint shown in the prompt, the extraction guidelines,
// and the validation knobs applied to the model's answer. The same section
// descriptors drive both prompt construction and workbook rendering.
package template

import (
	"fmt"
	"strconv"
	"strings"
)

// ID identifies one of the supported templates.
type ID int

const (
	PrivateEquityFund ID = 1
	PortfolioSummary  ID = 2
)

// String returns the decimal form used on the wire.
func (id ID) String() string {
	return strconv.Itoa(int(id))
}

// Valid reports whether id names a catalog entry.
func (id ID) Valid() bool {
	_, ok := catalog[id]
	return ok
}

// ParseID converts user input to an ID. Unknown values are rejected with
// ErrUnknownTemplate so callers can fail before any extraction work.
func ParseID(raw string) (ID, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("%w: template id is required", ErrUnknownTemplate)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrUnknownTemplate, raw)
	}
	id := ID(n)
	if !id.Valid() {
		return 0, fmt.Errorf("%w: %d (supported: %s)", ErrUnknownTemplate, n, supportedList())
	}
	return id, nil
}

// Shape is how a section's data is laid out on its sheet.
type Shape int

const (
	ShapeKeyValue Shape = iota
	ShapeTabular
	ShapeReference
)

func (s Shape) String() string {
	switch s {
	case ShapeTabular:
		return "tabular"
	case ShapeReference:
		return "reference"
	default:
		return "key-value"
	}
}

// Kind is the declared type of a leaf field in the schema hint.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindStringList
	// KindRequiredString marks identifying columns such as Company_Name.
	KindRequiredString
)

// Field is a single named leaf in a section or subsection.
type Field struct {
	Name string
	Kind Kind
}

// Group is a named block of fields inside a key-value section.
type Group struct {
	Name   string
	Fields []Field
}

// Section is one top-level key of a structured record and its sheet.
type Section struct {
	Key       string
	SheetName string
	Shape     Shape
	// Groups is set for key-value and reference sections.
	Groups []Group
	// Columns is set for tabular sections.
	Columns []Field
}

// SubSections returns the group names of a key-value section.
func (s Section) SubSections() []string {
	names := make([]string, 0, len(s.Groups))
	for _, g := range s.Groups {
		names = append(names, g.Name)
	}
	return names
}

// Variant selects the full or the reduced schema and guideline text.
type Variant int

const (
	VariantSimplified Variant = iota
	VariantFull
)

// ParseVariant accepts "full" or "simplified"; anything else is simplified.
func ParseVariant(s string) Variant {
	if strings.EqualFold(strings.TrimSpace(s), "full") {
		return VariantFull
	}
	return VariantSimplified
}

func (v Variant) String() string {
	if v == VariantFull {
		return "full"
	}
	return "simplified"
}

// Template is an immutable catalog entry.
type Template struct {
	ID          ID
	Name        string
	Description string
	Version     string
	// Color is the brand header color (RGB hex, no '#').
	Color string
	// FileSuffix is appended to generated workbook names.
	FileSuffix string
	// Focus is the one-line targeting instruction placed in prompts.
	Focus string

	Sections             []Section
	SimplifiedSections   []Section
	Guidelines           string
	SimplifiedGuidelines string

	// MarkerKeys are top-level keys whose presence shows a record is shaped
	// for this template.
	MarkerKeys    []string
	MinDataPoints int

	// SynonymTerms maps a section-name fragment to data-key terms that hint
	// at it during flexible mapping.
	SynonymTerms map[string][]string
}

// SheetNames returns the display names in section order.
func (t Template) SheetNames() []string {
	names := make([]string, 0, len(t.Sections))
	for _, s := range t.Sections {
		names = append(names, s.SheetName)
	}
	return names
}

// Section returns the section with the given canonical key.
func (t Template) Section(key string) (Section, bool) {
	for _, s := range t.Sections {
		if s.Key == key {
			return s, true
		}
	}
	return Section{}, false
}

// SectionsFor returns the section list of the requested variant.
func (t Template) SectionsFor(v Variant) []Section {
	if v == VariantSimplified && len(t.SimplifiedSections) > 0 {
		return t.SimplifiedSections
	}
	return t.Sections
}

// GuidelinesFor returns the guideline text of the requested variant.
func (t Template) GuidelinesFor(v Variant) string {
	if v == VariantSimplified && t.SimplifiedGuidelines != "" {
		return t.SimplifiedGuidelines
	}
	return t.Guidelines
}

// Lookup returns the template for id.
func Lookup(id ID) (Template, error) {
	t, ok := catalog[id]
	if !ok {
		return Template{}, fmt.Errorf("%w: %d (supported: %s)", ErrUnknownTemplate, int(id), supportedList())
	}
	return t, nil
}

// MustLookup is Lookup for ids known to be valid at compile time.
func MustLookup(id ID) Template {
	t, err := Lookup(id)
	if err != nil {
		panic(err)
	}
	return t
}

// All returns every template in id order.
func All() []Template {
	return []Template{catalog[PrivateEquityFund], catalog[PortfolioSummary]}
}

// IDs returns the supported ids in order.
func IDs() []ID {
	return []ID{PrivateEquityFund, PortfolioSummary}
}

func supportedList() string {
	parts := make([]string, 0, len(catalog))
	for _, id := range IDs() {
		parts = append(parts, id.String())
	}
	return strings.Join(parts, ", ")
}
