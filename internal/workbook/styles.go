package workbook

import (
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Palette colors (RGB hex).
const (
	ColorLightGray  = "F8F9FA"
	ColorWhite      = "FFFFFF"
	ColorWarningRed = "DC3545"
	ColorDarkGray   = "6C757D"
)

type role int

const (
	roleTitle role = iota
	roleHeading
	roleLabel
	roleHeader
	roleCell
	roleNote
	// rolePlain cells are written without a style.
	rolePlain
)

type styleKey struct {
	role    role
	shaded  bool
	numFmt  string
	numeric bool
}

// styleSet creates excelize styles lazily and reuses them per key. A style
// that fails to register falls back to the default (id 0).
type styleSet struct {
	f      *excelize.File
	brand  string
	ids    map[styleKey]int
	logger *zap.Logger
}

func newStyleSet(f *excelize.File, brand string, logger *zap.Logger) *styleSet {
	if brand == "" {
		brand = "2E86AB"
	}
	return &styleSet{f: f, brand: brand, ids: make(map[styleKey]int), logger: logger}
}

func (s *styleSet) id(k styleKey) int {
	if id, ok := s.ids[k]; ok {
		return id
	}
	id, err := s.f.NewStyle(s.build(k))
	if err != nil {
		s.logger.Warn("Failed to register cell style", zap.Int("role", int(k.role)), zap.Error(err))
		id = 0
	}
	s.ids[k] = id
	return id
}

func (s *styleSet) build(k styleKey) *excelize.Style {
	switch k.role {
	case roleTitle:
		return &excelize.Style{Font: &excelize.Font{Bold: true, Size: 16, Color: s.brand}}
	case roleHeading:
		return &excelize.Style{Font: &excelize.Font{Bold: true, Size: 12}}
	case roleLabel:
		return &excelize.Style{Font: &excelize.Font{Bold: true}}
	case roleHeader:
		return &excelize.Style{
			Font:      &excelize.Font{Bold: true, Color: ColorWhite},
			Fill:      solid(s.brand),
			Border:    thinBorder(),
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		}
	case roleNote:
		return &excelize.Style{
			Font:      &excelize.Font{Bold: true, Color: ColorWarningRed},
			Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
		}
	}

	fill := ColorWhite
	if k.shaded {
		fill = ColorLightGray
	}
	st := &excelize.Style{Fill: solid(fill), Border: thinBorder()}
	if k.numeric {
		st.Alignment = &excelize.Alignment{Horizontal: "right"}
	}
	if k.numFmt != "" {
		numFmt := k.numFmt
		st.CustomNumFmt = &numFmt
	}
	return st
}

func solid(color string) excelize.Fill {
	return excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}}
}

func thinBorder() []excelize.Border {
	return []excelize.Border{
		{Type: "left", Color: ColorDarkGray, Style: 1},
		{Type: "right", Color: ColorDarkGray, Style: 1},
		{Type: "top", Color: ColorDarkGray, Style: 1},
		{Type: "bottom", Color: ColorDarkGray, Style: 1},
	}
}
