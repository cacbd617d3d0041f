package workbook

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/pe-report-extractor/internal/record"
)

// Column width bounds.
const (
	minColWidth       = 8
	maxColWidth       = 50
	maxFinancialWidth = 20
)

// Table columns that lead when present, highest first.
var headerPriority = map[string]int{
	"Company_Name":     100,
	"Investment_Date":  95,
	"Amount":           90,
	"Value":            85,
	"Transaction_Date": 80,
	"Investor_Name":    75,
	"Currency":         70,
	"Fund_Name":        65,
	"NAV":              60,
	"IRR":              55,
	"Commitment":       50,
}

// sheetWriter appends rows to one sheet and tracks column widths.
type sheetWriter struct {
	f         *excelize.File
	name      string
	styles    *styleSet
	logger    *zap.Logger
	row       int
	widths    map[int]int
	financial map[int]bool
}

func newSheetWriter(f *excelize.File, name string, styles *styleSet, logger *zap.Logger) *sheetWriter {
	return &sheetWriter{
		f:         f,
		name:      name,
		styles:    styles,
		logger:    logger,
		row:       1,
		widths:    make(map[int]int),
		financial: make(map[int]bool),
	}
}

func (w *sheetWriter) set(col, row int, value any, display string, style styleKey) {
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		w.logger.Warn("Invalid cell coordinates", zap.Int("col", col), zap.Int("row", row), zap.Error(err))
		return
	}
	if err := w.f.SetCellValue(w.name, ref, value); err != nil {
		w.logger.Warn("Failed to set cell value",
			zap.String("sheet", w.name),
			zap.String("cell", ref),
			zap.Error(err))
		return
	}
	if style.role != rolePlain {
		if id := w.styles.id(style); id != 0 {
			if err := w.f.SetCellStyle(w.name, ref, ref, id); err != nil {
				w.logger.Debug("Failed to set cell style", zap.String("cell", ref), zap.Error(err))
			}
		}
	}
	if n := utf8.RuneCountInString(display); n > w.widths[col] {
		w.widths[col] = n
	}
}

func (w *sheetWriter) text(col int, s string, r role) {
	w.set(col, w.row, s, s, styleKey{role: r})
}

func (w *sheetWriter) skip(n int) {
	w.row += n
}

func (w *sheetWriter) title(s string) {
	w.text(1, s, roleTitle)
	w.skip(2)
}

func (w *sheetWriter) heading(s string) {
	w.text(1, s, roleHeading)
	w.skip(1)
}

func (w *sheetWriter) note(s string) {
	w.text(1, s, roleNote)
	w.skip(1)
}

func (w *sheetWriter) label(key string, value any) {
	display := fmt.Sprint(value)
	w.set(1, w.row, key, key, styleKey{role: roleLabel})
	w.set(2, w.row, value, display, styleKey{role: rolePlain})
	w.skip(1)
}

func (w *sheetWriter) header(cols []string) {
	for i, c := range cols {
		w.text(i+1, c, roleHeader)
	}
	w.skip(1)
}

func (w *sheetWriter) value(col int, c cell, shaded bool) {
	w.set(col, w.row, c.value, c.display, styleKey{role: roleCell, shaded: shaded, numFmt: c.numFmt, numeric: c.numeric})
}

type pair struct {
	key string
	val record.Value
}

// keyValues writes a Field/Value block. Null and empty values are skipped;
// nothing is written when every value is empty.
func (w *sheetWriter) keyValues(pairs []pair) {
	var rows []pair
	for _, p := range pairs {
		if !p.val.IsEmpty() {
			rows = append(rows, p)
		}
	}
	if len(rows) == 0 {
		return
	}

	w.header([]string{"Field", "Value"})
	for i, p := range rows {
		shaded := i%2 == 0
		w.value(1, textCell(Humanize(p.key)), shaded)
		c := formatCell(p.key, p.val, "")
		if c.numeric && IsFinancialField(p.key) {
			w.financial[2] = true
		}
		w.value(2, c, shaded)
		w.skip(1)
	}
	w.skip(1)
}

// table writes a header row plus one row per mapping in items. Lists of
// scalars become a numbered list instead.
func (w *sheetWriter) table(field string, items []record.Value) {
	rows := make([]*record.Map, 0, len(items))
	for _, item := range items {
		if m, ok := item.AsMap(); ok {
			rows = append(rows, m)
		}
	}

	if len(rows) == 0 {
		for i, item := range items {
			if item.IsEmpty() {
				continue
			}
			w.set(1, w.row, fmt.Sprintf("%d.", i+1), "", styleKey{role: roleLabel})
			w.value(2, formatCell(field, item, notApplicable), false)
			w.skip(1)
		}
		w.skip(1)
		return
	}

	headers := tableHeaders(rows)
	if len(headers) == 0 {
		w.note("No valid table data found")
		return
	}

	display := make([]string, len(headers))
	for i, h := range headers {
		display[i] = Humanize(h)
		if IsFinancialField(h) {
			w.financial[i+1] = true
		}
	}
	w.header(display)

	for r, m := range rows {
		shaded := r%2 == 0
		for i, h := range headers {
			v, _ := m.Get(h)
			w.value(i+1, formatCell(h, v, notApplicable), shaded)
		}
		w.skip(1)
	}
	w.skip(1)
}

// tableHeaders is the union of keys across rows in first-appearance order,
// with well-known identifying columns moved to the front.
func tableHeaders(rows []*record.Map) []string {
	var headers []string
	seen := make(map[string]bool)
	for _, m := range rows {
		for _, k := range m.DomainKeys() {
			if !seen[k] {
				seen[k] = true
				headers = append(headers, k)
			}
		}
	}
	sort.SliceStable(headers, func(i, j int) bool {
		return headerPriority[headers[i]] > headerPriority[headers[j]]
	})
	return headers
}

// mapBlocks renders a mapping: scalar entries first as one Field/Value block,
// then one titled block per nested mapping or list.
func (w *sheetWriter) mapBlocks(m *record.Map) {
	var leading []pair
	for _, k := range m.DomainKeys() {
		v, _ := m.Get(k)
		if !isContainerBlock(v) {
			leading = append(leading, pair{k, v})
		}
	}
	w.keyValues(leading)

	for _, k := range m.DomainKeys() {
		v, _ := m.Get(k)
		if !isContainerBlock(v) || !v.HasMeaningfulData() {
			continue
		}
		w.heading(Humanize(k))
		if nested, ok := v.AsMap(); ok {
			var pairs []pair
			for _, nk := range nested.DomainKeys() {
				nv, _ := nested.Get(nk)
				pairs = append(pairs, pair{nk, nv})
			}
			w.keyValues(pairs)
			continue
		}
		items, _ := v.AsList()
		w.table(k, items)
	}
}

// isContainerBlock reports values that get their own titled block: nested
// mappings and lists holding at least one mapping.
func isContainerBlock(v record.Value) bool {
	if _, ok := v.AsMap(); ok {
		return true
	}
	items, ok := v.AsList()
	if !ok {
		return false
	}
	for _, item := range items {
		if _, ok := item.AsMap(); ok {
			return true
		}
	}
	return false
}

// reference writes each category as a title followed by one value per row.
func (w *sheetWriter) reference(m *record.Map) {
	for _, k := range m.DomainKeys() {
		v, _ := m.Get(k)
		if !v.HasMeaningfulData() {
			continue
		}
		w.text(1, Humanize(k), roleLabel)
		w.skip(1)
		switch {
		case v.Kind() == record.KindList:
			items, _ := v.AsList()
			for _, item := range items {
				if item.IsEmpty() {
					continue
				}
				w.value(1, formatCell(k, item, notApplicable), false)
				w.skip(1)
			}
		case v.Kind() == record.KindMap:
			nested, _ := v.AsMap()
			var pairs []pair
			for _, nk := range nested.DomainKeys() {
				nv, _ := nested.Get(nk)
				pairs = append(pairs, pair{nk, nv})
			}
			w.keyValues(pairs)
		default:
			w.value(1, formatCell(k, v, notApplicable), false)
			w.skip(1)
		}
		w.skip(1)
	}
}

// fitColumns sizes every used column to its longest rendered value.
func (w *sheetWriter) fitColumns() {
	for col, n := range w.widths {
		width := n + 2
		if width > maxColWidth {
			width = maxColWidth
		}
		if w.financial[col] {
			width = n + 4
			if width > maxFinancialWidth {
				width = maxFinancialWidth
			}
		}
		if width < minColWidth {
			width = minColWidth
		}
		name, err := excelize.ColumnNumberToName(col)
		if err != nil {
			continue
		}
		if err := w.f.SetColWidth(w.name, name, name, float64(width)); err != nil {
			w.logger.Debug("Failed to set column width", zap.String("sheet", w.name), zap.Error(err))
		}
	}
}
