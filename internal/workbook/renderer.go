// Package workbook renders structured records into formatted spreadsheets.
//
// Rendering never fails: missing sections, wrongly typed values and even
// internal faults degrade to sheets carrying an explanatory note. Every
// non-metadata top-level key with data ends up on some sheet.
package workbook

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/pe-report-extractor/internal/record"
	"github.com/garyjia/pe-report-extractor/internal/template"
)

// ErrSaveFailed wraps every failure to write a workbook to disk.
var ErrSaveFailed = errors.New("failed to save workbook")

// Sheet names used outside the template plan.
const (
	NoDataSheet          = "No Data"
	ExtractedDataSheet   = "Extracted Data"
	AdditionalPrefix     = "Additional_"
	maxPreviewItems      = 5
	maxPreviewDepth      = 6
	defaultSheetOnCreate = "Sheet1"
)

// SourceInfo describes where a record came from.
type SourceInfo struct {
	// Files are the documents that contributed text.
	Files []string
	// Excluded are documents dropped during extraction.
	Excluded    []string
	ExtractedAt time.Time
}

// Primary returns the first contributing file name, or "".
func (s SourceInfo) Primary() string {
	if len(s.Files) == 0 {
		return ""
	}
	return s.Files[0]
}

// Renderer turns structured records into workbooks.
type Renderer struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewRenderer creates a renderer.
func NewRenderer(logger *zap.Logger) *Renderer {
	return &Renderer{logger: logger, now: time.Now}
}

// Render builds the workbook for rec. It always returns a usable file: the
// first sheet is an overview, followed by template sheets, additional-data
// sheets or a single no-data sheet.
func (r *Renderer) Render(rec record.Value, tmpl template.Template, src SourceInfo) (f *excelize.File) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Workbook rendering panicked, emitting fault sheet",
				zap.Int("template_id", int(tmpl.ID)),
				zap.Any("panic", p))
			f = r.faultWorkbook(tmpl, fmt.Sprint(p))
		}
	}()

	if src.ExtractedAt.IsZero() {
		src.ExtractedAt = r.now()
	}

	f = excelize.NewFile()
	styles := newStyleSet(f, tmpl.Color, r.logger)
	names := newSheetNamer()
	domain := record.StripMetadata(rec)

	overview := names.next(overviewName(tmpl, src))
	if err := f.SetSheetName(defaultSheetOnCreate, overview); err != nil {
		r.logger.Warn("Failed to rename overview sheet", zap.Error(err))
		overview = defaultSheetOnCreate
	}
	ow := newSheetWriter(f, overview, styles, r.logger)
	r.writeOverview(ow, domain, tmpl, src)
	ow.fitColumns()

	b := &builder{f: f, styles: styles, names: names, tmpl: tmpl, logger: r.logger}
	m, isMap := domain.AsMap()
	switch {
	case isMap && b.hasStandardData(m):
		b.standard(m)
	case isMap:
		b.flexible(m)
	case domain.HasMeaningfulData():
		w := b.sheet(ExtractedDataSheet)
		w.title(ExtractedDataSheet)
		b.writeValue(w, "data", domain, template.ShapeKeyValue)
		w.fitColumns()
		b.created++
	}
	if b.created == 0 {
		b.noData()
	}

	f.SetActiveSheet(0)
	r.logger.Info("Workbook rendered",
		zap.Int("template_id", int(tmpl.ID)),
		zap.String("source", src.Primary()),
		zap.Strings("sheets", f.GetSheetList()))
	return f
}

// Save writes f to path, creating parent directories.
func (r *Renderer) Save(f *excelize.File, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: create output directory: %v", ErrSaveFailed, err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, path, err)
	}
	r.logger.Info("Workbook saved", zap.String("path", path))
	return nil
}

func overviewName(tmpl template.Template, src SourceInfo) string {
	base := BaseName(src.Primary())
	if base == "" {
		return tmpl.Name
	}
	return base + " - " + tmpl.Name
}

func (r *Renderer) faultWorkbook(tmpl template.Template, reason string) *excelize.File {
	f := excelize.NewFile()
	name := SheetName(NoDataSheet)
	if err := f.SetSheetName(defaultSheetOnCreate, name); err != nil {
		name = defaultSheetOnCreate
	}
	w := newSheetWriter(f, name, newStyleSet(f, tmpl.Color, r.logger), r.logger)
	w.title(tmpl.Name)
	w.note("Workbook could not be rendered: " + reason)
	w.fitColumns()
	return f
}

func (r *Renderer) writeOverview(w *sheetWriter, domain record.Value, tmpl template.Template, src SourceInfo) {
	title := tmpl.Name
	if p := src.Primary(); p != "" {
		title += " - " + p
	}
	w.title(title)

	w.heading("Extraction Information")
	files := "Not specified"
	if len(src.Files) > 0 {
		files = strings.Join(src.Files, ", ")
	}
	excluded := "None"
	if len(src.Excluded) > 0 {
		excluded = strings.Join(src.Excluded, ", ")
	}
	w.label("Template ID:", int(tmpl.ID))
	w.label("Template Name:", tmpl.Name)
	w.label("PDF File:", files)
	w.label("Extraction Date:", src.ExtractedAt.Format("2006-01-02 15:04:05"))
	w.label("Data Type:", domain.Kind().String())
	w.label("Files Processed:", len(src.Files))
	w.label("Files Excluded:", excluded)
	w.skip(1)

	if !domain.HasMeaningfulData() {
		w.note("No data received - check LLM processing")
		return
	}

	w.heading("Data Summary")
	available := "None"
	if m, ok := domain.AsMap(); ok {
		var keys []string
		for _, k := range m.DomainKeys() {
			if v, _ := m.Get(k); v.HasMeaningfulData() {
				keys = append(keys, k)
			}
		}
		if len(keys) > 0 {
			available = strings.Join(keys, ", ")
		}
	}
	w.label("Available Sections:", available)
	w.label("Total Data Points:", domain.DataPoints())
	w.skip(1)

	w.heading("Extracted Data Structure")
	w.skip(1)
	w.row = preview(w, domain, w.row, 1, 0)
}

// preview writes an indented outline of v starting at (row, col) and returns
// the next free row.
func preview(w *sheetWriter, v record.Value, row, col, level int) int {
	indent := strings.Repeat("  ", level)
	if level >= maxPreviewDepth {
		w.set(col, row, indent+overviewValue(v), "", styleKey{role: rolePlain})
		return row + 1
	}

	switch v.Kind() {
	case record.KindMap:
		m, _ := v.AsMap()
		for _, k := range m.DomainKeys() {
			child, _ := m.Get(k)
			label := indent + k + ":"
			w.set(col, row, label, label, styleKey{role: roleLabel})
			if (child.Kind() == record.KindMap || child.Kind() == record.KindList) && child.HasMeaningfulData() {
				row = preview(w, child, row+1, col+1, level+1)
				continue
			}
			s := overviewValue(child)
			w.set(col+1, row, s, s, styleKey{role: rolePlain})
			row++
		}
	case record.KindList:
		items, _ := v.AsList()
		for i, item := range items {
			if i == maxPreviewItems {
				s := fmt.Sprintf("%s... and %d more items", indent, len(items)-maxPreviewItems)
				w.set(col, row, s, s, styleKey{role: rolePlain})
				row++
				break
			}
			s := fmt.Sprintf("%s[%d]:", indent, i)
			w.set(col, row, s, s, styleKey{role: rolePlain})
			row = preview(w, item, row+1, col+1, level+1)
		}
	default:
		s := indent + overviewValue(v)
		w.set(col, row, s, s, styleKey{role: rolePlain})
		row++
	}
	return row
}

func overviewValue(v record.Value) string {
	switch v.Kind() {
	case record.KindNull:
		return notApplicable
	case record.KindList:
		items, _ := v.AsList()
		if len(items) == 0 {
			return "Empty list"
		}
		return fmt.Sprintf("List with %d items", len(items))
	case record.KindMap:
		m, _ := v.AsMap()
		return fmt.Sprintf("Object with %d fields", m.Len())
	}
	return formatCell("", v, notApplicable).display
}

// builder creates the data sheets of one workbook.
type builder struct {
	f       *excelize.File
	styles  *styleSet
	names   *sheetNamer
	tmpl    template.Template
	logger  *zap.Logger
	created int
}

func (b *builder) sheet(want string) *sheetWriter {
	name := b.names.next(want)
	if _, err := b.f.NewSheet(name); err != nil {
		b.logger.Warn("Failed to create sheet", zap.String("sheet", name), zap.Error(err))
	}
	return newSheetWriter(b.f, name, b.styles, b.logger)
}

func (b *builder) hasStandardData(m *record.Map) bool {
	for _, p := range locateSections(m, b.tmpl.Sections) {
		if !p.found {
			continue
		}
		if v, _ := m.Get(p.key); v.HasMeaningfulData() {
			return true
		}
	}
	return false
}

// standard emits one sheet per planned section, in template order, then an
// additional sheet for each unclaimed key that carries data.
func (b *builder) standard(m *record.Map) {
	claimed := make(map[string]bool)
	for _, p := range locateSections(m, b.tmpl.Sections) {
		w := b.sheet(p.section.SheetName)
		w.title(p.section.SheetName)
		b.created++

		if !p.found {
			w.note(fmt.Sprintf("No %s data found in the document", p.section.SheetName))
			w.fitColumns()
			b.logger.Debug("Section missing from record", zap.String("section", p.section.Key))
			continue
		}
		claimed[p.key] = true
		v, _ := m.Get(p.key)
		b.writeSection(w, p.section, v)
		w.fitColumns()
	}

	for _, k := range m.DomainKeys() {
		if claimed[k] {
			continue
		}
		if v, _ := m.Get(k); v.HasMeaningfulData() {
			b.additional(k, v)
		}
	}
}

// flexible assigns each top-level key with data to its best-scoring section,
// or to an additional sheet when nothing scores high enough.
func (b *builder) flexible(m *record.Map) {
	for _, k := range m.DomainKeys() {
		v, _ := m.Get(k)
		if !v.HasMeaningfulData() {
			continue
		}
		sec, ok := bestSection(k, b.tmpl)
		if !ok {
			b.additional(k, v)
			continue
		}
		b.logger.Info("Mapped record key to template section",
			zap.String("key", k),
			zap.String("section", sec.Key))
		w := b.sheet(sec.SheetName)
		w.title(sec.SheetName)
		b.writeSection(w, sec, v)
		w.fitColumns()
		b.created++
	}
}

func (b *builder) additional(key string, v record.Value) {
	w := b.sheet(AdditionalPrefix + key)
	w.title(Humanize(key))
	b.writeValue(w, key, v, template.ShapeKeyValue)
	w.fitColumns()
	b.created++
}

func (b *builder) noData() {
	w := b.sheet(NoDataSheet)
	w.title(b.tmpl.Name)
	w.note("No structured data was extracted from the document")
	w.fitColumns()
	b.created++
}

// writeSection renders v under a planned section, or a note when v has
// nothing to show.
func (b *builder) writeSection(w *sheetWriter, sec template.Section, v record.Value) {
	if msg, ok := errorMessage(v); ok {
		w.note("Extraction error: " + msg)
		return
	}
	if !v.HasMeaningfulData() {
		w.note(fmt.Sprintf("No %s data available", sec.SheetName))
		return
	}
	b.writeValue(w, sec.Key, v, sec.Shape)
}

func (b *builder) writeValue(w *sheetWriter, key string, v record.Value, shape template.Shape) {
	switch v.Kind() {
	case record.KindMap:
		m, _ := v.AsMap()
		if shape == template.ShapeReference {
			w.reference(m)
			return
		}
		w.mapBlocks(m)
	case record.KindList:
		items, _ := v.AsList()
		w.table(key, items)
	default:
		w.keyValues([]pair{{key, v}})
	}
}

// errorMessage reports a section that carries an "error" entry instead of
// data.
func errorMessage(v record.Value) (string, bool) {
	m, ok := v.AsMap()
	if !ok {
		return "", false
	}
	e, ok := m.Get("error")
	if !ok || e.IsEmpty() {
		return "", false
	}
	if s, ok := e.AsString(); ok {
		return s, true
	}
	return formatCell("error", e, "").display, true
}
