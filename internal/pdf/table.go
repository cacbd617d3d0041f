package pdf

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// MaxTableScore caps the financial relevance score of a single table.
const MaxTableScore = 25

// rowTolerance is the vertical distance, in points, under which two text
// lines are treated as the same table row.
const rowTolerance = 2.5

var tableHeaderIndicators = []string{
	"amount", "value", "price", "cost", "total", "sum", "balance", "revenue",
	"income", "expense", "profit", "loss", "cash", "fund", "investment",
	"capital", "fee", "rate", "percentage", "irr", "nav",
}

var (
	styleTop   = regexp.MustCompile(`top:\s*(-?[\d.]+)pt`)
	styleLeft  = regexp.MustCompile(`left:\s*(-?[\d.]+)pt`)
	columnGap  = regexp.MustCompile(`\s{2,}|\t`)
	tableMoney = regexp.MustCompile(`[$€£]\s?\d[\d,]*(?:\.\d+)?`)
)

// Table is a rectangular grid of cell strings found on a page.
type Table struct {
	Page        int        `json:"page"`
	Index       int        `json:"index"`
	Rows        [][]string `json:"rows"`
	IsFinancial bool       `json:"is_financial"`
	Score       int        `json:"score"`
}

// Header returns the non-empty cells of the first row joined by spaces.
func (t Table) Header() string {
	if len(t.Rows) == 0 {
		return ""
	}
	cells := make([]string, 0, len(t.Rows[0]))
	for _, c := range t.Rows[0] {
		if c = strings.TrimSpace(c); c != "" {
			cells = append(cells, c)
		}
	}
	return strings.Join(cells, " ")
}

// TableExtractor finds tables from the positioned text MuPDF emits as HTML.
// Lines sharing a baseline become a row; runs of at least two multi-cell
// rows become a table.
type TableExtractor struct {
	logger *zap.Logger
}

// NewTableExtractor creates a table extractor.
func NewTableExtractor(logger *zap.Logger) *TableExtractor {
	return &TableExtractor{logger: logger}
}

// Extract returns every table in doc. Pages that fail are skipped.
func (x *TableExtractor) Extract(ctx context.Context, doc Document) []Table {
	var tables []Table
	for i := 0; i < doc.NumPage(); i++ {
		if ctx.Err() != nil {
			break
		}

		grids, err := x.pageGrids(doc, i)
		if err != nil {
			x.logger.Debug("Table extraction skipped page",
				zap.Int("page", i+1),
				zap.Error(err))
			continue
		}
		for _, rows := range grids {
			t := Table{Page: i + 1, Index: len(tables), Rows: rows}
			classifyTable(&t)
			tables = append(tables, t)
		}
	}
	return tables
}

func (x *TableExtractor) pageGrids(doc Document, page int) ([][][]string, error) {
	html, err := doc.HTML(page, false)
	if err == nil {
		grids, perr := gridsFromHTML(html)
		if perr == nil && len(grids) > 0 {
			return grids, nil
		}
	}

	text, terr := doc.Text(page)
	if terr != nil {
		if err != nil {
			return nil, err
		}
		return nil, terr
	}
	return gridsFromText(text), nil
}

type positionedLine struct {
	top, left float64
	text      string
}

func gridsFromHTML(html string) ([][][]string, error) {
	dom, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var lines []positionedLine
	dom.Find("p").Each(func(_ int, s *goquery.Selection) {
		style := s.AttrOr("style", "")
		top, ok1 := styleFloat(styleTop, style)
		left, ok2 := styleFloat(styleLeft, style)
		text := strings.Join(strings.Fields(s.Text()), " ")
		if !ok1 || !ok2 || text == "" {
			return
		}
		lines = append(lines, positionedLine{top: top, left: left, text: text})
	})

	sort.SliceStable(lines, func(i, j int) bool { return lines[i].top < lines[j].top })

	var clusters [][]positionedLine
	for i, l := range lines {
		if i == 0 || l.top-clusters[len(clusters)-1][0].top > rowTolerance {
			clusters = append(clusters, nil)
		}
		clusters[len(clusters)-1] = append(clusters[len(clusters)-1], l)
	}

	rows := make([][]string, 0, len(clusters))
	for _, c := range clusters {
		sort.SliceStable(c, func(i, j int) bool { return c[i].left < c[j].left })
		row := make([]string, 0, len(c))
		for _, l := range c {
			row = append(row, l.text)
		}
		rows = append(rows, row)
	}
	return groupRows(rows), nil
}

func gridsFromText(text string) [][][]string {
	var rows [][]string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			rows = append(rows, nil)
			continue
		}
		var cells []string
		for _, c := range columnGap.Split(line, -1) {
			if c = strings.TrimSpace(c); c != "" {
				cells = append(cells, c)
			}
		}
		rows = append(rows, cells)
	}
	return groupRows(rows)
}

// groupRows splits rows into maximal runs of multi-cell rows, keeps runs of
// at least two rows, and pads each run to a rectangle.
func groupRows(rows [][]string) [][][]string {
	var grids [][][]string
	var run [][]string
	flush := func() {
		if len(run) >= 2 {
			grids = append(grids, rectangular(run))
		}
		run = nil
	}
	for _, r := range rows {
		if len(r) < 2 {
			flush()
			continue
		}
		run = append(run, r)
	}
	flush()
	return grids
}

func rectangular(rows [][]string) [][]string {
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		row := make([]string, width)
		copy(row, r)
		out[i] = row
	}
	return out
}

func styleFloat(re *regexp.Regexp, style string) (float64, bool) {
	m := re.FindStringSubmatch(style)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func classifyTable(t *Table) {
	header := strings.ToLower(t.Header())
	for _, ind := range tableHeaderIndicators {
		if strings.Contains(header, ind) {
			t.IsFinancial = true
			break
		}
	}
	if !t.IsFinancial {
		return
	}
	t.Score = TableScore(t.Rows)
}

// TableScore rates a table's cells: three points per financial keyword, two
// per currency amount and one per percentage, capped at MaxTableScore.
func TableScore(rows [][]string) int {
	var b strings.Builder
	for _, r := range rows {
		b.WriteString(strings.Join(r, " "))
		b.WriteByte('\n')
	}
	text := b.String()
	lower := strings.ToLower(text)

	score := 0
	for _, kw := range financialKeywords {
		score += 3 * strings.Count(lower, kw)
	}
	score += 2 * len(tableMoney.FindAllStringIndex(text, -1))
	score += len(percentAmount.FindAllStringIndex(text, -1))
	if score > MaxTableScore {
		return MaxTableScore
	}
	return score
}
