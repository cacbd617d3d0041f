package workbook

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/garyjia/pe-report-extractor/internal/record"
)

// Number formats applied to numeric cells.
const (
	FormatMillions = `"$"#,##0.0,,"M"`
	FormatThousand = `"$"#,##0,"K"`
	FormatCurrency = `"$"#,##0`
	FormatPercent  = `0.00%`
	FormatPoints   = `0.00"%"`
	FormatMultiple = `0.00"x"`
	FormatYear     = `0`
	FormatInteger  = `#,##0`
	FormatDecimal  = `#,##0.00`
)

const (
	listPreview   = 3
	maxStringLen  = 50
	notApplicable = "N/A"
)

var financialTerms = []string{
	"amount", "value", "price", "cost", "nav", "irr", "commitment",
	"capital", "investment", "fee", "rate", "percentage", "money",
	"fund", "cash", "distribution", "contribution", "proceeds",
	"revenue", "income", "expense", "ebitda", "profit", "loss",
}

var percentTerms = []string{"percent", "rate", "irr", "margin", "growth", "yield"}

var multipleTerms = map[string]bool{"tvpi": true, "dpi": true, "rvpi": true, "moic": true, "multiple": true}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"02-01-2006",
	"2006/01/02",
}

// IsFinancialField reports whether a field name suggests a money amount.
func IsFinancialField(name string) bool {
	return containsAny(strings.ToLower(name), financialTerms)
}

func isPercentField(name string) bool {
	return containsAny(strings.ToLower(name), percentTerms)
}

func isMultipleField(name string) bool {
	for _, w := range strings.Split(strings.ToLower(name), "_") {
		if multipleTerms[w] {
			return true
		}
	}
	return false
}

func isYearField(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "year") || strings.Contains(lower, "date")
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// cell is one rendered value: what is written, how it is formatted, and the
// text used for column sizing.
type cell struct {
	value   any
	numFmt  string
	numeric bool
	display string
}

// NumberFormat picks the display format of a numeric value under field.
func NumberFormat(field string, n float64) string {
	abs := math.Abs(n)
	switch {
	case isMultipleField(field):
		return FormatMultiple
	case isPercentField(field) && abs <= 1:
		return FormatPercent
	case isPercentField(field):
		return FormatPoints
	case isYearField(field) && n == math.Trunc(n):
		return FormatYear
	case IsFinancialField(field) && abs >= 1_000_000:
		return FormatMillions
	case IsFinancialField(field) && abs >= 1_000:
		return FormatThousand
	case IsFinancialField(field):
		return FormatCurrency
	case n == math.Trunc(n):
		return FormatInteger
	default:
		return FormatDecimal
	}
}

// formatCell renders v for a cell under field. nullText is what a null
// becomes.
func formatCell(field string, v record.Value, nullText string) cell {
	switch v.Kind() {
	case record.KindNull:
		return textCell(nullText)
	case record.KindNumber:
		n, _ := v.AsNumber()
		numFmt := NumberFormat(field, n)
		return cell{value: n, numFmt: numFmt, numeric: true, display: displayNumber(numFmt, n)}
	case record.KindBool:
		b, _ := v.AsBool()
		if b {
			return textCell("Yes")
		}
		return textCell("No")
	case record.KindString:
		s, _ := v.AsString()
		return textCell(DisplayString(s))
	case record.KindList:
		items, _ := v.AsList()
		return textCell(summarizeList(field, items))
	case record.KindMap:
		m, _ := v.AsMap()
		return textCell(fmt.Sprintf("%d fields", m.Len()))
	}
	return textCell("")
}

func textCell(s string) cell {
	return cell{value: s, display: s}
}

// DisplayString normalizes dates and truncates long text.
func DisplayString(s string) string {
	s = strings.TrimSpace(s)
	if d, ok := NormalizeDate(s); ok {
		return d
	}
	if len([]rune(s)) > maxStringLen {
		return truncateRunes(s, maxStringLen) + "..."
	}
	return s
}

// NormalizeDate rewrites recognised date strings as YYYY-MM-DD.
func NormalizeDate(s string) (string, bool) {
	if len(s) < 8 || len(s) > 25 {
		return "", false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

func summarizeList(field string, items []record.Value) string {
	if len(items) == 0 {
		return ""
	}
	parts := make([]string, 0, listPreview)
	for i, item := range items {
		if i == listPreview {
			break
		}
		parts = append(parts, formatCell(field, item, notApplicable).display)
	}
	out := strings.Join(parts, ", ")
	if extra := len(items) - listPreview; extra > 0 {
		out += fmt.Sprintf(" ... (+%d more)", extra)
	}
	return out
}

// displayNumber approximates how a spreadsheet shows n under numFmt. It is
// used for column sizing and list previews.
func displayNumber(numFmt string, n float64) string {
	switch numFmt {
	case FormatMillions:
		return fmt.Sprintf("$%sM", strconv.FormatFloat(n/1_000_000, 'f', 1, 64))
	case FormatThousand:
		return fmt.Sprintf("$%sK", groupThousands(math.Round(n/1_000)))
	case FormatCurrency:
		return "$" + groupThousands(math.Round(n))
	case FormatPercent:
		return strconv.FormatFloat(n*100, 'f', 2, 64) + "%"
	case FormatPoints:
		return strconv.FormatFloat(n, 'f', 2, 64) + "%"
	case FormatMultiple:
		return strconv.FormatFloat(n, 'f', 2, 64) + "x"
	case FormatYear:
		return strconv.FormatFloat(n, 'f', 0, 64)
	case FormatInteger:
		return groupThousands(n)
	default:
		return groupDigits(strconv.FormatFloat(n, 'f', 2, 64))
	}
}

func groupThousands(n float64) string {
	return groupDigits(strconv.FormatFloat(n, 'f', 0, 64))
}

// groupDigits inserts thousands separators into the integer part of a
// decimal string such as "-1234.50". Rounding must already be applied.
func groupDigits(s string) string {
	var b strings.Builder
	if rest, ok := strings.CutPrefix(s, "-"); ok {
		s = rest
		if strings.Trim(s, "0.") != "" {
			b.WriteByte('-')
		}
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}
