package pdf

import (
	"regexp"
	"strings"
)

// MaxPageScore caps the financial relevance score of a single page.
const MaxPageScore = 20

var financialKeywords = []string{
	"financial", "statement", "balance", "income", "cash flow", "revenue",
	"ebitda", "nav", "irr", "multiple", "commitment", "investment",
	"portfolio", "valuation", "performance", "fund", "capital", "management",
	"fee", "distribution", "contribution", "proceeds", "realized", "unrealized",
}

var (
	currencyAmount = regexp.MustCompile(`[$€£]\d+[,.]?\d*`)
	percentAmount  = regexp.MustCompile(`\d+[,.]?\d*\s*%`)
	isoDate        = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	monthYear      = regexp.MustCompile(`(?i)\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{4}\b`)
	structureWord  = regexp.MustCompile(`(?i)\b(?:table|schedule|statement|summary)\b`)
)

// PageScore rates how likely a page carries financial data. Each keyword
// occurrence adds two points, each currency amount, percentage and date adds
// one, and a structural word such as "schedule" adds five. The result is
// capped at MaxPageScore and never decreases as text is appended.
func PageScore(text string) int {
	lower := strings.ToLower(text)

	score := 0
	for _, kw := range financialKeywords {
		score += 2 * strings.Count(lower, kw)
	}
	score += len(currencyAmount.FindAllStringIndex(text, -1))
	score += len(percentAmount.FindAllStringIndex(text, -1))
	score += len(isoDate.FindAllStringIndex(text, -1))
	score += len(monthYear.FindAllStringIndex(text, -1))
	if structureWord.MatchString(text) {
		score += 5
	}

	if score > MaxPageScore {
		return MaxPageScore
	}
	return score
}
