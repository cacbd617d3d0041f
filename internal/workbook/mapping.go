package workbook

import (
	"strings"

	"github.com/garyjia/pe-report-extractor/internal/record"
	"github.com/garyjia/pe-report-extractor/internal/template"
)

// MinMatchScore is the lowest flexible-mapping score that assigns a data key
// to a template section.
const MinMatchScore = 2

var stopWords = map[string]bool{"and": true, "of": true, "the": true, "for": true}

// placement pairs a planned section with the record key that feeds it.
type placement struct {
	section template.Section
	key     string
	found   bool
}

// locateSections resolves each planned section to a record key. Exact and
// case-insensitive matches are claimed first for every section so a loose
// substring match cannot steal a key another section names exactly.
func locateSections(m *record.Map, sections []template.Section) []placement {
	keys := m.DomainKeys()
	claimed := make(map[string]bool, len(keys))
	out := make([]placement, len(sections))

	for i, s := range sections {
		out[i].section = s
		if _, ok := m.Get(s.Key); ok {
			out[i].key, out[i].found = s.Key, true
			claimed[s.Key] = true
		}
	}
	for i, s := range sections {
		if out[i].found {
			continue
		}
		for _, k := range keys {
			if !claimed[k] && strings.EqualFold(k, s.Key) {
				out[i].key, out[i].found = k, true
				claimed[k] = true
				break
			}
		}
	}
	for i, s := range sections {
		if out[i].found {
			continue
		}
		want := strings.ToLower(s.Key)
		for _, k := range keys {
			lk := strings.ToLower(strings.TrimSpace(k))
			if lk == "" {
				continue
			}
			if !claimed[k] && (strings.Contains(lk, want) || strings.Contains(want, lk)) {
				out[i].key, out[i].found = k, true
				claimed[k] = true
				break
			}
		}
	}
	return out
}

// MatchScore rates how well a record key fits a template section key.
func MatchScore(dataKey, sectionKey string, synonyms map[string][]string) int {
	d := strings.ToLower(strings.TrimSpace(dataKey))
	s := strings.ToLower(sectionKey)
	if d == "" {
		return 0
	}
	if d == s {
		return exactMatch
	}

	score := 0
	if strings.Contains(s, d) || strings.Contains(d, s) {
		score += 3
	}
	for fragment, terms := range synonyms {
		if !strings.Contains(s, fragment) {
			continue
		}
		for _, t := range terms {
			if strings.Contains(d, t) {
				score += 2
				break
			}
		}
	}

	sectionWords := make(map[string]bool)
	for _, w := range strings.Split(s, "_") {
		if w != "" && !stopWords[w] {
			sectionWords[w] = true
		}
	}
	seen := make(map[string]bool)
	for _, w := range strings.Split(d, "_") {
		if sectionWords[w] && !seen[w] {
			seen[w] = true
			score++
		}
	}
	return score
}

const exactMatch = 1 << 20

// bestSection returns the highest-scoring section for dataKey, or false when
// nothing reaches MinMatchScore. Ties go to the earlier section.
func bestSection(dataKey string, tmpl template.Template) (template.Section, bool) {
	var (
		best      template.Section
		bestScore int
	)
	for _, s := range tmpl.Sections {
		score := MatchScore(dataKey, s.Key, tmpl.SynonymTerms)
		if score == exactMatch {
			return s, true
		}
		if score > bestScore {
			best, bestScore = s, score
		}
	}
	return best, bestScore >= MinMatchScore
}
