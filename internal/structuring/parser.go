package structuring

import (
	"regexp"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"github.com/hjson/hjson-go/v4"

	"github.com/garyjia/pe-report-extractor/internal/record"
)

// ParseStage names the strategy that produced a record from a response.
type ParseStage string

const (
	StageDirect   ParseStage = "direct"
	StageFenced   ParseStage = "fenced"
	StageBraces   ParseStage = "braces"
	StageRepaired ParseStage = "repaired"
	StageHJSON    ParseStage = "hjson"
	StageFallback ParseStage = "fallback"
)

// FallbackError is the error text of a record built from an unparseable
// response.
const FallbackError = "No structured data extracted"

// maxRawExcerpt bounds the raw response kept in fallback records.
const maxRawExcerpt = 500

var fencedBlock = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)\\s*```")

// ParseResponse turns model output into a record, trying progressively more
// lenient strategies. It never fails: output nothing can parse becomes a
// record with an "error" key and a bounded excerpt of the raw text.
func ParseResponse(raw string) (record.Value, ParseStage) {
	trimmed := strings.TrimSpace(raw)

	if v, err := record.ParseString(trimmed); err == nil {
		return v, StageDirect
	}

	if m := fencedBlock.FindStringSubmatch(trimmed); m != nil {
		if v, err := record.ParseString(m[1]); err == nil {
			return v, StageFenced
		}
	}

	if span := outermostObject(trimmed); span != "" {
		if v, err := record.ParseString(span); err == nil {
			return v, StageBraces
		}
	}

	if trimmed != "" {
		if repaired, err := jsonrepair.RepairJSON(trimmed); err == nil {
			if v, err := record.ParseString(repaired); err == nil && nonEmptyMap(v) {
				return v, StageRepaired
			}
		}

		var loose any
		if err := hjson.Unmarshal([]byte(trimmed), &loose); err == nil {
			if v := record.FromAny(loose); nonEmptyMap(v) {
				return v, StageHJSON
			}
		}
	}

	return FallbackRecord(raw), StageFallback
}

// FallbackRecord wraps an unusable response.
func FallbackRecord(raw string) record.Value {
	return record.MapValue(record.NewMap().
		Set("error", record.String(FallbackError)).
		Set("raw_response", record.String(excerpt(raw, maxRawExcerpt))))
}

// outermostObject returns the first balanced {...} span, honoring string
// literals and escapes.
func outermostObject(content string) string {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escapeNext := false
	for i := start; i < len(content); i++ {
		c := content[i]
		if escapeNext {
			escapeNext = false
			continue
		}
		if inString {
			switch c {
			case '\\':
				escapeNext = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}

func nonEmptyMap(v record.Value) bool {
	m, ok := v.AsMap()
	return ok && m.Len() > 0
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
