package workbook

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/garyjia/pe-report-extractor/internal/template"
)

// MaxSheetNameLen is the workbook format's sheet identifier limit.
const MaxSheetNameLen = 31

const maxFileBaseLen = 100

var (
	invalidSheetChars = strings.NewReplacer("[", "_", "]", "_", ":", "_", "*", "_", "?", "_", "/", "_", "\\", "_")
	invalidFileChars  = strings.NewReplacer("<", "_", ">", "_", ":", "_", "\"", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_")
	whitespaceRun     = regexp.MustCompile(`\s+`)
)

// SheetName makes name legal as a sheet identifier: forbidden characters are
// replaced, surrounding apostrophes and spaces trimmed, and the result cut to
// 31 characters.
func SheetName(name string) string {
	s := invalidSheetChars.Replace(name)
	s = strings.Trim(s, "' ")
	if s == "" {
		s = "Sheet"
	}
	return truncateRunes(s, MaxSheetNameLen)
}

// sheetNamer hands out unique sheet names for one workbook.
type sheetNamer struct {
	used map[string]bool
}

func newSheetNamer() *sheetNamer {
	return &sheetNamer{used: make(map[string]bool)}
}

// next returns a legal name for want that has not been handed out before.
// Collisions get " (2)", " (3)" and so on, trimming the base to make room.
func (n *sheetNamer) next(want string) string {
	base := SheetName(want)
	name := base
	for i := 2; n.used[strings.ToLower(name)]; i++ {
		suffix := fmt.Sprintf(" (%d)", i)
		name = truncateRunes(base, MaxSheetNameLen-len(suffix)) + suffix
	}
	n.used[strings.ToLower(name)] = true
	return name
}

// CleanFileBase strips characters that are unsafe in file names, turns
// whitespace runs into underscores and caps the length.
func CleanFileBase(name string) string {
	s := invalidFileChars.Replace(name)
	s = whitespaceRun.ReplaceAllString(s, "_")
	s = strings.Trim(s, " _")
	if s == "" {
		s = "extracted_data"
	}
	return truncateRunes(s, maxFileBaseLen)
}

// BaseName returns the file name of source without directory or extension.
func BaseName(source string) string {
	base := filepath.Base(strings.ReplaceAll(source, "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// FileName derives the output workbook name for a job. The job id prefix keeps
// names from different jobs apart; the rest is stable for the same source and
// template.
func FileName(source string, tmpl template.Template, jobID string) string {
	prefix := strings.ReplaceAll(jobID, "-", "")
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	name := CleanFileBase(BaseName(source)) + tmpl.FileSuffix + ".xlsx"
	if prefix == "" {
		return name
	}
	return prefix + "_" + name
}

// Humanize turns identifier-style keys into title-cased words:
// "Fund_Size" becomes "Fund Size". All-caps words such as NAV are kept.
func Humanize(key string) string {
	if key == "" {
		return "Field"
	}
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		if w == strings.ToUpper(w) {
			continue
		}
		r, size := utf8.DecodeRuneInString(w)
		words[i] = strings.ToUpper(string(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
