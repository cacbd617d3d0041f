package prompt

import (
	"bytes"
	"fmt"
	"strings"
	texttemplate "text/template"
	"unicode/utf8"

	"github.com/garyjia/pe-report-extractor/internal/template"
)

const (
	// DefaultBudget is the maximum number of document characters sent to
	// the model.
	DefaultBudget = 15000
	// TruncationMarker is appended whenever document text is cut.
	TruncationMarker = "... [text truncated for rate limits]"
	// DocumentSeparator joins the texts of a multi-document batch.
	DocumentSeparator = "\n\n"
)

const defaultSystem = `You are a financial data extraction expert. Extract data for Template {{.TemplateID}}. Return ONLY valid JSON.`

const defaultUser = `FINANCIAL DOCUMENT DATA EXTRACTION

TEMPLATE ID: {{.TemplateID}}
TEMPLATE NAME: {{.TemplateName}}
{{.Focus}}

EXTRACTION GUIDELINES:
{{.Guidelines}}

DOCUMENT TEXT:
{{.DocumentText}}

REQUIRED JSON STRUCTURE:
{{.Schema}}

CRITICAL INSTRUCTIONS:
1. Extract ONLY data explicitly present in the document
2. Use null for any field that cannot be found
3. Format all dates as YYYY-MM-DD
4. Express percentages as decimals (0.15 for 15%)
5. Return ONLY valid JSON with no explanations, comments or markdown

RETURN VALID JSON:`

// Data is the value both prompt templates are executed against.
type Data struct {
	TemplateID   int
	TemplateName string
	Focus        string
	Guidelines   string
	DocumentText string
	Schema       string
}

// Prompt is a fully rendered model request body.
type Prompt struct {
	TemplateID   template.ID
	System       string
	Text         string
	CombinedText string
	Truncated    bool
}

// Options configures a Builder. Zero values select the defaults.
type Options struct {
	Budget    int
	Variant   template.Variant
	Overrides *Overrides
}

// Builder renders extraction prompts for a template.
type Builder struct {
	budget  int
	variant template.Variant
	system  *texttemplate.Template
	user    *texttemplate.Template
}

// NewBuilder parses the prompt templates, applying any overrides.
func NewBuilder(opts Options) (*Builder, error) {
	budget := opts.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}

	systemText, userText := defaultSystem, defaultUser
	if o := opts.Overrides; o != nil {
		if strings.TrimSpace(o.System) != "" {
			systemText = o.System
		}
		if strings.TrimSpace(o.UserTemplate) != "" {
			userText = o.UserTemplate
		}
	}

	system, err := texttemplate.New("system").Option("missingkey=error").Parse(systemText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse system prompt: %w", err)
	}
	user, err := texttemplate.New("user").Option("missingkey=error").Parse(userText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse user prompt: %w", err)
	}

	return &Builder{budget: budget, variant: opts.Variant, system: system, user: user}, nil
}

// Budget returns the document character budget.
func (b *Builder) Budget() int { return b.budget }

// Variant returns the schema variant embedded in prompts.
func (b *Builder) Variant() template.Variant { return b.variant }

// Build combines texts, bounds them to the budget and renders the prompt.
func (b *Builder) Build(texts []string, t template.Template) (Prompt, error) {
	combined := Combine(texts)
	bounded, truncated := Truncate(combined, b.budget)

	data := Data{
		TemplateID:   int(t.ID),
		TemplateName: t.Name,
		Focus:        t.Focus,
		Guidelines:   strings.TrimSpace(t.GuidelinesFor(b.variant)),
		DocumentText: bounded,
		Schema:       t.SchemaHint(b.variant),
	}

	system, err := render(b.system, data)
	if err != nil {
		return Prompt{}, err
	}
	user, err := render(b.user, data)
	if err != nil {
		return Prompt{}, err
	}

	return Prompt{
		TemplateID:   t.ID,
		System:       system,
		Text:         user,
		CombinedText: combined,
		Truncated:    truncated,
	}, nil
}

// SystemPrompt returns the default system instruction for a template.
func SystemPrompt(id template.ID) string {
	return strings.ReplaceAll(defaultSystem, "{{.TemplateID}}", id.String())
}

// Combine joins the non-blank texts with blank-line separators.
func Combine(texts []string) string {
	parts := make([]string, 0, len(texts))
	for _, t := range texts {
		if t = strings.TrimSpace(t); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, DocumentSeparator)
}

// Truncate cuts s to at most budget runes and appends TruncationMarker when
// anything was removed.
func Truncate(s string, budget int) (string, bool) {
	if budget <= 0 || utf8.RuneCountInString(s) <= budget {
		return s, false
	}
	n := 0
	for i := range s {
		if n == budget {
			return s[:i] + "\n\n" + TruncationMarker, true
		}
		n++
	}
	return s, false
}

func render(t *texttemplate.Template, data Data) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute %s prompt: %w", t.Name(), err)
	}
	return buf.String(), nil
}
