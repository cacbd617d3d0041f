package pdf

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Minimum usable character counts for an extracted document.
const (
	MinContentChars    = 10
	MinSufficientChars = 50
)

// Status classifies the outcome of extracting one document.
type Status string

const (
	StatusSuccess            Status = "success"
	StatusContentUnavailable Status = "content_unavailable"
	StatusInsufficient       Status = "insufficient_content"
)

// Page is the normalized text of one page.
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"-"`
	Chars  int    `json:"chars"`
	Score  int    `json:"score"`
	Err    string `json:"error,omitempty"`
}

// ExtractedDocument is the result of extracting one PDF.
type ExtractedDocument struct {
	Source string
	// Text is the page-marked concatenation of every readable page.
	Text           string
	Pages          []Page
	PageCount      int
	CharCount      int
	FinancialScore int
	Tables         []Table
	Metadata       map[string]string
	Status         Status
}

// Usable reports whether the document has enough text to structure.
func (d *ExtractedDocument) Usable() bool {
	return d.Status == StatusSuccess
}

// PageMarker returns the delimiter written before each page's text.
func PageMarker(n int) string {
	return fmt.Sprintf("===== Page %d =====", n)
}

// TextExtractor pulls normalized page text and tables out of PDFs.
type TextExtractor struct {
	opener Opener
	tables *TableExtractor
	logger *zap.Logger
}

// NewTextExtractor creates an extractor. A nil opener uses MuPDF.
func NewTextExtractor(opener Opener, logger *zap.Logger) *TextExtractor {
	if opener == nil {
		opener = FitzOpener{}
	}
	return &TextExtractor{
		opener: opener,
		tables: NewTableExtractor(logger),
		logger: logger,
	}
}

// ExtractFile extracts the document at path.
func (e *TextExtractor) ExtractFile(ctx context.Context, path string) (*ExtractedDocument, error) {
	doc, err := e.opener.Open(path)
	if err != nil {
		return nil, &OpenError{Source: path, Encrypted: isPasswordError(err), Err: err}
	}
	defer doc.Close()
	return e.extract(ctx, path, doc)
}

// Extract extracts an in-memory document; source names it in errors and
// logs.
func (e *TextExtractor) Extract(ctx context.Context, source string, data []byte) (*ExtractedDocument, error) {
	doc, err := e.opener.OpenBytes(data)
	if err != nil {
		return nil, &OpenError{Source: source, Encrypted: isPasswordError(err), Err: err}
	}
	defer doc.Close()
	return e.extract(ctx, source, doc)
}

func (e *TextExtractor) extract(ctx context.Context, source string, doc Document) (*ExtractedDocument, error) {
	pageCount := doc.NumPage()
	if pageCount <= 0 {
		return nil, &EmptyError{Source: source}
	}

	e.logger.Debug("Extracting PDF text",
		zap.String("source", source),
		zap.Int("total_pages", pageCount))

	out := &ExtractedDocument{
		Source:    source,
		PageCount: pageCount,
		Metadata:  doc.Metadata(),
	}

	var text strings.Builder
	for i := 0; i < pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := Page{Number: i + 1}
		raw, err := doc.Text(i)
		if err != nil {
			e.logger.Warn("Failed to extract page text",
				zap.String("source", source),
				zap.Int("page", page.Number),
				zap.Error(err))
			page.Err = err.Error()
			out.Pages = append(out.Pages, page)
			continue
		}

		page.Text = Normalize(raw)
		page.Chars = len([]rune(page.Text))
		page.Score = PageScore(page.Text)
		out.Pages = append(out.Pages, page)
		if page.Text == "" {
			continue
		}

		out.CharCount += page.Chars
		out.FinancialScore += page.Score
		text.WriteString(PageMarker(page.Number))
		text.WriteString("\n\n")
		text.WriteString(page.Text)
		text.WriteString("\n\n")
	}
	out.Text = strings.TrimSpace(text.String())
	out.Tables = e.tables.Extract(ctx, doc)

	switch {
	case out.CharCount < MinContentChars:
		out.Status = StatusContentUnavailable
	case out.CharCount < MinSufficientChars:
		out.Status = StatusInsufficient
	default:
		out.Status = StatusSuccess
	}

	e.logger.Info("PDF text extracted",
		zap.String("source", source),
		zap.Int("pages", pageCount),
		zap.Int("chars", out.CharCount),
		zap.Int("financial_score", out.FinancialScore),
		zap.Int("tables", len(out.Tables)),
		zap.String("status", string(out.Status)))

	return out, nil
}
