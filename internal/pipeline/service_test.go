package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/pe-report-extractor/internal/notify"
	"github.com/garyjia/pe-report-extractor/internal/pdf"
	"github.com/garyjia/pe-report-extractor/internal/persistence/sqlite"
	"github.com/garyjia/pe-report-extractor/internal/record"
	"github.com/garyjia/pe-report-extractor/internal/storage"
	"github.com/garyjia/pe-report-extractor/internal/structuring"
	"github.com/garyjia/pe-report-extractor/internal/template"
	"github.com/garyjia/pe-report-extractor/internal/workbook"
	"github.com/garyjia/pe-report-extractor/pkg/database"
)

const testJobID = "3f2a9c1e-5b7d-4c1a-9e2f-0a1b2c3d4e5f"

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

type fakeExtractor struct {
	docs  map[string]*pdf.ExtractedDocument
	errs  map[string]error
	mu    sync.Mutex
	paths []string
}

func (f *fakeExtractor) ExtractFile(_ context.Context, path string) (*pdf.ExtractedDocument, error) {
	f.mu.Lock()
	f.paths = append(f.paths, path)
	f.mu.Unlock()

	name := filepath.Base(path)
	if err := f.errs[name]; err != nil {
		return nil, err
	}
	if doc, ok := f.docs[name]; ok {
		return doc, nil
	}
	return nil, &pdf.OpenError{Source: path, Err: errors.New("unknown test file")}
}

type fakeStructurer struct {
	rec   record.Value
	err   error
	block bool
	texts []string
	calls int
}

func (f *fakeStructurer) Structure(ctx context.Context, texts []string, id template.ID) (*structuring.Result, error) {
	f.calls++
	f.texts = texts
	if f.block {
		<-ctx.Done()
		return nil, &structuring.FailedError{TemplateID: id, Cause: structuring.CauseTimeout, LastErr: ctx.Err()}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &structuring.Result{Record: f.rec, DataPoints: record.StripMetadata(f.rec).DataPoints(), Model: "test-model"}, nil
}

type recordingNotifier struct {
	mu        sync.Mutex
	summaries []notify.Summary
}

func (n *recordingNotifier) JobFinished(_ context.Context, s notify.Summary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.summaries = append(n.summaries, s)
	return nil
}

type harness struct {
	svc        *Service
	extractor  *fakeExtractor
	structurer *fakeStructurer
	jobs       *sqlite.JobRepository
	notifier   *recordingNotifier
	uploadDir  string
	outputDir  string
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	ctx := context.Background()
	root := t.TempDir()

	db, err := database.New(ctx, database.Config{Path: filepath.Join(root, "jobs.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = database.NewMigrator(db, zap.NewNop()).Run(ctx, sqlite.Migrations, sqlite.MigrationsDir)
	require.NoError(t, err)

	h := &harness{
		extractor:  &fakeExtractor{docs: map[string]*pdf.ExtractedDocument{}, errs: map[string]error{}},
		structurer: &fakeStructurer{rec: acmeRecord(t)},
		jobs:       sqlite.NewJobRepository(db, zap.NewNop()),
		notifier:   &recordingNotifier{},
		uploadDir:  filepath.Join(root, "uploads"),
		outputDir:  filepath.Join(root, "outputs"),
	}
	h.svc = NewService(cfg,
		h.extractor,
		h.structurer,
		workbook.NewRenderer(zap.NewNop()),
		storage.NewWorkspaces(h.uploadDir, zap.NewNop()),
		storage.NewOutputStore(h.outputDir, zap.NewNop()),
		h.jobs,
		h.notifier,
		zap.NewNop(),
	)
	h.svc.newID = func() string { return testJobID }
	return h
}

func acmeRecord(t *testing.T) record.Value {
	t.Helper()
	rec, err := record.ParseString(`{
		"Fund_and_Investment_Vehicle_Information": {
			"Fund_Details": {
				"Fund_Name": "Acme Capital Partners",
				"Fund_Size": 500000000,
				"Vintage_Year": 2019
			}
		}
	}`)
	require.NoError(t, err)
	return rec
}

func goodDoc(name string) *pdf.ExtractedDocument {
	text := "===== Page 1 =====\n\nFund Name: Acme Capital Partners, Fund Size: $500,000,000, Vintage Year: 2019"
	return &pdf.ExtractedDocument{
		Source:         name,
		Text:           text,
		PageCount:      1,
		CharCount:      len(text),
		FinancialScore: 9,
		Tables:         []pdf.Table{{Page: 1, IsFinancial: true}, {Page: 1}},
		Status:         pdf.StatusSuccess,
	}
}

func emptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	require.NoError(t, err)
	assert.Empty(t, entries, "expected %s to be empty", dir)
}

func TestProcess_SingleDocument(t *testing.T) {
	h := newHarness(t, Config{})
	h.extractor.docs["acme.pdf"] = goodDoc("acme.pdf")

	out, err := h.svc.Process(context.Background(), Batch{
		TemplateID: "1",
		Files:      []Upload{{Name: "acme.pdf", Data: pdfBytes}},
	})
	require.NoError(t, err)
	h.svc.Wait()

	assert.Equal(t, testJobID, out.JobID)
	assert.Equal(t, "success", out.Status)
	assert.Equal(t, "Data extracted successfully using Template 1", out.Message)
	assert.Equal(t, 1, out.TemplateID)
	assert.Equal(t, "/api/download/"+testJobID, out.DownloadURL)
	assert.Equal(t, "3f2a9c1e_acme_Private_Equity.xlsx", out.FileName)
	assert.Equal(t, 1, out.FilesProcessed)
	assert.Equal(t, 1, out.FilesSuccessful)
	assert.Zero(t, out.FilesFailed)
	assert.Equal(t, 3, out.DataPoints)
	require.Len(t, out.Files, 1)
	assert.Equal(t, FileSuccess, out.Files[0].Status)
	assert.Equal(t, 2, out.Files[0].Tables)
	assert.Equal(t, 1, out.Files[0].FinancialTables)

	f, err := excelize.OpenFile(out.OutputPath)
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, f.GetSheetList(), workbook.SheetName("Fund and Investment Vehicle Information"))

	emptyDir(t, h.uploadDir)

	job, err := h.jobs.Get(context.Background(), testJobID)
	require.NoError(t, err)
	assert.Equal(t, sqlite.JobCompleted, job.Status)
	assert.Equal(t, out.OutputPath, job.OutputPath)

	dl, err := h.svc.Output(context.Background(), testJobID)
	require.NoError(t, err)
	assert.Equal(t, out.OutputPath, dl.Path)
	assert.Equal(t, out.FileName, dl.FileName)

	require.Len(t, h.notifier.summaries, 1)
	assert.Equal(t, notify.StatusSuccess, h.notifier.summaries[0].Status)
	assert.Equal(t, 3, h.notifier.summaries[0].DataPoints)
}

func TestProcess_ExcludesDocumentWithoutText(t *testing.T) {
	h := newHarness(t, Config{})
	h.extractor.docs["scan.pdf"] = &pdf.ExtractedDocument{Source: "scan.pdf", PageCount: 3, Status: pdf.StatusContentUnavailable}
	h.extractor.docs["acme.pdf"] = goodDoc("acme.pdf")

	out, err := h.svc.Process(context.Background(), Batch{
		TemplateID: "1",
		Files: []Upload{
			{Name: "scan.pdf", Data: pdfBytes},
			{Name: "acme.pdf", Data: pdfBytes},
		},
	})
	require.NoError(t, err)
	h.svc.Wait()

	assert.Equal(t, 2, out.FilesProcessed)
	assert.Equal(t, 1, out.FilesSuccessful)
	assert.Equal(t, 1, out.FilesFailed)
	assert.Equal(t, FileContentUnavailable, out.Files[0].Status)
	assert.NotEmpty(t, out.Files[0].Error)

	require.Len(t, h.structurer.texts, 1)
	assert.Contains(t, h.structurer.texts[0], "Acme Capital Partners")
	assert.Equal(t, "3f2a9c1e_acme_Private_Equity.xlsx", out.FileName, "named after the first usable file")

	f, err := excelize.OpenFile(out.OutputPath)
	require.NoError(t, err)
	defer f.Close()
	overview := f.GetSheetList()[0]
	rows, err := f.GetRows(overview)
	require.NoError(t, err)
	var excluded string
	for _, row := range rows {
		if len(row) >= 2 && row[0] == "Files Excluded:" {
			excluded = row[1]
		}
	}
	assert.Equal(t, "scan.pdf", excluded)
}

func TestProcess_RejectsBeforeReadingFiles(t *testing.T) {
	tests := []struct {
		name   string
		batch  Batch
		field  string
		reason string
	}{
		{"unknown template", Batch{TemplateID: "3", Files: []Upload{{Name: "a.pdf", Data: pdfBytes}}}, "template_id", "3"},
		{"non-numeric template", Batch{TemplateID: "fund", Files: []Upload{{Name: "a.pdf", Data: pdfBytes}}}, "template_id", "fund"},
		{"no files", Batch{TemplateID: "1"}, "files", "no files uploaded"},
		{"wrong extension", Batch{TemplateID: "1", Files: []Upload{{Name: "a.docx", Data: pdfBytes}}}, "files", "only PDF files are allowed"},
		{"empty file", Batch{TemplateID: "2", Files: []Upload{{Name: "a.pdf"}}}, "files", "is empty"},
		{"not a pdf", Batch{TemplateID: "2", Files: []Upload{{Name: "a.pdf", Data: []byte("hello world")}}}, "files", "not a PDF"},
		{"too large", Batch{TemplateID: "1", Files: []Upload{{Name: "a.pdf", Data: append(append([]byte{}, pdfBytes...), make([]byte, 1024)...)}}}, "files", "exceeds maximum size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Config{MaxFileSize: 512})

			_, err := h.svc.Process(context.Background(), tt.batch)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, CodeValidation, Code(err))

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.Contains(t, ve.Error(), tt.reason)

			assert.Empty(t, h.extractor.paths)
			assert.Zero(t, h.structurer.calls)
			_, err = h.jobs.Get(context.Background(), testJobID)
			assert.ErrorIs(t, err, sqlite.ErrJobNotFound)
		})
	}
}

func TestProcess_NoUsableDocuments(t *testing.T) {
	h := newHarness(t, Config{})
	h.extractor.docs["scan.pdf"] = &pdf.ExtractedDocument{PageCount: 1, Status: pdf.StatusContentUnavailable}
	h.extractor.docs["short.pdf"] = &pdf.ExtractedDocument{PageCount: 1, CharCount: 20, Status: pdf.StatusInsufficient}
	h.extractor.errs["locked.pdf"] = &pdf.OpenError{Source: "locked.pdf", Encrypted: true, Err: errors.New("needs password")}

	_, err := h.svc.Process(context.Background(), Batch{
		TemplateID: "2",
		Files: []Upload{
			{Name: "scan.pdf", Data: pdfBytes},
			{Name: "short.pdf", Data: pdfBytes},
			{Name: "locked.pdf", Data: pdfBytes},
		},
	})
	h.svc.Wait()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoUsableDocuments)
	assert.Equal(t, CodeNoUsableDocuments, Code(err))
	assert.Zero(t, h.structurer.calls)
	emptyDir(t, h.uploadDir)

	job, err := h.jobs.Get(context.Background(), testJobID)
	require.NoError(t, err)
	assert.Equal(t, sqlite.JobFailed, job.Status)
	assert.Equal(t, CodeNoUsableDocuments, job.ErrorCode)

	require.Len(t, h.notifier.summaries, 1)
	assert.Equal(t, notify.StatusFailed, h.notifier.summaries[0].Status)
	assert.Equal(t, CodeNoUsableDocuments, h.notifier.summaries[0].ErrorCode)

	_, err = h.svc.Output(context.Background(), testJobID)
	assert.ErrorIs(t, err, ErrOutputNotFound)
}

func TestProcess_StructuringFailure(t *testing.T) {
	tests := []struct {
		name  string
		cause structuring.Cause
		code  string
	}{
		{"rate limited", structuring.CauseRateLimited, CodeRateLimited},
		{"hard failure", structuring.CauseHard, CodeStructuringFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Config{})
			h.extractor.docs["acme.pdf"] = goodDoc("acme.pdf")
			h.structurer.err = &structuring.FailedError{TemplateID: 1, Attempts: 9, Cause: tt.cause, LastErr: errors.New("boom")}

			_, err := h.svc.Process(context.Background(), Batch{TemplateID: "1", Files: []Upload{{Name: "acme.pdf", Data: pdfBytes}}})
			h.svc.Wait()

			require.Error(t, err)
			assert.ErrorIs(t, err, structuring.ErrStructuringFailed)
			assert.Equal(t, tt.code, Code(err))
			emptyDir(t, h.uploadDir)
			emptyDir(t, h.outputDir)
		})
	}
}

func TestProcess_Timeout(t *testing.T) {
	h := newHarness(t, Config{Timeout: 50 * time.Millisecond})
	h.extractor.docs["acme.pdf"] = goodDoc("acme.pdf")
	h.structurer.block = true

	_, err := h.svc.Process(context.Background(), Batch{TemplateID: "1", Files: []Upload{{Name: "acme.pdf", Data: pdfBytes}}})
	h.svc.Wait()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, CodeTimeout, Code(err))
	emptyDir(t, h.uploadDir)
	emptyDir(t, h.outputDir)

	job, err := h.jobs.Get(context.Background(), testJobID)
	require.NoError(t, err)
	assert.Equal(t, CodeTimeout, job.ErrorCode)
}

func TestProcess_SaveFailure(t *testing.T) {
	h := newHarness(t, Config{})
	h.extractor.docs["acme.pdf"] = goodDoc("acme.pdf")
	require.NoError(t, os.WriteFile(h.outputDir, []byte("not a dir"), 0o644))

	_, err := h.svc.Process(context.Background(), Batch{TemplateID: "1", Files: []Upload{{Name: "acme.pdf", Data: pdfBytes}}})
	h.svc.Wait()

	require.Error(t, err)
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, CodePersistence, Code(err))
}

func TestOutput_Lookup(t *testing.T) {
	h := newHarness(t, Config{OutputTTL: time.Hour})
	h.extractor.docs["acme.pdf"] = goodDoc("acme.pdf")

	out, err := h.svc.Process(context.Background(), Batch{TemplateID: "1", Files: []Upload{{Name: "acme.pdf", Data: pdfBytes}}})
	require.NoError(t, err)
	h.svc.Wait()

	_, err = h.svc.Output(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrOutputNotFound)

	_, err = h.svc.Output(context.Background(), "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrOutputNotFound)

	h.svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = h.svc.Output(context.Background(), testJobID)
	assert.ErrorIs(t, err, ErrOutputNotFound, "expired jobs are not served")

	h.svc.now = time.Now
	require.NoError(t, os.Remove(out.OutputPath))
	_, err = h.svc.Output(context.Background(), testJobID)
	assert.ErrorIs(t, err, ErrOutputNotFound, "missing files are not served")
}

func TestCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&ValidationError{Field: "files", Reason: "x"}, CodeValidation},
		{ErrNoUsableDocuments, CodeNoUsableDocuments},
		{&structuring.FailedError{Cause: structuring.CauseTimeout}, CodeStructuringTimeout},
		{&structuring.FailedError{Cause: structuring.CauseNoInput}, CodeNoUsableDocuments},
		{&structuring.FailedError{Cause: structuring.CauseCanceled}, CodeCanceled},
		{&PersistenceError{Op: "save workbook", Err: errors.New("disk full")}, CodePersistence},
		{context.DeadlineExceeded, CodeTimeout},
		{errors.New("other"), CodeInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Code(tt.err), "%v", tt.err)
	}
}
