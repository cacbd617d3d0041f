// Package pipeline runs one upload batch end to end: validation, text
// extraction, structuring, workbook rendering and job bookkeeping.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/pe-report-extractor/internal/notify"
	"github.com/garyjia/pe-report-extractor/internal/pdf"
	"github.com/garyjia/pe-report-extractor/internal/persistence/sqlite"
	"github.com/garyjia/pe-report-extractor/internal/storage"
	"github.com/garyjia/pe-report-extractor/internal/structuring"
	"github.com/garyjia/pe-report-extractor/internal/template"
	"github.com/garyjia/pe-report-extractor/internal/workbook"
)

// Defaults applied to zero Config fields.
const (
	DefaultTimeout      = 600 * time.Second
	DefaultMaxFileSize  = 50 << 20
	DefaultOutputTTL    = 24 * time.Hour
	DefaultFailedJobTTL = time.Hour
	DefaultDownloadPath = "/api/download/"

	notifyTimeout  = 30 * time.Second
	previewChars   = 200
	cleanupTimeout = 5 * time.Second
)

// Per-file extraction outcomes reported in FileReport.Status.
const (
	FileSuccess            = "success"
	FileContentUnavailable = "content_unavailable"
	FileInsufficient       = "insufficient_content"
	FileFailed             = "failed"
)

// Config holds pipeline configuration
type Config struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxFileSize  int64         `mapstructure:"max_file_size"`
	MaxFiles     int           `mapstructure:"max_files"`
	OutputTTL    time.Duration `mapstructure:"output_ttl"`
	FailedJobTTL time.Duration `mapstructure:"failed_job_ttl"`
	DownloadPath string        `mapstructure:"download_path"`
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
	if c.OutputTTL <= 0 {
		c.OutputTTL = DefaultOutputTTL
	}
	if c.FailedJobTTL <= 0 {
		c.FailedJobTTL = DefaultFailedJobTTL
	}
	if c.DownloadPath == "" {
		c.DownloadPath = DefaultDownloadPath
	}
	return c
}

// Upload is one file of a batch.
type Upload struct {
	Name string
	Data []byte
}

// Batch is one extraction request.
type Batch struct {
	TemplateID string
	Files      []Upload
}

// FileReport is the extraction diagnostic for one uploaded file.
type FileReport struct {
	Name            string `json:"name"`
	Status          string `json:"status"`
	Pages           int    `json:"pages"`
	Chars           int    `json:"chars"`
	FinancialScore  int    `json:"financial_score"`
	Tables          int    `json:"tables"`
	FinancialTables int    `json:"financial_tables"`
	PDFVersion      string `json:"pdf_version,omitempty"`
	Error           string `json:"error,omitempty"`
}

// Outcome describes a completed batch.
type Outcome struct {
	JobID           string       `json:"job_id"`
	Status          string       `json:"status"`
	Message         string       `json:"message"`
	TemplateID      int          `json:"template_used"`
	TemplateName    string       `json:"template_name"`
	OutputPath      string       `json:"-"`
	FileName        string       `json:"file_name"`
	DownloadURL     string       `json:"download_url"`
	FilesProcessed  int          `json:"files_processed"`
	FilesSuccessful int          `json:"files_successful"`
	FilesFailed     int          `json:"files_failed"`
	Files           []FileReport `json:"files"`
	CacheHit        bool         `json:"cache_hit"`
	DataPoints      int          `json:"data_points"`
	Truncated       bool         `json:"text_truncated"`
	Model           string       `json:"model,omitempty"`
}

// Download locates a finished job's workbook.
type Download struct {
	Path     string
	FileName string
}

// Extractor pulls text out of one stored PDF.
type Extractor interface {
	ExtractFile(ctx context.Context, path string) (*pdf.ExtractedDocument, error)
}

// Structurer turns document texts into a record for a template.
type Structurer interface {
	Structure(ctx context.Context, texts []string, id template.ID) (*structuring.Result, error)
}

// JobStore records job lifecycles.
type JobStore interface {
	Create(ctx context.Context, id string, templateID int) (*sqlite.Job, error)
	Complete(ctx context.Context, id string, c sqlite.Completion) error
	Fail(ctx context.Context, id, errorCode string, keep time.Duration) error
	Get(ctx context.Context, id string) (*sqlite.Job, error)
}

// Service processes extraction batches. It is safe for concurrent use.
type Service struct {
	cfg        Config
	extractor  Extractor
	structurer Structurer
	renderer   *workbook.Renderer
	workspaces *storage.Workspaces
	outputs    *storage.OutputStore
	jobs       JobStore
	notifier   notify.Notifier
	logger     *zap.Logger

	newID   func() string
	now     func() time.Time
	pending sync.WaitGroup
}

// NewService creates a new pipeline service. A nil notifier disables
// notifications.
func NewService(
	cfg Config,
	extractor Extractor,
	structurer Structurer,
	renderer *workbook.Renderer,
	workspaces *storage.Workspaces,
	outputs *storage.OutputStore,
	jobs JobStore,
	notifier notify.Notifier,
	logger *zap.Logger,
) *Service {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Service{
		cfg:        cfg.withDefaults(),
		extractor:  extractor,
		structurer: structurer,
		renderer:   renderer,
		workspaces: workspaces,
		outputs:    outputs,
		jobs:       jobs,
		notifier:   notifier,
		logger:     logger,
		newID:      uuid.NewString,
		now:        time.Now,
	}
}

// MaxFileSize returns the per-file upload limit in bytes.
func (s *Service) MaxFileSize() int64 {
	return s.cfg.MaxFileSize
}

// Process runs b to completion or failure. Invalid requests are rejected
// before any file is stored; every stored upload is removed before Process
// returns.
func (s *Service) Process(ctx context.Context, b Batch) (*Outcome, error) {
	start := s.now()

	id, err := template.ParseID(b.TemplateID)
	if err != nil {
		return nil, &ValidationError{Field: "template_id", Reason: err.Error()}
	}
	tmpl, err := template.Lookup(id)
	if err != nil {
		return nil, &ValidationError{Field: "template_id", Reason: err.Error()}
	}
	if err := s.validateFiles(b.Files); err != nil {
		return nil, err
	}

	jobID := s.newID()
	logger := s.logger.With(zap.String("job_id", jobID), zap.Int("template_id", int(id)))
	logger.Info("Starting extraction job", zap.Int("files", len(b.Files)))

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if _, err := s.jobs.Create(ctx, jobID, int(id)); err != nil {
		return nil, &PersistenceError{Op: "register job", Err: err}
	}

	out, err := s.run(ctx, jobID, tmpl, b.Files, logger)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
			err = fmt.Errorf("%w after %s: %w", ErrTimeout, s.cfg.Timeout, err)
		}
		s.fail(ctx, jobID, tmpl, len(b.Files), err, s.now().Sub(start), logger)
		return nil, err
	}

	logger.Info("Extraction job completed",
		zap.String("file_name", out.FileName),
		zap.Int("data_points", out.DataPoints),
		zap.Bool("cache_hit", out.CacheHit),
		zap.Duration("duration", s.now().Sub(start)))

	s.notify(ctx, notify.Summary{
		JobID:           jobID,
		Status:          notify.StatusSuccess,
		TemplateID:      int(id),
		TemplateName:    tmpl.Name,
		FileName:        out.FileName,
		DownloadURL:     out.DownloadURL,
		FilesProcessed:  out.FilesProcessed,
		FilesSuccessful: out.FilesSuccessful,
		FilesFailed:     out.FilesFailed,
		DataPoints:      out.DataPoints,
		CacheHit:        out.CacheHit,
		Duration:        s.now().Sub(start),
	})
	return out, nil
}

func (s *Service) run(ctx context.Context, jobID string, tmpl template.Template, files []Upload, logger *zap.Logger) (*Outcome, error) {
	ws, err := s.workspaces.Create(jobID)
	if err != nil {
		return nil, &PersistenceError{Op: "create job workspace", Err: err}
	}
	defer func() {
		if err := ws.Release(); err != nil {
			logger.Warn("Failed to remove job workspace", zap.Error(err))
		}
	}()

	reports := make([]FileReport, 0, len(files))
	var texts, used, excluded []string
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rep, text := s.extractOne(ctx, ws, f, logger)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		reports = append(reports, rep)
		if rep.Status != FileSuccess {
			excluded = append(excluded, f.Name)
			continue
		}
		texts = append(texts, text)
		used = append(used, f.Name)
	}

	logger.Info("Text extraction finished",
		zap.Int("usable", len(texts)),
		zap.Int("excluded", len(excluded)))

	if len(texts) == 0 {
		return nil, fmt.Errorf("%w (%d files excluded)", ErrNoUsableDocuments, len(excluded))
	}

	res, err := s.structurer.Structure(ctx, texts, tmpl.ID)
	if err != nil {
		return nil, err
	}

	f := s.renderer.Render(res.Record, tmpl, workbook.SourceInfo{
		Files:       used,
		Excluded:    excluded,
		ExtractedAt: s.now(),
	})
	defer func() {
		if err := f.Close(); err != nil {
			logger.Debug("Failed to close workbook", zap.Error(err))
		}
	}()

	fileName := workbook.FileName(used[0], tmpl, jobID)
	path, err := s.outputs.Path(fileName)
	if err != nil {
		return nil, &PersistenceError{Op: "resolve output path", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.renderer.Save(f, path); err != nil {
		s.removeOutput(path, logger)
		return nil, &PersistenceError{Op: "save workbook", Err: err}
	}
	if err := ctx.Err(); err != nil {
		s.removeOutput(path, logger)
		return nil, err
	}

	successful := len(used)
	err = s.jobs.Complete(ctx, jobID, sqlite.Completion{
		OutputPath:      path,
		FileName:        fileName,
		FilesProcessed:  len(files),
		FilesSuccessful: successful,
		FilesFailed:     len(files) - successful,
		ExpiresAt:       s.now().Add(s.cfg.OutputTTL),
	})
	if err != nil {
		s.removeOutput(path, logger)
		return nil, &PersistenceError{Op: "record job", Err: err}
	}

	return &Outcome{
		JobID:           jobID,
		Status:          "success",
		Message:         fmt.Sprintf("Data extracted successfully using Template %d", tmpl.ID),
		TemplateID:      int(tmpl.ID),
		TemplateName:    tmpl.Name,
		OutputPath:      path,
		FileName:        fileName,
		DownloadURL:     s.cfg.DownloadPath + jobID,
		FilesProcessed:  len(files),
		FilesSuccessful: successful,
		FilesFailed:     len(files) - successful,
		Files:           reports,
		CacheHit:        res.CacheHit,
		DataPoints:      res.DataPoints,
		Truncated:       res.Truncated,
		Model:           res.Model,
	}, nil
}

func (s *Service) extractOne(ctx context.Context, ws *storage.JobWorkspace, f Upload, logger *zap.Logger) (FileReport, string) {
	rep := FileReport{Name: f.Name}

	if info, err := pdf.Inspect(f.Data); err != nil {
		logger.Debug("PDF inspection failed", zap.String("file", f.Name), zap.Error(err))
	} else {
		rep.Pages = info.Pages
		rep.PDFVersion = info.Version
	}

	path, err := ws.Save(f.Name, f.Data)
	if err != nil {
		logger.Error("Failed to store upload", zap.String("file", f.Name), zap.Error(err))
		rep.Status = FileFailed
		rep.Error = "upload could not be stored"
		return rep, ""
	}

	doc, err := s.extractor.ExtractFile(ctx, path)
	if err != nil {
		logger.Warn("PDF extraction failed", zap.String("file", f.Name), zap.Error(err))
		rep.Status = FileFailed
		var oe *pdf.OpenError
		switch {
		case errors.As(err, &oe) && oe.Encrypted:
			rep.Error = "PDF is encrypted"
		case errors.Is(err, pdf.ErrEmpty):
			rep.Error = "PDF has no pages"
		case errors.Is(err, pdf.ErrOpen):
			rep.Error = "PDF could not be opened"
		default:
			rep.Error = "PDF extraction failed"
		}
		return rep, ""
	}

	rep.Pages = doc.PageCount
	rep.Chars = doc.CharCount
	rep.FinancialScore = doc.FinancialScore
	rep.Tables = len(doc.Tables)
	for _, t := range doc.Tables {
		if t.IsFinancial {
			rep.FinancialTables++
		}
	}

	switch doc.Status {
	case pdf.StatusContentUnavailable:
		rep.Status = FileContentUnavailable
		rep.Error = "little or no text could be extracted"
	case pdf.StatusInsufficient:
		rep.Status = FileInsufficient
		rep.Error = fmt.Sprintf("only %d characters of text extracted", doc.CharCount)
	default:
		rep.Status = FileSuccess
	}

	logger.Debug("Extracted text preview",
		zap.String("file", f.Name),
		zap.String("status", rep.Status),
		zap.String("preview", preview(doc.Text, previewChars)))

	if !doc.Usable() {
		return rep, ""
	}
	return rep, doc.Text
}

func (s *Service) validateFiles(files []Upload) error {
	if len(files) == 0 {
		return &ValidationError{Field: "files", Reason: "no files uploaded"}
	}
	if s.cfg.MaxFiles > 0 && len(files) > s.cfg.MaxFiles {
		return &ValidationError{Field: "files", Reason: fmt.Sprintf("at most %d files per request", s.cfg.MaxFiles)}
	}

	for _, f := range files {
		name := f.Name
		switch {
		case !strings.EqualFold(filepath.Ext(name), ".pdf"):
			return &ValidationError{Field: "files", Reason: fmt.Sprintf("%s: only PDF files are allowed", name)}
		case len(f.Data) == 0:
			return &ValidationError{Field: "files", Reason: fmt.Sprintf("file %s is empty", name)}
		case int64(len(f.Data)) > s.cfg.MaxFileSize:
			return &ValidationError{Field: "files", Reason: fmt.Sprintf("file %s exceeds maximum size of %dMB", name, s.cfg.MaxFileSize>>20)}
		case !pdf.IsPDF(f.Data):
			return &ValidationError{Field: "files", Reason: fmt.Sprintf("file %s is not a PDF document", name)}
		}
	}
	return nil
}

func (s *Service) fail(ctx context.Context, jobID string, tmpl template.Template, files int, err error, took time.Duration, logger *zap.Logger) {
	code := Code(err)
	logger.Error("Extraction job failed", zap.String("error_code", code), zap.Error(err))

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if ferr := s.jobs.Fail(cleanupCtx, jobID, code, s.cfg.FailedJobTTL); ferr != nil {
		logger.Warn("Failed to record job failure", zap.Error(ferr))
	}

	s.notify(ctx, notify.Summary{
		JobID:          jobID,
		Status:         notify.StatusFailed,
		TemplateID:     int(tmpl.ID),
		TemplateName:   tmpl.Name,
		FilesProcessed: files,
		ErrorCode:      code,
		Error:          err.Error(),
		Duration:       took,
	})
}

// notify delivers in the background so a slow chat API never delays the
// response. Wait blocks until pending deliveries finish.
func (s *Service) notify(ctx context.Context, summary notify.Summary) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := s.notifier.JobFinished(nctx, summary); err != nil {
			s.logger.Warn("Job notification failed",
				zap.String("job_id", summary.JobID),
				zap.Error(err))
		}
	}()
}

// Wait blocks until background notifications have been delivered.
func (s *Service) Wait() {
	s.pending.Wait()
}

// Output returns the workbook of a completed, unexpired job.
func (s *Service) Output(ctx context.Context, jobID string) (*Download, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, fmt.Errorf("%w: malformed job id", ErrOutputNotFound)
	}

	job, err := s.jobs.Get(ctx, jobID)
	if errors.Is(err, sqlite.ErrJobNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrOutputNotFound, jobID)
	}
	if err != nil {
		return nil, &PersistenceError{Op: "load job", Err: err}
	}
	if job.Status != sqlite.JobCompleted {
		return nil, fmt.Errorf("%w: job %s is %s", ErrOutputNotFound, jobID, job.Status)
	}
	if !job.ExpiresAt.IsZero() && !s.now().Before(job.ExpiresAt) {
		return nil, fmt.Errorf("%w: job %s has expired", ErrOutputNotFound, jobID)
	}

	path, err := s.outputs.Resolve(job.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutputNotFound, err)
	}
	return &Download{Path: path, FileName: job.FileName}, nil
}

func (s *Service) removeOutput(path string, logger *zap.Logger) {
	if err := s.outputs.Remove(path); err != nil {
		logger.Warn("Failed to remove partial output", zap.String("path", path), zap.Error(err))
	}
}

func preview(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}
