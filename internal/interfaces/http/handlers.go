package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/pe-report-extractor/internal/llm"
	"github.com/garyjia/pe-report-extractor/internal/pipeline"
	"github.com/garyjia/pe-report-extractor/internal/structuring"
	"github.com/garyjia/pe-report-extractor/internal/template"
	"github.com/garyjia/pe-report-extractor/internal/workbook"
)

const (
	serviceName    = "pe-report-extractor"
	serviceVersion = "1.0.0"
	xlsxMediaType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	codeInternal   = pipeline.CodeInternal
	codeTooLarge   = "REQUEST_TOO_LARGE"
	codeNotFound   = "NOT_FOUND"
	// multipartOverhead is allowed on top of the file payload for form fields
	// and part headers.
	multipartOverhead = 1 << 20
	llmHealthTimeout  = 30 * time.Second
	// statusClientClosed is logged when the client disconnected mid-request.
	statusClientClosed = 499
)

// Extraction runs batches and serves their outputs.
type Extraction interface {
	Process(ctx context.Context, b pipeline.Batch) (*pipeline.Outcome, error)
	Output(ctx context.Context, jobID string) (*pipeline.Download, error)
	MaxFileSize() int64
}

// Admin exposes structuring engine maintenance operations.
type Admin interface {
	Stats(ctx context.Context) structuring.Stats
	ClearCache(ctx context.Context) (int, error)
	HealthCheck(ctx context.Context) (string, error)
	Models() []llm.ModelSpec
}

// Dirs are the storage roots reported by the health endpoint.
type Dirs struct {
	Upload string
	Output string
}

// ComponentCheck reports whether local components are healthy, with a
// per-component detail value that is rendered as-is.
type ComponentCheck func(ctx context.Context) (healthy bool, components any)

// Handlers contains all HTTP request handlers
type Handlers struct {
	extraction Extraction
	admin      Admin
	dirs       Dirs
	components ComponentCheck
	logger     *zap.Logger
	now        func() time.Time
}

// NewHandlers creates a new Handlers instance
func NewHandlers(extraction Extraction, admin Admin, dirs Dirs, logger *zap.Logger) *Handlers {
	return &Handlers{
		extraction: extraction,
		admin:      admin,
		dirs:       dirs,
		logger:     logger,
		now:        time.Now,
	}
}

// SetComponentCheck adds a component report to the health endpoint. An
// unhealthy report marks the service "degraded".
func (h *Handlers) SetComponentCheck(check ComponentCheck) {
	h.components = check
}

// Response represents a standard JSON response
type Response struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	Version     string `json:"version"`
	UploadDir   bool   `json:"upload_dir_exists"`
	OutputDir   bool   `json:"output_dir_exists"`
	Timestamp   string `json:"timestamp"`
	ActiveModel string `json:"active_model,omitempty"`
	Components  any    `json:"components,omitempty"`
}

// TemplateResponse describes one catalog entry
type TemplateResponse struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Version     string   `json:"version"`
	Sheets      []string `json:"sheets"`
}

// StatsResponse wraps the engine counters with the model list
type StatsResponse struct {
	structuring.Stats
	Models []string `json:"models"`
}

// Root handles GET /
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"service": serviceName,
			"version": serviceVersion,
			"message": "PE report extraction API: POST PDFs to /api/extract",
		},
	})
}

// Health handles GET /api/health
func (h *Handlers) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Service:   serviceName,
		Version:   serviceVersion,
		UploadDir: dirExists(h.dirs.Upload),
		OutputDir: dirExists(h.dirs.Output),
		Timestamp: h.now().UTC().Format(time.RFC3339),
	}
	if models := h.admin.Models(); len(models) > 0 {
		resp.ActiveModel = models[0].Name
	}
	if h.components != nil {
		healthy, detail := h.components(c.Request.Context())
		resp.Components = detail
		if !healthy {
			resp.Status = "degraded"
		}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: resp})
}

// Templates handles GET /api/templates
func (h *Handlers) Templates(c *gin.Context) {
	all := template.All()
	out := make([]TemplateResponse, 0, len(all))
	for _, t := range all {
		out = append(out, TemplateResponse{
			ID:          int(t.ID),
			Name:        t.Name,
			Description: t.Description,
			Version:     t.Version,
			Sheets:      t.SheetNames(),
		})
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: out})
}

// Extract handles POST /api/extract
func (h *Handlers) Extract(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(c, http.StatusRequestEntityTooLarge, codeTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		h.fail(c, http.StatusBadRequest, pipeline.CodeValidation, "expected a multipart form with files and template_id")
		return
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		headers = form.File["files[]"]
	}

	// The template is checked before any upload is read.
	batch := pipeline.Batch{TemplateID: c.PostForm("template_id")}
	if _, err := template.ParseID(batch.TemplateID); err != nil {
		h.processError(c, &pipeline.ValidationError{Field: "template_id", Reason: err.Error()})
		return
	}

	for _, fh := range headers {
		data, err := readUpload(fh, h.extraction.MaxFileSize())
		if err != nil {
			h.fail(c, http.StatusBadRequest, pipeline.CodeValidation, err.Error())
			return
		}
		batch.Files = append(batch.Files, pipeline.Upload{Name: fh.Filename, Data: data})
	}

	outcome, err := h.extraction.Process(c.Request.Context(), batch)
	if err != nil {
		h.processError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: outcome})
}

// readUpload reads at most limit+1 bytes so oversized parts are still
// reported by the pipeline's size check.
func readUpload(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to read upload %s", fh.Filename)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload %s", fh.Filename)
	}
	return data, nil
}

// Download handles GET /api/download/:job_id
func (h *Handlers) Download(c *gin.Context) {
	jobID := c.Param("job_id")
	dl, err := h.extraction.Output(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, pipeline.ErrOutputNotFound) {
			h.fail(c, http.StatusNotFound, codeNotFound, "file not found or expired")
			return
		}
		h.logger.Error("Failed to resolve download", zap.String("job_id", jobID), zap.Error(err))
		h.fail(c, http.StatusInternalServerError, pipeline.Code(err), "failed to resolve download")
		return
	}

	c.Header("Content-Type", xlsxMediaType)
	c.FileAttachment(dl.Path, dl.FileName)
}

// Stats handles GET /api/admin/stats
func (h *Handlers) Stats(c *gin.Context) {
	models := h.admin.Models()
	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.Name)
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    StatsResponse{Stats: h.admin.Stats(c.Request.Context()), Models: names},
	})
}

// ClearCache handles POST /api/admin/cache/clear
func (h *Handlers) ClearCache(c *gin.Context) {
	n, err := h.admin.ClearCache(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to clear cache", zap.Error(err))
		h.fail(c, http.StatusInternalServerError, pipeline.CodePersistence, "failed to clear cache")
		return
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    gin.H{"cleared": n, "message": "Cache cleared successfully"},
	})
}

// LLMHealth handles GET /api/admin/llm/health
func (h *Handlers) LLMHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), llmHealthTimeout)
	defer cancel()

	model, err := h.admin.HealthCheck(ctx)
	if err != nil {
		h.logger.Warn("LLM health check failed", zap.String("model", model), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, Response{
			Success:   false,
			Data:      gin.H{"status": "unhealthy", "model": model},
			Error:     err.Error(),
			ErrorCode: "LLM_UNAVAILABLE",
		})
		return
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    gin.H{"status": "healthy", "model": model},
	})
}

// processError maps a pipeline failure to a status code and envelope.
func (h *Handlers) processError(c *gin.Context, err error) {
	status := StatusFor(err)
	code := pipeline.Code(err)
	msg := err.Error()
	if code == codeInternal {
		msg = "internal server error"
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Extraction request failed", zap.String("error_code", code), zap.Error(err))
	} else {
		h.logger.Info("Extraction request rejected", zap.String("error_code", code), zap.Error(err))
	}
	h.fail(c, status, code, msg)
}

// StatusFor returns the HTTP status for a pipeline error.
func StatusFor(err error) int {
	var failed *structuring.FailedError
	var persist *pipeline.PersistenceError

	switch {
	case errors.Is(err, pipeline.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrTimeout):
		return http.StatusRequestTimeout
	case errors.Is(err, pipeline.ErrNoUsableDocuments):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pipeline.ErrOutputNotFound):
		return http.StatusNotFound
	case errors.As(err, &persist), errors.Is(err, workbook.ErrSaveFailed):
		return http.StatusInternalServerError
	case errors.As(err, &failed):
		switch failed.Cause {
		case structuring.CauseRateLimited:
			return http.StatusTooManyRequests
		case structuring.CauseTimeout:
			return http.StatusServiceUnavailable
		case structuring.CauseNoInput:
			return http.StatusUnprocessableEntity
		case structuring.CauseCanceled:
			return statusClientClosed
		}
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}

func (h *Handlers) fail(c *gin.Context, status int, code, msg string) {
	c.JSON(status, Response{Success: false, Error: msg, ErrorCode: code})
}

// maxBodyBytes is the upload ceiling for a batch of maxFiles files.
func (h *Handlers) maxBodyBytes(maxFiles int) int64 {
	if maxFiles <= 0 {
		maxFiles = 1
	}
	return int64(maxFiles)*h.extraction.MaxFileSize() + multipartOverhead
}

func dirExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
