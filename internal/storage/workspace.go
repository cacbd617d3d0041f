package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	unsafeFolderChars = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)
	unsafeFileChars   = regexp.MustCompile(`[^a-zA-Z0-9\-_. ]`)
)

// Workspaces hands out per-job upload folders under one base directory.
type Workspaces struct {
	storage *LocalFileStorage
	logger  *zap.Logger
}

// NewWorkspaces creates a workspace manager rooted at baseDir.
func NewWorkspaces(baseDir string, logger *zap.Logger) *Workspaces {
	return &Workspaces{
		storage: NewLocalFileStorage(baseDir, logger),
		logger:  logger,
	}
}

// BaseDir returns the upload root.
func (w *Workspaces) BaseDir() string {
	return w.storage.BaseDir()
}

// Create makes the folder for jobID. The caller must Release it.
func (w *Workspaces) Create(jobID string) (*JobWorkspace, error) {
	safe := SanitizeFolderName(jobID)
	if safe == "" {
		return nil, fmt.Errorf("cannot create workspace: empty job ID")
	}

	dir := filepath.Join(w.storage.BaseDir(), safe)
	if err := w.storage.ValidatePath(dir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		w.logger.Error("Failed to create job workspace",
			zap.String("job_id", jobID),
			zap.String("folder_path", dir),
			zap.Error(err))
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	w.logger.Debug("Created job workspace",
		zap.String("job_id", jobID),
		zap.String("folder_path", dir))

	return &JobWorkspace{dir: dir, storage: w.storage, logger: w.logger}, nil
}

// JobWorkspace holds one job's uploaded documents until Release.
type JobWorkspace struct {
	dir     string
	storage *LocalFileStorage
	logger  *zap.Logger

	mu    sync.Mutex
	names map[string]int
	once  sync.Once
	err   error
}

// Dir returns the workspace folder.
func (ws *JobWorkspace) Dir() string {
	return ws.dir
}

// Save stores one upload under a sanitized, unique name and returns its path.
func (ws *JobWorkspace) Save(name string, data []byte) (string, error) {
	path := filepath.Join(ws.dir, ws.uniqueName(name))
	if err := ws.storage.SaveFile(path, data, FileTypeUpload); err != nil {
		return "", err
	}
	return path, nil
}

func (ws *JobWorkspace) uniqueName(name string) string {
	safe := SanitizeFileName(name)

	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.names == nil {
		ws.names = make(map[string]int)
	}
	ws.names[safe]++
	if n := ws.names[safe]; n > 1 {
		ext := filepath.Ext(safe)
		return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(safe, ext), n, ext)
	}
	return safe
}

// Release removes the workspace and everything in it. It is safe to call
// more than once; later calls return the first result.
func (ws *JobWorkspace) Release() error {
	ws.once.Do(func() {
		ws.err = ws.storage.Remove(ws.dir)
		if ws.err == nil {
			ws.logger.Debug("Released job workspace", zap.String("folder_path", ws.dir))
		}
	})
	return ws.err
}

// SanitizeFolderName returns a filesystem-safe version of the name.
// Only alphanumerics, hyphens and underscores survive.
func SanitizeFolderName(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	return unsafeFolderChars.ReplaceAllString(name, "")
}

// SanitizeFileName strips directories and unsafe characters from an upload
// name, keeping its extension.
func SanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeFileChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ". ")
	if name == "" || name == "_" {
		return "document.pdf"
	}
	return name
}
