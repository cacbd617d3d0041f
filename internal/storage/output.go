package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrOutputNotFound is returned when a workbook is missing from the store.
var ErrOutputNotFound = errors.New("output file not found")

// OutputStore owns the directory generated workbooks are written to.
type OutputStore struct {
	storage *LocalFileStorage
	logger  *zap.Logger
	now     func() time.Time
}

// NewOutputStore creates a store rooted at dir.
func NewOutputStore(dir string, logger *zap.Logger) *OutputStore {
	return &OutputStore{
		storage: NewLocalFileStorage(dir, logger),
		logger:  logger,
		now:     time.Now,
	}
}

// Dir returns the output directory.
func (o *OutputStore) Dir() string {
	return o.storage.BaseDir()
}

// Path returns where fileName is stored. Names containing directory parts
// are rejected.
func (o *OutputStore) Path(fileName string) (string, error) {
	if fileName == "" || fileName != filepath.Base(fileName) {
		return "", fmt.Errorf("%w: %q", ErrPathEscapes, fileName)
	}
	path := filepath.Join(o.Dir(), fileName)
	if err := o.storage.ValidatePath(path); err != nil {
		return "", err
	}
	return path, nil
}

// Resolve returns the path of an existing output file.
func (o *OutputStore) Resolve(path string) (string, error) {
	if err := o.storage.ValidatePath(path); err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
		return "", fmt.Errorf("%w: %s", ErrOutputNotFound, filepath.Base(path))
	}
	if err != nil {
		return "", fmt.Errorf("failed to stat output: %w", err)
	}
	return path, nil
}

// Remove deletes one output file.
func (o *OutputStore) Remove(path string) error {
	return o.storage.Remove(path)
}

// Prune deletes workbooks older than maxAge and returns how many went.
func (o *OutputStore) Prune(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(o.Dir())
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to list outputs: %w", err)
	}

	cutoff := o.now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".xlsx") {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := o.Remove(filepath.Join(o.Dir(), e.Name())); err != nil {
			o.logger.Warn("Failed to prune output", zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		removed++
	}

	if removed > 0 {
		o.logger.Info("Pruned expired outputs", zap.Int("removed", removed))
	}
	return removed, nil
}
