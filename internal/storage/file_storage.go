// Package storage keeps uploaded documents and generated workbooks on the
// local filesystem, confined to configured base directories.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ErrPathEscapes is returned for paths outside the storage base directory.
var ErrPathEscapes = errors.New("path escapes base directory")

// FileType represents the type of file being stored
type FileType int

const (
	FileTypeGeneric FileType = iota
	FileTypeUpload
	FileTypeWorkbook
)

func (t FileType) String() string {
	switch t {
	case FileTypeUpload:
		return "upload"
	case FileTypeWorkbook:
		return "workbook"
	default:
		return "generic"
	}
}

// FileStorage defines the interface for file storage operations
type FileStorage interface {
	// SaveFile writes content to the specified full path, creating parent
	// directories if needed.
	SaveFile(fullPath string, content []byte, fileType FileType) error

	// Remove deletes a file or directory tree. Missing paths are not an error.
	Remove(fullPath string) error

	// ValidatePath checks path security (no traversal, within base)
	ValidatePath(fullPath string) error
}

// LocalFileStorage implements FileStorage for local filesystem
type LocalFileStorage struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalFileStorage creates a new LocalFileStorage
func NewLocalFileStorage(baseDir string, logger *zap.Logger) *LocalFileStorage {
	return &LocalFileStorage{
		baseDir: baseDir,
		logger:  logger,
	}
}

// BaseDir returns the directory all paths are confined to.
func (s *LocalFileStorage) BaseDir() string {
	return s.baseDir
}

// SaveFile writes content with type-specific logging
func (s *LocalFileStorage) SaveFile(fullPath string, content []byte, fileType FileType) error {
	if err := s.ValidatePath(fullPath); err != nil {
		return err
	}

	parentDir := filepath.Dir(fullPath)
	if err := os.MkdirAll(parentDir, 0o755); err != nil {
		s.logger.Error("Failed to create parent directories",
			zap.String("path", parentDir),
			zap.Error(err))
		return fmt.Errorf("failed to create directories: %w", err)
	}

	if err := os.WriteFile(fullPath, content, 0o644); err != nil {
		s.logger.Error("Failed to write file",
			zap.String("path", fullPath),
			zap.Error(err))
		return fmt.Errorf("failed to write file: %w", err)
	}

	s.logger.Debug("File saved successfully",
		zap.String("path", fullPath),
		zap.Int("size", len(content)),
		zap.Stringer("file_type", fileType))

	return nil
}

// Remove deletes fullPath and anything beneath it.
func (s *LocalFileStorage) Remove(fullPath string) error {
	if err := s.ValidatePath(fullPath); err != nil {
		return err
	}
	if err := os.RemoveAll(fullPath); err != nil {
		s.logger.Error("Failed to remove path",
			zap.String("path", fullPath),
			zap.Error(err))
		return fmt.Errorf("failed to remove %s: %w", fullPath, err)
	}
	return nil
}

// ValidatePath checks that the path is safe and within baseDir
func (s *LocalFileStorage) ValidatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	// The base itself is not a valid target; a sibling sharing its prefix
	// must not pass either.
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrPathEscapes, fullPath)
	}

	return nil
}
