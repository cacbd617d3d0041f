// Package notify reports finished extraction jobs to operators.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Job outcome labels carried in a Summary.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Summary describes a finished job.
type Summary struct {
	JobID           string
	Status          string
	TemplateID      int
	TemplateName    string
	FileName        string
	DownloadURL     string
	FilesProcessed  int
	FilesSuccessful int
	FilesFailed     int
	DataPoints      int
	CacheHit        bool
	ErrorCode       string
	Error           string
	Duration        time.Duration
}

// Notifier is told about every job once it finishes. Implementations must not
// block the caller for long and their failures never fail the job.
type Notifier interface {
	JobFinished(ctx context.Context, s Summary) error
}

// Noop discards notifications.
type Noop struct{}

func (Noop) JobFinished(context.Context, Summary) error { return nil }

// Text renders s as a short plain-text message.
func Text(s Summary) string {
	var b strings.Builder
	if s.Status == StatusSuccess {
		fmt.Fprintf(&b, "PDF extraction completed: job %s\n", s.JobID)
	} else {
		fmt.Fprintf(&b, "PDF extraction failed: job %s\n", s.JobID)
	}
	if s.TemplateName != "" {
		fmt.Fprintf(&b, "Template: %d (%s)\n", s.TemplateID, s.TemplateName)
	} else {
		fmt.Fprintf(&b, "Template: %d\n", s.TemplateID)
	}
	fmt.Fprintf(&b, "Files: %d processed, %d successful, %d failed\n",
		s.FilesProcessed, s.FilesSuccessful, s.FilesFailed)

	if s.Status == StatusSuccess {
		fmt.Fprintf(&b, "Data points: %d", s.DataPoints)
		if s.CacheHit {
			b.WriteString(" (cached)")
		}
		b.WriteString("\n")
		if s.FileName != "" {
			fmt.Fprintf(&b, "Workbook: %s\n", s.FileName)
		}
		if s.DownloadURL != "" {
			fmt.Fprintf(&b, "Download: %s\n", s.DownloadURL)
		}
	} else {
		if s.ErrorCode != "" {
			fmt.Fprintf(&b, "Error code: %s\n", s.ErrorCode)
		}
		if s.Error != "" {
			fmt.Fprintf(&b, "Error: %s\n", excerpt(s.Error, 300))
		}
	}
	if s.Duration > 0 {
		fmt.Fprintf(&b, "Duration: %s\n", s.Duration.Round(time.Millisecond))
	}
	return strings.TrimRight(b.String(), "\n")
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
