package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultPath is where the CLI writes the report unless told otherwise.
const DefaultPath = "logs/candidate_report.md"

// Sink persists a rendered report and returns where it went.
type Sink interface {
	Save(ctx context.Context, doc string) (string, error)
}

// FileSink writes the report to a file, creating parent directories.
type FileSink struct {
	Path string
}

// NewFileSink returns a sink writing to path, or DefaultPath when path is empty.
func NewFileSink(path string) *FileSink {
	if path == "" {
		path = DefaultPath
	}
	return &FileSink{Path: path}
}

func (s *FileSink) Save(ctx context.Context, doc string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create report directory: %w", err)
		}
	}
	if err := os.WriteFile(s.Path, []byte(doc), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return s.Path, nil
}
