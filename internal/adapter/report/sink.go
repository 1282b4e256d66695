package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/couchcryptid/trail-shelter-stats/internal/domain"
)

// FileSink writes the CSV report to a path. It implements pipeline.Sink.
type FileSink struct {
	path string
}

// NewFileSink creates a FileSink for path.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

func (s *FileSink) Name() string { return "csv" }

// Save writes the report to a temporary file next to the target and renames
// it into place, so a failed write never leaves a truncated report.
func (s *FileSink) Save(_ context.Context, records []domain.ShelterRecord) error {
	if err := WriteFile(s.path, records); err != nil {
		return &domain.IOWriteError{Target: s.path, Err: err}
	}
	return nil
}

// WriteFile atomically replaces path with a report of records.
func WriteFile(path string, records []domain.ShelterRecord) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op once renamed

	if err := Write(tmp, records); err != nil {
		tmp.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename report: %w", err)
	}
	return nil
}

// ReadFile parses the report at path.
func ReadFile(path string) ([]domain.ShelterRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}
