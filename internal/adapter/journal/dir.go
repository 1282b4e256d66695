package journal

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/trail-shelter-stats/internal/domain"
)

const documentExt = ".json"

// DirSource reads hiker documents named <hiker id>.json from a directory.
type DirSource struct {
	dir string
}

// NewDirSource creates a DirSource rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

func (s *DirSource) Fetch(_ context.Context, hikerID string) ([]byte, error) {
	path, err := s.path(hikerID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, domain.ErrJournalNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read hiker document: %w", err)
	}
	return data, nil
}

// Put stores a hiker document, creating the directory if needed.
func (s *DirSource) Put(_ context.Context, hikerID string, data []byte) error {
	path, err := s.path(hikerID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write hiker document: %w", err)
	}
	return nil
}

func (s *DirSource) path(hikerID string) (string, error) {
	if err := validateHikerID(hikerID); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, hikerID+documentExt), nil
}

func validateHikerID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("invalid hiker id %q", id)
	}
	return nil
}
