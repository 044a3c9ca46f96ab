package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FileStore keeps one JSON file per manifest in Dir.
type FileStore struct {
	Dir string
}

// NewFileStore returns a store writing to dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create manifest dir: %w", err)
	}
	return &FileStore{Dir: dir}, nil
}

// Path returns the file a manifest with the given id is stored in.
func (s *FileStore) Path(id uuid.UUID) string {
	return filepath.Join(s.Dir, id.String()+".json")
}

// Save writes m to Path(m.ID).
func (s *FileStore) Save(ctx context.Context, m *Manifest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(m); err != nil {
		return err
	}
	return WriteFile(s.Path(m.ID), m)
}

// Load reads the manifest with the given id.
func (s *FileStore) Load(ctx context.Context, id uuid.UUID) (*Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ReadFile(s.Path(id))
}

// WriteFile writes m as indented JSON to path. Handles are redacted; the file
// is replaced atomically.
func WriteFile(path string, m *Manifest) error {
	if err := validate(m); err != nil {
		return err
	}

	out := *m
	out.Jobs = redactJobs(m.Jobs)

	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadFile reads a manifest written by WriteFile.
func ReadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	if err := validate(&m); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}
