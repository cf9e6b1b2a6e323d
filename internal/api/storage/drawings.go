package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DrawingStore keeps uploaded drawings on local disk, one directory per job.
type DrawingStore struct {
	dir string
}

func NewDrawingStore(dir string) (*DrawingStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create drawings directory: %w", err)
	}
	return &DrawingStore{dir: dir}, nil
}

// Save writes the upload to <dir>/<jobID>/<base name> and returns the path.
func (d *DrawingStore) Save(jobID, fileName string, r io.Reader) (string, error) {
	jobDir := filepath.Join(d.dir, jobID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create job directory: %w", err)
	}

	path := filepath.Join(jobDir, filepath.Base(fileName))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create drawing file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write drawing file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close drawing file: %w", err)
	}
	return path, nil
}

// Remove deletes everything stored for jobID.
func (d *DrawingStore) Remove(jobID string) error {
	return os.RemoveAll(filepath.Join(d.dir, jobID))
}
