package export

import (
	"fmt"
	"os"
	"path/filepath"
)

// Saver persists a generated file and returns where it was written.
type Saver interface {
	Save(name string, data []byte) (string, error)
}

// DirSaver writes files atomically into Dir.
type DirSaver struct {
	Dir string
}

func (d DirSaver) Save(name string, data []byte) (string, error) {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating export directory: %w", err)
	}

	final := filepath.Join(d.Dir, baseName(name))
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("writing export temp file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("persisting export file: %w", err)
	}
	return final, nil
}

// baseName keeps only the last path element of name. Names that do not
// resolve to a file inside the directory fall back to DefaultFileName.
func baseName(name string) string {
	base := filepath.Base(name)
	switch base {
	case ".", "..", string(filepath.Separator):
		return DefaultFileName
	}
	return base
}
