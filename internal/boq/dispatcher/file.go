package dispatcher

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cuongbtq/boq-ai/internal/boq/domain"
)

// DefaultExtensions are the drawing and archive formats the service accepts.
var DefaultExtensions = []string{".dwg", ".dxf", ".zip"}

// File is a drawing selected for upload.
type File struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// FromPath describes a file on disk. The file is opened only when uploaded.
func FromPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}
	return File{
		Name: filepath.Base(path),
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// NormalizeExt lowercases an extension and ensures a leading dot.
func NormalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// ValidateFileName rejects names whose extension is not in accepted.
// An empty accepted list means DefaultExtensions.
func ValidateFileName(name string, accepted []string) error {
	if len(accepted) == 0 {
		accepted = DefaultExtensions
	}
	ext := NormalizeExt(filepath.Ext(name))
	if ext == "" {
		return &domain.ValidationError{FileName: name, Reason: "file has no extension"}
	}
	for _, a := range accepted {
		if NormalizeExt(a) == ext {
			return nil
		}
	}
	return &domain.ValidationError{
		FileName: name,
		Reason:   fmt.Sprintf("unsupported file type %s (accepted: %s)", ext, strings.Join(accepted, ", ")),
	}
}
