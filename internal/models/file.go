package models

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SelectedFile is the document chosen by the user for the current cycle.
// It is replaced wholesale on every new selection.
type SelectedFile struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	SelectedAt time.Time `json:"selectedAt"`

	open func() (io.ReadCloser, error)
}

// Open returns a fresh reader over the file's content.
func (f *SelectedFile) Open() (io.ReadCloser, error) {
	if f == nil || f.open == nil {
		return nil, fmt.Errorf("selected file has no content handle")
	}
	return f.open()
}

// NewSelectedFile wraps an arbitrary content handle.
func NewSelectedFile(name string, size int64, open func() (io.ReadCloser, error)) *SelectedFile {
	return &SelectedFile{
		ID:         uuid.New().String(),
		Name:       name,
		Size:       size,
		SelectedAt: time.Now(),
		open:       open,
	}
}

// NewSelectedFileFromBytes keeps the content in memory.
func NewSelectedFileFromBytes(name string, data []byte) *SelectedFile {
	return NewSelectedFile(name, int64(len(data)), func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	})
}

// NewSelectedFileFromPath references a file on disk. The content is read
// at submission time, not at selection time.
func NewSelectedFileFromPath(path string) (*SelectedFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return NewSelectedFile(filepath.Base(path), info.Size(), func() (io.ReadCloser, error) {
		return os.Open(path)
	}), nil
}

// LooksLikePDF reports whether the name carries a .pdf extension.
// It is a picker hint only; the extraction service decides what it accepts.
func LooksLikePDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
