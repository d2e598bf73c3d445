package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/statement-parser/client/internal/models"
)

// ErrNotFound is returned for ids the store does not know.
var ErrNotFound = errors.New("staged file not found")

// Store holds uploaded documents between selection and submission.
// Staged files belong to the running process only; they are never listed
// or reused across selections.
type Store interface {
	Stage(name string, r io.Reader) (*models.SelectedFile, error)
	Pin(id string) error
	Discard(id string) error
	CleanupOld(maxAge time.Duration) (int, error)
}

type stagedFile struct {
	path     string
	stagedAt time.Time
	pinned   bool
}

// LocalStore implements Store using a staging directory on the local filesystem.
type LocalStore struct {
	mu         sync.Mutex
	stagingDir string
	files      map[string]stagedFile
	now        func() time.Time
}

// NewLocalStore creates a new LocalStore.
func NewLocalStore(stagingDir string) (*LocalStore, error) {
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}

	return &LocalStore{
		stagingDir: stagingDir,
		files:      make(map[string]stagedFile),
		now:        time.Now,
	}, nil
}

// Stage copies r into the staging directory and returns a selection that
// reads it back on every Open.
func (s *LocalStore) Stage(name string, r io.Reader) (*models.SelectedFile, error) {
	var path string
	file := models.NewSelectedFile(name, 0, func() (io.ReadCloser, error) {
		return os.Open(path)
	})
	path = filepath.Join(s.stagingDir, file.ID)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}

	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}
	file.Size = size

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[file.ID] = stagedFile{path: path, stagedAt: s.now()}

	return file, nil
}

// Pin exempts a staged file from CleanupOld until it is discarded.
func (s *LocalStore) Pin(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged, ok := s.files[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	staged.pinned = true
	s.files[id] = staged
	return nil
}

// Discard removes a staged file, pinned or not. If the removal fails the
// entry stays staged but unpinned so CleanupOld retries it.
func (s *LocalStore) Discard(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged, ok := s.files[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	staged.pinned = false
	s.files[id] = staged

	if err := os.Remove(staged.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}

	delete(s.files, id)
	return nil
}

// CleanupOld removes unpinned files staged longer than maxAge ago and
// returns how many were removed.
func (s *LocalStore) CleanupOld(maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxAge)
	removed := 0
	var errs []error
	for id, staged := range s.files {
		if staged.pinned || staged.stagedAt.After(cutoff) {
			continue
		}
		if err := os.Remove(staged.path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("deleting %s: %w", id, err))
			continue
		}
		delete(s.files, id)
		removed++
	}

	return removed, errors.Join(errs...)
}

// Len returns the number of files currently staged.
func (s *LocalStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// Pinned reports whether id is staged and pinned.
func (s *LocalStore) Pinned(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files[id].pinned
}
