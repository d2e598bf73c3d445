// mock_storage.go - In-memory staging store for testing
package testutil

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/statement-parser/client/internal/models"
	"github.com/statement-parser/client/internal/storage"
)

// MockStorage implements storage.Store in memory.
type MockStorage struct {
	mu       sync.RWMutex
	files    map[string]*models.SelectedFile
	fileData map[string][]byte
	pinned   map[string]bool

	// StageErr, when set, is returned by every Stage call.
	StageErr error
	// CleanupCalls counts CleanupOld invocations.
	CleanupCalls int
}

// NewMockStorage creates an empty mock store.
func NewMockStorage() *MockStorage {
	return &MockStorage{
		files:    make(map[string]*models.SelectedFile),
		fileData: make(map[string][]byte),
		pinned:   make(map[string]bool),
	}
}

var _ storage.Store = (*MockStorage)(nil)

func (m *MockStorage) Stage(name string, r io.Reader) (*models.SelectedFile, error) {
	if m.StageErr != nil {
		return nil, m.StageErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	file := models.NewSelectedFileFromBytes(name, data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[file.ID] = file
	m.fileData[file.ID] = data
	return file, nil
}

func (m *MockStorage) Pin(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[id]; !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	m.pinned[id] = true
	return nil
}

func (m *MockStorage) Discard(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[id]; !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	delete(m.files, id)
	delete(m.fileData, id)
	delete(m.pinned, id)
	return nil
}

func (m *MockStorage) CleanupOld(time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CleanupCalls++
	return 0, nil
}

// Has reports whether id is still staged.
func (m *MockStorage) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[id]
	return ok
}

// Pinned reports whether id is staged and pinned.
func (m *MockStorage) Pinned(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pinned[id]
}

// Data returns the staged bytes for id.
func (m *MockStorage) Data(id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.fileData[id]
	if !ok {
		return nil, errors.New("file not found")
	}
	return data, nil
}

// IDs returns the staged ids in no particular order.
func (m *MockStorage) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.files))
	for id := range m.files {
		ids = append(ids, id)
	}
	return ids
}

// Count returns how many files are staged.
func (m *MockStorage) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}
