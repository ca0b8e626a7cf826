// mock_storage.go - Mock storage implementation for testing
package testutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/caffeinepub/ofs/internal/models"
)

// MockStorage implements storage.Store for testing
type MockStorage struct {
	mu       sync.RWMutex
	files    map[string]*models.FileMetadata
	fileData map[string][]byte
	nextID   atomic.Int64

	// SaveErr, when set, makes every save fail with it
	SaveErr error
}

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		files:    make(map[string]*models.FileMetadata),
		fileData: make(map[string][]byte),
	}
}

func (m *MockStorage) Save(name, mimeType, uploaderID string, r io.Reader) (*models.FileMetadata, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return m.SaveBytes(name, mimeType, uploaderID, data)
}

func (m *MockStorage) SaveBytes(name, mimeType, uploaderID string, data []byte) (*models.FileMetadata, error) {
	if m.SaveErr != nil {
		return nil, m.SaveErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if mimeType == "" {
		mimeType = models.DefaultMimeType
	}

	id := fmt.Sprintf("test-file-%d", m.nextID.Add(1))
	md := &models.FileMetadata{
		ID:         id,
		Name:       name,
		SizeBytes:  int64(len(data)),
		MimeType:   mimeType,
		UploaderID: uploaderID,
		UploadTime: time.Now(),
	}

	m.files[id] = md
	m.fileData[id] = data
	return md, nil
}

func (m *MockStorage) Get(id string) (*models.FileMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	md, ok := m.files[id]
	if !ok {
		return nil, errors.New("file not found")
	}
	copied := *md
	return &copied, nil
}

func (m *MockStorage) Open(id string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.fileData[id]
	if !ok {
		return nil, errors.New("file not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MockStorage) List(limit int) ([]*models.FileMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var list []*models.FileMetadata
	for _, md := range m.files {
		copied := *md
		list = append(list, &copied)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].UploadTime.After(list[j].UploadTime)
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (m *MockStorage) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[id]; !ok {
		return errors.New("file not found")
	}
	delete(m.files, id)
	delete(m.fileData, id)
	return nil
}

// Data returns the stored bytes of a file, for assertions
func (m *MockStorage) Data(id string) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fileData[id]
}
