// Package storage is the durable file store: it accepts raw bytes plus
// metadata and returns a retrievable handle. Metadata is immutable once a
// file is accepted.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/caffeinepub/ofs/internal/models"
)

// Store defines the interface for file storage.
type Store interface {
	Save(name, mimeType, uploaderID string, r io.Reader) (*models.FileMetadata, error)
	SaveBytes(name, mimeType, uploaderID string, data []byte) (*models.FileMetadata, error)
	Get(id string) (*models.FileMetadata, error)
	Open(id string) (io.ReadCloser, error)
	List(limit int) ([]*models.FileMetadata, error)
	Delete(id string) error
}

// LocalStore implements Store using the local filesystem. File bytes live
// under uploadDir keyed by ID; metadata is kept in memory.
type LocalStore struct {
	mu        sync.RWMutex
	uploadDir string
	files     map[string]*models.FileMetadata
}

// NewLocalStore creates a new LocalStore rooted at uploadDir.
func NewLocalStore(uploadDir string) (*LocalStore, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}

	return &LocalStore{
		uploadDir: uploadDir,
		files:     make(map[string]*models.FileMetadata),
	}, nil
}

// Save streams a file to disk and records its metadata.
func (s *LocalStore) Save(name, mimeType, uploaderID string, r io.Reader) (*models.FileMetadata, error) {
	id := uuid.New().String()
	path := filepath.Join(s.uploadDir, id)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	if mimeType == "" {
		mimeType = models.DefaultMimeType
	}

	md := &models.FileMetadata{
		ID:         id,
		Name:       name,
		SizeBytes:  size,
		MimeType:   mimeType,
		UploaderID: uploaderID,
		UploadTime: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id] = md

	return md, nil
}

// SaveBytes stores an in-memory buffer.
func (s *LocalStore) SaveBytes(name, mimeType, uploaderID string, data []byte) (*models.FileMetadata, error) {
	id := uuid.New().String()
	path := filepath.Join(s.uploadDir, id)

	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("writing file: %w", err)
	}

	if mimeType == "" {
		mimeType = models.DefaultMimeType
	}

	md := &models.FileMetadata{
		ID:         id,
		Name:       name,
		SizeBytes:  int64(len(data)),
		MimeType:   mimeType,
		UploaderID: uploaderID,
		UploadTime: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id] = md

	return md, nil
}

// Get retrieves file metadata by ID.
func (s *LocalStore) Get(id string) (*models.FileMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	md, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", id)
	}

	copied := *md
	return &copied, nil
}

// Open returns a reader over the stored bytes.
func (s *LocalStore) Open(id string) (io.ReadCloser, error) {
	s.mu.RLock()
	_, ok := s.files[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("file not found: %s", id)
	}

	f, err := os.Open(filepath.Join(s.uploadDir, id))
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	return f, nil
}

// List returns the most recently uploaded files, newest first.
func (s *LocalStore) List(limit int) ([]*models.FileMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []*models.FileMetadata
	for _, md := range s.files {
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

// Delete removes a file and its metadata.
func (s *LocalStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return fmt.Errorf("file not found: %s", id)
	}

	path := filepath.Join(s.uploadDir, id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}

	delete(s.files, id)
	return nil
}
