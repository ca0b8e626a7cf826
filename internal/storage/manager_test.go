// manager_test.go - Tests for the file store
package storage

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func createTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func TestNewLocalStore(t *testing.T) {
	t.Run("creates upload directory", func(t *testing.T) {
		uploadDir := filepath.Join(t.TempDir(), "uploads")

		if _, err := NewLocalStore(uploadDir); err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}

		if _, err := os.Stat(uploadDir); os.IsNotExist(err) {
			t.Error("Expected upload directory to be created")
		}
	})
}

func TestLocalStore_Save(t *testing.T) {
	t.Run("saves file from reader", func(t *testing.T) {
		store := createTestStore(t)

		content := "Hello, World!"
		md, err := store.Save("test.txt", "text/plain", "alice", strings.NewReader(content))
		if err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}

		if md.ID == "" {
			t.Error("Expected ID to be set")
		}
		if md.Name != "test.txt" {
			t.Errorf("Expected name 'test.txt', got %v", md.Name)
		}
		if md.SizeBytes != int64(len(content)) {
			t.Errorf("Expected size %d, got %d", len(content), md.SizeBytes)
		}
		if md.MimeType != "text/plain" {
			t.Errorf("Expected mime 'text/plain', got %v", md.MimeType)
		}
		if md.UploaderID != "alice" {
			t.Errorf("Expected uploader 'alice', got %v", md.UploaderID)
		}
		if md.UploadTime.IsZero() {
			t.Error("Expected upload time to be set")
		}
	})

	t.Run("saves empty file", func(t *testing.T) {
		store := createTestStore(t)

		md, err := store.Save("empty.txt", "text/plain", "alice", strings.NewReader(""))
		if err != nil {
			t.Fatalf("Failed to save empty file: %v", err)
		}
		if md.SizeBytes != 0 {
			t.Errorf("Expected size 0, got %d", md.SizeBytes)
		}
	})

	t.Run("defaults missing mime type", func(t *testing.T) {
		store := createTestStore(t)

		md, err := store.Save("blob", "", "alice", strings.NewReader("x"))
		if err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}
		if md.MimeType != "application/octet-stream" {
			t.Errorf("Expected default mime, got %v", md.MimeType)
		}
	})
}

func TestLocalStore_SaveBytes(t *testing.T) {
	store := createTestStore(t)

	data := []byte{0x00, 0x01, 0xff}
	md, err := store.SaveBytes("blob.bin", "application/octet-stream", "alice", data)
	if err != nil {
		t.Fatalf("Failed to save bytes: %v", err)
	}
	if md.SizeBytes != 3 {
		t.Errorf("Expected size 3, got %d", md.SizeBytes)
	}

	rc, err := store.Open(md.ID)
	if err != nil {
		t.Fatalf("Failed to open file: %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Content = %v, want %v", got, data)
	}
}

func TestLocalStore_Get(t *testing.T) {
	t.Run("returns saved metadata", func(t *testing.T) {
		store := createTestStore(t)

		saved, _ := store.SaveBytes("a.txt", "text/plain", "alice", []byte("x"))
		got, err := store.Get(saved.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Name != "a.txt" {
			t.Errorf("Name = %v", got.Name)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		store := createTestStore(t)
		if _, err := store.Get("nope"); err == nil {
			t.Error("Expected error for unknown id")
		}
	})

	t.Run("returned metadata is a copy", func(t *testing.T) {
		store := createTestStore(t)

		saved, _ := store.SaveBytes("a.txt", "text/plain", "alice", []byte("x"))
		got, _ := store.Get(saved.ID)
		got.Name = "mutated"

		again, _ := store.Get(saved.ID)
		if again.Name != "a.txt" {
			t.Error("Expected stored metadata to be immutable")
		}
	})
}

func TestLocalStore_List(t *testing.T) {
	store := createTestStore(t)

	first, _ := store.SaveBytes("first.txt", "text/plain", "alice", []byte("1"))
	store.mu.Lock()
	store.files[first.ID].UploadTime = time.Now().Add(-time.Hour)
	store.mu.Unlock()
	second, _ := store.SaveBytes("second.txt", "text/plain", "alice", []byte("2"))

	list, err := store.List(10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("Expected 2 files, got %d", len(list))
	}
	if list[0].ID != second.ID {
		t.Error("Expected newest file first")
	}

	limited, _ := store.List(1)
	if len(limited) != 1 {
		t.Errorf("Expected limit to apply, got %d", len(limited))
	}
}

func TestLocalStore_Delete(t *testing.T) {
	t.Run("removes file and metadata", func(t *testing.T) {
		store := createTestStore(t)

		md, _ := store.SaveBytes("a.txt", "text/plain", "alice", []byte("x"))
		if err := store.Delete(md.ID); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := store.Get(md.ID); err == nil {
			t.Error("Expected metadata to be gone")
		}
		if _, err := os.Stat(filepath.Join(store.uploadDir, md.ID)); !os.IsNotExist(err) {
			t.Error("Expected file bytes to be gone")
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		store := createTestStore(t)
		if err := store.Delete("nope"); err == nil {
			t.Error("Expected error for unknown id")
		}
	})
}
