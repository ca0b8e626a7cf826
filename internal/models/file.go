package models

import "time"

// FileMetadata describes a file accepted by the file store. It is created
// once at upload time and never mutated afterwards; everything else refers
// to the file by ID.
type FileMetadata struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	SizeBytes  int64     `json:"sizeBytes"`
	MimeType   string    `json:"mimeType"`
	UploaderID string    `json:"uploaderId"`
	UploadTime time.Time `json:"uploadTime"`
}

// DefaultMimeType is used when a file arrives without a declared type.
const DefaultMimeType = "application/octet-stream"
