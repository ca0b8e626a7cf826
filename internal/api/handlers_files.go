// handlers_files.go - File upload and retrieval handlers
package api

import (
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/caffeinepub/ofs/internal/filesize"
	"github.com/caffeinepub/ofs/internal/models"
	"github.com/caffeinepub/ofs/internal/storage"
)

// FileHandlerImpl implements the FileHandler interface
type FileHandlerImpl struct {
	store  storage.Store
	limits filesize.Policy
}

// NewFileHandler creates a new file handler instance. The zero policy
// enforces the default size thresholds.
func NewFileHandler(store storage.Store, limits filesize.Policy) FileHandler {
	return &FileHandlerImpl{store: store, limits: limits}
}

// uploadResponse is file metadata plus an optional size warning.
type uploadResponse struct {
	*models.FileMetadata
	Warning string `json:"warning,omitempty"`
}

// HandleUploadFile accepts a raw file upload (multipart/form-data)
func (h *FileHandlerImpl) HandleUploadFile(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}

	check := h.limits.Check(file.Size)
	if check.Level == filesize.LevelError {
		return NewPayloadTooLargeError(check.Message)
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	mimeType := file.Header.Get("Content-Type")
	md, err := h.store.Save(file.Filename, mimeType, IdentityFrom(c), src)
	if err != nil {
		return NewInternalError("failed to save file", err)
	}

	return c.JSON(http.StatusCreated, uploadResponse{FileMetadata: md, Warning: check.Message})
}

// HandleUploadBase64 accepts a file as base64 JSON and saves it to storage
func (h *FileHandlerImpl) HandleUploadBase64(c echo.Context) error {
	var req uploadBase64Request
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	if err := req.validate(); err != nil {
		return err
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	check := h.limits.Check(int64(len(decoded)))
	if check.Level == filesize.LevelError {
		return NewPayloadTooLargeError(check.Message)
	}

	md, err := h.store.SaveBytes(req.Name, req.MimeType, IdentityFrom(c), decoded)
	if err != nil {
		return NewInternalError("failed to save file", err)
	}

	return c.JSON(http.StatusCreated, uploadResponse{FileMetadata: md, Warning: check.Message})
}

// HandleGetRecentFiles returns the most recently uploaded files
func (h *FileHandlerImpl) HandleGetRecentFiles(c echo.Context) error {
	files, err := h.store.List(20)
	if err != nil {
		return NewInternalError("failed to list files", err)
	}
	return c.JSON(http.StatusOK, files)
}

// HandleGetFile returns metadata for a specific file
func (h *FileHandlerImpl) HandleGetFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	md, err := h.store.Get(id)
	if err != nil {
		return NewNotFoundError("file", id)
	}

	return c.JSON(http.StatusOK, md)
}

// HandleGetFileContent streams the stored bytes back to the caller
func (h *FileHandlerImpl) HandleGetFileContent(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	md, err := h.store.Get(id)
	if err != nil {
		return NewNotFoundError("file", id)
	}

	rc, err := h.store.Open(id)
	if err != nil {
		return NewInternalError("failed to open file", err)
	}
	defer rc.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q`, md.Name))
	return c.Stream(http.StatusOK, md.MimeType, rc)
}

// HandleDeleteFile deletes a file and its metadata
func (h *FileHandlerImpl) HandleDeleteFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if err := h.store.Delete(id); err != nil {
		return NewNotFoundError("file", id)
	}

	return c.NoContent(http.StatusNoContent)
}

// Request/Response types

type uploadBase64Request struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // Base64-encoded content
}

func (r *uploadBase64Request) validate() error {
	if r.Name == "" {
		return NewValidationError("name")
	}
	if r.Data == "" {
		return NewValidationError("data")
	}
	return nil
}
