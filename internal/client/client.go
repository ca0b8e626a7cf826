// Package client is the HTTP client for the handoff server. It implements
// session.Backend, so the client-side session manager can run against a
// remote server the same way tests run against an in-memory one.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/caffeinepub/ofs/internal/models"
	"github.com/caffeinepub/ofs/internal/session"
)

// Client talks to a handoff server over HTTP.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

var _ session.Backend = (*Client)(nil)

// New creates a client for the server at baseURL. An empty token leaves
// requests unauthenticated.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// errorResponse mirrors the server's structured error body.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CreatedSession is the create response: the session record plus the
// locator deep link the server rendered for it.
type CreatedSession struct {
	models.TransferSession
	LocatorURL string `json:"locatorUrl"`
}

// CreateSession mints a transfer session for an uploaded file.
func (c *Client) CreateSession(ctx context.Context, fileID string, expiry time.Duration) (string, error) {
	s, err := c.CreateSessionWithLocator(ctx, fileID, expiry)
	if err != nil {
		return "", err
	}
	return s.SessionID, nil
}

// CreateSessionWithLocator mints a transfer session and returns the full
// record, including the server-rendered locator link.
func (c *Client) CreateSessionWithLocator(ctx context.Context, fileID string, expiry time.Duration) (*CreatedSession, error) {
	body := map[string]interface{}{
		"fileId":        fileID,
		"expirySeconds": int(expiry / time.Second),
	}

	var s CreatedSession
	if err := c.doJSON(ctx, http.MethodPost, "/api/sessions", body, http.StatusCreated, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSession fetches the session record. An unavailable session maps to
// session.ErrNotAvailable.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*models.TransferSession, error) {
	var s models.TransferSession
	err := c.doJSON(ctx, http.MethodGet, "/api/sessions/"+url.PathEscape(sessionID), nil, http.StatusOK, &s)
	if err != nil {
		if isNotFound(err) {
			return nil, session.ErrNotAvailable
		}
		return nil, err
	}
	return &s, nil
}

// ValidateSession reports whether the session still authorizes redemption.
func (c *Client) ValidateSession(ctx context.Context, sessionID string) (bool, error) {
	var resp struct {
		Valid bool `json:"valid"`
	}
	path := "/api/sessions/" + url.PathEscape(sessionID) + "/validate"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, http.StatusOK, &resp); err != nil {
		return false, err
	}
	return resp.Valid, nil
}

// InvalidateSession permanently invalidates the session.
func (c *Client) InvalidateSession(ctx context.Context, sessionID string) error {
	path := "/api/sessions/" + url.PathEscape(sessionID) + "/invalidate"
	return c.doJSON(ctx, http.MethodPost, path, nil, http.StatusNoContent, nil)
}

// RedeemSession resolves the session into file metadata, or (nil, nil)
// when the session is not currently redeemable.
func (c *Client) RedeemSession(ctx context.Context, sessionID string) (*models.FileMetadata, error) {
	var md models.FileMetadata
	path := "/api/sessions/" + url.PathEscape(sessionID) + "/redeem"
	err := c.doJSON(ctx, http.MethodPost, path, nil, http.StatusOK, &md)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &md, nil
}

// UploadFile streams a local file to the server as multipart form data.
func (c *Client) UploadFile(ctx context.Context, name string, r io.Reader) (*models.FileMetadata, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	if mimeType := mime.TypeByExtension(filepath.Ext(name)); mimeType != "" {
		header.Set("Content-Type", mimeType)
	}
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("preparing upload: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	writer.Close()

	req, err := c.newRequest(ctx, http.MethodPost, "/api/files/upload", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var md models.FileMetadata
	if err := c.do(req, http.StatusCreated, &md); err != nil {
		return nil, err
	}
	return &md, nil
}

// UploadBytes sends an in-memory buffer through the base64 endpoint.
func (c *Client) UploadBytes(ctx context.Context, name, mimeType string, data []byte) (*models.FileMetadata, error) {
	body := map[string]string{
		"name":     name,
		"mimeType": mimeType,
		"data":     base64.StdEncoding.EncodeToString(data),
	}

	var md models.FileMetadata
	if err := c.doJSON(ctx, http.MethodPost, "/api/files/upload/base64", body, http.StatusCreated, &md); err != nil {
		return nil, err
	}
	return &md, nil
}

// DownloadFile fetches a file's metadata and content.
func (c *Client) DownloadFile(ctx context.Context, fileID string) (*models.FileMetadata, []byte, error) {
	var md models.FileMetadata
	if err := c.doJSON(ctx, http.MethodGet, "/api/files/"+url.PathEscape(fileID), nil, http.StatusOK, &md); err != nil {
		return nil, nil, err
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/api/files/"+url.PathEscape(fileID)+"/content", nil)
	if err != nil {
		return nil, nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("downloading file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, responseError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("reading file content: %w", err)
	}
	return &md, data, nil
}

// RecordTransfer appends a completed transfer to the server-side ledger.
// An empty sender records the caller's own identity.
func (c *Client) RecordTransfer(ctx context.Context, sender, receiver, fileID, fileName string, duration time.Duration, success bool) (*models.TransferRecord, error) {
	body := map[string]interface{}{
		"sender":     sender,
		"receiver":   receiver,
		"fileId":     fileID,
		"fileName":   fileName,
		"durationMs": duration.Milliseconds(),
		"success":    success,
	}

	var rec models.TransferRecord
	if err := c.doJSON(ctx, http.MethodPost, "/api/transfers", body, http.StatusCreated, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// History fetches the caller's transfer history over the msgpack endpoint.
func (c *Client) History(ctx context.Context, limit int) ([]*models.TransferRecord, error) {
	path := fmt.Sprintf("/api/transfers/history/msgpack?limit=%d", limit)
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}

	var records []*models.TransferRecord
	if err := msgpack.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding history: %w", err)
	}
	return records, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body interface{}, wantStatus int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, wantStatus, out)
}

func (c *Client) do(req *http.Request, wantStatus int, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return responseError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// statusError keeps the HTTP status so callers can map specific codes.
type statusError struct {
	status  int
	code    string
	message string
}

func (e *statusError) Error() string {
	if e.code != "" {
		return fmt.Sprintf("server returned %d %s: %s", e.status, e.code, e.message)
	}
	return fmt.Sprintf("server returned %d", e.status)
}

func responseError(resp *http.Response) error {
	serr := &statusError{status: resp.StatusCode}
	var body errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		serr.code = body.Code
		serr.message = body.Message
	}
	return serr
}

func isNotFound(err error) bool {
	serr, ok := err.(*statusError)
	return ok && serr.status == http.StatusNotFound
}
