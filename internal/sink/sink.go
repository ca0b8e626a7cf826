// Package sink writes received bytes to the user's device. An interactive
// save-location picker is preferred when one is available; dismissing it is
// a normal outcome, not a failure. Anything else falls back to an automatic
// write into the download directory under a collision-free name.
package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrCancelled reports that the user dismissed the save picker. Callers
// must treat it as an informational outcome and never raise a failure
// notification for it.
var ErrCancelled = errors.New("save cancelled")

// File is a picked save destination. *os.File satisfies it.
type File interface {
	io.WriteCloser
	Name() string
}

// Picker offers the user an interactive choice of save location. Pick
// returns ErrCancelled when the user dismisses the prompt; any other error
// makes the sink fall back to an automatic download.
type Picker interface {
	Pick(ctx context.Context, suggestedName, mimeType string) (File, error)
}

// Sink saves byte buffers to the device. Concurrent saves are independent;
// a Sink holds no mutable state.
type Sink struct {
	// Picker is optional. When nil the fallback path is used directly.
	Picker Picker
	// DownloadDir receives automatic downloads.
	DownloadDir string
}

// Save writes data to the device and returns the destination path. The
// interactive picker is tried first; user cancellation propagates as
// ErrCancelled, while any other picker failure silently falls back to the
// download directory.
func (s *Sink) Save(ctx context.Context, data []byte, suggestedName, mimeType string) (string, error) {
	if s.Picker != nil {
		f, err := s.Picker.Pick(ctx, suggestedName, mimeType)
		switch {
		case err == nil:
			return s.writePicked(f, data)
		case errors.Is(err, ErrCancelled):
			return "", ErrCancelled
		}
		// Picker unavailable or broken: fall through to auto-download.
	}
	return s.autoDownload(data, suggestedName)
}

func (s *Sink) writePicked(f File, data []byte) (string, error) {
	path := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", path, err)
	}
	return path, nil
}

func (s *Sink) autoDownload(data []byte, suggestedName string) (string, error) {
	if err := os.MkdirAll(s.DownloadDir, 0755); err != nil {
		return "", fmt.Errorf("creating download directory: %w", err)
	}

	path := uniquePath(s.DownloadDir, suggestedName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// uniquePath avoids clobbering an existing download by appending a counter
// before the extension, the way browsers name repeated downloads.
func uniquePath(dir, name string) string {
	if name == "" {
		name = "download"
	}
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	ext := filepath.Ext(name)
	stem := name[:len(name)-len(ext)]
	for i := 1; ; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, i, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
