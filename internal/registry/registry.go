// Package registry is the server half of the session lifecycle: it mints
// time-bounded transfer sessions, answers validation queries, and redeems
// sessions into file metadata. The client keeps only a read-through cache;
// every authorization decision is re-checked here.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/caffeinepub/ofs/internal/models"
)

// MaxSessions limits concurrent sessions to prevent memory exhaustion.
const MaxSessions = 1000

// SessionMaxAge is how long terminal sessions linger before cleanup evicts
// them. Keeping them around lets the sender's countdown read terminal state.
const SessionMaxAge = 30 * time.Minute

// ErrNotFound covers every reason a session cannot be used: absent,
// expired, or explicitly invalidated. Receivers are never told which, so
// probing cannot reveal whether a session ever existed.
var ErrNotFound = errors.New("session not available")

// FileSource resolves file IDs to metadata. Satisfied by storage.Store.
type FileSource interface {
	Get(id string) (*models.FileMetadata, error)
}

// Options tune registry behavior.
type Options struct {
	// SingleRedemption makes Redeem consume the session atomically on the
	// first successful fetch, so a second receiver sees "not available".
	// Off, a session stays valid until expiry or explicit invalidation.
	SingleRedemption bool
	// MaxSessions overrides the default capacity cap when positive.
	MaxSessions int
}

// Registry holds active transfer sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*models.TransferSession
	files    FileSource
	clock    clockwork.Clock
	opts     Options
}

// New creates a session registry backed by the given file source.
func New(files FileSource, clock clockwork.Clock, opts Options) *Registry {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = MaxSessions
	}
	return &Registry{
		sessions: make(map[string]*models.TransferSession),
		files:    files,
		clock:    clock,
		opts:     opts,
	}
}

// Create mints a session referencing an already-uploaded file. The
// duration must be positive and the file must exist at creation time.
func (r *Registry) Create(creatorID, fileID string, duration time.Duration) (string, error) {
	if duration <= 0 {
		return "", fmt.Errorf("expiry duration must be positive, got %v", duration)
	}
	if _, err := r.files.Get(fileID); err != nil {
		return "", fmt.Errorf("file %s: %w", fileID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sessions) >= r.opts.MaxSessions {
		r.evictTerminalLocked()
		if len(r.sessions) >= r.opts.MaxSessions {
			return "", fmt.Errorf("session capacity reached (%d)", r.opts.MaxSessions)
		}
	}

	now := r.clock.Now()
	s := &models.TransferSession{
		SessionID: uuid.NewString(),
		FileID:    fileID,
		CreatorID: creatorID,
		CreatedAt: now,
		ExpiresAt: now.Add(duration),
		Valid:     true,
	}
	r.sessions[s.SessionID] = s

	return s.SessionID, nil
}

// Get returns a copy of the session record, including terminal ones, so a
// countdown display can still render expired or invalidated state.
func (r *Registry) Get(sessionID string) (*models.TransferSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *s
	return &copied, nil
}

// Validate reports whether the session currently authorizes redemption.
func (r *Registry) Validate(sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	return ok && s.ActiveAt(r.clock.Now())
}

// Invalidate permanently marks the session invalid. Idempotent: repeat
// calls and calls on unknown sessions succeed as no-ops.
func (r *Registry) Invalidate(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[sessionID]; ok {
		s.Valid = false
	}
}

// Redeem resolves a currently valid session into the referenced file's
// metadata. With single redemption on, the session is consumed atomically
// under the registry lock, so exactly one receiver can win.
func (r *Registry) Redeem(sessionID string) (*models.FileMetadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok || !s.ActiveAt(r.clock.Now()) {
		return nil, ErrNotFound
	}

	md, err := r.files.Get(s.FileID)
	if err != nil {
		// The referenced file vanished; the session can never succeed.
		s.Valid = false
		return nil, ErrNotFound
	}

	if r.opts.SingleRedemption {
		s.Valid = false
	}

	copied := *md
	return &copied, nil
}

// Cleanup evicts sessions whose expiry is further in the past than maxAge
// and returns how many were removed.
func (r *Registry) Cleanup(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	removed := 0
	for id, s := range r.sessions {
		if now.Sub(s.ExpiresAt) > maxAge {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// StartCleanup runs Cleanup on a fixed interval until stop is closed.
func (r *Registry) StartCleanup(stop <-chan struct{}, interval, maxAge time.Duration) {
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			r.Cleanup(maxAge)
		}
	}
}

// Len reports the number of tracked sessions, terminal ones included.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) evictTerminalLocked() {
	now := r.clock.Now()
	for id, s := range r.sessions {
		if !s.ActiveAt(now) {
			delete(r.sessions, id)
		}
	}
}
