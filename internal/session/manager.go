// Package session is the client half of the transfer-session lifecycle.
// The backend owns the sessions; this manager keeps a read-through cache,
// drives a local countdown for display, and issues the lifecycle calls.
// The countdown is a display event only: the backend re-checks expiry at
// redemption time, so client clock skew can never grant access.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/caffeinepub/ofs/internal/models"
)

// DefaultExpiry matches the sender dialog default of five minutes.
const DefaultExpiry = 5 * time.Minute

// CountdownInterval is the display tick for the remaining-time readout.
const CountdownInterval = time.Second

// ErrUnauthorized is returned when an operation needs an active identity
// and none is present.
var ErrUnauthorized = errors.New("no active identity")

// ErrNotAvailable is how backends report an absent, expired, or
// invalidated session without distinguishing which.
var ErrNotAvailable = errors.New("session not available")

// Backend is the session surface owned by the server side.
type Backend interface {
	CreateSession(ctx context.Context, fileID string, expiry time.Duration) (string, error)
	GetSession(ctx context.Context, sessionID string) (*models.TransferSession, error)
	ValidateSession(ctx context.Context, sessionID string) (bool, error)
	InvalidateSession(ctx context.Context, sessionID string) error
	// RedeemSession returns (nil, nil) for a session that is not
	// currently redeemable, whatever the reason.
	RedeemSession(ctx context.Context, sessionID string) (*models.FileMetadata, error)
}

// Manager coordinates session calls for one authenticated device.
type Manager struct {
	backend  Backend
	clock    clockwork.Clock
	identity string

	mu    sync.RWMutex
	cache map[string]*models.TransferSession
}

// NewManager creates a session manager. An empty identity is allowed; it
// just makes Create fail with ErrUnauthorized until one is set.
func NewManager(backend Backend, clock clockwork.Clock, identity string) *Manager {
	return &Manager{
		backend:  backend,
		clock:    clock,
		identity: identity,
		cache:    make(map[string]*models.TransferSession),
	}
}

// Create mints a session for an already-uploaded file.
func (m *Manager) Create(ctx context.Context, fileID string, duration time.Duration) (string, error) {
	if m.identity == "" {
		return "", ErrUnauthorized
	}
	if duration <= 0 {
		return "", fmt.Errorf("expiry duration must be positive, got %v", duration)
	}

	sessionID, err := m.backend.CreateSession(ctx, fileID, duration)
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	return sessionID, nil
}

// Get fetches the session record, refreshing the cache. When the backend
// is unreachable a cached copy is served so the countdown keeps rendering.
func (m *Manager) Get(ctx context.Context, sessionID string) (*models.TransferSession, error) {
	s, err := m.backend.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotAvailable) {
			return nil, err
		}
		if cached := m.cached(sessionID); cached != nil {
			return cached, nil
		}
		return nil, fmt.Errorf("fetching session: %w", err)
	}

	m.mu.Lock()
	m.cache[sessionID] = s
	m.mu.Unlock()

	copied := *s
	return &copied, nil
}

// State reports the session lifecycle state as observed right now.
func (m *Manager) State(ctx context.Context, sessionID string) models.SessionState {
	s, err := m.Get(ctx, sessionID)
	if err != nil {
		return models.SessionStateUnknown
	}
	return s.StateAt(m.clock.Now())
}

// Validate reports whether the session still authorizes redemption. The
// check is computed against the session's own timestamps, so local clock
// skew affects display only, never the comparison basis.
func (m *Manager) Validate(ctx context.Context, sessionID string) (bool, error) {
	s, err := m.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotAvailable) {
			return false, nil
		}
		return false, err
	}
	return s.ActiveAt(m.clock.Now()), nil
}

// Invalidate permanently invalidates the session. Calling it again, or on
// an already-terminal session, is a no-op success.
func (m *Manager) Invalidate(ctx context.Context, sessionID string) error {
	if err := m.backend.InvalidateSession(ctx, sessionID); err != nil {
		return fmt.Errorf("invalidating session: %w", err)
	}

	m.mu.Lock()
	if s, ok := m.cache[sessionID]; ok {
		s.Valid = false
	}
	m.mu.Unlock()
	return nil
}

// Redeem resolves the session into file metadata, or nil when the session
// is absent, expired, or invalidated. Callers render a generic "not
// available" state; the reasons are deliberately indistinguishable.
func (m *Manager) Redeem(ctx context.Context, sessionID string) (*models.FileMetadata, error) {
	md, err := m.backend.RedeemSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("redeeming session: %w", err)
	}
	return md, nil
}

// Countdown drives a display ticker until the session reaches a terminal
// state or ctx is cancelled. onTick receives the remaining time each
// interval; onDone fires once with the terminal state. Each tick refreshes
// the record, so invalidation from another device, or consumption of a
// single-redemption session, renders without waiting for local expiry.
// The transition reported here is a display event, never proof of
// server-side state.
func (m *Manager) Countdown(ctx context.Context, sessionID string, onTick func(time.Duration), onDone func(models.SessionState)) error {
	s, err := m.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	ticker := m.clock.NewTicker(CountdownInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			// An unreachable backend serves the cached copy through
			// Get, so the countdown keeps rendering from the last
			// known record.
			if refreshed, err := m.Get(ctx, sessionID); err == nil {
				s = refreshed
			}

			now := m.clock.Now()
			if s.StateAt(now) == models.SessionStateInvalidated {
				onDone(models.SessionStateInvalidated)
				return nil
			}

			remaining := s.Remaining(now)
			onTick(remaining)
			if remaining == 0 {
				onDone(models.SessionStateExpired)
				return nil
			}
		}
	}
}

func (m *Manager) cached(sessionID string) *models.TransferSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.cache[sessionID]; ok {
		copied := *s
		return &copied
	}
	return nil
}
