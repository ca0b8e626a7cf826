package models

import "time"

// SessionState is the client-observed lifecycle of a transfer session.
type SessionState string

const (
	SessionStateUnknown     SessionState = "unknown"
	SessionStateActive      SessionState = "active"
	SessionStateExpired     SessionState = "expired"
	SessionStateInvalidated SessionState = "invalidated"
)

// TransferSession is a time-bounded, invalidatable reference from a
// scannable code to an already-uploaded file. Valid starts true and
// transitions to false exactly once, by expiry or explicit invalidation.
type TransferSession struct {
	SessionID string    `json:"sessionId"`
	FileID    string    `json:"fileId"`
	CreatorID string    `json:"creatorId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Valid     bool      `json:"valid"`
}

// StateAt reports the session state as observed at the given instant.
// Expiry wins over explicit invalidation once the deadline has passed,
// since both are terminal and indistinguishable to a receiver.
func (s *TransferSession) StateAt(now time.Time) SessionState {
	if !now.Before(s.ExpiresAt) {
		return SessionStateExpired
	}
	if !s.Valid {
		return SessionStateInvalidated
	}
	return SessionStateActive
}

// ActiveAt reports whether the session authorizes redemption at the given
// instant: still marked valid and not yet past its deadline.
func (s *TransferSession) ActiveAt(now time.Time) bool {
	return s.Valid && now.Before(s.ExpiresAt)
}

// Remaining returns the time left before expiry, clamped at zero.
func (s *TransferSession) Remaining(now time.Time) time.Duration {
	d := s.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
