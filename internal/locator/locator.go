// Package locator turns session identifiers into scannable deep-link
// strings and back. Decoding is deliberately permissive: historical codes
// carried the bare session ID with no URL wrapping, and both formats must
// keep working without a version field on the wire.
package locator

import (
	"fmt"
	"net/url"
	"strings"
)

// QueryParam is the single recognized query parameter of a wrapped locator.
const QueryParam = "session"

// Kind tags the outcome of a single parse attempt.
type Kind int

const (
	// KindEmpty means the input held nothing usable.
	KindEmpty Kind = iota
	// KindBare means the input is treated verbatim as a session ID.
	KindBare
	// KindWrapped means the ID was carried inside a deep-link URL.
	KindWrapped
)

// Parsed is the tagged result of classifying raw scanned text.
type Parsed struct {
	Kind      Kind
	SessionID string
}

// Encode wraps a session ID as a deep-link URL under the given origin,
// with the ID percent-encoded in the query string. Pure and deterministic.
func Encode(origin, sessionID string) string {
	return fmt.Sprintf("%s/?%s=%s", strings.TrimRight(origin, "/"), QueryParam, url.QueryEscape(sessionID))
}

// Parse classifies raw scanned text. Whitespace is trimmed first. A string
// that parses as an absolute URL carrying the recognized query parameter is
// Wrapped; any other non-empty string is Bare; only empty input is Empty.
func Parse(raw string) Parsed {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Parsed{Kind: KindEmpty}
	}

	if u, err := url.Parse(trimmed); err == nil && u.Scheme != "" && u.Host != "" {
		if id := u.Query().Get(QueryParam); id != "" {
			return Parsed{Kind: KindWrapped, SessionID: id}
		}
	}

	return Parsed{Kind: KindBare, SessionID: trimmed}
}

// Decode returns the session ID carried by raw text, reporting false only
// for empty input.
func Decode(raw string) (string, bool) {
	p := Parse(raw)
	return p.SessionID, p.Kind != KindEmpty
}
