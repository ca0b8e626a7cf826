// handlers_sessions.go - Transfer session lifecycle handlers
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/caffeinepub/ofs/internal/locator"
	"github.com/caffeinepub/ofs/internal/models"
	"github.com/caffeinepub/ofs/internal/registry"
)

// SessionHandlerImpl implements the SessionHandler interface
type SessionHandlerImpl struct {
	registry      *registry.Registry
	defaultExpiry time.Duration
	origin        string
}

// NewSessionHandler creates a new session handler instance. origin is the
// public base URL baked into locator links; when empty, links are derived
// from the request's own host.
func NewSessionHandler(reg *registry.Registry, defaultExpiry time.Duration, origin string) SessionHandler {
	return &SessionHandlerImpl{
		registry:      reg,
		defaultExpiry: defaultExpiry,
		origin:        origin,
	}
}

// HandleCreateSession mints a session for an already-uploaded file
func (h *SessionHandlerImpl) HandleCreateSession(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	if err := c.Validate(&req); err != nil {
		return err
	}

	expiry := h.defaultExpiry
	if req.ExpirySeconds > 0 {
		expiry = time.Duration(req.ExpirySeconds) * time.Second
	}

	id, err := h.registry.Create(IdentityFrom(c), req.FileID, expiry)
	if err != nil {
		return NewBadRequestError("failed to create session", err)
	}

	s, err := h.registry.Get(id)
	if err != nil {
		return NewInternalError("failed to read created session", err)
	}

	origin := h.origin
	if origin == "" {
		origin = c.Scheme() + "://" + c.Request().Host
	}

	return c.JSON(http.StatusCreated, createSessionResponse{
		TransferSession: s,
		LocatorURL:      locator.Encode(origin, s.SessionID),
	})
}

// HandleGetSession returns the session record, terminal states included
func (h *SessionHandlerImpl) HandleGetSession(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	s, err := h.registry.Get(id)
	if err != nil {
		return NewSessionNotAvailableError()
	}

	return c.JSON(http.StatusOK, s)
}

// HandleValidateSession reports whether the session authorizes redemption
func (h *SessionHandlerImpl) HandleValidateSession(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	return c.JSON(http.StatusOK, map[string]bool{
		"valid": h.registry.Validate(id),
	})
}

// HandleInvalidateSession permanently invalidates a session. Idempotent.
func (h *SessionHandlerImpl) HandleInvalidateSession(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	h.registry.Invalidate(id)
	return c.NoContent(http.StatusNoContent)
}

// HandleRedeemSession resolves a session into file metadata
func (h *SessionHandlerImpl) HandleRedeemSession(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	md, err := h.registry.Redeem(id)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return NewSessionNotAvailableError()
		}
		return NewInternalError("failed to redeem session", err)
	}

	return c.JSON(http.StatusOK, md)
}

// Request/Response types

type createSessionRequest struct {
	FileID        string `json:"fileId" validate:"required"`
	ExpirySeconds int    `json:"expirySeconds" validate:"gte=0"`
}

// createSessionResponse is the session record plus the ready-to-encode
// locator deep link for it.
type createSessionResponse struct {
	*models.TransferSession
	LocatorURL string `json:"locatorUrl"`
}
