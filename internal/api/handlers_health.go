// handlers_health.go - Service health reporting
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/caffeinepub/ofs/internal/ledger"
	"github.com/caffeinepub/ofs/internal/registry"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version  string
	registry *registry.Registry
	ledger   *ledger.Ledger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, reg *registry.Registry, l *ledger.Ledger) HealthHandler {
	return &HealthHandlerImpl{
		version:  version,
		registry: reg,
		ledger:   l,
	}
}

// HandleHealth reports service status: the tracked session count and
// whether the transfer ledger is reachable. An unreachable ledger
// degrades the status rather than failing the check; handoffs still work
// without history.
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	resp := map[string]interface{}{
		"status":   "ok",
		"version":  h.version,
		"sessions": h.registry.Len(),
		"ledger":   "ok",
	}
	if err := h.ledger.Ping(c.Request().Context()); err != nil {
		resp["status"] = "degraded"
		resp["ledger"] = "unavailable"
	}
	return c.JSON(http.StatusOK, resp)
}
