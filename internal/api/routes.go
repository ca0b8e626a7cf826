// routes.go - Route registration helpers
package api

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/caffeinepub/ofs/internal/filesize"
	"github.com/caffeinepub/ofs/internal/ledger"
	"github.com/caffeinepub/ofs/internal/registry"
	"github.com/caffeinepub/ofs/internal/storage"
)

// Dependencies holds all handler dependencies. Limits is the upload size
// policy; Origin is the public base URL for locator links, empty to derive
// it per request.
type Dependencies struct {
	Store         storage.Store
	Registry      *registry.Registry
	Ledger        *ledger.Ledger
	Hub           *Hub
	DefaultExpiry time.Duration
	Limits        filesize.Policy
	Origin        string
	Auth          AuthConfig
	Version       string
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Files     FileHandler
	Sessions  SessionHandler
	Transfers TransferHandler
	Hub       *Hub

	auth AuthConfig
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	hub := deps.Hub
	if hub == nil {
		hub = NewHub()
	}
	return &Handlers{
		Health:    NewHealthHandler(deps.Version, deps.Registry, deps.Ledger),
		Files:     NewFileHandler(deps.Store, deps.Limits),
		Sessions:  NewSessionHandler(deps.Registry, deps.DefaultExpiry, deps.Origin),
		Transfers: NewTransferHandler(deps.Ledger, hub),
		Hub:       hub,
		auth:      deps.Auth,
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	e.HTTPErrorHandler = ErrorHandler
	e.Validator = NewRequestValidator()

	// Health check
	e.GET("/api/health", handlers.Health.HandleHealth)

	identity := Identity(handlers.auth)

	// File routes
	fileGroup := e.Group("/api/files", identity)
	fileGroup.POST("/upload", handlers.Files.HandleUploadFile)
	fileGroup.POST("/upload/base64", handlers.Files.HandleUploadBase64)
	fileGroup.GET("/recent", handlers.Files.HandleGetRecentFiles)
	fileGroup.GET("/:id", handlers.Files.HandleGetFile)
	fileGroup.GET("/:id/content", handlers.Files.HandleGetFileContent)
	fileGroup.DELETE("/:id", handlers.Files.HandleDeleteFile)

	// Session lifecycle routes
	sessionGroup := e.Group("/api/sessions", identity)
	sessionGroup.POST("", handlers.Sessions.HandleCreateSession)
	sessionGroup.GET("/:id", handlers.Sessions.HandleGetSession)
	sessionGroup.GET("/:id/validate", handlers.Sessions.HandleValidateSession)
	sessionGroup.POST("/:id/invalidate", handlers.Sessions.HandleInvalidateSession)
	sessionGroup.POST("/:id/redeem", handlers.Sessions.HandleRedeemSession)

	// Transfer history routes
	transferGroup := e.Group("/api/transfers", identity)
	transferGroup.POST("", handlers.Transfers.HandleRecordTransfer)
	transferGroup.GET("/history", handlers.Transfers.HandleGetHistory)
	transferGroup.GET("/history/msgpack", handlers.Transfers.HandleGetHistoryMsgpack)

	// Live transfer feed
	e.GET("/api/ws/transfers", handlers.Hub.HandleWebSocket)
}
