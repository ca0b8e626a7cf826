// interfaces.go - Handler interfaces for the API layer
package api

import (
	"github.com/labstack/echo/v4"
)

// HealthHandler reports server liveness
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// FileHandler covers file upload, retrieval and deletion
type FileHandler interface {
	HandleUploadFile(c echo.Context) error
	HandleUploadBase64(c echo.Context) error
	HandleGetRecentFiles(c echo.Context) error
	HandleGetFile(c echo.Context) error
	HandleGetFileContent(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
}

// SessionHandler covers the transfer session lifecycle
type SessionHandler interface {
	HandleCreateSession(c echo.Context) error
	HandleGetSession(c echo.Context) error
	HandleValidateSession(c echo.Context) error
	HandleInvalidateSession(c echo.Context) error
	HandleRedeemSession(c echo.Context) error
}

// TransferHandler covers the transfer history ledger
type TransferHandler interface {
	HandleRecordTransfer(c echo.Context) error
	HandleGetHistory(c echo.Context) error
	HandleGetHistoryMsgpack(c echo.Context) error
}
