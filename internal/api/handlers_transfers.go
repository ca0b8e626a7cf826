// handlers_transfers.go - Transfer history handlers
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/caffeinepub/ofs/internal/ledger"
	"github.com/caffeinepub/ofs/internal/models"
)

// MsgpackContentType is the content type of the binary history endpoint.
const MsgpackContentType = "application/msgpack"

// TransferHandlerImpl implements the TransferHandler interface
type TransferHandlerImpl struct {
	ledger *ledger.Ledger
	hub    *Hub
}

// NewTransferHandler creates a new transfer handler instance
func NewTransferHandler(l *ledger.Ledger, hub *Hub) TransferHandler {
	return &TransferHandlerImpl{ledger: l, hub: hub}
}

// HandleRecordTransfer appends a completed transfer to the ledger
func (h *TransferHandlerImpl) HandleRecordTransfer(c echo.Context) error {
	var req recordTransferRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	if err := req.validate(); err != nil {
		return err
	}

	// The receive side reports the uploader as sender; when absent the
	// caller's own identity is recorded.
	sender := req.Sender
	if sender == "" {
		sender = IdentityFrom(c)
	}

	rec := &models.TransferRecord{
		ID:           uuid.NewString(),
		Sender:       sender,
		Receiver:     req.Receiver,
		FileID:       req.FileID,
		FileName:     req.FileName,
		DurationMs:   req.DurationMs,
		Success:      req.Success,
		TransferTime: time.Now().UTC(),
	}

	if err := h.ledger.Append(c.Request().Context(), rec); err != nil {
		return NewInternalError("failed to record transfer", err)
	}

	if h.hub != nil {
		h.hub.BroadcastTransfer(rec)
	}

	return c.JSON(http.StatusCreated, rec)
}

// HandleGetHistory returns the caller's transfer history as JSON
func (h *TransferHandlerImpl) HandleGetHistory(c echo.Context) error {
	records, err := h.history(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, records)
}

// HandleGetHistoryMsgpack returns the caller's transfer history as msgpack,
// for clients that poll frequently and want the smaller payload
func (h *TransferHandlerImpl) HandleGetHistoryMsgpack(c echo.Context) error {
	records, err := h.history(c)
	if err != nil {
		return err
	}

	data, err := msgpack.Marshal(records)
	if err != nil {
		return NewInternalError("failed to encode history", err)
	}
	return c.Blob(http.StatusOK, MsgpackContentType, data)
}

func (h *TransferHandlerImpl) history(c echo.Context) ([]*models.TransferRecord, error) {
	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, NewBadRequestError("limit must be a positive integer", err)
		}
		limit = n
	}

	records, err := h.ledger.History(c.Request().Context(), IdentityFrom(c), limit)
	if err != nil {
		return nil, NewInternalError("failed to query history", err)
	}
	return records, nil
}

// Request/Response types

type recordTransferRequest struct {
	Sender     string `json:"sender"`
	Receiver   string `json:"receiver"`
	FileID     string `json:"fileId"`
	FileName   string `json:"fileName"`
	DurationMs int64  `json:"durationMs"`
	Success    bool   `json:"success"`
}

func (r *recordTransferRequest) validate() error {
	if r.Receiver == "" {
		return NewValidationError("receiver")
	}
	if r.FileID == "" {
		return NewValidationError("fileId")
	}
	if r.FileName == "" {
		return NewValidationError("fileName")
	}
	if r.DurationMs < 0 {
		return NewBadRequestError("durationMs must not be negative", nil)
	}
	return nil
}
