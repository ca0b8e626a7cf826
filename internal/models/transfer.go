package models

import "time"

// TransferRecord is an append-only audit entry describing one completed
// handoff, produced after either the online or the offline path finishes.
type TransferRecord struct {
	ID           string    `json:"id" msgpack:"id"`
	Sender       string    `json:"sender" msgpack:"sender"`
	Receiver     string    `json:"receiver" msgpack:"receiver"`
	FileID       string    `json:"fileId" msgpack:"fileId"`
	FileName     string    `json:"fileName" msgpack:"fileName"`
	DurationMs   int64     `json:"durationMs" msgpack:"durationMs"`
	Success      bool      `json:"success" msgpack:"success"`
	TransferTime time.Time `json:"transferTime" msgpack:"transferTime"`
}
