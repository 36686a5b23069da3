package ipc

import (
	"easel/internal/batch"
	"easel/internal/engine"
	"easel/internal/events"
	"easel/internal/metrics"
)

// SubmitRequest enqueues a run for the daemon to execute.
type SubmitRequest struct {
	Config engine.RunConfig `json:"config"`
}

// SubmitResponse identifies the queued run.
type SubmitResponse struct {
	ItemID  int64  `json:"item_id"`
	BatchID string `json:"batch_id"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon/run/queue status.
type StatusResponse struct {
	Running     bool           `json:"running"`
	PID         int            `json:"pid"`
	State       string         `json:"state"`
	LastError   string         `json:"last_error"`
	Counters    batch.Counters `json:"counters"`
	QueueStats  map[string]int `json:"queue_stats"`
	QueueDBPath string         `json:"queue_db_path"`
	LockPath    string         `json:"lock_path"`
}

// PauseRequest suspends the active run.
type PauseRequest struct{}

// PauseResponse reports pause outcome.
type PauseResponse struct {
	Paused  bool   `json:"paused"`
	Message string `json:"message"`
}

// ResumeRequest continues a paused run.
type ResumeRequest struct{}

// ResumeResponse reports resume outcome.
type ResumeResponse struct {
	Resumed bool   `json:"resumed"`
	Message string `json:"message"`
}

// CancelRequest cancels a run. A zero ID targets the active run, any
// other value targets that queue item.
type CancelRequest struct {
	ID int64 `json:"id"`
}

// CancelResponse reports cancel outcome.
type CancelResponse struct {
	Cancelled bool   `json:"cancelled"`
	Message   string `json:"message"`
}

// EventsRequest fetches buffered events newer than Since.
type EventsRequest struct {
	Since uint64 `json:"since"`
}

// EventsResponse returns buffered events in sequence order.
type EventsResponse struct {
	Events []events.Event `json:"events"`
}

// MetricsRequest fetches recorded batch metrics.
type MetricsRequest struct{}

// MetricsResponse returns per-batch records plus their rollup.
type MetricsResponse struct {
	Batches []metrics.BatchMetric `json:"batches"`
	Summary metrics.Summary       `json:"summary"`
}

// QueueItem is the wire representation of a queue entry.
type QueueItem struct {
	ID           int64  `json:"id"`
	BatchID      string `json:"batch_id"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// QueueListRequest filters queue listing by status.
type QueueListRequest struct {
	Statuses []string `json:"statuses"`
}

// QueueListResponse contains queue entries.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueRemoveRequest removes specific items by ID.
type QueueRemoveRequest struct {
	IDs []int64 `json:"ids"`
}

// QueueRemoveResponse reports number of removed entries.
type QueueRemoveResponse struct {
	Removed int64 `json:"removed"`
}

// QueueClearRequest removes terminal items, or everything except the
// running item when All is set.
type QueueClearRequest struct {
	All bool `json:"all"`
}

// QueueClearResponse reports number of removed entries.
type QueueClearResponse struct {
	Removed int64 `json:"removed"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// StopRequest stops queue processing.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
