package api

import (
	"time"

	"github.com/google/uuid"
)

// BlockRequest pauses task admission. A zero duration blocks until an
// explicit unblock.
type BlockRequest struct {
	DurationMS int64 `json:"duration_ms" validate:"gte=0,lte=86400000"`
}

// Duration converts DurationMS to a time.Duration.
func (r BlockRequest) Duration() time.Duration {
	return time.Duration(r.DurationMS) * time.Millisecond
}

// BlockResponse reports the gate after a block or unblock request.
type BlockResponse struct {
	Blocked      bool       `json:"blocked"`
	BlockedUntil *time.Time `json:"blocked_until,omitempty"`
}

// StatusResponse summarises the queue.
type StatusResponse struct {
	Total        int        `json:"total"`
	Queued       int        `json:"queued"`
	Pending      int        `json:"pending"`
	Complete     int        `json:"complete"`
	Failed       int        `json:"failed"`
	Running      bool       `json:"running"`
	Blocked      bool       `json:"blocked"`
	BlockedUntil *time.Time `json:"blocked_until,omitempty"`
}

// TaskResponse describes one task.
type TaskResponse struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name,omitempty"`
	State    string    `json:"state"`
	Attempts int       `json:"attempts"`
	Error    string    `json:"error,omitempty"`
}

// TaskListResponse lists tasks, optionally filtered by state.
type TaskListResponse struct {
	State string         `json:"state,omitempty"`
	Count int            `json:"count"`
	Tasks []TaskResponse `json:"tasks"`
}

// JournalResponse describes the result journal.
type JournalResponse struct {
	Name      string     `json:"name"`
	Records   int64      `json:"records"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}
