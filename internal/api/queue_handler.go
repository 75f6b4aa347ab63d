package api

import (
	"context"
	"net/http"
	"time"

	"github.com/phrazzld/throttleq/internal/api/shared"
	"github.com/phrazzld/throttleq/internal/platform/logger"
	"github.com/phrazzld/throttleq/internal/redact"
	"github.com/phrazzld/throttleq/internal/store"
	"github.com/phrazzld/throttleq/internal/task"
)

// QueueController is the part of the task queue the admin API drives.
type QueueController interface {
	Total() int
	NumberQueued() int
	NumberPending() int
	NumberComplete() int
	NumberFailed() int
	IsRunning() bool
	Handles(state task.State) []*task.Handle
	BlockQueue(d time.Duration) <-chan struct{}
	UnblockQueue() error
	BlockStatus() (bool, time.Time)
}

// JournalInspector reports on the result journal.
type JournalInspector interface {
	Stats(ctx context.Context) (store.JournalStats, error)
}

var _ QueueController = (*task.TaskQueue)(nil)

// QueueHandler serves the queue admin endpoints.
type QueueHandler struct {
	queue   QueueController
	journal JournalInspector
}

// NewQueueHandler creates a handler for queue. journal may be nil, in which
// case the journal endpoint answers 404.
func NewQueueHandler(queue QueueController, journal JournalInspector) *QueueHandler {
	return &QueueHandler{queue: queue, journal: journal}
}

// Status handles GET /api/queue/status.
func (h *QueueHandler) Status(w http.ResponseWriter, r *http.Request) {
	blocked, until := h.queue.BlockStatus()
	shared.RespondWithJSON(w, r, http.StatusOK, StatusResponse{
		Total:        h.queue.Total(),
		Queued:       h.queue.NumberQueued(),
		Pending:      h.queue.NumberPending(),
		Complete:     h.queue.NumberComplete(),
		Failed:       h.queue.NumberFailed(),
		Running:      h.queue.IsRunning(),
		Blocked:      blocked,
		BlockedUntil: timePtr(until),
	})
}

// Block handles POST /api/queue/block.
func (h *QueueHandler) Block(w http.ResponseWriter, r *http.Request) {
	var req BlockRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	h.queue.BlockQueue(req.Duration())

	log := logger.FromContext(r.Context())
	operator, _ := shared.GetOperator(r.Context())
	log.Info("queue blocked by operator",
		"operator", operator,
		"duration", req.Duration())

	blocked, until := h.queue.BlockStatus()
	shared.RespondWithJSON(w, r, http.StatusOK, BlockResponse{
		Blocked:      blocked,
		BlockedUntil: timePtr(until),
	})
}

// Unblock handles POST /api/queue/unblock.
func (h *QueueHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	if err := h.queue.UnblockQueue(); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	operator, _ := shared.GetOperator(r.Context())
	logger.FromContext(r.Context()).Info("queue unblocked by operator", "operator", operator)

	shared.RespondWithJSON(w, r, http.StatusOK, BlockResponse{Blocked: false})
}

// Tasks handles GET /api/queue/tasks?state=queued|pending|complete|failed.
func (h *QueueHandler) Tasks(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("state")
	state, ok := task.ParseState(raw)
	if !ok {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid state filter")
		return
	}

	handles := h.queue.Handles(state)
	resp := TaskListResponse{
		State: raw,
		Count: len(handles),
		Tasks: make([]TaskResponse, 0, len(handles)),
	}
	for _, handle := range handles {
		resp.Tasks = append(resp.Tasks, taskResponse(handle))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// Journal handles GET /api/queue/journal.
func (h *QueueHandler) Journal(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusNotFound, GetSafeErrorMessage(errJournalDisabled), errJournalDisabled)
		return
	}

	stats, err := h.journal.Stats(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, JournalResponse{
		Name:      stats.Name,
		Records:   stats.Records,
		UpdatedAt: timePtr(stats.UpdatedAt),
	})
}

func taskResponse(h *task.Handle) TaskResponse {
	resp := TaskResponse{
		ID:       h.ID(),
		Name:     h.Name(),
		State:    string(h.State()),
		Attempts: h.Attempts(),
	}
	if h.State() == task.StateFailed {
		if _, err := h.Result(); err != nil {
			resp.Error = redact.Error(err)
		}
	}
	return resp
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
