package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/convictionhq/conviction/internal/domain"
	"github.com/convictionhq/conviction/internal/events"
	"github.com/convictionhq/conviction/internal/jobs"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const heartbeatInterval = 15 * time.Second

type EventsHandler struct {
	queue *jobs.Queue
	bus   *events.Bus
}

func NewEventsHandler(queue *jobs.Queue, bus *events.Bus) *EventsHandler {
	return &EventsHandler{queue: queue, bus: bus}
}

// Stream serves the job's progress feed as server-sent events. The
// stream opens with a snapshot of the job's current state, then relays
// bus events until a terminal event closes it. A job that already
// finished gets the snapshot and an immediate close.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Subscribe before the snapshot read so no event falls between them.
	sub := h.bus.Subscribe(id)
	defer sub.Close()

	job, err := h.queue.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeSSE(w, snapshotEvent(job))
	flusher.Flush()
	if job.Status.Terminal() {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case evt, open := <-sub.Events:
			if !open {
				return
			}
			writeSSE(w, evt)
			flusher.Flush()
			if evt.Type.Terminal() {
				return
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, evt domain.Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, payload)
}

// snapshotEvent renders the job's persisted state as the stream's
// opening event, so late subscribers see where the run stands.
func snapshotEvent(job *domain.ResearchJob) domain.Event {
	data := map[string]any{
		"kind":     "snapshot",
		"status":   string(job.Status),
		"progress": job.Progress,
	}
	if job.ErrorMessage != "" {
		data["error"] = job.ErrorMessage
	}
	if job.ConfidenceScore != nil {
		data["confidence_score"] = *job.ConfidenceScore
	}
	return domain.Event{
		Type:      domain.EventStatusUpdate,
		JobID:     job.ID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}
