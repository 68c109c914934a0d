package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/botflowhq/botflow/internal/streaming"
)

// handlePreviewEvents streams a run's transcript over Server-Sent Events.
// Stored events past the ?since= cursor are replayed first, then live events
// from the hub; the sequence numbers let a reconnecting client dedupe.
func (s *Server) handlePreviewEvents(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// Subscribe before replaying so nothing falls between the two.
	ch, cancel, err := s.deps.Hub.Subscribe(r.Context(), streaming.EventFilter{RunID: runID})
	if err != nil {
		s.deps.Logger.Error("SSE subscribe failed", "run_id", runID, "error", err)
		http.Error(w, "subscribe failed", http.StatusInternalServerError)
		return
	}
	defer cancel()

	lastSeq := sinceParam(r)
	stored, err := s.deps.Transcript.GetEvents(r.Context(), runID, lastSeq)
	if err != nil {
		s.deps.Logger.Error("SSE replay failed", "run_id", runID, "error", err)
		http.Error(w, "replay failed", http.StatusInternalServerError)
		return
	}
	for _, e := range stored {
		writeSSE(w, e.Type, streaming.RunEvent{
			RunID: e.RunID, FlowID: e.FlowID, NodeID: e.NodeID,
			EventType: e.Type, Sequence: e.Sequence, Payload: json.RawMessage(e.Payload),
		})
		lastSeq = e.Sequence
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if event.Sequence != 0 && event.Sequence <= lastSeq {
				continue
			}
			writeSSE(w, event.EventType, event)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, eventType string, event streaming.RunEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, data)
}
