package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/botflowhq/botflow/internal/diagram"
	"github.com/botflowhq/botflow/internal/graph"
	"github.com/botflowhq/botflow/internal/logging"
	"github.com/botflowhq/botflow/internal/store"
	"github.com/botflowhq/botflow/pkg/schema"
)

// flowSummary is one row in the flow listing.
type flowSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UpdatedAt string `json:"updated_at"`
}

func (s *Server) handleListBlocks(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"blocks":  s.deps.Registry.List(),
	})
}

func (s *Server) handleListFlows(w http.ResponseWriter, r *http.Request) {
	records, err := s.deps.Store.ListFlows(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	flows := make([]flowSummary, 0, len(records))
	for _, rec := range records {
		flows = append(flows, flowSummary{
			ID: rec.ID, Name: rec.Name,
			UpdatedAt: rec.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"success": true, "flows": flows})
}

// wireResponse returns the stored node/edge JSON verbatim in the wire shape.
type wireResponse struct {
	Success bool            `json:"success"`
	Name    string          `json:"name,omitempty"`
	Nodes   json.RawMessage `json:"nodes"`
	Edges   json.RawMessage `json:"edges"`
}

func (s *Server) handleGetFlow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.deps.Store.GetFlow(logging.WithFlowID(r.Context(), id), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, wireResponse{
		Success: true, Name: rec.Name, Nodes: rec.Nodes, Edges: rec.Edges,
	})
}

// saveFlowRequest is the inbound wire document plus an optional display name.
type saveFlowRequest struct {
	Name  string            `json:"name,omitempty"`
	Nodes []schema.WireNode `json:"nodes"`
	Edges []schema.WireEdge `json:"edges"`
}

func (s *Server) handleSaveFlow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := logging.WithFlowID(r.Context(), id)

	var req saveFlowRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	doc := &schema.FlowDocument{Nodes: req.Nodes, Edges: req.Edges}
	// NewDocument repairs an empty node list with a synthesized start node,
	// mirroring what the builder does when it opens a blank flow.
	flow := graph.NewDocument(s.deps.Registry, doc.ToFlow()).Flow()

	result := s.deps.Validator.ValidateFlow(flow)
	if !result.Valid() {
		s.respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"success":  false,
			"errors":   result.Errors(),
			"warnings": result.Warnings(),
		})
		return
	}

	stored := schema.NewFlowDocument(flow)
	nodes, err := json.Marshal(stored.Nodes)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	edges, err := json.Marshal(stored.Edges)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := s.deps.Store.SaveFlow(ctx, &store.FlowRecord{
		ID: id, Name: req.Name, Nodes: nodes, Edges: edges,
	}); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"warnings": result.Warnings(),
	})
}

func (s *Server) handleDeleteFlow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.deps.Store.DeleteFlow(logging.WithFlowID(r.Context(), id), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleFlowDiagram renders the stored flow as a Mermaid flowchart.
func (s *Server) handleFlowDiagram(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.deps.Store.GetFlow(logging.WithFlowID(r.Context(), id), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	flow, err := decodeStoredFlow(rec)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(diagram.RenderMermaid(flow, s.deps.Registry, rec.Name)))
}

func decodeStoredFlow(rec *store.FlowRecord) (*schema.Flow, error) {
	doc := &schema.FlowDocument{}
	if err := json.Unmarshal(rec.Nodes, &doc.Nodes); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "decode stored nodes: %s", err.Error()).WithCause(err)
	}
	if err := json.Unmarshal(rec.Edges, &doc.Edges); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "decode stored edges: %s", err.Error()).WithCause(err)
	}
	return doc.ToFlow(), nil
}

// --- preview ---

func (s *Server) handleStartPreview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := logging.WithFlowID(r.Context(), id)

	rec, err := s.deps.Store.GetFlow(ctx, id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	flow, err := decodeStoredFlow(rec)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	run, err := s.deps.Engine.Begin(ctx, id, flow, nil)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"success": true, "run_id": run.ID})
}

func (s *Server) handlePreviewStatus(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run, err := s.deps.Engine.Run(runID)
	if err != nil {
		// Released runs survive in the transcript log. Rebuild the chat
		// history from events so a reconnecting client still sees it.
		messages, replayErr := s.deps.Transcript.Replay(r.Context(), runID)
		if replayErr != nil || len(messages) == 0 {
			s.respondError(w, r, err)
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"run_id":   runID,
			"status":   schema.RunStatusFinished,
			"messages": messages,
		})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"run_id":    run.ID,
		"status":    run.Status(),
		"variables": run.Variables(),
		"messages":  run.Messages(),
		"awaiting":  run.Awaiting(),
	})
}

type submitInputRequest struct {
	Value string `json:"value"`
}

func (s *Server) handleSubmitInput(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run, err := s.deps.Engine.Run(runID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var req submitInputRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := run.SubmitInput(logging.WithRunID(r.Context(), runID), req.Value); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"success": true, "status": run.Status()})
}

func (s *Server) handleRestartPreview(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	fresh, err := s.deps.Engine.Restart(logging.WithRunID(r.Context(), runID), runID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.deps.Engine.Release(runID)
	s.respondJSON(w, http.StatusOK, map[string]any{"success": true, "run_id": fresh.ID})
}

func (s *Server) handleCancelPreview(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run, err := s.deps.Engine.Run(runID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	run.Cancel(logging.WithRunID(r.Context(), runID))
	s.deps.Engine.Release(runID)
	s.respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

// sinceParam parses the ?since= replay cursor, defaulting to 0.
func sinceParam(r *http.Request) int64 {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
