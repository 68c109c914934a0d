package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botflowhq/botflow/internal/engine"
	"github.com/botflowhq/botflow/internal/registry"
	"github.com/botflowhq/botflow/internal/store"
	"github.com/botflowhq/botflow/internal/streaming"
	"github.com/botflowhq/botflow/internal/validation"
	"github.com/botflowhq/botflow/pkg/schema"
)

// memStore is an in-memory Store for handler tests.
type memStore struct {
	mu    sync.Mutex
	flows map[string]*store.FlowRecord
	seqs  map[string]int64
	log   []*store.RunEvent
}

func newMemStore() *memStore {
	return &memStore{flows: map[string]*store.FlowRecord{}, seqs: map[string]int64{}}
}

func (m *memStore) SaveFlow(_ context.Context, flow *store.FlowRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *flow
	m.flows[flow.ID] = &cp
	return nil
}

func (m *memStore) GetFlow(_ context.Context, id string) (*store.FlowRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.flows[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "flow %q not found", id)
	}
	cp := *rec
	return &cp, nil
}

func (m *memStore) ListFlows(_ context.Context) ([]*store.FlowRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*store.FlowRecord, 0, len(m.flows))
	for _, rec := range m.flows {
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memStore) DeleteFlow(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.flows[id]; !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "flow %q not found", id)
	}
	delete(m.flows, id)
	return nil
}

func (m *memStore) AppendEvent(_ context.Context, event *store.RunEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seqs[event.RunID]++
	event.Sequence = m.seqs[event.RunID]
	m.log = append(m.log, event)
	return nil
}

func (m *memStore) GetEvents(_ context.Context, runID string, since int64) ([]*store.RunEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.RunEvent
	for _, e := range m.log {
		if e.RunID == runID && e.Sequence > since {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) Replay(ctx context.Context, runID string) ([]schema.Message, error) {
	events, err := m.GetEvents(ctx, runID, 0)
	if err != nil {
		return nil, err
	}
	var messages []schema.Message
	for _, e := range events {
		switch e.Type {
		case schema.EventMessageEmitted, schema.EventInputReceived:
			var msg schema.Message
			if err := json.Unmarshal(e.Payload, &msg); err != nil {
				return nil, err
			}
			messages = append(messages, msg)
		}
	}
	return messages, nil
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }

type apiRig struct {
	server *httptest.Server
	store  *memStore
	engine *engine.Engine
	clock  *manualClock
	client *http.Client
}

// manualClock never fires on its own; handler tests drive it explicitly.
type manualClock struct {
	mu  sync.Mutex
	fns []func()
}

type manualTimer struct{ stop func() bool }

func (t manualTimer) Stop() bool { return t.stop() }

func (c *manualClock) AfterFunc(_ time.Duration, f func()) engine.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := len(c.fns)
	c.fns = append(c.fns, f)
	return manualTimer{stop: func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.fns[idx] == nil {
			return false
		}
		c.fns[idx] = nil
		return true
	}}
}

func (c *manualClock) fireAll() {
	for {
		c.mu.Lock()
		var f func()
		for i, fn := range c.fns {
			if fn != nil {
				f = fn
				c.fns[i] = nil
				break
			}
		}
		c.mu.Unlock()
		if f == nil {
			return
		}
		f()
	}
}

func newAPIRig(t *testing.T) *apiRig {
	t.Helper()
	reg := registry.New()
	st := newMemStore()
	clock := &manualClock{}
	hub := streaming.NewMemoryHub()
	eng, err := engine.New(reg, st, hub, slog.New(slog.DiscardHandler), engine.Config{Clock: clock})
	require.NoError(t, err)

	srv := NewServer(Deps{
		Store:      st,
		Transcript: st,
		Engine:     eng,
		Hub:        hub,
		Registry:   reg,
		Validator:  validation.NewValidator(reg),
		Logger:     slog.New(slog.DiscardHandler),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &apiRig{server: ts, store: st, engine: eng, clock: clock, client: ts.Client()}
}

func (rig *apiRig) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, rig.server.URL+path, &buf)
	require.NoError(t, err)
	resp, err := rig.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func validFlowBody() map[string]any {
	return map[string]any{
		"name": "Greeting",
		"nodes": []map[string]any{
			{"id": "n1", "type": "start", "pos_x": 100, "pos_y": 50},
			{"id": "n2", "type": "text", "pos_x": 100, "pos_y": 250,
				"config": map[string]any{"text": "Hello {{name}}"}},
		},
		"edges": []map[string]any{
			{"id": "e1", "from_node_id": "n1", "to_node_id": "n2"},
		},
	}
}

func TestSaveAndGetFlow(t *testing.T) {
	rig := newAPIRig(t)

	resp, body := rig.do(t, http.MethodPut, "/api/flows/flow-1", validFlowBody())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	resp, body = rig.do(t, http.MethodGet, "/api/flows/flow-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	nodes, ok := body["nodes"].([]any)
	require.True(t, ok)
	assert.Len(t, nodes, 2)
}

func TestSaveFlowAcceptsStringEncodedConfig(t *testing.T) {
	rig := newAPIRig(t)

	payload := validFlowBody()
	payload["nodes"].([]map[string]any)[1]["config"] = `{"text":"from string"}`

	resp, _ := rig.do(t, http.MethodPut, "/api/flows/flow-1", payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, body := rig.do(t, http.MethodGet, "/api/flows/flow-1", nil)
	raw, err := json.Marshal(body["nodes"])
	require.NoError(t, err)
	assert.Contains(t, string(raw), "from string")
}

func TestSaveFlowRejectsStructuralErrors(t *testing.T) {
	rig := newAPIRig(t)

	payload := validFlowBody()
	payload["edges"] = []map[string]any{
		{"id": "e1", "from_node_id": "n1", "to_node_id": "ghost"},
	}

	resp, body := rig.do(t, http.MethodPut, "/api/flows/flow-1", payload)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["errors"])
}

func TestSaveEmptyFlowSynthesizesStart(t *testing.T) {
	rig := newAPIRig(t)

	resp, _ := rig.do(t, http.MethodPut, "/api/flows/flow-1",
		map[string]any{"nodes": []any{}, "edges": []any{}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, body := rig.do(t, http.MethodGet, "/api/flows/flow-1", nil)
	nodes := body["nodes"].([]any)
	require.Len(t, nodes, 1)
	node := nodes[0].(map[string]any)
	assert.Equal(t, "start", node["type"])
}

func TestGetMissingFlow(t *testing.T) {
	rig := newAPIRig(t)

	resp, body := rig.do(t, http.MethodGet, "/api/flows/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, false, body["success"])
}

func TestListBlocks(t *testing.T) {
	rig := newAPIRig(t)

	resp, body := rig.do(t, http.MethodGet, "/api/blocks", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	blocks := body["blocks"].([]any)
	assert.Len(t, blocks, len(schema.AllNodeTypes))
}

func TestPreviewLifecycle(t *testing.T) {
	rig := newAPIRig(t)

	resp, _ := rig.do(t, http.MethodPut, "/api/flows/flow-1", validFlowBody())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := rig.do(t, http.MethodPost, "/api/flows/flow-1/preview", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	runID, ok := body["run_id"].(string)
	require.True(t, ok)

	rig.clock.fireAll()

	resp, body = rig.do(t, http.MethodGet, "/api/preview/"+runID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(schema.RunStatusFinished), body["status"])

	messages := body["messages"].([]any)
	require.Len(t, messages, 1)
	assert.Equal(t, "Hello Ana", messages[0].(map[string]any)["text"])
}

func TestPreviewStatusReplaysReleasedRun(t *testing.T) {
	rig := newAPIRig(t)

	resp, _ := rig.do(t, http.MethodPut, "/api/flows/flow-1", validFlowBody())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, body := rig.do(t, http.MethodPost, "/api/flows/flow-1/preview", nil)
	runID := body["run_id"].(string)
	rig.clock.fireAll()

	// Cancel on a finished run is a no-op but still drops it from memory.
	resp, _ = rig.do(t, http.MethodDelete, "/api/preview/"+runID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = rig.do(t, http.MethodGet, "/api/preview/"+runID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(schema.RunStatusFinished), body["status"])
	messages := body["messages"].([]any)
	require.Len(t, messages, 1)
	assert.Equal(t, "Hello Ana", messages[0].(map[string]any)["text"])
}

func TestPreviewInputFlow(t *testing.T) {
	rig := newAPIRig(t)

	payload := map[string]any{
		"nodes": []map[string]any{
			{"id": "n1", "type": "start"},
			{"id": "n2", "type": "input_text",
				"config": map[string]any{"message": "Name?", "variable": "answer"}},
		},
		"edges": []map[string]any{
			{"id": "e1", "from_node_id": "n1", "to_node_id": "n2"},
		},
	}
	resp, _ := rig.do(t, http.MethodPut, "/api/flows/flow-1", payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, body := rig.do(t, http.MethodPost, "/api/flows/flow-1/preview", nil)
	runID := body["run_id"].(string)

	resp, body = rig.do(t, http.MethodGet, "/api/preview/"+runID, nil)
	assert.Equal(t, string(schema.RunStatusAwaitingInput), body["status"])

	resp, body = rig.do(t, http.MethodPost, fmt.Sprintf("/api/preview/%s/input", runID),
		map[string]any{"value": "Bruno"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	// Submitting again now that nothing is awaited conflicts.
	resp, body = rig.do(t, http.MethodPost, fmt.Sprintf("/api/preview/%s/input", runID),
		map[string]any{"value": "again"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, schema.ErrCodeNotAwaitingInput, errObj["code"])
}

func TestPreviewCancelReleasesRun(t *testing.T) {
	rig := newAPIRig(t)

	resp, _ := rig.do(t, http.MethodPut, "/api/flows/flow-1", validFlowBody())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, body := rig.do(t, http.MethodPost, "/api/flows/flow-1/preview", nil)
	runID := body["run_id"].(string)

	resp, _ = rig.do(t, http.MethodDelete, "/api/preview/"+runID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = rig.do(t, http.MethodGet, "/api/preview/"+runID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPreviewRestartIssuesNewRun(t *testing.T) {
	rig := newAPIRig(t)

	resp, _ := rig.do(t, http.MethodPut, "/api/flows/flow-1", validFlowBody())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, body := rig.do(t, http.MethodPost, "/api/flows/flow-1/preview", nil)
	oldID := body["run_id"].(string)

	resp, body = rig.do(t, http.MethodPost, fmt.Sprintf("/api/preview/%s/restart", oldID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	newID := body["run_id"].(string)
	assert.NotEqual(t, oldID, newID)

	resp, _ = rig.do(t, http.MethodGet, "/api/preview/"+newID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFlowDiagram(t *testing.T) {
	rig := newAPIRig(t)

	resp, _ := rig.do(t, http.MethodPut, "/api/flows/flow-1", validFlowBody())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, rig.server.URL+"/api/flows/flow-1/diagram", nil)
	require.NoError(t, err)
	raw, err := rig.client.Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	require.Equal(t, http.StatusOK, raw.StatusCode)

	var buf bytes.Buffer
	_, err = buf.ReadFrom(raw.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "graph TD")
	assert.Contains(t, buf.String(), "n1 --> n2")
}

func TestPreviewRefusedOnEmptyFlow(t *testing.T) {
	rig := newAPIRig(t)

	// Stored record with no nodes at all (legacy row, bypasses save repair).
	require.NoError(t, rig.store.SaveFlow(context.Background(), &store.FlowRecord{
		ID: "flow-1", Nodes: json.RawMessage(`[]`), Edges: json.RawMessage(`[]`),
	}))

	resp, body := rig.do(t, http.MethodPost, "/api/flows/flow-1/preview", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, schema.ErrCodeRunRefused, errObj["code"])
}
