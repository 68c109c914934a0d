package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/botflowhq/botflow/internal/expressions"
	"github.com/botflowhq/botflow/internal/logging"
	"github.com/botflowhq/botflow/internal/registry"
	"github.com/botflowhq/botflow/internal/store"
	"github.com/botflowhq/botflow/internal/streaming"
	"github.com/botflowhq/botflow/pkg/schema"
)

// Pacing defaults. The typing delay paces message emission; the processing
// delay simulates external calls (webhook, redirect, openai, ...); wait nodes
// default to 3 seconds when unconfigured.
const (
	DefaultTypingDelay     = 900 * time.Millisecond
	DefaultProcessingDelay = 600 * time.Millisecond
	DefaultWaitSeconds     = 3.0
)

// maxSteps caps how many nodes a single run may execute, so a jump cycle
// with no suspension point cannot spin forever.
const maxSteps = 1000

// EventAppender persists transcript events and assigns their sequence.
// Satisfied by *store.TranscriptLog and test fakes.
type EventAppender interface {
	AppendEvent(ctx context.Context, event *store.RunEvent) error
}

// Config tunes engine pacing. Zero values fall back to the defaults above.
type Config struct {
	Clock           Clock
	TypingDelay     time.Duration
	ProcessingDelay time.Duration
}

// Engine starts and tracks preview runs. All node execution for a run is
// strictly sequential: at most one timer or suspension is outstanding per run.
type Engine struct {
	registry   *registry.Registry
	appender   EventAppender
	hub        streaming.EventHub
	log        *slog.Logger
	clock      Clock
	typing     time.Duration
	processing time.Duration

	evaluators map[string]expressions.Engine
	scripts    *expressions.ScriptRunner

	mu   sync.Mutex
	runs map[string]*Run
}

// New creates an Engine wired to the given registry, transcript appender and
// event hub.
func New(reg *registry.Registry, appender EventAppender, hub streaming.EventHub, logger *slog.Logger, cfg Config) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cel, err := expressions.NewCELEngine()
	if err != nil {
		return nil, fmt.Errorf("init cel engine: %w", err)
	}
	e := &Engine{
		registry:   reg,
		appender:   appender,
		hub:        hub,
		log:        logger,
		clock:      cfg.Clock,
		typing:     cfg.TypingDelay,
		processing: cfg.ProcessingDelay,
		evaluators: map[string]expressions.Engine{},
		scripts:    expressions.NewScriptRunner(),
		runs:       map[string]*Run{},
	}
	if e.clock == nil {
		e.clock = NewClock()
	}
	if e.typing == 0 {
		e.typing = DefaultTypingDelay
	}
	if e.processing == 0 {
		e.processing = DefaultProcessingDelay
	}
	for _, ev := range []expressions.Engine{expressions.NewExprEngine(), cel, expressions.NewGoJQEngine()} {
		e.evaluators[ev.Name()] = ev
	}
	return e, nil
}

// DemoVariables returns the canned environment a fresh preview run is seeded
// with, so flows referencing contact fields render something plausible.
func DemoVariables() map[string]any {
	return map[string]any{
		"name":  "Ana",
		"phone": "+55 11 91234-5678",
		"email": "ana@example.com",
	}
}

// Begin starts a new preview run over the given flow. The run is refused when
// the flow is empty or does not have exactly one start node. A nil vars map
// seeds the demo environment.
func (e *Engine) Begin(ctx context.Context, flowID string, flow *schema.Flow, vars map[string]any) (*Run, error) {
	if flow == nil || len(flow.Nodes) == 0 {
		return nil, schema.NewError(schema.ErrCodeRunRefused, "flow has no nodes")
	}
	starts := 0
	for _, n := range flow.Nodes {
		if n.Type == schema.NodeStart {
			starts++
		}
	}
	if starts != 1 {
		return nil, schema.NewErrorf(schema.ErrCodeRunRefused,
			"flow must have exactly one start node, found %d", starts)
	}

	// Config gaps never refuse a run; surface them in the log only.
	for _, n := range flow.Nodes {
		res := e.registry.ValidateConfig(n.Type, n.Config)
		for _, w := range res.Warnings() {
			e.log.WarnContext(ctx, "node config warning",
				"flow_id", flowID, "node_id", n.ID, "path", w.Path, "detail", w.Message)
		}
	}

	if vars == nil {
		vars = DemoVariables()
	}
	env := make(map[string]any, len(vars))
	for k, v := range vars {
		env[k] = v
	}

	r := &Run{
		ID:     uuid.NewString(),
		FlowID: flowID,
		engine: e,
		flow:   flow.Clone(),
		status: schema.RunStatusIdle,
		vars:   env,
	}
	// Timer continuations outlive the caller's request context.
	r.ctx = logging.WithRunID(logging.WithFlowID(context.Background(), flowID), r.ID)

	e.mu.Lock()
	e.runs[r.ID] = r
	e.mu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.transition(schema.RunStatusRunning); err != nil {
		return nil, err
	}
	r.record(ctx, "", schema.EventRunStarted, nil)
	r.step(ctx, r.gen, r.flow.StartNode().ID)
	return r, nil
}

// Run returns a tracked run by id.
func (e *Engine) Run(runID string) (*Run, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.runs[runID]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "run %q not found", runID)
	}
	return r, nil
}

// Restart cancels the given run and starts a fresh one over the same flow
// with a newly seeded demo environment.
func (e *Engine) Restart(ctx context.Context, runID string) (*Run, error) {
	r, err := e.Run(runID)
	if err != nil {
		return nil, err
	}
	r.Cancel(ctx)
	return e.Begin(ctx, r.FlowID, r.flow, nil)
}

// Release drops a finished or cancelled run from the tracking table.
func (e *Engine) Release(runID string) {
	e.mu.Lock()
	delete(e.runs, runID)
	e.mu.Unlock()
}
