package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/botflowhq/botflow/internal/expressions"
	"github.com/botflowhq/botflow/internal/store"
	"github.com/botflowhq/botflow/internal/streaming"
	"github.com/botflowhq/botflow/pkg/schema"
)

// PendingInput describes what a suspended run is waiting for.
type PendingInput struct {
	NodeID   string          `json:"node_id"`
	NodeType schema.NodeType `json:"node_type"`
	Variable string          `json:"variable,omitempty"`
	Options  []string        `json:"options,omitempty"`
}

// Run is one in-flight preview simulation. Node execution is strictly
// sequential: every continuation goes through the run mutex, and at most one
// timer is outstanding. The generation counter invalidates timers scheduled
// before a cancellation, so a late firing is a no-op.
type Run struct {
	ID     string
	FlowID string

	engine *Engine
	flow   *schema.Flow
	ctx    context.Context

	mu       sync.Mutex
	status   schema.RunStatus
	current  string
	vars     map[string]any
	gen      uint64
	steps    int
	timer    Timer
	pending  *PendingInput
	messages []schema.Message
}

// Status returns the run's lifecycle state.
func (r *Run) Status() schema.RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// CurrentNode returns the id of the node the run last entered.
func (r *Run) CurrentNode() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Variables returns a copy of the run's variable environment.
func (r *Run) Variables() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]any, len(r.vars))
	for k, v := range r.vars {
		out[k] = v
	}
	return out
}

// Messages returns a copy of the transcript emitted so far.
func (r *Run) Messages() []schema.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]schema.Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Awaiting returns what the run is suspended on, or nil.
func (r *Run) Awaiting() *PendingInput {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == nil {
		return nil
	}
	p := *r.pending
	return &p
}

// SubmitInput resumes a suspended run with a user-provided value. The value
// is stored verbatim into the pending variable (ratings are parsed as
// numbers) and echoed into the transcript as a user message.
func (r *Run) SubmitInput(ctx context.Context, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != schema.RunStatusAwaitingInput || r.pending == nil {
		return schema.NewErrorf(schema.ErrCodeNotAwaitingInput,
			"run %s is not awaiting input (status %s)", r.ID, r.status)
	}
	p := r.pending
	r.pending = nil

	var stored any = value
	if p.NodeType == schema.NodeRating {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			stored = f
		}
	}
	if p.Variable != "" {
		r.vars[p.Variable] = stored
		r.record(ctx, p.NodeID, schema.EventVariableSet, map[string]any{"variable": p.Variable, "value": stored})
	}

	msg := schema.Message{Role: schema.RoleUser, NodeID: p.NodeID, Text: value}
	r.messages = append(r.messages, msg)
	r.record(ctx, p.NodeID, schema.EventInputReceived, msg)

	if err := r.transition(schema.RunStatusRunning); err != nil {
		return err
	}
	r.advance(r.ctx, r.gen, p.NodeID, 0)
	return nil
}

// Cancel stops the run immediately. Timers scheduled before the cancel are
// invalidated and fire as no-ops. Cancelling a finished or already idle run
// does nothing.
func (r *Run) Cancel(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == schema.RunStatusFinished || r.status == schema.RunStatusIdle {
		return
	}
	r.gen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.pending = nil
	_ = r.transition(schema.RunStatusIdle)
	r.record(ctx, "", schema.EventRunCancelled, nil)
}

// --- execution ---

// step executes one node. The caller must hold r.mu; gen guards against
// continuations that outlived a cancel or restart.
func (r *Run) step(ctx context.Context, gen uint64, nodeID string) {
	if gen != r.gen || r.status != schema.RunStatusRunning {
		return
	}
	node := r.flow.NodeByID(nodeID)
	if node == nil {
		r.finish(ctx)
		return
	}
	r.current = nodeID
	r.steps++
	if r.steps > maxSteps {
		r.engine.log.WarnContext(ctx, "run exceeded step limit", "run_id", r.ID, "node_id", nodeID)
		r.finish(ctx)
		return
	}
	r.record(ctx, nodeID, schema.EventNodeEntered, map[string]any{"node_type": node.Type})

	cfg := node.Config

	switch {
	case node.Type == schema.NodeStart:
		r.advance(ctx, gen, nodeID, 0)

	case node.Type.IsMessage():
		r.schedule(gen, r.engine.typing, func(ctx context.Context) {
			r.emit(ctx, schema.Message{
				Role: schema.RoleBot, NodeID: nodeID, Type: node.Type,
				Text: r.renderMessageBody(node),
			})
			r.advance(ctx, gen, nodeID, 0)
		})

	case node.Type.IsInput(), node.Type == schema.NodeFileUpload:
		r.await(ctx, node, nil)

	case node.Type == schema.NodeButtons, node.Type == schema.NodeWhatsAppButtons, node.Type == schema.NodeWhatsAppList:
		r.await(ctx, node, configStrings(cfg, "options"))

	case node.Type == schema.NodeRating:
		max := int(configFloat(cfg, "max", 5))
		if max < 1 {
			max = 5
		}
		opts := make([]string, max)
		for i := range opts {
			opts[i] = strconv.Itoa(i + 1)
		}
		r.await(ctx, node, opts)

	case node.Type == schema.NodeCondition:
		result := r.evaluateCondition(ctx, cfg)
		r.record(ctx, nodeID, schema.EventConditionEvaluated, map[string]any{
			"variable": configString(cfg, "variable"),
			"operator": configString(cfg, "operator"),
			"value":    configString(cfg, "value"),
			"result":   result,
		})
		r.advance(ctx, gen, nodeID, 0)

	case node.Type == schema.NodeSetVariable:
		name := configString(cfg, "variable")
		raw := configString(cfg, "value")
		if name != "" && raw != "" {
			val := expressions.Substitute(raw, r.vars)
			r.vars[name] = val
			r.record(ctx, nodeID, schema.EventVariableSet, map[string]any{"variable": name, "value": val})
		}
		r.advance(ctx, gen, nodeID, 0)

	case node.Type == schema.NodeCode:
		r.runScript(ctx, node)
		r.advance(ctx, gen, nodeID, 0)

	case node.Type == schema.NodeWait:
		seconds := configFloat(cfg, "seconds", DefaultWaitSeconds)
		if seconds < 0 {
			seconds = DefaultWaitSeconds
		}
		r.record(ctx, nodeID, schema.EventWaitStarted, map[string]any{"seconds": seconds})
		r.advance(ctx, gen, nodeID, time.Duration(seconds*float64(time.Second)))

	case node.Type == schema.NodeJump:
		target := configString(cfg, "target")
		if target != "" && r.flow.NodeByID(target) != nil {
			r.step(ctx, gen, target)
			return
		}
		r.advance(ctx, gen, nodeID, 0)

	case node.Type == schema.NodeTransfer:
		r.emit(ctx, schema.Message{
			Role: schema.RoleBot, NodeID: nodeID, Type: node.Type,
			Text: r.substituteOr(configString(cfg, "message"), "Transferring you to a human agent..."),
		})
		r.finish(ctx)

	case node.Type == schema.NodeEndChat:
		r.emit(ctx, schema.Message{
			Role: schema.RoleBot, NodeID: nodeID, Type: node.Type,
			Text: r.substituteOr(configString(cfg, "message"), "Chat ended. Thank you!"),
		})
		r.finish(ctx)

	case node.Type == schema.NodeEnd:
		r.finish(ctx)

	case isSimulatedCall(node.Type):
		r.schedule(gen, r.engine.processing, func(ctx context.Context) {
			r.simulateCall(ctx, node)
			r.advance(ctx, gen, nodeID, 0)
		})

	default:
		r.emit(ctx, schema.Message{
			Role: schema.RoleSystem, NodeID: nodeID, Type: node.Type,
			Text: fmt.Sprintf("Unsupported block: %s", node.Type),
		})
		r.advance(ctx, gen, nodeID, 0)
	}
}

// advance follows the single outgoing edge, optionally after a delay.
// Finishes the run when the node has no outgoing edge.
func (r *Run) advance(ctx context.Context, gen uint64, nodeID string, delay time.Duration) {
	edge := r.flow.OutgoingEdge(nodeID)
	if edge == nil {
		r.finish(ctx)
		return
	}
	if delay <= 0 {
		r.step(ctx, gen, edge.To)
		return
	}
	r.schedule(gen, delay, func(ctx context.Context) {
		r.step(ctx, gen, edge.To)
	})
}

// schedule arms the run's single outstanding timer. The callback re-acquires
// the mutex and checks the generation before doing anything.
func (r *Run) schedule(gen uint64, d time.Duration, f func(ctx context.Context)) {
	r.timer = r.engine.clock.AfterFunc(d, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if gen != r.gen || r.status != schema.RunStatusRunning {
			return
		}
		r.timer = nil
		f(r.ctx)
	})
}

// await suspends the run on the given node. The node's prompt is emitted as
// a bot message first so the transcript shows what is being asked.
func (r *Run) await(ctx context.Context, node *schema.Node, options []string) {
	prompt := r.substituteOr(configString(node.Config, "message"), inputFallback(node.Type))
	r.emit(ctx, schema.Message{
		Role: schema.RoleBot, NodeID: node.ID, Type: node.Type,
		Text: prompt, Options: options,
	})
	r.pending = &PendingInput{
		NodeID:   node.ID,
		NodeType: node.Type,
		Variable: configString(node.Config, "variable"),
		Options:  options,
	}
	if err := r.transition(schema.RunStatusAwaitingInput); err != nil {
		r.engine.log.ErrorContext(ctx, "suspend failed", "run_id", r.ID, "error", err)
		return
	}
	r.record(ctx, node.ID, schema.EventInputRequested, r.pending)
}

// finish moves the run to its terminal state.
func (r *Run) finish(ctx context.Context) {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if err := r.transition(schema.RunStatusFinished); err != nil {
		return
	}
	r.record(ctx, "", schema.EventRunFinished, nil)
}

// emit appends a message to the transcript.
func (r *Run) emit(ctx context.Context, msg schema.Message) {
	r.messages = append(r.messages, msg)
	r.record(ctx, msg.NodeID, schema.EventMessageEmitted, msg)
}

// record persists a transcript event and fans it out to subscribers. Store
// failures are logged, never propagated; the simulation always continues.
func (r *Run) record(ctx context.Context, nodeID, eventType string, payload any) {
	var raw json.RawMessage
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			raw = b
		}
	}
	ev := &store.RunEvent{RunID: r.ID, FlowID: r.FlowID, NodeID: nodeID, Type: eventType, Payload: raw}
	if err := r.engine.appender.AppendEvent(ctx, ev); err != nil {
		r.engine.log.WarnContext(ctx, "append transcript event failed",
			"run_id", r.ID, "event_type", eventType, "error", err)
	}
	_ = r.engine.hub.Publish(ctx, streaming.RunEvent{
		RunID: r.ID, FlowID: r.FlowID, NodeID: nodeID,
		EventType: eventType, Sequence: ev.Sequence, Payload: payload,
	})
}

// --- node behaviors ---

// renderMessageBody produces the transcript text for a message-producing node.
// Never empty: every type has a fallback so the run always shows progress.
func (r *Run) renderMessageBody(node *schema.Node) string {
	if node.Type == schema.NodeText {
		return r.substituteOr(configString(node.Config, "text"), "...")
	}
	caption := expressions.Substitute(configString(node.Config, "caption"), r.vars)
	url := configString(node.Config, "url")
	body := strings.TrimSpace(strings.TrimSpace(caption) + " " + url)
	if body == "" {
		return "[" + string(node.Type) + "]"
	}
	return body
}

// evaluateCondition implements the operator table, or an expression engine
// when the config carries one. Failures evaluate to false, never abort.
func (r *Run) evaluateCondition(ctx context.Context, cfg map[string]any) bool {
	if expr := configString(cfg, "expression"); expr != "" {
		name := configString(cfg, "engine")
		if name == "" {
			name = "expr"
		}
		ev, ok := r.engine.evaluators[name]
		if !ok {
			r.engine.log.WarnContext(ctx, "unknown condition engine", "engine", name)
			return false
		}
		val, err := ev.Evaluate(ctx, expr, r.vars)
		if err != nil {
			r.engine.log.WarnContext(ctx, "condition expression failed", "engine", name, "error", err)
			return false
		}
		return truthy(val)
	}

	left := varString(r.vars[configString(cfg, "variable")])
	right := configString(cfg, "value")
	op := configString(cfg, "operator")

	lowLeft := strings.ToLower(left)
	lowRight := strings.ToLower(right)

	switch op {
	case "equals":
		return lowLeft == lowRight
	case "not_equals":
		return lowLeft != lowRight
	case "contains":
		return strings.Contains(lowLeft, lowRight)
	case "greater":
		return parseNumber(left) > parseNumber(right)
	case "less":
		return parseNumber(left) < parseNumber(right)
	case "empty":
		return left == ""
	case "not_empty":
		return left != ""
	default:
		return false
	}
}

// runScript executes a code node in the JavaScript sandbox. The result, if
// any, lands in the configured output variable.
func (r *Run) runScript(ctx context.Context, node *schema.Node) {
	script := configString(node.Config, "script")
	if script == "" {
		return
	}
	result, err := r.engine.scripts.Run(ctx, script, r.Variables())
	if err != nil {
		r.engine.log.WarnContext(ctx, "code node script failed", "node_id", node.ID, "error", err)
		return
	}
	if out := configString(node.Config, "variable"); out != "" && result != nil {
		r.vars[out] = result
		r.record(ctx, node.ID, schema.EventVariableSet, map[string]any{"variable": out, "value": result})
	}
}

// simulateCall emits the descriptive system message for integration nodes.
// No real network I/O happens in preview mode.
func (r *Run) simulateCall(ctx context.Context, node *schema.Node) {
	cfg := node.Config
	var text string

	switch node.Type {
	case schema.NodeWebhook:
		text = withDetail("Calling webhook", configString(cfg, "url"), "Calling webhook...")
		if path := configString(cfg, "response_path"); path != "" {
			if out := configString(cfg, "variable"); out != "" {
				r.extractWebhookResponse(ctx, node.ID, path, out)
			}
		}
	case schema.NodeRedirect:
		text = withDetail("Redirecting to", configString(cfg, "url"), "Redirecting...")
	case schema.NodeOpenAI:
		text = "Generating AI response..."
		if out := configString(cfg, "variable"); out != "" {
			r.vars[out] = "This is a simulated AI response."
			r.record(ctx, node.ID, schema.EventVariableSet, map[string]any{"variable": out, "value": r.vars[out]})
		}
	case schema.NodeTypebot:
		text = withDetail("Running Typebot flow", configString(cfg, "typebot_id"), "Running Typebot flow...")
	case schema.NodeGoogleSheets:
		text = withDetail("Appending row to Google Sheets", configString(cfg, "sheet_id"), "Appending row to Google Sheets...")
	case schema.NodeEmailSend:
		text = withDetail("Sending email to", configString(cfg, "to"), "Sending email...")
	case schema.NodeABTest:
		pct := configFloat(cfg, "percentage", 50)
		variant := "B"
		if rand.Float64()*100 < pct {
			variant = "A"
		}
		text = "A/B test: variant " + variant
	}

	r.emit(ctx, schema.Message{Role: schema.RoleSystem, NodeID: node.ID, Type: node.Type, Text: text})
}

// extractWebhookResponse runs the configured jq path against the canned
// preview response and stores the result.
func (r *Run) extractWebhookResponse(ctx context.Context, nodeID, path, out string) {
	response := map[string]any{
		"status": 200,
		"ok":     true,
		"data":   map[string]any{"id": r.ID, "received_at": time.Now().UTC().Format(time.RFC3339)},
	}
	val, err := r.engine.evaluators["jq"].Evaluate(ctx, path, response)
	if err != nil {
		r.engine.log.WarnContext(ctx, "webhook response extraction failed", "node_id", nodeID, "error", err)
		return
	}
	r.vars[out] = val
	r.record(ctx, nodeID, schema.EventVariableSet, map[string]any{"variable": out, "value": val})
}

func (r *Run) substituteOr(text, fallback string) string {
	if strings.TrimSpace(text) == "" {
		return fallback
	}
	return expressions.Substitute(text, r.vars)
}

// --- helpers ---

func isSimulatedCall(t schema.NodeType) bool {
	switch t {
	case schema.NodeWebhook, schema.NodeRedirect, schema.NodeOpenAI,
		schema.NodeTypebot, schema.NodeGoogleSheets, schema.NodeEmailSend, schema.NodeABTest:
		return true
	}
	return false
}

func inputFallback(t schema.NodeType) string {
	switch t {
	case schema.NodeInputNumber:
		return "Type a number..."
	case schema.NodeInputEmail:
		return "Type your email..."
	case schema.NodeInputPhone:
		return "Type your phone number..."
	case schema.NodeInputDate:
		return "Type a date..."
	case schema.NodeButtons, schema.NodeWhatsAppButtons, schema.NodeWhatsAppList:
		return "Choose an option:"
	case schema.NodeRating:
		return "How would you rate us?"
	case schema.NodeFileUpload:
		return "Upload a file..."
	default:
		return "Type your answer..."
	}
}

func configString(cfg map[string]any, key string) string {
	if cfg == nil {
		return ""
	}
	if s, ok := cfg[key].(string); ok {
		return s
	}
	return ""
}

func configFloat(cfg map[string]any, key string, fallback float64) float64 {
	if cfg == nil {
		return fallback
	}
	switch v := cfg[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return fallback
}

func configStrings(cfg map[string]any, key string) []string {
	if cfg == nil {
		return nil
	}
	raw, ok := cfg[key].([]any)
	if !ok {
		if ss, ok := cfg[key].([]string); ok {
			return ss
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func varString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		if val == math.Trunc(val) && !math.IsInf(val, 0) {
			return strconv.FormatFloat(val, 'f', 0, 64)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func parseNumber(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0
	case int:
		return val != 0
	default:
		return true
	}
}

func withDetail(prefix, detail, fallback string) string {
	if strings.TrimSpace(detail) == "" {
		return fallback
	}
	return prefix + " " + detail
}
