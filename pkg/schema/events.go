package schema

// Event type constants for the run transcript log.
const (
	EventRunStarted   = "run_started"
	EventRunFinished  = "run_finished"
	EventRunCancelled = "run_cancelled"

	EventNodeEntered        = "node_entered"
	EventMessageEmitted     = "message_emitted"
	EventInputRequested     = "input_requested"
	EventInputReceived      = "input_received"
	EventVariableSet        = "variable_set"
	EventConditionEvaluated = "condition_evaluated"
	EventWaitStarted        = "wait_started"
)

// RunStatus represents the lifecycle state of a preview run.
type RunStatus string

const (
	RunStatusIdle          RunStatus = "idle"
	RunStatusRunning       RunStatus = "running"
	RunStatusAwaitingInput RunStatus = "awaiting_input"
	RunStatusFinished      RunStatus = "finished"
)

// MessageRole identifies the author of a transcript message.
type MessageRole string

const (
	RoleBot    MessageRole = "bot"
	RoleUser   MessageRole = "user"
	RoleSystem MessageRole = "system"
)

// Message is one simulated chat message produced during a preview run.
type Message struct {
	Role    MessageRole `json:"role"`
	NodeID  string      `json:"node_id,omitempty"`
	Type    NodeType    `json:"node_type,omitempty"`
	Text    string      `json:"text"`
	Options []string    `json:"options,omitempty"`
}
