package engine

import (
	"github.com/botflowhq/botflow/pkg/schema"
)

// ValidRunTransitions defines the allowed lifecycle transitions for a preview run.
var ValidRunTransitions = map[schema.RunStatus][]schema.RunStatus{
	schema.RunStatusIdle:          {schema.RunStatusRunning},
	schema.RunStatusRunning:       {schema.RunStatusAwaitingInput, schema.RunStatusFinished, schema.RunStatusIdle},
	schema.RunStatusAwaitingInput: {schema.RunStatusRunning, schema.RunStatusIdle},
	schema.RunStatusFinished:      {},
}

func isValidRunTransition(from, to schema.RunStatus) bool {
	for _, a := range ValidRunTransitions[from] {
		if a == to {
			return true
		}
	}
	return false
}

// transition validates and applies a run state transition. The caller must
// hold the run's mutex.
func (r *Run) transition(to schema.RunStatus) error {
	if !isValidRunTransition(r.status, to) {
		return schema.NewErrorf(schema.ErrCodeInvalidTransition,
			"invalid run transition: %s -> %s", r.status, to).
			WithDetails(map[string]any{"run_id": r.ID, "from": string(r.status), "to": string(to)})
	}
	r.status = to
	return nil
}
