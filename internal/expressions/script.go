package expressions

import (
	"context"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/botflowhq/botflow/pkg/schema"
)

// scriptTimeout bounds a single code-node evaluation. Preview scripts are
// author-written snippets; a runaway loop must not wedge the editor.
const scriptTimeout = 2 * time.Second

// ScriptRunner executes the JavaScript snippets configured on code nodes in a
// sandboxed goja runtime. Flow variables are exposed both as individual
// globals and as a `vars` object; the script's completion value is the result.
type ScriptRunner struct {
	mu sync.Mutex
}

// NewScriptRunner creates a new ScriptRunner.
func NewScriptRunner() *ScriptRunner {
	return &ScriptRunner{}
}

// Run evaluates script with the given variables in scope and returns the
// completion value converted to a Go value. The runtime is created fresh per
// call so scripts cannot leak state between nodes or runs.
func (r *ScriptRunner) Run(ctx context.Context, script string, vars map[string]any) (any, error) {
	if script == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty script")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	vm := goja.New()
	for name, val := range vars {
		if err := vm.Set(name, val); err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeExecution,
				"bind variable %q: %s", name, err.Error()).WithCause(err)
		}
	}
	if err := vm.Set("vars", vars); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution,
			"bind vars object: %s", err.Error()).WithCause(err)
	}

	timer := time.AfterFunc(scriptTimeout, func() {
		vm.Interrupt("script timeout")
	})
	defer timer.Stop()

	val, err := vm.RunString(script)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution,
			"script evaluation failed: %s", err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"script": script})
	}
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil, nil
	}
	return val.Export(), nil
}
