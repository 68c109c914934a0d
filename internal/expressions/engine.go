package expressions

import "context"

// Engine evaluates expressions against a flow run's variable environment.
// Three implementations: Expr (logic), CEL (guards), GoJQ (data extraction).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, vars map[string]any) (any, error)
}
