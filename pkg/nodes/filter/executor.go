// Package filter provides the conditional gate node executor. It combines
// the node's typed conditions with and/or logic and decides whether the
// chain keeps running or halts as a successful early exit.
package filter

import (
	"context"
	"log/slog"

	"github.com/hookflow/hookflow/pkg/conditions"
	"github.com/hookflow/hookflow/pkg/flowerr"
	"github.com/hookflow/hookflow/pkg/models"
)

// Executor evaluates a filter node against the execution context.
type Executor struct {
	logger *slog.Logger
}

// NewExecutor creates the executor shared by all filter nodes.
func NewExecutor(logger *slog.Logger) *Executor {
	return &Executor{
		logger: logger.With("module", "filter"),
	}
}

// Execute combines the node's conditions left to right with short-circuit
// logic and compares the result against continue_on. A match continues the
// chain with an empty fragment, a mismatch halts it. Evaluation errors
// fail the run; a filter with zero conditions is a configuration error,
// never vacuously true.
func (e *Executor) Execute(ctx context.Context, node *models.PlanNode, ec models.ExecutionContext) (*models.Outcome, error) {
	cfg := node.Filter
	if cfg == nil {
		return nil, flowerr.NewConfigurationError("missing filter configuration")
	}

	if len(cfg.Conditions) == 0 {
		return nil, flowerr.NewConfigurationError("filter has no conditions")
	}

	combined, err := e.combine(cfg, ec)
	if err != nil {
		return nil, err
	}

	e.logger.DebugContext(ctx, "filter evaluated",
		"node_id", node.ID, "result", combined, "continue_on", cfg.ContinueOn)

	if combined == cfg.ContinueOn {
		return models.Continue(map[string]any{}), nil
	}

	return models.Halt(), nil
}

func (e *Executor) combine(cfg *models.FilterConfig, ec models.ExecutionContext) (bool, error) {
	switch cfg.Logic {
	case models.FilterLogicAnd:
		for _, cond := range cfg.Conditions {
			ok, err := conditions.Evaluate(cond, ec)
			if err != nil {
				return false, err
			}

			if !ok {
				return false, nil
			}
		}

		return true, nil
	case models.FilterLogicOr:
		for _, cond := range cfg.Conditions {
			ok, err := conditions.Evaluate(cond, ec)
			if err != nil {
				return false, err
			}

			if ok {
				return true, nil
			}
		}

		return false, nil
	default:
		return false, flowerr.NewConfigurationError("unknown filter logic %q", cfg.Logic)
	}
}
