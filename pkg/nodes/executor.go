// Package nodes defines the executor contract implemented by each node
// kind. The plan builder maps node kinds to executor instances; the runner
// drives them sequentially over one execution's context.
package nodes

import (
	"context"

	"github.com/hookflow/hookflow/pkg/models"
)

// Executor runs a single plan node against the accumulated execution
// context. A returned Outcome either continues the chain with an output
// fragment or halts it early; a non-nil error fails the whole run. The
// executor never mutates the context, the runner folds the fragment in.
//
// Trigger nodes have no executor: their fragment is the webhook payload,
// seeded before the chain starts.
type Executor interface {
	Execute(ctx context.Context, node *models.PlanNode, ec models.ExecutionContext) (*models.Outcome, error)
}
