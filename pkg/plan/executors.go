package plan

import (
	"log/slog"

	"github.com/hookflow/hookflow/pkg/models"
	"github.com/hookflow/hookflow/pkg/nodes"
	"github.com/hookflow/hookflow/pkg/nodes/filter"
	"github.com/hookflow/hookflow/pkg/nodes/httpaction"
)

// Executors returns the closed mapping from executable node kinds to their
// executor instances. Triggers are absent on purpose: their fragment is
// seeded from the webhook payload, never executed.
func Executors(logger *slog.Logger) map[models.NodeKind]nodes.Executor {
	return map[models.NodeKind]nodes.Executor{
		models.NodeKindHTTPAction: httpaction.NewExecutor(logger),
		models.NodeKindFilter:     filter.NewExecutor(logger),
	}
}
