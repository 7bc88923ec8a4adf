// Package cmd provides the wiring shared by the hookflow binaries:
// resolving the persistence backend from the database URL and the job
// queue from the provider flag.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hookflow/hookflow/pkg/persistence"
	"github.com/hookflow/hookflow/pkg/persistence/file"
	"github.com/hookflow/hookflow/pkg/persistence/postgresql"
)

// NewPersistence selects the storage backend by URL scheme: postgres://
// and postgresql:// connect to PostgreSQL, anything else is treated as a
// directory for the file backend.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch persistenceProvider(databaseURL) {
	case "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func persistenceProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	switch scheme {
	case "postgres", "postgresql":
		return "postgresql"
	default:
		return "file"
	}
}
