package schema

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackzampolin/reel/internal/defra"
)

// Initialize applies every registered collection to DefraDB and returns how
// many were newly added. Collections that already exist are left alone, so
// it runs on every server start.
func Initialize(ctx context.Context, client *defra.Client, logger *slog.Logger) (int, error) {
	schemas, err := All()
	if err != nil {
		return 0, fmt.Errorf("failed to load schemas: %w", err)
	}

	added := 0
	for _, s := range schemas {
		err := client.AddSchema(ctx, s.SDL)
		switch {
		case err == nil:
			added++
			logger.Info("schema added", "name", s.Name)
		case isAlreadyExistsError(err):
			logger.Debug("schema already exists", "name", s.Name)
		default:
			return added, fmt.Errorf("failed to add schema %s: %w", s.Name, err)
		}
	}
	return added, nil
}

// DefraDB is reached over HTTP, so the only signal is the response body text.
func isAlreadyExistsError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "already exists")
}
