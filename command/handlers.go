package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-hr-ingest/core"
)

// IngestCommand runs one event through the ingest service. The response is
// stored in the go-command result collector; a failed response is returned as
// its classified error.
type IngestCommand struct {
	ingester core.Ingester
}

func NewIngestCommand(ingester core.Ingester) *IngestCommand {
	return &IngestCommand{ingester: ingester}
}

func (c *IngestCommand) Execute(ctx context.Context, msg IngestMessage) error {
	if c == nil || c.ingester == nil {
		return commandDependencyError("command: ingester is required")
	}
	response := c.ingester.Ingest(ctx, msg.Request)
	storeResult(ctx, response)
	return response.Err()
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
