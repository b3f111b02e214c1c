package command

import (
	"strings"

	"github.com/goliatone/go-hr-ingest/core"
)

const (
	TypeIngest = "ingest.command.ingest"
)

type IngestMessage struct {
	Request core.IngestRequest
}

func (IngestMessage) Type() string { return TypeIngest }

func (m IngestMessage) Validate() error {
	if strings.TrimSpace(m.Request.ProviderID) == "" {
		return commandValidationError("provider_id", "provider id is required")
	}
	if !m.Request.EntityType.Valid() {
		return commandValidationError("entity_type", "entity type must be TIMESHEET, WORKER or APPLICANT")
	}
	if len(m.Request.RawPayload) == 0 {
		return commandValidationError("raw_payload", "payload is required")
	}
	return nil
}
