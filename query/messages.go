package query

import (
	"strings"

	"github.com/goliatone/go-hr-ingest/core"
)

const (
	TypeGetRecord      = "ingest.query.record.get"
	TypeListDeliveries = "ingest.query.delivery.list"
)

type GetRecordMessage struct {
	RecordID string
}

func (GetRecordMessage) Type() string { return TypeGetRecord }

func (m GetRecordMessage) Validate() error {
	if strings.TrimSpace(m.RecordID) == "" {
		return queryValidationError("record_id", "record id is required")
	}
	return nil
}

type ListDeliveriesMessage struct {
	Filter core.ListDeliveriesFilter
}

func (ListDeliveriesMessage) Type() string { return TypeListDeliveries }

func (m ListDeliveriesMessage) Validate() error {
	if m.Filter.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	if m.Filter.EntityType != "" && !m.Filter.EntityType.Valid() {
		return queryValidationError("entity_type", "entity type must be TIMESHEET, WORKER or APPLICANT")
	}
	return nil
}
