package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-hr-ingest/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const defaultDeliveryListLimit = 100

// DeliveryStore is the audit log of ingest invocations.
type DeliveryStore struct {
	repo repository.Repository[*deliveryRecord]
}

func NewDeliveryStore(db *bun.DB) (*DeliveryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*deliveryRecord](db, deliveryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid delivery repository wiring: %w", err)
		}
	}
	return &DeliveryStore{repo: repo}, nil
}

func (s *DeliveryStore) Record(ctx context.Context, delivery core.Delivery) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: delivery store is not configured")
	}
	if strings.TrimSpace(delivery.ProviderID) == "" {
		return fmt.Errorf("sqlstore: provider id is required")
	}
	id := strings.TrimSpace(delivery.ID)
	if id == "" {
		id = uuid.NewString()
	}
	receivedAt := delivery.ReceivedAt.UTC()
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}
	record := &deliveryRecord{
		ID:            id,
		ProviderID:    strings.ToLower(strings.TrimSpace(delivery.ProviderID)),
		EntityType:    string(delivery.EntityType),
		EventID:       strings.TrimSpace(delivery.EventID),
		NaturalKey:    delivery.NaturalKey,
		RecordID:      delivery.RecordID,
		Decision:      string(delivery.Decision),
		State:         string(delivery.State),
		StatusCode:    delivery.StatusCode,
		ErrorKind:     string(delivery.ErrorKind),
		ErrorMessage:  delivery.ErrorMessage,
		Attempts:      delivery.Attempts,
		ChangedFields: nonNilStrings(delivery.ChangedFields),
		NotifiedCount: delivery.NotifiedCount,
		FailedTargets: nonNilStrings(delivery.FailedTargets),
		RawPayload:    append([]byte(nil), delivery.RawPayload...),
		ReceivedAt:    receivedAt,
		CreatedAt:     time.Now().UTC(),
	}
	if !delivery.CompletedAt.IsZero() {
		completed := delivery.CompletedAt.UTC()
		record.CompletedAt = &completed
	}
	_, err := s.repo.Create(ctx, record)
	return classifyError(err, "record delivery")
}

// List returns matching deliveries, newest first.
func (s *DeliveryStore) List(ctx context.Context, filter core.ListDeliveriesFilter) ([]core.Delivery, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultDeliveryListLimit
	}
	criteria := []repository.SelectCriteria{}
	if provider := strings.ToLower(strings.TrimSpace(filter.ProviderID)); provider != "" {
		criteria = append(criteria, repository.SelectBy("provider_id", "=", provider))
	}
	if filter.EntityType != "" {
		criteria = append(criteria, repository.SelectBy("entity_type", "=", string(filter.EntityType)))
	}
	if eventID := strings.TrimSpace(filter.EventID); eventID != "" {
		criteria = append(criteria, repository.SelectBy("event_id", "=", eventID))
	}
	criteria = append(criteria,
		repository.OrderBy("received_at DESC"),
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(limit, 0),
	)
	records, _, err := s.repo.List(ctx, criteria...)
	if err != nil {
		return nil, classifyError(err, "list deliveries")
	}
	out := make([]core.Delivery, 0, len(records))
	for _, record := range records {
		out = append(out, deliveryToDomain(record))
	}
	return out, nil
}

func deliveryToDomain(record *deliveryRecord) core.Delivery {
	if record == nil {
		return core.Delivery{}
	}
	delivery := core.Delivery{
		ID:            record.ID,
		ProviderID:    record.ProviderID,
		EntityType:    core.EntityType(record.EntityType),
		EventID:       record.EventID,
		NaturalKey:    record.NaturalKey,
		RecordID:      record.RecordID,
		Decision:      core.DecisionKind(record.Decision),
		State:         core.PipelineState(record.State),
		StatusCode:    record.StatusCode,
		ErrorKind:     core.ErrorKind(record.ErrorKind),
		ErrorMessage:  record.ErrorMessage,
		Attempts:      record.Attempts,
		RawPayload:    append([]byte(nil), record.RawPayload...),
		ReceivedAt:    record.ReceivedAt,
		ChangedFields: nonNilStrings(record.ChangedFields),
		NotifiedCount: record.NotifiedCount,
		FailedTargets: nonNilStrings(record.FailedTargets),
	}
	if record.CompletedAt != nil {
		delivery.CompletedAt = *record.CompletedAt
	}
	return delivery
}

func nonNilStrings(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	return append([]string(nil), in...)
}

