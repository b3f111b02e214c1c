package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// keyedModel is a persisted row whose primary key is a uuid string.
type keyedModel interface {
	primaryKey() *string
}

func (r *ingestRecord) primaryKey() *string {
	if r == nil {
		return nil
	}
	return &r.ID
}

func (r *deliveryRecord) primaryKey() *string {
	if r == nil {
		return nil
	}
	return &r.ID
}

func (r *notificationOutcomeRecord) primaryKey() *string {
	if r == nil {
		return nil
	}
	return &r.ID
}

func (r *webhookDeliveryRecord) primaryKey() *string {
	if r == nil {
		return nil
	}
	return &r.ID
}

// modelHandlers builds repository handlers for a uuid-keyed model. Lookups go
// through identifier; a nil identifierValue reads the primary key.
func modelHandlers[T keyedModel](
	newRecord func() T,
	identifier string,
	identifierValue func(T) string,
) repository.ModelHandlers[T] {
	if identifierValue == nil {
		identifierValue = func(record T) string {
			if key := record.primaryKey(); key != nil {
				return strings.TrimSpace(*key)
			}
			return ""
		}
	}
	return repository.ModelHandlers[T]{
		NewRecord: newRecord,
		GetID: func(record T) uuid.UUID {
			if key := record.primaryKey(); key != nil {
				return parseUUID(*key)
			}
			return uuid.Nil
		},
		SetID: func(record T, id uuid.UUID) {
			if key := record.primaryKey(); key != nil {
				*key = id.String()
			}
		},
		GetIdentifier: func() string {
			return identifier
		},
		GetIdentifierValue: identifierValue,
	}
}

func recordHandlers() repository.ModelHandlers[*ingestRecord] {
	return modelHandlers(func() *ingestRecord { return &ingestRecord{} }, "id", nil)
}

func deliveryHandlers() repository.ModelHandlers[*deliveryRecord] {
	return modelHandlers(func() *deliveryRecord { return &deliveryRecord{} }, "id", nil)
}

// Outcomes are looked up by their "event_id:target" idempotency key.
func notificationOutcomeHandlers() repository.ModelHandlers[*notificationOutcomeRecord] {
	return modelHandlers(
		func() *notificationOutcomeRecord { return &notificationOutcomeRecord{} },
		"idempotency_key",
		func(record *notificationOutcomeRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.IdempotencyKey)
		},
	)
}

func webhookDeliveryHandlers() repository.ModelHandlers[*webhookDeliveryRecord] {
	return modelHandlers(func() *webhookDeliveryRecord { return &webhookDeliveryRecord{} }, "id", nil)
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
