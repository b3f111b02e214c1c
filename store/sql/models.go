package sqlstore

import (
	"time"

	"github.com/goliatone/go-hr-ingest/core"
	"github.com/uptrace/bun"
)

type ingestRecord struct {
	bun.BaseModel `bun:"table:ingest_records,alias:ir"`

	ID             string                `bun:"id,pk"`
	EntityType     string                `bun:"entity_type,notnull"`
	NaturalKey     string                `bun:"natural_key,notnull"`
	Fields         map[string]core.Value `bun:"fields,type:jsonb,notnull"`
	Fingerprint    string                `bun:"fingerprint,notnull"`
	SourceProvider string                `bun:"source_provider,notnull"`
	SourceEventID  string                `bun:"source_event_id,notnull"`
	Version        int64                 `bun:"version,notnull"`
	CreatedAt      time.Time             `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time             `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type deliveryRecord struct {
	bun.BaseModel `bun:"table:ingest_deliveries,alias:idl"`

	ID            string     `bun:"id,pk"`
	ProviderID    string     `bun:"provider_id,notnull"`
	EntityType    string     `bun:"entity_type,notnull"`
	EventID       string     `bun:"event_id,notnull"`
	NaturalKey    string     `bun:"natural_key,notnull"`
	RecordID      string     `bun:"record_id,notnull"`
	Decision      string     `bun:"decision,notnull"`
	State         string     `bun:"state,notnull"`
	StatusCode    int        `bun:"status_code,notnull"`
	ErrorKind     string     `bun:"error_kind,notnull"`
	ErrorMessage  string     `bun:"error_message,notnull"`
	Attempts      int        `bun:"attempts,notnull"`
	ChangedFields []string   `bun:"changed_fields,type:jsonb,notnull"`
	NotifiedCount int        `bun:"notified_count,notnull"`
	FailedTargets []string   `bun:"failed_targets,type:jsonb,notnull"`
	RawPayload    []byte     `bun:"raw_payload"`
	ReceivedAt    time.Time  `bun:"received_at,notnull"`
	CompletedAt   *time.Time `bun:"completed_at,nullzero"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type notificationOutcomeRecord struct {
	bun.BaseModel `bun:"table:ingest_notification_outcomes,alias:ino"`

	ID             string    `bun:"id,pk"`
	IdempotencyKey string    `bun:"idempotency_key,notnull"`
	EventID        string    `bun:"event_id,notnull"`
	RecordID       string    `bun:"record_id,notnull"`
	Target         string    `bun:"target,notnull"`
	ChangeKind     string    `bun:"change_kind,notnull"`
	Status         string    `bun:"status,notnull"`
	Error          string    `bun:"error,notnull"`
	Attempts       int       `bun:"attempts,notnull"`
	SentAt         time.Time `bun:"sent_at,notnull"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type webhookDeliveryRecord struct {
	bun.BaseModel `bun:"table:ingest_webhook_deliveries,alias:iwd"`

	ID            string     `bun:"id,pk"`
	ClaimID       string     `bun:"claim_id,notnull"`
	ProviderID    string     `bun:"provider_id,notnull"`
	DeliveryID    string     `bun:"delivery_id,notnull"`
	Status        string     `bun:"status,notnull"`
	Attempts      int        `bun:"attempts,notnull"`
	LeaseUntil    *time.Time `bun:"lease_until,nullzero"`
	NextAttemptAt *time.Time `bun:"next_attempt_at,nullzero"`
	LastError     string     `bun:"last_error,notnull"`
	LastErrorKind string     `bun:"last_error_kind,notnull"`
	Payload       []byte     `bun:"payload"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
