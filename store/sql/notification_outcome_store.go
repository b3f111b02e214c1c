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

const (
	NotificationStatusSent   = "sent"
	NotificationStatusFailed = "failed"
)

// NotificationOutcomeStore keeps the latest outcome per (event id, target).
// Repeated outcomes for the same key update the row and bump attempts.
type NotificationOutcomeStore struct {
	db   *bun.DB
	repo repository.Repository[*notificationOutcomeRecord]
}

type NotificationOutcome struct {
	IdempotencyKey string
	EventID        string
	RecordID       string
	Target         string
	ChangeKind     core.ChangeKind
	Status         string
	Error          string
	Attempts       int
	SentAt         time.Time
}

func NewNotificationOutcomeStore(db *bun.DB) (*NotificationOutcomeStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*notificationOutcomeRecord](db, notificationOutcomeHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid notification outcome repository wiring: %w", err)
		}
	}
	return &NotificationOutcomeStore{db: db, repo: repo}, nil
}

func (s *NotificationOutcomeStore) RecordOutcome(ctx context.Context, input core.NotificationRecord) error {
	if s == nil || s.repo == nil || s.db == nil {
		return fmt.Errorf("sqlstore: notification outcome store is not configured")
	}
	if strings.TrimSpace(input.EventID) == "" {
		return fmt.Errorf("sqlstore: event id is required")
	}
	if strings.TrimSpace(input.Target) == "" {
		return fmt.Errorf("sqlstore: target is required")
	}
	status := NotificationStatusSent
	if !input.Success {
		status = NotificationStatusFailed
	}
	sentAt := input.SentAt.UTC()
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}
	key := core.NotificationIdempotencyKey(input.EventID, input.Target)
	record := &notificationOutcomeRecord{
		ID:             uuid.NewString(),
		IdempotencyKey: key,
		EventID:        strings.TrimSpace(input.EventID),
		RecordID:       strings.TrimSpace(input.RecordID),
		Target:         strings.TrimSpace(input.Target),
		ChangeKind:     string(input.ChangeKind),
		Status:         status,
		Error:          strings.TrimSpace(input.Error),
		Attempts:       1,
		SentAt:         sentAt,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	_, err := s.repo.Create(ctx, record)
	if err == nil {
		return nil
	}
	if !isUniqueViolation(err) {
		return classifyError(err, "record notification outcome")
	}
	_, err = s.db.NewUpdate().
		Model((*notificationOutcomeRecord)(nil)).
		Set("record_id = ?", record.RecordID).
		Set("change_kind = ?", record.ChangeKind).
		Set("status = ?", record.Status).
		Set("error = ?", record.Error).
		Set("attempts = attempts + 1").
		Set("sent_at = ?", record.SentAt).
		Set("updated_at = ?", time.Now().UTC()).
		Where("idempotency_key = ?", key).
		Exec(ctx)
	return classifyError(err, "update notification outcome")
}

// Get returns the outcome stored for an event id and target.
func (s *NotificationOutcomeStore) Get(ctx context.Context, eventID string, target string) (NotificationOutcome, bool, error) {
	if s == nil || s.repo == nil {
		return NotificationOutcome{}, false, fmt.Errorf("sqlstore: notification outcome store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("idempotency_key", "=", core.NotificationIdempotencyKey(eventID, target)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return NotificationOutcome{}, false, classifyError(err, "get notification outcome")
	}
	if len(records) == 0 {
		return NotificationOutcome{}, false, nil
	}
	return outcomeToDomain(records[0]), true, nil
}

// Delivered reports whether a target already acknowledged an event.
func (s *NotificationOutcomeStore) Delivered(ctx context.Context, eventID string, target string) (bool, error) {
	outcome, found, err := s.Get(ctx, eventID, target)
	if err != nil || !found {
		return false, err
	}
	return outcome.Status == NotificationStatusSent, nil
}

// ListByEvent returns the outcomes of one event ordered by target.
func (s *NotificationOutcomeStore) ListByEvent(ctx context.Context, eventID string) ([]NotificationOutcome, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: notification outcome store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("event_id", "=", strings.TrimSpace(eventID)),
		repository.OrderBy("target ASC"),
	)
	if err != nil {
		return nil, classifyError(err, "list notification outcomes")
	}
	out := make([]NotificationOutcome, 0, len(records))
	for _, record := range records {
		out = append(out, outcomeToDomain(record))
	}
	return out, nil
}

func outcomeToDomain(record *notificationOutcomeRecord) NotificationOutcome {
	if record == nil {
		return NotificationOutcome{}
	}
	return NotificationOutcome{
		IdempotencyKey: record.IdempotencyKey,
		EventID:        record.EventID,
		RecordID:       record.RecordID,
		Target:         record.Target,
		ChangeKind:     core.ChangeKind(record.ChangeKind),
		Status:         record.Status,
		Error:          record.Error,
		Attempts:       record.Attempts,
		SentAt:         record.SentAt,
	}
}

