package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-hr-ingest/core"
	"github.com/goliatone/go-hr-ingest/webhooks"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type WebhookDeliveryStore struct {
	db   *bun.DB
	repo repository.Repository[*webhookDeliveryRecord]
	now  func() time.Time
}

func NewWebhookDeliveryStore(db *bun.DB) (*WebhookDeliveryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*webhookDeliveryRecord](db, webhookDeliveryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid webhook delivery repository wiring: %w", err)
		}
	}
	return &WebhookDeliveryStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// Claim reserves a delivery for processing. It returns claimed=false when the
// delivery is already processed, dead, or held by an unexpired lease.
func (s *WebhookDeliveryStore) Claim(
	ctx context.Context,
	providerID string,
	deliveryID string,
	payload []byte,
	lease time.Duration,
) (webhooks.DeliveryRecord, bool, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	providerID = strings.ToLower(strings.TrimSpace(providerID))
	deliveryID = strings.TrimSpace(deliveryID)
	if providerID == "" || deliveryID == "" {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: provider id and delivery id are required")
	}

	now := s.now()
	leaseUntil := now.Add(lease)
	record := &webhookDeliveryRecord{
		ID:         uuid.NewString(),
		ClaimID:    uuid.NewString(),
		ProviderID: providerID,
		DeliveryID: deliveryID,
		Status:     webhooks.DeliveryStatusProcessing,
		Attempts:   1,
		LeaseUntil: &leaseUntil,
		Payload:    append([]byte(nil), payload...),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err := s.db.NewInsert().Model(record).Exec(ctx)
	if err == nil {
		return webhookDeliveryToDomain(record), true, nil
	}
	if !isUniqueViolation(err) {
		return webhooks.DeliveryRecord{}, false, classifyError(err, "claim webhook delivery")
	}

	existing, err := s.load(ctx, providerID, deliveryID)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	if !reclaimable(existing, now) {
		return webhookDeliveryToDomain(existing), false, nil
	}

	newClaimID := uuid.NewString()
	result, err := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("status = ?", webhooks.DeliveryStatusProcessing).
		Set("claim_id = ?", newClaimID).
		Set("attempts = attempts + 1").
		Set("lease_until = ?", leaseUntil).
		Set("payload = ?", append([]byte(nil), payload...)).
		Set("updated_at = ?", now).
		Where("id = ?", existing.ID).
		Where("claim_id = ?", existing.ClaimID).
		Exec(ctx)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, classifyError(err, "reclaim webhook delivery")
	}
	if affected, rowsErr := result.RowsAffected(); rowsErr == nil && affected == 0 {
		return webhookDeliveryToDomain(existing), false, nil
	}
	existing.ClaimID = newClaimID
	existing.Status = webhooks.DeliveryStatusProcessing
	existing.Attempts++
	existing.LeaseUntil = &leaseUntil
	existing.UpdatedAt = now
	return webhookDeliveryToDomain(existing), true, nil
}

func (s *WebhookDeliveryStore) Get(
	ctx context.Context,
	providerID string,
	deliveryID string,
) (webhooks.DeliveryRecord, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	record, err := s.load(ctx, strings.ToLower(strings.TrimSpace(providerID)), strings.TrimSpace(deliveryID))
	if err != nil {
		return webhooks.DeliveryRecord{}, err
	}
	return webhookDeliveryToDomain(record), nil
}

func (s *WebhookDeliveryStore) Complete(ctx context.Context, claimID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	_, err := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("status = ?", webhooks.DeliveryStatusProcessed).
		Set("lease_until = NULL").
		Set("next_attempt_at = NULL").
		Set("updated_at = ?", s.now()).
		Where("claim_id = ?", strings.TrimSpace(claimID)).
		Exec(ctx)
	return classifyError(err, "complete webhook delivery")
}

// Fail releases a claim for retry, or marks the delivery dead once attempts
// reach maxAttempts.
func (s *WebhookDeliveryStore) Fail(
	ctx context.Context,
	claimID string,
	cause error,
	nextAttemptAt time.Time,
	maxAttempts int,
) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	record := &webhookDeliveryRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.claim_id = ?", strings.TrimSpace(claimID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("sqlstore: webhook delivery claim %q not found", claimID)
		}
		return classifyError(err, "load webhook delivery claim")
	}
	status := webhooks.DeliveryStatusRetryReady
	if maxAttempts > 0 && record.Attempts >= maxAttempts {
		status = webhooks.DeliveryStatusDead
	}
	message, kind := "", ""
	if cause != nil {
		message = cause.Error()
		kind = string(core.ErrorKindOf(cause))
	}
	_, err = s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("status = ?", status).
		Set("lease_until = NULL").
		Set("next_attempt_at = ?", nextAttemptAt.UTC()).
		Set("last_error = ?", message).
		Set("last_error_kind = ?", kind).
		Set("updated_at = ?", s.now()).
		Where("id = ?", record.ID).
		Where("claim_id = ?", record.ClaimID).
		Exec(ctx)
	return classifyError(err, "fail webhook delivery")
}

func (s *WebhookDeliveryStore) load(ctx context.Context, providerID string, deliveryID string) (*webhookDeliveryRecord, error) {
	record := &webhookDeliveryRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.provider_id = ?", providerID).
		Where("?TableAlias.delivery_id = ?", deliveryID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf(
				"sqlstore: webhook delivery not found for provider %q delivery %q",
				providerID,
				deliveryID,
			)
		}
		return nil, classifyError(err, "load webhook delivery")
	}
	return record, nil
}

func reclaimable(record *webhookDeliveryRecord, now time.Time) bool {
	switch record.Status {
	case webhooks.DeliveryStatusProcessed, webhooks.DeliveryStatusDead:
		return false
	case webhooks.DeliveryStatusProcessing:
		return record.LeaseUntil == nil || !record.LeaseUntil.After(now)
	default:
		return true
	}
}

func webhookDeliveryToDomain(record *webhookDeliveryRecord) webhooks.DeliveryRecord {
	if record == nil {
		return webhooks.DeliveryRecord{}
	}
	result := webhooks.DeliveryRecord{
		ID:            record.ID,
		ClaimID:       record.ClaimID,
		ProviderID:    record.ProviderID,
		DeliveryID:    record.DeliveryID,
		Status:        record.Status,
		Attempts:      record.Attempts,
		LastError:     record.LastError,
		LastErrorKind: core.ErrorKind(record.LastErrorKind),
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}
	if record.NextAttemptAt != nil {
		value := *record.NextAttemptAt
		result.NextAttemptAt = &value
	}
	return result
}

