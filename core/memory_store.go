package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryKey struct {
	entity     EntityType
	naturalKey string
}

// MemoryRecordStore is an in-process RecordStore with the same version
// semantics as the SQL store. It is used by tests and single-process hosts.
type MemoryRecordStore struct {
	mu      sync.Mutex
	records map[memoryKey]*StoredRecord
	byID    map[string]memoryKey
	now     func() time.Time
}

func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{
		records: make(map[memoryKey]*StoredRecord),
		byID:    make(map[string]memoryKey),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryRecordStore) FindByKey(_ context.Context, entity EntityType, naturalKey string) (Snapshot, bool, error) {
	if s == nil {
		return Snapshot{}, false, PersistenceUnavailableError(fmt.Errorf("core: memory store is nil"), nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.records[memoryKey{entity: entity, naturalKey: naturalKey}]
	if !ok {
		return Snapshot{}, false, nil
	}
	return Snapshot{
		RecordID:  stored.RecordID,
		Fields:    copyValues(stored.Fields),
		Version:   stored.Version,
		UpdatedAt: stored.UpdatedAt,
	}, true, nil
}

func (s *MemoryRecordStore) Apply(_ context.Context, decision Decision, record CanonicalRecord) (WriteResult, error) {
	if s == nil {
		return WriteResult{}, PersistenceUnavailableError(fmt.Errorf("core: memory store is nil"), nil)
	}
	key := memoryKey{entity: record.EntityType, naturalKey: record.NaturalKey}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, exists := s.records[key]

	switch decision.Kind {
	case DecisionCreate:
		if exists {
			return WriteResult{}, PersistenceConflictError("core: record already exists", map[string]any{
				"natural_key": record.NaturalKey,
			})
		}
		stored := &StoredRecord{
			RecordID:       uuid.NewString(),
			EntityType:     record.EntityType,
			NaturalKey:     record.NaturalKey,
			Fields:         copyValues(record.Fields),
			Fingerprint:    record.Fingerprint(),
			SourceProvider: record.SourceProvider,
			SourceEventID:  record.SourceEventID,
			Version:        1,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		s.records[key] = stored
		s.byID[stored.RecordID] = key
		return WriteResult{RecordID: stored.RecordID, Created: true, ChangedFields: []string{}}, nil
	case DecisionUpdate:
		if decision.Base == nil {
			return WriteResult{}, fmt.Errorf("core: update decision requires a base snapshot")
		}
		if !exists || existing.Version != decision.Base.Version {
			return WriteResult{}, PersistenceConflictError("core: record changed since it was read", map[string]any{
				"natural_key":  record.NaturalKey,
				"base_version": decision.Base.Version,
			})
		}
		for _, name := range decision.ChangedFields {
			if value, ok := record.Fields[name]; ok {
				existing.Fields[name] = value
			}
		}
		existing.Version++
		existing.UpdatedAt = now
		existing.SourceEventID = record.SourceEventID
		existing.Fingerprint = CanonicalRecord{
			EntityType: existing.EntityType,
			NaturalKey: existing.NaturalKey,
			Fields:     existing.Fields,
		}.Fingerprint()
		return WriteResult{
			RecordID:      existing.RecordID,
			Created:       false,
			ChangedFields: copyStrings(decision.ChangedFields),
		}, nil
	case DecisionNoOp:
		if !exists {
			return WriteResult{}, PersistenceConflictError("core: record vanished since it was read", nil)
		}
		return WriteResult{RecordID: existing.RecordID, ChangedFields: []string{}}, nil
	default:
		return WriteResult{}, fmt.Errorf("core: unknown decision kind %q", decision.Kind)
	}
}

func (s *MemoryRecordStore) GetRecord(_ context.Context, recordID string) (StoredRecord, error) {
	if s == nil {
		return StoredRecord{}, fmt.Errorf("core: memory store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.byID[recordID]
	if !ok {
		return StoredRecord{}, fmt.Errorf("core: record %q not found", recordID)
	}
	stored := *s.records[key]
	stored.Fields = copyValues(stored.Fields)
	return stored, nil
}

// MemoryDeliveryLog keeps deliveries in insertion order.
type MemoryDeliveryLog struct {
	mu         sync.Mutex
	deliveries []Delivery
}

func NewMemoryDeliveryLog() *MemoryDeliveryLog {
	return &MemoryDeliveryLog{}
}

func (l *MemoryDeliveryLog) Record(_ context.Context, delivery Delivery) error {
	if l == nil {
		return fmt.Errorf("core: delivery log is nil")
	}
	if strings.TrimSpace(delivery.ID) == "" {
		delivery.ID = uuid.NewString()
	}
	l.mu.Lock()
	l.deliveries = append(l.deliveries, delivery)
	l.mu.Unlock()
	return nil
}

// List returns matching deliveries, newest first.
func (l *MemoryDeliveryLog) List(_ context.Context, filter ListDeliveriesFilter) ([]Delivery, error) {
	if l == nil {
		return nil, fmt.Errorf("core: delivery log is nil")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Delivery, 0, len(l.deliveries))
	for i := len(l.deliveries) - 1; i >= 0; i-- {
		delivery := l.deliveries[i]
		if filter.ProviderID != "" && !strings.EqualFold(delivery.ProviderID, filter.ProviderID) {
			continue
		}
		if filter.EntityType != "" && delivery.EntityType != filter.EntityType {
			continue
		}
		if filter.EventID != "" && delivery.EventID != filter.EventID {
			continue
		}
		out = append(out, delivery)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// MemoryNotificationLedger keeps the latest outcome per event id and target.
type MemoryNotificationLedger struct {
	mu      sync.Mutex
	records map[string]NotificationRecord
}

func NewMemoryNotificationLedger() *MemoryNotificationLedger {
	return &MemoryNotificationLedger{records: make(map[string]NotificationRecord)}
}

func NotificationIdempotencyKey(eventID string, target string) string {
	return strings.TrimSpace(eventID) + ":" + strings.TrimSpace(target)
}

func (l *MemoryNotificationLedger) RecordOutcome(_ context.Context, record NotificationRecord) error {
	if l == nil {
		return fmt.Errorf("core: notification ledger is nil")
	}
	l.mu.Lock()
	l.records[NotificationIdempotencyKey(record.EventID, record.Target)] = record
	l.mu.Unlock()
	return nil
}

func (l *MemoryNotificationLedger) Records() []NotificationRecord {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	keys := sortedKeys(l.records)
	out := make([]NotificationRecord, 0, len(keys))
	for _, key := range keys {
		out = append(out, l.records[key])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SentAt.Before(out[j].SentAt) })
	return out
}
