package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-hr-ingest/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RecordStore persists canonical records with optimistic versioning. Every
// Apply runs in one transaction and checks the version it was decided against.
type RecordStore struct {
	db   *bun.DB
	repo repository.Repository[*ingestRecord]
	now  func() time.Time
}

func NewRecordStore(db *bun.DB) (*RecordStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*ingestRecord](db, recordHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid record repository wiring: %w", err)
		}
	}
	return &RecordStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *RecordStore) FindByKey(ctx context.Context, entity core.EntityType, naturalKey string) (core.Snapshot, bool, error) {
	if s == nil || s.repo == nil {
		return core.Snapshot{}, false, fmt.Errorf("sqlstore: record store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("entity_type", "=", string(entity)),
		repository.SelectBy("natural_key", "=", strings.TrimSpace(naturalKey)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Snapshot{}, false, classifyError(err, "find record")
	}
	if len(records) == 0 {
		return core.Snapshot{}, false, nil
	}
	return snapshotFromRecord(records[0]), true, nil
}

func (s *RecordStore) Apply(ctx context.Context, decision core.Decision, record core.CanonicalRecord) (core.WriteResult, error) {
	if s == nil || s.db == nil {
		return core.WriteResult{}, fmt.Errorf("sqlstore: record store is not configured")
	}
	switch decision.Kind {
	case core.DecisionCreate:
		return s.create(ctx, record)
	case core.DecisionUpdate:
		return s.update(ctx, decision, record)
	case core.DecisionNoOp:
		snapshot, found, err := s.FindByKey(ctx, record.EntityType, record.NaturalKey)
		if err != nil {
			return core.WriteResult{}, err
		}
		if !found {
			return core.WriteResult{}, core.PersistenceConflictError("sqlstore: record vanished since it was read", map[string]any{
				"natural_key": record.NaturalKey,
			})
		}
		return core.WriteResult{RecordID: snapshot.RecordID, ChangedFields: []string{}}, nil
	default:
		return core.WriteResult{}, fmt.Errorf("sqlstore: unknown decision kind %q", decision.Kind)
	}
}

func (s *RecordStore) create(ctx context.Context, record core.CanonicalRecord) (core.WriteResult, error) {
	now := s.now()
	model := &ingestRecord{
		ID:             uuid.NewString(),
		EntityType:     string(record.EntityType),
		NaturalKey:     record.NaturalKey,
		Fields:         copyFields(record.Fields),
		Fingerprint:    record.Fingerprint(),
		SourceProvider: record.SourceProvider,
		SourceEventID:  record.SourceEventID,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, createErr := s.repo.CreateTx(ctx, tx, model)
		return createErr
	})
	if err != nil {
		return core.WriteResult{}, classifyError(err, "create record")
	}
	return core.WriteResult{RecordID: model.ID, Created: true, ChangedFields: []string{}}, nil
}

func (s *RecordStore) update(ctx context.Context, decision core.Decision, record core.CanonicalRecord) (core.WriteResult, error) {
	if decision.Base == nil {
		return core.WriteResult{}, fmt.Errorf("sqlstore: update decision requires a base snapshot")
	}
	base := *decision.Base
	var recordID string
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current := &ingestRecord{}
		selectErr := tx.NewSelect().
			Model(current).
			Where("?TableAlias.entity_type = ?", string(record.EntityType)).
			Where("?TableAlias.natural_key = ?", record.NaturalKey).
			Limit(1).
			Scan(ctx)
		if errors.Is(selectErr, sql.ErrNoRows) {
			return staleBase(record, base)
		}
		if selectErr != nil {
			return selectErr
		}
		if current.Version != base.Version {
			return staleBase(record, base)
		}

		merged := copyFields(current.Fields)
		for _, name := range decision.ChangedFields {
			if value, ok := record.Fields[name]; ok {
				merged[name] = value
			}
		}
		fingerprint := core.CanonicalRecord{
			EntityType: record.EntityType,
			NaturalKey: record.NaturalKey,
			Fields:     merged,
		}.Fingerprint()

		current.Fields = merged
		current.Fingerprint = fingerprint
		current.SourceEventID = record.SourceEventID
		current.Version = base.Version + 1
		current.UpdatedAt = s.now()
		result, updateErr := tx.NewUpdate().
			Model(current).
			Column("fields", "fingerprint", "source_event_id", "version", "updated_at").
			WherePK().
			Where("version = ?", base.Version).
			Exec(ctx)
		if updateErr != nil {
			return updateErr
		}
		if affected, rowsErr := result.RowsAffected(); rowsErr == nil && affected == 0 {
			return staleBase(record, base)
		}
		recordID = current.ID
		return nil
	})
	if err != nil {
		return core.WriteResult{}, classifyError(err, "update record")
	}
	return core.WriteResult{
		RecordID:      recordID,
		ChangedFields: append([]string(nil), decision.ChangedFields...),
	}, nil
}

func (s *RecordStore) GetRecord(ctx context.Context, recordID string) (core.StoredRecord, error) {
	if s == nil || s.repo == nil {
		return core.StoredRecord{}, fmt.Errorf("sqlstore: record store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(recordID))
	if err != nil {
		return core.StoredRecord{}, classifyError(err, "get record")
	}
	return storedFromRecord(record), nil
}

func staleBase(record core.CanonicalRecord, base core.Snapshot) error {
	return core.PersistenceConflictError("sqlstore: record changed since it was read", map[string]any{
		"natural_key":  record.NaturalKey,
		"base_version": base.Version,
	})
}

func snapshotFromRecord(record *ingestRecord) core.Snapshot {
	if record == nil {
		return core.Snapshot{}
	}
	return core.Snapshot{
		RecordID:  record.ID,
		Fields:    copyFields(record.Fields),
		Version:   record.Version,
		UpdatedAt: record.UpdatedAt,
	}
}

func storedFromRecord(record *ingestRecord) core.StoredRecord {
	if record == nil {
		return core.StoredRecord{}
	}
	return core.StoredRecord{
		RecordID:       record.ID,
		EntityType:     core.EntityType(record.EntityType),
		NaturalKey:     record.NaturalKey,
		Fields:         copyFields(record.Fields),
		Fingerprint:    record.Fingerprint,
		SourceProvider: record.SourceProvider,
		SourceEventID:  record.SourceEventID,
		Version:        record.Version,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}
}

func copyFields(in map[string]core.Value) map[string]core.Value {
	out := make(map[string]core.Value, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

