package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-hr-ingest/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const recordCacheKeyPrefix = "go-hr-ingest::record::v1"

// recordBackend is a record store that can also serve lookups by id.
type recordBackend interface {
	core.RecordStore
	core.RecordReader
}

// CachedRecordStore caches GetRecord reads. Pipeline reads (FindByKey) always
// hit the base store so optimistic version checks see committed state; Apply
// evicts the written record id.
type CachedRecordStore struct {
	base  recordBackend
	cache repositorycache.CacheService
}

func NewCachedRecordStore(
	base recordBackend,
	cacheService repositorycache.CacheService,
) (*CachedRecordStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base record store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: record cache service is required")
	}
	return &CachedRecordStore{base: base, cache: cacheService}, nil
}

// RecordCacheKey returns go-hr-ingest::record::v1::<record_id> with the id
// URL-path escaped.
func RecordCacheKey(recordID string) (string, error) {
	recordID = strings.TrimSpace(recordID)
	if recordID == "" {
		return "", fmt.Errorf("sqlstore: record id is required")
	}
	return recordCacheKeyPrefix + "::" + url.PathEscape(recordID), nil
}

func (s *CachedRecordStore) FindByKey(ctx context.Context, entity core.EntityType, naturalKey string) (core.Snapshot, bool, error) {
	if s == nil || s.base == nil {
		return core.Snapshot{}, false, fmt.Errorf("sqlstore: cached record store is not configured")
	}
	return s.base.FindByKey(ctx, entity, naturalKey)
}

func (s *CachedRecordStore) Apply(ctx context.Context, decision core.Decision, record core.CanonicalRecord) (core.WriteResult, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.WriteResult{}, fmt.Errorf("sqlstore: cached record store is not configured")
	}
	result, err := s.base.Apply(ctx, decision, record)
	if err != nil {
		return result, err
	}
	if decision.Kind != core.DecisionUpdate {
		return result, nil
	}
	cacheKey, keyErr := RecordCacheKey(result.RecordID)
	if keyErr != nil {
		return result, nil
	}
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		return result, err
	}
	return result, nil
}

func (s *CachedRecordStore) GetRecord(ctx context.Context, recordID string) (core.StoredRecord, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.StoredRecord{}, fmt.Errorf("sqlstore: cached record store is not configured")
	}
	recordID = strings.TrimSpace(recordID)
	cacheKey, err := RecordCacheKey(recordID)
	if err != nil {
		return core.StoredRecord{}, err
	}
	stored, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.StoredRecord, error) {
		fetched, fetchErr := s.base.GetRecord(ctx, recordID)
		if fetchErr != nil {
			return core.StoredRecord{}, fetchErr
		}
		return cloneStoredRecord(fetched), nil
	})
	if err != nil {
		return core.StoredRecord{}, err
	}
	return cloneStoredRecord(stored), nil
}

func cloneStoredRecord(record core.StoredRecord) core.StoredRecord {
	cloned := record
	cloned.Fields = copyFields(record.Fields)
	return cloned
}
