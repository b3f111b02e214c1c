package sqlstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-hr-ingest/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

type stubRecordBackend struct {
	mu       sync.Mutex
	record   core.StoredRecord
	getCalls int
	getErr   error
}

func (s *stubRecordBackend) FindByKey(context.Context, core.EntityType, string) (core.Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.Snapshot{RecordID: s.record.RecordID, Fields: copyFields(s.record.Fields), Version: s.record.Version}, true, nil
}

func (s *stubRecordBackend) Apply(_ context.Context, decision core.Decision, record core.CanonicalRecord) (core.WriteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range decision.ChangedFields {
		s.record.Fields[name] = record.Fields[name]
	}
	s.record.Version++
	return core.WriteResult{RecordID: s.record.RecordID, ChangedFields: decision.ChangedFields}, nil
}

func (s *stubRecordBackend) GetRecord(context.Context, string) (core.StoredRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.getErr != nil {
		return core.StoredRecord{}, s.getErr
	}
	return cloneStoredRecord(s.record), nil
}

func (s *stubRecordBackend) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getCalls
}

func TestCachedRecordStore_GetRecord_MissFetchThenHit(t *testing.T) {
	base := newStubRecordBackend("rec_cache_1")
	store, err := NewCachedRecordStore(base, newTestRecordCacheService(t))
	if err != nil {
		t.Fatalf("new cached record store: %v", err)
	}

	if _, err := store.GetRecord(context.Background(), "rec_cache_1"); err != nil {
		t.Fatalf("first get: %v", err)
	}
	if base.calls() != 1 {
		t.Fatalf("expected first get to read base store once, got %d", base.calls())
	}
	record, err := store.GetRecord(context.Background(), " rec_cache_1 ")
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if base.calls() != 1 {
		t.Fatalf("expected second get to be a cache hit, base calls=%d", base.calls())
	}

	// Callers must not be able to mutate the cached copy.
	record.Fields["email"] = core.String("mutated@example.com")
	again, err := store.GetRecord(context.Background(), "rec_cache_1")
	if err != nil {
		t.Fatalf("third get: %v", err)
	}
	if email, _ := again.Fields["email"].AsString(); email != "ana@example.com" {
		t.Fatalf("expected cached record to be isolated, got %q", email)
	}
}

func TestCachedRecordStore_ApplyUpdateEvictsRecord(t *testing.T) {
	base := newStubRecordBackend("rec_cache_2")
	store, err := NewCachedRecordStore(base, newTestRecordCacheService(t))
	if err != nil {
		t.Fatalf("new cached record store: %v", err)
	}
	if _, err := store.GetRecord(context.Background(), "rec_cache_2"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}

	snapshot, _, err := store.FindByKey(context.Background(), core.EntityWorker, "acme:worker:1")
	if err != nil {
		t.Fatalf("find by key: %v", err)
	}
	if _, err := store.Apply(context.Background(), core.Decision{
		Kind:          core.DecisionUpdate,
		ChangedFields: []string{"email"},
		Base:          &snapshot,
	}, core.CanonicalRecord{
		EntityType: core.EntityWorker,
		NaturalKey: "acme:worker:1",
		Fields:     map[string]core.Value{"email": core.String("new@example.com")},
	}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	record, err := store.GetRecord(context.Background(), "rec_cache_2")
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if base.calls() != 2 {
		t.Fatalf("expected eviction to force a second base read, got %d", base.calls())
	}
	if email, _ := record.Fields["email"].AsString(); email != "new@example.com" {
		t.Fatalf("expected updated email, got %q", email)
	}
}

func TestCachedRecordStore_PropagatesBaseErrors(t *testing.T) {
	base := newStubRecordBackend("rec_cache_3")
	base.getErr = errors.New("boom")
	store, err := NewCachedRecordStore(base, newTestRecordCacheService(t))
	if err != nil {
		t.Fatalf("new cached record store: %v", err)
	}
	if _, err := store.GetRecord(context.Background(), "rec_cache_3"); err == nil {
		t.Fatalf("expected base error propagation")
	}
	if _, err := store.GetRecord(context.Background(), " "); err == nil {
		t.Fatalf("expected empty record id to be rejected")
	}
	if _, err := NewCachedRecordStore(nil, newTestRecordCacheService(t)); err == nil {
		t.Fatalf("expected missing base store error")
	}
}

func newStubRecordBackend(recordID string) *stubRecordBackend {
	return &stubRecordBackend{record: core.StoredRecord{
		RecordID:   recordID,
		EntityType: core.EntityWorker,
		NaturalKey: "acme:worker:1",
		Fields:     map[string]core.Value{"email": core.String("ana@example.com")},
		Version:    1,
	}}
}

func newTestRecordCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}
