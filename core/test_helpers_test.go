package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

var testNow = time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func newTestNormalizer(t *testing.T) *MappingNormalizer {
	t.Helper()
	normalizer, err := NewMappingNormalizer(MappingSpec{
		ProviderID:    "acme",
		Entity:        EntityTimesheet,
		KeySources:    []string{"punchId"},
		EventIDSource: "eventId",
		Fields: []FieldMapping{
			{Target: "worker_ref", Sources: []string{"userId"}, Type: KindString, Required: true},
			{Target: "start_at", Sources: []string{"start.timestamp"}, Type: KindTimestamp},
			{Target: "end_at", Sources: []string{"end.timestamp"}, Type: KindTimestamp},
			{Target: "is_auto_clock_out", Sources: []string{"isAutoClockOut"}, Type: KindBool},
			{Target: "duration", Sources: []string{"durationHours"}, Type: KindNumber},
			{Target: "note", Sources: []string{"note"}, Type: KindString},
			{Target: "job_id", Sources: []string{"jobId"}, Type: KindString, SkipNull: true},
		},
	}, WithMappingClock(fixedClock))
	if err != nil {
		t.Fatalf("new mapping normalizer: %v", err)
	}
	return normalizer
}

func newTestRegistry(t *testing.T) *StrategyRegistry {
	t.Helper()
	registry := NewStrategyRegistry()
	if err := registry.Register("acme", EntityTimesheet, newTestNormalizer(t)); err != nil {
		t.Fatalf("register normalizer: %v", err)
	}
	return registry
}

const fullPunchPayload = `{
	"eventId": "evt_1",
	"punchId": "p1",
	"userId": 42,
	"start": {"timestamp": 1709550000},
	"end": {"timestamp": 1709553600},
	"isAutoClockOut": false,
	"durationHours": 1,
	"note": "on site"
}`

func testConfig(targets ...string) Config {
	cfg := DefaultConfig()
	cfg.Notification.Targets = map[string][]string{
		string(EntityTimesheet): targets,
	}
	return cfg
}

// recordingTarget counts invocations and returns err when set.
type recordingTarget struct {
	id    string
	err   error
	block bool

	mu     sync.Mutex
	events []NotificationEvent
}

func (t *recordingTarget) ID() string { return t.id }

func (t *recordingTarget) Invoke(ctx context.Context, event NotificationEvent) error {
	t.mu.Lock()
	t.events = append(t.events, event)
	t.mu.Unlock()
	if t.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return t.err
}

func (t *recordingTarget) calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.events)
}

func (t *recordingTarget) last() NotificationEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.events) == 0 {
		return NotificationEvent{}
	}
	return t.events[len(t.events)-1]
}

// countingStore wraps a RecordStore, counting calls and injecting failures.
type countingStore struct {
	inner RecordStore

	mu            sync.Mutex
	finds         int
	applies       int
	conflictTimes int
	findErr       error
}

func (s *countingStore) FindByKey(ctx context.Context, entity EntityType, naturalKey string) (Snapshot, bool, error) {
	s.mu.Lock()
	s.finds++
	findErr := s.findErr
	s.mu.Unlock()
	if findErr != nil {
		return Snapshot{}, false, findErr
	}
	return s.inner.FindByKey(ctx, entity, naturalKey)
}

func (s *countingStore) Apply(ctx context.Context, decision Decision, record CanonicalRecord) (WriteResult, error) {
	s.mu.Lock()
	s.applies++
	inject := s.conflictTimes > 0
	if inject {
		s.conflictTimes--
	}
	s.mu.Unlock()
	if inject {
		return WriteResult{}, fmt.Errorf("stale base: %w", ErrPersistenceConflict)
	}
	return s.inner.Apply(ctx, decision, record)
}

func (s *countingStore) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finds, s.applies
}

// racingStore lets a competing writer create the record between the
// service's read and its first write.
type racingStore struct {
	inner          *MemoryRecordStore
	competitorNote string

	mu           sync.Mutex
	raced        bool
	competitorID string
}

func (s *racingStore) FindByKey(ctx context.Context, entity EntityType, naturalKey string) (Snapshot, bool, error) {
	return s.inner.FindByKey(ctx, entity, naturalKey)
}

func (s *racingStore) Apply(ctx context.Context, decision Decision, record CanonicalRecord) (WriteResult, error) {
	s.mu.Lock()
	race := !s.raced
	s.raced = true
	s.mu.Unlock()
	if race {
		competing := record
		competing.Fields = copyValues(record.Fields)
		competing.Fields["note"] = String(s.competitorNote)
		written, err := s.inner.Apply(ctx, Decision{Kind: DecisionCreate, ChangedFields: []string{}}, competing)
		if err != nil {
			return WriteResult{}, err
		}
		s.mu.Lock()
		s.competitorID = written.RecordID
		s.mu.Unlock()
	}
	return s.inner.Apply(ctx, decision, record)
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}
