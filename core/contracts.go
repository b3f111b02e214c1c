package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Normalizer turns one raw provider payload into a canonical record.
type Normalizer interface {
	Normalize(ctx context.Context, raw []byte, entity EntityType, providerID string) (CanonicalRecord, error)
}

type NormalizerFunc func(ctx context.Context, raw []byte, entity EntityType, providerID string) (CanonicalRecord, error)

func (fn NormalizerFunc) Normalize(
	ctx context.Context,
	raw []byte,
	entity EntityType,
	providerID string,
) (CanonicalRecord, error) {
	return fn(ctx, raw, entity, providerID)
}

// NormalizerRegistry resolves the strategy for a (provider, entity) pair.
type NormalizerRegistry interface {
	Register(providerID string, entity EntityType, normalizer Normalizer) error
	Lookup(providerID string, entity EntityType) (Normalizer, bool)
	List() []NormalizerKey
}

// Provider bundles the normalizers a source system ships, keyed by entity.
type Provider interface {
	ID() string
	Normalizers() map[EntityType]Normalizer
}

// SelectingProvider is a Provider with its own routing for notifications.
// A nil selector means the provider uses the configured default.
type SelectingProvider interface {
	Provider
	TargetSelector() TargetSelector
}

type NormalizerKey struct {
	ProviderID string
	EntityType EntityType
}

// RecordStore is the persistence gateway. Implementations must make Apply
// atomic per natural key and reject stale bases with ErrPersistenceConflict.
type RecordStore interface {
	FindByKey(ctx context.Context, entity EntityType, naturalKey string) (Snapshot, bool, error)
	Apply(ctx context.Context, decision Decision, record CanonicalRecord) (WriteResult, error)
}

// RecordReader is implemented by stores that can serve record lookups by id.
type RecordReader interface {
	GetRecord(ctx context.Context, recordID string) (StoredRecord, error)
}

type StoredRecord struct {
	RecordID       string
	EntityType     EntityType
	NaturalKey     string
	Fields         map[string]Value
	Fingerprint    string
	SourceProvider string
	SourceEventID  string
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Target is one downstream processor.
type Target interface {
	ID() string
	Invoke(ctx context.Context, event NotificationEvent) error
}

type TargetFunc struct {
	Name string
	Fn   func(ctx context.Context, event NotificationEvent) error
}

func (t TargetFunc) ID() string {
	return t.Name
}

func (t TargetFunc) Invoke(ctx context.Context, event NotificationEvent) error {
	if t.Fn == nil {
		return nil
	}
	return t.Fn(ctx, event)
}

type Notifier interface {
	Notify(ctx context.Context, event NotificationEvent, targets []string) []NotificationOutcome
}

// TargetSelector picks the downstream target ids for a persisted change.
type TargetSelector interface {
	SelectTargets(ctx context.Context, record CanonicalRecord, result WriteResult) []string
}

type TargetSelectorFunc func(ctx context.Context, record CanonicalRecord, result WriteResult) []string

func (fn TargetSelectorFunc) SelectTargets(ctx context.Context, record CanonicalRecord, result WriteResult) []string {
	return fn(ctx, record, result)
}

type Delivery struct {
	ID            string
	ProviderID    string
	EntityType    EntityType
	EventID       string
	NaturalKey    string
	RecordID      string
	Decision      DecisionKind
	State         PipelineState
	StatusCode    int
	ErrorKind     ErrorKind
	ErrorMessage  string
	Attempts      int
	RawPayload    []byte
	ReceivedAt    time.Time
	CompletedAt   time.Time
	ChangedFields []string
	NotifiedCount int
	FailedTargets []string
}

type ListDeliveriesFilter struct {
	ProviderID string
	EntityType EntityType
	EventID    string
	Limit      int
}

// DeliveryLog records every ingest invocation, including failed ones.
type DeliveryLog interface {
	Record(ctx context.Context, delivery Delivery) error
	List(ctx context.Context, filter ListDeliveriesFilter) ([]Delivery, error)
}

type NotificationRecord struct {
	EventID    string
	RecordID   string
	Target     string
	ChangeKind ChangeKind
	Success    bool
	Error      string
	SentAt     time.Time
}

// NotificationLedger keeps per-target outcomes keyed by event id and target.
type NotificationLedger interface {
	RecordOutcome(ctx context.Context, record NotificationRecord) error
}

// StoreProvider bundles the persistence backends built from one database.
type StoreProvider interface {
	RecordStore() RecordStore
	DeliveryLog() DeliveryLog
	NotificationLedger() NotificationLedger
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

// JobDelivery is one dequeued job message awaiting ack or nack.
type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

// Ingester is the single entry point exposed to transports.
type Ingester interface {
	Ingest(ctx context.Context, req IngestRequest) Response
}
