package core

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

type EntityType string

const (
	EntityTimesheet EntityType = "TIMESHEET"
	EntityWorker    EntityType = "WORKER"
	EntityApplicant EntityType = "APPLICANT"
)

func ParseEntityType(raw string) (EntityType, error) {
	switch EntityType(strings.ToUpper(strings.TrimSpace(raw))) {
	case EntityTimesheet:
		return EntityTimesheet, nil
	case EntityWorker:
		return EntityWorker, nil
	case EntityApplicant:
		return EntityApplicant, nil
	default:
		return "", fmt.Errorf("core: unknown entity type %q", raw)
	}
}

func (e EntityType) Valid() bool {
	_, err := ParseEntityType(string(e))
	return err == nil
}

// CanonicalRecord is the provider-agnostic shape of one webhook event.
type CanonicalRecord struct {
	EntityType     EntityType
	NaturalKey     string
	Fields         map[string]Value
	SourceProvider string
	SourceEventID  string
	ReceivedAt     time.Time
	RawPayload     []byte
}

// Has reports whether field is present (a present field may hold Null()).
func (r CanonicalRecord) Has(field string) bool {
	_, ok := r.Fields[field]
	return ok
}

func (r CanonicalRecord) Get(field string) (Value, bool) {
	value, ok := r.Fields[field]
	return value, ok
}

// Fingerprint hashes the present fields in canonical order.
func (r CanonicalRecord) Fingerprint() string {
	var b strings.Builder
	b.WriteString(string(r.EntityType))
	b.WriteString("|")
	b.WriteString(r.NaturalKey)
	for _, name := range OrderedFieldNames(r.EntityType, r.Fields) {
		value := r.Fields[name]
		b.WriteString("|")
		b.WriteString(name)
		b.WriteString("=")
		b.WriteString(string(value.Kind()))
		b.WriteString(":")
		b.WriteString(value.String())
	}
	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Snapshot is the persisted state matched by natural key at decision time.
type Snapshot struct {
	RecordID  string
	Fields    map[string]Value
	Version   int64
	UpdatedAt time.Time
}

// AsSnapshot views a record as if it were already stored.
func (r CanonicalRecord) AsSnapshot(recordID string) Snapshot {
	return Snapshot{
		RecordID:  recordID,
		Fields:    copyValues(r.Fields),
		Version:   1,
		UpdatedAt: r.ReceivedAt,
	}
}

type DecisionKind string

const (
	DecisionCreate DecisionKind = "CREATE"
	DecisionUpdate DecisionKind = "UPDATE"
	DecisionNoOp   DecisionKind = "NO_OP"
)

type Decision struct {
	Kind          DecisionKind
	ChangedFields []string
	// Base is the snapshot the decision was computed against; nil for CREATE.
	Base *Snapshot
}

type WriteResult struct {
	RecordID      string
	Created       bool
	ChangedFields []string
}

type ChangeKind string

const (
	ChangeCreated ChangeKind = "CREATED"
	ChangeUpdated ChangeKind = "UPDATED"
)

type NotificationEvent struct {
	EntityType     EntityType     `json:"entity_type"`
	RecordID       string         `json:"record_id"`
	ChangeKind     ChangeKind     `json:"change_kind"`
	Targets        []string       `json:"downstream_targets"`
	NaturalKey     string         `json:"natural_key"`
	SourceProvider string         `json:"source_provider"`
	SourceEventID  string         `json:"source_event_id"`
	ChangedFields  []string       `json:"changed_fields"`
	Fields         map[string]any `json:"fields,omitempty"`
}

type NotificationOutcome struct {
	Target  string `json:"target"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type PipelineState string

const (
	StateReceived   PipelineState = "RECEIVED"
	StateNormalized PipelineState = "NORMALIZED"
	StateDecided    PipelineState = "DECIDED"
	StatePersisted  PipelineState = "PERSISTED"
	StateNotified   PipelineState = "NOTIFIED"
	StateDone       PipelineState = "DONE"
	StateFailed     PipelineState = "FAILED"
)

// IngestRequest is one inbound webhook invocation.
type IngestRequest struct {
	ProviderID string
	EntityType EntityType
	RawPayload []byte
	EventID    string
	Metadata   map[string]any
}

type ResponseError struct {
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
}

type ResponseBody struct {
	RecordID      string                `json:"record_id,omitempty"`
	Created       bool                  `json:"created"`
	ChangedFields []string              `json:"changed_fields"`
	Notifications []NotificationOutcome `json:"notifications"`
	Decision      DecisionKind          `json:"decision,omitempty"`
	State         PipelineState         `json:"state"`
	Error         *ResponseError        `json:"error,omitempty"`
}

type Response struct {
	StatusCode int
	Body       ResponseBody
}

func copyValues(in map[string]Value) map[string]Value {
	if len(in) == 0 {
		return map[string]Value{}
	}
	out := make(map[string]Value, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func copyStrings(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	return append([]string(nil), in...)
}

func sortedKeys[V any](in map[string]V) []string {
	keys := make([]string, 0, len(in))
	for key := range in {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
