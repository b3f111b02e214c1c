package core

import "time"

// FieldDef declares one canonical field. Precision only applies to timestamps.
type FieldDef struct {
	Name      string
	Type      ValueKind
	Precision time.Duration
}

// EntitySchema lists the canonical fields of an entity in declaration order.
// Reconciliation diffs and fingerprints follow this order.
type EntitySchema struct {
	Entity EntityType
	Fields []FieldDef
}

func (s EntitySchema) Field(name string) (FieldDef, bool) {
	for _, field := range s.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return FieldDef{}, false
}

func (s EntitySchema) precision(name string) time.Duration {
	field, ok := s.Field(name)
	if !ok || field.Precision <= 0 {
		return time.Second
	}
	return field.Precision
}

const day = 24 * time.Hour

var TimesheetSchema = EntitySchema{
	Entity: EntityTimesheet,
	Fields: []FieldDef{
		{Name: "worker_ref", Type: KindString},
		{Name: "external_worker_id", Type: KindString},
		{Name: "activity_type", Type: KindString},
		{Name: "event_type", Type: KindString},
		{Name: "time_clock_id", Type: KindString},
		{Name: "start_at", Type: KindTimestamp, Precision: time.Second},
		{Name: "start_timezone", Type: KindString},
		{Name: "end_at", Type: KindTimestamp, Precision: time.Second},
		{Name: "end_timezone", Type: KindString},
		{Name: "shift_start_date", Type: KindString},
		{Name: "shift_start_time", Type: KindString},
		{Name: "shift_end_date", Type: KindString},
		{Name: "shift_end_time", Type: KindString},
		{Name: "job_id", Type: KindString},
		{Name: "sub_job_id", Type: KindString},
		{Name: "is_auto_clock_out", Type: KindBool},
		{Name: "duration", Type: KindNumber},
		{Name: "duration_units", Type: KindString},
		{Name: "policy_type_id", Type: KindString},
		{Name: "pay_rate", Type: KindNumber},
		{Name: "note", Type: KindString},
		{Name: "deleted", Type: KindBool},
		{Name: "event_at", Type: KindTimestamp, Precision: time.Second},
		{Name: "created_at", Type: KindTimestamp, Precision: time.Second},
		{Name: "modified_at", Type: KindTimestamp, Precision: time.Second},
	},
}

var WorkerSchema = EntitySchema{
	Entity: EntityWorker,
	Fields: []FieldDef{
		{Name: "first_name", Type: KindString},
		{Name: "last_name", Type: KindString},
		{Name: "full_name", Type: KindString},
		{Name: "email", Type: KindString},
		{Name: "phone", Type: KindString},
		{Name: "title", Type: KindString},
		{Name: "department", Type: KindString},
		{Name: "approval_group", Type: KindString},
		{Name: "employment_status", Type: KindString},
		{Name: "external_worker_id", Type: KindString},
		{Name: "pay_type", Type: KindString},
		{Name: "pay_rate", Type: KindNumber},
		{Name: "is_active", Type: KindBool},
		{Name: "time_zone", Type: KindString},
		{Name: "hire_date", Type: KindTimestamp, Precision: day},
		{Name: "termination_date", Type: KindTimestamp, Precision: day},
		{Name: "source_updated_at", Type: KindTimestamp, Precision: time.Second},
	},
}

var ApplicantSchema = EntitySchema{
	Entity: EntityApplicant,
	Fields: []FieldDef{
		{Name: "first_name", Type: KindString},
		{Name: "last_name", Type: KindString},
		{Name: "full_name", Type: KindString},
		{Name: "email", Type: KindString},
		{Name: "phone", Type: KindString},
		{Name: "job_requisition_id", Type: KindString},
		{Name: "job_title", Type: KindString},
		{Name: "location", Type: KindString},
		{Name: "stage", Type: KindString},
		{Name: "status", Type: KindString},
		{Name: "source", Type: KindString},
		{Name: "hired", Type: KindBool},
		{Name: "rejection_reason", Type: KindString},
		{Name: "applied_at", Type: KindTimestamp, Precision: time.Second},
		{Name: "source_updated_at", Type: KindTimestamp, Precision: time.Second},
	},
}

func SchemaFor(entity EntityType) (EntitySchema, bool) {
	switch entity {
	case EntityTimesheet:
		return TimesheetSchema, true
	case EntityWorker:
		return WorkerSchema, true
	case EntityApplicant:
		return ApplicantSchema, true
	default:
		return EntitySchema{}, false
	}
}

// OrderedFieldNames returns the keys of fields in schema declaration order;
// keys unknown to the schema follow in lexical order.
func OrderedFieldNames(entity EntityType, fields map[string]Value) []string {
	out := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	if schema, ok := SchemaFor(entity); ok {
		for _, def := range schema.Fields {
			if _, present := fields[def.Name]; present {
				out = append(out, def.Name)
				seen[def.Name] = struct{}{}
			}
		}
	}
	for _, key := range sortedKeys(fields) {
		if _, done := seen[key]; done {
			continue
		}
		out = append(out, key)
	}
	return out
}
