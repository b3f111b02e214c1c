package everee

import "github.com/goliatone/go-hr-ingest/core"

// TimesheetSpec maps Everee worked shifts. The worker block is flattened, so
// "worker.workerId" and a top-level "workerId" resolve alike.
func TimesheetSpec() core.MappingSpec {
	return core.MappingSpec{
		ProviderID:    ProviderID,
		Entity:        core.EntityTimesheet,
		KeySources:    []string{"worked_shift_id"},
		EventIDSource: "event_id",
		Prepare:       envelope(),
		Fields: []core.FieldMapping{
			{Target: "worker_ref", Sources: []string{"worker_worker_id", "worker_id"}, Type: core.KindString, Required: true},
			{Target: "external_worker_id", Sources: []string{"worker_external_worker_id", "external_worker_id"}, SkipNull: true},
			{Target: "event_type", Sources: []string{"event_type"}, Transform: core.LowercaseTransform},
			{Target: "start_at", Sources: []string{"shift_start_at_effective_punch_at", "shift_start_epoch_seconds"}},
			{Target: "start_timezone", Sources: []string{"legal_work_time_zone", "worker_legal_work_time_zone"}, SkipNull: true},
			{Target: "end_at", Sources: []string{"shift_end_at_effective_punch_at", "shift_end_epoch_seconds"}},
			{Target: "end_timezone", Sources: []string{"legal_work_time_zone", "worker_legal_work_time_zone"}, SkipNull: true},
			{Target: "pay_rate", Sources: []string{"effective_hourly_pay_rate_amount", "effective_hourly_pay_rate", "override_rate"}, SkipNull: true},
			{Target: "note", Sources: []string{"note"}, Transform: core.TrimTransform},
			{Target: "event_at", Sources: []string{"event_timestamp"}},
			{Target: "modified_at", Sources: []string{"updated_at", "verified_at"}},
		},
		Enrich: []core.EnrichFunc{
			core.FlagDeleted("event_type", IsDeleteEvent, "worker_ref", "external_worker_id", "event_at"),
			core.LocalDateTime("start_at", "start_timezone", "shift_start_date", "shift_start_time"),
			core.LocalDateTime("end_at", "end_timezone", "shift_end_date", "shift_end_time"),
		},
	}
}
