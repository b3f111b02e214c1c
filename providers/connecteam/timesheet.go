package connecteam

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-hr-ingest/core"
)

// deleteFields are the only fields a delete or declined event may touch.
var deleteFields = []string{"worker_ref", "activity_type", "time_clock_id", "event_at"}

// TimesheetSpec maps Connecteam time activity webhooks. Nested keys are
// flattened and the "time_activity_" prefix dropped, so both the wrapped and
// the flat payload shapes resolve.
func TimesheetSpec(roundMinutes int) core.MappingSpec {
	return core.MappingSpec{
		ProviderID:    ProviderID,
		Entity:        core.EntityTimesheet,
		KeySources:    []string{"time_activity_id"},
		EventIDSource: "request_id",
		Prepare: []core.PrepareFunc{
			core.StripPrefixes("data_"),
			core.StripPrefixes("time_activity_"),
			core.RenameSources(map[string]string{"id": "time_activity_id"}),
		},
		Fields: []core.FieldMapping{
			{Target: "worker_ref", Sources: []string{"user_id"}, Type: core.KindString, Required: true},
			{Target: "activity_type", Sources: []string{"activity_type"}, Transform: core.LowercaseTransform},
			{Target: "event_type", Sources: []string{"event_type"}, Transform: core.LowercaseTransform},
			{Target: "time_clock_id", Sources: []string{"time_clock_id"}, SkipNull: true},
			{Target: "start_at", Sources: []string{"start_timestamp"}},
			{Target: "start_timezone", Sources: []string{"start_timezone"}, SkipNull: true},
			{Target: "end_at", Sources: []string{"end_timestamp"}},
			{Target: "end_timezone", Sources: []string{"end_timezone"}, SkipNull: true},
			{Target: "job_id", Sources: []string{"job_id"}},
			{Target: "sub_job_id", Sources: []string{"sub_job_id"}},
			{Target: "is_auto_clock_out", Sources: []string{"is_auto_clock_out"}},
			{Target: "duration", Sources: []string{"duration_value"}},
			{Target: "duration_units", Sources: []string{"duration_units"}},
			{Target: "policy_type_id", Sources: []string{"policy_type_id"}},
			{Target: "note", Sources: []string{"note", "notes", "employee_note"}, Transform: core.TrimTransform},
			{Target: "event_at", Sources: []string{"event_timestamp"}},
			{Target: "created_at", Sources: []string{"created_at"}},
			{Target: "modified_at", Sources: []string{"modified_at"}},
		},
		Enrich: []core.EnrichFunc{
			core.FlagDeleted("event_type", IsDeleteEvent, deleteFields...),
			core.LocalDateTime("start_at", "start_timezone", "shift_start_date", "shift_start_time"),
			core.LocalDateTime("end_at", "end_timezone", "shift_end_date", "shift_end_time"),
			roundPunches(roundMinutes),
		},
	}
}

// IsDeleteEvent reports whether an event type removes the activity.
func IsDeleteEvent(eventType string) bool {
	eventType = strings.ToLower(eventType)
	return strings.Contains(eventType, "delete") || strings.Contains(eventType, "declined")
}

// roundPunches rounds start/end to the nearest multiple of minutes; a
// remainder of exactly half the step rounds up.
func roundPunches(minutes int) core.EnrichFunc {
	step := time.Duration(minutes) * time.Minute
	return func(_ context.Context, fields map[string]core.Value, _ map[string]any) error {
		if step <= 0 {
			return nil
		}
		if activity, ok := fields["activity_type"]; ok {
			if kind, _ := activity.AsString(); kind == ActivityTimeOff {
				return nil
			}
		}
		for _, name := range []string{"start_at", "end_at"} {
			value, ok := fields[name]
			if !ok || value.IsNull() {
				continue
			}
			instant, _ := value.AsTime()
			fields[name] = core.Timestamp(RoundPunch(instant, step))
		}
		return nil
	}
}

func RoundPunch(instant time.Time, step time.Duration) time.Time {
	if step <= 0 {
		return instant
	}
	return instant.UTC().Round(step)
}
