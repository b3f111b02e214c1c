package everee

import (
	"context"

	"github.com/goliatone/go-hr-ingest/core"
)

// WorkerSpec maps Everee worker objects and worker webhooks.
func WorkerSpec() core.MappingSpec {
	return core.MappingSpec{
		ProviderID:    ProviderID,
		Entity:        core.EntityWorker,
		KeySources:    []string{"worker_id"},
		EventIDSource: "event_id",
		Prepare:       envelope(),
		Fields: []core.FieldMapping{
			{Target: "first_name", Sources: []string{"first_name"}, Transform: core.TrimTransform},
			{Target: "last_name", Sources: []string{"last_name"}, Transform: core.TrimTransform},
			{Target: "email", Sources: []string{"email"}, Transform: core.LowercaseTransform},
			{Target: "phone", Sources: []string{"phone_number"}, Transform: core.TrimTransform},
			{Target: "title", Sources: []string{"title", "position_title"}, Transform: core.TrimTransform},
			{Target: "approval_group", Sources: []string{"approval_group_name"}, Transform: core.TrimTransform},
			{Target: "employment_status", Sources: []string{"onboarding_status", "status"}, Transform: core.LowercaseTransform},
			{Target: "external_worker_id", Sources: []string{"external_worker_id"}, SkipNull: true},
			{Target: "pay_type", Sources: []string{"pay_type"}, Transform: core.LowercaseTransform},
			{Target: "pay_rate", Sources: []string{"pay_rate_amount", "pay_rate", "hourly_pay_rate_amount"}},
			{Target: "time_zone", Sources: []string{"legal_work_time_zone"}, SkipNull: true},
			{Target: "hire_date", Sources: []string{"hire_date"}},
			{Target: "termination_date", Sources: []string{"termination_date"}},
			{Target: "source_updated_at", Sources: []string{"updated_at", "event_timestamp"}},
		},
		Enrich: []core.EnrichFunc{
			core.JoinFields("full_name", "first_name", "last_name"),
			activeFromTermination,
		},
	}
}

// activeFromTermination marks a worker inactive once a termination date is
// set and active again when it is cleared.
func activeFromTermination(_ context.Context, fields map[string]core.Value, _ map[string]any) error {
	terminated, ok := fields["termination_date"]
	if !ok {
		return nil
	}
	fields["is_active"] = core.Bool(terminated.IsNull())
	return nil
}
