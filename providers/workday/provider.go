package workday

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-hr-ingest/core"
)

const ProviderID = "workday"

// hiredStages are recruiting stages that mean the candidate was hired.
var hiredStages = map[string]struct{}{
	"hire":           {},
	"hired":          {},
	"ready for hire": {},
}

type Config struct {
	Clock func() time.Time
}

type Provider struct {
	worker    *core.MappingNormalizer
	applicant *core.MappingNormalizer
}

func DefaultConfig() Config {
	return Config{}
}

func New(cfg Config) (*Provider, error) {
	opts := []core.MappingOption{}
	if cfg.Clock != nil {
		opts = append(opts, core.WithMappingClock(cfg.Clock))
	}
	worker, err := core.NewMappingNormalizer(WorkerSpec(), opts...)
	if err != nil {
		return nil, fmt.Errorf("providers/workday: worker mapping: %w", err)
	}
	applicant, err := core.NewMappingNormalizer(ApplicantSpec(), opts...)
	if err != nil {
		return nil, fmt.Errorf("providers/workday: applicant mapping: %w", err)
	}
	return &Provider{worker: worker, applicant: applicant}, nil
}

func (p *Provider) ID() string {
	return ProviderID
}

func (p *Provider) Normalizers() map[core.EntityType]core.Normalizer {
	if p == nil {
		return map[core.EntityType]core.Normalizer{}
	}
	return map[core.EntityType]core.Normalizer{
		core.EntityWorker:    p.worker,
		core.EntityApplicant: p.applicant,
	}
}

// WorkerSpec maps Workday worker report rows and worker change events.
func WorkerSpec() core.MappingSpec {
	return core.MappingSpec{
		ProviderID:    ProviderID,
		Entity:        core.EntityWorker,
		KeySources:    []string{"worker_id"},
		EventIDSource: "event_id",
		Prepare: []core.PrepareFunc{
			core.StripPrefixes("worker_data_", "legal_name_", "personal_data_"),
			core.RenameSources(map[string]string{"employee_id": "worker_id", "transaction_id": "event_id"}),
		},
		Fields: []core.FieldMapping{
			{Target: "first_name", Sources: []string{"first_name"}, Transform: core.TrimTransform},
			{Target: "last_name", Sources: []string{"last_name"}, Transform: core.TrimTransform},
			{Target: "email", Sources: []string{"email_address", "work_email", "email"}, Transform: core.LowercaseTransform},
			{Target: "phone", Sources: []string{"phone_number", "phone"}, Transform: core.TrimTransform},
			{Target: "title", Sources: []string{"business_title", "job_title"}, Transform: core.TrimTransform},
			{Target: "department", Sources: []string{"supervisory_organization", "cost_center"}, Transform: core.TrimTransform},
			{Target: "employment_status", Sources: []string{"worker_status", "employment_status"}, Transform: core.LowercaseTransform},
			{Target: "pay_type", Sources: []string{"pay_rate_type"}, Transform: core.LowercaseTransform},
			{Target: "pay_rate", Sources: []string{"pay_rate", "hourly_rate"}},
			{Target: "time_zone", Sources: []string{"time_zone"}, SkipNull: true},
			{Target: "hire_date", Sources: []string{"hire_date"}},
			{Target: "termination_date", Sources: []string{"termination_date"}},
			{Target: "source_updated_at", Sources: []string{"last_updated", "last_modified"}},
		},
		Enrich: []core.EnrichFunc{
			core.JoinFields("full_name", "first_name", "last_name"),
			activeFromStatus,
		},
	}
}

// ApplicantSpec maps Workday Recruiting candidate events.
func ApplicantSpec() core.MappingSpec {
	return core.MappingSpec{
		ProviderID:    ProviderID,
		Entity:        core.EntityApplicant,
		KeySources:    []string{"applicant_id"},
		EventIDSource: "event_id",
		Prepare: []core.PrepareFunc{
			core.StripPrefixes("candidate_data_", "legal_name_"),
			core.RenameSources(map[string]string{
				"candidate_id":   "applicant_id",
				"transaction_id": "event_id",
			}),
		},
		Fields: []core.FieldMapping{
			{Target: "first_name", Sources: []string{"first_name"}, Transform: core.TrimTransform},
			{Target: "last_name", Sources: []string{"last_name"}, Transform: core.TrimTransform},
			{Target: "email", Sources: []string{"email_address", "email"}, Transform: core.LowercaseTransform},
			{Target: "phone", Sources: []string{"phone_number", "phone"}, Transform: core.TrimTransform},
			{Target: "job_requisition_id", Sources: []string{"job_requisition_id"}},
			{Target: "job_title", Sources: []string{"job_requisition_title", "job_title"}, Transform: core.TrimTransform},
			{Target: "location", Sources: []string{"job_requisition_location", "location"}, Transform: core.TrimTransform},
			{Target: "stage", Sources: []string{"stage", "recruiting_stage"}, Transform: core.LowercaseTransform},
			{Target: "status", Sources: []string{"status", "candidate_status"}, Transform: core.LowercaseTransform},
			{Target: "source", Sources: []string{"source", "candidate_source"}, Transform: core.TrimTransform},
			{Target: "rejection_reason", Sources: []string{"disposition_reason"}, Transform: core.TrimTransform},
			{Target: "applied_at", Sources: []string{"applied_date", "applied_at"}},
			{Target: "source_updated_at", Sources: []string{"last_updated", "last_modified"}},
		},
		Enrich: []core.EnrichFunc{
			core.JoinFields("full_name", "first_name", "last_name"),
			hiredFromStage,
		},
	}
}

func activeFromStatus(_ context.Context, fields map[string]core.Value, _ map[string]any) error {
	status, ok := fields["employment_status"]
	if !ok || status.IsNull() {
		return nil
	}
	text, _ := status.AsString()
	fields["is_active"] = core.Bool(text == "active" || text == "on leave")
	return nil
}

func hiredFromStage(_ context.Context, fields map[string]core.Value, _ map[string]any) error {
	stage, hasStage := fields["stage"]
	status, hasStatus := fields["status"]
	if !hasStage && !hasStatus {
		return nil
	}
	for _, value := range []core.Value{stage, status} {
		text, _ := value.AsString()
		if _, hired := hiredStages[strings.TrimSpace(text)]; hired {
			fields["hired"] = core.Bool(true)
			return nil
		}
	}
	fields["hired"] = core.Bool(false)
	return nil
}
