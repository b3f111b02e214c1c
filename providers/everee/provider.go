package everee

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-hr-ingest/core"
)

const ProviderID = "everee"

type Config struct {
	Clock func() time.Time
}

type Provider struct {
	timesheet *core.MappingNormalizer
	worker    *core.MappingNormalizer
}

func DefaultConfig() Config {
	return Config{}
}

func New(cfg Config) (*Provider, error) {
	opts := []core.MappingOption{}
	if cfg.Clock != nil {
		opts = append(opts, core.WithMappingClock(cfg.Clock))
	}
	timesheet, err := core.NewMappingNormalizer(TimesheetSpec(), opts...)
	if err != nil {
		return nil, fmt.Errorf("providers/everee: timesheet mapping: %w", err)
	}
	worker, err := core.NewMappingNormalizer(WorkerSpec(), opts...)
	if err != nil {
		return nil, fmt.Errorf("providers/everee: worker mapping: %w", err)
	}
	return &Provider{timesheet: timesheet, worker: worker}, nil
}

func (p *Provider) ID() string {
	return ProviderID
}

func (p *Provider) Normalizers() map[core.EntityType]core.Normalizer {
	if p == nil {
		return map[core.EntityType]core.Normalizer{}
	}
	return map[core.EntityType]core.Normalizer{
		core.EntityTimesheet: p.timesheet,
		core.EntityWorker:    p.worker,
	}
}

// envelope lifts the webhook envelope fields before the object is unwrapped.
func envelope() []core.PrepareFunc {
	return []core.PrepareFunc{
		core.RenameSources(map[string]string{
			"id":        "event_id",
			"type":      "event_type",
			"timestamp": "event_timestamp",
		}),
		core.StripPrefixes("data_object_", "data_"),
	}
}

// IsDeleteEvent matches "worked-shift.deleted" style event types.
func IsDeleteEvent(eventType string) bool {
	eventType = strings.ToLower(strings.TrimSpace(eventType))
	return strings.HasSuffix(eventType, ".deleted") || strings.HasSuffix(eventType, ".removed")
}
