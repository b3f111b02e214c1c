package connecteam

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-hr-ingest/core"
)

const ProviderID = "connecteam"

const (
	ActivityShift   = "shift"
	ActivityTimeOff = "time_off"
)

type Config struct {
	// RoundMinutes rounds clock punch start/end to the nearest multiple.
	// Zero disables rounding. Time off is never rounded.
	RoundMinutes int
	// PayrollTarget and SchedulerTarget enable sync-state routing when both are set.
	PayrollTarget   string
	SchedulerTarget string
	Clock           func() time.Time
}

type Provider struct {
	timesheet *core.MappingNormalizer
	worker    *core.MappingNormalizer
	selector  core.TargetSelector
}

func DefaultConfig() Config {
	return Config{RoundMinutes: core.DefaultRoundTimesheetMinute}
}

func New(cfg Config) (*Provider, error) {
	if cfg.RoundMinutes < 0 || cfg.RoundMinutes > 60 {
		return nil, fmt.Errorf("providers/connecteam: round minutes must be between 0 and 60")
	}
	payroll := strings.TrimSpace(cfg.PayrollTarget)
	scheduler := strings.TrimSpace(cfg.SchedulerTarget)
	if (payroll == "") != (scheduler == "") {
		return nil, fmt.Errorf("providers/connecteam: payroll and scheduler targets must be set together")
	}

	opts := []core.MappingOption{}
	if cfg.Clock != nil {
		opts = append(opts, core.WithMappingClock(cfg.Clock))
	}
	timesheet, err := core.NewMappingNormalizer(TimesheetSpec(cfg.RoundMinutes), opts...)
	if err != nil {
		return nil, err
	}
	worker, err := core.NewMappingNormalizer(WorkerSpec(), opts...)
	if err != nil {
		return nil, err
	}

	provider := &Provider{timesheet: timesheet, worker: worker}
	if payroll != "" {
		provider.selector = SyncStateSelector{
			PayrollTarget:   payroll,
			SchedulerTarget: scheduler,
			Now:             cfg.Clock,
		}
	}
	return provider, nil
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

func (p *Provider) TargetSelector() core.TargetSelector {
	if p == nil {
		return nil
	}
	return p.selector
}
