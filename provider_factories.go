package ingest

import (
	"fmt"
	"time"

	"github.com/goliatone/go-hr-ingest/core"
	"github.com/goliatone/go-hr-ingest/providers/connecteam"
	"github.com/goliatone/go-hr-ingest/providers/everee"
	"github.com/goliatone/go-hr-ingest/providers/workday"
)

func ConnecteamProvider(cfg connecteam.Config) (core.Provider, error) {
	return connecteam.New(cfg)
}

func EvereeProvider(cfg everee.Config) (core.Provider, error) {
	return everee.New(cfg)
}

func WorkdayProvider(cfg workday.Config) (core.Provider, error) {
	return workday.New(cfg)
}

// BuiltinProviders builds the bundled providers from service config. Punch
// rounding follows Normalization.RoundTimesheetMinutes; a nil clock uses UTC now.
func BuiltinProviders(cfg Config, clock func() time.Time) ([]core.Provider, error) {
	connecteamCfg := connecteam.DefaultConfig()
	connecteamCfg.RoundMinutes = cfg.Normalization.RoundTimesheetMinutes
	connecteamCfg.Clock = clock

	providers := make([]core.Provider, 0, 3)
	ct, err := ConnecteamProvider(connecteamCfg)
	if err != nil {
		return nil, fmt.Errorf("ingest: connecteam provider: %w", err)
	}
	providers = append(providers, ct)

	ev, err := EvereeProvider(everee.Config{Clock: clock})
	if err != nil {
		return nil, fmt.Errorf("ingest: everee provider: %w", err)
	}
	providers = append(providers, ev)

	wd, err := WorkdayProvider(workday.Config{Clock: clock})
	if err != nil {
		return nil, fmt.Errorf("ingest: workday provider: %w", err)
	}
	return append(providers, wd), nil
}
