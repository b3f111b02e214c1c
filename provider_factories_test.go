package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-hr-ingest/core"
	"github.com/goliatone/go-hr-ingest/providers/connecteam"
	"github.com/goliatone/go-hr-ingest/providers/everee"
	"github.com/goliatone/go-hr-ingest/providers/workday"
)

var factoryNow = time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC)

const connecteamPunch = `{
	"requestId": "req-1",
	"activityType": "shift",
	"eventType": "clock_out",
	"timeActivity": {
		"id": "ta-1",
		"userId": 9001,
		"start": {"timestamp": 1709539349, "timezone": "America/New_York"},
		"end": {"timestamp": 1709568750, "timezone": "America/New_York"}
	}
}`

func TestBuiltInProviderFactories(t *testing.T) {
	cases := []struct {
		name string
		id   string
		fn   func() (core.Provider, error)
	}{
		{
			name: "connecteam",
			id:   connecteam.ProviderID,
			fn:   func() (core.Provider, error) { return ConnecteamProvider(connecteam.DefaultConfig()) },
		},
		{
			name: "everee",
			id:   everee.ProviderID,
			fn:   func() (core.Provider, error) { return EvereeProvider(everee.DefaultConfig()) },
		},
		{
			name: "workday",
			id:   workday.ProviderID,
			fn:   func() (core.Provider, error) { return WorkdayProvider(workday.DefaultConfig()) },
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			provider, err := tc.fn()
			if err != nil {
				t.Fatalf("factory error: %v", err)
			}
			if provider.ID() != tc.id {
				t.Fatalf("expected %q, got %q", tc.id, provider.ID())
			}
			if len(provider.Normalizers()) != 2 {
				t.Fatalf("expected two entity normalizers, got %d", len(provider.Normalizers()))
			}
		})
	}
}

func TestBuiltinProviders_FollowRoundingConfig(t *testing.T) {
	clock := func() time.Time { return factoryNow }

	rounded := builtinTimesheetStart(t, DefaultConfig(), clock)
	if !rounded.Equal(time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected default rounding to 08:00, got %v", rounded)
	}

	cfg := DefaultConfig()
	cfg.Normalization.RoundTimesheetMinutes = 0
	raw := builtinTimesheetStart(t, cfg, clock)
	if !raw.Equal(time.Unix(1709539349, 0).UTC()) {
		t.Fatalf("expected rounding disabled, got %v", raw)
	}
}

func TestBuiltinProviders_RejectsInvalidRounding(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Normalization.RoundTimesheetMinutes = 90
	if _, err := BuiltinProviders(cfg, nil); err == nil {
		t.Fatalf("expected out of range rounding to fail")
	}
}

func builtinTimesheetStart(t *testing.T, cfg Config, clock func() time.Time) time.Time {
	t.Helper()
	providers, err := BuiltinProviders(cfg, clock)
	if err != nil {
		t.Fatalf("builtin providers: %v", err)
	}
	if len(providers) != 3 {
		t.Fatalf("expected three providers, got %d", len(providers))
	}
	normalizer := providers[0].Normalizers()[core.EntityTimesheet]
	record, err := normalizer.Normalize(context.Background(), []byte(connecteamPunch), core.EntityTimesheet, connecteam.ProviderID)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	start, _ := record.Fields["start_at"].AsTime()
	return start
}
