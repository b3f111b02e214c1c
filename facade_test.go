package ingest

import (
	"context"
	"net/http"
	"testing"
	"time"

	gocmd "github.com/goliatone/go-command"
	ingestcommand "github.com/goliatone/go-hr-ingest/command"
	"github.com/goliatone/go-hr-ingest/core"
	ingestquery "github.com/goliatone/go-hr-ingest/query"
	"github.com/goliatone/go-hr-ingest/webhooks"
)

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	facade, err := NewFacade(newFacadeService(t))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	if facade.Commands().Ingest == nil {
		t.Fatalf("expected ingest command to be wired")
	}
	queries := facade.Queries()
	if queries.GetRecord == nil || queries.ListDeliveries == nil {
		t.Fatalf("expected query handlers to be wired")
	}
	if facade.Service() == nil {
		t.Fatalf("expected service to be exposed")
	}
}

func TestFacade_CommandAndQueryDelegation(t *testing.T) {
	facade, err := NewFacade(newFacadeService(t))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	collector := gocmd.NewResult[core.Response]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := facade.Commands().Ingest.Execute(ctx, ingestcommand.IngestMessage{Request: core.IngestRequest{
		ProviderID: "connecteam",
		EntityType: core.EntityTimesheet,
		RawPayload: []byte(connecteamPunch),
	}}); err != nil {
		t.Fatalf("execute ingest command: %v", err)
	}
	response, ok := collector.Load()
	if !ok || !response.Body.Created {
		t.Fatalf("expected created response, got %+v", response)
	}

	record, err := facade.Queries().GetRecord.Query(context.Background(), ingestquery.GetRecordMessage{
		RecordID: response.Body.RecordID,
	})
	if err != nil {
		t.Fatalf("query record: %v", err)
	}
	if record.NaturalKey != "connecteam:timesheet:ta-1" {
		t.Fatalf("unexpected record: %#v", record)
	}

	deliveries, err := facade.Queries().ListDeliveries.Query(context.Background(), ingestquery.ListDeliveriesMessage{
		Filter: core.ListDeliveriesFilter{ProviderID: "connecteam", Limit: 10},
	})
	if err != nil {
		t.Fatalf("query deliveries: %v", err)
	}
	if len(deliveries) != 1 || deliveries[0].EventID != "req-1" {
		t.Fatalf("unexpected deliveries: %#v", deliveries)
	}
}

func TestFacade_HandleWebhookRoutesByProvider(t *testing.T) {
	facade, err := NewFacade(newFacadeService(t),
		WithWebhookTemplates(webhooks.NewConnecteamWebhookTemplate("secret-token")),
	)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	if _, ok := facade.Webhook("Connecteam"); !ok {
		t.Fatalf("expected connecteam processor regardless of case")
	}

	rejected, err := facade.HandleWebhook(context.Background(), webhooks.Request{
		ProviderID: "connecteam",
		EntityType: core.EntityTimesheet,
		Body:       []byte(connecteamPunch),
	})
	if err == nil || rejected.Response.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized without token, got %+v %v", rejected.Response, err)
	}

	accepted, err := facade.HandleWebhook(context.Background(), webhooks.Request{
		ProviderID: "connecteam",
		EntityType: core.EntityTimesheet,
		Headers:    map[string]string{"X-Webhook-Token": "secret-token"},
		Body:       []byte(connecteamPunch),
	})
	if err != nil {
		t.Fatalf("handle webhook: %v", err)
	}
	if accepted.Response.StatusCode != http.StatusOK || accepted.DeliveryID != "req-1" {
		t.Fatalf("unexpected webhook result: %+v", accepted)
	}

	// Providers without a template are ingested unverified.
	fallback, err := facade.HandleWebhook(context.Background(), webhooks.Request{
		ProviderID: "everee",
		EntityType: core.EntityTimesheet,
		Body:       []byte(`{not json`),
	})
	if err != nil {
		t.Fatalf("handle fallback webhook: %v", err)
	}
	if fallback.Response.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected malformed payload from fallback processor, got %+v", fallback.Response)
	}
}

func TestNewFacade_RequiresService(t *testing.T) {
	facade, err := NewFacade(nil)
	if err == nil {
		t.Fatalf("expected nil service error")
	}
	if facade != nil {
		t.Fatalf("expected nil facade on error")
	}
}

func TestNewFacade_RejectsAnonymousTemplate(t *testing.T) {
	if _, err := NewFacade(newFacadeService(t), WithWebhookTemplates(webhooks.ProviderWebhookTemplate{})); err == nil {
		t.Fatalf("expected template without provider id to fail")
	}
}

func newFacadeService(t *testing.T) *Service {
	t.Helper()
	clock := func() time.Time { return factoryNow }
	providers, err := BuiltinProviders(DefaultConfig(), clock)
	if err != nil {
		t.Fatalf("builtin providers: %v", err)
	}
	svc, err := NewService(DefaultConfig(),
		WithProviders(providers...),
		WithDeliveryLog(core.NewMemoryDeliveryLog()),
		WithClock(clock),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}
