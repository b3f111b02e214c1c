package ingest

import (
	"context"
	"fmt"
	"strings"

	ingestcommand "github.com/goliatone/go-hr-ingest/command"
	"github.com/goliatone/go-hr-ingest/core"
	ingestquery "github.com/goliatone/go-hr-ingest/query"
	"github.com/goliatone/go-hr-ingest/webhooks"
)

type CommandQueryService interface {
	core.Ingester
	ingestquery.RecordReader
	ingestquery.DeliveryReader
}

type Commands struct {
	Ingest *ingestcommand.IngestCommand
}

type Queries struct {
	GetRecord      *ingestquery.GetRecordQuery
	ListDeliveries *ingestquery.ListDeliveriesQuery
}

// Facade exposes the service through go-command handlers and per-provider
// webhook processors.
type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
	webhooks map[string]*webhooks.Processor
	fallback *webhooks.Processor
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	templates []webhooks.ProviderWebhookTemplate
	ledger    webhooks.DeliveryLedger
}

// WithWebhookTemplates installs provider specific verification and delivery
// id extraction. Later templates replace earlier ones for the same provider.
func WithWebhookTemplates(templates ...webhooks.ProviderWebhookTemplate) FacadeOption {
	return func(options *facadeOptions) {
		options.templates = append(options.templates, templates...)
	}
}

// WithWebhookLedger enables delivery dedupe for every webhook processor.
func WithWebhookLedger(ledger webhooks.DeliveryLedger) FacadeOption {
	return func(options *facadeOptions) {
		options.ledger = ledger
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("ingest: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	facade := &Facade{
		service:  service,
		webhooks: map[string]*webhooks.Processor{},
	}
	facade.commands = Commands{
		Ingest: ingestcommand.NewIngestCommand(service),
	}
	facade.queries = Queries{
		GetRecord:      ingestquery.NewGetRecordQuery(service),
		ListDeliveries: ingestquery.NewListDeliveriesQuery(service),
	}
	for _, template := range cfg.templates {
		providerID := normalizeProviderKey(template.ProviderID)
		if providerID == "" {
			return nil, fmt.Errorf("ingest: webhook template provider id is required")
		}
		facade.webhooks[providerID] = template.Processor(cfg.ledger, service)
	}
	facade.fallback = webhooks.NewProcessor(nil, cfg.ledger, service)

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

// Webhook returns the processor configured for providerID.
func (f *Facade) Webhook(providerID string) (*webhooks.Processor, bool) {
	if f == nil {
		return nil, false
	}
	processor, ok := f.webhooks[normalizeProviderKey(providerID)]
	return processor, ok
}

// HandleWebhook routes a webhook to its provider processor. Providers without
// a template are ingested unverified.
func (f *Facade) HandleWebhook(ctx context.Context, req webhooks.Request) (webhooks.Result, error) {
	if f == nil {
		return webhooks.Result{}, fmt.Errorf("ingest: facade is nil")
	}
	if processor, ok := f.Webhook(req.ProviderID); ok {
		return processor.Process(ctx, req)
	}
	return f.fallback.Process(ctx, req)
}

func normalizeProviderKey(providerID string) string {
	return strings.ToLower(strings.TrimSpace(providerID))
}
