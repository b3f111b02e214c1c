package gocommand

import (
	"context"
	"fmt"

	gocmd "github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	"github.com/goliatone/go-hr-ingest/command"
	"github.com/goliatone/go-hr-ingest/core"
	"github.com/goliatone/go-hr-ingest/query"
)

// Subscriptions groups the dispatcher subscriptions created for one service.
type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for _, subscription := range s {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
}

// RegisterIngestHandlers registers the ingest command and the read queries
// with the registry and subscribes them on the global dispatcher. Nil readers
// skip the matching query.
func RegisterIngestHandlers(
	adapter *RegistryAdapter,
	ingester core.Ingester,
	records query.RecordReader,
	deliveries query.DeliveryReader,
	runnerOpts ...runner.Option,
) (Subscriptions, error) {
	if ingester == nil {
		return nil, fmt.Errorf("gocommand: ingester is required")
	}
	subscriptions := Subscriptions{}

	sub, err := RegisterAndSubscribe[command.IngestMessage](adapter, command.NewIngestCommand(ingester), runnerOpts...)
	if err != nil {
		return nil, err
	}
	subscriptions = append(subscriptions, sub)

	if records != nil {
		sub, err := RegisterAndSubscribeQuery[query.GetRecordMessage, core.StoredRecord](
			adapter, query.NewGetRecordQuery(records), runnerOpts...,
		)
		if err != nil {
			subscriptions.Unsubscribe()
			return nil, err
		}
		subscriptions = append(subscriptions, sub)
	}
	if deliveries != nil {
		sub, err := RegisterAndSubscribeQuery[query.ListDeliveriesMessage, []core.Delivery](
			adapter, query.NewListDeliveriesQuery(deliveries), runnerOpts...,
		)
		if err != nil {
			subscriptions.Unsubscribe()
			return nil, err
		}
		subscriptions = append(subscriptions, sub)
	}
	return subscriptions, nil
}

// DispatchIngest sends an ingest request through the dispatcher and returns
// the pipeline response collected by the command handler.
func DispatchIngest(ctx context.Context, req core.IngestRequest) (core.Response, error) {
	collector := gocmd.NewResult[core.Response]()
	err := Dispatch(gocmd.ContextWithResult(ctx, collector), command.IngestMessage{Request: req})
	response, ok := collector.Load()
	if !ok && err == nil {
		return core.Response{}, fmt.Errorf("gocommand: ingest handler produced no response")
	}
	return response, err
}
