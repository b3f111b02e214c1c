package gocommand

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

// RegistryAdapter wraps a go-command registry and remembers which message
// types were registered through it, so one adapter never wires a type twice.
type RegistryAdapter struct {
	registry *command.Registry

	mu    sync.Mutex
	types map[string]struct{}
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry, types: map[string]struct{}{}}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

// MessageTypes lists the message types registered through the adapter.
func (a *RegistryAdapter) MessageTypes() []string {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.types))
	for msgType := range a.types {
		out = append(out, msgType)
	}
	sort.Strings(out)
	return out
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.registry.RegisterCommand(cmd)
}

// RegisterQuery registers a query handler; go-command keeps commands and
// queries in the same registry.
func (a *RegistryAdapter) RegisterQuery(qry any) error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.registry.RegisterCommand(qry)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

// AddQueueResolver mirrors registered handlers into a go-job queue registry so
// ingest commands can also run as queued jobs.
func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.registry.Initialize()
}

func (a *RegistryAdapter) ready() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return nil
}

func (a *RegistryAdapter) claimType(msgType string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.types == nil {
		a.types = map[string]struct{}{}
	}
	if _, exists := a.types[msgType]; exists {
		return fmt.Errorf("gocommand: message type %q already registered", msgType)
	}
	a.types[msgType] = struct{}{}
	return nil
}

func (a *RegistryAdapter) releaseType(msgType string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.types, msgType)
}

func SubscribeCommand[T any](cmd command.Commander[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
}

func SubscribeQuery[T any, R any](qry command.Querier[T, R], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

// RegisterAndSubscribe registers cmd and subscribes it on the global
// dispatcher. A failed registration drops the subscription.
func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	return registerAndSubscribe[T](adapter,
		func() commanddispatcher.Subscription { return SubscribeCommand(cmd, runnerOpts...) },
		func() error { return adapter.RegisterCommand(cmd) },
	)
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	return registerAndSubscribe[T](adapter,
		func() commanddispatcher.Subscription { return SubscribeQuery(qry, runnerOpts...) },
		func() error { return adapter.RegisterQuery(qry) },
	)
}

func registerAndSubscribe[T any](
	adapter *RegistryAdapter,
	subscribe func() commanddispatcher.Subscription,
	register func() error,
) (commanddispatcher.Subscription, error) {
	if err := adapter.ready(); err != nil {
		return nil, err
	}
	msgType, err := messageType[T]()
	if err != nil {
		return nil, err
	}
	if err := adapter.claimType(msgType); err != nil {
		return nil, err
	}
	subscription := subscribe()
	if err := register(); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		adapter.releaseType(msgType)
		return nil, err
	}
	return subscription, nil
}

func messageType[T any]() (string, error) {
	var zero T
	msg, ok := any(zero).(command.Message)
	if !ok {
		return "", fmt.Errorf("gocommand: %T must implement Type() string", zero)
	}
	msgType := strings.TrimSpace(msg.Type())
	if msgType == "" {
		return "", fmt.Errorf("gocommand: %T has an empty message type", zero)
	}
	return msgType, nil
}
