package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorMapper func(err error) *goerrors.Error

// ConfigProvider loads configuration overlaid on defaults. Every field of the
// returned Config is taken as set, so zero values override the defaults.
type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig      Config
	logger             Logger
	loggerProvider     LoggerProvider
	metricsRecorder    MetricsRecorder
	errorMapper        ErrorMapper
	configProvider     ConfigProvider
	optionsResolver    OptionsResolver
	registry           NormalizerRegistry
	providers          []Provider
	recordStore        RecordStore
	notifier           Notifier
	targets            []Target
	targetSelector     TargetSelector
	deliveryLog        DeliveryLog
	notificationLedger NotificationLedger
	now                func() time.Time
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithNormalizerRegistry(registry NormalizerRegistry) Option {
	return func(b *serviceBuilder) {
		b.registry = registry
	}
}

func WithRecordStore(store RecordStore) Option {
	return func(b *serviceBuilder) {
		b.recordStore = store
	}
}

// WithStoreProvider wires every non-nil store exposed by provider.
func WithStoreProvider(provider StoreProvider) Option {
	return func(b *serviceBuilder) {
		if provider == nil {
			return
		}
		if store := provider.RecordStore(); store != nil {
			b.recordStore = store
		}
		if log := provider.DeliveryLog(); log != nil {
			b.deliveryLog = log
		}
		if ledger := provider.NotificationLedger(); ledger != nil {
			b.notificationLedger = ledger
		}
	}
}

// WithNotifier replaces the fan-out notifier; targets passed with WithTargets
// are ignored when a custom notifier is set.
func WithNotifier(notifier Notifier) Option {
	return func(b *serviceBuilder) {
		b.notifier = notifier
	}
}

// WithProviders registers provider normalizers on the service registry.
func WithProviders(providers ...Provider) Option {
	return func(b *serviceBuilder) {
		b.providers = append(b.providers, providers...)
	}
}

func WithTargets(targets ...Target) Option {
	return func(b *serviceBuilder) {
		b.targets = append(b.targets, targets...)
	}
}

func WithTargetSelector(selector TargetSelector) Option {
	return func(b *serviceBuilder) {
		b.targetSelector = selector
	}
}

func WithDeliveryLog(log DeliveryLog) Option {
	return func(b *serviceBuilder) {
		b.deliveryLog = log
	}
}

func WithNotificationLedger(ledger NotificationLedger) Option {
	return func(b *serviceBuilder) {
		b.notificationLedger = ledger
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.now = now
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("ingest", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		registry:        NewStrategyRegistry(),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// StaticConfigLoader serves a fixed raw config map, typically decoded by the
// host from its own configuration source.
func StaticConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, true)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// configToLayerMap renders cfg as an options layer. The defaults and loaded
// layers are complete and carry every field. A runtime layer carries the fields
// changed from the DefaultConfig it started from, or its non-zero fields when it
// was built as a literal.
func configToLayerMap(cfg Config, complete bool) map[string]any {
	origin := cfg.origin
	carry := func(isZero bool, changed func(*configOrigin) bool) bool {
		switch {
		case complete:
			return true
		case origin != nil:
			return changed(origin)
		default:
			return !isZero
		}
	}

	layer := map[string]any{}
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if carry(serviceName == "", func(o *configOrigin) bool { return cfg.ServiceName != o.serviceName }) {
		layer["service_name"] = cfg.ServiceName
	}

	notification := map[string]any{}
	timeout := cfg.Notification.TargetTimeout
	if carry(timeout <= 0, func(o *configOrigin) bool { return timeout != o.targetTimeout }) {
		notification["target_timeout"] = timeout
	}
	if complete || len(cfg.Notification.Targets) > 0 {
		targets := make(map[string]any, len(cfg.Notification.Targets))
		for entity, ids := range cfg.Notification.Targets {
			targets[entity] = copyStrings(ids)
		}
		notification["targets"] = targets
	}
	if len(notification) > 0 {
		layer["notification"] = notification
	}

	rounding := cfg.Normalization.RoundTimesheetMinutes
	if carry(rounding <= 0, func(o *configOrigin) bool { return rounding != o.roundMinutes }) {
		layer["normalization"] = map[string]any{
			"round_timesheet_minutes": rounding,
		}
	}
	retries := cfg.Persistence.ConflictRetries
	if carry(retries <= 0, func(o *configOrigin) bool { return retries != o.conflictRetries }) {
		layer["persistence"] = map[string]any{
			"conflict_retries": retries,
		}
	}
	return layer
}
