package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Service struct {
	config             Config
	logger             Logger
	loggerProvider     LoggerProvider
	metricsRecorder    MetricsRecorder
	errorMapper        ErrorMapper
	configProvider     ConfigProvider
	optionsResolver    OptionsResolver
	registry           NormalizerRegistry
	recordStore        RecordStore
	notifier           Notifier
	targetSelector     TargetSelector
	deliveryLog        DeliveryLog
	notificationLedger NotificationLedger
	now                func() time.Time
}

type ServiceDependencies struct {
	Logger             Logger
	LoggerProvider     LoggerProvider
	MetricsRecorder    MetricsRecorder
	ErrorMapper        ErrorMapper
	ConfigProvider     ConfigProvider
	OptionsResolver    OptionsResolver
	Registry           NormalizerRegistry
	RecordStore        RecordStore
	Notifier           Notifier
	TargetSelector     TargetSelector
	DeliveryLog        DeliveryLog
	NotificationLedger NotificationLedger
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("ingest", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("ingest"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.registry == nil {
		builder.registry = NewStrategyRegistry()
	}
	if builder.recordStore == nil {
		builder.recordStore = NewMemoryRecordStore()
	}
	if builder.now == nil {
		builder.now = func() time.Time { return time.Now().UTC() }
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.notifier == nil {
		fanout, buildErr := NewFanoutNotifier(finalConfig.targetTimeout(), builder.targets...)
		if buildErr != nil {
			return nil, mapBuildError(builder.errorMapper, buildErr)
		}
		builder.notifier = fanout
	}
	for _, registered := range builder.providers {
		if err := RegisterProvider(builder.registry, registered); err != nil {
			return nil, mapBuildError(builder.errorMapper, err)
		}
	}
	if builder.targetSelector == nil {
		builder.targetSelector = providerSelectors(ConfigTargetSelector{Config: finalConfig}, builder.providers)
	}

	return &Service{
		config:             finalConfig,
		logger:             logger,
		loggerProvider:     provider,
		metricsRecorder:    builder.metricsRecorder,
		errorMapper:        builder.errorMapper,
		configProvider:     builder.configProvider,
		optionsResolver:    builder.optionsResolver,
		registry:           builder.registry,
		recordStore:        builder.recordStore,
		notifier:           builder.notifier,
		targetSelector:     builder.targetSelector,
		deliveryLog:        builder.deliveryLog,
		notificationLedger: builder.notificationLedger,
		now:                builder.now,
	}, nil
}

func providerSelectors(fallback TargetSelector, providers []Provider) TargetSelector {
	selectors := map[string]TargetSelector{}
	for _, registered := range providers {
		selecting, ok := registered.(SelectingProvider)
		if !ok {
			continue
		}
		if selector := selecting.TargetSelector(); selector != nil {
			selectors[normalizeProviderID(selecting.ID())] = selector
		}
	}
	if len(selectors) == 0 {
		return fallback
	}
	return ProviderTargetSelector{Default: fallback, Providers: selectors}
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:             s.logger,
		LoggerProvider:     s.loggerProvider,
		MetricsRecorder:    s.metricsRecorder,
		ErrorMapper:        s.errorMapper,
		ConfigProvider:     s.configProvider,
		OptionsResolver:    s.optionsResolver,
		Registry:           s.registry,
		RecordStore:        s.recordStore,
		Notifier:           s.notifier,
		TargetSelector:     s.targetSelector,
		DeliveryLog:        s.deliveryLog,
		NotificationLedger: s.notificationLedger,
	}
}

// ingestRun carries the per-invocation state; nothing outlives one Ingest call.
type ingestRun struct {
	req       IngestRequest
	state     PipelineState
	record    CanonicalRecord
	decision  Decision
	result    WriteResult
	outcomes  []NotificationOutcome
	attempts  int
	startedAt time.Time
}

// Ingest runs one webhook event through normalize, reconcile, persist and
// notify. It never returns an error: failures are classified into the response.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) Response {
	if ctx == nil {
		ctx = context.Background()
	}
	run := &ingestRun{
		req:       req,
		state:     StateReceived,
		outcomes:  []NotificationOutcome{},
		startedAt: s.clock(),
	}
	if s == nil {
		return failureResponse(run, fmt.Errorf("core: service is nil"))
	}

	err := s.process(ctx, run)
	var response Response
	if err != nil {
		run.state = StateFailed
		response = failureResponse(run, err)
	} else {
		run.state = StateDone
		response = successResponse(run)
	}

	s.recordDelivery(ctx, run, response, err)
	s.observeIngest(ctx, run, response, err)
	return response
}

func (s *Service) process(ctx context.Context, run *ingestRun) error {
	providerID := strings.TrimSpace(run.req.ProviderID)
	if providerID == "" {
		return MalformedPayloadError("core: provider id is required", nil)
	}
	if !run.req.EntityType.Valid() {
		return MalformedPayloadError(
			fmt.Sprintf("core: unknown entity type %q", run.req.EntityType),
			map[string]any{"entity_type": string(run.req.EntityType)},
		)
	}

	normalizer, ok := s.registry.Lookup(providerID, run.req.EntityType)
	if !ok || normalizer == nil {
		return UnsupportedProviderError(providerID, run.req.EntityType)
	}
	record, err := normalizer.Normalize(ctx, run.req.RawPayload, run.req.EntityType, providerID)
	if err != nil {
		if ErrorKindOf(err) == ErrorKindInternal {
			return MalformedPayloadError(err.Error(), nil)
		}
		return err
	}
	if record.EntityType != run.req.EntityType || strings.TrimSpace(record.NaturalKey) == "" {
		return MalformedPayloadError("core: normalizer produced a record without identity", nil)
	}
	if eventID := strings.TrimSpace(run.req.EventID); eventID != "" {
		record.SourceEventID = eventID
	}
	if record.SourceEventID == "" {
		record.SourceEventID = record.Fingerprint()
	}
	run.record = record
	run.state = StateNormalized

	retries := s.config.Persistence.ConflictRetries
	for {
		run.attempts++
		err = s.decideAndPersist(ctx, run)
		if err == nil {
			break
		}
		if ErrorKindOf(err) == ErrorKindPersistenceConflict && run.attempts <= retries {
			s.logWithLevel(ctx, "warn", "ingest conflict, re-reading snapshot", map[string]any{
				"natural_key": run.record.NaturalKey,
				"attempt":     run.attempts,
			})
			continue
		}
		return err
	}

	if run.decision.Kind == DecisionNoOp {
		return nil
	}
	s.notify(ctx, run)
	return nil
}

func (s *Service) decideAndPersist(ctx context.Context, run *ingestRun) error {
	snapshot, found, err := s.recordStore.FindByKey(ctx, run.record.EntityType, run.record.NaturalKey)
	if err != nil {
		return err
	}
	var base *Snapshot
	if found {
		base = &snapshot
	}
	run.decision = Reconcile(run.record, base)
	run.state = StateDecided

	if run.decision.Kind == DecisionNoOp {
		run.result = WriteResult{
			RecordID:      snapshot.RecordID,
			Created:       false,
			ChangedFields: []string{},
		}
		return nil
	}

	result, err := s.recordStore.Apply(ctx, run.decision, run.record)
	if err != nil {
		return err
	}
	if result.ChangedFields == nil {
		result.ChangedFields = copyStrings(run.decision.ChangedFields)
	}
	run.result = result
	run.state = StatePersisted
	return nil
}

func (s *Service) notify(ctx context.Context, run *ingestRun) {
	var targets []string
	if s.targetSelector != nil {
		targets = s.targetSelector.SelectTargets(ctx, run.record, run.result)
	}
	event := NewNotificationEvent(run.record, run.result, targets)
	if len(targets) > 0 && s.notifier != nil {
		run.outcomes = s.notifier.Notify(ctx, event, targets)
	}
	for _, outcome := range run.outcomes {
		if !outcome.Success {
			s.recordCounter(ctx, MetricIngestNotificationFailed, 1, map[string]string{
				"target":      outcome.Target,
				"entity_type": string(run.record.EntityType),
			})
			s.logWithLevel(ctx, "warn", "ingest notification failed", map[string]any{
				"target":     outcome.Target,
				"record_id":  run.result.RecordID,
				"error_kind": string(ErrorKindNotificationFailed),
				"error":      outcome.Error,
			})
		}
		s.recordNotification(ctx, run, event, outcome)
	}
	run.state = StateNotified
}

// NewNotificationEvent builds the completion signal for a persisted change.
func NewNotificationEvent(record CanonicalRecord, result WriteResult, targets []string) NotificationEvent {
	kind := ChangeUpdated
	if result.Created {
		kind = ChangeCreated
	}
	fields := make(map[string]any, len(record.Fields))
	for name, value := range record.Fields {
		fields[name] = value.Interface()
	}
	return NotificationEvent{
		EntityType:     record.EntityType,
		RecordID:       result.RecordID,
		ChangeKind:     kind,
		Targets:        copyStrings(targets),
		NaturalKey:     record.NaturalKey,
		SourceProvider: record.SourceProvider,
		SourceEventID:  record.SourceEventID,
		ChangedFields:  copyStrings(result.ChangedFields),
		Fields:         fields,
	}
}

func (s *Service) recordNotification(ctx context.Context, run *ingestRun, event NotificationEvent, outcome NotificationOutcome) {
	if s.notificationLedger == nil {
		return
	}
	err := s.notificationLedger.RecordOutcome(ctx, NotificationRecord{
		EventID:    run.record.SourceEventID,
		RecordID:   event.RecordID,
		Target:     outcome.Target,
		ChangeKind: event.ChangeKind,
		Success:    outcome.Success,
		Error:      outcome.Error,
		SentAt:     s.clock(),
	})
	if err != nil {
		s.logWithLevel(ctx, "warn", "notification ledger write failed", map[string]any{
			"target": outcome.Target,
			"error":  err.Error(),
		})
	}
}

func (s *Service) recordDelivery(ctx context.Context, run *ingestRun, response Response, cause error) {
	if s == nil || s.deliveryLog == nil {
		return
	}
	delivery := Delivery{
		ProviderID:    strings.TrimSpace(run.req.ProviderID),
		EntityType:    run.req.EntityType,
		EventID:       strings.TrimSpace(run.req.EventID),
		NaturalKey:    run.record.NaturalKey,
		RecordID:      response.Body.RecordID,
		Decision:      response.Body.Decision,
		State:         response.Body.State,
		StatusCode:    response.StatusCode,
		Attempts:      run.attempts,
		RawPayload:    append([]byte(nil), run.req.RawPayload...),
		ReceivedAt:    run.startedAt,
		CompletedAt:   s.clock(),
		ChangedFields: copyStrings(response.Body.ChangedFields),
		FailedTargets: []string{},
	}
	if delivery.EventID == "" {
		delivery.EventID = run.record.SourceEventID
	}
	if cause != nil {
		delivery.ErrorKind = ErrorKindOf(cause)
		delivery.ErrorMessage = cause.Error()
	}
	for _, outcome := range run.outcomes {
		if outcome.Success {
			delivery.NotifiedCount++
			continue
		}
		delivery.FailedTargets = append(delivery.FailedTargets, outcome.Target)
	}
	if err := s.deliveryLog.Record(ctx, delivery); err != nil {
		s.logWithLevel(ctx, "warn", "delivery log write failed", map[string]any{
			"provider_id": delivery.ProviderID,
			"event_id":    delivery.EventID,
			"error":       err.Error(),
		})
	}
}

// ListDeliveries reads the delivery audit log.
func (s *Service) ListDeliveries(ctx context.Context, filter ListDeliveriesFilter) ([]Delivery, error) {
	if s == nil || s.deliveryLog == nil {
		return nil, fmt.Errorf("core: delivery log is not configured")
	}
	return s.deliveryLog.List(ctx, filter)
}

// GetRecord reads a persisted record by id when the store supports it.
func (s *Service) GetRecord(ctx context.Context, recordID string) (StoredRecord, error) {
	if s == nil {
		return StoredRecord{}, fmt.Errorf("core: service is nil")
	}
	reader, ok := s.recordStore.(RecordReader)
	if !ok {
		return StoredRecord{}, fmt.Errorf("core: record store does not support lookups by id")
	}
	return reader.GetRecord(ctx, strings.TrimSpace(recordID))
}

func (s *Service) clock() time.Time {
	if s == nil || s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}
