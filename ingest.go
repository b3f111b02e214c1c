package ingest

import "github.com/goliatone/go-hr-ingest/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type IngestRequest = core.IngestRequest
type Response = core.Response
type ResponseBody = core.ResponseBody
type EntityType = core.EntityType
type Provider = core.Provider
type Target = core.Target
type TargetFunc = core.TargetFunc
type TargetSelector = core.TargetSelector
type RecordStore = core.RecordStore
type DeliveryLog = core.DeliveryLog
type NotificationLedger = core.NotificationLedger
type StoreProvider = core.StoreProvider
type NotificationEvent = core.NotificationEvent

const (
	EntityWorker    = core.EntityWorker
	EntityApplicant = core.EntityApplicant
	EntityTimesheet = core.EntityTimesheet
)

var (
	WithLogger             = core.WithLogger
	WithLoggerProvider     = core.WithLoggerProvider
	WithMetricsRecorder    = core.WithMetricsRecorder
	WithErrorMapper        = core.WithErrorMapper
	WithConfigProvider     = core.WithConfigProvider
	WithOptionsResolver    = core.WithOptionsResolver
	WithNormalizerRegistry = core.WithNormalizerRegistry
	WithRecordStore        = core.WithRecordStore
	WithStoreProvider      = core.WithStoreProvider
	WithNotifier           = core.WithNotifier
	WithProviders          = core.WithProviders
	WithTargets            = core.WithTargets
	WithTargetSelector     = core.WithTargetSelector
	WithDeliveryLog        = core.WithDeliveryLog
	WithNotificationLedger = core.WithNotificationLedger
	WithClock              = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}
