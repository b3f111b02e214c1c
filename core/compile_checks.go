package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ NormalizerRegistry = (*StrategyRegistry)(nil)
	_ Normalizer         = (*MappingNormalizer)(nil)
	_ Normalizer         = NormalizerFunc(nil)
	_ RecordStore        = (*MemoryRecordStore)(nil)
	_ RecordReader       = (*MemoryRecordStore)(nil)
	_ DeliveryLog        = (*MemoryDeliveryLog)(nil)
	_ NotificationLedger = (*MemoryNotificationLedger)(nil)
	_ Notifier           = (*FanoutNotifier)(nil)
	_ Target             = TargetFunc{}
	_ TargetSelector     = ConfigTargetSelector{}
	_ TargetSelector     = ProviderTargetSelector{}
	_ TargetSelector     = TargetSelectorFunc(nil)
	_ MetricsRecorder    = NopMetricsRecorder{}
	_ Ingester           = (*Service)(nil)

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
