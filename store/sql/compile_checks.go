package sqlstore

import (
	"github.com/goliatone/go-hr-ingest/core"
	"github.com/goliatone/go-hr-ingest/webhooks"
)

var (
	_ core.RecordStore        = (*RecordStore)(nil)
	_ core.RecordReader       = (*RecordStore)(nil)
	_ core.RecordStore        = (*CachedRecordStore)(nil)
	_ core.RecordReader       = (*CachedRecordStore)(nil)
	_ core.DeliveryLog        = (*DeliveryStore)(nil)
	_ core.NotificationLedger = (*NotificationOutcomeStore)(nil)
	_ core.StoreProvider      = (*RepositoryFactory)(nil)
	_ webhooks.DeliveryLedger = (*WebhookDeliveryStore)(nil)
)
