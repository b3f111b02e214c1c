package sqlstore

import (
	"fmt"

	"github.com/goliatone/go-hr-ingest/core"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db *bun.DB

	recordStore              *RecordStore
	deliveryStore            *DeliveryStore
	notificationOutcomeStore *NotificationOutcomeStore
	webhookDeliveryStore     *WebhookDeliveryStore
	cachedRecordStore        *CachedRecordStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.recordStore != nil && f.deliveryStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

// RecordStore returns the cached record store when a cache is enabled.
func (f *RepositoryFactory) RecordStore() core.RecordStore {
	if f == nil || f.recordStore == nil {
		return nil
	}
	if f.cachedRecordStore != nil {
		return f.cachedRecordStore
	}
	return f.recordStore
}

// EnableRecordCache wraps the record store with a go-repository-cache layer
// for lookups by record id. Call it after the stores are built.
func (f *RepositoryFactory) EnableRecordCache(cacheService repositorycache.CacheService) error {
	if f == nil || f.recordStore == nil {
		return fmt.Errorf("sqlstore: stores are not built")
	}
	cached, err := NewCachedRecordStore(f.recordStore, cacheService)
	if err != nil {
		return err
	}
	f.cachedRecordStore = cached
	return nil
}

func (f *RepositoryFactory) DeliveryLog() core.DeliveryLog {
	if f == nil || f.deliveryStore == nil {
		return nil
	}
	return f.deliveryStore
}

func (f *RepositoryFactory) NotificationLedger() core.NotificationLedger {
	if f == nil || f.notificationOutcomeStore == nil {
		return nil
	}
	return f.notificationOutcomeStore
}

func (f *RepositoryFactory) Records() *RecordStore {
	if f == nil {
		return nil
	}
	return f.recordStore
}

func (f *RepositoryFactory) NotificationOutcomes() *NotificationOutcomeStore {
	if f == nil {
		return nil
	}
	return f.notificationOutcomeStore
}

func (f *RepositoryFactory) WebhookDeliveryStore() *WebhookDeliveryStore {
	if f == nil {
		return nil
	}
	return f.webhookDeliveryStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	recordStore, err := NewRecordStore(f.db)
	if err != nil {
		return err
	}
	f.recordStore = recordStore
	deliveryStore, err := NewDeliveryStore(f.db)
	if err != nil {
		return err
	}
	f.deliveryStore = deliveryStore
	notificationOutcomeStore, err := NewNotificationOutcomeStore(f.db)
	if err != nil {
		return err
	}
	f.notificationOutcomeStore = notificationOutcomeStore
	webhookDeliveryStore, err := NewWebhookDeliveryStore(f.db)
	if err != nil {
		return err
	}
	f.webhookDeliveryStore = webhookDeliveryStore
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
