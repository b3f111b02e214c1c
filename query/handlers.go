package query

import (
	"context"

	"github.com/goliatone/go-hr-ingest/core"
)

type RecordReader interface {
	GetRecord(ctx context.Context, recordID string) (core.StoredRecord, error)
}

type DeliveryReader interface {
	ListDeliveries(ctx context.Context, filter core.ListDeliveriesFilter) ([]core.Delivery, error)
}

type GetRecordQuery struct {
	reader RecordReader
}

func NewGetRecordQuery(reader RecordReader) *GetRecordQuery {
	return &GetRecordQuery{reader: reader}
}

func (q *GetRecordQuery) Query(ctx context.Context, msg GetRecordMessage) (core.StoredRecord, error) {
	if q == nil || q.reader == nil {
		return core.StoredRecord{}, queryDependencyError("query: record reader is required")
	}
	return q.reader.GetRecord(ctx, msg.RecordID)
}

type ListDeliveriesQuery struct {
	reader DeliveryReader
}

func NewListDeliveriesQuery(reader DeliveryReader) *ListDeliveriesQuery {
	return &ListDeliveriesQuery{reader: reader}
}

func (q *ListDeliveriesQuery) Query(ctx context.Context, msg ListDeliveriesMessage) ([]core.Delivery, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: delivery reader is required")
	}
	return q.reader.ListDeliveries(ctx, msg.Filter)
}
